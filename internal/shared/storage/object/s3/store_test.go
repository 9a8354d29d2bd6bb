package s3

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "owner/resume.pdf", want: "owner/resume.pdf"},
		{name: "simple prefix", prefix: "resumes", key: "owner/resume.pdf", want: "resumes/owner/resume.pdf"},
		{name: "prefix trailing slash", prefix: "resumes/", key: "owner/resume.pdf", want: "resumes/owner/resume.pdf"},
		{name: "prefix and key slashes", prefix: "/resumes/", key: "/owner/resume.pdf", want: "resumes/owner/resume.pdf"},
		{name: "nested prefix", prefix: "env/resumes", key: "owner/resume.pdf", want: "env/resumes/owner/resume.pdf"},
		{name: "empty key", prefix: "resumes", key: "", want: "resumes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestApplyEncryption(t *testing.T) {
	in := &s3.PutObjectInput{}
	applyEncryption(in, "")
	if in.ServerSideEncryption != s3types.ServerSideEncryptionAes256 || in.SSEKMSKeyId != nil {
		t.Fatalf("expected AES256 without kms key, got %v", in.ServerSideEncryption)
	}

	in = &s3.PutObjectInput{}
	applyEncryption(in, "kms-123")
	if in.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms {
		t.Fatalf("expected aws:kms, got %v", in.ServerSideEncryption)
	}
	if in.SSEKMSKeyId == nil || *in.SSEKMSKeyId != "kms-123" {
		t.Fatalf("expected kms key id to be set")
	}
}
