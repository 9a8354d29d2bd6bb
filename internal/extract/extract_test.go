package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"interview-backend/internal/shared/storage/object"
	"interview-backend/internal/shared/storage/object/local"
)

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(body.String())); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractTextFromBytes_ZipDocxNormalizes(t *testing.T) {
	data := buildDocx(t, "Jane Doe", "Senior Go Engineer")

	got, err := ExtractTextFromBytes(context.Background(), data, "application/zip", "test.docx")
	if err != nil {
		t.Fatalf("expected docx to extract from zip mime, got error: %v", err)
	}
	if got != "Jane Doe\nSenior Go Engineer" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestExtractTextFromBytes_RealZipRejected(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("notes.txt")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	_, err = ExtractTextFromBytes(context.Background(), buf.Bytes(), "application/zip", "notes.zip")
	if err == nil {
		t.Fatal("expected unsupported mime error for zip")
	}
	if !strings.Contains(err.Error(), "unsupported mime type: application/zip") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractTextFromBytes_SniffsWithoutMime(t *testing.T) {
	got, err := ExtractTextFromBytes(context.Background(), buildDocx(t, "Hello"), "", "upload.bin")
	if err != nil {
		t.Fatalf("sniffed docx: %v", err)
	}
	if got != "Hello" {
		t.Fatalf("unexpected text: %q", got)
	}

	got, err = ExtractTextFromBytes(context.Background(), []byte("  Plain resume  "), "", "resume.txt")
	if err != nil {
		t.Fatalf("plain text: %v", err)
	}
	if got != "Plain resume" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestExtractTextFromBytes_EmptyText(t *testing.T) {
	_, err := ExtractTextFromBytes(context.Background(), []byte("   "), "text/plain", "")
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestExtractorCachesDerivedText(t *testing.T) {
	ctx := context.Background()
	store := local.New(t.TempDir())
	obj, err := store.Save(ctx, "subject-1", "cv.docx", bytes.NewReader(buildDocx(t, "Kubernetes", "Postgres")))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	ex := New(store)
	got, err := ex.ExtractText(ctx, obj.Key)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != "Kubernetes\nPostgres" {
		t.Fatalf("unexpected text: %q", got)
	}

	rc, err := store.Open(ctx, obj.Key+extractedSuffix)
	if err != nil {
		t.Fatalf("expected derived copy: %v", err)
	}
	derived, _ := io.ReadAll(rc)
	rc.Close()
	if string(derived) != got {
		t.Fatalf("derived copy mismatch: %q", derived)
	}

	if _, err := store.SaveWithKey(ctx, obj.Key+extractedSuffix, "text/plain", strings.NewReader("cached text")); err != nil {
		t.Fatalf("overwrite cache: %v", err)
	}
	got, err = ex.ExtractText(ctx, obj.Key)
	if err != nil {
		t.Fatalf("extract cached: %v", err)
	}
	if got != "cached text" {
		t.Fatalf("expected cached text, got %q", got)
	}
}

func TestExtractorMissingObject(t *testing.T) {
	_, err := New(local.New(t.TempDir())).ExtractText(context.Background(), "nope/cv.pdf")
	if !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
