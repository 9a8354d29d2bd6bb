package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Object describes a stored résumé or derived artifact.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// Store saves and retrieves résumé files and their extracted text.
type Store interface {
	// Save writes r under the owner's hashed namespace with a random name prefix.
	Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (Object, error)
	// SaveWithKey writes r at an exact key, replacing any existing object.
	SaveWithKey(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
