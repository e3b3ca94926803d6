package storage

import (
	"context"
	"io"
)

// UploadResult describes a stored object: the URL clients display and the
// handle used to delete the remote object later.
type UploadResult struct {
	URL    string
	Handle string
}

// ObjectStore uploads image payloads and removes them by handle. Any
// conforming object-storage service satisfies it.
type ObjectStore interface {
	Upload(ctx context.Context, object io.Reader, size int64, contentType string) (UploadResult, error)
	Remove(ctx context.Context, handle string) error
}
