// Package storage persists encrypted submission artifacts, one directory per
// source, and optionally mirrors them to S3-compatible object storage.
package storage

import (
	"context"
	"io"
	"time"
)

// NormalizedTime is the timestamp every stored artifact carries.
var NormalizedTime = time.Unix(0, 0).UTC()

// Artifact is an in-progress write. Exactly one of Commit or Abort ends it;
// Abort after Commit is a no-op.
type Artifact interface {
	io.Writer
	Commit() (int64, error)
	Abort()
}

// Store is an artifact store addressed by (source directory, artifact name).
type Store interface {
	Create(ctx context.Context, dir, name string) (Artifact, error)
	Open(ctx context.Context, dir, name string) (io.ReadCloser, error)
	// Normalize resets the timestamps of every artifact in dir to NormalizedTime.
	Normalize(ctx context.Context, dir string) error
	Remove(ctx context.Context, dir, name string) error
	RemoveAll(ctx context.Context, dir string) error
}
