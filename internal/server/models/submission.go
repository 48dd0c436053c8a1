package models

import "time"

const (
	KindMessage  = "msg"
	KindDocument = "doc"
)

// Submission describes one stored, encrypted artifact.
type Submission struct {
	ID       string
	SourceID string
	// Filename is the artifact name in the source's store directory,
	// e.g. "3-msg.gz.enc".
	Filename string
	Kind     string
	// OriginalName is the sanitized name of an uploaded document; empty for messages.
	OriginalName string
	// Size is the plaintext length.
	Size int64
	// StoredSize is the compressed and encrypted length.
	StoredSize int64
	CreatedAt  time.Time
}
