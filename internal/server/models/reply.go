package models

import "time"

// Reply is a journalist reply stored for a source.
type Reply struct {
	ID        string
	SourceID  string
	Filename  string
	Size      int64
	CreatedAt time.Time
}
