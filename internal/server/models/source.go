// Package models defines server-side data models persisted in the database.
package models

import "time"

// Source is the persistent record of one codename holder, keyed by the
// filesystem id derived from the codename.
type Source struct {
	ID                    string
	FilesystemID          string
	JournalistDesignation string
	CreatedAt             time.Time
	LastUpdated           time.Time
	// Pending is true until the first submission arrives.
	Pending bool
	// InteractionCount numbers artifacts; it only ever grows.
	InteractionCount int64
	// PublicKey is nil until keypair provisioning completes.
	PublicKey []byte
}

// HasKey reports whether a keypair has been provisioned.
func (s *Source) HasKey() bool { return len(s.PublicKey) > 0 }
