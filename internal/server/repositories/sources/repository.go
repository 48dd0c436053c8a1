// Package sources persists source records keyed by filesystem id.
package sources

import (
	"context"

	"github.com/dmitrijs2005/deaddrop/internal/server/models"
)

type Repository interface {
	// Create inserts src; an existing filesystem id yields common.ErrAlreadyExists.
	Create(ctx context.Context, src *models.Source) (*models.Source, error)
	GetByFilesystemID(ctx context.Context, filesystemID string) (*models.Source, error)
	Delete(ctx context.Context, id string) error
	// IncrementInteractionCount bumps and returns the artifact counter.
	IncrementInteractionCount(ctx context.Context, id string) (int64, error)
	SetPublicKey(ctx context.Context, filesystemID string, pub []byte) error
	// MarkActive clears the pending flag and touches last_updated.
	MarkActive(ctx context.Context, id string) error
}
