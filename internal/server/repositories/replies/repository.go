// Package replies persists metadata for journalist replies awaiting a source.
package replies

import (
	"context"

	"github.com/dmitrijs2005/deaddrop/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, r *models.Reply) error
	CountBySource(ctx context.Context, sourceID string) (int64, error)
	ListBySource(ctx context.Context, sourceID string) ([]*models.Reply, error)
	// DeleteBySource removes every reply row for the source and reports how many went.
	DeleteBySource(ctx context.Context, sourceID string) (int64, error)
}
