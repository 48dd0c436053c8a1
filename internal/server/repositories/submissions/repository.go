// Package submissions persists metadata for encrypted source submissions.
package submissions

import (
	"context"

	"github.com/dmitrijs2005/deaddrop/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Submission) error
	CountBySource(ctx context.Context, sourceID string) (int64, error)
	ListBySource(ctx context.Context, sourceID string) ([]*models.Submission, error)
}
