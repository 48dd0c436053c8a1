package replies

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/deaddrop/internal/dbx"
	"github.com/dmitrijs2005/deaddrop/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rp *models.Reply) error {
	if rp.ID == "" {
		rp.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO replies (id, source_id, filename, size, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	if _, err := r.db.ExecContext(ctx, query, rp.ID, rp.SourceID, rp.Filename, rp.Size, rp.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountBySource(ctx context.Context, sourceID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM replies WHERE source_id = $1`, sourceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListBySource(ctx context.Context, sourceID string) ([]*models.Reply, error) {
	query :=
		`SELECT id, source_id, filename, size, created_at
		 FROM replies
		 WHERE source_id = $1
		 ORDER BY created_at, filename
		 `

	rows, err := r.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Reply
	for rows.Next() {
		rp := &models.Reply{}
		if err := rows.Scan(&rp.ID, &rp.SourceID, &rp.Filename, &rp.Size, &rp.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) DeleteBySource(ctx context.Context, sourceID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM replies WHERE source_id = $1`, sourceID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
