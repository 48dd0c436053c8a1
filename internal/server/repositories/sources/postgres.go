package sources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/deaddrop/internal/common"
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

func (r *PostgresRepository) Create(ctx context.Context, src *models.Source) (*models.Source, error) {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO sources (id, filesystem_id, journalist_designation)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, last_updated, pending, interaction_count
		 `

	err := r.db.QueryRowContext(ctx, query, src.ID, src.FilesystemID, src.JournalistDesignation).
		Scan(&src.CreatedAt, &src.LastUpdated, &src.Pending, &src.InteractionCount)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return src, nil
}

func (r *PostgresRepository) GetByFilesystemID(ctx context.Context, filesystemID string) (*models.Source, error) {
	query :=
		`SELECT id, filesystem_id, journalist_designation, created_at, last_updated,
		        pending, interaction_count, public_key
		 FROM sources
		 WHERE filesystem_id = $1
		 `

	src := &models.Source{}
	err := r.db.QueryRowContext(ctx, query, filesystemID).Scan(
		&src.ID, &src.FilesystemID, &src.JournalistDesignation, &src.CreatedAt, &src.LastUpdated,
		&src.Pending, &src.InteractionCount, &src.PublicKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return src, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM sources WHERE id = $1`, id)
}

func (r *PostgresRepository) IncrementInteractionCount(ctx context.Context, id string) (int64, error) {
	query :=
		`UPDATE sources SET interaction_count = interaction_count + 1, last_updated = now()
		 WHERE id = $1
		 RETURNING interaction_count
		 `

	var n int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

func (r *PostgresRepository) SetPublicKey(ctx context.Context, filesystemID string, pub []byte) error {
	return r.execOne(ctx, `UPDATE sources SET public_key = $2 WHERE filesystem_id = $1`, filesystemID, pub)
}

func (r *PostgresRepository) MarkActive(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE sources SET pending = FALSE, last_updated = now() WHERE id = $1`, id)
}

// execOne runs a statement that must touch exactly one row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
