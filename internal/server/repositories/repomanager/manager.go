package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/deaddrop/internal/dbx"
	"github.com/dmitrijs2005/deaddrop/internal/server/repositories/replies"
	"github.com/dmitrijs2005/deaddrop/internal/server/repositories/sources"
	"github.com/dmitrijs2005/deaddrop/internal/server/repositories/submissions"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Sources(db dbx.DBTX) sources.Repository
	Submissions(db dbx.DBTX) submissions.Repository
	Replies(db dbx.DBTX) replies.Repository
}
