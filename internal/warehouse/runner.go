// Package warehouse executes the staging and transform SQL against the
// cluster database.
package warehouse

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/talerngpong/cloud-datawarehouse/pkg/errors"
)

// Execer is the subset of *sql.DB the runner needs. Each ExecContext call
// commits on its own (autocommit); there is no surrounding transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Runner executes ordered statement sequences. A failing statement aborts
// the remainder of the sequence; effects of earlier statements stay
// committed.
type Runner struct {
	db     Execer
	logger *zap.Logger
}

// NewRunner creates a runner over an open database handle.
func NewRunner(db Execer, logger *zap.Logger) *Runner {
	return &Runner{
		db:     db,
		logger: logger,
	}
}

// Run executes each statement in order, logging the wall-clock duration
// of every statement. On fault the failing statement is logged and the
// fault is returned.
func (r *Runner) Run(ctx context.Context, statements []string) error {
	for _, stmt := range statements {
		r.logger.Info("executing statement", zap.String("statement", stmt))

		start := time.Now()
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			r.logger.Error("statement failed",
				zap.String("statement", stmt),
				zap.Error(err),
			)
			return apperrors.NewStatement("execute statement", err)
		}

		r.logger.Info("statement committed", zap.Duration("took", time.Since(start)))
	}
	return nil
}
