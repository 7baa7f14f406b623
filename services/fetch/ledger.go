package fetch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"hubfetch/pkg/db"
)

// Execer is satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Ledger records every outcome as a row in fetch_outcomes.
type Ledger struct {
	db Execer
}

func NewLedger(db Execer) *Ledger {
	return &Ledger{db: db}
}

const insertOutcome = `INSERT INTO fetch_outcomes
	(id, run_id, pipeline, resource, filename, path, status, status_code, error, size, sha256, meta, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13)`

func (l *Ledger) Observe(ctx context.Context, o Outcome) error {
	meta, err := json.Marshal(map[string]any{
		"rel_path": o.RelPath,
	})
	if err != nil {
		return fmt.Errorf("encode ledger meta: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	_, err = l.db.Exec(ctx, insertOutcome,
		uuid.NewString(),
		o.RunID.String(),
		o.Pipeline,
		o.Resource,
		o.Filename,
		o.Path,
		string(o.Status),
		o.StatusCode,
		o.Error,
		o.Size,
		o.SHA256,
		string(meta),
		o.At,
	)
	if err != nil {
		return fmt.Errorf("insert fetch outcome: %w", err)
	}
	return nil
}
