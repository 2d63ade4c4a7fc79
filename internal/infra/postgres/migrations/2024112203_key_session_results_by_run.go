package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 0003_key_session_results_by_run.sql
var keySessionResultsByRunSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, keySessionResultsByRunSQL)
			return err
		},
		// Rows of older runs that share a session id are dropped; only one can
		// survive a session_id primary key.
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				DELETE FROM session_results a USING session_results b
				WHERE a.session_id = b.session_id AND a.archived_at < b.archived_at;
				ALTER TABLE session_results DROP CONSTRAINT IF EXISTS session_results_pkey;
				ALTER TABLE session_results DROP COLUMN IF EXISTS run_id;
				ALTER TABLE session_results ADD PRIMARY KEY (session_id);`)
			return err
		},
	)
}
