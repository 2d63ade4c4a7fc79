package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

// ResultArchive stores final session results as JSONB, one row per
// (run_id, session_id).
type ResultArchive struct {
	pool *pgxpool.Pool
}

func NewResultArchive(pool *pgxpool.Pool) *ResultArchive {
	return &ResultArchive{pool: pool}
}

func (a *ResultArchive) SaveResults(ctx context.Context, archived domain.ArchivedResults) error {
	data, err := json.Marshal(archived.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO session_results (run_id, session_id, quiz_id, results, archived_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (run_id, session_id) DO UPDATE
		SET quiz_id = EXCLUDED.quiz_id, results = EXCLUDED.results, archived_at = EXCLUDED.archived_at`,
		archived.RunID, archived.SessionID, archived.QuizID, string(data), archived.ArchivedAt)
	if err != nil {
		return fmt.Errorf("archive results: %w", err)
	}
	return nil
}

func (a *ResultArchive) LoadResults(ctx context.Context, runID string, sessionID int) (domain.ArchivedResults, error) {
	archived := domain.ArchivedResults{RunID: runID, SessionID: sessionID}
	var raw []byte
	err := a.pool.QueryRow(ctx,
		`SELECT quiz_id, results, archived_at FROM session_results WHERE run_id=$1 AND session_id=$2`,
		runID, sessionID,
	).Scan(&archived.QuizID, &raw, &archived.ArchivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ArchivedResults{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.ArchivedResults{}, fmt.Errorf("load results: %w", err)
	}
	if err := json.Unmarshal(raw, &archived.Results); err != nil {
		return domain.ArchivedResults{}, fmt.Errorf("unmarshal results: %w", err)
	}
	return archived, nil
}
