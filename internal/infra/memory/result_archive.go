package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

type archiveKey struct {
	runID     string
	sessionID int
}

// ResultArchive keeps final session results in process memory when no
// database is configured.
type ResultArchive struct {
	mu      sync.RWMutex
	results map[archiveKey]domain.ArchivedResults
}

func NewResultArchive() *ResultArchive {
	return &ResultArchive{results: make(map[archiveKey]domain.ArchivedResults)}
}

func (a *ResultArchive) SaveResults(_ context.Context, archived domain.ArchivedResults) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[archiveKey{archived.RunID, archived.SessionID}] = archived
	return nil
}

func (a *ResultArchive) LoadResults(_ context.Context, runID string, sessionID int) (domain.ArchivedResults, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.results[archiveKey{runID, sessionID}]
	if !ok {
		return domain.ArchivedResults{}, domain.ErrSessionNotFound
	}
	return r, nil
}
