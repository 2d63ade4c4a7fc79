package redis

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

const writeTimeout = 2 * time.Second

// SessionStore keeps sessions in process (timers and locks cannot leave it) and
// mirrors every session event into a Redis hash so other instances and
// operators can observe live state:
//
//	HSET quiz:session:{runId}:{id} quizId .. state .. atQuestion .. players ..
//
// The hash expires ttl after the session reaches END. A mirror lives until its
// session ends or Close is called.
type SessionStore struct {
	*memory.SessionStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	cancels map[*app.Session]func()
	wg      sync.WaitGroup
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		SessionStore: memory.NewSessionStore(),
		client:       client,
		ttl:          ttl,
		logger:       logger,
		cancels:      make(map[*app.Session]func()),
	}
}

// Add registers the session and starts mirroring its events.
func (s *SessionStore) Add(session *app.Session) {
	s.SessionStore.Add(session)
	events, cancel := session.Subscribe()

	s.mu.Lock()
	s.cancels[session] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.mirror(session, events)
}

// Close stops every running mirror and waits for in-flight writes.
func (s *SessionStore) Close() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = make(map[*app.Session]func())
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	s.wg.Wait()
}

// mirror runs until the event channel closes: at END or on Close.
func (s *SessionStore) mirror(session *app.Session, events <-chan domain.SessionEvent) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, session)
		s.mu.Unlock()
	}()

	key := SessionKey(session.RunID(), session.ID())
	for ev := range events {
		if err := s.write(key, session.QuizID(), ev); err != nil {
			s.logger.Warn("mirror session state", "session_id", ev.SessionID, "err", err)
		}
	}
}

func (s *SessionStore) write(key, quizID string, ev domain.SessionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"quizId", quizID,
		"state", string(ev.State),
		"atQuestion", ev.AtQuestion,
		"players", ev.NumPlayers,
	)
	if ev.State == domain.StateEnd && s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// SessionKey is the Redis key of a session's mirrored state. Session ids
// restart with every process, so the run id is part of the key.
func SessionKey(runID string, sessionID int) string {
	return "quiz:session:" + runID + ":" + strconv.Itoa(sessionID)
}
