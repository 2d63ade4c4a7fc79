package memory

import (
	"sort"
	"sync"

	"live-quiz-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int]*app.Session
	byQuiz   map[string][]int
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int]*app.Session),
		byQuiz:   make(map[string][]int),
	}
}

func (s *SessionStore) Add(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID()]; ok {
		return
	}
	s.sessions[session.ID()] = session
	s.byQuiz[session.QuizID()] = append(s.byQuiz[session.QuizID()], session.ID())
}

func (s *SessionStore) Get(sessionID int) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

// ListByQuiz returns the quiz's sessions ordered by id.
func (s *SessionStore) ListByQuiz(quizID string) []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := append([]int(nil), s.byQuiz[quizID]...)
	sort.Ints(ids)
	out := make([]*app.Session, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.sessions[id])
	}
	return out
}
