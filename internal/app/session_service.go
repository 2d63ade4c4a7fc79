package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

const (
	// DefaultMaxActivePerQuiz caps the sessions of one quiz that have not reached END.
	DefaultMaxActivePerQuiz = 10
	// DefaultMaxAutoStart is the largest accepted autoStartNum.
	DefaultMaxAutoStart = 50
)

// SessionRepository abstracts where running sessions are kept (in-memory, Redis-mirrored, etc).
type SessionRepository interface {
	Add(session *Session)
	Get(sessionID int) (*Session, bool)
	ListByQuiz(quizID string) []*Session
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultArchive persists final session results keyed by (run id, session id).
// LoadResults returns domain.ErrSessionNotFound for unknown keys.
type ResultArchive interface {
	SaveResults(ctx context.Context, archived domain.ArchivedResults) error
	LoadResults(ctx context.Context, runID string, sessionID int) (domain.ArchivedResults, error)
}

// ArtifactStore writes generated files and returns a locator for them.
type ArtifactStore interface {
	SaveCSV(ctx context.Context, name string, data []byte) (string, error)
}

// Options tunes a SessionService. Zero values fall back to defaults; an empty
// RunID gets a fresh uuid.
type Options struct {
	RunID            string
	Countdown        time.Duration
	MaxActivePerQuiz int
	MaxAutoStart     int
	Now              func() time.Time
	Logger           *slog.Logger
	Archive          ResultArchive
	Artifacts        ArtifactStore
}

// SessionService contains the session use cases exposed to transports.
type SessionService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	opts     Options
	logger   *slog.Logger

	nextSessionID atomic.Int64
	nextPlayerID  atomic.Int64
	// players indexes player id -> *Session.
	players sync.Map
	// startMu makes the per-quiz capacity check and insert atomic.
	startMu sync.Mutex
}

func NewSessionService(store SessionRepository, quizzes QuizRepository, opts Options) *SessionService {
	if opts.MaxActivePerQuiz <= 0 {
		opts.MaxActivePerQuiz = DefaultMaxActivePerQuiz
	}
	if opts.MaxAutoStart <= 0 {
		opts.MaxAutoStart = DefaultMaxAutoStart
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &SessionService{
		sessions: store,
		quizzes:  quizzes,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// StartSession snapshots the quiz and opens a new session in LOBBY.
func (s *SessionService) StartSession(ctx context.Context, ownerID, quizID string, autoStartNum int) (int, error) {
	if autoStartNum < 0 || autoStartNum > s.opts.MaxAutoStart {
		return 0, domain.InvalidInput("autoStartNum must be between 0 and %d", s.opts.MaxAutoStart)
	}
	quiz, err := s.ownedQuiz(ctx, ownerID, quizID)
	if err != nil {
		return 0, err
	}
	if len(quiz.Questions) == 0 {
		return 0, domain.ErrEmptyQuiz
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	active := 0
	for _, session := range s.sessions.ListByQuiz(quizID) {
		if !session.Ended() {
			active++
		}
	}
	if active >= s.opts.MaxActivePerQuiz {
		return 0, domain.ErrTooManySessions
	}

	id := int(s.nextSessionID.Add(1))
	session := NewSession(SessionParams{
		ID:           id,
		RunID:        s.opts.RunID,
		OwnerID:      ownerID,
		Snapshot:     domain.NewSnapshot(quiz, s.opts.Now()),
		AutoStartNum: autoStartNum,
		Countdown:    s.opts.Countdown,
		Now:          s.opts.Now,
		Logger:       s.logger,
	})
	s.sessions.Add(session)
	s.logger.Info("session started", "session_id", id, "quiz_id", quizID, "auto_start", autoStartNum)
	return id, nil
}

// ListSessions returns the quiz's session ids split by whether they ended.
func (s *SessionService) ListSessions(ctx context.Context, ownerID, quizID string) (domain.SessionList, error) {
	if _, err := s.ownedQuiz(ctx, ownerID, quizID); err != nil {
		return domain.SessionList{}, err
	}
	list := domain.SessionList{ActiveSessions: []int{}, InactiveSessions: []int{}}
	for _, session := range s.sessions.ListByQuiz(quizID) {
		if session.Ended() {
			list.InactiveSessions = append(list.InactiveSessions, session.ID())
		} else {
			list.ActiveSessions = append(list.ActiveSessions, session.ID())
		}
	}
	sort.Ints(list.ActiveSessions)
	sort.Ints(list.InactiveSessions)
	return list, nil
}

// UpdateSessionState applies an owner action by name.
func (s *SessionService) UpdateSessionState(ctx context.Context, ownerID, quizID string, sessionID int, actionName string) error {
	session, err := s.ownedSession(ownerID, quizID, sessionID)
	if err != nil {
		return err
	}
	action, err := domain.ParseAction(actionName)
	if err != nil {
		return err
	}
	if err := session.Apply(action); err != nil {
		return err
	}
	if action == domain.ActionGoToFinalResults {
		s.archive(ctx, session)
	}
	return nil
}

// archive persists the final results. It runs outside the session lock and
// never fails the transition that triggered it.
func (s *SessionService) archive(ctx context.Context, session *Session) {
	if s.opts.Archive == nil {
		return
	}
	results, err := session.Results()
	if err != nil {
		return
	}
	archived := domain.ArchivedResults{
		RunID:      session.RunID(),
		SessionID:  session.ID(),
		QuizID:     session.QuizID(),
		Results:    results,
		ArchivedAt: s.opts.Now(),
	}
	if err := s.opts.Archive.SaveResults(ctx, archived); err != nil {
		s.logger.Warn("archive session results", "session_id", session.ID(), "err", err)
	}
}

// RunID identifies this service instance; session ids are only unique within it.
func (s *SessionService) RunID() string {
	return s.opts.RunID
}

// ArchivedResults reads archived final results. An empty runID means the
// current run. Results of another quiz are reported as not found.
func (s *SessionService) ArchivedResults(ctx context.Context, ownerID, quizID, runID string, sessionID int) (domain.ArchivedResults, error) {
	if _, err := s.ownedQuiz(ctx, ownerID, quizID); err != nil {
		return domain.ArchivedResults{}, err
	}
	if s.opts.Archive == nil {
		return domain.ArchivedResults{}, domain.ErrSessionNotFound
	}
	if runID == "" {
		runID = s.opts.RunID
	}
	archived, err := s.opts.Archive.LoadResults(ctx, runID, sessionID)
	if err != nil {
		return domain.ArchivedResults{}, err
	}
	if archived.QuizID != quizID {
		return domain.ArchivedResults{}, domain.ErrSessionNotFound
	}
	return archived, nil
}

// SessionStatus is the owner view of one session.
func (s *SessionService) SessionStatus(_ context.Context, ownerID, quizID string, sessionID int) (domain.SessionStatus, error) {
	session, err := s.ownedSession(ownerID, quizID, sessionID)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	return session.Status(), nil
}

// SessionResults is the owner view of the final results.
func (s *SessionService) SessionResults(_ context.Context, ownerID, quizID string, sessionID int) (domain.SessionResults, error) {
	session, err := s.ownedSession(ownerID, quizID, sessionID)
	if err != nil {
		return domain.SessionResults{}, err
	}
	return session.Results()
}

// SessionResultsCSV renders the results table and returns the artifact locator.
func (s *SessionService) SessionResultsCSV(ctx context.Context, ownerID, quizID string, sessionID int) (string, error) {
	session, err := s.ownedSession(ownerID, quizID, sessionID)
	if err != nil {
		return "", err
	}
	data, err := session.ResultsCSV()
	if err != nil {
		return "", err
	}
	if s.opts.Artifacts == nil {
		return "", fmt.Errorf("no artifact store configured")
	}
	return s.opts.Artifacts.SaveCSV(ctx, fmt.Sprintf("session-%d", sessionID), data)
}

// Join adds a player to a session in LOBBY and returns the new player id.
func (s *SessionService) Join(_ context.Context, sessionID int, name string) (int, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return 0, domain.ErrSessionNotFound
	}
	id := int(s.nextPlayerID.Add(1))
	if _, err := session.Join(id, name); err != nil {
		return 0, err
	}
	s.players.Store(id, session)
	return id, nil
}

// PlayerStatus reports the state of the player's session.
func (s *SessionService) PlayerStatus(_ context.Context, playerID int) (domain.PlayerStatus, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return domain.PlayerStatus{}, err
	}
	return session.PlayerStatus(), nil
}

// QuestionInfo returns the current question as players see it.
func (s *SessionService) QuestionInfo(_ context.Context, playerID, position int) (domain.QuestionInfo, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return domain.QuestionInfo{}, err
	}
	return session.QuestionInfo(position)
}

// SubmitAnswers records the player's answer set for the open question.
func (s *SessionService) SubmitAnswers(_ context.Context, playerID, position int, answerIDs []int) error {
	session, err := s.playerSession(playerID)
	if err != nil {
		return err
	}
	return session.Submit(playerID, position, answerIDs)
}

// QuestionResults returns the aggregated results of one question.
func (s *SessionService) QuestionResults(_ context.Context, playerID, position int) (domain.QuestionResults, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return domain.QuestionResults{}, err
	}
	return session.QuestionResults(position)
}

// PlayerResults returns the final results of the player's session.
func (s *SessionService) PlayerResults(_ context.Context, playerID int) (domain.SessionResults, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return domain.SessionResults{}, err
	}
	return session.Results()
}

// SendChat posts a message to the player's session chat.
func (s *SessionService) SendChat(_ context.Context, playerID int, body string) error {
	session, err := s.playerSession(playerID)
	if err != nil {
		return err
	}
	return session.SendChat(playerID, body)
}

// ViewChat returns every message of the player's session.
func (s *SessionService) ViewChat(_ context.Context, playerID int) ([]domain.ChatMessage, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return nil, err
	}
	return session.Chat(playerID)
}

// Subscribe returns a channel that receives events for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(_ context.Context, sessionID int) (<-chan domain.SessionEvent, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// PlayerSessionID returns the id of the session the player joined.
func (s *SessionService) PlayerSessionID(playerID int) (int, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return 0, err
	}
	return session.ID(), nil
}

func (s *SessionService) playerSession(playerID int) (*Session, error) {
	v, ok := s.players.Load(playerID)
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return v.(*Session), nil
}

func (s *SessionService) ownedQuiz(ctx context.Context, ownerID, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.OwnerID != ownerID {
		return domain.Quiz{}, domain.ErrNotQuizOwner
	}
	return quiz, nil
}

func (s *SessionService) ownedSession(ownerID, quizID string, sessionID int) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok || session.QuizID() != quizID {
		return nil, domain.ErrSessionNotFound
	}
	if session.OwnerID() != ownerID {
		return nil, domain.ErrNotQuizOwner
	}
	return session, nil
}
