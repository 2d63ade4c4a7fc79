package app

import (
	"log/slog"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// DefaultCountdown is the delay between NEXT_QUESTION and the question opening.
const DefaultCountdown = 3 * time.Second

type transitionKey struct {
	from   domain.SessionState
	action domain.Action
}

// transitions is the owner-action table. END is accepted from every state but END
// and is handled separately.
var transitions = map[transitionKey]domain.SessionState{
	{domain.StateLobby, domain.ActionNextQuestion}:              domain.StateQuestionCountdown,
	{domain.StateQuestionCountdown, domain.ActionSkipCountdown}: domain.StateQuestionOpen,
	{domain.StateQuestionOpen, domain.ActionGoToAnswer}:         domain.StateAnswerShow,
	{domain.StateQuestionClose, domain.ActionGoToAnswer}:        domain.StateAnswerShow,
	{domain.StateQuestionClose, domain.ActionNextQuestion}:      domain.StateQuestionCountdown,
	{domain.StateQuestionClose, domain.ActionGoToFinalResults}:  domain.StateFinalResults,
	{domain.StateAnswerShow, domain.ActionNextQuestion}:         domain.StateQuestionCountdown,
	{domain.StateAnswerShow, domain.ActionGoToFinalResults}:     domain.StateFinalResults,
}

// SessionParams configures a new session.
type SessionParams struct {
	ID           int
	RunID        string
	OwnerID      string
	Snapshot     domain.QuizSnapshot
	AutoStartNum int
	Countdown    time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

// Session is one timed run of a quiz. All state is guarded by mu; timer
// callbacks take the same lock, so transitions and timer arming are atomic
// with respect to each other.
type Session struct {
	id           int
	runID        string
	ownerID      string
	snapshot     domain.QuizSnapshot
	autoStartNum int
	countdown    time.Duration
	now          func() time.Time
	timer        *Timer
	logger       *slog.Logger

	mu          sync.Mutex
	state       domain.SessionState
	position    int
	revealed    int
	openedAt    time.Time
	players     *playerRegistry
	chat        chatLog
	submissions map[int]questionSubmissions
	seq         uint64
	subscribers map[chan domain.SessionEvent]struct{}
}

// NewSession creates a session in LOBBY.
func NewSession(p SessionParams) *Session {
	return newSession(p, NewTimer())
}

func newSession(p SessionParams, timer *Timer) *Session {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Countdown <= 0 {
		p.Countdown = DefaultCountdown
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Session{
		id:           p.ID,
		runID:        p.RunID,
		ownerID:      p.OwnerID,
		snapshot:     p.Snapshot,
		autoStartNum: p.AutoStartNum,
		countdown:    p.Countdown,
		now:          p.Now,
		timer:        timer,
		logger:       p.Logger.With("session_id", p.ID),
		state:        domain.StateLobby,
		players:      newPlayerRegistry(),
		submissions:  make(map[int]questionSubmissions),
		subscribers:  make(map[chan domain.SessionEvent]struct{}),
	}
}

func (s *Session) ID() int { return s.id }
func (s *Session) RunID() string { return s.runID }
func (s *Session) QuizID() string { return s.snapshot.QuizID }
func (s *Session) OwnerID() string { return s.ownerID }

// State returns the current state and 1-based question position.
func (s *Session) State() (domain.SessionState, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.position
}

// Ended reports whether the session reached END.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == domain.StateEnd
}

// Apply runs an owner action through the transition table.
func (s *Session) Apply(action domain.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if action == domain.ActionEnd {
		if s.state == domain.StateEnd {
			return domain.InvalidState("session already ended")
		}
		s.enterLocked(domain.StateEnd)
		return nil
	}

	to, ok := transitions[transitionKey{from: s.state, action: action}]
	if !ok {
		return domain.InvalidState("action %s not allowed in state %s", action, s.state)
	}
	if action == domain.ActionNextQuestion && s.position >= s.snapshot.NumQuestions() {
		return domain.InvalidState("no questions remain")
	}
	s.enterLocked(to)
	return nil
}

// enterLocked performs the side effects of entering state to. Any pending timer
// is cancelled first so a stale fire can never act on the new state.
func (s *Session) enterLocked(to domain.SessionState) {
	s.timer.Cancel()
	from := s.state
	s.state = to

	switch to {
	case domain.StateQuestionCountdown:
		s.position++
		s.timer.Arm(s.countdown, s.onTimer)
	case domain.StateQuestionOpen:
		s.openedAt = s.now()
		q, _ := s.snapshot.Question(s.position)
		s.timer.Arm(time.Duration(q.Duration)*time.Second, s.onTimer)
	case domain.StateAnswerShow:
		if s.position > s.revealed {
			s.revealed = s.position
		}
	case domain.StateFinalResults:
		s.position = 0
		s.revealed = s.snapshot.NumQuestions()
	case domain.StateEnd:
		s.position = 0
	}

	s.logger.Debug("session transition", "from", from, "to", to, "at_question", s.position)
	s.broadcastLocked()
	if to == domain.StateEnd {
		s.closeSubscribersLocked()
	}
}

// onTimer advances the session when an armed countdown or duration elapses.
func (s *Session) onTimer(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.timer.Claim(gen) {
		return
	}
	switch s.state {
	case domain.StateQuestionCountdown:
		s.enterLocked(domain.StateQuestionOpen)
	case domain.StateQuestionOpen:
		s.enterLocked(domain.StateQuestionClose)
	}
}

// Join registers a player under the given id. An empty name is replaced by a
// generated one. Reaching autoStartNum players starts the first question.
func (s *Session) Join(playerID int, name string) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateLobby {
		return nil, domain.InvalidState("session is not in lobby")
	}
	player, err := s.players.add(playerID, name, s.now())
	if err != nil {
		return nil, err
	}

	if s.autoStartNum > 0 && s.players.count() >= s.autoStartNum {
		s.enterLocked(domain.StateQuestionCountdown)
	} else {
		s.broadcastLocked()
	}
	return player, nil
}

// Submit stores (or replaces) the player's answer to the open question.
func (s *Session) Submit(playerID, position int, answerIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players.get(playerID); !ok {
		return domain.ErrPlayerNotFound
	}
	if s.state != domain.StateQuestionOpen {
		return domain.InvalidState("question is not open")
	}
	if position != s.position {
		return domain.InvalidInput("question position %d is not the current question", position)
	}
	q, _ := s.snapshot.Question(position)
	if err := validateAnswerIDs(q, answerIDs); err != nil {
		return err
	}

	now := s.now()
	s.seq++
	chosen := make([]int, len(answerIDs))
	copy(chosen, answerIDs)
	if s.submissions[position] == nil {
		s.submissions[position] = make(questionSubmissions)
	}
	s.submissions[position][playerID] = &domain.Submission{
		PlayerID:    playerID,
		Position:    position,
		AnswerIDs:   chosen,
		SubmittedAt: now,
		AnswerTime:  now.Sub(s.openedAt),
		Correct:     isCorrect(q, chosen),
		Seq:         s.seq,
	}
	return nil
}

func validateAnswerIDs(q domain.Question, answerIDs []int) error {
	if len(answerIDs) == 0 {
		return domain.InvalidInput("at least one answer id is required")
	}
	seen := make(map[int]struct{}, len(answerIDs))
	for _, id := range answerIDs {
		if _, dup := seen[id]; dup {
			return domain.InvalidInput("duplicate answer id %d", id)
		}
		seen[id] = struct{}{}
		if !q.HasAnswer(id) {
			return domain.ErrAnswerNotFound
		}
	}
	return nil
}

// SendChat appends a message from the player.
func (s *Session) SendChat(playerID int, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players.get(playerID)
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if err := validateChatBody(body); err != nil {
		return err
	}
	s.chat.append(domain.ChatMessage{
		MessageBody: body,
		PlayerID:    player.ID,
		PlayerName:  player.Name,
		TimeSent:    s.now().Unix(),
	})
	return nil
}

// Chat returns every message of the session in send order.
func (s *Session) Chat(playerID int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players.get(playerID); !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return s.chat.list(), nil
}

// HasPlayer reports whether the player joined this session.
func (s *Session) HasPlayer(playerID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.players.get(playerID)
	return ok
}

// PlayerStatus is the player-facing session status.
func (s *Session) PlayerStatus() domain.PlayerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.PlayerStatus{
		State:        s.state,
		NumQuestions: s.snapshot.NumQuestions(),
		AtQuestion:   s.position,
	}
}

// QuestionInfo returns the current question without answer correctness.
func (s *Session) QuestionInfo(position int) (domain.QuestionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.StateLobby || s.state == domain.StateEnd {
		return domain.QuestionInfo{}, domain.InvalidState("no question in state %s", s.state)
	}
	q, ok := s.snapshot.Question(position)
	if !ok {
		return domain.QuestionInfo{}, domain.InvalidInput("question position %d out of range", position)
	}
	if position != s.position {
		return domain.QuestionInfo{}, domain.InvalidInput("question position %d is not the current question", position)
	}

	answers := make([]domain.AnswerInfo, len(q.Answers))
	for i, a := range q.Answers {
		answers[i] = domain.AnswerInfo{ID: a.ID, Text: a.Text, Colour: a.Colour}
	}
	return domain.QuestionInfo{
		QuestionID: q.ID,
		Question:   q.Prompt,
		Duration:   q.Duration,
		Points:     q.Points,
		Answers:    answers,
	}, nil
}

// Status is the owner-facing view, including answer correctness.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionStatus{
		State:      s.state,
		AtQuestion: s.position,
		Players:    s.players.displayNames(),
		Metadata:   s.snapshot,
	}
}

// QuestionResults aggregates one question once its answer has been shown.
func (s *Session) QuestionResults(position int) (domain.QuestionResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.snapshot.Question(position)
	if !ok {
		return domain.QuestionResults{}, domain.InvalidInput("question position %d out of range", position)
	}
	if position > s.revealed {
		return domain.QuestionResults{}, domain.InvalidState("answer of question %d not shown yet", position)
	}
	return buildQuestionResults(q, s.submissions[position], s.players), nil
}

// Results returns the final results; only valid in FINAL_RESULTS.
func (s *Session) Results() (domain.SessionResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateFinalResults {
		return domain.SessionResults{}, domain.InvalidState("session is not in %s", domain.StateFinalResults)
	}
	return buildSessionResults(s.snapshot, s.submissions, s.players), nil
}

// ResultsCSV renders the per-question score/rank table; only valid in FINAL_RESULTS.
func (s *Session) ResultsCSV() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateFinalResults {
		return nil, domain.InvalidState("session is not in %s", domain.StateFinalResults)
	}
	return buildResultsCSV(s.snapshot, s.submissions, s.players)
}

// Subscribe returns a channel that receives an event on every transition and
// join. The channel is closed when the session ends or cancel is called.
func (s *Session) Subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, 8)

	s.mu.Lock()
	ch <- s.eventLocked()
	if s.state == domain.StateEnd {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) eventLocked() domain.SessionEvent {
	return domain.SessionEvent{
		SessionID:  s.id,
		State:      s.state,
		AtQuestion: s.position,
		NumPlayers: s.players.count(),
		At:         s.now(),
	}
}

func (s *Session) broadcastLocked() {
	ev := s.eventLocked()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber: drop its oldest event so it always sees the latest.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (s *Session) closeSubscribersLocked() {
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}
