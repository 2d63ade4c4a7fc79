package domain

import (
	"strings"
	"time"
)

// SessionState is the lifecycle state of a quiz session.
type SessionState string

const (
	StateLobby             SessionState = "LOBBY"
	StateQuestionCountdown SessionState = "QUESTION_COUNTDOWN"
	StateQuestionOpen      SessionState = "QUESTION_OPEN"
	StateQuestionClose     SessionState = "QUESTION_CLOSE"
	StateAnswerShow        SessionState = "ANSWER_SHOW"
	StateFinalResults      SessionState = "FINAL_RESULTS"
	StateEnd               SessionState = "END"
)

// Active reports whether a question is in play in this state.
func (s SessionState) Active() bool {
	switch s {
	case StateQuestionCountdown, StateQuestionOpen, StateQuestionClose, StateAnswerShow:
		return true
	}
	return false
}

// Action is an owner command that drives the session state machine.
type Action string

const (
	ActionNextQuestion     Action = "NEXT_QUESTION"
	ActionSkipCountdown    Action = "SKIP_COUNTDOWN"
	ActionGoToAnswer       Action = "GO_TO_ANSWER"
	ActionGoToFinalResults Action = "GO_TO_FINAL_RESULTS"
	ActionEnd              Action = "END"
)

var actions = map[Action]struct{}{
	ActionNextQuestion:     {},
	ActionSkipCountdown:    {},
	ActionGoToAnswer:       {},
	ActionGoToFinalResults: {},
	ActionEnd:              {},
}

// ParseAction maps a wire action name onto the closed Action set.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.TrimSpace(raw))
	if _, ok := actions[a]; !ok {
		return "", InvalidInput("unknown action %q", raw)
	}
	return a, nil
}

// Submission is a player's latest answer to one question.
type Submission struct {
	PlayerID    int           `json:"playerId"`
	Position    int           `json:"position"`
	AnswerIDs   []int         `json:"answerIds"`
	SubmittedAt time.Time     `json:"submittedAt"`
	AnswerTime  time.Duration `json:"-"`
	Correct     bool          `json:"correct"`
	Seq         uint64        `json:"-"`
}

// ChatMessage is an immutable chat line of a session.
type ChatMessage struct {
	MessageBody string `json:"messageBody"`
	PlayerID    int    `json:"playerId"`
	PlayerName  string `json:"playerName"`
	TimeSent    int64  `json:"timeSent"`
}

// SessionEvent is pushed to subscribers on every transition and join.
type SessionEvent struct {
	SessionID  int          `json:"sessionId"`
	State      SessionState `json:"state"`
	AtQuestion int          `json:"atQuestion"`
	NumPlayers int          `json:"numPlayers"`
	At         time.Time    `json:"at"`
}

// PlayerStatus is the player-facing view of a session.
type PlayerStatus struct {
	State        SessionState `json:"state"`
	NumQuestions int          `json:"numQuestions"`
	AtQuestion   int          `json:"atQuestion"`
}

// AnswerInfo is an answer with its correctness hidden.
type AnswerInfo struct {
	ID     int    `json:"answerId"`
	Text   string `json:"answer"`
	Colour string `json:"colour"`
}

// QuestionInfo is the player-facing view of the current question.
type QuestionInfo struct {
	QuestionID int          `json:"questionId"`
	Question   string       `json:"question"`
	Duration   int          `json:"duration"`
	Points     int          `json:"points"`
	Answers    []AnswerInfo `json:"answers"`
}

// SessionStatus is the owner-facing view of a session.
type SessionStatus struct {
	State      SessionState `json:"state"`
	AtQuestion int          `json:"atQuestion"`
	Players    []string     `json:"players"`
	Metadata   QuizSnapshot `json:"metadata"`
}

// SessionList groups a quiz's sessions by whether they reached END.
type SessionList struct {
	ActiveSessions   []int `json:"activeSessions"`
	InactiveSessions []int `json:"inactiveSessions"`
}

// CorrectBreakdown lists players whose submission matched the correct set.
type CorrectBreakdown struct {
	AnswerID       int      `json:"answerId"`
	PlayersCorrect []string `json:"playersCorrect"`
}

// QuestionResults aggregates the submissions of one question.
type QuestionResults struct {
	QuestionID               int                `json:"questionId"`
	QuestionCorrectBreakdown []CorrectBreakdown `json:"questionCorrectBreakdown"`
	AverageAnswerTime        float64            `json:"averageAnswerTime"`
	PercentCorrect           int                `json:"percentCorrect"`
}

// RankedPlayer is one line of the final leaderboard.
type RankedPlayer struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// SessionResults is the final results payload of a session.
type SessionResults struct {
	UsersRankedByScore []RankedPlayer    `json:"usersRankedByScore"`
	QuestionResults    []QuestionResults `json:"questionResults"`
}

// ArchivedResults is a persisted copy of a session's final results. Session ids
// restart with every process, so RunID tells runs apart.
type ArchivedResults struct {
	RunID      string         `json:"runId"`
	SessionID  int            `json:"sessionId"`
	QuizID     string         `json:"quizId"`
	Results    SessionResults `json:"results"`
	ArchivedAt time.Time      `json:"archivedAt"`
}
