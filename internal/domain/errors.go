package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the session engine wraps exactly one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrOwnership    = errors.New("not owner")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
	ErrCapacity     = errors.New("capacity exceeded")
)

var (
	// ErrSessionNotFound is returned when a session id does not exist (or not within the given quiz).
	ErrSessionNotFound = fmt.Errorf("%w: session", ErrNotFound)
	// ErrPlayerNotFound is returned when a player id does not exist.
	ErrPlayerNotFound = fmt.Errorf("%w: player", ErrNotFound)
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("%w: quiz", ErrNotFound)
	// ErrNotQuizOwner is returned when the acting user does not own the quiz.
	ErrNotQuizOwner = fmt.Errorf("%w: quiz belongs to another user", ErrOwnership)
	// ErrAnswerNotFound indicates a submitted answer id is not part of the current question.
	ErrAnswerNotFound = fmt.Errorf("%w: answer id does not belong to question", ErrInvalidInput)
	// ErrNameTaken is returned when a display name is already used in the session.
	ErrNameTaken = fmt.Errorf("%w: name already taken", ErrInvalidInput)
	// ErrTooManySessions is returned when a quiz already runs the maximum number of sessions.
	ErrTooManySessions = fmt.Errorf("%w: too many active sessions for quiz", ErrCapacity)
	// ErrEmptyQuiz is returned when a session is started for a quiz without questions.
	ErrEmptyQuiz = fmt.Errorf("%w: quiz has no questions", ErrCapacity)
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrNotFound, "NotFound"},
	{ErrOwnership, "Ownership"},
	{ErrInvalidState, "InvalidState"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrCapacity, "Capacity"},
}

// KindOf returns the kind name of err, or "" if err does not wrap a known kind.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// InvalidInput builds an ErrInvalidInput error with a formatted message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// InvalidState builds an ErrInvalidState error with a formatted message.
func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
