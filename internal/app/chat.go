package app

import (
	"unicode/utf8"

	"live-quiz-service/internal/domain"
)

const (
	minChatLength = 1
	maxChatLength = 100
)

// chatLog is the append-only message list of a session.
type chatLog struct {
	messages []domain.ChatMessage
}

func (c *chatLog) append(msg domain.ChatMessage) {
	c.messages = append(c.messages, msg)
}

func (c *chatLog) list() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func validateChatBody(body string) error {
	n := utf8.RuneCountInString(body)
	if n < minChatLength || n > maxChatLength {
		return domain.InvalidInput("message must be %d-%d characters, got %d", minChatLength, maxChatLength, n)
	}
	return nil
}
