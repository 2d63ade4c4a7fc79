package domain

import "time"

// Answer is one selectable option of a question.
type Answer struct {
	ID      int    `json:"answerId"`
	Text    string `json:"answer"`
	Colour  string `json:"colour"`
	Correct bool   `json:"correct"`
}

// Question models a timed multiple-choice question with one or more correct answers.
type Question struct {
	ID       int      `json:"questionId"`
	Prompt   string   `json:"question"`
	Duration int      `json:"duration"` // seconds
	Points   int      `json:"points"`
	Answers  []Answer `json:"answers"`
}

// CorrectAnswerIDs returns the ids of all answers flagged correct, in listed order.
func (q Question) CorrectAnswerIDs() []int {
	ids := make([]int, 0, len(q.Answers))
	for _, a := range q.Answers {
		if a.Correct {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// HasAnswer reports whether answerID belongs to the question.
func (q Question) HasAnswer(answerID int) bool {
	for _, a := range q.Answers {
		if a.ID == answerID {
			return true
		}
	}
	return false
}

// Quiz is an owned, ordered collection of questions.
type Quiz struct {
	ID          string     `json:"quizId"`
	OwnerID     string     `json:"ownerId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// QuizSnapshot is an immutable copy of a quiz taken when a session starts.
type QuizSnapshot struct {
	QuizID      string     `json:"quizId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
	TakenAt     time.Time  `json:"takenAt"`
}

// NewSnapshot deep-copies q so later edits to the quiz never reach a running session.
func NewSnapshot(q Quiz, at time.Time) QuizSnapshot {
	questions := make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		answers := make([]Answer, len(question.Answers))
		copy(answers, question.Answers)
		question.Answers = answers
		questions[i] = question
	}
	return QuizSnapshot{
		QuizID:      q.ID,
		Name:        q.Name,
		Description: q.Description,
		Questions:   questions,
		TakenAt:     at,
	}
}

// NumQuestions returns the number of questions in the snapshot.
func (s QuizSnapshot) NumQuestions() int {
	return len(s.Questions)
}

// Question returns the question at the 1-based position.
func (s QuizSnapshot) Question(position int) (Question, bool) {
	if position < 1 || position > len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[position-1], true
}
