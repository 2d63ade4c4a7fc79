package app

import (
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// armed reports whether an armed callback has neither fired nor been cancelled.
func (t *Timer) armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

type fakeCall struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (c *fakeCall) Stop() bool {
	was := !c.stopped
	c.stopped = true
	return was
}

// fakeScheduler records scheduled callbacks; tests fire them by hand.
type fakeScheduler struct {
	mu    sync.Mutex
	calls []*fakeCall
}

func (s *fakeScheduler) schedule(d time.Duration, f func()) stopper {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &fakeCall{d: d, f: f}
	s.calls = append(s.calls, c)
	return c
}

func (s *fakeScheduler) last() *fakeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

// fireLast runs the most recently scheduled callback as if its delay elapsed.
func (s *fakeScheduler) fireLast() {
	if c := s.last(); c != nil {
		c.f()
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testQuiz() domain.Quiz {
	return domain.Quiz{
		ID:      "quiz-1",
		OwnerID: "owner-1",
		Name:    "Arithmetic",
		Questions: []domain.Question{
			{
				ID:       11,
				Prompt:   "What is 2 + 2?",
				Duration: 5,
				Points:   10,
				Answers: []domain.Answer{
					{ID: 1, Text: "3", Colour: "red"},
					{ID: 2, Text: "4", Colour: "blue", Correct: true},
				},
			},
			{
				ID:       12,
				Prompt:   "Pick the even numbers",
				Duration: 10,
				Points:   4,
				Answers: []domain.Answer{
					{ID: 1, Text: "2", Colour: "red", Correct: true},
					{ID: 2, Text: "4", Colour: "blue", Correct: true},
					{ID: 3, Text: "5", Colour: "green"},
				},
			},
		},
	}
}

type testSession struct {
	*Session
	sched *fakeScheduler
	clock *fakeClock
}

func newTestSession(autoStartNum int) *testSession {
	sched := &fakeScheduler{}
	clock := newFakeClock()
	s := newSession(SessionParams{
		ID:           1,
		OwnerID:      "owner-1",
		Snapshot:     domain.NewSnapshot(testQuiz(), clock.Now()),
		AutoStartNum: autoStartNum,
		Now:          clock.Now,
	}, newTimer(sched.schedule))
	return &testSession{Session: s, sched: sched, clock: clock}
}
