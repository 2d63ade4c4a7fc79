package app

import (
	"sync"
	"time"
)

type stopper interface {
	Stop() bool
}

// scheduleFunc runs f once after d and returns a handle that can stop it.
type scheduleFunc func(d time.Duration, f func()) stopper

func afterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// Timer holds at most one pending delayed callback. Every Arm and Cancel bumps a
// generation number; a callback that already started running checks its captured
// generation with Claim and becomes a no-op when it has been superseded.
type Timer struct {
	schedule scheduleFunc

	mu      sync.Mutex
	gen     uint64
	pending stopper
}

// NewTimer returns a Timer backed by time.AfterFunc.
func NewTimer() *Timer {
	return newTimer(afterFunc)
}

func newTimer(schedule scheduleFunc) *Timer {
	return &Timer{schedule: schedule}
}

// Arm cancels any pending callback and schedules fire to run after d.
// fire receives the generation it was armed with.
func (t *Timer) Arm(d time.Duration, fire func(gen uint64)) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.gen++
	gen := t.gen
	t.pending = t.schedule(d, func() { fire(gen) })
	return gen
}

// Cancel stops the pending callback, if any. Cancelling twice, or after the
// callback fired, is a no-op. It reports whether a pending callback was stopped.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	stopped := t.stopLocked()
	t.gen++
	return stopped
}

// Claim consumes the arm identified by gen. It returns true at most once per Arm
// and never after that arm was cancelled or superseded.
func (t *Timer) Claim(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.pending == nil {
		return false
	}
	t.pending = nil
	return true
}

func (t *Timer) stopLocked() bool {
	if t.pending == nil {
		return false
	}
	stopped := t.pending.Stop()
	t.pending = nil
	return stopped
}
