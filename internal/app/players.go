package app

import (
	"math/rand/v2"
	"time"

	"live-quiz-service/internal/domain"
)

const (
	nameLetters = "abcdefghijklmnopqrstuvwxyz"
	nameDigits  = "0123456789"
)

// Player is a participant of exactly one session.
type Player struct {
	ID       int
	Name     string
	JoinedAt time.Time
}

// playerRegistry tracks the players of one session in join order.
// It is guarded by the owning session's lock.
type playerRegistry struct {
	byID  map[int]*Player
	names map[string]int
	order []*Player
}

func newPlayerRegistry() *playerRegistry {
	return &playerRegistry{
		byID:  make(map[int]*Player),
		names: make(map[string]int),
	}
}

func (r *playerRegistry) add(id int, name string, at time.Time) (*Player, error) {
	if name == "" {
		name = r.uniqueName()
	}
	if _, taken := r.names[name]; taken {
		return nil, domain.ErrNameTaken
	}
	player := &Player{ID: id, Name: name, JoinedAt: at}
	r.byID[id] = player
	r.names[name] = id
	r.order = append(r.order, player)
	return player, nil
}

func (r *playerRegistry) get(id int) (*Player, bool) {
	player, ok := r.byID[id]
	return player, ok
}

func (r *playerRegistry) count() int {
	return len(r.order)
}

// all returns players in join order.
func (r *playerRegistry) all() []*Player {
	out := make([]*Player, len(r.order))
	copy(out, r.order)
	return out
}

func (r *playerRegistry) displayNames() []string {
	out := make([]string, len(r.order))
	for i, p := range r.order {
		out[i] = p.Name
	}
	return out
}

func (r *playerRegistry) uniqueName() string {
	for {
		name := randomName()
		if _, taken := r.names[name]; !taken {
			return name
		}
	}
}

// randomName returns five distinct letters followed by three distinct digits.
func randomName() string {
	buf := make([]byte, 0, 8)
	for _, i := range rand.Perm(len(nameLetters))[:5] {
		buf = append(buf, nameLetters[i])
	}
	for _, i := range rand.Perm(len(nameDigits))[:3] {
		buf = append(buf, nameDigits[i])
	}
	return string(buf)
}
