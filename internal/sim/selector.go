package sim

import (
	"math/rand"
	"sync"
)

// Rand is the random source behavior selection draws from. Production
// uses a seeded locked source; tests inject fixed sequences.
type Rand interface {
	Float64() float64
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a goroutine-safe random source seeded with seed.
func NewRand(seed int64) Rand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}

// ActionKind enumerates the agent action categories.
type ActionKind uint8

const (
	ActionJoinRoom ActionKind = iota
	ActionSendMessage
	ActionRespond
	ActionPrayerRequest
	ActionMove
)

func (k ActionKind) String() string {
	switch k {
	case ActionJoinRoom:
		return "join_room"
	case ActionSendMessage:
		return "send_message"
	case ActionRespond:
		return "respond_to_message"
	case ActionPrayerRequest:
		return "send_prayer_request"
	case ActionMove:
		return "move_location"
	default:
		return "unknown"
	}
}

// Candidate is one weighted entry in an agent's action list.
type Candidate struct {
	Action ActionKind
	Weight float64
}

// Select performs a roulette-wheel draw over the candidates: one uniform
// draw scaled to the total weight, walked through cumulative weights
// until it is crossed. Returns false when no candidate qualifies, which
// is a normal no-action outcome.
func Select(rng Rand, candidates []Candidate) (ActionKind, bool) {
	total := 0.0
	for _, c := range candidates {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	if total <= 0 {
		return 0, false
	}

	draw := rng.Float64() * total
	for _, c := range candidates {
		if c.Weight <= 0 {
			continue
		}
		draw -= c.Weight
		if draw < 0 {
			return c.Action, true
		}
	}
	// Floating-point remainder lands on the last positive candidate.
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].Weight > 0 {
			return candidates[i].Action, true
		}
	}
	return 0, false
}
