package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/kindledapp/agentsim/internal/backend"
)

// messageWindow bounds the trailing window of messages considered for
// respond-to selection.
const messageWindow = 5 * time.Minute

// Snapshot is the read-only world view taken once per tick. Executors
// re-validate against fresh reads before any write; the snapshot only
// feeds candidate gating and respond-target selection.
type Snapshot struct {
	Rooms    []backend.Room
	Messages []backend.Message
	TakenAt  time.Time
}

// Loader fetches world snapshots from the backend.
type Loader struct {
	store backend.Store
}

// NewLoader creates a snapshot loader over the store.
func NewLoader(store backend.Store) *Loader {
	return &Loader{store: store}
}

// Load reads all rooms and the trailing message window. Either both reads
// succeed or the whole snapshot fails; a failed snapshot aborts the tick
// and the next tick retries from scratch.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	now := time.Now().UTC()

	rooms, err := l.store.Rooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}

	msgs, err := l.store.RecentMessages(ctx, now.Add(-messageWindow))
	if err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}

	return &Snapshot{Rooms: rooms, Messages: msgs, TakenAt: now}, nil
}
