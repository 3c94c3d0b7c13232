// Action executors. Each executor re-validates its precondition against a
// fresh read immediately before writing; later agents in a tick would
// otherwise act on a stale tick-start snapshot.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kindledapp/agentsim/internal/backend"
	"github.com/kindledapp/agentsim/internal/geo"
	"github.com/kindledapp/agentsim/internal/metrics"
)

// moveStepM is the approximate distance of one move_location step.
const moveStepM = 100.0

// deferrer schedules a delayed effect tied to the simulation lifecycle,
// so stopping the simulation cancels effects that have not fired yet.
type deferrer interface {
	After(d time.Duration, fn func(ctx context.Context))
}

// Executors performs agent actions against the backend.
type Executors struct {
	store backend.Store
	gen   *Generator
	rng   Rand
	drift *geo.Drift
	delay deferrer
}

// NewExecutors creates the action executor set for one simulation.
func NewExecutors(store backend.Store, gen *Generator, rng Rand, drift *geo.Drift, delay deferrer) *Executors {
	return &Executors{store: store, gen: gen, rng: rng, drift: drift, delay: delay}
}

// JoinRoom joins the agent to a room with vacancy. No-op when no room
// qualifies or the agent already participates in the chosen room. On
// success a greeting is scheduled after the agent's response delay.
func (e *Executors) JoinRoom(ctx context.Context, a *Agent) error {
	rooms, err := e.store.Rooms(ctx)
	if err != nil {
		return fmt.Errorf("fresh room read: %w", err)
	}

	open := rooms[:0:0]
	for _, r := range rooms {
		if r.HasVacancy() {
			open = append(open, r)
		}
	}
	if len(open) == 0 {
		return nil
	}

	room := open[e.rng.Intn(len(open))]
	joined, err := e.store.JoinRoom(ctx, room.ID, a.ID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("join room %s: %w", room.ID, err)
	}
	if !joined {
		// Already a member, or the room filled between read and write.
		return nil
	}

	greeting := e.gen.General(a.Personality)
	e.sendAfter(a, room.ID, greeting)
	return nil
}

// SendMessage posts a general message to one of the agent's rooms. With
// no memberships it delegates to JoinRoom instead.
func (e *Executors) SendMessage(ctx context.Context, a *Agent) error {
	parts, err := e.store.Memberships(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("fresh membership read: %w", err)
	}
	if len(parts) == 0 {
		return e.JoinRoom(ctx, a)
	}

	room := parts[e.rng.Intn(len(parts))]
	msg := backend.Message{
		RoomID:    room.RoomID,
		AuthorID:  a.ID,
		Content:   e.gen.General(a.Personality),
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.InsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	metrics.MessagesSent.Inc()
	return nil
}

// Respond picks a recent non-simulated message in one of the agent's
// rooms and schedules a reply to that room. The reply lands in the room,
// not threaded to the message.
func (e *Executors) Respond(ctx context.Context, a *Agent, snap *Snapshot, ownAgent func(id string) bool) error {
	parts, err := e.store.Memberships(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("fresh membership read: %w", err)
	}
	member := make(map[string]bool, len(parts))
	for _, p := range parts {
		member[p.RoomID] = true
	}

	var targets []backend.Message
	for _, m := range snap.Messages {
		if !member[m.RoomID] {
			continue
		}
		if m.AuthorSimulated || ownAgent(m.AuthorID) {
			continue
		}
		targets = append(targets, m)
	}
	if len(targets) == 0 {
		return nil
	}

	target := targets[e.rng.Intn(len(targets))]
	reply := e.gen.ResponseFor(a.Personality, target.Content)
	e.sendAfter(a, target.RoomID, reply)
	return nil
}

// PrayerRequest sends a templated pending prayer request to a random
// non-simulated user. Independent of room membership.
func (e *Executors) PrayerRequest(ctx context.Context, a *Agent) error {
	users, err := e.store.SampleUsers(ctx, 20, true)
	if err != nil {
		return fmt.Errorf("sample users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	to := users[e.rng.Intn(len(users))]
	req := backend.PrayerRequest{
		FromUserID: a.ID,
		ToUserID:   to.ID,
		Text:       e.gen.PrayerRequestText(a.Personality),
		Status:     "pending",
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.InsertPrayerRequest(ctx, req); err != nil {
		return fmt.Errorf("insert prayer request: %w", err)
	}
	return nil
}

// Move perturbs the agent's coordinates by roughly one step and
// refreshes the last-active timestamp.
func (e *Executors) Move(ctx context.Context, a *Agent) error {
	now := time.Now().UTC()
	lat, lng := e.drift.Step(driftKey(a.ID), now, a.Lat, a.Lng, moveStepM*(0.5+e.rng.Float64()))

	if err := e.store.UpdateUserLocation(ctx, a.ID, lat, lng, now); err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	a.Lat, a.Lng = lat, lng
	a.LastActive = now
	return nil
}

// driftKey gives each agent a stable offset into the drift noise field.
func driftKey(id string) float64 {
	var sum float64
	for i := 0; i < len(id) && i < 8; i++ {
		sum = sum*31 + float64(id[i])
	}
	return sum / 1e10
}

// sendAfter schedules a delayed message insert through the simulation's
// lifecycle-tracked timer set.
func (e *Executors) sendAfter(a *Agent, roomID, content string) {
	if content == "" {
		return
	}
	d := a.Speed.Delay(e.rng.Float64)
	authorID := a.ID
	e.delay.After(d, func(ctx context.Context) {
		msg := backend.Message{
			RoomID:    roomID,
			AuthorID:  authorID,
			Content:   content,
			CreatedAt: time.Now().UTC(),
		}
		if err := e.store.InsertMessage(ctx, msg); err != nil {
			slog.Warn("delayed send failed", "agent", authorID, "room", roomID, "error", err)
			return
		}
		metrics.MessagesSent.Inc()
	})
}
