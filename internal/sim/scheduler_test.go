package sim

import (
	"context"
	"testing"
	"time"

	"github.com/kindledapp/agentsim/internal/geo"
)

func newTestSimulation(store *memStore, cfg Config, rng Rand, population int) *Simulation {
	roster := make([]*Agent, 0, population)
	f := NewFactory(store, rng)
	for i := 0; i < population; i++ {
		a := f.buildAgent("sim-test", cfg, PersonalityEncourager)
		if err := f.register(context.Background(), a); err != nil {
			panic(err)
		}
		roster = append(roster, a)
	}
	return newSimulation("sim-test", cfg, roster, store, rng, geo.NewDrift(1))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// Population of three, one room with capacity for everyone, two ticks:
// every agent ends up in the room and has posted at least one message.
func TestTwoTicksFillRoomAndPost(t *testing.T) {
	store := newMemStore()
	store.addRoom("room-1", "Morning Prayer Circle", 8)

	cfg := testConfig(3)
	// Fixed low draw always lands on the first candidate: join on the
	// first tick, then send (delegating join is already done).
	s := newTestSimulation(store, cfg, fixedRand{f: 0.0}, 3)
	defer s.stop()

	s.tick()
	s.tick()

	if got := store.participantCount(); got != 3 {
		t.Fatalf("participants after two ticks: %d, want 3", got)
	}
	// Greetings are delayed sends (instant tier, near-immediate).
	waitFor(t, 2*time.Second, func() bool { return store.messageCount() >= 3 })
}

// Zero rooms: no join or send ever succeeds, and the participation and
// message stores stay untouched no matter how many ticks run.
func TestZeroRoomsMeansZeroRoomWrites(t *testing.T) {
	store := newMemStore()
	s := newTestSimulation(store, testConfig(3), NewRand(5), 3)
	defer s.stop()

	for i := 0; i < 20; i++ {
		s.tick()
	}

	if got := store.participantCount(); got != 0 {
		t.Errorf("participation writes with zero rooms: %d", got)
	}
	if got := store.messageCount(); got != 0 {
		t.Errorf("message writes with zero rooms: %d", got)
	}
}

// A failed snapshot aborts the whole tick: nothing is written even when
// agents had actions available.
func TestSnapshotFailureAbortsTick(t *testing.T) {
	store := newMemStore()
	store.addRoom("room-1", "Young Adults", 10)

	s := newTestSimulation(store, testConfig(2), fixedRand{f: 0.0}, 2)
	defer s.stop()

	store.mu.Lock()
	store.failRooms = true
	store.mu.Unlock()
	before := store.writes()
	s.tick()
	if got := store.writes(); got != before {
		t.Errorf("writes during aborted tick: %d", got-before)
	}

	// Next tick retries from scratch and succeeds.
	store.mu.Lock()
	store.failRooms = false
	store.mu.Unlock()
	s.tick()
	if got := store.participantCount(); got != 2 {
		t.Errorf("participants after recovered tick: %d, want 2", got)
	}
}

// Joining twice without leaving yields exactly one participation record
// and one occupant-count increment.
func TestJoinRoomIdempotent(t *testing.T) {
	store := newMemStore()
	store.addRoom("room-1", "Bible Study", 8)

	s := newTestSimulation(store, testConfig(1), fixedRand{f: 0.0}, 1)
	defer s.stop()
	a := s.Agents[0]

	for i := 0; i < 2; i++ {
		if err := s.exec.JoinRoom(s.ctx, a); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}

	if got := store.participantCount(); got != 1 {
		t.Errorf("participation records: %d, want 1", got)
	}
	store.mu.Lock()
	occ := store.rooms["room-1"].OccupantCount
	store.mu.Unlock()
	if occ != 1 {
		t.Errorf("occupant count: %d, want 1", occ)
	}
}

// Occupant count never exceeds capacity, even when more agents want in.
func TestJoinRespectsCapacity(t *testing.T) {
	store := newMemStore()
	store.addRoom("room-1", "Small Group", 2)

	s := newTestSimulation(store, testConfig(5), fixedRand{f: 0.0}, 5)
	defer s.stop()

	for _, a := range s.Agents {
		if err := s.exec.JoinRoom(s.ctx, a); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	store.mu.Lock()
	occ := store.rooms["room-1"].OccupantCount
	capacity := store.rooms["room-1"].Capacity
	store.mu.Unlock()
	if occ > capacity {
		t.Errorf("occupant count %d exceeds capacity %d", occ, capacity)
	}
}

// An agent with no memberships that draws send_message delegates to
// join_room instead of posting nowhere.
func TestSendDelegatesToJoinWithoutMembership(t *testing.T) {
	store := newMemStore()
	store.addRoom("room-1", "Parents Connect", 10)

	s := newTestSimulation(store, testConfig(1), fixedRand{f: 0.0}, 1)
	defer s.stop()

	if err := s.exec.SendMessage(s.ctx, s.Agents[0]); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := store.participantCount(); got != 1 {
		t.Errorf("send without membership should join: participants %d, want 1", got)
	}
}

// Respond never targets a simulated author, neither the simulation's
// own agents nor any other simulated user.
func TestRespondSkipsSimulatedAuthors(t *testing.T) {
	store := newMemStore()
	store.addRoom("room-1", "Night Owls", 10)
	store.addRealUser("real-1", "Dana Okafor")

	s := newTestSimulation(store, testConfig(2), NewRand(13), 2)
	defer s.stop()
	a, b := s.Agents[0], s.Agents[1]

	if _, err := store.JoinRoom(s.ctx, "room-1", a.ID, time.Now()); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	store.addMessage("room-1", b.ID, "simulated chatter", now)
	store.addMessage("room-1", "real-1", "could use some help this week", now)

	// Run respond many times: replies must exist and all trace back to
	// the real user's message, never the agent-authored one.
	for i := 0; i < 25; i++ {
		snap, err := s.loader.Load(s.ctx)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.exec.Respond(s.ctx, a, snap, s.isOwnAgent); err != nil {
			t.Fatalf("respond: %v", err)
		}
	}

	waitFor(t, 2*time.Second, func() bool { return store.messageCount() > 2 })

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, m := range store.messages {
		if m.AuthorID != a.ID && m.AuthorID != b.ID && m.AuthorID != "real-1" {
			t.Errorf("unexpected author %s", m.AuthorID)
		}
	}
	// The reply bank for "help" content is the prayer-response bank.
	bank := personalityBanks[a.Personality].PrayerResponse
	for _, m := range store.messages[2:] {
		if m.AuthorID != a.ID {
			continue
		}
		if !contains(bank, m.Content) {
			t.Errorf("reply %q not from the prayer-response bank", m.Content)
		}
	}
}

// With only simulated authors in the window there is nothing to respond
// to, so no reply is ever scheduled.
func TestRespondNoTargetsIsNoOp(t *testing.T) {
	store := newMemStore()
	store.addRoom("room-1", "Night Owls", 10)

	s := newTestSimulation(store, testConfig(2), NewRand(17), 2)
	defer s.stop()
	a, b := s.Agents[0], s.Agents[1]

	if _, err := store.JoinRoom(s.ctx, "room-1", a.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	store.addMessage("room-1", b.ID, "just agents in here", time.Now().UTC())

	before := store.messageCount()
	snap, err := s.loader.Load(s.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.exec.Respond(s.ctx, a, snap, s.isOwnAgent); err != nil {
		t.Fatalf("respond: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := store.messageCount(); got != before {
		t.Errorf("reply scheduled with no eligible targets: %d messages, want %d", got, before)
	}
}

// Prayer requests go to non-simulated users only.
func TestPrayerRequestTargetsRealUsers(t *testing.T) {
	store := newMemStore()
	store.addRealUser("real-1", "Jesse Tran")

	s := newTestSimulation(store, testConfig(2), NewRand(19), 2)
	defer s.stop()

	for i := 0; i < 10; i++ {
		if err := s.exec.PrayerRequest(s.ctx, s.Agents[0]); err != nil {
			t.Fatalf("prayer request: %v", err)
		}
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.prayers) != 10 {
		t.Fatalf("prayer requests: %d, want 10", len(store.prayers))
	}
	for _, p := range store.prayers {
		if p.ToUserID != "real-1" {
			t.Errorf("prayer request targeted %s, want real-1", p.ToUserID)
		}
		if p.Status != "pending" {
			t.Errorf("prayer request status %q, want pending", p.Status)
		}
	}
}

// Move perturbs coordinates by roughly one step and refreshes the
// last-active timestamp.
func TestMovePerturbsLocation(t *testing.T) {
	store := newMemStore()
	s := newTestSimulation(store, testConfig(1), NewRand(23), 1)
	defer s.stop()
	a := s.Agents[0]
	startLat, startLng := a.Lat, a.Lng

	if err := s.exec.Move(s.ctx, a); err != nil {
		t.Fatalf("move: %v", err)
	}

	d := geo.DistanceM(startLat, startLng, a.Lat, a.Lng)
	if d < 10 || d > 300 {
		t.Errorf("move distance %.1f m, want a small step near 100 m", d)
	}
	if a.LastActive.IsZero() {
		t.Error("last-active not refreshed")
	}
}

func contains(bank []string, s string) bool {
	for _, b := range bank {
		if b == s {
			return true
		}
	}
	return false
}
