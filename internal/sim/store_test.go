package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kindledapp/agentsim/internal/backend"
)

// memStore is an in-memory backend.Store for simulator tests. Every
// mutating call bumps writeCount so tests can assert write silence.
type memStore struct {
	mu         sync.Mutex
	rooms      map[string]*backend.Room
	parts      map[string]map[string]backend.Participation // roomID → userID
	messages   []backend.Message
	prayers    []backend.PrayerRequest
	users      map[string]backend.User
	writeCount int

	failCreateUser    bool
	failCreateProfile bool
	failRooms         bool
}

func newMemStore() *memStore {
	return &memStore{
		rooms: make(map[string]*backend.Room),
		parts: make(map[string]map[string]backend.Participation),
		users: make(map[string]backend.User),
	}
}

func (m *memStore) addRoom(id, name string, capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[id] = &backend.Room{ID: id, Name: name, Capacity: capacity}
}

func (m *memStore) addRealUser(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = backend.User{ID: id, DisplayName: name}
}

func (m *memStore) addMessage(roomID, authorID, content string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, backend.Message{
		ID: authorID + content, RoomID: roomID, AuthorID: authorID,
		Content: content, CreatedAt: at,
	})
}

func (m *memStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeCount
}

func (m *memStore) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *memStore) participantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, room := range m.parts {
		n += len(room)
	}
	return n
}

func (m *memStore) Rooms(ctx context.Context) ([]backend.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRooms {
		return nil, errors.New("rooms unavailable")
	}
	out := make([]backend.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		room := *r
		for uid := range m.parts[r.ID] {
			room.ParticipantIDs = append(room.ParticipantIDs, uid)
		}
		out = append(out, room)
	}
	return out, nil
}

func (m *memStore) RecentMessages(ctx context.Context, since time.Time) ([]backend.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []backend.Message
	for _, msg := range m.messages {
		if msg.CreatedAt.Before(since) {
			continue
		}
		u, ok := m.users[msg.AuthorID]
		msg.AuthorSimulated = ok && u.Simulated
		out = append(out, msg)
	}
	return out, nil
}

func (m *memStore) Memberships(ctx context.Context, userID string) ([]backend.Participation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []backend.Participation
	for _, room := range m.parts {
		if p, ok := room[userID]; ok && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) JoinRoom(ctx context.Context, roomID, userID string, joinedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return false, backend.ErrNotFound
	}
	if p, ok := m.parts[roomID][userID]; ok && p.Active {
		return false, nil
	}
	if room.OccupantCount >= room.Capacity {
		return false, nil
	}
	if m.parts[roomID] == nil {
		m.parts[roomID] = make(map[string]backend.Participation)
	}
	m.parts[roomID][userID] = backend.Participation{
		RoomID: roomID, UserID: userID, JoinedAt: joinedAt, Active: true,
	}
	room.OccupantCount++
	m.writeCount++
	return true, nil
}

func (m *memStore) ReplaceRoomParticipants(ctx context.Context, roomID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return backend.ErrNotFound
	}
	m.parts[roomID] = make(map[string]backend.Participation, len(ids))
	for _, uid := range ids {
		m.parts[roomID][uid] = backend.Participation{RoomID: roomID, UserID: uid, Active: true}
	}
	room.OccupantCount = len(ids)
	m.writeCount++
	return nil
}

func (m *memStore) InsertMessage(ctx context.Context, msg backend.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	m.writeCount++
	return nil
}

func (m *memStore) InsertPrayerRequest(ctx context.Context, p backend.PrayerRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prayers = append(m.prayers, p)
	m.writeCount++
	return nil
}

func (m *memStore) UpdateUserLocation(ctx context.Context, userID string, lat, lng float64, lastActive time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return backend.ErrNotFound
	}
	u.Lat, u.Lng, u.LastActive = lat, lng, lastActive
	m.users[userID] = u
	m.writeCount++
	return nil
}

func (m *memStore) CreateUser(ctx context.Context, u backend.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateUser {
		return errors.New("identity tier unavailable")
	}
	u.HasIdentity = true
	m.users[u.ID] = u
	m.writeCount++
	return nil
}

func (m *memStore) CreateProfile(ctx context.Context, u backend.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateProfile {
		return errors.New("profile tier unavailable")
	}
	u.HasIdentity = false
	m.users[u.ID] = u
	m.writeCount++
	return nil
}

func (m *memStore) SampleUsers(ctx context.Context, limit int, excludeSimulated bool) ([]backend.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []backend.User
	for _, u := range m.users {
		if excludeSimulated && u.Simulated {
			continue
		}
		out = append(out, u)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) DeleteSimulatedUsers(ctx context.Context, simulationID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, u := range m.users {
		if u.Simulated && u.SimulationID == simulationID {
			delete(m.users, id)
			n++
		}
	}
	m.writeCount++
	return n, nil
}

// fixedRand is a deterministic Rand: Float64 always returns f, Intn
// always returns 0, Shuffle leaves order unchanged.
type fixedRand struct{ f float64 }

func (r fixedRand) Float64() float64                   { return r.f }
func (r fixedRand) Intn(n int) int                     { return 0 }
func (r fixedRand) Shuffle(n int, swap func(i, j int)) {}
