// Package backend provides the data store the simulator reads and writes:
// users, rooms, participation, messages, and prayer requests.
// The simulator treats it as an opaque collaborator; SQLite is the
// reference implementation.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("backend: not found")

// User is a profile row. Simulated users are indistinguishable from real
// ones at the data layer apart from the Simulated flag.
type User struct {
	ID           string    `db:"id" json:"id"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	Email        string    `db:"email" json:"email"`
	Lat          float64   `db:"lat" json:"lat"`
	Lng          float64   `db:"lng" json:"lng"`
	CareScore    int       `db:"care_score" json:"care_score"`
	Simulated    bool      `db:"simulated" json:"simulated"`
	SimulationID string    `db:"simulation_id" json:"simulation_id,omitempty"`
	HasIdentity  bool      `db:"has_identity" json:"has_identity"`
	LastActive   time.Time `db:"last_active" json:"last_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Room is a shared chat room with a bounded capacity.
type Room struct {
	ID             string   `db:"id" json:"id"`
	Name           string   `db:"name" json:"name"`
	Capacity       int      `db:"capacity" json:"capacity"`
	OccupantCount  int      `db:"occupant_count" json:"occupant_count"`
	ParticipantIDs []string `db:"-" json:"participant_ids"`
}

// HasVacancy reports whether the room can accept another participant.
func (r Room) HasVacancy() bool {
	return r.OccupantCount < r.Capacity
}

// Participation is an active membership of a user in a room.
type Participation struct {
	RoomID   string    `db:"room_id" json:"room_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
	Active   bool      `db:"active" json:"active"`
}

// Message is a chat message posted to a room.
type Message struct {
	ID              string    `db:"id" json:"id"`
	RoomID          string    `db:"room_id" json:"room_id"`
	AuthorID        string    `db:"author_id" json:"author_id"`
	Content         string    `db:"content" json:"content"`
	Type            string    `db:"type" json:"type"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	AuthorSimulated bool      `db:"author_simulated" json:"author_simulated"`
}

// PrayerRequest is a pending request from one user to another.
type PrayerRequest struct {
	ID         string    `db:"id" json:"id"`
	FromUserID string    `db:"from_user_id" json:"from_user_id"`
	ToUserID   string    `db:"to_user_id" json:"to_user_id"`
	Text       string    `db:"text" json:"text"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Notifier receives a callback after every successful message insert.
// Used to fan messages out to the realtime channel.
type Notifier interface {
	MessageInserted(Message)
}

// Store is the backend contract the simulator depends on.
//
// JoinRoom is the single authoritative membership write: one transaction
// that checks capacity, upserts the participation row, and bumps the
// occupant count. It returns false without error when the agent is
// already an active member or the room is full.
type Store interface {
	Rooms(ctx context.Context) ([]Room, error)
	RecentMessages(ctx context.Context, since time.Time) ([]Message, error)
	Memberships(ctx context.Context, userID string) ([]Participation, error)

	JoinRoom(ctx context.Context, roomID, userID string, joinedAt time.Time) (bool, error)
	ReplaceRoomParticipants(ctx context.Context, roomID string, participantIDs []string) error
	InsertMessage(ctx context.Context, m Message) error
	InsertPrayerRequest(ctx context.Context, p PrayerRequest) error
	UpdateUserLocation(ctx context.Context, userID string, lat, lng float64, lastActive time.Time) error

	CreateUser(ctx context.Context, u User) error
	CreateProfile(ctx context.Context, u User) error
	SampleUsers(ctx context.Context, limit int, excludeSimulated bool) ([]User, error)
	DeleteSimulatedUsers(ctx context.Context, simulationID string) (int64, error)
}
