package backend

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLite implements Store on a single SQLite database file.
type SQLite struct {
	conn     *sqlx.DB
	notifier Notifier
}

// OpenSQLite opens or creates the database at path and runs migrations.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// The modernc driver serializes writes; a single writer connection
	// avoids SQLITE_BUSY under concurrent ticks.
	conn.SetMaxOpenConns(1)

	db := &SQLite{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

// SetNotifier registers a notifier invoked after each message insert.
func (db *SQLite) SetNotifier(n Notifier) {
	db.notifier = n
}

func (db *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL DEFAULT 0,
		lng REAL NOT NULL DEFAULT 0,
		care_score INTEGER NOT NULL DEFAULT 0,
		simulated INTEGER NOT NULL DEFAULT 0,
		simulation_id TEXT NOT NULL DEFAULT '',
		has_identity INTEGER NOT NULL DEFAULT 0,
		last_active TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
		ON users(email) WHERE has_identity = 1;

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		capacity INTEGER NOT NULL,
		occupant_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS room_participants (
		room_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		joined_at TIMESTAMP NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (room_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		content TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'text',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS prayer_requests (
		id TEXT PRIMARY KEY,
		from_user_id TEXT NOT NULL,
		to_user_id TEXT NOT NULL,
		text TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id);
	CREATE INDEX IF NOT EXISTS idx_participants_user ON room_participants(user_id);
	CREATE INDEX IF NOT EXISTS idx_users_simulated ON users(simulated);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Rooms returns all rooms with their participant id lists.
func (db *SQLite) Rooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	err := db.conn.SelectContext(ctx, &rooms,
		"SELECT id, name, capacity, occupant_count FROM rooms ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("select rooms: %w", err)
	}

	var parts []Participation
	err = db.conn.SelectContext(ctx, &parts,
		"SELECT room_id, user_id, joined_at, active FROM room_participants WHERE active = 1")
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}

	byRoom := make(map[string][]string, len(rooms))
	for _, p := range parts {
		byRoom[p.RoomID] = append(byRoom[p.RoomID], p.UserID)
	}
	for i := range rooms {
		rooms[i].ParticipantIDs = byRoom[rooms[i].ID]
	}
	return rooms, nil
}

// RecentMessages returns messages created at or after since, newest first,
// joined against users so callers can filter simulated authors.
func (db *SQLite) RecentMessages(ctx context.Context, since time.Time) ([]Message, error) {
	var msgs []Message
	err := db.conn.SelectContext(ctx, &msgs, `
		SELECT m.id, m.room_id, m.author_id, m.content, m.type, m.created_at,
		       COALESCE(u.simulated, 0) AS author_simulated
		FROM messages m
		LEFT JOIN users u ON u.id = m.author_id
		WHERE m.created_at >= ?
		ORDER BY m.created_at DESC
		LIMIT 200`, since)
	if err != nil {
		return nil, fmt.Errorf("select recent messages: %w", err)
	}
	return msgs, nil
}

// Memberships returns the user's active room participations.
func (db *SQLite) Memberships(ctx context.Context, userID string) ([]Participation, error) {
	var parts []Participation
	err := db.conn.SelectContext(ctx, &parts,
		"SELECT room_id, user_id, joined_at, active FROM room_participants WHERE user_id = ? AND active = 1",
		userID)
	if err != nil {
		return nil, fmt.Errorf("select memberships: %w", err)
	}
	return parts, nil
}

// JoinRoom adds the user to the room in one transaction. The capacity
// check and the occupant-count bump happen under the same transaction, so
// a room never exceeds capacity and a double join never double-counts.
func (db *SQLite) JoinRoom(ctx context.Context, roomID, userID string, joinedAt time.Time) (bool, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var active int
	err = tx.GetContext(ctx, &active,
		"SELECT active FROM room_participants WHERE room_id = ? AND user_id = ?", roomID, userID)
	switch {
	case err == nil && active == 1:
		return false, nil // already a member
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("check participation: %w", err)
	}

	var room struct {
		Capacity      int `db:"capacity"`
		OccupantCount int `db:"occupant_count"`
	}
	err = tx.GetContext(ctx, &room,
		"SELECT capacity, occupant_count FROM rooms WHERE id = ?", roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("check room: %w", err)
	}
	if room.OccupantCount >= room.Capacity {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO room_participants (room_id, user_id, joined_at, active)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(room_id, user_id) DO UPDATE SET active = 1, joined_at = excluded.joined_at`,
		roomID, userID, joinedAt)
	if err != nil {
		return false, fmt.Errorf("upsert participation: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE rooms SET occupant_count = occupant_count + 1 WHERE id = ?", roomID)
	if err != nil {
		return false, fmt.Errorf("bump occupants: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ReplaceRoomParticipants resets a room's membership wholesale. Admin
// tooling only; the join path never uses it.
func (db *SQLite) ReplaceRoomParticipants(ctx context.Context, roomID string, participantIDs []string) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM room_participants WHERE room_id = ?", roomID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	now := time.Now().UTC()
	for _, uid := range participantIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO room_participants (room_id, user_id, joined_at, active)
			VALUES (?, ?, ?, 1)`, roomID, uid, now); err != nil {
			return fmt.Errorf("insert participant %s: %w", uid, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE rooms SET occupant_count = ? WHERE id = ?", len(participantIDs), roomID); err != nil {
		return fmt.Errorf("set occupants: %w", err)
	}
	return tx.Commit()
}

// InsertMessage stores a message. IDs are ULIDs so messages sort by
// creation time lexically.
func (db *SQLite) InsertMessage(ctx context.Context, m Message) error {
	if m.ID == "" {
		m.ID = ulid.MustNew(ulid.Timestamp(m.CreatedAt), rand.Reader).String()
	}
	if m.Type == "" {
		m.Type = "text"
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, author_id, content, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.RoomID, m.AuthorID, m.Content, m.Type, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if db.notifier != nil {
		db.notifier.MessageInserted(m)
	}
	return nil
}

// InsertPrayerRequest stores a pending prayer request.
func (db *SQLite) InsertPrayerRequest(ctx context.Context, p PrayerRequest) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	if p.Status == "" {
		p.Status = "pending"
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO prayer_requests (id, from_user_id, to_user_id, text, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.FromUserID, p.ToUserID, p.Text, p.Status, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert prayer request: %w", err)
	}
	return nil
}

// UpdateUserLocation moves a user and refreshes their last-active time.
func (db *SQLite) UpdateUserLocation(ctx context.Context, userID string, lat, lng float64, lastActive time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE users SET lat = ?, lng = ?, last_active = ? WHERE id = ?",
		lat, lng, lastActive, userID)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateUser inserts a fully identified user. Requires a non-empty email
// and enforces email uniqueness among identified users.
func (db *SQLite) CreateUser(ctx context.Context, u User) error {
	if u.Email == "" {
		return errors.New("create user: email required")
	}
	u.HasIdentity = true
	return db.insertUser(ctx, u)
}

// CreateProfile inserts a profile-only row (the fallback registration
// tier). No identity, no email uniqueness.
func (db *SQLite) CreateProfile(ctx context.Context, u User) error {
	u.HasIdentity = false
	return db.insertUser(ctx, u)
}

func (db *SQLite) insertUser(ctx context.Context, u User) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, lat, lng, care_score,
		                   simulated, simulation_id, has_identity, last_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.DisplayName, u.Email, u.Lat, u.Lng, u.CareScore,
		u.Simulated, u.SimulationID, u.HasIdentity, u.LastActive, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.ID, err)
	}
	return nil
}

// SampleUsers returns up to limit users, optionally excluding simulated
// ones. Order is randomized so repeated samples vary.
func (db *SQLite) SampleUsers(ctx context.Context, limit int, excludeSimulated bool) ([]User, error) {
	q := `SELECT id, display_name, email, lat, lng, care_score, simulated,
	             simulation_id, has_identity, last_active, created_at
	      FROM users`
	if excludeSimulated {
		q += " WHERE simulated = 0"
	}
	q += " ORDER BY RANDOM() LIMIT ?"

	var users []User
	if err := db.conn.SelectContext(ctx, &users, q, limit); err != nil {
		return nil, fmt.Errorf("sample users: %w", err)
	}
	return users, nil
}

// DeleteSimulatedUsers removes simulated user rows for a simulation.
// Operator cleanup only; stop() deliberately leaves rows behind.
func (db *SQLite) DeleteSimulatedUsers(ctx context.Context, simulationID string) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM users WHERE simulated = 1 AND simulation_id = ?", simulationID)
	if err != nil {
		return 0, fmt.Errorf("delete simulated users: %w", err)
	}
	return res.RowsAffected()
}

// CreateRoom inserts a room. Used by the seed command.
func (db *SQLite) CreateRoom(ctx context.Context, r Room) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO rooms (id, name, capacity, occupant_count) VALUES (?, ?, ?, ?)",
		r.ID, r.Name, r.Capacity, r.OccupantCount)
	if err != nil {
		return fmt.Errorf("insert room %s: %w", r.ID, err)
	}
	return nil
}

// PrayerRequests returns stored prayer requests, newest first. Test and
// observability helper.
func (db *SQLite) PrayerRequests(ctx context.Context) ([]PrayerRequest, error) {
	var reqs []PrayerRequest
	err := db.conn.SelectContext(ctx, &reqs, `
		SELECT id, from_user_id, to_user_id, text, status, created_at
		FROM prayer_requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select prayer requests: %w", err)
	}
	return reqs, nil
}

func newULID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
