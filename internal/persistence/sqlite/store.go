// Package sqlite stores the event log in SQLite and keeps one snapshot row
// per session and per member up to date in the same transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/suderio/ultramafia/internal/engine"
)

// Store provides a SQLite-backed event store.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrationsFS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records evt and updates the snapshot tables atomically.
func (s *Store) Append(evt engine.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	var sessionID engine.SessionID
	if se, ok := evt.(engine.SessionEvent); ok {
		sessionID = se.Session()
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (session_id, type, data, recorded_at) VALUES (?, ?, ?, ?)`,
		string(sessionID), string(evt.Type()), string(data), time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert event: %w", err)
	}
	if err := project(ctx, tx, evt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("project %s: %w", evt.Type(), err)
	}
	return tx.Commit()
}

// Load returns every event in append order.
func (s *Store) Load() ([]engine.Event, error) {
	rows, err := s.db.Query(`SELECT type, data FROM events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []engine.Event
	for rows.Next() {
		var typ, data string
		if err := rows.Scan(&typ, &data); err != nil {
			return nil, err
		}
		evt, err := engine.DecodeEvent(engine.EventType(typ), []byte(data))
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func project(ctx context.Context, tx *sql.Tx, evt engine.Event) error {
	var err error
	switch e := evt.(type) {
	case *engine.SessionCreatedEvent:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sessions (id, room, state, created_by, created_at) VALUES (?, ?, ?, ?, ?)`,
			string(e.SessionID), string(e.Room), string(engine.StateRegistration), string(e.Creator.ID), millis(e.At))
	case *engine.MemberJoinedEvent:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO members (session_id, seat, participant_id, name) VALUES (?, ?, ?, ?)`,
			string(e.SessionID), int(e.Seat), string(e.Participant.ID), e.Participant.Name)
	case *engine.MemberLeftEvent:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM members WHERE session_id = ? AND seat = ?`, string(e.SessionID), int(e.Seat))
	case *engine.RegistrationStoppedEvent:
		if _, err = tx.ExecContext(ctx, `DELETE FROM members WHERE session_id = ?`, string(e.SessionID)); err == nil {
			_, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, string(e.SessionID))
		}
	case *engine.GameStartedEvent:
		for seat, role := range e.Roles {
			if _, err = tx.ExecContext(ctx,
				`UPDATE members SET role = ? WHERE session_id = ? AND seat = ?`,
				role.String(), string(e.SessionID), int(seat)); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `UPDATE sessions SET state = ?, started_at = ? WHERE id = ?`,
			string(engine.StatePlaying), millis(e.At), string(e.SessionID))
	case *engine.MemberKilledEvent:
		_, err = tx.ExecContext(ctx,
			`UPDATE members SET alive = 0 WHERE session_id = ? AND seat = ?`, string(e.SessionID), int(e.Seat))
	case *engine.GameOverEvent:
		for _, seat := range e.Winners {
			if _, err = tx.ExecContext(ctx,
				`UPDATE members SET winner = 1 WHERE session_id = ? AND seat = ?`,
				string(e.SessionID), int(seat)); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `UPDATE sessions SET state = ?, finished_at = ?, winner = ? WHERE id = ?`,
			string(engine.StateGameOver), millis(e.At), string(e.Winner), string(e.SessionID))
	case *engine.SessionForceFinishedEvent:
		_, err = tx.ExecContext(ctx, `UPDATE sessions SET state = ?, finished_at = ? WHERE id = ?`,
			string(engine.StateForceFinished), millis(e.At), string(e.SessionID))
	}
	return err
}

// Sessions reads the snapshot tables, newest first.
func (s *Store) Sessions(ctx context.Context) ([]*engine.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room, state, created_by, created_at, started_at, finished_at, winner
		   FROM sessions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*engine.Session
	byID := make(map[engine.SessionID]*engine.Session)
	for rows.Next() {
		var (
			sess              engine.Session
			id, room, state   string
			by, winner        string
			created           int64
			started, finished sql.NullInt64
		)
		if err := rows.Scan(&id, &room, &state, &by, &created, &started, &finished, &winner); err != nil {
			return nil, err
		}
		sess.ID = engine.SessionID(id)
		sess.Room = engine.RoomID(room)
		sess.State = engine.State(state)
		sess.CreatedBy = engine.ParticipantID(by)
		sess.CreatedAt = fromMillis(created)
		if started.Valid {
			sess.StartedAt = fromMillis(started.Int64)
		}
		if finished.Valid {
			sess.FinishedAt = fromMillis(finished.Int64)
		}
		sess.Winner = engine.Faction(winner)
		sessions = append(sessions, &sess)
		byID[sess.ID] = &sess
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mrows, err := s.db.QueryContext(ctx,
		`SELECT session_id, seat, participant_id, name, role, alive, winner FROM members ORDER BY session_id, seat`)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var (
			sessionID, pid, name, role string
			seat                       int
			alive, won                 bool
		)
		if err := mrows.Scan(&sessionID, &seat, &pid, &name, &role, &alive, &won); err != nil {
			return nil, err
		}
		sess, ok := byID[engine.SessionID(sessionID)]
		if !ok {
			continue
		}
		r, err := engine.ParseRole(role)
		if err != nil {
			return nil, err
		}
		sess.Members = append(sess.Members, &engine.Member{
			Seat:        engine.Seat(seat),
			Participant: engine.Participant{ID: engine.ParticipantID(pid), Name: name},
			Role:        r,
			Alive:       alive,
			Winner:      won,
		})
	}
	return sessions, mrows.Err()
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().UTC().UnixMilli()
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
