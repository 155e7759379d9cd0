package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suderio/ultramafia/internal/engine"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestAppendProjectsSnapshot(t *testing.T) {
	store, _ := openTemp(t)
	at := time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)

	events := []engine.Event{
		&engine.SessionCreatedEvent{SessionID: "s1", Room: "room", Creator: engine.Participant{ID: "a"}, At: at},
		&engine.MemberJoinedEvent{SessionID: "s1", Seat: 1, Participant: engine.Participant{ID: "a", Name: "Ann"}},
		&engine.MemberJoinedEvent{SessionID: "s1", Seat: 2, Participant: engine.Participant{ID: "b", Name: "Bob"}},
		&engine.MemberJoinedEvent{SessionID: "s1", Seat: 3, Participant: engine.Participant{ID: "c", Name: "Cid"}},
		&engine.MemberLeftEvent{SessionID: "s1", Seat: 3},
		&engine.GameStartedEvent{SessionID: "s1", At: at, Roles: map[engine.Seat]engine.Role{1: engine.RoleMafia, 2: engine.RoleCitizen}},
		&engine.MemberKilledEvent{SessionID: "s1", Seat: 2, By: engine.RoleMafia, Round: 1},
		&engine.GameOverEvent{SessionID: "s1", Winner: engine.FactionMafia, Winners: []engine.Seat{1}, At: at.Add(time.Hour)},
	}
	for _, evt := range events {
		require.NoError(t, store.Append(evt))
	}

	sessions, err := store.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	s := sessions[0]
	assert.Equal(t, engine.StateGameOver, s.State)
	assert.Equal(t, engine.FactionMafia, s.Winner)
	assert.True(t, at.Equal(s.StartedAt))
	require.Len(t, s.Members, 2)
	assert.Equal(t, engine.RoleMafia, s.Members[0].Role)
	assert.True(t, s.Members[0].Winner)
	assert.False(t, s.Members[1].Alive)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, len(events))
}

func TestStoppedRegistrationLeavesNoSnapshot(t *testing.T) {
	store, _ := openTemp(t)
	require.NoError(t, store.Append(&engine.SessionCreatedEvent{SessionID: "s1", Room: "r", Creator: engine.Participant{ID: "a"}}))
	require.NoError(t, store.Append(&engine.MemberJoinedEvent{SessionID: "s1", Seat: 1, Participant: engine.Participant{ID: "a"}}))
	require.NoError(t, store.Append(&engine.RegistrationStoppedEvent{SessionID: "s1", By: "a"}))

	sessions, err := store.Sessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestReopenKeepsHistory(t *testing.T) {
	store, path := openTemp(t)
	require.NoError(t, store.Append(&engine.SessionCreatedEvent{SessionID: "s1", Room: "r", Creator: engine.Participant{ID: "a"}}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.Load()
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestExtractUp(t *testing.T) {
	sql := "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (x INT);\n", extractUp(sql))
	assert.Equal(t, "SELECT 1;", extractUp("SELECT 1;"))
}
