package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suderio/ultramafia/internal/config"
	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/persistence"
	"github.com/suderio/ultramafia/internal/solicit"
)

// table is a scripted Solicitor: every question is answered at once by the
// configured functions, and every request is recorded. When err is set every
// question fails with it instead.
type table struct {
	err      error
	mu       sync.Mutex
	action   func(solicit.ActionRequest) engine.Action
	lynch    func(solicit.Poll) []engine.Ballot
	approval func(solicit.Poll) []engine.ApprovalBallot
	requests []solicit.ActionRequest
	polls    []solicit.Poll
}

func (t *table) AskForAction(_ context.Context, req solicit.ActionRequest) (engine.Action, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	fn := t.action
	t.mu.Unlock()
	if t.err != nil {
		return engine.NoAction(), t.err
	}
	if fn == nil {
		return engine.NoAction(), nil
	}
	return fn(req), nil
}

func (t *table) AskForPublicVote(_ context.Context, poll solicit.Poll) ([]engine.Ballot, error) {
	t.mu.Lock()
	t.polls = append(t.polls, poll)
	fn := t.lynch
	t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	if fn == nil {
		return nil, nil
	}
	return fn(poll), nil
}

func (t *table) AskForApproval(_ context.Context, poll solicit.Poll) ([]engine.ApprovalBallot, error) {
	t.mu.Lock()
	t.polls = append(t.polls, poll)
	fn := t.approval
	t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	if fn == nil {
		return nil, nil
	}
	return fn(poll), nil
}

func (t *table) AskForFinalWords(context.Context, engine.SessionID, engine.Member) (string, bool, error) {
	return "", false, t.err
}

func (t *table) requestsFor(role engine.Role, round int) []solicit.ActionRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []solicit.ActionRequest
	for _, r := range t.requests {
		if r.Actor.Role == role && r.Round == round {
			out = append(out, r)
		}
	}
	return out
}

func (t *table) pollsOf(kind solicit.PollKind) []solicit.Poll {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []solicit.Poll
	for _, p := range t.polls {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// recorder is a Notifier keeping every message.
type recorder struct {
	mu      sync.Mutex
	room    []string
	members map[engine.ParticipantID][]string
}

func newRecorder() *recorder {
	return &recorder{members: make(map[engine.ParticipantID][]string)}
}

func (r *recorder) NotifyMember(_ context.Context, to engine.Participant, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[to.ID] = append(r.members[to.ID], text)
	return nil
}

func (r *recorder) NotifyRoom(_ context.Context, _ engine.RoomID, text string, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room = append(r.room, text)
	return nil
}

func (r *recorder) roomSaid(fragment string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, text := range r.room {
		if strings.Contains(text, fragment) {
			return true
		}
	}
	return false
}

func (r *recorder) told(id engine.ParticipantID, fragment string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, text := range r.members[id] {
		if strings.Contains(text, fragment) {
			return true
		}
	}
	return false
}

// mute is a Notifier whose every delivery fails.
type mute struct{}

func (mute) NotifyMember(context.Context, engine.Participant, string) error {
	return errors.New("bot was blocked by the user")
}

func (mute) NotifyRoom(context.Context, engine.RoomID, string, bool) error {
	return errors.New("chat not found")
}

// flakyStore fails to persist kills of one session.
type flakyStore struct {
	*persistence.MemoryStore
	mu     sync.Mutex
	broken engine.SessionID
}

func (f *flakyStore) breakSession(id engine.SessionID) {
	f.mu.Lock()
	f.broken = id
	f.mu.Unlock()
}

func (f *flakyStore) Append(evt engine.Event) error {
	if kill, ok := evt.(*engine.MemberKilledEvent); ok {
		f.mu.Lock()
		broken := f.broken
		f.mu.Unlock()
		if kill.SessionID == broken {
			return errors.New("disk full")
		}
	}
	return f.MemoryStore.Append(evt)
}

func player(id string) engine.Participant {
	return engine.Participant{ID: engine.ParticipantID(id), Name: id}
}

// newManager runs a manager with fast timings until the test ends.
func newManager(t *testing.T, store Store, opts Options) *Manager {
	t.Helper()
	if opts.Timings == (config.Timings{}) {
		opts.Timings = config.FastTimings()
	}
	if opts.Rand == nil {
		opts.Rand = engine.NewRand(42)
	}
	m, err := NewManager(store, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		sctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		assert.NoError(t, m.Shutdown(sctx))
	})
	return m
}

// seatTable creates a session in room, seats n players and starts it.
func seatTable(t *testing.T, m *Manager, room engine.RoomID, n int) *engine.Session {
	t.Helper()
	ctx := context.Background()
	_, err := m.Create(ctx, room, player("host"))
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		_, err := m.Join(ctx, room, player(fmt.Sprintf("p%d", i)))
		require.NoError(t, err)
	}
	s, err := m.Start(ctx, room, player("host"))
	require.NoError(t, err)
	return s
}

func withRole(members []engine.Member, role engine.Role) []engine.Member {
	var out []engine.Member
	for _, m := range members {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

func nextEvent(t *testing.T, m *Manager, kind EventKind) LifecycleEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt := <-m.Events():
			if evt.Kind == kind {
				return evt
			}
		case <-timeout:
			t.Fatalf("no %s event", kind)
			return LifecycleEvent{}
		}
	}
}
