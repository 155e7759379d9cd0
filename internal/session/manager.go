package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/suderio/ultramafia/internal/command"
	"github.com/suderio/ultramafia/internal/config"
	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/rules"
	"github.com/suderio/ultramafia/internal/solicit"
)

// ErrNoTransport is returned by Start when the manager cannot reach players.
var ErrNoTransport = errors.New("no solicitor or notifier configured")

// Options wires a Manager. Zero values fall back to production defaults.
type Options struct {
	Game      config.Game
	Timings   config.Timings
	Rules     *rules.Registry
	Solicitor solicit.Solicitor
	Notifier  solicit.Notifier
	Rand      engine.Random
	Now       func() time.Time
	NewID     func() string
	// EventBuffer is the capacity of the lifecycle event channel.
	EventBuffer int
}

// Manager owns every session of the process. Lifecycle commands are queued
// on a channel and handled one at a time by Run; each started game gets its
// own supervised loop.
type Manager struct {
	opts      Options
	journal   *journal
	requests  chan request
	events    chan LifecycleEvent
	recovered []engine.SessionID

	mu     sync.Mutex
	games  map[engine.SessionID]*Game
	wg     sync.WaitGroup
	base   context.Context
	cancel context.CancelFunc
}

// NewManager projects the store and force-finishes sessions a previous
// process left in Playing.
func NewManager(store Store, opts Options) (*Manager, error) {
	if opts.Game.MinPlayers < engine.MinimumPlayers {
		opts.Game.MinPlayers = engine.MinimumPlayers
	}
	if opts.Timings == (config.Timings{}) {
		opts.Timings = config.DefaultTimings()
	}
	opts.Timings = opts.Timings.ForGame(opts.Game)
	if opts.Rand == nil {
		opts.Rand = engine.NewSecureRand()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.Rules == nil {
		reg, err := rules.NewRegistry(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize rules registry: %w", err)
		}
		opts.Rules = reg
	}

	j, err := newJournal(store)
	if err != nil {
		return nil, err
	}

	base, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:     opts,
		journal:  j,
		requests: make(chan request),
		events:   make(chan LifecycleEvent, opts.EventBuffer),
		games:    make(map[engine.SessionID]*Game),
		base:     base,
		cancel:   cancel,
	}
	if err := m.recover(); err != nil {
		cancel()
		return nil, err
	}
	return m, nil
}

func (m *Manager) recover() error {
	events, err := m.journal.Execute(func(state *engine.GameState) ([]engine.Event, error) {
		return command.ExecuteRecover(state, m.opts.Now().UTC()), nil
	})
	if err != nil {
		return fmt.Errorf("failed to recover sessions: %w", err)
	}
	for _, evt := range events {
		id := evt.(engine.SessionEvent).Session()
		m.recovered = append(m.recovered, id)
		snap, _ := m.journal.Snapshot(id)
		log.Warn().Str("session", string(id)).Msg("session was playing when the process stopped, force finished")
		m.emit(LifecycleEvent{Kind: ForceFinished, Session: snap})
	}
	return nil
}

// Recovered lists the sessions force-finished at startup.
func (m *Manager) Recovered() []engine.SessionID {
	return append([]engine.SessionID(nil), m.recovered...)
}

// Events is the outbound lifecycle channel. Events are dropped when nobody
// keeps up with it.
func (m *Manager) Events() <-chan LifecycleEvent {
	return m.events
}

func (m *Manager) emit(evt LifecycleEvent) {
	select {
	case m.events <- evt:
	default:
		log.Warn().Str("kind", string(evt.Kind)).Msg("lifecycle event dropped, channel is full")
	}
}

// Run handles queued commands until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-m.requests:
			s, err := m.handle(req)
			req.reply <- reply{session: s, err: err}
		}
	}
}

// Submit queues cmd and waits for its outcome.
func (m *Manager) Submit(ctx context.Context, cmd Command, room engine.RoomID, who engine.Participant) (*engine.Session, error) {
	req := request{cmd: cmd, room: room, who: who, reply: make(chan reply, 1)}
	select {
	case m.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.session, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Create opens registration in room.
func (m *Manager) Create(ctx context.Context, room engine.RoomID, who engine.Participant) (*engine.Session, error) {
	return m.Submit(ctx, CommandCreate, room, who)
}

// Join seats who in the room's session.
func (m *Manager) Join(ctx context.Context, room engine.RoomID, who engine.Participant) (*engine.Session, error) {
	return m.Submit(ctx, CommandJoin, room, who)
}

// Leave frees a seat held by who.
func (m *Manager) Leave(ctx context.Context, room engine.RoomID, who engine.Participant) (*engine.Session, error) {
	return m.Submit(ctx, CommandLeave, room, who)
}

// Start deals roles and launches the game loop without waiting for it.
func (m *Manager) Start(ctx context.Context, room engine.RoomID, who engine.Participant) (*engine.Session, error) {
	return m.Submit(ctx, CommandStart, room, who)
}

// Stop discards the room's session while it is not being played.
func (m *Manager) Stop(ctx context.Context, room engine.RoomID, who engine.Participant) (*engine.Session, error) {
	return m.Submit(ctx, CommandStop, room, who)
}

func (m *Manager) handle(req request) (*engine.Session, error) {
	if req.cmd == CommandStart && (m.opts.Solicitor == nil || m.opts.Notifier == nil) {
		return nil, ErrNoTransport
	}

	var prior *engine.Session
	events, err := m.journal.Execute(func(state *engine.GameState) ([]engine.Event, error) {
		if s, ok := state.ActiveSession(req.room); ok {
			prior = s.Clone()
		}
		now := m.opts.Now().UTC()
		switch req.cmd {
		case CommandCreate:
			return command.ExecuteCreate(state, req.room, req.who, engine.SessionID(m.opts.NewID()), now)
		case CommandJoin:
			return command.ExecuteJoin(state, req.room, req.who, m.opts.Game.DevelopmentMode)
		case CommandLeave:
			return command.ExecuteLeave(state, req.room, req.who.ID)
		case CommandStart:
			return command.ExecuteStart(state, req.room, m.opts.Game.MinPlayers, m.opts.Rand, now)
		case CommandStop:
			return command.ExecuteStop(state, req.room, req.who.ID)
		}
		return nil, fmt.Errorf("unknown command %q", req.cmd)
	})
	if err != nil {
		log.Debug().Err(err).Str("command", string(req.cmd)).Str("room", string(req.room)).Msg("command rejected")
		return nil, err
	}

	snap := prior
	if len(events) > 0 {
		if se, ok := events[0].(engine.SessionEvent); ok {
			if s, ok := m.journal.Snapshot(se.Session()); ok {
				snap = s
			}
		}
	}
	log.Info().Str("command", string(req.cmd)).Str("room", string(req.room)).
		Str("participant", string(req.who.ID)).Msg(events[len(events)-1].Message())

	if req.cmd == CommandStart {
		m.launch(snap)
	}
	m.emit(LifecycleEvent{Kind: req.cmd.emits(), Session: snap, Participant: req.who})
	return snap, nil
}

func (m *Manager) launch(s *engine.Session) {
	g := newGame(m, s)

	m.mu.Lock()
	m.games[s.ID] = g
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.games, s.ID)
			m.mu.Unlock()
		}()
		_ = g.Run(m.base)
	}()
}

// Running lists the sessions whose game loop is alive.
func (m *Manager) Running() []engine.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]engine.SessionID, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Session returns a snapshot of the room's non-terminal session.
func (m *Manager) Session(room engine.RoomID) (*engine.Session, error) {
	s, ok := m.journal.Active(room)
	if !ok {
		return nil, engine.ErrNoSession
	}
	return s, nil
}

// SessionByID returns a snapshot of any known session.
func (m *Manager) SessionByID(id engine.SessionID) (*engine.Session, bool) {
	return m.journal.Snapshot(id)
}

// Sessions returns snapshots of every known session, oldest first.
func (m *Manager) Sessions() []*engine.Session {
	return m.journal.All()
}

// Wait blocks until every game loop has finished on its own.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels running game loops and waits for them to exit. Their
// sessions stay in Playing and are force-finished by the next NewManager.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
