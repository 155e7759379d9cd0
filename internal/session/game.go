package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/suderio/ultramafia/internal/config"
	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/rules"
	"github.com/suderio/ultramafia/internal/solicit"
)

// Game is the loop of one playing session. It alternates nights and days
// until the rules declare a winner.
type Game struct {
	id      engine.SessionID
	room    engine.RoomID
	journal *journal
	ask     solicit.Solicitor
	notify  solicit.Notifier
	rules   *rules.Registry
	timings config.Timings
	rng     engine.Random
	now     func() time.Time
	newID   func() string
	emit    func(LifecycleEvent)
	log     zerolog.Logger

	round      int
	started    time.Time
	selfHealed map[engine.Seat]bool
	followups  sync.WaitGroup
}

func newGame(m *Manager, s *engine.Session) *Game {
	return &Game{
		id:         s.ID,
		room:       s.Room,
		journal:    m.journal,
		ask:        m.opts.Solicitor,
		notify:     m.opts.Notifier,
		rules:      m.opts.Rules,
		timings:    m.opts.Timings,
		rng:        m.opts.Rand,
		now:        m.opts.Now,
		newID:      m.opts.NewID,
		emit:       m.emit,
		log:        log.With().Str("session", string(s.ID)).Str("room", string(s.Room)).Logger(),
		selfHealed: make(map[engine.Seat]bool),
	}
}

// Run plays until a faction wins, ctx is cancelled, or an internal fault
// occurs. Faults end this session's loop only.
func (g *Game) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			g.log.Info().Int("round", g.round).Msg("game loop cancelled")
		default:
			g.log.Error().Err(err).Bool("fatal_for_session", true).Int("round", g.round).Msg("game loop aborted")
		}
		g.followups.Wait()
		if r, ok := g.ask.(solicit.Releaser); ok {
			r.Release(g.id)
		}
	}()

	g.started = g.now()
	if err := g.introduce(ctx); err != nil {
		return err
	}
	for g.round = 1; ; g.round++ {
		if err := g.night(ctx); err != nil {
			return err
		}
		if over, err := g.checkWin(ctx); over || err != nil {
			return err
		}
		if err := g.day(ctx); err != nil {
			return err
		}
		if over, err := g.checkWin(ctx); over || err != nil {
			return err
		}
	}
}

func (g *Game) session() (*engine.Session, error) {
	s, ok := g.journal.Snapshot(g.id)
	if !ok {
		return nil, fmt.Errorf("session %s disappeared", g.id)
	}
	return s, nil
}

func (g *Game) introduce(ctx context.Context) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	g.say(ctx, startText(s), false)

	mafia := s.AliveWithRole(engine.RoleMafia)
	for _, m := range s.Members {
		var partners []*engine.Member
		if m.Role.IsMafia() {
			partners = mafia
		}
		g.tell(ctx, m, introText(m, partners))
	}
	return ctx.Err()
}

// checkWin ends the game when the rules name a winner.
func (g *Game) checkWin(ctx context.Context) (bool, error) {
	s, err := g.session()
	if err != nil {
		return false, err
	}
	winner, err := g.rules.Winner(s, g.round)
	if err != nil {
		return false, err
	}
	if winner == engine.FactionNone {
		return false, nil
	}

	if err := g.journal.ApplyAndAppend(&engine.GameOverEvent{
		SessionID: g.id,
		Winner:    winner,
		Winners:   rules.Winners(s, winner),
		At:        g.now().UTC(),
	}); err != nil {
		return false, err
	}
	final, err := g.session()
	if err != nil {
		return false, err
	}
	g.log.Info().Str("winner", string(winner)).Int("round", g.round).Msg("game over")
	g.say(ctx, summaryText(final, g.now().Sub(g.started)), true)
	g.emit(LifecycleEvent{Kind: GameOver, Session: final})
	return true, nil
}

// kill marks victim dead, announces it and asks for final words in the background.
func (g *Game) kill(ctx context.Context, victim *engine.Member, by engine.Role) error {
	if err := g.journal.ApplyAndAppend(&engine.MemberKilledEvent{
		SessionID: g.id,
		Seat:      victim.Seat,
		By:        by,
		Round:     g.round,
	}); err != nil {
		return err
	}
	g.say(ctx, killedText(victim), false)
	g.lastWords(ctx, *victim)
	return nil
}

func (g *Game) lastWords(ctx context.Context, victim engine.Member) {
	g.followups.Add(1)
	go func() {
		defer g.followups.Done()
		defer func() {
			if r := recover(); r != nil {
				g.log.Warn().Interface("panic", r).Msg("final words failed")
			}
		}()
		text, ok, err := g.ask.AskForFinalWords(ctx, g.id, victim)
		if err != nil {
			g.log.Warn().Err(err).Int("seat", int(victim.Seat)).Msg("final words not collected")
			return
		}
		if ok {
			g.say(ctx, lastWordsText(victim, text), false)
		}
	}()
}

// record appends a resolved action to the session log. Losing an entry is not fatal.
func (g *Game) record(actor engine.Role, action engine.Action, successful bool) {
	target, ok := action.Target()
	if !ok {
		return
	}
	err := g.journal.ApplyAndAppend(&engine.ActionResolvedEvent{
		SessionID: g.id,
		Entry: engine.LogEntry{
			Round:      g.round,
			At:         g.now().UTC(),
			Actor:      actor,
			Kind:       action.Kind(),
			Target:     target,
			Successful: successful,
		},
	})
	if err != nil {
		g.log.Warn().Err(err).Msg("action log entry lost")
	}
}

func (g *Game) say(ctx context.Context, text string, important bool) {
	if err := g.notify.NotifyRoom(ctx, g.room, text, important); err != nil {
		g.log.Warn().Err(err).Msg("room notification failed")
	}
}

func (g *Game) tell(ctx context.Context, m *engine.Member, text string) {
	if err := g.notify.NotifyMember(ctx, m.Participant, text); err != nil {
		g.log.Warn().Err(err).Int("seat", int(m.Seat)).Msg("member notification failed")
	}
}

func (g *Game) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
