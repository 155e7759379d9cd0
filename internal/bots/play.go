package bots

import (
	"context"
	"fmt"
	"time"

	"github.com/suderio/ultramafia/internal/config"
	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/persistence"
	"github.com/suderio/ultramafia/internal/rules"
	"github.com/suderio/ultramafia/internal/session"
	"github.com/suderio/ultramafia/internal/solicit"
)

// Game configures one automated game.
type Game struct {
	Players int
	Seed    int64
	Game    config.Game
	Timings config.Timings
	Rules   *rules.Registry
	Bots    Options
}

// Play seats Players bots in a fresh in-memory manager and runs one game to
// its end. It returns the finished session.
func Play(ctx context.Context, g Game) (*engine.Session, error) {
	if g.Timings == (config.Timings{}) {
		g.Timings = config.FastTimings()
	}
	table := New(engine.NewRand(g.Seed), g.Bots)
	broker := solicit.NewBroker(table, g.Timings)
	table.Bind(broker)

	m, err := session.NewManager(persistence.NewMemoryStore(), session.Options{
		Game:      g.Game,
		Timings:   g.Timings,
		Rules:     g.Rules,
		Solicitor: broker,
		Notifier:  table,
		Rand:      engine.NewRand(g.Seed + 1),
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = m.Run(runCtx) }()
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case <-m.Events():
			}
		}
	}()
	defer func() {
		sctx, done := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer done()
		_ = m.Shutdown(sctx)
		table.Wait()
	}()

	room := engine.RoomID(fmt.Sprintf("simulation-%d", g.Seed))
	host := bot(1)
	if _, err := m.Create(ctx, room, host); err != nil {
		return nil, err
	}
	for i := 1; i <= g.Players; i++ {
		if _, err := m.Join(ctx, room, bot(i)); err != nil {
			return nil, err
		}
	}
	s, err := m.Start(ctx, room, host)
	if err != nil {
		return nil, err
	}

	finished := make(chan struct{})
	go func() {
		m.Wait()
		close(finished)
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-finished:
	}

	final, ok := m.SessionByID(s.ID)
	if !ok || !final.State.Terminal() {
		return nil, fmt.Errorf("game %s did not finish", s.ID)
	}
	return final, nil
}

func bot(n int) engine.Participant {
	return engine.Participant{
		ID:   engine.ParticipantID(fmt.Sprintf("bot-%d", n)),
		Name: fmt.Sprintf("Bot %d", n),
	}
}
