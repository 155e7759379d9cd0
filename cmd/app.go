package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/suderio/ultramafia/internal/config"
	"github.com/suderio/ultramafia/internal/persistence"
	"github.com/suderio/ultramafia/internal/rules"
	"github.com/suderio/ultramafia/internal/session"
	"github.com/suderio/ultramafia/internal/solicit"
)

func loadRules(cfg *config.Config) (*rules.Registry, error) {
	manifest := rules.DefaultManifest()
	if cfg.Rules.File != "" {
		m, err := rules.LoadManifest(cfg.Rules.File)
		if err != nil {
			return nil, err
		}
		manifest = m
	}
	return rules.NewRegistry(manifest)
}

// openManager opens the configured store and builds a manager on top of it.
// The returned close function releases the store.
func openManager(cfg *config.Config, solicitor solicit.Solicitor, notifier solicit.Notifier) (*session.Manager, func(), error) {
	reg, err := loadRules(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := persistence.Open(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	m, err := session.NewManager(store, session.Options{
		Game:      cfg.Game,
		Timings:   cfg.Timings,
		Rules:     reg,
		Solicitor: solicitor,
		Notifier:  notifier,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	for _, id := range m.Recovered() {
		log.Warn().Str("session", string(id)).Msg("force finished a game interrupted by a restart")
	}
	return m, func() { _ = store.Close() }, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func shutdown(m *session.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("game loops did not stop in time")
	}
}

// logLifecycle drains lifecycle events for transports that do not render them.
func logLifecycle(ctx context.Context, m *session.Manager) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-m.Events():
			if evt.Session == nil {
				continue
			}
			log.Info().
				Str("event", string(evt.Kind)).
				Str("session", string(evt.Session.ID)).
				Str("room", string(evt.Session.Room)).
				Str("participant", string(evt.Participant.ID)).
				Msg("lifecycle")
		}
	}
}
