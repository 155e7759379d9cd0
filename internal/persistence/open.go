package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/suderio/ultramafia/internal/config"
	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/persistence/sqlite"
)

// EventStore is what every backend offers the session manager.
type EventStore interface {
	Append(evt engine.Event) error
	Load() ([]engine.Event, error)
	Close() error
}

var (
	_ EventStore = (*Store)(nil)
	_ EventStore = (*MemoryStore)(nil)
	_ EventStore = (*sqlite.Store)(nil)
)

// Open creates the parent directory of the configured path and opens the backend.
func Open(c config.Store) (EventStore, error) {
	if c.Driver != "memory" {
		if dir := filepath.Dir(c.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	switch c.Driver {
	case "jsonl":
		return NewStore(c.Path)
	case "sqlite":
		return sqlite.Open(c.Path)
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", c.Driver)
}
