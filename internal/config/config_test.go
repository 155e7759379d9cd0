package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Game.MinPlayers)
	assert.Equal(t, 40*time.Second, c.Timings.ActionTimeout)
	assert.Equal(t, 5*time.Second, c.Timings.PollInterval)
	assert.Equal(t, 90*time.Second, c.Timings.Discussion)
	assert.Equal(t, "jsonl", c.Store.Driver)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ultramafia.yaml")
	content := `
game:
  min_players: 2
  development_mode: true
timings:
  action_timeout: 15s
  discussion: 1m
store:
  driver: SQLite
  path: games.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Game.MinPlayers, "minimum is clamped")
	assert.True(t, c.Game.DevelopmentMode)
	assert.Equal(t, 15*time.Second, c.Timings.ActionTimeout)
	assert.Equal(t, "sqlite", c.Store.Driver)
	assert.Equal(t, 2*time.Second, c.Timings.ForGame(c.Game).Discussion)
	assert.Equal(t, time.Minute, c.Timings.ForGame(Game{}).Discussion)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Store.Driver = "mongo"
	assert.Error(t, c.Validate())

	c = Default()
	c.Timings.PollInterval = 0
	assert.Error(t, c.Validate())

	c = Default()
	c.Store = Store{Driver: "memory"}
	assert.NoError(t, c.Validate())
}
