// Package config decodes the viper configuration into typed settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Game holds table rules.
type Game struct {
	MinPlayers int `mapstructure:"min_players"`
	// DevelopmentMode lets one participant take several seats and shortens discussions.
	DevelopmentMode bool `mapstructure:"development_mode"`
}

// Timings bounds every wait of a running game.
type Timings struct {
	ActionTimeout       time.Duration `mapstructure:"action_timeout"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	Discussion          time.Duration `mapstructure:"discussion"`
	LynchVote           time.Duration `mapstructure:"lynch_vote"`
	ApprovalVote        time.Duration `mapstructure:"approval_vote"`
	VotePollInterval    time.Duration `mapstructure:"vote_poll_interval"`
	FinalWords          time.Duration `mapstructure:"final_words"`
	FinalWordsPoll      time.Duration `mapstructure:"final_words_poll"`
	Pause               time.Duration `mapstructure:"pause"`
	NightIntro          time.Duration `mapstructure:"night_intro"`
	RegistrationRefresh time.Duration `mapstructure:"registration_refresh"`
}

type Store struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type Rules struct {
	File string `mapstructure:"file"`
}

type Telegram struct {
	Token        string  `mapstructure:"token"`
	APIBase      string  `mapstructure:"api_base"`
	Rate         float64 `mapstructure:"rate"`
	LastUpdateID int     `mapstructure:"last_update_id"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full application configuration.
type Config struct {
	Game     Game     `mapstructure:"game"`
	Timings  Timings  `mapstructure:"timings"`
	Store    Store    `mapstructure:"store"`
	Rules    Rules    `mapstructure:"rules"`
	Telegram Telegram `mapstructure:"telegram"`
	HTTP     HTTP     `mapstructure:"http"`
	Log      Log      `mapstructure:"log"`
}

// DefaultTimings mirror the pacing of a human game.
func DefaultTimings() Timings {
	return Timings{
		ActionTimeout:       40 * time.Second,
		PollInterval:        5 * time.Second,
		Discussion:          90 * time.Second,
		LynchVote:           60 * time.Second,
		ApprovalVote:        30 * time.Second,
		VotePollInterval:    10 * time.Second,
		FinalWords:          36 * time.Second,
		FinalWordsPoll:      3 * time.Second,
		Pause:               2 * time.Second,
		NightIntro:          5 * time.Second,
		RegistrationRefresh: 90 * time.Second,
	}
}

// FastTimings are used by simulations and tests.
func FastTimings() Timings {
	return Timings{
		ActionTimeout:       200 * time.Millisecond,
		PollInterval:        5 * time.Millisecond,
		Discussion:          time.Millisecond,
		LynchVote:           200 * time.Millisecond,
		ApprovalVote:        200 * time.Millisecond,
		VotePollInterval:    5 * time.Millisecond,
		FinalWords:          20 * time.Millisecond,
		FinalWordsPoll:      5 * time.Millisecond,
		Pause:               0,
		NightIntro:          0,
		RegistrationRefresh: time.Second,
	}
}

// ForGame applies development mode shortcuts.
func (t Timings) ForGame(g Game) Timings {
	if g.DevelopmentMode && t.Discussion > 2*time.Second {
		t.Discussion = 2 * time.Second
	}
	return t
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Game:     Game{MinPlayers: 4},
		Timings:  DefaultTimings(),
		Store:    Store{Driver: "jsonl", Path: "ultramafia.jsonl"},
		Telegram: Telegram{APIBase: "https://api.telegram.org", Rate: 2},
		HTTP:     HTTP{Addr: ":8080"},
		Log:      Log{Level: "info", Format: "console"},
	}
}

// SetDefaults registers Default() with v so every key can be overridden by file, env or flag.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("game.min_players", d.Game.MinPlayers)
	v.SetDefault("game.development_mode", d.Game.DevelopmentMode)
	v.SetDefault("timings.action_timeout", d.Timings.ActionTimeout)
	v.SetDefault("timings.poll_interval", d.Timings.PollInterval)
	v.SetDefault("timings.discussion", d.Timings.Discussion)
	v.SetDefault("timings.lynch_vote", d.Timings.LynchVote)
	v.SetDefault("timings.approval_vote", d.Timings.ApprovalVote)
	v.SetDefault("timings.vote_poll_interval", d.Timings.VotePollInterval)
	v.SetDefault("timings.final_words", d.Timings.FinalWords)
	v.SetDefault("timings.final_words_poll", d.Timings.FinalWordsPoll)
	v.SetDefault("timings.pause", d.Timings.Pause)
	v.SetDefault("timings.night_intro", d.Timings.NightIntro)
	v.SetDefault("timings.registration_refresh", d.Timings.RegistrationRefresh)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("rules.file", d.Rules.File)
	v.SetDefault("telegram.token", d.Telegram.Token)
	v.SetDefault("telegram.api_base", d.Telegram.APIBase)
	v.SetDefault("telegram.rate", d.Telegram.Rate)
	v.SetDefault("telegram.last_update_id", d.Telegram.LastUpdateID)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if c.Game.MinPlayers < 4 {
		c.Game.MinPlayers = 4
	}
	c.Store.Driver = strings.ToLower(c.Store.Driver)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings a game cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "jsonl", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s driver", c.Store.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	t := c.Timings
	positive := map[string]time.Duration{
		"timings.action_timeout":     t.ActionTimeout,
		"timings.poll_interval":      t.PollInterval,
		"timings.lynch_vote":         t.LynchVote,
		"timings.approval_vote":      t.ApprovalVote,
		"timings.vote_poll_interval": t.VotePollInterval,
		"timings.final_words_poll":   t.FinalWordsPoll,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if t.Discussion < 0 || t.Pause < 0 || t.NightIntro < 0 || t.FinalWords < 0 {
		return fmt.Errorf("timings must not be negative")
	}
	if c.Telegram.Rate < 0 {
		return fmt.Errorf("telegram.rate must not be negative")
	}
	return nil
}
