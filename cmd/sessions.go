package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/suderio/ultramafia/internal/config"
	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/persistence"
	"github.com/suderio/ultramafia/internal/persistence/sqlite"
	"github.com/suderio/ultramafia/internal/rules"
)

// SessionRecord is the printable form of a stored session.
type SessionRecord struct {
	ID       string         `yaml:"id"`
	Room     string         `yaml:"room"`
	State    string         `yaml:"state"`
	Winner   string         `yaml:"winner,omitempty"`
	Created  time.Time      `yaml:"created"`
	Started  *time.Time     `yaml:"started,omitempty"`
	Finished *time.Time     `yaml:"finished,omitempty"`
	Members  []MemberRecord `yaml:"members"`
}

// MemberRecord is the printable form of a stored member.
type MemberRecord struct {
	Seat   int    `yaml:"seat"`
	Name   string `yaml:"name"`
	ID     string `yaml:"id"`
	Role   string `yaml:"role"`
	Alive  bool   `yaml:"alive"`
	Winner bool   `yaml:"winner,omitempty"`
}

func recordOf(s *engine.Session) SessionRecord {
	r := SessionRecord{
		ID:      string(s.ID),
		Room:    string(s.Room),
		State:   string(s.State),
		Winner:  string(s.Winner),
		Created: s.CreatedAt,
	}
	if !s.StartedAt.IsZero() {
		t := s.StartedAt
		r.Started = &t
	}
	if !s.FinishedAt.IsZero() {
		t := s.FinishedAt
		r.Finished = &t
	}
	for _, m := range s.Members {
		r.Members = append(r.Members, MemberRecord{
			Seat:   int(m.Seat),
			Name:   m.Participant.String(),
			ID:     string(m.Participant.ID),
			Role:   m.Role.String(),
			Alive:  m.Alive,
			Winner: m.Winner,
		})
	}
	return r
}

// loadSessions reads every session of the configured store. SQLite answers
// from its snapshot tables, other drivers replay the event log.
func loadSessions(ctx context.Context, c config.Store) ([]*engine.Session, error) {
	store, err := persistence.Open(c)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if db, ok := store.(*sqlite.Store); ok {
		return db.Sessions(ctx)
	}
	events, err := store.Load()
	if err != nil {
		return nil, err
	}
	state, err := engine.NewProjector().Build(events)
	if err != nil {
		return nil, err
	}
	all := state.All()
	// newest first, as the snapshot tables return them
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// filterSessions keeps the sessions for which where holds. An empty where keeps all.
func filterSessions(reg *rules.Registry, sessions []*engine.Session, where string) ([]*engine.Session, error) {
	if strings.TrimSpace(where) == "" {
		return sessions, nil
	}
	var kept []*engine.Session
	for _, s := range sessions {
		ok, err := reg.Matches(where, s)
		if err != nil {
			return nil, fmt.Errorf("--where: %w", err)
		}
		if ok {
			kept = append(kept, s)
		}
	}
	return kept, nil
}

func printSessions(w io.Writer, sessions []*engine.Session, output string) error {
	switch strings.ToLower(output) {
	case "yaml":
		records := make([]SessionRecord, 0, len(sessions))
		for _, s := range sessions {
			records = append(records, recordOf(s))
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(records)
	case "", "table":
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-36s  %-16s  %-15s  %-7s  %s", "SESSION", "ROOM", "STATE", "PLAYERS", "WINNER")))
		for _, s := range sessions {
			winner := string(s.Winner)
			if winner == "" {
				winner = "-"
			}
			fmt.Fprintf(w, "%-36s  %-16s  %-15s  %-7d  %s\n", s.ID, s.Room, s.State, len(s.Members), winner)
		}
		return nil
	}
	return fmt.Errorf("unknown output format %q", output)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		where, _ := cmd.Flags().GetString("where")
		reg, err := loadRules(appCfg)
		if err != nil {
			return err
		}
		sessions, err := loadSessions(cmd.Context(), appCfg.Store)
		if err != nil {
			return err
		}
		if sessions, err = filterSessions(reg, sessions, where); err != nil {
			return err
		}
		return printSessions(cmd.OutOrStdout(), sessions, output)
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().StringP("output", "o", "table", "output format (table, yaml)")
	sessionsCmd.Flags().StringP("where", "w", "", "CEL filter over alive, mafia, others and round, e.g. \"mafia == 0\"")
}
