package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/suderio/ultramafia/internal/bots"
	"github.com/suderio/ultramafia/internal/config"
	"github.com/suderio/ultramafia/internal/engine"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	mafiaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94")).Bold(true)
	townStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
)

// SimulationReport sums up a batch of automated games.
type SimulationReport struct {
	Games     int
	MafiaWins int
	TownWins  int
	Failed    int
	Elapsed   time.Duration
}

func (r SimulationReport) rate(n int) float64 {
	played := r.Games - r.Failed
	if played == 0 {
		return 0
	}
	return 100 * float64(n) / float64(played)
}

func (r SimulationReport) String() string {
	return fmt.Sprintf("%s\n%s %d (%.1f%%)\n%s %d (%.1f%%)\n%s",
		headerStyle.Render(fmt.Sprintf("%d games", r.Games)),
		mafiaStyle.Render("mafia wins:"), r.MafiaWins, r.rate(r.MafiaWins),
		townStyle.Render("town wins: "), r.TownWins, r.rate(r.TownWins),
		mutedStyle.Render(fmt.Sprintf("failed: %d, took %s", r.Failed, r.Elapsed.Round(time.Millisecond))),
	)
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play automated games and report win rates",
	Long: `Seats random bots at in-memory tables and plays complete games with fast
timings. Useful to check how a rules file balances the factions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		games, _ := cmd.Flags().GetInt("games")
		players, _ := cmd.Flags().GetInt("players")
		seed, _ := cmd.Flags().GetInt64("seed")
		abstain, _ := cmd.Flags().GetInt("abstain")
		if players < engine.MinimumPlayers {
			return fmt.Errorf("at least %d players are needed, got %d", engine.MinimumPlayers, players)
		}

		reg, err := loadRules(appCfg)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		report := SimulationReport{Games: games}
		bar := progressbar.Default(int64(games), "Simulating")
		start := time.Now()
		for i := 0; i < games; i++ {
			s, err := bots.Play(ctx, bots.Game{
				Players: players,
				Seed:    seed + int64(i),
				Game:    config.Game{MinPlayers: appCfg.Game.MinPlayers},
				Timings: config.FastTimings(),
				Rules:   reg,
				Bots:    bots.Options{Abstain: abstain, LastWords: []string{"I was innocent!", "Avenge me."}},
			})
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				report.Failed++
			case s.Winner == engine.FactionMafia:
				report.MafiaWins++
			case s.Winner == engine.FactionTown:
				report.TownWins++
			}
			_ = bar.Add(1)
		}
		report.Elapsed = time.Since(start)

		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().Int("games", 100, "number of games to play")
	simulateCmd.Flags().Int("players", 6, "players per game")
	simulateCmd.Flags().Int64("seed", 1, "seed of the first game")
	simulateCmd.Flags().Int("abstain", 10, "chance in percent that a bot ignores a prompt")
}
