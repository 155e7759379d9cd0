package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/suderio/ultramafia/internal/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999"))

	detailBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)
)

type sessionItem struct {
	s *engine.Session
}

func (i sessionItem) Title() string {
	return fmt.Sprintf("%s  %s", i.s.Room, i.s.State)
}

func (i sessionItem) Description() string {
	desc := fmt.Sprintf("%d players, created %s", len(i.s.Members), i.s.CreatedAt.Format("2006-01-02 15:04"))
	if i.s.Winner != engine.FactionNone {
		desc += ", " + string(i.s.Winner) + " won"
	}
	return desc
}

func (i sessionItem) FilterValue() string { return string(i.s.Room) + " " + string(i.s.ID) }

type inspectModel struct {
	list     list.Model
	viewport viewport.Model
	selected *engine.Session
	width    int
	height   int
}

func newInspectModel(sessions []*engine.Session) inspectModel {
	items := make([]list.Item, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionItem{s})
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Sessions"
	l.Styles.Title = titleStyle
	return inspectModel{list: l, viewport: viewport.New(0, 0)}
}

func (m inspectModel) Init() tea.Cmd {
	return nil
}

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width, msg.Height-1)
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 4
		return m, nil

	case tea.KeyMsg:
		if m.selected != nil {
			switch msg.String() {
			case "esc", "backspace", "q":
				m.selected = nil
				return m, nil
			case "ctrl+c":
				return m, tea.Quit
			}
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		if m.list.FilterState() != list.Filtering {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "enter":
				if item, ok := m.list.SelectedItem().(sessionItem); ok {
					m.selected = item.s
					m.viewport.SetContent(sessionDetail(item.s))
					m.viewport.GotoTop()
				}
				return m, nil
			}
		}
	}
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m inspectModel) View() string {
	if m.selected == nil {
		return m.list.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		detailBoxStyle.Render(m.viewport.View()),
		infoStyle.Render("esc: back  ↑/↓: scroll  ctrl+c: quit"),
	)
}

func sessionDetail(s *engine.Session) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Session " + string(s.ID)))
	fmt.Fprintf(&sb, "\nRoom:     %s\nState:    %s\nCreated:  %s\n", s.Room, s.State, s.CreatedAt.Format("2006-01-02 15:04:05"))
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(&sb, "Started:  %s\n", s.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if !s.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, "Finished: %s\n", s.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	if s.Winner != engine.FactionNone {
		fmt.Fprintf(&sb, "Winner:   %s\n", s.Winner)
	}

	sb.WriteString("\nMembers\n")
	for _, m := range s.Members {
		status := "alive"
		if !m.Alive {
			status = "dead"
		}
		mark := ""
		if m.Winner {
			mark = " ★"
		}
		fmt.Fprintf(&sb, "  %2d. %-20s %-8s %s%s\n", m.Seat, m.Participant.String(), m.Role, status, mark)
	}

	if len(s.Log) > 0 {
		sb.WriteString("\nActions\n")
		for _, e := range s.Log {
			outcome := "ok"
			if !e.Successful {
				outcome = "failed"
			}
			target := "-"
			if t := s.Member(e.Target); t != nil {
				target = t.Participant.String()
			}
			fmt.Fprintf(&sb, "  round %d  %-8s %-8s %-20s %s\n", e.Round, e.Actor, e.Kind, target, outcome)
		}
	}
	return sb.String()
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Browse stored sessions in a terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := loadSessions(cmd.Context(), appCfg.Store)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions stored yet.")
			return nil
		}
		_, err = tea.NewProgram(newInspectModel(sessions), tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
