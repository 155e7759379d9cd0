package session

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/suderio/ultramafia/internal/engine"
)

func roleTitle(r engine.Role) string {
	switch r {
	case engine.RoleMafia:
		return "mafia"
	case engine.RoleDoctor:
		return "doctor"
	case engine.RoleCop:
		return "cop"
	case engine.RoleCitizen:
		return "citizen"
	}
	return "nobody"
}

// roster lists the table in seat order. Roles are shown only when reveal is set.
func roster(s *engine.Session, reveal bool) string {
	var b strings.Builder
	for _, m := range s.Members {
		mark := "🙂"
		if !m.Alive {
			mark = "💀"
		}
		fmt.Fprintf(&b, "%d. %s %s", m.Seat, mark, m.Participant)
		if reveal {
			fmt.Fprintf(&b, " - %s", roleTitle(m.Role))
			if m.Winner {
				b.WriteString(" 🏆")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func startText(s *engine.Session) string {
	mafia := 0
	for _, m := range s.Members {
		if m.Role.IsMafia() {
			mafia++
		}
	}
	return fmt.Sprintf("The game begins! Mafia at the table: %d.", mafia)
}

func introText(m *engine.Member, partners []*engine.Member) string {
	var text string
	switch m.Role {
	case engine.RoleMafia:
		text = "You are the mafia. Show the town who the real villain is."
	case engine.RoleDoctor:
		text = "You are the doctor. Save the town from the mafia, one patient per night."
	case engine.RoleCop:
		text = "You are the cop. Find the mafia before they paint the town red."
	default:
		text = "You are a citizen. Lynch the villains at the town meeting."
	}
	var names []string
	for _, p := range partners {
		if p.Seat != m.Seat {
			names = append(names, p.Participant.String())
		}
	}
	if len(names) > 0 {
		text += "\nYour partners: " + strings.Join(names, ", ") + "."
	}
	return fmt.Sprintf("Seat %d: %s Good luck!", m.Seat, text)
}

func nightText(round int, s *engine.Session) string {
	return fmt.Sprintf("<b>Night #%d</b> 🌃\nThe streets are quiet. For now.\n\n<b>Players</b>:\n%s", round, roster(s, false))
}

func dayText(round int, s *engine.Session, discussion time.Duration) string {
	return fmt.Sprintf("<b>Day #%d</b> ☀️\nEveryone wakes up. Time to punish the mafia.\n\n<b>Players</b>:\n%s\nDiscuss the night, then vote. Discussion: %s.",
		round, roster(s, false), discussion.Round(time.Second))
}

func dutyText(role engine.Role, action engine.Action) string {
	switch role {
	case engine.RoleDoctor:
		if action.IsNone() {
			return "The doctor stays home tonight."
		}
		return "The doctor is on the night shift!"
	case engine.RoleCop:
		switch action.Kind() {
		case engine.ActionInspect:
			return "The cop drove to the office to dig up some records!"
		case engine.ActionKill:
			return "The cop loaded the gun..."
		}
		return "The cop is off duty tonight."
	default:
		switch action.Kind() {
		case engine.ActionInspect:
			return "The mafia is looking around!"
		case engine.ActionKill:
			return "The mafia is out hunting!"
		}
		return "The mafia sleeps."
	}
}

func actionLabel(s *engine.Session, a engine.Action) string {
	target, ok := a.Target()
	if !ok {
		return "💤"
	}
	name := fmt.Sprintf("seat %d", target)
	if m := s.Member(target); m != nil {
		name = m.Participant.String()
	}
	switch a.Kind() {
	case engine.ActionKill:
		return "🗡 " + name
	case engine.ActionInspect:
		return "🔎 " + name
	}
	return "💊 " + name
}

func mafiaChoicesText(s *engine.Session, proposals []engine.Proposal) string {
	var b strings.Builder
	b.WriteString("<b>Mafia choices</b>\n\n")
	for _, p := range proposals {
		name := fmt.Sprintf("seat %d", p.From)
		if m := s.Member(p.From); m != nil {
			name = m.Participant.String()
		}
		fmt.Fprintf(&b, "<b>%s</b>: %s\n", name, actionLabel(s, p.Action))
	}
	return b.String()
}

func inspectionText(target *engine.Member) string {
	return fmt.Sprintf("Our people found something: <b>%s</b> is the <b>%s</b>.", target.Participant, roleTitle(target.Role))
}

func killedText(victim *engine.Member) string {
	return fmt.Sprintf("Killed: <i>%s</i> <b>%s</b>", roleTitle(victim.Role), victim.Participant)
}

func lastWordsText(victim engine.Member, words string) string {
	return fmt.Sprintf("Witnesses of <b>%s</b>'s death heard them shout:\n<b><i>%s</i></b>", victim.Participant, words)
}

func summaryText(s *engine.Session, elapsed time.Duration) string {
	var b strings.Builder
	b.WriteString("<b>Game over!</b> 🏁\n\n")
	if s.Winner == engine.FactionMafia {
		b.WriteString("<b>Winners</b>: the mafia 😈.\n")
	} else {
		b.WriteString("<b>Winners</b>: the town 👤.\n")
	}
	fmt.Fprintf(&b, "<b>The game lasted</b>: %d minutes.\n\n", int(math.Round(elapsed.Minutes())))
	b.WriteString("<b>Players:</b>\n")
	b.WriteString(roster(s, true))
	b.WriteString("------\nThanks for playing! :)")
	return b.String()
}

const (
	healedText      = "The doctor came by to patch you up :)"
	inspectedText   = "Someone is asking questions about you..."
	survivedText    = "Amazing. Everyone survived the night."
	splitText       = "Opinions are split. Nobody hangs today."
)

func nomineeText(m *engine.Member) string {
	return fmt.Sprintf("The town points at <b>%s</b>. Should they hang?", m.Participant)
}

func hangedText(m *engine.Member) string {
	return fmt.Sprintf("Hanging <b>%s</b>...", m.Participant)
}

func sparedText(m *engine.Member) string {
	return fmt.Sprintf("<b>%s</b> was a hair away from death. The town gives them another chance.", m.Participant)
}

func teamDecisionText(s *engine.Session, a engine.Action) string {
	return "The most popular decision: <b>" + actionLabel(s, a) + "</b>"
}
