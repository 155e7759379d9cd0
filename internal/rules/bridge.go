package rules

import (
	"github.com/suderio/ultramafia/internal/engine"
)

// ContextFromSession converts the living roster into the variables CEL expressions see.
func ContextFromSession(s *engine.Session, round int) map[string]any {
	mafia, others := 0, 0
	if s != nil {
		mafia, others = s.CountAlive()
	}
	return map[string]any{
		"alive":  int64(mafia + others),
		"mafia":  int64(mafia),
		"others": int64(others),
		"round":  int64(round),
	}
}

// Winners lists the living members on the winning side.
func Winners(s *engine.Session, winner engine.Faction) []engine.Seat {
	var seats []engine.Seat
	for _, m := range s.Alive() {
		if (winner == engine.FactionMafia) == m.Role.IsMafia() && winner != engine.FactionNone {
			seats = append(seats, m.Seat)
		}
	}
	return seats
}
