package session

import (
	"context"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/solicit"
)

// night solicits every special role at once and applies the answers in
// doctor, cop, mafia order: the heal must be known before any kill lands.
func (g *Game) night(ctx context.Context) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	g.say(ctx, nightText(g.round, s), true)
	if err := g.pause(ctx, g.timings.NightIntro); err != nil {
		return err
	}

	doctor := first(s.AliveWithRole(engine.RoleDoctor))
	cop := first(s.AliveWithRole(engine.RoleCop))
	mafia := s.AliveWithRole(engine.RoleMafia)

	var doctorAnswer, copAnswer <-chan engine.Action
	if doctor != nil {
		doctorAnswer = g.solicit(ctx, s, doctor, g.healable(s, doctor), engine.ActionHeal)
	}
	if cop != nil {
		copAnswer = g.solicit(ctx, s, cop, except(s.Alive(), cop.Seat), engine.ActionKill, engine.ActionInspect)
	}
	mafiaAnswers := make([]<-chan engine.Action, len(mafia))
	for i, m := range mafia {
		mafiaAnswers[i] = g.solicit(ctx, s, m, townsfolk(s), engine.ActionKill, engine.ActionInspect)
	}

	var protected engine.Seat
	kills := 0

	if doctor != nil {
		action := <-doctorAnswer
		if err := ctx.Err(); err != nil {
			return err
		}
		g.say(ctx, dutyText(engine.RoleDoctor, action), false)
		if target, ok := action.Target(); ok {
			protected = target
			if target == doctor.Seat {
				g.selfHealed[doctor.Seat] = true
			}
			if patient := s.Member(target); patient != nil {
				g.tell(ctx, patient, healedText)
			}
			g.record(engine.RoleDoctor, action, true)
		}
	}

	if cop != nil {
		action := <-copAnswer
		if err := ctx.Err(); err != nil {
			return err
		}
		g.say(ctx, dutyText(engine.RoleCop, action), false)
		killed, err := g.strike(ctx, engine.RoleCop, action, protected)
		if err != nil {
			return err
		}
		if killed {
			kills++
		}
	}

	if len(mafia) > 0 {
		proposals := make([]engine.Proposal, len(mafia))
		for i, m := range mafia {
			proposals[i] = engine.Proposal{From: m.Seat, Action: <-mafiaAnswers[i]}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		action, err := g.consensus(ctx, proposals)
		if err != nil {
			return err
		}
		g.say(ctx, dutyText(engine.RoleMafia, action), false)
		killed, err := g.strike(ctx, engine.RoleMafia, action, protected)
		if err != nil {
			return err
		}
		if killed {
			kills++
		}
	}

	if kills == 0 {
		g.say(ctx, survivedText, false)
	}
	return g.pause(ctx, g.timings.Pause)
}

// consensus merges the proposals of the mafia members still alive.
func (g *Game) consensus(ctx context.Context, proposals []engine.Proposal) (engine.Action, error) {
	s, err := g.session()
	if err != nil {
		return engine.NoAction(), err
	}
	var living []engine.Proposal
	for _, p := range proposals {
		if m := s.Member(p.From); m != nil && m.Alive {
			living = append(living, p)
		}
	}
	team := s.AliveWithRole(engine.RoleMafia)

	if len(team) > 1 {
		text := mafiaChoicesText(s, living)
		for _, m := range team {
			g.tell(ctx, m, text)
		}
	}
	action := engine.ResolveConsensus(living, g.rng)
	if !action.IsNone() && len(team) > 1 {
		text := teamDecisionText(s, action)
		for _, m := range team {
			g.tell(ctx, m, text)
		}
	}
	return action, nil
}

// strike applies a cop or mafia action. A kill on the protected seat, or on
// someone already dead, does nothing.
func (g *Game) strike(ctx context.Context, actor engine.Role, action engine.Action, protected engine.Seat) (bool, error) {
	target, ok := action.Target()
	if !ok {
		return false, nil
	}
	s, err := g.session()
	if err != nil {
		return false, err
	}
	victim := s.Member(target)
	if victim == nil || !victim.Alive {
		g.record(actor, action, false)
		return false, nil
	}

	switch action.Kind() {
	case engine.ActionKill:
		if target == protected {
			g.log.Debug().Int("seat", int(target)).Str("by", actor.String()).Msg("kill prevented by the doctor")
			g.record(actor, action, false)
			return false, nil
		}
		if err := g.kill(ctx, victim, actor); err != nil {
			return false, err
		}
		g.record(actor, action, true)
		return true, nil
	case engine.ActionInspect:
		g.tell(ctx, victim, inspectedText)
		text := inspectionText(victim)
		for _, m := range s.AliveWithRole(actor) {
			g.tell(ctx, m, text)
		}
		g.record(actor, action, true)
	}
	return false, nil
}

// solicit asks one member for an action in the background. Failures and
// answers outside the offered choices count as no action.
func (g *Game) solicit(ctx context.Context, s *engine.Session, actor *engine.Member, candidates []*engine.Member, kinds ...engine.ActionKind) <-chan engine.Action {
	req := solicit.ActionRequest{
		Session:    g.id,
		Room:       g.room,
		Round:      g.round,
		Actor:      *actor,
		Candidates: values(candidates),
		Allowed:    kinds,
	}
	out := make(chan engine.Action, 1)
	go func() {
		action, err := g.ask.AskForAction(ctx, req)
		switch {
		case err != nil:
			g.log.Warn().Err(err).Int("seat", int(actor.Seat)).Msg("action solicitation failed")
			action = engine.NoAction()
		case !req.Offers(action):
			g.log.Warn().Int("seat", int(actor.Seat)).Stringer("action", action).Msg("answer was not among the offered choices")
			action = engine.NoAction()
		}
		out <- action
	}()
	return out
}

// healable is every living member, minus the doctor once they healed themselves.
func (g *Game) healable(s *engine.Session, doctor *engine.Member) []*engine.Member {
	if g.selfHealed[doctor.Seat] {
		return except(s.Alive(), doctor.Seat)
	}
	return s.Alive()
}

func townsfolk(s *engine.Session) []*engine.Member {
	var out []*engine.Member
	for _, m := range s.Alive() {
		if !m.Role.IsMafia() {
			out = append(out, m)
		}
	}
	return out
}

func except(members []*engine.Member, seat engine.Seat) []*engine.Member {
	var out []*engine.Member
	for _, m := range members {
		if m.Seat != seat {
			out = append(out, m)
		}
	}
	return out
}

func first(members []*engine.Member) *engine.Member {
	if len(members) == 0 {
		return nil
	}
	return members[0]
}

func values(members []*engine.Member) []engine.Member {
	out := make([]engine.Member, len(members))
	for i, m := range members {
		out[i] = *m
	}
	return out
}
