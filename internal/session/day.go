package session

import (
	"context"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/solicit"
)

// day runs the discussion, the public lynch vote and, when someone is
// nominated, the approval vote.
func (g *Game) day(ctx context.Context) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	g.say(ctx, dayText(g.round, s, g.timings.Discussion), true)
	if err := g.pause(ctx, g.timings.Discussion); err != nil {
		return err
	}

	if s, err = g.session(); err != nil {
		return err
	}
	alive := values(s.Alive())
	ballots, err := g.ask.AskForPublicVote(ctx, solicit.Poll{
		ID:      g.newID(),
		Session: g.id,
		Room:    g.room,
		Round:   g.round,
		Kind:    solicit.PollLynch,
		Voters:  alive,
		Targets: alive,
	})
	if err != nil {
		g.log.Warn().Err(err).Msg("lynch vote failed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	seat, ok := engine.ResolveLynch(lynchBallots(s, ballots))
	if !ok {
		g.say(ctx, splitText, false)
		return g.pause(ctx, g.timings.Pause)
	}
	nominee := s.Member(seat)
	g.say(ctx, nomineeText(nominee), false)

	approvals, err := g.ask.AskForApproval(ctx, solicit.Poll{
		ID:      g.newID(),
		Session: g.id,
		Room:    g.room,
		Round:   g.round,
		Kind:    solicit.PollApproval,
		Voters:  values(except(s.Alive(), seat)),
		Nominee: *nominee,
	})
	if err != nil {
		g.log.Warn().Err(err).Msg("approval vote failed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lynch := engine.Kill(seat)
	if engine.ResolveApproval(approvalBallots(s, seat, approvals)) {
		g.say(ctx, hangedText(nominee), false)
		if err := g.kill(ctx, nominee, engine.RoleCitizen); err != nil {
			return err
		}
		g.record(engine.RoleCitizen, lynch, true)
	} else {
		g.say(ctx, sparedText(nominee), false)
		g.record(engine.RoleCitizen, lynch, false)
	}
	return g.pause(ctx, g.timings.Pause)
}

// lynchBallots keeps one ballot per living voter naming another living member.
func lynchBallots(s *engine.Session, ballots []engine.Ballot) []engine.Ballot {
	seen := make(map[engine.Seat]bool)
	var out []engine.Ballot
	for _, b := range ballots {
		voter, target := s.Member(b.Voter), s.Member(b.Target)
		if voter == nil || target == nil || !voter.Alive || !target.Alive || b.Voter == b.Target || seen[b.Voter] {
			continue
		}
		seen[b.Voter] = true
		out = append(out, b)
	}
	return out
}

// approvalBallots keeps one ballot per living voter other than the nominee.
func approvalBallots(s *engine.Session, nominee engine.Seat, ballots []engine.ApprovalBallot) []engine.ApprovalBallot {
	seen := make(map[engine.Seat]bool)
	var out []engine.ApprovalBallot
	for _, b := range ballots {
		voter := s.Member(b.Voter)
		if voter == nil || !voter.Alive || b.Voter == nominee || seen[b.Voter] {
			continue
		}
		seen[b.Voter] = true
		out = append(out, b)
	}
	return out
}
