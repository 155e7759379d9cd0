package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suderio/ultramafia/internal/config"
	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/persistence"
	"github.com/suderio/ultramafia/internal/solicit"
)

func roleCounts(s *engine.Session) map[engine.Role]int {
	counts := map[engine.Role]int{}
	for _, m := range s.Members {
		counts[m.Role]++
	}
	return counts
}

func TestFivePlayerGame(t *testing.T) {
	tbl := &table{}
	tbl.action = func(req solicit.ActionRequest) engine.Action {
		if req.Round != 1 {
			return engine.NoAction()
		}
		switch req.Actor.Role {
		case engine.RoleMafia:
			return engine.Kill(withRole(req.Candidates, engine.RoleCop)[0].Seat)
		case engine.RoleDoctor:
			return engine.Heal(req.Actor.Seat)
		}
		return engine.NoAction()
	}
	tbl.lynch = func(poll solicit.Poll) []engine.Ballot {
		citizens := withRole(poll.Targets, engine.RoleCitizen)
		c1, c2 := citizens[0].Seat, citizens[1].Seat
		var ballots []engine.Ballot
		for _, v := range poll.Voters {
			switch {
			case v.Seat == c1:
				ballots = append(ballots, engine.Ballot{Voter: v.Seat, Target: c2})
			case v.Seat == c2:
				ballots = append(ballots, engine.Ballot{Voter: v.Seat, Target: c1})
			case v.Role.IsMafia():
				ballots = append(ballots, engine.Ballot{Voter: v.Seat, Target: c1})
			default:
				ballots = append(ballots, engine.Ballot{Voter: v.Seat, Target: c2})
			}
		}
		return ballots
	}
	rec := newRecorder()
	m := newManager(t, persistence.NewMemoryStore(), Options{Solicitor: tbl, Notifier: rec})

	started := seatTable(t, m, "room", 5)
	assert.Equal(t, map[engine.Role]int{
		engine.RoleMafia: 1, engine.RoleDoctor: 1, engine.RoleCop: 1, engine.RoleCitizen: 2,
	}, roleCounts(started))

	require.Eventually(t, func() bool {
		return len(tbl.requestsFor(engine.RoleDoctor, 2)) > 0
	}, 5*time.Second, 5*time.Millisecond, "the game reaches night 2")

	s, ok := m.SessionByID(started.ID)
	require.True(t, ok)
	assert.Equal(t, engine.StatePlaying, s.State, "one dead cop does not end the game")
	for _, mem := range s.Members {
		assert.Equal(t, mem.Role != engine.RoleCop, mem.Alive, "seat %d (%s)", mem.Seat, mem.Role)
	}

	assert.Len(t, tbl.pollsOf(solicit.PollApproval), 0, "a 2-2 lynch nominates nobody")
	assert.True(t, rec.roomSaid(splitText))

	doctor := tbl.requestsFor(engine.RoleDoctor, 1)[0].Actor.Seat
	night1 := tbl.requestsFor(engine.RoleDoctor, 1)[0].Candidates
	night2 := tbl.requestsFor(engine.RoleDoctor, 2)[0].Candidates
	assert.Contains(t, seats(night1), doctor)
	assert.NotContains(t, seats(night2), doctor, "the doctor heals themselves once per game")

	for _, req := range tbl.requestsFor(engine.RoleMafia, 1) {
		assert.Empty(t, withRole(req.Candidates, engine.RoleMafia), "the mafia does not target itself")
	}
}

func seats(members []engine.Member) []engine.Seat {
	out := make([]engine.Seat, len(members))
	for i, m := range members {
		out[i] = m.Seat
	}
	return out
}

func TestProtectionPreventsKill(t *testing.T) {
	tbl := &table{}
	tbl.action = func(req solicit.ActionRequest) engine.Action {
		if req.Round != 1 {
			return engine.NoAction()
		}
		victim := withRole(req.Candidates, engine.RoleCitizen)[0].Seat
		switch req.Actor.Role {
		case engine.RoleMafia:
			return engine.Kill(victim)
		case engine.RoleDoctor:
			return engine.Heal(victim)
		}
		return engine.NoAction()
	}
	rec := newRecorder()
	m := newManager(t, persistence.NewMemoryStore(), Options{Solicitor: tbl, Notifier: rec})
	started := seatTable(t, m, "room", 4)

	require.Eventually(t, func() bool {
		return len(tbl.pollsOf(solicit.PollLynch)) > 0
	}, 5*time.Second, 5*time.Millisecond)

	s, _ := m.SessionByID(started.ID)
	for _, mem := range s.Members {
		assert.True(t, mem.Alive, "seat %d", mem.Seat)
	}
	assert.True(t, rec.roomSaid(survivedText))
	require.Len(t, s.Log, 2)
	assert.Equal(t, engine.RoleDoctor, s.Log[0].Actor)
	assert.Equal(t, engine.RoleMafia, s.Log[1].Actor)
	assert.False(t, s.Log[1].Successful)
}

// answeringPrompter answers each night request through the broker after a
// delay chosen by role.
type answeringPrompter struct {
	broker *solicit.Broker
	delay  map[engine.Role]time.Duration
	choose func(solicit.ActionRequest) engine.Action
	wg     sync.WaitGroup
}

func (p *answeringPrompter) PromptAction(_ context.Context, req solicit.ActionRequest) error {
	if req.Round != 1 {
		return nil
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		time.Sleep(p.delay[req.Actor.Role])
		_ = p.broker.SubmitAction(req.Session, req.Actor.Seat, p.choose(req))
	}()
	return nil
}
func (p *answeringPrompter) CloseAction(context.Context, solicit.ActionRequest, engine.Action, bool) error {
	return nil
}
func (p *answeringPrompter) OpenPoll(context.Context, solicit.Poll) error { return nil }
func (p *answeringPrompter) UpdatePoll(context.Context, solicit.Poll, []solicit.PollBallot) error {
	return nil
}
func (p *answeringPrompter) ClosePoll(context.Context, solicit.Poll, []solicit.PollBallot) error {
	return nil
}
func (p *answeringPrompter) PromptFinalWords(context.Context, engine.SessionID, engine.Member) error {
	return nil
}

func TestNightAppliesAnswersInDependencyOrder(t *testing.T) {
	timings := config.FastTimings()
	timings.ActionTimeout = 2 * time.Second

	p := &answeringPrompter{
		// Answers arrive mafia first, doctor last.
		delay: map[engine.Role]time.Duration{
			engine.RoleMafia:  10 * time.Millisecond,
			engine.RoleCop:    60 * time.Millisecond,
			engine.RoleDoctor: 120 * time.Millisecond,
		},
		choose: func(req solicit.ActionRequest) engine.Action {
			switch req.Actor.Role {
			case engine.RoleDoctor:
				return engine.Heal(withRole(req.Candidates, engine.RoleCitizen)[0].Seat)
			case engine.RoleCop:
				return engine.Inspect(withRole(req.Candidates, engine.RoleMafia)[0].Seat)
			default:
				return engine.Kill(withRole(req.Candidates, engine.RoleCitizen)[0].Seat)
			}
		},
	}
	broker := solicit.NewBroker(p, timings)
	p.broker = broker
	t.Cleanup(p.wg.Wait)

	rec := newRecorder()
	m := newManager(t, persistence.NewMemoryStore(), Options{Timings: timings, Solicitor: broker, Notifier: rec})
	started := seatTable(t, m, "room", 5)

	require.Eventually(t, func() bool {
		s, _ := m.SessionByID(started.ID)
		return len(s.Log) == 3
	}, 5*time.Second, 5*time.Millisecond)

	s, _ := m.SessionByID(started.ID)
	citizen := withRole(values(s.Members), engine.RoleCitizen)[0]
	mafia := withRole(values(s.Members), engine.RoleMafia)[0]
	cop := withRole(values(s.Members), engine.RoleCop)[0]

	assert.Equal(t, []engine.Role{engine.RoleDoctor, engine.RoleCop, engine.RoleMafia},
		[]engine.Role{s.Log[0].Actor, s.Log[1].Actor, s.Log[2].Actor})
	assert.Equal(t, engine.ActionHeal, s.Log[0].Kind)
	assert.Equal(t, citizen.Seat, s.Log[0].Target)
	assert.Equal(t, engine.ActionInspect, s.Log[1].Kind)
	assert.Equal(t, mafia.Seat, s.Log[1].Target)
	assert.Equal(t, engine.ActionKill, s.Log[2].Kind)
	assert.False(t, s.Log[2].Successful, "the late heal still protects the target")

	assert.True(t, s.Member(citizen.Seat).Alive)
	assert.True(t, rec.told(cop.Participant.ID, "is the <b>mafia</b>"))
	assert.True(t, rec.told(mafia.Participant.ID, inspectedText))
	assert.True(t, rec.told(citizen.Participant.ID, healedText))
}

func TestTownWins(t *testing.T) {
	tbl := &table{}
	tbl.action = func(req solicit.ActionRequest) engine.Action {
		if req.Actor.Role.IsMafia() {
			return engine.Kill(req.Candidates[0].Seat)
		}
		return engine.NoAction()
	}
	tbl.lynch = func(poll solicit.Poll) []engine.Ballot {
		mafia := withRole(poll.Targets, engine.RoleMafia)[0].Seat
		var ballots []engine.Ballot
		for _, v := range poll.Voters {
			if v.Seat == mafia {
				ballots = append(ballots, engine.Ballot{Voter: v.Seat, Target: withRole(poll.Targets, engine.RoleCitizen)[0].Seat})
				continue
			}
			ballots = append(ballots, engine.Ballot{Voter: v.Seat, Target: mafia})
		}
		return ballots
	}
	tbl.approval = func(poll solicit.Poll) []engine.ApprovalBallot {
		var ballots []engine.ApprovalBallot
		for _, v := range poll.Voters {
			ballots = append(ballots, engine.ApprovalBallot{Voter: v.Seat, Approve: true})
		}
		return ballots
	}

	path := filepath.Join(t.TempDir(), "events.jsonl")
	store, err := persistence.NewStore(path)
	require.NoError(t, err)
	rec := newRecorder()
	m := newManager(t, store, Options{Solicitor: tbl, Notifier: rec})
	started := seatTable(t, m, "room", 4)

	over := nextEvent(t, m, GameOver)
	assert.Equal(t, started.ID, over.Session.ID)
	assert.Equal(t, engine.StateGameOver, over.Session.State)
	assert.Equal(t, engine.FactionTown, over.Session.Winner)
	for _, mem := range over.Session.Members {
		assert.Equal(t, mem.Alive && !mem.Role.IsMafia(), mem.Winner, "seat %d", mem.Seat)
	}
	m.Wait()
	assert.Empty(t, m.Running())
	assert.True(t, rec.roomSaid("the town"))

	_, err = m.Session("room")
	assert.ErrorIs(t, err, engine.ErrNoSession, "the room is released")

	require.NoError(t, store.Close())
	reopened, err := persistence.NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	replayed := newManager(t, reopened, Options{})
	assert.Empty(t, replayed.Recovered())
	s, ok := replayed.SessionByID(started.ID)
	require.True(t, ok)
	assert.Equal(t, engine.FactionTown, s.Winner)
	assert.Equal(t, 2, len(s.Log), "the night kill and the lynch")
}

func TestMafiaWinsAtParity(t *testing.T) {
	tbl := &table{}
	tbl.action = func(req solicit.ActionRequest) engine.Action {
		if req.Actor.Role.IsMafia() {
			return engine.Kill(req.Candidates[0].Seat)
		}
		return engine.NoAction()
	}
	m := newManager(t, persistence.NewMemoryStore(), Options{Solicitor: tbl, Notifier: newRecorder()})
	started := seatTable(t, m, "room", 4)

	over := nextEvent(t, m, GameOver)
	assert.Equal(t, started.ID, over.Session.ID)
	assert.Equal(t, engine.FactionMafia, over.Session.Winner)
	mafia, others := over.Session.CountAlive()
	assert.Equal(t, 1, mafia)
	assert.Equal(t, 1, others)
	assert.Len(t, tbl.requestsFor(engine.RoleMafia, 2), 1, "the game ended after night 2")
}

func TestLoopSurvivesCollaboratorFailures(t *testing.T) {
	tbl := &table{err: engine.ErrUnreachable}
	m := newManager(t, persistence.NewMemoryStore(), Options{Solicitor: tbl, Notifier: mute{}})
	started := seatTable(t, m, "room", 5)

	require.Eventually(t, func() bool {
		return len(tbl.requestsFor(engine.RoleMafia, 3)) > 0
	}, 5*time.Second, 5*time.Millisecond, "unanswered questions and lost messages do not stop the game")

	s, ok := m.SessionByID(started.ID)
	require.True(t, ok)
	assert.Equal(t, engine.StatePlaying, s.State)
	mafia, others := s.CountAlive()
	assert.Equal(t, 1, mafia)
	assert.Equal(t, 4, others, "nobody acted, nobody died")
	assert.Contains(t, m.Running(), started.ID)
}
