package httpapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/solicit"
)

func TestMailboxFeeds(t *testing.T) {
	box := NewMailbox(2)
	ctx := context.Background()
	ann := engine.Participant{ID: "ann", Name: "Ann"}

	require.NoError(t, box.NotifyMember(ctx, ann, "You are the cop"))
	require.NoError(t, box.NotifyRoom(ctx, "r1", "Night #1", true))
	require.NoError(t, box.NotifyMember(ctx, ann, "second"))
	require.NoError(t, box.NotifyMember(ctx, ann, "third"))

	letters := box.Read("ann", 0)
	require.Len(t, letters, 2, "the oldest letter is dropped")
	assert.Equal(t, "second", letters[0].Text)
	assert.Equal(t, "third", letters[1].Text)

	after := box.Read("ann", letters[0].Seq)
	require.Len(t, after, 1)
	assert.Equal(t, "third", after[0].Text)

	room := box.Read("r1", 0)
	require.Len(t, room, 1)
	assert.True(t, room[0].Important)

	assert.Empty(t, box.Read("nobody", 0))
}

func TestMailboxPrompts(t *testing.T) {
	box := NewMailbox(0)
	ctx := context.Background()
	cop := engine.Member{Seat: 1, Participant: engine.Participant{ID: "ann"}, Role: engine.RoleCop}
	req := solicit.ActionRequest{
		Session:    "s1",
		Round:      1,
		Actor:      cop,
		Candidates: []engine.Member{{Seat: 2, Participant: engine.Participant{ID: "bob", Name: "Bob"}}},
		Allowed:    []engine.ActionKind{engine.ActionInspect},
	}

	require.NoError(t, box.PromptAction(ctx, req))
	require.NoError(t, box.CloseAction(ctx, req, engine.Inspect(2), true))
	require.NoError(t, box.PromptFinalWords(ctx, "s1", cop))

	letters := box.Read("ann", 0)
	require.Len(t, letters, 3)
	assert.Equal(t, LetterPrompt, letters[0].Kind)
	assert.Equal(t, []OptionView{{Key: "inspect 2", Label: "inspect Bob"}}, letters[0].Options)
	assert.Equal(t, LetterPrompted, letters[1].Kind)
	assert.Equal(t, LetterFinalWords, letters[2].Kind)

	voters := []engine.Member{cop, req.Candidates[0]}
	poll := solicit.Poll{ID: "p1", Session: "s1", Room: "r1", Voters: voters, Targets: voters}
	require.NoError(t, box.OpenPoll(ctx, poll))
	require.NoError(t, box.ClosePoll(ctx, poll, []solicit.PollBallot{{Voter: 1, Option: "2"}}))

	room := box.Read("r1", 0)
	require.Len(t, room, 2)
	assert.Len(t, room[0].Options, 2)
	assert.Equal(t, LetterPollClosed, room[1].Kind)
	assert.Equal(t, map[string]int{"2": 1}, room[1].Tally)
}

func TestPromptsViewIsScopedToViewer(t *testing.T) {
	ann := engine.Member{Seat: 1, Participant: engine.Participant{ID: "ann"}, Role: engine.RoleDoctor, Alive: true}
	bob := engine.Member{Seat: 2, Participant: engine.Participant{ID: "bob"}, Role: engine.RoleMafia, Alive: true}
	pending := solicit.Pending{
		Actions: []solicit.ActionRequest{
			{Session: "s1", Round: 1, Actor: ann, Candidates: []engine.Member{ann, bob}, Allowed: []engine.ActionKind{engine.ActionHeal}},
			{Session: "s1", Round: 1, Actor: bob, Candidates: []engine.Member{ann}, Allowed: []engine.ActionKind{engine.ActionKill}},
		},
		Polls:      []solicit.Poll{{ID: "p1", Session: "s1", Voters: []engine.Member{ann, bob}, Targets: []engine.Member{ann, bob}}},
		FinalWords: []engine.Member{bob},
	}

	anonymous := promptsView(pending, "")
	assert.Empty(t, anonymous.Actions)
	assert.Empty(t, anonymous.FinalWords)
	assert.Len(t, anonymous.Polls, 1, "polls are public")

	own := promptsView(pending, "ann")
	require.Len(t, own.Actions, 1)
	assert.Equal(t, engine.Seat(1), own.Actions[0].Seat)
	assert.Equal(t, []string{"heal"}, own.Actions[0].Allowed)
	assert.Empty(t, own.FinalWords)

	other := promptsView(pending, "bob")
	require.Len(t, other.Actions, 1)
	assert.Equal(t, []engine.Seat{1}, other.Actions[0].Candidates)
	assert.Equal(t, []engine.Seat{2}, other.FinalWords)
}
