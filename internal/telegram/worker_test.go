package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/session"
	"github.com/suderio/ultramafia/internal/solicit"
)

type submitted struct {
	cmd  session.Command
	room engine.RoomID
	who  engine.Participant
}

type fakeLifecycle struct {
	mu       sync.Mutex
	calls    []submitted
	err      error
	sessions map[engine.SessionID]*engine.Session
}

func (f *fakeLifecycle) Submit(_ context.Context, cmd session.Command, room engine.RoomID, who engine.Participant) (*engine.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, submitted{cmd, room, who})
	return nil, f.err
}

func (f *fakeLifecycle) SessionByID(id engine.SessionID) (*engine.Session, bool) {
	s, ok := f.sessions[id]
	return s, ok
}

func (f *fakeLifecycle) submitted() []submitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submitted(nil), f.calls...)
}

type mockAnswers struct {
	mock.Mock
}

func (m *mockAnswers) SubmitAction(s engine.SessionID, actor engine.Seat, action engine.Action) error {
	return m.Called(s, actor, action).Error(0)
}
func (m *mockAnswers) SubmitBallot(poll string, voter engine.Seat, option string) error {
	return m.Called(poll, voter, option).Error(0)
}
func (m *mockAnswers) VoterSeat(poll string, id engine.ParticipantID) (engine.Seat, error) {
	args := m.Called(poll, id)
	return args.Get(0).(engine.Seat), args.Error(1)
}
func (m *mockAnswers) SubmitFinalWordsFrom(id engine.ParticipantID, text string) error {
	return m.Called(id, text).Error(0)
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *fakeLifecycle, *mockAnswers) {
	api := newFakeAPI(t)
	lc := &fakeLifecycle{sessions: map[engine.SessionID]*engine.Session{}}
	answers := &mockAnswers{}
	b := NewBot(api.client(), Options{Username: "MafiaBot"})
	b.Bind(lc, answers)
	return b, api, lc, answers
}

func groupMessage(from int64, text string) Update {
	return Update{Message: &Message{
		From: &User{ID: from, FirstName: "Ann", LastName: "Lee"},
		Chat: Chat{ID: -100, Type: "supergroup"},
		Text: text,
	}}
}

func TestGroupCommandsReachManager(t *testing.T) {
	b, _, lc, _ := newTestBot(t)
	ctx := context.Background()

	b.handle(ctx, groupMessage(42, "/join@MafiaBot"))
	b.handle(ctx, groupMessage(42, "/join@OtherBot"))
	b.handle(ctx, groupMessage(42, "/dance"))
	b.handle(ctx, groupMessage(42, "hello"))
	b.handle(ctx, groupMessage(42, "/GAME now"))

	calls := lc.submitted()
	require.Len(t, calls, 2)
	assert.Equal(t, session.CommandJoin, calls[0].cmd)
	assert.Equal(t, engine.RoomID("-100"), calls[0].room)
	assert.Equal(t, engine.Participant{ID: "42", Name: "Ann Lee"}, calls[0].who)
	assert.Equal(t, session.CommandCreate, calls[1].cmd)
}

func TestParticipantNamesAreEscaped(t *testing.T) {
	p := participant(User{ID: 1, FirstName: "<script>"})
	assert.Equal(t, "&lt;script&gt;", p.Name)

	p = participant(User{ID: 2, Username: "nick"})
	assert.Equal(t, "nick", p.Name)
}

func TestRejectedCommandIsExplained(t *testing.T) {
	b, api, lc, _ := newTestBot(t)
	lc.err = fmt.Errorf("%w: seat 1", engine.ErrAlreadyJoined)

	b.handle(context.Background(), groupMessage(42, "/join"))

	sent := api.called("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body["text"], "already registered")

	lc.err = engine.ErrNoSession
	b.handle(context.Background(), groupMessage(42, "/start"))
	sent = api.called("sendMessage")
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Body["text"], "/game")
}

func callback(from int64, data string) Update {
	return Update{CallbackQuery: &CallbackQuery{ID: "q1", From: User{ID: from, FirstName: "Ann"}, Data: data}}
}

func TestActionCallback(t *testing.T) {
	b, api, lc, answers := newTestBot(t)
	lc.sessions["s1"] = &engine.Session{ID: "s1", Members: []*engine.Member{
		{Seat: 1, Participant: engine.Participant{ID: "41"}},
		{Seat: 2, Participant: engine.Participant{ID: "42"}},
	}}
	answers.On("SubmitAction", engine.SessionID("s1"), engine.Seat(2), engine.Kill(1)).Return(nil)

	b.handle(context.Background(), callback(42, "act s1 2 kill 1"))
	b.handle(context.Background(), callback(43, "act s1 2 kill 1"))
	b.handle(context.Background(), callback(42, "act s9 2 kill 1"))

	answers.AssertNumberOfCalls(t, "SubmitAction", 1)
	acks := api.called("answerCallbackQuery")
	require.Len(t, acks, 3)
	assert.Equal(t, "Accepted", acks[0].Body["text"])
	assert.Equal(t, "That choice is not yours to make.", acks[1].Body["text"])
	assert.Equal(t, "This question is already closed.", acks[2].Body["text"])
}

func TestVoteCallback(t *testing.T) {
	b, api, _, answers := newTestBot(t)
	answers.On("VoterSeat", "p1", engine.ParticipantID("42")).Return(engine.Seat(2), nil)
	answers.On("SubmitBallot", "p1", engine.Seat(2), "yes").Return(nil)
	answers.On("SubmitBallot", "p1", engine.Seat(2), "3").Return(fmt.Errorf("%w: 3", solicit.ErrInvalidChoice))

	b.handle(context.Background(), callback(42, "vote p1 yes"))
	b.handle(context.Background(), callback(42, "vote p1 3"))

	answers.AssertExpectations(t)
	acks := api.called("answerCallbackQuery")
	require.Len(t, acks, 2)
	assert.Equal(t, "Accepted", acks[0].Body["text"])
	assert.Equal(t, "That option is not available.", acks[1].Body["text"])
}

func TestPrivateTextIsFinalWords(t *testing.T) {
	b, api, _, answers := newTestBot(t)
	answers.On("SubmitFinalWordsFrom", engine.ParticipantID("42"), "it was Bob").Return(nil)
	answers.On("SubmitFinalWordsFrom", engine.ParticipantID("43"), "hi").Return(engine.ErrNotPending)

	private := func(from int64, text string) Update {
		return Update{Message: &Message{From: &User{ID: from}, Chat: Chat{ID: from, Type: "private"}, Text: text}}
	}
	b.handle(context.Background(), private(42, "it was Bob"))
	b.handle(context.Background(), private(43, "hi"))
	b.handle(context.Background(), private(42, "/start"))

	answers.AssertExpectations(t)
	sent := api.called("sendMessage")
	require.Len(t, sent, 1)
	assert.Equal(t, float64(42), sent[0].Body["chat_id"])
}

func TestPromptAndCloseAction(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	ctx := context.Background()
	req := solicit.ActionRequest{
		Session: "s1",
		Round:   2,
		Actor:   engine.Member{Seat: 1, Participant: engine.Participant{ID: "41", Name: "Cop"}, Role: engine.RoleCop},
		Candidates: []engine.Member{
			{Seat: 3, Participant: engine.Participant{ID: "43", Name: "Bob"}},
		},
		Allowed: []engine.ActionKind{engine.ActionInspect, engine.ActionKill},
	}

	require.NoError(t, b.PromptAction(ctx, req))
	sent := api.called("sendMessage")
	require.Len(t, sent, 1)
	keyboard := sent[0].Body["reply_markup"].(map[string]any)["inline_keyboard"].([]any)
	require.Len(t, keyboard, 3)
	first := keyboard[0].([]any)[0].(map[string]any)
	assert.Equal(t, "act s1 1 inspect 3", first["callback_data"])
	last := keyboard[2].([]any)[0].(map[string]any)
	assert.Equal(t, "act s1 1 none", last["callback_data"])

	require.NoError(t, b.CloseAction(ctx, req, engine.Inspect(3), true))
	edits := api.called("editMessageText")
	require.Len(t, edits, 1)
	assert.Equal(t, "You chose: inspect <b>Bob</b>", edits[0].Body["text"])
	assert.Nil(t, edits[0].Body["reply_markup"])

	require.NoError(t, b.CloseAction(ctx, req, engine.NoAction(), false), "closing twice is a no-op")
	assert.Len(t, api.called("editMessageText"), 1)
}

func TestPollLifecycle(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	ctx := context.Background()
	voters := []engine.Member{
		{Seat: 1, Participant: engine.Participant{ID: "41", Name: "Ann"}},
		{Seat: 2, Participant: engine.Participant{ID: "42", Name: "Bob"}},
	}
	poll := solicit.Poll{ID: "p1", Room: "-100", Voters: voters, Targets: voters}

	require.NoError(t, b.OpenPoll(ctx, poll))
	require.NoError(t, b.UpdatePoll(ctx, poll, []solicit.PollBallot{{Voter: 1, Option: "2"}}))
	require.NoError(t, b.ClosePoll(ctx, poll, []solicit.PollBallot{{Voter: 1, Option: "2"}, {Voter: 2, Option: "1"}}))

	edits := api.called("editMessageText")
	require.Len(t, edits, 2)
	assert.Contains(t, edits[0].Body["text"], "Bob: 1")
	assert.Contains(t, edits[0].Body["text"], "Voted: 1 of 2")
	assert.NotNil(t, edits[0].Body["reply_markup"])
	assert.Contains(t, edits[1].Body["text"], "Voting is over.")
	assert.Nil(t, edits[1].Body["reply_markup"])
}

func TestImportantRoomMessagesArePinned(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, b.NotifyRoom(ctx, "-100", "Night #1", true))
	require.NoError(t, b.NotifyRoom(ctx, "-100", "chatter", false))
	require.NoError(t, b.NotifyRoom(ctx, "-100", "Day #1", true))

	assert.Len(t, api.called("pinChatMessage"), 2)
	unpins := api.called("unpinChatMessage")
	require.Len(t, unpins, 1)
	assert.Equal(t, float64(101), unpins[0].Body["message_id"])

	err := b.NotifyMember(ctx, engine.Participant{ID: "web-user"}, "hi")
	assert.True(t, errors.Is(err, engine.ErrUnreachable))
}

func TestRegistrationMessage(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan session.LifecycleEvent, 4)
	s := &engine.Session{ID: "s1", Room: "-100", State: engine.StateRegistration}
	events <- session.LifecycleEvent{Kind: session.SessionCreated, Session: s}
	joined := s.Clone()
	joined.Members = []*engine.Member{{Seat: 1, Participant: engine.Participant{ID: "42", Name: "Ann"}}}
	events <- session.LifecycleEvent{Kind: session.MemberJoined, Session: joined}
	events <- session.LifecycleEvent{Kind: session.RegistrationStopped, Session: joined}
	close(events)

	b.Watch(ctx, events)

	sent := api.called("sendMessage")
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Body["text"], "Registration is open")
	assert.Equal(t, "Registration stopped!", sent[1].Body["text"])

	edits := api.called("editMessageText")
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Body["text"], "1. Ann")

	assert.Len(t, api.called("pinChatMessage"), 1)
	assert.Len(t, api.called("unpinChatMessage"), 1)
	assert.Len(t, api.called("deleteMessage"), 1)
}

func TestRunPersistsOffset(t *testing.T) {
	api := newFakeAPI(t)
	api.updates = [][]Update{{
		{UpdateID: 7, Message: &Message{From: &User{ID: 42, FirstName: "Ann"}, Chat: Chat{ID: -100, Type: "group"}, Text: "/game"}},
	}}
	lc := &fakeLifecycle{}
	b := NewBot(api.client(), Options{})
	b.Bind(lc, &mockAnswers{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool { return len(lc.submitted()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 7, viper.GetInt("telegram.last_update_id"))
	assert.Equal(t, "MafiaBot", b.opts.Username)
}

func TestRunRequiresBinding(t *testing.T) {
	b := NewBot(NewClient("t", "http://127.0.0.1:1", 0), Options{})
	assert.Error(t, b.Run(context.Background()))
}
