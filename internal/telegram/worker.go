package telegram

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/parser"
	"github.com/suderio/ultramafia/internal/session"
	"github.com/suderio/ultramafia/internal/solicit"
)

// Lifecycle is the part of the session manager the bot drives.
type Lifecycle interface {
	Submit(ctx context.Context, cmd session.Command, room engine.RoomID, who engine.Participant) (*engine.Session, error)
	SessionByID(id engine.SessionID) (*engine.Session, bool)
}

// Answers receives what players press and type.
type Answers interface {
	SubmitAction(session engine.SessionID, actor engine.Seat, action engine.Action) error
	SubmitBallot(pollID string, voter engine.Seat, option string) error
	VoterSeat(pollID string, id engine.ParticipantID) (engine.Seat, error)
	SubmitFinalWordsFrom(id engine.ParticipantID, text string) error
}

// Options tunes the bot.
type Options struct {
	// Username is resolved through getMe when empty.
	Username     string
	PollTimeout  int
	RetryDelay   time.Duration
	Refresh      time.Duration
	LastUpdateID int
}

var commands = map[string]session.Command{
	"game":  session.CommandCreate,
	"join":  session.CommandJoin,
	"leave": session.CommandLeave,
	"start": session.CommandStart,
	"stop":  session.CommandStop,
}

// Bot handles the integration between Telegram group chats and the session manager.
type Bot struct {
	client       *Client
	opts         Options
	lifecycle    Lifecycle
	answers      Answers
	lastUpdateID int

	mu            sync.Mutex
	pinned        map[engine.RoomID]int
	prompts       map[promptKey]int
	polls         map[string]int
	registrations map[engine.RoomID]*registration
}

// NewBot initializes a bot. Bind must be called before Run.
func NewBot(client *Client, opts Options) *Bot {
	if opts.PollTimeout < 0 {
		opts.PollTimeout = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	return &Bot{
		client:        client,
		opts:          opts,
		lastUpdateID:  opts.LastUpdateID,
		pinned:        make(map[engine.RoomID]int),
		prompts:       make(map[promptKey]int),
		polls:         make(map[string]int),
		registrations: make(map[engine.RoomID]*registration),
	}
}

// Bind connects the bot to the manager and the broker. The manager needs
// the bot as its Notifier, so the two are wired in two steps.
func (b *Bot) Bind(lifecycle Lifecycle, answers Answers) {
	b.lifecycle = lifecycle
	b.answers = answers
}

// Run launches the long-polling loop and returns when ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if b.lifecycle == nil || b.answers == nil {
		return errors.New("telegram bot is not bound to a session manager")
	}
	if b.opts.Username == "" {
		me, err := b.client.GetMe(ctx)
		if err != nil {
			return err
		}
		b.opts.Username = me.Username
	}
	log.Info().Str("username", b.opts.Username).Msg("telegram bot started")

	for {
		updates, err := b.client.GetUpdates(ctx, b.lastUpdateID+1, b.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("error fetching updates")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.opts.RetryDelay):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID > b.lastUpdateID {
				b.lastUpdateID = update.UpdateID
				viper.Set("telegram.last_update_id", b.lastUpdateID)
				_ = viper.WriteConfig() // no config file is fine
			}
			b.handle(ctx, update)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (b *Bot) handle(ctx context.Context, update Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	who := participant(*msg.From)
	if msg.Chat.Type == "private" {
		if strings.HasPrefix(msg.Text, "/") || strings.TrimSpace(msg.Text) == "" {
			return
		}
		if err := b.answers.SubmitFinalWordsFrom(who.ID, msg.Text); err == nil {
			b.send(ctx, msg.Chat.ID, "Your last words were delivered.")
		}
		return
	}

	cmd, err := parser.ParseCommand(msg.Text)
	if err != nil || !cmd.AddressedTo(b.opts.Username) {
		return
	}
	lc, ok := commands[cmd.Name]
	if !ok {
		return
	}

	room := roomOf(msg.Chat.ID)
	if _, err := b.lifecycle.Submit(ctx, lc, room, who); err != nil {
		log.Debug().Err(err).Str("room", string(room)).Str("command", string(lc)).Msg("command rejected")
		b.send(ctx, msg.Chat.ID, rejectionText(lc, who, err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *CallbackQuery) {
	who := participant(cq.From)
	reply := "Accepted"
	if err := b.answer(cq.Data, who); err != nil {
		log.Debug().Err(err).Str("data", cq.Data).Msg("callback rejected")
		reply = callbackRejection(err)
	}
	if err := b.client.AnswerCallbackQuery(ctx, cq.ID, reply); err != nil {
		log.Warn().Err(err).Msg("failed to answer callback query")
	}
}

func (b *Bot) answer(data string, who engine.Participant) error {
	cb, err := parser.ParseCallback(data)
	if err != nil {
		return err
	}
	if cb.Vote != nil {
		seat, err := b.answers.VoterSeat(cb.Vote.Poll, who.ID)
		if err != nil {
			return err
		}
		return b.answers.SubmitBallot(cb.Vote.Poll, seat, cb.Vote.Option)
	}

	act := cb.Act
	action, err := act.Action()
	if err != nil {
		return err
	}
	id := engine.SessionID(act.Session)
	s, ok := b.lifecycle.SessionByID(id)
	if !ok {
		return engine.ErrNotPending
	}
	m := s.Member(engine.Seat(act.Seat))
	if m == nil || m.Participant.ID != who.ID {
		return engine.ErrForbidden
	}
	return b.answers.SubmitAction(id, m.Seat, action)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) int {
	id, err := b.client.SendMessage(ctx, chatID, text, nil)
	if err != nil {
		log.Warn().Err(err).Int64("chat", chatID).Msg("failed to send message")
	}
	return id
}

func participant(u User) engine.Participant {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return engine.Participant{
		ID:   engine.ParticipantID(strconv.FormatInt(u.ID, 10)),
		Name: html.EscapeString(name),
	}
}

func roomOf(chatID int64) engine.RoomID {
	return engine.RoomID(strconv.FormatInt(chatID, 10))
}

func chatOf(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}

func rejectionText(cmd session.Command, who engine.Participant, err error) string {
	switch engine.Kind(err) {
	case "conflict":
		return "A game is already being set up in this chat."
	case "already_joined":
		return who.Name + ", you are already registered."
	case "not_in_game":
		return who.Name + ", you are not registered."
	case "insufficient_players":
		return "Not enough players to start the game."
	case "forbidden":
		return "Only the person who announced the game can stop it."
	case "invalid_state":
		if errors.Is(err, engine.ErrNoSession) {
			return "There is no game here. Send /game to announce one."
		}
		return "The game is already running."
	}
	if errors.Is(err, session.ErrNoTransport) {
		return "The bot cannot reach the players right now."
	}
	return "Something went wrong with /" + string(cmd) + "."
}

func callbackRejection(err error) string {
	if errors.Is(err, solicit.ErrInvalidChoice) {
		return "That option is not available."
	}
	switch engine.Kind(err) {
	case "not_pending":
		return "This question is already closed."
	case "forbidden":
		return "That choice is not yours to make."
	}
	return "Not accepted"
}
