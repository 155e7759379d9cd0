package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/session"
)

// registration is the live sign-up message of a room.
type registration struct {
	chatID    int64
	messageID int
	text      string
	cancel    context.CancelFunc
}

// Watch renders lifecycle events until ctx is done or events is closed.
func (b *Bot) Watch(ctx context.Context, events <-chan session.LifecycleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			b.onLifecycle(ctx, evt)
		}
	}
}

func (b *Bot) onLifecycle(ctx context.Context, evt session.LifecycleEvent) {
	if evt.Session == nil {
		return
	}
	room := evt.Session.Room
	chatID, err := chatOf(string(room))
	if err != nil {
		return
	}

	switch evt.Kind {
	case session.SessionCreated:
		b.openRegistration(ctx, room, chatID, evt.Session)
	case session.MemberJoined, session.MemberLeft:
		b.refreshRegistration(ctx, room, evt.Session)
	case session.GameStarted:
		b.closeRegistration(ctx, room, false)
	case session.RegistrationStopped:
		b.closeRegistration(ctx, room, true)
		b.send(ctx, chatID, "Registration stopped!")
	case session.GameOver:
		b.unpin(ctx, room)
	case session.ForceFinished:
		b.unpin(ctx, room)
		b.send(ctx, chatID, "The previous game was interrupted and has been finished. Send /game to play again.")
	}
}

func registrationText(s *engine.Session) string {
	var sb strings.Builder
	sb.WriteString("<b>Registration is open!</b>\nSend /join to take a seat, /leave to give it up.")
	if len(s.Members) > 0 {
		sb.WriteString("\n\nRegistered:")
		for _, m := range s.Members {
			fmt.Fprintf(&sb, "\n%d. %s", m.Seat, m.Participant.String())
		}
	}
	fmt.Fprintf(&sb, "\n\nTotal: %d", len(s.Members))
	return sb.String()
}

func (b *Bot) openRegistration(ctx context.Context, room engine.RoomID, chatID int64, s *engine.Session) {
	b.closeRegistration(ctx, room, false)

	text := registrationText(s)
	id, err := b.client.SendMessage(ctx, chatID, text, nil)
	if err != nil {
		log.Warn().Err(err).Str("room", string(room)).Msg("failed to post registration")
		return
	}
	b.pin(ctx, room, chatID, id)

	rctx, cancel := context.WithCancel(ctx)
	reg := &registration{chatID: chatID, messageID: id, text: text, cancel: cancel}
	b.mu.Lock()
	b.registrations[room] = reg
	b.mu.Unlock()

	if b.opts.Refresh > 0 {
		go b.repost(rctx, room, reg)
	}
}

// repost moves the registration message to the bottom of the chat so late
// arrivals still see it.
func (b *Bot) repost(ctx context.Context, room engine.RoomID, reg *registration) {
	ticker := time.NewTicker(b.opts.Refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		b.mu.Lock()
		if b.registrations[room] != reg {
			b.mu.Unlock()
			return
		}
		old, text := reg.messageID, reg.text
		b.mu.Unlock()

		id, err := b.client.SendMessage(ctx, reg.chatID, text, nil)
		if err != nil {
			log.Debug().Err(err).Msg("failed to repost registration")
			continue
		}
		b.mu.Lock()
		reg.messageID = id
		b.mu.Unlock()
		_ = b.client.DeleteMessage(ctx, reg.chatID, old)
		b.pin(ctx, room, reg.chatID, id)
	}
}

func (b *Bot) refreshRegistration(ctx context.Context, room engine.RoomID, s *engine.Session) {
	b.mu.Lock()
	reg, ok := b.registrations[room]
	var id int
	text := registrationText(s)
	if ok {
		reg.text = text
		id = reg.messageID
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	if err := b.client.EditMessageText(ctx, reg.chatID, id, text, nil); err != nil {
		log.Debug().Err(err).Msg("failed to edit registration")
	}
}

func (b *Bot) closeRegistration(ctx context.Context, room engine.RoomID, remove bool) {
	b.mu.Lock()
	reg, ok := b.registrations[room]
	delete(b.registrations, room)
	var id int
	if ok {
		id = reg.messageID
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	reg.cancel()
	b.unpin(ctx, room)
	if remove {
		_ = b.client.DeleteMessage(ctx, reg.chatID, id)
	}
}
