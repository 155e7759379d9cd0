// Package parser reads the commands players type in chat and the payloads
// carried by inline buttons.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suderio/ultramafia/internal/engine"
)

// ChatCommand is a slash command, optionally addressed to one bot: /join@MafiaBot
type ChatCommand struct {
	Name string `parser:"'/' @Ident"`
	Bot  string `parser:"( '@' @Ident )?"`
}

// AddressedTo reports whether the command is meant for the bot named username.
func (c *ChatCommand) AddressedTo(username string) bool {
	return c.Bot == "" || strings.EqualFold(c.Bot, username)
}

// Callback is the payload of an inline button.
type Callback struct {
	Act  *ActCallback  `parser:"( @@"`
	Vote *VoteCallback `parser:"| @@ )"`
}

// ActCallback answers a night action request: act <session> <seat> <kind> [target]
type ActCallback struct {
	Session string `parser:"'act' @(UUID|Ident)"`
	Seat    int    `parser:"@Int"`
	Kind    string `parser:"@('kill'|'inspect'|'heal'|'none')"`
	Target  int    `parser:"@Int?"`
}

// Action converts the payload into an engine action.
func (a *ActCallback) Action() (engine.Action, error) {
	kind, err := engine.ParseActionKind(a.Kind)
	if err != nil {
		return engine.NoAction(), err
	}
	if kind != engine.ActionNone && a.Target <= 0 {
		return engine.NoAction(), fmt.Errorf("%s needs a target", kind)
	}
	return engine.NewAction(kind, engine.Seat(a.Target)), nil
}

// VoteCallback answers a poll: vote <poll> <option>
type VoteCallback struct {
	Poll   string `parser:"'vote' @(UUID|Ident)"`
	Option string `parser:"@(Int|'yes'|'no')"`
}

// ParseCommand reads the first word of text as a chat command.
func ParseCommand(text string) (*ChatCommand, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil, fmt.Errorf("not a command")
	}
	cmd, err := chatParser.ParseString("", fields[0])
	if err != nil {
		return nil, MapError(fields[0], err)
	}
	cmd.Name = strings.ToLower(cmd.Name)
	return cmd, nil
}

// ParseCallback reads an inline button payload.
func ParseCallback(data string) (*Callback, error) {
	cb, err := callbackParser.ParseString("", data)
	if err != nil {
		return nil, MapError(data, err)
	}
	return cb, nil
}

// EncodeAct renders the payload of an action button.
func EncodeAct(session engine.SessionID, actor engine.Seat, action engine.Action) string {
	target, _ := action.Target()
	if action.IsNone() {
		return fmt.Sprintf("act %s %d none", session, actor)
	}
	return fmt.Sprintf("act %s %d %s %d", session, actor, action.Kind(), target)
}

// EncodeVote renders the payload of a poll button.
func EncodeVote(poll, option string) string {
	return "vote " + poll + " " + option
}

// SeatOption parses a lynch option key.
func SeatOption(option string) (engine.Seat, bool) {
	n, err := strconv.Atoi(option)
	if err != nil || n <= 0 {
		return 0, false
	}
	return engine.Seat(n), true
}
