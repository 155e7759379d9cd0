package parser

import (
	"fmt"
	"strings"
)

// MapError takes a raw input and a participle error, and returns a human-friendly guidance message.
func MapError(input string, err error) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return fmt.Errorf("I wasn't able to understand your command")
	}

	parts := strings.Fields(strings.ToLower(input))
	switch cmd := parts[0]; {
	case cmd == "act":
		return fmt.Errorf("an action must be: act <session> <seat> <kill|inspect|heal|none> [target]: %w", err)
	case cmd == "vote":
		return fmt.Errorf("a vote must be: vote <poll> <seat|yes|no>: %w", err)
	case strings.HasPrefix(cmd, "/"):
		return fmt.Errorf("a command must be: /name[@bot]: %w", err)
	}

	return fmt.Errorf("I wasn't able to understand your command")
}
