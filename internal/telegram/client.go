// Package telegram plays the game in Telegram group chats: a Bot API client,
// the long-polling bot, and the Prompter/Notifier pair the engine talks through.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Update represents a Telegram update
type Update struct {
	UpdateID      int            `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message represents a Telegram message
type Message struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// User represents a Telegram user
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat represents a Telegram chat
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// CallbackQuery is sent when someone presses an inline button.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

// InlineKeyboardMarkup is a keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton carries a callback payload.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// APIError is a response with ok=false.
type APIError struct {
	Status      int
	Code        int    `json:"error_code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error %d: %s", e.Code, e.Description)
}

type response[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Client is a wrapper for the Telegram Bot API. Outgoing messages are paced
// by a token bucket so bursts stay under the flood limits.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient creates a new Telegram client. perSecond <= 0 disables pacing.
func NewClient(token, apiBase string, perSecond float64) *Client {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(apiBase, "/") + "/bot" + token).
			SetHeader("Content-Type", "application/json"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func call[T any](ctx context.Context, c *Client, method string, payload any, paced bool) (T, error) {
	var zero T
	if paced {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, err
		}
	}

	var out response[T]
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&out).
		SetError(&out).
		Post("/" + method)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", method, err)
	}
	if !out.OK {
		return zero, &APIError{Status: resp.StatusCode(), Code: out.ErrorCode, Description: out.Description}
	}
	return out.Result, nil
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	return call[User](ctx, c, "getMe", map[string]any{}, false)
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset, timeout int) ([]Update, error) {
	return call[[]Update](ctx, c, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         timeout,
		"allowed_updates": []string{"message", "callback_query"},
	}, false)
}

// SendMessage sends an HTML message and returns its id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboardMarkup) (int, error) {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}
	msg, err := call[Message](ctx, c, "sendMessage", payload, true)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditMessageText replaces the text and keyboard of a message. A nil keyboard removes it.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, keyboard *InlineKeyboardMarkup) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}
	_, err := call[any](ctx, c, "editMessageText", payload, true)
	return err
}

// PinChatMessage pins a message without notifying the chat.
func (c *Client) PinChatMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := call[bool](ctx, c, "pinChatMessage", map[string]any{
		"chat_id":              chatID,
		"message_id":           messageID,
		"disable_notification": true,
	}, true)
	return err
}

// UnpinChatMessage unpins one message.
func (c *Client) UnpinChatMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := call[bool](ctx, c, "unpinChatMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, true)
	return err
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := call[bool](ctx, c, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, true)
	return err
}

// AnswerCallbackQuery acknowledges a button press with a short toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, id, text string) error {
	_, err := call[bool](ctx, c, "answerCallbackQuery", map[string]any{
		"callback_query_id": id,
		"text":              text,
	}, false)
	return err
}
