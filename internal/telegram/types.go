// Package telegram talks to the Telegram Bot API: it sends notifications,
// long-polls for updates, and routes the bot's slash commands to the binding
// service.
package telegram

// User represents a Telegram user.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat types reported by the Bot API.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
	ChatChannel    = "channel"
)

// Chat represents a Telegram chat.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// Message represents a Telegram message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

// Update is one entry returned by getUpdates. Posts in channels the bot
// administers arrive as ChannelPost instead of Message.
type Update struct {
	UpdateID    int64    `json:"update_id"`
	Message     *Message `json:"message,omitempty"`
	ChannelPost *Message `json:"channel_post,omitempty"`
}

// Incoming returns the message the bot should answer, or nil.
func (u Update) Incoming() *Message {
	if u.Message != nil {
		return u.Message
	}
	return u.ChannelPost
}

// SenderID is the identity bindings are keyed on: the chat for group-like
// chats, the user otherwise.
func (m *Message) SenderID() int64 {
	if m.From == nil || (m.Chat.Type != "" && m.Chat.Type != ChatPrivate) {
		return m.Chat.ID
	}
	return m.From.ID
}
