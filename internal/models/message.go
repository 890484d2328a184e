package models

import "time"

// MessageState tags a message as optimistic, acknowledged or failed. A
// message is Pending from the moment it is appended locally until the server
// echo replaces it; Failed is reached when transmission errors out or the
// confirmation window elapses.
type MessageState int

const (
	StatePending MessageState = iota
	StateConfirmed
	StateFailed
)

func (s MessageState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ReactionGroup is the aggregated view of one emoji on a message.
type ReactionGroup struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// Message is a chat message. TempID is set only on locally-originated
// messages and never leaves the process; ID is assigned by the server.
// Exactly one of the two identifies a message depending on State.
type Message struct {
	State  MessageState `json:"-"`
	TempID string       `json:"-"`

	ID         string          `json:"id,omitempty"`
	RoomID     string          `json:"room_id"`
	SenderID   string          `json:"sender_id"`
	SenderName string          `json:"sender_name,omitempty"`
	Content    string          `json:"content"`
	FileID     string          `json:"file_id,omitempty"`
	Reactions  []ReactionGroup `json:"reactions,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Confirmed reports whether the message carries a server identifier.
func (m Message) Confirmed() bool {
	return m.State == StateConfirmed
}
