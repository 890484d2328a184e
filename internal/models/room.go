package models

import "time"

// RoomKind distinguishes direct messages from group and project rooms.
type RoomKind string

const (
	RoomDirect  RoomKind = "DIRECT"
	RoomGroup   RoomKind = "GROUP"
	RoomProject RoomKind = "PROJECT"
)

// Member is a user's membership in a room.
type Member struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// Room represents a conversation scope as reported by the room listing API.
// Only the last-message preview is mutated locally; everything else is
// server-owned.
type Room struct {
	ID            string    `json:"id"`
	Kind          RoomKind  `json:"kind"`
	Name          string    `json:"name,omitempty"`
	Members       []Member  `json:"members,omitempty"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
	Unread        int       `json:"unread"`
}

// Counterparty returns the other member of a DIRECT room, or "" if the room
// is not direct or the other member cannot be determined.
func (r Room) Counterparty(selfID string) string {
	if r.Kind != RoomDirect {
		return ""
	}
	for _, m := range r.Members {
		if m.UserID != selfID {
			return m.UserID
		}
	}
	return ""
}

// User is an entry in the user directory, used to resolve display names for
// presence and typing indicators.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
