package models

// Inbound event types delivered over the live connection.
const (
	EventMessage     = "message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
	EventPresence    = "presence"
	EventMention     = "mention"
	EventUnread      = "unread"
)

// Outbound frame types written to the live connection.
const (
	FrameJoin        = "join"
	FrameLeave       = "leave"
	FrameMessage     = "message"
	FrameTypingStart = "typing_start"
	FrameTypingStop  = "typing_stop"
)

// TypingInfo carries a typing start/stop signal.
type TypingInfo struct {
	Room   string `json:"room"`
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// PresenceInfo is either a full online snapshot (Online non-nil) or an
// incremental join/leave update for a single user.
type PresenceInfo struct {
	Online []string `json:"online,omitempty"`
	UserID string   `json:"user_id,omitempty"`
	Action string   `json:"action,omitempty"` // "join" or "leave"
}

// MentionInfo notifies the client it was @-mentioned, regardless of which
// room is open.
type MentionInfo struct {
	Room       string `json:"room"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name,omitempty"`
	Excerpt    string `json:"excerpt,omitempty"`
}

// UnreadInfo signals new activity in a room the client may not have open.
type UnreadInfo struct {
	Room     string `json:"room"`
	SenderID string `json:"sender_id"`
}

// ChatEvent is the envelope exchanged over the websocket in both directions.
type ChatEvent struct {
	Type     string        `json:"type"`
	Room     string        `json:"room,omitempty"`
	Message  *Message      `json:"message,omitempty"`
	Typing   *TypingInfo   `json:"typing,omitempty"`
	Presence *PresenceInfo `json:"presence,omitempty"`
	Mention  *MentionInfo  `json:"mention,omitempty"`
	Unread   *UnreadInfo   `json:"unread,omitempty"`
}

// RoomID resolves the room an event is scoped to, falling back to the
// payload when the envelope field is empty. Presence events have no room.
func (e ChatEvent) RoomID() string {
	if e.Room != "" {
		return e.Room
	}
	switch {
	case e.Message != nil:
		return e.Message.RoomID
	case e.Typing != nil:
		return e.Typing.Room
	case e.Mention != nil:
		return e.Mention.Room
	case e.Unread != nil:
		return e.Unread.Room
	}
	return ""
}
