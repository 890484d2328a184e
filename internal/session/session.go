// Package session binds one open room to the live connection: history
// loading, the optimistic message list, typing coordination and the unread
// active-room registration for this UI surface.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/rest"
	"chat-client/internal/socket"
	"chat-client/internal/typing"
	"chat-client/internal/unread"
)

// ErrNoOpenRoom is returned by operations that require an open room.
var ErrNoOpenRoom = errors.New("no open room")

// DefaultPendingTimeout bounds how long an optimistic message may wait for
// its server echo before being marked failed.
const DefaultPendingTimeout = 10 * time.Second

const historyPageSize = 50

// Connection is the slice of the connection manager a session needs.
// *socket.Manager satisfies it.
type Connection interface {
	Join(roomID string) error
	Leave(roomID string) error
	SendMessage(roomID, content, fileID string) error
	SendTyping(roomID string, start bool) error
	SubscribeRoom(roomID string, handler socket.EventHandler) func()
}

// RoomSession is the per-surface room lifecycle. Each UI surface (rail,
// panel, full page) owns its own instance; the surface id scopes active-room
// suppression in the unread aggregator so independently mounted surfaces do
// not fight over a shared pointer.
type RoomSession struct {
	conn      Connection
	api       rest.API
	unread    *unread.Aggregator
	userID    string
	userName  string
	surfaceID string

	pendingTimeout time.Duration
	typingWindow   time.Duration
	typingExpiry   time.Duration

	mu            sync.RWMutex
	room          *models.Room
	messages      []models.Message
	seen          map[string]bool
	pendingTimers map[string]*time.Timer
	typing        *typing.Coordinator
	unsub         func()
}

// NewRoomSession creates a session for the given user. The session is inert
// until Open.
func NewRoomSession(conn Connection, api rest.API, agg *unread.Aggregator, userID, userName string) *RoomSession {
	return &RoomSession{
		conn:           conn,
		api:            api,
		unread:         agg,
		userID:         userID,
		userName:       userName,
		surfaceID:      uuid.NewString(),
		pendingTimeout: DefaultPendingTimeout,
		typingWindow:   typing.DefaultWindow,
		typingExpiry:   typing.DefaultExpiry,
	}
}

// SetPendingTimeout overrides the confirmation window for optimistic sends.
func (s *RoomSession) SetPendingTimeout(d time.Duration) {
	s.mu.Lock()
	s.pendingTimeout = d
	s.mu.Unlock()
}

// SetTypingWindows overrides the typing debounce and expiry windows for
// rooms opened after the call.
func (s *RoomSession) SetTypingWindows(window, expiry time.Duration) {
	s.mu.Lock()
	s.typingWindow = window
	s.typingExpiry = expiry
	s.mu.Unlock()
}

// SurfaceID identifies this session for active-room suppression.
func (s *RoomSession) SurfaceID() string {
	return s.surfaceID
}

// Open makes room the session's current room: any previously open room is
// closed first, the latest history page is loaded, live events are
// subscribed and the room is cleared and marked active in the unread
// aggregator. Messages present in both the snapshot and late live events are
// deduplicated by server id.
func (s *RoomSession) Open(ctx context.Context, room models.Room) error {
	s.Close()

	history, err := s.api.RoomMessages(ctx, room.ID, "", historyPageSize)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	s.mu.Lock()
	opened := room
	s.room = &opened
	s.seen = make(map[string]bool, len(history))
	s.messages = make([]models.Message, 0, len(history))
	for _, msg := range history {
		if msg.ID != "" && s.seen[msg.ID] {
			continue
		}
		s.seen[msg.ID] = true
		s.messages = append(s.messages, msg)
	}
	s.pendingTimers = make(map[string]*time.Timer)
	roomID := room.ID
	s.typing = typing.New(s.userID, s.typingWindow, s.typingExpiry, func(start bool) {
		_ = s.conn.SendTyping(roomID, start)
	})
	s.mu.Unlock()

	unsubscribe := s.conn.SubscribeRoom(room.ID, s.onEvent)
	s.mu.Lock()
	s.unsub = unsubscribe
	s.mu.Unlock()

	if err := s.conn.Join(room.ID); err != nil {
		s.Close()
		return fmt.Errorf("join room: %w", err)
	}

	s.unread.ClearForRoom(room.ID)
	s.unread.SetActive(s.surfaceID, room.ID)
	return nil
}

// Close detaches from the current room: unsubscribes so no further events
// reach this session, cancels pending and typing timers and releases this
// surface's active-room registration. Safe to call when no room is open.
func (s *RoomSession) Close() {
	s.mu.Lock()
	room := s.room
	unsubscribe := s.unsub
	coordinator := s.typing
	timers := s.pendingTimers
	s.room = nil
	s.unsub = nil
	s.typing = nil
	s.messages = nil
	s.seen = nil
	s.pendingTimers = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if coordinator != nil {
		coordinator.Close()
	}
	for _, timer := range timers {
		timer.Stop()
	}
	if room != nil {
		_ = s.conn.Leave(room.ID)
		s.unread.ClearActive(s.surfaceID)
		observability.SetPendingMessages(0)
	}
}

// Send appends an optimistic pending message and transmits it. A transmit
// error, or no confirmation within the pending timeout, moves the message to
// the failed state; Retry re-sends it.
func (s *RoomSession) Send(content, fileID string) error {
	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return ErrNoOpenRoom
	}
	roomID := s.room.ID
	msg := models.Message{
		State:      models.StatePending,
		TempID:     uuid.NewString(),
		RoomID:     roomID,
		SenderID:   s.userID,
		SenderName: s.userName,
		Content:    content,
		FileID:     fileID,
		CreatedAt:  time.Now(),
	}
	s.messages = append(s.messages, msg)
	tempID := msg.TempID
	s.pendingTimers[tempID] = time.AfterFunc(s.pendingTimeout, func() { s.markFailed(tempID) })
	observability.SetPendingMessages(s.pendingCountLocked())
	s.mu.Unlock()

	if err := s.conn.SendMessage(roomID, content, fileID); err != nil {
		s.markFailed(tempID)
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Retry re-sends a failed message, restoring its pending state in place.
func (s *RoomSession) Retry(tempID string) error {
	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return ErrNoOpenRoom
	}
	var target *models.Message
	for i := range s.messages {
		if s.messages[i].TempID == tempID && s.messages[i].State == models.StateFailed {
			target = &s.messages[i]
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return fmt.Errorf("no failed message with temp id %s", tempID)
	}
	target.State = models.StatePending
	roomID, content, fileID := target.RoomID, target.Content, target.FileID
	s.pendingTimers[tempID] = time.AfterFunc(s.pendingTimeout, func() { s.markFailed(tempID) })
	observability.SetPendingMessages(s.pendingCountLocked())
	s.mu.Unlock()

	if err := s.conn.SendMessage(roomID, content, fileID); err != nil {
		s.markFailed(tempID)
		return fmt.Errorf("retry message: %w", err)
	}
	return nil
}

// Upload sends an attachment through the REST collaborator and returns the
// file id to pass to Send. Upload failures surface as rest.ErrUpload,
// distinct from send failures.
func (s *RoomSession) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	return s.api.UploadFile(ctx, filename, content)
}

// ToggleReaction flips the caller's reaction on a message. The local list is
// refreshed from the authoritative response rather than mutated
// optimistically, since reaction state is shared across users.
func (s *RoomSession) ToggleReaction(ctx context.Context, messageID, emoji string) error {
	groups, err := s.api.ToggleReaction(ctx, messageID, emoji)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].Reactions = groups
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// LoadOlder fetches the next history page backwards from the oldest
// confirmed message and prepends it, skipping ids already present.
func (s *RoomSession) LoadOlder(ctx context.Context) error {
	s.mu.RLock()
	if s.room == nil {
		s.mu.RUnlock()
		return ErrNoOpenRoom
	}
	roomID := s.room.ID
	beforeID := ""
	for _, msg := range s.messages {
		if msg.ID != "" {
			beforeID = msg.ID
			break
		}
	}
	s.mu.RUnlock()

	page, err := s.api.RoomMessages(ctx, roomID, beforeID, historyPageSize)
	if err != nil {
		return fmt.Errorf("load older: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil || s.room.ID != roomID {
		return nil
	}
	fresh := make([]models.Message, 0, len(page))
	for _, msg := range page {
		if msg.ID != "" && s.seen[msg.ID] {
			continue
		}
		s.seen[msg.ID] = true
		fresh = append(fresh, msg)
	}
	s.messages = append(fresh, s.messages...)
	return nil
}

// OnLocalInput forwards a composer keystroke to the typing coordinator.
func (s *RoomSession) OnLocalInput() {
	s.mu.RLock()
	coordinator := s.typing
	s.mu.RUnlock()
	if coordinator != nil {
		coordinator.OnLocalInput()
	}
}

// TypingNames returns who else is typing in the open room.
func (s *RoomSession) TypingNames() []string {
	s.mu.RLock()
	coordinator := s.typing
	s.mu.RUnlock()
	if coordinator == nil {
		return nil
	}
	return coordinator.Names()
}

// Room returns a copy of the open room, or nil.
func (s *RoomSession) Room() *models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return nil
	}
	room := *s.room
	return &room
}

// Messages returns a copy of the current message list in display order.
func (s *RoomSession) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *RoomSession) onEvent(ev models.ChatEvent) {
	switch ev.Type {
	case models.EventMessage:
		if ev.Message != nil {
			s.applyMessage(*ev.Message)
		}
	case models.EventTypingStart:
		s.mu.RLock()
		coordinator := s.typing
		s.mu.RUnlock()
		if coordinator != nil && ev.Typing != nil {
			coordinator.HandleStart(ev.Typing.UserID, ev.Typing.Name)
		}
	case models.EventTypingStop:
		s.mu.RLock()
		coordinator := s.typing
		s.mu.RUnlock()
		if coordinator != nil && ev.Typing != nil {
			coordinator.HandleStop(ev.Typing.UserID)
		}
	}
}

// pendingCountLocked requires s.mu held.
func (s *RoomSession) pendingCountLocked() int {
	n := 0
	for _, msg := range s.messages {
		if msg.State == models.StatePending {
			n++
		}
	}
	return n
}
