// Package socket owns the single live connection to the chat backend:
// handshake, automatic reconnection, outbound verbs and the typed event
// fan-out every other component subscribes to.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/presence"
)

// EventHandler receives inbound events. Handlers run on the read-pump
// goroutine, so delivery within a room is FIFO; handlers must not call
// Subscribe or unsubscribe from inside themselves.
type EventHandler func(ev models.ChatEvent)

// Manager maintains exactly one live connection per session. Events within a
// room are delivered in arrival order; no cross-room ordering is guaranteed.
type Manager struct {
	url           string
	dialer        Dialer
	presence      *presence.Set
	retryInterval time.Duration

	mu     sync.RWMutex
	state  ConnState
	conn   Conn
	connID string
	token  string
	joined map[string]bool
	cancel context.CancelFunc

	wmu sync.Mutex // serializes writes to conn

	subMu      sync.RWMutex
	roomSubs   map[string]map[int]EventHandler
	globalSubs map[int]EventHandler
	nextSubID  int
}

// NewManager creates a manager for the given websocket URL. The presence set
// is owned by the manager: it is the only writer.
func NewManager(url string, ps *presence.Set) *Manager {
	return &Manager{
		url:           url,
		dialer:        gorillaDial,
		presence:      ps,
		retryInterval: 500 * time.Millisecond,
		joined:        make(map[string]bool),
		roomSubs:      make(map[string]map[int]EventHandler),
		globalSubs:    make(map[int]EventHandler),
	}
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Presence returns the manager-owned presence set for read access.
func (m *Manager) Presence() *presence.Set {
	return m.presence
}

// Connect establishes the connection using the caller's access token.
// Idempotent: a no-op unless currently DISCONNECTED. Transient dial failures
// are retried with backoff; ErrAuthFailed is terminal and returned to the
// caller.
func (m *Manager) Connect(ctx context.Context, token string) error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.token = token
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()
	observability.SetConnectionState(int(StateConnecting))

	_, span := otel.Tracer("chat-client/socket").Start(ctx, "socket.connect")
	conn, err := m.dial(ctx, token)
	span.End()
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.cancel = nil
		m.mu.Unlock()
		cancel()
		observability.SetConnectionState(int(StateDisconnected))
		return err
	}

	m.attach(runCtx, conn)
	return nil
}

// Disconnect tears the connection down deterministically. Safe to call
// repeatedly. All subscriptions and joined rooms are invalidated.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	conn := m.conn
	connID := m.connID
	m.conn = nil
	m.connID = ""
	m.state = StateDisconnected
	m.joined = make(map[string]bool)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		m.publishConnEvent(connID, "ws_disconnect", "client disconnect")
	}

	m.subMu.Lock()
	m.roomSubs = make(map[string]map[int]EventHandler)
	m.globalSubs = make(map[int]EventHandler)
	m.subMu.Unlock()
	observability.SetConnectionState(int(StateDisconnected))
}

// Join subscribes this connection to a room's events.
func (m *Manager) Join(roomID string) error {
	if err := m.writeFrame(models.ChatEvent{Type: models.FrameJoin, Room: roomID}); err != nil {
		return err
	}
	m.mu.Lock()
	m.joined[roomID] = true
	m.mu.Unlock()
	return nil
}

// Leave unsubscribes this connection from a room's events.
func (m *Manager) Leave(roomID string) error {
	m.mu.Lock()
	delete(m.joined, roomID)
	m.mu.Unlock()
	return m.writeFrame(models.ChatEvent{Type: models.FrameLeave, Room: roomID})
}

// SendMessage transmits message content for a room, with an optional
// uploaded-file reference.
func (m *Manager) SendMessage(roomID, content, fileID string) error {
	return m.writeFrame(models.ChatEvent{
		Type: models.FrameMessage,
		Room: roomID,
		Message: &models.Message{
			RoomID:  roomID,
			Content: content,
			FileID:  fileID,
		},
	})
}

// SendTyping broadcasts a typing start or stop signal for a room.
func (m *Manager) SendTyping(roomID string, start bool) error {
	frameType := models.FrameTypingStop
	if start {
		frameType = models.FrameTypingStart
	}
	return m.writeFrame(models.ChatEvent{
		Type:   frameType,
		Room:   roomID,
		Typing: &models.TypingInfo{Room: roomID},
	})
}

// SubscribeRoom registers a handler for events scoped to one room. The
// returned function cancels the subscription; once it returns, no further
// events are delivered to the handler.
func (m *Manager) SubscribeRoom(roomID string, handler EventHandler) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	if _, ok := m.roomSubs[roomID]; !ok {
		m.roomSubs[roomID] = make(map[int]EventHandler)
	}
	m.roomSubs[roomID][id] = handler
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if subs, ok := m.roomSubs[roomID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(m.roomSubs, roomID)
			}
		}
	}
}

// Subscribe registers a connection-scoped handler that sees every inbound
// event regardless of room. Used by the notification bridge.
func (m *Manager) Subscribe(handler EventHandler) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.globalSubs[id] = handler
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.globalSubs, id)
	}
}

// dial retries until a connection is established, the context is cancelled
// or the server rejects the token.
func (m *Manager) dial(ctx context.Context, token string) (Conn, error) {
	var conn Conn
	operation := func() error {
		c, err := m.dialer(ctx, m.url, token)
		if err != nil {
			if errors.Is(err, ErrAuthFailed) {
				return backoff.Permanent(err)
			}
			log.Printf("socket dial failed, retrying: %v", err)
			return err
		}
		conn = c
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.retryInterval
	policy.MaxElapsedTime = 0 // retry until cancelled
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return conn, nil
}

// attach installs an established connection, re-issues joins for every room
// subscribed before a drop, and starts the read pump.
func (m *Manager) attach(runCtx context.Context, conn Conn) {
	m.mu.Lock()
	m.conn = conn
	m.connID = uuid.NewString()
	m.state = StateConnected
	rejoin := make([]string, 0, len(m.joined))
	for roomID := range m.joined {
		rejoin = append(rejoin, roomID)
	}
	m.mu.Unlock()
	observability.SetConnectionState(int(StateConnected))
	m.publishConnEvent(m.currentConnID(), "ws_connect", "")

	for _, roomID := range rejoin {
		if err := m.writeFrame(models.ChatEvent{Type: models.FrameJoin, Room: roomID}); err != nil {
			log.Printf("rejoin %s failed: %v", roomID, err)
		}
	}

	go m.readPump(runCtx, conn)
}

func (m *Manager) readPump(runCtx context.Context, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if runCtx.Err() != nil {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				m.publishConnEvent(m.currentConnID(), "ws_error", err.Error())
			}
			m.handleDrop(runCtx, conn)
			return
		}

		var ev models.ChatEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("discarding malformed event: %v", err)
			continue
		}
		m.dispatch(ev)
	}
}

// handleDrop runs the reconnect loop after a transport failure. The presence
// set is stale until the next full snapshot arrives on the new connection.
func (m *Manager) handleDrop(runCtx context.Context, dropped Conn) {
	m.mu.Lock()
	if m.conn != dropped {
		// a newer connection already took over
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = StateReconnecting
	token := m.token
	m.mu.Unlock()
	_ = dropped.Close()

	m.presence.MarkStale()
	observability.SetConnectionState(int(StateReconnecting))
	observability.IncReconnect()
	log.Printf("connection lost, reconnecting")

	conn, err := m.dial(runCtx, token)
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		observability.SetConnectionState(int(StateDisconnected))
		if !errors.Is(err, context.Canceled) {
			log.Printf("reconnect abandoned: %v", err)
		}
		return
	}
	m.attach(runCtx, conn)
}

// dispatch applies presence events to the owned set, then fans the event out
// to room-scoped and connection-scoped subscribers. Handlers are invoked
// while the subscription lock is held so that an unsubscribe, once returned,
// guarantees no further delivery.
func (m *Manager) dispatch(ev models.ChatEvent) {
	observability.IncWSEvent(ev.Type)

	if ev.Type == models.EventPresence && ev.Presence != nil {
		switch {
		case ev.Presence.Online != nil:
			m.presence.Replace(ev.Presence.Online)
		case ev.Presence.Action == "join":
			m.presence.Add(ev.Presence.UserID)
		case ev.Presence.Action == "leave":
			m.presence.Remove(ev.Presence.UserID)
		}
	}

	roomID := ev.RoomID()
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	if roomID != "" {
		for _, handler := range m.roomSubs[roomID] {
			handler(ev)
		}
	}
	for _, handler := range m.globalSubs {
		handler(ev)
	}
}

func (m *Manager) writeFrame(ev models.ChatEvent) error {
	m.mu.RLock()
	conn := m.conn
	state := m.state
	m.mu.RUnlock()
	if conn == nil || state != StateConnected {
		return ErrNotConnected
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	m.wmu.Lock()
	defer m.wmu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (m *Manager) currentConnID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connID
}

func (m *Manager) publishConnEvent(connID, name, reason string) {
	_ = observability.PublishEvent(context.Background(), "chat_client.connection", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"conn_id": connID,
			"reason":  reason,
		},
	}, observability.BuildHeaders(connID, ""))
}
