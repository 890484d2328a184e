// Package notify is the connection-scoped listener that reacts to events
// from any room: mention alerts for the toast/sound surface and unread
// increments for rooms no surface has open.
package notify

import (
	"context"
	"sync"

	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/socket"
	"chat-client/internal/unread"
)

// Subscriber is the slice of the connection manager the bridge needs.
// *socket.Manager satisfies it.
type Subscriber interface {
	Subscribe(handler socket.EventHandler) func()
}

// MentionHandler receives mention notifications for user-visible alerts.
type MentionHandler func(mention models.MentionInfo)

// Bridge wires connection-level events into the unread aggregator and the
// registered mention handlers. It is independent of any open room.
type Bridge struct {
	unread *unread.Aggregator
	selfID string
	unsub  func()

	mu       sync.RWMutex
	handlers []MentionHandler
}

// NewBridge subscribes the bridge to the connection. Close releases the
// subscription.
func NewBridge(conn Subscriber, agg *unread.Aggregator, selfID string) *Bridge {
	b := &Bridge{unread: agg, selfID: selfID}
	b.unsub = conn.Subscribe(b.onEvent)
	return b
}

// OnMention registers a handler for mention alerts. UIs that do not care
// simply never register one.
func (b *Bridge) OnMention(handler MentionHandler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

// Close detaches the bridge from the connection.
func (b *Bridge) Close() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
}

func (b *Bridge) onEvent(ev models.ChatEvent) {
	switch ev.Type {
	case models.EventMention:
		if ev.Mention == nil || ev.Mention.SenderID == b.selfID {
			return
		}
		mention := *ev.Mention
		b.mu.RLock()
		handlers := make([]MentionHandler, len(b.handlers))
		copy(handlers, b.handlers)
		b.mu.RUnlock()
		for _, handler := range handlers {
			handler(mention)
		}
		_ = observability.PublishEvent(context.Background(), "chat_client.mentions", observability.EventEnvelope{
			EventType: "notification",
			EventName: "mention",
			Payload: map[string]interface{}{
				"room":      mention.Room,
				"sender_id": mention.SenderID,
			},
		}, nil)

	case models.EventUnread:
		if ev.Unread == nil || ev.Unread.SenderID == b.selfID {
			return
		}
		b.unread.IncrementForRoom(ev.Unread.Room)
	}
}
