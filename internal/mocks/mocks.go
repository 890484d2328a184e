package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/rest"
	"chat-client/internal/session"
	"chat-client/internal/socket"
)

type APIMock struct {
	mock.Mock
}

func (m *APIMock) ListRooms(ctx context.Context) ([]models.Room, error) {
	args := m.Called(ctx)
	var rooms []models.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *APIMock) RoomMessages(ctx context.Context, roomID, beforeID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, beforeID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *APIMock) Users(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *APIMock) UploadFile(ctx context.Context, filename string, content io.Reader) (string, error) {
	args := m.Called(ctx, filename, content)
	return args.String(0), args.Error(1)
}

func (m *APIMock) ToggleReaction(ctx context.Context, messageID, emoji string) ([]models.ReactionGroup, error) {
	args := m.Called(ctx, messageID, emoji)
	var groups []models.ReactionGroup
	if val := args.Get(0); val != nil {
		groups = val.([]models.ReactionGroup)
	}
	return groups, args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	args := m.Called(ctx, routingKey, message, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ConnectionMock fakes the connection manager for session tests. Subscribed
// handlers are retained so tests can feed events through Emit.
type ConnectionMock struct {
	mock.Mock

	handlers map[string][]socket.EventHandler
}

func (m *ConnectionMock) Join(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *ConnectionMock) Leave(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *ConnectionMock) SendMessage(roomID, content, fileID string) error {
	args := m.Called(roomID, content, fileID)
	return args.Error(0)
}

func (m *ConnectionMock) SendTyping(roomID string, start bool) error {
	args := m.Called(roomID, start)
	return args.Error(0)
}

func (m *ConnectionMock) SubscribeRoom(roomID string, handler socket.EventHandler) func() {
	if m.handlers == nil {
		m.handlers = make(map[string][]socket.EventHandler)
	}
	idx := len(m.handlers[roomID])
	m.handlers[roomID] = append(m.handlers[roomID], handler)
	return func() {
		m.handlers[roomID][idx] = nil
	}
}

// Emit delivers an event to the handlers subscribed for its room.
func (m *ConnectionMock) Emit(ev models.ChatEvent) {
	for _, handler := range m.handlers[ev.RoomID()] {
		if handler != nil {
			handler(ev)
		}
	}
}

var _ rest.API = (*APIMock)(nil)
var _ observability.Publisher = (*PublisherMock)(nil)
var _ session.Connection = (*ConnectionMock)(nil)
