package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/socket"
	"chat-client/internal/unread"
)

type fakeSubscriber struct {
	handler    socket.EventHandler
	cancelled  bool
	subscribed int
}

func (f *fakeSubscriber) Subscribe(handler socket.EventHandler) func() {
	f.handler = handler
	f.subscribed++
	return func() { f.cancelled = true }
}

func (f *fakeSubscriber) emit(ev models.ChatEvent) {
	if f.handler != nil {
		f.handler(ev)
	}
}

func TestMentionReachesRegisteredHandlers(t *testing.T) {
	sub := &fakeSubscriber{}
	agg := unread.NewAggregator()
	b := NewBridge(sub, agg, "me")
	defer b.Close()

	var got []models.MentionInfo
	b.OnMention(func(mention models.MentionInfo) {
		got = append(got, mention)
	})

	sub.emit(models.ChatEvent{
		Type:    models.EventMention,
		Mention: &models.MentionInfo{Room: "r1", SenderID: "u2", SenderName: "Bea", Excerpt: "@me look"},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].Room)
	assert.Equal(t, "Bea", got[0].SenderName)
}

func TestOwnMentionsAreFiltered(t *testing.T) {
	sub := &fakeSubscriber{}
	b := NewBridge(sub, unread.NewAggregator(), "me")
	defer b.Close()

	called := false
	b.OnMention(func(models.MentionInfo) { called = true })

	sub.emit(models.ChatEvent{
		Type:    models.EventMention,
		Mention: &models.MentionInfo{Room: "r1", SenderID: "me"},
	})
	assert.False(t, called, "self mentions must not alert")
}

func TestMentionPublishesTelemetry(t *testing.T) {
	pub := new(mocks.PublisherMock)
	pub.On("PublishJSON", mock.Anything, "chat_client.mentions", mock.Anything, mock.Anything).Return(nil).Once()
	observability.SetPublisher(pub)
	defer observability.SetPublisher(nil)

	sub := &fakeSubscriber{}
	b := NewBridge(sub, unread.NewAggregator(), "me")
	defer b.Close()

	sub.emit(models.ChatEvent{
		Type:    models.EventMention,
		Mention: &models.MentionInfo{Room: "r1", SenderID: "u2"},
	})
	pub.AssertExpectations(t)
}

func TestUnreadEventIncrementsAggregator(t *testing.T) {
	sub := &fakeSubscriber{}
	agg := unread.NewAggregator()
	b := NewBridge(sub, agg, "me")
	defer b.Close()

	sub.emit(models.ChatEvent{
		Type:   models.EventUnread,
		Unread: &models.UnreadInfo{Room: "r3", SenderID: "u2"},
	})
	sub.emit(models.ChatEvent{
		Type:   models.EventUnread,
		Unread: &models.UnreadInfo{Room: "r3", SenderID: "u2"},
	})
	assert.Equal(t, 2, agg.RoomCount("r3"))
}

func TestOwnUnreadEventsAreFiltered(t *testing.T) {
	sub := &fakeSubscriber{}
	agg := unread.NewAggregator()
	b := NewBridge(sub, agg, "me")
	defer b.Close()

	sub.emit(models.ChatEvent{
		Type:   models.EventUnread,
		Unread: &models.UnreadInfo{Room: "r3", SenderID: "me"},
	})
	assert.Equal(t, 0, agg.RoomCount("r3"), "own sends never count as unread")
}

func TestCloseReleasesSubscription(t *testing.T) {
	sub := &fakeSubscriber{}
	b := NewBridge(sub, unread.NewAggregator(), "me")
	require.Equal(t, 1, sub.subscribed)

	b.Close()
	assert.True(t, sub.cancelled)
	b.Close() // safe to repeat
}

func TestMalformedEventsIgnored(t *testing.T) {
	sub := &fakeSubscriber{}
	agg := unread.NewAggregator()
	b := NewBridge(sub, agg, "me")
	defer b.Close()

	sub.emit(models.ChatEvent{Type: models.EventMention})
	sub.emit(models.ChatEvent{Type: models.EventUnread})
	assert.Equal(t, 0, agg.RoomCount(""))
}
