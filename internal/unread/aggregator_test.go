package unread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

func sampleRooms() []models.Room {
	return []models.Room{
		{
			ID:   "r1",
			Kind: models.RoomDirect,
			Members: []models.Member{
				{UserID: "me"},
				{UserID: "u2"},
			},
			Unread: 2,
		},
		{
			ID:     "r2",
			Kind:   models.RoomGroup,
			Unread: 5,
		},
	}
}

func TestInitFromRoomsSeedsBothMaps(t *testing.T) {
	agg := NewAggregator()
	agg.InitFromRooms(sampleRooms(), "me")

	require.Equal(t, 2, agg.RoomCount("r1"))
	require.Equal(t, 2, agg.UserCount("u2"))
	require.Equal(t, 5, agg.RoomCount("r2"))
}

func TestInitFromRoomsIsIdempotent(t *testing.T) {
	agg := NewAggregator()
	agg.InitFromRooms(sampleRooms(), "me")
	agg.InitFromRooms(sampleRooms(), "me")

	assert.Equal(t, 2, agg.RoomCount("r1"))
	assert.Equal(t, 2, agg.UserCount("u2"))
	assert.Equal(t, 5, agg.RoomCount("r2"))
}

func TestInitFromRoomsKeepsLocalCounts(t *testing.T) {
	agg := NewAggregator()
	agg.InitFromRooms(sampleRooms(), "me")
	agg.IncrementForRoom("r1")
	require.Equal(t, 3, agg.RoomCount("r1"))

	// a later list refresh must not reset the locally maintained count
	agg.InitFromRooms(sampleRooms(), "me")
	assert.Equal(t, 3, agg.RoomCount("r1"))
	assert.Equal(t, 3, agg.UserCount("u2"))
}

func TestIncrementUpdatesCounterparty(t *testing.T) {
	agg := NewAggregator()
	agg.InitFromRooms(sampleRooms(), "me")

	agg.IncrementForRoom("r1")
	assert.Equal(t, 3, agg.RoomCount("r1"))
	assert.Equal(t, 3, agg.UserCount("u2"))

	agg.IncrementForRoom("r2")
	assert.Equal(t, 6, agg.RoomCount("r2"))
	assert.Equal(t, 3, agg.UserCount("u2"), "group rooms have no counterparty")
}

func TestClearForRoomZeroesBothMaps(t *testing.T) {
	agg := NewAggregator()
	agg.InitFromRooms(sampleRooms(), "me")

	agg.ClearForRoom("r1")
	assert.Equal(t, 0, agg.RoomCount("r1"))
	assert.Equal(t, 0, agg.UserCount("u2"))
	assert.Equal(t, 5, agg.RoomCount("r2"))
}

func TestActiveRoomSuppression(t *testing.T) {
	agg := NewAggregator()
	agg.InitFromRooms(sampleRooms(), "me")

	// user opens r1: clear, then mark active on this surface
	agg.ClearForRoom("r1")
	agg.SetActive("surface-a", "r1")

	agg.IncrementForRoom("r1")
	assert.Equal(t, 0, agg.RoomCount("r1"))
	assert.Equal(t, 0, agg.UserCount("u2"))

	// user switches to r2
	agg.SetActive("surface-a", "r2")
	agg.IncrementForRoom("r1")
	assert.Equal(t, 1, agg.RoomCount("r1"))
	assert.Equal(t, 1, agg.UserCount("u2"))
}

func TestSuppressionUnionsAcrossSurfaces(t *testing.T) {
	agg := NewAggregator()
	agg.InitFromRooms(sampleRooms(), "me")
	agg.ClearForRoom("r1")
	agg.ClearForRoom("r2")

	agg.SetActive("rail", "r1")
	agg.SetActive("page", "r2")

	agg.IncrementForRoom("r1")
	agg.IncrementForRoom("r2")
	assert.Equal(t, 0, agg.RoomCount("r1"))
	assert.Equal(t, 0, agg.RoomCount("r2"))

	// closing one surface resumes counting for its room only
	agg.ClearActive("rail")
	agg.IncrementForRoom("r1")
	agg.IncrementForRoom("r2")
	assert.Equal(t, 1, agg.RoomCount("r1"))
	assert.Equal(t, 0, agg.RoomCount("r2"))
}

func TestIncrementForUntrackedRoomStillCounts(t *testing.T) {
	agg := NewAggregator()
	agg.IncrementForRoom("new-room")
	assert.Equal(t, 1, agg.RoomCount("new-room"))

	// the next snapshot must not overwrite what accumulated locally
	agg.InitFromRooms([]models.Room{{ID: "new-room", Kind: models.RoomGroup, Unread: 9}}, "me")
	assert.Equal(t, 1, agg.RoomCount("new-room"))
}

func TestSnapshotCopies(t *testing.T) {
	agg := NewAggregator()
	agg.InitFromRooms(sampleRooms(), "me")

	rooms, users := agg.Snapshot()
	rooms["r1"] = 99
	users["u2"] = 99
	assert.Equal(t, 2, agg.RoomCount("r1"))
	assert.Equal(t, 2, agg.UserCount("u2"))
}
