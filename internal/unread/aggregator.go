// Package unread maintains unread counts under two addressing schemes: by
// room, and by direct-message counterparty so collapsed UI surfaces can
// badge avatars without knowing room identifiers.
package unread

import (
	"sync"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// Aggregator is the process-wide unread index. Multiple UI surfaces read it
// concurrently; each surface registers the room it has open so incoming
// signals for that room are suppressed. A room is suppressed if any surface
// has it active.
type Aggregator struct {
	mu      sync.RWMutex
	rooms   map[string]int
	users   map[string]int
	byUser  map[string]string // DIRECT room id -> counterparty user id
	tracked map[string]bool
	active  map[string]string // surface id -> room id
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		rooms:   make(map[string]int),
		users:   make(map[string]int),
		byUser:  make(map[string]string),
		tracked: make(map[string]bool),
		active:  make(map[string]string),
	}
}

// InitFromRooms seeds counts from a room-list snapshot. Only rooms not yet
// tracked take the snapshot value; rooms already tracked keep their locally
// maintained counts, so repeated calls (periodic list refresh) never reset
// or double-count.
func (a *Aggregator) InitFromRooms(rooms []models.Room, currentUserID string) {
	a.mu.Lock()
	for _, room := range rooms {
		if counterparty := room.Counterparty(currentUserID); counterparty != "" {
			a.byUser[room.ID] = counterparty
		}
		if a.tracked[room.ID] {
			continue
		}
		a.tracked[room.ID] = true
		a.rooms[room.ID] = room.Unread
		if counterparty, ok := a.byUser[room.ID]; ok {
			a.users[counterparty] += room.Unread
		}
	}
	a.mu.Unlock()
	a.publishTotal()
}

// IncrementForRoom bumps the room's count and, for tracked direct rooms, the
// counterparty's count. A no-op when any surface has the room active.
func (a *Aggregator) IncrementForRoom(roomID string) {
	a.mu.Lock()
	if a.isActive(roomID) {
		a.mu.Unlock()
		return
	}
	a.tracked[roomID] = true
	a.rooms[roomID]++
	if counterparty, ok := a.byUser[roomID]; ok {
		a.users[counterparty]++
	}
	a.mu.Unlock()
	a.publishTotal()
}

// ClearForRoom zeroes the room's count and removes its contribution to the
// counterparty count.
func (a *Aggregator) ClearForRoom(roomID string) {
	a.mu.Lock()
	cleared := a.rooms[roomID]
	a.rooms[roomID] = 0
	a.tracked[roomID] = true
	if counterparty, ok := a.byUser[roomID]; ok && cleared > 0 {
		if a.users[counterparty] < cleared {
			a.users[counterparty] = 0
		} else {
			a.users[counterparty] -= cleared
		}
	}
	a.mu.Unlock()
	a.publishTotal()
}

// SetActive marks roomID as open on the given surface.
func (a *Aggregator) SetActive(surfaceID, roomID string) {
	a.mu.Lock()
	a.active[surfaceID] = roomID
	a.mu.Unlock()
}

// ClearActive removes the surface's active-room registration. Other surfaces
// keep their own.
func (a *Aggregator) ClearActive(surfaceID string) {
	a.mu.Lock()
	delete(a.active, surfaceID)
	a.mu.Unlock()
}

// RoomCount returns the unread count for a room. The active room always
// reads as zero.
func (a *Aggregator) RoomCount(roomID string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.isActive(roomID) {
		return 0
	}
	return a.rooms[roomID]
}

// UserCount returns the unread count attributed to a direct-message
// counterparty.
func (a *Aggregator) UserCount(userID string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.users[userID]
}

// Snapshot returns copies of both count maps for the monitor surface.
func (a *Aggregator) Snapshot() (rooms map[string]int, users map[string]int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rooms = make(map[string]int, len(a.rooms))
	for id, n := range a.rooms {
		rooms[id] = n
	}
	users = make(map[string]int, len(a.users))
	for id, n := range a.users {
		users[id] = n
	}
	return rooms, users
}

// isActive requires a.mu held.
func (a *Aggregator) isActive(roomID string) bool {
	for _, active := range a.active {
		if active == roomID {
			return true
		}
	}
	return false
}

func (a *Aggregator) publishTotal() {
	a.mu.RLock()
	total := 0
	for _, n := range a.rooms {
		total += n
	}
	a.mu.RUnlock()
	observability.SetUnreadTotal(total)
}
