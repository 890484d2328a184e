// Package typing coordinates typing indicators for one open room: debounced
// broadcast of local keystrokes, and an expiring map of who else is typing.
package typing

import (
	"sort"
	"sync"
	"time"
)

// DefaultWindow is the idle window after which local typing is considered
// stopped and a stop signal is broadcast.
const DefaultWindow = 2 * time.Second

// DefaultExpiry bounds how long a remote typing indicator survives without a
// fresh start signal. It covers peers that disconnect without sending stop.
const DefaultExpiry = 3 * time.Second

type remoteEntry struct {
	name  string
	timer *time.Timer
}

// Coordinator owns the typing state for a single room session. All timers it
// creates are cancelled on Close so nothing fires against a closed room.
type Coordinator struct {
	selfID string
	window time.Duration
	expiry time.Duration
	send   func(start bool)

	mu        sync.Mutex
	active    bool
	lastStart time.Time
	idleTimer *time.Timer
	remote    map[string]*remoteEntry
	closed    bool
}

// New creates a coordinator. send is invoked outside the coordinator's lock
// with true for a start broadcast and false for stop.
func New(selfID string, window, expiry time.Duration, send func(start bool)) *Coordinator {
	if window <= 0 {
		window = DefaultWindow
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Coordinator{
		selfID: selfID,
		window: window,
		expiry: expiry,
		send:   send,
		remote: make(map[string]*remoteEntry),
	}
}

// OnLocalInput is called on every composer keystroke. The first keystroke in
// an idle window broadcasts a start, and while input keeps arriving a start
// is re-emitted once per window so the receive-side expiry on the peer keeps
// being refreshed. The idle timer broadcasts a stop if no further input
// arrives.
func (c *Coordinator) OnLocalInput() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	now := time.Now()
	broadcast := !c.active || now.Sub(c.lastStart) >= c.window
	if broadcast {
		c.lastStart = now
	}
	c.active = true
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.idleTimer = time.AfterFunc(c.window, c.idleStop)
	c.mu.Unlock()

	if broadcast {
		c.send(true)
	}
}

func (c *Coordinator) idleStop() {
	c.mu.Lock()
	if c.closed || !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.mu.Unlock()

	c.send(false)
}

// HandleStart records a remote typing-start signal. Self events are
// discarded. The entry expires after the expiry window unless refreshed.
func (c *Coordinator) HandleStart(userID, name string) {
	if userID == c.selfID {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if entry, ok := c.remote[userID]; ok {
		entry.name = name
		entry.timer.Stop()
		entry.timer = time.AfterFunc(c.expiry, func() { c.expire(userID) })
		return
	}
	c.remote[userID] = &remoteEntry{
		name:  name,
		timer: time.AfterFunc(c.expiry, func() { c.expire(userID) }),
	}
}

// HandleStop removes a remote typing indicator.
func (c *Coordinator) HandleStop(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.remote[userID]; ok {
		entry.timer.Stop()
		delete(c.remote, userID)
	}
}

func (c *Coordinator) expire(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.remote, userID)
}

// Names returns the display names currently typing, sorted for stable
// rendering.
func (c *Coordinator) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.remote))
	for _, entry := range c.remote {
		names = append(names, entry.name)
	}
	sort.Strings(names)
	return names
}

// Close cancels every outstanding timer and drops all state. If a local
// start was broadcast and not yet stopped, a final stop is sent so the peer
// side does not hold a stuck indicator.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	wasActive := c.active
	c.active = false
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	for _, entry := range c.remote {
		entry.timer.Stop()
	}
	c.remote = make(map[string]*remoteEntry)
	c.mu.Unlock()

	if wasActive {
		c.send(false)
	}
}
