// Package presence tracks which users are currently online. The set is
// written only by the connection manager's presence event handling; every
// other component gets read access.
package presence

import (
	"sort"
	"sync"
)

// Set is the process-wide online-user set. While the connection is being
// re-established the set is stale: the last known state keeps being served
// so UIs do not flash everyone offline, and the next full snapshot replaces
// it wholesale.
type Set struct {
	mu     sync.RWMutex
	online map[string]bool
	stale  bool
}

// NewSet creates an empty presence set.
func NewSet() *Set {
	return &Set{online: make(map[string]bool)}
}

// Replace swaps the entire set for a fresh snapshot and clears staleness.
func (s *Set) Replace(userIDs []string) {
	next := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		next[id] = true
	}
	s.mu.Lock()
	s.online = next
	s.stale = false
	s.mu.Unlock()
}

// Add records a single user coming online.
func (s *Set) Add(userID string) {
	s.mu.Lock()
	s.online[userID] = true
	s.mu.Unlock()
}

// Remove records a single user going offline.
func (s *Set) Remove(userID string) {
	s.mu.Lock()
	delete(s.online, userID)
	s.mu.Unlock()
}

// MarkStale flags the current state as pre-disconnect. Entries are kept
// until the next Replace.
func (s *Set) MarkStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// IsOnline reports whether the user is in the set.
func (s *Set) IsOnline(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online[userID]
}

// Stale reports whether the set predates the last disconnect.
func (s *Set) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// Online returns a sorted snapshot of the set.
func (s *Set) Online() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
