package session

import (
	"time"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// applyMessage merges a live message event into the list. A self-sent event
// confirms the oldest pending message in place; matching must be FIFO so two
// rapid sends confirmed in order cannot cross-match. A self-sent event with
// no pending counterpart (sent from another session) and any other sender's
// event are appended. Duplicate server ids are dropped, which covers a live
// event racing the history snapshot.
func (s *RoomSession) applyMessage(incoming models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil || incoming.RoomID != s.room.ID {
		return
	}
	if incoming.ID != "" && s.seen[incoming.ID] {
		return
	}

	confirmed := incoming
	confirmed.State = models.StateConfirmed
	confirmed.TempID = ""

	if incoming.SenderID == s.userID {
		for i := range s.messages {
			pending := s.messages[i]
			if pending.State != models.StatePending || pending.SenderID != s.userID {
				continue
			}
			if timer, ok := s.pendingTimers[pending.TempID]; ok {
				timer.Stop()
				delete(s.pendingTimers, pending.TempID)
			}
			s.messages[i] = confirmed
			s.rememberLocked(confirmed)
			observability.ObserveSendConfirm(time.Since(pending.CreatedAt))
			observability.SetPendingMessages(s.pendingCountLocked())
			return
		}
	}

	s.messages = append(s.messages, confirmed)
	s.rememberLocked(confirmed)
}

// markFailed transitions a still-pending message to the failed state, either
// on transmit error or when the confirmation window elapses.
func (s *RoomSession) markFailed(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.pendingTimers[tempID]; ok {
		timer.Stop()
		delete(s.pendingTimers, tempID)
	}
	for i := range s.messages {
		if s.messages[i].TempID == tempID && s.messages[i].State == models.StatePending {
			s.messages[i].State = models.StateFailed
			break
		}
	}
	observability.SetPendingMessages(s.pendingCountLocked())
}

// rememberLocked records a confirmed id for dedup and refreshes the room's
// last-message preview. Requires s.mu held.
func (s *RoomSession) rememberLocked(msg models.Message) {
	if msg.ID != "" {
		s.seen[msg.ID] = true
	}
	s.room.LastMessage = msg.Content
	s.room.LastMessageAt = msg.CreatedAt
}
