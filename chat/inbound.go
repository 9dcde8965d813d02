package chat

import (
	"encoding/json"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/parley/rest"
)

// onMessageNew applies an inbound message:new event. Events for the active
// conversation append (deduplicated by identifier, tolerating at-least-once
// delivery); events for other conversations only bump the unread counter
// and the last-message summary.
func (e *Engine) onMessageNew(data json.RawMessage) {
	var msg rest.Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Id == "" {
		log.Debug("chat: bad message:new payload: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	conv := e.index[msg.ConversationId]
	if conv == nil {
		log.Debug("chat: message:new for unknown conversation %s", msg.ConversationId)
		return
	}

	if e.activeId == msg.ConversationId {
		if e.findActiveLocked(msg.Id) != nil {
			return
		}
		e.messages = append(e.messages, &Message{Message: msg, State: MessageConfirmed})
		conv.LastMessage = &msg
		conv.UpdatedAt = msg.CreatedAt
		return
	}

	conv.LastMessage = &msg
	conv.UnreadCount++
	conv.UpdatedAt = msg.CreatedAt
}

// onMessageEdited patches a loaded message in place. An identifier that is
// not currently loaded is a silent no-op; for non-active conversations only
// the last-message summary is touched.
func (e *Engine) onMessageEdited(data json.RawMessage) {
	var msg rest.Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Id == "" {
		log.Debug("chat: bad message:edited payload: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeId == msg.ConversationId {
		if m := e.findActiveLocked(msg.Id); m != nil && m.State != MessageTombstoned {
			m.Content = msg.Content
			m.Edited = true
		}
	}
	e.patchSummaryLocked(&msg)
}

// onMessageDeleted tombstones a loaded message in the active conversation
func (e *Engine) onMessageDeleted(data json.RawMessage) {
	var p DeletedPayload
	if err := json.Unmarshal(data, &p); err != nil || p.MessageId == "" {
		log.Debug("chat: bad message:deleted payload: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeId == p.ConversationId {
		e.tombstoneLocked(p.MessageId)
	}
}

// onTypingStart inserts into the per-conversation typing map, ignoring
// self-originated events
func (e *Engine) onTypingStart(data json.RawMessage) {
	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.UserId == "" {
		return
	}
	if p.UserId == e.localUserId {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	room := e.typing[p.ConversationId]
	if room == nil {
		room = make(map[string]string)
		e.typing[p.ConversationId] = room
	}
	room[p.UserId] = p.Username
}

// onTypingStop removes the entry; a stop for an unknown user is a no-op
func (e *Engine) onTypingStop(data json.RawMessage) {
	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.UserId == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if room := e.typing[p.ConversationId]; room != nil {
		delete(room, p.UserId)
	}
}

// onNotification applies a room-scoped notification for a conversation the
// user has not joined: summary plus unread bump, never the message list
func (e *Engine) onNotification(data json.RawMessage) {
	var p NotificationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Message == nil {
		log.Debug("chat: bad notification:message payload: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	conv := e.index[p.ConversationId]
	if conv == nil || e.activeId == p.ConversationId {
		return
	}
	conv.LastMessage = p.Message
	conv.UnreadCount++
	conv.UpdatedAt = p.Message.CreatedAt
}
