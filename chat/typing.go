package chat

import (
	"time"

	"github.com/mbeoliero/parley/realtime"
)

// NotifyTyping records keystroke activity in a conversation. The first
// keystroke of a burst emits typing:start; every call re-arms the local
// timeout, whose expiry emits typing:stop exactly once per burst. This is a
// client-local debounce, not a delivery guarantee.
//
// Re-arming bumps the burst generation so an already fired timer waiting on
// the lock cannot end the fresh burst; Stop alone is not enough for that.
func (e *Engine) NotifyTyping(conversationId string) {
	e.mu.Lock()
	starting := !e.typingLive[conversationId]
	if starting {
		e.typingLive[conversationId] = true
	}
	if t := e.typingTimers[conversationId]; t != nil {
		t.Stop()
	}
	e.typingGen[conversationId]++
	gen := e.typingGen[conversationId]
	e.typingTimers[conversationId] = time.AfterFunc(e.typingTimeout, func() {
		e.expireTypingBurst(conversationId, gen)
	})
	e.mu.Unlock()

	if starting {
		e.ch.Emit(realtime.EventTypingStart, &realtime.RoomPayload{ConversationId: conversationId})
	}
}

// StopTyping ends the current typing burst immediately
func (e *Engine) StopTyping(conversationId string) {
	e.stopTypingBurst(conversationId)
}

// expireTypingBurst is the timer path; it only ends the burst it was armed
// for, a stale generation means the burst was re-armed or already ended
func (e *Engine) expireTypingBurst(conversationId string, gen uint64) {
	e.mu.Lock()
	if e.typingGen[conversationId] != gen {
		e.mu.Unlock()
		return
	}
	stop := e.endTypingBurstLocked(conversationId)
	e.mu.Unlock()

	if stop {
		e.ch.Emit(realtime.EventTypingStop, &realtime.RoomPayload{ConversationId: conversationId})
	}
}

func (e *Engine) stopTypingBurst(conversationId string) {
	e.mu.Lock()
	stop := e.endTypingBurstLocked(conversationId)
	e.mu.Unlock()

	if stop {
		e.ch.Emit(realtime.EventTypingStop, &realtime.RoomPayload{ConversationId: conversationId})
	}
}

// endTypingBurstLocked tears down the burst state and reports whether a
// typing:stop is owed. Bumping the generation invalidates any timer callback
// that already fired but has not taken the lock yet.
func (e *Engine) endTypingBurstLocked(conversationId string) bool {
	if !e.typingLive[conversationId] {
		return false
	}
	e.typingGen[conversationId]++
	delete(e.typingLive, conversationId)
	if t := e.typingTimers[conversationId]; t != nil {
		t.Stop()
		delete(e.typingTimers, conversationId)
	}
	return true
}
