package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/mbeoliero/kit/log"
)

// State is the connection lifecycle state
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// ErrNoCredential is returned by Connect when called without a session token
var ErrNoCredential = errors.New("realtime: no session credential")

// Options configures the Manager
type Options struct {
	// URL of the realtime endpoint, e.g. ws://host:port/ws
	URL string
	// MaxAttempts caps automatic reconnection attempts
	MaxAttempts int
	// RetryDelay is the delay before the first reconnect attempt; it is
	// doubled per attempt up to RetryDelayMax
	RetryDelay    time.Duration
	RetryDelayMax time.Duration
	// Dialer overrides the transport, used by tests
	Dialer Dialer
}

func (o *Options) defaults() {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 5
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = time.Second
	}
	if o.RetryDelayMax == 0 {
		o.RetryDelayMax = 5 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = dialWebSocket
	}
}

type handlerEntry struct {
	id int
	fn Handler
}

// Manager owns exactly one logical realtime session per authenticated
// identity. It is the sole writer of the presence set and the sole owner
// of the retry timers.
type Manager struct {
	opts Options

	mu          sync.RWMutex
	state       State
	token       string
	conn        Conn
	gen         uint64 // bumped on every Connect/Disconnect to fence stale loops
	attempts    int
	intentional bool
	handlers    map[string][]handlerEntry
	nextSubId   int
	online      map[string]struct{}
	stateCbs    []func(State)

	sleep func(time.Duration)
}

// NewManager creates a Manager in the Disconnected state
func NewManager(opts Options) *Manager {
	opts.defaults()
	return &Manager{
		opts:     opts,
		state:    StateDisconnected,
		handlers: make(map[string][]handlerEntry),
		online:   make(map[string]struct{}),
		sleep:    time.Sleep,
	}
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnStateChange registers a callback invoked on every state transition
func (m *Manager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	m.stateCbs = append(m.stateCbs, fn)
	m.mu.Unlock()
}

// Connect establishes the realtime session. It is idempotent: calling it
// while Connecting/Connected/Reconnecting with the same credential is a
// no-op; a changed credential tears down the old session and redials.
// An empty credential never dials.
func (m *Manager) Connect(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoCredential
	}

	m.mu.Lock()
	if m.state != StateDisconnected {
		if token == m.token {
			m.mu.Unlock()
			return nil
		}
		// Credential changed: fence the old session and start over
		m.closeConnLocked()
	}
	m.token = token
	m.intentional = false
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	m.mu.Unlock()
	m.notifyState(StateConnecting)

	conn, err := m.opts.Dialer(ctx, m.endpoint(token))
	if err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.state = StateDisconnected
			m.clearPresenceLocked()
		}
		m.mu.Unlock()
		m.notifyState(StateDisconnected)
		return fmt.Errorf("realtime connect: %w", err)
	}

	m.mu.Lock()
	if m.gen != gen {
		// A newer Connect/Disconnect superseded us
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.state = StateConnected
	m.attempts = 0
	m.mu.Unlock()
	m.notifyState(StateConnected)

	go m.readLoop(gen, conn)
	return nil
}

// Disconnect tears down the session. It always succeeds and clears the
// presence set.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.intentional = true
	m.closeConnLocked()
	m.token = ""
	m.state = StateDisconnected
	m.clearPresenceLocked()
	m.mu.Unlock()
	m.notifyState(StateDisconnected)
}

// Emit sends an event to the server, fire-and-forget. Events emitted while
// not Connected are silently dropped: callers must not assume delivery.
func (m *Manager) Emit(event string, payload interface{}) error {
	m.mu.RLock()
	conn := m.conn
	state := m.state
	m.mu.RUnlock()

	if state != StateConnected || conn == nil {
		log.Debug("realtime: dropped %s while %s", event, state)
		return nil
	}

	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", event, err)
		}
		data = raw
	}

	frame, err := json.Marshal(&Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := conn.WriteMessage(frame); err != nil {
		// Fire-and-forget: the read loop will notice the severance
		log.Warn("realtime: write %s failed: %v", event, err)
	}
	return nil
}

// Subscribe registers a handler for an inbound event and returns a
// subscription id for Unsubscribe. Multiple handlers per event are allowed.
func (m *Manager) Subscribe(event string, h Handler) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSubId++
	m.handlers[event] = append(m.handlers[event], handlerEntry{id: m.nextSubId, fn: h})
	return m.nextSubId
}

// Unsubscribe removes a previously registered handler
func (m *Manager) Unsubscribe(event string, id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.handlers[event]
	for i, e := range entries {
		if e.id == id {
			m.handlers[event] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// IsOnline reports whether a user is in the presence set
func (m *Manager) IsOnline(userId string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.online[userId]
	return ok
}

// OnlineUsers returns a copy of the presence set
func (m *Manager) OnlineUsers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.online))
	for id := range m.online {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) endpoint(token string) string {
	return m.opts.URL + "?token=" + url.QueryEscape(token)
}

// closeConnLocked closes the active conn and fences its read loop
func (m *Manager) closeConnLocked() {
	m.gen++
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}

func (m *Manager) clearPresenceLocked() {
	m.online = make(map[string]struct{})
}

func (m *Manager) notifyState(s State) {
	m.mu.RLock()
	cbs := make([]func(State), len(m.stateCbs))
	copy(cbs, m.stateCbs)
	m.mu.RUnlock()
	for _, cb := range cbs {
		cb(s)
	}
}

// readLoop consumes inbound frames until the connection is severed, then
// hands off to the bounded reconnect loop. Exactly one readLoop is live per
// generation.
func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		for {
			data, err := conn.ReadMessage()
			if err != nil {
				break
			}

			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				log.Debug("realtime: bad frame: %v", err)
				continue
			}
			m.dispatch(env)
		}

		next, ok := m.reconnect(gen)
		if !ok {
			return
		}
		conn = next
	}
}

// reconnect retries the dial with increasing delay up to the attempt cap.
// Returns false when the loop must stop: superseded, intentionally closed,
// or attempts exhausted (which surfaces as Disconnected).
func (m *Manager) reconnect(gen uint64) (Conn, bool) {
	m.mu.Lock()
	if m.gen != gen || m.intentional {
		m.mu.Unlock()
		return nil, false
	}
	m.conn = nil
	token := m.token
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if m.gen != gen || m.intentional {
			m.mu.Unlock()
			return nil, false
		}
		if m.attempts >= m.opts.MaxAttempts {
			m.state = StateDisconnected
			m.clearPresenceLocked()
			m.mu.Unlock()
			m.notifyState(StateDisconnected)
			log.Warn("realtime: gave up after %d reconnect attempts", m.opts.MaxAttempts)
			return nil, false
		}
		m.attempts++
		attempt := m.attempts
		m.state = StateReconnecting
		m.mu.Unlock()
		m.notifyState(StateReconnecting)

		m.sleep(m.retryDelay(attempt))

		conn, err := m.opts.Dialer(context.Background(), m.endpoint(token))
		if err != nil {
			log.Debug("realtime: reconnect attempt %d failed: %v", attempt, err)
			continue
		}

		m.mu.Lock()
		if m.gen != gen || m.intentional {
			m.mu.Unlock()
			conn.Close()
			return nil, false
		}
		m.conn = conn
		m.state = StateConnected
		m.attempts = 0
		m.mu.Unlock()
		m.notifyState(StateConnected)
		return conn, true
	}
}

// retryDelay doubles the base delay per attempt, capped at the ceiling, so
// the delay sequence is non-decreasing.
func (m *Manager) retryDelay(attempt int) time.Duration {
	d := m.opts.RetryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= m.opts.RetryDelayMax {
			return m.opts.RetryDelayMax
		}
	}
	if d > m.opts.RetryDelayMax {
		return m.opts.RetryDelayMax
	}
	return d
}

// dispatch applies presence events to the manager-owned set, then fans the
// envelope out to subscribers in registration order.
func (m *Manager) dispatch(env Envelope) {
	switch env.Event {
	case EventUsersOnline:
		var ids []string
		if err := json.Unmarshal(env.Data, &ids); err != nil {
			log.Debug("realtime: bad presence snapshot: %v", err)
		} else {
			m.mu.Lock()
			m.online = make(map[string]struct{}, len(ids))
			for _, id := range ids {
				m.online[id] = struct{}{}
			}
			m.mu.Unlock()
		}
	case EventUserOnline:
		var p PresencePayload
		if json.Unmarshal(env.Data, &p) == nil && p.UserId != "" {
			m.mu.Lock()
			m.online[p.UserId] = struct{}{}
			m.mu.Unlock()
		}
	case EventUserOffline:
		var p PresencePayload
		if json.Unmarshal(env.Data, &p) == nil && p.UserId != "" {
			m.mu.Lock()
			delete(m.online, p.UserId)
			m.mu.Unlock()
		}
	}

	m.mu.RLock()
	entries := make([]handlerEntry, len(m.handlers[env.Event]))
	copy(entries, m.handlers[env.Event])
	m.mu.RUnlock()

	for _, e := range entries {
		m.safeCall(env.Event, e.fn, env.Data)
	}
}

func (m *Manager) safeCall(event string, h Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("realtime: handler panic on %s: %v", event, r)
		}
	}()
	h(data)
}
