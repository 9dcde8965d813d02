package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Conn fed by tests
type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, errors.New("connection severed")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection severed")
	default:
	}
	c.mu.Lock()
	c.writes = append(c.writes, data)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// sever simulates the server dropping the connection
func (c *fakeConn) sever() { c.Close() }

// push delivers an inbound envelope to the read loop
func (c *fakeConn) push(t *testing.T, event string, payload interface{}) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		data = raw
	}
	frame, err := json.Marshal(&Envelope{Event: event, Data: data})
	require.NoError(t, err)
	select {
	case c.in <- frame:
	case <-time.After(time.Second):
		t.Fatal("push timed out")
	}
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// scriptDialer records every dial and lets tests fail chosen attempts
type scriptDialer struct {
	mu    sync.Mutex
	urls  []string
	conns []*fakeConn
	fail  func(call int) bool
}

func (d *scriptDialer) dial(ctx context.Context, rawURL string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	call := len(d.urls)
	d.urls = append(d.urls, rawURL)
	if d.fail != nil && d.fail(call) {
		return nil, errors.New("dial refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *scriptDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *scriptDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func newTestManager(d *scriptDialer) *Manager {
	m := NewManager(Options{
		URL:    "ws://test/ws",
		Dialer: d.dial,
	})
	m.sleep = func(time.Duration) {}
	return m
}

func TestManager_Connect(t *testing.T) {
	t.Run("empty credential never dials", func(t *testing.T) {
		d := &scriptDialer{}
		m := newTestManager(d)
		assert.ErrorIs(t, m.Connect(context.Background(), ""), ErrNoCredential)
		assert.Equal(t, 0, d.dialCount())
		assert.Equal(t, StateDisconnected, m.State())
	})

	t.Run("successful connect", func(t *testing.T) {
		d := &scriptDialer{}
		m := newTestManager(d)

		var transitions []State
		var mu sync.Mutex
		m.OnStateChange(func(s State) {
			mu.Lock()
			transitions = append(transitions, s)
			mu.Unlock()
		})

		require.NoError(t, m.Connect(context.Background(), "tok-1"))
		assert.Equal(t, StateConnected, m.State())
		assert.Contains(t, d.urls[0], "token=tok-1")

		mu.Lock()
		assert.Equal(t, []State{StateConnecting, StateConnected}, transitions)
		mu.Unlock()
	})

	t.Run("idempotent while connected", func(t *testing.T) {
		d := &scriptDialer{}
		m := newTestManager(d)
		require.NoError(t, m.Connect(context.Background(), "tok-1"))
		require.NoError(t, m.Connect(context.Background(), "tok-1"))
		assert.Equal(t, 1, d.dialCount())
	})

	t.Run("credential change tears down and redials", func(t *testing.T) {
		d := &scriptDialer{}
		m := newTestManager(d)
		require.NoError(t, m.Connect(context.Background(), "tok-1"))
		require.NoError(t, m.Connect(context.Background(), "tok-2"))

		assert.Equal(t, 2, d.dialCount())
		assert.Contains(t, d.urls[1], "token=tok-2")
		select {
		case <-d.conn(0).closed:
		case <-time.After(time.Second):
			t.Fatal("old connection was not closed")
		}
	})

	t.Run("dial failure surfaces as Disconnected", func(t *testing.T) {
		d := &scriptDialer{fail: func(int) bool { return true }}
		m := newTestManager(d)
		err := m.Connect(context.Background(), "tok-1")
		require.Error(t, err)
		assert.Equal(t, StateDisconnected, m.State())
	})
}

func TestManager_Emit(t *testing.T) {
	d := &scriptDialer{}
	m := newTestManager(d)

	t.Run("dropped while disconnected", func(t *testing.T) {
		require.NoError(t, m.Emit(EventMessageSend, &RoomPayload{ConversationId: "c1"}))
	})

	t.Run("framed and written while connected", func(t *testing.T) {
		require.NoError(t, m.Connect(context.Background(), "tok-1"))
		require.NoError(t, m.Emit(EventRoomJoin, &RoomPayload{ConversationId: "c1"}))

		writes := d.conn(0).written()
		require.Len(t, writes, 1)

		var env Envelope
		require.NoError(t, json.Unmarshal(writes[0], &env))
		assert.Equal(t, EventRoomJoin, env.Event)
		var p RoomPayload
		require.NoError(t, json.Unmarshal(env.Data, &p))
		assert.Equal(t, "c1", p.ConversationId)
	})

	t.Run("unmarshalable payload is an error", func(t *testing.T) {
		assert.Error(t, m.Emit(EventRoomJoin, func() {}))
	})
}

func TestManager_Dispatch(t *testing.T) {
	d := &scriptDialer{}
	m := newTestManager(d)

	got := make(chan json.RawMessage, 4)
	m.Subscribe("message:new", func(data json.RawMessage) { got <- data })

	require.NoError(t, m.Connect(context.Background(), "tok-1"))
	conn := d.conn(0)

	t.Run("events reach subscribers in order", func(t *testing.T) {
		conn.push(t, "message:new", map[string]string{"id": "m1"})
		conn.push(t, "message:new", map[string]string{"id": "m2"})

		first := <-got
		second := <-got
		assert.Contains(t, string(first), "m1")
		assert.Contains(t, string(second), "m2")
	})

	t.Run("a panicking handler does not take the loop down", func(t *testing.T) {
		m.Subscribe("boom", func(json.RawMessage) { panic("handler bug") })
		after := make(chan struct{}, 1)
		m.Subscribe("boom", func(json.RawMessage) { after <- struct{}{} })

		conn.push(t, "boom", nil)
		select {
		case <-after:
		case <-time.After(time.Second):
			t.Fatal("second handler never ran after the panic")
		}

		// The loop is still alive
		conn.push(t, "message:new", map[string]string{"id": "m3"})
		assert.Contains(t, string(<-got), "m3")
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		seen := make(chan struct{}, 1)
		id := m.Subscribe("quiet", func(json.RawMessage) { seen <- struct{}{} })
		m.Unsubscribe("quiet", id)

		conn.push(t, "quiet", nil)
		conn.push(t, "message:new", map[string]string{"id": "m4"})
		<-got // the later event arrived, so "quiet" had its chance
		select {
		case <-seen:
			t.Fatal("unsubscribed handler was called")
		default:
		}
	})
}

func TestManager_Presence(t *testing.T) {
	d := &scriptDialer{}
	m := newTestManager(d)
	require.NoError(t, m.Connect(context.Background(), "tok-1"))
	conn := d.conn(0)

	applied := make(chan struct{}, 1)
	m.Subscribe(EventUsersOnline, func(json.RawMessage) { applied <- struct{}{} })
	m.Subscribe(EventUserOnline, func(json.RawMessage) { applied <- struct{}{} })
	m.Subscribe(EventUserOffline, func(json.RawMessage) { applied <- struct{}{} })

	t.Run("snapshot replaces the set", func(t *testing.T) {
		conn.push(t, EventUsersOnline, []string{"u1", "u2"})
		<-applied
		assert.True(t, m.IsOnline("u1"))
		assert.True(t, m.IsOnline("u2"))
		assert.Len(t, m.OnlineUsers(), 2)

		conn.push(t, EventUsersOnline, []string{"u3"})
		<-applied
		assert.False(t, m.IsOnline("u1"))
		assert.True(t, m.IsOnline("u3"))
	})

	t.Run("incremental online and offline", func(t *testing.T) {
		conn.push(t, EventUserOnline, &PresencePayload{UserId: "u4"})
		<-applied
		assert.True(t, m.IsOnline("u4"))

		conn.push(t, EventUserOffline, &PresencePayload{UserId: "u4"})
		<-applied
		assert.False(t, m.IsOnline("u4"))

		// Offline for an absent user is a no-op
		conn.push(t, EventUserOffline, &PresencePayload{UserId: "ghost"})
		<-applied
	})

	t.Run("cleared on intentional disconnect", func(t *testing.T) {
		m.Disconnect()
		assert.Empty(t, m.OnlineUsers())
	})
}

func TestManager_Reconnect(t *testing.T) {
	t.Run("recovers on a later attempt", func(t *testing.T) {
		d := &scriptDialer{fail: func(call int) bool { return call == 1 || call == 2 }}
		m := newTestManager(d)

		var delays []time.Duration
		var mu sync.Mutex
		m.sleep = func(dl time.Duration) {
			mu.Lock()
			delays = append(delays, dl)
			mu.Unlock()
		}

		require.NoError(t, m.Connect(context.Background(), "tok-1"))
		d.conn(0).sever()

		require.Eventually(t, func() bool {
			return m.State() == StateConnected && d.dialCount() == 4
		}, time.Second, time.Millisecond)

		mu.Lock()
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
		mu.Unlock()

		// The replacement connection carries the session credential
		assert.Contains(t, d.urls[3], "token=tok-1")

		// And the new conn serves traffic
		got := make(chan struct{}, 1)
		m.Subscribe("ping", func(json.RawMessage) { got <- struct{}{} })
		d.conn(1).push(t, "ping", nil)
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatal("replacement connection is not being read")
		}
	})

	t.Run("gives up after the attempt cap", func(t *testing.T) {
		d := &scriptDialer{fail: func(call int) bool { return call > 0 }}
		m := newTestManager(d)

		var delays []time.Duration
		var mu sync.Mutex
		m.sleep = func(dl time.Duration) {
			mu.Lock()
			delays = append(delays, dl)
			mu.Unlock()
		}

		require.NoError(t, m.Connect(context.Background(), "tok-1"))
		conn := d.conn(0)
		conn.push(t, EventUsersOnline, []string{"u1", "u2"})
		require.Eventually(t, func() bool { return m.IsOnline("u1") }, time.Second, time.Millisecond)

		conn.sever()

		require.Eventually(t, func() bool {
			return m.State() == StateDisconnected
		}, time.Second, time.Millisecond)

		// 1 initial dial + exactly 5 retries, never a 6th
		assert.Equal(t, 6, d.dialCount())
		mu.Lock()
		assert.Equal(t, []time.Duration{
			time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second,
		}, delays, "delay doubles from the base and caps at the ceiling")
		mu.Unlock()

		// Exhaustion clears presence along with the session
		assert.Empty(t, m.OnlineUsers())

		// A manual Connect starts over with fresh attempts
		d.fail = nil
		require.NoError(t, m.Connect(context.Background(), "tok-1"))
		assert.Equal(t, StateConnected, m.State())
	})

	t.Run("intentional disconnect stops the retry loop", func(t *testing.T) {
		d := &scriptDialer{fail: func(call int) bool { return call > 0 }}
		m := newTestManager(d)

		released := make(chan struct{})
		var once sync.Once
		m.sleep = func(time.Duration) {
			once.Do(func() { close(released) })
		}

		require.NoError(t, m.Connect(context.Background(), "tok-1"))
		d.conn(0).sever()
		<-released
		m.Disconnect()

		require.Eventually(t, func() bool {
			return m.State() == StateDisconnected
		}, time.Second, time.Millisecond)

		count := d.dialCount()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, count, d.dialCount(), "no dials after an intentional disconnect")
	})
}

func TestManager_RetryDelay(t *testing.T) {
	m := NewManager(Options{RetryDelay: time.Second, RetryDelayMax: 5 * time.Second})
	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second,
	}
	for i, w := range want {
		if got := m.retryDelay(i + 1); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestManager_Endpoint(t *testing.T) {
	m := NewManager(Options{URL: "ws://host/ws"})
	assert.Equal(t, "ws://host/ws?token=a+b%2Bc", m.endpoint("a b+c"))
}
