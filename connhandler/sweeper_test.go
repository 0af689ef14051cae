package connhandler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeHandler builds a Handler whose goroutine only understands Close,
// enough to exercise Manager bookkeeping without a real engine connection.
func newFakeHandler(id string) *Handler {
	h := &Handler{
		ID:           id,
		mailbox:      make(chan any, 10),
		lastActivity: time.Now(),
		done:         make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		for msg := range h.mailbox {
			if cmd, ok := msg.(CloseCommand); ok {
				cmd.Reply <- nil
				return
			}
		}
	}()
	return h
}

func TestManager_RegisterGetRemove(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, nil)
	h := newFakeHandler("conn-1")
	m.Register(h)

	got, ok := m.Get("conn-1")
	require.True(t, ok)
	assert.Same(t, h, got)

	m.Remove("conn-1")
	_, ok = m.Get("conn-1")
	assert.False(t, ok)

	require.NoError(t, h.Close())
}

func TestManager_SweepClosesIdleHandlers(t *testing.T) {
	m := NewManager(time.Hour, 10*time.Millisecond, nil)
	h := newFakeHandler("conn-idle")
	h.lastActivity = time.Now().Add(-time.Minute)
	m.Register(h)

	m.sweepOnce()

	_, ok := m.Get("conn-idle")
	assert.False(t, ok)

	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("handler goroutine did not exit after sweep")
	}
}

func TestManager_SweepLeavesActiveHandlers(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, nil)
	h := newFakeHandler("conn-active")
	m.Register(h)

	m.sweepOnce()

	_, ok := m.Get("conn-active")
	assert.True(t, ok)
	require.NoError(t, h.Close())
}
