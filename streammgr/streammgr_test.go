package streammgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStreamID(t *testing.T) {
	require.NoError(t, ValidateStreamID("abc-123_XYZ"))
	require.Error(t, ValidateStreamID(""))
	require.Error(t, ValidateStreamID("has space"))

	tooLong := make([]byte, 65)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	require.Error(t, ValidateStreamID(string(tooLong)))
}

func TestManager_RegisterAcknowledgeCancel(t *testing.T) {
	m := NewManager()
	ctx, ack := m.Register("s1")
	assert.False(t, m.IsCancelled("s1"))

	require.NoError(t, m.Acknowledge("s1"))
	select {
	case <-ack:
	default:
		t.Fatal("expected one ack credit")
	}

	m.Cancel("s1")
	assert.True(t, ctx.Err() != nil)
	assert.False(t, m.IsCancelled("s1")) // removed on cancel, so now unknown
}

func TestManager_AcknowledgeBlocksWhenFull(t *testing.T) {
	m := NewManager()
	_, ack := m.Register("s1")
	require.NoError(t, m.Acknowledge("s1")) // fills the cap-1 channel

	done := make(chan struct{})
	go func() {
		m.Acknowledge("s1") // must block: no one drained the first credit
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Acknowledge should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	<-ack // drain the first credit, unblocking the goroutine
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Acknowledge did not unblock after drain")
	}
}

func TestManager_CancelIdempotentAndUnknownIsNoop(t *testing.T) {
	m := NewManager()
	m.Cancel("nope") // must not panic
	m.Register("s1")
	m.Cancel("s1")
	m.Cancel("s1") // second cancel is a no-op
}

func TestManager_DuplicateRegisterOverwrites(t *testing.T) {
	m := NewManager()
	first, _ := m.Register("dup")
	second, _ := m.Register("dup")
	assert.NotSame(t, first, second)

	m.Cancel("dup") // reaches only the entry that overwrote the first
	assert.Error(t, second.Err())
	assert.NoError(t, first.Err())
}

func TestManager_Cleanup(t *testing.T) {
	m := NewManager()
	m.Register("s1")
	m.Cleanup("s1")
	assert.False(t, m.IsCancelled("s1"))
}
