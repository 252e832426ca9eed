package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_RingDropsOldestOnOverflow(t *testing.T) {
	e := NewEmitter(2)
	e.EmitSystemEvent("a", nil)
	e.EmitSystemEvent("b", nil)
	e.EmitSystemEvent("c", nil)

	e.mu.Lock()
	defer e.mu.Unlock()
	require.Len(t, e.ring, 2)
	assert.Equal(t, "b", e.ring[0].Kind)
	assert.Equal(t, "c", e.ring[1].Kind)
}

func TestEmitter_FlushFansOutToSubscribers(t *testing.T) {
	e := NewEmitter(10)
	ch := e.Subscribe("sub-1", 4)

	e.EmitClientEvent("connected", "client-1", nil)
	e.Flush()

	select {
	case ev := <-ch:
		assert.Equal(t, CategoryClient, ev.Category)
		assert.Equal(t, "client-1", ev.ClientID)
	case <-time.After(time.Second):
		t.Fatal("expected a drained event")
	}
}

func TestEmitter_UnsubscribeClosesChannel(t *testing.T) {
	e := NewEmitter(10)
	ch := e.Subscribe("sub-1", 1)
	e.Unsubscribe("sub-1")

	_, ok := <-ch
	assert.False(t, ok)
}
