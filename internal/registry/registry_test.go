package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   [][]byte
	closed bool
}

func (f *fakeSender) Send(data []byte) error {
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeSender) Close() error {
	f.closed = true
	return nil
}

func TestRegister_DuplicateIDClosesPrior(t *testing.T) {
	r := New()
	prevSender := &fakeSender{}
	r.Register("client-1", "client", prevSender)

	newSender := &fakeSender{}
	r.Register("client-1", "client", newSender)

	assert.True(t, prevSender.closed)
	got, ok := r.Get("client-1")
	require.True(t, ok)
	assert.False(t, got.IsClosed())
}

func TestUnregister_MarksClosedAndRemoves(t *testing.T) {
	r := New()
	r.Register("client-1", "client", &fakeSender{})
	r.Unregister("client-1")

	_, ok := r.Get("client-1")
	assert.False(t, ok)
}

func TestSend_AfterCloseFails(t *testing.T) {
	r := New()
	r.Register("client-1", "client", &fakeSender{})
	client, _ := r.Get("client-1")
	r.Unregister("client-1")

	err := client.Send([]byte("hello"))
	assert.Error(t, err)
}

func TestCleanupStale_RemovesOnlyIdleClients(t *testing.T) {
	r := New()
	r.Register("fresh", "client", &fakeSender{})
	r.Register("stale", "client", &fakeSender{})

	stale, _ := r.Get("stale")
	stale.mu.Lock()
	stale.lastSeen = time.Now().UTC().Add(-time.Hour)
	stale.mu.Unlock()

	removed := r.CleanupStale(time.Minute)
	assert.Equal(t, []string{"stale"}, removed)

	_, ok := r.Get("fresh")
	assert.True(t, ok)
}

func TestHealth_CountsClientsAndOperators(t *testing.T) {
	r := New()
	r.Register("client-1", "client", &fakeSender{})
	r.Register("op-1", "operator", &fakeSender{})

	h := r.Health()
	assert.Equal(t, 2, h.TotalConnections)
	assert.Equal(t, 1, h.Clients)
	assert.Equal(t, 1, h.Operators)
}
