package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
	"github.com/novelbytelabs/arqonbus/internal/registry"
	"github.com/novelbytelabs/arqonbus/internal/rooms"
)

type discardSender struct{}

func (discardSender) Send([]byte) error { return nil }
func (discardSender) Close() error      { return nil }

func TestResolve_ChannelScoped(t *testing.T) {
	clients := registry.New()
	clients.Register("alice", "client", discardSender{})
	clients.Register("bob", "client", discardSender{})

	roomReg := rooms.NewRegistry()
	ch := roomReg.EnsureChannel("lobby", "general", "")
	ch.Join("alice")
	ch.Join("bob")

	r := New(clients, roomReg)
	env := envelope.New(envelope.KindMessage)
	env.Room, env.Channel, env.FromClient = "lobby", "general", "alice"

	recipients, appErr := r.Resolve(env)
	require.Nil(t, appErr)
	require.Len(t, recipients, 1)
	assert.Equal(t, "bob", recipients[0].ID)
}

func TestResolve_MissingChannelRecordsError(t *testing.T) {
	clients := registry.New()
	roomReg := rooms.NewRegistry()
	roomReg.CreateRoom("lobby", "")

	r := New(clients, roomReg)
	env := envelope.New(envelope.KindMessage)
	env.Room, env.Channel = "lobby", "missing"

	_, appErr := r.Resolve(env)
	require.NotNil(t, appErr)
	assert.Equal(t, 1.0, r.ErrorRate())
}

func TestResolve_DirectSend(t *testing.T) {
	clients := registry.New()
	clients.Register("bob", "client", discardSender{})
	roomReg := rooms.NewRegistry()

	r := New(clients, roomReg)
	env := envelope.New(envelope.KindMessage)
	env.ToClient = "bob"

	recipients, appErr := r.Resolve(env)
	require.Nil(t, appErr)
	require.Len(t, recipients, 1)
	assert.Equal(t, "bob", recipients[0].ID)
}

func TestResolve_GlobalExcludesSender(t *testing.T) {
	clients := registry.New()
	clients.Register("alice", "client", discardSender{})
	clients.Register("bob", "client", discardSender{})
	roomReg := rooms.NewRegistry()

	r := New(clients, roomReg)
	env := envelope.New(envelope.KindMessage)
	env.FromClient = "alice"

	recipients, appErr := r.Resolve(env)
	require.Nil(t, appErr)
	require.Len(t, recipients, 1)
	assert.Equal(t, "bob", recipients[0].ID)
}

func TestHealth_DegradesAboveFivePercentErrors(t *testing.T) {
	clients := registry.New()
	roomReg := rooms.NewRegistry()
	r := New(clients, roomReg)

	for i := 0; i < 18; i++ {
		r.recordSuccess()
	}
	r.recordError()

	assert.True(t, r.Health().Degraded)
}
