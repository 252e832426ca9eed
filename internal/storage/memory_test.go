package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

func TestMemoryBackend_AppendAndHistoryOrdering(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(10)

	for i := 0; i < 3; i++ {
		env := envelope.New(envelope.KindMessage)
		env.Room, env.Channel = "lobby", "general"
		_, err := b.Append(ctx, env)
		require.NoError(t, err)
	}

	records, err := b.History(ctx, "lobby", "general", 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.True(t, records[0].StoredAt.After(records[2].StoredAt) || records[0].StoredAt.Equal(records[2].StoredAt))
}

func TestMemoryBackend_RingCapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(2)

	for i := 0; i < 3; i++ {
		env := envelope.New(envelope.KindMessage)
		env.Room = "lobby"
		_, err := b.Append(ctx, env)
		require.NoError(t, err)
	}

	records, err := b.History(ctx, "lobby", "", 10, nil, nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMemoryBackend_GroupDispatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(10)
	require.NoError(t, b.EnsureGroup(ctx, "tasks", "workers"))

	env := envelope.New(envelope.KindCommand)
	env.Command = "do_work"
	id, err := b.Publish(ctx, "tasks", env)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	tasks, err := b.ReadGroup(ctx, "tasks", "workers", "consumer-1", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	pending, err := b.Pending(ctx, "tasks", "workers")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, b.Ack(ctx, "tasks", "workers", tasks[0].ID))
	pending, err = b.Pending(ctx, "tasks", "workers")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMemoryBackend_ClaimReassignsIdleTask(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(10)
	require.NoError(t, b.EnsureGroup(ctx, "tasks", "workers"))

	env := envelope.New(envelope.KindCommand)
	_, err := b.Publish(ctx, "tasks", env)
	require.NoError(t, err)

	tasks, err := b.ReadGroup(ctx, "tasks", "workers", "consumer-1", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	claimed, err := b.Claim(ctx, "tasks", "workers", "consumer-2", 0, []string{tasks[0].ID})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
}
