package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelbytelabs/arqonbus/internal/config"
	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

type failingBackend struct{}

func (failingBackend) Append(context.Context, *envelope.Envelope) (string, error) {
	return "", errors.New("primary unavailable")
}
func (failingBackend) History(context.Context, string, string, int, *time.Time, *time.Time) ([]Record, error) {
	return nil, errors.New("primary unavailable")
}
func (failingBackend) Health(context.Context) Health { return Health{Backend: "fake", Healthy: false} }
func (failingBackend) Close() error                  { return nil }

func TestDegraded_StrictModePropagatesErrors(t *testing.T) {
	b := Wrap(failingBackend{}, config.StorageStrict, 10)
	_, err := b.Append(context.Background(), envelope.New(envelope.KindMessage))
	assert.Error(t, err)
}

func TestDegraded_DegradedModeFallsBackToMemory(t *testing.T) {
	b := Wrap(failingBackend{}, config.StorageDegraded, 10)
	env := envelope.New(envelope.KindMessage)
	env.Room = "lobby"

	id, err := b.Append(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, env.ID, id)

	health := b.Health(context.Background())
	assert.True(t, health.Degraded)
}
