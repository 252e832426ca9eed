// Package storage defines the durable/degraded storage contract ArqonBus
// uses for message history and operator task dispatch, plus the
// concrete in-memory, Redis Streams, and PostgreSQL backends.
package storage

import (
	"context"
	"time"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

// Record is one stored envelope plus the time the backend accepted it.
type Record struct {
	Envelope *envelope.Envelope
	StoredAt time.Time
}

// Health reports a backend's operating state for the status command.
type Health struct {
	Backend  string
	Healthy  bool
	Degraded bool
	Detail   string
}

// Backend is the minimum every storage implementation must provide:
// append-only history with bounded, filtered reads.
type Backend interface {
	Append(ctx context.Context, env *envelope.Envelope) (string, error)
	History(ctx context.Context, room, channel string, limit int, since, until *time.Time) ([]Record, error)
	Health(ctx context.Context) Health
	Close() error
}

// Task is one unit of dispatched operator work, delivered from a
// GroupBackend's consumer group.
type Task struct {
	ID       string
	Envelope *envelope.Envelope
}

// PendingTask describes a delivered but not yet acknowledged entry as
// reported by the backend's pending-entries list.
type PendingTask struct {
	ID          string
	Consumer    string
	IdleTime    time.Duration
	DeliveryCnt int64
}

// GroupBackend is the optional capability a Backend may additionally
// implement to support consumer-group task dispatch. The dispatcher
// type-asserts for this interface at construction time and only offers
// round-robin dispatch when it is present; competing and broadcast
// dispatch do not use it.
type GroupBackend interface {
	Backend

	EnsureGroup(ctx context.Context, stream, group string) error
	Publish(ctx context.Context, stream string, env *envelope.Envelope) (string, error)
	ReadGroup(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]Task, error)
	Ack(ctx context.Context, stream, group, id string) error
	Pending(ctx context.Context, stream, group string) ([]PendingTask, error)
	Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids []string) ([]Task, error)
}
