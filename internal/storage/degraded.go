package storage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/novelbytelabs/arqonbus/internal/config"
	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

// degraded wraps a primary backend with an in-memory fallback. In
// StorageStrict mode, primary errors propagate unchanged. In
// StorageDegraded mode, a primary failure is absorbed: the operation is
// retried against the in-memory ring, so the broker keeps serving
// instead of failing every request. Fallbacks of Append, History,
// Publish and ReadGroup are counted in DegradedCount; fallbacks of
// EnsureGroup, Ack, Pending and Claim are not counted.
type degraded struct {
	primary  Backend
	fallback *MemoryBackend
	mode     config.StorageMode

	degradedCount uint64
	usingFallback atomic.Bool
}

// Wrap returns a Backend (and, when primary supports it, a GroupBackend)
// that degrades to an in-memory fallback per mode.
func Wrap(primary Backend, mode config.StorageMode, fallbackCapacity int) Backend {
	d := &degraded{primary: primary, mode: mode, fallback: NewMemoryBackend(fallbackCapacity)}
	if pg, ok := primary.(GroupBackend); ok {
		return &degradedGroup{degraded: d, primaryGroup: pg}
	}
	return d
}

func (d *degraded) absorb(err error) bool {
	return err != nil && d.mode == config.StorageDegraded
}

func (d *degraded) Append(ctx context.Context, env *envelope.Envelope) (string, error) {
	id, err := d.primary.Append(ctx, env)
	if err == nil {
		return id, nil
	}
	if !d.absorb(err) {
		return "", err
	}
	atomic.AddUint64(&d.degradedCount, 1)
	d.usingFallback.Store(true)
	return d.fallback.Append(ctx, env)
}

func (d *degraded) History(ctx context.Context, room, channel string, limit int, since, until *time.Time) ([]Record, error) {
	records, err := d.primary.History(ctx, room, channel, limit, since, until)
	if err == nil {
		return records, nil
	}
	if !d.absorb(err) {
		return nil, err
	}
	atomic.AddUint64(&d.degradedCount, 1)
	return d.fallback.History(ctx, room, channel, limit, since, until)
}

func (d *degraded) Health(ctx context.Context) Health {
	h := d.primary.Health(ctx)
	if d.usingFallback.Load() {
		h.Degraded = true
	}
	return h
}

func (d *degraded) Close() error {
	_ = d.fallback.Close()
	return d.primary.Close()
}

// DegradedCount reports how many operations have fallen back to memory
// since startup.
func (d *degraded) DegradedCount() uint64 {
	return atomic.LoadUint64(&d.degradedCount)
}

// degradedGroup additionally degrades consumer-group dispatch when the
// wrapped primary backend supports it.
type degradedGroup struct {
	*degraded
	primaryGroup GroupBackend
}

func (d *degradedGroup) EnsureGroup(ctx context.Context, stream, group string) error {
	if err := d.primaryGroup.EnsureGroup(ctx, stream, group); err != nil {
		if !d.absorb(err) {
			return err
		}
		return d.fallback.EnsureGroup(ctx, stream, group)
	}
	return nil
}

func (d *degradedGroup) Publish(ctx context.Context, stream string, env *envelope.Envelope) (string, error) {
	id, err := d.primaryGroup.Publish(ctx, stream, env)
	if err == nil {
		return id, nil
	}
	if !d.absorb(err) {
		return "", err
	}
	atomic.AddUint64(&d.degraded.degradedCount, 1)
	d.usingFallback.Store(true)
	return d.fallback.Publish(ctx, stream, env)
}

func (d *degradedGroup) ReadGroup(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]Task, error) {
	tasks, err := d.primaryGroup.ReadGroup(ctx, stream, group, consumer, count, block)
	if err == nil {
		return tasks, nil
	}
	if !d.absorb(err) {
		return nil, err
	}
	atomic.AddUint64(&d.degraded.degradedCount, 1)
	return d.fallback.ReadGroup(ctx, stream, group, consumer, count, block)
}

func (d *degradedGroup) Ack(ctx context.Context, stream, group, id string) error {
	if err := d.primaryGroup.Ack(ctx, stream, group, id); err != nil {
		if !d.absorb(err) {
			return err
		}
		return d.fallback.Ack(ctx, stream, group, id)
	}
	return nil
}

func (d *degradedGroup) Pending(ctx context.Context, stream, group string) ([]PendingTask, error) {
	pending, err := d.primaryGroup.Pending(ctx, stream, group)
	if err == nil {
		return pending, nil
	}
	if !d.absorb(err) {
		return nil, err
	}
	return d.fallback.Pending(ctx, stream, group)
}

func (d *degradedGroup) Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids []string) ([]Task, error) {
	tasks, err := d.primaryGroup.Claim(ctx, stream, group, consumer, minIdle, ids)
	if err == nil {
		return tasks, nil
	}
	if !d.absorb(err) {
		return nil, err
	}
	return d.fallback.Claim(ctx, stream, group, consumer, minIdle, ids)
}
