package storage

import (
	"context"
	"sync"
	"time"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
	"github.com/novelbytelabs/arqonbus/internal/ids"
)

// MemoryBackend is a bounded in-process ring buffer. It backs the
// "memory" storage backend choice and also serves as the automatic
// fallback target when a durable backend is configured in degraded
// mode and fails.
type MemoryBackend struct {
	capacity int

	mu      sync.RWMutex
	records []Record

	streams map[string]*memStream
}

func NewMemoryBackend(capacity int) *MemoryBackend {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryBackend{
		capacity: capacity,
		streams:  make(map[string]*memStream),
	}
}

func (m *MemoryBackend) Append(_ context.Context, env *envelope.Envelope) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, Record{Envelope: env, StoredAt: time.Now().UTC()})
	if len(m.records) > m.capacity {
		m.records = m.records[len(m.records)-m.capacity:]
	}
	return env.ID, nil
}

func (m *MemoryBackend) History(_ context.Context, room, channel string, limit int, since, until *time.Time) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Record
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if room != "" && rec.Envelope.Room != room {
			continue
		}
		if channel != "" && rec.Envelope.Channel != channel {
			continue
		}
		if since != nil && rec.StoredAt.Before(*since) {
			continue
		}
		if until != nil && rec.StoredAt.After(*until) {
			continue
		}
		matched = append(matched, rec)
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	return matched, nil
}

func (m *MemoryBackend) Health(context.Context) Health {
	return Health{Backend: "memory", Healthy: true}
}

func (m *MemoryBackend) Close() error { return nil }

// --- consumer-group emulation ---

type pendingEntry struct {
	task          Task
	consumer      string
	deliveredAt   time.Time
	deliveryCount int64
}

type memGroup struct {
	cursor  int
	pending map[string]*pendingEntry
}

type memStream struct {
	mu      sync.Mutex
	entries []Task
	groups  map[string]*memGroup
}

func (m *MemoryBackend) stream(name string) *memStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[name]
	if !ok {
		s = &memStream{groups: make(map[string]*memGroup)}
		m.streams[name] = s
	}
	return s
}

func (m *MemoryBackend) EnsureGroup(_ context.Context, streamName, group string) error {
	s := m.stream(streamName)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group]; !ok {
		s.groups[group] = &memGroup{pending: make(map[string]*pendingEntry)}
	}
	return nil
}

func (m *MemoryBackend) Publish(_ context.Context, streamName string, env *envelope.Envelope) (string, error) {
	s := m.stream(streamName)
	id := ids.New("task")
	s.mu.Lock()
	s.entries = append(s.entries, Task{ID: id, Envelope: env})
	s.mu.Unlock()
	return id, nil
}

func (m *MemoryBackend) ReadGroup(_ context.Context, streamName, group, consumer string, count int, _ time.Duration) ([]Task, error) {
	s := m.stream(streamName)
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[group]
	if !ok {
		g = &memGroup{pending: make(map[string]*pendingEntry)}
		s.groups[group] = g
	}

	var out []Task
	for g.cursor < len(s.entries) && len(out) < count {
		task := s.entries[g.cursor]
		g.cursor++
		g.pending[task.ID] = &pendingEntry{task: task, consumer: consumer, deliveredAt: time.Now().UTC(), deliveryCount: 1}
		out = append(out, task)
	}
	return out, nil
}

func (m *MemoryBackend) Ack(_ context.Context, streamName, group, id string) error {
	s := m.stream(streamName)
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[group]; ok {
		delete(g.pending, id)
	}
	return nil
}

func (m *MemoryBackend) Pending(_ context.Context, streamName, group string) ([]PendingTask, error) {
	s := m.stream(streamName)
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[group]
	if !ok {
		return nil, nil
	}
	now := time.Now().UTC()
	out := make([]PendingTask, 0, len(g.pending))
	for id, p := range g.pending {
		out = append(out, PendingTask{
			ID:          id,
			Consumer:    p.consumer,
			IdleTime:    now.Sub(p.deliveredAt),
			DeliveryCnt: p.deliveryCount,
		})
	}
	return out, nil
}

func (m *MemoryBackend) Claim(_ context.Context, streamName, group, consumer string, minIdle time.Duration, claimIDs []string) ([]Task, error) {
	s := m.stream(streamName)
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[group]
	if !ok {
		return nil, nil
	}
	now := time.Now().UTC()
	var out []Task
	for _, id := range claimIDs {
		p, ok := g.pending[id]
		if !ok || now.Sub(p.deliveredAt) < minIdle {
			continue
		}
		p.consumer = consumer
		p.deliveredAt = now
		p.deliveryCount++
		out = append(out, p.task)
	}
	return out, nil
}
