package rooms

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Channel owns membership for one (room, channel) pair. It holds only a
// weak reference (the room name) to its parent room; the registry, not
// the channel, is the source of truth for the room tree.
type Channel struct {
	ID          string
	Name        string
	RoomName    string
	Description string
	CreatedAt   time.Time

	mu           sync.RWMutex
	members      map[string]struct{}
	lastActivity time.Time
	recentMsgs   []time.Time // rolling 24h window, pruned on each RecordMessage
}

func newChannel(roomName, name, description string) *Channel {
	now := time.Now().UTC()
	return &Channel{
		ID:          uuid.NewString(),
		Name:        name,
		RoomName:    roomName,
		Description: description,
		CreatedAt:   now,
		members:     make(map[string]struct{}),
		lastActivity: now,
	}
}

// Join adds a client to the channel. Idempotent.
func (c *Channel) Join(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[clientID] = struct{}{}
	c.lastActivity = time.Now().UTC()
}

// Leave removes a client from the channel. Idempotent: leaving twice, or
// leaving without ever joining, is a no-op.
func (c *Channel) Leave(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.members, clientID)
}

// Has reports whether clientID is currently a member.
func (c *Channel) Has(clientID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.members[clientID]
	return ok
}

// Members snapshots the current member set. Callers must not hold this
// snapshot across a broadcast that might itself call Join/Leave; it is a
// point-in-time copy, matching the "snapshot under the channel lock and
// release before iterating socket sends" rule.
func (c *Channel) Members() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.members))
	for id := range c.members {
		out = append(out, id)
	}
	return out
}

// MemberCount returns the current membership size.
func (c *Channel) MemberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// RecordMessage appends a timestamp to the rolling 24h activity window,
// pruning anything older first.
func (c *Channel) RecordMessage(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = at
	c.recentMsgs = pruneOlderThan(c.recentMsgs, at.Add(-24*time.Hour))
	c.recentMsgs = append(c.recentMsgs, at)
}

// MessageRateLastHour counts messages recorded within the last hour.
func (c *Channel) MessageRateLastHour() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cutoff := time.Now().UTC().Add(-time.Hour)
	n := 0
	for _, t := range c.recentMsgs {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

func (c *Channel) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

func pruneOlderThan(ts []time.Time, cutoff time.Time) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
