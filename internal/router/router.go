// Package router selects the recipients for an outbound envelope and
// tracks the broker's routing error rate.
package router

import (
	"sync/atomic"

	"github.com/novelbytelabs/arqonbus/internal/apperr"
	"github.com/novelbytelabs/arqonbus/internal/envelope"
	"github.com/novelbytelabs/arqonbus/internal/registry"
	"github.com/novelbytelabs/arqonbus/internal/rooms"
)

// degradedThreshold is the routing error rate above which Health
// reports the router as degraded.
const degradedThreshold = 0.05

// Router resolves an envelope's routing hints into concrete recipients.
// It depends on both the client registry and the room tree but never
// acquires their locks itself — it calls their already-synchronized
// methods, so it introduces no additional lock ordering of its own.
type Router struct {
	clients *registry.Registry
	rooms   *rooms.Registry

	routed uint64
	errors uint64
}

func New(clients *registry.Registry, roomReg *rooms.Registry) *Router {
	return &Router{clients: clients, rooms: roomReg}
}

// Resolve returns the set of clients that should receive env, excluding
// the sender. A direct send (ToClient set) bypasses room/channel
// resolution entirely.
func (r *Router) Resolve(env *envelope.Envelope) ([]*registry.Client, *apperr.Error) {
	if env.ToClient != "" {
		target, ok := r.clients.Get(env.ToClient)
		if !ok {
			r.recordError()
			return nil, apperr.New(apperr.CodeRoomNotFound, "target client not connected")
		}
		r.recordSuccess()
		return []*registry.Client{target}, nil
	}

	switch {
	case env.Room != "" && env.Channel != "":
		ch, ok := r.rooms.GetChannel(env.Room, env.Channel)
		if !ok {
			r.recordError()
			return nil, apperr.New(apperr.CodeChannelNotFound, "channel not found")
		}
		r.recordSuccess()
		return r.resolveIDs(ch.Members(), env.FromClient), nil

	case env.Room != "":
		channels, err := r.rooms.ListChannels(env.Room)
		if err != nil {
			r.recordError()
			return nil, apperr.New(apperr.CodeRoomNotFound, "room not found")
		}
		seen := make(map[string]struct{})
		var ids []string
		for _, ch := range channels {
			for _, id := range ch.Members() {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
		r.recordSuccess()
		return r.resolveIDs(ids, env.FromClient), nil

	default:
		r.recordSuccess()
		return r.resolveGlobal(env.FromClient), nil
	}
}

func (r *Router) resolveIDs(ids []string, exclude string) []*registry.Client {
	out := make([]*registry.Client, 0, len(ids))
	for _, id := range ids {
		if id == exclude {
			continue
		}
		if c, ok := r.clients.Get(id); ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *Router) resolveGlobal(exclude string) []*registry.Client {
	all := r.clients.Snapshot()
	out := make([]*registry.Client, 0, len(all))
	for _, c := range all {
		if c.ID == exclude {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *Router) recordSuccess() { atomic.AddUint64(&r.routed, 1) }
func (r *Router) recordError()   { atomic.AddUint64(&r.routed, 1); atomic.AddUint64(&r.errors, 1) }

// ErrorRate returns the fraction of routing attempts that have failed
// since the router was created.
func (r *Router) ErrorRate() float64 {
	total := atomic.LoadUint64(&r.routed)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&r.errors)) / float64(total)
}

// Status reports router health for the status command.
type Status struct {
	ErrorRate float64
	Degraded  bool
}

func (r *Router) Health() Status {
	rate := r.ErrorRate()
	return Status{ErrorRate: rate, Degraded: rate > degradedThreshold}
}
