// Package rooms implements the two-level room/channel namespace: rooms
// are created on demand or explicitly, channels live inside exactly one
// room, and a single global structural lock serializes creation and
// deletion while per-channel locks protect membership churn.
package rooms

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Room is a named collection of channels. Membership itself lives on the
// Channel, not the Room; a client is "in" a room only in the derived
// sense of being in one of its channels.
type Room struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time

	channels map[string]*Channel
}

func newRoom(name, description string) *Room {
	return &Room{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		channels:    make(map[string]*Channel),
	}
}

// Registry owns the full room tree. Its mutex is the "structural lock"
// referenced elsewhere: anything that adds or removes a room or channel
// takes it; membership changes within an existing channel do not.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// CreateRoom creates a room if it does not already exist. Re-creating an
// existing room name is not an error; it returns the existing room.
func (r *Registry) CreateRoom(name, description string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rooms[name]; ok {
		return existing
	}
	room := newRoom(name, description)
	r.rooms[name] = room
	return room
}

// GetRoom returns the room by name, if it exists.
func (r *Registry) GetRoom(name string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[name]
	return room, ok
}

// DeleteRoom removes a room and every channel inside it. Deleting a
// room that does not exist is a no-op, not an error.
func (r *Registry) DeleteRoom(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, name)
}

// ListRooms snapshots the current room set.
func (r *Registry) ListRooms() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

// EnsureChannel returns the named channel, creating both the room and
// channel on first use if either is missing.
func (r *Registry) EnsureChannel(roomName, channelName, description string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomName]
	if !ok {
		room = newRoom(roomName, "")
		r.rooms[roomName] = room
	}
	ch, ok := room.channels[channelName]
	if !ok {
		ch = newChannel(roomName, channelName, description)
		room.channels[channelName] = ch
	}
	return ch
}

// CreateChannel explicitly creates a channel inside an existing room. It
// returns an error if the room does not exist; creating a channel that
// already exists returns the existing one.
func (r *Registry) CreateChannel(roomName, channelName, description string) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomName]
	if !ok {
		return nil, fmt.Errorf("rooms: room %q does not exist", roomName)
	}
	if ch, ok := room.channels[channelName]; ok {
		return ch, nil
	}
	ch := newChannel(roomName, channelName, description)
	room.channels[channelName] = ch
	return ch, nil
}

// DeleteChannel removes a channel from its room. No-op if either the
// room or the channel does not exist.
func (r *Registry) DeleteChannel(roomName, channelName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomName]
	if !ok {
		return
	}
	delete(room.channels, channelName)
}

// GetChannel looks up a channel by (room, channel) name pair.
func (r *Registry) GetChannel(roomName, channelName string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomName]
	if !ok {
		return nil, false
	}
	ch, ok := room.channels[channelName]
	return ch, ok
}

// ListChannels snapshots the channels of one room, erroring if the room
// does not exist.
func (r *Registry) ListChannels(roomName string) ([]*Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomName]
	if !ok {
		return nil, fmt.Errorf("rooms: room %q does not exist", roomName)
	}
	out := make([]*Channel, 0, len(room.channels))
	for _, ch := range room.channels {
		out = append(out, ch)
	}
	return out, nil
}

// LeaveAll removes clientID from every channel in every room. Called on
// disconnect cleanup; it visits every channel, whether or not the
// client joined it.
func (r *Registry) LeaveAll(clientID string) {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	for _, room := range rooms {
		r.mu.RLock()
		channels := make([]*Channel, 0, len(room.channels))
		for _, ch := range room.channels {
			channels = append(channels, ch)
		}
		r.mu.RUnlock()
		for _, ch := range channels {
			ch.Leave(clientID)
		}
	}
}
