// Package opdispatch implements the operator registry and the
// round-robin/competing/broadcast task dispatcher built on top of it.
package opdispatch

import (
	"sync"
	"time"
)

// Operator is a worker peer that has declared a capability group. A
// client may belong to at most one group at a time.
type Operator struct {
	OperatorID string // equals the owning client's ID
	Group      string
	JoinedAt   time.Time

	mu             sync.Mutex
	tasksProcessed uint64
}

func (o *Operator) IncrementProcessed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tasksProcessed++
}

func (o *Operator) TasksProcessed() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tasksProcessed
}

// Registry tracks operators by group. It sits below the client registry
// and rooms in lock order, above storage.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Operator
	groups map[string]map[string]*Operator // group -> operatorID -> Operator
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Operator),
		groups: make(map[string]map[string]*Operator),
	}
}

// Join registers operatorID under group, replacing any prior membership
// for that operator (a client belongs to at most one group).
func (r *Registry) Join(operatorID, group string) *Operator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.byID[operatorID]; ok {
		delete(r.groups[prior.Group], operatorID)
	}

	op := &Operator{OperatorID: operatorID, Group: group, JoinedAt: time.Now().UTC()}
	r.byID[operatorID] = op
	if r.groups[group] == nil {
		r.groups[group] = make(map[string]*Operator)
	}
	r.groups[group][operatorID] = op
	return op
}

// Leave unregisters an operator by ID. No-op if it was never registered.
func (r *Registry) Leave(operatorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.byID[operatorID]
	if !ok {
		return
	}
	delete(r.byID, operatorID)
	delete(r.groups[op.Group], operatorID)
}

// Get looks up an operator by ID.
func (r *Registry) Get(operatorID string) (*Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.byID[operatorID]
	return op, ok
}

// Members snapshots the live operators in a group.
func (r *Registry) Members(group string) []*Operator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.groups[group]
	out := make([]*Operator, 0, len(members))
	for _, op := range members {
		out = append(out, op)
	}
	return out
}

// IsRegistered reports whether operatorID is still a live member of its
// claimed group; used by the delivery loop's cooperative exit check.
func (r *Registry) IsRegistered(operatorID string) bool {
	_, ok := r.Get(operatorID)
	return ok
}
