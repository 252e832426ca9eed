package opdispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
	"github.com/novelbytelabs/arqonbus/internal/registry"
	"github.com/novelbytelabs/arqonbus/internal/storage"
)

// Strategy selects how a dispatched task reaches its group.
type Strategy string

const (
	// StrategyRoundRobin publishes once onto the group's durable
	// stream; consumer-group semantics guarantee exactly one live
	// member receives it.
	StrategyRoundRobin Strategy = "round_robin"
	// StrategyCompeting pushes the task directly to every live member
	// and races their responses through a Collector.
	StrategyCompeting Strategy = "competing"
	// StrategyBroadcast is StrategyCompeting's targeting with no
	// result collection.
	StrategyBroadcast Strategy = "broadcast"
)

// DispatchResult reports how many operators a dispatch call reached.
type DispatchResult struct {
	Reached int
}

// Dispatcher routes tasks to operator groups. Its storage dependency is
// optional: when the active backend does not implement
// storage.GroupBackend, round-robin dispatch is unavailable and callers
// get an explicit error instead of a silent no-op.
type Dispatcher struct {
	ops       *Registry
	clients   *registry.Registry
	backend   storage.GroupBackend
	collector *Collector
}

func New(ops *Registry, clients *registry.Registry, backend storage.Backend, collector *Collector) *Dispatcher {
	gb, _ := backend.(storage.GroupBackend)
	return &Dispatcher{ops: ops, clients: clients, backend: gb, collector: collector}
}

func streamForGroup(group string) string {
	return "arqonbus:group:" + group
}

// DispatchRoundRobin publishes task onto the group's stream for
// exactly-once-within-group delivery by the next available operator.
func (d *Dispatcher) DispatchRoundRobin(ctx context.Context, group string, task *envelope.Envelope) (DispatchResult, error) {
	if d.backend == nil {
		return DispatchResult{}, fmt.Errorf("opdispatch: active storage backend does not support consumer groups")
	}
	if len(d.ops.Members(group)) == 0 {
		return DispatchResult{}, fmt.Errorf("opdispatch: group %q has no live operators", group)
	}
	stream := streamForGroup(group)
	if err := d.backend.EnsureGroup(ctx, stream, group); err != nil {
		return DispatchResult{}, fmt.Errorf("opdispatch: ensure group: %w", err)
	}
	if _, err := d.backend.Publish(ctx, stream, task); err != nil {
		return DispatchResult{}, fmt.Errorf("opdispatch: publish task: %w", err)
	}
	return DispatchResult{Reached: 1}, nil
}

// DispatchBroadcast pushes task directly to every live member of group,
// returning how many sockets actually accepted the frame.
func (d *Dispatcher) DispatchBroadcast(group string, task *envelope.Envelope, wire envelope.Wire) (DispatchResult, error) {
	members := d.ops.Members(group)
	data, err := task.Serialize(wire)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("opdispatch: serialize task: %w", err)
	}
	reached := 0
	for _, op := range members {
		client, ok := d.clients.Get(op.OperatorID)
		if !ok {
			continue
		}
		if client.Send(data) == nil {
			reached++
		}
	}
	return DispatchResult{Reached: reached}, nil
}

// DispatchCompeting pushes task to every live member of group and races
// their responses through the collector, returning whichever Outcome
// the selector accepts first (or no_winner on timeout).
func (d *Dispatcher) DispatchCompeting(group string, task *envelope.Envelope, wire envelope.Wire, timeout time.Duration, selector Selector) (Outcome, error) {
	result, err := d.DispatchBroadcast(group, task, wire)
	if err != nil {
		return Outcome{}, err
	}
	if result.Reached == 0 {
		return Outcome{TaskID: task.ID, NoWinner: true}, nil
	}
	if selector == nil {
		selector = FirstAcceptable
	}
	return d.collector.Collect(task.ID, timeout, selector), nil
}

// SubmitResult feeds one operator's response for a pending competing
// dispatch back into the collector. Called by the bus when it receives
// a response envelope whose request_id matches an in-flight task.
func (d *Dispatcher) SubmitResult(taskID, operatorID string, payload envelope.Value) bool {
	return d.collector.Submit(taskID, operatorID, payload)
}
