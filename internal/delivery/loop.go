// Package delivery runs the per-operator cooperative task delivery
// loop: pull from the group's durable stream and push to the operator's
// socket. The loop does not acknowledge tasks, and the bus has no ack
// command, so delivered tasks stay pending in the consumer group.
package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
	"github.com/novelbytelabs/arqonbus/internal/opdispatch"
	"github.com/novelbytelabs/arqonbus/internal/registry"
	"github.com/novelbytelabs/arqonbus/internal/storage"
)

// blockFor is how long a single ReadGroup call waits for a task before
// returning empty, giving the loop a chance to notice cancellation or
// deregistration.
const blockFor = 5 * time.Second

// Loop pulls tasks for one operator from its group's stream and pushes
// them to that operator's socket. One Loop instance is created per
// registered operator and cancelled when it disconnects.
type Loop struct {
	ops     *opdispatch.Registry
	clients *registry.Registry
	backend storage.GroupBackend
	wire    envelope.Wire
	log     *slog.Logger
}

func NewLoop(ops *opdispatch.Registry, clients *registry.Registry, backend storage.GroupBackend, wire envelope.Wire, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{ops: ops, clients: clients, backend: backend, wire: wire, log: log.With("component", "delivery")}
}

func streamForGroup(group string) string {
	return "arqonbus:group:" + group
}

// Run blocks, delivering tasks to operatorID until ctx is cancelled or
// the operator is no longer registered. It is meant to be launched as
// one goroutine per operator, a child of that connection's task tree.
func (l *Loop) Run(ctx context.Context, operatorID, group string) {
	log := l.log.With("operator_id", operatorID, "group", group)
	stream := streamForGroup(group)

	if err := l.backend.EnsureGroup(ctx, stream, group); err != nil {
		log.Error("ensure consumer group failed", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !l.ops.IsRegistered(operatorID) {
			return
		}

		tasks, err := l.backend.ReadGroup(ctx, stream, group, operatorID, 1, blockFor)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("read group failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, task := range tasks {
			data, err := task.Envelope.Serialize(l.wire)
			if err != nil {
				log.Error("serialize task failed", "error", err, "task_id", task.ID)
				continue
			}
			client, ok := l.clients.Get(operatorID)
			if !ok {
				return
			}
			if err := client.Send(data); err != nil {
				log.Warn("send task failed", "error", err, "task_id", task.ID)
			}
		}
	}
}
