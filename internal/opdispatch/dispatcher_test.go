package opdispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
	"github.com/novelbytelabs/arqonbus/internal/registry"
	"github.com/novelbytelabs/arqonbus/internal/storage"
)

type capturingSender struct {
	sent [][]byte
}

func (c *capturingSender) Send(data []byte) error {
	c.sent = append(c.sent, data)
	return nil
}
func (c *capturingSender) Close() error { return nil }

func TestDispatchRoundRobin_PublishesToStream(t *testing.T) {
	ops := NewRegistry()
	ops.Join("op-1", "verify")
	clients := registry.New()
	backend := storage.NewMemoryBackend(10)

	d := New(ops, clients, backend, NewCollector())
	result, err := d.DispatchRoundRobin(context.Background(), "verify", envelope.New(envelope.KindCommand))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reached)

	tasks, err := backend.ReadGroup(context.Background(), "arqonbus:group:verify", "verify", "op-1", 10, time.Second)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestDispatchRoundRobin_NoOperatorsErrors(t *testing.T) {
	ops := NewRegistry()
	clients := registry.New()
	backend := storage.NewMemoryBackend(10)

	d := New(ops, clients, backend, NewCollector())
	_, err := d.DispatchRoundRobin(context.Background(), "verify", envelope.New(envelope.KindCommand))
	assert.Error(t, err)
}

func TestDispatchCompeting_SelectorPicksWinner(t *testing.T) {
	ops := NewRegistry()
	ops.Join("op-a", "verify")
	ops.Join("op-b", "verify")
	clients := registry.New()
	clients.Register("op-a", "operator", &capturingSender{})
	clients.Register("op-b", "operator", &capturingSender{})

	d := New(ops, clients, storage.NewMemoryBackend(10), NewCollector())

	task := envelope.New(envelope.KindCommand)
	task.Command = "verify_claim"

	selector := func(taskID string, results []Result, _ map[string]any) (Result, bool) {
		for _, r := range results {
			if verdict, _ := r.Payload["verdict"].(string); verdict == "PASS" {
				return r, true
			}
		}
		return Result{}, false
	}

	done := make(chan Outcome, 1)
	go func() {
		outcome, _ := d.DispatchCompeting("verify", task, envelope.WireJSON, time.Second, selector)
		done <- outcome
	}()

	d.SubmitResult(task.ID, "op-b", envelope.Value{"verdict": "FAIL"})
	d.SubmitResult(task.ID, "op-a", envelope.Value{"verdict": "PASS"})

	outcome := <-done
	require.NotNil(t, outcome.Winner)
	assert.Equal(t, "op-a", outcome.Winner.OperatorID)
}

func TestDispatchCompeting_TimeoutYieldsNoWinner(t *testing.T) {
	ops := NewRegistry()
	ops.Join("op-a", "verify")
	clients := registry.New()
	clients.Register("op-a", "operator", &capturingSender{})

	d := New(ops, clients, storage.NewMemoryBackend(10), NewCollector())
	task := envelope.New(envelope.KindCommand)

	outcome, err := d.DispatchCompeting("verify", task, envelope.WireJSON, 20*time.Millisecond, nil)
	require.NoError(t, err)
	assert.True(t, outcome.NoWinner)
}

func TestDispatchBroadcast_ReachesAllMembers(t *testing.T) {
	ops := NewRegistry()
	ops.Join("op-a", "verify")
	ops.Join("op-b", "verify")
	clients := registry.New()
	clients.Register("op-a", "operator", &capturingSender{})
	clients.Register("op-b", "operator", &capturingSender{})

	d := New(ops, clients, storage.NewMemoryBackend(10), NewCollector())
	result, err := d.DispatchBroadcast("verify", envelope.New(envelope.KindCommand), envelope.WireJSON)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Reached)
}
