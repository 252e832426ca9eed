package opdispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

func TestCollector_DuplicateSubmitIgnored(t *testing.T) {
	c := NewCollector()
	done := make(chan Outcome, 1)
	go func() {
		done <- c.Collect("task-1", time.Second, func(_ string, results []Result, _ map[string]any) (Result, bool) {
			if len(results) >= 1 {
				return results[0], true
			}
			return Result{}, false
		})
	}()

	time.Sleep(10 * time.Millisecond)
	c.Submit("task-1", "op-a", envelope.Value{"n": 1})
	c.Submit("task-1", "op-a", envelope.Value{"n": 2}) // duplicate, should be dropped

	outcome := <-done
	assert.Equal(t, 1, outcome.Winner.Payload["n"])
}

func TestCollector_SubmitWithoutActiveCollectIsNoOp(t *testing.T) {
	c := NewCollector()
	accepted := c.Submit("ghost-task", "op-a", envelope.Value{})
	assert.False(t, accepted)
}
