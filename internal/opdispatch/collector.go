package opdispatch

import (
	"sync"
	"time"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

// Result is one operator's response to a competing-dispatch task.
type Result struct {
	OperatorID string
	Payload    envelope.Value
}

// Outcome is what a Collect call resolves to: either a selected winner
// or the no_winner sentinel produced by a timeout.
type Outcome struct {
	TaskID   string
	Winner   *Result
	NoWinner bool
}

// Selector picks a winning result from everything collected so far for
// a task. It is called after every new arrival; returning ok=false
// means "keep waiting".
type Selector func(taskID string, results []Result, metadata map[string]any) (Result, bool)

type pendingCollection struct {
	mu      sync.Mutex
	results []Result
	seen    map[string]bool
	notify  chan struct{}
}

// Collector runs the per-task future used by competing dispatch: each
// task gets its own rendezvous point, a timeout, and de-duplication of
// repeat or late responses from the same operator.
type Collector struct {
	mu    sync.Mutex
	tasks map[string]*pendingCollection
}

func NewCollector() *Collector {
	return &Collector{tasks: make(map[string]*pendingCollection)}
}

func (c *Collector) start(taskID string) *pendingCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &pendingCollection{seen: make(map[string]bool), notify: make(chan struct{}, 1)}
	c.tasks[taskID] = p
	return p
}

func (c *Collector) finish(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tasks, taskID)
}

// Submit records operatorID's result for taskID. Only the first result
// from a given operator per task is accepted; later ones (duplicate or
// late) are silently dropped. Submitting for a task with no active
// Collect call is a no-op.
func (c *Collector) Submit(taskID, operatorID string, payload envelope.Value) bool {
	c.mu.Lock()
	p, ok := c.tasks[taskID]
	c.mu.Unlock()
	if !ok {
		return false
	}

	p.mu.Lock()
	if p.seen[operatorID] {
		p.mu.Unlock()
		return false
	}
	p.seen[operatorID] = true
	p.results = append(p.results, Result{OperatorID: operatorID, Payload: payload})
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return true
}

// Collect waits up to timeout for selector to accept a winner among the
// results submitted for taskID, re-evaluating every time a new result
// arrives. A timeout without a winner resolves to Outcome.NoWinner.
func (c *Collector) Collect(taskID string, timeout time.Duration, selector Selector) Outcome {
	p := c.start(taskID)
	defer c.finish(taskID)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		p.mu.Lock()
		snapshot := append([]Result(nil), p.results...)
		p.mu.Unlock()

		if selector != nil {
			if winner, ok := selector(taskID, snapshot, nil); ok {
				w := winner
				return Outcome{TaskID: taskID, Winner: &w}
			}
		}

		select {
		case <-p.notify:
			continue
		case <-deadline.C:
			return Outcome{TaskID: taskID, NoWinner: true}
		}
	}
}

// FirstAcceptable is the default selector: the first result submitted
// wins, regardless of payload content.
func FirstAcceptable(_ string, results []Result, _ map[string]any) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	return results[0], true
}
