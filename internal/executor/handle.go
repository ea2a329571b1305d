package executor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Result is the outcome of a submitted command. For single-root commands
// Roots and Outputs have length one.
type Result struct {
	Roots   []string
	Outputs []string
	// Failed marks roots whose command failed under the Partial policy.
	Failed []bool
	Err    error
}

// Output returns the first root's output.
func (r Result) Output() string {
	if len(r.Outputs) == 0 {
		return ""
	}
	return r.Outputs[0]
}

// Handle tracks one submitted command.
type Handle struct {
	id      string
	cmd     Command
	roots   []string
	onDone  func(Result)
	started atomic.Bool

	once   sync.Once
	done   chan struct{}
	result Result
}

func newHandle(roots []string, cmd Command, onDone func(Result)) *Handle {
	return &Handle{
		id:     uuid.NewString(),
		cmd:    cmd,
		roots:  roots,
		onDone: onDone,
		done:   make(chan struct{}),
	}
}

// ID returns a unique identifier used in logs.
func (h *Handle) ID() string { return h.id }

// Command returns the command this handle runs.
func (h *Handle) Command() Command { return h.cmd }

// Started reports whether the worker has picked the command up.
func (h *Handle) Started() bool { return h.started.Load() }

// Done is closed once the result is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the outcome. Only meaningful after Done is closed.
func (h *Handle) Result() Result {
	<-h.done
	return h.result
}

// Wait blocks until the command completes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// resolve publishes the result exactly once. The callback runs before Done
// closes so a waiter on Done can rely on its side effects.
func (h *Handle) resolve(res Result) {
	h.once.Do(func() {
		h.result = res
		if h.onDone != nil {
			h.onDone(res)
		}
		close(h.done)
	})
}
