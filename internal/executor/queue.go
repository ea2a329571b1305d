package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/logging"
	"github.com/PinkPanter/gitlock/pkg/metrics"
)

// MultiRootPolicy decides what a failing root does to a multi-root command.
type MultiRootPolicy int

const (
	// FailFast aborts the whole command on the first failing root.
	FailFast MultiRootPolicy = iota
	// Partial runs every root and reports failures alongside the successes.
	Partial
)

// ParsePolicy maps a config value onto a policy; anything but "partial" is FailFast.
func ParsePolicy(s string) MultiRootPolicy {
	if s == "partial" {
		return Partial
	}
	return FailFast
}

// Options configures a Queue.
type Options struct {
	Policy  MultiRootPolicy
	Log     *logging.Logger
	Metrics *metrics.Registry
}

// Queue serializes commands onto a single worker goroutine.
type Queue struct {
	runner  Runner
	policy  MultiRootPolicy
	log     *logging.Logger
	metrics *metrics.Registry

	mu      sync.Mutex
	pending []*Handle
	running *Handle
	closed  bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue starts a queue backed by runner. Close must be called to stop the
// worker.
func NewQueue(runner Runner, opts Options) *Queue {
	log := opts.Log
	if log == nil {
		log = logging.Global()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		runner:  runner,
		policy:  opts.Policy,
		log:     log.WithFields(map[string]any{"component": "executor"}),
		metrics: opts.Metrics,
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	q.wg.Add(1)
	go q.loop()
	return q
}

// Submit queues cmd to run in dir. onDone may be nil.
func (q *Queue) Submit(dir string, cmd Command, onDone func(Result)) *Handle {
	return q.enqueue(newHandle([]string{dir}, cmd, onDone))
}

// SubmitMulti queues cmd to run once per root, sequentially, in one slot.
func (q *Queue) SubmitMulti(roots []string, cmd Command, onDone func(Result)) *Handle {
	cp := make([]string, len(roots))
	copy(cp, roots)
	return q.enqueue(newHandle(cp, cmd, onDone))
}

func (q *Queue) enqueue(h *Handle) *Handle {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		h.resolve(Result{Roots: h.roots, Err: errclass.ErrQueueClosed.WithMessage(h.cmd.String())})
		return h
	}
	q.pending = append(q.pending, h)
	depth := len(q.pending)
	q.mu.Unlock()

	q.metrics.SetQueueDepth(depth)
	q.log.Debug("command queued", map[string]any{"handle": h.id, "command": h.cmd.Name, "roots": h.roots, "depth": depth})

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return h
}

// Cancel removes a command that has not started yet. It returns false when
// the command is already running or finished; running processes are never
// pre-empted.
func (q *Queue) Cancel(h *Handle) bool {
	if h == nil {
		return false
	}
	q.mu.Lock()
	idx := -1
	for i, p := range q.pending {
		if p == h {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending[:idx:idx], q.pending[idx+1:]...)
	depth := len(q.pending)
	q.mu.Unlock()

	q.metrics.SetQueueDepth(depth)
	q.metrics.RecordCommand(h.cmd.Name, metrics.OutcomeCanceled, 0)
	q.log.Debug("command cancelled before start", map[string]any{"handle": h.id, "command": h.cmd.Name})
	h.resolve(Result{Roots: h.roots, Err: errclass.ErrCanceled.WithMessage(h.cmd.String())})
	return true
}

// Busy reports whether a command is executing right now.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running != nil
}

// Len returns the number of commands waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close fails every queued command, kills the running process and waits for
// the worker to exit.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, h := range pending {
		h.resolve(Result{Roots: h.roots, Err: errclass.ErrQueueClosed.WithMessage(h.cmd.String())})
	}
	q.cancel()
	q.wg.Wait()
	q.metrics.SetQueueDepth(0)
	return nil
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for {
		h := q.next()
		if h == nil {
			return
		}
		start := time.Now()
		res := q.execute(h)
		q.finish(h, res, time.Since(start))
	}
}

// next blocks until a command is available or the queue is closed.
func (q *Queue) next() *Handle {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil
		}
		if len(q.pending) > 0 {
			h := q.pending[0]
			q.pending = q.pending[1:]
			q.running = h
			h.started.Store(true)
			depth := len(q.pending)
			q.mu.Unlock()
			q.metrics.SetQueueDepth(depth)
			return h
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-q.ctx.Done():
			return nil
		}
	}
}

func (q *Queue) execute(h *Handle) Result {
	res := Result{
		Roots:   h.roots,
		Outputs: make([]string, len(h.roots)),
		Failed:  make([]bool, len(h.roots)),
	}
	q.log.Debug("command started", map[string]any{"handle": h.id, "command": h.cmd.String(), "roots": h.roots})

	var errs error
	failed := 0
	for i, root := range h.roots {
		out, err := q.runner.Run(q.ctx, root, h.cmd)
		if err != nil {
			err = fmt.Errorf("%s in %s: %w", h.cmd.Name, root, err)
			if q.policy == FailFast || len(h.roots) == 1 || errors.Is(err, errclass.ErrCanceled) {
				res.Failed[i] = true
				res.Err = err
				return res
			}
			res.Failed[i] = true
			failed++
			errs = multierr.Append(errs, err)
			continue
		}
		res.Outputs[i] = out
	}

	if errs != nil {
		if failed == len(h.roots) {
			res.Err = errs
		} else {
			res.Err = fmt.Errorf("%w: %w",
				errclass.ErrPartialRefresh.WithMessagef("%d of %d roots failed", failed, len(h.roots)), errs)
		}
	}
	return res
}

func (q *Queue) finish(h *Handle, res Result, elapsed time.Duration) {
	q.mu.Lock()
	q.running = nil
	q.mu.Unlock()

	outcome := metrics.OutcomeSuccess
	switch {
	case res.Err == nil:
	case errors.Is(res.Err, errclass.ErrPartialRefresh):
		outcome = metrics.OutcomePartial
	case errors.Is(res.Err, errclass.ErrCanceled):
		outcome = metrics.OutcomeCanceled
	default:
		outcome = metrics.OutcomeFailure
	}
	q.metrics.RecordCommand(h.cmd.Name, outcome, elapsed)

	fields := map[string]any{"handle": h.id, "command": h.cmd.Name, "elapsed_ms": elapsed.Milliseconds()}
	if res.Err != nil {
		q.log.ErrorErr("command failed", res.Err, fields)
	} else {
		q.log.Debug("command finished", fields)
	}
	h.resolve(res)
}
