package executor

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Call is one invocation recorded by FakeRunner.
type Call struct {
	Dir string
	Cmd Command
}

// FakeResponse is what FakeRunner returns for a call.
type FakeResponse struct {
	Output string
	Err    error
}

// FakeRunner is a scriptable Runner for tests. Responses are looked up by
// "<dir> <args>" first, then by args alone; unmatched calls return empty
// output. When Gate is set every call blocks until a value is received from
// it or ctx is done.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string]FakeResponse
	calls     []Call
	Handler   func(dir string, cmd Command) (string, error)
	Gate      chan struct{}
	Started   chan Call
	executing atomic.Bool
}

// NewFakeRunner returns an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: map[string]FakeResponse{}}
}

func fakeKey(dir string, cmd Command) string {
	k := strings.Join(cmd.Args, " ")
	if dir != "" {
		k = dir + " " + k
	}
	return k
}

// Respond scripts the result of cmd in dir; an empty dir matches any dir.
func (f *FakeRunner) Respond(dir string, cmd Command, output string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[fakeKey(dir, cmd)] = FakeResponse{Output: output, Err: err}
}

// Calls returns the recorded invocations in order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times a command name was run.
func (f *FakeRunner) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Cmd.Name == name {
			n++
		}
	}
	return n
}

// Executing reports whether a call is in progress.
func (f *FakeRunner) Executing() bool { return f.executing.Load() }

func (f *FakeRunner) Run(ctx context.Context, dir string, cmd Command) (string, error) {
	f.executing.Store(true)
	defer f.executing.Store(false)

	f.mu.Lock()
	f.calls = append(f.calls, Call{Dir: dir, Cmd: cmd})
	gate, started, handler := f.Gate, f.Started, f.Handler
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- Call{Dir: dir, Cmd: cmd}:
		case <-ctx.Done():
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if handler != nil {
		return handler(dir, cmd)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.responses[fakeKey(dir, cmd)]; ok {
		return r.Output, r.Err
	}
	if r, ok := f.responses[fakeKey("", cmd)]; ok {
		return r.Output, r.Err
	}
	return "", nil
}
