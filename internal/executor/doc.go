// Package executor runs backing git commands one at a time.
//
// A Runner spawns a single external process and classifies its output. A
// Queue serializes every command submitted by the process onto one worker
// goroutine: at most one subprocess is alive at any moment, queued commands
// start in FIFO order, and a queued command can be cancelled until it starts.
//
// Submitting never blocks. The caller gets a *Handle whose Done channel
// closes once the command finished, was cancelled, or the queue shut down.
// An optional completion callback runs on the worker goroutine just before
// Done closes; callbacks must not block and must not mutate caller state
// directly (hand the result to the owner instead).
//
// SubmitMulti runs one command against several roots inside a single queue
// slot. Under FailFast the first failing root aborts the rest; under Partial
// every root is attempted and failures are combined into one error.
package executor
