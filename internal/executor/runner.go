package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync/atomic"

	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/logging"
)

// FatalMarker is the text git prints on stdout or stderr for unrecoverable errors.
const FatalMarker = "fatal"

// Runner executes one backing command synchronously in dir and returns its
// stdout.
type Runner interface {
	Run(ctx context.Context, dir string, cmd Command) (string, error)
}

// ExecutionReporter is implemented by runners that know whether a process
// is running right now.
type ExecutionReporter interface {
	Executing() bool
}

// GitRunner runs commands as `git -C <dir> <args...>`.
type GitRunner struct {
	binary    string
	log       *logging.Logger
	executing atomic.Bool
}

var _ ExecutionReporter = (*GitRunner)(nil)

// NewGitRunner creates a runner for the given git binary ("git" when empty).
func NewGitRunner(binary string, log *logging.Logger) *GitRunner {
	if binary == "" {
		binary = "git"
	}
	if log == nil {
		log = logging.Global()
	}
	return &GitRunner{binary: binary, log: log}
}

// Executing reports whether a process is currently running.
func (r *GitRunner) Executing() bool {
	return r.executing.Load()
}

// Run spawns git, waits for it and classifies the result. The process is
// killed if ctx is cancelled, which is how the queue tears down on Close.
// The exit code is ignored: `git config --get-regexp` exits 1
// when nothing matches.
func (r *GitRunner) Run(ctx context.Context, dir string, cmd Command) (string, error) {
	r.executing.Store(true)
	defer r.executing.Store(false)

	args := append([]string{"-C", dir}, cmd.Args...)
	proc := exec.CommandContext(ctx, r.binary, args...)

	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	if err := proc.Start(); err != nil {
		r.log.ErrorErr("git is not set up correctly; it must be on PATH and the project must be a git repository", err,
			map[string]any{"command": cmd.String(), "dir": dir})
		return "", errclass.ErrSpawnFailure.WithMessagef("%s: %v", cmd, err)
	}

	waitErr := proc.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", errclass.ErrCanceled.WithMessagef("%s: %v", cmd, ctxErr)
	}

	out, err := Classify(stdout.String(), stderr.String())
	if err != nil {
		r.log.Error("git command failed", map[string]any{
			"command": cmd.String(),
			"dir":     dir,
			"stderr":  strings.TrimSpace(stderr.String()),
		})
		var gle *errclass.GitLockError
		if errors.As(err, &gle) {
			return "", gle.WithMessagef("%s: %s", cmd, gle.Message)
		}
		return "", err
	}
	if waitErr != nil {
		r.log.Debug("git exited non-zero without error output", map[string]any{"command": cmd.String(), "error": waitErr.Error()})
	}
	return out, nil
}

// Classify applies the failure rules to captured output: a fatal marker on
// stdout, or anything at all on stderr, is a backend failure carrying the
// raw error stream.
func Classify(stdout, stderr string) (string, error) {
	if strings.Contains(stdout, FatalMarker) {
		return "", errclass.ErrBackendFailure.WithMessage(strings.TrimSpace(stderr + "\n" + stdout))
	}
	if strings.TrimSpace(stderr) != "" {
		return "", errclass.ErrBackendFailure.WithMessage(strings.TrimSpace(stderr))
	}
	return stdout, nil
}
