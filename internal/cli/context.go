package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/PinkPanter/gitlock/internal/repo"
	"github.com/PinkPanter/gitlock/pkg/color"
	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/gitlock"
)

// clientOptions supplies the options every command opens its client with.
// Tests replace it to inject a fake runner and in-memory state.
var clientOptions = func() gitlock.Options {
	return gitlock.Options{Version: Version}
}

// openClient opens the client for the repository containing the working
// directory.
func openClient(ctx context.Context) (*gitlock.Client, error) {
	return openClientWith(ctx, clientOptions())
}

func openClientWith(ctx context.Context, opts gitlock.Options) (*gitlock.Client, error) {
	c, err := gitlock.Open(ctx, opts)
	if errors.Is(err, errclass.ErrNotARepository) {
		return nil, fmt.Errorf("%w\n\n%s", err, formatNotInRepositoryHint())
	}
	return c, err
}

// requireRoot returns the repository root containing the working directory.
func requireRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot get current directory: %w", err)
	}
	root, err := repo.DetectRoot(cwd)
	if err != nil {
		return "", fmt.Errorf("%w\n\n%s", err, formatNotInRepositoryHint())
	}
	return root, nil
}

func closeClient(c *gitlock.Client) {
	if err := c.Close(); err != nil {
		fmtErr("save state: %v", err)
	}
}

func fmtErr(format string, args ...any) {
	prefix := "gitlock: "
	if color.Enabled() {
		prefix = color.Error("gitlock:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
