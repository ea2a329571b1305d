// Package repo discovers the repository root, its submodule roots and routes
// file paths to the root that owns them.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"

	"github.com/PinkPanter/gitlock/internal/executor"
	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/logging"
	"github.com/PinkPanter/gitlock/pkg/pathutil"
)

// DetectRoot walks up from dir to the working tree root of the enclosing git
// repository.
func DetectRoot(dir string) (string, error) {
	abs, err := pathutil.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	r, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", errclass.ErrNotARepository.WithMessagef("no git repository found at or above %s", abs)
		}
		return "", errclass.ErrNotARepository.WithMessagef("open %s: %v", abs, err)
	}

	wt, err := r.Worktree()
	if err != nil {
		// Bare repositories have nothing to lock.
		return "", errclass.ErrNotARepository.WithMessagef("%s: %v", abs, err)
	}
	return pathutil.Canonical(wt.Filesystem.Root()), nil
}

// CollectRoots lists the submodules of root through q and returns root
// followed by every submodule root. When the listing fails the error is
// returned together with [root] so callers can carry on with the main
// repository alone.
func CollectRoots(ctx context.Context, q *executor.Queue, root string, log *logging.Logger) ([]string, error) {
	if log == nil {
		log = logging.Global()
	}
	root = pathutil.Canonical(root)

	res, err := q.Submit(root, executor.ListSubmodules(), nil).Wait(ctx)
	if err != nil {
		return []string{root}, err
	}
	if res.Err != nil {
		return []string{root}, fmt.Errorf("list submodules: %w", res.Err)
	}

	paths, anomaly := ParseSubmodules(res.Output())
	if anomaly != nil {
		log.Warn("unexpected submodule listing", map[string]any{"root": root, "error": anomaly.Error()})
	}

	roots := make([]string, 0, len(paths)+1)
	roots = append(roots, root)
	for _, p := range paths {
		roots = append(roots, pathutil.JoinRoot(root, p))
	}
	log.Debug("repository roots collected", map[string]any{"roots": roots})
	return roots, nil
}
