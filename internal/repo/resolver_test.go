package repo_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PinkPanter/gitlock/internal/executor"
	"github.com/PinkPanter/gitlock/internal/repo"
	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/logging"
)

func TestDetectRoot_FromSubdirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	deep := filepath.Join(dir, "Assets", "Textures")
	require.NoError(t, os.MkdirAll(deep, 0755))

	root, err := repo.DetectRoot(deep)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(dir), root)
}

func TestDetectRoot_NotARepository(t *testing.T) {
	dir := t.TempDir()
	if _, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true}); err == nil {
		t.Skip("temp dir is inside a git repository")
	}
	_, err := repo.DetectRoot(dir)
	require.ErrorIs(t, err, errclass.ErrNotARepository)
}

func newQueue(t *testing.T, r executor.Runner) *executor.Queue {
	t.Helper()
	q := executor.NewQueue(r, executor.Options{Log: logging.Nop()})
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestCollectRoots_NoSubmodules(t *testing.T) {
	f := executor.NewFakeRunner()
	q := newQueue(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	roots, err := repo.CollectRoots(ctx, q, "/repo", logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"/repo"}, roots)
	require.Len(t, f.Calls(), 1)
	assert.Equal(t, "list-submodules", f.Calls()[0].Cmd.Name)
}

func TestCollectRoots_WithSubmodules(t *testing.T) {
	f := executor.NewFakeRunner()
	f.Respond("/repo", executor.ListSubmodules(),
		"submodule.art.path Assets/Art\nsubmodule.libs/sub.path libs/sub\n", nil)
	q := newQueue(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	roots, err := repo.CollectRoots(ctx, q, "/repo", logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"/repo", "/repo/Assets/Art", "/repo/libs/sub"}, roots)
}

func TestCollectRoots_FailureFallsBackToRoot(t *testing.T) {
	f := executor.NewFakeRunner()
	f.Respond("", executor.ListSubmodules(), "", errclass.ErrSpawnFailure.WithMessage("no git"))
	q := newQueue(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	roots, err := repo.CollectRoots(ctx, q, "/repo", logging.Nop())
	require.ErrorIs(t, err, errclass.ErrSpawnFailure)
	assert.Equal(t, []string{"/repo"}, roots)
}
