package executor_test

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PinkPanter/gitlock/internal/executor"
	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/logging"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		stderr  string
		wantErr bool
	}{
		{"clean output", "Locked a.png\n", "", false},
		{"empty output", "", "", false},
		{"fatal on stdout", "fatal: not a git repository", "", true},
		{"stderr only", "ok", "warning: something", true},
		{"whitespace stderr", "ok", "  \n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executor.Classify(tt.stdout, tt.stderr)
			if tt.wantErr {
				require.ErrorIs(t, err, errclass.ErrBackendFailure)
				assert.Empty(t, out)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.stdout, out)
		})
	}
}

func TestClassify_CarriesStderr(t *testing.T) {
	_, err := executor.Classify("fatal", "Lock exists")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Lock exists")
}

func TestCommandVocabulary(t *testing.T) {
	assert.Equal(t, []string{"lfs", "locks", "--json"}, executor.ListLocks().Args)
	assert.Equal(t, []string{"lfs", "lock", "art/a.png"}, executor.AcquireLock("art/a.png").Args)
	assert.Equal(t, []string{"lfs", "unlock", "a.png"}, executor.ReleaseLock("a.png", false).Args)
	assert.Equal(t, []string{"lfs", "unlock", "a.png", "--force"}, executor.ReleaseLock("a.png", true).Args)
	assert.Equal(t, "git lfs lock x", executor.AcquireLock("x").String())
}

func TestGitRunner_SpawnFailure(t *testing.T) {
	r := executor.NewGitRunner("/nonexistent/gitlock-no-such-git", logging.Nop())
	_, err := r.Run(context.Background(), t.TempDir(), executor.ListLocks())
	require.ErrorIs(t, err, errclass.ErrSpawnFailure)
	assert.False(t, r.Executing())
}

func TestGitRunner_RealGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	r := executor.NewGitRunner("", logging.Nop())

	// Outside a repository git reports on stderr.
	_, err := r.Run(context.Background(), dir, executor.Command{Name: "status", Args: []string{"status"}})
	require.ErrorIs(t, err, errclass.ErrBackendFailure)

	out, err := r.Run(context.Background(), dir, executor.Command{
		Name: "version", Args: []string{"--version"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "git version")
}
