package errclass_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitLockError_Error(t *testing.T) {
	err := errclass.ErrBackendFailure.WithMessage("git lfs lock a.txt")
	assert.Equal(t, "E_BACKEND_FAILURE: git lfs lock a.txt", err.Error())
}

func TestGitLockError_ErrorWithoutMessage(t *testing.T) {
	assert.Equal(t, "E_CANCELED", errclass.ErrCanceled.Error())
}

func TestGitLockError_Is(t *testing.T) {
	err := errclass.ErrSpawnFailure.WithMessage("git not on PATH")
	require.True(t, errors.Is(err, errclass.ErrSpawnFailure))
	require.False(t, errors.Is(err, errclass.ErrBackendFailure))
}

func TestGitLockError_IsThroughWrap(t *testing.T) {
	err := fmt.Errorf("refresh: %w", errclass.ErrParseAnomaly.WithMessage("not an array"))
	assert.ErrorIs(t, err, errclass.ErrParseAnomaly)
}

func TestGitLockError_WithMessagef(t *testing.T) {
	base := errclass.ErrNotARepository
	err := base.WithMessagef("no .git above %s", "/tmp/x")

	assert.Equal(t, "E_NOT_A_REPOSITORY", err.Code)
	assert.Equal(t, "no .git above /tmp/x", err.Message)
	assert.Empty(t, base.Message, "base error must stay untouched")
}

func TestGitLockError_AllErrorsDefined(t *testing.T) {
	all := []*errclass.GitLockError{
		errclass.ErrSpawnFailure,
		errclass.ErrBackendFailure,
		errclass.ErrNotARepository,
		errclass.ErrParseAnomaly,
		errclass.ErrPartialRefresh,
		errclass.ErrCanceled,
		errclass.ErrNotInitialized,
		errclass.ErrConfigInvalid,
		errclass.ErrQueueClosed,
		errclass.ErrAuditCorrupt,
		errclass.ErrLockConflict,
		errclass.ErrNotLocked,
	}
	seen := map[string]bool{}
	for _, e := range all {
		require.NotNil(t, e)
		assert.NotEmpty(t, e.Code)
		assert.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true
	}
}
