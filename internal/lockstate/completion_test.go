package lockstate_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PinkPanter/gitlock/internal/lockstate"
	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/model"
)

func rec(path, owner string) model.LockRecord {
	return model.LockRecord{Path: path, Owner: model.LockOwner{Name: owner}, LockedAt: "2024-01-01T00:00:00"}
}

func TestClassifyOutput(t *testing.T) {
	assert.Equal(t, lockstate.OutcomeLocked, lockstate.ClassifyOutput("Locked a.png"))
	assert.Equal(t, lockstate.OutcomeUnlocked, lockstate.ClassifyOutput("Unlocked a.png"))
	assert.Equal(t, lockstate.OutcomeUnknown, lockstate.ClassifyOutput("Lock exists"))
	assert.Equal(t, lockstate.OutcomeUnknown, lockstate.ClassifyOutput(""))
}

func TestApplyOperation(t *testing.T) {
	now := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	prev := model.NewSnapshot([]model.LockRecord{rec("/r/a.png", "alice")})

	next, changed := lockstate.ApplyOperation(prev, lockstate.OperationCompletion{
		Op:       model.PendingOperation{Path: "/r/b.png", Kind: model.OperationAcquire},
		Output:   "Locked b.png",
		Username: "bob",
		Now:      now,
	})
	require.True(t, changed)
	got, ok := next.Lookup("/r/b.png")
	require.True(t, ok)
	assert.Equal(t, "bob", got.Owner.Name)
	assert.Equal(t, "2024-03-04T05:06:07", got.LockedAt)
	assert.Equal(t, 1, prev.Len(), "previous snapshot is immutable")

	next, changed = lockstate.ApplyOperation(next, lockstate.OperationCompletion{
		Op:     model.PendingOperation{Path: "/r/a.png", Kind: model.OperationRelease, Force: true},
		Output: "Unlocked a.png",
	})
	require.True(t, changed)
	_, ok = next.Lookup("/r/a.png")
	assert.False(t, ok)

	same, changed := lockstate.ApplyOperation(next, lockstate.OperationCompletion{
		Op:  model.PendingOperation{Path: "/r/c.png", Kind: model.OperationAcquire},
		Err: fmt.Errorf("boom"),
	})
	assert.False(t, changed)
	assert.Same(t, next, same)

	_, changed = lockstate.ApplyOperation(next, lockstate.OperationCompletion{
		Op:     model.PendingOperation{Path: "/r/c.png", Kind: model.OperationRelease},
		Output: "Locked c.png",
	})
	assert.False(t, changed)
}

func TestApplyRefresh_ConcatenatesRoots(t *testing.T) {
	out := lockstate.ApplyRefresh(model.EmptySnapshot(), lockstate.RefreshCompletion{
		Roots: []string{"/r", "/r/sub"},
		Outputs: []string{
			`[{"path":"a.txt","owner":{"name":"alice"},"locked_at":"x"}]`,
			`[{"path":"dir/b.txt","owner":{"name":"bob"},"locked_at":"y"}]`,
		},
		Failed: []bool{false, false},
	})
	require.True(t, out.Applied)
	require.NoError(t, out.Err)
	records := out.Snapshot.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "/r/a.txt", records[0].Path)
	assert.Equal(t, "/r/sub/dir/b.txt", records[1].Path)
}

func TestApplyRefresh_FailureKeepsPrevious(t *testing.T) {
	prev := model.NewSnapshot([]model.LockRecord{rec("/r/a.txt", "alice")})
	out := lockstate.ApplyRefresh(prev, lockstate.RefreshCompletion{
		Roots: []string{"/r"},
		Err:   errclass.ErrBackendFailure.WithMessage("down"),
	})
	assert.False(t, out.Applied)
	assert.Same(t, prev, out.Snapshot)
	require.ErrorIs(t, out.Err, errclass.ErrBackendFailure)
}

func TestApplyRefresh_PartialKeepsFailedRootRecords(t *testing.T) {
	prev := model.NewSnapshot([]model.LockRecord{
		rec("/r/old.txt", "alice"),
		rec("/r/sub/keep.png", "carol"),
	})
	partial := fmt.Errorf("%w: %w",
		errclass.ErrPartialRefresh.WithMessage("1 of 2 roots failed"),
		errclass.ErrBackendFailure.WithMessage("sub offline"))

	out := lockstate.ApplyRefresh(prev, lockstate.RefreshCompletion{
		Roots:   []string{"/r", "/r/sub"},
		Outputs: []string{`[{"path":"new.txt","owner":{"name":"bob"},"locked_at":"z"}]`, ""},
		Failed:  []bool{false, true},
		Err:     partial,
	})
	require.True(t, out.Applied)
	require.ErrorIs(t, out.Err, errclass.ErrPartialRefresh)

	var paths []string
	for _, r := range out.Snapshot.Records() {
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{"/r/new.txt", "/r/sub/keep.png"}, paths)
}

func TestApplyRefresh_MalformedRootFailsCycle(t *testing.T) {
	prev := model.NewSnapshot([]model.LockRecord{rec("/r/a.txt", "alice")})
	out := lockstate.ApplyRefresh(prev, lockstate.RefreshCompletion{
		Roots:   []string{"/r", "/r/sub"},
		Outputs: []string{`[]`, `{"path":"x"}`},
		Failed:  []bool{false, false},
	})
	assert.False(t, out.Applied)
	require.ErrorIs(t, out.Err, errclass.ErrParseAnomaly)
	assert.Same(t, prev, out.Snapshot)
}
