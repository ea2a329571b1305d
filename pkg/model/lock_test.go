package model_test

import (
	"encoding/json"
	"testing"

	"github.com/PinkPanter/gitlock/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(path, owner string) model.LockRecord {
	return model.LockRecord{Path: path, Owner: model.LockOwner{Name: owner}, LockedAt: "2024-01-01T00:00:00"}
}

func TestEmptySnapshot_NotPopulated(t *testing.T) {
	s := model.EmptySnapshot()
	assert.False(t, s.Populated())
	assert.Equal(t, 0, s.Len())
	_, ok := s.Lookup("/r/a.txt")
	assert.False(t, ok)
}

func TestNewSnapshot_FirstRecordWinsPerPath(t *testing.T) {
	s := model.NewSnapshot([]model.LockRecord{rec("/r/a", "alice"), rec("/r/a", "bob"), rec("/r/b", "bob")})
	require.Equal(t, 2, s.Len())
	got, ok := s.Lookup("/r/a")
	require.True(t, ok)
	assert.Equal(t, "alice", got.Owner.Name)
	assert.True(t, s.Populated())
}

func TestSnapshot_WithAndWithoutDoNotMutate(t *testing.T) {
	base := model.NewSnapshot([]model.LockRecord{rec("/r/a", "alice")})

	added := base.With(rec("/r/b", "bob"))
	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, added.Len())

	removed := added.Without("/r/a")
	assert.Equal(t, 2, added.Len())
	assert.Equal(t, 1, removed.Len())
	_, ok := removed.Lookup("/r/a")
	assert.False(t, ok)
}

func TestSnapshot_WithReplacesInPlace(t *testing.T) {
	base := model.NewSnapshot([]model.LockRecord{rec("/r/a", "alice"), rec("/r/b", "bob")})
	next := base.With(rec("/r/a", "carol"))

	records := next.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "/r/a", records[0].Path)
	assert.Equal(t, "carol", records[0].Owner.Name)
}

func TestLockRecord_JSONShapeMatchesLFS(t *testing.T) {
	var r model.LockRecord
	err := json.Unmarshal([]byte(`{"id":"7","path":"a.txt","owner":{"name":"alice"},"locked_at":"2024-01-01T00:00:00Z"}`), &r)
	require.NoError(t, err)
	assert.Equal(t, "7", r.ID)
	assert.Equal(t, "alice", r.Owner.Name)
	assert.Equal(t, "2024-01-01T00:00:00Z", r.LockedAt)
}

func TestLockState_String(t *testing.T) {
	assert.Equal(t, "unlocked", model.LockStateUnlocked.String())
	assert.Equal(t, "locked-by-you", model.LockStateLockedByYou.String())
	assert.Equal(t, "locked-by-other", model.LockStateLockedByOther.String())
}
