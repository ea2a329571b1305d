package lockstate

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/PinkPanter/gitlock/internal/prefs"
	"github.com/PinkPanter/gitlock/pkg/model"
)

// Persisted preference keys.
const (
	KeyUsername      = "username"
	KeyEnabled       = "enabled"
	KeyRenewInterval = "renewIntervalSeconds"
	KeyLastRefresh   = "lastRefreshTimeTicks"
	KeySnapshot      = "lastLockSnapshot"
)

// DefaultRenewInterval applies when nothing is persisted or configured.
const DefaultRenewInterval = 60 * time.Second

// EncodeSnapshot serializes the snapshot in the same JSON shape the backing
// tool emits.
func EncodeSnapshot(s *model.LockSnapshot) (string, error) {
	records := s.Records()
	if records == nil {
		records = []model.LockRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(data), nil
}

// DecodeSnapshot restores a snapshot written by EncodeSnapshot.
func DecodeSnapshot(data string) (*model.LockSnapshot, error) {
	var records []model.LockRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return model.NewSnapshot(records), nil
}

type dirty uint8

const (
	dirtySnapshot dirty = 1 << iota
	dirtyUsername
	dirtyEnabled
	dirtyRenew
	dirtyLastRefresh
)

// restored is the state read back from prefs at construction. A zero
// renewInterval means none was persisted.
type restored struct {
	username      string
	enabled       bool
	renewInterval time.Duration
	lastRefresh   time.Time
	snapshot      *model.LockSnapshot
	err           error
}

func restore(p prefs.Store) restored {
	r := restored{
		username: prefs.String(p, KeyUsername, ""),
		enabled:  prefs.Bool(p, KeyEnabled, true),
		snapshot: model.EmptySnapshot(),
	}
	if secs := prefs.Int64(p, KeyRenewInterval, 0); secs > 0 {
		r.renewInterval = time.Duration(secs) * time.Second
	}
	if ticks := prefs.Int64(p, KeyLastRefresh, 0); ticks > 0 {
		r.lastRefresh = time.Unix(0, ticks)
	}
	if data, ok, err := p.Get(KeySnapshot); err != nil {
		r.err = err
	} else if ok {
		snap, err := DecodeSnapshot(data)
		if err != nil {
			r.err = err
		} else {
			r.snapshot = snap
		}
	}
	return r
}

// flushState is a copy of the fields to write, taken under the store lock.
type flushState struct {
	flags         dirty
	username      string
	enabled       bool
	renewInterval time.Duration
	lastRefresh   time.Time
	snapshot      *model.LockSnapshot
}

func flush(p prefs.Store, st flushState) error {
	var errs []error
	if st.flags&dirtyUsername != 0 {
		errs = append(errs, p.Set(KeyUsername, st.username))
	}
	if st.flags&dirtyEnabled != 0 {
		errs = append(errs, prefs.SetBool(p, KeyEnabled, st.enabled))
	}
	if st.flags&dirtyRenew != 0 {
		errs = append(errs, prefs.SetInt64(p, KeyRenewInterval, int64(st.renewInterval/time.Second)))
	}
	if st.flags&dirtyLastRefresh != 0 {
		errs = append(errs, prefs.SetInt64(p, KeyLastRefresh, st.lastRefresh.UnixNano()))
	}
	if st.flags&dirtySnapshot != 0 {
		data, err := EncodeSnapshot(st.snapshot)
		if err == nil {
			err = p.Set(KeySnapshot, data)
		}
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}
