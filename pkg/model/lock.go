package model

import "time"

// LockOwner identifies who holds a lock, as reported by the backing tool.
type LockOwner struct {
	Name string `json:"name"`
}

// LockRecord is one held lock. The JSON shape matches `git lfs locks --json`
// so the persisted snapshot and the wire payload share a codec.
type LockRecord struct {
	ID       string    `json:"id,omitempty"`
	Path     string    `json:"path"`
	Owner    LockOwner `json:"owner"`
	LockedAt string    `json:"locked_at"`
}

// LockedAtLayout is the timestamp format used for optimistic records.
const LockedAtLayout = "2006-01-02T15:04:05"

// LockState classifies a path relative to the current user.
type LockState int

const (
	LockStateUnlocked LockState = iota
	LockStateLockedByYou
	LockStateLockedByOther
)

func (s LockState) String() string {
	switch s {
	case LockStateUnlocked:
		return "unlocked"
	case LockStateLockedByYou:
		return "locked-by-you"
	case LockStateLockedByOther:
		return "locked-by-other"
	default:
		return "unknown"
	}
}

// MarshalText lets LockState render as its name in JSON output.
func (s LockState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LockStatus is the answer to "what is the state of this path".
type LockStatus struct {
	Path      string      `json:"path"`
	State     LockState   `json:"state"`
	Record    *LockRecord `json:"record,omitempty"`
	Executing bool        `json:"executing"`
}

// OperationKind distinguishes per-path operations.
type OperationKind string

const (
	OperationAcquire OperationKind = "acquire"
	OperationRelease OperationKind = "release"
)

// PendingOperation exists from dispatch of a per-path command until its
// completion has been applied.
type PendingOperation struct {
	Path      string        `json:"path"`
	Kind      OperationKind `json:"kind"`
	Force     bool          `json:"force,omitempty"`
	StartedAt time.Time     `json:"started_at"`
}

// LockSnapshot is an immutable, ordered set of lock records with at most one
// record per path. Mutators return a new snapshot.
type LockSnapshot struct {
	records   []LockRecord
	byPath    map[string]int
	populated bool
}

// EmptySnapshot returns a snapshot that has never been populated.
func EmptySnapshot() *LockSnapshot {
	return &LockSnapshot{byPath: map[string]int{}}
}

// NewSnapshot builds a populated snapshot. When a path repeats, the first
// record wins.
func NewSnapshot(records []LockRecord) *LockSnapshot {
	s := &LockSnapshot{
		records:   make([]LockRecord, 0, len(records)),
		byPath:    make(map[string]int, len(records)),
		populated: true,
	}
	for _, r := range records {
		if _, dup := s.byPath[r.Path]; dup {
			continue
		}
		s.byPath[r.Path] = len(s.records)
		s.records = append(s.records, r)
	}
	return s
}

// Populated reports whether the snapshot came from a refresh or a restore.
func (s *LockSnapshot) Populated() bool {
	return s != nil && s.populated
}

// Len returns the number of records.
func (s *LockSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Records returns a copy of the records in display order.
func (s *LockSnapshot) Records() []LockRecord {
	if s == nil {
		return nil
	}
	out := make([]LockRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Lookup returns the record for path, if any.
func (s *LockSnapshot) Lookup(path string) (LockRecord, bool) {
	if s == nil {
		return LockRecord{}, false
	}
	i, ok := s.byPath[path]
	if !ok {
		return LockRecord{}, false
	}
	return s.records[i], true
}

// With returns a snapshot that additionally holds rec, replacing any record
// for the same path in place.
func (s *LockSnapshot) With(rec LockRecord) *LockSnapshot {
	records := s.Records()
	if i, ok := s.index(rec.Path); ok {
		records[i] = rec
	} else {
		records = append(records, rec)
	}
	return NewSnapshot(records)
}

func (s *LockSnapshot) index(path string) (int, bool) {
	if s == nil {
		return 0, false
	}
	i, ok := s.byPath[path]
	return i, ok
}

// Without returns a snapshot with the record for path removed.
func (s *LockSnapshot) Without(path string) *LockSnapshot {
	records := make([]LockRecord, 0, s.Len())
	for _, r := range s.Records() {
		if r.Path != path {
			records = append(records, r)
		}
	}
	return NewSnapshot(records)
}
