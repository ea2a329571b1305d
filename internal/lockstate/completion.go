package lockstate

import (
	"errors"
	"time"

	"github.com/PinkPanter/gitlock/internal/repo"
	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/model"
	"github.com/PinkPanter/gitlock/pkg/pathutil"
)

// OperationCompletion is the finished result of a per-path command.
type OperationCompletion struct {
	Op       model.PendingOperation
	Output   string
	Err      error
	Username string
	Now      time.Time
}

// ApplyOperation folds a per-path completion into prev. It reports whether
// the snapshot changed. Failures and unrecognized output leave prev as is.
func ApplyOperation(prev *model.LockSnapshot, c OperationCompletion) (*model.LockSnapshot, bool) {
	if c.Err != nil {
		return prev, false
	}
	outcome := ClassifyOutput(c.Output)
	switch c.Op.Kind {
	case model.OperationAcquire:
		if outcome != OutcomeLocked {
			return prev, false
		}
		return prev.With(model.LockRecord{
			Path:     c.Op.Path,
			Owner:    model.LockOwner{Name: c.Username},
			LockedAt: c.Now.Format(model.LockedAtLayout),
		}), true
	case model.OperationRelease:
		if outcome != OutcomeUnlocked {
			return prev, false
		}
		if _, ok := prev.Lookup(c.Op.Path); !ok {
			return prev, false
		}
		return prev.Without(c.Op.Path), true
	}
	return prev, false
}

// RefreshCompletion is the finished result of a multi-root lock listing.
type RefreshCompletion struct {
	Roots   []string
	Outputs []string
	Failed  []bool
	Err     error
}

// RefreshOutcome is what ApplyRefresh decided.
type RefreshOutcome struct {
	// Snapshot is the replacement snapshot, or the previous one when Applied
	// is false.
	Snapshot *model.LockSnapshot
	Applied  bool
	// Err is the cycle failure, or the partial failure when Applied is true.
	Err       error
	Anomalies []error
}

// ApplyRefresh builds the snapshot for a finished refresh cycle. A failed
// cycle or any unparseable root payload keeps prev. On a partial failure the
// failed roots keep their records from prev and every other root is replaced.
func ApplyRefresh(prev *model.LockSnapshot, c RefreshCompletion) RefreshOutcome {
	if c.Err != nil && !errors.Is(c.Err, errclass.ErrPartialRefresh) {
		return RefreshOutcome{Snapshot: prev, Err: c.Err}
	}

	router := repo.NewRouter(c.Roots)
	var (
		records   []model.LockRecord
		anomalies []error
	)
	for i, root := range c.Roots {
		if i < len(c.Failed) && c.Failed[i] {
			for _, r := range prev.Records() {
				if owner, _, ok := router.Route(r.Path); ok && owner == pathutil.Canonical(root) {
					records = append(records, r)
				}
			}
			continue
		}
		var out string
		if i < len(c.Outputs) {
			out = c.Outputs[i]
		}
		parsed, bad, err := ParseLockList(root, out)
		if err != nil {
			return RefreshOutcome{Snapshot: prev, Err: err, Anomalies: anomalies}
		}
		anomalies = append(anomalies, bad...)
		records = append(records, parsed...)
	}
	return RefreshOutcome{Snapshot: model.NewSnapshot(records), Applied: true, Err: c.Err, Anomalies: anomalies}
}
