package lockstate

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/model"
	"github.com/PinkPanter/gitlock/pkg/pathutil"
)

// Outcome is what a lock or unlock command's output says happened.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeLocked
	OutcomeUnlocked
)

// ClassifyOutput is the only place that interprets the backing tool's
// human-readable lock/unlock output. "Unlocked" is checked first.
func ClassifyOutput(output string) Outcome {
	switch {
	case strings.Contains(output, "Unlocked"):
		return OutcomeUnlocked
	case strings.Contains(output, "Locked"):
		return OutcomeLocked
	}
	return OutcomeUnknown
}

// ParseLockList decodes one root's `git lfs locks --json` payload. Record
// paths are joined onto root and canonicalized. Blank output means no locks.
// Records without a path are skipped and reported in anomalies. A payload
// that is not a JSON array, or whose entries all lack a path, fails with
// ErrParseAnomaly.
func ParseLockList(root, payload string) (records []model.LockRecord, anomalies []error, err error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, nil, nil
	}
	if !gjson.Valid(payload) {
		return nil, nil, errclass.ErrParseAnomaly.WithMessagef("lock list for %s is not valid JSON", root)
	}
	list := gjson.Parse(payload)
	if !list.IsArray() {
		return nil, nil, errclass.ErrParseAnomaly.WithMessagef("lock list for %s is not an array", root)
	}

	idx := -1
	list.ForEach(func(_, v gjson.Result) bool {
		idx++
		path := v.Get("path").String()
		if !v.IsObject() || path == "" {
			anomalies = append(anomalies, errclass.ErrParseAnomaly.WithMessagef("lock entry %d in %s has no path", idx, root))
			return true
		}
		records = append(records, model.LockRecord{
			ID:       v.Get("id").String(),
			Path:     pathutil.JoinRoot(root, path),
			Owner:    model.LockOwner{Name: v.Get("owner.name").String()},
			LockedAt: v.Get("locked_at").String(),
		})
		return true
	})
	if len(records) == 0 && len(anomalies) > 0 {
		return nil, anomalies, errclass.ErrParseAnomaly.WithMessagef("no entry in the lock list for %s has a path", root)
	}
	return records, anomalies, nil
}
