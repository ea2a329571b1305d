// Package audit keeps a tamper-evident journal of lock operations in
// .gitlock/audit.jsonl. Each line carries the hash of the line before it.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PinkPanter/gitlock/pkg/config"
	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/fsutil"
	"github.com/PinkPanter/gitlock/pkg/model"
)

// FileName is the journal file inside the gitlock directory.
const FileName = "audit.jsonl"

// PathFor returns the journal location for a repository root.
func PathFor(repoRoot string) string {
	return filepath.Join(repoRoot, config.DirName, FileName)
}

// Entry describes one finished lock operation.
type Entry struct {
	Kind     model.OperationKind
	Path     string
	Force    bool
	Username string
	Outcome  string
	Err      error
}

// Record is one journal line.
type Record struct {
	Timestamp  string              `json:"timestamp"`
	Kind       model.OperationKind `json:"kind"`
	Path       string              `json:"path"`
	Force      bool                `json:"force,omitempty"`
	Username   string              `json:"username,omitempty"`
	Outcome    string              `json:"outcome"`
	Error      string              `json:"error,omitempty"`
	PrevHash   string              `json:"prev_hash"`
	RecordHash string              `json:"record_hash"`
}

// FileAppender appends records to a JSONL file with a hash chain.
type FileAppender struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileAppender creates a FileAppender writing to path.
func NewFileAppender(path string) *FileAppender {
	return &FileAppender{path: path, now: time.Now}
}

// Path returns the journal location.
func (a *FileAppender) Path() string { return a.path }

// Append adds e to the journal.
func (a *FileAppender) Append(e Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := fsutil.EnsureParent(a.path); err != nil {
		return err
	}

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	// Another gitlock process may be appending too.
	if err := lockFile(file); err != nil {
		return fmt.Errorf("lock audit log: %w", err)
	}
	defer unlockFile(file)

	prevHash, err := lastRecordHash(file)
	if err != nil {
		return fmt.Errorf("get last record hash: %w", err)
	}

	record := Record{
		Timestamp: a.now().UTC().Format(time.RFC3339Nano),
		Kind:      e.Kind,
		Path:      e.Path,
		Force:     e.Force,
		Username:  e.Username,
		Outcome:   e.Outcome,
		PrevHash:  prevHash,
	}
	if e.Err != nil {
		record.Error = e.Err.Error()
	}
	if record.RecordHash, err = computeRecordHash(record); err != nil {
		return err
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return file.Sync()
}

// Records returns the last limit records, oldest first. A limit of zero or
// less returns every record. Malformed lines are skipped.
func (a *FileAppender) Records(limit int) ([]Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Record
	err := a.scan(func(_ int, r Record, err error) error {
		if err == nil {
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Verify walks the chain and returns the number of valid records. It fails
// with ErrAuditCorrupt at the first malformed, altered or unlinked line.
func (a *FileAppender) Verify() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	prev := ""
	err := a.scan(func(line int, r Record, err error) error {
		if err != nil {
			return errclass.ErrAuditCorrupt.WithMessagef("line %d: %v", line, err)
		}
		if r.PrevHash != prev {
			return errclass.ErrAuditCorrupt.WithMessagef("line %d: chain broken", line)
		}
		want, err := computeRecordHash(r)
		if err != nil {
			return err
		}
		if want != r.RecordHash {
			return errclass.ErrAuditCorrupt.WithMessagef("line %d: hash mismatch", line)
		}
		prev = r.RecordHash
		n++
		return nil
	})
	return n, err
}

func (a *FileAppender) scan(fn func(line int, r Record, err error) error) error {
	file, err := os.Open(a.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		var r Record
		err := json.Unmarshal(scanner.Bytes(), &r)
		if err := fn(line, r, err); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan audit log: %w", err)
	}
	return nil
}

func lastRecordHash(file *os.File) (string, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek to start: %w", err)
	}

	var lastHash string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue // skip malformed lines
		}
		lastHash = record.RecordHash
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan audit log: %w", err)
	}
	return lastHash, nil
}

func computeRecordHash(r Record) (string, error) {
	r.RecordHash = ""
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal audit record: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
