// Package lockstate holds the lock snapshot for a set of repository roots and
// reconciles it with the backing tool.
//
// Callers only express intents (Acquire, Release, Refresh). Each intent is
// dispatched through the executor queue immediately; its completion is
// parked in an inbox and folded into the snapshot by the next Tick, which
// also flushes persistence and decides whether a scheduled refresh is due.
// Reads (LockStateOf, AllLocks) never block on a running command.
package lockstate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PinkPanter/gitlock/internal/executor"
	"github.com/PinkPanter/gitlock/internal/prefs"
	"github.com/PinkPanter/gitlock/internal/repo"
	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/logging"
	"github.com/PinkPanter/gitlock/pkg/metrics"
	"github.com/PinkPanter/gitlock/pkg/model"
	"github.com/PinkPanter/gitlock/pkg/pathutil"
)

// Options configures a Store.
type Options struct {
	Queue  *executor.Queue
	Router *repo.Router
	Prefs  prefs.Store

	Log     *logging.Logger
	Metrics *metrics.Registry

	// RenewInterval applies when no interval was persisted. Zero means
	// DefaultRenewInterval.
	RenewInterval time.Duration
	// OnError receives command and refresh failures after they are logged.
	OnError func(error)
	// OnOperation receives every applied lock or unlock completion except
	// canceled ones. It runs with the store locked and must not call back
	// into the store.
	OnOperation func(OperationEvent)
	Now         func() time.Time
}

// OperationEvent describes one applied per-path completion.
type OperationEvent struct {
	Op       model.PendingOperation
	Username string
	Outcome  string
	Err      error
}

type pendingOp struct {
	op     model.PendingOperation
	handle *executor.Handle
}

type refreshCycle struct {
	id     uint64
	handle *executor.Handle
}

type completion struct {
	pending *pendingOp
	cycleID uint64
	result  executor.Result
}

// Store is the lock state of one working tree.
type Store struct {
	queue   *executor.Queue
	router  *repo.Router
	prefs   prefs.Store
	log     *logging.Logger
	metrics *metrics.Registry
	onError func(error)
	onOp    func(OperationEvent)
	now     func() time.Time

	snapshot   atomic.Pointer[model.LockSnapshot]
	user       atomic.Pointer[string]
	refreshing atomic.Bool

	mu            sync.Mutex
	enabled       bool
	renewInterval time.Duration
	lastRefresh   time.Time
	pending       map[string]*pendingOp
	cycle         *refreshCycle
	cycleSeq      uint64
	refreshAgain  bool
	generation    uint64
	lastErr       error
	dirty         dirty
	closed        bool

	flushMu sync.Mutex

	inboxMu sync.Mutex
	inbox   []completion
	wake    chan struct{}
}

// NewStore restores persisted state and returns a ready store. A corrupt
// persisted snapshot is logged and replaced by an empty one.
func NewStore(opts Options) (*Store, error) {
	if opts.Queue == nil || opts.Router == nil {
		return nil, errclass.ErrNotInitialized.WithMessage("lock store needs a queue and a router")
	}
	if opts.Prefs == nil {
		opts.Prefs = prefs.NewMemoryStore()
	}
	if opts.Log == nil {
		opts.Log = logging.Global()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Store{
		queue:   opts.Queue,
		router:  opts.Router,
		prefs:   opts.Prefs,
		log:     opts.Log.WithFields(map[string]any{"component": "lockstate"}),
		metrics: opts.Metrics,
		onError: opts.OnError,
		onOp:    opts.OnOperation,
		now:     opts.Now,
		pending: map[string]*pendingOp{},
		wake:    make(chan struct{}, 1),
	}

	r := restore(opts.Prefs)
	if r.err != nil {
		s.log.Warn("discarding persisted lock state", map[string]any{"error": r.err.Error()})
	}
	s.snapshot.Store(r.snapshot)
	s.user.Store(&r.username)
	s.enabled = r.enabled
	s.renewInterval = r.renewInterval
	if s.renewInterval == 0 {
		s.renewInterval = opts.RenewInterval
	}
	if s.renewInterval <= 0 {
		s.renewInterval = DefaultRenewInterval
	}
	s.lastRefresh = r.lastRefresh
	s.updateLockMetrics(r.snapshot)
	return s, nil
}

// Queries.

// IsInitialized reports whether a snapshot has been restored or refreshed.
func (s *Store) IsInitialized() bool {
	return s.snapshot.Load().Populated()
}

// IsRefreshing reports whether a refresh cycle is in flight.
func (s *Store) IsRefreshing() bool {
	return s.refreshing.Load()
}

// IsExecuting reports whether path has an acquire or release in flight.
func (s *Store) IsExecuting(path string) bool {
	key := pathutil.Canonical(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// LockStateOf classifies path against the current snapshot and username.
func (s *Store) LockStateOf(path string) model.LockStatus {
	key := pathutil.Canonical(path)
	st := model.LockStatus{Path: key, State: model.LockStateUnlocked}
	if rec, ok := s.snapshot.Load().Lookup(key); ok {
		st.Record = &rec
		if rec.Owner.Name == s.Username() {
			st.State = model.LockStateLockedByYou
		} else {
			st.State = model.LockStateLockedByOther
		}
	}
	st.Executing = s.IsExecuting(key)
	return st
}

// AllLocks returns every known lock record.
func (s *Store) AllLocks() []model.LockRecord {
	return s.snapshot.Load().Records()
}

// Pending returns the in-flight per-path operations ordered by path.
func (s *Store) Pending() []model.PendingOperation {
	s.mu.Lock()
	out := make([]model.PendingOperation, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p.op)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Roots returns the repository roots in routing order.
func (s *Store) Roots() []string {
	return s.router.Roots()
}

func (s *Store) Username() string {
	if u := s.user.Load(); u != nil {
		return *u
	}
	return ""
}

func (s *Store) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Store) RenewInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renewInterval
}

// LastRefresh returns when the most recent refresh cycle was dispatched.
func (s *Store) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh
}

// LastRefreshError returns the failure of the most recently applied cycle.
func (s *Store) LastRefreshError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Generation counts applied refresh cycles.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Wake is signalled whenever a completion is waiting to be applied.
func (s *Store) Wake() <-chan struct{} {
	return s.wake
}

// Settings.

func (s *Store) SetUsername(name string) {
	s.user.Store(&name)
	s.mu.Lock()
	s.dirty |= dirtyUsername
	s.mu.Unlock()
	s.updateLockMetrics(s.snapshot.Load())
}

// SetEnabled turns the store on or off. While disabled Acquire and Release
// do nothing and no scheduled refresh is started.
func (s *Store) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled != enabled {
		s.enabled = enabled
		s.dirty |= dirtyEnabled
	}
}

func (s *Store) SetRenewInterval(d time.Duration) error {
	if d < time.Second {
		return errclass.ErrConfigInvalid.WithMessagef("renew interval must be at least 1s: %s", d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewInterval = d.Truncate(time.Second)
	s.dirty |= dirtyRenew
	return nil
}

// Intents.

// Acquire dispatches a lock command for path. It returns nil when nothing
// was dispatched: the path already has a record or an operation in flight,
// belongs to no root, or the store is disabled.
func (s *Store) Acquire(path string) *executor.Handle {
	key := pathutil.Canonical(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.enabled {
		return nil
	}
	if _, ok := s.snapshot.Load().Lookup(key); ok {
		return nil
	}
	if _, ok := s.pending[key]; ok {
		return nil
	}
	root, rel, ok := s.router.Route(key)
	if !ok {
		s.log.Debug("path is outside every repository root", map[string]any{"path": key})
		return nil
	}
	op := model.PendingOperation{Path: key, Kind: model.OperationAcquire, StartedAt: s.now()}
	return s.dispatchLocked(op, root, executor.AcquireLock(rel))
}

// Release dispatches an unlock command for path. Without force it only
// releases locks owned by the current user.
func (s *Store) Release(path string, force bool) *executor.Handle {
	key := pathutil.Canonical(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.enabled {
		return nil
	}
	rec, ok := s.snapshot.Load().Lookup(key)
	if !ok {
		return nil
	}
	if !force && rec.Owner.Name != s.Username() {
		s.log.Debug("not releasing a lock held by someone else", map[string]any{"path": key, "owner": rec.Owner.Name})
		return nil
	}
	if _, ok := s.pending[key]; ok {
		return nil
	}
	root, rel, ok := s.router.Route(key)
	if !ok {
		return nil
	}
	op := model.PendingOperation{Path: key, Kind: model.OperationRelease, Force: force, StartedAt: s.now()}
	return s.dispatchLocked(op, root, executor.ReleaseLock(rel, force))
}

func (s *Store) dispatchLocked(op model.PendingOperation, root string, cmd executor.Command) *executor.Handle {
	p := &pendingOp{op: op}
	s.pending[op.Path] = p
	p.handle = s.queue.Submit(root, cmd, func(res executor.Result) {
		s.deliver(completion{pending: p, result: res})
	})
	s.log.Debug("lock operation dispatched", map[string]any{"path": op.Path, "kind": string(op.Kind), "handle": p.handle.ID()})
	return p.handle
}

// Refresh starts a refresh cycle unless one is already in flight, in which
// case it returns nil.
func (s *Store) Refresh() *executor.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(s.now())
}

// ForceRefresh starts a new refresh cycle now. A cycle that is queued but not
// started is cancelled and replaced. A running cycle is left alone and a new
// one is dispatched as soon as it completes; ForceRefresh returns nil then.
func (s *Store) ForceRefresh() *executor.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if c := s.cycle; c != nil {
		if !c.handle.Started() && s.queue.Cancel(c.handle) {
			s.cycle = nil
			s.refreshing.Store(false)
			return s.startCycleLocked(s.now())
		}
		s.refreshAgain = true
		return nil
	}
	return s.startCycleLocked(s.now())
}

// ShouldRefresh reports whether a scheduled refresh is due at now.
func (s *Store) ShouldRefresh(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldRefreshLocked(now)
}

func (s *Store) shouldRefreshLocked(now time.Time) bool {
	if s.cycle != nil {
		return false
	}
	return !s.snapshot.Load().Populated() || now.Sub(s.lastRefresh) > s.renewInterval
}

func (s *Store) refreshLocked(now time.Time) *executor.Handle {
	if s.closed || s.cycle != nil {
		return nil
	}
	return s.startCycleLocked(now)
}

func (s *Store) startCycleLocked(now time.Time) *executor.Handle {
	roots := s.router.Roots()
	if len(roots) == 0 {
		return nil
	}
	s.cycleSeq++
	id := s.cycleSeq
	c := &refreshCycle{id: id}
	s.cycle = c
	s.lastRefresh = now
	s.dirty |= dirtyLastRefresh
	s.refreshing.Store(true)

	c.handle = s.queue.SubmitMulti(roots, executor.ListLocks(), func(res executor.Result) {
		s.deliver(completion{cycleID: id, result: res})
	})
	s.log.Debug("refresh dispatched", map[string]any{"cycle": id, "roots": len(roots), "handle": c.handle.ID()})
	return c.handle
}

// Driving.

// Tick applies finished commands, flushes persistence and starts a refresh
// when one is due, in that order.
func (s *Store) Tick(now time.Time) {
	s.ApplyCompletions(now)
	if err := s.Flush(); err != nil {
		s.log.ErrorErr("failed to persist lock state", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.enabled && s.shouldRefreshLocked(now) {
		s.refreshLocked(now)
	}
}

func (s *Store) deliver(c completion) {
	s.inboxMu.Lock()
	s.inbox = append(s.inbox, c)
	s.inboxMu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// ApplyCompletions folds every finished command into the state.
func (s *Store) ApplyCompletions(now time.Time) {
	s.inboxMu.Lock()
	batch := s.inbox
	s.inbox = nil
	s.inboxMu.Unlock()
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, c := range batch {
		if c.pending != nil {
			s.applyOperationLocked(c, now)
		} else {
			s.applyRefreshLocked(c, now)
		}
	}
}

func isAbandoned(err error) bool {
	return errors.Is(err, errclass.ErrCanceled) || errors.Is(err, errclass.ErrQueueClosed) ||
		errors.Is(err, context.Canceled)
}

func (s *Store) applyOperationLocked(c completion, now time.Time) {
	op := c.pending.op
	if s.pending[op.Path] != c.pending {
		return
	}
	delete(s.pending, op.Path)

	kind := string(op.Kind)
	fields := map[string]any{"path": op.Path, "kind": kind}
	if err := c.result.Err; err != nil {
		if isAbandoned(err) {
			s.metrics.RecordOperation(kind, metrics.OutcomeCanceled)
			return
		}
		s.metrics.RecordOperation(kind, metrics.OutcomeFailure)
		s.log.ErrorErr("lock operation failed", err, fields)
		s.report(err)
		s.emitOperation(op, metrics.OutcomeFailure, err)
		return
	}

	next, changed := ApplyOperation(s.snapshot.Load(), OperationCompletion{
		Op:       op,
		Output:   c.result.Output(),
		Username: s.Username(),
		Now:      now,
	})
	if !changed {
		fields["output"] = c.result.Output()
		s.log.Warn("lock operation output not recognized", fields)
		s.metrics.RecordOperation(kind, metrics.OutcomeFailure)
		s.emitOperation(op, metrics.OutcomeFailure,
			errclass.ErrParseAnomaly.WithMessagef("unrecognized output %q", c.result.Output()))
		return
	}
	s.setSnapshotLocked(next)
	s.metrics.RecordOperation(kind, metrics.OutcomeSuccess)
	s.log.Info("lock state updated", fields)
	s.emitOperation(op, metrics.OutcomeSuccess, nil)
}

func (s *Store) emitOperation(op model.PendingOperation, outcome string, err error) {
	if s.onOp == nil {
		return
	}
	s.onOp(OperationEvent{Op: op, Username: s.Username(), Outcome: outcome, Err: err})
}

func (s *Store) applyRefreshLocked(c completion, now time.Time) {
	if s.cycle == nil || s.cycle.id != c.cycleID {
		s.log.Debug("ignoring superseded refresh", map[string]any{"cycle": c.cycleID})
		return
	}
	s.cycle = nil
	s.refreshing.Store(false)
	s.generation++

	res := c.result
	switch {
	case res.Err != nil && isAbandoned(res.Err):
		s.metrics.RecordRefresh(metrics.OutcomeCanceled)
		s.lastErr = res.Err
	default:
		out := ApplyRefresh(s.snapshot.Load(), RefreshCompletion{
			Roots:   res.Roots,
			Outputs: res.Outputs,
			Failed:  res.Failed,
			Err:     res.Err,
		})
		for _, a := range out.Anomalies {
			s.log.Warn("skipping malformed lock entry", map[string]any{"error": a.Error()})
		}
		if out.Applied {
			s.setSnapshotLocked(out.Snapshot)
		}
		switch {
		case out.Err == nil:
			s.metrics.RecordRefresh(metrics.OutcomeSuccess)
			s.log.Debug("refresh applied", map[string]any{"cycle": c.cycleID, "locks": out.Snapshot.Len()})
		case out.Applied:
			s.metrics.RecordRefresh(metrics.OutcomePartial)
			s.log.Warn("refresh partially failed", map[string]any{"cycle": c.cycleID, "error": out.Err.Error()})
			s.report(out.Err)
		default:
			s.metrics.RecordRefresh(metrics.OutcomeFailure)
			s.log.ErrorErr("refresh failed", out.Err, map[string]any{"cycle": c.cycleID})
			s.report(out.Err)
		}
		s.lastErr = out.Err
	}

	if s.refreshAgain {
		s.refreshAgain = false
		s.startCycleLocked(now)
	}
}

func (s *Store) setSnapshotLocked(next *model.LockSnapshot) {
	s.snapshot.Store(next)
	s.dirty |= dirtySnapshot
	s.updateLockMetrics(next)
}

func (s *Store) updateLockMetrics(snap *model.LockSnapshot) {
	if s.metrics == nil {
		return
	}
	user := s.Username()
	mine := 0
	for _, r := range snap.Records() {
		if r.Owner.Name == user {
			mine++
		}
	}
	s.metrics.SetLocks(mine, snap.Len()-mine)
}

func (s *Store) report(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// Flush writes changed state to the preference store.
func (s *Store) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	st := flushState{
		flags:         s.dirty,
		username:      s.Username(),
		enabled:       s.enabled,
		renewInterval: s.renewInterval,
		lastRefresh:   s.lastRefresh,
		snapshot:      s.snapshot.Load(),
	}
	s.dirty = 0
	s.mu.Unlock()

	if st.flags == 0 {
		return nil
	}
	if err := flush(s.prefs, st); err != nil {
		s.mu.Lock()
		s.dirty |= st.flags
		s.mu.Unlock()
		return err
	}
	return nil
}

// DetectUsername learns the backing tool's name for the current user by
// locking .gitattributes in the main root, reading the owner off the lock
// list and force-unlocking it again. The name is stored on success.
func (s *Store) DetectUsername(ctx context.Context) (string, error) {
	roots := s.router.Roots()
	if len(roots) == 0 {
		return "", errclass.ErrNotInitialized.WithMessage("no repository roots")
	}
	mainRoot := roots[len(roots)-1]
	target := filepath.Join(mainRoot, ".gitattributes")
	if _, err := os.Stat(target); err != nil {
		return "", errclass.ErrNotInitialized.WithMessagef("username detection needs %s", target)
	}

	run := func(cmd executor.Command) (string, error) {
		res, err := s.queue.Submit(mainRoot, cmd, nil).Wait(ctx)
		if err != nil {
			return "", err
		}
		return res.Output(), res.Err
	}

	// A failed lock is usually a stale lock left by an interrupted
	// detection, so the list is read anyway.
	_, lockErr := run(executor.AcquireLock(".gitattributes"))
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if lockErr != nil {
		s.log.Warn("could not lock .gitattributes, reading the lock list anyway", map[string]any{"error": lockErr.Error()})
	}

	out, err := run(executor.ListLocks())
	owner := ""
	if err == nil {
		var records []model.LockRecord
		records, _, err = ParseLockList(mainRoot, out)
		want := pathutil.Canonical(target)
		for _, r := range records {
			if r.Path == want {
				owner = r.Owner.Name
				break
			}
		}
	}

	// Someone else's lock on .gitattributes must not become our name.
	accept := owner != "" && (lockErr == nil || s.Username() == "")
	if lockErr == nil || accept {
		if _, err := run(executor.ReleaseLock(".gitattributes", true)); err != nil {
			s.log.ErrorErr("failed to release .gitattributes after username detection", err)
		}
	}

	switch {
	case accept:
		s.SetUsername(owner)
		s.log.Info("detected username", map[string]any{"username": owner})
		return owner, nil
	case lockErr != nil:
		return "", lockErr
	case err != nil:
		return "", err
	}
	return "", errclass.ErrParseAnomaly.WithMessage(".gitattributes lock not found in lock list")
}

// Close stops accepting intents and flushes persistence. The queue is owned
// by the caller.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Flush()
}
