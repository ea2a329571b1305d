package gitlock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/PinkPanter/gitlock/internal/audit"
	"github.com/PinkPanter/gitlock/internal/executor"
	"github.com/PinkPanter/gitlock/internal/lockstate"
	"github.com/PinkPanter/gitlock/internal/prefs"
	"github.com/PinkPanter/gitlock/internal/renewal"
	"github.com/PinkPanter/gitlock/internal/repo"
	"github.com/PinkPanter/gitlock/internal/sentry"
	"github.com/PinkPanter/gitlock/pkg/config"
	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/logging"
	"github.com/PinkPanter/gitlock/pkg/metrics"
	"github.com/PinkPanter/gitlock/pkg/model"
	"github.com/PinkPanter/gitlock/pkg/pathutil"
)

// UsernameEnv overrides the persisted username when set.
const UsernameEnv = "GITLOCK_USERNAME"

// Options configures Open. Zero values pick the production defaults.
type Options struct {
	Dir     string           // Starting directory; defaults to the working directory
	Config  *config.Config   // Loaded from <root>/.gitlock/config.yaml when nil
	Runner  executor.Runner  // git on PATH (or config git_binary) when nil
	Prefs   prefs.Store      // SQLite database at the config state_db path when nil
	Logger  *logging.Logger  // Built from the config logging section when nil
	Metrics *metrics.Registry
	Version string
	Now     func() time.Time

	// SkipUsernameDetection disables the startup probe even when the
	// config asks for it.
	SkipUsernameDetection bool
}

// Client coordinates locks for one working tree.
type Client struct {
	root       string
	cfg        *config.Config
	log        *logging.Logger
	metrics    *metrics.Registry
	now        func() time.Time
	runner     executor.Runner
	queue      *executor.Queue
	store      *lockstate.Store
	prefs      prefs.Store
	ownsPrefs  bool
	scheduler  *renewal.Scheduler
	journal    *audit.FileAppender
	rootsError error
}

// Open discovers the repository containing opts.Dir, collects its submodule
// roots and restores the persisted lock state. It fails with
// ErrNotARepository outside a git working tree.
func Open(ctx context.Context, opts Options) (*Client, error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		dir = wd
	}
	root, err := repo.DetectRoot(dir)
	if err != nil {
		return nil, err
	}

	cfg := opts.Config
	if cfg == nil {
		if cfg, err = config.Load(root); err != nil {
			return nil, err
		}
	}

	log := opts.Logger
	if log == nil {
		log = logging.NewLogger(logging.ParseLevel(cfg.Logging.Level))
		log.SetFormat(logging.ParseFormat(cfg.Logging.Format))
	}

	if err := sentry.Init(opts.Version, cfg.Telemetry.SentryDSN); err != nil {
		log.Warn("error reporting disabled", map[string]any{"error": err.Error()})
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	runner := opts.Runner
	if runner == nil {
		runner = executor.NewGitRunner(cfg.GitBinary, log)
	}
	queue := executor.NewQueue(runner, executor.Options{
		Policy:  executor.ParsePolicy(cfg.MultiRootPolicy),
		Log:     log,
		Metrics: opts.Metrics,
	})

	c := &Client{
		root:    root,
		cfg:     cfg,
		log:     log,
		metrics: opts.Metrics,
		now:     now,
		runner:  runner,
		queue:   queue,
		prefs:   opts.Prefs,
	}

	roots, err := repo.CollectRoots(ctx, queue, root, log)
	if err != nil {
		c.rootsError = err
		log.Warn("continuing without submodules", map[string]any{"error": err.Error()})
	}

	if c.prefs == nil {
		st, err := prefs.OpenSQLite(cfg.StateDBPath(root))
		if err != nil {
			_ = queue.Close()
			return nil, fmt.Errorf("open state: %w", err)
		}
		c.prefs = st
		c.ownsPrefs = true
	}

	var onOp func(lockstate.OperationEvent)
	if cfg.AuditEnabled() {
		c.journal = audit.NewFileAppender(audit.PathFor(root))
		onOp = c.journalOperation
	}

	c.store, err = lockstate.NewStore(lockstate.Options{
		Queue:         queue,
		Router:        repo.NewRouter(roots),
		Prefs:         c.prefs,
		Log:           log,
		Metrics:       opts.Metrics,
		RenewInterval: cfg.RenewEvery(),
		OnError:       sentry.CaptureError,
		OnOperation:   onOp,
		Now:           now,
	})
	if err != nil {
		c.closeResources()
		return nil, err
	}

	if name := os.Getenv(UsernameEnv); name != "" && name != c.store.Username() {
		c.store.SetUsername(name)
	}
	if c.store.Username() == "" && cfg.DetectUsername() && !opts.SkipUsernameDetection {
		if _, err := os.Stat(filepath.Join(root, ".gitattributes")); err == nil {
			if _, err := c.store.DetectUsername(ctx); err != nil {
				log.Warn("could not detect username", map[string]any{"error": err.Error()})
			}
		}
	}
	sentry.SetRepository(root, c.store.Username())

	c.scheduler = renewal.New(c.store, cfg.TickEvery(), log)
	return c, nil
}

func (c *Client) journalOperation(ev lockstate.OperationEvent) {
	err := c.journal.Append(audit.Entry{
		Kind:     ev.Op.Kind,
		Path:     ev.Op.Path,
		Force:    ev.Op.Force,
		Username: ev.Username,
		Outcome:  ev.Outcome,
		Err:      ev.Err,
	})
	if err != nil {
		c.log.ErrorErr("failed to journal lock operation", err)
	}
}

// Root returns the main repository root.
func (c *Client) Root() string { return c.root }

// Roots returns every repository root, deepest first.
func (c *Client) Roots() []string { return c.store.Roots() }

// RootsError is the submodule discovery failure, if any.
func (c *Client) RootsError() error { return c.rootsError }

// Config returns the configuration the client was opened with.
func (c *Client) Config() *config.Config { return c.cfg }

// Logger returns the client's logger.
func (c *Client) Logger() *logging.Logger { return c.log }

// Metrics returns the registry passed to Open, possibly nil.
func (c *Client) Metrics() *metrics.Registry { return c.metrics }

// Journal returns the lock operation journal, or nil when audit_log is off.
func (c *Client) Journal() *audit.FileAppender { return c.journal }

// Query surface.

func (c *Client) IsInitialized() bool { return c.store.IsInitialized() }
func (c *Client) IsRefreshing() bool  { return c.store.IsRefreshing() }

// IsExecuting reports whether path has a lock or unlock in flight.
func (c *Client) IsExecuting(path string) bool {
	return c.store.IsExecuting(c.resolve(path))
}

// LockStateOf classifies path. Relative paths are taken from the working
// directory.
func (c *Client) LockStateOf(path string) model.LockStatus {
	return c.store.LockStateOf(c.resolve(path))
}

func (c *Client) AllLocks() []model.LockRecord      { return c.store.AllLocks() }
func (c *Client) Pending() []model.PendingOperation { return c.store.Pending() }
func (c *Client) Username() string                  { return c.store.Username() }
func (c *Client) Enabled() bool                     { return c.store.Enabled() }
func (c *Client) RenewInterval() time.Duration      { return c.store.RenewInterval() }
func (c *Client) LastRefresh() time.Time            { return c.store.LastRefresh() }
func (c *Client) LastRefreshError() error           { return c.store.LastRefreshError() }

// CommandRunning reports whether a git process is executing right now.
func (c *Client) CommandRunning() bool {
	if r, ok := c.runner.(executor.ExecutionReporter); ok {
		return r.Executing()
	}
	return c.queue.Busy()
}

// Command surface.

// Acquire requests a lock on path. It returns nil when nothing was
// dispatched.
func (c *Client) Acquire(path string) *executor.Handle {
	return c.store.Acquire(c.resolve(path))
}

// Release requests an unlock of path.
func (c *Client) Release(path string, force bool) *executor.Handle {
	return c.store.Release(c.resolve(path), force)
}

// ForceRefresh re-reads every lock now.
func (c *Client) ForceRefresh() *executor.Handle { return c.store.ForceRefresh() }

func (c *Client) SetUsername(name string) {
	c.store.SetUsername(name)
	sentry.SetRepository(c.root, name)
}

func (c *Client) SetEnabled(enabled bool) { c.store.SetEnabled(enabled) }

func (c *Client) SetRenewInterval(d time.Duration) error { return c.store.SetRenewInterval(d) }

// DetectUsername asks the lfs server who we are and stores the answer.
func (c *Client) DetectUsername(ctx context.Context) (string, error) {
	name, err := c.store.DetectUsername(ctx)
	if err == nil {
		sentry.SetRepository(c.root, name)
	}
	return name, err
}

// Driving.

// Tick applies finished commands, persists and refreshes when due.
func (c *Client) Tick() { c.store.Tick(c.now()) }

// Flush persists pending state changes.
func (c *Client) Flush() error { return c.store.Flush() }

// Run drives the client on its tick interval until ctx is done.
func (c *Client) Run(ctx context.Context) error { return c.scheduler.Run(ctx) }

// ApplyConfig applies the runtime-adjustable parts of a reloaded config.
func (c *Client) ApplyConfig(cfg *config.Config) error {
	c.log.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	c.log.SetFormat(logging.ParseFormat(cfg.Logging.Format))
	c.scheduler.SetInterval(cfg.TickEvery())
	if cfg.RenewEvery() != c.store.RenewInterval() {
		if err := c.store.SetRenewInterval(cfg.RenewEvery()); err != nil {
			return err
		}
	}
	c.cfg = cfg
	return nil
}

// Blocking helpers.

// AcquireWait locks path and waits for the result to be applied. It fails
// unless path ends up locked by the current user.
func (c *Client) AcquireWait(ctx context.Context, path string) (model.LockStatus, error) {
	abs := c.resolve(path)
	return c.await(ctx, abs, c.store.Acquire(abs), model.OperationAcquire)
}

// ReleaseWait unlocks path and waits for the result to be applied. It fails
// unless path ends up unlocked.
func (c *Client) ReleaseWait(ctx context.Context, path string, force bool) (model.LockStatus, error) {
	abs := c.resolve(path)
	st := c.store.LockStateOf(abs)
	if st.Record != nil && !force && st.State == model.LockStateLockedByOther {
		return st, errclass.ErrLockConflict.WithMessagef("%s is locked by %s; use --force to unlock", abs, st.Record.Owner.Name)
	}
	return c.await(ctx, abs, c.store.Release(abs, force), model.OperationRelease)
}

func (c *Client) await(ctx context.Context, path string, h *executor.Handle, kind model.OperationKind) (model.LockStatus, error) {
	want := model.LockStateLockedByYou
	if kind == model.OperationRelease {
		want = model.LockStateUnlocked
	}

	if h == nil {
		if err := c.explainNoop(path); err != nil {
			return c.store.LockStateOf(path), err
		}
		st := c.store.LockStateOf(path)
		return st, noopError(st, kind)
	}
	res, err := h.Wait(ctx)
	if err != nil {
		return c.store.LockStateOf(path), err
	}
	c.store.ApplyCompletions(c.now())
	if err := c.store.Flush(); err != nil {
		c.log.ErrorErr("failed to persist lock state", err)
	}

	st := c.store.LockStateOf(path)
	switch {
	case res.Err != nil:
		return st, res.Err
	case st.State == want:
		return st, nil
	case st.State == model.LockStateLockedByOther:
		return st, errclass.ErrLockConflict.WithMessagef("%s is locked by %s", path, st.Record.Owner.Name)
	default:
		return st, errclass.ErrParseAnomaly.WithMessagef("%s: unrecognized output %q", h.Command(), res.Output())
	}
}

// noopError explains why an intent dispatched nothing. Acquiring a path the
// current user already holds is not an error.
func noopError(st model.LockStatus, kind model.OperationKind) error {
	switch {
	case st.Executing:
		return errclass.ErrLockConflict.WithMessagef("%s already has a lock operation in flight", st.Path)
	case st.State == model.LockStateLockedByOther:
		return errclass.ErrLockConflict.WithMessagef("%s is locked by %s", st.Path, st.Record.Owner.Name)
	case kind == model.OperationAcquire && st.State == model.LockStateLockedByYou:
		return nil
	case kind == model.OperationRelease && st.State == model.LockStateUnlocked:
		return errclass.ErrNotLocked.WithMessagef("%s is not locked", st.Path)
	}
	return errclass.ErrNotInitialized.WithMessagef("nothing was dispatched for %s", st.Path)
}

func (c *Client) explainNoop(path string) error {
	if !c.store.Enabled() {
		return errclass.ErrNotInitialized.WithMessage("gitlock is disabled; run `gitlock enable`")
	}
	inRoot := false
	for _, r := range c.store.Roots() {
		if pathutil.HasPathPrefix(r, path) {
			inRoot = true
			break
		}
	}
	if !inRoot {
		return errclass.ErrNotARepository.WithMessagef("%s is outside %s", path, c.root)
	}
	return nil
}

// Sync forces a refresh and waits until a cycle started after the call has
// been applied. It returns that cycle's error.
func (c *Client) Sync(ctx context.Context) error {
	gen := c.store.Generation()
	if h := c.store.ForceRefresh(); h == nil && !c.store.IsRefreshing() {
		return errclass.ErrNotInitialized.WithMessage("refresh could not be started")
	}

	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()
	for {
		c.store.ApplyCompletions(c.now())
		if c.store.Generation() > gen && !c.store.IsRefreshing() {
			if err := c.store.Flush(); err != nil {
				c.log.ErrorErr("failed to persist lock state", err)
			}
			return c.store.LastRefreshError()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.store.Wake():
		case <-poll.C:
		}
	}
}

// Close fails queued commands, kills the running one and persists state.
func (c *Client) Close() error {
	err := c.store.Close()
	c.closeResources()
	sentry.Flush()
	return err
}

func (c *Client) closeResources() {
	_ = c.queue.Close()
	if c.ownsPrefs {
		if err := c.prefs.Close(); err != nil {
			c.log.ErrorErr("failed to close state database", err)
		}
	}
}

func (c *Client) resolve(path string) string {
	if filepath.IsAbs(pathutil.Canonical(path)) {
		return pathutil.Canonical(path)
	}
	abs, err := pathutil.Abs(path)
	if err != nil {
		return pathutil.Canonical(path)
	}
	return abs
}
