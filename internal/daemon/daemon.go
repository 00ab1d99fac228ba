package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deepak-highbeam/schemadrift/internal/baseline"
	"github.com/deepak-highbeam/schemadrift/internal/branchctx"
	"github.com/deepak-highbeam/schemadrift/internal/config"
	"github.com/deepak-highbeam/schemadrift/internal/dbsource"
	"github.com/deepak-highbeam/schemadrift/internal/gitint"
	"github.com/deepak-highbeam/schemadrift/internal/metrics"
	"github.com/deepak-highbeam/schemadrift/internal/store"
)

// IPCServer is the interface the daemon uses to start/stop the IPC listener.
// This avoids a circular dependency with the ipc package.
type IPCServer interface {
	Listen(socketPath string, ctx context.Context) error
	Stop() error
}

// StoreAware can receive a store reference after it becomes available.
type StoreAware interface {
	SetStore(store interface{})
}

// ConnectFunc opens a schema source. It blocks, retrying, until the source
// is reachable or ctx is done.
type ConnectFunc func(ctx context.Context) (dbsource.Source, error)

// Daemon manages the lifecycle of the schemadrift background process: the
// database poll loop, the git watch loop and the control socket.
type Daemon struct {
	cfg       *config.Config
	store     *store.Store
	ipc       IPCServer
	connect   ConnectFunc
	metrics   *metrics.Collector
	runID     string
	startTime time.Time

	branch  *branchctx.Context
	tracker *baseline.Tracker
	repo    *gitint.Repository
	tables  atomic.Int64
	syncNow chan struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	running bool
}

// New creates a new Daemon with the given config.
// The IPC server is injected to avoid circular imports.
func New(cfg *config.Config, ipcServer IPCServer) *Daemon {
	d := &Daemon{
		cfg:     cfg,
		ipc:     ipcServer,
		metrics: metrics.NewCollector(),
		runID:   uuid.NewString(),
		syncNow: make(chan struct{}, 1),
		branch:  branchctx.New(branchctx.Unknown),
		tracker: baseline.NewTracker(
			baseline.Layout{Root: cfg.OutputDir},
			cfg.MainBranch,
			baseline.NewEmissionCache(),
		),
	}
	d.connect = func(ctx context.Context) (dbsource.Source, error) {
		return dbsource.Connect(ctx, cfg.Database, cfg.DBPollInterval)
	}
	return d
}

// TriggerSync asks the poll loop to run a cycle now. Requests made while
// one is already pending are merged.
func (d *Daemon) TriggerSync() {
	select {
	case d.syncNow <- struct{}{}:
	default:
	}
}

// SetConnector replaces the function used to reach the database.
func (d *Daemon) SetConnector(fn ConnectFunc) {
	d.connect = fn
}

// Start initialises the store, starts the IPC server and both watch loops,
// and blocks until the context is cancelled (via signal or Stop) or one of
// the long-running goroutines fails.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.mu.Unlock()

	if err := d.cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}

	// Open store (runs migrations).
	s, err := store.New(d.cfg.StateDB)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	d.store = s
	d.saveState("run_id", d.runID)

	// If the IPC server is StoreAware, give it the store reference.
	if sa, ok := d.ipc.(StoreAware); ok {
		sa.SetStore(s)
	}

	// Create a signal-aware context.
	ctx, cancel := signalContext(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	d.mu.Lock()
	d.ctx = gctx
	d.cancel = cancel
	d.running = true
	d.mu.Unlock()
	d.startTime = time.Now()

	if d.ipc != nil {
		g.Go(func() error {
			return d.ipc.Listen(d.cfg.SocketPath, gctx)
		})
	}

	// --- Git integration ---
	// The branch stays "unknown" when the working tree is not a repository.
	if w := d.openGit(); w != nil {
		g.Go(func() error {
			if err := w.Run(gctx); err != nil {
				log.Printf("gitwatch: %v", err)
			}
			return nil
		})
	}

	// --- Database poll loop ---
	g.Go(func() error {
		d.dbLoop(gctx)
		return nil
	})

	if d.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return d.metrics.Serve(gctx, d.cfg.MetricsAddr)
		})
	}

	log.Printf("daemon started (pid %d, run %s, database %s@%s:%d, branch %s, main %s, output %s)",
		os.Getpid(), d.runID, d.cfg.Database.Name, d.cfg.Database.Host, d.cfg.Database.Port,
		d.branch.Branch(), d.tracker.MainBranch(), d.cfg.OutputDir)

	// Block until context is cancelled or a goroutine fails.
	<-gctx.Done()
	if ctx.Err() != nil {
		log.Println("shutdown signal received")
	}
	runErr := g.Wait()
	if runErr != nil {
		log.Printf("daemon error: %v", runErr)
	}

	if err := d.shutdown(); err != nil {
		return err
	}
	return runErr
}

// openGit opens the configured repository and seeds the branch context from
// its HEAD. It returns nil if there is nothing to watch.
func (d *Daemon) openGit() *gitint.Watcher {
	repo, err := gitint.Open(d.cfg.RepoPath)
	if err != nil {
		log.Printf("gitwatch: open %s (not a git repo?): %v", d.cfg.RepoPath, err)
		return nil
	}
	d.repo = repo

	w := gitint.NewWatcher(repo, d.cfg.GitPollInterval, d.handleGitEvent)
	head, err := w.Init()
	if err != nil {
		log.Printf("gitwatch: read HEAD: %v", err)
		return w
	}
	d.branch.SetBranch(head.Branch)
	d.branch.SetCommit(head.Commit)
	d.saveState("last_branch", head.Branch)
	d.saveState("last_commit", head.Commit)
	log.Printf("gitwatch: watching %s on branch %s", repo.Path(), head.Branch)
	return w
}

// Stop triggers a graceful shutdown from outside (e.g. via IPC stop command).
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// shutdown performs ordered teardown after the watch loops have returned:
// IPC server, then store, then socket cleanup.
func (d *Daemon) shutdown() error {
	log.Println("shutting down...")

	d.Stop()

	// Stop IPC server (stops accepting, drains connections).
	if d.ipc != nil {
		if err := d.ipc.Stop(); err != nil {
			log.Printf("ipc stop: %v", err)
		}
	}

	// Close the store.
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			log.Printf("store close: %v", err)
		}
	}

	// Remove socket file.
	_ = os.Remove(d.cfg.SocketPath)

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	log.Println("daemon stopped")
	return nil
}

// Running returns true if the daemon is currently running.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Uptime returns how long the daemon has been running.
func (d *Daemon) Uptime() time.Duration {
	if d.startTime.IsZero() {
		return 0
	}
	return time.Since(d.startTime)
}

// Config returns the daemon's configuration.
func (d *Daemon) Config() *config.Config {
	return d.cfg
}

// Branch returns the branch the database is currently attributed to.
func (d *Daemon) Branch() string {
	return d.branch.Branch()
}

// Commit returns the last HEAD commit seen by the git watcher.
func (d *Daemon) Commit() string {
	return d.branch.Commit()
}

// MainBranch returns the configured baseline branch, sanitized.
func (d *Daemon) MainBranch() string {
	return d.tracker.MainBranch()
}

// Bootstrapped reports whether the main baseline has been initialized.
func (d *Daemon) Bootstrapped() bool {
	return d.tracker.Bootstrapped()
}

// RunID identifies this daemon process in the ledger.
func (d *Daemon) RunID() string {
	return d.runID
}

// Metrics returns the daemon's metric collector.
func (d *Daemon) Metrics() *metrics.Collector {
	return d.metrics
}

// TablesTracked returns the number of tables seen in the last poll cycle.
func (d *Daemon) TablesTracked() int {
	return int(d.tables.Load())
}

func (d *Daemon) saveState(key, value string) {
	if d.store == nil {
		return
	}
	if err := d.store.SetDaemonState(key, value); err != nil {
		log.Printf("store: save %s: %v", key, err)
	}
}

// RunOnce performs a single poll cycle against the database without the
// control socket or the watch loops, then closes the store.
func (d *Daemon) RunOnce(ctx context.Context) error {
	if err := d.cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}
	s, err := store.New(d.cfg.StateDB)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	d.store = s
	defer func() {
		_ = s.Close()
		d.store = nil
	}()

	ctx, cancel := signalContext(ctx)
	defer cancel()

	_ = d.openGit()
	return d.RunCycle(ctx)
}
