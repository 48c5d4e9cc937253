package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"bomstudio/internal/api"
	"bomstudio/internal/config"
	"bomstudio/internal/deps"
	"bomstudio/internal/intake"
	"bomstudio/internal/logging"
	"bomstudio/internal/notifications"
	"bomstudio/internal/store"
	"bomstudio/internal/video"
	"bomstudio/internal/workflow"
)

// staleNote is recorded on videos whose pipeline was interrupted by a crash.
const staleNote = video.FailureNotePrefix + "interrupted by process restart"

// Daemon coordinates the pipeline and the API server and enforces
// single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        store.Store
	orchestrator *workflow.Orchestrator
	server       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	PipelinesRunning []string
	LockFilePath     string
	APIAddress       string
	Dependencies     []deps.Status
}

// New constructs a daemon. deliverer may be nil.
func New(cfg *config.Config, st store.Store, logger *slog.Logger, stages workflow.Stages, deliverer video.Deliverer) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := notifications.NewService(cfg)
	orchestrator, err := workflow.New(cfg, st, stages, notifier, logger)
	if err != nil {
		return nil, err
	}
	videos := video.NewService(st, deliverer, logger).WithNotifier(notifier)
	router := api.NewRouter(api.Deps{
		Store:    st,
		Videos:   videos,
		Pipeline: orchestrator,
		Intake:   intake.NewHandler(orchestrator, logger),
		Logger:   logger,
		APIToken: cfg.Paths.APIToken,
	})

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        st,
		orchestrator: orchestrator,
		server:       newAPIServer(cfg.Paths.APIBind, router, logger),
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, recovers stale pipelines, and starts the
// API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bomstudio daemon instance is already running")
	}

	reset, err := d.store.ResetStalePipelines(ctx, staleNote)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset stale pipelines: %w", err)
	}
	if reset > 0 {
		d.logger.Warn("rolled back interrupted pipelines",
			logging.String(logging.FieldEventType, "stale_pipelines_reset"),
			logging.Int64("count", reset),
			logging.String(logging.FieldErrorHint, "retry the affected videos once the cause is fixed"),
		)
	}

	for _, missing := range deps.Missing(deps.CheckBinaries(deps.Requirements(d.cfg))) {
		d.logger.Warn("pipeline dependency unavailable",
			logging.String(logging.FieldEventType, "dependency_missing"),
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldErrorHint, missing.Description),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("bomstudio daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.address()),
	)
	return nil
}

// Stop cancels in-flight pipelines, shuts the API down, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.orchestrator.Stop()
	d.orchestrator.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("bomstudio daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:          d.running.Load(),
		PipelinesRunning: d.orchestrator.Running(),
		LockFilePath:     d.lockPath,
		APIAddress:       d.server.address(),
		Dependencies:     deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
}
