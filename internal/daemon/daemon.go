package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"slidecast/internal/browser"
	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/metrics"
	"slidecast/internal/preflight"
	"slidecast/internal/render"
)

// Daemon coordinates the session pool, the renderer, and the HTTP API, and
// enforces single-instance execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	pool     *browser.Pool
	renderer *render.Renderer
	registry *jobRegistry
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	LockFilePath string             `json:"lock_file_path"`
	Pool         browser.Stats      `json:"pool"`
	Jobs         map[JobStatus]int  `json:"jobs"`
	Checks       []preflight.Result `json:"checks,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, pool *browser.Pool, renderer *render.Renderer, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || pool == nil || renderer == nil || logger == nil {
		return nil, errors.New("daemon requires config, pool, renderer, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "slidecastd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		pool:     pool,
		renderer: renderer,
		registry: newJobRegistry(),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, warms up the session pool, and brings up
// the HTTP API. A pool that cannot initialize yet is logged, not fatal: the
// first acquire retries it.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another slidecast daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	for _, check := range preflight.RunAll(d.cfg) {
		d.logger.Debug("preflight check",
			logging.String("check", check.Name),
			logging.Bool("passed", check.Passed))
		if !check.Passed {
			d.logger.Warn("preflight check failed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail))
		}
	}

	if err := d.pool.Initialize(d.ctx); err != nil {
		d.logger.Warn("session pool warm-up failed, will retry on demand", logging.Error(err))
	}

	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("slidecast daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("pool_size", d.cfg.Browser.PoolSize))
	return nil
}

// Stop shuts down the API, the pool, and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
	}
	if d.api != nil {
		d.api.stop()
	}
	d.pool.Shutdown()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	// d.ctx is left as the cancelled context rather than nil so a Submit
	// racing Stop launches a job that fails fast instead of panicking.
	d.running.Store(false)
	d.logger.Info("slidecast daemon stopped")
}

// Submit accepts a render job, assigns it an identifier, and runs it in the
// background. Concurrency is bounded by the session pool, not here.
func (d *Daemon) Submit(job *render.Job) (string, error) {
	if !d.running.Load() {
		return "", errors.New("daemon is not running")
	}
	if err := job.Validate(); err != nil {
		return "", err
	}

	id := d.registry.add(job)
	submitted := *job
	submitted.ID = id

	ctx := d.ctx
	go d.run(ctx, &submitted)
	return id, nil
}

func (d *Daemon) run(ctx context.Context, job *render.Job) {
	started := time.Now()
	d.registry.markRunning(job.ID)
	result, err := d.renderer.Render(ctx, job)
	if err != nil {
		d.registry.markFailed(job.ID, err)
		d.logger.Warn("render job failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(err))
		return
	}
	d.registry.markCompleted(job.ID, result)
	d.logger.Info("render job completed",
		logging.String(logging.FieldJobID, job.ID),
		logging.Duration("elapsed", time.Since(started)))
}

// Job returns the record for one submitted job, or nil when unknown.
func (d *Daemon) Job(id string) *JobRecord {
	return d.registry.get(id)
}

// Jobs returns all job records, newest first.
func (d *Daemon) Jobs() []JobRecord {
	return d.registry.list()
}

// Status reports current runtime state.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		Pool:         d.pool.Stats(),
		Jobs:         d.registry.counts(),
		Checks:       preflight.RunAll(d.cfg),
	}
}

// Healthy reports whether the daemon can serve renders right now.
func (d *Daemon) Healthy() bool {
	return d.running.Load()
}

// RegisterMetrics exposes pool occupancy gauges. Call once per process.
func (d *Daemon) RegisterMetrics() {
	metrics.RegisterPool(func() metrics.PoolStats {
		stats := d.pool.Stats()
		return metrics.PoolStats{Free: stats.Free, Busy: stats.Busy, Waiting: stats.Waiting}
	})
}
