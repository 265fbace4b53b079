package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"ferry/internal/config"
	"ferry/internal/engine"
	"ferry/internal/logging"
)

// Daemon owns the process-level concerns of a running ferry instance: the
// single-instance lock and the API server lifecycle.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New builds a daemon around an already wired engine.
func New(cfg *config.Config, eng *engine.Engine, gatherer prometheus.Gatherer, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if eng == nil {
		return nil, errors.New("engine is nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "ferryd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		api:      newAPIServer(cfg.Paths.APIBind, cfg.Paths.APIToken, eng, gatherer, logger),
	}, nil
}

// Start acquires the instance lock and brings up the API server. It returns
// without blocking; Wait or ctx cancellation drive shutdown.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ferry daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.APIAddr()))
	return nil
}

// Stop shuts the API server down and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release lock failed", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Wait blocks until the daemon's context ends.
func (d *Daemon) Wait() {
	if d.ctx == nil {
		return
	}
	<-d.ctx.Done()
}

// Running reports whether Start has completed without a matching Stop.
func (d *Daemon) Running() bool { return d.running.Load() }

// APIAddr reports the bound API address, empty when the API is disabled.
func (d *Daemon) APIAddr() string { return d.api.addr() }

// LockPath reports where the instance lock lives.
func (d *Daemon) LockPath() string { return d.lockPath }
