// Package app wires the engine together and manages its lifecycle: load the
// configuration, resolve targets and credentials, build the session cache and
// reader, and run the poll scheduler. Consumers (the dashboard, the headless
// exporter) only see snapshots.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/netwatch/trafikwatch/models"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/config"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/export"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/poller"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/rate"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/scheduler"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the top-level settings for the engine.
type Config struct {
	// ConfigPath is the YAML configuration file (required).
	ConfigPath string

	// Headless enables JSONL snapshot export instead of interactive use.
	Headless bool

	// ExportWriter receives JSONL records in headless mode. nil = os.Stdout.
	ExportWriter io.Writer
}

// ─────────────────────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────────────────────

// App owns the engine's components. Create one with New, start it with
// Start, and stop with Stop.
type App struct {
	cfg    Config
	logger *slog.Logger

	loaded  *config.Config
	targets []models.Target

	cache *poller.SessionCache
	sched *scheduler.Scheduler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an App. It does not start anything; call Start.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &App{cfg: cfg, logger: logger}
}

// Start loads configuration, resolves targets, and launches the scheduler.
// Resolution errors on individual targets are logged and those targets
// excluded; Start fails only when no valid target remains.
func (a *App) Start(ctx context.Context) error {
	loaded, err := config.Load(a.cfg.ConfigPath, a.logger)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}
	a.loaded = loaded

	targets, errs := config.ResolveTargets(loaded, a.logger)
	for _, rerr := range errs {
		a.logger.Error("app: target excluded", "error", rerr.Error())
	}
	if len(targets) == 0 {
		return fmt.Errorf("app: no valid targets in %s", a.cfg.ConfigPath)
	}
	a.targets = targets
	a.logger.Info("app: targets resolved",
		"targets", len(targets),
		"excluded", len(errs),
	)

	a.cache = poller.NewSessionCache(nil, poller.SessionOptions{
		Timeout: loaded.Timeout.Std(),
	}, a.logger)
	reader := poller.NewSNMPReader(a.cache, a.logger)

	a.sched = scheduler.New(targets, reader, scheduler.Options{
		Interval:   loaded.Interval.Std(),
		Timeout:    loaded.Timeout.Std(),
		MaxHistory: loaded.MaxHistory,
		Policy: rate.Policy{
			CeilingBps:    loaded.RateCeilingBps,
			SpeedHeadroom: loaded.SpeedHeadroom,
		},
	}, a.logger)

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sched.Run(runCtx)
	}()

	if a.cfg.Headless {
		a.startExport(runCtx, loaded.Interval.Std())
	}

	a.logger.Info("app: running",
		"interval", loaded.Interval.Std(),
		"headless", a.cfg.Headless,
	)
	return nil
}

// Stop shuts the engine down: cancel the scheduler, wait for in-flight polls
// to finish, then tear down the cached sessions.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	if a.sched != nil {
		a.sched.Stop()
	}
	a.wg.Wait()

	if a.cache != nil {
		_ = a.cache.Close()
	}
	a.logger.Info("app: shutdown complete")
}

// Snapshot returns the current state of every target.
func (a *App) Snapshot() []scheduler.TargetStatus {
	if a.sched == nil {
		return nil
	}
	return a.sched.CurrentSnapshot()
}

// PollNow requests an immediate poll of one target, or of all targets when
// key is empty.
func (a *App) PollNow(key string) {
	if a.sched != nil {
		a.sched.PollNow(key)
	}
}

// Interval reports the configured poll interval.
func (a *App) Interval() time.Duration {
	if a.loaded == nil {
		return 0
	}
	return a.loaded.Interval.Std()
}

// ─────────────────────────────────────────────────────────────────────────────
// Headless export
// ─────────────────────────────────────────────────────────────────────────────

// startExport emits one snapshot per poll interval as JSONL.
func (a *App) startExport(ctx context.Context, interval time.Duration) {
	out := a.cfg.ExportWriter
	if out == nil {
		out = os.Stdout
	}
	writer := export.NewWriter(out, a.logger)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := writer.WriteSnapshot(a.sched.CurrentSnapshot()); err != nil {
					a.logger.Error("app: export failed", "error", err.Error())
				}
			}
		}
	}()
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
