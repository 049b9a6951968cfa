// Package daemon runs shelfsync unattended: cron-scheduled build and
// notify runs, a Prometheus metrics endpoint, and live configuration
// reload on file change.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"shelfsync/internal/config"
	"shelfsync/internal/logfields"
	"shelfsync/internal/metrics"
	"shelfsync/internal/pipeline"
)

// PipelineFactory builds a pipeline from a configuration. The daemon calls
// it at startup and again on every config reload so a reload swaps the
// whole component graph, not just the settings struct.
type PipelineFactory func(cfg *config.Config, rec metrics.Recorder) (*pipeline.Pipeline, error)

// Daemon owns the scheduler, the metrics server, and the config watcher.
type Daemon struct {
	configPath string
	factory    PipelineFactory

	mu   sync.RWMutex
	cfg  *config.Config
	pipe *pipeline.Pipeline

	scheduler gocron.Scheduler
	watcher   *ConfigWatcher
	recorder  metrics.Recorder
	registry  *prom.Registry
	httpSrv   *http.Server

	// runMu serializes runs: a scheduled notify must never interleave
	// with a build against the same working tree.
	runMu sync.Mutex
}

// New constructs a daemon from an already loaded configuration.
func New(configPath string, cfg *config.Config, factory PipelineFactory) (*Daemon, error) {
	d := &Daemon{
		configPath: configPath,
		factory:    factory,
		cfg:        cfg,
	}

	if cfg.Metrics.Enabled {
		d.registry = prom.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
	} else {
		d.recorder = metrics.NoopRecorder{}
	}

	pipe, err := factory(cfg, d.recorder)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	d.pipe = pipe

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	d.scheduler = sched

	return d, nil
}

// Start schedules the jobs and begins serving. Blocks until ctx is done.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.RLock()
	cfg := d.cfg
	d.mu.RUnlock()

	if err := d.scheduleJobs(ctx, cfg.Schedules); err != nil {
		return err
	}

	watcher, err := NewConfigWatcher(d.configPath, d)
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	d.watcher = watcher
	if err := d.watcher.Start(ctx); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		d.startMetricsServer(cfg.Metrics.Listen)
	}

	slog.Info("Daemon started",
		slog.String("build_schedule", cfg.Schedules.Build),
		slog.String("notify_schedule", cfg.Schedules.Notify),
		slog.Bool("metrics", cfg.Metrics.Enabled))

	d.scheduler.Start()

	<-ctx.Done()
	return d.Stop()
}

// Stop shuts down the scheduler, watcher, and metrics server.
func (d *Daemon) Stop() error {
	slog.Info("Stopping daemon")

	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server shutdown failed", logfields.Error(err))
		}
	}
	return d.scheduler.Shutdown()
}

func (d *Daemon) scheduleJobs(ctx context.Context, schedules config.ScheduleConfig) error {
	if _, err := d.scheduler.NewJob(
		gocron.CronJob(schedules.Build, false),
		gocron.NewTask(d.runBuild, ctx),
		gocron.WithName("build"),
	); err != nil {
		return fmt.Errorf("failed to schedule build job: %w", err)
	}
	if _, err := d.scheduler.NewJob(
		gocron.CronJob(schedules.Notify, false),
		gocron.NewTask(d.runNotify, ctx),
		gocron.WithName("notify"),
	); err != nil {
		return fmt.Errorf("failed to schedule notify job: %w", err)
	}
	return nil
}

func (d *Daemon) runBuild(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.RLock()
	pipe := d.pipe
	d.mu.RUnlock()

	report, err := pipe.Build(ctx)
	if err != nil {
		slog.Error("Scheduled build run failed", logfields.Error(err))
		return
	}
	slog.Info("Scheduled build run finished",
		logfields.RunID(report.RunID),
		slog.Bool("committed", report.Commit.Committed))
}

func (d *Daemon) runNotify(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.RLock()
	pipe := d.pipe
	d.mu.RUnlock()

	report, err := pipe.Notify(ctx)
	if err != nil {
		slog.Error("Scheduled notify run failed", logfields.Error(err))
		return
	}
	slog.Info("Scheduled notify run finished",
		logfields.RunID(report.RunID),
		slog.Bool("delivered", report.Delivered))
}

// GetConfig returns the currently active configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ReloadConfig swaps in a new configuration and rebuilds the pipeline.
// The scheduler jobs are replaced only if the cron expressions changed.
func (d *Daemon) ReloadConfig(ctx context.Context, newCfg *config.Config) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	pipe, err := d.factory(newCfg, d.recorder)
	if err != nil {
		return fmt.Errorf("failed to rebuild pipeline: %w", err)
	}

	d.mu.Lock()
	oldSchedules := d.cfg.Schedules
	d.cfg = newCfg
	d.pipe = pipe
	d.mu.Unlock()

	if newCfg.Schedules != oldSchedules {
		if err := d.rescheduleJobs(ctx, newCfg.Schedules); err != nil {
			return err
		}
		slog.Info("Schedules updated",
			slog.String("build_schedule", newCfg.Schedules.Build),
			slog.String("notify_schedule", newCfg.Schedules.Notify))
	}
	return nil
}

func (d *Daemon) rescheduleJobs(ctx context.Context, schedules config.ScheduleConfig) error {
	for _, job := range d.scheduler.Jobs() {
		if err := d.scheduler.RemoveJob(job.ID()); err != nil {
			return fmt.Errorf("failed to remove job %s: %w", job.Name(), err)
		}
	}
	return d.scheduleJobs(ctx, schedules)
}

func (d *Daemon) startMetricsServer(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	d.httpSrv = &http.Server{Addr: listen, Handler: mux}
	go func() {
		slog.Info("Metrics server listening", slog.String("addr", listen))
		if err := d.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
}
