package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"shelfsync/internal/calibre"
	"shelfsync/internal/catalog"
	"shelfsync/internal/config"
	"shelfsync/internal/daemon"
	"shelfsync/internal/gitops"
	"shelfsync/internal/mailer"
	"shelfsync/internal/metrics"
	"shelfsync/internal/pipeline"
	"shelfsync/internal/resolver"
	"shelfsync/internal/storage"
	"shelfsync/internal/storage/gdrive"
	"shelfsync/internal/zotero"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct{} `cmd:"" help:"Regenerate all collection listings and commit changes"`

	Notify struct{} `cmd:"" help:"Pick one unsent entry, email it, and record it"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write an example configuration file"`

	Daemon struct{} `cmd:"" help:"Run scheduled build and notify runs continuously"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch kctx.Command() {
	case "build":
		if err := runBuild(); err != nil {
			slog.Error("Build failed", "error", err)
			os.Exit(1)
		}
	case "notify":
		if err := runNotify(); err != nil {
			slog.Error("Notify failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		fmt.Println("Configuration written to", CLI.Config)
	case "daemon":
		if err := runDaemon(); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	}
}

// buildPipeline wires the component graph from a loaded configuration.
// Used directly by one-shot commands and as the daemon's reload factory.
func buildPipeline(cfg *config.Config, rec metrics.Recorder) (*pipeline.Pipeline, error) {
	ctx := context.Background()

	backends := make(map[string]catalog.Backend)
	if cfg.Backends.Calibre != nil {
		backends["calibre"] = calibre.New(cfg.Backends.Calibre)
	}
	if cfg.Backends.Zotero != nil {
		backends["zotero"] = zotero.New(cfg.Backends.Zotero)
	}

	var store storage.Storage
	switch {
	case cfg.Storage.GDrive != nil:
		s, err := gdrive.New(ctx, cfg.Storage.GDrive)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize drive storage: %w", err)
		}
		store = s
	case cfg.Storage.Local != nil:
		s, err := storage.NewLocalDirStore(cfg.Storage.Local.Path, cfg.Storage.Local.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		store = s
	}

	gate := gitops.NewClient(cfg.Output)
	if err := gate.EnsureRepository(); err != nil {
		return nil, fmt.Errorf("failed to prepare output repository: %w", err)
	}

	sender := mailer.NewSMTPSender(cfg.Mail)

	return pipeline.New(cfg, backends, resolver.New(store), sender, gate, rec), nil
}

func runBuild() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	pipe, err := buildPipeline(cfg, nil)
	if err != nil {
		return err
	}

	report, runErr := pipe.Build(context.Background())
	if report != nil {
		printRunReport(report)
	}
	return runErr
}

func runNotify() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	pipe, err := buildPipeline(cfg, nil)
	if err != nil {
		return err
	}

	report, runErr := pipe.Notify(context.Background())
	if report != nil {
		printRunReport(report)
	}
	return runErr
}

func runDaemon() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(CLI.Config, cfg, buildPipeline)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	slog.Info("Daemon starting, waiting for shutdown signal")
	return d.Start(ctx)
}
