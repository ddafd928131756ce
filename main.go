package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mailtools/eml-to-pdf/batch"
	"github.com/mailtools/eml-to-pdf/config"
	"github.com/mailtools/eml-to-pdf/model"
	"github.com/mailtools/eml-to-pdf/progress"
	"github.com/mailtools/eml-to-pdf/render"
	"github.com/mailtools/eml-to-pdf/stats"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "eml-to-pdf",
		Short: "Convert .eml and .msg email files in a directory to PDFs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting eml-to-pdf", "dir", cfg.Dir, "output", cfg.OutputDir, "concurrency", cfg.Concurrency)

			return run(cfg, logger)
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	var engine render.Engine
	if !cfg.NoBrowser {
		browser := render.StartBrowser(context.Background(), render.BrowserOptions{
			Sessions: cfg.BrowserSessions,
			Timeout:  cfg.RenderTimeout,
		}, logger)
		defer browser.Close()
		engine = browser
	}

	renderer := render.NewRenderer(engine, logger)

	orchestrator := batch.New(batch.Options{
		Dir:         cfg.Dir,
		OutputDir:   cfg.OutputDir,
		Concurrency: cfg.Concurrency,
	}, renderer, logger)

	reporter := stats.NewReporter(orchestrator, logger)
	bar := progress.New(cfg.LogLevel)
	orchestrator.SubscribeStats("progress-bar", bar.Subscriber)

	report, err := orchestrator.Run()
	if err != nil {
		return err
	}

	printSummary(report, reporter.Summary())
	return nil
}

func printSummary(report *model.BatchReport, summary stats.Summary) {
	pterm.Println()
	pterm.DefaultSection.Println("Conversion Summary")
	pterm.Info.Printf("Total files: %d\n", report.TotalFiles)
	pterm.Info.Printf("Converted: %d\n", report.Succeeded)
	pterm.Info.Printf("Visual renders: %d\n", summary.VisualRendered)
	pterm.Info.Printf("Text fallbacks: %d\n", summary.TextFallbacks)
	pterm.Info.Printf("Failed: %d\n", report.Failed)

	for _, outcome := range report.Failures() {
		pterm.Error.Printf("  %s: %s\n", filepath.Base(outcome.SourcePath), outcome.ErrorDetail)
	}
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("eml-to-pdf-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
