package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Config captures all command-line options required to run the converter.
type Config struct {
	Dir             string
	OutputDir       string
	Concurrency     int
	RenderTimeout   time.Duration
	BrowserSessions int
	NoBrowser       bool
	LogLevel        string
	LogDir          string
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("dir", "", "Directory containing .eml/.msg files to convert")
	flags.String("output", "", "Output directory for PDFs (default: the input directory)")
	flags.Int("concurrency", 50, "Maximum number of files converted concurrently")
	flags.Duration("render-timeout", 30*time.Second, "Timeout for a single browser render")
	flags.Int("browser-sessions", 4, "Maximum number of concurrent browser tabs")
	flags.Bool("no-browser", false, "Skip the browser tier and render every message as text")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (default: console only)")

	return cmd.MarkFlagRequired("dir")
}

// LoadConfig converts the parsed Cobra flags into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	dir, err := flags.GetString("dir")
	if err != nil {
		return Config{}, err
	}
	outputDir, err := flags.GetString("output")
	if err != nil {
		return Config{}, err
	}
	concurrency, err := flags.GetInt("concurrency")
	if err != nil {
		return Config{}, err
	}
	renderTimeout, err := flags.GetDuration("render-timeout")
	if err != nil {
		return Config{}, err
	}
	browserSessions, err := flags.GetInt("browser-sessions")
	if err != nil {
		return Config{}, err
	}
	noBrowser, err := flags.GetBool("no-browser")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		Dir:             filepath.Clean(dir),
		OutputDir:       outputDir,
		Concurrency:     concurrency,
		RenderTimeout:   renderTimeout,
		BrowserSessions: browserSessions,
		NoBrowser:       noBrowser,
		LogLevel:        logLevel,
		LogDir:          logDir,
	}
	if cfg.OutputDir != "" {
		cfg.OutputDir = filepath.Clean(cfg.OutputDir)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.Dir == "" {
		return fmt.Errorf("--dir is required")
	}
	if cfg.Concurrency < 1 || cfg.Concurrency > 256 {
		return fmt.Errorf("--concurrency must be between 1 and 256")
	}
	if cfg.RenderTimeout <= 0 {
		return fmt.Errorf("--render-timeout must be positive")
	}
	if cfg.BrowserSessions < 1 || cfg.BrowserSessions > 32 {
		return fmt.Errorf("--browser-sessions must be between 1 and 32")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}
