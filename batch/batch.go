// Package batch orchestrates one conversion run: it enumerates eligible
// container files, fans the work out over a bounded worker pool and collects
// the per-file outcomes into a reproducible report.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mailtools/eml-to-pdf/model"
	"github.com/mailtools/eml-to-pdf/naming"
	"github.com/mailtools/eml-to-pdf/parser"
	"github.com/mailtools/eml-to-pdf/render"
	"github.com/mailtools/eml-to-pdf/stats"
)

// ErrInvalidDirectory is returned before any file is processed when the
// input path does not exist or is not a directory. It is the only
// batch-fatal error.
var ErrInvalidDirectory = errors.New("invalid input directory")

// Options configures a batch run.
type Options struct {
	// Dir is the directory holding the container files.
	Dir string
	// OutputDir receives the PDFs; empty means Dir itself. Created when
	// missing.
	OutputDir string
	// Concurrency bounds the worker pool.
	Concurrency int
}

// Orchestrator runs one batch. The naming registry is the only state shared
// between workers; everything else is task-local.
type Orchestrator struct {
	opts     Options
	renderer *render.Renderer
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	subsMu      sync.Mutex
	subscribers []chan stats.Event
	statsWG     sync.WaitGroup

	closeEventsOnce sync.Once
}

func New(opts Options, renderer *render.Renderer, logger *slog.Logger) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 50
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		opts:     opts,
		renderer: renderer,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SubscribeStats attaches a consumer to the event stream for the lifetime
// of the run. Each subscriber gets its own channel, so every event reaches
// every subscriber. Subscribe before calling Run.
func (o *Orchestrator) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	events := make(chan stats.Event, 128)
	o.subsMu.Lock()
	o.subscribers = append(o.subscribers, events)
	o.subsMu.Unlock()

	o.statsWG.Add(1)
	go func() {
		defer o.statsWG.Done()
		if err := fn(o.ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("stats subscriber failed", "name", name, "err", err)
		}
	}()
}

// EmitEvent publishes a pipeline event to every subscriber unless the run
// is shutting down. With no subscribers attached the event is dropped, so
// a bare Orchestrator never blocks on its own events.
func (o *Orchestrator) EmitEvent(evt stats.Event) {
	o.subsMu.Lock()
	subscribers := o.subscribers
	o.subsMu.Unlock()

	for _, events := range subscribers {
		select {
		case <-o.ctx.Done():
			return
		case events <- evt:
		}
	}
}

// Run converts every eligible file in the directory and returns the batch
// report. Per-file failures are recorded as outcomes; only an invalid
// directory aborts the run, before any task is scheduled.
func (o *Orchestrator) Run() (*model.BatchReport, error) {
	defer o.shutdown()

	files, err := o.enumerate()
	if err != nil {
		return nil, err
	}

	outDir := o.opts.OutputDir
	if outDir == "" {
		outDir = o.opts.Dir
	} else if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	registry, err := naming.NewRegistry(outDir)
	if err != nil {
		return nil, err
	}

	// Outcomes land at their enumeration index regardless of completion
	// order, so the report is stable for a given directory snapshot.
	outcomes := make([]model.ConversionOutcome, len(files))

	workers := o.opts.Concurrency
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan int)
	var workWG sync.WaitGroup
	for w := 0; w < workers; w++ {
		workWG.Add(1)
		go func() {
			defer workWG.Done()
			for idx := range jobs {
				outcomes[idx] = o.convert(files[idx], outDir, registry)
			}
		}()
	}

	for idx := range files {
		jobs <- idx
	}
	close(jobs)
	workWG.Wait()

	report := &model.BatchReport{
		TotalFiles: len(files),
		Outcomes:   outcomes,
	}
	for _, outcome := range outcomes {
		if outcome.Status == model.StatusSuccess {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	return report, nil
}

func (o *Orchestrator) enumerate() ([]string, error) {
	info, err := os.Stat(o.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDirectory, o.opts.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidDirectory, o.opts.Dir)
	}

	entries, err := os.ReadDir(o.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDirectory, o.opts.Dir, err)
	}

	// ReadDir sorts lexically, which defines the enumeration order.
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !parser.Eligible(entry.Name()) {
			o.EmitEvent(stats.Event{Type: stats.EventTypeSkipped, File: entry.Name()})
			continue
		}
		files = append(files, entry.Name())
		// Scanned events all precede the first conversion event, so
		// subscribers can size themselves from the enumeration.
		o.EmitEvent(stats.Event{Type: stats.EventTypeScanned, File: entry.Name()})
	}

	o.logger.Info("enumerated directory", "dir", o.opts.Dir, "eligible", len(files))
	return files, nil
}

// convert runs one file end to end: parse, reserve a name, render, write.
// Every error is caught here and turned into a Failure outcome.
func (o *Orchestrator) convert(name, outDir string, registry *naming.Registry) model.ConversionOutcome {
	path := filepath.Join(o.opts.Dir, name)

	msg, err := parser.Parse(path)
	if err != nil {
		return o.failure(path, err)
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	assigned := registry.Reserve(naming.BaseName(stem, msg.SentAt))

	pdf, renderPath, err := o.renderer.Render(o.ctx, msg)
	if err != nil {
		return o.failure(path, err)
	}

	outPath := filepath.Join(outDir, assigned)
	if err := os.WriteFile(outPath, pdf, 0o644); err != nil {
		return o.failure(path, fmt.Errorf("write output: %w", err))
	}

	evtType := stats.EventTypeConverted
	if renderPath == model.RenderTextFallback {
		evtType = stats.EventTypeFallback
	}
	o.EmitEvent(stats.Event{Type: evtType, File: name, Output: assigned})
	o.logger.Debug("converted", "file", name, "output", assigned, "renderPath", renderPath)

	return model.ConversionOutcome{
		SourcePath: path,
		OutputPath: outPath,
		Status:     model.StatusSuccess,
		RenderPath: renderPath,
	}
}

func (o *Orchestrator) failure(path string, err error) model.ConversionOutcome {
	o.EmitEvent(stats.Event{Type: stats.EventTypeFailed, File: filepath.Base(path), Err: err})
	o.logger.Error("conversion failed", "file", path, "err", err)
	return model.ConversionOutcome{
		SourcePath:  path,
		Status:      model.StatusFailure,
		ErrorDetail: err.Error(),
		RenderPath:  model.RenderNotDone,
	}
}

func (o *Orchestrator) shutdown() {
	o.closeEventsOnce.Do(func() {
		o.subsMu.Lock()
		defer o.subsMu.Unlock()
		for _, events := range o.subscribers {
			close(events)
		}
	})
	o.statsWG.Wait()
	o.cancel()
}
