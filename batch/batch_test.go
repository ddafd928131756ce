package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mailtools/eml-to-pdf/model"
	"github.com/mailtools/eml-to-pdf/render"
	"github.com/mailtools/eml-to-pdf/stats"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func emlFixture(subject, date, body string) string {
	var b strings.Builder
	b.WriteString("From: John Doe <john@example.com>\r\n")
	b.WriteString("To: jane@example.com\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	if date != "" {
		b.WriteString("Date: " + date + "\r\n")
	}
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body + "\r\n")
	return b.String()
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
}

// newOrchestrator wires an orchestrator with the text-only renderer and a
// draining stats reporter, the way main does.
func newOrchestrator(t *testing.T, opts Options) (*Orchestrator, *stats.Reporter) {
	t.Helper()
	logger := testLogger()
	orchestrator := New(opts, render.NewRenderer(nil, logger), logger)
	reporter := stats.NewReporter(orchestrator, logger)
	return orchestrator, reporter
}

func TestRun_ConvertsAndResolvesCollisions(t *testing.T) {
	dir := t.TempDir()
	date := "Mon, 15 Jan 2024 10:30:00 +0000"
	writeFile(t, dir, "John Doe Inquiry.eml", emlFixture("Inquiry", date, "First message."))
	writeFile(t, dir, "John Doe Inquiry 2.eml", emlFixture("Inquiry follow-up", date, "Second message."))
	writeFile(t, dir, "notes.txt", "not an email")

	orchestrator, _ := newOrchestrator(t, Options{Dir: dir, Concurrency: 1})
	report, err := orchestrator.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2 (txt file skipped)", report.TotalFiles)
	}
	if report.Succeeded != 2 || report.Failed != 0 {
		t.Errorf("Succeeded/Failed = %d/%d, want 2/0", report.Succeeded, report.Failed)
	}

	for _, name := range []string{
		"2024-01-15_Email_John_Doe_Inquiry.pdf",
		"2024-01-15_Email_John_Doe_Inquiry_1.pdf",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected output %s: %v", name, err)
		}
	}
}

func TestRun_OutcomesFollowEnumerationOrder(t *testing.T) {
	dir := t.TempDir()
	date := "Mon, 15 Jan 2024 10:30:00 +0000"
	writeFile(t, dir, "a.eml", emlFixture("A", date, "a"))
	writeFile(t, dir, "b.eml", emlFixture("B", date, "b"))
	writeFile(t, dir, "c.eml", emlFixture("C", date, "c"))

	orchestrator, _ := newOrchestrator(t, Options{Dir: dir, Concurrency: 8})
	report, err := orchestrator.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"a.eml", "b.eml", "c.eml"}
	for i, outcome := range report.Outcomes {
		if filepath.Base(outcome.SourcePath) != want[i] {
			t.Errorf("outcome %d source = %s, want %s", i, outcome.SourcePath, want[i])
		}
	}
}

func TestRun_CorruptFileDoesNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.eml", emlFixture("Good", "Mon, 15 Jan 2024 10:30:00 +0000", "fine"))
	writeFile(t, dir, "broken.msg", "\x00\x01not a compound document")

	orchestrator, reporter := newOrchestrator(t, Options{Dir: dir, Concurrency: 4})
	report, err := orchestrator.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("Succeeded/Failed = %d/%d, want 1/1", report.Succeeded, report.Failed)
	}

	failures := report.Failures()
	if len(failures) != 1 {
		t.Fatalf("Failures() = %d entries", len(failures))
	}
	failure := failures[0]
	if filepath.Base(failure.SourcePath) != "broken.msg" {
		t.Errorf("failed file = %s", failure.SourcePath)
	}
	if failure.ErrorDetail == "" {
		t.Error("failure has no error detail")
	}
	if failure.RenderPath != model.RenderNotDone {
		t.Errorf("failure render path = %q, want not-applicable", failure.RenderPath)
	}

	if summary := reporter.Summary(); summary.Failed != 1 || summary.Converted != 1 {
		t.Errorf("stats summary = %+v", summary)
	}
}

func TestRun_NoDateMessageUsesFallbackToken(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "undated note.eml", emlFixture("Undated", "", ""))

	orchestrator, _ := newOrchestrator(t, Options{Dir: dir, Concurrency: 1})
	report, err := orchestrator.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("Succeeded = %d, outcomes = %+v", report.Succeeded, report.Outcomes)
	}

	outPath := filepath.Join(dir, "NoDate_Email_undated_note.pdf")
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("expected fallback-named output: %v", err)
	}
	if len(data) == 0 || !strings.HasPrefix(string(data), "%PDF") {
		t.Error("empty-body message did not yield a header-only PDF")
	}
}

func TestRun_EventsReachAllSubscribers(t *testing.T) {
	dir := t.TempDir()
	date := "Mon, 15 Jan 2024 10:30:00 +0000"
	const total = 6
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		writeFile(t, dir, name+".eml", emlFixture(name, date, "body "+name))
	}

	logger := testLogger()
	orchestrator := New(Options{Dir: dir, Concurrency: 4}, render.NewRenderer(nil, logger), logger)

	// Two independent consumers, the way main wires the reporter and the
	// progress bar. Events must not be load-balanced between them.
	first := stats.NewCollector()
	second := stats.NewCollector()
	orchestrator.SubscribeStats("first", func(ctx context.Context, events <-chan stats.Event) error {
		first.Run(ctx, events)
		return nil
	})
	orchestrator.SubscribeStats("second", func(ctx context.Context, events <-chan stats.Event) error {
		second.Run(ctx, events)
		return nil
	})

	report, err := orchestrator.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Succeeded != total {
		t.Fatalf("Succeeded = %d, want %d", report.Succeeded, total)
	}

	for name, summary := range map[string]stats.Summary{
		"first":  first.Snapshot(),
		"second": second.Snapshot(),
	} {
		if summary.Scanned != total {
			t.Errorf("%s subscriber Scanned = %d, want %d", name, summary.Scanned, total)
		}
		if summary.Converted != total {
			t.Errorf("%s subscriber Converted = %d, want %d", name, summary.Converted, total)
		}
	}
}

func TestRun_ScannedEventsPrecedeConversions(t *testing.T) {
	dir := t.TempDir()
	date := "Mon, 15 Jan 2024 10:30:00 +0000"
	const total = 5
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		writeFile(t, dir, name+".eml", emlFixture(name, date, "body"))
	}

	logger := testLogger()
	orchestrator := New(Options{Dir: dir, Concurrency: 4}, render.NewRenderer(nil, logger), logger)

	var sequence []stats.EventType
	orchestrator.SubscribeStats("recorder", func(ctx context.Context, events <-chan stats.Event) error {
		for evt := range events {
			sequence = append(sequence, evt.Type)
		}
		return nil
	})

	if _, err := orchestrator.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	scannedSeen := 0
	for _, evtType := range sequence {
		switch evtType {
		case stats.EventTypeScanned:
			scannedSeen++
		case stats.EventTypeConverted, stats.EventTypeFallback, stats.EventTypeFailed:
			if scannedSeen != total {
				t.Fatalf("conversion event after only %d of %d scanned events", scannedSeen, total)
			}
		}
	}
	if scannedSeen != total {
		t.Errorf("scanned events = %d, want %d", scannedSeen, total)
	}
}

func TestRun_NoSubscribersDoesNotBlock(t *testing.T) {
	dir := t.TempDir()
	date := "Mon, 15 Jan 2024 10:30:00 +0000"
	// Enough files that two events each would overrun a single 128-slot
	// buffer if unconsumed events could pile up anywhere.
	const total = 80
	for i := 0; i < total; i++ {
		writeFile(t, dir, fmt.Sprintf("mail%03d.eml", i), emlFixture(fmt.Sprintf("Mail %d", i), date, "body"))
	}

	logger := testLogger()
	orchestrator := New(Options{Dir: dir, Concurrency: 8}, render.NewRenderer(nil, logger), logger)

	report, err := orchestrator.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.TotalFiles != total || report.Succeeded != total {
		t.Errorf("TotalFiles/Succeeded = %d/%d, want %d/%d", report.TotalFiles, report.Succeeded, total, total)
	}
}

func TestRun_EmptyDirectory(t *testing.T) {
	orchestrator, _ := newOrchestrator(t, Options{Dir: t.TempDir()})
	report, err := orchestrator.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.TotalFiles != 0 || len(report.Outcomes) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
}

func TestRun_InvalidDirectory(t *testing.T) {
	orchestrator, _ := newOrchestrator(t, Options{Dir: filepath.Join(t.TempDir(), "missing")})
	report, err := orchestrator.Run()
	if !errors.Is(err, ErrInvalidDirectory) {
		t.Fatalf("Run() error = %v, want ErrInvalidDirectory", err)
	}
	if report != nil {
		t.Error("partial report returned on batch-fatal error")
	}
}

func TestRun_FileInsteadOfDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.eml", "x")

	orchestrator, _ := newOrchestrator(t, Options{Dir: filepath.Join(dir, "file.eml")})
	if _, err := orchestrator.Run(); !errors.Is(err, ErrInvalidDirectory) {
		t.Fatalf("Run() error = %v, want ErrInvalidDirectory", err)
	}
}

func TestRun_SeparateOutputDirectory(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "PDFs")
	writeFile(t, dir, "mail.eml", emlFixture("Out", "Mon, 15 Jan 2024 10:30:00 +0000", "body"))

	orchestrator, _ := newOrchestrator(t, Options{Dir: dir, OutputDir: outDir, Concurrency: 1})
	report, err := orchestrator.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("Succeeded = %d", report.Succeeded)
	}

	if _, err := os.Stat(filepath.Join(outDir, "2024-01-15_Email_mail.pdf")); err != nil {
		t.Errorf("expected PDF in output directory: %v", err)
	}
}
