package progress

import (
	"context"
	"sync"

	"github.com/pterm/pterm"

	"github.com/mailtools/eml-to-pdf/stats"
)

// Bar tracks per-file conversion progress on the console. Its total grows
// with the orchestrator's scanned events, which all arrive before the first
// conversion event, so the bar is sized by the same enumeration the run
// itself uses.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	mu      sync.Mutex
	enabled bool
}

// New creates a progress bar when the log level is "info"; at other levels
// the bar stays disabled so debug logs and quiet runs are not garbled.
func New(logLevel string) *Bar {
	return &Bar{enabled: logLevel == "info"}
}

// Update advances the bar based on the event type.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeScanned:
		b.total++
		if b.pb == nil {
			pb, _ := pterm.DefaultProgressbar.
				WithTotal(b.total).
				WithTitle("Converting messages").
				Start()
			b.pb = pb
			return
		}
		b.pb.Total = b.total
	case stats.EventTypeConverted, stats.EventTypeFallback:
		if b.pb == nil {
			return
		}
		b.pb.Increment()
		if evt.Output != "" {
			title := evt.Output
			if len(title) > 40 {
				title = title[:37] + "..."
			}
			b.pb.UpdateTitle("Wrote: " + title)
		}
	case stats.EventTypeFailed:
		if b.pb == nil {
			return
		}
		b.pb.Increment()
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

// Stop finalizes the bar.
func (b *Bar) Stop() {
	if !b.enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb == nil {
		return
	}
	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}
	b.pb.Stop()
}

// Subscriber adapts the bar to the stats event stream.
func (b *Bar) Subscriber(ctx context.Context, events <-chan stats.Event) error {
	defer b.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			b.Update(evt)
		}
	}
}
