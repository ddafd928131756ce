// Package render turns a normalized message into PDF bytes using a two-tier
// strategy: a visual render of the HTML body through a headless browser, and
// a deterministic text-layout fallback.
package render

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mailtools/eml-to-pdf/model"
)

// RenderError reports that both rendering tiers failed for a message.
type RenderError struct {
	Path      string
	VisualErr error
	TextErr   error
}

func (e *RenderError) Error() string {
	if e.VisualErr != nil {
		return fmt.Sprintf("render %s: visual tier: %v; text tier: %v", e.Path, e.VisualErr, e.TextErr)
	}
	return fmt.Sprintf("render %s: text tier: %v", e.Path, e.TextErr)
}

func (e *RenderError) Unwrap() error {
	return e.TextErr
}

// Renderer applies the tier policy. A nil engine means the visual tier is
// disabled outright.
type Renderer struct {
	engine Engine
	logger *slog.Logger
}

func NewRenderer(engine Engine, logger *slog.Logger) *Renderer {
	return &Renderer{engine: engine, logger: logger}
}

// Render produces PDF bytes for the message and reports which tier made
// them. The visual tier is attempted when the message has an HTML body and
// the engine is up; any visual failure (engine error, timeout, malformed
// markup) falls through to the text tier rather than failing the
// conversion. Only when the text tier also fails is a RenderError returned.
func (r *Renderer) Render(ctx context.Context, msg model.Message) ([]byte, model.RenderPath, error) {
	var visualErr error

	if msg.BodyHTML != "" && r.engine != nil && r.engine.Available() {
		pdf, err := r.engine.RenderHTML(ctx, emailDocument(msg))
		if err == nil {
			return pdf, model.RenderVisual, nil
		}
		visualErr = err
		r.logger.Debug("visual render failed, falling back to text tier", "path", msg.SourcePath, "err", err)
	}

	pdf, err := textPDF(msg)
	if err != nil {
		return nil, model.RenderNotDone, &RenderError{Path: msg.SourcePath, VisualErr: visualErr, TextErr: err}
	}
	return pdf, model.RenderTextFallback, nil
}
