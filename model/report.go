package model

// Status distinguishes converted files from failed ones.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// RenderPath records which rendering tier actually produced the PDF.
type RenderPath string

const (
	RenderVisual       RenderPath = "visual"
	RenderTextFallback RenderPath = "text-fallback"
	RenderNotDone      RenderPath = "not-applicable"
)

// ConversionOutcome is the immutable result of converting one input file.
type ConversionOutcome struct {
	SourcePath string
	// OutputPath is empty when Status is StatusFailure.
	OutputPath  string
	Status      Status
	ErrorDetail string
	RenderPath  RenderPath
}

// BatchReport aggregates the outcomes of one batch run. Outcomes are ordered
// by enumeration order, not completion order, so reports are reproducible
// for the same directory snapshot.
type BatchReport struct {
	TotalFiles int
	Outcomes   []ConversionOutcome
	Succeeded  int
	Failed     int
}

// Failures returns the failed outcomes in report order.
func (r *BatchReport) Failures() []ConversionOutcome {
	var failed []ConversionOutcome
	for _, outcome := range r.Outcomes {
		if outcome.Status == StatusFailure {
			failed = append(failed, outcome)
		}
	}
	return failed
}
