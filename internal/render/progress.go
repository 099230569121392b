package render

import (
	"math"
	"strings"

	"lectern/internal/ports"
)

// State is where a render stands as observed through its progress.
type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFatalError State = "fatal_error"
)

type Costs struct {
	AccruedSoFar float64 `json:"accrued_so_far"`
	DisplayCost  string  `json:"display_cost"`
	Currency     string  `json:"currency"`
}

// Progress is a normalized progress snapshot.
type Progress struct {
	Done                  bool     `json:"done"`
	OverallProgress       float64  `json:"overall_progress"`
	Errors                []string `json:"errors"`
	FatalErrorEncountered bool     `json:"fatal_error_encountered"`
	// Error joins Errors with "; " when the render failed fatally.
	Error          string  `json:"error,omitempty"`
	Costs          Costs   `json:"costs"`
	OutputFile     *string `json:"output_file,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func (p Progress) State() State {
	switch {
	case p.FatalErrorEncountered:
		return StateFatalError
	case p.Done:
		return StateCompleted
	default:
		return StateInProgress
	}
}

// Normalize converts the render service's report: milliseconds become
// seconds, progress is clamped to [0,1] and a fatal error forces Done.
func Normalize(r ports.RemoteProgress) Progress {
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}

	p := Progress{
		Done:                  r.Done,
		OverallProgress:       clamp(r.OverallProgress),
		Errors:                errs,
		FatalErrorEncountered: r.FatalErrorEncountered,
		Costs: Costs{
			AccruedSoFar: r.Costs.AccruedSoFar,
			DisplayCost:  r.Costs.DisplayCost,
			Currency:     r.Costs.Currency,
		},
		OutputFile:     r.OutputFile,
		ElapsedSeconds: float64(r.ElapsedMillis) / 1000,
	}
	if p.FatalErrorEncountered {
		p.Done = true
		p.Error = strings.Join(errs, "; ")
		if p.Error == "" {
			p.Error = "render failed"
		}
	}
	return p
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
