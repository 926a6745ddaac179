package driver

import (
	"encoding/json"
	"fmt"
	"io"

	"stubtree/internal/observ"
)

// TimingPayload is the machine-readable form of a run's timings.
type TimingPayload struct {
	Kind    string               `json:"kind"`
	Root    string               `json:"root,omitempty"`
	Files   int                  `json:"files"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// NewTimingPayload captures timer for a run over files.
func NewTimingPayload(kind, root string, files int, timer *observ.Timer) TimingPayload {
	if kind == "" {
		kind = "build"
	}
	report := timer.Report()
	return TimingPayload{
		Kind:    kind,
		Root:    root,
		Files:   files,
		TotalMS: report.TotalMS,
		Phases:  report.Phases,
	}
}

// WriteJSON writes the payload as one line of JSON.
func (p TimingPayload) WriteJSON(w io.Writer) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
