package analysis

import (
	"time"

	"sinusct/internal/models"
	"sinusct/pkg/anatomy"
	"sinusct/pkg/calibration"
	"sinusct/pkg/cyst"
	"sinusct/pkg/failure"
	"sinusct/pkg/lundmackay"
	"sinusct/pkg/omc"
	"sinusct/pkg/roi"
	"sinusct/pkg/sclerosis"
	"sinusct/pkg/threshold"
)

// Status tells measured values apart from values that could not be measured.
type Status string

const (
	Measured    Status = "measured"
	NotComputed Status = "not_computed"
)

// Failure is the serialisable form of a measurement error.
type Failure struct {
	Kind    failure.Kind `json:"kind"`
	Message string       `json:"message"`
}

func failureOf(err error) *Failure {
	kind, ok := failure.KindOf(err)
	if !ok {
		kind = "internal"
	}
	return &Failure{Kind: kind, Message: err.Error()}
}

// Outcome carries either a result or the failure that prevented it. A
// not-computed outcome never carries a zero-valued result.
type Outcome[T any] struct {
	Status  Status   `json:"status"`
	Result  *T       `json:"result,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

func measured[T any](v *T) Outcome[T] {
	return Outcome[T]{Status: Measured, Result: v}
}

func notComputed[T any](err error) Outcome[T] {
	return Outcome[T]{Status: NotComputed, Failure: failureOf(err)}
}

// OK reports whether the outcome holds a result.
func (o Outcome[T]) OK() bool {
	return o.Status == Measured && o.Result != nil
}

// VolumeInfo describes the analysed volume.
type VolumeInfo struct {
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Depth   int            `json:"depth"`
	Spacing models.Spacing `json:"spacing_mm"`
}

// Report is the complete, JSON-serialisable result of one analysis.
type Report struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	Volume    VolumeInfo `json:"volume"`

	Calibration *calibration.Result             `json:"calibration"`
	Threshold   threshold.Result                `json:"threshold"`
	Reference   Outcome[roi.ReferenceBoneStats] `json:"reference_bone"`

	OMC       map[anatomy.Side]Outcome[omc.Measurement]    `json:"omc"`
	Sclerosis map[anatomy.Region]Outcome[sclerosis.Result] `json:"sclerosis"`
	Cysts     map[anatomy.Region]Outcome[cyst.Result]      `json:"cysts"`

	// LundMackay is present only when the request carried region grades
	LundMackay *Outcome[lundmackay.Score] `json:"lund_mackay,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// NotComputedCount returns how many per-region outcomes failed.
func (r *Report) NotComputedCount() int {
	n := 0
	for _, o := range r.OMC {
		if !o.OK() {
			n++
		}
	}
	for _, o := range r.Sclerosis {
		if !o.OK() {
			n++
		}
	}
	for _, o := range r.Cysts {
		if !o.OK() {
			n++
		}
	}
	return n
}
