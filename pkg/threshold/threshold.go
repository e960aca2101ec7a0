// Package threshold derives the single air/tissue HU boundary used by every
// downstream binary split, from the bimodal histogram of a calibrated volume.
package threshold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"sinusct/internal/models"
	"sinusct/pkg/failure"
)

// Params configures the histogram and the valley search.
type Params struct {
	// Bins is the histogram resolution
	Bins int `yaml:"bins"`

	// MinHU and MaxHU bound the histogram. Samples below MinHU count in the
	// first bin; samples above MaxHU are ignored.
	MinHU float64 `yaml:"minHU"`
	MaxHU float64 `yaml:"maxHU"`

	// SplitHU separates the air mode (centres below) from the tissue mode
	SplitHU float64 `yaml:"splitHU"`

	// ValleyFraction is the fraction of the lower peak height a bin must fall
	// to, walking from the air peak, to be taken as the valley
	ValleyFraction float64 `yaml:"valleyFraction"`
}

// DefaultParams returns the 256-bin, 10% valley configuration.
func DefaultParams() Params {
	return Params{
		Bins:           256,
		MinHU:          -1000,
		MaxHU:          100,
		SplitHU:        -300,
		ValleyFraction: 0.10,
	}
}

// Validate checks parameter consistency.
func (p Params) Validate() error {
	if p.Bins < 3 {
		return fmt.Errorf("histogram needs at least 3 bins, got %d", p.Bins)
	}
	if p.MaxHU <= p.MinHU {
		return fmt.Errorf("histogram range [%g, %g] is empty", p.MinHU, p.MaxHU)
	}
	if p.SplitHU <= p.MinHU || p.SplitHU >= p.MaxHU {
		return fmt.Errorf("split %g HU must lie inside the histogram range", p.SplitHU)
	}
	if p.ValleyFraction <= 0 || p.ValleyFraction >= 1 {
		return fmt.Errorf("valley fraction %g must be in (0, 1)", p.ValleyFraction)
	}
	return nil
}

// Result is the selected threshold and the histogram features behind it.
type Result struct {
	ThresholdHU  float64 `json:"threshold_hu"`
	AirPeakHU    float64 `json:"air_peak_hu"`
	TissuePeakHU float64 `json:"tissue_peak_hu"`
	ValleyBin    int     `json:"valley_bin"`

	// Fallback is set when no bin met the valley rule and the midpoint
	// between the peaks was used instead
	Fallback bool `json:"fallback"`
}

// Histogram is a fixed-width HU histogram.
type Histogram struct {
	Counts  []float64
	Edges   []float64
	Centres []float64
}

// Build bins the samples of v into p.Bins equal-width bins over
// [p.MinHU, p.MaxHU]. The last bin is closed on the right. Anything below
// the range is air and is clipped into the first bin. Samples above MaxHU
// and NaN samples are dropped rather than clipped into the last bin, since
// bone or metal piled into the top bin would inflate the tissue mode.
func Build(v *models.Volume, p Params) Histogram {
	h := Histogram{
		Counts:  make([]float64, p.Bins),
		Edges:   floats.Span(make([]float64, p.Bins+1), p.MinHU, p.MaxHU),
		Centres: make([]float64, p.Bins),
	}
	width := (p.MaxHU - p.MinHU) / float64(p.Bins)
	for i := range h.Centres {
		h.Centres[i] = (h.Edges[i] + h.Edges[i+1]) / 2
	}

	last := p.Bins - 1
	for _, hu := range v.Data {
		if hu > p.MaxHU || math.IsNaN(hu) {
			continue
		}
		bin := 0
		if hu > p.MinHU {
			bin = min(int((hu-p.MinHU)/width), last)
		}
		h.Counts[bin]++
	}
	return h
}

// Compute selects the air/tissue threshold for a calibrated volume.
func Compute(v *models.Volume, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, failure.Wrap(failure.KindInvalidInput, "threshold.Compute", err)
	}
	return FromHistogram(Build(v, p), p)
}

// FromHistogram applies the peak and valley search to a prepared histogram.
func FromHistogram(h Histogram, p Params) (Result, error) {
	air, tissue := -1, -1
	for i, c := range h.Counts {
		if !isLocalMax(h.Counts, i) {
			continue
		}
		if h.Centres[i] < p.SplitHU {
			if air < 0 || c > h.Counts[air] {
				air = i
			}
		} else if tissue < 0 || c > h.Counts[tissue] {
			tissue = i
		}
	}

	if air < 0 || tissue < 0 {
		return Result{}, failure.New(failure.KindDegenerateHistogram, "threshold.Compute",
			"histogram lacks an air or tissue mode (air bin %d, tissue bin %d)", air, tissue)
	}

	res := Result{AirPeakHU: h.Centres[air], TissuePeakHU: h.Centres[tissue], ValleyBin: -1}

	limit := p.ValleyFraction * min(h.Counts[air], h.Counts[tissue])
	for i := air + 1; i < tissue; i++ {
		if h.Counts[i] <= limit {
			res.ValleyBin = i
			res.ThresholdHU = h.Centres[i]
			return res, nil
		}
	}

	res.Fallback = true
	res.ThresholdHU = (res.AirPeakHU + res.TissuePeakHU) / 2
	return res, nil
}

// isLocalMax reports whether bin i is non-empty and not below either neighbour.
func isLocalMax(counts []float64, i int) bool {
	c := counts[i]
	if c <= 0 {
		return false
	}
	if i > 0 && counts[i-1] > c {
		return false
	}
	if i < len(counts)-1 && counts[i+1] > c {
		return false
	}
	return true
}
