// Package omc measures ostiomeatal complex patency: the fraction of air in
// the drainage corridor on each side, located by a small candidate search.
package omc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"sinusct/internal/models"
	"sinusct/pkg/anatomy"
	"sinusct/pkg/failure"
	"sinusct/pkg/roi"
)

// Classification is the patency verdict for one corridor.
type Classification string

const (
	Patent        Classification = "patent"
	Indeterminate Classification = "indeterminate"
	Obstructed    Classification = "obstructed"
)

// Params holds the classification cut points and the default search shape.
type Params struct {
	// PatentAbove is the air fraction a corridor must exceed to be patent
	PatentAbove float64 `yaml:"patentAbove"`

	// ObstructedBelow is the air fraction a corridor must fall under to be obstructed
	ObstructedBelow float64 `yaml:"obstructedBelow"`

	// Jitter is the fractional shift of the default candidate search
	Jitter float64 `yaml:"jitter"`

	// SlabVoxels is the half-thickness of the coronal slab
	SlabVoxels int `yaml:"slabVoxels"`
}

// DefaultParams returns the 0.12 / 0.08 cut points.
func DefaultParams() Params {
	return Params{
		PatentAbove:     0.12,
		ObstructedBelow: 0.08,
		Jitter:          0.02,
		SlabVoxels:      1,
	}
}

// Validate checks parameter consistency.
func (p Params) Validate() error {
	if p.ObstructedBelow < 0 || p.PatentAbove > 1 || p.ObstructedBelow > p.PatentAbove {
		return fmt.Errorf("need 0 <= obstructedBelow (%g) <= patentAbove (%g) <= 1", p.ObstructedBelow, p.PatentAbove)
	}
	if p.Jitter < 0 || p.SlabVoxels < 0 {
		return fmt.Errorf("jitter and slab thickness must not be negative")
	}
	return nil
}

// Classify maps an air fraction to a verdict. Both cut points are strict.
func Classify(airFraction float64, p Params) Classification {
	switch {
	case airFraction > p.PatentAbove:
		return Patent
	case airFraction < p.ObstructedBelow:
		return Obstructed
	default:
		return Indeterminate
	}
}

// CandidateScore is the air fraction measured in one candidate ROI.
type CandidateScore struct {
	Index       int        `json:"index"`
	AirFraction float64    `json:"air_fraction"`
	Voxels      int        `json:"voxels"`
	Bounds      roi.Bounds `json:"bounds"`
}

// Measurement is the patency result for one side.
type Measurement struct {
	Side           anatomy.Side     `json:"side"`
	Slice          int              `json:"slice"`
	AirFraction    float64          `json:"air_fraction"`
	Classification Classification   `json:"classification"`
	Candidate      int              `json:"candidate"`
	Bounds         roi.Bounds       `json:"bounds"`
	Candidates     []CandidateScore `json:"candidates"`

	// Confidence drops as the air fraction varies between the axial rows of
	// the winning ROI
	Confidence float64 `json:"confidence"`
}

// Analyzer scores candidate ROIs produced by a CandidateGenerator.
type Analyzer struct {
	params    Params
	generator CandidateGenerator
}

// NewAnalyzer creates an analyzer. A nil generator falls back to the jitter
// search around the default layout's corridor.
func NewAnalyzer(p Params, gen CandidateGenerator) *Analyzer {
	if gen == nil {
		gen = NewJitterGenerator(anatomy.DefaultLayout().OMC, p.Jitter, p.SlabVoxels)
	}
	return &Analyzer{params: p, generator: gen}
}

// Measure evaluates every candidate on the given coronal slice and keeps the
// one with the highest air fraction. Ties go to the lowest index.
func (a *Analyzer) Measure(v *models.Volume, thresholdHU float64, slice int, side anatomy.Side) (*Measurement, error) {
	const op = "omc.Measure"

	if slice < 0 || slice >= v.Height {
		return nil, failure.New(failure.KindEmptyROI, op, "coronal slice %d outside [0, %d)", slice, v.Height)
	}

	boxes := a.generator.Candidates(Dims{Width: v.Width, Height: v.Height, Depth: v.Depth}, side, slice)
	if len(boxes) == 0 {
		return nil, failure.New(failure.KindEmptyROI, op, "no candidate ROIs for %s side", side)
	}

	m := &Measurement{
		Side:       side,
		Slice:      slice,
		Candidate:  -1,
		Candidates: make([]CandidateScore, 0, len(boxes)),
	}

	for i, box := range boxes {
		bounds := box.Resolve(v.Width, v.Height, v.Depth)
		air := 0
		for z := bounds.Z.Lo; z < bounds.Z.Hi; z++ {
			for y := bounds.Y.Lo; y < bounds.Y.Hi; y++ {
				row := v.Index(0, y, z)
				for x := bounds.X.Lo; x < bounds.X.Hi; x++ {
					if v.Data[row+x] < thresholdHU {
						air++
					}
				}
			}
		}

		score := CandidateScore{
			Index:       i,
			AirFraction: float64(air) / float64(bounds.Count()),
			Voxels:      bounds.Count(),
			Bounds:      bounds,
		}
		m.Candidates = append(m.Candidates, score)

		if m.Candidate < 0 || score.AirFraction > m.AirFraction {
			m.Candidate = i
			m.AirFraction = score.AirFraction
			m.Bounds = bounds
		}
	}

	m.Classification = Classify(m.AirFraction, a.params)
	m.Confidence = rowConfidence(v, m.Bounds, thresholdHU)
	return m, nil
}

// rowConfidence is 1 - min(2σ, 0.99) over the per-axial-row air fractions.
func rowConfidence(v *models.Volume, b roi.Bounds, thresholdHU float64) float64 {
	fractions := make([]float64, 0, b.Z.Len())
	perRow := float64(b.Y.Len() * b.X.Len())
	for z := b.Z.Lo; z < b.Z.Hi; z++ {
		air := 0
		for y := b.Y.Lo; y < b.Y.Hi; y++ {
			row := v.Index(0, y, z)
			for x := b.X.Lo; x < b.X.Hi; x++ {
				if v.Data[row+x] < thresholdHU {
					air++
				}
			}
		}
		fractions = append(fractions, float64(air)/perRow)
	}
	if len(fractions) < 2 {
		return 1
	}
	return 1 - math.Min(2*stat.PopStdDev(fractions, nil), 0.99)
}
