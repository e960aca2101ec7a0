// Package lundmackay reduces per-region opacification grades and OMC
// obstruction flags to Lund-Mackay totals. It performs no detection.
package lundmackay

import (
	"sinusct/pkg/anatomy"
	"sinusct/pkg/failure"
)

// Grade is a region opacification grade: 0 clear, 1 partial, 2 complete.
type Grade int

const (
	Clear    Grade = 0
	Partial  Grade = 1
	Complete Grade = 2
)

// omcPoints is the score of one obstructed OMC.
const omcPoints = 2

// Grades holds one grade per sinus and side, indexed [anatomy.Sinus][anatomy.Side].
type Grades [anatomy.NumSinuses][anatomy.NumSides]Grade

// Set assigns the grade of a region.
func (g *Grades) Set(r anatomy.Region, grade Grade) {
	g[r.Sinus][r.Side] = grade
}

// Get returns the grade of a region.
func (g *Grades) Get(r anatomy.Region) Grade {
	return g[r.Sinus][r.Side]
}

// Input is everything the scorer consumes.
type Input struct {
	Grades        Grades
	OMCObstructed [anatomy.NumSides]bool
}

// RegionGrade is one entry of the ordered region listing.
type RegionGrade struct {
	Region anatomy.Region `json:"region"`
	Grade  Grade          `json:"grade"`
}

// Score is the reduced clinical score.
type Score struct {
	ByRegion      []RegionGrade               `json:"by_region"`
	OMCObstructed map[anatomy.Side]bool       `json:"omc_obstructed"`
	LM20          int                         `json:"lm20"`
	LM24          int                         `json:"lm24"`
	BySide        map[anatomy.Side]SideTotals `json:"by_side"`
}

// SideTotals are the per-side subtotals.
type SideTotals struct {
	LM10 int `json:"lm10"`
	LM12 int `json:"lm12"`
}

// Compute validates the grades and sums them. LM-20 counts the ten region
// grades, LM-24 adds two points per obstructed OMC.
func Compute(in Input) (*Score, error) {
	s := &Score{
		ByRegion:      make([]RegionGrade, 0, anatomy.NumSinuses*anatomy.NumSides),
		OMCObstructed: make(map[anatomy.Side]bool, anatomy.NumSides),
		BySide:        make(map[anatomy.Side]SideTotals, anatomy.NumSides),
	}

	var sides [anatomy.NumSides]SideTotals
	for _, r := range anatomy.AllRegions() {
		g := in.Grades.Get(r)
		if g < Clear || g > Complete {
			return nil, failure.New(failure.KindInvalidInput, "lundmackay.Compute",
				"grade %d for %s must be 0, 1 or 2", g, r)
		}
		s.ByRegion = append(s.ByRegion, RegionGrade{Region: r, Grade: g})
		s.LM20 += int(g)
		sides[r.Side].LM10 += int(g)
	}

	s.LM24 = s.LM20
	for _, side := range anatomy.Sides {
		obstructed := in.OMCObstructed[side]
		s.OMCObstructed[side] = obstructed
		sides[side].LM12 = sides[side].LM10
		if obstructed {
			s.LM24 += omcPoints
			sides[side].LM12 += omcPoints
		}
		s.BySide[side] = sides[side]
	}

	return s, nil
}

// GradeFromOpacification maps an opacified volume fraction to a grade using
// 10% / 50% cut points, or 20% / 70% when conservative.
func GradeFromOpacification(fraction float64, conservative bool) Grade {
	partial, complete := 0.10, 0.50
	if conservative {
		partial, complete = 0.20, 0.70
	}
	switch {
	case fraction >= complete:
		return Complete
	case fraction >= partial:
		return Partial
	default:
		return Clear
	}
}
