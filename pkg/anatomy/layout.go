package anatomy

import (
	"fmt"

	"sinusct/pkg/roi"
)

// Paired holds one box per side.
type Paired struct {
	Left  roi.Box `yaml:"left"`
	Right roi.Box `yaml:"right"`
}

// For returns the box of the given side.
func (p Paired) For(side Side) roi.Box {
	if side == Right {
		return p.Right
	}
	return p.Left
}

// Layout places every sinus region and the OMC corridor in fractional
// volume coordinates. The defaults describe an adult head that fills the
// field of view, axial stack ordered superior to inferior.
type Layout struct {
	Maxillary        Paired `yaml:"maxillary"`
	AnteriorEthmoid  Paired `yaml:"anteriorEthmoid"`
	PosteriorEthmoid Paired `yaml:"posteriorEthmoid"`
	Sphenoid         Paired `yaml:"sphenoid"`
	Frontal          Paired `yaml:"frontal"`

	// OMC is the canonical corridor box per side. Its y range is ignored;
	// the analyzer replaces it with a slab around the chosen coronal slice.
	OMC Paired `yaml:"omc"`

	// OMCSliceFraction places the default coronal slice along y
	OMCSliceFraction float64 `yaml:"omcSliceFraction"`
}

// DefaultLayout returns the standard region placement.
func DefaultLayout() Layout {
	mirror := func(z, y, xLeft roi.Range) Paired {
		return Paired{
			Left:  roi.Box{Z: z, Y: y, X: xLeft},
			Right: roi.Box{Z: z, Y: y, X: roi.Range{Lo: 1 - xLeft.Hi, Hi: 1 - xLeft.Lo}},
		}
	}

	return Layout{
		Frontal:          mirror(roi.Range{Lo: 0.14, Hi: 0.28}, roi.Range{Lo: 0.10, Hi: 0.30}, roi.Range{Lo: 0.36, Hi: 0.49}),
		AnteriorEthmoid:  mirror(roi.Range{Lo: 0.28, Hi: 0.40}, roi.Range{Lo: 0.28, Hi: 0.46}, roi.Range{Lo: 0.40, Hi: 0.49}),
		PosteriorEthmoid: mirror(roi.Range{Lo: 0.28, Hi: 0.40}, roi.Range{Lo: 0.46, Hi: 0.64}, roi.Range{Lo: 0.40, Hi: 0.49}),
		Maxillary:        mirror(roi.Range{Lo: 0.34, Hi: 0.56}, roi.Range{Lo: 0.22, Hi: 0.58}, roi.Range{Lo: 0.16, Hi: 0.40}),
		Sphenoid:         mirror(roi.Range{Lo: 0.30, Hi: 0.48}, roi.Range{Lo: 0.64, Hi: 0.82}, roi.Range{Lo: 0.40, Hi: 0.50}),
		OMC:              mirror(roi.Range{Lo: 0.36, Hi: 0.46}, roi.Range{Lo: 0.37, Hi: 0.43}, roi.Range{Lo: 0.40, Hi: 0.47}),
		OMCSliceFraction: 0.40,
	}
}

// Box returns the fractional box of a region.
func (l Layout) Box(r Region) roi.Box {
	return l.paired(r.Sinus).For(r.Side)
}

func (l Layout) paired(s Sinus) Paired {
	switch s {
	case Maxillary:
		return l.Maxillary
	case AnteriorEthmoid:
		return l.AnteriorEthmoid
	case PosteriorEthmoid:
		return l.PosteriorEthmoid
	case Sphenoid:
		return l.Sphenoid
	default:
		return l.Frontal
	}
}

// OMCSlice returns the default coronal slice index for a volume of the given height.
func (l Layout) OMCSlice(height int) int {
	idx := int(l.OMCSliceFraction * float64(height))
	if idx >= height {
		idx = height - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// Validate checks every box and the slice fraction.
func (l Layout) Validate() error {
	for _, r := range AllRegions() {
		if err := l.Box(r).Validate(); err != nil {
			return fmt.Errorf("region %s: %w", r, err)
		}
	}
	for _, side := range Sides {
		if err := l.OMC.For(side).Validate(); err != nil {
			return fmt.Errorf("omc %s: %w", side, err)
		}
	}
	if l.OMCSliceFraction < 0 || l.OMCSliceFraction > 1 {
		return fmt.Errorf("omc slice fraction %g must be in [0, 1]", l.OMCSliceFraction)
	}
	return nil
}
