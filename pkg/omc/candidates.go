package omc

import (
	"sinusct/pkg/anatomy"
	"sinusct/pkg/roi"
)

// Dims is the voxel shape of the volume being searched.
type Dims struct {
	Width, Height, Depth int
}

// CandidateGenerator proposes the ROIs evaluated for one side and coronal
// slice. Replacing it swaps the localization strategy without touching
// scoring or classification.
type CandidateGenerator interface {
	Candidates(dims Dims, side anatomy.Side, slice int) []roi.Box
}

// JitterGenerator searches a small neighbourhood of a canonical box: the
// box itself, then shifted by ±Jitter along z and along x.
type JitterGenerator struct {
	// Canonical is the approximate corridor location per side
	Canonical anatomy.Paired

	// Jitter is the fractional shift applied to the canonical box
	Jitter float64

	// SlabVoxels is the half-thickness of the coronal slab around the slice
	SlabVoxels int
}

// NewJitterGenerator builds the default five-candidate search.
func NewJitterGenerator(canonical anatomy.Paired, jitter float64, slabVoxels int) *JitterGenerator {
	return &JitterGenerator{Canonical: canonical, Jitter: jitter, SlabVoxels: slabVoxels}
}

// Candidates implements CandidateGenerator
func (g *JitterGenerator) Candidates(dims Dims, side anatomy.Side, slice int) []roi.Box {
	base := g.Canonical.For(side)
	base.Y = roi.SliceRange(slice, g.SlabVoxels, dims.Height)

	j := g.Jitter
	return []roi.Box{
		base,
		base.Shift(-j, 0, 0),
		base.Shift(j, 0, 0),
		base.Shift(0, 0, -j),
		base.Shift(0, 0, j),
	}
}
