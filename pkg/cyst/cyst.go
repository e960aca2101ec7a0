// Package cyst locates fluid-density retention cysts in the maxillary sinus
// using connected-component filtering with a gravity-dependent prior.
package cyst

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"

	"sinusct/internal/models"
	"sinusct/pkg/failure"
	"sinusct/pkg/roi"
)

// Params configures candidate selection and component filtering.
type Params struct {
	// MinHU and MaxHU bound fluid density, inclusive
	MinHU float64 `yaml:"minHU"`
	MaxHU float64 `yaml:"maxHU"`

	// MinVoxels is the smallest component reported as a cyst
	MinVoxels int `yaml:"minVoxels"`

	// InferiorFraction is the share of the ROI z-extent, counted from the
	// inferior end, that must contain the component centroid
	InferiorFraction float64 `yaml:"inferiorFraction"`

	// MinSolidity drops components filling less of their bounding box. Zero disables.
	MinSolidity float64 `yaml:"minSolidity"`
}

// DefaultParams returns the [0, 60] HU, 50-voxel, inferior-40% configuration.
func DefaultParams() Params {
	return Params{
		MinHU:            0,
		MaxHU:            60,
		MinVoxels:        50,
		InferiorFraction: 0.4,
	}
}

// Validate checks parameter consistency.
func (p Params) Validate() error {
	if p.MaxHU < p.MinHU {
		return fmt.Errorf("fluid range [%g, %g] is empty", p.MinHU, p.MaxHU)
	}
	if p.MinVoxels < 1 {
		return fmt.Errorf("minimum cyst size must be positive")
	}
	if p.InferiorFraction <= 0 || p.InferiorFraction > 1 {
		return fmt.Errorf("inferior fraction %g must be in (0, 1]", p.InferiorFraction)
	}
	if p.MinSolidity < 0 || p.MinSolidity > 1 {
		return fmt.Errorf("minimum solidity %g must be in [0, 1]", p.MinSolidity)
	}
	return nil
}

// Cyst is one detected lesion.
type Cyst struct {
	VoxelCount int     `json:"voxel_count"`
	VolumeML   float64 `json:"volume_ml"`

	// Centroid is in voxel coordinates (x, y, z); CentroidMM scales it by spacing
	Centroid   r3.Vector `json:"centroid_voxel"`
	CentroidMM r3.Vector `json:"centroid_mm"`

	MeanHU   float64 `json:"mean_hu"`
	MedianHU float64 `json:"median_hu"`

	// Solidity is the fraction of the bounding box the component fills
	Solidity float64    `json:"solidity"`
	Bounds   roi.Bounds `json:"bounds"`
}

// Result lists the cysts found in one ROI. An empty list is a valid outcome.
type Result struct {
	Cysts         []Cyst     `json:"cysts"`
	TotalVolumeML float64    `json:"total_volume_ml"`
	Bounds        roi.Bounds `json:"bounds"`

	// Rejected counts fluid components that failed the size, position or shape filters
	Rejected int `json:"rejected"`
}

// Count returns the number of detected cysts.
func (r *Result) Count() int {
	return len(r.Cysts)
}

// Detect searches box for fluid-density components. within, when non-nil,
// keeps only components that touch it; a kept component is measured whole.
func Detect(v *models.Volume, box roi.Box, within *models.Mask, p Params) (*Result, error) {
	const op = "cyst.Detect"

	if err := p.Validate(); err != nil {
		return nil, failure.Wrap(failure.KindInvalidInput, op, err)
	}
	if within != nil && !within.SameShape(v) {
		return nil, failure.New(failure.KindInvalidInput, op, "restriction mask %dx%dx%d does not match volume %dx%dx%d",
			within.Width, within.Height, within.Depth, v.Width, v.Height, v.Depth)
	}

	bounds := box.Resolve(v.Width, v.Height, v.Depth)
	candidates := models.MaskLike(v)
	for z := bounds.Z.Lo; z < bounds.Z.Hi; z++ {
		for y := bounds.Y.Lo; y < bounds.Y.Hi; y++ {
			for x := bounds.X.Lo; x < bounds.X.Hi; x++ {
				idx := v.Index(x, y, z)
				if hu := v.Data[idx]; hu >= p.MinHU && hu <= p.MaxHU {
					candidates.Bits[idx] = true
				}
			}
		}
	}

	res := &Result{Cysts: []Cyst{}, Bounds: bounds}
	zExtent := float64(bounds.Z.Len())
	inferiorFrom := 1 - p.InferiorFraction
	voxelML := v.Spacing.VoxelVolumeMM3() / 1000

	for _, comp := range roi.Label26(candidates, bounds) {
		if within != nil && !touches(comp, within) {
			res.Rejected++
			continue
		}
		if comp.Size() < p.MinVoxels {
			res.Rejected++
			continue
		}

		c := describe(v, comp)
		if (c.Centroid.Z+0.5-float64(bounds.Z.Lo))/zExtent < inferiorFrom {
			res.Rejected++
			continue
		}
		if p.MinSolidity > 0 && c.Solidity < p.MinSolidity {
			res.Rejected++
			continue
		}

		c.VolumeML = float64(c.VoxelCount) * voxelML
		res.Cysts = append(res.Cysts, c)
		res.TotalVolumeML += c.VolumeML
	}

	return res, nil
}

func touches(comp roi.Component, m *models.Mask) bool {
	for _, idx := range comp.Voxels {
		if m.Bits[idx] {
			return true
		}
	}
	return false
}

// describe computes the geometry and intensity summary of a component.
func describe(v *models.Volume, comp roi.Component) Cyst {
	hu := make([]float64, 0, comp.Size())
	var sum r3.Vector
	b := roi.Bounds{
		Z: roi.Span{Lo: v.Depth, Hi: -1},
		Y: roi.Span{Lo: v.Height, Hi: -1},
		X: roi.Span{Lo: v.Width, Hi: -1},
	}

	for _, idx := range comp.Voxels {
		x, y, z := v.Coords(idx)
		hu = append(hu, v.Data[idx])
		sum = sum.Add(r3.Vector{X: float64(x), Y: float64(y), Z: float64(z)})
		b.X.Lo, b.X.Hi = min(b.X.Lo, x), max(b.X.Hi, x+1)
		b.Y.Lo, b.Y.Hi = min(b.Y.Lo, y), max(b.Y.Hi, y+1)
		b.Z.Lo, b.Z.Hi = min(b.Z.Lo, z), max(b.Z.Hi, z+1)
	}

	n := float64(comp.Size())
	centroid := sum.Mul(1 / n)
	return Cyst{
		VoxelCount: comp.Size(),
		Centroid:   centroid,
		CentroidMM: r3.Vector{
			X: centroid.X * v.Spacing.X,
			Y: centroid.Y * v.Spacing.Y,
			Z: centroid.Z * v.Spacing.Z,
		},
		MeanHU:   stat.Mean(hu, nil),
		MedianHU: roi.Median(hu),
		Solidity: n / float64(b.Count()),
		Bounds:   b,
	}
}
