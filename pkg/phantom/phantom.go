// Package phantom builds synthetic head CT volumes with controlled sinus
// pathology: patent or obstructed OMC corridors, sclerotic walls, retention
// cysts and scanner drift.
package phantom

import (
	"fmt"
	"math"
	"math/rand"

	"sinusct/internal/models"
	"sinusct/pkg/anatomy"
	"sinusct/pkg/roi"
)

// Tissue intensities in HU.
const (
	AirHU         = -1000.0
	SoftTissueHU  = 40.0
	WallHU        = 950.0
	ScleroticHU   = 1650.0
	PalateHU      = 1200.0
	CystHU        = 30.0
	PlugHU        = 80.0
	wallThickness = 8.0 // mm
)

// Params describes one phantom.
type Params struct {
	// Size is the edge length of the cubic volume in voxels
	Size int

	// Spacing is the isotropic voxel size in mm
	Spacing float64

	// Layout places the sinuses; the phantom shares it with the analysis
	Layout anatomy.Layout

	// PatentOMC, ScleroticWalls and Cyst select the pathology per side
	PatentOMC      [anatomy.NumSides]bool
	ScleroticWalls [anatomy.NumSides]bool
	Cyst           [anatomy.NumSides]bool

	// DriftSlope and DriftIntercept simulate scanner drift: the stored value
	// is (hu - intercept) / slope, so calibration should recover the map.
	DriftSlope     float64
	DriftIntercept float64

	// NoiseSigma adds Gaussian noise when positive
	NoiseSigma float64
	Seed       int64
}

// DefaultParams returns a 96³ phantom with a patent left and obstructed
// right OMC, a left maxillary cyst and sclerotic right walls.
func DefaultParams() Params {
	return Params{
		Size:           96,
		Spacing:        1,
		Layout:         anatomy.DefaultLayout(),
		PatentOMC:      [anatomy.NumSides]bool{true, false},
		ScleroticWalls: [anatomy.NumSides]bool{false, true},
		Cyst:           [anatomy.NumSides]bool{true, false},
		DriftSlope:     1,
		DriftIntercept: 0,
		Seed:           1,
	}
}

// Build renders the phantom.
func Build(p Params) (*models.Volume, error) {
	if p.Size < 32 {
		return nil, fmt.Errorf("phantom size %d is below the 32 voxel minimum", p.Size)
	}
	if p.DriftSlope <= 0 {
		return nil, fmt.Errorf("drift slope must be positive, got %g", p.DriftSlope)
	}
	if err := p.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}

	spacing := models.Spacing{X: p.Spacing, Y: p.Spacing, Z: p.Spacing}
	v, err := models.NewVolume(p.Size, p.Size, p.Size, spacing)
	if err != nil {
		return nil, err
	}
	v.Fill(AirHU)

	n := float64(p.Size)
	centre := n / 2
	fillEllipsoid(v, centre, centre, centre, 0.49*n, 0.49*n, 0.49*n, SoftTissueHU)
	addPalate(v)

	// Walls first so neighbouring cavities carve through them
	cavities := make(map[anatomy.Region]*models.Mask, anatomy.NumSinuses*anatomy.NumSides)
	for _, r := range anatomy.AllRegions() {
		cavities[r] = cavityMask(v, p.Layout.Box(r))
	}
	for _, r := range anatomy.AllRegions() {
		hu := WallHU
		if p.ScleroticWalls[r.Side] {
			hu = ScleroticHU
		}
		paint(v, roi.Dilate(cavities[r], wallThickness, spacing), hu)
	}
	for _, r := range anatomy.AllRegions() {
		paint(v, cavities[r], AirHU)
	}

	for _, side := range anatomy.Sides {
		if p.PatentOMC[side] {
			openCorridor(v, p.Layout.OMC.For(side))
		} else {
			plugCorridor(v, p.Layout.OMC.For(side))
		}
	}

	for _, side := range anatomy.Sides {
		if p.Cyst[side] {
			addCyst(v, cavities[anatomy.Region{Sinus: anatomy.Maxillary, Side: side}])
		}
	}

	if p.NoiseSigma > 0 {
		rng := rand.New(rand.NewSource(p.Seed))
		for i := range v.Data {
			v.Data[i] += rng.NormFloat64() * p.NoiseSigma
		}
	}

	if p.DriftSlope != 1 || p.DriftIntercept != 0 {
		for i, hu := range v.Data {
			v.Data[i] = (hu - p.DriftIntercept) / p.DriftSlope
		}
	}
	return v, nil
}

// cavityMask is the ellipsoid inscribed in a region box, with semi-axes at
// 35% of the box extent.
func cavityMask(v *models.Volume, box roi.Box) *models.Mask {
	m := models.MaskLike(v)
	cz, cy, cx := box.Center()
	rz := 0.35 * (box.Z.Hi - box.Z.Lo) * float64(v.Depth)
	ry := 0.35 * (box.Y.Hi - box.Y.Lo) * float64(v.Height)
	rx := 0.35 * (box.X.Hi - box.X.Lo) * float64(v.Width)
	forEllipsoid(v, cx*float64(v.Width), cy*float64(v.Height), cz*float64(v.Depth), rx, ry, rz, func(idx int) {
		m.Bits[idx] = true
	})
	return m
}

func fillEllipsoid(v *models.Volume, cx, cy, cz, rx, ry, rz, hu float64) {
	forEllipsoid(v, cx, cy, cz, rx, ry, rz, func(idx int) {
		v.Data[idx] = hu
	})
}

func forEllipsoid(v *models.Volume, cx, cy, cz, rx, ry, rz float64, fn func(idx int)) {
	for z := 0; z < v.Depth; z++ {
		dz := (float64(z) + 0.5 - cz) / rz
		if dz*dz > 1 {
			continue
		}
		for y := 0; y < v.Height; y++ {
			dy := (float64(y) + 0.5 - cy) / ry
			if dz*dz+dy*dy > 1 {
				continue
			}
			for x := 0; x < v.Width; x++ {
				dx := (float64(x) + 0.5 - cx) / rx
				if dx*dx+dy*dy+dz*dz <= 1 {
					fn(v.Index(x, y, z))
				}
			}
		}
	}
}

func paint(v *models.Volume, m *models.Mask, hu float64) {
	for i, on := range m.Bits {
		if on {
			v.Data[i] = hu
		}
	}
}

func fillBounds(v *models.Volume, b roi.Bounds, hu float64) {
	for z := b.Z.Lo; z < b.Z.Hi; z++ {
		for y := b.Y.Lo; y < b.Y.Hi; y++ {
			for x := b.X.Lo; x < b.X.Hi; x++ {
				v.Set(x, y, z, hu)
			}
		}
	}
}

// addPalate lays a textured cortical slab where calibration and the
// reference bone statistics look for bone.
func addPalate(v *models.Volume) {
	b := roi.Box{
		Z: roi.Range{Lo: 0.62, Hi: 0.74},
		Y: roi.Range{Lo: 0.30, Hi: 0.70},
		X: roi.Range{Lo: 0.30, Hi: 0.70},
	}.Resolve(v.Width, v.Height, v.Depth)

	for z := b.Z.Lo; z < b.Z.Hi; z++ {
		for y := b.Y.Lo; y < b.Y.Hi; y++ {
			for x := b.X.Lo; x < b.X.Hi; x++ {
				v.Set(x, y, z, PalateHU+80*float64((x+y+z)%5-2))
			}
		}
	}
}

// corridorY is the coronal band of the OMC channel.
var corridorY = roi.Range{Lo: 0.37, Hi: 0.43}

// openCorridor carves an air channel through the canonical OMC box.
func openCorridor(v *models.Volume, box roi.Box) {
	box.Y = corridorY
	fillBounds(v, box.Resolve(v.Width, v.Height, v.Depth), AirHU)
}

// plugCorridor fills the OMC box and its jitter neighbourhood with dense
// secretions so no candidate finds air.
func plugCorridor(v *models.Volume, box roi.Box) {
	const margin = 0.03
	plug := roi.Box{
		Z: roi.Range{Lo: box.Z.Lo - margin, Hi: box.Z.Hi + margin},
		Y: roi.Range{Lo: corridorY.Lo - margin, Hi: corridorY.Hi + margin},
		X: roi.Range{Lo: box.X.Lo - margin, Hi: box.X.Hi + margin},
	}
	fillBounds(v, plug.Resolve(v.Width, v.Height, v.Depth), PlugHU)
}

// addCyst drops a 5x5x5 fluid cube on the floor of a cavity.
func addCyst(v *models.Volume, cavity *models.Mask) {
	var sx, sy, n float64
	floor := -1
	for i, on := range cavity.Bits {
		if !on {
			continue
		}
		x, y, z := v.Coords(i)
		sx += float64(x)
		sy += float64(y)
		n++
		floor = max(floor, z)
	}
	if n == 0 {
		return
	}
	cx, cy := int(math.Round(sx/n)), int(math.Round(sy/n))
	fillBounds(v, roi.Bounds{
		Z: roi.Span{Lo: floor - 4, Hi: floor + 1},
		Y: roi.Span{Lo: cy - 2, Hi: cy + 3},
		X: roi.Span{Lo: cx - 2, Hi: cx + 3},
	}, CystHU)
}

// CystVoxels is the size of every phantom cyst.
const CystVoxels = 125
