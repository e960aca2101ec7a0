package phantom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sinusct/internal/models"
	"sinusct/pkg/anatomy"
	"sinusct/pkg/calibration"
	"sinusct/pkg/roi"
)

func TestBuildDefault(t *testing.T) {
	v, err := Build(DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 96, v.Width)
	assert.Equal(t, 96*96*96, v.Len())
	assert.Equal(t, AirHU, v.At(0, 0, 0))
	assert.Equal(t, SoftTissueHU, v.At(48, 48, 48), "head centre is soft tissue")
}

func TestCavitiesAreAir(t *testing.T) {
	p := DefaultParams()
	v, err := Build(p)
	require.NoError(t, err)

	plugged := anatomy.Region{Sinus: anatomy.AnteriorEthmoid, Side: anatomy.Right}
	for _, r := range anatomy.AllRegions() {
		if r == plugged {
			// the obstructed OMC plug reaches into this cavity
			continue
		}
		cz, cy, cx := p.Layout.Box(r).Center()
		x, y, z := int(cx*96), int(cy*96), int(cz*96)
		assert.Equal(t, AirHU, v.At(x, y, z), "centre of %s", r)
	}
}

func TestWallsFollowSide(t *testing.T) {
	p := DefaultParams()
	v, err := Build(p)
	require.NoError(t, err)

	// directly lateral of each maxillary cavity, inside the wall
	left := cavityMask(v, p.Layout.Maxillary.Left)
	right := cavityMask(v, p.Layout.Maxillary.Right)
	assert.Equal(t, WallHU, lateralWall(v, left, -1))
	assert.Equal(t, ScleroticHU, lateralWall(v, right, 1))
}

// lateralWall walks from the midline along the centre row of a maxillary
// cavity and returns the HU one voxel past its far edge.
func lateralWall(v *models.Volume, cavity *models.Mask, dir int) float64 {
	const y, z = 38, 43
	x := 48
	for x > 0 && x < 95 && !cavity.Get(x, y, z) {
		x += dir
	}
	for x > 0 && x < 95 && cavity.Get(x, y, z) {
		x += dir
	}
	return v.At(x+dir, y, z)
}

func TestPalateTexture(t *testing.T) {
	v, err := Build(DefaultParams())
	require.NoError(t, err)

	stats, err := roi.EstimateReferenceBone(v, roi.DefaultReferenceParams())
	require.NoError(t, err)
	assert.InDelta(t, PalateHU, stats.MedianHU, 1e-9)
	assert.InDelta(t, 113, stats.StdHU, 15)
}

func TestOMCCorridors(t *testing.T) {
	p := DefaultParams()
	v, err := Build(p)
	require.NoError(t, err)

	slice := p.Layout.OMCSlice(96)
	left := p.Layout.OMC.Left
	left.Y = roi.SliceRange(slice, 1, 96)
	b := left.Resolve(96, 96, 96)
	assert.Equal(t, AirHU, v.At(b.X.Lo, b.Y.Lo, b.Z.Lo))

	right := p.Layout.OMC.Right
	right.Y = roi.SliceRange(slice, 1, 96)
	b = right.Resolve(96, 96, 96)
	assert.Equal(t, PlugHU, v.At(b.X.Lo, b.Y.Lo, b.Z.Lo))
}

func TestCystPlaced(t *testing.T) {
	v, err := Build(DefaultParams())
	require.NoError(t, err)

	n := 0
	for _, hu := range v.Data {
		if hu == CystHU {
			n++
		}
	}
	assert.Equal(t, CystVoxels, n)
}

func TestDriftIsRecoveredByCalibration(t *testing.T) {
	p := DefaultParams()
	p.DriftSlope = 1.05
	p.DriftIntercept = 20

	v, err := Build(p)
	require.NoError(t, err)
	assert.InDelta(t, (AirHU-20)/1.05, v.At(0, 0, 0), 1e-9)

	res, err := calibration.Calibrate(v, calibration.DefaultParams())
	require.NoError(t, err)
	assert.InDelta(t, 1.05, res.Correction.Slope, 1e-6)
	assert.InDelta(t, 20, res.Correction.Intercept, 1e-3)
	assert.True(t, res.Validation.Passed())
}

func TestNoiseIsSeeded(t *testing.T) {
	p := DefaultParams()
	p.Size = 32
	p.NoiseSigma = 10

	a, err := Build(p)
	require.NoError(t, err)
	b, err := Build(p)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)

	p.Seed = 2
	c, err := Build(p)
	require.NoError(t, err)
	assert.NotEqual(t, a.Data, c.Data)
}

func TestBuildRejectsBadParams(t *testing.T) {
	p := DefaultParams()
	p.Size = 10
	_, err := Build(p)
	assert.Error(t, err)

	p = DefaultParams()
	p.DriftSlope = 0
	_, err = Build(p)
	assert.Error(t, err)
}
