package cyst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sinusct/internal/models"
	"sinusct/pkg/anatomy"
	"sinusct/pkg/failure"
	"sinusct/pkg/roi"
)

var maxillaryLeft = anatomy.DefaultLayout().Maxillary.Left

// airVolume is a 100³ air-filled volume with anisotropic in-plane spacing.
func airVolume(t *testing.T) *models.Volume {
	t.Helper()
	v, err := models.NewVolume(100, 100, 100, models.Spacing{X: 0.5, Y: 0.5, Z: 1})
	require.NoError(t, err)
	v.Fill(-1000)
	return v
}

// addBlock writes hu into the box [x0,x0+w) x [y0,y0+h) x [z0,z0+d).
func addBlock(v *models.Volume, x0, y0, z0, w, h, d int, hu float64) {
	for z := z0; z < z0+d; z++ {
		for y := y0; y < y0+h; y++ {
			for x := x0; x < x0+w; x++ {
				v.Set(x, y, z, hu)
			}
		}
	}
}

func TestInferiorBlobDetected(t *testing.T) {
	v := airVolume(t)
	b := maxillaryLeft.Resolve(100, 100, 100)
	require.Equal(t, roi.Span{Lo: 34, Hi: 56}, b.Z)

	// 5x5x4 = 100 voxels in the bottom fifth of the ROI
	addBlock(v, 25, 35, 52, 5, 5, 4, 30)

	res, err := Detect(v, maxillaryLeft, nil, DefaultParams())
	require.NoError(t, err)
	require.Equal(t, 1, res.Count())

	c := res.Cysts[0]
	assert.Equal(t, 100, c.VoxelCount)
	assert.InDelta(t, 100*0.25/1000, c.VolumeML, 1e-12)
	assert.InDelta(t, c.VolumeML, res.TotalVolumeML, 1e-12)
	assert.InDelta(t, 27, c.Centroid.X, 1e-9)
	assert.InDelta(t, 53.5, c.Centroid.Z, 1e-9)
	assert.InDelta(t, 13.5, c.CentroidMM.X, 1e-9)
	assert.InDelta(t, 18.5, c.CentroidMM.Y, 1e-9)
	assert.Equal(t, 30.0, c.MeanHU)
	assert.Equal(t, 30.0, c.MedianHU)
	assert.Equal(t, 1.0, c.Solidity)
}

func TestSmallBlobRejected(t *testing.T) {
	v := airVolume(t)
	// 5x4x2 = 40 voxels, below the floor
	addBlock(v, 25, 35, 53, 5, 4, 2, 30)

	res, err := Detect(v, maxillaryLeft, nil, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count())
	assert.Equal(t, 1, res.Rejected)
	assert.NotNil(t, res.Cysts)
}

func TestSuperiorBlobRejected(t *testing.T) {
	v := airVolume(t)
	addBlock(v, 25, 35, 34, 5, 5, 4, 30)

	res, err := Detect(v, maxillaryLeft, nil, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count())
}

func TestDensityWindow(t *testing.T) {
	v := airVolume(t)
	addBlock(v, 25, 35, 52, 5, 5, 4, 61)

	res, err := Detect(v, maxillaryLeft, nil, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count())

	addBlock(v, 25, 35, 52, 5, 5, 4, 60)
	res, err = Detect(v, maxillaryLeft, nil, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count(), "upper bound is inclusive")
}

func TestRestrictionMask(t *testing.T) {
	v := airVolume(t)
	addBlock(v, 25, 35, 52, 5, 5, 4, 30)

	res, err := Detect(v, maxillaryLeft, models.MaskLike(v), DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count())

	_, err = Detect(v, maxillaryLeft, models.NewMask(2, 2, 2), DefaultParams())
	assert.ErrorIs(t, err, failure.ErrInvalidInput)
}

func TestRestrictionKeepsWholeComponent(t *testing.T) {
	v := airVolume(t)
	addBlock(v, 25, 35, 50, 6, 6, 6, 30)

	// only one corner voxel of the block lies in the mask
	within := models.MaskLike(v)
	within.Set(25, 35, 50, true)

	res, err := Detect(v, maxillaryLeft, within, DefaultParams())
	require.NoError(t, err)
	require.Equal(t, 1, res.Count())
	assert.Equal(t, 216, res.Cysts[0].VoxelCount)
	assert.Zero(t, res.Rejected)

	within.Set(25, 35, 50, false)
	res, err = Detect(v, maxillaryLeft, within, DefaultParams())
	require.NoError(t, err)
	assert.Zero(t, res.Count())
	assert.Equal(t, 1, res.Rejected)
}

func TestSolidityFilter(t *testing.T) {
	v := airVolume(t)
	// an L of two 60-voxel bars sharing a corner: 10x3x2 along x and 3x10x2 along y
	addBlock(v, 20, 30, 53, 10, 3, 2, 30)
	addBlock(v, 20, 30, 53, 3, 10, 2, 30)

	res, err := Detect(v, maxillaryLeft, nil, DefaultParams())
	require.NoError(t, err)
	require.Equal(t, 1, res.Count())
	c := res.Cysts[0]
	assert.Equal(t, 102, c.VoxelCount)
	assert.InDelta(t, 102.0/200.0, c.Solidity, 1e-12)

	p := DefaultParams()
	p.MinSolidity = 0.6
	res, err = Detect(v, maxillaryLeft, nil, p)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count())
}

func TestSeparateBlobs(t *testing.T) {
	v := airVolume(t)
	addBlock(v, 20, 30, 52, 5, 5, 4, 30)
	addBlock(v, 30, 30, 52, 5, 5, 4, 30)

	res, err := Detect(v, maxillaryLeft, nil, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count())
	assert.InDelta(t, 2*100*0.25/1000, res.TotalVolumeML, 1e-12)
}

func TestInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.MinHU, p.MaxHU = 60, 0

	_, err := Detect(airVolume(t), maxillaryLeft, nil, p)
	assert.ErrorIs(t, err, failure.ErrInvalidInput)
}
