package sclerosis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sinusct/internal/models"
	"sinusct/pkg/failure"
	"sinusct/pkg/roi"
)

var reference = roi.ReferenceBoneStats{MedianHU: 1200, StdHU: 100, MeanHU: 1200, VoxelCount: 500}

// cavityVolume returns a 40³ volume filled with wallHU around a spherical
// air cavity of the given radius, and the cavity mask.
func cavityVolume(t *testing.T, wallHU, radius float64) (*models.Volume, *models.Mask) {
	t.Helper()
	v, err := models.NewVolume(40, 40, 40, models.Spacing{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	v.Fill(wallHU)

	cavity := models.MaskLike(v)
	for z := 0; z < 40; z++ {
		for y := 0; y < 40; y++ {
			for x := 0; x < 40; x++ {
				dx, dy, dz := float64(x-20), float64(y-20), float64(z-20)
				if dx*dx+dy*dy+dz*dz <= radius*radius {
					cavity.Set(x, y, z, true)
					v.Set(x, y, z, -1000)
				}
			}
		}
	}
	return v, cavity
}

func TestConstantScleroticShell(t *testing.T) {
	v, cavity := cavityVolume(t, reference.MedianHU+3*reference.StdHU, 6)

	res, err := Detect(v, cavity, reference, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.SclerosisFraction)
	assert.Equal(t, res.ShellVoxels, res.ScleroticVoxels)
	assert.Equal(t, 1, res.Clusters)
	assert.InDelta(t, 1500, res.MeanShellHU, 1e-9)
	assert.InDelta(t, 1400, res.ThresholdHU, 1e-9)
	assert.InDelta(t, float64(res.ShellVoxels)/1000, res.ShellVolumeML, 1e-12)
}

func TestNormalShell(t *testing.T) {
	v, cavity := cavityVolume(t, reference.MedianHU, 6)

	res, err := Detect(v, cavity, reference, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.SclerosisFraction)
	assert.Equal(t, 0, res.Clusters)
	assert.Positive(t, res.ShellVoxels)
}

func TestCriterionIsStrict(t *testing.T) {
	// exactly z = 2 is not sclerotic
	v, cavity := cavityVolume(t, reference.MedianHU+2*reference.StdHU, 6)

	res, err := Detect(v, cavity, reference, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.SclerosisFraction)
}

func TestPartialSclerosis(t *testing.T) {
	v, cavity := cavityVolume(t, reference.MedianHU, 6)
	// thicken the right half of the wall
	for z := 0; z < 40; z++ {
		for y := 0; y < 40; y++ {
			for x := 20; x < 40; x++ {
				if !cavity.Get(x, y, z) {
					v.Set(x, y, z, 1600)
				}
			}
		}
	}

	res, err := Detect(v, cavity, reference, DefaultParams())
	require.NoError(t, err)
	assert.Greater(t, res.SclerosisFraction, 0.4)
	assert.Less(t, res.SclerosisFraction, 0.6)
	assert.Equal(t, 1, res.Clusters)
}

func TestZeroStdIsInsufficientReference(t *testing.T) {
	v, cavity := cavityVolume(t, 1500, 6)
	ref := reference
	ref.StdHU = 0

	_, err := Detect(v, cavity, ref, DefaultParams())
	assert.ErrorIs(t, err, failure.ErrInsufficientReference)
}

func TestEmptyCavity(t *testing.T) {
	v, _ := cavityVolume(t, 1500, 6)

	_, err := Detect(v, models.MaskLike(v), reference, DefaultParams())
	assert.ErrorIs(t, err, failure.ErrEmptyROI)
}

func TestEmptyShell(t *testing.T) {
	v, _ := cavityVolume(t, 1500, 6)
	everything := models.MaskLike(v)
	for i := range everything.Bits {
		everything.Bits[i] = true
	}

	_, err := Detect(v, everything, reference, DefaultParams())
	assert.ErrorIs(t, err, failure.ErrEmptyROI)
}

func TestMismatchedMask(t *testing.T) {
	v, _ := cavityVolume(t, 1500, 6)

	_, err := Detect(v, models.NewMask(10, 10, 10), reference, DefaultParams())
	assert.ErrorIs(t, err, failure.ErrInvalidInput)
}

func TestInvertedMargins(t *testing.T) {
	v, cavity := cavityVolume(t, 1500, 6)
	p := DefaultParams()
	p.InnerMarginMM, p.OuterMarginMM = 7, 3

	_, err := Detect(v, cavity, reference, p)
	assert.ErrorIs(t, err, failure.ErrInvalidInput)
	assert.Error(t, p.Validate())
}
