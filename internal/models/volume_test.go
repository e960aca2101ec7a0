package models

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unit = Spacing{X: 1, Y: 1, Z: 1}

func TestVolumeIndexing(t *testing.T) {
	v, err := NewVolume(4, 3, 2, unit)
	require.NoError(t, err)

	v.Set(3, 2, 1, 42)
	idx := v.Index(3, 2, 1)
	assert.Equal(t, 1*4*3+2*4+3, idx)
	assert.Equal(t, 42.0, v.Data[idx])

	x, y, z := v.Coords(idx)
	assert.Equal(t, []int{3, 2, 1}, []int{x, y, z})
}

func TestVolumeCloneIsDeep(t *testing.T) {
	v, err := NewVolume(2, 2, 2, unit)
	require.NoError(t, err)
	v.Fill(-1000)

	c := v.Clone()
	c.Set(0, 0, 0, 40)
	assert.Equal(t, -1000.0, v.At(0, 0, 0))
	assert.Equal(t, 40.0, c.At(0, 0, 0))
}

func TestVolumeValidation(t *testing.T) {
	_, err := NewVolume(0, 1, 1, unit)
	assert.Error(t, err)

	_, err = NewVolume(1, 1, 1, Spacing{X: 1, Y: 0, Z: 1})
	assert.Error(t, err)

	_, err = FromData(make([]float64, 5), 2, 2, 1, unit)
	assert.Error(t, err)

	assert.InDelta(t, 0.25, Spacing{X: 0.5, Y: 0.5, Z: 1}.VoxelVolumeMM3(), 1e-12)
}

func TestMaskOps(t *testing.T) {
	a := NewMask(3, 3, 1)
	b := NewMask(3, 3, 1)
	a.Set(0, 0, 0, true)
	a.Set(1, 1, 0, true)
	b.Set(1, 1, 0, true)

	diff := a.AndNot(b)
	assert.Equal(t, 1, diff.Count())
	assert.True(t, diff.Get(0, 0, 0))
	assert.Equal(t, 2, a.Count(), "inputs are untouched")

	v, err := NewVolume(3, 3, 1, unit)
	require.NoError(t, err)
	assert.True(t, a.SameShape(v))
}

func TestRawRoundTrip(t *testing.T) {
	v, err := NewVolume(3, 2, 2, unit)
	require.NoError(t, err)
	for i := range v.Data {
		v.Data[i] = float64(i*100) - 1000.25
	}

	for _, typ := range []RawType{RawFloat32, RawInt16} {
		t.Run(string(typ), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, v.WriteRaw(&buf, typ))

			got, err := ReadRaw(&buf, typ, 3, 2, 2, unit)
			require.NoError(t, err)
			for i := range v.Data {
				assert.InDelta(t, v.Data[i], got.Data[i], 0.5)
			}
		})
	}
}

func TestReadRawTruncated(t *testing.T) {
	_, err := ReadRaw(bytes.NewReader(make([]byte, 10)), RawFloat32, 2, 2, 2, unit)
	assert.Error(t, err)
}

func TestParseRawType(t *testing.T) {
	typ, err := ParseRawType("int16")
	require.NoError(t, err)
	assert.Equal(t, RawInt16, typ)

	_, err = ParseRawType("uint8")
	assert.Error(t, err)
}
