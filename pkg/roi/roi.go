// Package roi provides the geometric and statistical helpers shared by the
// detectors: fractional regions of interest, morphological dilation, sinus
// wall shells, connected-component labeling and reference bone statistics.
package roi

import (
	"fmt"
	"math"
)

// resolveEps absorbs float error when a fraction lands exactly on a voxel edge.
const resolveEps = 1e-9

// Range is a fractional interval [Lo, Hi] along one axis, in [0, 1].
type Range struct {
	Lo float64 `json:"lo" yaml:"lo"`
	Hi float64 `json:"hi" yaml:"hi"`
}

// Box is an axis-aligned region in fractional volume coordinates.
type Box struct {
	Z Range `json:"z" yaml:"z"`
	Y Range `json:"y" yaml:"y"`
	X Range `json:"x" yaml:"x"`
}

// Span is a half-open voxel interval [Lo, Hi).
type Span struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Len returns the number of voxels in the span.
func (s Span) Len() int {
	return s.Hi - s.Lo
}

// Bounds is a resolved box in voxel index space.
type Bounds struct {
	Z Span `json:"z"`
	Y Span `json:"y"`
	X Span `json:"x"`
}

// Count returns the number of voxels covered.
func (b Bounds) Count() int {
	return b.Z.Len() * b.Y.Len() * b.X.Len()
}

// Contains reports whether (x, y, z) lies inside the bounds.
func (b Bounds) Contains(x, y, z int) bool {
	return x >= b.X.Lo && x < b.X.Hi &&
		y >= b.Y.Lo && y < b.Y.Hi &&
		z >= b.Z.Lo && z < b.Z.Hi
}

// String formats the bounds as z[..) y[..) x[..).
func (b Bounds) String() string {
	return fmt.Sprintf("z[%d,%d) y[%d,%d) x[%d,%d)", b.Z.Lo, b.Z.Hi, b.Y.Lo, b.Y.Hi, b.X.Lo, b.X.Hi)
}

// ResolveSpan converts a fractional range to voxel indices along an axis of
// n voxels. The result is clipped to [0, n) and always holds at least one voxel.
func ResolveSpan(r Range, n int) Span {
	lo, hi := clamp01(r.Lo), clamp01(r.Hi)
	if hi < lo {
		lo, hi = hi, lo
	}

	start := int(math.Floor(lo*float64(n) + resolveEps))
	end := int(math.Ceil(hi*float64(n) - resolveEps))

	if start > n-1 {
		start = n - 1
	}
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if end <= start {
		end = start + 1
	}
	return Span{Lo: start, Hi: end}
}

// Resolve converts the box to voxel bounds for a width x height x depth volume.
func (b Box) Resolve(width, height, depth int) Bounds {
	return Bounds{
		Z: ResolveSpan(b.Z, depth),
		Y: ResolveSpan(b.Y, height),
		X: ResolveSpan(b.X, width),
	}
}

// Shift moves the box by fractional offsets along each axis. The result may
// leave [0, 1]; resolution clips it.
func (b Box) Shift(dz, dy, dx float64) Box {
	return Box{
		Z: Range{Lo: b.Z.Lo + dz, Hi: b.Z.Hi + dz},
		Y: Range{Lo: b.Y.Lo + dy, Hi: b.Y.Hi + dy},
		X: Range{Lo: b.X.Lo + dx, Hi: b.X.Hi + dx},
	}
}

// Center returns the fractional centre of the box as (z, y, x).
func (b Box) Center() (z, y, x float64) {
	return (b.Z.Lo + b.Z.Hi) / 2, (b.Y.Lo + b.Y.Hi) / 2, (b.X.Lo + b.X.Hi) / 2
}

// SliceRange returns the fractional range covering voxel slices
// [index-halfWidth, index+halfWidth] along an axis of n voxels.
func SliceRange(index, halfWidth, n int) Range {
	lo := index - halfWidth
	hi := index + halfWidth + 1
	return Range{Lo: float64(lo) / float64(n), Hi: float64(hi) / float64(n)}
}

// Validate checks that every range is ordered and inside [0, 1].
func (b Box) Validate() error {
	for _, axis := range []struct {
		name string
		r    Range
	}{{"z", b.Z}, {"y", b.Y}, {"x", b.X}} {
		if axis.r.Lo < 0 || axis.r.Hi > 1 || axis.r.Lo >= axis.r.Hi {
			return fmt.Errorf("%s range [%g, %g] must satisfy 0 <= lo < hi <= 1", axis.name, axis.r.Lo, axis.r.Hi)
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
