package roi

import (
	"sort"

	"sinusct/internal/models"
)

// Median returns the median of values, averaging the two middle samples for
// even lengths. values is not modified. Callers must pass a non-empty slice.
func Median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Collect gathers the HU samples inside bounds that satisfy keep.
func Collect(v *models.Volume, b Bounds, keep func(hu float64) bool) []float64 {
	var out []float64
	for z := b.Z.Lo; z < b.Z.Hi; z++ {
		for y := b.Y.Lo; y < b.Y.Hi; y++ {
			row := v.Index(0, y, z)
			for x := b.X.Lo; x < b.X.Hi; x++ {
				if hu := v.Data[row+x]; keep(hu) {
					out = append(out, hu)
				}
			}
		}
	}
	return out
}
