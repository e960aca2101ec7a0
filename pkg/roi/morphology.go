package roi

import (
	"math"

	"sinusct/internal/models"
	"sinusct/pkg/failure"
)

// Offset is a voxel displacement inside a structuring element.
type Offset struct {
	DX, DY, DZ int
}

// BallOffsets returns the voxel offsets within radiusMM of the origin. The
// reach along each axis is derived from that axis's own spacing, so the
// element stays a physical sphere on anisotropic grids.
func BallOffsets(radiusMM float64, spacing models.Spacing) []Offset {
	if radiusMM <= 0 {
		return []Offset{{}}
	}

	rx := int(math.Floor(radiusMM / spacing.X))
	ry := int(math.Floor(radiusMM / spacing.Y))
	rz := int(math.Floor(radiusMM / spacing.Z))
	limit := radiusMM*radiusMM + 1e-9

	offsets := make([]Offset, 0, (2*rx+1)*(2*ry+1)*(2*rz+1))
	for dz := -rz; dz <= rz; dz++ {
		pz := float64(dz) * spacing.Z
		for dy := -ry; dy <= ry; dy++ {
			py := float64(dy) * spacing.Y
			for dx := -rx; dx <= rx; dx++ {
				px := float64(dx) * spacing.X
				if px*px+py*py+pz*pz <= limit {
					offsets = append(offsets, Offset{DX: dx, DY: dy, DZ: dz})
				}
			}
		}
	}
	return offsets
}

// Dilate grows mask by radiusMM using a spherical structuring element.
// Only boundary voxels are stamped; interior voxels are already covered
// by the stamps of the boundary around them.
func Dilate(mask *models.Mask, radiusMM float64, spacing models.Spacing) *models.Mask {
	out := mask.Clone()
	if radiusMM <= 0 {
		return out
	}

	offsets := BallOffsets(radiusMM, spacing)
	w, h, d := mask.Width, mask.Height, mask.Depth

	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if !mask.Get(x, y, z) || !isBoundary(mask, x, y, z) {
					continue
				}
				for _, o := range offsets {
					nx, ny, nz := x+o.DX, y+o.DY, z+o.DZ
					if nx < 0 || ny < 0 || nz < 0 || nx >= w || ny >= h || nz >= d {
						continue
					}
					out.Bits[out.Index(nx, ny, nz)] = true
				}
			}
		}
	}
	return out
}

// isBoundary reports whether a set voxel has at least one unset 6-neighbour.
func isBoundary(mask *models.Mask, x, y, z int) bool {
	neighbours := [6][3]int{{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1}}
	for _, n := range neighbours {
		nx, ny, nz := x+n[0], y+n[1], z+n[2]
		if nx < 0 || ny < 0 || nz < 0 || nx >= mask.Width || ny >= mask.Height || nz >= mask.Depth {
			continue
		}
		if !mask.Get(nx, ny, nz) {
			return true
		}
	}
	return false
}

// WallShell returns the band between the inner and outer dilations of an
// air-cavity mask: dilate(cavity, outer) ∖ dilate(cavity, inner).
func WallShell(cavity *models.Mask, innerMarginMM, outerMarginMM float64, spacing models.Spacing) (*models.Mask, error) {
	if innerMarginMM < 0 || innerMarginMM >= outerMarginMM {
		return nil, failure.New(failure.KindInvalidInput, "roi.WallShell",
			"inner margin %.2f mm must be >= 0 and below outer margin %.2f mm", innerMarginMM, outerMarginMM)
	}
	if err := spacing.Validate(); err != nil {
		return nil, failure.Wrap(failure.KindInvalidInput, "roi.WallShell", err)
	}

	outer := Dilate(cavity, outerMarginMM, spacing)
	inner := Dilate(cavity, innerMarginMM, spacing)
	return outer.AndNot(inner), nil
}
