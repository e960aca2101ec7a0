package roi

import "sinusct/internal/models"

// Component is one 26-connected group of mask voxels, stored as flat indices.
type Component struct {
	Voxels []int
}

// Size returns the voxel count of the component.
func (c Component) Size() int {
	return len(c.Voxels)
}

// Label26 finds the 26-connected components of mask restricted to bounds.
// Components are returned in scan order of their first voxel.
func Label26(mask *models.Mask, bounds Bounds) []Component {
	w, h := mask.Width, mask.Height
	plane := w * h
	visited := make([]bool, len(mask.Bits))

	var components []Component
	var stack []int

	for z := bounds.Z.Lo; z < bounds.Z.Hi; z++ {
		for y := bounds.Y.Lo; y < bounds.Y.Hi; y++ {
			for x := bounds.X.Lo; x < bounds.X.Hi; x++ {
				seed := z*plane + y*w + x
				if !mask.Bits[seed] || visited[seed] {
					continue
				}

				visited[seed] = true
				stack = append(stack[:0], seed)
				var voxels []int

				for len(stack) > 0 {
					idx := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					voxels = append(voxels, idx)

					cz := idx / plane
					cy := (idx - cz*plane) / w
					cx := idx - cz*plane - cy*w

					for dz := -1; dz <= 1; dz++ {
						nz := cz + dz
						if nz < bounds.Z.Lo || nz >= bounds.Z.Hi {
							continue
						}
						for dy := -1; dy <= 1; dy++ {
							ny := cy + dy
							if ny < bounds.Y.Lo || ny >= bounds.Y.Hi {
								continue
							}
							for dx := -1; dx <= 1; dx++ {
								nx := cx + dx
								if nx < bounds.X.Lo || nx >= bounds.X.Hi {
									continue
								}
								n := nz*plane + ny*w + nx
								if mask.Bits[n] && !visited[n] {
									visited[n] = true
									stack = append(stack, n)
								}
							}
						}
					}
				}

				components = append(components, Component{Voxels: voxels})
			}
		}
	}

	return components
}

// FullBounds returns bounds covering the whole mask.
func FullBounds(mask *models.Mask) Bounds {
	return Bounds{
		Z: Span{Lo: 0, Hi: mask.Depth},
		Y: Span{Lo: 0, Hi: mask.Height},
		X: Span{Lo: 0, Hi: mask.Width},
	}
}
