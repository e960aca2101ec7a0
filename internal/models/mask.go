package models

// Mask is a boolean volume with the same layout as Volume.
type Mask struct {
	Bits   []bool
	Width  int
	Height int
	Depth  int
}

// NewMask allocates an all-false mask.
func NewMask(width, height, depth int) *Mask {
	return &Mask{
		Bits:   make([]bool, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// MaskLike allocates an all-false mask shaped like v.
func MaskLike(v *Volume) *Mask {
	return NewMask(v.Width, v.Height, v.Depth)
}

// Index converts voxel coordinates to the flat array index.
func (m *Mask) Index(x, y, z int) int {
	return z*m.Width*m.Height + y*m.Width + x
}

// Get reports whether (x, y, z) is set.
func (m *Mask) Get(x, y, z int) bool {
	return m.Bits[m.Index(x, y, z)]
}

// Set marks (x, y, z).
func (m *Mask) Set(x, y, z int, on bool) {
	m.Bits[m.Index(x, y, z)] = on
}

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// SameShape reports whether m matches the dimensions of v.
func (m *Mask) SameShape(v *Volume) bool {
	return m.Width == v.Width && m.Height == v.Height && m.Depth == v.Depth
}

// AndNot returns m ∖ other as a new mask.
func (m *Mask) AndNot(other *Mask) *Mask {
	out := NewMask(m.Width, m.Height, m.Depth)
	for i, b := range m.Bits {
		out.Bits[i] = b && !other.Bits[i]
	}
	return out
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	out := NewMask(m.Width, m.Height, m.Depth)
	copy(out.Bits, m.Bits)
	return out
}
