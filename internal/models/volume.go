package models

import (
	"fmt"
	"math"
)

// Spacing is the physical voxel size in mm along each axis.
type Spacing struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// VoxelVolumeMM3 returns the volume of a single voxel in mm³.
func (s Spacing) VoxelVolumeMM3() float64 {
	return s.X * s.Y * s.Z
}

// Validate reports whether every component is a finite, strictly positive number.
func (s Spacing) Validate() error {
	for _, c := range []float64{s.X, s.Y, s.Z} {
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("voxel spacing must be strictly positive, got (%g, %g, %g)", s.X, s.Y, s.Z)
		}
	}
	return nil
}

// Volume represents a 3D CT intensity volume in Hounsfield units.
//
// Samples are stored as a 1D array in z-major order (z*Width*Height + y*Width + x).
// The z axis runs superior to inferior, y runs anterior to posterior, and
// x < Width/2 is the patient's left. Once a volume has been handed to the
// analysis pipeline it is treated as immutable; every transformation
// returns a new Volume.
type Volume struct {
	// Data holds the HU samples
	Data []float64

	// Width, Height, Depth are the x, y and z dimensions in voxels
	Width  int
	Height int
	Depth  int

	// Spacing is the physical size of each voxel in mm
	Spacing Spacing
}

// NewVolume allocates a zero-filled volume with the given dimensions and spacing.
func NewVolume(width, height, depth int, spacing Spacing) (*Volume, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("volume dimensions must be positive, got %dx%dx%d", width, height, depth)
	}
	if err := spacing.Validate(); err != nil {
		return nil, err
	}
	return &Volume{
		Data:    make([]float64, width*height*depth),
		Width:   width,
		Height:  height,
		Depth:   depth,
		Spacing: spacing,
	}, nil
}

// FromData wraps an existing sample slice. The slice is not copied.
func FromData(data []float64, width, height, depth int, spacing Spacing) (*Volume, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("volume dimensions must be positive, got %dx%dx%d", width, height, depth)
	}
	if len(data) != width*height*depth {
		return nil, fmt.Errorf("data length %d does not match dimensions %dx%dx%d", len(data), width, height, depth)
	}
	if err := spacing.Validate(); err != nil {
		return nil, err
	}
	return &Volume{Data: data, Width: width, Height: height, Depth: depth, Spacing: spacing}, nil
}

// Index converts voxel coordinates to the flat array index.
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// Coords converts a flat array index back to voxel coordinates.
func (v *Volume) Coords(idx int) (x, y, z int) {
	plane := v.Width * v.Height
	z = idx / plane
	rem := idx - z*plane
	y = rem / v.Width
	x = rem - y*v.Width
	return x, y, z
}

// At returns the HU sample at (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set writes a sample. Only used while a volume is being built.
func (v *Volume) Set(x, y, z int, hu float64) {
	v.Data[v.Index(x, y, z)] = hu
}

// Len returns the number of voxels.
func (v *Volume) Len() int {
	return len(v.Data)
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	data := make([]float64, len(v.Data))
	copy(data, v.Data)
	return &Volume{Data: data, Width: v.Width, Height: v.Height, Depth: v.Depth, Spacing: v.Spacing}
}

// Fill sets every voxel to hu.
func (v *Volume) Fill(hu float64) {
	for i := range v.Data {
		v.Data[i] = hu
	}
}
