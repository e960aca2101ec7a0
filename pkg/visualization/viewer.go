// Package visualization renders HU-windowed slices of a volume and the OMC
// candidate boxes on top of them, so a reviewer can audit where the
// corridor was searched.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"sinusct/internal/models"
	"sinusct/pkg/omc"
	"sinusct/pkg/roi"
)

// Window maps an HU interval onto the display grey range.
type Window struct {
	Center float64
	Width  float64
}

// SinusWindow shows air, mucosa and bone apart in one image.
var SinusWindow = Window{Center: 300, Width: 2600}

// Gray maps hu to a 16-bit grey level, saturating outside the window.
func (w Window) Gray(hu float64) uint16 {
	lo := w.Center - w.Width/2
	t := (hu - lo) / w.Width
	return uint16(math.Max(0, math.Min(65535, t*65535)))
}

// Overlay colours.
var (
	CandidateColor = color.RGBA{R: 255, G: 200, B: 0, A: 255}
	SelectedColor  = color.RGBA{R: 255, G: 40, B: 40, A: 255}
)

// Viewer extracts 2D images from a volume.
type Viewer struct {
	volume *models.Volume
	window Window
}

// NewViewer creates a viewer over v with the given display window
func NewViewer(v *models.Volume, window Window) *Viewer {
	return &Viewer{volume: v, window: window}
}

// ExtractSlice extracts a 2D slice perpendicular to axis. An "x" slice is
// sagittal (columns z, rows y), "y" is coronal (columns x, rows z) and "z"
// is axial (columns x, rows y).
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	vol := v.volume

	var img *image.Gray16
	switch axis {
	case "x", "X":
		if position >= vol.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, vol.Width)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Depth, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				img.SetGray16(z, y, color.Gray16{Y: v.window.Gray(vol.At(position, y, z))})
			}
		}

	case "y", "Y":
		if position >= vol.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, vol.Height)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Width, vol.Depth))
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, z, color.Gray16{Y: v.window.Gray(vol.At(x, position, z))})
			}
		}

	case "z", "Z":
		if position >= vol.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, vol.Depth)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Width, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: v.window.Gray(vol.At(x, y, position))})
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// CoronalOverlay renders the coronal slice of m and outlines every
// candidate box, the selected one last so it stays on top.
func (v *Viewer) CoronalOverlay(m *omc.Measurement) (*image.RGBA, error) {
	gray, err := v.ExtractSlice("y", m.Slice)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(gray.Bounds())
	draw.Draw(img, img.Bounds(), gray, image.Point{}, draw.Src)

	for _, c := range m.Candidates {
		if c.Index != m.Candidate {
			outline(img, c.Bounds, CandidateColor)
		}
	}
	if m.Candidate >= 0 {
		outline(img, m.Bounds, SelectedColor)
	}
	return img, nil
}

// outline draws the x/z rectangle of b onto a coronal image.
func outline(img *image.RGBA, b roi.Bounds, c color.RGBA) {
	x0, x1 := b.X.Lo, b.X.Hi-1
	z0, z1 := b.Z.Lo, b.Z.Hi-1
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, z0, c)
		img.SetRGBA(x, z1, c)
	}
	for z := z0; z <= z1; z++ {
		img.SetRGBA(x0, z, c)
		img.SetRGBA(x1, z, c)
	}
}

// SaveSlice saves an image as a JPEG
func SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveOMCOverlays writes one overlay per measurement into outputDir and
// returns the file names.
func (v *Viewer) SaveOMCOverlays(outputDir string, measurements ...*omc.Measurement) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var files []string
	for _, m := range measurements {
		if m == nil {
			continue
		}
		img, err := v.CoronalOverlay(m)
		if err != nil {
			return files, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("omc_%s_slice_%03d.jpg", m.Side, m.Slice))
		if err := SaveSlice(img, filename); err != nil {
			return files, err
		}
		files = append(files, filename)
	}
	return files, nil
}
