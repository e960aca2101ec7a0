package models

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// RawType is the sample encoding of a headerless little-endian volume file.
type RawType string

const (
	RawFloat32 RawType = "float32"
	RawInt16   RawType = "int16"
)

// ParseRawType validates a sample encoding name.
func ParseRawType(name string) (RawType, error) {
	switch t := RawType(name); t {
	case RawFloat32, RawInt16:
		return t, nil
	}
	return "", fmt.Errorf("unknown raw sample type %q (must be float32 or int16)", name)
}

// ReadRaw reads width*height*depth little-endian samples in z-major order.
func ReadRaw(r io.Reader, t RawType, width, height, depth int, spacing Spacing) (*Volume, error) {
	v, err := NewVolume(width, height, depth, spacing)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(r)

	switch t {
	case RawFloat32:
		buf := make([]float32, width)
		for off := 0; off < len(v.Data); off += width {
			if err := binary.Read(br, binary.LittleEndian, buf); err != nil {
				return nil, fmt.Errorf("raw volume truncated at sample %d: %w", off, err)
			}
			for i, s := range buf {
				v.Data[off+i] = float64(s)
			}
		}
	case RawInt16:
		buf := make([]int16, width)
		for off := 0; off < len(v.Data); off += width {
			if err := binary.Read(br, binary.LittleEndian, buf); err != nil {
				return nil, fmt.Errorf("raw volume truncated at sample %d: %w", off, err)
			}
			for i, s := range buf {
				v.Data[off+i] = float64(s)
			}
		}
	default:
		return nil, fmt.Errorf("unknown raw sample type %q", t)
	}
	return v, nil
}

// WriteRaw writes the samples of v in the given encoding. int16 samples are
// rounded and saturated.
func (v *Volume) WriteRaw(w io.Writer, t RawType) error {
	bw := bufio.NewWriter(w)

	switch t {
	case RawFloat32:
		buf := make([]float32, v.Width)
		for off := 0; off < len(v.Data); off += v.Width {
			for i := range buf {
				buf[i] = float32(v.Data[off+i])
			}
			if err := binary.Write(bw, binary.LittleEndian, buf); err != nil {
				return err
			}
		}
	case RawInt16:
		buf := make([]int16, v.Width)
		for off := 0; off < len(v.Data); off += v.Width {
			for i := range buf {
				s := math.Round(v.Data[off+i])
				buf[i] = int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, s)))
			}
			if err := binary.Write(bw, binary.LittleEndian, buf); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown raw sample type %q", t)
	}
	return bw.Flush()
}
