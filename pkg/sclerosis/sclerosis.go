// Package sclerosis measures chronic bone-density elevation in the wall of a
// sinus cavity, z-scored against reference cortical bone.
package sclerosis

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"sinusct/internal/models"
	"sinusct/pkg/failure"
	"sinusct/pkg/roi"
)

// Params configures the wall shell and the sclerosis criterion.
type Params struct {
	InnerMarginMM float64 `yaml:"innerMarginMM"`
	OuterMarginMM float64 `yaml:"outerMarginMM"`

	// ZThreshold is the z-score a shell voxel must exceed to count as sclerotic
	ZThreshold float64 `yaml:"zThreshold"`

	// MinClusterVoxels is the smallest connected sclerotic patch counted as a cluster
	MinClusterVoxels int `yaml:"minClusterVoxels"`
}

// DefaultParams returns a 3-7 mm shell and a z > 2 criterion.
func DefaultParams() Params {
	return Params{
		InnerMarginMM:    3,
		OuterMarginMM:    7,
		ZThreshold:       2.0,
		MinClusterVoxels: 30,
	}
}

// Validate checks parameter consistency.
func (p Params) Validate() error {
	if p.InnerMarginMM < 0 || p.InnerMarginMM >= p.OuterMarginMM {
		return fmt.Errorf("inner margin %g mm must be >= 0 and below outer margin %g mm", p.InnerMarginMM, p.OuterMarginMM)
	}
	if p.MinClusterVoxels < 1 {
		return fmt.Errorf("minimum cluster size must be positive")
	}
	return nil
}

// Result describes the wall of one cavity.
type Result struct {
	SclerosisFraction float64 `json:"sclerotic_fraction"`
	ShellVoxels       int     `json:"shell_voxels"`
	ScleroticVoxels   int     `json:"sclerotic_voxels"`
	ShellVolumeML     float64 `json:"shell_volume_ml"`
	MeanShellHU       float64 `json:"mean_shell_hu"`

	// ThresholdHU is the HU equivalent of the z criterion
	ThresholdHU float64 `json:"threshold_hu"`

	// Clusters counts connected sclerotic patches of at least MinClusterVoxels
	Clusters int `json:"clusters"`
}

// Detect builds the wall shell around cavity and reports the fraction of
// shell voxels whose z-score against ref exceeds p.ZThreshold.
func Detect(v *models.Volume, cavity *models.Mask, ref roi.ReferenceBoneStats, p Params) (*Result, error) {
	const op = "sclerosis.Detect"

	if !cavity.SameShape(v) {
		return nil, failure.New(failure.KindInvalidInput, op, "cavity mask %dx%dx%d does not match volume %dx%dx%d",
			cavity.Width, cavity.Height, cavity.Depth, v.Width, v.Height, v.Depth)
	}
	if ref.StdHU <= 0 {
		return nil, failure.New(failure.KindInsufficientReference, op,
			"reference std %.3f HU over %d voxels cannot scale z-scores", ref.StdHU, ref.VoxelCount)
	}
	if cavity.Count() == 0 {
		return nil, failure.New(failure.KindEmptyROI, op, "air cavity mask is empty")
	}

	shell, err := roi.WallShell(cavity, p.InnerMarginMM, p.OuterMarginMM, v.Spacing)
	if err != nil {
		return nil, err
	}

	sclerotic := models.NewMask(shell.Width, shell.Height, shell.Depth)
	var shellHU []float64
	count := 0
	for i, in := range shell.Bits {
		if !in {
			continue
		}
		hu := v.Data[i]
		shellHU = append(shellHU, hu)
		if stat.StdScore(hu, ref.MedianHU, ref.StdHU) > p.ZThreshold {
			sclerotic.Bits[i] = true
			count++
		}
	}

	if len(shellHU) == 0 {
		return nil, failure.New(failure.KindEmptyROI, op, "wall shell %.1f-%.1f mm contains no voxels",
			p.InnerMarginMM, p.OuterMarginMM)
	}

	clusters := 0
	if count > 0 {
		for _, c := range roi.Label26(sclerotic, roi.FullBounds(sclerotic)) {
			if c.Size() >= p.MinClusterVoxels {
				clusters++
			}
		}
	}

	return &Result{
		SclerosisFraction: float64(count) / float64(len(shellHU)),
		ShellVoxels:       len(shellHU),
		ScleroticVoxels:   count,
		ShellVolumeML:     float64(len(shellHU)) * v.Spacing.VoxelVolumeMM3() / 1000,
		MeanShellHU:       stat.Mean(shellHU, nil),
		ThresholdHU:       ref.MedianHU + p.ZThreshold*ref.StdHU,
		Clusters:          clusters,
	}, nil
}
