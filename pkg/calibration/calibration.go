// Package calibration corrects scanner-dependent HU drift with a two-point
// linear map anchored on air and cortical bone, and validates the result.
package calibration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"sinusct/internal/models"
	"sinusct/pkg/failure"
	"sinusct/pkg/roi"
)

// Params controls anchor detection, the correction targets and the
// validation tolerances.
type Params struct {
	// PeripheralMarginVoxels is the depth of the axial and coronal border
	// searched for air
	PeripheralMarginVoxels int `yaml:"peripheralMarginVoxels"`

	// AirCandidateMaxHU is the exclusive upper bound for air candidates
	AirCandidateMaxHU float64 `yaml:"airCandidateMaxHU"`

	// BoneROI is the inferior central band searched for cortical bone
	BoneROI roi.Box `yaml:"boneROI"`

	// BoneCandidateMinHU is the exclusive lower bound for bone candidates
	BoneCandidateMinHU float64 `yaml:"boneCandidateMinHU"`

	// ExpectedAirHU and ExpectedBoneHU are the physical targets
	ExpectedAirHU  float64 `yaml:"expectedAirHU"`
	ExpectedBoneHU float64 `yaml:"expectedBoneHU"`

	// AirToleranceHU and BoneToleranceHU bound the post-correction error
	AirToleranceHU  float64 `yaml:"airToleranceHU"`
	BoneToleranceHU float64 `yaml:"boneToleranceHU"`

	// SkipBelowHU leaves the volume untouched when both anchors already sit
	// within this many HU of their targets. Zero always corrects.
	SkipBelowHU float64 `yaml:"skipBelowHU"`
}

// DefaultParams returns the standard anchors and tolerances.
func DefaultParams() Params {
	return Params{
		PeripheralMarginVoxels: 10,
		AirCandidateMaxHU:      -800,
		BoneROI: roi.Box{
			Z: roi.Range{Lo: 0.60, Hi: 0.80},
			Y: roi.Range{Lo: 0.30, Hi: 0.70},
			X: roi.Range{Lo: 0.30, Hi: 0.70},
		},
		BoneCandidateMinHU: 900,
		ExpectedAirHU:      -1000,
		ExpectedBoneHU:     1200,
		AirToleranceHU:     50,
		BoneToleranceHU:    200,
	}
}

// Validate checks parameter consistency.
func (p Params) Validate() error {
	if p.PeripheralMarginVoxels < 1 {
		return fmt.Errorf("peripheral margin must be at least 1 voxel, got %d", p.PeripheralMarginVoxels)
	}
	if p.ExpectedBoneHU <= p.ExpectedAirHU {
		return fmt.Errorf("expected bone HU %.0f must exceed expected air HU %.0f", p.ExpectedBoneHU, p.ExpectedAirHU)
	}
	if p.AirToleranceHU <= 0 || p.BoneToleranceHU <= 0 {
		return fmt.Errorf("tolerances must be positive")
	}
	if p.SkipBelowHU < 0 {
		return fmt.Errorf("skip threshold must not be negative")
	}
	return p.BoneROI.Validate()
}

// Anchor is one measured reference intensity.
type Anchor struct {
	MeasuredHU float64 `json:"measured_hu"`
	ExpectedHU float64 `json:"expected_hu"`
	Samples    int     `json:"samples"`
}

// Correction is the affine map corrected = slope*raw + intercept.
type Correction struct {
	Slope     float64  `json:"slope"`
	Intercept float64  `json:"intercept"`
	Identity  bool     `json:"identity"`
	Warnings  []string `json:"warnings,omitempty"`
}

// IdentityCorrection leaves every sample unchanged.
func IdentityCorrection() Correction {
	return Correction{Slope: 1, Intercept: 0, Identity: true}
}

// DetectAirAnchor takes the median of air-like voxels in the peripheral
// border: the first and last margin axial slices and coronal rows.
func DetectAirAnchor(v *models.Volume, p Params) (Anchor, error) {
	m := p.PeripheralMarginVoxels
	var samples []float64

	for z := 0; z < v.Depth; z++ {
		zEdge := z < m || z >= v.Depth-m
		for y := 0; y < v.Height; y++ {
			if !zEdge && y >= m && y < v.Height-m {
				continue
			}
			row := v.Index(0, y, z)
			for x := 0; x < v.Width; x++ {
				if hu := v.Data[row+x]; hu < p.AirCandidateMaxHU {
					samples = append(samples, hu)
				}
			}
		}
	}

	if len(samples) == 0 {
		return Anchor{}, failure.New(failure.KindCalibration, "calibration.DetectAirAnchor",
			"no peripheral voxels below %.0f HU", p.AirCandidateMaxHU)
	}
	return Anchor{MeasuredHU: roi.Median(samples), ExpectedHU: p.ExpectedAirHU, Samples: len(samples)}, nil
}

// DetectBoneAnchor takes the median of bone-like voxels in the inferior
// central band.
func DetectBoneAnchor(v *models.Volume, p Params) (Anchor, error) {
	bounds := p.BoneROI.Resolve(v.Width, v.Height, v.Depth)
	samples := roi.Collect(v, bounds, func(hu float64) bool { return hu > p.BoneCandidateMinHU })

	if len(samples) == 0 {
		return Anchor{}, failure.New(failure.KindCalibration, "calibration.DetectBoneAnchor",
			"no voxels above %.0f HU in %s", p.BoneCandidateMinHU, bounds)
	}
	return Anchor{MeasuredHU: roi.Median(samples), ExpectedHU: p.ExpectedBoneHU, Samples: len(samples)}, nil
}

// ComputeCorrection solves the two-point linear map sending air to the
// expected air HU and bone to the expected bone HU. When bone does not lie
// above air the map is undefined and the identity is returned with a warning.
func ComputeCorrection(air, bone float64, p Params) Correction {
	if bone <= air {
		c := IdentityCorrection()
		c.Warnings = append(c.Warnings, fmt.Sprintf(
			"bone anchor %.1f HU does not exceed air anchor %.1f HU, correction skipped", bone, air))
		return c
	}

	if p.SkipBelowHU > 0 &&
		math.Abs(air-p.ExpectedAirHU) <= p.SkipBelowHU &&
		math.Abs(bone-p.ExpectedBoneHU) <= p.SkipBelowHU {
		return IdentityCorrection()
	}

	a := mat.NewDense(2, 2, []float64{
		air, 1,
		bone, 1,
	})
	b := mat.NewVecDense(2, []float64{p.ExpectedAirHU, p.ExpectedBoneHU})

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		c := IdentityCorrection()
		c.Warnings = append(c.Warnings, fmt.Sprintf("anchor system not solvable: %v", err))
		return c
	}

	return Correction{Slope: x.AtVec(0), Intercept: x.AtVec(1)}
}

// ApplyCorrection returns a new volume with every sample mapped through
// slope*hu + intercept. The input is never modified.
func ApplyCorrection(v *models.Volume, slope, intercept float64) *models.Volume {
	out := v.Clone()
	if slope == 1 && intercept == 0 {
		return out
	}
	for i, hu := range out.Data {
		out.Data[i] = hu*slope + intercept
	}
	return out
}
