package calibration

import (
	"fmt"
	"math"
	"strings"

	"sinusct/internal/models"
	"sinusct/pkg/failure"
)

// AnchorCheck is the post-correction verdict for one anchor. Measured is nil
// when the anchor could not be re-detected at all.
type AnchorCheck struct {
	Expected  float64  `json:"expected_hu"`
	Measured  *float64 `json:"measured_hu,omitempty"`
	Delta     *float64 `json:"delta_hu,omitempty"`
	Tolerance float64  `json:"tolerance_hu"`
	Available bool     `json:"available"`
	Pass      bool     `json:"pass"`
	Detail    string   `json:"detail,omitempty"`
}

// Status renders the verdict as PASS or FAIL.
func (c AnchorCheck) Status() string {
	if c.Pass {
		return "PASS"
	}
	return "FAIL"
}

// Validation holds the PASS/FAIL verdict for both anchors.
type Validation struct {
	Air  AnchorCheck `json:"air"`
	Bone AnchorCheck `json:"bone"`
}

// Passed reports whether both anchors are within tolerance.
func (v Validation) Passed() bool {
	return v.Air.Pass && v.Bone.Pass
}

// Err returns a ValidationFailure describing every failing anchor, or nil.
func (v Validation) Err() error {
	if v.Passed() {
		return nil
	}
	var parts []string
	for _, c := range []struct {
		name  string
		check AnchorCheck
	}{{"air", v.Air}, {"bone", v.Bone}} {
		if c.check.Pass {
			continue
		}
		if !c.check.Available {
			parts = append(parts, fmt.Sprintf("%s anchor unavailable: %s", c.name, c.check.Detail))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s anchor %.1f HU outside %.0f±%.0f",
			c.name, *c.check.Measured, c.check.Expected, c.check.Tolerance))
	}
	return failure.New(failure.KindValidation, "calibration.Validate", "%s", strings.Join(parts, "; "))
}

// Validate re-measures both anchors on a corrected volume and checks them
// against the tolerances. It never fails; an anchor that cannot be detected
// is reported as unavailable and FAIL.
func Validate(v *models.Volume, p Params) Validation {
	check := func(detect func(*models.Volume, Params) (Anchor, error), expected, tol float64) AnchorCheck {
		c := AnchorCheck{Expected: expected, Tolerance: tol}
		a, err := detect(v, p)
		if err != nil {
			c.Detail = err.Error()
			return c
		}
		measured := a.MeasuredHU
		delta := measured - expected
		c.Measured = &measured
		c.Delta = &delta
		c.Available = true
		c.Pass = math.Abs(delta) <= tol
		return c
	}

	return Validation{
		Air:  check(DetectAirAnchor, p.ExpectedAirHU, p.AirToleranceHU),
		Bone: check(DetectBoneAnchor, p.ExpectedBoneHU, p.BoneToleranceHU),
	}
}

// Result is the outcome of a full calibration pass.
type Result struct {
	Air        Anchor         `json:"air_anchor"`
	Bone       Anchor         `json:"bone_anchor"`
	Correction Correction     `json:"correction"`
	Validation Validation     `json:"validation"`
	Corrected  *models.Volume `json:"-"`
}

// Calibrate detects both anchors, solves and applies the correction, then
// validates the corrected volume. Missing anchors abort with a
// CalibrationError; an out-of-tolerance validation does not.
func Calibrate(v *models.Volume, p Params) (*Result, error) {
	air, err := DetectAirAnchor(v, p)
	if err != nil {
		return nil, err
	}
	bone, err := DetectBoneAnchor(v, p)
	if err != nil {
		return nil, err
	}

	corr := ComputeCorrection(air.MeasuredHU, bone.MeasuredHU, p)
	corrected := ApplyCorrection(v, corr.Slope, corr.Intercept)

	return &Result{
		Air:        air,
		Bone:       bone,
		Correction: corr,
		Validation: Validate(corrected, p),
		Corrected:  corrected,
	}, nil
}
