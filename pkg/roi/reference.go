package roi

import (
	"gonum.org/v1/gonum/stat"

	"sinusct/internal/models"
	"sinusct/pkg/failure"
)

// ReferenceParams locates the reference bone sample.
type ReferenceParams struct {
	// ROI is the hard-palate region in fractional coordinates
	ROI Box `yaml:"roi"`

	// BoneMinHU is the exclusive lower HU bound for reference bone voxels
	BoneMinHU float64 `yaml:"boneMinHU"`

	// MinVoxels is the smallest sample that yields usable statistics
	MinVoxels int `yaml:"minVoxels"`
}

// DefaultReferenceParams samples the inferior-central hard palate.
func DefaultReferenceParams() ReferenceParams {
	return ReferenceParams{
		ROI: Box{
			Z: Range{Lo: 0.60, Hi: 0.80},
			Y: Range{Lo: 0.35, Hi: 0.65},
			X: Range{Lo: 0.35, Hi: 0.65},
		},
		BoneMinHU: 800,
		MinVoxels: 20,
	}
}

// ReferenceBoneStats summarises normal cortical bone for z-scoring.
type ReferenceBoneStats struct {
	MedianHU   float64 `json:"median_hu"`
	StdHU      float64 `json:"std_hu"`
	MeanHU     float64 `json:"mean_hu"`
	VoxelCount int     `json:"voxel_count"`
	Bounds     Bounds  `json:"bounds"`
}

// EstimateReferenceBone measures median and population standard deviation of
// bone voxels inside the reference ROI. It fails with InsufficientReference
// instead of returning statistics from a sample smaller than MinVoxels.
func EstimateReferenceBone(v *models.Volume, p ReferenceParams) (ReferenceBoneStats, error) {
	bounds := p.ROI.Resolve(v.Width, v.Height, v.Depth)
	samples := Collect(v, bounds, func(hu float64) bool { return hu > p.BoneMinHU })

	if len(samples) < p.MinVoxels || len(samples) == 0 {
		return ReferenceBoneStats{}, failure.New(failure.KindInsufficientReference, "roi.EstimateReferenceBone",
			"%d voxels above %.0f HU in %s, need %d", len(samples), p.BoneMinHU, bounds, p.MinVoxels)
	}

	mean, std := stat.PopMeanStdDev(samples, nil)
	return ReferenceBoneStats{
		MedianHU:   Median(samples),
		StdHU:      std,
		MeanHU:     mean,
		VoxelCount: len(samples),
		Bounds:     bounds,
	}, nil
}
