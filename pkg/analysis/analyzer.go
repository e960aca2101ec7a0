// Package analysis runs the full sinus quantification pipeline on one volume:
// calibration, thresholding, reference bone, then the per-region detectors
// in parallel, and assembles the report.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"sinusct/internal/models"
	"sinusct/pkg/anatomy"
	"sinusct/pkg/calibration"
	"sinusct/pkg/config"
	"sinusct/pkg/cyst"
	"sinusct/pkg/failure"
	"sinusct/pkg/lundmackay"
	"sinusct/pkg/metrics"
	"sinusct/pkg/omc"
	"sinusct/pkg/roi"
	"sinusct/pkg/sclerosis"
	"sinusct/pkg/threshold"
)

// Request is one volume to analyse.
type Request struct {
	Volume *models.Volume

	// CoronalSlice overrides the layout's default OMC slice
	CoronalSlice *int

	// Grades, when present, are reduced to Lund-Mackay totals together with
	// the measured OMC verdicts
	Grades *lundmackay.Grades
}

// Analyzer orchestrates the measurement components.
type Analyzer struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.AnalysisMetrics
	generator omc.CandidateGenerator
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.AnalysisMetrics) Option {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// WithCandidateGenerator replaces the OMC localization strategy.
func WithCandidateGenerator(gen omc.CandidateGenerator) Option {
	return func(a *Analyzer) {
		a.generator = gen
	}
}

// NewAnalyzer validates cfg and builds an analyzer.
func NewAnalyzer(cfg *config.Config, opts ...Option) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &Analyzer{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.generator == nil {
		a.generator = omc.NewJitterGenerator(cfg.Anatomy.OMC, cfg.OMC.Jitter, cfg.OMC.SlabVoxels)
	}
	a.logger = a.logger.With("module", "analysis")
	return a, nil
}

// Run analyses one volume. Calibration and threshold failures abort the
// whole analysis; any other failure is confined to the region it affects
// and reported as not computed.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Report, error) {
	if a.metrics != nil {
		a.metrics.ActiveAnalyses.Inc()
		defer a.metrics.ActiveAnalyses.Dec()
	}

	report, err := a.run(ctx, req)
	if a.metrics != nil {
		a.metrics.RecordAnalysis(err)
	}
	if err != nil {
		a.logger.Error("analysis aborted", "error", err)
		return nil, err
	}

	a.logger.Info("analysis complete",
		"id", report.ID,
		"threshold_hu", report.Threshold.ThresholdHU,
		"not_computed", report.NotComputedCount(),
		"warnings", len(report.Warnings))
	return report, nil
}

func (a *Analyzer) run(ctx context.Context, req Request) (*Report, error) {
	v := req.Volume
	if v == nil {
		return nil, failure.New(failure.KindInvalidInput, "analysis.Run", "no volume supplied")
	}
	if err := v.Spacing.Validate(); err != nil {
		return nil, failure.Wrap(failure.KindInvalidInput, "analysis.Run", err)
	}
	if v.Len() != v.Width*v.Height*v.Depth || v.Len() == 0 {
		return nil, failure.New(failure.KindInvalidInput, "analysis.Run",
			"volume holds %d samples for %dx%dx%d", v.Len(), v.Width, v.Height, v.Depth)
	}

	report := &Report{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Volume:    VolumeInfo{Width: v.Width, Height: v.Height, Depth: v.Depth, Spacing: v.Spacing},
		OMC:       make(map[anatomy.Side]Outcome[omc.Measurement], anatomy.NumSides),
		Sclerosis: make(map[anatomy.Region]Outcome[sclerosis.Result], anatomy.NumSinuses*anatomy.NumSides),
		Cysts:     make(map[anatomy.Region]Outcome[cyst.Result], anatomy.NumSides),
	}
	logger := a.logger.With("id", report.ID)

	// Calibration
	start := time.Now()
	cal, err := calibration.Calibrate(v, a.cfg.Calibration)
	if err != nil {
		return nil, fmt.Errorf("calibration failed: %w", err)
	}
	a.observe("calibration", start)
	report.Calibration = cal
	report.Warnings = append(report.Warnings, cal.Correction.Warnings...)
	if verr := cal.Validation.Err(); verr != nil {
		report.Warnings = append(report.Warnings, verr.Error())
		logger.Warn("calibration validation failed", "error", verr)
	}
	logger.Info("calibration complete",
		"air_hu", cal.Air.MeasuredHU,
		"bone_hu", cal.Bone.MeasuredHU,
		"slope", cal.Correction.Slope,
		"intercept", cal.Correction.Intercept,
		"air_check", cal.Validation.Air.Status(),
		"bone_check", cal.Validation.Bone.Status())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Threshold
	vol := cal.Corrected
	start = time.Now()
	th, err := threshold.Compute(vol, a.cfg.Threshold)
	if err != nil {
		return nil, fmt.Errorf("threshold failed: %w", err)
	}
	a.observe("threshold", start)
	report.Threshold = th
	if th.Fallback {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"no histogram valley met the %.0f%% rule, threshold is the peak midpoint %.1f HU",
			a.cfg.Threshold.ValleyFraction*100, th.ThresholdHU))
	}
	logger.Info("threshold selected", "threshold_hu", th.ThresholdHU, "fallback", th.Fallback)

	// Reference bone
	start = time.Now()
	ref, refErr := roi.EstimateReferenceBone(vol, a.cfg.Reference)
	a.observe("reference", start)
	if refErr != nil {
		report.Reference = notComputed[roi.ReferenceBoneStats](refErr)
		logger.Warn("reference bone unavailable, sclerosis not computed", "error", refErr)
	} else {
		report.Reference = measured(&ref)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slice := a.cfg.Anatomy.OMCSlice(vol.Height)
	if req.CoronalSlice != nil {
		slice = *req.CoronalSlice
	}

	start = time.Now()
	if err := a.measureRegions(ctx, vol, th.ThresholdHU, slice, ref, refErr, report); err != nil {
		return nil, err
	}
	a.observe("regions", start)

	if req.Grades != nil {
		lm := a.score(*req.Grades, report)
		report.LundMackay = &lm
	}

	return report, nil
}

// task is one independent per-region measurement.
type task struct {
	metric string
	run    func() (any, error)
	store  func(value any, err error)
}

type taskResult struct {
	idx   int
	value any
	err   error
}

// measureRegions runs OMC, sclerosis and cyst measurements in parallel,
// bounded by the configured core count.
func (a *Analyzer) measureRegions(ctx context.Context, vol *models.Volume, thresholdHU float64, slice int,
	ref roi.ReferenceBoneStats, refErr error, report *Report) error {

	layout := a.cfg.Anatomy
	patency := omc.NewAnalyzer(a.cfg.OMC, a.generator)
	var tasks []task

	for _, side := range anatomy.Sides {
		tasks = append(tasks, task{
			metric: "omc",
			run: func() (any, error) {
				return patency.Measure(vol, thresholdHU, slice, side)
			},
			store: func(value any, err error) {
				if err != nil {
					report.OMC[side] = notComputed[omc.Measurement](err)
					return
				}
				report.OMC[side] = measured(value.(*omc.Measurement))
			},
		})
	}

	for _, region := range anatomy.AllRegions() {
		if refErr != nil {
			report.Sclerosis[region] = notComputed[sclerosis.Result](refErr)
			a.recordFailure("sclerosis", refErr)
			continue
		}
		tasks = append(tasks, task{
			metric: "sclerosis",
			run: func() (any, error) {
				cavity := cavityMask(vol, layout.Box(region), thresholdHU)
				return sclerosis.Detect(vol, cavity, ref, a.cfg.Sclerosis)
			},
			store: func(value any, err error) {
				if err != nil {
					report.Sclerosis[region] = notComputed[sclerosis.Result](err)
					return
				}
				report.Sclerosis[region] = measured(value.(*sclerosis.Result))
			},
		})
	}

	for _, side := range anatomy.Sides {
		region := anatomy.Region{Sinus: anatomy.Maxillary, Side: side}
		tasks = append(tasks, task{
			metric: "cyst",
			run: func() (any, error) {
				box := layout.Box(region)
				var within *models.Mask
				if a.cfg.Cyst.CavityMarginMM > 0 {
					cavity := cavityMask(vol, box, thresholdHU)
					within = roi.Dilate(cavity, a.cfg.Cyst.CavityMarginMM, vol.Spacing)
				}
				return cyst.Detect(vol, box, within, a.cfg.Cyst.Params)
			},
			store: func(value any, err error) {
				if err != nil {
					report.Cysts[region] = notComputed[cyst.Result](err)
					return
				}
				res := value.(*cyst.Result)
				report.Cysts[region] = measured(res)
				if a.metrics != nil {
					a.metrics.AddCysts(res.Count())
				}
			},
		})
	}

	// Launch every task, holding a semaphore slot for the duration of each
	sem := semaphore.NewWeighted(int64(a.cfg.Processing.NumCores))
	resultChan := make(chan taskResult, len(tasks))
	launched := 0
	var acquireErr error

	for i, t := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}
		launched++
		go func(idx int, t task) {
			defer sem.Release(1)
			value, err := t.run()
			resultChan <- taskResult{idx: idx, value: value, err: err}
		}(i, t)
	}

	// Results are stored on this goroutine only
	for i := 0; i < launched; i++ {
		res := <-resultChan
		t := tasks[res.idx]
		if res.err != nil {
			a.recordFailure(t.metric, res.err)
			a.logger.Warn("region measurement not computed", "metric", t.metric, "error", res.err)
		}
		t.store(res.value, res.err)
	}

	if acquireErr != nil {
		return acquireErr
	}
	return ctx.Err()
}

// score reduces caller grades and the measured OMC verdicts. Both sides must
// have been measured; an indeterminate corridor counts as not obstructed.
func (a *Analyzer) score(grades lundmackay.Grades, report *Report) Outcome[lundmackay.Score] {
	var in lundmackay.Input
	in.Grades = grades
	for _, side := range anatomy.Sides {
		o := report.OMC[side]
		if !o.OK() {
			return notComputed[lundmackay.Score](failure.New(failure.KindEmptyROI, "analysis.score",
				"OMC %s side not measured", side))
		}
		in.OMCObstructed[side] = o.Result.Classification == omc.Obstructed
	}

	s, err := lundmackay.Compute(in)
	if err != nil {
		return notComputed[lundmackay.Score](err)
	}
	return measured(s)
}

// cavityMask marks the voxels of box below the air threshold.
func cavityMask(v *models.Volume, box roi.Box, thresholdHU float64) *models.Mask {
	mask := models.MaskLike(v)
	b := box.Resolve(v.Width, v.Height, v.Depth)
	for z := b.Z.Lo; z < b.Z.Hi; z++ {
		for y := b.Y.Lo; y < b.Y.Hi; y++ {
			row := v.Index(0, y, z)
			for x := b.X.Lo; x < b.X.Hi; x++ {
				if v.Data[row+x] < thresholdHU {
					mask.Bits[row+x] = true
				}
			}
		}
	}
	return mask
}

func (a *Analyzer) observe(stage string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordStage(stage, time.Since(start).Seconds())
	}
}

func (a *Analyzer) recordFailure(metric string, err error) {
	if a.metrics != nil {
		a.metrics.RecordRegionFailure(metric, err)
	}
}
