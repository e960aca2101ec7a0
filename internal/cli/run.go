package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"sinusct/internal/models"
	"sinusct/pkg/analysis"
	"sinusct/pkg/anatomy"
	"sinusct/pkg/lundmackay"
	"sinusct/pkg/metrics"
	"sinusct/pkg/omc"
	"sinusct/pkg/visualization"
)

// runOptions are the analysis flags shared by phantom and analyze.
type runOptions struct {
	slice       int
	grades      map[string]int
	overlayDir  string
	metricsFile string
}

func (r *runOptions) request(v *models.Volume) (analysis.Request, error) {
	req := analysis.Request{Volume: v}
	if r.slice >= 0 {
		slice := r.slice
		req.CoronalSlice = &slice
	}
	if len(r.grades) > 0 {
		grades, err := parseGrades(r.grades)
		if err != nil {
			return req, err
		}
		req.Grades = &grades
	}
	return req, nil
}

// parseGrades reads region=grade pairs; regions left out grade as clear.
func parseGrades(pairs map[string]int) (lundmackay.Grades, error) {
	var grades lundmackay.Grades
	for name, g := range pairs {
		region, err := anatomy.ParseRegion(name)
		if err != nil {
			return grades, err
		}
		if g < int(lundmackay.Clear) || g > int(lundmackay.Complete) {
			return grades, fmt.Errorf("grade %d for %s must be 0, 1 or 2", g, region)
		}
		grades.Set(region, lundmackay.Grade(g))
	}
	return grades, nil
}

// analyze runs the pipeline on v and writes the JSON report to out.
func analyze(ctx context.Context, opts *RootOptions, run *runOptions, v *models.Volume, out io.Writer) error {
	req, err := run.request(v)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.NewAnalysisMetrics(registry)
	if err != nil {
		return err
	}

	analyzer, err := analysis.NewAnalyzer(opts.cfg,
		analysis.WithLogger(opts.logger),
		analysis.WithMetrics(m))
	if err != nil {
		return err
	}

	report, err := analyzer.Run(ctx, req)
	if err != nil {
		return err
	}

	overlayDir := opts.cfg.Output.OverlayDir
	if run.overlayDir != "" {
		overlayDir = run.overlayDir
	}
	if overlayDir != "" {
		if err := saveOverlays(report, overlayDir, opts); err != nil {
			return err
		}
	}

	if run.metricsFile != "" {
		if err := prometheus.WriteToTextfile(run.metricsFile, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// saveOverlays renders the OMC search on the calibrated volume.
func saveOverlays(report *analysis.Report, dir string, opts *RootOptions) error {
	var measured []*omc.Measurement
	for _, side := range anatomy.Sides {
		if o := report.OMC[side]; o.OK() {
			measured = append(measured, o.Result)
		}
	}

	viewer := visualization.NewViewer(report.Calibration.Corrected, visualization.SinusWindow)
	files, err := viewer.SaveOMCOverlays(dir, measured...)
	if err != nil {
		return fmt.Errorf("failed to save overlays: %w", err)
	}
	opts.logger.Info("saved OMC overlays", "dir", dir, "files", len(files))
	return nil
}
