package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sinusct/internal/models"
	"sinusct/pkg/phantom"
)

// PhantomOptions holds flags for the phantom command.
type PhantomOptions struct {
	Params  phantom.Params
	SaveRaw string

	run runOptions
}

// NewPhantomCommand builds a synthetic head and analyses it.
func NewPhantomCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PhantomOptions{Params: phantom.DefaultParams()}

	cmd := &cobra.Command{
		Use:   "phantom",
		Short: "Analyse a synthetic head phantom",
		Long: `Builds a synthetic head CT with a patent left and obstructed right OMC,
sclerotic right sinus walls and a left maxillary retention cyst, then runs
the full analysis on it and prints the JSON report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhantom(cmd, rootOpts, opts)
		},
	}

	p := &opts.Params
	cmd.Flags().IntVar(&p.Size, "size", p.Size, "edge length of the cubic volume in voxels")
	cmd.Flags().Float64Var(&p.Spacing, "spacing", p.Spacing, "isotropic voxel size in mm")
	cmd.Flags().Float64Var(&p.DriftSlope, "drift-slope", p.DriftSlope, "simulated scanner gain")
	cmd.Flags().Float64Var(&p.DriftIntercept, "drift-intercept", p.DriftIntercept, "simulated scanner offset in HU")
	cmd.Flags().Float64Var(&p.NoiseSigma, "noise", p.NoiseSigma, "Gaussian noise sigma in HU")
	cmd.Flags().Int64Var(&p.Seed, "seed", p.Seed, "noise seed")
	cmd.Flags().StringVar(&opts.SaveRaw, "save-raw", "", "also write the phantom as a float32 raw file")
	addRunFlags(cmd, &opts.run)

	return cmd
}

func runPhantom(cmd *cobra.Command, rootOpts *RootOptions, opts *PhantomOptions) error {
	opts.Params.Layout = rootOpts.cfg.Anatomy

	v, err := phantom.Build(opts.Params)
	if err != nil {
		return err
	}
	rootOpts.logger.Debug("phantom built",
		"size", opts.Params.Size,
		"drift_slope", opts.Params.DriftSlope,
		"drift_intercept", opts.Params.DriftIntercept)

	if opts.SaveRaw != "" {
		if err := saveRaw(v, opts.SaveRaw); err != nil {
			return err
		}
		rootOpts.logger.Info("phantom saved", "path", opts.SaveRaw,
			"dims", fmt.Sprintf("%dx%dx%d", v.Width, v.Height, v.Depth))
	}

	return analyze(cmd.Context(), rootOpts, &opts.run, v, cmd.OutOrStdout())
}

func saveRaw(v *models.Volume, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := v.WriteRaw(f, models.RawFloat32); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// addRunFlags registers the analysis flags shared by every analysing command.
func addRunFlags(cmd *cobra.Command, run *runOptions) {
	cmd.Flags().IntVar(&run.slice, "slice", -1, "coronal slice for the OMC (default from the anatomy layout)")
	cmd.Flags().StringToIntVar(&run.grades, "grades", nil, "Lund-Mackay grades, e.g. maxillary_left=2,frontal_right=1")
	cmd.Flags().StringVar(&run.overlayDir, "overlay-dir", "", "write OMC audit overlays to this directory")
	cmd.Flags().StringVar(&run.metricsFile, "metrics-file", "", "write pipeline metrics in Prometheus text format")
}
