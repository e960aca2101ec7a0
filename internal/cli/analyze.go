package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sinusct/internal/models"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	Width, Height, Depth int
	Spacing              []float64
	SampleType           string

	run runOptions
}

// NewAnalyzeCommand analyses a headerless raw volume.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <volume.raw>",
		Short: "Analyse a raw little-endian CT volume",
		Long: `Reads a headerless little-endian volume stored z-major (axial slices
from superior to inferior, rows anterior to posterior, patient left first)
and prints the JSON report.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Width, "width", 0, "x dimension in voxels")
	cmd.Flags().IntVar(&opts.Height, "height", 0, "y dimension in voxels")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "z dimension in voxels")
	cmd.Flags().Float64SliceVar(&opts.Spacing, "spacing", []float64{1, 1, 1}, "voxel spacing x,y,z in mm")
	cmd.Flags().StringVar(&opts.SampleType, "type", string(models.RawFloat32), "sample type (float32|int16)")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")
	_ = cmd.MarkFlagRequired("depth")
	addRunFlags(cmd, &opts.run)

	return cmd
}

func runAnalyze(cmd *cobra.Command, rootOpts *RootOptions, opts *AnalyzeOptions, path string) error {
	if len(opts.Spacing) != 3 {
		return fmt.Errorf("--spacing needs three values, got %d", len(opts.Spacing))
	}
	sampleType, err := models.ParseRawType(opts.SampleType)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	spacing := models.Spacing{X: opts.Spacing[0], Y: opts.Spacing[1], Z: opts.Spacing[2]}
	v, err := models.ReadRaw(f, sampleType, opts.Width, opts.Height, opts.Depth, spacing)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	rootOpts.logger.Debug("volume loaded", "path", path,
		"dims", fmt.Sprintf("%dx%dx%d", v.Width, v.Height, v.Depth))

	return analyze(cmd.Context(), rootOpts, &opts.run, v, cmd.OutOrStdout())
}
