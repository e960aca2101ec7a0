// Package cli implements the sinusct command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"sinusct/pkg/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	LogFormat  string // "text" | "json", overrides the config file when set

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand creates the root command for the sinusct CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sinusct",
		Short: "Quantitative paranasal sinus CT analysis",
		Long: `Calibrates a head CT volume against air and bone, derives an adaptive
air/tissue threshold and measures OMC patency, wall sclerosis and
maxillary retention cysts per sinus region.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "sinusct.yaml", "configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json)")

	cmd.AddCommand(NewPhantomCommand(opts))
	cmd.AddCommand(NewAnalyzeCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// load reads the configuration and builds the logger. Logs go to stderr so
// JSON reports on stdout stay parseable.
func (o *RootOptions) load(stderr io.Writer) error {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", o.ConfigPath, err)
	}
	if o.Verbose {
		cfg.Output.Verbose = true
	}
	if o.LogFormat != "" {
		cfg.Output.LogFormat = o.LogFormat
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	o.cfg = cfg
	o.logger = newLogger(stderr, cfg)
	return nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Output.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}
