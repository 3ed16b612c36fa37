package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/irfndi/prism-dashboard-go/internal/annotate"
	"github.com/irfndi/prism-dashboard-go/internal/config"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/irfndi/prism-dashboard-go/internal/render"
	"github.com/irfndi/prism-dashboard-go/internal/services"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type analyzeOptions struct {
	file      string
	format    string
	out       string
	startHour int
	endHour   int
	dist      int
	minSlope  float64
	smoothing int
	timezone  string
}

func newAnalyzeCommand(global *globalOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Annotate a CSV trace without a database",
		Long: `Reads a Timestamp,Power CSV trace, detects night zones, rising zones and
severity bands, and writes either the JSON report or a rendered chart.`,
		Example: `  prism analyze --file fridge.csv
  prism analyze --file fridge.csv --format png --out fridge.png --min-slope 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			applyAnalysisFlags(cmd.Flags(), &cfg.Analysis, opts)
			logger := newLogger(cfg, cmd.ErrOrStderr())
			return runAnalyze(commandContext(cmd), cfg.Analysis, opts, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}

	bindAnalyzeFlags(cmd.Flags(), opts)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func bindAnalyzeFlags(flags *pflag.FlagSet, opts *analyzeOptions) {
	flags.StringVarP(&opts.file, "file", "f", "", "CSV trace to analyse, - reads stdin")
	flags.StringVar(&opts.format, "format", string(annotate.FormatJSON), "output format: json, png or svg")
	flags.StringVarP(&opts.out, "out", "o", "-", "output path, - writes stdout")
	flags.IntVar(&opts.startHour, "start-hour", 0, "hour a night zone opens")
	flags.IntVar(&opts.endHour, "end-hour", 0, "hour a night zone closes")
	flags.IntVar(&opts.dist, "dist", 0, "largest gap bridged when merging rising zones")
	flags.Float64Var(&opts.minSlope, "min-slope", 0, "least-squares slope a rising zone needs, 0 keeps all")
	flags.IntVar(&opts.smoothing, "smoothing", 0, "moving-average period applied before slope detection")
	flags.StringVar(&opts.timezone, "timezone", "", "IANA zone night hours are read in")
}

// applyAnalysisFlags overrides cfg with the flags the user set explicitly.
func applyAnalysisFlags(flags *pflag.FlagSet, cfg *config.AnalysisConfig, opts *analyzeOptions) {
	if flags.Changed("start-hour") {
		cfg.StartHour = opts.startHour
	}
	if flags.Changed("end-hour") {
		cfg.EndHour = opts.endHour
	}
	if flags.Changed("dist") {
		cfg.DistToCheck = opts.dist
	}
	if flags.Changed("min-slope") {
		cfg.MinSlope = opts.minSlope
	}
	if flags.Changed("smoothing") {
		cfg.SmoothingPeriod = opts.smoothing
	}
	if flags.Changed("timezone") {
		cfg.Timezone = opts.timezone
	}
}

func runAnalyze(ctx context.Context, cfg config.AnalysisConfig, opts *analyzeOptions, stdin io.Reader, stdout io.Writer, logger *logging.StandardLogger) (err error) {
	format, err := annotate.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if opts.file == "" {
		return errors.New("--file is required")
	}

	svc, err := services.NewDashboardService(nil, nil, cfg, nil, logger)
	if err != nil {
		return err
	}

	in := stdin
	if opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return fmt.Errorf("failed to open trace: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := stdout
	if opts.out != "" && opts.out != "-" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close output: %w", cerr)
			}
		}()
		out = f
	}

	if format == annotate.FormatJSON {
		result, err := svc.AnalyzeUpload(ctx, in)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	tr, err := services.ParseTraceCSV(in)
	if err != nil {
		return err
	}
	_, fig, err := svc.AnalyzeTrace(ctx, tr, svc.Params())
	if err != nil {
		return err
	}
	return render.NewChartRenderer().Render(fig, format, out)
}
