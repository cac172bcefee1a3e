package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rfm-segmenter/config"
	"rfm-segmenter/models"
	"rfm-segmenter/services"
	"rfm-segmenter/storage"
	"rfm-segmenter/utils"
)

// RunOptions holds flags for the run command. Empty values leave the
// environment configuration untouched.
type RunOptions struct {
	*RootOptions
	Input        string
	Source       string
	ScoredCSV    string
	FeaturesCSV  string
	XLSX         string
	Metrics      string
	Segments     string
	Negative     string
	NoFileOutput bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the segmentation pipeline",
		Long: `Load the ledger, score every customer and write the results.

Flags override the RFM_* environment variables and the .env file.

Example:
  rfm run --input ./data/bank_transactions.csv --xlsx ./output/rfm.xlsx
  rfm run --source postgres --metrics /var/lib/node_exporter/rfm.prom -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Input, "input", "i", "", "ledger CSV file")
	f.StringVar(&opts.Source, "source", "", "ledger source (csv|postgres)")
	f.StringVar(&opts.ScoredCSV, "csv", "", "scored customers CSV output")
	f.StringVar(&opts.FeaturesCSV, "features", "", "clustering features CSV output")
	f.StringVar(&opts.XLSX, "xlsx", "", "workbook output with scores and features")
	f.StringVar(&opts.Metrics, "metrics", "", "Prometheus textfile output")
	f.StringVar(&opts.Segments, "segments", "", "YAML segment table")
	f.StringVar(&opts.Negative, "negative", "", "negative Monetary policy (clamp|reject)")
	f.BoolVar(&opts.NoFileOutput, "no-csv", false, "skip both CSV outputs")

	return cmd
}

// resolveConfig loads the environment configuration and applies the flags.
func resolveConfig(opts *RunOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if opts.Input != "" {
		cfg.InputPath = opts.Input
		if opts.Source == "" {
			cfg.Source = config.SourceCSV
		}
	}
	if opts.Source != "" {
		cfg.Source = opts.Source
	}
	if opts.ScoredCSV != "" {
		cfg.ScoredCSVPath = opts.ScoredCSV
	}
	if opts.FeaturesCSV != "" {
		cfg.FeaturesCSVPath = opts.FeaturesCSV
	}
	if opts.NoFileOutput {
		cfg.ScoredCSVPath, cfg.FeaturesCSVPath = "", ""
	}
	if opts.XLSX != "" {
		cfg.XLSXPath = opts.XLSX
	}
	if opts.Metrics != "" {
		cfg.MetricsPath = opts.Metrics
	}
	if opts.Segments != "" {
		cfg.SegmentsPath = opts.Segments
	}
	if opts.Negative != "" {
		cfg.NegativeMonetary = opts.Negative
	}
	if opts.Verbose {
		cfg.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runPipeline(cmd *cobra.Command, opts *RunOptions) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := utils.NewLoggerTo(cmd.ErrOrStderr(), cmd.ErrOrStderr(), cfg.Verbose)
	logger.Info("=== RFM segmentation starting ===")
	logger.Info("Config: source %s | negative monetary %s | date layouts %d",
		cfg.Source, cfg.NegativeMonetary, len(cfg.DateLayouts))

	segments := config.DefaultSegments()
	if cfg.SegmentsPath != "" {
		if segments, err = config.LoadSegments(cfg.SegmentsPath); err != nil {
			return WrapExitError(ExitCommandError, "failed to load segment table", err)
		}
		logger.Info("Loaded %d segment rules from %s", len(segments.Segments), cfg.SegmentsPath)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open ledger", err)
	}
	defer src.Close()

	raw, err := src.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrSourceNotFound):
		logger.Error("%v", err)
		raw = nil
	case err != nil:
		return WrapExitError(ExitFailure, "failed to load ledger", err)
	default:
		logger.Info("Successfully loaded %d transactions", len(raw))
	}

	pipeline := services.NewPipeline(logger, services.NewMetrics(), services.PipelineOptions{
		DateLayouts:      cfg.DateLayouts,
		NegativeMonetary: cfg.NegativeMonetary,
		Segments:         segments,
	})
	res, err := pipeline.Run(ctx, raw)
	if err != nil {
		return WrapExitError(ExitFailure, "pipeline failed", err)
	}

	if res.Scored == nil {
		logger.Warn("No results to save; existing outputs left untouched")
	} else {
		if err := writeResults(cfg, res); err != nil {
			return err
		}
		logOutputs(logger, cfg)
	}

	if cfg.MetricsPath != "" {
		if err := pipeline.Metrics().WriteTextfile(cfg.MetricsPath); err != nil {
			return WrapExitError(ExitFailure, "failed to write metrics", err)
		}
		logger.Info("Metrics written to %s", cfg.MetricsPath)
	}

	reports := services.NewReportService(logger)
	reports.Print(cmd.OutOrStdout(), reports.Generate(res))
	return nil
}

func writeResults(cfg *config.Config, res *models.PipelineResult) error {
	writers, err := openWriters(cfg)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to create output", err)
	}
	for _, w := range writers {
		if err := w.WriteScored(res.Scored); err != nil {
			_ = closeAll(writers)
			return WrapExitError(ExitFailure, "failed to write scores", err)
		}
		if err := w.WriteFeatures(res.Features); err != nil {
			_ = closeAll(writers)
			return WrapExitError(ExitFailure, "failed to write features", err)
		}
	}
	if err := closeAll(writers); err != nil {
		return WrapExitError(ExitFailure, "failed to save output", err)
	}
	return nil
}

func openSource(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.TransactionSource, error) {
	if cfg.Source == config.SourcePostgres {
		logger.Info("Reading ledger from PostgreSQL table %s", cfg.PostgresTable)
		return storage.NewPostgresSource(ctx, cfg.DSN(), cfg.PostgresTable, utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			Logger:      logger,
		})
	}
	logger.Info("Reading ledger from %s", cfg.InputPath)
	return storage.NewCSVReader(cfg.InputPath), nil
}

func openWriters(cfg *config.Config) ([]storage.ResultWriter, error) {
	var writers []storage.ResultWriter
	if cfg.ScoredCSVPath != "" || cfg.FeaturesCSVPath != "" {
		w, err := storage.NewCSVWriter(cfg.ScoredCSVPath, cfg.FeaturesCSVPath)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	if cfg.XLSXPath != "" {
		w, err := storage.NewXLSXWriter(cfg.XLSXPath)
		if err != nil {
			_ = closeAll(writers)
			return nil, err
		}
		writers = append(writers, w)
	}
	return writers, nil
}

func closeAll(writers []storage.ResultWriter) error {
	var first error
	for _, w := range writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func logOutputs(logger *utils.Logger, cfg *config.Config) {
	for _, p := range []string{cfg.ScoredCSVPath, cfg.FeaturesCSVPath, cfg.XLSXPath} {
		if p != "" {
			logger.Info("Results saved to %s", p)
		}
	}
}
