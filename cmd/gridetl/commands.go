package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/grid-reliability-etl/internal/adapter/download"
	"github.com/couchcryptid/grid-reliability-etl/internal/adapter/eia"
	httpadapter "github.com/couchcryptid/grid-reliability-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/grid-reliability-etl/internal/adapter/kafka"
	s3adapter "github.com/couchcryptid/grid-reliability-etl/internal/adapter/s3"
	"github.com/couchcryptid/grid-reliability-etl/internal/config"
	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/observability"
	"github.com/couchcryptid/grid-reliability-etl/internal/output"
	"github.com/couchcryptid/grid-reliability-etl/internal/pipeline"
	"github.com/couchcryptid/grid-reliability-etl/internal/rawdata"
)

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// task is the body of one pipeline command.
type task func(ctx context.Context, r *pipeline.Runner) error

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "gridetl",
		Short:         "Grid reliability and generation mix ETL",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Download raw inputs into RAW_DATA_DIR",
	}
	fetch.AddCommand(
		&cobra.Command{
			Use:   "generation",
			Short: "Annual generation by state and fuel from the EIA API",
			Args:  cobra.NoArgs,
			RunE: a.run("fetch generation", true, func(ctx context.Context, r *pipeline.Runner) error {
				return r.FetchGeneration(ctx)
			}),
		},
		&cobra.Command{
			Use:   "rates",
			Short: "Retail electricity prices by state and sector from the EIA API",
			Args:  cobra.NoArgs,
			RunE: a.run("fetch rates", true, func(ctx context.Context, r *pipeline.Runner) error {
				return r.FetchRates(ctx)
			}),
		},
		&cobra.Command{
			Use:   "form861",
			Short: "Utility reliability and metadata from the EIA Form 861 archives",
			Args:  cobra.NoArgs,
			RunE: a.run("fetch form861", false, func(ctx context.Context, r *pipeline.Runner) error {
				return r.FetchForm861(ctx)
			}),
		},
	)

	var buildOpts pipeline.BuildOptions
	build := &cobra.Command{
		Use:   "build",
		Short: "Publish saidi-vre.json and utilities.json from raw inputs",
		Args:  cobra.NoArgs,
		RunE: a.run("build", false, func(ctx context.Context, r *pipeline.Runner) error {
			return r.Build(ctx, buildOpts)
		}),
	}
	build.Flags().BoolVar(&buildOpts.Sample, "sample", false, "publish deterministic sample chart data")
	build.Flags().BoolVar(&buildOpts.UtilitiesOnly, "utilities", false, "build utilities.json only")

	var outageSample bool
	outages := &cobra.Command{
		Use:   "outages",
		Short: "Publish outage-events.json from DOE-417 event reports",
		Args:  cobra.NoArgs,
		RunE: a.run("outages", false, func(ctx context.Context, r *pipeline.Runner) error {
			return r.Outages(ctx, outageSample)
		}),
	}
	outages.Flags().BoolVar(&outageSample, "sample", false, "publish deterministic sample outage data")

	var wholesaleSample bool
	wholesale := &cobra.Command{
		Use:   "wholesale",
		Short: "Publish wholesale-prices.json from the ICE hub workbooks",
		Args:  cobra.NoArgs,
		RunE: a.run("wholesale", false, func(ctx context.Context, r *pipeline.Runner) error {
			return r.Wholesale(ctx, wholesaleSample)
		}),
	}
	wholesale.Flags().BoolVar(&wholesaleSample, "sample", false, "publish deterministic sample price data")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the output directory, health checks and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	root.AddCommand(fetch, build, outages, wholesale, serve)
	return root
}

// run wraps a task with the shared command lifecycle: API key check, runner
// wiring, run-scoped logging and metrics export.
func (a *app) run(command string, needsAPIKey bool, fn task) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logger := observability.WithRun(a.logger, command)
		if needsAPIKey {
			if err := a.cfg.RequireAPIKey(); err != nil {
				logger.Error("cannot run command", "error", err)
				return err
			}
		}

		sink, closeSink, err := a.sink(logger)
		if err != nil {
			logger.Error("failed to create sinks", "error", err)
			return err
		}
		defer closeSink()

		r := pipeline.New(domain.DefaultRefData(), rawdata.Store{Dir: a.cfg.RawDataDir}, a.sources(logger), sink, a.metrics, logger)

		start := time.Now()
		logger.Info("command started")
		err = fn(cmd.Context(), r)
		if errors.Is(err, pipeline.ErrNoData) {
			logger.Warn("command produced no output", "error", err)
			err = nil
		}
		if err != nil {
			logger.Error("command failed", "error", err, "duration", time.Since(start))
			return err
		}

		a.metrics.LastSuccess.WithLabelValues(command).SetToCurrentTime()
		if a.cfg.MetricsTextfile != "" {
			if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
				logger.Warn("metrics export failed", "error", err)
			}
		}
		logger.Info("command complete", "duration", time.Since(start))
		return nil
	}
}

// sources wires the remote inputs. Archives and workbooks are cached under
// their raw dataset directory.
func (a *app) sources(logger *slog.Logger) pipeline.Sources {
	store := rawdata.Store{Dir: a.cfg.RawDataDir}
	pages := download.NewClient("pages", a.cfg.HTTPTimeout, a.metrics, logger)
	archives := download.NewClient("archives", a.cfg.ArchiveTimeout, a.metrics, logger)
	return pipeline.Sources{
		EIA:       eia.NewClient(a.cfg, a.metrics, logger),
		Form861:   download.NewCachedFetcher(archives, store.DatasetDir(rawdata.Form861), rawdata.Form861, a.metrics),
		Outages:   download.NewCachedFetcher(archives, store.DatasetDir(rawdata.Outages), rawdata.Outages, a.metrics),
		Wholesale: download.NewCachedFetcher(pages, store.DatasetDir(rawdata.Wholesale), rawdata.Wholesale, a.metrics),
		Pages:     pages,
	}
}

// sink writes to OUTPUT_DIR and mirrors to Kafka and S3 when configured.
func (a *app) sink(logger *slog.Logger) (output.Sink, func(), error) {
	fan := output.Fanout{Primary: output.FileSink{Dir: a.cfg.OutputDir}, Logger: logger}
	var closers []func() error

	if a.cfg.KafkaEnabled() {
		w := kafkaadapter.NewWriter(a.cfg, logger)
		fan.Mirrors = append(fan.Mirrors, w)
		closers = append(closers, w.Close)
		logger.Info("kafka mirror enabled", "topic", a.cfg.KafkaTopic)
	}
	if a.cfg.S3Enabled() {
		s, err := s3adapter.NewSink(a.cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("s3 sink: %w", err)
		}
		fan.Mirrors = append(fan.Mirrors, s)
		logger.Info("s3 mirror enabled", "bucket", a.cfg.S3Bucket)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}
	return fan, closeAll, nil
}

func (a *app) serve(ctx context.Context) error {
	logger := observability.WithRun(a.logger, "serve")
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.cfg.OutputDir,
		httpadapter.DatasetsReady{Dir: a.cfg.OutputDir}, a.metrics.Gatherer(), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			return err
		}
		return nil
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
