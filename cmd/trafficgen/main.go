package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/torosent/trafficgen/internal/config"
	"github.com/torosent/trafficgen/internal/dashboard"
	"github.com/torosent/trafficgen/internal/dnsinject"
	"github.com/torosent/trafficgen/internal/httpclient"
	"github.com/torosent/trafficgen/internal/logging"
	"github.com/torosent/trafficgen/internal/metrics"
	"github.com/torosent/trafficgen/internal/navigator"
	"github.com/torosent/trafficgen/internal/output"
	"github.com/torosent/trafficgen/internal/runner"
	"github.com/torosent/trafficgen/internal/store"
	"github.com/torosent/trafficgen/internal/targets"
	"github.com/torosent/trafficgen/internal/threshold"
	"github.com/torosent/trafficgen/internal/tracing"
	"github.com/torosent/trafficgen/internal/worker"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 10 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if cfg.PrintUsage {
		return printUsage(stdout)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.PrintConfig {
		return printConfig(stdout, cfg)
	}

	logger, err := logging.New(cfg.LogLevel, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runID := newRunID()
	logger = logger.With(zap.String("run_id", runID))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.RespectRobots {
		filter := targets.RobotsFilter{
			Client:    httpclient.NewClient(cfg.NavigationTimeout),
			UserAgent: cfg.UserAgent,
			Logger:    logger,
		}
		allowed, err := filter.Filter(ctx, cfg.Targets())
		if err != nil {
			return err
		}
		cfg.URL = ""
		cfg.URLs = allowed
	}

	tp, err := tracing.Init(ctx, cfg.Tracing, tracing.Run{
		ID:        runID,
		Navigator: string(cfg.Navigator),
		Browsers:  cfg.Browsers,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	nav := buildNavigator(cfg, tp, logger)
	resolver := dnsinject.WithTracing(dnsinject.NewNetResolver(cfg.DNSTimeout), tp.Tracer())
	collector := metrics.NewCollector()

	reporters := worker.Reporters{collector}
	var (
		db       *store.DB
		recorder *store.Recorder
	)
	if cfg.ResultsDB != "" {
		db, err = openResults(ctx, cfg, runID)
		if err != nil {
			return err
		}
		defer db.Close()
		recorder = store.NewRecorder(db, runID, logger)
		defer recorder.Close()
		reporters = append(reporters, recorder)
	}
	if cfg.LogErrors {
		reporters = append(reporters, &failureLogger{logger: logger})
	}

	factory := &worker.Factory{
		Settings:  worker.SettingsFromConfig(cfg),
		Navigator: nav,
		Resolver:  resolver,
		Reporter:  reporters,
		Logger:    logger,
		Seed:      cfg.Seed,
	}

	pool := runner.New(runner.Options{
		Workers:          cfg.Browsers,
		DisableThreading: cfg.DisableThreading,
		Grace:            cfg.GraceWindow(),
		ShutdownTimeout:  shutdownTimeout,
		SpawnRate:        cfg.SpawnRate,
		ArrivalModel:     toRunnerArrivalModel(cfg.Arrival.Model),
		RandomSeed:       cfg.Seed,
		Worker:           factory,
		Logger:           logger,
		Counts:           countsFrom(collector),
	})

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboardConfig(cfg, runID), cancel)
		if err != nil {
			return err
		}
		dash.Start()
	}

	var progress *output.ProgressReporter
	if !cfg.Dashboard {
		// JSON mode still samples history for the report.
		var progressOut io.Writer = stdout
		if cfg.JSONOutput {
			progressOut = io.Discard
		}
		progress = output.NewProgressReporter(collector, progressInterval, progressOut)
		progress.Start()
	}

	logger.Info("starting traffic generation",
		zap.Int("browsers", cfg.Browsers),
		zap.Int("targets", len(cfg.Targets())),
		zap.String("navigator", string(cfg.Navigator)),
		zap.Duration("duration", cfg.Duration))

	collector.Start()
	rep := pool.Run(ctx)

	if progress != nil {
		progress.Stop()
		if !cfg.JSONOutput {
			fmt.Fprintln(stdout)
		}
	}
	if dash != nil {
		dash.Stop()
	}
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			logger.Warn("recording events failed", zap.Error(err))
		}
	}

	stats := collector.Stats(rep.Elapsed)
	results, err := evaluateThresholds(cfg.Thresholds, stats)
	if err != nil {
		return err
	}

	if cfg.JSONOutput {
		err = output.PrintJSONReport(stdout, output.JSONReport{
			RunID:      runID,
			Stats:      stats,
			Thresholds: output.ThresholdsForJSON(results),
			History:    collector.History(),
		})
		if err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, stats)
		output.PrintThresholdResults(stdout, results)
	}

	if cfg.HTMLOutput != "" {
		if err := writeHTMLReport(cfg, runID, stats, collector.History(), results); err != nil {
			return err
		}
		logger.Info("html report written", zap.String("path", cfg.HTMLOutput))
	}

	status := runStatus(rep)
	if db != nil {
		summary := store.RunSummary{
			FinishedAt:       time.Now(),
			PageLoads:        rep.Navigations,
			PageLoadFailures: rep.NavigationFailures,
			DNSQueries:       rep.DNSQueries,
			DNSFailures:      rep.DNSFailures,
			Status:           status,
		}
		// ctx may already be cancelled by a signal.
		if err := db.FinishRun(context.Background(), runID, summary); err != nil {
			logger.Warn("finishing run record failed", zap.Error(err))
		}
	}

	logger.Info("traffic generation finished",
		zap.String("status", string(status)),
		zap.Int("launched", rep.Launched),
		zap.Int("start_failures", rep.StartFailures),
		zap.Bool("grace_expired", rep.GraceExpired),
		zap.Int("abandoned", rep.Abandoned))

	if status == store.RunStatusFailed {
		return fmt.Errorf("all %d browsers failed to start", rep.StartFailures)
	}
	if !threshold.AllPassed(results) {
		return fmt.Errorf("thresholds failed")
	}
	return nil
}

func buildNavigator(cfg *config.Config, tp *tracing.Provider, logger *zap.Logger) navigator.Navigator {
	var nav navigator.Navigator
	switch cfg.Navigator {
	case config.NavigatorHTTP:
		nav = navigator.NewHTTP(navigator.HTTPOptions{
			Timeout:     cfg.NavigationTimeout,
			UserAgent:   cfg.UserAgent,
			FetchAssets: cfg.FetchAssets,
			Propagate:   tp.ShouldPropagate(),
			Logger:      logger,
		})
	default:
		nav = navigator.NewChrome(navigator.ChromeOptions{
			Headless:     cfg.Headless,
			UserAgent:    cfg.UserAgent,
			DisableCache: cfg.DisableCache,
			Timeout:      cfg.NavigationTimeout,
			Logger:       logger,
		})
	}
	if cfg.Retries > 0 {
		nav = navigator.WithRetry(nav, newRetryPolicy(cfg.Retries))
	}
	nav = navigator.WithTracing(nav, tp.Tracer())
	return navigator.WithLaunchLimit(nav, cfg.LaunchConcurrency)
}

func openResults(ctx context.Context, cfg *config.Config, runID string) (*store.DB, error) {
	db, err := store.Open(cfg.ResultsDB)
	if err != nil {
		return nil, err
	}
	snapshot, err := configYAML(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	err = db.BeginRun(ctx, store.Run{
		ID:        runID,
		StartedAt: time.Now(),
		Browsers:  cfg.Browsers,
		Navigator: string(cfg.Navigator),
		Config:    snapshot,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func evaluateThresholds(specs []string, stats metrics.Stats) ([]threshold.Result, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	thresholds, err := threshold.ParseMultiple(specs)
	if err != nil {
		return nil, err
	}
	return threshold.NewEvaluator(thresholds).Evaluate(stats), nil
}

func writeHTMLReport(cfg *config.Config, runID string, stats metrics.Stats, history []metrics.DataPoint, results []threshold.Result) error {
	f, err := os.Create(cfg.HTMLOutput)
	if err != nil {
		return fmt.Errorf("create html report: %w", err)
	}
	defer f.Close()

	meta := output.ReportMetadata{
		RunID:       runID,
		Targets:     cfg.Targets(),
		Resolvers:   cfg.Resolvers,
		Browsers:    cfg.Browsers,
		Navigator:   string(cfg.Navigator),
		VisitMode:   string(cfg.VisitMode),
		RefreshRate: cfg.RefreshRate,
		Jitter:      cfg.Jitter,
		Duration:    cfg.Duration,
	}
	if err := output.GenerateHTMLReport(f, stats, history, results, meta); err != nil {
		return fmt.Errorf("generate html report: %w", err)
	}
	return f.Close()
}

func runStatus(rep runner.Report) store.RunStatus {
	switch {
	case rep.Launched > 0 && rep.StartFailures == rep.Launched:
		return store.RunStatusFailed
	case rep.Interrupted:
		return store.RunStatusInterrupted
	default:
		return store.RunStatusCompleted
	}
}

func countsFrom(collector *metrics.Collector) func() runner.Counts {
	return func() runner.Counts {
		t := collector.Totals()
		return runner.Counts{
			Navigations:        t.PageLoads,
			NavigationFailures: t.PageLoadFailures,
			DNSQueries:         t.DNSQueries,
			DNSFailures:        t.DNSFailures,
		}
	}
}

func dashboardConfig(cfg *config.Config, runID string) dashboard.RunConfig {
	return dashboard.RunConfig{
		RunID:        runID,
		Targets:      len(cfg.Targets()),
		Browsers:     cfg.Browsers,
		Navigator:    string(cfg.Navigator),
		VisitMode:    string(cfg.VisitMode),
		RefreshRate:  cfg.RefreshRate,
		Jitter:       cfg.Jitter,
		Duration:     cfg.Duration,
		DNSFrequency: cfg.DNSFrequency,
		Resolvers:    len(cfg.Resolvers),
		ConfigFile:   cfg.ConfigFile,
	}
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	switch model {
	case config.ArrivalModelPoisson:
		return runner.ArrivalModelPoisson
	default:
		return runner.ArrivalModelUniform
	}
}

func newRunID() string {
	return ulid.Make().String()
}
