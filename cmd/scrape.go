package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/scholar-tracker/internal/api"
	"github.com/JakeFAU/scholar-tracker/internal/clock/system"
	"github.com/JakeFAU/scholar-tracker/internal/config"
	"github.com/JakeFAU/scholar-tracker/internal/fetch"
	"github.com/JakeFAU/scholar-tracker/internal/logging"
	"github.com/JakeFAU/scholar-tracker/internal/parse"
	"github.com/JakeFAU/scholar-tracker/internal/progress"
	progresssinks "github.com/JakeFAU/scholar-tracker/internal/progress/sinks"
	"github.com/JakeFAU/scholar-tracker/internal/scholar"
	"github.com/JakeFAU/scholar-tracker/internal/session"
	"github.com/JakeFAU/scholar-tracker/internal/session/solver"
	"github.com/JakeFAU/scholar-tracker/internal/store"
)

// newScrapeCmd creates and configures the 'scrape' subcommand, the main
// incremental refresh run.
func newScrapeCmd() *cobra.Command {
	var (
		authors       []string
		thresholdDays int
		headless      bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Refreshes stale author and publication records",
		Long: `Walks the configured author list, fetching only records whose last
successful scrape is older than the staleness threshold. Results are merged
into the dataset and checkpointed continuously, so an interrupted run can be
resumed by running the command again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadPartial(cfgFile)
			if err != nil {
				return err
			}
			if len(authors) > 0 {
				cfg.Scrape.ScholarIDs = authors
			}
			if cmd.Flags().Changed("threshold-days") {
				cfg.Scrape.RescrapeThresholdDays = thresholdDays
			}
			if headless {
				cfg.Scrape.Interactive = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runScrape(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringSliceVar(&authors, "authors", nil, "author ids to track (overrides config)")
	cmd.Flags().IntVar(&thresholdDays, "threshold-days", 7, "records fresher than this many days are skipped")
	cmd.Flags().BoolVar(&headless, "headless", false, "never open a browser for manual challenge solves")
	return cmd
}

func runScrape(parent context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := store.NewResultStore(cfg.Scrape.ResultsFile, logger)
	if err != nil {
		return fmt.Errorf("init result store: %w", err)
	}
	ds, err := results.Load()
	if err != nil {
		return fmt.Errorf("load results: %w", err)
	}

	sessions, err := session.NewStore(cfg.Session.CachePath, logger)
	if err != nil {
		return fmt.Errorf("init session store: %w", err)
	}

	detector := fetch.NewChallengeDetector(fetch.DefaultChallengeKeywords)
	fetcher, err := fetch.NewCollyFetcher(fetch.Config{
		UserAgents: cfg.HTTP.UserAgents,
		Timeout:    cfg.Timeout(),
	}, fetch.NewClassifier(detector), logger)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}

	clk := system.New()
	pacer := scholar.NewJitterPacer(scholar.PacerConfig{
		MinDelay:          time.Duration(cfg.Politeness.MinDelaySeconds) * time.Second,
		MaxDelay:          time.Duration(cfg.Politeness.MaxDelaySeconds) * time.Second,
		JitterProbability: cfg.Politeness.JitterProbability,
		JitterMin:         time.Duration(cfg.Politeness.JitterMinSeconds) * time.Second,
		JitterMax:         time.Duration(cfg.Politeness.JitterMaxSeconds) * time.Second,
	})
	retry := scholar.NewExponentialRetryPolicy(cfg.HTTP.MaxRetries, cfg.BackoffInitial(), cfg.BackoffMax())

	var intervene scholar.Intervention
	if cfg.Scrape.Interactive {
		intervene = solver.NewManualSolver(solver.Config{
			Timeout:   time.Duration(cfg.Session.SolveTimeoutSeconds) * time.Second,
			UserAgent: cfg.HTTP.UserAgents[0],
		}, detector, logger)
	}

	sinks := []progress.Sink{progresssinks.NewLogSink(logger)}
	if cfg.Progress.AuditFile != "" {
		audit, err := progresssinks.NewAuditSink(cfg.Progress.AuditFile)
		if err != nil {
			return fmt.Errorf("init audit sink: %w", err)
		}
		sinks = append(sinks, audit)
	}

	var srv *api.Server
	if cfg.Metrics.Enabled {
		status := api.NewStatusSink()
		sinks = append(sinks, status)
		srv = api.NewServer(cfg.Metrics.Port, status, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status server shutdown failed", zap.Error(err))
			}
		}()
	}

	fanout := progress.NewFanout(logger, sinks...)
	defer func() {
		if err := fanout.Close(context.Background()); err != nil {
			logger.Warn("progress sink close failed", zap.Error(err))
		}
	}()

	// One run identity for every producer: scheduler and merge engine alike.
	emitter := progress.NewRunEmitter(clk, fanout)
	merger := scholar.NewMergeEngine(ds, results, clk, cfg.Scrape.CheckpointEvery, emitter, logger)

	sched := scholar.NewScheduler(scholar.SchedulerConfig{
		AuthorIDs:       cfg.Scrape.ScholarIDs,
		ThresholdDays:   cfg.Scrape.RescrapeThresholdDays,
		ValidateSession: cfg.Scrape.ValidateSession,
	}, ds, fetcher, parse.NewHTMLParser(logger), sessions, merger, retry, pacer, clk, intervene, emitter, logger)

	stats, err := sched.Run(ctx)
	logger.Info("scrape finished",
		zap.Int("authors", stats.AuthorsProcessed),
		zap.Int("fetched", stats.Fetched),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("retries", stats.Retries),
		zap.Int("captcha_pauses", stats.CaptchaPauses),
	)
	if errors.Is(err, context.Canceled) {
		logger.Warn("run interrupted, partial results were checkpointed")
	}
	return err
}
