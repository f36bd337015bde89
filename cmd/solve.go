package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/scholar-tracker/internal/config"
	"github.com/JakeFAU/scholar-tracker/internal/fetch"
	"github.com/JakeFAU/scholar-tracker/internal/logging"
	"github.com/JakeFAU/scholar-tracker/internal/scholar"
	"github.com/JakeFAU/scholar-tracker/internal/session"
	"github.com/JakeFAU/scholar-tracker/internal/session/solver"
)

// newSolveCmd creates the 'solve' subcommand: refresh the cached session ahead
// of a run by solving a challenge in a visible browser.
func newSolveCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Opens a browser to refresh the anti-bot session cache",
		Long: `Opens a visible browser on the source site so any pending challenge can
be solved by hand. The resulting cookies and local storage are written to the
session cache and picked up by the next scrape run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadPartial(cfgFile)
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sessions, err := session.NewStore(cfg.Session.CachePath, logger)
			if err != nil {
				return fmt.Errorf("init session store: %w", err)
			}

			detector := fetch.NewChallengeDetector(fetch.DefaultChallengeKeywords)
			manual := solver.NewManualSolver(solver.Config{
				Timeout: time.Duration(cfg.Session.SolveTimeoutSeconds) * time.Second,
			}, detector, logger)

			if target == "" {
				target = scholar.BaseURL + "/"
			}
			state, err := manual.ResolveChallenge(ctx, target)
			if err != nil {
				return fmt.Errorf("manual solve: %w", err)
			}
			if err := sessions.Save(state); err != nil {
				return fmt.Errorf("persist session: %w", err)
			}

			logger.Info("session cache refreshed",
				zap.String("path", cfg.Session.CachePath),
				zap.Int("cookies", len(state.Cookies)),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "url", "", "challenge url to open (defaults to the source root)")
	return cmd
}
