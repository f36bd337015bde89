// Package solver opens a visible browser so an operator can clear an anti-bot
// challenge by hand.
package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/scholar-tracker/internal/fetch"
	"github.com/JakeFAU/scholar-tracker/internal/scholar"
)

// ErrSolveTimeout indicates the operator did not clear the challenge within
// the configured window.
var ErrSolveTimeout = errors.New("manual solve timed out")

const pollInterval = 2 * time.Second

// Config captures the manual solve knobs.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// ManualSolver implements scholar.Intervention by launching a headful Chrome
// tab on the challenge URL and waiting for the operator to solve it.
type ManualSolver struct {
	cfg      Config
	detector *fetch.ChallengeDetector
	logger   *zap.Logger
}

// NewManualSolver constructs a solver.
func NewManualSolver(cfg Config, detector *fetch.ChallengeDetector, logger *zap.Logger) *ManualSolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManualSolver{cfg: cfg, detector: detector, logger: logger}
}

// ResolveChallenge blocks until the challenge page clears, then captures the
// browser's cookies and local storage as the refreshed session.
func (s *ManualSolver) ResolveChallenge(ctx context.Context, rawURL string) (scholar.SessionState, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	defer browserCancel()

	solveCtx, cancel := context.WithTimeout(browserCtx, s.cfg.Timeout)
	defer cancel()

	if err := chromedp.Run(solveCtx,
		network.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return scholar.SessionState{}, fmt.Errorf("open challenge page: %w", err)
	}

	s.logger.Info("waiting for operator to solve the challenge",
		zap.String("url", rawURL),
		zap.Duration("timeout", s.cfg.Timeout))

	if err := s.waitForSolve(solveCtx); err != nil {
		return scholar.SessionState{}, err
	}
	return s.captureSession(solveCtx)
}

// waitForSolve polls the tab until the page no longer looks like a challenge.
func (s *ManualSolver) waitForSolve(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrSolveTimeout
			}
			return ctx.Err()
		case <-ticker.C:
			var html string
			if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
				// The operator may be mid-navigation; keep polling.
				s.logger.Debug("snapshot failed, retrying", zap.Error(err))
				continue
			}
			if !s.detector.IsChallenge([]byte(html)) {
				return nil
			}
		}
	}
}

func (s *ManualSolver) captureSession(ctx context.Context) (scholar.SessionState, error) {
	var (
		cookies    []*network.Cookie
		rawStorage string
	)
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
		chromedp.Evaluate(`JSON.stringify(Object.assign({}, window.localStorage))`, &rawStorage),
	)
	if err != nil {
		return scholar.SessionState{}, fmt.Errorf("capture session: %w", err)
	}

	state := scholar.SessionState{CapturedAt: time.Now().UTC()}
	for _, c := range cookies {
		cookie := scholar.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		}
		if c.Expires > 0 {
			exp := time.Unix(int64(c.Expires), 0).UTC()
			cookie.Expires = &exp
		}
		state.Cookies = append(state.Cookies, cookie)
	}
	if rawStorage != "" && rawStorage != "{}" {
		storage := map[string]string{}
		if err := json.Unmarshal([]byte(rawStorage), &storage); err == nil {
			state.LocalStorage = storage
		}
	}

	s.logger.Info("challenge solved, session captured",
		zap.Int("cookies", len(state.Cookies)),
		zap.Int("local_storage_keys", len(state.LocalStorage)))
	return state, nil
}
