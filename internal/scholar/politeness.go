package scholar

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"golang.org/x/time/rate"
)

// PacerConfig tunes request spacing against the source's abuse thresholds.
type PacerConfig struct {
	// MinDelay and MaxDelay bound the random per-request delay.
	MinDelay time.Duration
	MaxDelay time.Duration
	// JitterProbability is the chance (0..1) of an extra long human-like pause.
	JitterProbability float64
	JitterMin         time.Duration
	JitterMax         time.Duration
}

// JitterPacer spaces requests with a token bucket plus randomized delays that
// mimic human pacing. All fetches share one pacer: a single rate budget.
type JitterPacer struct {
	cfg     PacerConfig
	limiter *rate.Limiter
}

// NewJitterPacer builds a pacer whose steady-state rate is one request per
// MaxDelay, with randomized extra spacing layered on top.
func NewJitterPacer(cfg PacerConfig) *JitterPacer {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 3 * time.Second
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &JitterPacer{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.MinDelay), 1),
	}
}

// Wait blocks until the next request may be issued, honoring ctx.
func (p *JitterPacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	delay := randomBetween(0, p.cfg.MaxDelay-p.cfg.MinDelay)
	if p.cfg.JitterProbability > 0 && randomFloat() < p.cfg.JitterProbability {
		delay += randomBetween(p.cfg.JitterMin, p.cfg.JitterMax)
	}
	return sleepCtx(ctx, delay)
}

// sleepCtx pauses for delay unless ctx finishes first.
func sleepCtx(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	span := big.NewInt(int64(hi - lo))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return lo
	}
	return lo + time.Duration(n.Int64())
}

func randomFloat() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<20))
	if err != nil {
		return 1
	}
	return float64(n.Int64()) / float64(1<<20)
}
