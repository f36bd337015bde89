package scholar

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalFetches tracks pages fetched successfully.
	TotalFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scholar_fetches_total",
		Help: "The total number of pages fetched successfully.",
	})
	// TotalSkips tracks publications skipped as fresh by the staleness policy.
	TotalSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scholar_skips_total",
		Help: "The total number of records skipped as fresh.",
	})
	// TotalRetries tracks transient-failure retries.
	TotalRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scholar_retries_total",
		Help: "The total number of fetch retries after transient failures.",
	})
	// TotalFailures tracks fetches that exhausted their protocol, by kind.
	TotalFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scholar_failures_total",
		Help: "The total number of failed fetches by error kind.",
	}, []string{"kind"})
	// TotalCaptchaPauses tracks how often the run paused for a manual solve.
	TotalCaptchaPauses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scholar_captcha_pauses_total",
		Help: "The total number of CAPTCHA pauses awaiting manual intervention.",
	})
	// TotalCheckpoints tracks dataset flushes to disk.
	TotalCheckpoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scholar_checkpoints_total",
		Help: "The total number of dataset checkpoints written.",
	})
)
