// Package fetch implements the network fetch client using the Colly library.
package fetch

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/scholar-tracker/internal/scholar"
)

// Config captures the fetch client knobs.
type Config struct {
	UserAgents []string
	Timeout    time.Duration
}

// CollyFetcher implements scholar.Fetcher using the Colly collector.
type CollyFetcher struct {
	baseCollector *colly.Collector
	classifier    *Classifier
	logger        *zap.Logger
	userAgents    []string

	mu      sync.Mutex
	cookies []*http.Cookie
}

// NewCollyFetcher constructs a configured Colly-based fetcher.
func NewCollyFetcher(cfg Config, classifier *Classifier, logger *zap.Logger) (*CollyFetcher, error) {
	if len(cfg.UserAgents) == 0 {
		return nil, fmt.Errorf("at least one user agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := colly.NewCollector(colly.Async(true))
	// Retries and cross-run refreshes hit the same URLs again.
	base.AllowURLRevisit = true
	base.IgnoreRobotsTxt = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          8,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &CollyFetcher{
		baseCollector: base,
		classifier:    classifier,
		logger:        logger,
		userAgents:    cfg.UserAgents,
	}, nil
}

// SetSession replaces the cookies injected into subsequent requests.
func (f *CollyFetcher) SetSession(state scholar.SessionState) error {
	cookies := make([]*http.Cookie, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		if c.Name == "" {
			continue
		}
		hc := &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		}
		if hc.Path == "" {
			hc.Path = "/"
		}
		if c.Expires != nil {
			hc.Expires = *c.Expires
		}
		cookies = append(cookies, hc)
	}
	f.mu.Lock()
	f.cookies = cookies
	f.mu.Unlock()
	return nil
}

// Fetch retrieves one page and classifies anti-bot responses into fetch
// failure kinds.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (scholar.Document, error) {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.pickUserAgent()

	if cookies := f.sessionCookies(); len(cookies) > 0 {
		if err := collector.SetCookies(scholar.BaseURL, cookies); err != nil {
			return scholar.Document{}, fmt.Errorf("inject session cookies: %w", err)
		}
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Referer", scholar.BaseURL+"/")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})

	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		doc := scholar.Document{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}
		if fe := f.classifier.Classify(doc.StatusCode, doc.FinalURL, doc.Body); fe != nil {
			f.logger.Debug("response classified as failure",
				zap.String("url", rawURL),
				zap.Int("status", doc.StatusCode),
				zap.String("kind", string(fe.Kind)),
			)
			send(fetchResult{err: fe})
			return
		}
		f.logger.Debug("page fetched",
			zap.String("url", rawURL),
			zap.Int("status", doc.StatusCode),
			zap.Int("bytes", len(doc.Body)),
		)
		send(fetchResult{doc: doc})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		f.logger.Debug("transport error", zap.String("url", rawURL), zap.Error(err))
		if r != nil && r.StatusCode > 0 {
			finalURL := rawURL
			if r.Request != nil && r.Request.URL != nil {
				finalURL = r.Request.URL.String()
			}
			if fe := f.classifier.Classify(r.StatusCode, finalURL, r.Body); fe != nil {
				send(fetchResult{err: fe})
				return
			}
		}
		send(fetchResult{err: scholar.NewFetchError(scholar.KindTransient, rawURL, err)})
	})

	if err := collector.Visit(rawURL); err != nil {
		return scholar.Document{}, scholar.NewFetchError(scholar.KindTransient, rawURL, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return scholar.Document{}, err
		}
		if res.err != nil {
			return scholar.Document{}, res.err
		}
		return res.doc, nil
	default:
		return scholar.Document{}, scholar.NewFetchError(scholar.KindTransient, rawURL,
			errors.New("colly fetch produced no result"))
	}
}

func (f *CollyFetcher) sessionCookies() []*http.Cookie {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cookies
}

func (f *CollyFetcher) pickUserAgent() string {
	if len(f.userAgents) == 1 {
		return f.userAgents[0]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(f.userAgents))))
	if err != nil {
		return f.userAgents[0]
	}
	return f.userAgents[n.Int64()]
}

type fetchResult struct {
	doc scholar.Document
	err error
}
