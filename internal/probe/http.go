// Package probe implements the HTTP reachability client with outcome
// classification and per-host rate limiting.
package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/snapfresh/snapfresh/internal/metrics"
	"github.com/snapfresh/snapfresh/internal/refresh"
)

// DefaultTimeout applies when a domain config leaves the per-request
// timeout unset.
const DefaultTimeout = 5 * time.Second

// Config holds probe client settings.
type Config struct {
	UserAgent string
	// DefaultRPS caps probes per host; <= 0 means unlimited.
	DefaultRPS   float64
	DefaultBurst int
	// MaxIdleConnsPerHost sizes the shared connection pool.
	MaxIdleConnsPerHost int
	// RateLimitMinDelay is the slowest interval a host's bucket is
	// tightened to after a 429; <= 0 disables tightening.
	RateLimitMinDelay time.Duration
}

// Client probes URLs with HEAD requests over a shared connection pool.
// It is safe for concurrent use by the batch runner's workers.
type Client struct {
	httpClient     *http.Client
	userAgent      string
	defaultRate    rate.Limit
	defaultBurst   int
	rateLimitFloor time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	logger *zap.Logger
}

// New creates a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	metrics.Init()
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "snapfresh/0.1"
	}
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	maxIdle := cfg.MaxIdleConnsPerHost
	if maxIdle <= 0 {
		maxIdle = 8
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: maxIdle,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			// Redirects count as reachable; return the 3xx itself
			// instead of chasing it.
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent:      cfg.UserAgent,
		defaultRate:    r,
		defaultBurst:   burst,
		rateLimitFloor: cfg.RateLimitMinDelay,
		limiters:       make(map[string]*rate.Limiter),
		logger:         logger,
	}
}

// Probe issues a header-only request and classifies the outcome.
// The body is never read.
func (c *Client) Probe(ctx context.Context, req refresh.ProbeRequest) refresh.ProbeResult {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if err := c.waitForHost(ctx, req.URL); err != nil {
		return refresh.ProbeResult{Class: refresh.ClassTransient, Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodHead, req.URL, nil)
	if err != nil {
		return refresh.ProbeResult{Class: refresh.ClassPermanent, Err: err}
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	metrics.IncProbesInFlight()
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	metrics.DecProbesInFlight()

	if err != nil {
		c.logger.Debug("probe transport error",
			zap.String("url", req.URL),
			zap.Duration("duration", duration),
			zap.Error(err))
		metrics.ObserveProbe(req.URL, 0, duration)
		return refresh.ProbeResult{
			Class:    classifyError(err),
			Duration: duration,
			Err:      err,
		}
	}
	// HEAD responses carry no payload worth keeping.
	_ = resp.Body.Close()

	metrics.ObserveProbe(req.URL, resp.StatusCode, duration)
	class := ClassifyStatus(resp.StatusCode)
	switch class {
	case refresh.ClassRateLimited:
		c.tightenHost(req.URL)
	case refresh.ClassSuccess:
		c.relaxHost(req.URL)
	}
	return refresh.ProbeResult{
		Class:      class,
		StatusCode: resp.StatusCode,
		Duration:   duration,
	}
}

// ClassifyStatus maps an HTTP status code to a retry class.
//   - 2xx/3xx: success
//   - 429: rate limited (transient with a raised delay floor)
//   - other 4xx: permanent (the URL itself is bad; retrying cannot fix it)
//   - 5xx and anything else: transient
func ClassifyStatus(code int) refresh.Class {
	switch {
	case code >= 200 && code < 400:
		return refresh.ClassSuccess
	case code == http.StatusTooManyRequests:
		return refresh.ClassRateLimited
	case code >= 400 && code < 500:
		return refresh.ClassPermanent
	default:
		return refresh.ClassTransient
	}
}

// classifyError treats timeouts and connection failures as transient.
func classifyError(err error) refresh.Class {
	if errors.Is(err, context.DeadlineExceeded) {
		return refresh.ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return refresh.ClassTransient
	}
	// Refused, reset, DNS hiccups: all worth another try.
	return refresh.ClassTransient
}

// waitForHost blocks on the per-host token bucket. Hosts that answered
// 429 have a tightened bucket even when the default rate is unlimited.
func (c *Client) waitForHost(ctx context.Context, rawURL string) error {
	host := metrics.SanitizeHost(rawURL)

	c.mu.Lock()
	limiter, ok := c.limiters[host]
	if !ok {
		if c.defaultRate == rate.Inf {
			c.mu.Unlock()
			return nil
		}
		limiter = rate.NewLimiter(c.defaultRate, c.defaultBurst)
		c.limiters[host] = limiter
	}
	c.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(rawURL, waited)
	}
	return nil
}

// tightenHost slows the host's bucket to one probe per RateLimitMinDelay
// after a 429. The next probe to that host waits out the floor instead
// of hammering an endpoint that just pushed back.
func (c *Client) tightenHost(rawURL string) {
	if c.rateLimitFloor <= 0 {
		return
	}
	host := metrics.SanitizeHost(rawURL)
	floor := rate.Every(c.rateLimitFloor)

	c.mu.Lock()
	defer c.mu.Unlock()
	limiter, ok := c.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(floor, 1)
		limiter.AllowN(time.Now(), 1)
		c.limiters[host] = limiter
		c.logger.Debug("rate limited, tightening host bucket",
			zap.String("host", host),
			zap.Duration("floor", c.rateLimitFloor))
		return
	}
	if limiter.Limit() > floor {
		limiter.SetLimit(floor)
		limiter.SetBurst(1)
		c.logger.Debug("rate limited, tightening host bucket",
			zap.String("host", host),
			zap.Duration("floor", c.rateLimitFloor))
	}
}

// relaxHost restores the default rate once the host answers successfully.
func (c *Client) relaxHost(rawURL string) {
	if c.rateLimitFloor <= 0 {
		return
	}
	host := metrics.SanitizeHost(rawURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	limiter, ok := c.limiters[host]
	if !ok {
		return
	}
	if c.defaultRate == rate.Inf {
		delete(c.limiters, host)
		return
	}
	if limiter.Limit() < c.defaultRate {
		limiter.SetLimit(c.defaultRate)
		limiter.SetBurst(c.defaultBurst)
	}
}
