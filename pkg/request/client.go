package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"poiatlas/pkg/cache"
	"poiatlas/pkg/config"
	"poiatlas/pkg/logging"
	"poiatlas/pkg/tracker"
	"poiatlas/pkg/version"
)

var (
	defaultUserAgent = fmt.Sprintf("poiatlas/%s (POI enrichment service)", version.Version)
)

// ClientConfig holds the tunables of the request client.
type ClientConfig struct {
	Retries         int
	Timeout         time.Duration
	MinInterval     time.Duration
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
	CacheTTL        time.Duration // default TTL of cached responses
}

// ConfigFrom maps the YAML request section onto a ClientConfig.
func ConfigFrom(rc config.RequestConfig, cacheTTL time.Duration) ClientConfig {
	return ClientConfig{
		Retries:         rc.Retries,
		Timeout:         rc.Timeout.Std(),
		MinInterval:     rc.MinInterval.Std(),
		BaseDelay:       rc.Backoff.BaseDelay.Std(),
		MaxDelay:        rc.Backoff.MaxDelay.Std(),
		BreakerFailures: rc.Breaker.Failures,
		BreakerCooldown: rc.Breaker.Cooldown.Std(),
		CacheTTL:        cacheTTL,
	}
}

func (c *ClientConfig) applyDefaults() {
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = time.Minute
	}
}

// Client handles HTTP requests with queuing, caching, and tracking.
type Client struct {
	httpClient *http.Client
	cache      cache.Cacher
	tracker    *tracker.Tracker
	backoff    *ProviderBackoff
	cfg        ClientConfig

	// Lanes per provider (domain)
	lanes map[string]*lane
	mu    sync.Mutex // Protects lanes map
}

// lane serializes the calls to one provider.
type lane struct {
	queue   chan job
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// job represents a queued request.
type job struct {
	ctx      context.Context
	method   string
	url      string
	body     []byte
	headers  map[string]string
	cacheKey string
	ttl      time.Duration
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client.
func New(c cache.Cacher, t *tracker.Tracker, cfg ClientConfig) *Client {
	cfg.applyDefaults()
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      c,
		tracker:    t,
		backoff:    NewProviderBackoff(cfg.BaseDelay, cfg.MaxDelay),
		cfg:        cfg,
		lanes:      make(map[string]*lane),
	}
}

// Get performs a GET request with queuing and caching if key is provided.
func (c *Client) Get(ctx context.Context, u, cacheKey string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, nil, cacheKey)
}

// GetWithHeaders performs a GET request with custom headers and optional caching.
func (c *Client) GetWithHeaders(ctx context.Context, u string, headers map[string]string, cacheKey string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, u, nil, headers, cacheKey, c.cfg.CacheTTL)
}

// GetWithTTL performs a cached GET whose entry lives for ttl instead of the default.
func (c *Client) GetWithTTL(ctx context.Context, u string, headers map[string]string, cacheKey string, ttl time.Duration) ([]byte, error) {
	return c.do(ctx, http.MethodGet, u, nil, headers, cacheKey, ttl)
}

// Post performs a POST request with queuing.
func (c *Client) Post(ctx context.Context, u string, body []byte, contentType string) ([]byte, error) {
	return c.PostWithHeaders(ctx, u, body, map[string]string{"Content-Type": contentType})
}

// PostWithHeaders performs a POST request with custom headers and queuing.
func (c *Client) PostWithHeaders(ctx context.Context, u string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, u, body, headers, "", 0)
}

// PostWithCache performs a POST request with queuing and caching.
func (c *Client) PostWithCache(ctx context.Context, u string, body []byte, headers map[string]string, cacheKey string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, u, body, headers, cacheKey, c.cfg.CacheTTL)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, headers map[string]string, cacheKey string, ttl time.Duration) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := normalizeProvider(parsedURL.Host)

	// 1. Check Cache (Only if key is provided)
	if cacheKey != "" && c.cache != nil {
		if val, hit := c.cache.GetCache(ctx, cacheKey); hit {
			c.tracker.TrackCacheHit(provider)
			slog.Debug("Cache Hit", "provider", provider, "key", cacheKey)
			return val, nil
		}
		c.tracker.TrackCacheMiss(provider)
		slog.Debug("Cache Miss", "provider", provider, "key", cacheKey)
	}

	// 2. Enqueue Request
	respChan := make(chan jobResult, 1)
	j := job{
		ctx:      ctx,
		method:   method,
		url:      u,
		body:     body,
		headers:  headers,
		cacheKey: cacheKey,
		ttl:      ttl,
		respChan: respChan,
	}
	c.dispatch(provider, j)

	// 3. Wait for Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

func normalizeProvider(host string) string {
	host = strings.ToLower(host)
	switch {
	case strings.HasSuffix(host, ".wikidata.org") || host == "wikidata.org":
		return "wikidata"
	case strings.HasSuffix(host, ".wikipedia.org") || host == "wikipedia.org":
		return "wikipedia"
	case strings.HasSuffix(host, ".wikimedia.org"):
		return "wikimedia"
	case strings.Contains(host, "overpass"):
		return "overpass"
	case strings.HasSuffix(host, "opentripmap.com"):
		return "opentripmap"
	case strings.HasSuffix(host, "googleapis.com"):
		return "google"
	case strings.HasSuffix(host, "monumentos.gov.pt"):
		return "sipa"
	}
	return host
}

// dispatch sends the job to the provider's queue, creating the lane/worker if needed.
func (c *Client) dispatch(provider string, j job) {
	c.mu.Lock()
	l, ok := c.lanes[provider]
	if !ok {
		l = c.newLane(provider)
		c.lanes[provider] = l
		go c.worker(provider, l)
	}
	c.mu.Unlock()

	// We block here if the queue is full, effectively throttling the caller
	select {
	case l.queue <- j:
	case <-j.ctx.Done():
		// Caller gave up before we could even enqueue
		j.respChan <- jobResult{err: j.ctx.Err()}
	}
}

func (c *Client) newLane(provider string) *lane {
	limit := rate.Inf
	if c.cfg.MinInterval > 0 {
		limit = rate.Every(c.cfg.MinInterval)
	}
	failures := uint32(c.cfg.BreakerFailures)
	return &lane{
		queue:   make(chan job, 100),
		limiter: rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        provider,
			MaxRequests: 1,
			Timeout:     c.cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || isClientError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("Provider circuit state changed", "provider", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, l *lane) {
	for j := range l.queue {
		// Check context before processing
		if j.ctx.Err() != nil {
			slog.Debug("Job dropped from queue (context expired)", "provider", provider, "error", j.ctx.Err())
			j.respChan <- jobResult{err: j.ctx.Err()}
			continue
		}

		if err := l.limiter.Wait(j.ctx); err != nil {
			j.respChan <- jobResult{err: err}
			continue
		}

		res, err := l.breaker.Execute(func() (interface{}, error) {
			return c.executeWithBackoff(provider, j)
		})
		var body []byte
		if b, ok := res.([]byte); ok {
			body = b
		}

		switch {
		case err == nil:
			c.tracker.TrackAPISuccess(provider)
			// Cache result (Only if key is provided)
			if j.cacheKey != "" && c.cache != nil {
				if err := c.cache.SetCache(context.Background(), j.cacheKey, body, j.ttl); err != nil {
					slog.Error("Failed to cache response", "url", j.url, "error", err)
				}
			}
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			c.tracker.TrackBreakerReject(provider)
			err = fmt.Errorf("%s: %w", provider, ErrCircuitOpen)
		default:
			c.tracker.TrackAPIFailure(provider)
		}

		j.respChan <- jobResult{body: body, err: err}
	}
}

// executeWithBackoff attempts the request with exponential backoff on retryable errors.
func (c *Client) executeWithBackoff(provider string, j job) ([]byte, error) {
	for attempt := 0; attempt < c.cfg.Retries; attempt++ {
		if err := c.backoff.Wait(j.ctx, provider); err != nil {
			return nil, err
		}

		req, err := c.newRequest(j)
		if err != nil {
			return nil, err
		}

		slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		start := time.Now()
		resp, err := c.httpClient.Do(req)

		if err != nil {
			// Check if the error is a context cancellation from OUR side
			if j.ctx.Err() != nil {
				return nil, j.ctx.Err()
			}
			// Otherwise, it's a network error or server timeout
			logging.RequestLogger.Warn("request failed", "method", j.method, "url", j.url, "attempt", attempt+1, "error", err)
			slog.Warn("Request failed, retrying", "provider", provider, "attempt", attempt+1, "error", err)
			c.backoff.RecordFailure(provider, 0)
			continue
		}

		logging.RequestLogger.Info("request", "method", j.method, "url", j.url, "status", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(), "attempt", attempt+1)

		// Handle Status Codes
		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode < 600) {
			resp.Body.Close()
			pause := c.backoff.RecordFailure(provider, RetryAfter(resp.Header, time.Now()))
			slog.Warn("Provider backing off", "provider", provider, "status", resp.StatusCode, "attempt", attempt+1, "pause", pause)
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: j.url}
		}

		// Success
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		c.backoff.RecordSuccess(provider)
		return body, nil
	}

	return nil, ErrRetriesExceeded
}

func (c *Client) newRequest(j job) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if j.body != nil {
		body = bytes.NewReader(j.body)
	}
	req, err := http.NewRequestWithContext(j.ctx, j.method, j.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Apply User-Agent (Default if not provided)
	uaMatch := false
	for k, v := range j.headers {
		req.Header.Set(k, v)
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			uaMatch = true
		}
	}
	if !uaMatch {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	return req, nil
}

// UserAgent returns the User-Agent sent on provider calls.
func UserAgent() string {
	return defaultUserAgent
}
