package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wildfire-lab/firetour/internal/resilience"
)

// EarthdataHost is the NASA login host that LP DAAC redirects downloads to.
const EarthdataHost = "urs.earthdata.nasa.gov"

// Credentials are HTTP basic auth credentials.
type Credentials struct {
	User     string
	Password string
}

// IsZero reports whether no credentials are set.
func (c Credentials) IsZero() bool {
	return c.User == "" && c.Password == ""
}

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	BackoffBase  time.Duration
	RateLimiters map[string]*rate.Limiter

	// Auth is sent only to hosts listed in AuthHosts, including after a
	// redirect to one of them. Other hosts never see it.
	Auth      Credentials
	AuthHosts []string
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 1.2
	if newRate > a.maxRate {
		newRate = a.maxRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// StatusError reports a non-200 final response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// HTTPFetcher implements Fetcher using net/http with retry and rate limiting.
type HTTPFetcher struct {
	client           *http.Client
	opts             HTTPOptions
	authHosts        map[string]bool
	limiters         map[string]*rate.Limiter
	adaptiveLimiters map[string]*AdaptiveLimiter
	defaultMu        sync.Mutex
	defaults         map[string]*rate.Limiter
}

// DefaultRateLimiters returns the default per-host rate limiters.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"e4ftl01.cr.usgs.gov":            rate.NewLimiter(10, 10),
		"ladsweb.modaps.eosdis.nasa.gov": rate.NewLimiter(5, 5),
		EarthdataHost:                    rate.NewLimiter(5, 5),
	}
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "firetour/1.0"
	}
	limiters := make(map[string]*rate.Limiter)
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	authHosts := make(map[string]bool)
	for _, h := range opts.AuthHosts {
		authHosts[h] = true
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	// cookiejar.New only fails on a bad PublicSuffixList.
	jar, _ := cookiejar.New(nil)

	f := &HTTPFetcher{
		opts:             opts,
		authHosts:        authHosts,
		limiters:         limiters,
		adaptiveLimiters: DefaultAdaptiveLimiters(),
		defaults:         make(map[string]*rate.Limiter),
	}
	f.client = &http.Client{
		Timeout:       opts.Timeout,
		Transport:     transport,
		Jar:           jar,
		CheckRedirect: f.checkRedirect,
	}
	return f
}

// DefaultAdaptiveLimiters returns adaptive rate limiters for known hosts.
func DefaultAdaptiveLimiters() map[string]*AdaptiveLimiter {
	return map[string]*AdaptiveLimiter{
		"e4ftl01.cr.usgs.gov": NewAdaptiveLimiter(10, 10),
	}
}

// checkRedirect re-attaches credentials when the redirect target is an auth
// host. net/http drops the Authorization header on cross-host redirects,
// which breaks the Earthdata login round trip.
func (f *HTTPFetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return eris.New("stopped after 10 redirects")
	}
	if f.shouldAuth(req.URL.Host) {
		req.SetBasicAuth(f.opts.Auth.User, f.opts.Auth.Password)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	return nil
}

func (f *HTTPFetcher) shouldAuth(host string) bool {
	if f.opts.Auth.IsZero() {
		return false
	}
	return f.authHosts[host]
}

// adaptiveLimiterFor returns the adaptive limiter for the given host, if any.
func (f *HTTPFetcher) adaptiveLimiterFor(rawURL string) *AdaptiveLimiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return f.adaptiveLimiters[u.Host]
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rate.NewLimiter(20, 20)
	}
	if lim, ok := f.limiters[u.Host]; ok {
		return lim
	}
	f.defaultMu.Lock()
	defer f.defaultMu.Unlock()
	lim, ok := f.defaults[u.Host]
	if !ok {
		lim = rate.NewLimiter(20, 20)
		f.defaults[u.Host] = lim
	}
	return lim
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	target := req.URL.String()
	adaptive := f.adaptiveLimiterFor(target)
	retry := resilience.RetryConfig{
		MaxAttempts:    f.opts.MaxRetries,
		InitialBackoff: f.opts.BackoffBase,
		MaxBackoff:     30 * f.opts.BackoffBase,
		JitterFraction: 0.1,
		OnRetry:        resilience.RetryLogger(req.URL.Host, "http "+req.Method),
	}

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*http.Response, error) {
		if err := f.wait(ctx, adaptive, target); err != nil {
			return nil, err
		}
		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, resilience.NewTransientError(eris.Wrapf(err, "get %s", target), 0)
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests && adaptive != nil {
				adaptive.OnRateLimit()
			}
			return nil, resilience.NewTransientError(eris.Errorf("http %d from %s", resp.StatusCode, target), resp.StatusCode)
		}
		if adaptive != nil {
			adaptive.OnSuccess()
		}
		return resp, nil
	})
	switch {
	case err == nil:
		return resp, nil
	case ctx.Err() != nil:
		return nil, eris.Wrap(ctx.Err(), "request cancelled")
	case resilience.IsTransient(err):
		return nil, eris.Wrap(err, "all retries exhausted")
	default:
		return nil, err
	}
}

// wait blocks on the host's adaptive limiter when it has one, the fixed
// limiter otherwise.
func (f *HTTPFetcher) wait(ctx context.Context, adaptive *AdaptiveLimiter, target string) error {
	if adaptive != nil {
		return eris.Wrap(adaptive.Wait(ctx), "rate limiter wait")
	}
	return eris.Wrap(f.limiterFor(target).Wait(ctx), "rate limiter wait")
}

func (f *HTTPFetcher) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if f.shouldAuth(req.URL.Host) {
		req.SetBasicAuth(f.opts.Auth.User, f.opts.Auth.Password)
	}
	return req, nil
}

// Fetch fetches the URL and returns the response body and its Content-Type.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	req, err := f.newRequest(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, "", eris.Wrap(err, "download")
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, "", eris.Wrap(&StatusError{URL: rawURL, StatusCode: resp.StatusCode}, "download")
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	body, _, err := f.Fetch(ctx, rawURL)
	return body, err
}

// DownloadToFile fetches the URL and writes it to the given path, creating
// parent directories as needed.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	return writeFile(path, body)
}

func writeFile(path string, r io.Reader) (int64, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, &LocalError{Path: path, Err: eris.Wrap(err, "create parent dir")}
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, &LocalError{Path: path, Err: eris.Wrap(err, "create file")}
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, r)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}

	return n, nil
}
