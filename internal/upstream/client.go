// Package upstream builds the HTTP clients used to talk to element set
// providers and turns their status codes into errors.
package upstream

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	resty "github.com/go-resty/resty/v2"

	"github.com/signalsfoundry/scintillation-simulator/internal/logging"
	"github.com/signalsfoundry/scintillation-simulator/internal/observability"
)

const (
	DefaultTimeout      = 45 * time.Second
	DefaultRetryCount   = 3
	DefaultRetryWait    = 500 * time.Millisecond
	DefaultRetryMaxWait = 5 * time.Second
	DefaultUserAgent    = "scintsim/0.1"

	dialTimeout     = 30 * time.Second
	keepAlive       = 30 * time.Second
	idleConnTimeout = 90 * time.Second
	maxIdleConns    = 16
)

// Config tunes a provider client. Zero values fall back to the defaults.
type Config struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	RetryCount   int // negative disables retries
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

// Client wraps a resty client bound to one provider.
type Client struct {
	source string
	http   *resty.Client
	log    logging.Logger
}

// NewClient constructs a client for source (used as the metrics label).
func NewClient(source string, cfg Config, log logging.Logger, metrics *observability.Collector) *Client {
	if log == nil {
		log = logging.Noop()
	}
	log = log.With(logging.String("source", source))

	c := resty.New()
	c.SetBaseURL(cfg.BaseURL)
	c.SetTransport(createTransport())
	c.SetHeader("User-Agent", orDefault(cfg.UserAgent, DefaultUserAgent))
	c.SetTimeout(durationOr(cfg.Timeout, DefaultTimeout))

	retries := cfg.RetryCount
	if retries == 0 {
		retries = DefaultRetryCount
	}
	if retries < 0 {
		retries = 0
	}
	c.SetRetryCount(retries)
	c.SetRetryWaitTime(durationOr(cfg.RetryWait, DefaultRetryWait))
	c.SetRetryMaxWaitTime(durationOr(cfg.RetryMaxWait, DefaultRetryMaxWait))
	c.AddRetryCondition(func(response *resty.Response, err error) bool {
		if response == nil {
			return err != nil
		}
		switch response.StatusCode() {
		case
			http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	})

	c.AddRetryHook(func(response *resty.Response, err error) {
		if response == nil || response.Request == nil {
			return
		}
		log.Warn(response.Request.Context(), "retrying provider request",
			logging.String("method", response.Request.Method),
			logging.String("url", response.Request.URL),
			logging.Int("status", response.StatusCode()),
			logging.Int("attempt", response.Request.Attempt),
		)
	})
	c.OnAfterResponse(func(_ *resty.Client, response *resty.Response) error {
		metrics.ObserveUpstream(source, response.StatusCode(), response.Time())
		log.Debug(response.Request.Context(), "provider response",
			logging.String("method", response.Request.Method),
			logging.String("url", response.Request.URL),
			logging.Int("status", response.StatusCode()),
			logging.Duration("elapsed", response.Time()),
		)
		return nil
	})
	c.OnError(func(request *resty.Request, err error) {
		var elapsed time.Duration
		if !request.Time.IsZero() {
			elapsed = time.Since(request.Time)
		}
		metrics.ObserveUpstream(source, 0, elapsed)
		log.Warn(request.Context(), "provider request failed",
			logging.String("method", request.Method),
			logging.String("url", request.URL),
			logging.Err(err),
		)
	})

	return &Client{source: source, http: c, log: log}
}

// R starts a request bound to ctx.
func (c *Client) R(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// HTTPClient exposes the underlying *http.Client, mainly so tests can swap
// its transport.
func (c *Client) HTTPClient() *http.Client {
	return c.http.GetClient()
}

// Source is the provider name this client was built for.
func (c *Client) Source() string { return c.source }

func createTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: keepAlive,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleConns,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   maxIdleConns,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// Get performs a GET against path and returns the body of a 200 response.
func (c *Client) Get(ctx context.Context, path string) (string, error) {
	resp, err := c.R(ctx).Get(path)
	if err != nil {
		return "", fmt.Errorf("%s: GET %s: %w", c.source, path, err)
	}
	if err := CheckResponse(resp); err != nil {
		return "", fmt.Errorf("%s: %w", c.source, err)
	}
	return resp.String(), nil
}
