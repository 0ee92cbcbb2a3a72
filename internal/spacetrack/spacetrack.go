// Package spacetrack queries historical element sets from space-track.org.
package spacetrack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/scintillation-simulator/internal/logging"
	"github.com/signalsfoundry/scintillation-simulator/internal/observability"
	"github.com/signalsfoundry/scintillation-simulator/internal/upstream"
)

// DefaultBaseURL is the public Space-Track endpoint.
const DefaultBaseURL = "https://www.space-track.org"

const (
	loginPath = "/ajaxauth/login"
	dayLayout = "2006-01-02"
)

var (
	// ErrLoginFailed is returned when Space-Track rejects the credentials.
	ErrLoginFailed = errors.New("space-track login failed")
	// ErrNoCredentials is returned when no identity or password is configured.
	ErrNoCredentials = errors.New("space-track credentials are not configured")
	// ErrNoIDs is returned when a query is attempted without catalog numbers.
	ErrNoIDs = errors.New("no NORAD catalog IDs to query")
)

// Credentials authenticate against Space-Track.
type Credentials struct {
	Identity string
	Password string
}

// Client logs in once per query and reuses the session cookie.
type Client struct {
	http  *upstream.Client
	creds Credentials
	log   logging.Logger
}

// New builds a Space-Track client. An empty cfg.BaseURL targets DefaultBaseURL.
func New(cfg upstream.Config, creds Credentials, log logging.Logger, metrics *observability.Collector) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Client{
		http:  upstream.NewClient("spacetrack", cfg, log, metrics),
		creds: creds,
		log:   log,
	}
}

// Upstream exposes the HTTP client so tests can intercept it.
func (c *Client) Upstream() *upstream.Client { return c.http }

// Login opens an authenticated session.
func (c *Client) Login(ctx context.Context) error {
	if c.creds.Identity == "" || c.creds.Password == "" {
		return ErrNoCredentials
	}
	resp, err := c.http.R(ctx).
		SetFormData(map[string]string{
			"identity": c.creds.Identity,
			"password": c.creds.Password,
		}).
		Post(loginPath)
	if err != nil {
		return fmt.Errorf("spacetrack: login: %w", err)
	}
	if err := upstream.CheckResponse(resp); err != nil {
		return fmt.Errorf("spacetrack: login: %w", err)
	}
	// Rejected credentials still answer 200, with a JSON body saying so.
	if strings.Contains(strings.ReplaceAll(resp.String(), " ", ""), `"Login":"Failed"`) {
		return ErrLoginFailed
	}
	return nil
}

// EpochRange returns the query window for the calendar day of reference:
// the day itself and the following day, both as YYYY-MM-DD.
func EpochRange(reference time.Time) (string, string) {
	ref := reference.UTC()
	start := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	return start.Format(dayLayout), start.AddDate(0, 0, 1).Format(dayLayout)
}

// GPHistoryPath builds the gp_history query for ids over the reference day.
func GPHistoryPath(ids []string, reference time.Time) string {
	start, end := EpochRange(reference)
	return fmt.Sprintf(
		"/basicspacedata/query/class/gp_history/NORAD_CAT_ID/%s/orderby/TLE_LINE1%%20ASC/EPOCH/%s--%s/format/3le/emptyresult/show",
		strings.Join(ids, ","), start, end,
	)
}

// GPHistory returns raw 3LE text for ids. The session must be logged in.
func (c *Client) GPHistory(ctx context.Context, ids []string, reference time.Time) (string, error) {
	if len(ids) == 0 {
		return "", ErrNoIDs
	}
	return c.http.Get(ctx, GPHistoryPath(ids, reference))
}

// FetchTLEs logs in and downloads every element set published for ids on
// the reference day.
func (c *Client) FetchTLEs(ctx context.Context, ids []string, reference time.Time) (string, error) {
	ctx, span := observability.StartSpan(ctx, "spacetrack", "spacetrack.FetchTLEs",
		attribute.Int("ids", len(ids)),
		attribute.String("reference", reference.UTC().Format(time.RFC3339)),
	)
	defer span.End()

	if len(ids) == 0 {
		return "", ErrNoIDs
	}
	if err := c.Login(ctx); err != nil {
		span.RecordError(err)
		return "", err
	}
	body, err := c.GPHistory(ctx, ids, reference)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("gp_history query: %w", err)
	}
	c.log.Debug(ctx, "fetched space-track history",
		logging.Int("ids", len(ids)),
		logging.Int("bytes", len(body)),
	)
	return body, nil
}
