// Package celestrak downloads current GP element sets from CelesTrak.
package celestrak

import (
	"context"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/scintillation-simulator/internal/logging"
	"github.com/signalsfoundry/scintillation-simulator/internal/observability"
	"github.com/signalsfoundry/scintillation-simulator/internal/upstream"
	"github.com/signalsfoundry/scintillation-simulator/model"
)

// DefaultBaseURL is the public CelesTrak endpoint.
const DefaultBaseURL = "https://celestrak.org"

const gpPath = "/NORAD/elements/gp.php"

// Client fetches GP groups in 3LE format.
type Client struct {
	http *upstream.Client
	log  logging.Logger
}

// New builds a CelesTrak client. An empty cfg.BaseURL targets DefaultBaseURL.
func New(cfg upstream.Config, log logging.Logger, metrics *observability.Collector) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Client{
		http: upstream.NewClient("celestrak", cfg, log, metrics),
		log:  log,
	}
}

// Upstream exposes the HTTP client so tests can intercept it.
func (c *Client) Upstream() *upstream.Client { return c.http }

// GroupPath builds the gp.php query for a satellite system.
func GroupPath(system model.SatelliteSystem) string {
	q := url.Values{}
	q.Set("GROUP", system.CelestrakGroup())
	q.Set("FORMAT", "3le")
	return gpPath + "?" + q.Encode()
}

// FetchGroup returns the raw 3LE text of every satellite in the system's group.
func (c *Client) FetchGroup(ctx context.Context, system model.SatelliteSystem) (string, error) {
	ctx, span := observability.StartSpan(ctx, "celestrak", "celestrak.FetchGroup",
		attribute.String("group", system.CelestrakGroup()))
	defer span.End()

	body, err := c.http.Get(ctx, GroupPath(system))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("fetch %s group: %w", system, err)
	}
	c.log.Debug(ctx, "fetched celestrak group",
		logging.String("group", system.CelestrakGroup()),
		logging.Int("bytes", len(body)),
	)
	return body, nil
}
