package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the simulator's Prometheus metrics. A nil *Collector is
// valid and records nothing, so callers never need to guard their calls.
type Collector struct {
	gatherer prometheus.Gatherer

	UpstreamRequests  *prometheus.CounterVec
	UpstreamDurations *prometheus.HistogramVec
	CacheOperations   *prometheus.CounterVec
	PropagationErrors prometheus.Counter
	LOSSatellites     prometheus.Gauge
	ScenarioSamples   prometheus.Counter
}

// NewCollector registers the metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scintsim_upstream_requests_total",
		Help: "HTTP requests sent to element set providers, labeled by source and status code.",
	}, []string{"source", "code"}), "scintsim_upstream_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scintsim_upstream_request_duration_seconds",
		Help:    "Latency of element set provider requests in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"}), "scintsim_upstream_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	cacheOps, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scintsim_cache_operations_total",
		Help: "Response cache reads and writes, labeled by response kind, operation and result.",
	}, []string{"kind", "op", "result"}), "scintsim_cache_operations_total")
	if err != nil {
		return nil, err
	}

	propErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scintsim_propagation_errors_total",
		Help: "SGP4 propagations that produced an invalid state.",
	}), "scintsim_propagation_errors_total")
	if err != nil {
		return nil, err
	}

	los, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scintsim_los_satellites",
		Help: "Satellites currently in line of sight of the receiver.",
	}), "scintsim_los_satellites")
	if err != nil {
		return nil, err
	}

	samples, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scintsim_scenario_samples_total",
		Help: "Trajectory samples generated for receiver-satellite scenarios.",
	}), "scintsim_scenario_samples_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		UpstreamRequests:  requests,
		UpstreamDurations: durations,
		CacheOperations:   cacheOps,
		PropagationErrors: propErrors,
		LOSSatellites:     los,
		ScenarioSamples:   samples,
	}, nil
}

// ObserveUpstream records one provider request. code is 0 when no response
// was received.
func (c *Collector) ObserveUpstream(source string, code int, d time.Duration) {
	if c == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	c.UpstreamRequests.WithLabelValues(source, label).Inc()
	c.UpstreamDurations.WithLabelValues(source).Observe(d.Seconds())
}

// CacheOperation records a cache read or write and its outcome.
func (c *Collector) CacheOperation(kind, op, result string) {
	if c == nil {
		return
	}
	c.CacheOperations.WithLabelValues(kind, op, result).Inc()
}

// PropagationError counts one failed SGP4 propagation.
func (c *Collector) PropagationError() {
	if c == nil {
		return
	}
	c.PropagationErrors.Inc()
}

// SetLOSSatellites publishes the current number of visible satellites.
func (c *Collector) SetLOSSatellites(n int) {
	if c == nil {
		return
	}
	c.LOSSatellites.Set(float64(n))
}

// AddScenarioSamples counts generated trajectory samples.
func (c *Collector) AddScenarioSamples(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.ScenarioSamples.Add(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
