package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/scintillation-simulator/internal/logging"
	"github.com/signalsfoundry/scintillation-simulator/internal/observability"
	"github.com/signalsfoundry/scintillation-simulator/model"
)

// ObservationUpdater receives the latest look at each tracked satellite.
// kb.Catalog satisfies it.
type ObservationUpdater interface {
	UpdateObservation(id int, obs model.Observation, inView bool) error
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithObservationUpdater sends every observation to u.
func WithObservationUpdater(u ObservationUpdater) TrackerOption {
	return func(t *Tracker) { t.updater = u }
}

// WithTrackerLogger sets the logger used for per-tick records.
func WithTrackerLogger(l logging.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

// WithTrackerMetrics records propagation failures on m.
func WithTrackerMetrics(m *observability.Collector) TrackerOption {
	return func(t *Tracker) { t.metrics = m }
}

// Tracker observes a set of satellites from one receiver on demand, usually
// once per simulation tick.
type Tracker struct {
	mu       sync.Mutex
	receiver model.Receiver
	rcvECEF  Vec3
	minElev  float64
	props    map[int]*Propagator

	updater ObservationUpdater
	log     logging.Logger
	metrics *observability.Collector
}

// NewTracker returns a tracker for receiver with the given elevation mask.
func NewTracker(receiver model.Receiver, minElevationDeg float64, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		receiver: receiver,
		rcvECEF:  GeodeticToECEF(receiver.LatitudeDeg, receiver.LongitudeDeg, receiver.AltitudeM),
		minElev:  minElevationDeg,
		props:    make(map[int]*Propagator),
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Add starts tracking p. Adding the same NORAD ID twice is an error.
func (t *Tracker) Add(p *Propagator) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.props[p.NoradID()]; exists {
		return fmt.Errorf("satellite %s already tracked", p.Name())
	}
	t.props[p.NoradID()] = p
	return nil
}

// Remove stops tracking a satellite.
func (t *Tracker) Remove(id int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.props[id]; !exists {
		return fmt.Errorf("satellite %05d not tracked", id)
	}
	delete(t.props, id)
	return nil
}

// Len reports how many satellites are tracked.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.props)
}

// Update observes every tracked satellite at simTime, in NORAD ID order,
// and forwards the results. A satellite is in view when it is above the
// elevation mask and the Earth does not block the receiver's line of sight
// to it. Satellites that fail to propagate are counted, logged and left
// out. It returns how many satellites are in view.
func (t *Tracker) Update(ctx context.Context, simTime time.Time) (int, error) {
	t.mu.Lock()
	props := make([]*Propagator, 0, len(t.props))
	for _, p := range t.props {
		props = append(props, p)
	}
	t.mu.Unlock()
	sort.Slice(props, func(i, j int) bool { return props[i].NoradID() < props[j].NoradID() })

	inView := 0
	for _, p := range props {
		st, err := p.State(simTime)
		if errors.Is(err, ErrPropagation) {
			t.metrics.PropagationError()
			t.log.Warn(ctx, "propagation failed", logging.String("satellite", p.Name()), logging.Err(err))
			continue
		}
		if err != nil {
			return inView, err
		}
		obs := observe(st, t.receiver)
		visible := obs.ElevationDeg > t.minElev && HasLineOfSight(t.rcvECEF, ECIToECEF(st.Position, st.GMST))
		if visible {
			inView++
		}
		t.log.Debug(ctx, "observation",
			logging.String("satellite", p.Name()),
			logging.Time("time", obs.Time),
			logging.Float("elevation_deg", obs.ElevationDeg),
			logging.Float("azimuth_rad", obs.AzimuthRad),
			logging.Float("range_km", obs.RangeKm),
		)
		if t.updater != nil {
			if err := t.updater.UpdateObservation(p.NoradID(), obs, visible); err != nil {
				return inView, fmt.Errorf("update %s: %w", p.Name(), err)
			}
		}
	}
	return inView, nil
}
