package core

import (
	"errors"
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/scintillation-simulator/model"
	"github.com/signalsfoundry/scintillation-simulator/tle"
)

// ErrPropagation is returned when SGP4 yields no usable state, typically
// for a decayed orbit or an epoch far from the requested time.
var ErrPropagation = errors.New("sgp4 propagation failed")

const kmToM = 1000.0

const (
	// earthMuKm3S2 is the WGS72 gravitational parameter used by SGP4.
	earthMuKm3S2 = 398600.8

	// radiusMarginFraction widens the perigee/apogee band by this share of
	// the mean semi-major axis to absorb short-period perturbations.
	radiusMarginFraction = 0.1

	decayScanStep    = time.Hour
	decayScanHorizon = 120 * 24 * time.Hour
)

// State is the inertial state of a satellite at one instant.
type State struct {
	Time     time.Time
	Position Vec3 // TEME, km
	Velocity Vec3 // TEME, km/s
	GMST     float64
}

// Propagator runs SGP4 for a single element set.
type Propagator struct {
	elements tle.ElementSet
	sat      satellite.Satellite

	minRadiusKm float64
	maxRadiusKm float64
	// decayedAt is the first scanned instant after the epoch at which the
	// orbit fell below the surface; zero when no decay was found.
	decayedAt time.Time
}

// NewPropagator initialises SGP4 with WGS72 constants from an element set
// that has already passed tle validation.
func NewPropagator(set tle.ElementSet) (p *Propagator, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("init sgp4 for %s: %v", set.Label(), r)
		}
	}()
	sat := satellite.TLEToSat(set.Line1, set.Line2, satellite.GravityWGS72)
	p = &Propagator{elements: set, sat: sat}
	p.minRadiusKm, p.maxRadiusKm = radiusBand(set)
	p.decayedAt = p.scanDecay()
	return p, nil
}

// radiusBand bounds the geocentric distance the mean elements allow:
// perigee and apogee of the mean orbit, widened by a margin, never below
// the surface.
func radiusBand(set tle.ElementSet) (float64, float64) {
	n := set.MeanMotionRevDay * 2 * math.Pi / 86400
	a := math.Cbrt(earthMuKm3S2 / (n * n))
	margin := radiusMarginFraction * a
	lo := math.Max(a*(1-set.Eccentricity)-margin, WGS84SemiMinorKm)
	hi := a*(1+set.Eccentricity) + margin
	return lo, hi
}

// scanDecay steps forward from the epoch and returns the first instant at
// which the orbit is below the surface. SGP4 keeps producing positions for
// a decayed orbit once the drag term overshoots, so every later instant is
// rejected by State.
func (p *Propagator) scanDecay() time.Time {
	epoch := p.elements.Epoch.UTC().Round(time.Second)
	for dt := decayScanStep; dt <= decayScanHorizon; dt += decayScanStep {
		st := p.propagate(epoch.Add(dt))
		if !st.Position.IsFinite() || st.Position.Norm() < WGS84SemiMinorKm {
			return st.Time
		}
	}
	return time.Time{}
}

// NewPropagators builds one propagator per element set, preserving order.
func NewPropagators(sets []tle.ElementSet) ([]*Propagator, error) {
	props := make([]*Propagator, 0, len(sets))
	for _, set := range sets {
		p, err := NewPropagator(set)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, nil
}

// DecayedAt reports when the orbit was found to decay. States at or after
// that instant are rejected.
func (p *Propagator) DecayedAt() (time.Time, bool) {
	return p.decayedAt, !p.decayedAt.IsZero()
}

// Elements returns the element set the propagator was built from.
func (p *Propagator) Elements() tle.ElementSet { return p.elements }

// Name is the satellite name, or its catalog number when unnamed.
func (p *Propagator) Name() string { return p.elements.Label() }

// NoradID is the satellite catalog number.
func (p *Propagator) NoradID() int { return p.elements.NoradID }

// State propagates to t. go-satellite takes whole seconds, so t is rounded
// to the nearest second. States after decay, non-finite states and states
// outside the radius band of the element set fail with ErrPropagation.
func (p *Propagator) State(t time.Time) (State, error) {
	st := p.propagate(t)
	if !p.decayedAt.IsZero() && !st.Time.Before(p.decayedAt) {
		return State{}, fmt.Errorf("%s at %s: decayed by %s: %w", p.Name(),
			st.Time.Format(time.RFC3339), p.decayedAt.Format(time.RFC3339), ErrPropagation)
	}
	if !st.Position.IsFinite() || !st.Velocity.IsFinite() {
		return State{}, fmt.Errorf("%s at %s: non-finite state: %w", p.Name(), st.Time.Format(time.RFC3339), ErrPropagation)
	}
	if r := st.Position.Norm(); r < p.minRadiusKm || r > p.maxRadiusKm {
		return State{}, fmt.Errorf("%s at %s: radius %.0f km outside [%.0f, %.0f]: %w", p.Name(),
			st.Time.Format(time.RFC3339), r, p.minRadiusKm, p.maxRadiusKm, ErrPropagation)
	}
	return st, nil
}

func (p *Propagator) propagate(t time.Time) State {
	t = t.UTC().Round(time.Second)
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	pos, vel := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	return State{
		Time:     t,
		Position: fromSatellite(pos),
		Velocity: fromSatellite(vel),
		GMST:     satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, min, sec)),
	}
}

// Observe returns the look from receiver to the satellite at t. The range
// rate is the projection of the relative inertial velocity on the line of
// sight, positive when the satellite recedes.
func (p *Propagator) Observe(t time.Time, receiver model.Receiver) (model.Observation, error) {
	st, err := p.State(t)
	if err != nil {
		return model.Observation{}, err
	}
	return observe(st, receiver), nil
}

func observe(st State, receiver model.Receiver) model.Observation {
	rcvECEF := GeodeticToECEF(receiver.LatitudeDeg, receiver.LongitudeDeg, receiver.AltitudeM)
	rcvECI := ECEFToECI(rcvECEF, st.GMST)

	relPos := st.Position.Sub(rcvECI)
	relVel := st.Velocity.Sub(EarthFixedVelocityECI(rcvECI))

	satECEF := ECIToECEF(st.Position, st.GMST)
	az, el, rng := LookAngles(receiver.LatitudeDeg, receiver.LongitudeDeg, rcvECEF, satECEF)

	var rangeRate float64
	if rng > 0 {
		rangeRate = relPos.Dot(relVel) / relPos.Norm()
	}
	return model.Observation{
		Time:         st.Time,
		AzimuthRad:   az,
		ElevationDeg: el,
		RangeKm:      rng,
		RangeRateMps: rangeRate * kmToM,
	}
}
