package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/scintillation-simulator/internal/observability"
	"github.com/signalsfoundry/scintillation-simulator/model"
)

// DefaultSampleTime is the nominal spacing of scenario samples.
const DefaultSampleTime = 100 * time.Second

// ErrNoSamples is returned when a pass has no duration to sample.
var ErrNoSamples = errors.New("set time is not after rise time")

// Scenario is the receiver/satellite geometry over one pass, the input of
// the phase-screen stage.
type Scenario struct {
	Satellite string              `json:"satellite"`
	NoradID   int                 `json:"norad_id"`
	Receiver  model.Receiver      `json:"receiver"`
	Rise      time.Time           `json:"rise"`
	Set       time.Time           `json:"set"`
	Samples   []model.Observation `json:"samples"`
}

// SampleTimes returns n = int((set-rise)/sampleTime) instants spread
// evenly over [rise, set], both ends included. Fewer than two samples
// degrade to the two endpoints.
func SampleTimes(rise, set time.Time, sampleTime time.Duration) ([]time.Time, error) {
	if !set.After(rise) {
		return nil, ErrNoSamples
	}
	if sampleTime <= 0 {
		sampleTime = DefaultSampleTime
	}
	span := set.Sub(rise)
	n := int(span / sampleTime)
	if n < 2 {
		n = 2
	}
	times := make([]time.Time, n)
	for i := range times {
		times[i] = rise.Add(time.Duration(float64(span) * float64(i) / float64(n-1)))
	}
	times[n-1] = set
	return times, nil
}

// SatelliteOrbits samples the look from receiver to p between rise and set.
func SatelliteOrbits(p *Propagator, receiver model.Receiver, rise, set time.Time, sampleTime time.Duration) (Scenario, error) {
	times, err := SampleTimes(rise, set, sampleTime)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", p.Name(), err)
	}
	samples := make([]model.Observation, 0, len(times))
	for _, t := range times {
		obs, err := p.Observe(t, receiver)
		if err != nil {
			return Scenario{}, err
		}
		samples = append(samples, obs)
	}
	return Scenario{
		Satellite: p.Name(),
		NoradID:   p.NoradID(),
		Receiver:  receiver,
		Rise:      rise,
		Set:       set,
		Samples:   samples,
	}, nil
}

// BuildScenarios samples every pass in order using the matching propagator.
func BuildScenarios(ctx context.Context, passes []Pass, props []*Propagator, receiver model.Receiver, sampleTime time.Duration) ([]Scenario, error) {
	ctx, span := observability.StartSpan(ctx, "core", "core.BuildScenarios",
		attribute.Int("passes", len(passes)))
	defer span.End()

	byID := make(map[int]*Propagator, len(props))
	for _, p := range props {
		byID[p.NoradID()] = p
	}

	scenarios := make([]Scenario, 0, len(passes))
	for _, pass := range passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, ok := byID[pass.NoradID]
		if !ok {
			return nil, fmt.Errorf("no propagator for satellite %05d", pass.NoradID)
		}
		sc, err := SatelliteOrbits(p, receiver, pass.Rise.Time, pass.Set.Time, sampleTime)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}
