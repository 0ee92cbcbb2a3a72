package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/scintillation-simulator/internal/logging"
	"github.com/signalsfoundry/scintillation-simulator/internal/observability"
	"github.com/signalsfoundry/scintillation-simulator/model"
)

// DefaultSearchWindow is how far either side of the reference time passes
// are searched for.
const DefaultSearchWindow = 12 * time.Hour

// Pass is a satellite pass that contains the reference time.
type Pass struct {
	Satellite string
	NoradID   int
	Rise      model.PassEvent
	Culminate model.PassEvent
	Set       model.PassEvent
}

// Duration is the time from rise to set.
func (p Pass) Duration() time.Duration { return p.Set.Time.Sub(p.Rise.Time) }

// LOSOptions tunes FindLOSSatellites. Zero values select the defaults.
type LOSOptions struct {
	MinElevationDeg float64
	SearchWindow    time.Duration
	Step            time.Duration
	Workers         int
	Logger          logging.Logger
	Metrics         *observability.Collector
}

func (o LOSOptions) withDefaults() LOSOptions {
	if o.SearchWindow <= 0 {
		o.SearchWindow = DefaultSearchWindow
	}
	if o.Step <= 0 {
		o.Step = DefaultEventStep
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = logging.Noop()
	}
	return o
}

// FindLOSSatellites returns, in input order, the satellites that are above
// the elevation mask at reference. A satellite qualifies when one of its
// rises in [reference-window, reference+window] is followed two events
// later by a set, with the reference strictly between them. The first such
// pass is reported. Satellites whose orbit cannot be propagated over the
// window are skipped.
func FindLOSSatellites(ctx context.Context, props []*Propagator, receiver model.Receiver, reference time.Time, opts LOSOptions) ([]Pass, error) {
	if opts.Logger == nil {
		opts.Logger = logging.LoggerFromContext(ctx)
	}
	opts = opts.withDefaults()
	if err := receiver.Validate(); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, "core", "core.FindLOSSatellites",
		attribute.Int("satellites", len(props)),
		attribute.String("reference", reference.UTC().Format(time.RFC3339)),
	)
	defer span.End()

	start := reference.Add(-opts.SearchWindow)
	end := reference.Add(opts.SearchWindow)
	found := make([]*Pass, len(props))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, p := range props {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			events, err := FindEvents(p, receiver, start, end, opts.MinElevationDeg, opts.Step)
			if errors.Is(err, ErrPropagation) {
				opts.Metrics.PropagationError()
				opts.Logger.Warn(gctx, "skipping satellite", logging.String("satellite", p.Name()), logging.Err(err))
				return nil
			}
			if err != nil {
				return fmt.Errorf("events for %s: %w", p.Name(), err)
			}
			for _, ev := range events {
				opts.Logger.Trace(gctx, "pass event",
					logging.String("satellite", p.Name()),
					logging.String("event", ev.Kind.String()),
					logging.Time("time", ev.Time),
					logging.Float("elevation_deg", ev.ElevationDeg),
				)
			}
			if pass, ok := passContaining(events, reference); ok {
				pass.Satellite = p.Name()
				pass.NoradID = p.NoradID()
				found[i] = &pass
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	passes := make([]Pass, 0, len(props))
	for _, pass := range found {
		if pass != nil {
			passes = append(passes, *pass)
		}
	}
	opts.Metrics.SetLOSSatellites(len(passes))
	span.SetAttributes(attribute.Int("los_satellites", len(passes)))
	opts.Logger.Debug(ctx, "line of sight search finished",
		logging.Int("satellites", len(props)),
		logging.Int("los", len(passes)),
	)
	return passes, nil
}

func passContaining(events []model.PassEvent, reference time.Time) (Pass, bool) {
	for i, ev := range events {
		if ev.Kind != model.EventRise || i+2 >= len(events) {
			continue
		}
		set := events[i+2]
		if set.Kind != model.EventSet {
			continue
		}
		if ev.Time.Before(reference) && reference.Before(set.Time) {
			return Pass{Rise: ev, Culminate: events[i+1], Set: set}, true
		}
	}
	return Pass{}, false
}
