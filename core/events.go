package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/signalsfoundry/scintillation-simulator/model"
)

// DefaultEventStep is the coarse sampling interval used to bracket
// horizon crossings before they are refined.
const DefaultEventStep = 60 * time.Second

// eventResolution is the precision of refined event times. SGP4 is
// evaluated on whole seconds so finer steps gain nothing.
const eventResolution = time.Second

type elevationFunc func(time.Time) (float64, error)

func elevationOf(p *Propagator, receiver model.Receiver) elevationFunc {
	return func(t time.Time) (float64, error) {
		obs, err := p.Observe(t, receiver)
		if err != nil {
			return 0, err
		}
		return obs.ElevationDeg, nil
	}
}

// FindEvents returns the rise, culmination and set events of p above
// minElevationDeg between start and end, in time order. Each arc above the
// mask yields at most one culmination, at its highest point; arcs cut by
// the window edges have no rise or set on the cut side, and no culmination
// when the peak lies on the edge.
func FindEvents(p *Propagator, receiver model.Receiver, start, end time.Time, minElevationDeg float64, step time.Duration) ([]model.PassEvent, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("find events for %s: end %s is not after start %s", p.Name(), end, start)
	}
	if step <= 0 {
		step = DefaultEventStep
	}
	elev := elevationOf(p, receiver)

	var times []time.Time
	for t := start; t.Before(end); t = t.Add(step) {
		times = append(times, t)
	}
	times = append(times, end)

	elevations := make([]float64, len(times))
	for i, t := range times {
		e, err := elev(t)
		if err != nil {
			return nil, err
		}
		elevations[i] = e
	}
	above := func(i int) bool { return elevations[i] > minElevationDeg }

	var events []model.PassEvent
	arcStart := -1
	if above(0) {
		arcStart = 0
	}
	for i := 1; i < len(times); i++ {
		switch {
		case !above(i-1) && above(i):
			t, e, err := refineCrossing(elev, minElevationDeg, times[i-1], times[i], true)
			if err != nil {
				return nil, err
			}
			events = append(events, model.PassEvent{Time: t, Kind: model.EventRise, ElevationDeg: e})
			arcStart = i
		case above(i-1) && !above(i):
			culm, ok, err := culmination(elev, times, elevations, arcStart, i-1)
			if err != nil {
				return nil, err
			}
			if ok {
				events = append(events, culm)
			}
			t, e, err := refineCrossing(elev, minElevationDeg, times[i-1], times[i], false)
			if err != nil {
				return nil, err
			}
			events = append(events, model.PassEvent{Time: t, Kind: model.EventSet, ElevationDeg: e})
			arcStart = -1
		}
	}
	if arcStart >= 0 {
		culm, ok, err := culmination(elev, times, elevations, arcStart, len(times)-1)
		if err != nil {
			return nil, err
		}
		if ok {
			events = append(events, culm)
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })
	return events, nil
}

// refineCrossing bisects [lo, hi] for the first instant on the far side of
// the mask. rising selects the direction of the crossing.
func refineCrossing(elev elevationFunc, mask float64, lo, hi time.Time, rising bool) (time.Time, float64, error) {
	hiElev, err := elev(hi)
	if err != nil {
		return time.Time{}, 0, err
	}
	for hi.Sub(lo) > eventResolution {
		mid := lo.Add(hi.Sub(lo) / 2)
		e, err := elev(mid)
		if err != nil {
			return time.Time{}, 0, err
		}
		if (e > mask) == rising {
			hi, hiElev = mid, e
		} else {
			lo = mid
		}
	}
	return hi, hiElev, nil
}

// culmination locates the highest point of the arc spanning sample indices
// first..last. ok is false when the peak sits on a window edge.
func culmination(elev elevationFunc, times []time.Time, elevations []float64, first, last int) (model.PassEvent, bool, error) {
	peak := first
	for i := first + 1; i <= last; i++ {
		if elevations[i] > elevations[peak] {
			peak = i
		}
	}
	if peak == 0 || peak == len(times)-1 {
		return model.PassEvent{}, false, nil
	}

	lo, hi := times[peak-1], times[peak+1]
	for hi.Sub(lo) > 2*eventResolution {
		third := hi.Sub(lo) / 3
		m1, m2 := lo.Add(third), hi.Add(-third)
		e1, err := elev(m1)
		if err != nil {
			return model.PassEvent{}, false, err
		}
		e2, err := elev(m2)
		if err != nil {
			return model.PassEvent{}, false, err
		}
		if e1 < e2 {
			lo = m1
		} else {
			hi = m2
		}
	}
	t := lo.Add(hi.Sub(lo) / 2)
	e, err := elev(t)
	if err != nil {
		return model.PassEvent{}, false, err
	}
	return model.PassEvent{Time: t, Kind: model.EventCulminate, ElevationDeg: e}, true, nil
}
