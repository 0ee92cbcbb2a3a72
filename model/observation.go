package model

import "time"

// Observation is the look of one satellite from a receiver at a single instant.
type Observation struct {
	Time         time.Time `json:"time"`
	AzimuthRad   float64   `json:"azimuth_rad"` // clockwise from north, [0, 2π)
	ElevationDeg float64   `json:"elevation_deg"`
	RangeKm      float64   `json:"range_km"`
	RangeRateMps float64   `json:"range_rate_m_s"` // positive when the satellite recedes
}

// EventKind classifies a pass event relative to the elevation mask.
type EventKind int

const (
	EventRise EventKind = iota
	EventCulminate
	EventSet
)

func (k EventKind) String() string {
	switch k {
	case EventRise:
		return "rise"
	case EventCulminate:
		return "culminate"
	case EventSet:
		return "set"
	default:
		return "unknown"
	}
}

// PassEvent is a single rise, culmination or set of a satellite.
type PassEvent struct {
	Time         time.Time `json:"time"`
	Kind         EventKind `json:"kind"`
	ElevationDeg float64   `json:"elevation_deg"`
}
