package model

import (
	"fmt"
	"math"
)

// Receiver is a fixed ground receiver on the WGS84 ellipsoid.
type Receiver struct {
	Name         string  `json:"name,omitempty" yaml:"name,omitempty"`
	LatitudeDeg  float64 `json:"latitude_deg" yaml:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg" yaml:"longitude_deg"`
	AltitudeM    float64 `json:"altitude_m" yaml:"altitude_m"` // height above the ellipsoid
}

// Validate checks that the coordinates are finite and inside their ranges.
func (r Receiver) Validate() error {
	for _, v := range []float64{r.LatitudeDeg, r.LongitudeDeg, r.AltitudeM} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("receiver %q: coordinates must be finite", r.Name)
		}
	}
	if r.LatitudeDeg < -90 || r.LatitudeDeg > 90 {
		return fmt.Errorf("receiver %q: latitude %.6f out of range [-90, 90]", r.Name, r.LatitudeDeg)
	}
	if r.LongitudeDeg < -180 || r.LongitudeDeg > 180 {
		return fmt.Errorf("receiver %q: longitude %.6f out of range [-180, 180]", r.Name, r.LongitudeDeg)
	}
	return nil
}

func (r Receiver) String() string {
	name := r.Name
	if name == "" {
		name = "receiver"
	}
	return fmt.Sprintf("%s (%.6f°, %.6f°, %.1f m)", name, r.LatitudeDeg, r.LongitudeDeg, r.AltitudeM)
}
