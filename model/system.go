package model

import (
	"fmt"
	"strings"
)

// SatelliteSystem selects which family of satellites is downloaded and searched.
type SatelliteSystem string

const (
	SystemGNSS    SatelliteSystem = "gnss"    // every navigation constellation
	SystemGPS     SatelliteSystem = "gps"     // operational GPS only
	SystemCubeSat SatelliteSystem = "cubesat" // CubeSats
)

// SatelliteSystems lists the supported systems in display order.
var SatelliteSystems = []SatelliteSystem{SystemGNSS, SystemGPS, SystemCubeSat}

// ParseSatelliteSystem converts a user supplied name into a SatelliteSystem.
func ParseSatelliteSystem(s string) (SatelliteSystem, error) {
	switch SatelliteSystem(strings.ToLower(strings.TrimSpace(s))) {
	case SystemGNSS:
		return SystemGNSS, nil
	case SystemGPS:
		return SystemGPS, nil
	case SystemCubeSat:
		return SystemCubeSat, nil
	default:
		return "", fmt.Errorf("unknown satellite system %q (want one of gnss, gps, cubesat)", s)
	}
}

// CelestrakGroup returns the CelesTrak GP group name for the system.
func (s SatelliteSystem) CelestrakGroup() string {
	switch s {
	case SystemGPS:
		return "gps-ops"
	case SystemCubeSat:
		return "cubesat"
	default:
		return "gnss"
	}
}

func (s SatelliteSystem) String() string { return string(s) }
