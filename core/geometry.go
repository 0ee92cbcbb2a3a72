package core

import (
	"math"

	satellite "github.com/joshuaferrara/go-satellite"
)

// WGS84 ellipsoid and Earth rotation constants.
const (
	WGS84SemiMajorKm = 6378.137
	WGS84Flattening  = 1 / 298.257223563
	WGS84SemiMinorKm = WGS84SemiMajorKm * (1 - WGS84Flattening)

	// EarthRotationRadS is the sidereal rotation rate of the Earth.
	EarthRotationRadS = 7.292115e-5
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// Vec3 is a Cartesian vector. Positions are in kilometres, velocities in
// kilometres per second.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v multiplied by k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// IsFinite reports whether every component is a finite number.
func (v Vec3) IsFinite() bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func fromSatellite(v satellite.Vector3) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

func toSatellite(v Vec3) satellite.Vector3 {
	return satellite.Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// GeodeticToECEF converts WGS84 latitude/longitude (degrees) and height
// above the ellipsoid (metres) to an ECEF position in kilometres.
func GeodeticToECEF(latDeg, lonDeg, altM float64) Vec3 {
	lat := latDeg * degToRad
	lon := lonDeg * degToRad
	e2 := WGS84Flattening * (2 - WGS84Flattening)
	sinLat := math.Sin(lat)
	n := WGS84SemiMajorKm / math.Sqrt(1-e2*sinLat*sinLat)
	h := altM / 1000

	return Vec3{
		X: (n + h) * math.Cos(lat) * math.Cos(lon),
		Y: (n + h) * math.Cos(lat) * math.Sin(lon),
		Z: (n*(1-e2) + h) * sinLat,
	}
}

// ECIToECEF rotates an inertial (TEME) vector into the Earth-fixed frame
// for the given Greenwich sidereal angle in radians.
func ECIToECEF(v Vec3, gmst float64) Vec3 {
	return fromSatellite(satellite.ECIToECEF(toSatellite(v), gmst))
}

// ECEFToECI is the inverse rotation of ECIToECEF.
func ECEFToECI(v Vec3, gmst float64) Vec3 {
	c, s := math.Cos(gmst), math.Sin(gmst)
	return Vec3{
		X: v.X*c - v.Y*s,
		Y: v.X*s + v.Y*c,
		Z: v.Z,
	}
}

// EarthFixedVelocityECI is the inertial velocity (km/s) of a point that is
// fixed to the rotating Earth at ECI position r.
func EarthFixedVelocityECI(r Vec3) Vec3 {
	return Vec3{X: -EarthRotationRadS * r.Y, Y: EarthRotationRadS * r.X}
}

// LookAngles returns the azimuth (radians clockwise from north, in
// [0, 2π)), elevation (degrees above the local horizon) and slant range
// (km) of target as seen from an observer at latDeg/lonDeg. Both
// positions are ECEF.
func LookAngles(latDeg, lonDeg float64, observer, target Vec3) (azimuthRad, elevationDeg, rangeKm float64) {
	lat := latDeg * degToRad
	lon := lonDeg * degToRad
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	sinLon, cosLon := math.Sin(lon), math.Cos(lon)

	d := target.Sub(observer)
	east := -sinLon*d.X + cosLon*d.Y
	north := -sinLat*cosLon*d.X - sinLat*sinLon*d.Y + cosLat*d.Z
	up := cosLat*cosLon*d.X + cosLat*sinLon*d.Y + sinLat*d.Z

	rangeKm = d.Norm()
	if rangeKm == 0 {
		return 0, 90, 0
	}
	elevationDeg = math.Asin(clamp(up/rangeKm, -1, 1)) * radToDeg
	azimuthRad = math.Atan2(east, north)
	if azimuthRad < 0 {
		azimuthRad += 2 * math.Pi
	}
	if azimuthRad >= 2*math.Pi {
		azimuthRad = 0
	}
	return azimuthRad, elevationDeg, rangeKm
}

// surfaceToleranceKm lets a point lying on the ellipsoid, such as a ground
// receiver at zero altitude, count as outside it.
const surfaceToleranceKm = 1e-3

// HasLineOfSight checks whether the straight segment between p1 and p2
// clears the WGS84 ellipsoid. Both points are Earth-centred with Z along
// the rotation axis, in kilometres. From a ground receiver this is the
// geometric horizon.
func HasLineOfSight(p1, p2 Vec3) bool {
	// Stretching Z by a/b turns the ellipsoid into a sphere of radius a.
	stretch := WGS84SemiMajorKm / WGS84SemiMinorKm
	q1 := Vec3{X: p1.X, Y: p1.Y, Z: p1.Z * stretch}
	q2 := Vec3{X: p2.X, Y: p2.Y, Z: p2.Z * stretch}
	limit := (WGS84SemiMajorKm - surfaceToleranceKm) * (WGS84SemiMajorKm - surfaceToleranceKm)

	v := q2.Sub(q1)
	a := v.Dot(v)
	if a == 0 {
		return q1.Dot(q1) > limit
	}

	// t minimises |q1 + t v|^2, clamped to the segment.
	t := clamp(-q1.Dot(v)/a, 0, 1)
	closest := q1.Add(v.Scale(t))
	return closest.Dot(closest) > limit
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
