package object

import "math"

// EarthRadiusKM is the mean radius used to convert radian great-circle
// distances to kilometers.
const EarthRadiusKM = 6371.0

// GeoPoint is a latitude/longitude pair in degrees.
// Latitude is constrained to [-90, 90] and longitude to [-180, 180] by the
// callers that construct them from user input; the math here assumes valid
// coordinates.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// RadiansTo returns the great-circle distance to other in radians.
// Uses the haversine formula, which is numerically stable for the small
// distances typical of proximity queries.
func (p GeoPoint) RadiansTo(other GeoPoint) float64 {
	const d2r = math.Pi / 180.0

	lat1 := p.Latitude * d2r
	lat2 := other.Latitude * d2r
	dLat := lat2 - lat1
	dLong := (other.Longitude - p.Longitude) * d2r

	sinLat := math.Sin(dLat / 2)
	sinLong := math.Sin(dLong / 2)
	a := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLong*sinLong
	a = math.Min(1.0, a)
	return 2 * math.Asin(math.Sqrt(a))
}

// KilometersTo returns the great-circle distance to other in kilometers.
func (p GeoPoint) KilometersTo(other GeoPoint) float64 {
	return p.RadiansTo(other) * EarthRadiusKM
}
