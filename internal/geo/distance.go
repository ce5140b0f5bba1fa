// Package geo provides coordinates, cache keys and great-circle distances.
package geo

import "math"

// EarthRadiusKM is the mean Earth radius used by the haversine formula.
const EarthRadiusKM = 6371.0

// DistanceKM returns the haversine great-circle distance in kilometers
// between two WGS84 points given in degrees. NaN inputs yield NaN.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	// Rounding can push a slightly above 1 for near-antipodal points.
	if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKM * c
}

// DistanceKM returns the distance from c to o in kilometers.
func (c Coordinate) DistanceKM(o Coordinate) float64 {
	return DistanceKM(c.Lat, c.Lon, o.Lat, o.Lon)
}
