package domain

import "math"

// CoordinatesPresent reports whether both coordinate columns were present in
// the wire record.
func CoordinatesPresent(lat, lon *float64) bool {
	return lat != nil && lon != nil
}

// ValidCoordinates reports whether a coordinate pair is finite and inside the
// WGS-84 range. The range check rejects rows the source system would let
// through silently (it only tested for presence).
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
