package core

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinates, lat, lon)
	}
	return nil
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b LatLon) float64 {
	lat1, lon1 := radians(a.Lat), radians(a.Lon)
	lat2, lon2 := radians(b.Lat), radians(b.Lon)
	dlat := lat2 - lat1
	dlon := lon2 - lon1
	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	return 2 * math.Asin(math.Sqrt(h)) * EarthRadiusKm
}

// Confidence maps a distance to a 0-100 score: 100 at the centroid, losing
// one point per 2 km.
func Confidence(distanceKm float64) float64 {
	return math.Max(0, math.Min(100, 100-distanceKm/2))
}

// NearestDistrict picks the candidate whose centroid is closest to (lat, lon).
// Candidates without a centroid are skipped. ErrNotFound is returned when no
// candidate has one.
func NearestDistrict(lat, lon float64, candidates []DistrictWithState) (Detection, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return Detection{}, err
	}
	p := LatLon{Lat: lat, Lon: lon}

	best := -1
	bestKm := math.Inf(1)
	for i, c := range candidates {
		if c.District.Centroid == nil {
			continue
		}
		if km := Haversine(p, *c.District.Centroid); km < bestKm {
			best, bestKm = i, km
		}
	}
	if best < 0 {
		return Detection{}, fmt.Errorf("%w: no districts with coordinates", ErrNotFound)
	}

	return Detection{
		District:   candidates[best].District,
		State:      candidates[best].State,
		DistanceKm: round2(bestKm),
		Confidence: round2(Confidence(bestKm)),
	}, nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
