package geomath

import (
	"errors"
	"math"
)

const earthRadiusKM = 6371

var ErrEmptyInput = errors.New("empty points input")

// Coordinates is a WGS84 latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) {
		return false
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return false
	}

	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Distance returns the haversine great circle distance between two points in kilometres.
func Distance(a Coordinates, b Coordinates) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKM * c
}

// Bearing returns the initial bearing from a to b in degrees [0, 360).
func Bearing(a Coordinates, b Coordinates) float64 {
	dLon := toRadians(b.Longitude - a.Longitude)

	x := math.Sin(dLon) * math.Cos(toRadians(b.Latitude))
	y := math.Cos(toRadians(a.Latitude))*math.Sin(toRadians(b.Latitude)) -
		math.Sin(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*math.Cos(dLon)

	bearing := math.Atan2(x, y) * 180 / math.Pi

	return math.Mod(bearing+360, 360)
}

// Midpoint returns the great circle midpoint between two points.
func Midpoint(a Coordinates, b Coordinates) Coordinates {
	dLon := toRadians(b.Longitude - a.Longitude)

	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	lon1 := toRadians(a.Longitude)

	bx := math.Cos(lat2) * math.Cos(dLon)
	by := math.Cos(lat2) * math.Sin(dLon)

	lat3 := math.Atan2(math.Sin(lat1)+math.Sin(lat2),
		math.Sqrt((math.Cos(lat1)+bx)*(math.Cos(lat1)+bx)+by*by))
	lon3 := lon1 + math.Atan2(by, math.Cos(lat1)+bx)

	return Coordinates{
		Latitude:  lat3 * 180 / math.Pi,
		Longitude: lon3 * 180 / math.Pi,
	}
}

// NearestPoint finds the index of the closest point to the target along with its
// distance in kilometres. Ties are broken by the first occurrence in the input.
func NearestPoint(target Coordinates, points []Coordinates) (int, float64, error) {
	if len(points) == 0 {
		return -1, 0, ErrEmptyInput
	}

	nearestIndex := 0
	minDistance := Distance(target, points[0])

	for i, point := range points[1:] {
		distance := Distance(target, point)
		if distance < minDistance {
			minDistance = distance
			nearestIndex = i + 1
		}
	}

	return nearestIndex, minDistance, nil
}

// ContainsCircle reports whether point lies within radiusMeters of center.
func ContainsCircle(center Coordinates, radiusMeters float64, point Coordinates) bool {
	return Distance(center, point)*1000 <= radiusMeters
}

// ContainsPolygon reports whether point lies inside the polygon using ray casting.
func ContainsPolygon(point Coordinates, polygon []Coordinates) bool {
	inside := false

	n := len(polygon)
	if n < 3 {
		return false
	}

	p1 := polygon[0]
	for i := 1; i <= n; i++ {
		p2 := polygon[i%n]

		if point.Longitude > math.Min(p1.Longitude, p2.Longitude) &&
			point.Longitude <= math.Max(p1.Longitude, p2.Longitude) &&
			point.Latitude <= math.Max(p1.Latitude, p2.Latitude) {
			if p1.Longitude != p2.Longitude {
				intersection := (point.Longitude-p1.Longitude)*(p2.Latitude-p1.Latitude)/(p2.Longitude-p1.Longitude) + p1.Latitude

				if p1.Latitude == p2.Latitude || point.Latitude <= intersection {
					inside = !inside
				}
			} else if p1.Latitude == p2.Latitude || point.Latitude <= math.Max(p1.Latitude, p2.Latitude) {
				inside = !inside
			}
		}

		p1 = p2
	}

	return inside
}

// EstimateETAMinutes returns the estimated travel time in minutes to the
// destination at the given speed. ok is false when the speed gives no estimate.
func EstimateETAMinutes(current Coordinates, destination Coordinates, speedKMH float64) (float64, bool) {
	if speedKMH <= 0 {
		return 0, false
	}

	distance := Distance(current, destination)

	return (distance / speedKMH) * 60, true
}

// RouteDistance returns the total length of a path in kilometres.
func RouteDistance(points []Coordinates) float64 {
	total := 0.0

	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}

	return total
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
