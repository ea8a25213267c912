// Package geo implements the pure geospatial primitives the flight
// planner and simulator build on: great-circle distance, bearing,
// longitude normalization and antimeridian-safe interpolation.
package geo

import "math"

// earthRadiusMeters is the mean Earth radius used by every haversine
// calculation in this package.
const earthRadiusMeters = 6371000.0

// Point is a geographic position. Lng is expected to be normalized to
// [-180, 180] by the caller; functions in this package that produce new
// points normalize their own output.
type Point struct {
	Lat float64
	Lng float64
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Bearing returns the initial bearing from a to b in degrees, normalized
// to [0, 360).
func Bearing(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	x := math.Sin(dLng) * math.Cos(lat2)
	y := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	theta := math.Atan2(x, y)
	deg := theta * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// NormalizeLongitude maps lng into [-180, 180].
func NormalizeLongitude(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

// ShortestLngDiff returns the signed shortest angular difference from a
// to b, in [-180, 180], handling the antimeridian.
func ShortestLngDiff(a, b float64) float64 {
	diff := b - a
	for diff > 180 {
		diff -= 360
	}
	for diff < -180 {
		diff += 360
	}
	return diff
}

// Interpolate linearly interpolates between a and b at fraction t (0..1),
// taking the shortest arc across longitude so a path crossing the
// antimeridian does not wrap the long way around the globe.
func Interpolate(a, b Point, t float64) Point {
	lngDiff := ShortestLngDiff(a.Lng, b.Lng)
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: NormalizeLongitude(a.Lng + lngDiff*t),
	}
}

// Centroid returns the arithmetic mean of a set of points. Used for
// polygon centroids; callers pass the outer ring. A closing vertex that
// repeats the first point is counted a second time, which pulls the mean
// toward that point.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(points))
	return Point{Lat: sumLat / n, Lng: sumLng / n}
}

// Bounds is an axis-aligned bounding box in lat/lng degrees.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// PolygonBounds computes the bounding box of a set of points.
func PolygonBounds(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{MinLat: points[0].Lat, MaxLat: points[0].Lat, MinLng: points[0].Lng, MaxLng: points[0].Lng}
	for _, p := range points[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
	}
	return b
}
