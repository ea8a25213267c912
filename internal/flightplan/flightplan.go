// Package flightplan generates flight paths over a survey polygon and the
// travel paths that connect a base to a survey area. It builds entirely on
// internal/geo and produces domain.FlightPath values consumed by the
// simulator and mission executor.
package flightplan

import (
	"math"
	"time"

	"github.com/dronesurvey/missioncore/internal/domain"
	"github.com/dronesurvey/missioncore/internal/geo"
)

const (
	metersPerDegree = 111000.0
	minLineSpacingM = 10.0
	maxCrosshatchLines = 50

	spiralTurns           = 5
	spiralPointsPerTurn   = 12
	spiralHoverDurationS  = 3.0

	travelIntermediateThresholdM = 500.0
	travelIntermediateSpacingM   = 200.0
	maxIntermediateWaypoints    = 10
	takeoffClimbWaypointM       = 10.0 // synthetic takeoff waypoint AGL offset marker
)

// Params bundles the inputs to Plan, mirroring the fields spec §4.2 lists
// for generate_path (coverage polygon, altitude, overlap, pattern).
type Params struct {
	Polygon  domain.Polygon
	Pattern  domain.Pattern
	Altitude float64
	OverlapPct float64
	SpeedMS  float64
}

// Plan dispatches to the pattern-specific generator and fills in distance
// and duration, normalizing every polygon longitude defensively first.
func Plan(p Params) domain.FlightPath {
	ring := normalizedRing(p.Polygon)

	var wps []domain.Waypoint
	switch p.Pattern {
	case domain.PatternPerimeter:
		wps = generatePerimeter(ring, p.Altitude)
	case domain.PatternSpiral:
		wps = generateSpiral(ring, p.Altitude)
	case domain.PatternWaypoint:
		wps = generateWaypoint(ring, p.Altitude)
	case domain.PatternCrosshatch:
		fallthrough
	default:
		wps = generateCrosshatch(ring, p.Altitude, p.OverlapPct)
	}

	fp := domain.FlightPath{Pattern: p.Pattern, Waypoints: wps}
	fp.TotalDistanceM = TotalDistance(wps)
	fp.EstimatedDuration = EstimatedDuration(fp.TotalDistanceM, p.SpeedMS, wps)
	return fp
}

// normalizedRing converts a domain.Polygon's [lng,lat] coordinate ring into
// geo.Points with normalized longitudes, and drops a closing vertex that
// duplicates the first point.
func normalizedRing(poly domain.Polygon) []geo.Point {
	pts := make([]geo.Point, 0, len(poly.Coordinates))
	for _, c := range poly.Coordinates {
		pts = append(pts, geo.Point{Lng: geo.NormalizeLongitude(c[0]), Lat: c[1]})
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return pts
}

// generateWaypoint visits each polygon vertex in order with a photo action,
// the simplest pattern (spec §4.2's "waypoint" pattern).
func generateWaypoint(ring []geo.Point, altitude float64) []domain.Waypoint {
	wps := make([]domain.Waypoint, 0, len(ring))
	for _, p := range ring {
		wps = append(wps, domain.Waypoint{Lat: p.Lat, Lng: p.Lng, Alt: altitude, Action: domain.ActionPhoto})
	}
	return wps
}

// generatePerimeter flies the polygon boundary and returns to the first
// vertex, capturing photos along the way.
func generatePerimeter(ring []geo.Point, altitude float64) []domain.Waypoint {
	if len(ring) == 0 {
		return nil
	}
	wps := make([]domain.Waypoint, 0, len(ring)+1)
	for _, p := range ring {
		wps = append(wps, domain.Waypoint{Lat: p.Lat, Lng: p.Lng, Alt: altitude, Action: domain.ActionPhoto})
	}
	first := ring[0]
	wps = append(wps, domain.Waypoint{Lat: first.Lat, Lng: first.Lng, Alt: altitude, Action: domain.ActionPhoto})
	return wps
}

// generateSpiral produces a decreasing-radius spiral of spiralTurns turns
// around the polygon centroid, each turn with spiralPointsPerTurn points,
// finishing with a hover at the centroid.
func generateSpiral(ring []geo.Point, altitude float64) []domain.Waypoint {
	if len(ring) == 0 {
		return nil
	}
	center := geo.Centroid(ring)
	bounds := geo.PolygonBounds(ring)
	maxRadiusM := math.Max(
		geo.Distance(center, geo.Point{Lat: bounds.MaxLat, Lng: center.Lng}),
		geo.Distance(center, geo.Point{Lat: center.Lat, Lng: bounds.MaxLng}),
	)
	if maxRadiusM <= 0 {
		maxRadiusM = 50
	}

	totalPoints := spiralTurns * spiralPointsPerTurn
	wps := make([]domain.Waypoint, 0, totalPoints+1)
	for i := 0; i < totalPoints; i++ {
		frac := float64(i) / float64(totalPoints)
		radiusM := maxRadiusM * (1 - frac)
		angle := frac * float64(spiralTurns) * 2 * math.Pi

		dLat := (radiusM * math.Cos(angle)) / metersPerDegree
		dLng := (radiusM * math.Sin(angle)) / (metersPerDegree * math.Cos(center.Lat*math.Pi/180))

		wps = append(wps, domain.Waypoint{
			Lat: center.Lat + dLat,
			Lng: geo.NormalizeLongitude(center.Lng + dLng),
			Alt: altitude, Action: domain.ActionPhoto,
		})
	}
	wps = append(wps, domain.Waypoint{Lat: center.Lat, Lng: center.Lng, Alt: altitude, Action: domain.ActionHover, Duration: spiralHoverDurationS})
	return wps
}

// generateCrosshatch sweeps the polygon bounding box south to north with
// parallel scan lines spaced by the camera swath, alternating direction
// each line (boustrophedon). Each scan line runs from the westernmost to
// the easternmost polygon edge crossing at that latitude, not the full
// bounding-box width. Every line yields exactly one entry/exit pair, so
// where a concave ring crosses a line more than twice, the line also spans
// the gaps between the crossings.
func generateCrosshatch(ring []geo.Point, altitude, overlapPct float64) []domain.Waypoint {
	if len(ring) == 0 {
		return nil
	}
	bounds := geo.PolygonBounds(ring)

	swathM := altitude * 0.8
	spacingM := math.Max(minLineSpacingM, swathM*(1-overlapPct/100))
	spacingDeg := spacingM / metersPerDegree

	var wps []domain.Waypoint
	lineCount := 0
	flyEast := true
	for lat := bounds.MinLat; lat <= bounds.MaxLat && lineCount < maxCrosshatchLines; lat += spacingDeg {
		minLng, maxLng, ok := scanLineIntersection(ring, lat)
		if !ok {
			continue
		}
		start, end := minLng, maxLng
		if !flyEast {
			start, end = maxLng, minLng
		}
		wps = append(wps,
			domain.Waypoint{Lat: lat, Lng: start, Alt: altitude, Action: domain.ActionFly},
			domain.Waypoint{Lat: lat, Lng: end, Alt: altitude, Action: domain.ActionPhoto},
		)
		flyEast = !flyEast
		lineCount++
	}
	return wps
}

// scanLineIntersection computes the polygon edges that straddle lat
// (edges whose latitude span contains lat, counting the lower endpoint
// latitude but not the upper one),
// interpolates each edge's longitude at lat, and returns the min/max of
// those crossing longitudes — the entry/exit extent of one scan line
// through the ring. ok is false if no edge crosses lat.
func scanLineIntersection(ring []geo.Point, lat float64) (minLng, maxLng float64, ok bool) {
	n := len(ring)
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]
		if (a.Lat <= lat && b.Lat > lat) || (b.Lat <= lat && a.Lat > lat) {
			t := (lat - a.Lat) / (b.Lat - a.Lat)
			lng := a.Lng + t*(b.Lng-a.Lng)
			if !ok {
				minLng, maxLng, ok = lng, lng, true
				continue
			}
			minLng = math.Min(minLng, lng)
			maxLng = math.Max(maxLng, lng)
		}
	}
	return minLng, maxLng, ok
}

// PlanTravel builds the travel path connecting a base to the first survey
// waypoint: a takeoff climb, up to maxIntermediateWaypoints hops roughly
// every travelIntermediateSpacingM meters for distances over
// travelIntermediateThresholdM, then arrival at the destination. Waypoints
// in the travel path use the fly action so executors can identify the
// travel prefix via domain.FlightPath.TravelPrefixCount.
func PlanTravel(start, end geo.Point, altitude float64) []domain.Waypoint {
	wps := []domain.Waypoint{
		{Lat: start.Lat, Lng: start.Lng, Alt: takeoffClimbWaypointM, Action: domain.ActionFly},
	}

	dist := geo.Distance(start, end)
	if dist > travelIntermediateThresholdM {
		hops := int(math.Min(float64(maxIntermediateWaypoints), math.Floor(dist/travelIntermediateSpacingM)))
		for i := 1; i <= hops; i++ {
			t := float64(i) / float64(hops+1)
			p := geo.Interpolate(start, end, t)
			wps = append(wps, domain.Waypoint{Lat: p.Lat, Lng: p.Lng, Alt: altitude, Action: domain.ActionFly})
		}
	}

	wps = append(wps, domain.Waypoint{Lat: end.Lat, Lng: end.Lng, Alt: altitude, Action: domain.ActionFly})
	return wps
}

// TotalDistance sums the great-circle distance between consecutive
// waypoints.
func TotalDistance(wps []domain.Waypoint) float64 {
	var total float64
	for i := 1; i < len(wps); i++ {
		a := geo.Point{Lat: wps[i-1].Lat, Lng: wps[i-1].Lng}
		b := geo.Point{Lat: wps[i].Lat, Lng: wps[i].Lng}
		total += geo.Distance(a, b)
	}
	return total
}

// EstimatedDuration estimates flight time from total distance at the given
// cruise speed, plus any per-waypoint dwell durations (hover/photo/video).
func EstimatedDuration(totalDistanceM, speedMS float64, wps []domain.Waypoint) time.Duration {
	var seconds float64
	if speedMS > 0 {
		seconds = totalDistanceM / speedMS
	}
	for _, wp := range wps {
		seconds += wp.Duration
	}
	return time.Duration(seconds * float64(time.Second))
}
