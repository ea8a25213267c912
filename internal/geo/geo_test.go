package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	p := Point{Lat: 19.07, Lng: 72.87}
	require.InDelta(t, 0, Distance(p, p), 1e-6)
}

func TestDistanceKnownPair(t *testing.T) {
	// Roughly 1 degree of latitude is ~111km.
	a := Point{Lat: 0, Lng: 0}
	b := Point{Lat: 1, Lng: 0}
	d := Distance(a, b)
	assert.InDelta(t, 111000, d, 2000)
}

func TestBearingNormalized(t *testing.T) {
	a := Point{Lat: 0, Lng: 0}
	b := Point{Lat: 1, Lng: 0}
	brg := Bearing(a, b)
	assert.GreaterOrEqual(t, brg, 0.0)
	assert.Less(t, brg, 360.0)
	assert.InDelta(t, 0, brg, 1) // due north
}

func TestNormalizeLongitude(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		180:  180,
		-180: -180,
		190:  -170,
		-190: 170,
		370:  10,
	}
	for in, want := range cases {
		assert.InDelta(t, want, NormalizeLongitude(in), 1e-9)
	}
}

func TestShortestLngDiffAntimeridian(t *testing.T) {
	got := ShortestLngDiff(170, -170)
	assert.InDelta(t, 20, got, 1e-9)
}

func TestInterpolateAntimeridianMidpoint(t *testing.T) {
	a := Point{Lat: 0, Lng: 170}
	b := Point{Lat: 0, Lng: -170}
	mid := Interpolate(a, b, 0.5)
	assert.True(t, mid.Lng == 180 || mid.Lng == -180, "expected antimeridian midpoint, got %v", mid.Lng)
}

func TestInterpolateBounds(t *testing.T) {
	a := Point{Lat: 10, Lng: 10}
	b := Point{Lat: 20, Lng: 20}
	start := Interpolate(a, b, 0)
	end := Interpolate(a, b, 1)
	assert.InDelta(t, a.Lat, start.Lat, 1e-9)
	assert.InDelta(t, a.Lng, start.Lng, 1e-9)
	assert.InDelta(t, b.Lat, end.Lat, 1e-9)
	assert.InDelta(t, b.Lng, end.Lng, 1e-9)
}

func TestCentroidEmpty(t *testing.T) {
	assert.Equal(t, Point{}, Centroid(nil))
}

func TestPolygonBounds(t *testing.T) {
	pts := []Point{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 2}, {Lat: -1, Lng: -2}}
	b := PolygonBounds(pts)
	assert.Equal(t, Bounds{MinLat: -1, MaxLat: 1, MinLng: -2, MaxLng: 2}, b)
}
