package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlightPathTravelPrefixCount(t *testing.T) {
	fp := FlightPath{Waypoints: []Waypoint{
		{Action: ActionFly}, {Action: ActionFly}, {Action: ActionPhoto}, {Action: ActionFly},
	}}
	assert.Equal(t, 2, fp.TravelPrefixCount())
}

func TestFlightPathTravelPrefixCountAllFly(t *testing.T) {
	fp := FlightPath{Waypoints: []Waypoint{{Action: ActionFly}, {Action: ActionFly}}}
	assert.Equal(t, 2, fp.TravelPrefixCount())
}

func TestFlightPathReturnSuffixStart(t *testing.T) {
	fp := FlightPath{Waypoints: []Waypoint{
		{Action: ActionFly}, {Action: ActionPhoto}, {Action: ActionFly}, {Action: ActionFly},
	}}
	assert.Equal(t, 2, fp.ReturnSuffixStart())
}

func TestFlightPathReturnSuffixStartNoNonFly(t *testing.T) {
	fp := FlightPath{Waypoints: []Waypoint{{Action: ActionFly}, {Action: ActionFly}}}
	assert.Equal(t, 2, fp.ReturnSuffixStart())
}

func TestBaseIsWithinRange(t *testing.T) {
	b := Base{Location: Location{Lat: 0, Lng: 0}, OperationalRadiusKm: 15}
	assert.True(t, b.IsWithinRange(0.01, 0)) // ~1.1km away
	assert.False(t, b.IsWithinRange(1, 0))   // ~111km away
}
