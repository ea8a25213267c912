package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronesurvey/missioncore/internal/domain"
)

func straightPath() domain.FlightPath {
	return domain.FlightPath{
		Waypoints: []domain.Waypoint{
			{Lat: 0, Lng: 0, Alt: 50, Action: domain.ActionFly},     // travel
			{Lat: 0.001, Lng: 0, Alt: 50, Action: domain.ActionPhoto}, // survey
			{Lat: 0.002, Lng: 0, Alt: 50, Action: domain.ActionPhoto}, // survey
			{Lat: 0.002, Lng: 0, Alt: 50, Action: domain.ActionFly},   // return
		},
	}
}

func TestAdvanceSnapsToWaypointWhenOvershooting(t *testing.T) {
	s := New(straightPath(), Config{SpeedMS: 1000, BatteryDrainPerMin: 2, InitialBattery: 100})
	r := s.Advance(10) // huge step, snaps straight to waypoint 0
	assert.Equal(t, 1, r.WaypointIndex)
	assert.False(t, r.Complete)
}

func TestAdvanceInterpolatesPartialStep(t *testing.T) {
	s := New(straightPath(), Config{SpeedMS: 1, BatteryDrainPerMin: 2, InitialBattery: 100})
	s.Advance(1)      // the drone starts on waypoint 0; this step only snaps onto it
	r := s.Advance(1) // 1 m step vs ~111 m to waypoint 1
	assert.Equal(t, 1, r.WaypointIndex)
	assert.False(t, r.Complete)
}

func TestAdvanceDrainsBattery(t *testing.T) {
	s := New(straightPath(), Config{SpeedMS: 1000, BatteryDrainPerMin: 120, InitialBattery: 100})
	r := s.Advance(1)
	assert.InDelta(t, 98, r.Battery, 1e-6) // 120%/min * 1/60 = 2%
}

func TestAdvanceBatteryNeverNegative(t *testing.T) {
	s := New(straightPath(), Config{SpeedMS: 1000, BatteryDrainPerMin: 12000, InitialBattery: 1})
	r := s.Advance(1)
	assert.Equal(t, 0.0, r.Battery)
}

func TestPhaseDerivationAcrossMission(t *testing.T) {
	s := New(straightPath(), Config{SpeedMS: 1000, BatteryDrainPerMin: 0, InitialBattery: 100})

	r := s.Advance(10) // consumes travel waypoint (index 0 -> 1)
	assert.Equal(t, domain.PhaseSurveying, r.Phase)

	r = s.Advance(10) // consumes survey waypoint 1 -> 2
	assert.Equal(t, domain.PhaseSurveying, r.Phase)

	r = s.Advance(10) // consumes survey waypoint 2 -> 3 (return prefix begins)
	assert.Equal(t, domain.PhaseReturning, r.Phase)

	r = s.Advance(10) // consumes final return waypoint -> complete
	assert.True(t, r.Complete)
	assert.Equal(t, domain.PhaseCompleted, r.Phase)
}

func TestProgressOnlyCountsSurveySegment(t *testing.T) {
	s := New(straightPath(), Config{SpeedMS: 1000, BatteryDrainPerMin: 0, InitialBattery: 100})
	r := s.Advance(10) // travel waypoint consumed, no survey progress yet
	assert.Equal(t, 0.0, r.Progress)

	r = s.Advance(10) // first survey leg consumed
	assert.Greater(t, r.Progress, 0.0)
}

func TestResumeReconstructsProgress(t *testing.T) {
	fp := straightPath()
	s := Resume(fp, Config{SpeedMS: 5, BatteryDrainPerMin: 2, InitialBattery: 60}, 2, 50)
	require.Equal(t, 2, s.CurrentIndex())
	assert.Greater(t, s.SurveyDistanceTraveled(), 0.0)
}

func TestRebindBatteryPreservesIndex(t *testing.T) {
	s := New(straightPath(), Config{SpeedMS: 1000, BatteryDrainPerMin: 2, InitialBattery: 15})
	s.Advance(10)
	idx := s.CurrentIndex()

	s.RebindBattery(100)
	assert.Equal(t, 100.0, s.Battery())
	assert.Equal(t, idx, s.CurrentIndex())
}

func TestAdvancePastEndReturnsComplete(t *testing.T) {
	fp := domain.FlightPath{Waypoints: []domain.Waypoint{{Lat: 0, Lng: 0, Action: domain.ActionFly}}}
	s := New(fp, Config{SpeedMS: 1000, BatteryDrainPerMin: 2, InitialBattery: 100})
	s.Advance(10)
	r := s.Advance(10)
	assert.True(t, r.Complete)
}
