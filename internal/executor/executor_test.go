package executor

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronesurvey/missioncore/internal/bus"
	"github.com/dronesurvey/missioncore/internal/charging"
	"github.com/dronesurvey/missioncore/internal/config"
	"github.com/dronesurvey/missioncore/internal/domain"
	"github.com/dronesurvey/missioncore/internal/fleet"
	"github.com/dronesurvey/missioncore/internal/handoff"
	"github.com/dronesurvey/missioncore/internal/store/memory"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[executor-test] ", log.LstdFlags)
}

func testSimConfig() config.SimConfig {
	return config.SimConfig{
		TickInterval:              2 * time.Millisecond,
		BatteryDrainRatePerMinute: 0, // negligible drain keeps the test deterministic
		CriticalBatteryPct:        20.0,
		MinBatteryForMissionPct:   30.0,
		RendezvousRadiusM:         10.0,
		ChargeRatePerSecond:       50.0,
		ChargingMaxTicks:          10,
		ReplacementFlightTimeout:  time.Second,
		ReturnFlightMinDuration:   4 * time.Millisecond,
		ReturnFlightMaxDuration:   20 * time.Millisecond,
		ReturnFlightCruiseMS:      10.0,
		TelemetryWriteRetries:     2,
		TelemetryRetryBackoff:     time.Millisecond,
	}
}

func newTestExecutor(repo *memory.Store) *Executor {
	cfg := testSimConfig()
	b := bus.New()
	selector := fleet.New(repo)
	chargingWorker := charging.New(repo, testLogger(), charging.Config{TickInterval: cfg.TickInterval, RatePerSecond: cfg.ChargeRatePerSecond, MaxTicks: cfg.ChargingMaxTicks})
	hc := handoff.New(repo, b, chargingWorker, testLogger(), cfg)
	return New(repo, b, selector, hc, chargingWorker, testLogger(), cfg)
}

// squareCoverageArea is deliberately tiny (~11 m sides) so a simulated
// flight over it completes in a handful of 2 ms ticks rather than real
// seconds — the real-time-light integration style the rest of this
// package's tests use, without a fake clock.
func squareCoverageArea() domain.Polygon {
	return domain.Polygon{Coordinates: [][2]float64{
		{0.0000, 0.0000}, {0.0001, 0.0000}, {0.0001, 0.0001}, {0.0000, 0.0001}, {0.0000, 0.0000},
	}}
}

func TestStartRejectsFewerThanThreeVertices(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	e := newTestExecutor(repo)

	base, err := repo.CreateBase(ctx, domain.Base{Status: domain.BaseActive})
	require.NoError(t, err)
	_, err = repo.CreateDrone(ctx, domain.Drone{Status: domain.DroneAvailable, BaseID: base.BaseID, BatteryLevel: 100})
	require.NoError(t, err)

	mission, err := repo.CreateMission(ctx, domain.Mission{
		Status: domain.MissionDraft, Altitude: 30, Speed: 5,
		CoverageArea: domain.Polygon{Coordinates: [][2]float64{{0, 0}, {1, 1}}},
	})
	require.NoError(t, err)

	err = e.Start(context.Background(), mission.MissionID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrValidation))
}

func TestStartRejectsWrongStatus(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	e := newTestExecutor(repo)

	mission, err := repo.CreateMission(ctx, domain.Mission{Status: domain.MissionCompleted, CoverageArea: squareCoverageArea()})
	require.NoError(t, err)

	err = e.Start(context.Background(), mission.MissionID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrIllegalState))
}

func TestStartAutoAssignsDronePlansPathAndRunsToCompletion(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	e := newTestExecutor(repo)

	base, err := repo.CreateBase(ctx, domain.Base{Status: domain.BaseActive, Location: domain.Location{Lat: 0, Lng: 0}})
	require.NoError(t, err)
	drone, err := repo.CreateDrone(ctx, domain.Drone{Status: domain.DroneAvailable, BaseID: base.BaseID, BatteryLevel: 100, Location: domain.Location{Lat: 0, Lng: 0}})
	require.NoError(t, err)

	mission, err := repo.CreateMission(ctx, domain.Mission{
		Status: domain.MissionDraft, Altitude: 30, Speed: 1000, Overlap: 10,
		Pattern: domain.PatternWaypoint, CoverageArea: squareCoverageArea(),
	})
	require.NoError(t, err)

	require.NoError(t, e.Start(context.Background(), mission.MissionID))

	started, err := repo.GetMission(ctx, mission.MissionID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionInProgress, started.Status)
	assert.NotNil(t, started.FlightPath)
	assert.Equal(t, drone.DroneID, started.AssignedDroneID)

	require.Eventually(t, func() bool {
		m, err := repo.GetMission(ctx, mission.MissionID)
		return err == nil && m.Status == domain.MissionCompleted
	}, 2*time.Second, 5*time.Millisecond, "mission never completed")

	completed, err := repo.GetMission(ctx, mission.MissionID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, completed.Progress)
	assert.NotNil(t, completed.CompletedAt)

	pts, err := repo.QueryTelemetry(ctx, mission.MissionID, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, pts)
}

func TestStartFailsWithNoAvailableDrone(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	e := newTestExecutor(repo)

	mission, err := repo.CreateMission(ctx, domain.Mission{
		Status: domain.MissionDraft, Altitude: 30, Speed: 5, CoverageArea: squareCoverageArea(),
	})
	require.NoError(t, err)

	err = e.Start(context.Background(), mission.MissionID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrNoDroneAvailable))
}

func TestPausedMissionDoesNotAdvance(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	e := newTestExecutor(repo)

	base, err := repo.CreateBase(ctx, domain.Base{Status: domain.BaseActive})
	require.NoError(t, err)
	_, err = repo.CreateDrone(ctx, domain.Drone{Status: domain.DroneAvailable, BaseID: base.BaseID, BatteryLevel: 100})
	require.NoError(t, err)

	mission, err := repo.CreateMission(ctx, domain.Mission{
		Status: domain.MissionDraft, Altitude: 30, Speed: 5, Pattern: domain.PatternWaypoint, CoverageArea: squareCoverageArea(),
	})
	require.NoError(t, err)

	require.NoError(t, e.Start(context.Background(), mission.MissionID))

	m, err := repo.GetMission(ctx, mission.MissionID)
	require.NoError(t, err)
	m.Status = domain.MissionPaused
	require.NoError(t, repo.UpdateMission(ctx, m))

	time.Sleep(20 * time.Millisecond)

	after, err := repo.GetMission(ctx, mission.MissionID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionPaused, after.Status)
	assert.Equal(t, m.CurrentWaypointIndex, after.CurrentWaypointIndex)
}

func TestResumeRejectsMissionWithoutFlightPath(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	e := newTestExecutor(repo)

	mission, err := repo.CreateMission(ctx, domain.Mission{Status: domain.MissionInProgress})
	require.NoError(t, err)

	err = e.Resume(context.Background(), mission.MissionID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrValidation))
}
