package missionsvc

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
	"github.com/dronesurvey/missioncore/internal/executor"
	"github.com/dronesurvey/missioncore/internal/fleet"
	"github.com/dronesurvey/missioncore/internal/handoff"
	"github.com/dronesurvey/missioncore/internal/store/memory"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[missionsvc-test] ", log.LstdFlags)
}

func newTestService(repo *memory.Store) *Service {
	cfg := config.SimConfig{
		TickInterval: 2 * time.Millisecond, MinBatteryForMissionPct: 30, RendezvousRadiusM: 10,
		ChargeRatePerSecond: 50, ChargingMaxTicks: 10, ReplacementFlightTimeout: time.Second,
		ReturnFlightMinDuration: 4 * time.Millisecond, ReturnFlightMaxDuration: 20 * time.Millisecond,
		ReturnFlightCruiseMS: 10, TelemetryWriteRetries: 2, TelemetryRetryBackoff: time.Millisecond,
	}
	b := bus.New()
	selector := fleet.New(repo)
	chargingWorker := charging.New(repo, testLogger(), charging.Config{TickInterval: cfg.TickInterval, RatePerSecond: cfg.ChargeRatePerSecond, MaxTicks: cfg.ChargingMaxTicks})
	hc := handoff.New(repo, b, chargingWorker, testLogger(), cfg)
	ex := executor.New(repo, b, selector, hc, chargingWorker, testLogger(), cfg)
	supervisor := executor.NewSupervisor(ex, repo, testLogger())
	return New(repo, supervisor, testLogger())
}

func validCoverageArea() domain.Polygon {
	return domain.Polygon{Coordinates: [][2]float64{{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0.001}, {0, 0}}}
}

func TestCreateMissionValidatesCoverageArea(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo)

	_, err := svc.CreateMission(context.Background(), CreateInput{
		Name: "too-small", CoverageArea: domain.Polygon{Coordinates: [][2]float64{{0, 0}, {1, 1}}},
		Altitude: 30, Speed: 5,
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrValidation))
}

func TestCreateMissionDefaultsPatternAndPersists(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo)

	m, err := svc.CreateMission(context.Background(), CreateInput{
		Name: "survey-1", CoverageArea: validCoverageArea(), Altitude: 30, Speed: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PatternCrosshatch, m.Pattern)
	assert.Equal(t, domain.MissionDraft, m.Status)
	assert.NotEmpty(t, m.MissionID)
}

func TestUpdateMissionRejectedWhileInProgress(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo)
	ctx := context.Background()

	mission, err := repo.CreateMission(ctx, domain.Mission{Status: domain.MissionInProgress, CoverageArea: validCoverageArea()})
	require.NoError(t, err)

	newName := "renamed"
	_, err = svc.UpdateMission(ctx, mission.MissionID, UpdateInput{Name: &newName})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrIllegalState))
}

func TestUpdateMissionAppliesOnlyProvidedFields(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo)
	ctx := context.Background()

	mission, err := repo.CreateMission(ctx, domain.Mission{
		Status: domain.MissionDraft, Name: "original", CoverageArea: validCoverageArea(), Altitude: 30, Speed: 5,
	})
	require.NoError(t, err)

	newName := "updated"
	got, err := svc.UpdateMission(ctx, mission.MissionID, UpdateInput{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Name)
	assert.Equal(t, 30.0, got.Altitude) // unchanged
}

func TestDeleteMissionRejectedWhileInProgress(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo)
	ctx := context.Background()

	mission, err := repo.CreateMission(ctx, domain.Mission{Status: domain.MissionInProgress})
	require.NoError(t, err)

	err = svc.DeleteMission(ctx, mission.MissionID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrIllegalState))
}

func TestDeleteMissionRemovesDraft(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo)
	ctx := context.Background()

	mission, err := repo.CreateMission(ctx, domain.Mission{Status: domain.MissionDraft})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMission(ctx, mission.MissionID))

	_, err = repo.GetMission(ctx, mission.MissionID)
	assert.True(t, domain.IsKind(err, domain.ErrNotFound))
}

func TestPauseAndResumeMissionRoundTrip(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo)
	ctx := context.Background()

	mission, err := repo.CreateMission(ctx, domain.Mission{Status: domain.MissionInProgress})
	require.NoError(t, err)

	require.NoError(t, svc.PauseMission(ctx, mission.MissionID))
	paused, err := repo.GetMission(ctx, mission.MissionID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionPaused, paused.Status)

	require.NoError(t, svc.ResumeMission(ctx, mission.MissionID))
	resumed, err := repo.GetMission(ctx, mission.MissionID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionInProgress, resumed.Status)
}

func TestPauseMissionRejectedUnlessInProgress(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo)
	ctx := context.Background()

	mission, err := repo.CreateMission(ctx, domain.Mission{Status: domain.MissionDraft})
	require.NoError(t, err)

	err = svc.PauseMission(ctx, mission.MissionID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrIllegalState))
}

func TestAbortMissionMarksAbortedAndLogsReason(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo)
	ctx := context.Background()

	base, err := repo.CreateBase(ctx, domain.Base{Status: domain.BaseActive})
	require.NoError(t, err)
	_, err = repo.CreateDrone(ctx, domain.Drone{Status: domain.DroneAvailable, BaseID: base.BaseID, BatteryLevel: 100})
	require.NoError(t, err)

	mission, err := repo.CreateMission(ctx, domain.Mission{
		Status: domain.MissionDraft, Altitude: 30, Speed: 5, Pattern: domain.PatternWaypoint, CoverageArea: validCoverageArea(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.StartMission(ctx, mission.MissionID))
	require.NoError(t, svc.AbortMission(ctx, mission.MissionID, "operator requested"))

	got, err := repo.GetMission(ctx, mission.MissionID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionAborted, got.Status)
	assert.Equal(t, "operator requested", got.AbortReason)

	hist, err := repo.QueryHandoffHistory(ctx, mission.MissionID)
	require.NoError(t, err)
	found := false
	for _, h := range hist {
		if h.Kind == domain.HandoffMissionAborted {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGeneratePathRejectedWhileInProgress(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo)
	ctx := context.Background()

	mission, err := repo.CreateMission(ctx, domain.Mission{Status: domain.MissionInProgress, CoverageArea: validCoverageArea()})
	require.NoError(t, err)

	_, err = svc.GeneratePath(ctx, mission.MissionID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrIllegalState))
}

func TestGeneratePathPersistsWaypoints(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo)
	ctx := context.Background()

	mission, err := repo.CreateMission(ctx, domain.Mission{
		Status: domain.MissionDraft, CoverageArea: validCoverageArea(), Altitude: 30, Speed: 5, Pattern: domain.PatternWaypoint,
	})
	require.NoError(t, err)

	fp, err := svc.GeneratePath(ctx, mission.MissionID)
	require.NoError(t, err)
	assert.NotEmpty(t, fp.Waypoints)

	got, err := repo.GetMission(ctx, mission.MissionID)
	require.NoError(t, err)
	require.NotNil(t, got.FlightPath)
	assert.Equal(t, len(fp.Waypoints), len(got.FlightPath.Waypoints))
}

func TestQueryTelemetryAndHandoffHistoryDelegateToRepository(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo)
	ctx := context.Background()

	require.NoError(t, repo.AppendTelemetry(ctx, domain.TelemetryPoint{MissionID: "m1", WaypointIndex: 1}))
	require.NoError(t, repo.AppendHandoffLog(ctx, domain.HandoffLog{MissionID: "m1", Kind: domain.HandoffStart}))

	pts, err := svc.QueryTelemetry(ctx, "m1", 0)
	require.NoError(t, err)
	assert.Len(t, pts, 1)

	hist, err := svc.QueryHandoffHistory(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}
