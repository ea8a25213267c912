package fleet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronesurvey/missioncore/internal/domain"
	"github.com/dronesurvey/missioncore/internal/store/memory"
)

func squareCoverage() domain.Polygon {
	return domain.Polygon{Coordinates: [][2]float64{
		{72.87, 19.07}, {72.88, 19.07}, {72.88, 19.08}, {72.87, 19.08}, {72.87, 19.07},
	}}
}

func TestAutoAssignPicksHighestBatteryAtNearestBase(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	near, _ := repo.CreateBase(ctx, domain.Base{BaseID: "near", Status: domain.BaseActive, Location: domain.Location{Lat: 19.076, Lng: 72.877}})
	_, _ = repo.CreateBase(ctx, domain.Base{BaseID: "far", Status: domain.BaseActive, Location: domain.Location{Lat: 40, Lng: 72.877}})

	_, _ = repo.CreateDrone(ctx, domain.Drone{DroneID: "low", BaseID: near.BaseID, Status: domain.DroneAvailable, BatteryLevel: 40})
	_, _ = repo.CreateDrone(ctx, domain.Drone{DroneID: "high", BaseID: near.BaseID, Status: domain.DroneAvailable, BatteryLevel: 90})
	_, _ = repo.CreateDrone(ctx, domain.Drone{DroneID: "far-high", BaseID: "far", Status: domain.DroneAvailable, BatteryLevel: 100})

	sel := New(repo)
	d, err := sel.AutoAssign(ctx, domain.Mission{MissionID: "m1", CoverageArea: squareCoverage()})
	require.NoError(t, err)
	assert.Equal(t, "high", d.DroneID)
}

func TestAutoAssignFallsBackToAnyAvailable(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	near, _ := repo.CreateBase(ctx, domain.Base{BaseID: "near", Status: domain.BaseActive, Location: domain.Location{Lat: 19.076, Lng: 72.877}})
	_ = near

	_, _ = repo.CreateDrone(ctx, domain.Drone{DroneID: "elsewhere", BaseID: "other-base", Status: domain.DroneAvailable, BatteryLevel: 77})

	sel := New(repo)
	d, err := sel.AutoAssign(ctx, domain.Mission{MissionID: "m1", CoverageArea: squareCoverage()})
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", d.DroneID)
}

func TestAutoAssignNoDroneAvailable(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	_, _ = repo.CreateBase(ctx, domain.Base{BaseID: "near", Status: domain.BaseActive})

	sel := New(repo)
	_, err := sel.AutoAssign(ctx, domain.Mission{MissionID: "m1", CoverageArea: squareCoverage()})
	assert.True(t, domain.IsKind(err, domain.ErrNoDroneAvailable))
}

func TestAutoAssignNoCentroidUsesGlobalHighestBattery(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	_, _ = repo.CreateDrone(ctx, domain.Drone{DroneID: "low", Status: domain.DroneAvailable, BatteryLevel: 10})
	_, _ = repo.CreateDrone(ctx, domain.Drone{DroneID: "high", Status: domain.DroneAvailable, BatteryLevel: 95})

	sel := New(repo)
	d, err := sel.AutoAssign(ctx, domain.Mission{MissionID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "high", d.DroneID)
}
