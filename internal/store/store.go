// Package store defines the Repository contract consumed by every other
// component. It is deliberately storage-agnostic: a single concrete
// implementation lives in store/memory, guarded by per-entity mutexes with
// no cross-entity transactions, matching the single-writer-per-mission
// design spec §5 describes.
package store

import (
	"context"

	"github.com/dronesurvey/missioncore/internal/domain"
)

// Repository is the persistence contract every component depends on.
// Implementations must be safe for concurrent use. There are no
// multi-entity transactions: each method is atomic only for the entity it
// names.
type Repository interface {
	CreateDrone(ctx context.Context, d domain.Drone) (domain.Drone, error)
	GetDrone(ctx context.Context, droneID string) (domain.Drone, error)
	UpdateDrone(ctx context.Context, d domain.Drone) error
	ListDrones(ctx context.Context) ([]domain.Drone, error)
	ListDronesByStatus(ctx context.Context, status domain.DroneStatus) ([]domain.Drone, error)
	ListDronesByBase(ctx context.Context, baseID string) ([]domain.Drone, error)

	CreateBase(ctx context.Context, b domain.Base) (domain.Base, error)
	GetBase(ctx context.Context, baseID string) (domain.Base, error)
	ListBases(ctx context.Context) ([]domain.Base, error)
	ListActiveBases(ctx context.Context) ([]domain.Base, error)

	CreateMission(ctx context.Context, m domain.Mission) (domain.Mission, error)
	GetMission(ctx context.Context, missionID string) (domain.Mission, error)
	UpdateMission(ctx context.Context, m domain.Mission) error
	DeleteMission(ctx context.Context, missionID string) error
	ListMissions(ctx context.Context) ([]domain.Mission, error)
	ListMissionsByStatus(ctx context.Context, status domain.MissionStatus) ([]domain.Mission, error)

	AppendTelemetry(ctx context.Context, p domain.TelemetryPoint) error
	QueryTelemetry(ctx context.Context, missionID string, limit int) ([]domain.TelemetryPoint, error)

	AppendHandoffLog(ctx context.Context, h domain.HandoffLog) error
	QueryHandoffHistory(ctx context.Context, missionID string) ([]domain.HandoffLog, error)
	// QueryDroneActivity returns the most recent handoff log entries that
	// name droneID as either the outgoing or incoming drone, newest first,
	// capped at limit. Grounded on the original system's
	// get_drone_activity helper; not present in spec.md's Repository
	// operation list but a natural extension of QueryHandoffHistory.
	QueryDroneActivity(ctx context.Context, droneID string, limit int) ([]domain.HandoffLog, error)
}
