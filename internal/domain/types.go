// Package domain holds the entity types shared by every component of the
// mission execution and handoff subsystem: waypoints, flight paths,
// drones, bases, missions, telemetry points and handoff log entries.
package domain

import (
	"time"

	"github.com/dronesurvey/missioncore/internal/geo"
)

// WaypointAction is the directive a drone carries out at a waypoint.
type WaypointAction string

const (
	ActionFly   WaypointAction = "fly"
	ActionHover WaypointAction = "hover"
	ActionPhoto WaypointAction = "photo"
	ActionVideo WaypointAction = "video"
)

// Waypoint is a single position directive. Lng is always normalized to
// [-180, 180] by the planner that produces it.
type Waypoint struct {
	Lat, Lng, Alt float64
	Action        WaypointAction
	Duration      float64 // seconds to remain at the waypoint, >= 0
}

// Pattern selects the coverage algorithm used by the planner.
type Pattern string

const (
	PatternWaypoint   Pattern = "waypoint"
	PatternCrosshatch Pattern = "crosshatch"
	PatternPerimeter  Pattern = "perimeter"
	PatternSpiral     Pattern = "spiral"
)

// FlightPath is an ordered, immutable-after-planning waypoint sequence.
type FlightPath struct {
	Pattern           Pattern
	Waypoints         []Waypoint
	TotalDistanceM    float64
	EstimatedDuration time.Duration
}

// TravelPrefixCount returns the number of contiguous fly-action waypoints
// at the head of the path (the "travel" segment).
func (p FlightPath) TravelPrefixCount() int {
	n := 0
	for _, wp := range p.Waypoints {
		if wp.Action != ActionFly {
			break
		}
		n++
	}
	return n
}

// ReturnSuffixStart returns the index at which the trailing "return"
// segment begins: one past the last non-fly waypoint. If every waypoint
// is fly (or the path is empty), there is no return segment and the
// result equals len(Waypoints).
func (p FlightPath) ReturnSuffixStart() int {
	last := -1
	for i, wp := range p.Waypoints {
		if wp.Action != ActionFly {
			last = i
		}
	}
	if last == -1 {
		return len(p.Waypoints)
	}
	return last + 1
}

// DroneStatus is the lifecycle state of a drone.
type DroneStatus string

const (
	DroneAvailable   DroneStatus = "available"
	DroneInFlight    DroneStatus = "in_flight"
	DroneDispatching DroneStatus = "dispatching"
	DroneReturning   DroneStatus = "returning"
	DroneCharging    DroneStatus = "charging"
	DroneMaintenance DroneStatus = "maintenance"
	DroneOffline     DroneStatus = "offline"
)

// HealthStatus mirrors the original system's drone health/maintenance
// field. It is set externally (fleet maintenance tooling) and the core
// never writes it; it is read-only context for selection/reporting.
type HealthStatus string

const (
	HealthGood     HealthStatus = "good"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// Location is a drone or base's current position.
type Location struct {
	Lat, Lng, Alt float64
}

// Drone is a single fleet vehicle.
type Drone struct {
	DroneID          string
	Name             string
	Model            string
	BatteryLevel     float64 // 0..100
	Location         Location
	HomeBaseCoords   Location
	BaseID           string
	CurrentMissionID *string
	Status           DroneStatus
	Health           HealthStatus
	MaxSpeed         float64// m/s
}

// BaseStatus is the operational state of a drone base.
type BaseStatus string

const (
	BaseActive      BaseStatus = "active"
	BaseMaintenance BaseStatus = "maintenance"
	BaseOffline     BaseStatus = "offline"
)

// Base is a physical drone station.
type Base struct {
	BaseID              string
	Name                string
	Location            Location
	Status              BaseStatus
	MaxDrones           int
	OperationalRadiusKm float64
}

// IsWithinRange reports whether (lat, lng) lies within the base's
// operational radius. Not part of spec §4.6's selection algorithm
// (NearestActive is unconditional nearest-by-distance); exposed as a
// convenience for callers that want the original system's range check.
func (b Base) IsWithinRange(lat, lng float64) bool {
	distKm := geo.Distance(geo.Point{Lat: b.Location.Lat, Lng: b.Location.Lng}, geo.Point{Lat: lat, Lng: lng}) / 1000
	return distKm <= b.OperationalRadiusKm
}

// Polygon is a GeoJSON-style outer-ring-only polygon: a closed ring of
// [lng, lat] points. Callers are expected to have normalized longitudes
// before planning (PathPlanner does this too, defensively).
type Polygon struct {
	Coordinates [][2]float64 // [lng, lat] pairs, outer ring, closed (first == last)
}

// MissionStatus is the lifecycle state of a mission.
type MissionStatus string

const (
	MissionDraft      MissionStatus = "draft"
	MissionScheduled  MissionStatus = "scheduled"
	MissionInProgress MissionStatus = "in_progress"
	MissionPaused     MissionStatus = "paused"
	MissionCompleted  MissionStatus = "completed"
	MissionAborted    MissionStatus = "aborted"
	MissionFailed     MissionStatus = "failed"
)

// MissionPhase is the current segment of the mission's waypoint list.
type MissionPhase string

const (
	PhaseIdle       MissionPhase = "idle"
	PhaseTraveling  MissionPhase = "traveling"
	PhaseSurveying  MissionPhase = "surveying"
	PhaseReturning  MissionPhase = "returning"
	PhaseCompleted  MissionPhase = "completed"
)

// SurveyType mirrors the original system's survey_type field.
type SurveyType string

const (
	SurveyMapping      SurveyType = "mapping"
	SurveyInspection   SurveyType = "inspection"
	SurveySurveillance SurveyType = "surveillance"
	SurveyDelivery     SurveyType = "delivery"
)

// Mission is a single survey mission.
type Mission struct {
	MissionID    string
	Name         string
	CoverageArea Polygon
	Pattern      Pattern
	Altitude     float64
	Speed        float64
	Overlap      float64 // 0..90
	SurveyType   SurveyType

	FlightPath *FlightPath

	Status   MissionStatus
	Phase    MissionPhase
	Progress float64 // 0..100, survey distance only

	CurrentWaypointIndex int
	AssignedDroneID      string
	OriginBaseID         string

	PendingReplacementDroneID *string
	HandoffLocation           *Location

	AbortReason string

	StartedAt   *time.Time
	CompletedAt *time.Time
}

// TelemetryPoint is a single append-only telemetry record.
type TelemetryPoint struct {
	MissionID      string
	DroneID        string
	Timestamp      time.Time
	Position       Location
	Heading        float64
	Speed          float64
	Battery        float64
	WaypointIndex  int
	Progress       float64
	Phase          MissionPhase
}

// HandoffKind enumerates the HandoffLog entry types.
type HandoffKind string

const (
	HandoffStart                 HandoffKind = "start"
	HandoffReplacementDispatched HandoffKind = "replacement_dispatched"
	HandoffComplete              HandoffKind = "handoff_complete"
	HandoffReturnToBase          HandoffKind = "return_to_base"
	HandoffMissionAborted        HandoffKind = "mission_aborted"
	HandoffMissionComplete       HandoffKind = "complete"
)

// HandoffLog is a single immutable, append-only handoff event.
type HandoffLog struct {
	MissionID string
	Timestamp time.Time
	Kind      HandoffKind

	OutgoingDroneID      string
	OutgoingDroneBattery float64
	IncomingDroneID      string
	IncomingDroneBattery float64

	BaseID string

	WaypointIndex int
	Progress      float64
	Reason        string
}
