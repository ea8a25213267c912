package domain

import "time"

// EventKind enumerates the TelemetryBus payload shapes spec §4.4/§6
// define. Each Event carries exactly one non-nil payload matching its
// Kind — a tagged union in place of the original system's dynamically
// typed event dictionaries.
type EventKind string

const (
	EventTelemetry             EventKind = "telemetry"
	EventPhaseChange           EventKind = "phase_change"
	EventReplacementDispatched EventKind = "replacement_dispatched"
	EventHandoffComplete       EventKind = "handoff_complete"
	EventMissionAborted        EventKind = "mission_aborted"
	EventMissionComplete       EventKind = "mission_complete"
)

// TelemetryPayload mirrors the per-tick TelemetryPoint that was just
// appended to the repository.
type TelemetryPayload struct {
	DroneID       string
	Position      Location
	Altitude      float64
	Heading       float64
	Speed         float64
	Battery       float64
	WaypointIndex int
	Progress      float64
	Phase         MissionPhase
}

// PhaseChangePayload fires when the simulator's derived phase changes.
type PhaseChangePayload struct {
	OldPhase MissionPhase
	NewPhase MissionPhase
}

// ReplacementDispatchedPayload fires when HandoffCoordinator.TriggerReplacement
// selects a candidate and begins its flight to the rendezvous.
type ReplacementDispatchedPayload struct {
	OutgoingDroneID string
	OutgoingBattery float64
	IncomingDroneID string
	IncomingBattery float64
	WaypointIndex   int
	BaseID          string
}

// HandoffCompletePayload fires when ownership has swapped to the
// incoming drone.
type HandoffCompletePayload struct {
	OutgoingDroneID string
	IncomingDroneID string
	WaypointIndex   int
}

// MissionAbortedPayload fires when no replacement could be found for a
// critical-battery outgoing drone.
type MissionAbortedPayload struct {
	DroneID string
	Battery float64
	Reason  string
}

// MissionCompletePayload fires once when a mission finishes its final
// waypoint; it carries no fields beyond the Event envelope.
type MissionCompletePayload struct{}

// Event is a single TelemetryBus message. Exactly one of the payload
// fields matching Kind is non-nil.
type Event struct {
	Kind      EventKind
	MissionID string
	Timestamp time.Time

	Telemetry             *TelemetryPayload
	PhaseChange           *PhaseChangePayload
	ReplacementDispatched *ReplacementDispatchedPayload
	HandoffComplete       *HandoffCompletePayload
	MissionAborted        *MissionAbortedPayload
	MissionComplete       *MissionCompletePayload
}
