// Package executor implements spec §4.7's MissionExecutor: the top-level
// per-mission loop that wires Simulator, HandoffCoordinator, TelemetryBus
// and Repository together. Grounded on the original system's
// run_mission_simulation_sync tick structure and the teacher's
// sendGroundStationMessages ticker-loop idiom in mavlink/client.go
// (time.NewTicker plus select over a stop signal), generalized from a
// single MAVLink heartbeat to a full mission tick with phase tracking,
// handoff detection and retrying telemetry writes.
package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dronesurvey/missioncore/internal/bus"
	"github.com/dronesurvey/missioncore/internal/charging"
	"github.com/dronesurvey/missioncore/internal/config"
	"github.com/dronesurvey/missioncore/internal/domain"
	"github.com/dronesurvey/missioncore/internal/fleet"
	"github.com/dronesurvey/missioncore/internal/flightplan"
	"github.com/dronesurvey/missioncore/internal/geo"
	"github.com/dronesurvey/missioncore/internal/handoff"
	"github.com/dronesurvey/missioncore/internal/sim"
	"github.com/dronesurvey/missioncore/internal/store"
)

// Executor runs the per-mission simulation loop described in spec §4.7.
// One Executor instance is shared process-wide; Start spawns a goroutine
// per mission, so all its dependencies must be safe for concurrent use.
type Executor struct {
	repo     store.Repository
	bus      *bus.Bus
	selector *fleet.Selector
	handoff  *handoff.Coordinator
	charging *charging.Worker
	logger   *log.Logger
	cfg      config.SimConfig

	group errgroup.Group // tracks every live per-mission run loop
}

// Wait blocks until every run loop this Executor has spawned returns,
// the barrier a process-scoped Supervisor waits on during shutdown.
func (e *Executor) Wait() error { return e.group.Wait() }

// New returns an Executor wiring together the components a mission's tick
// loop depends on.
func New(repo store.Repository, b *bus.Bus, selector *fleet.Selector, hc *handoff.Coordinator, chargingWorker *charging.Worker, logger *log.Logger, cfg config.SimConfig) *Executor {
	return &Executor{repo: repo, bus: b, selector: selector, handoff: hc, charging: chargingWorker, logger: logger, cfg: cfg}
}

// Start implements spec §4.7's Start sequence: validates the mission is
// draft/scheduled, auto-assigns a drone if needed, ensures a flight path
// (planning from the coverage area and prepending/appending travel legs
// if one doesn't already exist), transitions mission and drone state,
// appends the start HandoffLog entry, and spawns the tick loop. ctx
// governs the spawned loop's lifetime; cancelling it is the abort path
// spec §5 describes alongside the status-field check the loop also
// performs each reload.
func (e *Executor) Start(ctx context.Context, missionID string) error {
	mission, err := e.repo.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	if mission.Status != domain.MissionDraft && mission.Status != domain.MissionScheduled {
		return domain.NewIllegalState(fmt.Sprintf("mission %s cannot be started from status %s", missionID, mission.Status))
	}

	drone, err := e.ensureAssignedDrone(ctx, &mission)
	if err != nil {
		return err
	}

	if mission.FlightPath == nil {
		if err := e.planFlightPath(ctx, &mission, drone); err != nil {
			return err
		}
	}

	mission.OriginBaseID = drone.BaseID
	mission.AssignedDroneID = drone.DroneID
	mission.Status = domain.MissionInProgress
	mission.Phase = domain.PhaseTraveling
	mission.CurrentWaypointIndex = 0
	mission.Progress = 0
	now := time.Now()
	mission.StartedAt = &now
	mission.CompletedAt = nil
	if err := e.repo.UpdateMission(ctx, mission); err != nil {
		return err
	}

	drone.Status = domain.DroneInFlight
	missionIDCopy := missionID
	drone.CurrentMissionID = &missionIDCopy
	if err := e.repo.UpdateDrone(ctx, drone); err != nil {
		return err
	}

	_ = e.repo.AppendHandoffLog(ctx, domain.HandoffLog{
		MissionID: missionID, Timestamp: now, Kind: domain.HandoffStart,
		OutgoingDroneID: drone.DroneID, OutgoingDroneBattery: drone.BatteryLevel,
		WaypointIndex: 0,
	})

	e.group.Go(func() error {
		e.run(ctx, missionID)
		return nil
	})
	return nil
}

// Resume re-enters the tick loop for a mission that is already
// in_progress with an assigned drone and flight path — the restart path
// spec §9's Design Notes call for ("a process-scoped Supervisor that
// tracks liveness and restarts failed executors for missions still
// marked inProgress at process start") and spec §8's Simulator-resume
// property. Unlike Start, it performs no drone assignment or flight-path
// planning and does not reset progress or waypoint index.
func (e *Executor) Resume(ctx context.Context, missionID string) error {
	mission, err := e.repo.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	if mission.Status != domain.MissionInProgress {
		return domain.NewIllegalState(fmt.Sprintf("mission %s is not in progress (status=%s)", missionID, mission.Status))
	}
	if mission.FlightPath == nil {
		return domain.NewValidation(fmt.Sprintf("mission %s has no flight path to resume", missionID))
	}
	e.group.Go(func() error {
		e.run(ctx, missionID)
		return nil
	})
	return nil
}

// ensureAssignedDrone implements spec §4.7's "auto-assign a drone if none
// assigned or assigned-but-not-available" rule.
func (e *Executor) ensureAssignedDrone(ctx context.Context, mission *domain.Mission) (domain.Drone, error) {
	if mission.AssignedDroneID != "" {
		d, err := e.repo.GetDrone(ctx, mission.AssignedDroneID)
		if err == nil && d.Status == domain.DroneAvailable {
			return d, nil
		}
	}
	d, err := e.selector.AutoAssign(ctx, *mission)
	if err != nil {
		return domain.Drone{}, err
	}
	mission.AssignedDroneID = d.DroneID
	return d, nil
}

// planFlightPath implements spec §4.2/§4.7: plan the survey pattern over
// the coverage area, then prepend a travel path from the assigned
// drone's base to the first survey waypoint and append a travel path
// from the last survey waypoint back to base, normalizing every
// waypoint's longitude.
func (e *Executor) planFlightPath(ctx context.Context, mission *domain.Mission, drone domain.Drone) error {
	if len(mission.CoverageArea.Coordinates) < 3 {
		return domain.NewValidation(fmt.Sprintf("mission %s coverage area has fewer than 3 vertices", mission.MissionID))
	}

	base, err := e.repo.GetBase(ctx, drone.BaseID)
	if err != nil {
		return err
	}

	pattern := mission.Pattern
	if pattern == "" {
		pattern = domain.PatternCrosshatch
	}
	fp := flightplan.Plan(flightplan.Params{
		Polygon: mission.CoverageArea, Pattern: pattern, Altitude: mission.Altitude,
		OverlapPct: mission.Overlap, SpeedMS: mission.Speed,
	})

	basePt := geo.Point{Lat: base.Location.Lat, Lng: base.Location.Lng}
	if len(fp.Waypoints) > 0 {
		first := fp.Waypoints[0]
		last := fp.Waypoints[len(fp.Waypoints)-1]
		travelOut := flightplan.PlanTravel(basePt, geo.Point{Lat: first.Lat, Lng: first.Lng}, mission.Altitude)
		travelBack := flightplan.PlanTravel(geo.Point{Lat: last.Lat, Lng: last.Lng}, basePt, mission.Altitude)

		combined := make([]domain.Waypoint, 0, len(travelOut)+len(fp.Waypoints)+len(travelBack))
		combined = append(combined, travelOut...)
		combined = append(combined, fp.Waypoints...)
		combined = append(combined, travelBack...)
		for i := range combined {
			combined[i].Lng = geo.NormalizeLongitude(combined[i].Lng)
		}
		fp.Waypoints = combined
		fp.TotalDistanceM = flightplan.TotalDistance(combined)
		fp.EstimatedDuration = flightplan.EstimatedDuration(fp.TotalDistanceM, mission.Speed, combined)
	}

	mission.FlightPath = &fp
	return nil
}

// run is the per-mission tick loop, spec §4.7's ten numbered steps.
func (e *Executor) run(ctx context.Context, missionID string) {
	defer e.bus.Close(missionID)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("executor: mission %s: panic recovered: %v", missionID, r)
			e.failMission(context.Background(), missionID)
		}
	}()

	mission, err := e.repo.GetMission(ctx, missionID)
	if err != nil {
		e.logger.Printf("executor: mission %s: initial reload failed: %v", missionID, err)
		return
	}
	drone, err := e.repo.GetDrone(ctx, mission.AssignedDroneID)
	if err != nil {
		e.logger.Printf("executor: mission %s: initial drone reload failed: %v", missionID, err)
		return
	}

	simCfg := sim.Config{SpeedMS: mission.Speed, BatteryDrainPerMin: e.cfg.BatteryDrainRatePerMinute, InitialBattery: drone.BatteryLevel}
	var simulator *sim.Simulator
	if mission.CurrentWaypointIndex > 0 || mission.Progress > 0 {
		simulator = sim.Resume(*mission.FlightPath, simCfg, mission.CurrentWaypointIndex, mission.Progress)
	} else {
		simulator = sim.New(*mission.FlightPath, simCfg)
	}

	dt := e.cfg.TickInterval.Seconds()
	lastPhase := mission.Phase
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if m, err := e.repo.GetMission(context.Background(), missionID); err == nil {
				e.releaseDroneIfOwned(context.Background(), m)
			}
			return
		case <-ticker.C:
		}

		mission, err = e.repo.GetMission(context.Background(), missionID)
		if err != nil {
			e.logger.Printf("executor: mission %s: reload failed: %v", missionID, err)
			return
		}
		if mission.Status == domain.MissionPaused {
			continue
		}
		if mission.Status == domain.MissionAborted || mission.Status == domain.MissionFailed {
			e.releaseDroneIfOwned(context.Background(), mission)
			return
		}
		if mission.Status != domain.MissionInProgress {
			return
		}

		r := simulator.Advance(dt)
		e.persistTick(context.Background(), &mission, r, lastPhase)
		if r.Phase != lastPhase {
			lastPhase = r.Phase
		}

		currentDroneID := mission.AssignedDroneID
		e.updateDroneFromTick(context.Background(), currentDroneID, r)
		e.appendTelemetryWithRetry(context.Background(), domain.TelemetryPoint{
			MissionID: missionID, DroneID: currentDroneID, Timestamp: time.Now(),
			Position: r.Position, Heading: r.Heading, Speed: r.Speed, Battery: r.Battery,
			WaypointIndex: r.WaypointIndex, Progress: r.Progress, Phase: r.Phase,
		})

		e.bus.Publish(domain.Event{
			Kind: domain.EventTelemetry, MissionID: missionID, Timestamp: time.Now(),
			Telemetry: &domain.TelemetryPayload{
				DroneID: currentDroneID, Position: r.Position, Altitude: r.Position.Alt, Heading: r.Heading,
				Speed: r.Speed, Battery: r.Battery, WaypointIndex: r.WaypointIndex, Progress: r.Progress, Phase: r.Phase,
			},
		})

		if mission.PendingReplacementDroneID != nil {
			if e.checkRendezvous(context.Background(), missionID, currentDroneID, *mission.PendingReplacementDroneID) {
				if battery, err := e.handoff.IncomingBattery(context.Background(), *mission.PendingReplacementDroneID); err == nil {
					simulator.RebindBattery(battery)
				}
			}
		}

		if r.Battery <= e.cfg.CriticalBatteryPct {
			if err := e.handoff.TriggerReplacement(context.Background(), missionID, currentDroneID, r.WaypointIndex); err != nil {
				e.logger.Printf("executor: mission %s: trigger replacement failed: %v", missionID, err)
			}
		}

		if r.Complete {
			e.completeMission(context.Background(), missionID)
			return
		}
	}
}

// persistTick saves the tick's waypoint index, progress and (if changed)
// phase, publishing PhaseChange on transition.
func (e *Executor) persistTick(ctx context.Context, mission *domain.Mission, r sim.Result, lastPhase domain.MissionPhase) {
	mission.CurrentWaypointIndex = r.WaypointIndex
	mission.Progress = r.Progress
	phaseChanged := r.Phase != lastPhase
	if phaseChanged {
		mission.Phase = r.Phase
	}
	if err := e.repo.UpdateMission(ctx, *mission); err != nil {
		e.logger.Printf("executor: mission %s: persist tick failed: %v", mission.MissionID, err)
		return
	}
	if phaseChanged {
		e.bus.Publish(domain.Event{
			Kind: domain.EventPhaseChange, MissionID: mission.MissionID, Timestamp: time.Now(),
			PhaseChange: &domain.PhaseChangePayload{OldPhase: lastPhase, NewPhase: r.Phase},
		})
	}
}

// updateDroneFromTick writes the simulator's resulting position and
// battery back to the drone record, best-effort per spec §7.
func (e *Executor) updateDroneFromTick(ctx context.Context, droneID string, r sim.Result) {
	d, err := e.repo.GetDrone(ctx, droneID)
	if err != nil {
		e.logger.Printf("executor: drone %s reload for tick update failed: %v", droneID, err)
		return
	}
	d.Location = r.Position
	d.BatteryLevel = r.Battery
	if err := e.repo.UpdateDrone(ctx, d); err != nil {
		e.logger.Printf("executor: drone %s tick update failed: %v", droneID, err)
	}
}

// checkRendezvous implements spec §4.7 step 7: compare the outgoing and
// incoming drones' positions and invoke HandoffCoordinator.Complete once
// they are within RendezvousRadiusM. Returns true if Complete was
// invoked (successfully or not — the caller rebinds the simulator's
// battery regardless, matching the idempotent-Complete contract).
func (e *Executor) checkRendezvous(ctx context.Context, missionID, outgoingDroneID, incomingDroneID string) bool {
	outgoing, err := e.repo.GetDrone(ctx, outgoingDroneID)
	if err != nil {
		return false
	}
	incoming, err := e.repo.GetDrone(ctx, incomingDroneID)
	if err != nil {
		return false
	}
	d := geo.Distance(
		geo.Point{Lat: outgoing.Location.Lat, Lng: outgoing.Location.Lng},
		geo.Point{Lat: incoming.Location.Lat, Lng: incoming.Location.Lng},
	)
	if d > e.cfg.RendezvousRadiusM {
		return false
	}
	if err := e.handoff.Complete(ctx, missionID); err != nil {
		e.logger.Printf("executor: mission %s: rendezvous complete failed: %v", missionID, err)
	}
	return true
}

// appendTelemetryWithRetry implements spec §7's TransientIO policy: make
// up to TelemetryWriteRetries attempts in total (at least one), sleeping
// TelemetryRetryBackoff between them, logging and swallowing a terminal
// failure so the tick proceeds.
func (e *Executor) appendTelemetryWithRetry(ctx context.Context, p domain.TelemetryPoint) {
	attempts := e.cfg.TelemetryWriteRetries
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = e.repo.AppendTelemetry(ctx, p); err == nil {
			return
		}
		if i < attempts-1 {
			time.Sleep(e.cfg.TelemetryRetryBackoff)
		}
	}
	e.logger.Printf("executor: mission %s: telemetry append failed after %d attempts: %v", p.MissionID, attempts, err)
}

// completeMission implements spec §4.7 step 9 / §4.9's CompleteMission:
// idempotent on mission.Status, marks the mission completed at 100%
// progress, the drone charging, starts its ChargingWorker, logs and
// publishes completion.
func (e *Executor) completeMission(ctx context.Context, missionID string) {
	mission, err := e.repo.GetMission(ctx, missionID)
	if err != nil {
		e.logger.Printf("executor: mission %s: complete reload failed: %v", missionID, err)
		return
	}
	if mission.Status == domain.MissionCompleted {
		return
	}
	mission.Status = domain.MissionCompleted
	mission.Phase = domain.PhaseCompleted
	mission.Progress = 100
	now := time.Now()
	mission.CompletedAt = &now
	if err := e.repo.UpdateMission(ctx, mission); err != nil {
		e.logger.Printf("executor: mission %s: complete persist failed: %v", missionID, err)
	}

	if mission.AssignedDroneID != "" {
		drone, err := e.repo.GetDrone(ctx, mission.AssignedDroneID)
		if err == nil {
			drone.Status = domain.DroneCharging
			drone.CurrentMissionID = nil
			if err := e.repo.UpdateDrone(ctx, drone); err == nil && e.charging != nil {
				go func() {
					if err := e.charging.Run(context.Background(), drone.DroneID); err != nil {
						e.logger.Printf("executor: charging worker for drone %s failed: %v", drone.DroneID, err)
					}
				}()
			}
		}
	}

	_ = e.repo.AppendHandoffLog(ctx, domain.HandoffLog{
		MissionID: missionID, Timestamp: now, Kind: domain.HandoffMissionComplete,
		WaypointIndex: mission.CurrentWaypointIndex, Progress: 100,
	})
	e.bus.Publish(domain.Event{Kind: domain.EventMissionComplete, MissionID: missionID, Timestamp: now, MissionComplete: &domain.MissionCompletePayload{}})
}

// failMission implements spec §7's Fatal error policy: an uncaught panic
// in the tick loop marks the mission failed and reverts its drone to
// available without touching the handoff log (the failure is external to
// the handoff state machine).
func (e *Executor) failMission(ctx context.Context, missionID string) {
	mission, err := e.repo.GetMission(ctx, missionID)
	if err != nil {
		return
	}
	mission.Status = domain.MissionFailed
	_ = e.repo.UpdateMission(ctx, mission)
	e.releaseDroneIfOwned(ctx, mission)
}

// releaseDroneIfOwned reverts the mission's assigned drone to available
// only if it is still in_flight — a handoff already in progress will have
// moved it to returning/charging, and that transition must not be
// overridden.
func (e *Executor) releaseDroneIfOwned(ctx context.Context, mission domain.Mission) {
	if mission.AssignedDroneID == "" {
		return
	}
	d, err := e.repo.GetDrone(ctx, mission.AssignedDroneID)
	if err != nil {
		return
	}
	if d.Status == domain.DroneInFlight {
		d.Status = domain.DroneAvailable
		d.CurrentMissionID = nil
		_ = e.repo.UpdateDrone(ctx, d)
	}
}
