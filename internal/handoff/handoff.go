// Package handoff implements spec §4.8's HandoffCoordinator: detecting a
// critical-battery drone, dispatching a replacement from a base, swapping
// mission ownership at a 10 m rendezvous, and returning the outgoing
// drone to base to recharge. Grounded on spec §4.8's pseudocode directly
// (the retrieved original_source slice did not include the Celery task
// that triggers a handoff), using goroutines plus context timeouts for
// the ReplacementFlight/ReturnFlight child tasks per the Design Notes'
// cancellation-token redesign, in place of the original's
// cooperative-cancellation-by-polling-a-status-field idiom.
package handoff

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dronesurvey/missioncore/internal/charging"
	"github.com/dronesurvey/missioncore/internal/config"
	"github.com/dronesurvey/missioncore/internal/domain"
	"github.com/dronesurvey/missioncore/internal/flightplan"
	"github.com/dronesurvey/missioncore/internal/geo"
	"github.com/dronesurvey/missioncore/internal/store"
)

// eventBus is the subset of bus.Bus the coordinator needs; kept as an
// interface here so tests can inject a recording fake.
type eventBus interface {
	Publish(domain.Event)
}

// Coordinator implements the handoff lifecycle described in spec §4.8.
// One Coordinator is shared process-wide; calls for the same mission are
// serialized by a per-mission mutex, which makes Complete idempotent
// regardless of which detector (the mission executor's own rendezvous
// check, or the replacement flight's arrival check) fires first.
type Coordinator struct {
	repo     store.Repository
	bus      eventBus
	charging *charging.Worker
	logger   *log.Logger
	cfg      config.SimConfig

	locks sync.Map // missionID -> *sync.Mutex
	group errgroup.Group // tracks outstanding ReplacementFlight/ReturnFlight goroutines
}

// Wait blocks until every ReplacementFlight and ReturnFlight this
// Coordinator has spawned returns, for use during process shutdown
// alongside Supervisor.Shutdown.
func (c *Coordinator) Wait() error { return c.group.Wait() }

// New returns a Coordinator backed by repo, publishing to bus, and using
// chargingWorker to recharge drones once a return flight lands.
func New(repo store.Repository, bus eventBus, chargingWorker *charging.Worker, logger *log.Logger, cfg config.SimConfig) *Coordinator {
	return &Coordinator{repo: repo, bus: bus, charging: chargingWorker, logger: logger, cfg: cfg}
}

func (c *Coordinator) lockFor(missionID string) *sync.Mutex {
	v, _ := c.locks.LoadOrStore(missionID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// TriggerReplacement implements spec §4.8's TriggerReplacement: if a
// replacement is already pending it is a no-op; otherwise a candidate is
// selected from the origin base first, then fleet-wide, and dispatched,
// or AbortNoReplacement is invoked if none qualifies.
func (c *Coordinator) TriggerReplacement(ctx context.Context, missionID, outgoingDroneID string, waypointIndex int) error {
	lock := c.lockFor(missionID)
	lock.Lock()
	defer lock.Unlock()

	mission, err := c.repo.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	if mission.PendingReplacementDroneID != nil {
		return nil
	}

	outgoing, err := c.repo.GetDrone(ctx, outgoingDroneID)
	if err != nil {
		return err
	}

	candidate, ok, err := c.selectCandidate(ctx, mission.OriginBaseID, outgoingDroneID)
	if err != nil {
		return err
	}
	if !ok {
		return c.abortNoReplacementLocked(ctx, mission, outgoing)
	}

	candidate.Status = domain.DroneDispatching
	if err := c.repo.UpdateDrone(ctx, candidate); err != nil {
		return err
	}

	handoffLoc := outgoing.Location
	replacementID := candidate.DroneID
	mission.PendingReplacementDroneID = &replacementID
	mission.HandoffLocation = &handoffLoc
	if err := c.repo.UpdateMission(ctx, mission); err != nil {
		return err
	}

	now := time.Now()
	_ = c.repo.AppendHandoffLog(ctx, domain.HandoffLog{
		MissionID:            missionID,
		Timestamp:            now,
		Kind:                 domain.HandoffReplacementDispatched,
		OutgoingDroneID:       outgoing.DroneID,
		OutgoingDroneBattery:  outgoing.BatteryLevel,
		IncomingDroneID:       candidate.DroneID,
		IncomingDroneBattery:  candidate.BatteryLevel,
		BaseID:                candidate.BaseID,
		WaypointIndex:         waypointIndex,
	})
	c.bus.Publish(domain.Event{
		Kind: domain.EventReplacementDispatched, MissionID: missionID, Timestamp: now,
		ReplacementDispatched: &domain.ReplacementDispatchedPayload{
			OutgoingDroneID: outgoing.DroneID, OutgoingBattery: outgoing.BatteryLevel,
			IncomingDroneID: candidate.DroneID, IncomingBattery: candidate.BatteryLevel,
			WaypointIndex: waypointIndex, BaseID: candidate.BaseID,
		},
	})

	c.group.Go(func() error {
		c.runReplacementFlight(missionID, candidate, handoffLoc, mission.Altitude)
		return nil
	})
	return nil
}

// selectCandidate implements the candidate pool order from spec §4.8 step
// 2-3: available drones at baseID (excluding excludeID) sorted by
// battery desc, then any available drone fleet-wide excluding excludeID;
// the first candidate meeting MinBatteryForMissionPct wins.
func (c *Coordinator) selectCandidate(ctx context.Context, baseID, excludeID string) (domain.Drone, bool, error) {
	pool, err := c.candidatePool(ctx, baseID, excludeID)
	if err != nil {
		return domain.Drone{}, false, err
	}
	for _, d := range pool {
		if d.BatteryLevel >= c.cfg.MinBatteryForMissionPct {
			return d, true, nil
		}
	}
	return domain.Drone{}, false, nil
}

func (c *Coordinator) candidatePool(ctx context.Context, baseID, excludeID string) ([]domain.Drone, error) {
	seen := make(map[string]bool)
	var atBase []domain.Drone
	if baseID != "" {
		drones, err := c.repo.ListDronesByBase(ctx, baseID)
		if err != nil {
			return nil, err
		}
		for _, d := range drones {
			if d.DroneID == excludeID || d.Status != domain.DroneAvailable {
				continue
			}
			atBase = append(atBase, d)
			seen[d.DroneID] = true
		}
	}
	sortByBatteryDesc(atBase)

	fleetWide, err := c.repo.ListDronesByStatus(ctx, domain.DroneAvailable)
	if err != nil {
		return nil, err
	}
	var rest []domain.Drone
	for _, d := range fleetWide {
		if d.DroneID == excludeID || seen[d.DroneID] {
			continue
		}
		rest = append(rest, d)
	}
	sortByBatteryDesc(rest)

	return append(atBase, rest...), nil
}

func sortByBatteryDesc(drones []domain.Drone) {
	sort.Slice(drones, func(i, j int) bool { return drones[i].BatteryLevel > drones[j].BatteryLevel })
}

// Complete implements spec §4.8's Complete: swaps mission ownership from
// the outgoing drone to the incoming replacement, logs and publishes the
// handoff, and starts the outgoing drone's return flight. It is
// idempotent — called whichever detector (mission executor's rendezvous
// poll, or the replacement flight's own arrival check) fires first; the
// second caller observes PendingReplacementDroneID already cleared and
// returns nil.
func (c *Coordinator) Complete(ctx context.Context, missionID string) error {
	lock := c.lockFor(missionID)
	lock.Lock()
	defer lock.Unlock()

	mission, err := c.repo.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	if mission.PendingReplacementDroneID == nil {
		return nil
	}
	replacementID := *mission.PendingReplacementDroneID

	outgoing, err := c.repo.GetDrone(ctx, mission.AssignedDroneID)
	if err != nil {
		return err
	}
	incoming, err := c.repo.GetDrone(ctx, replacementID)
	if err != nil {
		return err
	}

	now := time.Now()
	_ = c.repo.AppendHandoffLog(ctx, domain.HandoffLog{
		MissionID: missionID, Timestamp: now, Kind: domain.HandoffComplete,
		OutgoingDroneID: outgoing.DroneID, OutgoingDroneBattery: outgoing.BatteryLevel,
		IncomingDroneID: incoming.DroneID, IncomingDroneBattery: incoming.BatteryLevel,
		WaypointIndex: mission.CurrentWaypointIndex, Progress: mission.Progress,
	})

	outgoing.Status = domain.DroneReturning
	outgoing.CurrentMissionID = nil
	if err := c.repo.UpdateDrone(ctx, outgoing); err != nil {
		return err
	}

	incoming.Status = domain.DroneInFlight
	missionIDCopy := missionID
	incoming.CurrentMissionID = &missionIDCopy
	if err := c.repo.UpdateDrone(ctx, incoming); err != nil {
		return err
	}

	handoffLoc := outgoing.Location
	if mission.HandoffLocation != nil {
		handoffLoc = *mission.HandoffLocation
	}

	mission.AssignedDroneID = incoming.DroneID
	mission.PendingReplacementDroneID = nil
	mission.HandoffLocation = nil
	if err := c.repo.UpdateMission(ctx, mission); err != nil {
		return err
	}

	c.bus.Publish(domain.Event{
		Kind: domain.EventHandoffComplete, MissionID: missionID, Timestamp: now,
		HandoffComplete: &domain.HandoffCompletePayload{
			OutgoingDroneID: outgoing.DroneID, IncomingDroneID: incoming.DroneID,
			WaypointIndex: mission.CurrentWaypointIndex,
		},
	})

	c.group.Go(func() error {
		c.runReturnFlight(missionID, outgoing.DroneID, handoffLoc, mission.OriginBaseID)
		return nil
	})
	return nil
}

// IncomingBattery returns the replacement's battery for the mission
// executor to rebind its simulator against, per spec §4.7 step 7.
func (c *Coordinator) IncomingBattery(ctx context.Context, droneID string) (float64, error) {
	d, err := c.repo.GetDrone(ctx, droneID)
	if err != nil {
		return 0, err
	}
	return d.BatteryLevel, nil
}

// AbortNoReplacement implements spec §4.8's AbortNoReplacement as an
// exported entry point that forces the abort without going through
// TriggerReplacement. Nothing in this module calls it: when no candidate
// qualifies, TriggerReplacement calls abortNoReplacementLocked itself
// while already holding the mission's lock, and returns nil rather than
// an error.
func (c *Coordinator) AbortNoReplacement(ctx context.Context, missionID, outgoingDroneID string) error {
	lock := c.lockFor(missionID)
	lock.Lock()
	defer lock.Unlock()

	mission, err := c.repo.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	outgoing, err := c.repo.GetDrone(ctx, outgoingDroneID)
	if err != nil {
		return err
	}
	return c.abortNoReplacementLocked(ctx, mission, outgoing)
}

func (c *Coordinator) abortNoReplacementLocked(ctx context.Context, mission domain.Mission, outgoing domain.Drone) error {
	mission.Status = domain.MissionAborted
	mission.AbortReason = fmt.Sprintf("No replacement available (battery %.1f%%)", outgoing.BatteryLevel)
	if err := c.repo.UpdateMission(ctx, mission); err != nil {
		return err
	}

	outgoing.Status = domain.DroneReturning
	outgoing.CurrentMissionID = nil
	if err := c.repo.UpdateDrone(ctx, outgoing); err != nil {
		return err
	}

	now := time.Now()
	_ = c.repo.AppendHandoffLog(ctx, domain.HandoffLog{
		MissionID: mission.MissionID, Timestamp: now, Kind: domain.HandoffMissionAborted,
		OutgoingDroneID: outgoing.DroneID, OutgoingDroneBattery: outgoing.BatteryLevel,
		WaypointIndex: mission.CurrentWaypointIndex, Progress: mission.Progress, Reason: mission.AbortReason,
	})
	c.bus.Publish(domain.Event{
		Kind: domain.EventMissionAborted, MissionID: mission.MissionID, Timestamp: now,
		MissionAborted: &domain.MissionAbortedPayload{
			DroneID: outgoing.DroneID, Battery: outgoing.BatteryLevel, Reason: mission.AbortReason,
		},
	})

	c.group.Go(func() error {
		c.runReturnFlight(mission.MissionID, outgoing.DroneID, outgoing.Location, mission.OriginBaseID)
		return nil
	})
	return nil
}

// runReplacementFlight walks candidate through a travel path from its
// current location to the handoff location, one waypoint per tick,
// persisting its location each step. It self-cancels — restoring the
// candidate to available — if the mission no longer wants this
// replacement (paused/resumed into a different state, aborted, or a
// different replacement took over) or if ReplacementFlightTimeout
// elapses. Terminates successfully by calling Complete once within
// RendezvousRadiusM of the handoff location; Complete's own lock makes
// this race-safe against the mission executor's own rendezvous check.
func (c *Coordinator) runReplacementFlight(missionID string, candidate domain.Drone, handoffLoc domain.Location, altitude float64) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReplacementFlightTimeout)
	defer cancel()

	fromPt := geo.Point{Lat: candidate.Location.Lat, Lng: candidate.Location.Lng}
	targetPt := geo.Point{Lat: handoffLoc.Lat, Lng: handoffLoc.Lng}
	path := flightplan.PlanTravel(fromPt, targetPt, altitude)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for i := 0; i < len(path); i++ {
		select {
		case <-ctx.Done():
			c.restoreIfDispatching(candidate.DroneID)
			return
		case <-ticker.C:
		}

		mission, err := c.repo.GetMission(context.Background(), missionID)
		if err != nil {
			return
		}
		wanted := (mission.Status == domain.MissionInProgress || mission.Status == domain.MissionPaused) &&
			mission.PendingReplacementDroneID != nil && *mission.PendingReplacementDroneID == candidate.DroneID
		if !wanted {
			c.restoreIfDispatching(candidate.DroneID)
			return
		}

		wp := path[i]
		candidate.Location = domain.Location{Lat: wp.Lat, Lng: wp.Lng, Alt: wp.Alt}
		if err := c.repo.UpdateDrone(context.Background(), candidate); err != nil {
			return
		}

		if geo.Distance(geo.Point{Lat: candidate.Location.Lat, Lng: candidate.Location.Lng}, targetPt) <= c.cfg.RendezvousRadiusM {
			if err := c.Complete(context.Background(), missionID); err != nil {
				c.logger.Printf("handoff: replacement flight complete for mission %s failed: %v", missionID, err)
			}
			return
		}
	}

	// Travel path exhausted without falling inside the rendezvous radius
	// (can happen if the outgoing drone's reported location drifted
	// between dispatch and the last hop); snap to the handoff location and
	// complete anyway rather than stranding the replacement mid-flight.
	candidate.Location = handoffLoc
	if err := c.repo.UpdateDrone(context.Background(), candidate); err != nil {
		return
	}
	if err := c.Complete(context.Background(), missionID); err != nil {
		c.logger.Printf("handoff: replacement flight complete for mission %s failed: %v", missionID, err)
	}
}

func (c *Coordinator) restoreIfDispatching(droneID string) {
	d, err := c.repo.GetDrone(context.Background(), droneID)
	if err != nil {
		return
	}
	if d.Status == domain.DroneDispatching {
		d.Status = domain.DroneAvailable
		_ = c.repo.UpdateDrone(context.Background(), d)
	}
}

// runReturnFlight interpolates droneID's position from "from" back to
// originBaseID over a clamped travel time (spec §4.8 step 3 /
// §9 Open Questions: a constant 10 m/s cruise assumption independent of
// maxSpeed, a deliberate simplification), then marks it charging and
// starts the charging worker.
func (c *Coordinator) runReturnFlight(missionID, droneID string, from domain.Location, originBaseID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReturnFlightMaxDuration+c.cfg.TickInterval)
	defer cancel()

	base, err := c.repo.GetBase(context.Background(), originBaseID)
	if err != nil {
		c.logger.Printf("handoff: return flight for drone %s: base %s lookup failed: %v", droneID, originBaseID, err)
		return
	}

	fromPt := geo.Point{Lat: from.Lat, Lng: from.Lng}
	toPt := geo.Point{Lat: base.Location.Lat, Lng: base.Location.Lng}
	dist := geo.Distance(fromPt, toPt)

	travelTime := time.Duration(dist / c.cfg.ReturnFlightCruiseMS * float64(time.Second))
	if travelTime < c.cfg.ReturnFlightMinDuration {
		travelTime = c.cfg.ReturnFlightMinDuration
	}
	if travelTime > c.cfg.ReturnFlightMaxDuration {
		travelTime = c.cfg.ReturnFlightMaxDuration
	}

	steps := int(travelTime / c.cfg.TickInterval)
	if steps < 1 {
		steps = 1
	}

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		d, err := c.repo.GetDrone(context.Background(), droneID)
		if err != nil {
			return
		}
		f := float64(i) / float64(steps)
		pt := geo.Interpolate(fromPt, toPt, f)
		d.Location = domain.Location{Lat: pt.Lat, Lng: pt.Lng, Alt: 0}
		if i == steps {
			d.Location = base.Location
			d.Status = domain.DroneCharging
		}
		if err := c.repo.UpdateDrone(context.Background(), d); err != nil {
			return
		}
	}

	_ = c.repo.AppendHandoffLog(context.Background(), domain.HandoffLog{
		MissionID: missionID, Timestamp: time.Now(), Kind: domain.HandoffReturnToBase,
		OutgoingDroneID: droneID, BaseID: originBaseID,
	})

	if c.charging != nil {
		go func() {
			if err := c.charging.Run(context.Background(), droneID); err != nil {
				c.logger.Printf("handoff: charging worker for drone %s failed: %v", droneID, err)
			}
		}()
	}
}
