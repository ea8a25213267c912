// Package fleet implements auto-assignment of a drone to a mission: find
// the nearest active base to the mission's coverage area, then the
// highest-battery available drone at that base, falling back to any
// available drone fleet-wide.
package fleet

import (
	"context"
	"sort"

	"github.com/dronesurvey/missioncore/internal/domain"
	"github.com/dronesurvey/missioncore/internal/geo"
	"github.com/dronesurvey/missioncore/internal/store"
)

// Selector auto-assigns drones to missions.
type Selector struct {
	repo store.Repository
}

// New returns a Selector backed by repo.
func New(repo store.Repository) *Selector {
	return &Selector{repo: repo}
}

// AutoAssign implements spec §4.6: compute the mission's coverage-area
// centroid, find the nearest active base, and pick the highest-battery
// available drone there; fall back to any available drone fleet-wide if
// the nearest base has none. Returns domain.ErrNoDroneAvailable if no
// drone anywhere is available.
func (s *Selector) AutoAssign(ctx context.Context, mission domain.Mission) (domain.Drone, error) {
	center, hasCenter := missionCentroid(mission)

	if hasCenter {
		base, err := s.nearestActiveBase(ctx, center)
		if err == nil {
			if d, ok, err := s.bestAvailableAtBase(ctx, base.BaseID); err != nil {
				return domain.Drone{}, err
			} else if ok {
				return d, nil
			}
		}
	}

	d, ok, err := s.bestAvailableAnywhere(ctx)
	if err != nil {
		return domain.Drone{}, err
	}
	if !ok {
		return domain.Drone{}, domain.NewNoDroneAvailable("no available drone for mission " + mission.MissionID)
	}
	return d, nil
}

// missionCentroid returns the centroid of the mission's coverage polygon,
// or false if the polygon has no vertices.
func missionCentroid(mission domain.Mission) (geo.Point, bool) {
	coords := mission.CoverageArea.Coordinates
	if len(coords) == 0 {
		return geo.Point{}, false
	}
	pts := make([]geo.Point, 0, len(coords))
	for _, c := range coords {
		pts = append(pts, geo.Point{Lng: geo.NormalizeLongitude(c[0]), Lat: c[1]})
	}
	return geo.Centroid(pts), true
}

// nearestActiveBase returns the active base closest to center.
func (s *Selector) nearestActiveBase(ctx context.Context, center geo.Point) (domain.Base, error) {
	bases, err := s.repo.ListActiveBases(ctx)
	if err != nil {
		return domain.Base{}, err
	}
	if len(bases) == 0 {
		return domain.Base{}, domain.NewNotFound("no active base")
	}

	best := bases[0]
	bestDist := geo.Distance(center, geo.Point{Lat: best.Location.Lat, Lng: best.Location.Lng})
	for _, b := range bases[1:] {
		d := geo.Distance(center, geo.Point{Lat: b.Location.Lat, Lng: b.Location.Lng})
		if d < bestDist {
			best, bestDist = b, d
		}
	}
	return best, nil
}

// bestAvailableAtBase returns the highest-battery available drone at
// baseID, or ok=false if none.
func (s *Selector) bestAvailableAtBase(ctx context.Context, baseID string) (domain.Drone, bool, error) {
	drones, err := s.repo.ListDronesByBase(ctx, baseID)
	if err != nil {
		return domain.Drone{}, false, err
	}
	return highestBattery(filterStatus(drones, domain.DroneAvailable))
}

// bestAvailableAnywhere returns the highest-battery available drone
// fleet-wide, or ok=false if none.
func (s *Selector) bestAvailableAnywhere(ctx context.Context) (domain.Drone, bool, error) {
	drones, err := s.repo.ListDronesByStatus(ctx, domain.DroneAvailable)
	if err != nil {
		return domain.Drone{}, false, err
	}
	return highestBattery(drones)
}

func filterStatus(drones []domain.Drone, status domain.DroneStatus) []domain.Drone {
	var out []domain.Drone
	for _, d := range drones {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out
}

func highestBattery(drones []domain.Drone) (domain.Drone, bool, error) {
	if len(drones) == 0 {
		return domain.Drone{}, false, nil
	}
	sort.Slice(drones, func(i, j int) bool { return drones[i].BatteryLevel > drones[j].BatteryLevel })
	return drones[0], true, nil
}
