// Package memory implements store.Repository entirely in process memory,
// the only Repository backend the spec requires (persistent storage
// drivers are an explicit Non-goal). Each entity kind is guarded by its own
// sync.RWMutex; there are no cross-entity transactions, so callers that
// need atomicity across entities (e.g. "move drone to in_flight AND
// create mission") must sequence the calls themselves and handle partial
// failure, exactly as spec §4.3/§5 describe.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dronesurvey/missioncore/internal/domain"
)

// Store is an in-memory store.Repository.
type Store struct {
	dronesMu sync.RWMutex
	drones   map[string]domain.Drone

	basesMu sync.RWMutex
	bases   map[string]domain.Base

	missionsMu sync.RWMutex
	missions   map[string]domain.Mission

	telemetryMu sync.RWMutex
	telemetry   map[string][]domain.TelemetryPoint // keyed by mission ID

	handoffMu sync.RWMutex
	handoff   []domain.HandoffLog // append-only log, queried by filtering
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{
		drones:    make(map[string]domain.Drone),
		bases:     make(map[string]domain.Base),
		missions:  make(map[string]domain.Mission),
		telemetry: make(map[string][]domain.TelemetryPoint),
	}
}

func (s *Store) CreateDrone(_ context.Context, d domain.Drone) (domain.Drone, error) {
	if d.DroneID == "" {
		d.DroneID = uuid.NewString()
	}
	s.dronesMu.Lock()
	defer s.dronesMu.Unlock()
	if _, exists := s.drones[d.DroneID]; exists {
		return domain.Drone{}, domain.NewValidation("drone " + d.DroneID + " already exists")
	}
	s.drones[d.DroneID] = d
	return d, nil
}

func (s *Store) GetDrone(_ context.Context, droneID string) (domain.Drone, error) {
	s.dronesMu.RLock()
	defer s.dronesMu.RUnlock()
	d, ok := s.drones[droneID]
	if !ok {
		return domain.Drone{}, domain.NewNotFound("drone " + droneID + " not found")
	}
	return d, nil
}

func (s *Store) UpdateDrone(_ context.Context, d domain.Drone) error {
	s.dronesMu.Lock()
	defer s.dronesMu.Unlock()
	if _, ok := s.drones[d.DroneID]; !ok {
		return domain.NewNotFound("drone " + d.DroneID + " not found")
	}
	s.drones[d.DroneID] = d
	return nil
}

func (s *Store) ListDrones(_ context.Context) ([]domain.Drone, error) {
	s.dronesMu.RLock()
	defer s.dronesMu.RUnlock()
	out := make([]domain.Drone, 0, len(s.drones))
	for _, d := range s.drones {
		out = append(out, d)
	}
	sortDronesByID(out)
	return out, nil
}

func (s *Store) ListDronesByStatus(_ context.Context, status domain.DroneStatus) ([]domain.Drone, error) {
	s.dronesMu.RLock()
	defer s.dronesMu.RUnlock()
	var out []domain.Drone
	for _, d := range s.drones {
		if d.Status == status {
			out = append(out, d)
		}
	}
	sortDronesByID(out)
	return out, nil
}

func (s *Store) ListDronesByBase(_ context.Context, baseID string) ([]domain.Drone, error) {
	s.dronesMu.RLock()
	defer s.dronesMu.RUnlock()
	var out []domain.Drone
	for _, d := range s.drones {
		if d.BaseID == baseID {
			out = append(out, d)
		}
	}
	sortDronesByID(out)
	return out, nil
}

func sortDronesByID(ds []domain.Drone) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].DroneID < ds[j].DroneID })
}

func (s *Store) CreateBase(_ context.Context, b domain.Base) (domain.Base, error) {
	if b.BaseID == "" {
		b.BaseID = uuid.NewString()
	}
	s.basesMu.Lock()
	defer s.basesMu.Unlock()
	if _, exists := s.bases[b.BaseID]; exists {
		return domain.Base{}, domain.NewValidation("base " + b.BaseID + " already exists")
	}
	s.bases[b.BaseID] = b
	return b, nil
}

func (s *Store) GetBase(_ context.Context, baseID string) (domain.Base, error) {
	s.basesMu.RLock()
	defer s.basesMu.RUnlock()
	b, ok := s.bases[baseID]
	if !ok {
		return domain.Base{}, domain.NewNotFound("base " + baseID + " not found")
	}
	return b, nil
}

func (s *Store) ListBases(_ context.Context) ([]domain.Base, error) {
	s.basesMu.RLock()
	defer s.basesMu.RUnlock()
	out := make([]domain.Base, 0, len(s.bases))
	for _, b := range s.bases {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseID < out[j].BaseID })
	return out, nil
}

func (s *Store) ListActiveBases(ctx context.Context) ([]domain.Base, error) {
	all, err := s.ListBases(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Base
	for _, b := range all {
		if b.Status == domain.BaseActive {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) CreateMission(_ context.Context, m domain.Mission) (domain.Mission, error) {
	if m.MissionID == "" {
		m.MissionID = uuid.NewString()
	}
	s.missionsMu.Lock()
	defer s.missionsMu.Unlock()
	if _, exists := s.missions[m.MissionID]; exists {
		return domain.Mission{}, domain.NewValidation("mission " + m.MissionID + " already exists")
	}
	s.missions[m.MissionID] = m
	return m, nil
}

func (s *Store) GetMission(_ context.Context, missionID string) (domain.Mission, error) {
	s.missionsMu.RLock()
	defer s.missionsMu.RUnlock()
	m, ok := s.missions[missionID]
	if !ok {
		return domain.Mission{}, domain.NewNotFound("mission " + missionID + " not found")
	}
	return m, nil
}

func (s *Store) UpdateMission(_ context.Context, m domain.Mission) error {
	s.missionsMu.Lock()
	defer s.missionsMu.Unlock()
	if _, ok := s.missions[m.MissionID]; !ok {
		return domain.NewNotFound("mission " + m.MissionID + " not found")
	}
	s.missions[m.MissionID] = m
	return nil
}

func (s *Store) DeleteMission(_ context.Context, missionID string) error {
	s.missionsMu.Lock()
	defer s.missionsMu.Unlock()
	if _, ok := s.missions[missionID]; !ok {
		return domain.NewNotFound("mission " + missionID + " not found")
	}
	delete(s.missions, missionID)
	return nil
}

func (s *Store) ListMissions(_ context.Context) ([]domain.Mission, error) {
	s.missionsMu.RLock()
	defer s.missionsMu.RUnlock()
	out := make([]domain.Mission, 0, len(s.missions))
	for _, m := range s.missions {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MissionID < out[j].MissionID })
	return out, nil
}

func (s *Store) ListMissionsByStatus(ctx context.Context, status domain.MissionStatus) ([]domain.Mission, error) {
	all, err := s.ListMissions(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Mission
	for _, m := range all {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) AppendTelemetry(_ context.Context, p domain.TelemetryPoint) error {
	s.telemetryMu.Lock()
	defer s.telemetryMu.Unlock()
	s.telemetry[p.MissionID] = append(s.telemetry[p.MissionID], p)
	return nil
}

// QueryTelemetry returns points newest-first, capped at limit (0 means
// unbounded).
func (s *Store) QueryTelemetry(_ context.Context, missionID string, limit int) ([]domain.TelemetryPoint, error) {
	s.telemetryMu.RLock()
	defer s.telemetryMu.RUnlock()
	pts := s.telemetry[missionID]
	var out []domain.TelemetryPoint
	for i := len(pts) - 1; i >= 0; i-- {
		out = append(out, pts[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) AppendHandoffLog(_ context.Context, h domain.HandoffLog) error {
	s.handoffMu.Lock()
	defer s.handoffMu.Unlock()
	s.handoff = append(s.handoff, h)
	return nil
}

func (s *Store) QueryHandoffHistory(_ context.Context, missionID string) ([]domain.HandoffLog, error) {
	s.handoffMu.RLock()
	defer s.handoffMu.RUnlock()
	var out []domain.HandoffLog
	for _, h := range s.handoff {
		if h.MissionID == missionID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) QueryDroneActivity(_ context.Context, droneID string, limit int) ([]domain.HandoffLog, error) {
	s.handoffMu.RLock()
	defer s.handoffMu.RUnlock()
	var out []domain.HandoffLog
	for i := len(s.handoff) - 1; i >= 0; i-- {
		h := s.handoff[i]
		if h.OutgoingDroneID == droneID || h.IncomingDroneID == droneID {
			out = append(out, h)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
