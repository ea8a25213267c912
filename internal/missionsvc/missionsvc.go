// Package missionsvc exposes the mission-control operations spec §6 names
// as the surface a collaborating HTTP layer would call: create/update/
// delete a mission, start/pause/resume/abort it, regenerate its flight
// path, and query its telemetry/handoff history. It holds no transport of
// its own (an HTTP/REST surface is out of scope); it is the Go API a
// future transport adapter would wrap, grounded on the teacher's
// services package shape (one method per RPC, validating input then
// delegating to a component) with the Connect-RPC framing stripped out.
package missionsvc

import (
	"context"
	"log"
	"time"

	"github.com/dronesurvey/missioncore/internal/domain"
	"github.com/dronesurvey/missioncore/internal/executor"
	"github.com/dronesurvey/missioncore/internal/flightplan"
	"github.com/dronesurvey/missioncore/internal/store"
)

// Service implements spec §6's mission-control operations.
type Service struct {
	repo       store.Repository
	supervisor *executor.Supervisor
	logger     *log.Logger
}

// New returns a Service backed by repo and supervisor.
func New(repo store.Repository, supervisor *executor.Supervisor, logger *log.Logger) *Service {
	return &Service{repo: repo, supervisor: supervisor, logger: logger}
}

// CreateInput bundles the fields a caller supplies when defining a new
// mission; FlightPath, Status and Phase are always computed, never
// accepted from the caller.
type CreateInput struct {
	Name         string
	CoverageArea domain.Polygon
	Pattern      domain.Pattern
	Altitude     float64
	Speed        float64
	Overlap      float64
	SurveyType   domain.SurveyType
	AssignedDroneID string // optional; empty means auto-assign at Start
}

// CreateMission validates input and persists a new draft mission. No
// flight path is generated here — GeneratePath plans the survey waypoints
// alone, and Start plans them with travel legs once a drone (and
// therefore a base to plan the travel legs from) is known.
func (s *Service) CreateMission(ctx context.Context, in CreateInput) (domain.Mission, error) {
	if len(in.CoverageArea.Coordinates) < 3 {
		return domain.Mission{}, domain.NewValidation("coverage area must have at least 3 vertices")
	}
	if in.Overlap < 0 || in.Overlap > 90 {
		return domain.Mission{}, domain.NewValidation("overlap must be between 0 and 90")
	}
	if in.Altitude <= 0 {
		return domain.Mission{}, domain.NewValidation("altitude must be positive")
	}
	if in.Speed <= 0 {
		return domain.Mission{}, domain.NewValidation("speed must be positive")
	}
	pattern := in.Pattern
	if pattern == "" {
		pattern = domain.PatternCrosshatch
	}

	mission := domain.Mission{
		Name: in.Name, CoverageArea: in.CoverageArea, Pattern: pattern,
		Altitude: in.Altitude, Speed: in.Speed, Overlap: in.Overlap, SurveyType: in.SurveyType,
		AssignedDroneID: in.AssignedDroneID, Status: domain.MissionDraft, Phase: domain.PhaseIdle,
	}
	return s.repo.CreateMission(ctx, mission)
}

// UpdateInput bundles the fields UpdateMission may change. A nil field
// leaves the corresponding mission field unchanged; a non-nil field
// replaces it after validation.
type UpdateInput struct {
	Name         *string
	CoverageArea *domain.Polygon
	Pattern      *domain.Pattern
	Altitude     *float64
	Speed        *float64
	Overlap      *float64
	SurveyType   *domain.SurveyType
}

// UpdateMission implements spec §6's UpdateMission: rejected outright if
// the mission is in_progress. Only the fields present in in are changed;
// the mission's flight path is left untouched here — callers that
// changed the coverage area or pattern must call GeneratePath to refresh
// it before starting.
func (s *Service) UpdateMission(ctx context.Context, missionID string, in UpdateInput) (domain.Mission, error) {
	mission, err := s.repo.GetMission(ctx, missionID)
	if err != nil {
		return domain.Mission{}, err
	}
	if mission.Status == domain.MissionInProgress {
		return domain.Mission{}, domain.NewIllegalState("mission " + missionID + " cannot be updated while in progress")
	}

	if in.Name != nil {
		mission.Name = *in.Name
	}
	if in.CoverageArea != nil {
		if len(in.CoverageArea.Coordinates) < 3 {
			return domain.Mission{}, domain.NewValidation("coverage area must have at least 3 vertices")
		}
		mission.CoverageArea = *in.CoverageArea
	}
	if in.Pattern != nil {
		mission.Pattern = *in.Pattern
	}
	if in.Altitude != nil {
		if *in.Altitude <= 0 {
			return domain.Mission{}, domain.NewValidation("altitude must be positive")
		}
		mission.Altitude = *in.Altitude
	}
	if in.Speed != nil {
		if *in.Speed <= 0 {
			return domain.Mission{}, domain.NewValidation("speed must be positive")
		}
		mission.Speed = *in.Speed
	}
	if in.Overlap != nil {
		if *in.Overlap < 0 || *in.Overlap > 90 {
			return domain.Mission{}, domain.NewValidation("overlap must be between 0 and 90")
		}
		mission.Overlap = *in.Overlap
	}
	if in.SurveyType != nil {
		mission.SurveyType = *in.SurveyType
	}

	if err := s.repo.UpdateMission(ctx, mission); err != nil {
		return domain.Mission{}, err
	}
	return mission, nil
}

// DeleteMission implements spec §6's DeleteMission: rejected outright if
// the mission is in_progress, the same guard UpdateMission applies.
func (s *Service) DeleteMission(ctx context.Context, missionID string) error {
	mission, err := s.repo.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	if mission.Status == domain.MissionInProgress {
		return domain.NewIllegalState("mission " + missionID + " cannot be deleted while in progress")
	}
	return s.repo.DeleteMission(ctx, missionID)
}

// StartMission hands off to the Supervisor, which owns drone assignment,
// flight-path planning and the tick-loop goroutine's lifetime.
func (s *Service) StartMission(ctx context.Context, missionID string) error {
	return s.supervisor.Start(ctx, missionID)
}

// PauseMission implements spec §4.7's pause behavior: the tick loop
// observes status == paused each reload and skips advancing the
// simulator until resumed, so pausing here is just a status write.
func (s *Service) PauseMission(ctx context.Context, missionID string) error {
	mission, err := s.repo.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	if mission.Status != domain.MissionInProgress {
		return domain.NewIllegalState("mission " + missionID + " cannot be paused from status " + string(mission.Status))
	}
	mission.Status = domain.MissionPaused
	return s.repo.UpdateMission(ctx, mission)
}

// ResumeMission resumes a paused mission. Status is written back to
// in_progress here (so the existing run loop's next reload sees it and
// continues advancing); the loop itself is still alive from Start, so no
// new goroutine is spawned.
func (s *Service) ResumeMission(ctx context.Context, missionID string) error {
	mission, err := s.repo.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	if mission.Status != domain.MissionPaused {
		return domain.NewIllegalState("mission " + missionID + " cannot be resumed from status " + string(mission.Status))
	}
	mission.Status = domain.MissionInProgress
	return s.repo.UpdateMission(ctx, mission)
}

// AbortMission cancels the mission's run loop via the Supervisor, then
// marks the mission aborted and logs the abort reason. The loop's own
// ctx.Done case releases the assigned drone back to available (unless a
// handoff already moved it to returning), so no drone bookkeeping
// happens here.
func (s *Service) AbortMission(ctx context.Context, missionID, reason string) error {
	mission, err := s.repo.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	if mission.Status != domain.MissionInProgress && mission.Status != domain.MissionPaused {
		return domain.NewIllegalState("mission " + missionID + " cannot be aborted from status " + string(mission.Status))
	}

	s.supervisor.Abort(missionID)

	mission.Status = domain.MissionAborted
	mission.AbortReason = reason
	if err := s.repo.UpdateMission(ctx, mission); err != nil {
		return err
	}

	_ = s.repo.AppendHandoffLog(ctx, domain.HandoffLog{
		MissionID: missionID, Timestamp: time.Now(), Kind: domain.HandoffMissionAborted,
		OutgoingDroneID: mission.AssignedDroneID, WaypointIndex: mission.CurrentWaypointIndex,
		Progress: mission.Progress, Reason: reason,
	})
	return nil
}

// GeneratePath implements spec §6's GeneratePath: regenerate waypoints
// only, from the mission's current coverage area/pattern/altitude/
// overlap. It does not include the travel-to-base prefix/suffix Start
// adds once a drone is assigned, since no drone need be assigned yet.
func (s *Service) GeneratePath(ctx context.Context, missionID string) (domain.FlightPath, error) {
	mission, err := s.repo.GetMission(ctx, missionID)
	if err != nil {
		return domain.FlightPath{}, err
	}
	if mission.Status == domain.MissionInProgress {
		return domain.FlightPath{}, domain.NewIllegalState("mission " + missionID + " cannot regenerate its path while in progress")
	}
	if len(mission.CoverageArea.Coordinates) < 3 {
		return domain.FlightPath{}, domain.NewValidation("coverage area must have at least 3 vertices")
	}

	pattern := mission.Pattern
	if pattern == "" {
		pattern = domain.PatternCrosshatch
	}
	fp := flightplan.Plan(flightplan.Params{
		Polygon: mission.CoverageArea, Pattern: pattern, Altitude: mission.Altitude,
		OverlapPct: mission.Overlap, SpeedMS: mission.Speed,
	})

	mission.FlightPath = &fp
	if err := s.repo.UpdateMission(ctx, mission); err != nil {
		return domain.FlightPath{}, err
	}
	return fp, nil
}

// QueryTelemetry returns the most recent limit telemetry points recorded
// for missionID.
func (s *Service) QueryTelemetry(ctx context.Context, missionID string, limit int) ([]domain.TelemetryPoint, error) {
	return s.repo.QueryTelemetry(ctx, missionID, limit)
}

// QueryHandoffHistory returns the full handoff log for missionID, in the
// ascending-time order the repository stores it.
func (s *Service) QueryHandoffHistory(ctx context.Context, missionID string) ([]domain.HandoffLog, error) {
	return s.repo.QueryHandoffHistory(ctx, missionID)
}
