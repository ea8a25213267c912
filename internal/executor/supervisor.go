package executor

import (
	"context"
	"log"
	"sync"

	"github.com/dronesurvey/missioncore/internal/domain"
	"github.com/dronesurvey/missioncore/internal/store"
)

// Supervisor tracks the running context of every mission an Executor has
// started, and restarts executors for missions still in_progress at
// process start — the crash-recovery path spec §8's Simulator-resume
// property and §9's Design Notes call for explicitly ("a process-scoped
// supervisor that... restarts failed executors"). Grounded on the
// teacher's heartbeat-goroutine lifecycle tracking in mavlink/client.go,
// generalized from one connection's heartbeat to one goroutine per
// mission.
type Supervisor struct {
	executor *Executor
	repo     store.Repository
	logger   *log.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewSupervisor returns a Supervisor driving executor.
func NewSupervisor(executor *Executor, repo store.Repository, logger *log.Logger) *Supervisor {
	return &Supervisor{executor: executor, repo: repo, logger: logger, cancels: make(map[string]context.CancelFunc)}
}

// Start begins executing missionID under a context this Supervisor owns,
// replacing any context it was already tracking for that mission.
func (s *Supervisor) Start(ctx context.Context, missionID string) error {
	runCtx, cancel := context.WithCancel(ctx)
	if err := s.executor.Start(runCtx, missionID); err != nil {
		cancel()
		return err
	}
	s.track(missionID, cancel)
	return nil
}

// Resume re-attaches a Supervisor-owned context to a mission already
// in_progress, used both by RecoverInProgress and by direct callers
// restarting a single mission without a full process restart.
func (s *Supervisor) Resume(ctx context.Context, missionID string) error {
	runCtx, cancel := context.WithCancel(ctx)
	if err := s.executor.Resume(runCtx, missionID); err != nil {
		cancel()
		return err
	}
	s.track(missionID, cancel)
	return nil
}

func (s *Supervisor) track(missionID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cancels[missionID]; ok {
		existing()
	}
	s.cancels[missionID] = cancel
}

// Abort cancels missionID's run loop, the cooperative-cancellation path
// the tick loop's ctx.Done case implements.
func (s *Supervisor) Abort(missionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[missionID]; ok {
		cancel()
		delete(s.cancels, missionID)
	}
}

// RecoverInProgress is called once at process start: it lists every
// mission left in_progress (the process exited, crashed, or was
// redeployed mid-flight) and resumes each under a fresh Supervisor-owned
// context, continuing from the persisted waypoint index and progress
// rather than restarting the mission from its first waypoint.
func (s *Supervisor) RecoverInProgress(ctx context.Context) error {
	missions, err := s.repo.ListMissionsByStatus(ctx, domain.MissionInProgress)
	if err != nil {
		return err
	}
	for _, m := range missions {
		if err := s.Resume(ctx, m.MissionID); err != nil {
			s.logger.Printf("supervisor: recover mission %s failed: %v", m.MissionID, err)
		}
	}
	return nil
}

// Shutdown cancels every tracked mission's run loop and blocks until the
// Executor's errgroup.Group confirms all of them have returned, the
// barrier a process exit waits on before the repository is torn down.
func (s *Supervisor) Shutdown() error {
	s.mu.Lock()
	for missionID, cancel := range s.cancels {
		cancel()
		delete(s.cancels, missionID)
	}
	s.mu.Unlock()
	return s.executor.Wait()
}
