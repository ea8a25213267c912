// Command server boots the mission-execution-and-handoff core: it loads
// configuration and the fleet seed, wires every component together, and
// recovers any mission left in_progress from a prior run. There is no
// HTTP/REST surface here (spec §1's Non-goals place that out of scope);
// missionsvc.Service is the Go API a future transport adapter calls into.
// Shutdown is graceful: SIGINT/SIGTERM cancels every running mission's
// tick loop and waits for it to return before exiting, generalizing the
// teacher's handleShutdown from "close MAVLink connections" to "drain
// mission executors".
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dronesurvey/missioncore/internal/bus"
	"github.com/dronesurvey/missioncore/internal/charging"
	"github.com/dronesurvey/missioncore/internal/config"
	"github.com/dronesurvey/missioncore/internal/executor"
	"github.com/dronesurvey/missioncore/internal/fleet"
	"github.com/dronesurvey/missioncore/internal/handoff"
	"github.com/dronesurvey/missioncore/internal/missionsvc"
	"github.com/dronesurvey/missioncore/internal/store/memory"
)

func main() {
	cfg := config.Load()
	logger := log.New(log.Writer(), "[missioncore] ", log.LstdFlags|log.Lshortfile)

	repo := memory.New()
	if err := seedFleet(repo, cfg); err != nil {
		logger.Fatalf("fleet seed load failed: %v", err)
	}

	eventBus := bus.New()
	selector := fleet.New(repo)
	chargingWorker := charging.New(repo, logger, charging.Config{
		TickInterval: cfg.Sim.TickInterval, RatePerSecond: cfg.Sim.ChargeRatePerSecond, MaxTicks: cfg.Sim.ChargingMaxTicks,
	})
	handoffCoordinator := handoff.New(repo, eventBus, chargingWorker, logger, cfg.Sim)
	missionExecutor := executor.New(repo, eventBus, selector, handoffCoordinator, chargingWorker, logger, cfg.Sim)
	supervisor := executor.NewSupervisor(missionExecutor, repo, logger)
	// svc is the Go API a future transport adapter would call into; this
	// process has none to wire it to (spec places the HTTP surface out of
	// scope), so it is constructed only to prove the dependency graph
	// resolves, not held onto.
	_ = missionsvc.New(repo, supervisor, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := supervisor.RecoverInProgress(ctx); err != nil {
		logger.Printf("recover in-progress missions: %v", err)
	}

	logger.Printf("mission core ready on %s (no HTTP surface; see internal/missionsvc)", cfg.ServerAddr())
	waitForShutdown(logger, supervisor)
}

// seedFleet loads the configured fleet seed file and persists its bases
// and drones into repo, the same bootstrap step the teacher's
// config.LoadDroneRegistry performed for a single drone.
func seedFleet(repo *memory.Store, cfg *config.Config) error {
	seed, err := config.LoadFleetSeed(cfg.Server.FleetSeedPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, b := range seed.ToDomainBases() {
		if _, err := repo.CreateBase(ctx, b); err != nil {
			return err
		}
	}
	for _, d := range seed.ToDomainDrones() {
		if _, err := repo.CreateDrone(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// waitForShutdown blocks until SIGINT/SIGTERM, then drains every running
// mission's tick loop via Supervisor.Shutdown before returning.
func waitForShutdown(logger *log.Logger, supervisor *executor.Supervisor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Println("shutting down: draining mission executors")
	if err := supervisor.Shutdown(); err != nil {
		logger.Printf("shutdown wait: %v", err)
	}
}
