// Package charging implements the recharge lifecycle a drone enters after
// returning to base: linear battery restoration until 100%, then back to
// available. Grounded on the original system's charge_drone_task/
// charge_drone_sync, re-architected as a context-cancellable goroutine
// per drone instead of a Celery task polling mission.status.
package charging

import (
	"context"
	"log"
	"time"

	"github.com/dronesurvey/missioncore/internal/domain"
	"github.com/dronesurvey/missioncore/internal/store"
)

// Worker recharges a single drone.
type Worker struct {
	repo            store.Repository
	logger          *log.Logger
	tickInterval    time.Duration
	ratePerSecond   float64
	maxTicks        int
}

// Config bundles a Worker's tunables, taken from config.SimConfig by the
// caller.
type Config struct {
	TickInterval  time.Duration
	RatePerSecond float64
	MaxTicks      int
}

// New returns a Worker using cfg's tick interval, charge rate, and tick
// cap.
func New(repo store.Repository, logger *log.Logger, cfg Config) *Worker {
	return &Worker{repo: repo, logger: logger, tickInterval: cfg.TickInterval, ratePerSecond: cfg.RatePerSecond, maxTicks: cfg.MaxTicks}
}

// Run charges droneID until it reaches 100% battery, is preempted (its
// status changes away from charging), the context is cancelled, or
// maxTicks iterations elapse — whichever comes first. Per spec §4.9 this
// is a hard timeout, not an error: Run returns nil in every case except a
// repository failure.
func (w *Worker) Run(ctx context.Context, droneID string) error {
	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for tick := 0; tick < w.maxTicks; tick++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		d, err := w.repo.GetDrone(ctx, droneID)
		if err != nil {
			return err
		}
		if d.Status != domain.DroneCharging {
			w.logger.Printf("charging: drone %s preempted (status=%s), stopping", droneID, d.Status)
			return nil
		}

		d.BatteryLevel += w.ratePerSecond * w.tickInterval.Seconds()
		if d.BatteryLevel >= 100 {
			d.BatteryLevel = 100
			d.Status = domain.DroneAvailable
		}

		if err := w.repo.UpdateDrone(ctx, d); err != nil {
			return err
		}

		if d.Status == domain.DroneAvailable {
			return nil
		}
	}

	w.logger.Printf("charging: drone %s hit max-tick cap before reaching 100%%", droneID)
	return nil
}
