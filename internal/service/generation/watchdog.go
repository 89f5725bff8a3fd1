package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Watchdog periodically fails generations that outlived the stale bound.
// Its first tick also sweeps jobs left running by a previous process.
type Watchdog struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewWatchdog schedules orchestrator.SweepStale every interval
func NewWatchdog(orchestrator *Orchestrator, interval time.Duration, logger *slog.Logger) (*Watchdog, error) {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		if _, err := orchestrator.SweepStale(ctx); err != nil {
			logger.Error("watchdog sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule watchdog: %w", err)
	}

	return &Watchdog{cron: c, logger: logger}, nil
}

// Start runs the schedule in the background
func (w *Watchdog) Start() {
	w.cron.Start()
	w.logger.Info("generation watchdog started")
}

// Stop stops scheduling and waits for a running sweep to finish
func (w *Watchdog) Stop(ctx context.Context) error {
	select {
	case <-w.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
