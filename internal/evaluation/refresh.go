package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/realjkeee/zenbot/internal/report"
	"github.com/realjkeee/zenbot/pkg/logger"
)

// Refresher backfills market data through the evaluator once per generation
type Refresher struct {
	builder CommandBuilder
	runner  Runner
	sim     SimConfig
	log     *logger.Logger
}

// NewRefresher creates a backfill refresher
func NewRefresher(builder CommandBuilder, runner Runner, sim SimConfig, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.Nop()
	}
	return &Refresher{builder: builder, runner: runner, sim: sim, log: log.Component("refresher")}
}

// Refresh runs the backfill synchronously; only success/failure matters
func (r *Refresher) Refresh(ctx context.Context) error {
	cmd := r.builder.Backfill(r.sim)
	r.log.WithField("command", cmd.String()).Info("Backfilling (might take some time) ...")

	start := time.Now()
	out, err := r.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("backfill failed: %w (stderr: %s)", err, report.Tail(out.Stderr, 500))
	}

	r.log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("Backfill complete")
	return nil
}

// NoopRefresher skips the backfill (--skip-backfill)
type NoopRefresher struct{}

// Refresh does nothing
func (NoopRefresher) Refresh(context.Context) error { return nil }
