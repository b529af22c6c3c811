package jobs

import (
	"context"

	"github.com/realjkeee/zenbot/internal/search"
	"github.com/realjkeee/zenbot/pkg/logger"
)

// StatusSource provides a snapshot of the running search
type StatusSource interface {
	Status() search.Status
}

// ProgressReportJob periodically logs how far the search got
type ProgressReportJob struct {
	source StatusSource
	logger *logger.Logger
}

// NewProgressReportJob creates a new progress report job
func NewProgressReportJob(source StatusSource, log *logger.Logger) *ProgressReportJob {
	return &ProgressReportJob{
		source: source,
		logger: log,
	}
}

// Name returns the job name
func (j *ProgressReportJob) Name() string {
	return "progress_report"
}

// Schedule returns the cron schedule (every 10 minutes)
func (j *ProgressReportJob) Schedule() string {
	return "0 */10 * * * *"
}

// Run logs one line per population
func (j *ProgressReportJob) Run(ctx context.Context) error {
	st := j.source.Status()

	for _, p := range st.Populations {
		fields := map[string]interface{}{
			"run_id":     st.RunID,
			"state":      st.State,
			"generation": st.Generation,
			"strategy":   p.Strategy,
			"evaluated":  p.Evaluated,
			"size":       p.Size,
		}
		if p.Best != nil {
			fields["best_fitness"] = p.Best.Fitness
			fields["best_vs_buy_hold"] = p.Best.Result.VsBuyHold
			fields["best_end_balance"] = p.Best.Result.EndBalance
		}
		j.logger.WithFields(fields).Info("Search progress")
	}
	return nil
}
