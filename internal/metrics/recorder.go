package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/realjkeee/zenbot/internal/evaluation"
	"github.com/realjkeee/zenbot/internal/search"
)

// Outcome labels
const (
	OutcomeOK           = "ok"
	OutcomeProcessError = "process_error"
	OutcomeParseError   = "parse_error"
	OutcomeCancelled    = "cancelled"
)

// Recorder exports evaluation and generation metrics.
// It observes both the evaluation pipeline (per task, concurrently) and the generation loop.
// ⭐ SSOT: 메트릭 정의는 여기서만
type Recorder struct {
	registry *prometheus.Registry

	evaluations     *prometheus.CounterVec
	evalDuration    *prometheus.HistogramVec
	generations     prometheus.Counter
	generation      prometheus.Gauge
	state           *prometheus.GaugeVec
	refreshFailures prometheus.Counter
	bestFitness     *prometheus.GaugeVec
	meanFitness     *prometheus.GaugeVec
	bestVsBuyHold   *prometheus.GaugeVec
}

// NewRecorder creates a recorder on its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "darwin_evaluations_total",
			Help: "Evaluator runs by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		evalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "darwin_evaluation_duration_seconds",
			Help:    "Wall time of one evaluator run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"strategy"}),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "darwin_generations_total",
			Help: "Completed generations",
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "darwin_generation",
			Help: "Generation currently running",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "darwin_loop_state",
			Help: "1 for the generation loop's current state",
		}, []string{"state"}),
		refreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "darwin_refresh_failures_total",
			Help: "Failed data refreshes",
		}),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "darwin_best_fitness",
			Help: "Best fitness of the last generation",
		}, []string{"strategy"}),
		meanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "darwin_mean_fitness",
			Help: "Mean fitness of the last generation",
		}, []string{"strategy"}),
		bestVsBuyHold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "darwin_best_vs_buy_hold_pct",
			Help: "VS buy hold (%) of the last generation's best phenotype",
		}, []string{"strategy"}),
	}

	r.registry.MustRegister(
		r.evaluations, r.evalDuration, r.generations, r.generation, r.state,
		r.refreshFailures, r.bestFitness, r.meanFitness, r.bestVsBuyHold,
	)
	return r
}

// Registry exposes the underlying registry (tests, extra collectors)
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveOutcome implements evaluation.Observer
func (r *Recorder) ObserveOutcome(o evaluation.Outcome) {
	strategy := o.Task.Strategy.Name
	r.evaluations.WithLabelValues(strategy, Classify(o)).Inc()
	if o.Duration > 0 {
		r.evalDuration.WithLabelValues(strategy).Observe(o.Duration.Seconds())
	}
}

// OnEvent implements search.Observer
func (r *Recorder) OnEvent(e search.Event) {
	switch e.Type {
	case search.EventState:
		r.generation.Set(float64(e.Generation))
		r.state.Reset()
		r.state.WithLabelValues(e.State).Set(1)
	case search.EventRefreshFailed:
		r.refreshFailures.Inc()
	case search.EventGeneration:
		r.generations.Inc()
		if e.Summary == nil {
			return
		}
		for _, s := range e.Summary.Strategies {
			if s.Best == nil {
				continue
			}
			r.bestFitness.WithLabelValues(s.Strategy).Set(s.Best.Fitness)
			r.meanFitness.WithLabelValues(s.Strategy).Set(s.MeanFitness)
			r.bestVsBuyHold.WithLabelValues(s.Strategy).Set(s.Best.Result.VsBuyHold)
		}
	}
}

// Classify maps an outcome to its metric label
func Classify(o evaluation.Outcome) string {
	switch {
	case o.OK():
		return OutcomeOK
	case errors.Is(o.Err, context.Canceled), errors.Is(o.Err, context.DeadlineExceeded):
		return OutcomeCancelled
	case errors.Is(o.Err, evaluation.ErrProcess):
		return OutcomeProcessError
	default:
		return OutcomeParseError
	}
}
