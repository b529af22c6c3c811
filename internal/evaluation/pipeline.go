package evaluation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/realjkeee/zenbot/internal/contracts"
	"github.com/realjkeee/zenbot/internal/genome"
	"github.com/realjkeee/zenbot/internal/report"
	"github.com/realjkeee/zenbot/pkg/logger"
)

// Task is one phenotype to evaluate, with an explicit identity
type Task struct {
	ID        int // unique within a batch
	Strategy  *genome.Strategy
	Index     int // member index in the owning population
	Phenotype *genome.Phenotype
}

// Outcome is the by-value result of one task.
// Phenotype is a copy: evaluated on success, stripped on failure.
type Outcome struct {
	Task      Task
	Phenotype *genome.Phenotype
	Result    *contracts.Result
	Err       error
	Command   Command
	Duration  time.Duration
}

// OK reports whether the task produced an evaluation
func (o Outcome) OK() bool {
	return o.Err == nil && o.Result != nil
}

// Observer is notified of every finished task (metrics, UIs)
type Observer interface {
	ObserveOutcome(o Outcome)
}

// Options tunes the pipeline
type Options struct {
	Workers   int     // 0 = runtime.NumCPU()
	SpawnRate float64 // processes per second, 0 = unlimited
}

// Pipeline turns phenotypes into scored evaluations under a bounded worker budget
// ⭐ SSOT: 평가 동시성 제한은 Pipeline 하나에서만 관리
type Pipeline struct {
	builder   CommandBuilder
	runner    Runner
	sim       SimConfig
	workers   int
	limiter   *rate.Limiter
	observers []Observer
	log       *logger.Logger
}

// NewPipeline creates a pipeline
func NewPipeline(builder CommandBuilder, runner Runner, sim SimConfig, opts Options, log *logger.Logger) *Pipeline {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var limiter *rate.Limiter
	if opts.SpawnRate > 0 {
		burst := int(opts.SpawnRate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.SpawnRate), burst)
	}

	if log == nil {
		log = logger.Nop()
	}

	return &Pipeline{
		builder: builder,
		runner:  runner,
		sim:     sim,
		workers: workers,
		limiter: limiter,
		log:     log.Component("pipeline"),
	}
}

// AddObserver registers an outcome observer. Not safe during a batch.
func (p *Pipeline) AddObserver(o Observer) {
	if o != nil {
		p.observers = append(p.observers, o)
	}
}

// Workers returns the concurrency limit
func (p *Pipeline) Workers() int {
	return p.workers
}

// EvaluateBatch runs every task and waits for all of them.
// Failures stay in their own Outcome; the batch never aborts.
// Outcomes are returned sorted by Task.ID.
func (p *Pipeline) EvaluateBatch(ctx context.Context, tasks []Task) []Outcome {
	total := len(tasks)
	if total == 0 {
		return nil
	}

	var seq atomic.Int64
	workers := pool.NewWithResults[Outcome]().WithMaxGoroutines(p.workers)

	for _, task := range tasks {
		task := task
		workers.Go(func() Outcome {
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					return p.finish(Outcome{
						Task:      task,
						Phenotype: task.Phenotype.Strip(),
						Err:       fmt.Errorf("%w: %w", ErrProcess, err),
					})
				}
			}
			return p.evaluate(ctx, task, int(seq.Add(1)), total)
		})
	}

	outcomes := workers.Wait()
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Task.ID < outcomes[j].Task.ID
	})
	return outcomes
}

func (p *Pipeline) evaluate(ctx context.Context, task Task, n, total int) Outcome {
	o := Outcome{Task: task, Phenotype: task.Phenotype.Strip()}
	log := p.log.ForStrategy(task.Strategy.Name)

	cmd, err := p.builder.Sim(p.sim, task.Strategy, task.Phenotype)
	if err != nil {
		o.Err = err
		log.WithError(err).Error("Failed to build evaluator command")
		return p.finish(o)
	}
	o.Command = cmd

	if err := ctx.Err(); err != nil {
		o.Err = fmt.Errorf("%w: %w", ErrProcess, err)
		return p.finish(o)
	}

	p.log.Infof("[ %d/%d ] %s", n, total, cmd)

	start := time.Now()
	out, err := p.runner.Run(ctx, cmd)
	o.Duration = time.Since(start)

	if err != nil {
		if !errors.Is(err, ErrProcess) {
			err = fmt.Errorf("%w: %w", ErrProcess, err)
		}
		o.Err = err
		log.WithError(err).WithFields(map[string]interface{}{
			"command":   cmd.String(),
			"exit_code": out.ExitCode,
			"stderr":    report.Tail(out.Stderr, report.TailSize),
		}).Warn("Evaluator failed")
		return p.finish(o)
	}

	result, err := report.Parse(out.Stdout, p.sim.CurrencyCapital)
	if err != nil {
		o.Err = err
		log.WithError(err).WithFields(map[string]interface{}{
			"command": cmd.String(),
			"output":  report.Tail(out.Stdout, report.TailSize),
		}).Warn("Bad output detected")
		return p.finish(o)
	}

	if result.Strategy == "" {
		result.Strategy = task.Strategy.Name
	}
	o.Result = result
	o.Phenotype = task.Phenotype.WithEvaluation(result)

	if log.DebugEnabled() {
		fitness, _ := o.Phenotype.Fitness()
		log.WithFields(map[string]interface{}{
			"fitness":     contracts.Round(fitness, contracts.DerivedPrecision),
			"vs_buy_hold": result.VsBuyHold,
			"duration_ms": o.Duration.Milliseconds(),
		}).Debug("Evaluation complete")
	}

	return p.finish(o)
}

func (p *Pipeline) finish(o Outcome) Outcome {
	for _, obs := range p.observers {
		obs.ObserveOutcome(o)
	}
	return o
}
