package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/realjkeee/zenbot/internal/contracts"
	"github.com/realjkeee/zenbot/internal/evaluation"
	"github.com/realjkeee/zenbot/internal/genome"
	"github.com/realjkeee/zenbot/internal/population"
	"github.com/realjkeee/zenbot/pkg/logger"
)

// ErrRefresh marks a generation abandoned because the data refresh failed
var ErrRefresh = errors.New("data refresh failed")

// Evaluator runs one generation's tasks to completion
type Evaluator interface {
	EvaluateBatch(ctx context.Context, tasks []evaluation.Task) []evaluation.Outcome
}

// Config holds generation loop settings
type Config struct {
	RunID              string
	MaxGenerations     int           // 0 = run until cancelled
	RetryDelay         time.Duration // wait after a failed refresh
	MaxRefreshFailures int           // consecutive refresh failures before giving up, 0 = never
}

// Option configures a Loop
type Option func(*Loop)

// WithSinks adds result sinks (CSV, Postgres, Redis)
func WithSinks(sinks ...contracts.ResultSink) Option {
	return func(l *Loop) { l.sinks = append(l.sinks, sinks...) }
}

// WithCheckpointStores adds checkpoint stores (JSON file, Redis)
func WithCheckpointStores(stores ...contracts.CheckpointStore) Option {
	return func(l *Loop) { l.checkpoints = append(l.checkpoints, stores...) }
}

// WithObservers adds loop event observers
func WithObservers(observers ...Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, observers...) }
}

// WithOutput sets where the best-of-generation table is printed (nil = nowhere)
func WithOutput(w io.Writer) Option {
	return func(l *Loop) { l.out = w }
}

// WithClock overrides time.Now (tests)
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// Loop runs Idle → RefreshingData → Evaluating → Persisting → Evolving → Idle.
// Populations are only mutated by the goroutine calling Run; readers use Status.
// ⭐ SSOT: 세대 루프 조율은 여기서만
type Loop struct {
	cfg         Config
	evaluator   Evaluator
	refresher   contracts.DataRefresher
	populations []*population.Population
	byName      map[string]*population.Population

	sinks       []contracts.ResultSink
	checkpoints []contracts.CheckpointStore
	observers   []Observer
	out         io.Writer
	now         func() time.Time
	log         *logger.Logger

	mu          sync.RWMutex
	state       State
	generation  int
	lastSummary *GenerationSummary
	startedAt   time.Time
}

// NewLoop creates a generation loop over the given populations
func NewLoop(cfg Config, evaluator Evaluator, refresher contracts.DataRefresher, pops []*population.Population, log *logger.Logger, opts ...Option) (*Loop, error) {
	if len(pops) == 0 {
		return nil, genome.ErrNoStrategies
	}
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if refresher == nil {
		refresher = evaluation.NoopRefresher{}
	}
	if log == nil {
		log = logger.Nop()
	}

	l := &Loop{
		cfg:         cfg,
		evaluator:   evaluator,
		refresher:   refresher,
		populations: pops,
		byName:      make(map[string]*population.Population, len(pops)),
		now:         time.Now,
		log:         log.Component("search").ForRun(cfg.RunID),
		generation:  pops[0].Generation(),
	}
	for _, p := range pops {
		name := p.Strategy().Name
		if _, dup := l.byName[name]; dup {
			return nil, fmt.Errorf("duplicate population for strategy %s", name)
		}
		l.byName[name] = p
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run loops until MaxGenerations, cancellation, or too many refresh failures
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	l.startedAt = l.now()
	l.mu.Unlock()

	l.log.WithFields(map[string]interface{}{
		"strategies":      l.strategyNames(),
		"population":      l.populations[0].Size(),
		"max_generations": l.cfg.MaxGenerations,
	}).Info("Starting generation loop")

	completed := 0
	refreshFailures := 0

	for l.cfg.MaxGenerations == 0 || completed < l.cfg.MaxGenerations {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := l.RunGeneration(ctx)
		switch {
		case err == nil:
			completed++
			refreshFailures = 0
		case errors.Is(err, ErrRefresh):
			refreshFailures++
			if l.cfg.MaxRefreshFailures > 0 && refreshFailures >= l.cfg.MaxRefreshFailures {
				return fmt.Errorf("giving up after %d consecutive refresh failures: %w", refreshFailures, err)
			}
			l.log.WithError(err).Warnf("Generation abandoned, retrying in %s", l.cfg.RetryDelay)
			if err := sleep(ctx, l.cfg.RetryDelay); err != nil {
				return err
			}
		default:
			return err
		}
	}

	l.log.WithField("generations", completed).Info("Generation loop finished")
	return nil
}

// RunGeneration runs exactly one cycle. A refresh failure returns ErrRefresh
// without evaluating; cancellation during evaluation returns the context error
// without persisting or evolving.
func (l *Loop) RunGeneration(ctx context.Context) (*GenerationSummary, error) {
	gen := l.Generation()
	started := l.now()
	log := l.log.ForGeneration(gen)
	log.Infof("=== Simulating generation %d ===", gen)

	// RefreshingData
	l.setState(StateRefreshingData)
	if err := l.refresher.Refresh(ctx); err != nil {
		l.setState(StateIdle)
		l.emit(Event{Type: EventRefreshFailed, Generation: gen, Error: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrRefresh, err)
	}

	// Evaluating
	l.setState(StateEvaluating)
	tasks := l.tasks()
	outcomes := l.evaluator.EvaluateBatch(ctx, tasks)
	if err := ctx.Err(); err != nil {
		l.setState(StateIdle)
		return nil, err
	}
	failedBy, err := l.apply(outcomes)
	if err != nil {
		l.setState(StateIdle)
		return nil, err
	}
	log.Info("Generation complete, saving results...")

	// Persisting
	l.setState(StatePersisting)
	record := l.record(gen, started, outcomes)
	l.persist(ctx, record, l.snapshot(gen))

	summary := summarize(record, l.strategyNames(), l.sizes(), failedBy)
	l.report(summary)

	// Evolving
	l.setState(StateEvolving)
	l.mu.Lock()
	for _, p := range l.populations {
		p.Evolve()
	}
	l.generation++
	l.lastSummary = summary
	l.mu.Unlock()

	l.setState(StateIdle)
	l.emit(Event{Type: EventGeneration, Generation: gen, Summary: summary})
	return summary, nil
}

// tasks flattens every member of every population into identified tasks
func (l *Loop) tasks() []evaluation.Task {
	var tasks []evaluation.Task
	for _, p := range l.populations {
		for i, m := range p.Members() {
			tasks = append(tasks, evaluation.Task{
				ID:        len(tasks),
				Strategy:  p.Strategy(),
				Index:     i,
				Phenotype: m,
			})
		}
	}
	return tasks
}

// apply writes outcomes back into the owning populations by task identity
func (l *Loop) apply(outcomes []evaluation.Outcome) (map[string]int, error) {
	failed := make(map[string]int)

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, o := range outcomes {
		name := o.Task.Strategy.Name
		p, ok := l.byName[name]
		if !ok {
			return nil, fmt.Errorf("outcome for unknown strategy %s", name)
		}
		if err := p.SetMember(o.Task.Index, o.Phenotype); err != nil {
			return nil, err
		}
		if !o.OK() {
			failed[name]++
		}
	}
	return failed, nil
}

// record collects the successful outcomes sorted best first
func (l *Loop) record(gen int, started time.Time, outcomes []evaluation.Outcome) *contracts.GenerationRecord {
	var ok []evaluation.Outcome
	for _, o := range outcomes {
		if o.OK() {
			ok = append(ok, o)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool {
		return genome.Beats(ok[i].Phenotype, ok[j].Phenotype)
	})

	rec := &contracts.GenerationRecord{
		RunID:      l.cfg.RunID,
		Generation: gen,
		StartedAt:  started,
		FinishedAt: l.now(),
		Dispatched: len(outcomes),
		Failed:     len(outcomes) - len(ok),
		Results:    make([]contracts.ScoredResult, 0, len(ok)),
	}
	for _, o := range ok {
		fitness, _ := o.Phenotype.Fitness()
		rec.Results = append(rec.Results, contracts.ScoredResult{
			Strategy: o.Task.Strategy.Name,
			Key:      o.Phenotype.Key(),
			Genes:    o.Phenotype.GeneSet(),
			Fitness:  fitness,
			Result:   *o.Result,
		})
	}
	return rec
}

func (l *Loop) snapshot(gen int) *contracts.Snapshot {
	s := &contracts.Snapshot{
		RunID:       l.cfg.RunID,
		Generation:  gen,
		SavedAt:     l.now(),
		Populations: make(map[string][]contracts.GeneSet, len(l.populations)),
	}
	for _, p := range l.populations {
		s.Populations[p.Strategy().Name] = p.Snapshot()
	}
	return s
}

// persist is best effort: every failure is logged and the loop continues
func (l *Loop) persist(ctx context.Context, record *contracts.GenerationRecord, snapshot *contracts.Snapshot) {
	for _, sink := range l.sinks {
		if err := sink.WriteResults(ctx, record); err != nil {
			l.log.WithError(err).WithField("sink", sink.Name()).Error("Failed to write results")
		}
	}
	for _, store := range l.checkpoints {
		if err := store.SaveCheckpoint(ctx, snapshot); err != nil {
			l.log.WithError(err).WithField("store", store.Name()).Error("Failed to save checkpoint")
		}
	}
}

func (l *Loop) report(summary *GenerationSummary) {
	for _, s := range summary.Strategies {
		if s.Best == nil {
			l.log.ForStrategy(s.Strategy).Warnf("(%s) no successful evaluation this generation", s.Strategy)
			continue
		}
		l.log.Infof("(%s) VS Buy and Hold: %v End Balance: %v", s.Strategy, s.Best.Result.VsBuyHold, s.Best.Result.EndBalance)
	}
	if l.out != nil {
		summary.Render(l.out)
	}
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	gen := l.generation
	l.mu.Unlock()

	l.emit(Event{Type: EventState, Generation: gen, State: s.String()})
}

func (l *Loop) emit(e Event) {
	e.RunID = l.cfg.RunID
	e.Time = l.now()
	if e.State == "" {
		e.State = l.State().String()
	}
	for _, o := range l.observers {
		o.OnEvent(e)
	}
}

func (l *Loop) strategyNames() []string {
	names := make([]string, len(l.populations))
	for i, p := range l.populations {
		names[i] = p.Strategy().Name
	}
	return names
}

func (l *Loop) sizes() map[string]int {
	out := make(map[string]int, len(l.populations))
	for _, p := range l.populations {
		out[p.Strategy().Name] = p.Size()
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
