package search

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realjkeee/zenbot/internal/contracts"
	"github.com/realjkeee/zenbot/internal/evaluation"
	"github.com/realjkeee/zenbot/internal/genome"
	"github.com/realjkeee/zenbot/internal/population"
)

// stubEvaluator scores tasks through fn; a nil result means the evaluation failed
type stubEvaluator struct {
	fn      func(t evaluation.Task) *contracts.Result
	batches int
	onBatch func()
}

func (s *stubEvaluator) EvaluateBatch(ctx context.Context, tasks []evaluation.Task) []evaluation.Outcome {
	s.batches++
	if s.onBatch != nil {
		s.onBatch()
	}
	out := make([]evaluation.Outcome, len(tasks))
	for i, t := range tasks {
		o := evaluation.Outcome{Task: t}
		if r := s.fn(t); r != nil {
			o.Result = r
			o.Phenotype = t.Phenotype.WithEvaluation(r)
		} else {
			o.Err = errors.New("bad output")
			o.Phenotype = t.Phenotype.Strip()
		}
		out[i] = o
	}
	return out
}

type memSink struct {
	mu      sync.Mutex
	records []*contracts.GenerationRecord
	err     error
}

func (m *memSink) Name() string { return "mem" }

func (m *memSink) WriteResults(_ context.Context, r *contracts.GenerationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return m.err
}

type memCheckpoints struct {
	snapshots []*contracts.Snapshot
}

func (m *memCheckpoints) Name() string { return "mem" }

func (m *memCheckpoints) SaveCheckpoint(_ context.Context, s *contracts.Snapshot) error {
	m.snapshots = append(m.snapshots, s)
	return nil
}

type recordingObserver struct {
	events []Event
}

func (r *recordingObserver) OnEvent(e Event) { r.events = append(r.events, e) }

type flakyRefresher struct {
	fails int
	calls int
}

func (f *flakyRefresher) Refresh(context.Context) error {
	f.calls++
	if f.calls <= f.fails {
		return errors.New("exchange unavailable")
	}
	return nil
}

func newPopulations(t *testing.T, size int, names ...string) []*population.Population {
	t.Helper()
	reg := genome.DefaultRegistry()
	var pops []*population.Population
	for i, name := range names {
		s, ok := reg.Get(name)
		require.True(t, ok)
		p, err := population.New(s, population.DefaultOptions(size), rand.New(rand.NewSource(int64(i+1))))
		require.NoError(t, err)
		pops = append(pops, p)
	}
	return pops
}

// scoreByPeriod gives every member a deterministic score; members with an odd
// period fail
func scoreByPeriod(t evaluation.Task) *contracts.Result {
	period := t.Phenotype.Genes["period"].Int()
	if period%2 == 1 {
		return nil
	}
	r := &contracts.Result{
		StartCapital: 1000,
		EndBalance:   1000 + float64(period),
		BuyHold:      1000,
		VsBuyHold:    float64(period) / 10,
		Wins:         2,
		Losses:       1,
		Days:         10,
	}
	r.Derive()
	return r
}

func TestRunGeneration_EndToEnd(t *testing.T) {
	pops := newPopulations(t, 4, "macd")
	sink := &memSink{}
	checkpoints := &memCheckpoints{}
	obs := &recordingObserver{}
	var out bytes.Buffer

	eval := &stubEvaluator{fn: scoreByPeriod}
	loop, err := NewLoop(Config{RunID: "test"}, eval, nil, pops, nil,
		WithSinks(sink), WithCheckpointStores(checkpoints), WithObservers(obs), WithOutput(&out))
	require.NoError(t, err)

	before := pops[0].Members()

	summary, err := loop.RunGeneration(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, 1, rec.Generation)
	assert.Equal(t, 4, rec.Dispatched)

	ok := 0
	for _, m := range before {
		if m.Genes["period"].Int()%2 == 0 {
			ok++
		}
	}
	assert.Len(t, rec.Results, ok)
	assert.Equal(t, 4-ok, rec.Failed)
	for i := 1; i < len(rec.Results); i++ {
		assert.GreaterOrEqual(t, rec.Results[i-1].Fitness, rec.Results[i].Fitness, "results sorted best first")
	}

	// checkpoint holds the evaluated generation's members
	require.Len(t, checkpoints.snapshots, 1)
	snap := checkpoints.snapshots[0]
	assert.Equal(t, 4, snap.Size())
	var snapKeys, beforeKeys []string
	for _, gs := range snap.Populations["macd"] {
		p, err := genome.FromGeneSet(pops[0].Strategy().Schema, gs)
		require.NoError(t, err)
		snapKeys = append(snapKeys, p.Key())
	}
	for _, m := range before {
		beforeKeys = append(beforeKeys, m.Key())
	}
	assert.ElementsMatch(t, beforeKeys, snapKeys)

	// evolved
	assert.Equal(t, 4, pops[0].Size())
	assert.Equal(t, 2, loop.Generation())
	assert.Equal(t, StateIdle, loop.State())

	line, found := summary.Strategy("macd")
	require.True(t, found)
	assert.Equal(t, ok, line.Evaluated)
	assert.Equal(t, 4-ok, line.Failed)
	if ok > 0 {
		require.NotNil(t, line.Best)
		assert.Equal(t, rec.Results[0].Key, line.Best.Key)
		assert.Contains(t, out.String(), "Generation 1's Best Results")
	}

	var states []string
	for _, e := range obs.events {
		if e.Type == EventState {
			states = append(states, e.State)
		}
	}
	assert.Equal(t, []string{"refreshing_data", "evaluating", "persisting", "evolving", "idle"}, states)
	assert.Equal(t, EventGeneration, obs.events[len(obs.events)-1].Type)
}

func TestRunGeneration_MultipleStrategies(t *testing.T) {
	pops := newPopulations(t, 3, "macd", "rsi", "trend_ema")
	sink := &memSink{}
	eval := &stubEvaluator{fn: func(t evaluation.Task) *contracts.Result {
		r := &contracts.Result{StartCapital: 1000, EndBalance: 1100, BuyHold: 1000, VsBuyHold: float64(t.ID), Days: 1}
		r.Derive()
		return r
	}}
	loop, err := NewLoop(Config{RunID: "multi"}, eval, nil, pops, nil, WithSinks(sink))
	require.NoError(t, err)

	summary, err := loop.RunGeneration(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.records[0].Results, 9)
	assert.Equal(t, 0, sink.records[0].Failed)

	// highest task ID wins and belongs to the last strategy
	assert.Equal(t, "trend_ema", sink.records[0].Results[0].Strategy)
	require.Len(t, summary.Strategies, 3)
	for _, s := range summary.Strategies {
		assert.Equal(t, 3, s.Evaluated)
		assert.Greater(t, s.StdFitness, 0.0)
	}
}

func TestRunGeneration_SinkFailureDoesNotStopLoop(t *testing.T) {
	pops := newPopulations(t, 2, "macd")
	sink := &memSink{err: errors.New("disk full")}
	eval := &stubEvaluator{fn: scoreByPeriod}
	loop, err := NewLoop(Config{}, eval, nil, pops, nil, WithSinks(sink))
	require.NoError(t, err)

	_, err = loop.RunGeneration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, loop.Generation())
}

func TestRunGeneration_CancelledDuringEvaluation(t *testing.T) {
	pops := newPopulations(t, 4, "macd")
	sink := &memSink{}
	ctx, cancel := context.WithCancel(context.Background())

	eval := &stubEvaluator{fn: scoreByPeriod, onBatch: cancel}
	loop, err := NewLoop(Config{}, eval, nil, pops, nil, WithSinks(sink))
	require.NoError(t, err)

	_, err = loop.RunGeneration(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.records)
	assert.Equal(t, 1, loop.Generation())
	assert.Equal(t, 0, pops[0].Evaluated())
}

func TestRun_RefreshRetry(t *testing.T) {
	pops := newPopulations(t, 2, "macd")
	refresher := &flakyRefresher{fails: 2}
	eval := &stubEvaluator{fn: scoreByPeriod}
	obs := &recordingObserver{}

	loop, err := NewLoop(Config{MaxGenerations: 2, RetryDelay: time.Millisecond}, eval, refresher, pops, nil, WithObservers(obs))
	require.NoError(t, err)

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, 4, refresher.calls)
	assert.Equal(t, 2, eval.batches, "no evaluation after a failed refresh")
	assert.Equal(t, 3, loop.Generation())

	failures := 0
	for _, e := range obs.events {
		if e.Type == EventRefreshFailed {
			failures++
			assert.Contains(t, e.Error, "exchange unavailable")
		}
	}
	assert.Equal(t, 2, failures)
}

func TestRun_GivesUpAfterRefreshFailures(t *testing.T) {
	pops := newPopulations(t, 2, "macd")
	refresher := &flakyRefresher{fails: 100}
	eval := &stubEvaluator{fn: scoreByPeriod}

	loop, err := NewLoop(Config{RetryDelay: time.Millisecond, MaxRefreshFailures: 3}, eval, refresher, pops, nil)
	require.NoError(t, err)

	err = loop.Run(context.Background())
	assert.ErrorIs(t, err, ErrRefresh)
	assert.Equal(t, 3, refresher.calls)
	assert.Equal(t, 0, eval.batches)
}

func TestRun_StopsOnCancel(t *testing.T) {
	pops := newPopulations(t, 2, "macd")
	ctx, cancel := context.WithCancel(context.Background())
	eval := &stubEvaluator{fn: scoreByPeriod}
	eval.onBatch = func() {
		if eval.batches == 3 {
			cancel()
		}
	}

	loop, err := NewLoop(Config{}, eval, nil, pops, nil)
	require.NoError(t, err)

	err = loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, eval.batches)
	assert.Equal(t, 3, loop.Generation())
}

func TestNewLoop_Validation(t *testing.T) {
	eval := &stubEvaluator{fn: scoreByPeriod}

	_, err := NewLoop(Config{}, eval, nil, nil, nil)
	assert.ErrorIs(t, err, genome.ErrNoStrategies)

	_, err = NewLoop(Config{}, nil, nil, newPopulations(t, 2, "macd"), nil)
	assert.Error(t, err)

	dup := append(newPopulations(t, 2, "macd"), newPopulations(t, 2, "macd")...)
	_, err = NewLoop(Config{}, eval, nil, dup, nil)
	assert.Error(t, err)
}

func TestStatusAndMembers(t *testing.T) {
	pops := newPopulations(t, 4, "macd", "rsi")
	eval := &stubEvaluator{fn: func(t evaluation.Task) *contracts.Result {
		r := &contracts.Result{StartCapital: 1000, EndBalance: 1000, BuyHold: 1000, VsBuyHold: float64(t.Index), Days: 1}
		r.Derive()
		return r
	}}
	loop, err := NewLoop(Config{RunID: "status"}, eval, nil, pops, nil)
	require.NoError(t, err)

	st := loop.Status()
	assert.Equal(t, "idle", st.State)
	assert.Equal(t, 1, st.Generation)
	require.Len(t, st.Populations, 2)
	assert.Nil(t, st.Populations[0].Best)

	_, err = loop.RunGeneration(context.Background())
	require.NoError(t, err)

	st = loop.Status()
	assert.Equal(t, 2, st.Generation)
	require.NotNil(t, st.Last)
	assert.Equal(t, 1, st.Last.Generation)
	// the elite survives evolution with its evaluation
	require.NotNil(t, st.Populations[0].Best)
	assert.Equal(t, 3.0, st.Populations[0].Best.Result.VsBuyHold)

	members, ok := loop.Members("rsi")
	require.True(t, ok)
	assert.Len(t, members, 4)
	assert.True(t, members[0].Evaluated)

	_, ok = loop.Members("nope")
	assert.False(t, ok)
	assert.Equal(t, []string{"macd", "rsi"}, loop.Strategies())
}
