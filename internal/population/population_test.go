package population

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realjkeee/zenbot/internal/contracts"
	"github.com/realjkeee/zenbot/internal/genome"
)

func macd(t *testing.T) *genome.Strategy {
	t.Helper()
	s, ok := genome.DefaultRegistry().Get("macd")
	require.True(t, ok)
	return s
}

func score(p *genome.Phenotype, vsBuyHold float64) *genome.Phenotype {
	return p.WithEvaluation(&contracts.Result{VsBuyHold: vsBuyHold, EndBalance: 1000, StartCapital: 1000, Days: 1})
}

func TestDefaultOptions(t *testing.T) {
	assert.Equal(t, 1, DefaultOptions(4).EliteCount)
	assert.Equal(t, 10, DefaultOptions(100).EliteCount)
	assert.NoError(t, DefaultOptions(1).Validate())

	bad := DefaultOptions(4)
	bad.EliteCount = 5
	assert.Error(t, bad.Validate())
	assert.Error(t, DefaultOptions(0).Validate())
}

func TestSeed_TruncatesAndTopsUp(t *testing.T) {
	strategy := macd(t)
	rng := rand.New(rand.NewSource(1))

	var members []*genome.Phenotype
	for i := 0; i < 6; i++ {
		members = append(members, genome.Sample(strategy.Schema, rng))
	}

	p, err := Seed(strategy, DefaultOptions(4), rng, members)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Size())
	for i, m := range p.Members() {
		assert.Equal(t, members[i].Key(), m.Key())
	}

	p, err = Seed(strategy, DefaultOptions(10), rng, members[:2])
	require.NoError(t, err)
	assert.Equal(t, 10, p.Size())
	assert.Equal(t, members[1].Key(), p.Members()[1].Key())
	assert.Equal(t, 1, p.Generation())
}

func TestSeed_RejectsInvalidMember(t *testing.T) {
	strategy := macd(t)
	rng := rand.New(rand.NewSource(1))
	bad := genome.Sample(strategy.Schema, rng)
	bad.Genes["ema_long_period"] = genome.NumberValue(500)

	_, err := Seed(strategy, DefaultOptions(4), rng, []*genome.Phenotype{bad})
	assert.Error(t, err)
}

func TestRankedAndBest(t *testing.T) {
	strategy := macd(t)
	p, err := New(strategy, DefaultOptions(4), rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	members := p.Members()
	require.NoError(t, p.SetMember(0, score(members[0], 1)))
	require.NoError(t, p.SetMember(2, score(members[2], 7)))
	assert.Error(t, p.SetMember(4, members[0]))

	ranked := p.Ranked()
	assert.Equal(t, members[2].Key(), ranked[0].Key())
	assert.Equal(t, members[0].Key(), ranked[1].Key())
	assert.False(t, ranked[2].Evaluated())

	best, ok := p.Best()
	require.True(t, ok)
	assert.Equal(t, members[2].Key(), best.Key())
	assert.Equal(t, 2, p.Evaluated())
	assert.Len(t, p.Fitnesses(), 2)
}

func TestEvolve_KeepsSizeAndBounds(t *testing.T) {
	strategy := macd(t)
	p, err := New(strategy, DefaultOptions(20), rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	for gen := 0; gen < 5; gen++ {
		for i, m := range p.Members() {
			if i%3 != 0 {
				require.NoError(t, p.SetMember(i, score(m, float64(i))))
			}
		}

		best, _ := p.Best()
		bestKey := best.Key()

		p.Evolve()
		assert.Equal(t, 20, p.Size())
		assert.Equal(t, gen+2, p.Generation())

		elites := 0
		for _, m := range p.Members() {
			require.NoError(t, m.Validate(strategy.Schema))
			if m.Key() == bestKey {
				elites++
			}
		}
		assert.GreaterOrEqual(t, elites, 1, "best member survives as elite")
	}
}

func TestEvolve_NothingEvaluatedResamples(t *testing.T) {
	strategy := macd(t)
	p, err := New(strategy, DefaultOptions(4), rand.New(rand.NewSource(4)))
	require.NoError(t, err)
	before := p.Members()

	p.Evolve()
	assert.Equal(t, 4, p.Size())
	for i, m := range p.Members() {
		assert.NotEqual(t, before[i].Key(), m.Key())
		assert.False(t, m.Evaluated())
	}
}

func TestEvolve_Deterministic(t *testing.T) {
	strategy := macd(t)
	run := func() []string {
		p, err := New(strategy, DefaultOptions(8), rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		for i, m := range p.Members() {
			require.NoError(t, p.SetMember(i, score(m, float64(i%4))))
		}
		p.Evolve()

		var keys []string
		for _, m := range p.Members() {
			keys = append(keys, m.Key())
		}
		return keys
	}

	assert.Equal(t, run(), run())
}

func TestSnapshot_RoundTrip(t *testing.T) {
	strategy := macd(t)
	p, err := New(strategy, DefaultOptions(5), rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	var restored []*genome.Phenotype
	for _, gs := range p.Snapshot() {
		m, err := genome.FromGeneSet(strategy.Schema, gs)
		require.NoError(t, err)
		restored = append(restored, m)
	}

	q, err := Seed(strategy, DefaultOptions(5), rand.New(rand.NewSource(6)), restored)
	require.NoError(t, err)

	keys := func(pop *Population) []string {
		var out []string
		for _, m := range pop.Members() {
			out = append(out, m.Key())
		}
		return out
	}
	assert.ElementsMatch(t, keys(p), keys(q))
}
