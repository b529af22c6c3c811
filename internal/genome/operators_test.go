package genome

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realjkeee/zenbot/internal/contracts"
)

func testSchema() *Schema {
	return MustSchema(
		RangePeriod("period", 1, 120, "m"),
		Range("min_periods", 1, 200),
		RangeFloat("markup_pct", 0, 5),
		MakerTaker("order_type"),
		Range0("sell_stop_pct", 1, 50),
	)
}

func TestSample_Deterministic(t *testing.T) {
	schema := testSchema()
	a := Sample(schema, rand.New(rand.NewSource(99)))
	b := Sample(schema, rand.New(rand.NewSource(99)))
	assert.Equal(t, a.Key(), b.Key())
	assert.NoError(t, a.Validate(schema))
}

func TestMutate_NeverLeavesBounds(t *testing.T) {
	schema := testSchema()
	rng := rand.New(rand.NewSource(1))

	// parent with out-of-domain and missing genes must still yield a valid child
	broken := NewPhenotype(map[string]Value{
		"period":     NumberValue(500),
		"markup_pct": NumberValue(-1),
		"order_type": ChoiceValue("market"),
	})

	for _, rate := range []float64{0, 0.3, 1} {
		p := Sample(schema, rng)
		for i := 0; i < 2000; i++ {
			p = Mutate(p, schema, rng, rate)
			require.NoError(t, p.Validate(schema))
		}
		require.NoError(t, Mutate(broken, schema, rng, rate).Validate(schema))
	}
}

func TestMutate_RateZeroCopies(t *testing.T) {
	schema := testSchema()
	rng := rand.New(rand.NewSource(3))
	p := Sample(schema, rng)
	p.Evaluation = &contracts.Result{VsBuyHold: 5}

	child := Mutate(p, schema, rng, 0)
	assert.Equal(t, p.Key(), child.Key())
	assert.Nil(t, child.Evaluation)
	assert.NotNil(t, p.Evaluation, "parent untouched")
}

func TestPhenotype_KeySortsNames(t *testing.T) {
	tests := []struct {
		name  string
		genes map[string]Value
		want  string
	}{
		{"empty", map[string]Value{}, ""},
		{
			"schema order differs from name order",
			map[string]Value{
				"period":      ChoiceValue("35m"),
				"min_periods": NumberValue(52),
				"markup_pct":  NumberValue(0.25),
				"order_type":  ChoiceValue("maker"),
			},
			"markup_pct=0.25;min_periods=52;order_type=maker;period=35m",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPhenotype(tt.genes).Key())
		})
	}
}

func TestCrossover_GenesComeFromParents(t *testing.T) {
	schema := testSchema()
	rng := rand.New(rand.NewSource(5))

	for i := 0; i < 1000; i++ {
		a := Sample(schema, rng)
		b := Sample(schema, rng)
		keyA, keyB := a.Key(), b.Key()

		child := Crossover(a, b, schema, rng)
		require.NoError(t, child.Validate(schema))
		for _, name := range schema.Names() {
			v := child.Genes[name]
			assert.True(t, v.Equal(a.Genes[name]) || v.Equal(b.Genes[name]), "gene %s not inherited", name)
		}
		assert.Equal(t, keyA, a.Key())
		assert.Equal(t, keyB, b.Key())
	}
}

func TestCrossover_InvalidParentFallsBack(t *testing.T) {
	schema := testSchema()
	rng := rand.New(rand.NewSource(5))
	good := Sample(schema, rng)
	bad := NewPhenotype(map[string]Value{"period": NumberValue(0)})

	for i := 0; i < 100; i++ {
		child := Crossover(bad, good, schema, rng)
		assert.Equal(t, good.Key(), child.Key())
	}
}

func evaluated(vsBuyHold float64, wins, losses, days int, endBalance float64) *contracts.Result {
	return &contracts.Result{
		VsBuyHold:    vsBuyHold,
		Wins:         wins,
		Losses:       losses,
		Days:         days,
		EndBalance:   endBalance,
		StartCapital: 1000,
	}
}

func TestFitness_EdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		result *contracts.Result
		want   float64
	}{
		{"zero trades", evaluated(3, 0, 0, 10, 1000), 3},
		{"zero days", evaluated(3, 0, 0, 0, 1000), 3},
		{"no losses capped", evaluated(0, 7, 0, 7, 1000), 10 * math.Log1p(10)},
		{"frequency penalty", evaluated(0, 0, 70, 10, 1000), -5 * 2},
		{"even ratio", evaluated(-2, 3, 3, 30, 1000), -2 + 10*math.Log1p(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fitness(*tt.result)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
		})
	}

	withErrors := evaluated(1, 1, 1, 1, 1000)
	withErrors.ErrorRate = 4
	assert.InDelta(t, Fitness(*evaluated(1, 1, 1, 1, 1000))-2, Fitness(*withErrors), 1e-9)
}

func TestFitness_Idempotent(t *testing.T) {
	p := NewPhenotype(map[string]Value{"a": NumberValue(1)}).WithEvaluation(evaluated(4.2, 5, 2, 3, 1100))
	f1, ok1 := p.Fitness()
	f2, ok2 := p.Fitness()
	assert.True(t, ok1 && ok2)
	assert.Equal(t, f1, f2)

	_, ok := NewPhenotype(nil).Fitness()
	assert.False(t, ok)
}

func TestCompare_ConsistentWithFitness(t *testing.T) {
	schema := testSchema()
	rng := rand.New(rand.NewSource(11))

	var pool []*Phenotype
	for i := 0; i < 60; i++ {
		r := evaluated(float64(rng.Intn(7)-3), rng.Intn(4), rng.Intn(4), rng.Intn(3), float64(900+rng.Intn(3)))
		pool = append(pool, Sample(schema, rng).WithEvaluation(r))
	}
	pool = append(pool, Sample(schema, rng), Sample(schema, rng))

	for _, a := range pool {
		for _, b := range pool {
			fa, okA := a.Fitness()
			fb, okB := b.Fitness()

			if okA && okB && fa != fb {
				assert.Equal(t, fa > fb, Beats(a, b))
			}
			if okA && !okB {
				assert.True(t, Beats(a, b))
			}
			if a != b && a.Key() != b.Key() {
				assert.NotEqual(t, Beats(a, b), Beats(b, a), "exactly one must win")
			}
			assert.Equal(t, Compare(a, b), -Compare(b, a))
		}
	}
}

func TestCompare_TieBreaks(t *testing.T) {
	a := NewPhenotype(map[string]Value{"x": NumberValue(1)})
	b := NewPhenotype(map[string]Value{"x": NumberValue(2)})

	// equal fitness, higher end balance wins
	ea := a.WithEvaluation(evaluated(1, 0, 0, 1, 1100))
	eb := b.WithEvaluation(evaluated(1, 0, 0, 1, 1000))
	assert.True(t, Beats(ea, eb))

	// identical evaluations, smaller key wins
	ea = a.WithEvaluation(evaluated(1, 0, 0, 1, 1000))
	eb = b.WithEvaluation(evaluated(1, 0, 0, 1, 1000))
	assert.True(t, Beats(ea, eb))
	assert.False(t, Beats(eb, ea))
}

func TestGeneSet_RoundTrip(t *testing.T) {
	schema := testSchema()
	rng := rand.New(rand.NewSource(21))
	p := Sample(schema, rng).WithEvaluation(evaluated(1, 1, 1, 1, 1))

	gs := p.GeneSet()
	gs["sim"] = map[string]any{"fitness": 3} // legacy keys are ignored

	back, err := FromGeneSet(schema, gs)
	require.NoError(t, err)
	assert.Equal(t, p.Key(), back.Key())
	assert.Nil(t, back.Evaluation)

	delete(gs, "period")
	_, err = FromGeneSet(schema, gs)
	assert.Error(t, err)
}
