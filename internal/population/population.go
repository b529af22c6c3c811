package population

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/realjkeee/zenbot/internal/contracts"
	"github.com/realjkeee/zenbot/internal/genome"
)

// Options are the evolution parameters of one population
type Options struct {
	Size           int
	MutationRate   float64 // per-gene resample probability
	CrossoverRate  float64 // probability a child has two parents
	EliteCount     int     // best members carried over unchanged
	TournamentSize int
}

// DefaultOptions returns the standard parameters for a population size
func DefaultOptions(size int) Options {
	return Options{
		Size:           size,
		MutationRate:   genome.DefaultMutationRate,
		CrossoverRate:  0.8,
		EliteCount:     max(1, size/10),
		TournamentSize: 3,
	}
}

// Validate checks the parameters
func (o Options) Validate() error {
	if o.Size < 1 {
		return fmt.Errorf("population size must be >= 1")
	}
	if o.MutationRate < 0 || o.MutationRate > 1 {
		return fmt.Errorf("mutation rate must be in [0, 1]")
	}
	if o.CrossoverRate < 0 || o.CrossoverRate > 1 {
		return fmt.Errorf("crossover rate must be in [0, 1]")
	}
	if o.EliteCount < 0 || o.EliteCount > o.Size {
		return fmt.Errorf("elite count must be in [0, size]")
	}
	if o.TournamentSize < 1 {
		return fmt.Errorf("tournament size must be >= 1")
	}
	return nil
}

// Operators are the genetic operators bound to one strategy's schema
type Operators struct {
	Sample    func(rng *rand.Rand) *genome.Phenotype
	Mutate    func(p *genome.Phenotype, rng *rand.Rand) *genome.Phenotype
	Crossover func(a, b *genome.Phenotype, rng *rand.Rand) *genome.Phenotype
	Fitness   func(p *genome.Phenotype) (float64, bool)
	Beats     func(a, b *genome.Phenotype) bool
}

// BindOperators closes the genome operators over a schema
func BindOperators(schema *genome.Schema, mutationRate float64) Operators {
	return Operators{
		Sample: func(rng *rand.Rand) *genome.Phenotype {
			return genome.Sample(schema, rng)
		},
		Mutate: func(p *genome.Phenotype, rng *rand.Rand) *genome.Phenotype {
			return genome.Mutate(p, schema, rng, mutationRate)
		},
		Crossover: func(a, b *genome.Phenotype, rng *rand.Rand) *genome.Phenotype {
			return genome.Crossover(a, b, schema, rng)
		},
		Fitness: func(p *genome.Phenotype) (float64, bool) {
			return p.Fitness()
		},
		Beats: genome.Beats,
	}
}

// Population is the fixed-size member set of one strategy.
// Owned by a single goroutine (the generation loop).
type Population struct {
	strategy   *genome.Strategy
	ops        Operators
	opts       Options
	rng        *rand.Rand
	members    []*genome.Phenotype
	generation int
}

// New creates a population of fresh samples
func New(strategy *genome.Strategy, opts Options, rng *rand.Rand) (*Population, error) {
	return Seed(strategy, opts, rng, nil)
}

// Seed creates a population from existing members (e.g. a checkpoint):
// excess members are truncated, missing ones sampled fresh.
func Seed(strategy *genome.Strategy, opts Options, rng *rand.Rand, members []*genome.Phenotype) (*Population, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("strategy %s: %w", strategy.Name, err)
	}

	p := &Population{
		strategy:   strategy,
		ops:        BindOperators(strategy.Schema, opts.MutationRate),
		opts:       opts,
		rng:        rng,
		members:    make([]*genome.Phenotype, 0, opts.Size),
		generation: 1,
	}

	for _, m := range members {
		if len(p.members) == opts.Size {
			break
		}
		if err := m.Validate(strategy.Schema); err != nil {
			return nil, fmt.Errorf("strategy %s member %d: %w", strategy.Name, len(p.members), err)
		}
		p.members = append(p.members, m.Clone())
	}
	for len(p.members) < opts.Size {
		p.members = append(p.members, p.ops.Sample(rng))
	}

	return p, nil
}

// Strategy returns the population's strategy
func (p *Population) Strategy() *genome.Strategy {
	return p.strategy
}

// Generation returns the 1-based generation index
func (p *Population) Generation() int {
	return p.generation
}

// Size returns the fixed member count
func (p *Population) Size() int {
	return len(p.members)
}

// Members returns a copy of the member slice (phenotypes are shared, treat as read-only)
func (p *Population) Members() []*genome.Phenotype {
	out := make([]*genome.Phenotype, len(p.members))
	copy(out, p.members)
	return out
}

// SetMember replaces member i (used to write evaluation outcomes back)
func (p *Population) SetMember(i int, ph *genome.Phenotype) error {
	if i < 0 || i >= len(p.members) {
		return fmt.Errorf("strategy %s: member index %d out of range", p.strategy.Name, i)
	}
	if ph == nil {
		return fmt.Errorf("strategy %s: nil member", p.strategy.Name)
	}
	p.members[i] = ph
	return nil
}

// Ranked returns the members sorted best first
func (p *Population) Ranked() []*genome.Phenotype {
	ranked := p.Members()
	sort.SliceStable(ranked, func(i, j int) bool {
		return p.ops.Beats(ranked[i], ranked[j])
	})
	return ranked
}

// Best returns the best evaluated member
func (p *Population) Best() (*genome.Phenotype, bool) {
	var best *genome.Phenotype
	for _, m := range p.members {
		if !m.Evaluated() {
			continue
		}
		if best == nil || p.ops.Beats(m, best) {
			best = m
		}
	}
	return best, best != nil
}

// Evaluated counts members carrying an evaluation
func (p *Population) Evaluated() int {
	n := 0
	for _, m := range p.members {
		if m.Evaluated() {
			n++
		}
	}
	return n
}

// Fitnesses returns the fitness of every evaluated member
func (p *Population) Fitnesses() []float64 {
	var out []float64
	for _, m := range p.members {
		if f, ok := p.ops.Fitness(m); ok {
			out = append(out, f)
		}
	}
	return out
}

// Evolve replaces the members with the next generation of the same size:
// elites carried over, the rest bred by tournament selection, crossover and mutation.
// Without any evaluated member there is nothing to select on and members are resampled.
// ⭐ SSOT: 세대 진화 로직은 여기서만 수행
func (p *Population) Evolve() {
	n := len(p.members)
	next := make([]*genome.Phenotype, 0, n)

	if p.Evaluated() == 0 {
		for len(next) < n {
			next = append(next, p.ops.Sample(p.rng))
		}
		p.members = next
		p.generation++
		return
	}

	ranked := p.Ranked()
	for i := 0; i < p.opts.EliteCount && i < n && ranked[i].Evaluated(); i++ {
		next = append(next, ranked[i])
	}

	for len(next) < n {
		a := p.tournament(ranked)

		var child *genome.Phenotype
		if p.rng.Float64() < p.opts.CrossoverRate {
			child = p.ops.Crossover(a, p.tournament(ranked), p.rng)
		} else {
			child = a.Strip()
		}
		next = append(next, p.ops.Mutate(child, p.rng))
	}

	p.members = next
	p.generation++
}

func (p *Population) tournament(ranked []*genome.Phenotype) *genome.Phenotype {
	winner := ranked[p.rng.Intn(len(ranked))]
	for i := 1; i < p.opts.TournamentSize; i++ {
		challenger := ranked[p.rng.Intn(len(ranked))]
		if p.ops.Beats(challenger, winner) {
			winner = challenger
		}
	}
	return winner
}

// Snapshot exports the members' genes for a checkpoint
func (p *Population) Snapshot() []contracts.GeneSet {
	out := make([]contracts.GeneSet, len(p.members))
	for i, m := range p.members {
		out[i] = m.GeneSet()
	}
	return out
}
