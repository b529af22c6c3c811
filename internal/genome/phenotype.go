package genome

import (
	"fmt"
	"sort"
	"strings"

	"github.com/realjkeee/zenbot/internal/contracts"
)

// Phenotype is one candidate parameter set plus its latest evaluation.
// Operators never modify a phenotype; they return new ones.
type Phenotype struct {
	Genes      map[string]Value
	Evaluation *contracts.Result // nil: not evaluated yet, or last run failed
}

// NewPhenotype wraps a gene assignment
func NewPhenotype(genes map[string]Value) *Phenotype {
	return &Phenotype{Genes: genes}
}

// Get returns a gene value
func (p *Phenotype) Get(name string) (Value, bool) {
	v, ok := p.Genes[name]
	return v, ok
}

// Evaluated reports whether the phenotype carries an evaluation
func (p *Phenotype) Evaluated() bool {
	return p.Evaluation != nil
}

// Fitness scores the evaluation; ok is false when there is none.
// Recomputed on every call, nothing is cached.
func (p *Phenotype) Fitness() (float64, bool) {
	if p.Evaluation == nil {
		return 0, false
	}
	return Fitness(*p.Evaluation), true
}

// Clone deep-copies genes and evaluation
func (p *Phenotype) Clone() *Phenotype {
	genes := make(map[string]Value, len(p.Genes))
	for k, v := range p.Genes {
		genes[k] = v
	}

	c := &Phenotype{Genes: genes}
	if p.Evaluation != nil {
		eval := *p.Evaluation
		c.Evaluation = &eval
	}
	return c
}

// WithEvaluation returns a copy carrying r (nil clears it)
func (p *Phenotype) WithEvaluation(r *contracts.Result) *Phenotype {
	c := p.Clone()
	c.Evaluation = nil
	if r != nil {
		eval := *r
		c.Evaluation = &eval
	}
	return c
}

// Strip returns a copy without evaluation
func (p *Phenotype) Strip() *Phenotype {
	return p.WithEvaluation(nil)
}

// Key is the canonical "name=value;..." form, names sorted.
// Used for tie-breaks, logging and dedupe.
func (p *Phenotype) Key() string {
	names := make([]string, 0, len(p.Genes))
	for name := range p.Genes {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(p.Genes[name].String())
	}
	return b.String()
}

// GeneSet exports the genes for checkpoints (no evaluation)
func (p *Phenotype) GeneSet() contracts.GeneSet {
	gs := make(contracts.GeneSet, len(p.Genes))
	for k, v := range p.Genes {
		gs[k] = v.Any()
	}
	return gs
}

// FromGeneSet validates a checkpoint member against the schema.
// Every schema gene must be present and in domain; extra keys are ignored.
func FromGeneSet(schema *Schema, gs contracts.GeneSet) (*Phenotype, error) {
	genes := make(map[string]Value, schema.Len())
	for _, g := range schema.genes {
		raw, ok := gs[g.Name]
		if !ok {
			return nil, fmt.Errorf("gene %s: missing", g.Name)
		}
		v, err := g.Coerce(raw)
		if err != nil {
			return nil, err
		}
		genes[g.Name] = v
	}
	return NewPhenotype(genes), nil
}

// Validate checks every schema gene is present and in domain
func (p *Phenotype) Validate(schema *Schema) error {
	for _, g := range schema.genes {
		v, ok := p.Genes[g.Name]
		if !ok {
			return fmt.Errorf("gene %s: missing", g.Name)
		}
		if !g.Contains(v) {
			return fmt.Errorf("gene %s: value %s outside domain %s", g.Name, v, g.Domain())
		}
	}
	return nil
}
