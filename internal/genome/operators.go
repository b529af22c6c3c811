package genome

import "math/rand"

// DefaultMutationRate is the per-gene resample probability
const DefaultMutationRate = 0.3

// Sample draws a fresh phenotype, genes in schema order
func Sample(schema *Schema, rng *rand.Rand) *Phenotype {
	genes := make(map[string]Value, schema.Len())
	for _, g := range schema.genes {
		genes[g.Name] = g.Sample(rng)
	}
	return NewPhenotype(genes)
}

// Mutate resamples each gene with probability rate.
// Parent values outside the schema are always resampled.
func Mutate(p *Phenotype, schema *Schema, rng *rand.Rand, rate float64) *Phenotype {
	genes := make(map[string]Value, schema.Len())
	for _, g := range schema.genes {
		// always draw so the sequence does not depend on parent validity
		roll := rng.Float64()

		v, ok := p.Genes[g.Name]
		if roll < rate || !ok || !g.Contains(v) {
			v = g.Sample(rng)
		}
		genes[g.Name] = v
	}
	return NewPhenotype(genes)
}

// Crossover picks every gene uniformly from a or b (no blending).
// Falls back to the other parent, then a fresh sample, for invalid values.
func Crossover(a, b *Phenotype, schema *Schema, rng *rand.Rand) *Phenotype {
	genes := make(map[string]Value, schema.Len())
	for _, g := range schema.genes {
		first, second := a, b
		if rng.Intn(2) == 1 {
			first, second = b, a
		}

		if v, ok := first.Genes[g.Name]; ok && g.Contains(v) {
			genes[g.Name] = v
		} else if v, ok := second.Genes[g.Name]; ok && g.Contains(v) {
			genes[g.Name] = v
		} else {
			genes[g.Name] = g.Sample(rng)
		}
	}
	return NewPhenotype(genes)
}
