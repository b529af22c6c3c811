package genome

import "fmt"

// Schema is the ordered gene list of one strategy.
// Iteration follows declaration order so a seeded source reproduces phenotypes.
type Schema struct {
	genes []Gene
	index map[string]int
}

// NewSchema validates the genes and rejects duplicate names
func NewSchema(genes ...Gene) (*Schema, error) {
	s := &Schema{
		genes: make([]Gene, 0, len(genes)),
		index: make(map[string]int, len(genes)),
	}

	for _, g := range genes {
		if err := g.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[g.Name]; dup {
			return nil, fmt.Errorf("duplicate gene %q", g.Name)
		}
		s.index[g.Name] = len(s.genes)
		s.genes = append(s.genes, g)
	}

	if len(s.genes) == 0 {
		return nil, fmt.Errorf("schema has no genes")
	}
	return s, nil
}

// MustSchema is NewSchema for static tables
func MustSchema(genes ...Gene) *Schema {
	s, err := NewSchema(genes...)
	if err != nil {
		panic(err)
	}
	return s
}

// Gene looks up a gene by name
func (s *Schema) Gene(name string) (Gene, bool) {
	i, ok := s.index[name]
	if !ok {
		return Gene{}, false
	}
	return s.genes[i], true
}

// Genes returns a copy of the genes in declaration order
func (s *Schema) Genes() []Gene {
	out := make([]Gene, len(s.genes))
	copy(out, s.genes)
	return out
}

// Names returns the gene names in declaration order
func (s *Schema) Names() []string {
	out := make([]string, len(s.genes))
	for i, g := range s.genes {
		out[i] = g.Name
	}
	return out
}

// Len returns the number of genes
func (s *Schema) Len() int {
	return len(s.genes)
}
