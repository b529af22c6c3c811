package contracts

import (
	"sort"
	"time"
)

// GeneSet is one phenotype's gene assignment as stored in checkpoints.
// Values are float64/int64 for numeric genes and string for choice genes.
type GeneSet map[string]any

// ScoredResult is one successfully evaluated phenotype of a generation
type ScoredResult struct {
	Strategy string  `json:"strategy"`
	Key      string  `json:"key"` // canonical gene assignment
	Genes    GeneSet `json:"genes"`
	Fitness  float64 `json:"fitness"`
	Result   Result  `json:"result"`
}

// GenerationRecord holds everything the persisting stage writes for one generation
type GenerationRecord struct {
	RunID      string         `json:"run_id"`
	Generation int            `json:"generation"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Dispatched int            `json:"dispatched"`
	Failed     int            `json:"failed"`
	Results    []ScoredResult `json:"results"` // sorted best first
}

// Best returns the best result for a strategy (results are sorted best first)
func (g *GenerationRecord) Best(strategy string) (ScoredResult, bool) {
	for _, r := range g.Results {
		if r.Strategy == strategy {
			return r, true
		}
	}
	return ScoredResult{}, false
}

// Snapshot maps every strategy to its current members (no evaluations)
type Snapshot struct {
	RunID       string               `json:"-"`
	Generation  int                  `json:"-"`
	SavedAt     time.Time            `json:"-"`
	Populations map[string][]GeneSet `json:"populations"`
}

// Size returns the total number of members across strategies
func (s *Snapshot) Size() int {
	n := 0
	for _, members := range s.Populations {
		n += len(members)
	}
	return n
}

// Strategies returns the snapshot's strategy names, sorted
func (s *Snapshot) Strategies() []string {
	names := make([]string, 0, len(s.Populations))
	for name := range s.Populations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
