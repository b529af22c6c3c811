package search

import (
	"time"

	"github.com/realjkeee/zenbot/internal/contracts"
)

// PopulationStatus is a read-only view of one population
type PopulationStatus struct {
	Strategy   string                  `json:"strategy"`
	Size       int                     `json:"size"`
	Evaluated  int                     `json:"evaluated"`
	Generation int                     `json:"generation"`
	Best       *contracts.ScoredResult `json:"best,omitempty"`
}

// Status is a read-only view of the loop
type Status struct {
	RunID       string             `json:"run_id"`
	State       string             `json:"state"`
	Generation  int                `json:"generation"`
	StartedAt   time.Time          `json:"started_at"`
	Populations []PopulationStatus `json:"populations"`
	Last        *GenerationSummary `json:"last,omitempty"`
}

// MemberView is one population member as served by the API
type MemberView struct {
	Key       string            `json:"key"`
	Genes     contracts.GeneSet `json:"genes"`
	Evaluated bool              `json:"evaluated"`
	Fitness   float64           `json:"fitness"`
	Result    *contracts.Result `json:"result,omitempty"`
}

// State returns the current loop state
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Generation returns the generation currently running (or next to run)
func (l *Loop) Generation() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.generation
}

// LastSummary returns the summary of the last finished generation
func (l *Loop) LastSummary() (*GenerationSummary, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastSummary, l.lastSummary != nil
}

// Status returns a consistent snapshot of the loop
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Status{
		RunID:      l.cfg.RunID,
		State:      l.state.String(),
		Generation: l.generation,
		StartedAt:  l.startedAt,
		Last:       l.lastSummary,
	}
	for _, p := range l.populations {
		ps := PopulationStatus{
			Strategy:   p.Strategy().Name,
			Size:       p.Size(),
			Evaluated:  p.Evaluated(),
			Generation: p.Generation(),
		}
		if best, ok := p.Best(); ok {
			fitness, _ := best.Fitness()
			ps.Best = &contracts.ScoredResult{
				Strategy: ps.Strategy,
				Key:      best.Key(),
				Genes:    best.GeneSet(),
				Fitness:  fitness,
				Result:   *best.Evaluation,
			}
		}
		s.Populations = append(s.Populations, ps)
	}
	return s
}

// Members returns the ranked members of one strategy's population
func (l *Loop) Members(strategy string) ([]MemberView, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.byName[strategy]
	if !ok {
		return nil, false
	}

	ranked := p.Ranked()
	out := make([]MemberView, 0, len(ranked))
	for _, m := range ranked {
		fitness, evaluated := m.Fitness()
		out = append(out, MemberView{
			Key:       m.Key(),
			Genes:     m.GeneSet(),
			Evaluated: evaluated,
			Fitness:   fitness,
			Result:    m.Evaluation,
		})
	}
	return out, true
}

// Strategies returns the strategy names in run order
func (l *Loop) Strategies() []string {
	return l.strategyNames()
}
