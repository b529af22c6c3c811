package genome

import (
	"cmp"
	"math"

	"github.com/realjkeee/zenbot/internal/contracts"
)

// Fitness weights
const (
	WinLossWeight    = 10.0
	WinLossCap       = 10.0 // Infinity (no losses) counts as this
	FrequencyLimit   = 5.0  // trades/day before the penalty starts
	FrequencyPenalty = 5.0
	ErrorRatePenalty = 0.5
)

// Fitness scores one evaluation:
//
//	vsBuyHold + 10·ln(1 + min(wl, 10)) − 5·max(0, freq − 5) − 0.5·errorRate
//
// Pure; derived metrics are recomputed from wins/losses/days.
func Fitness(r contracts.Result) float64 {
	wl := math.Min(r.WinLoss(), WinLossCap)
	freq := r.TradesPerDay()

	return r.VsBuyHold +
		WinLossWeight*math.Log1p(wl) -
		FrequencyPenalty*math.Max(0, freq-FrequencyLimit) -
		ErrorRatePenalty*r.ErrorRate
}

// Compare orders phenotypes: evaluated > unevaluated, then fitness, win/loss
// ratio, ending balance, and finally the smaller Key wins. Total order.
// ⭐ SSOT: 정렬과 토너먼트 선택은 모두 이 비교 함수 사용
func Compare(a, b *Phenotype) int {
	fa, okA := a.Fitness()
	fb, okB := b.Fitness()

	switch {
	case okA && !okB:
		return 1
	case !okA && okB:
		return -1
	case okA && okB:
		if c := cmp.Compare(fa, fb); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Evaluation.WinLoss(), b.Evaluation.WinLoss()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Evaluation.EndBalance, b.Evaluation.EndBalance); c != 0 {
			return c
		}
	}

	return cmp.Compare(b.Key(), a.Key())
}

// Beats reports whether a wins against b
func Beats(a, b *Phenotype) bool {
	return Compare(a, b) > 0
}
