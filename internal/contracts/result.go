package contracts

import (
	"math"

	"github.com/shopspring/decimal"
)

// DerivedPrecision is the number of decimal digits kept on derived metrics
const DerivedPrecision = 3

// Result holds one parsed evaluator report
// ⭐ SSOT: sim 리포트 파싱 결과는 이 구조체로만 전달
type Result struct {
	Strategy     string  `json:"strategy"`
	EndBalance   float64 `json:"end_balance"`
	BuyHold      float64 `json:"buy_hold"`
	VsBuyHold    float64 `json:"vs_buy_hold"` // %
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	ErrorRate    float64 `json:"error_rate"` // %
	Days         int     `json:"days"`
	StartCapital float64 `json:"start_capital"`

	// Echoed core parameters
	Period     string  `json:"period"`
	MinPeriods int     `json:"min_periods"`
	MarkupPct  float64 `json:"markup_pct"`
	OrderType  string  `json:"order_type"`

	// Params is the echoed run configuration without bookkeeping keys (JSON)
	Params string `json:"params"`

	// Derived (see Derive)
	ROI          float64 `json:"roi"`
	WinLossRatio Ratio   `json:"wl_ratio"`
	Frequency    float64 `json:"frequency"` // trades per day
}

// Derive recomputes ROI, win/loss ratio and trade frequency from the primary fields.
// Upstream values for these fields are never trusted.
func (r *Result) Derive() {
	r.ROI = r.ReturnOnInvestment()
	r.WinLossRatio = Ratio(r.WinLoss())
	r.Frequency = r.TradesPerDay()
}

// ReturnOnInvestment returns (end - start) / start * 100, 0 without a start capital
func (r Result) ReturnOnInvestment() float64 {
	if r.StartCapital <= 0 {
		return 0
	}
	return Round((r.EndBalance-r.StartCapital)/r.StartCapital*100, DerivedPrecision)
}

// WinLoss returns wins/losses; +Inf when there are wins but no losses, 0 without trades
func (r Result) WinLoss() float64 {
	if r.Losses > 0 {
		return Round(float64(r.Wins)/float64(r.Losses), DerivedPrecision)
	}
	if r.Wins > 0 {
		return math.Inf(1)
	}
	return 0
}

// TradesPerDay returns (wins+losses)/days, 0 when no day was simulated
func (r Result) TradesPerDay() float64 {
	if r.Days <= 0 {
		return 0
	}
	return Round(float64(r.Wins+r.Losses)/float64(r.Days), DerivedPrecision)
}

// Trades returns the number of closed round trips
func (r Result) Trades() int {
	return r.Wins + r.Losses
}

// Round rounds half away from zero to the given number of decimal places.
// Non-finite values are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
