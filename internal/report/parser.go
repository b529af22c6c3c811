package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/realjkeee/zenbot/internal/contracts"
)

// TailSize is how many trailing characters of a report are authoritative
const TailSize = 3500

var (
	ErrNoParams     = errors.New("parameter echo block not found")
	ErrMissingField = errors.New("report field missing")
	ErrInvalidField = errors.New("report field invalid")
)

var (
	ansiPattern = regexp.MustCompile(`[\x1b\x9b][[\]()#;?]*(?:(?:(?:[a-zA-Z\d]*(?:;[a-zA-Z\d]*)*)?\x07)|(?:(?:\d{1,4}(?:;\d{0,4})*)?[\dA-PR-TZcf-ntqry=><~]))`)

	echoEndPattern    = regexp.MustCompile(`\}\s+end balance`)
	endBalancePattern = regexp.MustCompile(`end balance: (-?\d+(?:\.\d+)?) \(`)
	buyHoldPattern    = regexp.MustCompile(`buy hold: (-?\d+(?:\.\d+)?) \(`)
	vsBuyHoldPattern  = regexp.MustCompile(`vs\. buy hold: (-?\d+(?:\.\d+)?)%`)
	winLossPattern    = regexp.MustCompile(`win/loss: (\d+)/(\d+)`)
	errorRatePattern  = regexp.MustCompile(`error rate: ([^%\n]*)%`)
)

// bookkeepingKeys are run settings, not strategy parameters; stripped from Params
var bookkeepingKeys = []string{
	"asset_capital", "buy_pct", "currency_capital", "days", "mode", "order_adjust_time",
	"population", "population_data", "selector", "sell_pct", "start", "stats",
	"use_strategies", "verbose",
}

// Parse extracts a Result from an evaluator report.
// startCapital is used when the echo block carries no currency_capital.
// ⭐ SSOT: sim 출력 파싱은 이 함수만 담당
func Parse(output string, startCapital float64) (*contracts.Result, error) {
	text := Tail(StripANSI(output), TailSize)

	params, err := echoBlock(text)
	if err != nil {
		return nil, err
	}

	r := &contracts.Result{
		Strategy:     stringParam(params, "strategy"),
		Period:       stringParam(params, "period"),
		MinPeriods:   int(numberParam(params, "min_periods")),
		MarkupPct:    numberParam(params, "markup_pct"),
		OrderType:    stringParam(params, "order_type"),
		Days:         int(numberParam(params, "days")),
		StartCapital: startCapital,
	}
	if c := numberParam(params, "currency_capital"); c > 0 {
		r.StartCapital = c
	}

	if r.EndBalance, err = requiredFloat(text, endBalancePattern, "end balance"); err != nil {
		return nil, err
	}
	if r.BuyHold, err = requiredFloat(text, buyHoldPattern, "buy hold"); err != nil {
		return nil, err
	}
	if r.VsBuyHold, err = requiredFloat(text, vsBuyHoldPattern, "vs. buy hold"); err != nil {
		return nil, err
	}

	if m := winLossPattern.FindStringSubmatch(text); m != nil {
		r.Wins, _ = strconv.Atoi(m[1])
		r.Losses, _ = strconv.Atoi(m[2])
	}

	if m := errorRatePattern.FindStringSubmatch(text); m != nil {
		rate, err := parseFinite(strings.TrimSpace(m[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: error rate %q", ErrInvalidField, m[1])
		}
		r.ErrorRate = rate
	}

	if r.Params, err = strippedParams(params); err != nil {
		return nil, err
	}

	r.Derive()
	return r, nil
}

// StripANSI removes terminal escape sequences
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// Tail returns the last n characters of s
func Tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// echoBlock finds the JSON object closed right before the first "end balance"
// marker. Candidate openings are tried left to right; the first valid object wins.
func echoBlock(text string) (map[string]any, error) {
	loc := echoEndPattern.FindStringIndex(text)
	if loc == nil {
		return nil, ErrNoParams
	}
	closing := loc[0] // index of '}'

	for start := strings.IndexByte(text, '{'); start >= 0 && start < closing; {
		var params map[string]any
		dec := json.NewDecoder(strings.NewReader(text[start : closing+1]))
		dec.UseNumber()
		if err := dec.Decode(&params); err == nil && !dec.More() {
			return params, nil
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	return nil, fmt.Errorf("%w: no valid JSON before end balance", ErrNoParams)
}

func requiredFloat(text string, pattern *regexp.Regexp, field string) (float64, error) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	v, err := parseFinite(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidField, field, m[1])
	}
	return v, nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func stringParam(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func numberParam(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	default:
		return 0
	}
}

func strippedParams(params map[string]any) (string, error) {
	clean := make(map[string]any, len(params))
	for k, v := range params {
		clean[k] = v
	}
	for _, k := range bookkeepingKeys {
		delete(clean, k)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(clean); err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
