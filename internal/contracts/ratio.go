package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// infinityLiteral is how an unbounded ratio is written to CSV and JSON
const infinityLiteral = "Infinity"

// Ratio is a float64 that may be +Inf (e.g. win/loss without losses)
type Ratio float64

// IsInf reports whether the ratio is unbounded
func (r Ratio) IsInf() bool {
	return math.IsInf(float64(r), 1)
}

// String renders the ratio, "Infinity" when unbounded
func (r Ratio) String() string {
	if r.IsInf() {
		return infinityLiteral
	}
	return strconv.FormatFloat(float64(r), 'f', -1, 64)
}

// MarshalJSON writes unbounded ratios as the string "Infinity"
func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.IsInf() {
		return json.Marshal(infinityLiteral)
	}
	return json.Marshal(float64(r))
}

// UnmarshalJSON accepts a number or the string "Infinity"
func (r *Ratio) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == infinityLiteral {
			*r = Ratio(math.Inf(1))
			return nil
		}
		return fmt.Errorf("invalid ratio %q", s)
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid ratio: %w", err)
	}
	*r = Ratio(f)
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller
func (r Ratio) MarshalCSV() (string, error) {
	return r.String(), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller
func (r *Ratio) UnmarshalCSV(s string) error {
	if s == infinityLiteral {
		*r = Ratio(math.Inf(1))
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid ratio %q", s)
	}
	*r = Ratio(f)
	return nil
}
