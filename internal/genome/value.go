package genome

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is one concrete gene value: a number or a choice string
type Value struct {
	Num    float64
	Choice string
}

// NumberValue wraps a numeric gene value
func NumberValue(f float64) Value {
	return Value{Num: f}
}

// ChoiceValue wraps a choice gene value
func ChoiceValue(s string) Value {
	return Value{Choice: s}
}

// IsChoice reports whether v holds a choice string
func (v Value) IsChoice() bool {
	return v.Choice != ""
}

// Int returns the numeric value truncated to an integer
func (v Value) Int() int64 {
	return int64(math.Trunc(v.Num))
}

// Equal compares two values exactly
func (v Value) Equal(o Value) bool {
	return v.Choice == o.Choice && v.Num == o.Num
}

// Any returns the JSON-friendly form (string or float64)
func (v Value) Any() any {
	if v.IsChoice() {
		return v.Choice
	}
	return v.Num
}

func (v Value) String() string {
	if v.IsChoice() {
		return v.Choice
	}
	return strconv.FormatFloat(v.Num, 'f', -1, 64)
}

// MarshalJSON writes choices as strings and everything else as numbers
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsChoice() {
		return json.Marshal(v.Choice)
	}
	return json.Marshal(v.Num)
}

// UnmarshalJSON accepts a JSON number or string.
// Strings are kept as choices; Gene.Coerce turns numeric strings into numbers.
func (v *Value) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = NumberValue(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("gene value must be a number or string: %s", data)
	}
	*v = ChoiceValue(s)
	return nil
}
