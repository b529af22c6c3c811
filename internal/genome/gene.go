package genome

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// Kind is the domain type of a gene
type Kind string

const (
	KindInt        Kind = "int"
	KindInt0       Kind = "int0" // may be 0 downstream (disabled), samples [min, max] like int
	KindFloat      Kind = "float"
	KindPeriod     Kind = "period"
	KindMakerTaker Kind = "makertaker"
)

// Order placement choices of a makertaker gene
const (
	OrderMaker = "maker"
	OrderTaker = "taker"
)

var makerTakerChoices = []string{OrderMaker, OrderTaker}

// Gene describes the domain of one tunable parameter
// ⭐ SSOT: 파라미터 도메인은 Gene 하나로만 정의
type Gene struct {
	Name string  `yaml:"name" json:"name"`
	Kind Kind    `yaml:"kind" json:"kind"`
	Min  float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max  float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Unit string  `yaml:"unit,omitempty" json:"unit,omitempty"` // period only
}

// Range is an inclusive integer gene
func Range(name string, min, max int) Gene {
	return Gene{Name: name, Kind: KindInt, Min: float64(min), Max: float64(max)}
}

// Range0 is an inclusive integer gene the evaluator treats as "0 = disabled"
func Range0(name string, min, max int) Gene {
	return Gene{Name: name, Kind: KindInt0, Min: float64(min), Max: float64(max)}
}

// RangeFloat is an inclusive real gene
func RangeFloat(name string, min, max float64) Gene {
	return Gene{Name: name, Kind: KindFloat, Min: min, Max: max}
}

// RangePeriod is an integer gene rendered with a time unit (e.g. 35m)
func RangePeriod(name string, min, max int, unit string) Gene {
	return Gene{Name: name, Kind: KindPeriod, Min: float64(min), Max: float64(max), Unit: unit}
}

// MakerTaker is the order type choice gene
func MakerTaker(name string) Gene {
	return Gene{Name: name, Kind: KindMakerTaker}
}

// Validate checks the gene declaration
func (g Gene) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("gene name is required")
	}

	switch g.Kind {
	case KindInt, KindInt0, KindPeriod:
		if g.Min != math.Trunc(g.Min) || g.Max != math.Trunc(g.Max) {
			return fmt.Errorf("gene %s: %s bounds must be integers", g.Name, g.Kind)
		}
	case KindFloat:
	case KindMakerTaker:
		if g.Min != 0 || g.Max != 0 {
			return fmt.Errorf("gene %s: makertaker takes no bounds", g.Name)
		}
	default:
		return fmt.Errorf("gene %s: unknown kind %q", g.Name, g.Kind)
	}

	if g.Min > g.Max {
		return fmt.Errorf("gene %s: min %v > max %v", g.Name, g.Min, g.Max)
	}
	if g.Unit != "" && g.Kind != KindPeriod {
		return fmt.Errorf("gene %s: unit only allowed on period genes", g.Name)
	}
	if g.Kind == KindPeriod && g.Unit == "" {
		return fmt.Errorf("gene %s: period gene needs a unit", g.Name)
	}
	return nil
}

// IsChoice reports whether the gene takes a string choice
func (g Gene) IsChoice() bool {
	return g.Kind == KindMakerTaker
}

// IsInteger reports whether the gene takes integral values
func (g Gene) IsInteger() bool {
	return g.Kind == KindInt || g.Kind == KindInt0 || g.Kind == KindPeriod
}

// Sample draws a uniform value from the gene's domain
func (g Gene) Sample(rng *rand.Rand) Value {
	switch g.Kind {
	case KindMakerTaker:
		return ChoiceValue(makerTakerChoices[rng.Intn(len(makerTakerChoices))])
	case KindFloat:
		return NumberValue(g.Min + rng.Float64()*(g.Max-g.Min))
	default:
		lo, hi := int64(g.Min), int64(g.Max)
		return NumberValue(float64(lo + rng.Int63n(hi-lo+1)))
	}
}

// Contains reports whether v belongs to the gene's domain
func (g Gene) Contains(v Value) bool {
	if g.IsChoice() {
		for _, c := range makerTakerChoices {
			if v.Choice == c {
				return true
			}
		}
		return false
	}

	if v.IsChoice() || math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
		return false
	}
	if g.IsInteger() && v.Num != math.Trunc(v.Num) {
		return false
	}
	return v.Num >= g.Min && v.Num <= g.Max
}

// Format renders v the way the evaluator's CLI expects it
func (g Gene) Format(v Value) string {
	switch g.Kind {
	case KindMakerTaker:
		return v.Choice
	case KindPeriod:
		return strconv.FormatInt(v.Int(), 10) + g.Unit
	case KindFloat:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return strconv.FormatInt(v.Int(), 10)
	}
}

// Coerce converts a decoded checkpoint value into a validated Value.
// Accepts numbers, numeric strings and unit-suffixed periods ("35m").
func (g Gene) Coerce(raw any) (Value, error) {
	var v Value

	switch x := raw.(type) {
	case Value:
		if x.IsChoice() && !g.IsChoice() {
			return g.Coerce(x.Choice)
		}
		v = x
	case float64:
		v = NumberValue(x)
	case float32:
		v = NumberValue(float64(x))
	case int:
		v = NumberValue(float64(x))
	case int64:
		v = NumberValue(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("gene %s: %w", g.Name, err)
		}
		v = NumberValue(f)
	case string:
		if g.IsChoice() {
			v = ChoiceValue(x)
			break
		}
		s := strings.TrimSpace(x)
		if g.Kind == KindPeriod {
			s = strings.TrimSuffix(s, g.Unit)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("gene %s: invalid value %q", g.Name, x)
		}
		v = NumberValue(f)
	case nil:
		return Value{}, fmt.Errorf("gene %s: missing value", g.Name)
	default:
		return Value{}, fmt.Errorf("gene %s: unsupported value type %T", g.Name, raw)
	}

	if !g.Contains(v) {
		return Value{}, fmt.Errorf("gene %s: value %s outside domain %s", g.Name, v, g.Domain())
	}
	return v, nil
}

// Domain renders the gene's domain for tables and errors
func (g Gene) Domain() string {
	switch g.Kind {
	case KindMakerTaker:
		return strings.Join(makerTakerChoices, "|")
	case KindPeriod:
		return fmt.Sprintf("[%d%s, %d%s]", int64(g.Min), g.Unit, int64(g.Max), g.Unit)
	case KindFloat:
		return fmt.Sprintf("[%g, %g]", g.Min, g.Max)
	default:
		return fmt.Sprintf("[%d, %d]", int64(g.Min), int64(g.Max))
	}
}
