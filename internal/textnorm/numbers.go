package textnorm

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var nonNumeric = regexp.MustCompile(`[^\d.,-]`)

// ParseNumber reads a loosely formatted amount such as "$1.000.000",
// "4,290,565" or 1.5e6. Dots and commas are both treated as grouping
// separators, which matches how budgets and head counts are typed in the
// gestion table (whole pesos, whole people). Anything unparseable is 0.
func ParseNumber(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return finiteOrZero(x)
	case float32:
		return finiteOrZero(float64(x))
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return ParseNumber(x.String())
		}
		return finiteOrZero(f)
	case bool:
		if x {
			return 1
		}
		return 0
	case []byte:
		return ParseNumber(string(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		cleaned := nonNumeric.ReplaceAllString(s, "")
		if cleaned == "" {
			return 0
		}
		digits := strings.NewReplacer(".", "", ",", "").Replace(cleaned)
		f, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return 0
		}
		return finiteOrZero(f)
	default:
		return 0
	}
}

// ParsePercent reads a completion percentage. Fractions in [0,1] are scaled
// to [0,100]; numbers already in [0,100] pass through. Strings may carry a
// "%" sign and es-CO separators ("12,5 %", "0.45"). The second return value
// is false when the input cannot be read as a percentage; such values must be
// left out of averages rather than counted as zero.
func ParsePercent(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return percentRange(x)
	case float32:
		return percentRange(float64(x))
	case int:
		return percentRange(float64(x))
	case int64:
		return percentRange(float64(x))
	case json.Number:
		return ParsePercent(x.String())
	case []byte:
		return ParsePercent(string(x))
	case string:
		return parsePercentString(x)
	default:
		return 0, false
	}
}

func parsePercentString(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.TrimSpace(strings.Replace(s, "%", "", 1))
	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" {
		return 0, false
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		// 12.345,67
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case commas == 1 && dots == 0:
		s = strings.Replace(s, ",", ".", 1)
	case dots > 1 && commas == 0:
		s = strings.ReplaceAll(s, ".", "")
	case commas > 1 && dots == 0:
		s = strings.ReplaceAll(s, ",", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return percentRange(f)
}

func percentRange(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f >= 0 && f <= 1 {
		return f * 100, true
	}
	if f >= 0 && f <= 100 {
		return f, true
	}
	return 0, false
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
