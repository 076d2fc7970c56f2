// Package classify computes quantile class breaks for choropleth coloring.
package classify

import (
	"math"
	"sort"
)

// DefaultClasses is the number of classes the map uses.
const DefaultClasses = 5

// Palette is the sequential YlOrRd ramp, lightest first.
var Palette = []string{"#ffffb2", "#fecc5c", "#fd8d3c", "#f03b20", "#bd0026"}

// NoDataColor fills features without a positive value.
const NoDataColor = "#e0e0e0"

// ComputeBreaks returns k-1 ascending thresholds over the finite positive
// values. Threshold i (1..k-1) is the sorted value at floor(i/k*(n-1)). A
// threshold lower than its predecessor is raised to it, so repeated values
// give equal thresholds and empty classes. No positive values, or k <= 1,
// yields no breaks.
func ComputeBreaks(values []float64, k int) []float64 {
	if k <= 1 {
		return []float64{}
	}
	vals := positive(values)
	if len(vals) == 0 {
		return []float64{}
	}
	sort.Float64s(vals)

	n := len(vals)
	breaks := make([]float64, 0, k-1)
	for i := 1; i < k; i++ {
		pos := int(math.Floor(float64(i) / float64(k) * float64(n-1)))
		b := vals[pos]
		if len(breaks) > 0 && b < breaks[len(breaks)-1] {
			b = breaks[len(breaks)-1]
		}
		breaks = append(breaks, b)
	}
	return breaks
}

// ClassOf returns the class of v: 0 for non-positive or non-finite values,
// otherwise the index of the first break v does not exceed, or len(breaks).
func ClassOf(v float64, breaks []float64) int {
	if !HasData(v) {
		return 0
	}
	for i, b := range breaks {
		if v <= b {
			return i
		}
	}
	return len(breaks)
}

// HasData reports whether v takes part in classification.
func HasData(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// Frequencies counts values per class. NoData holds the values that are not
// positive and finite; they are not counted in Classes.
type Frequencies struct {
	NoData  int   `json:"sin_datos"`
	Classes []int `json:"clases"`
}

// Count tallies values against breaks.
func Count(values []float64, breaks []float64) Frequencies {
	f := Frequencies{Classes: make([]int, len(breaks)+1)}
	for _, v := range values {
		if !HasData(v) {
			f.NoData++
			continue
		}
		f.Classes[ClassOf(v, breaks)]++
	}
	return f
}

// Total is the number of counted values, no-data included.
func (f Frequencies) Total() int {
	n := f.NoData
	for _, c := range f.Classes {
		n += c
	}
	return n
}

// Color returns the fill for v.
func Color(v float64, breaks []float64, colors []string) string {
	if !HasData(v) || len(colors) == 0 {
		return NoDataColor
	}
	c := ClassOf(v, breaks)
	if c >= len(colors) {
		c = len(colors) - 1
	}
	return colors[c]
}

// Ramp returns n colors from Palette, spread over its full range.
func Ramp(n int) []string {
	if n <= 0 {
		return []string{}
	}
	if n >= len(Palette) {
		out := make([]string, n)
		for i := range out {
			if i < len(Palette) {
				out[i] = Palette[i]
			} else {
				out[i] = Palette[len(Palette)-1]
			}
		}
		return out
	}
	if n == 1 {
		return []string{Palette[len(Palette)-1]}
	}
	out := make([]string, n)
	for i := range out {
		out[i] = Palette[i*(len(Palette)-1)/(n-1)]
	}
	return out
}

func positive(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if HasData(v) {
			out = append(out, v)
		}
	}
	return out
}
