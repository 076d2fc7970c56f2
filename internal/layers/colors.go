package layers

import (
	"fmt"
	"math"
	"unicode/utf16"
)

// QualitativePalette colors the first categories seen.
var QualitativePalette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// HashColor derives a stable hue from name. The hash is h = (h<<5) - h + c
// over UTF-16 code units, with the shift wrapping at 32 bits.
func HashColor(name string) string {
	return fmt.Sprintf("hsl(%d, 55%%, 42%%)", hashString(name)%360)
}

func hashString(s string) int64 {
	var h float64
	for _, c := range utf16.Encode([]rune(s)) {
		h = float64(int32(int64(h))<<5) - h + float64(c)
	}
	return int64(math.Abs(h))
}

// ColorAssigner hands out category colors in first-seen order: the palette
// first, then hash-derived hues.
type ColorAssigner struct {
	colors map[string]string
	n      int
}

func NewColorAssigner() *ColorAssigner {
	return &ColorAssigner{colors: make(map[string]string)}
}

// Color returns the color of name, assigning one on first sight.
func (a *ColorAssigner) Color(name string) string {
	if c, ok := a.colors[name]; ok {
		return c
	}
	c := HashColor(name)
	if a.n < len(QualitativePalette) {
		c = QualitativePalette[a.n]
	}
	a.colors[name] = c
	a.n++
	return c
}

// Colors returns a copy of the assignments.
func (a *ColorAssigner) Colors() map[string]string {
	out := make(map[string]string, len(a.colors))
	for k, v := range a.colors {
		out[k] = v
	}
	return out
}
