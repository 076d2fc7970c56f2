// Package legend turns classification state into renderable legend rows.
package legend

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/EmpoweredVote/gestion-map/internal/classify"
)

// Kind selects how legend values are formatted.
type Kind string

const (
	KindCurrency Kind = "currency"
	KindInteger  Kind = "integer"
)

// NoDataLabel labels the class of features without data.
const NoDataLabel = "Sin datos"

var locale = language.MustParse("es-CO")

// Item is one choropleth legend row. Upper is nil on the open-ended last class.
type Item struct {
	Color  string   `json:"color"`
	Label  string   `json:"label"`
	Lower  float64  `json:"desde"`
	Upper  *float64 `json:"hasta"`
	Count  int      `json:"total"`
	NoData bool     `json:"sin_datos,omitempty"`
}

// Choropleth renders one row per class plus a trailing no-data row. Ranges are
// contiguous: each class starts at the previous class's upper bound, the first
// starts at min and the last is open ("más"). Empty breaks produce the no-data
// row only.
func Choropleth(breaks []float64, freq classify.Frequencies, min float64, kind Kind, colors []string) []Item {
	if len(colors) == 0 {
		colors = classify.Palette
	}
	var items []Item
	if len(breaks) > 0 {
		items = make([]Item, 0, len(breaks)+2)
		for i := 0; i <= len(breaks); i++ {
			lower := min
			if i > 0 {
				lower = breaks[i-1]
			}
			item := Item{
				Color: colors[minInt(i, len(colors)-1)],
				Lower: lower,
				Count: countAt(freq.Classes, i),
			}
			if i < len(breaks) {
				upper := breaks[i]
				item.Upper = &upper
				item.Label = Format(lower, kind) + " – " + Format(upper, kind)
			} else {
				item.Label = Format(lower, kind) + " – más"
			}
			items = append(items, item)
		}
	}
	return append(items, Item{
		Color:  classify.NoDataColor,
		Label:  NoDataLabel,
		Count:  freq.NoData,
		NoData: true,
	})
}

// CategoryItem is one toggle row of a point or overlay layer.
type CategoryItem struct {
	Name    string `json:"nombre"`
	Label   string `json:"label"`
	Color   string `json:"color"`
	Count   int    `json:"total"`
	Visible bool   `json:"visible"`
}

// Categories renders toggle rows in the order of names. Missing labels fall
// back to the name.
func Categories(names []string, labels, colors map[string]string, counts map[string]int, visible map[string]bool) []CategoryItem {
	out := make([]CategoryItem, 0, len(names))
	for _, n := range names {
		label := labels[n]
		if label == "" {
			label = n
		}
		out = append(out, CategoryItem{
			Name:    n,
			Label:   label,
			Color:   colors[n],
			Count:   counts[n],
			Visible: visible[n],
		})
	}
	return out
}

// Format renders v for kind.
func Format(v float64, kind Kind) string {
	if kind == KindCurrency {
		return FormatCurrency(v)
	}
	return FormatInt(v)
}

// FormatCurrency renders whole pesos with es-CO grouping: "$ 1.000.000".
func FormatCurrency(v float64) string {
	return "$ " + FormatInt(v)
}

// FormatInt renders a rounded, grouped integer.
func FormatInt(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	p := message.NewPrinter(locale)
	return p.Sprintf("%d", int64(math.Round(v)))
}

func countAt(counts []int, i int) int {
	if i < len(counts) {
		return counts[i]
	}
	return 0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
