package layers

import (
	"sort"

	"github.com/google/uuid"

	"github.com/EmpoweredVote/gestion-map/internal/aggregate"
	"github.com/EmpoweredVote/gestion-map/internal/catalog"
	"github.com/EmpoweredVote/gestion-map/internal/classify"
	"github.com/EmpoweredVote/gestion-map/internal/legend"
)

// ViewModel is everything the page needs to draw the map controls.
type ViewModel struct {
	SessionID     uuid.UUID             `json:"sesion"`
	Level         Level                 `json:"nivel"`
	Metric        aggregate.Metric      `json:"metrica"`
	MetricLabel   string                `json:"metrica_label,omitempty"`
	Selector      Selector              `json:"categoria"`
	Breaks        []float64             `json:"cortes"`
	Frequencies   classify.Frequencies  `json:"frecuencias"`
	Legend        []legend.Item         `json:"leyenda"`
	Categories    []legend.CategoryItem `json:"categorias"`
	Families      []legend.CategoryItem `json:"familias"`
	Overlays      []OverlayState        `json:"capas_base"`
	Layers        []LayerStatus         `json:"capas"`
	Department    string                `json:"departamento"`
	InScope       int                   `json:"gestiones"`
	Total         float64               `json:"total"`
	TotalLabel    string                `json:"total_label,omitempty"`
	Markers       int                   `json:"marcadores"`
	Unresolved    int                   `json:"sin_ubicar"`
	UnresolvedSum float64               `json:"sin_ubicar_valor"`
	Reasons       map[string]int        `json:"motivos,omitempty"`
	Catalog       catalog.Stats         `json:"catalogo"`
}

// Render builds the view model from the current state. It does not change
// the session.
func (s *Session) Render() ViewModel {
	vm := ViewModel{
		SessionID:     s.ID,
		Level:         s.level,
		Metric:        s.metric,
		Selector:      s.selector,
		Breaks:        s.Breaks(),
		Frequencies:   s.Frequencies(),
		Legend:        s.Legend(),
		Categories:    s.CategoryLegend(),
		Families:      s.FamilyLegend(),
		Overlays:      s.Overlays(),
		Layers:        s.Statuses(),
		Department:    s.Department(),
		InScope:       s.inScope,
		Total:         s.result.Total,
		Markers:       s.placed,
		Unresolved:    len(s.result.Unresolved),
		UnresolvedSum: s.result.UnresolvedValue(),
		Catalog:       s.index.Stats(),
	}
	if s.metric != "" {
		vm.MetricLabel = s.metric.Label()
		vm.TotalLabel = legend.Format(s.result.Total, s.legendKind())
	}
	if len(s.result.Unresolved) > 0 {
		vm.Reasons = make(map[string]int)
		for _, u := range s.result.Unresolved {
			vm.Reasons[string(u.Reason)]++
		}
	}
	return vm
}

func (s *Session) legendKind() legend.Kind {
	if s.metric.Currency() {
		return legend.KindCurrency
	}
	return legend.KindInteger
}

// Legend renders the choropleth legend of the active metric. It is empty when
// no metric is selected.
func (s *Session) Legend() []legend.Item {
	if s.metric == "" {
		return []legend.Item{}
	}
	return legend.Choropleth(s.breaks, s.freq, s.minValue, s.legendKind(), s.colors)
}

// CategoryLegend lists the marker categories in first-seen order.
func (s *Session) CategoryLegend() []legend.CategoryItem {
	visible := make(map[string]bool, len(s.categories))
	for _, c := range s.categories {
		visible[c] = s.Visible(c)
	}
	var labels map[string]string
	if s.selector == ByPopulation {
		labels = make(map[string]string, len(s.population))
		for _, pc := range s.population {
			labels[pc.Tag] = pc.Label
		}
	}
	return legend.Categories(s.categories, labels, s.categoryColors, s.categoryCounts, visible)
}

// FamilyLegend lists the linguistic families in name order.
func (s *Session) FamilyLegend() []legend.CategoryItem {
	visible := make(map[string]bool, len(s.familyOrder))
	for _, f := range s.familyOrder {
		visible[f] = s.Visible(FamilyPrefix + f)
	}
	return legend.Categories(s.familyOrder, nil, s.familyColors, s.familyCounts, visible)
}

// Breaks returns a copy of the current class thresholds.
func (s *Session) Breaks() []float64 {
	return append([]float64{}, s.breaks...)
}

// Frequencies returns the per-class feature counts of the active level.
func (s *Session) Frequencies() classify.Frequencies {
	return classify.Frequencies{
		NoData:  s.freq.NoData,
		Classes: append([]int{}, s.freq.Classes...),
	}
}

// Statuses lists the geographic layer statuses by layer name.
func (s *Session) Statuses() []LayerStatus {
	out := make([]LayerStatus, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Layer < out[j].Layer })
	return out
}

// Visible reports the remembered visibility of a category, of a
// "familia:"-prefixed family or of a "capa:"-prefixed overlay. Unknown keys
// are visible.
func (s *Session) Visible(key string) bool {
	v, ok := s.visibility[key]
	return !ok || v
}

func (s *Session) Level() Level { return s.level }
func (s *Session) Metric() aggregate.Metric { return s.metric }
func (s *Session) Selector() Selector { return s.selector }
func (s *Session) Result() aggregate.Result { return s.result }
func (s *Session) Index() *catalog.Index { return s.index }
func (s *Session) Categories() []string { return append([]string{}, s.categories...) }
func (s *Session) Families() []string { return append([]string{}, s.familyOrder...) }

// PolygonLayer returns the surface layer of level, if loaded.
func (s *Session) PolygonLayer(level Level) (LayerID, bool) {
	pl := s.polygons[level]
	if pl == nil {
		return "", false
	}
	return pl.id, true
}

// MarkerGroup returns the surface layer group of a category.
func (s *Session) MarkerGroup(category string) (LayerID, bool) {
	id, ok := s.groups[category]
	return id, ok
}

// FamilyLayer returns the surface layer of a family.
func (s *Session) FamilyLayer(family string) (LayerID, bool) {
	id, ok := s.families[family]
	return id, ok
}

// FeatureValues returns the metric value joined onto each feature of level,
// in feature order.
func (s *Session) FeatureValues(level Level) []float64 {
	pl := s.polygons[level]
	if pl == nil {
		return nil
	}
	return append([]float64{}, pl.values...)
}
