package layers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/gestion-map/internal/aggregate"
	"github.com/EmpoweredVote/gestion-map/internal/catalog"
	"github.com/EmpoweredVote/gestion-map/internal/classify"
	"github.com/EmpoweredVote/gestion-map/internal/geo"
	"github.com/EmpoweredVote/gestion-map/internal/gestion"
	"github.com/EmpoweredVote/gestion-map/internal/legend"
	"github.com/EmpoweredVote/gestion-map/internal/metrics"
	"github.com/EmpoweredVote/gestion-map/internal/textnorm"
)

// Panes, bottom to top.
const (
	PaneBase        = "base"
	PaneBasemap     = "basemap"
	PaneFamilies    = "familias"
	PaneDepartments = "departamentos"
	PaneMunicipios  = "municipios"
	PaneMarkers     = "marcadores"
	PaneLabels      = "labels"
)

var paneOrder = []struct {
	name string
	z    int
}{
	{PaneBase, 200},
	{PaneBasemap, 300},
	{PaneFamilies, 400},
	{PaneDepartments, 500},
	{PaneMunicipios, 550},
	{PaneMarkers, 600},
	{PaneLabels, 650},
}

var (
	ErrUnknownLevel      = errors.New("unknown level")
	ErrUnknownMetric     = errors.New("unknown metric")
	ErrUnknownDepartment = errors.New("unknown departamento")
)

// LayerStatus reports the last load of a geographic layer. Loaded stays true
// after a failed reload when an earlier load is still on the map.
type LayerStatus struct {
	Layer     string    `json:"capa"`
	Loaded    bool      `json:"cargada"`
	Features  int       `json:"elementos"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"actualizada"`
}

type polygonLayer struct {
	id     LayerID
	fc     *geojson.FeatureCollection
	names  []string
	keys   []string
	values []float64
}

// Options configure a Session.
type Options struct {
	Classes    int
	Population []gestion.PopulationColumn
	Log        *zap.Logger
}

// Session is the state of one map: its polygon layers, marker groups,
// families overlay, category visibility and classification. It is built once
// per map and is not safe for concurrent use.
type Session struct {
	ID uuid.UUID

	surface    MapSurface
	log        *zap.Logger
	classes    int
	colors     []string
	population []gestion.PopulationColumn

	level    Level
	metric   aggregate.Metric
	selector Selector

	polygons map[Level]*polygonLayer

	records []gestion.GestionRecord
	index   *catalog.Index
	result  aggregate.Result

	breaks   []float64
	freq     classify.Frequencies
	minValue float64

	groups         map[string]LayerID
	categories     []string
	categoryColors map[string]string
	categoryCounts map[string]int
	placed         int

	// department scopes markers and counts; empty means every department.
	department string
	inScope    int

	families     map[string]LayerID
	familyOrder  []string
	familyColors map[string]string
	familyCounts map[string]int

	overlays map[Overlay]LayerID

	visibility map[string]bool
	status     map[string]LayerStatus
}

// NewSession creates the panes on surface and returns an empty session at
// department level, with no metric and markers by work group.
func NewSession(surface MapSurface, opts Options) *Session {
	if opts.Classes <= 0 {
		opts.Classes = classify.DefaultClasses
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	s := &Session{
		ID:             uuid.New(),
		surface:        surface,
		log:            opts.Log,
		classes:        opts.Classes,
		colors:         classify.Ramp(opts.Classes),
		population:     opts.Population,
		level:          LevelDepartment,
		selector:       ByGroup,
		polygons:       make(map[Level]*polygonLayer),
		result:         aggregate.NewResult(""),
		breaks:         []float64{},
		freq:           classify.Frequencies{Classes: []int{}},
		groups:         make(map[string]LayerID),
		categoryColors: make(map[string]string),
		categoryCounts: make(map[string]int),
		families:       make(map[string]LayerID),
		familyColors:   make(map[string]string),
		familyCounts:   make(map[string]int),
		overlays:       make(map[Overlay]LayerID),
		visibility:     make(map[string]bool),
		status:         make(map[string]LayerStatus),
	}
	for _, p := range paneOrder {
		surface.CreatePane(p.name, p.z)
	}
	return s
}

// LoadBoundaries fetches the polygons of level from src. On failure the
// previous layer of that level stays as it was; the error is logged, counted
// and recorded in the layer status, then returned.
func (s *Session) LoadBoundaries(ctx context.Context, level Level, src geo.Source, name string) error {
	if level != LevelDepartment && level != LevelMunicipio {
		return fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}

	fc, err := src.Fetch(ctx, name)
	if err != nil {
		s.loadFailed(string(level), name, err)
		return fmt.Errorf("loading %s boundaries: %w", level, err)
	}

	pl := newPolygonLayer(level, fc)
	if old := s.polygons[level]; old != nil {
		s.surface.DeleteLayer(old.id)
	}
	s.polygons[level] = pl
	s.fillValues(level, pl)

	pane := PaneDepartments
	if level == LevelMunicipio {
		pane = PaneMunicipios
	}
	pl.id = s.surface.AddPolygonLayer(pane, fc, s.styleFunc(level), s.bindFunc(level))
	if level == s.level {
		s.surface.AddLayer(pl.id)
		s.recompute()
		if s.placed == 0 {
			if b, ok := geo.Bounds(fc); ok {
				s.surface.FitBounds(b)
			}
		}
	}

	s.status[string(level)] = LayerStatus{
		Layer:     string(level),
		Loaded:    true,
		Features:  len(fc.Features),
		UpdatedAt: time.Now(),
	}
	s.log.Info("boundaries loaded", zap.String("level", string(level)), zap.Int("features", len(fc.Features)))
	return nil
}

func (s *Session) loadFailed(layer, name string, err error) {
	s.log.Warn("geo layer fetch failed",
		zap.String("layer", layer),
		zap.String("source", name),
		zap.Error(err),
	)
	metrics.GeoFetchFailuresTotal.WithLabelValues(layer).Inc()

	st := s.status[layer]
	st.Layer = layer
	st.Error = err.Error()
	st.UpdatedAt = time.Now()
	s.status[layer] = st
}

func newPolygonLayer(level Level, fc *geojson.FeatureCollection) *polygonLayer {
	n := len(fc.Features)
	pl := &polygonLayer{
		fc:     fc,
		names:  make([]string, n),
		keys:   make([]string, n),
		values: make([]float64, n),
	}
	for i, f := range fc.Features {
		if level == LevelDepartment {
			pl.names[i] = geo.FeatureName(f, geo.DepartmentKeys...)
			pl.keys[i] = textnorm.Normalize(pl.names[i])
			continue
		}
		pl.names[i] = geo.FeatureName(f, geo.MunicipioKeys...)
		if parent := geo.ParentName(f); parent != "" {
			pl.keys[i] = catalog.Key(parent, pl.names[i])
		} else {
			pl.keys[i] = textnorm.Normalize(pl.names[i])
		}
	}
	return pl
}

// fillValues joins the aggregate buckets onto the features of a layer by
// normalized name. Features without a bucket get 0. A municipio feature
// without a parent department only takes the name bucket when that name is
// unique in the catalog; a shared name leaves it without data.
func (s *Session) fillValues(level Level, pl *polygonLayer) {
	for i, key := range pl.keys {
		switch {
		case level == LevelDepartment:
			pl.values[i] = s.result.PerDepartment[key]
		case strings.Contains(key, "|"):
			pl.values[i] = s.result.PerLocation[key]
		case len(s.index.LookupByMuniName(key)) == 1:
			pl.values[i] = s.result.PerMuniName[key]
		default:
			pl.values[i] = 0
		}
	}
}

// SetLevel switches the active polygon layer. The inactive layer is detached,
// not discarded.
func (s *Session) SetLevel(level Level) error {
	if level != LevelDepartment && level != LevelMunicipio {
		return fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
	if level == s.level {
		return nil
	}
	if pl := s.polygons[s.level]; pl != nil {
		s.surface.RemoveLayer(pl.id)
	}
	s.level = level
	if pl := s.polygons[level]; pl != nil {
		s.surface.AddLayer(pl.id)
	}
	s.recompute()
	return nil
}

// SetMetric changes the choropleth metric. The empty metric turns the
// choropleth off.
func (s *Session) SetMetric(m aggregate.Metric) error {
	if m != "" && m != aggregate.MetricBudget && m != aggregate.MetricPeople {
		return fmt.Errorf("%w: %q", ErrUnknownMetric, m)
	}
	s.metric = m
	s.reaggregate()
	s.recompute()
	return nil
}

// Refresh swaps in a new snapshot of records and catalog, re-aggregates,
// restyles and rebuilds the markers. The latest call wins.
func (s *Session) Refresh(records []gestion.GestionRecord, idx *catalog.Index) {
	s.records = records
	s.index = idx
	s.reaggregate()
	for _, u := range s.result.Unresolved {
		metrics.UnresolvedRecordsTotal.WithLabelValues(string(u.Reason)).Inc()
	}
	if n := len(s.result.Unresolved); n > 0 {
		s.log.Info("records without location",
			zap.Int("count", n),
			zap.Float64("value", s.result.UnresolvedValue()),
		)
	}
	s.recompute()
	s.RebuildMarkers(records, s.selector)
}

func (s *Session) reaggregate() {
	if s.metric == "" {
		s.result = aggregate.NewResult("")
		return
	}
	s.result = aggregate.Aggregate(s.records, s.metric, s.index)
}

// recompute derives breaks from the active level's feature values, or from
// the buckets when that level has no boundaries yet, and restyles.
func (s *Session) recompute() {
	for level, pl := range s.polygons {
		s.fillValues(level, pl)
	}
	breaks := []float64{}
	if s.metric != "" {
		breaks = classify.ComputeBreaks(s.activeValues(), s.classes)
	}
	s.ApplyStyles(s.result, breaks)
}

func (s *Session) activeValues() []float64 {
	if pl := s.polygons[s.level]; pl != nil {
		return pl.values
	}
	if s.level == LevelMunicipio {
		return s.result.LocationValues()
	}
	return s.result.DepartmentValues()
}

// ApplyStyles colors every polygon feature by its class under breaks and
// counts the active level's features per class. It touches each feature once
// and never refetches geometry.
func (s *Session) ApplyStyles(result aggregate.Result, breaks []float64) {
	s.result = result
	s.breaks = append([]float64{}, breaks...)
	for level, pl := range s.polygons {
		s.fillValues(level, pl)
	}

	vals := s.activeValues()
	s.freq = classify.Count(vals, s.breaks)
	s.minValue = minPositive(vals)

	for level, pl := range s.polygons {
		s.surface.SetStyle(pl.id, s.styleFunc(level))
	}
}

func minPositive(values []float64) float64 {
	min := math.Inf(1)
	for _, v := range values {
		if classify.HasData(v) && v < min {
			min = v
		}
	}
	if math.IsInf(min, 1) {
		return 0
	}
	return min
}

var (
	departmentBase = Style{Color: "#495057", Weight: 1.4, Opacity: 1, FillColor: "transparent", FillOpacity: 0}
	municipioBase  = Style{Color: "#000000", Weight: 1, Opacity: 1, FillColor: "lightgray", FillOpacity: 0.5}
)

func (s *Session) styleFunc(level Level) StyleFunc {
	return func(i int, _ *geojson.Feature) Style {
		base := departmentBase
		if level == LevelMunicipio {
			base = municipioBase
		}
		pl := s.polygons[level]
		if s.metric == "" || pl == nil || i >= len(pl.values) {
			return base
		}
		v := pl.values[i]
		if !classify.HasData(v) {
			return Style{Color: "#212529", Weight: base.Weight, Opacity: 1, FillColor: classify.NoDataColor, FillOpacity: 0.4}
		}
		return Style{
			Color:       "#212529",
			Weight:      base.Weight,
			Opacity:     1,
			FillColor:   classify.Color(v, s.breaks, s.colors),
			FillOpacity: 0.7,
		}
	}
}

func (s *Session) bindFunc(level Level) FeatureFunc {
	return func(_ int, f *geojson.Feature) Binding {
		if level == LevelDepartment {
			return Binding{Tooltip: geo.FeatureName(f, geo.DepartmentKeys...)}
		}
		name := geo.FeatureName(f, geo.MunicipioKeys...)
		if parent := geo.ParentName(f); parent != "" && name != "" {
			name += ", " + parent
		}
		return Binding{Tooltip: name}
	}
}

// RebuildMarkers discards every marker group and places one marker per
// resolved (record, municipio) pair, grouped by the category sel assigns.
// Only records in the department scope are considered. Records or municipios
// that do not resolve get no marker. Category colors follow first-seen order.
// Categories seen for the first time start visible.
func (s *Session) RebuildMarkers(records []gestion.GestionRecord, sel Selector) {
	for _, id := range s.groups {
		s.surface.DeleteLayer(id)
	}
	records = s.scoped(records)
	s.inScope = len(records)
	s.selector = sel
	s.groups = make(map[string]LayerID)
	s.categories = nil
	s.categoryCounts = make(map[string]int)
	s.placed = 0
	colors := NewColorAssigner()

	type pending struct {
		category string
		marker   Marker
	}
	var markers []pending

	for _, g := range records {
		cat := sel.Category(g, s.population)
		if _, ok := s.categoryCounts[cat]; !ok {
			s.categories = append(s.categories, cat)
		}
		s.categoryCounts[cat]++
		color := colors.Color(cat)

		res := aggregate.Resolve(g, s.index)
		for _, e := range res.Entries {
			markers = append(markers, pending{category: cat, marker: s.marker(g, e, cat, color)})
		}
	}
	s.categoryColors = colors.Colors()

	for _, cat := range s.categories {
		s.groups[cat] = s.surface.NewLayerGroup(PaneMarkers)
	}

	var bound orb.Bound
	for _, p := range markers {
		s.surface.AddPointMarker(s.groups[p.category], p.marker)
		pt := orb.Point{p.marker.Lng, p.marker.Lat}
		if s.placed == 0 {
			bound = pt.Bound()
		} else {
			bound = bound.Extend(pt)
		}
		s.placed++
	}

	for _, cat := range s.categories {
		if s.visibleOrDefault(cat) {
			s.surface.AddLayer(s.groups[cat])
		}
	}
	if s.placed > 0 {
		s.surface.FitBounds(bound)
	}
}

func (s *Session) marker(g gestion.GestionRecord, e catalog.Entry, category, color string) Marker {
	lines := []string{e.Municipio + ", " + e.Department, g.GroupOrDefault()}
	for _, v := range []string{g.Program, g.Sector, g.Status} {
		if v != "" {
			lines = append(lines, v)
		}
	}
	if g.Budget > 0 {
		lines = append(lines, legend.FormatCurrency(g.Budget))
	}
	return Marker{
		Lat:      e.Lat,
		Lng:      e.Lng,
		Category: category,
		RecordID: g.ID,
		Style: MarkerStyle{
			Radius:      6,
			Color:       "black",
			Weight:      1,
			FillColor:   color,
			FillOpacity: 0.7,
		},
		Binding: Binding{
			Tooltip: e.Municipio,
			Popup:   strings.Join(lines, "\n"),
		},
	}
}

func (s *Session) visibleOrDefault(key string) bool {
	v, ok := s.visibility[key]
	if !ok {
		v = true
		s.visibility[key] = true
	}
	return v
}

// Toggle shows or hides one marker category. Only that category's group is
// attached or detached. The choice is remembered even for a category that has
// no markers yet. It reports whether a group was affected.
func (s *Session) Toggle(category string, visible bool) bool {
	s.visibility[category] = visible
	id, ok := s.groups[category]
	if !ok {
		return false
	}
	setAttached(s.surface, id, visible)
	return true
}

func setAttached(surface MapSurface, id LayerID, visible bool) {
	if visible {
		if !surface.HasLayer(id) {
			surface.AddLayer(id)
		}
		return
	}
	surface.RemoveLayer(id)
}
