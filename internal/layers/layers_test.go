package layers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/gestion-map/internal/aggregate"
	"github.com/EmpoweredVote/gestion-map/internal/catalog"
	"github.com/EmpoweredVote/gestion-map/internal/classify"
	"github.com/EmpoweredVote/gestion-map/internal/gestion"
)

type stubSource struct {
	fc    *geojson.FeatureCollection
	err   error
	calls int
}

func (s *stubSource) Fetch(_ context.Context, _ string) (*geojson.FeatureCollection, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.fc, nil
}

func square(x, y float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}}
}

func feature(x, y float64, props map[string]any) *geojson.Feature {
	f := geojson.NewFeature(square(x, y))
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

func departments() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(-74, 3, map[string]any{"DPTO_CNMBR": "META"}))
	fc.Append(feature(-73, 5, map[string]any{"DPTO_CNMBR": "CASANARE"}))
	fc.Append(feature(-77, 5, map[string]any{"DPTO": "CHOCÓ"}))
	fc.Append(feature(-71, -1, map[string]any{"DPTO_CNMBR": "AMAZONAS"}))
	return fc
}

func municipios() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(-74, 4, map[string]any{"MPIO_CNMBR": "VILLAVICENCIO", "DEPTO": "META"}))
	fc.Append(feature(-73, 5, map[string]any{"MPIO_CNMBR": "YOPAL", "DEPTO": "CASANARE"}))
	fc.Append(feature(-74, 3, map[string]any{"MPIO_CNMBR": "GRANADA"}))
	return fc
}

func testIndex() *catalog.Index {
	return catalog.Build([]catalog.Entry{
		{Department: "Meta", Municipio: "Villavicencio", Lat: 4.1, Lng: -73.6},
		{Department: "Meta", Municipio: "Granada", Lat: 3.5, Lng: -73.7},
		{Department: "Casanare", Municipio: "Yopal", Lat: 5.3, Lng: -72.4},
		{Department: "Chocó", Municipio: "Quibdó", Lat: 5.7, Lng: -76.6},
	})
}

func testRecords() []gestion.GestionRecord {
	return []gestion.GestionRecord{
		{ID: "a", Group: "G1", Departments: []string{"Meta"}, Municipios: []string{"Villavicencio"}, Budget: 100},
		{ID: "b", Group: "G2", Departments: []string{"Casanare"}, Municipios: []string{"Yopal"}, Budget: 300},
		{ID: "c", Group: "G1", Departments: []string{"Chocó"}, Budget: 50},
		{ID: "d", Budget: 10},
	}
}

func loadedSession(t *testing.T) (*Session, *MemorySurface) {
	t.Helper()
	surface := NewMemorySurface()
	s := NewSession(surface, Options{})
	require.NoError(t, s.LoadBoundaries(context.Background(), LevelDepartment, &stubSource{fc: departments()}, "deptos"))
	require.NoError(t, s.SetMetric(aggregate.MetricBudget))
	s.Refresh(testRecords(), testIndex())
	return s, surface
}

func TestNewSessionCreatesPanes(t *testing.T) {
	surface := NewMemorySurface()
	s := NewSession(surface, Options{})

	for _, p := range paneOrder {
		z, ok := surface.Pane(p.name)
		require.True(t, ok, p.name)
		assert.Equal(t, p.z, z)
	}
	assert.Equal(t, LevelDepartment, s.Level())
	assert.Equal(t, ByGroup, s.Selector())
	assert.Empty(t, s.Breaks())
	assert.Empty(t, s.Legend())
}

func TestDepartmentChoropleth(t *testing.T) {
	s, surface := loadedSession(t)

	assert.Equal(t, []float64{100, 300, 50, 0}, s.FeatureValues(LevelDepartment))
	assert.Equal(t, []float64{50, 50, 100, 100}, s.Breaks())

	freq := s.Frequencies()
	assert.Equal(t, []int{1, 0, 1, 0, 1}, freq.Classes)
	assert.Equal(t, 1, freq.NoData)

	id, ok := s.PolygonLayer(LevelDepartment)
	require.True(t, ok)
	styles := surface.Styles(id)
	require.Len(t, styles, 4)
	assert.Equal(t, classify.Palette[2], styles[0].FillColor)
	assert.Equal(t, classify.Palette[4], styles[1].FillColor)
	assert.Equal(t, classify.Palette[0], styles[2].FillColor)
	assert.Equal(t, classify.NoDataColor, styles[3].FillColor)
	assert.Equal(t, 0.7, styles[0].FillOpacity)

	items := s.Legend()
	require.Len(t, items, 6)
	assert.Equal(t, 50.0, items[0].Lower)
	assert.Nil(t, items[4].Upper)
	assert.True(t, items[5].NoData)
	assert.Equal(t, 1, items[5].Count)
}

func TestDepartmentTotalsMatchContributingRecords(t *testing.T) {
	s, _ := loadedSession(t)
	res := s.Result()

	var sum float64
	for _, v := range res.PerDepartment {
		sum += v
	}
	assert.InDelta(t, 450, sum, 1e-9)
	assert.InDelta(t, res.Total, sum, 1e-9)
	require.Len(t, res.Unresolved, 1)
	assert.Equal(t, "d", res.Unresolved[0].Record.ID)

	vm := s.Render()
	assert.Equal(t, 1, vm.Unresolved)
	assert.Equal(t, 10.0, vm.UnresolvedSum)
	assert.Equal(t, 1, vm.Reasons[string(aggregate.ReasonNoLocation)])
}

func TestNoMetricUsesBaseStyle(t *testing.T) {
	s, surface := loadedSession(t)
	require.NoError(t, s.SetMetric(""))

	id, _ := s.PolygonLayer(LevelDepartment)
	for _, st := range surface.Styles(id) {
		assert.Equal(t, departmentBase, st)
	}
	assert.Empty(t, s.Breaks())
	assert.Empty(t, s.Legend())

	assert.ErrorIs(t, s.SetMetric("area"), ErrUnknownMetric)
}

func TestGeoFailureKeepsPriorLayer(t *testing.T) {
	s, surface := loadedSession(t)
	id, _ := s.PolygonLayer(LevelDepartment)
	before := append([]Style{}, surface.Styles(id)...)

	err := s.LoadBoundaries(context.Background(), LevelDepartment, &stubSource{err: errors.New("timeout")}, "deptos")
	require.Error(t, err)

	after, ok := s.PolygonLayer(LevelDepartment)
	require.True(t, ok)
	assert.Equal(t, id, after)
	assert.True(t, surface.Exists(id))
	assert.True(t, surface.HasLayer(id))
	assert.Equal(t, before, surface.Styles(id))

	statuses := s.Statuses()
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Loaded)
	assert.Contains(t, statuses[0].Error, "timeout")
}

func TestGeoFailureBeforeFirstLoad(t *testing.T) {
	surface := NewMemorySurface()
	s := NewSession(surface, Options{})

	err := s.LoadBoundaries(context.Background(), LevelMunicipio, &stubSource{err: errors.New("404")}, "mpios")
	require.Error(t, err)
	_, ok := s.PolygonLayer(LevelMunicipio)
	assert.False(t, ok)
	assert.Equal(t, 0, surface.PolygonLayersCreated)

	assert.ErrorIs(t, s.LoadBoundaries(context.Background(), "vereda", &stubSource{}, "x"), ErrUnknownLevel)
}

func TestSetLevelSwapsWithoutRecreating(t *testing.T) {
	s, surface := loadedSession(t)
	require.NoError(t, s.LoadBoundaries(context.Background(), LevelMunicipio, &stubSource{fc: municipios()}, "mpios"))
	created := surface.PolygonLayersCreated
	assert.Equal(t, 2, created)

	dept, _ := s.PolygonLayer(LevelDepartment)
	muni, _ := s.PolygonLayer(LevelMunicipio)
	assert.True(t, surface.HasLayer(dept))
	assert.False(t, surface.HasLayer(muni))

	require.NoError(t, s.SetLevel(LevelMunicipio))
	assert.Equal(t, created, surface.PolygonLayersCreated)
	assert.False(t, surface.HasLayer(dept))
	assert.True(t, surface.HasLayer(muni))

	assert.Equal(t, []float64{100, 300, 0}, s.FeatureValues(LevelMunicipio))
	styles := surface.Styles(muni)
	require.Len(t, styles, 3)
	assert.Equal(t, classify.NoDataColor, styles[2].FillColor)

	require.NoError(t, s.SetLevel(LevelDepartment))
	assert.True(t, surface.HasLayer(dept))
	assert.False(t, surface.HasLayer(muni))
	assert.Equal(t, created, surface.PolygonLayersCreated)

	assert.ErrorIs(t, s.SetLevel("region"), ErrUnknownLevel)
}

func TestMunicipioWithoutParentJoinsByName(t *testing.T) {
	surface := NewMemorySurface()
	s := NewSession(surface, Options{})
	require.NoError(t, s.SetLevel(LevelMunicipio))
	require.NoError(t, s.LoadBoundaries(context.Background(), LevelMunicipio, &stubSource{fc: municipios()}, "mpios"))
	require.NoError(t, s.SetMetric(aggregate.MetricBudget))

	s.Refresh([]gestion.GestionRecord{
		{ID: "g", Departments: []string{"Meta"}, Municipios: []string{"Granada"}, Budget: 70},
	}, testIndex())

	assert.Equal(t, []float64{0, 0, 70}, s.FeatureValues(LevelMunicipio))
}

func TestMunicipioSharedNameWithoutParentHasNoData(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(-74, 3, map[string]any{"MPIO_CNMBR": "GRANADA"}))
	fc.Append(feature(-75, 6, map[string]any{"MPIO_CNMBR": "GRANADA"}))
	fc.Append(feature(-74, 4, map[string]any{"MPIO_CNMBR": "VILLAVICENCIO"}))

	idx := catalog.Build([]catalog.Entry{
		{Department: "Meta", Municipio: "Granada", Lat: 3.5, Lng: -73.7},
		{Department: "Antioquia", Municipio: "Granada", Lat: 6.1, Lng: -75.2},
		{Department: "Meta", Municipio: "Villavicencio", Lat: 4.1, Lng: -73.6},
	})

	surface := NewMemorySurface()
	s := NewSession(surface, Options{})
	require.NoError(t, s.SetLevel(LevelMunicipio))
	require.NoError(t, s.LoadBoundaries(context.Background(), LevelMunicipio, &stubSource{fc: fc}, "mpios"))
	require.NoError(t, s.SetMetric(aggregate.MetricBudget))

	s.Refresh([]gestion.GestionRecord{
		{ID: "g", Departments: []string{"Meta"}, Municipios: []string{"Granada"}, Budget: 70},
		{ID: "v", Departments: []string{"Meta"}, Municipios: []string{"Villavicencio"}, Budget: 30},
	}, idx)

	assert.Equal(t, []float64{0, 0, 30}, s.FeatureValues(LevelMunicipio))
	assert.Equal(t, 100.0, s.Result().Total)
	assert.Equal(t, 2, s.Frequencies().NoData)

	id, ok := s.PolygonLayer(LevelMunicipio)
	require.True(t, ok)
	styles := surface.Styles(id)
	assert.Equal(t, classify.NoDataColor, styles[0].FillColor)
	assert.Equal(t, classify.NoDataColor, styles[1].FillColor)
}

func TestMarkersByCategory(t *testing.T) {
	s, surface := loadedSession(t)

	assert.Equal(t, []string{"G1", "G2", gestion.NoGroup}, s.Categories())
	g1, ok := s.MarkerGroup("G1")
	require.True(t, ok)
	g2, _ := s.MarkerGroup("G2")
	none, _ := s.MarkerGroup(gestion.NoGroup)

	require.Len(t, surface.Markers(g1), 1)
	require.Len(t, surface.Markers(g2), 1)
	assert.Empty(t, surface.Markers(none))
	assert.Equal(t, 2, surface.MarkersAdded)

	m := surface.Markers(g1)[0]
	assert.Equal(t, "a", m.RecordID)
	assert.Equal(t, 4.1, m.Lat)
	assert.Equal(t, QualitativePalette[0], m.Style.FillColor)
	assert.Equal(t, QualitativePalette[1], surface.Markers(g2)[0].Style.FillColor)
	assert.Contains(t, m.Popup, "Villavicencio, Meta")

	for _, c := range s.CategoryLegend() {
		assert.True(t, c.Visible, c.Name)
	}
	counts := map[string]int{}
	for _, c := range s.CategoryLegend() {
		counts[c.Name] = c.Count
	}
	assert.Equal(t, map[string]int{"G1": 2, "G2": 1, gestion.NoGroup: 1}, counts)

	b, ok := surface.Bounds()
	require.True(t, ok)
	assert.Equal(t, orb.Point{-73.6, 4.1}, b.Min)
	assert.Equal(t, orb.Point{-72.4, 5.3}, b.Max)
}

func TestRebuildMarkersDiscardsOldGroups(t *testing.T) {
	s, surface := loadedSession(t)
	old, _ := s.MarkerGroup("G1")

	s.RebuildMarkers(testRecords(), BySector)

	assert.False(t, surface.Exists(old))
	assert.Equal(t, []string{gestion.NoSector}, s.Categories())
	assert.Equal(t, BySector, s.Selector())
	id, _ := s.MarkerGroup(gestion.NoSector)
	assert.Len(t, surface.Markers(id), 2)
}

func TestToggleOnlyTouchesItsGroup(t *testing.T) {
	s, surface := loadedSession(t)
	g1, _ := s.MarkerGroup("G1")
	g2, _ := s.MarkerGroup("G2")
	added := surface.MarkersAdded
	dept, _ := s.PolygonLayer(LevelDepartment)

	assert.True(t, s.Toggle("G1", false))
	assert.False(t, surface.HasLayer(g1))
	assert.True(t, surface.HasLayer(g2))
	assert.True(t, surface.HasLayer(dept))
	assert.False(t, s.Visible("G1"))

	assert.True(t, s.Toggle("G1", true))
	again, _ := s.MarkerGroup("G1")
	assert.Equal(t, g1, again)
	assert.True(t, surface.HasLayer(g1))
	assert.Len(t, surface.Markers(g1), 1)
	assert.Equal(t, added, surface.MarkersAdded)
}

func TestToggleRemembersUnknownCategory(t *testing.T) {
	s, surface := loadedSession(t)

	assert.False(t, s.Toggle("G3", false))

	recs := append(testRecords(), gestion.GestionRecord{
		ID: "e", Group: "G3", Departments: []string{"Meta"}, Municipios: []string{"Granada"}, Budget: 5,
	})
	s.Refresh(recs, testIndex())

	g3, ok := s.MarkerGroup("G3")
	require.True(t, ok)
	assert.False(t, surface.HasLayer(g3))
	g1, _ := s.MarkerGroup("G1")
	assert.True(t, surface.HasLayer(g1))
}

func TestVisibilitySurvivesRefresh(t *testing.T) {
	s, surface := loadedSession(t)
	s.Toggle("G2", false)

	s.Refresh(testRecords(), testIndex())

	g2, _ := s.MarkerGroup("G2")
	assert.False(t, surface.HasLayer(g2))
	for _, c := range s.CategoryLegend() {
		assert.Equal(t, c.Name != "G2", c.Visible, c.Name)
	}
}

func TestLastRefreshWins(t *testing.T) {
	s, _ := loadedSession(t)

	s.Refresh([]gestion.GestionRecord{
		{ID: "z", Group: "Z", Departments: []string{"Chocó"}, Municipios: []string{"Quibdó"}, Budget: 9},
	}, testIndex())

	res := s.Result()
	assert.Equal(t, 9.0, res.Total)
	assert.Equal(t, map[string]float64{"choco": 9}, res.PerDepartment)
	assert.Equal(t, []string{"Z"}, s.Categories())
	assert.Equal(t, []float64{0, 0, 9, 0}, s.FeatureValues(LevelDepartment))
}

func TestHashColor(t *testing.T) {
	assert.Equal(t, "hsl(97, 55%, 42%)", HashColor("a"))
	assert.Equal(t, "hsl(225, 55%, 42%)", HashColor("ab"))
	assert.Equal(t, HashColor("Indígena"), HashColor("Indígena"))
}

func TestColorAssignerFirstSeen(t *testing.T) {
	a := NewColorAssigner()
	for i := 0; i < len(QualitativePalette); i++ {
		assert.Equal(t, QualitativePalette[i], a.Color(fmt.Sprintf("cat-%d", i)))
	}
	assert.Equal(t, QualitativePalette[0], a.Color("cat-0"))
	assert.Equal(t, HashColor("extra"), a.Color("extra"))
	assert.Len(t, a.Colors(), len(QualitativePalette)+1)
}

func familiesFC() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(-70, 0, map[string]any{"Familia": "Tukano", "Lenguas": "Cubeo, Desano"}))
	fc.Append(feature(-72, 1, map[string]any{"Familia": "arawawk", "Lenguas": "Wayuunaiki"}))
	fc.Append(feature(-73, 2, map[string]any{"Lenguas": "Tinigua"}))
	fc.Append(feature(-71, 3, map[string]any{"Familia": "Arawak"}))
	fc.Append(feature(-74, 7, map[string]any{"Familia": "Chibcha"}))
	return fc
}

func TestLoadFamilies(t *testing.T) {
	surface := NewMemorySurface()
	s := NewSession(surface, Options{})

	require.NoError(t, s.LoadFamilies(context.Background(), &stubSource{fc: familiesFC()}, "familias"))

	assert.Equal(t, []string{"Arawak", "Chibcha", NoFamily, "Tukano"}, s.Families())
	items := s.FamilyLegend()
	require.Len(t, items, 4)
	assert.Equal(t, 2, items[0].Count)
	for i, it := range items {
		assert.Equal(t, QualitativePalette[i], it.Color)
		assert.True(t, it.Visible)
	}

	id, ok := s.FamilyLayer("Tukano")
	require.True(t, ok)
	assert.True(t, surface.HasLayer(id))
	styles := surface.Styles(id)
	require.Len(t, styles, 1)
	assert.Equal(t, Style{Color: QualitativePalette[3], Weight: 2, Opacity: 0.95, FillColor: QualitativePalette[3], FillOpacity: 0.2}, styles[0])

	fc, ok := surface.StyledGeoJSON(id)
	require.True(t, ok)
	assert.Equal(t, "Familia: Tukano\nLenguas: Cubeo, Desano", fc.Features[0].Properties["popup"])
}

func TestToggleFamilyPersistsAcrossReload(t *testing.T) {
	surface := NewMemorySurface()
	s := NewSession(surface, Options{})
	src := &stubSource{fc: familiesFC()}
	require.NoError(t, s.LoadFamilies(context.Background(), src, "familias"))

	assert.True(t, s.ToggleFamily("Chibcha", false))
	old, _ := s.FamilyLayer("Chibcha")
	assert.False(t, surface.HasLayer(old))
	assert.False(t, s.Visible(FamilyPrefix+"Chibcha"))
	assert.True(t, s.Visible("Chibcha"))

	require.NoError(t, s.LoadFamilies(context.Background(), src, "familias"))
	assert.False(t, surface.Exists(old))
	id, _ := s.FamilyLayer("Chibcha")
	assert.False(t, surface.HasLayer(id))
	tukano, _ := s.FamilyLayer("Tukano")
	assert.True(t, surface.HasLayer(tukano))

	src.err = errors.New("unreachable")
	require.Error(t, s.LoadFamilies(context.Background(), src, "familias"))
	assert.True(t, surface.Exists(tukano))
	assert.Len(t, s.Families(), 4)

	assert.False(t, s.ToggleFamily("Quechua", true))
}

func TestRenderViewModel(t *testing.T) {
	s, _ := loadedSession(t)
	vm := s.Render()

	assert.Equal(t, s.ID, vm.SessionID)
	assert.Equal(t, LevelDepartment, vm.Level)
	assert.Equal(t, aggregate.MetricBudget, vm.Metric)
	assert.Equal(t, "Presupuesto", vm.MetricLabel)
	assert.Equal(t, 450.0, vm.Total)
	assert.Equal(t, 2, vm.Markers)
	assert.Len(t, vm.Legend, 6)
	assert.Len(t, vm.Categories, 3)
	assert.Equal(t, 4, vm.Catalog.Indexed)
	require.Len(t, vm.Layers, 1)
	assert.Equal(t, "departamento", vm.Layers[0].Layer)

	// Render is a query.
	assert.Equal(t, vm.Breaks, s.Render().Breaks)
}

func TestParseLevelAndSelector(t *testing.T) {
	l, err := ParseLevel(" Municipios ")
	require.NoError(t, err)
	assert.Equal(t, LevelMunicipio, l)
	_, err = ParseLevel("vereda")
	assert.Error(t, err)

	sel, err := ParseSelector("Población")
	require.NoError(t, err)
	assert.Equal(t, ByPopulation, sel)
	_, err = ParseSelector("color")
	assert.Error(t, err)
}

func TestPopulationCategory(t *testing.T) {
	priority := []gestion.PopulationColumn{{Tag: "Indígena", Column: "indigena"}, {Tag: "Afro", Column: "afro"}}
	g := gestion.GestionRecord{PopulationTags: map[string]float64{"Afro": 1, "Indígena": 1}}
	assert.Equal(t, "Indígena", ByPopulation.Category(g, priority))
	assert.Equal(t, gestion.NoPopulation, ByPopulation.Category(gestion.GestionRecord{}, priority))
	assert.Equal(t, gestion.NoSector, BySector.Category(g, priority))
}

func TestPopulationLegendLabels(t *testing.T) {
	surface := NewMemorySurface()
	fm := gestion.DefaultFieldMap()
	s := NewSession(surface, Options{Population: fm.Population})

	recs := []gestion.GestionRecord{
		{ID: "1", PopulationTags: map[string]float64{"afro": 1, "rrom": 1}},
		{ID: "2"},
	}
	s.Refresh(recs, testIndex())
	s.RebuildMarkers(recs, ByPopulation)

	items := s.CategoryLegend()
	require.Len(t, items, 2)
	assert.Equal(t, "afro", items[0].Name)
	assert.Equal(t, "Afrodescendiente", items[0].Label)
	assert.Equal(t, gestion.NoPopulation, items[1].Label)
}

func boardFC() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(-80, -5, map[string]any{"nombre": "Marco"}))
	fc.Append(feature(-70, 10, nil))
	return fc
}

func TestLoadOverlays(t *testing.T) {
	surface := NewMemorySurface()
	s := NewSession(surface, Options{})

	require.NoError(t, s.LoadOverlay(context.Background(), OverlayBoard, &stubSource{fc: boardFC()}, "001tablero.geojson"))
	require.NoError(t, s.LoadOverlay(context.Background(), OverlayBasemap, &stubSource{fc: boardFC()}, "002basemap.geojson"))

	board, ok := s.OverlayLayer(OverlayBoard)
	require.True(t, ok)
	assert.Equal(t, PaneBase, surface.LayerPane(board))
	assert.True(t, surface.HasLayer(board))
	styles := surface.Styles(board)
	require.Len(t, styles, 2)
	assert.Equal(t, "white", styles[0].FillColor)
	assert.Equal(t, 2.0, styles[0].Weight)
	assert.Equal(t, 1.0, styles[0].FillOpacity)

	basemap, ok := s.OverlayLayer(OverlayBasemap)
	require.True(t, ok)
	assert.Equal(t, PaneBasemap, surface.LayerPane(basemap))
	assert.Equal(t, "#E7E5E4", surface.Styles(basemap)[1].FillColor)
	assert.Equal(t, 0.0, surface.Styles(basemap)[1].Weight)

	fc, ok := surface.StyledGeoJSON(board)
	require.True(t, ok)
	assert.Equal(t, "Marco", fc.Features[0].Properties["popup"])
	assert.Equal(t, "Tablero", fc.Features[1].Properties["popup"])

	_, fitted := surface.Bounds()
	assert.True(t, fitted)

	vm := s.Render()
	assert.Equal(t, []OverlayState{
		{Name: OverlayBoard, Label: "Tablero", Visible: true},
		{Name: OverlayBasemap, Label: "Mapa base", Visible: true},
	}, vm.Overlays)
	var names []string
	for _, st := range vm.Layers {
		names = append(names, st.Layer)
	}
	assert.Equal(t, []string{"mapa_base", "tablero"}, names)
}

func TestToggleOverlayPersistsAcrossReload(t *testing.T) {
	surface := NewMemorySurface()
	s := NewSession(surface, Options{})
	src := &stubSource{fc: boardFC()}

	assert.False(t, s.ToggleOverlay(OverlayBasemap, false))
	require.NoError(t, s.LoadOverlay(context.Background(), OverlayBasemap, src, "002basemap.geojson"))
	first, _ := s.OverlayLayer(OverlayBasemap)
	assert.False(t, surface.HasLayer(first))

	assert.True(t, s.ToggleOverlay(OverlayBasemap, true))
	assert.True(t, surface.HasLayer(first))
	assert.True(t, s.ToggleOverlay(OverlayBasemap, false))

	require.NoError(t, s.LoadOverlay(context.Background(), OverlayBasemap, src, "002basemap.geojson"))
	second, _ := s.OverlayLayer(OverlayBasemap)
	assert.False(t, surface.Exists(first))
	assert.False(t, surface.HasLayer(second))

	src.err = errors.New("timeout")
	require.Error(t, s.LoadOverlay(context.Background(), OverlayBasemap, src, "002basemap.geojson"))
	assert.True(t, surface.Exists(second))

	assert.ErrorIs(t, s.LoadOverlay(context.Background(), "relieve", src, "x"), ErrUnknownOverlay)
}

func TestParseOverlay(t *testing.T) {
	o, err := ParseOverlay(" Tablero ")
	require.NoError(t, err)
	assert.Equal(t, OverlayBoard, o)

	o, err = ParseOverlay("basemap")
	require.NoError(t, err)
	assert.Equal(t, OverlayBasemap, o)

	_, err = ParseOverlay("relieve")
	assert.ErrorIs(t, err, ErrUnknownOverlay)
}

func TestDepartmentScopeNarrowsMarkers(t *testing.T) {
	s, surface := loadedSession(t)
	assert.Equal(t, AllDepartments, s.Department())
	assert.Equal(t, 4, s.InScope())
	assert.Equal(t, 2, s.Render().Markers)

	require.NoError(t, s.SetDepartment("meta"))
	assert.Equal(t, "Meta", s.Department())
	assert.Equal(t, 1, s.InScope())
	assert.Equal(t, []string{"G1"}, s.Categories())
	id, ok := s.MarkerGroup("G1")
	require.True(t, ok)
	require.Len(t, surface.Markers(id), 1)
	assert.Equal(t, "a", surface.Markers(id)[0].RecordID)

	// The choropleth still covers every department.
	assert.Equal(t, []float64{100, 300, 50, 0}, s.FeatureValues(LevelDepartment))
	assert.Equal(t, 450.0, s.Render().Total)

	// The scope survives a refresh.
	s.Refresh(testRecords(), testIndex())
	assert.Equal(t, 1, s.Render().InScope)
	assert.Equal(t, "Meta", s.Render().Department)

	assert.ErrorIs(t, s.SetDepartment("Vaupés"), ErrUnknownDepartment)
	assert.Equal(t, "Meta", s.Department())

	require.NoError(t, s.SetDepartment("Todos"))
	assert.Equal(t, 4, s.InScope())
	assert.Len(t, s.Categories(), 3)
}
