package layers

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type layerKind int

const (
	kindPolygon layerKind = iota
	kindGroup
)

type memLayer struct {
	kind     layerKind
	pane     string
	fc       *geojson.FeatureCollection
	styles   []Style
	bindings []Binding
	markers  []Marker
}

// MemorySurface is a MapSurface kept in memory. The HTTP layer serializes it
// for the browser; tests inspect it directly. It is not safe for concurrent
// use.
type MemorySurface struct {
	panes  map[string]int
	layers map[LayerID]*memLayer
	onMap  map[LayerID]bool
	seq    int

	bounds    orb.Bound
	hasBounds bool

	// Counters of surface operations.
	PolygonLayersCreated int
	StyleCalls           int
	StyledFeatures       int
	MarkersAdded         int
	LayersDeleted        int
}

func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		panes:  make(map[string]int),
		layers: make(map[LayerID]*memLayer),
		onMap:  make(map[LayerID]bool),
	}
}

func (m *MemorySurface) nextID() LayerID {
	m.seq++
	return LayerID(fmt.Sprintf("layer-%d", m.seq))
}

func (m *MemorySurface) CreatePane(name string, zIndex int) {
	m.panes[name] = zIndex
}

func (m *MemorySurface) AddPolygonLayer(pane string, fc *geojson.FeatureCollection, style StyleFunc, each FeatureFunc) LayerID {
	id := m.nextID()
	l := &memLayer{kind: kindPolygon, pane: pane, fc: fc}
	if fc != nil {
		l.bindings = make([]Binding, len(fc.Features))
		if each != nil {
			for i, f := range fc.Features {
				l.bindings[i] = each(i, f)
			}
		}
	}
	m.layers[id] = l
	m.PolygonLayersCreated++
	m.applyStyle(l, style)
	return id
}

func (m *MemorySurface) SetStyle(id LayerID, style StyleFunc) {
	l, ok := m.layers[id]
	if !ok || l.kind != kindPolygon {
		return
	}
	m.StyleCalls++
	m.applyStyle(l, style)
}

func (m *MemorySurface) applyStyle(l *memLayer, style StyleFunc) {
	if l.fc == nil {
		return
	}
	l.styles = make([]Style, len(l.fc.Features))
	if style == nil {
		return
	}
	for i, f := range l.fc.Features {
		l.styles[i] = style(i, f)
		m.StyledFeatures++
	}
}

func (m *MemorySurface) NewLayerGroup(pane string) LayerID {
	id := m.nextID()
	m.layers[id] = &memLayer{kind: kindGroup, pane: pane}
	return id
}

func (m *MemorySurface) AddPointMarker(group LayerID, mk Marker) {
	l, ok := m.layers[group]
	if !ok || l.kind != kindGroup {
		return
	}
	l.markers = append(l.markers, mk)
	m.MarkersAdded++
}

func (m *MemorySurface) AddLayer(id LayerID) {
	if _, ok := m.layers[id]; ok {
		m.onMap[id] = true
	}
}

func (m *MemorySurface) RemoveLayer(id LayerID) {
	delete(m.onMap, id)
}

func (m *MemorySurface) HasLayer(id LayerID) bool {
	return m.onMap[id]
}

func (m *MemorySurface) DeleteLayer(id LayerID) {
	if _, ok := m.layers[id]; !ok {
		return
	}
	delete(m.onMap, id)
	delete(m.layers, id)
	m.LayersDeleted++
}

func (m *MemorySurface) FitBounds(b orb.Bound) {
	m.bounds = b
	m.hasBounds = true
}

// Pane returns the z-index of a pane.
func (m *MemorySurface) Pane(name string) (int, bool) {
	z, ok := m.panes[name]
	return z, ok
}

// LayerPane returns the pane a layer was created in.
func (m *MemorySurface) LayerPane(id LayerID) string {
	if l, ok := m.layers[id]; ok {
		return l.pane
	}
	return ""
}

// Bounds is the last extent passed to FitBounds.
func (m *MemorySurface) Bounds() (orb.Bound, bool) {
	return m.bounds, m.hasBounds
}

// Exists reports whether id has not been deleted.
func (m *MemorySurface) Exists(id LayerID) bool {
	_, ok := m.layers[id]
	return ok
}

// Styles returns the current per-feature styles of a polygon layer.
func (m *MemorySurface) Styles(id LayerID) []Style {
	if l, ok := m.layers[id]; ok {
		return l.styles
	}
	return nil
}

// Markers returns the markers of a group.
func (m *MemorySurface) Markers(id LayerID) []Marker {
	if l, ok := m.layers[id]; ok {
		return l.markers
	}
	return nil
}

// AttachedLayers lists the layers currently on the map, by id.
func (m *MemorySurface) AttachedLayers() []LayerID {
	out := make([]LayerID, 0, len(m.onMap))
	for id := range m.onMap {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// StyledGeoJSON copies a polygon layer with each feature's style and binding
// set as the "style", "tooltip" and "popup" properties.
func (m *MemorySurface) StyledGeoJSON(id LayerID) (*geojson.FeatureCollection, bool) {
	l, ok := m.layers[id]
	if !ok || l.kind != kindPolygon || l.fc == nil {
		return nil, false
	}
	out := geojson.NewFeatureCollection()
	for i, f := range l.fc.Features {
		nf := geojson.NewFeature(f.Geometry)
		nf.ID = f.ID
		for k, v := range f.Properties {
			nf.Properties[k] = v
		}
		if i < len(l.styles) {
			nf.Properties["style"] = l.styles[i]
		}
		if i < len(l.bindings) {
			if b := l.bindings[i]; b.Tooltip != "" || b.Popup != "" {
				nf.Properties["tooltip"] = b.Tooltip
				nf.Properties["popup"] = b.Popup
			}
		}
		out.Append(nf)
	}
	return out, true
}
