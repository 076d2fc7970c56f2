// Package layers owns the map session: boundary polygon layers, marker
// groups per category and the linguistic families overlay, drawn on a
// MapSurface.
package layers

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LayerID identifies a layer created on a surface.
type LayerID string

// Style is a path style for polygons.
type Style struct {
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
}

// StyleFunc styles the i-th feature of a polygon layer.
type StyleFunc func(i int, f *geojson.Feature) Style

// Binding is what a feature shows on hover and click.
type Binding struct {
	Tooltip string `json:"tooltip,omitempty"`
	Popup   string `json:"popup,omitempty"`
}

// FeatureFunc is called once per feature when a polygon layer is created.
type FeatureFunc func(i int, f *geojson.Feature) Binding

// MarkerStyle is a circle marker style.
type MarkerStyle struct {
	Radius      float64 `json:"radius"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
}

// Marker is a point placed on the map.
type Marker struct {
	Lat      float64     `json:"lat"`
	Lng      float64     `json:"lng"`
	Style    MarkerStyle `json:"style"`
	Category string      `json:"categoria"`
	RecordID string      `json:"id,omitempty"`
	Binding
}

// MapSurface is the drawing target. Layers are created detached; AddLayer and
// RemoveLayer attach and detach them without discarding them, DeleteLayer
// discards them.
type MapSurface interface {
	CreatePane(name string, zIndex int)
	AddPolygonLayer(pane string, fc *geojson.FeatureCollection, style StyleFunc, each FeatureFunc) LayerID
	SetStyle(id LayerID, style StyleFunc)
	NewLayerGroup(pane string) LayerID
	AddPointMarker(group LayerID, m Marker)
	AddLayer(id LayerID)
	RemoveLayer(id LayerID)
	HasLayer(id LayerID) bool
	DeleteLayer(id LayerID)
	FitBounds(b orb.Bound)
}
