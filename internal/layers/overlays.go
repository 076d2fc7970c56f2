package layers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/gestion-map/internal/geo"
)

// Overlay is one of the fixed-style background layers.
type Overlay string

const (
	OverlayBoard   Overlay = "tablero"
	OverlayBasemap Overlay = "mapa_base"
)

// OverlayPrefix namespaces overlays in the visibility state.
const OverlayPrefix = "capa:"

var ErrUnknownOverlay = errors.New("unknown overlay")

type overlaySpec struct {
	pane  string
	label string
	style Style
}

var overlays = map[Overlay]overlaySpec{
	OverlayBoard: {
		pane:  PaneBase,
		label: "Tablero",
		style: Style{Color: "#3388ff", Weight: 2, Opacity: 1, FillColor: "white", FillOpacity: 1},
	},
	OverlayBasemap: {
		pane:  PaneBasemap,
		label: "Mapa base",
		style: Style{Color: "#3388ff", Weight: 0, Opacity: 1, FillColor: "#E7E5E4", FillOpacity: 1},
	},
}

// ParseOverlay accepts "tablero" and "mapa_base" (or "basemap").
func ParseOverlay(s string) (Overlay, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tablero":
		return OverlayBoard, nil
	case "mapa_base", "mapabase", "basemap":
		return OverlayBasemap, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOverlay, s)
}

// LoadOverlay replaces an overlay with the polygons in name. The overlay is
// shown unless it was hidden before. A failed fetch keeps the current layer.
func (s *Session) LoadOverlay(ctx context.Context, o Overlay, src geo.Source, name string) error {
	spec, ok := overlays[o]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOverlay, o)
	}
	fc, err := src.Fetch(ctx, name)
	if err != nil {
		s.loadFailed(string(o), name, err)
		return fmt.Errorf("loading %s: %w", o, err)
	}

	if old, ok := s.overlays[o]; ok {
		s.surface.DeleteLayer(old)
	}
	style := spec.style
	label := spec.label
	id := s.surface.AddPolygonLayer(spec.pane, fc,
		func(int, *geojson.Feature) Style { return style },
		func(_ int, f *geojson.Feature) Binding {
			name := geo.FeatureName(f, "nombre", "Name")
			if name == "" {
				name = label
			}
			return Binding{Popup: name}
		},
	)
	s.overlays[o] = id
	if s.visibleOrDefault(OverlayPrefix + string(o)) {
		s.surface.AddLayer(id)
	}
	if s.placed == 0 && s.polygons[s.level] == nil {
		if b, ok := geo.Bounds(fc); ok {
			s.surface.FitBounds(b)
		}
	}

	s.status[string(o)] = LayerStatus{
		Layer:     string(o),
		Loaded:    true,
		Features:  len(fc.Features),
		UpdatedAt: time.Now(),
	}
	s.log.Info("overlay loaded", zap.String("overlay", string(o)), zap.Int("features", len(fc.Features)))
	return nil
}

// ToggleOverlay shows or hides an overlay. The choice is remembered for
// later loads. It reports whether the overlay is loaded.
func (s *Session) ToggleOverlay(o Overlay, visible bool) bool {
	s.visibility[OverlayPrefix+string(o)] = visible
	id, ok := s.overlays[o]
	if !ok {
		return false
	}
	setAttached(s.surface, id, visible)
	return true
}

// OverlayLayer returns the layer of a loaded overlay.
func (s *Session) OverlayLayer(o Overlay) (LayerID, bool) {
	id, ok := s.overlays[o]
	return id, ok
}

// OverlayState is an overlay as listed in the view model.
type OverlayState struct {
	Name    Overlay `json:"nombre"`
	Label   string  `json:"etiqueta"`
	Visible bool    `json:"visible"`
}

// Overlays lists the loaded overlays, bottom first.
func (s *Session) Overlays() []OverlayState {
	out := []OverlayState{}
	for _, o := range []Overlay{OverlayBoard, OverlayBasemap} {
		if _, ok := s.overlays[o]; !ok {
			continue
		}
		out = append(out, OverlayState{
			Name:    o,
			Label:   overlays[o].label,
			Visible: s.Visible(OverlayPrefix + string(o)),
		})
	}
	return out
}
