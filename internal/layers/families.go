package layers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/gestion-map/internal/geo"
	"github.com/EmpoweredVote/gestion-map/internal/gestion"
)

// FamilyPrefix namespaces family names in the visibility state.
const FamilyPrefix = "familia:"

// NoFamily labels features without a Familia property.
const NoFamily = "Sin familia"

const familiesLayer = "familias"

// FamilyName reads the Familia property, fixing the "Arawawk" misspelling
// present in the published file.
func FamilyName(f *geojson.Feature) string {
	name := geo.FeatureName(f, "Familia", "familia")
	if name == "" {
		return NoFamily
	}
	if strings.EqualFold(name, "arawawk") {
		return "Arawak"
	}
	return name
}

// LoadFamilies replaces the linguistic families overlay with one polygon
// layer per family. Families are sorted by name and colored from the
// qualitative palette in that order. A failed fetch keeps the current
// overlay.
func (s *Session) LoadFamilies(ctx context.Context, src geo.Source, name string) error {
	fc, err := src.Fetch(ctx, name)
	if err != nil {
		s.loadFailed(familiesLayer, name, err)
		return fmt.Errorf("loading linguistic families: %w", err)
	}

	byFamily := make(map[string]*geojson.FeatureCollection)
	var names []string
	for _, f := range fc.Features {
		fam := FamilyName(f)
		if _, ok := byFamily[fam]; !ok {
			byFamily[fam] = geojson.NewFeatureCollection()
			names = append(names, fam)
		}
		byFamily[fam].Append(f)
	}
	gestion.SortSpanish(names)

	for _, id := range s.families {
		s.surface.DeleteLayer(id)
	}
	s.families = make(map[string]LayerID, len(names))
	s.familyColors = make(map[string]string, len(names))
	s.familyCounts = make(map[string]int, len(names))
	s.familyOrder = names

	for i, fam := range names {
		color := QualitativePalette[i%len(QualitativePalette)]
		s.familyColors[fam] = color
		s.familyCounts[fam] = len(byFamily[fam].Features)

		style := Style{Color: color, Weight: 2, Opacity: 0.95, FillColor: color, FillOpacity: 0.2}
		id := s.surface.AddPolygonLayer(PaneFamilies, byFamily[fam],
			func(int, *geojson.Feature) Style { return style },
			familyBinding,
		)
		s.families[fam] = id
		if s.visibleOrDefault(FamilyPrefix + fam) {
			s.surface.AddLayer(id)
		}
	}

	s.status[familiesLayer] = LayerStatus{
		Layer:     familiesLayer,
		Loaded:    true,
		Features:  len(fc.Features),
		UpdatedAt: time.Now(),
	}
	s.log.Info("linguistic families loaded", zap.Int("families", len(names)), zap.Int("features", len(fc.Features)))
	return nil
}

func familyBinding(_ int, f *geojson.Feature) Binding {
	fam := FamilyName(f)
	popup := "Familia: " + fam
	if lenguas := geo.FeatureName(f, "Lenguas", "lenguas"); lenguas != "" {
		popup += "\nLenguas: " + lenguas
	}
	return Binding{Tooltip: fam, Popup: popup}
}

// ToggleFamily shows or hides one family layer. It reports whether the family
// exists.
func (s *Session) ToggleFamily(family string, visible bool) bool {
	s.visibility[FamilyPrefix+family] = visible
	id, ok := s.families[family]
	if !ok {
		return false
	}
	setAttached(s.surface, id, visible)
	return true
}
