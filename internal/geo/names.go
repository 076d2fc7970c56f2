package geo

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Property keys that carry a feature's name, in lookup order.
var (
	DepartmentKeys = []string{"DPTO_CNMBR", "DPTO", "NOMBRE_DPT", "departamento", "nombre", "Name"}
	MunicipioKeys  = []string{"MPIO_CNMBR", "MPIO", "NOMBRE_MPI", "municipio", "nombre", "Name"}
	ParentKeys     = []string{"DEPTO", "DPTO_CNMBR", "NOMBRE_DPT", "departamento"}
)

// FeatureName returns the first non-empty property among keys.
func FeatureName(f *geojson.Feature, keys ...string) string {
	if f == nil {
		return ""
	}
	for _, k := range keys {
		v, ok := f.Properties[k]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s != "" {
			return s
		}
	}
	return ""
}

// ParentName returns the department a municipio feature belongs to, if the
// file carries it.
func ParentName(f *geojson.Feature) string {
	return FeatureName(f, ParentKeys...)
}

// Bounds is the bounding box of every feature geometry in fc.
func Bounds(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	if fc == nil {
		return orb.Bound{}, false
	}
	var b orb.Bound
	found := false
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if !found {
			b = fb
			found = true
			continue
		}
		b = b.Union(fb)
	}
	return b, found
}
