package mapview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/gestion-map/internal/aggregate"
	"github.com/EmpoweredVote/gestion-map/internal/classify"
	"github.com/EmpoweredVote/gestion-map/internal/gestion"
	"github.com/EmpoweredVote/gestion-map/internal/layers"
	"github.com/EmpoweredVote/gestion-map/internal/legend"
	"github.com/EmpoweredVote/gestion-map/internal/utils"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Service) ViewHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.View())
}

type legendResponse struct {
	Metric     aggregate.Metric      `json:"metrica"`
	Legend     []legend.Item         `json:"leyenda"`
	Categories []legend.CategoryItem `json:"categorias"`
	Families   []legend.CategoryItem `json:"familias"`
}

func (s *Service) LegendHandler(w http.ResponseWriter, r *http.Request) {
	var resp legendResponse
	s.Do(func(sess *layers.Session, _ *layers.MemorySurface) {
		resp = legendResponse{
			Metric:     sess.Metric(),
			Legend:     sess.Legend(),
			Categories: sess.CategoryLegend(),
			Families:   sess.FamilyLegend(),
		}
	})
	writeJSON(w, resp)
}

type breaksResponse struct {
	Level       layers.Level         `json:"nivel"`
	Metric      aggregate.Metric     `json:"metrica"`
	Breaks      []float64            `json:"cortes"`
	Frequencies classify.Frequencies `json:"frecuencias"`
}

func (s *Service) BreaksHandler(w http.ResponseWriter, r *http.Request) {
	var resp breaksResponse
	s.Do(func(sess *layers.Session, _ *layers.MemorySurface) {
		resp = breaksResponse{
			Level:       sess.Level(),
			Metric:      sess.Metric(),
			Breaks:      sess.Breaks(),
			Frequencies: sess.Frequencies(),
		}
	})
	writeJSON(w, resp)
}

// LayerHandler returns the polygons of a level with their current style set
// on each feature.
func (s *Service) LayerHandler(w http.ResponseWriter, r *http.Request) {
	level, err := layers.ParseLevel(chi.URLParam(r, "level"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var fc *geojson.FeatureCollection
	s.Do(func(sess *layers.Session, surface *layers.MemorySurface) {
		if id, ok := sess.PolygonLayer(level); ok {
			fc, _ = surface.StyledGeoJSON(id)
		}
	})
	if fc == nil {
		http.Error(w, "Layer not loaded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// FamilyLayerHandler returns the polygons of one linguistic family.
func (s *Service) FamilyLayerHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var fc *geojson.FeatureCollection
	s.Do(func(sess *layers.Session, surface *layers.MemorySurface) {
		if id, ok := sess.FamilyLayer(name); ok {
			fc, _ = surface.StyledGeoJSON(id)
		}
	})
	if fc == nil {
		http.Error(w, "Family not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// OverlayLayerHandler returns the polygons of the board or base map overlay.
func (s *Service) OverlayLayerHandler(w http.ResponseWriter, r *http.Request) {
	o, err := layers.ParseOverlay(chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var fc *geojson.FeatureCollection
	s.Do(func(sess *layers.Session, surface *layers.MemorySurface) {
		if id, ok := sess.OverlayLayer(o); ok {
			fc, _ = surface.StyledGeoJSON(id)
		}
	})
	if fc == nil {
		http.Error(w, "Layer not loaded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

type departmentsResponse struct {
	Selected    string   `json:"seleccionado"`
	Departments []string `json:"departamentos"`
}

// DepartmentsHandler lists the scope choices: "Todos" then the catalog
// departments in Spanish order.
func (s *Service) DepartmentsHandler(w http.ResponseWriter, r *http.Request) {
	var resp departmentsResponse
	s.Do(func(sess *layers.Session, _ *layers.MemorySurface) {
		names := sess.Index().Departments()
		gestion.SortSpanish(names)
		resp = departmentsResponse{
			Selected:    sess.Department(),
			Departments: append([]string{layers.AllDepartments}, names...),
		}
	})
	writeJSON(w, resp)
}

type departmentRequest struct {
	Department string `json:"departamento"`
}

// SetDepartmentHandler narrows the markers and the record count to one
// department. "Todos" or "" clears it.
func (s *Service) SetDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	var req departmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var err error
	s.Do(func(sess *layers.Session, _ *layers.MemorySurface) {
		err = sess.SetDepartment(req.Department)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, s.View())
}

// MarkersHandler returns the markers of the visible categories.
func (s *Service) MarkersHandler(w http.ResponseWriter, r *http.Request) {
	out := []layers.Marker{}
	s.Do(func(sess *layers.Session, surface *layers.MemorySurface) {
		for _, cat := range sess.Categories() {
			id, ok := sess.MarkerGroup(cat)
			if !ok || !surface.HasLayer(id) {
				continue
			}
			out = append(out, surface.Markers(id)...)
		}
	})
	writeJSON(w, out)
}

type levelRequest struct {
	Level string `json:"level"`
}

func (s *Service) SetLevelHandler(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	level, err := layers.ParseLevel(req.Level)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Do(func(sess *layers.Session, _ *layers.MemorySurface) {
		err = sess.SetLevel(level)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.View())
}

type metricRequest struct {
	Metric string `json:"metric"`
}

func (s *Service) SetMetricHandler(w http.ResponseWriter, r *http.Request) {
	var req metricRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var (
		m   aggregate.Metric
		err error
	)
	if strings.TrimSpace(req.Metric) != "" {
		if m, err = aggregate.ParseMetric(req.Metric); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	s.Do(func(sess *layers.Session, _ *layers.MemorySurface) {
		err = sess.SetMetric(m)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.View())
}

type markersRequest struct {
	Category string `json:"category"`
}

// SetMarkersHandler switches the marker categorization and rebuilds the
// markers.
func (s *Service) SetMarkersHandler(w http.ResponseWriter, r *http.Request) {
	var req markersRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sel, err := layers.ParseSelector(req.Category)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records := s.Records()
	s.Do(func(sess *layers.Session, _ *layers.MemorySurface) {
		sess.RebuildMarkers(records, sel)
	})
	writeJSON(w, s.View())
}

type visibleRequest struct {
	Visible bool `json:"visible"`
}

type toggleResponse struct {
	Name    string `json:"nombre"`
	Visible bool   `json:"visible"`
	Exists  bool   `json:"existe"`
}

func (s *Service) ToggleCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req visibleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	name := chi.URLParam(r, "name")
	var exists bool
	s.Do(func(sess *layers.Session, _ *layers.MemorySurface) {
		exists = sess.Toggle(name, req.Visible)
	})
	writeJSON(w, toggleResponse{Name: name, Visible: req.Visible, Exists: exists})
}

func (s *Service) ToggleFamilyHandler(w http.ResponseWriter, r *http.Request) {
	var req visibleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	name := chi.URLParam(r, "name")
	var exists bool
	s.Do(func(sess *layers.Session, _ *layers.MemorySurface) {
		exists = sess.ToggleFamily(name, req.Visible)
	})
	writeJSON(w, toggleResponse{Name: name, Visible: req.Visible, Exists: exists})
}

func (s *Service) ToggleOverlayHandler(w http.ResponseWriter, r *http.Request) {
	o, err := layers.ParseOverlay(chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req visibleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var exists bool
	s.Do(func(sess *layers.Session, _ *layers.MemorySurface) {
		exists = sess.ToggleOverlay(o, req.Visible)
	})
	writeJSON(w, toggleResponse{Name: string(o), Visible: req.Visible, Exists: exists})
}

// RefreshHandler reloads rows and catalog. ?layers=1 also refetches the
// boundary layers.
func (s *Service) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	log := s.log
	if id, ok := utils.GetRequestIDFromContext(r.Context()); ok {
		log = log.With(zap.String("request_id", id))
	}

	t0 := time.Now()
	if r.URL.Query().Get("layers") != "" {
		if err := s.LoadLayers(ctx); err != nil {
			log.Warn("layer refresh incomplete", zap.Error(err))
		}
	}
	if err := s.Reload(ctx); err != nil {
		log.Error("refresh failed", zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		http.Error(w, "Refresh failed: "+err.Error(), status)
		return
	}
	w.Header().Add("Server-Timing", fmt.Sprintf("refresh;dur=%d", time.Since(t0).Milliseconds()))
	writeJSON(w, s.View())
}

func (s *Service) UnresolvedHandler(w http.ResponseWriter, r *http.Request) {
	var out []aggregate.UnresolvedRecord
	s.Do(func(sess *layers.Session, _ *layers.MemorySurface) {
		out = sess.Result().Unresolved
	})
	if out == nil {
		out = []aggregate.UnresolvedRecord{}
	}
	writeJSON(w, out)
}

type summaryResponse struct {
	Scope   string             `json:"alcance"`
	Filter  gestion.Filter     `json:"filtro"`
	Summary gestion.Summary    `json:"resumen"`
	GroupBy gestion.Field      `json:"agrupado_por"`
	Rows    []gestion.GroupRow `json:"filas"`
	Options gestion.Options    `json:"opciones"`
}

// SummaryHandler computes the dashboard KPIs and drill-down table for the
// filter in the query string.
func (s *Service) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := gestion.Filter{
		Group:      q.Get("grupo"),
		Program:    q.Get("programa"),
		SubProgram: q.Get("subprograma"),
		Objective:  q.Get("objetivo"),
	}

	records := s.Records()
	scoped := f.Apply(records)
	field := gestion.NextGroupField(f)
	writeJSON(w, summaryResponse{
		Scope:   f.Scope(),
		Filter:  f,
		Summary: gestion.Summarize(scoped),
		GroupBy: field,
		Rows:    gestion.GroupBy(scoped, field),
		Options: gestion.CascadeOptions(records, f),
	})
}
