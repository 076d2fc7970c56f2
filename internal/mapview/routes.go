package mapview

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts under /map.
func (s *Service) SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Get("/view", s.ViewHandler)
	r.Get("/legend", s.LegendHandler)
	r.Get("/breaks", s.BreaksHandler)
	r.Get("/layers/{level}", s.LayerHandler)
	r.Get("/markers", s.MarkersHandler)
	r.Get("/families/{name}", s.FamilyLayerHandler)
	r.Get("/overlays/{name}", s.OverlayLayerHandler)
	r.Get("/departments", s.DepartmentsHandler)
	r.Get("/unresolved", s.UnresolvedHandler)

	r.Post("/level", s.SetLevelHandler)
	r.Post("/metric", s.SetMetricHandler)
	r.Post("/markers", s.SetMarkersHandler)
	r.Post("/categories/{name}", s.ToggleCategoryHandler)
	r.Post("/families/{name}", s.ToggleFamilyHandler)
	r.Post("/overlays/{name}", s.ToggleOverlayHandler)
	r.Post("/department", s.SetDepartmentHandler)
	r.Post("/refresh", s.RefreshHandler)

	return r
}

// SetupDashboardRoutes mounts under /dashboard.
func (s *Service) SetupDashboardRoutes() http.Handler {
	r := chi.NewRouter()

	r.Get("/summary", s.SummaryHandler)

	return r
}
