// Package mapview serves the map session and the dashboard summary over HTTP.
// One Service holds one session; a mutex serializes the commands coming from
// concurrent requests.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/EmpoweredVote/gestion-map/internal/catalog"
	"github.com/EmpoweredVote/gestion-map/internal/geo"
	"github.com/EmpoweredVote/gestion-map/internal/gestion"
	"github.com/EmpoweredVote/gestion-map/internal/layers"
	"github.com/EmpoweredVote/gestion-map/internal/metrics"
)

// Sources are where a Service reads its data from. Geo may be nil, in which
// case the map has markers but no polygons.
type Sources struct {
	Gestion gestion.Source
	Catalog catalog.Source
	Geo     geo.Source

	// Names of the boundary files within Geo. An empty name skips that layer.
	Departments string
	Municipios  string
	Families    string
	Board       string
	Basemap     string
}

type Service struct {
	mu sync.Mutex

	log     *zap.Logger
	src     Sources
	fields  gestion.FieldMap
	surface *layers.MemorySurface
	session *layers.Session

	records  []gestion.GestionRecord
	missing  []gestion.Field
	loadedAt time.Time
	lastErr  string
}

func NewService(src Sources, fields gestion.FieldMap, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	surface := layers.NewMemorySurface()
	return &Service{
		log:     log,
		src:     src,
		fields:  fields,
		surface: surface,
		session: layers.NewSession(surface, layers.Options{
			Population: fields.Population,
			Log:        log.Named("session"),
		}),
	}
}

// LoadLayers fetches the overlays and the department, municipio and families
// layers. A layer that fails keeps whatever was loaded before; the failures
// are returned joined.
func (s *Service) LoadLayers(ctx context.Context) error {
	if s.src.Geo == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.src.Board != "" {
		errs = append(errs, s.session.LoadOverlay(ctx, layers.OverlayBoard, s.src.Geo, s.src.Board))
	}
	if s.src.Basemap != "" {
		errs = append(errs, s.session.LoadOverlay(ctx, layers.OverlayBasemap, s.src.Geo, s.src.Basemap))
	}
	if s.src.Departments != "" {
		errs = append(errs, s.session.LoadBoundaries(ctx, layers.LevelDepartment, s.src.Geo, s.src.Departments))
	}
	if s.src.Municipios != "" {
		errs = append(errs, s.session.LoadBoundaries(ctx, layers.LevelMunicipio, s.src.Geo, s.src.Municipios))
	}
	if s.src.Families != "" {
		errs = append(errs, s.session.LoadFamilies(ctx, s.src.Geo, s.src.Families))
	}
	return errors.Join(errs...)
}

// Reload reads the gestion rows and the catalog, then refreshes the session
// with both. Reading happens outside the lock; if either read fails the
// session keeps its current data. When reloads overlap, the last to finish
// wins.
func (s *Service) Reload(ctx context.Context) error {
	start := time.Now()

	rows, err := s.src.Gestion.Load(ctx)
	if err != nil {
		return s.reloadFailed(fmt.Errorf("loading gestion rows: %w", err))
	}
	entries, err := s.src.Catalog.Load(ctx)
	if err != nil {
		return s.reloadFailed(fmt.Errorf("loading catalog: %w", err))
	}

	records, rf := gestion.FromRows(rows, s.fields)
	idx := catalog.Build(entries)
	if len(rf.Missing) > 0 {
		s.log.Warn("gestion columns not found", zap.Any("fields", rf.Missing))
	}

	s.mu.Lock()
	s.records = records
	s.missing = rf.Missing
	s.session.Refresh(records, idx)
	s.loadedAt = time.Now()
	s.lastErr = ""
	s.mu.Unlock()

	stats := idx.Stats()
	metrics.CatalogEntries.Set(float64(stats.Indexed))
	metrics.RefreshesTotal.WithLabelValues("ok").Inc()
	metrics.RenderDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	s.log.Info("data reloaded",
		zap.Int("records", len(records)),
		zap.Int("catalog", stats.Indexed),
		zap.Int("catalog_duplicates", stats.Duplicates),
		zap.Int("catalog_excluded", stats.Excluded),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (s *Service) reloadFailed(err error) error {
	metrics.RefreshesTotal.WithLabelValues("failed").Inc()
	s.log.Error("reload failed", zap.Error(err))
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	return err
}

// View is the session view model plus the state of the data behind it.
type View struct {
	layers.ViewModel
	Records   int             `json:"registros"`
	Missing   []gestion.Field `json:"campos_faltantes,omitempty"`
	LoadedAt  *time.Time      `json:"actualizado,omitempty"`
	LoadError string          `json:"error_carga,omitempty"`
	Bounds    *[4]float64     `json:"limites,omitempty"`
}

func (s *Service) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ViewModel: s.session.Render(),
		Records:   len(s.records),
		Missing:   s.missing,
		LoadError: s.lastErr,
	}
	if !s.loadedAt.IsZero() {
		t := s.loadedAt
		v.LoadedAt = &t
	}
	if b, ok := s.surface.Bounds(); ok {
		v.Bounds = &[4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	}
	return v
}

// Do runs fn with the session locked.
func (s *Service) Do(fn func(*layers.Session, *layers.MemorySurface)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.session, s.surface)
}

// Records returns the current typed rows.
func (s *Service) Records() []gestion.GestionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}
