package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/gestion-map/internal/catalog"
	"github.com/EmpoweredVote/gestion-map/internal/config"
	"github.com/EmpoweredVote/gestion-map/internal/db"
	"github.com/EmpoweredVote/gestion-map/internal/geo"
	"github.com/EmpoweredVote/gestion-map/internal/gestion"
	"github.com/EmpoweredVote/gestion-map/internal/logging"
	"github.com/EmpoweredVote/gestion-map/internal/mapview"
	"github.com/EmpoweredVote/gestion-map/internal/metrics"
	"github.com/EmpoweredVote/gestion-map/internal/middleware"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if len(cfg.GestionDepartments) > 0 {
		logger.Info("gestion rows scoped to departments", zap.Strings("departments", cfg.GestionDepartments))
	}

	fields := gestion.DefaultFieldMap()
	if cfg.FieldMap != "" {
		if fields, err = gestion.LoadFieldMap(cfg.FieldMap); err != nil {
			logger.Fatal("field map", zap.Error(err))
		}
	}

	geoSrc, err := geoSource(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("geo source", zap.Error(err))
	}

	svc := mapview.NewService(mapview.Sources{
		Gestion: gestion.PostgresSource{
			DB:               database,
			Table:            cfg.GestionTable,
			DepartmentColumn: cfg.GestionDepartmentColumn,
			Departments:      cfg.GestionDepartments,
		},
		Catalog:     catalog.PostgresSource{DB: database, Table: cfg.CatalogTable, DepartmentsTable: cfg.DepartmentsTable},
		Geo:         geoSrc,
		Departments: cfg.GeoDepartments,
		Municipios:  cfg.GeoMunicipios,
		Families:    cfg.GeoFamilies,
		Board:       cfg.GeoBoard,
		Basemap:     cfg.GeoBasemap,
	}, fields, logger)

	// A failed first load leaves an empty map that the refresher fills later.
	if err := svc.LoadLayers(ctx); err != nil {
		logger.Warn("some layers did not load", zap.Error(err))
	}
	if err := svc.Reload(ctx); err != nil {
		logger.Warn("initial reload failed", zap.Error(err))
	}

	refresher, err := svc.StartRefresher(cfg.RefreshSchedule, 2*time.Minute)
	if err != nil {
		logger.Fatal("refresher", zap.Error(err))
	}
	if refresher != nil {
		defer refresher.Stop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger.Named("http")))
	r.Use(middleware.CORS(cfg.Origins()))
	r.Use(middleware.RateLimit(cfg.RateLimitQPS, cfg.RateLimitBurst))
	r.Get("/", RootHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/map", svc.SetupRoutes())
	r.Mount("/dashboard", svc.SetupDashboardRoutes())

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
}

// geoSource builds the boundary source named by GEO_SOURCE, behind the redis
// cache when REDIS_ADDR is set.
func geoSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (geo.Source, error) {
	var raw geo.RawSource
	switch cfg.GeoSource {
	case "http":
		raw = geo.HTTPSource{BaseURL: cfg.GeoBase, Client: &http.Client{Timeout: 60 * time.Second}}
	case "s3":
		client, err := geo.NewS3Client(ctx, geo.S3Config{
			URL:    cfg.S3URL,
			Region: cfg.S3Region,
			Key:    cfg.S3Key,
			Secret: cfg.S3Secret,
		})
		if err != nil {
			return nil, err
		}
		raw = geo.S3Source{Client: client, Bucket: cfg.S3Bucket, Prefix: cfg.GeoBase}
	default:
		raw = geo.FileSource{Dir: cfg.GeoBase}
	}

	rdb := geo.OpenRedis(cfg.RedisAddr, cfg.RedisPassword)
	if rdb == nil {
		return geo.Decoded{Raw: raw}, nil
	}
	return geo.CachedSource{
		Inner:  raw,
		Cache:  geo.RedisCache{Client: rdb},
		TTL:    cfg.GeoCacheTTL,
		Prefix: "gestionmap:geo:",
		Log:    logger.Named("geo"),
	}, nil
}
