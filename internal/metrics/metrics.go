package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UnresolvedRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gestionmap_unresolved_records_total",
		Help: "Records whose location did not resolve to the catalog, by reason",
	}, []string{"reason"})
	GeoFetchFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gestionmap_geo_fetch_failures_total",
		Help: "Failed boundary layer fetches, by layer",
	}, []string{"layer"})
	RefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gestionmap_refreshes_total",
		Help: "Data refreshes by outcome",
	}, []string{"outcome"})
	RenderDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gestionmap_render_duration_ms",
		Help:    "Map session refresh duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	CatalogEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gestionmap_catalog_entries",
		Help: "Entries in the active catalog index",
	})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gestionmap_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
)

func init() {
	prometheus.MustRegister(UnresolvedRecordsTotal)
	prometheus.MustRegister(GeoFetchFailuresTotal)
	prometheus.MustRegister(RefreshesTotal)
	prometheus.MustRegister(RenderDurationMs)
	prometheus.MustRegister(CatalogEntries)
	prometheus.MustRegister(RateLimitedTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
