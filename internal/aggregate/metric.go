// Package aggregate resolves the free-text locations of gestion records
// against the catalog and accumulates a metric per municipio and per
// departamento.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/EmpoweredVote/gestion-map/internal/gestion"
)

// Metric selects the numeric value aggregated from each record.
type Metric string

const (
	MetricBudget Metric = "presupuesto"
	MetricPeople Metric = "personas"
)

// Metrics lists the supported metrics in display order.
var Metrics = []Metric{MetricBudget, MetricPeople}

// ParseMetric accepts the metric names used by the dashboard.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "presupuesto", "budget":
		return MetricBudget, nil
	case "personas", "people", "personas a impactar":
		return MetricPeople, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Value extracts the metric from g.
func (m Metric) Value(g gestion.GestionRecord) float64 {
	switch m {
	case MetricBudget:
		return g.Budget
	case MetricPeople:
		return g.People
	}
	return 0
}

// Currency reports whether the metric is an amount of money.
func (m Metric) Currency() bool {
	return m == MetricBudget
}

// Label is the human name of the metric.
func (m Metric) Label() string {
	switch m {
	case MetricBudget:
		return "Presupuesto"
	case MetricPeople:
		return "Personas a impactar"
	}
	return string(m)
}
