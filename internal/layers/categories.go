package layers

import (
	"fmt"
	"strings"

	"github.com/EmpoweredVote/gestion-map/internal/gestion"
)

// Level is the polygon granularity of the choropleth.
type Level string

const (
	LevelDepartment Level = "departamento"
	LevelMunicipio  Level = "municipio"
)

// ParseLevel accepts the level names used by the dashboard.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "departamento", "departamentos", "department", "dpto":
		return LevelDepartment, nil
	case "municipio", "municipios", "municipality", "mpio":
		return LevelMunicipio, nil
	}
	return "", fmt.Errorf("unknown level %q", s)
}

// Selector picks the marker category of a record.
type Selector string

const (
	ByGroup      Selector = "grupo"
	ByPopulation Selector = "poblacion"
	BySector     Selector = "sector"
)

// ParseSelector accepts the selector names used by the dashboard.
func ParseSelector(s string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grupo", "git", "group":
		return ByGroup, nil
	case "poblacion", "población", "population":
		return ByPopulation, nil
	case "sector", "pueblo":
		return BySector, nil
	}
	return "", fmt.Errorf("unknown marker category %q", s)
}

// Category returns the category of g under sel. Population uses the first
// flagged population column in priority order.
func (sel Selector) Category(g gestion.GestionRecord, priority []gestion.PopulationColumn) string {
	switch sel {
	case ByPopulation:
		return g.DominantPopulation(priority)
	case BySector:
		if g.Sector == "" {
			return gestion.NoSector
		}
		return g.Sector
	default:
		return g.GroupOrDefault()
	}
}
