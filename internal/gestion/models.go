package gestion

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/EmpoweredVote/gestion-map/internal/textnorm"
)

// Record is one raw row as returned by the backend.
type Record = map[string]any

// GestionRecord is a typed, immutable snapshot of one gestion row.
type GestionRecord struct {
	ID          string   `json:"id"`
	Group       string   `json:"grupo"`
	Program     string   `json:"programa"`
	SubProgram  string   `json:"subprograma"`
	Objective   string   `json:"objetivo"`
	Departments []string `json:"departamentos"`
	Municipios  []string `json:"municipios"`
	Budget      float64  `json:"presupuesto"`
	People      float64  `json:"personas"`
	Status      string   `json:"estado"`
	Sector      string   `json:"sector"`

	// Progress is only meaningful when ProgressKnown is true.
	Progress      float64 `json:"avance"`
	ProgressKnown bool    `json:"avance_conocido"`

	// PopulationTags holds the flag value of every mapped population column.
	PopulationTags map[string]float64 `json:"poblacion,omitempty"`
}

// Fallback labels used when a text field is blank.
const (
	NoGroup      = "Sin grupo"
	NoStatus     = "Sin estado"
	NoSector     = "Sin sector"
	NoPopulation = "Sin población"
	NoData       = "Sin dato"
)

// FromRows types a batch of raw rows through fm. Columns are resolved once
// against the union of keys across all rows.
func FromRows(rows []Record, fm FieldMap) ([]GestionRecord, ResolvedFields) {
	present := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			present[k] = true
		}
	}
	rf := fm.Resolve(present)

	out := make([]GestionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, rf.Record(r))
	}
	return out, rf
}

// Record types a single raw row.
func (rf ResolvedFields) Record(r Record) GestionRecord {
	get := func(f Field) any {
		col := rf.Columns[f]
		if col == "" {
			return nil
		}
		return r[col]
	}

	g := GestionRecord{
		ID:          text(get(FieldID)),
		Group:       text(get(FieldGroup)),
		Program:     text(get(FieldProgram)),
		SubProgram:  text(get(FieldSubProgram)),
		Objective:   text(get(FieldObjective)),
		Departments: textnorm.SplitList(rawText(get(FieldDepartments))),
		Municipios:  textnorm.SplitList(rawText(get(FieldMunicipios))),
		Budget:      textnorm.ParseNumber(get(FieldBudget)),
		People:      textnorm.ParseNumber(get(FieldPeople)),
		Status:      text(get(FieldStatus)),
		Sector:      text(get(FieldSector)),
	}
	g.Progress, g.ProgressKnown = textnorm.ParsePercent(get(FieldProgress))

	if len(rf.Population) > 0 {
		g.PopulationTags = make(map[string]float64, len(rf.Population))
		for _, pc := range rf.Population {
			g.PopulationTags[pc.Tag] = flag(r[pc.Column])
		}
	}
	return g
}

// DominantPopulation returns the first tag in priority order whose flag is
// positive, or NoPopulation.
func (g GestionRecord) DominantPopulation(priority []PopulationColumn) string {
	for _, pc := range priority {
		if g.PopulationTags[pc.Tag] > 0 {
			return pc.Tag
		}
	}
	return NoPopulation
}

// GroupOrDefault returns the work group, or NoGroup when blank.
func (g GestionRecord) GroupOrDefault() string {
	if g.Group == "" {
		return NoGroup
	}
	return g.Group
}

// Value returns the text of a logical field, used for filtering and grouping.
func (g GestionRecord) Value(f Field) string {
	switch f {
	case FieldID:
		return g.ID
	case FieldGroup:
		return g.Group
	case FieldProgram:
		return g.Program
	case FieldSubProgram:
		return g.SubProgram
	case FieldObjective:
		return g.Objective
	case FieldStatus:
		return g.Status
	case FieldSector:
		return g.Sector
	case FieldDepartments:
		return strings.Join(g.Departments, "; ")
	case FieldMunicipios:
		return strings.Join(g.Municipios, "; ")
	default:
		return ""
	}
}

// text trims and collapses whitespace; numbers are rendered without exponent.
func text(v any) string {
	return strings.Join(strings.Fields(rawText(v)), " ")
}

func rawText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

// flag reads a boolean-like population column: numbers as-is, and the usual
// spreadsheet markers for yes.
func flag(v any) float64 {
	if s, ok := v.(string); ok {
		switch textnorm.Normalize(s) {
		case "si", "x", "true", "yes":
			return 1
		case "no", "false", "":
			return 0
		}
	}
	return textnorm.ParseNumber(v)
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
