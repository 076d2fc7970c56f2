package gestion

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// Field is a logical column of the gestion table. The physical column names
// carry spaces, accents and capitals and have been renamed more than once in
// the backend, so every consumer goes through a FieldMap.
type Field string

const (
	FieldID          Field = "id"
	FieldGroup       Field = "grupo"
	FieldProgram     Field = "programa"
	FieldSubProgram  Field = "subprograma"
	FieldObjective   Field = "objetivo"
	FieldDepartments Field = "departamentos"
	FieldMunicipios  Field = "municipios"
	FieldBudget      Field = "presupuesto"
	FieldPeople      Field = "personas"
	FieldProgress    Field = "avance"
	FieldStatus      Field = "estado"
	FieldSector      Field = "sector"
)

// PopulationColumn binds a population tag to the numeric column flagging it.
type PopulationColumn struct {
	Tag    string `yaml:"tag" json:"tag"`
	Label  string `yaml:"label" json:"label"`
	Column string `yaml:"column" json:"column"`
}

// FieldMap declares, once, which column backs each logical field.
// Population lists the population-type columns in priority order; the first
// one flagged on a record is that record's dominant population.
type FieldMap struct {
	Columns    map[Field]string   `yaml:"columns"`
	Population []PopulationColumn `yaml:"population"`
}

// DefaultFieldMap mirrors the column names of the production gestion table.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		Columns: map[Field]string{
			FieldID:          "id",
			FieldGroup:       "Grupo Interno de Trabajo",
			FieldProgram:     "Programa",
			FieldSubProgram:  "Sub programa",
			FieldObjective:   "Objetivo del programa",
			FieldDepartments: "Departamentos",
			FieldMunicipios:  "Municipios",
			FieldBudget:      "Presupuesto",
			FieldPeople:      "Personas a impactar",
			FieldProgress:    "AVANCE CORTE JULIO - DICIEMBRE",
			FieldStatus:      "ESTADO",
			FieldSector:      "1 Pueblo /Sector",
		},
		Population: []PopulationColumn{
			{Tag: "indigena", Label: "Indígena", Column: "Indigena"},
			{Tag: "afro", Label: "Afrodescendiente", Column: "Afrodescendiente"},
			{Tag: "rrom", Label: "Rrom", Column: "Rrom"},
			{Tag: "victima", Label: "Víctima del conflicto", Column: "Victima del conflicto"},
			{Tag: "migrante", Label: "Migrante", Column: "Migrante"},
			{Tag: "discapacidad", Label: "Discapacidad", Column: "Discapacidad"},
			{Tag: "lgbti", Label: "LGBTI", Column: "LGBTI"},
		},
	}
}

// LoadFieldMap reads a YAML override. Fields missing from the file keep their
// default column; a non-empty population list replaces the default one.
func LoadFieldMap(path string) (FieldMap, error) {
	fm := DefaultFieldMap()
	if path == "" {
		return fm, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fm, fmt.Errorf("reading field map: %w", err)
	}

	var override FieldMap
	if err := yaml.Unmarshal(b, &override); err != nil {
		return fm, fmt.Errorf("parsing field map %s: %w", path, err)
	}

	for f, col := range override.Columns {
		if strings.TrimSpace(col) != "" {
			fm.Columns[f] = col
		}
	}
	if len(override.Population) > 0 {
		fm.Population = override.Population
	}
	return fm, nil
}

// ResolvedFields is a FieldMap bound to the columns actually present in a
// batch of rows. Missing fields resolve to "".
type ResolvedFields struct {
	Columns    map[Field]string
	Population []PopulationColumn
	Missing    []Field
}

// Resolve binds every logical field to the first present of: the declared
// column name, the name without spaces, the name with spaces replaced by
// underscores. It runs once per load so record access never guesses.
func (fm FieldMap) Resolve(present map[string]bool) ResolvedFields {
	rf := ResolvedFields{Columns: make(map[Field]string, len(fm.Columns))}

	for f, col := range fm.Columns {
		if name, ok := pickColumn(col, present); ok {
			rf.Columns[f] = name
		} else {
			rf.Columns[f] = ""
			rf.Missing = append(rf.Missing, f)
		}
	}
	sort.Slice(rf.Missing, func(i, j int) bool { return rf.Missing[i] < rf.Missing[j] })

	for _, pc := range fm.Population {
		if name, ok := pickColumn(pc.Column, present); ok {
			pc.Column = name
			rf.Population = append(rf.Population, pc)
		}
	}
	return rf
}

func pickColumn(col string, present map[string]bool) (string, bool) {
	if col == "" {
		return "", false
	}
	candidates := []string{
		col,
		strings.ReplaceAll(col, " ", ""),
		strings.ReplaceAll(col, " ", "_"),
	}
	for _, c := range candidates {
		if present[c] {
			return c, true
		}
	}
	return "", false
}

// Label returns a human label for a population tag.
func (fm FieldMap) Label(tag string) string {
	for _, pc := range fm.Population {
		if pc.Tag == tag {
			if pc.Label != "" {
				return pc.Label
			}
			return pc.Tag
		}
	}
	return tag
}
