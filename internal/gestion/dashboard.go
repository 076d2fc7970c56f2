package gestion

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Filter narrows records by exact (trimmed) match on the drill-down fields.
// Empty fields match everything.
type Filter struct {
	Group      string `json:"grupo,omitempty"`
	Program    string `json:"programa,omitempty"`
	SubProgram string `json:"subprograma,omitempty"`
	Objective  string `json:"objetivo,omitempty"`
}

// Match reports whether g passes the filter.
func (f Filter) Match(g GestionRecord) bool {
	if f.Group != "" && g.Group != strings.TrimSpace(f.Group) {
		return false
	}
	if f.Program != "" && g.Program != strings.TrimSpace(f.Program) {
		return false
	}
	if f.SubProgram != "" && g.SubProgram != strings.TrimSpace(f.SubProgram) {
		return false
	}
	if f.Objective != "" && g.Objective != strings.TrimSpace(f.Objective) {
		return false
	}
	return true
}

// Apply returns the records matching f, in input order.
func (f Filter) Apply(records []GestionRecord) []GestionRecord {
	out := make([]GestionRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Scope is a short description of the active filter.
func (f Filter) Scope() string {
	var parts []string
	if f.Group != "" {
		parts = append(parts, "GIT: "+f.Group)
	}
	if f.Program != "" {
		parts = append(parts, "Programa: "+f.Program)
	}
	if f.SubProgram != "" {
		parts = append(parts, "Sub: "+f.SubProgram)
	}
	if f.Objective != "" {
		parts = append(parts, "Objetivo: "+f.Objective)
	}
	if len(parts) == 0 {
		return "Sin filtros (todo)"
	}
	return strings.Join(parts, " / ")
}

// Options are the cascading choices for the filter selects. A level is only
// populated once every level above it is chosen.
type Options struct {
	Groups      []string `json:"grupos"`
	Programs    []string `json:"programas"`
	SubPrograms []string `json:"subprogramas"`
	Objectives  []string `json:"objetivos"`
}

// CascadeOptions computes the options available under f.
func CascadeOptions(records []GestionRecord, f Filter) Options {
	opts := Options{
		Groups:      uniqSorted(records, FieldGroup),
		Programs:    []string{},
		SubPrograms: []string{},
		Objectives:  []string{},
	}
	if f.Group == "" {
		return opts
	}
	rowsG := Filter{Group: f.Group}.Apply(records)
	opts.Programs = uniqSorted(rowsG, FieldProgram)
	if f.Program == "" {
		return opts
	}
	rowsGP := Filter{Program: f.Program}.Apply(rowsG)
	opts.SubPrograms = uniqSorted(rowsGP, FieldSubProgram)
	if f.SubProgram == "" {
		return opts
	}
	rowsGPS := Filter{SubProgram: f.SubProgram}.Apply(rowsGP)
	opts.Objectives = uniqSorted(rowsGPS, FieldObjective)
	return opts
}

// NextGroupField is the field the summary table should group by: the first
// drill-down level not yet chosen, then status.
func NextGroupField(f Filter) Field {
	switch {
	case f.Group == "":
		return FieldGroup
	case f.Program == "":
		return FieldProgram
	case f.SubProgram == "":
		return FieldSubProgram
	case f.Objective == "":
		return FieldObjective
	default:
		return FieldStatus
	}
}

// StatusCount is the number of records in one status.
type StatusCount struct {
	Status string `json:"estado"`
	Count  int    `json:"total"`
}

// Summary holds the KPI figures for a set of records. AvgProgress is nil when
// no record has a readable progress value.
type Summary struct {
	Total         int           `json:"actividades"`
	Budget        float64       `json:"presupuesto"`
	People        float64       `json:"personas"`
	AvgProgress   *float64      `json:"avance_promedio"`
	ProgressCount int           `json:"avance_registros"`
	ByStatus      []StatusCount `json:"estados"`
}

// Summarize computes the KPIs for records.
func Summarize(records []GestionRecord) Summary {
	s := Summary{Total: len(records)}
	byStatus := make(map[string]int)
	var progressSum float64

	for _, r := range records {
		s.Budget += r.Budget
		s.People += r.People
		if r.ProgressKnown {
			progressSum += r.Progress
			s.ProgressCount++
		}
		st := r.Status
		if st == "" {
			st = NoStatus
		}
		byStatus[st]++
	}

	if s.ProgressCount > 0 {
		avg := progressSum / float64(s.ProgressCount)
		s.AvgProgress = &avg
	}

	s.ByStatus = make([]StatusCount, 0, len(byStatus))
	for _, st := range sortedKeys(byStatus) {
		s.ByStatus = append(s.ByStatus, StatusCount{Status: st, Count: byStatus[st]})
	}
	sort.SliceStable(s.ByStatus, func(i, j int) bool {
		return s.ByStatus[i].Count > s.ByStatus[j].Count
	})
	return s
}

// GroupRow is one line of the grouped summary table.
type GroupRow struct {
	Key        string   `json:"clave"`
	Activities int      `json:"actividades"`
	Budget     float64  `json:"presupuesto"`
	People     float64  `json:"personas"`
	Progress   *float64 `json:"avance"`

	progressSum   float64
	progressCount int
}

// GroupBy aggregates records by the text of field, largest budget first.
func GroupBy(records []GestionRecord, field Field) []GroupRow {
	idx := make(map[string]int)
	var rows []GroupRow

	for _, r := range records {
		key := r.Value(field)
		if key == "" {
			key = NoData
		}
		i, ok := idx[key]
		if !ok {
			i = len(rows)
			idx[key] = i
			rows = append(rows, GroupRow{Key: key})
		}
		row := &rows[i]
		row.Activities++
		row.Budget += r.Budget
		row.People += r.People
		if r.ProgressKnown {
			row.progressSum += r.Progress
			row.progressCount++
		}
	}

	for i := range rows {
		if rows[i].progressCount > 0 {
			avg := rows[i].progressSum / float64(rows[i].progressCount)
			rows[i].Progress = &avg
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Budget > rows[j].Budget
	})
	return rows
}

func uniqSorted(records []GestionRecord, field Field) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range records {
		v := r.Value(field)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	SortSpanish(out)
	return out
}

// SortSpanish sorts names the way a Spanish reader expects (accents do not
// push "Ábrego" after "Zona").
func SortSpanish(names []string) {
	collate.New(language.Spanish).SortStrings(names)
}
