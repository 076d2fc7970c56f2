package aggregate

import (
	"math"
	"sort"

	"github.com/EmpoweredVote/gestion-map/internal/catalog"
	"github.com/EmpoweredVote/gestion-map/internal/gestion"
	"github.com/EmpoweredVote/gestion-map/internal/textnorm"
)

// Placement is one record placed at one resolved municipio.
type Placement struct {
	Record gestion.GestionRecord `json:"registro"`
	Entry  catalog.Entry         `json:"municipio"`
	Share  float64               `json:"valor"`
}

// UnresolvedRecord is a record that contributed nothing.
type UnresolvedRecord struct {
	Record gestion.GestionRecord `json:"registro"`
	Value  float64               `json:"valor"`
	Reason Reason                `json:"motivo"`
	Names  []UnresolvedName      `json:"sin_resolver,omitempty"`
}

// Result holds the buckets of one aggregation run.
//
// PerLocation is keyed by catalog.Key, PerDepartment by normalized department
// name and PerMuniName by normalized municipio name (summed across
// departments, for boundary files that do not carry the parent name).
// Total is the sum of the values of every contributing record, which equals
// the sum of PerDepartment.
type Result struct {
	Metric        Metric             `json:"metrica"`
	PerLocation   map[string]float64 `json:"por_municipio"`
	PerDepartment map[string]float64 `json:"por_departamento"`
	PerMuniName   map[string]float64 `json:"-"`
	Placements    []Placement        `json:"-"`
	Unresolved    []UnresolvedRecord `json:"sin_resolver"`
	Total         float64            `json:"total"`
	Contributing  int                `json:"registros_ubicados"`
	Skipped       int                `json:"registros_sin_valor"`
}

// NewResult returns an empty result for m.
func NewResult(m Metric) Result {
	return Result{
		Metric:        m,
		PerLocation:   make(map[string]float64),
		PerDepartment: make(map[string]float64),
		PerMuniName:   make(map[string]float64),
		Unresolved:    []UnresolvedRecord{},
	}
}

// Aggregate accumulates metric over records. Records whose value is zero or
// not finite are skipped. A record resolving to N municipios credits value/N
// to each municipio and to each municipio's department. A record resolving to
// departments only splits its value evenly across them. Unresolved records
// contribute nothing and are listed.
func Aggregate(records []gestion.GestionRecord, metric Metric, idx *catalog.Index) Result {
	res := NewResult(metric)

	for _, g := range records {
		v := metric.Value(g)
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			res.Skipped++
			continue
		}

		loc := Resolve(g, idx)
		switch loc.Reason {
		case ReasonResolved:
			share := v / float64(len(loc.Entries))
			for _, e := range loc.Entries {
				res.PerLocation[e.Key()] += share
				res.PerDepartment[textnorm.Normalize(e.Department)] += share
				res.PerMuniName[textnorm.Normalize(e.Municipio)] += share
				res.Placements = append(res.Placements, Placement{Record: g, Entry: e, Share: share})
			}
		case ReasonDepartmentOnly:
			share := v / float64(len(loc.Departments))
			for _, d := range loc.Departments {
				res.PerDepartment[d] += share
			}
		default:
			res.Unresolved = append(res.Unresolved, UnresolvedRecord{
				Record: g,
				Value:  v,
				Reason: loc.Reason,
				Names:  loc.Unresolved,
			})
			continue
		}
		res.Total += v
		res.Contributing++
	}
	return res
}

// DepartmentValues returns the department buckets, ordered by key.
func (r Result) DepartmentValues() []float64 {
	return sortedValues(r.PerDepartment)
}

// LocationValues returns the municipio buckets, ordered by key.
func (r Result) LocationValues() []float64 {
	return sortedValues(r.PerLocation)
}

// UnresolvedValue is the value lost to unresolved records.
func (r Result) UnresolvedValue() float64 {
	var sum float64
	for _, u := range r.Unresolved {
		sum += u.Value
	}
	return sum
}

func sortedValues(m map[string]float64) []float64 {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}
