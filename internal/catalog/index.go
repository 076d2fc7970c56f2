// Package catalog indexes the municipio catalog: every (departamento,
// municipio) pair with its coordinates, looked up by normalized name.
package catalog

import (
	"errors"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/EmpoweredVote/gestion-map/internal/textnorm"
)

// ErrEmptyCatalog is returned by loaders that produced no usable entry.
var ErrEmptyCatalog = errors.New("catalog has no usable entries")

// entryNamespace seeds the deterministic entry IDs.
var entryNamespace = uuid.MustParse("6f1b7a52-3c1e-4f0a-9a57-0d5c2b8e9a10")

// Entry is one municipio of the catalog. Lat and Lng are NaN when unknown.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	Department string    `json:"departamento"`
	Municipio  string    `json:"municipio"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Type       string    `json:"tipo,omitempty"`
}

// Key is the natural key of an entry.
func (e Entry) Key() string {
	return Key(e.Department, e.Municipio)
}

// Key builds the lookup key of a (departamento, municipio) pair.
func Key(dept, muni string) string {
	return textnorm.Normalize(dept) + "|" + textnorm.Normalize(muni)
}

// EntryID is the uuid v5 of the natural key.
func EntryID(dept, muni string) uuid.UUID {
	return uuid.NewSHA1(entryNamespace, []byte("municipio:"+Key(dept, muni)))
}

// Stats describes what Build left out.
type Stats struct {
	Input      int `json:"input"`
	Indexed    int `json:"indexed"`
	Duplicates int `json:"duplicates"`
	Excluded   int `json:"excluded"`
}

// Index is an immutable lookup over catalog entries. A new catalog means a new
// Index; nothing is merged into an existing one.
type Index struct {
	byKey  map[string]Entry
	byMuni map[string][]Entry
	depts  map[string]string
	stats  Stats
}

// Build indexes entries. Entries with missing or non-finite coordinates, or
// with both coordinates at zero, are dropped. When a key repeats, the first
// entry wins.
func Build(entries []Entry) *Index {
	idx := &Index{
		byKey:  make(map[string]Entry, len(entries)),
		byMuni: make(map[string][]Entry),
		depts:  make(map[string]string),
		stats:  Stats{Input: len(entries)},
	}

	for _, e := range entries {
		if !validCoords(e.Lat, e.Lng) {
			idx.stats.Excluded++
			continue
		}
		dn := textnorm.Normalize(e.Department)
		mn := textnorm.Normalize(e.Municipio)
		if mn == "" {
			idx.stats.Excluded++
			continue
		}
		key := dn + "|" + mn
		if _, dup := idx.byKey[key]; dup {
			idx.stats.Duplicates++
			continue
		}
		if e.ID == uuid.Nil {
			e.ID = EntryID(e.Department, e.Municipio)
		}
		idx.byKey[key] = e
		idx.byMuni[mn] = append(idx.byMuni[mn], e)
		if _, ok := idx.depts[dn]; !ok && dn != "" {
			idx.depts[dn] = e.Department
		}
	}
	idx.stats.Indexed = len(idx.byKey)
	return idx
}

func validCoords(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return !(lat == 0 && lng == 0)
}

// LookupExact finds the entry for an already normalized pair.
func (idx *Index) LookupExact(deptNorm, muniNorm string) (Entry, bool) {
	if idx == nil {
		return Entry{}, false
	}
	e, ok := idx.byKey[deptNorm+"|"+muniNorm]
	return e, ok
}

// LookupByMuniName returns every entry whose normalized municipio name is
// muniNorm, in catalog order.
func (idx *Index) LookupByMuniName(muniNorm string) []Entry {
	if idx == nil {
		return nil
	}
	return idx.byMuni[muniNorm]
}

// HasDepartment reports whether deptNorm names a catalog department.
func (idx *Index) HasDepartment(deptNorm string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.depts[deptNorm]
	return ok
}

// DepartmentName returns the display spelling of a normalized department.
func (idx *Index) DepartmentName(deptNorm string) string {
	if idx == nil {
		return ""
	}
	return idx.depts[deptNorm]
}

// Departments lists the display names of the catalog departments, sorted.
func (idx *Index) Departments() []string {
	if idx == nil {
		return []string{}
	}
	out := make([]string, 0, len(idx.depts))
	for _, name := range idx.depts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Entries returns all indexed entries sorted by key.
func (idx *Index) Entries() []Entry {
	if idx == nil {
		return nil
	}
	keys := make([]string, 0, len(idx.byKey))
	for k := range idx.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = idx.byKey[k]
	}
	return out
}

// Len is the number of indexed entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.byKey)
}

// Stats reports what the build did.
func (idx *Index) Stats() Stats {
	if idx == nil {
		return Stats{}
	}
	return idx.stats
}
