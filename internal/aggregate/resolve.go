package aggregate

import (
	"github.com/EmpoweredVote/gestion-map/internal/catalog"
	"github.com/EmpoweredVote/gestion-map/internal/gestion"
	"github.com/EmpoweredVote/gestion-map/internal/textnorm"
)

// Reason explains how a record, or one of its municipio names, resolved.
type Reason string

const (
	ReasonResolved       Reason = "resolved"
	ReasonDepartmentOnly Reason = "department_only"
	ReasonAmbiguous      Reason = "ambiguous"
	ReasonNotFound       Reason = "not_found"
	ReasonNoLocation     Reason = "no_location"
)

// UnresolvedName is a municipio name that did not resolve to an entry.
type UnresolvedName struct {
	Name   string `json:"nombre"`
	Reason Reason `json:"motivo"`
}

// Resolution is where a record lands on the map.
//
// Entries are the resolved municipios (unique by key). Departments holds the
// normalized department names credited when no municipio resolved but the
// record lists departments.
type Resolution struct {
	Entries     []catalog.Entry  `json:"municipios"`
	Departments []string         `json:"departamentos"`
	Reason      Reason           `json:"motivo"`
	Unresolved  []UnresolvedName `json:"sin_resolver,omitempty"`
}

// Resolve applies the location policy to one record:
//
//  1. Each listed municipio is looked up. With one department hint it is an
//     exact lookup; with several, the hints are tried in listed order and the
//     first hit wins; with none, the name must be unique in the whole catalog.
//  2. If no municipio resolved but departments are listed, the record is
//     credited to those departments only.
//  3. Otherwise the record is unresolved.
func Resolve(g gestion.GestionRecord, idx *catalog.Index) Resolution {
	hints := make([]string, 0, len(g.Departments))
	for _, d := range g.Departments {
		if dn := textnorm.Normalize(d); dn != "" {
			hints = append(hints, dn)
		}
	}

	var res Resolution
	seen := make(map[string]bool)
	sawAmbiguous := false

	for _, name := range g.Municipios {
		mn := textnorm.Normalize(name)
		if mn == "" {
			continue
		}
		entry, reason := resolveMunicipio(mn, hints, idx)
		if reason != ReasonResolved {
			if reason == ReasonAmbiguous {
				sawAmbiguous = true
			}
			res.Unresolved = append(res.Unresolved, UnresolvedName{Name: name, Reason: reason})
			continue
		}
		key := entry.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		res.Entries = append(res.Entries, entry)
	}

	switch {
	case len(res.Entries) > 0:
		res.Reason = ReasonResolved
	case len(hints) > 0:
		res.Departments = hints
		res.Reason = ReasonDepartmentOnly
	case len(g.Municipios) == 0:
		res.Reason = ReasonNoLocation
	case sawAmbiguous:
		res.Reason = ReasonAmbiguous
	default:
		res.Reason = ReasonNotFound
	}
	return res
}

func resolveMunicipio(mn string, hints []string, idx *catalog.Index) (catalog.Entry, Reason) {
	if len(hints) > 0 {
		for _, dn := range hints {
			if e, ok := idx.LookupExact(dn, mn); ok {
				return e, ReasonResolved
			}
		}
		return catalog.Entry{}, ReasonNotFound
	}

	cands := idx.LookupByMuniName(mn)
	switch len(cands) {
	case 0:
		return catalog.Entry{}, ReasonNotFound
	case 1:
		return cands[0], ReasonResolved
	default:
		return catalog.Entry{}, ReasonAmbiguous
	}
}

// Located reports whether the resolution credits anything.
func (r Resolution) Located() bool {
	return r.Reason == ReasonResolved || r.Reason == ReasonDepartmentOnly
}
