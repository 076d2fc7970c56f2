package layers

import (
	"fmt"
	"strings"

	"github.com/EmpoweredVote/gestion-map/internal/gestion"
	"github.com/EmpoweredVote/gestion-map/internal/textnorm"
)

// AllDepartments is the selector label for no department scope.
const AllDepartments = "Todos"

// SetDepartment narrows the markers and the record count to the records
// whose department list names dept. The choropleth keeps covering every
// department. "" or "Todos" clears the scope. A name the loaded catalog does
// not know is rejected and the scope is left as it was.
func (s *Session) SetDepartment(dept string) error {
	dept = strings.TrimSpace(dept)
	if strings.EqualFold(dept, AllDepartments) {
		dept = ""
	}
	if dept != "" && s.index.Len() > 0 {
		norm := textnorm.Normalize(dept)
		if !s.index.HasDepartment(norm) {
			return fmt.Errorf("%w: %q", ErrUnknownDepartment, dept)
		}
		dept = s.index.DepartmentName(norm)
	}
	s.department = dept
	s.RebuildMarkers(s.records, s.selector)
	return nil
}

// Department is the current scope, "Todos" when unscoped.
func (s *Session) Department() string {
	if s.department == "" {
		return AllDepartments
	}
	return s.department
}

// InScope is the number of records inside the department scope.
func (s *Session) InScope() int { return s.inScope }

func (s *Session) scoped(records []gestion.GestionRecord) []gestion.GestionRecord {
	if s.department == "" {
		return records
	}
	out := make([]gestion.GestionRecord, 0, len(records))
	for _, g := range records {
		for _, d := range g.Departments {
			if textnorm.Equal(d, s.department) {
				out = append(out, g)
				break
			}
		}
	}
	return out
}
