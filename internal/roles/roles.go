// Package roles holds the department -> role visibility table.
package roles

import (
	"fmt"
	"sort"
	"strings"

	"rolerag/internal/domain"
)

// Table maps departments to the roles allowed to read their documents.
// It is read-only after construction and safe for concurrent use.
type Table struct {
	depts map[string][]string
	order []string
	roles []string
}

// Default returns the table used when the configuration does not override it.
func Default() *Table {
	return NewTable(map[string][]string{
		"finance":     {"Finance_Team", domain.AdminRole},
		"marketing":   {"Marketing_Team", domain.AdminRole},
		"hr":          {"HR_Team", domain.AdminRole},
		"engineering": {"Engineering_Department", domain.AdminRole},
		domain.GeneralDepartment: {
			"Employee_Level",
			"Finance_Team",
			"Marketing_Team",
			"HR_Team",
			"Engineering_Department",
			domain.AdminRole,
		},
	})
}

// NewTable copies base, grants the admin role on every department and makes
// the general department visible to every role known to any department.
func NewTable(base map[string][]string) *Table {
	t := &Table{depts: make(map[string][]string, len(base))}
	for dept := range base {
		t.order = append(t.order, dept)
	}
	sort.Strings(t.order)

	known := map[string]struct{}{}
	for _, dept := range t.order {
		list := appendUnique(nil, base[dept]...)
		list = appendUnique(list, domain.AdminRole)
		t.depts[dept] = list
		for _, r := range list {
			known[r] = struct{}{}
		}
	}
	if general, ok := t.depts[domain.GeneralDepartment]; ok {
		for _, dept := range t.order {
			general = appendUnique(general, t.depts[dept]...)
		}
		t.depts[domain.GeneralDepartment] = general
	}

	for r := range known {
		t.roles = append(t.roles, r)
	}
	sort.Strings(t.roles)
	return t
}

func appendUnique(list []string, items ...string) []string {
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		dup := false
		for _, have := range list {
			if have == it {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, it)
		}
	}
	return list
}

// Allowed returns a copy of the roles allowed to see dept.
func (t *Table) Allowed(dept string) ([]string, bool) {
	list, ok := t.depts[dept]
	if !ok {
		return nil, false
	}
	out := make([]string, len(list))
	copy(out, list)
	return out, true
}

// MustAllowed is Allowed returning ErrUnknownDepartment for missing keys.
func (t *Table) MustAllowed(dept string) ([]string, error) {
	list, ok := t.Allowed(dept)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDepartment, dept)
	}
	return list, nil
}

// CanSee reports whether role may read documents of dept.
func (t *Table) CanSee(role, dept string) bool {
	for _, r := range t.depts[dept] {
		if r == role {
			return true
		}
	}
	return false
}

// Departments returns department names in sorted order.
func (t *Table) Departments() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Roles returns every role known to the table in sorted order.
func (t *Table) Roles() []string {
	out := make([]string, len(t.roles))
	copy(out, t.roles)
	return out
}

// Known reports whether role appears anywhere in the table.
func (t *Table) Known(role string) bool {
	i := sort.SearchStrings(t.roles, role)
	return i < len(t.roles) && t.roles[i] == role
}
