package schema

import (
	"strings"

	"github.com/xugu-publish/xugudef/util"
)

type AuthorityScope int

const (
	ScopeDatabase AuthorityScope = iota
	ScopeObject
	ScopeSubObject
)

func (s AuthorityScope) String() string {
	switch s {
	case ScopeDatabase:
		return "database"
	case ScopeObject:
		return "object"
	default:
		return "sub-object"
	}
}

// Markers the catalog appends to sub-object authority names.
const (
	ColumnMarker  = "列"
	TriggerMarker = "触发器"
)

// Authority is a privilege held by a user or role, as read from the catalog.
type Authority struct {
	Scope AuthorityScope
	// Name is the privilege as displayed, possibly compound ("SELECT,UPDATE")
	// or tagged with a sub-object marker.
	Name string
	// Target is the quoted qualified object name; empty at database scope and
	// for grants whose object no longer resolves.
	Target    string
	SubTarget string // column or trigger at sub-object scope
	Holder    string
}

// Privilege is the keyword used in a REVOKE: the name without markers.
func (a Authority) Privilege() string {
	return stripMarkers(a.Name)
}

// IsSubObjectRelevant reports whether the authority names a column or trigger.
func (a Authority) IsSubObjectRelevant() bool {
	return strings.Contains(a.Name, ColumnMarker) || strings.Contains(a.Name, TriggerMarker)
}

// FilterSubObjectAuthorities keeps the authorities that carry a sub-object marker.
func FilterSubObjectAuthorities(authorities []Authority) []Authority {
	return util.FilterSlice(authorities, Authority.IsSubObjectRelevant)
}

// AuthorityNames returns the displayed names of the authorities.
func AuthorityNames(authorities []Authority) []string {
	return util.TransformSlice(authorities, func(a Authority) string { return a.Name })
}

// AuthoritiesInScope returns the authorities of one scope.
func AuthoritiesInScope(authorities []Authority, scope AuthorityScope) []Authority {
	return util.FilterSlice(authorities, func(a Authority) bool { return a.Scope == scope })
}

func stripMarkers(name string) string {
	name = strings.ReplaceAll(name, ColumnMarker, "")
	name = strings.ReplaceAll(name, TriggerMarker, "")
	return strings.TrimSpace(name)
}
