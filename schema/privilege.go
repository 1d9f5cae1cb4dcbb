package schema

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/xugu-publish/xugudef/database"
)

// Matcher decides whether a held authority name satisfies a desired one.
type Matcher func(held string, desired string) bool

func ExactMatch(held string, desired string) bool {
	return held == desired
}

// ContainsMatch accepts a held compound or marker-tagged name such as
// "SELECT,UPDATE" for a desired "SELECT".
func ContainsMatch(held string, desired string) bool {
	return strings.Contains(held, desired)
}

func MatcherFor(rule string) Matcher {
	if rule == database.MatchContains {
		return ContainsMatch
	}
	return ExactMatch
}

// Reconciler turns the difference between held and desired authority names
// into REVOKE and GRANT actions, one matching rule per scope.
type Reconciler struct {
	Database  Matcher
	Object    Matcher
	SubObject Matcher
}

func NewReconciler(config database.MatchingConfig) Reconciler {
	return Reconciler{
		Database:  MatcherFor(config.Database),
		Object:    MatcherFor(config.Object),
		SubObject: MatcherFor(config.SubObject),
	}
}

func DefaultReconciler() Reconciler {
	return NewReconciler(database.DefaultGeneratorConfig().Matching)
}

// Target is the object an object or sub-object authority applies to.
type Target struct {
	Schema    string
	Type      string // TABLE, VIEW, PROCEDURE, ...
	Object    string
	SubType   string // COLUMN or TRIGGER
	SubObject string
}

// TargetFromProperties reads TARGET_* and SUB_TARGET_* keys.
func TargetFromProperties(props Properties) Target {
	return Target{
		Schema:    props.Text(PropTargetSchema),
		Type:      strings.ToUpper(props.Text(PropTargetType)),
		Object:    props.Text(PropTargetObject),
		SubType:   strings.ToUpper(props.Text(PropSubTargetType)),
		SubObject: props.Text(PropSubTargetObject),
	}
}

// Name is the quoted qualified name authorities are keyed by.
func (t Target) Name() string {
	return QualifiedName(t.Schema, t.Object)
}

func (t Target) isColumn() bool {
	return t.SubType == "" || t.SubType == "COLUMN"
}

// ReconcileDatabase reconciles database-scope authorities of holder.
func (r Reconciler) ReconcileDatabase(holder string, held []Authority, desired []string) []database.PersistAction {
	return r.reconcile(ScopeDatabase, holder, held, desired, Target{})
}

// ReconcileObject reconciles the authorities of holder on one object.
func (r Reconciler) ReconcileObject(holder string, held []Authority, desired []string, target Target) []database.PersistAction {
	return r.reconcile(ScopeObject, holder, held, desired, target)
}

// ReconcileSubObject reconciles the authorities of holder on one column or
// trigger. Only marker-tagged held authorities take part.
func (r Reconciler) ReconcileSubObject(holder string, held []Authority, desired []string, target Target) []database.PersistAction {
	return r.reconcile(ScopeSubObject, holder, FilterSubObjectAuthorities(held), desired, target)
}

// reconcile emits a revoke for every held authority no desired name matches,
// then a grant for every desired name no held authority matches. Revokes come
// first so a narrowed compound grant is re-granted afterwards.
func (r Reconciler) reconcile(scope AuthorityScope, holder string, held []Authority, desired []string, target Target) []database.PersistAction {
	match := r.matcher(scope)
	held = r.relevant(scope, held, target)
	desired = dedupe(desired)

	var actions []database.PersistAction
	for _, authority := range held {
		if !slices.ContainsFunc(desired, func(name string) bool { return match(authority.Name, name) }) {
			actions = append(actions, database.NewAction(
				"Revoke "+authority.Privilege(),
				revokeStatement(scope, authority.Privilege(), holder, target),
			))
		}
	}
	for _, name := range desired {
		if !slices.ContainsFunc(held, func(authority Authority) bool { return match(authority.Name, name) }) {
			actions = append(actions, database.NewAction(
				"Grant "+stripMarkers(name),
				grantStatement(scope, stripMarkers(name), holder, target),
			))
		}
	}
	return actions
}

func (r Reconciler) matcher(scope AuthorityScope) Matcher {
	var match Matcher
	switch scope {
	case ScopeDatabase:
		match = r.Database
	case ScopeObject:
		match = r.Object
	default:
		match = r.SubObject
	}
	if match == nil {
		return ExactMatch
	}
	return match
}

// relevant drops held authorities outside the target. Authorities with a
// missing target cannot be compared and are skipped.
func (r Reconciler) relevant(scope AuthorityScope, held []Authority, target Target) []Authority {
	if scope == ScopeDatabase {
		return held
	}
	var result []Authority
	for _, authority := range held {
		if authority.Target == "" {
			slog.Debug("Skipping authority without target", "authority", authority.Name, "holder", authority.Holder)
			continue
		}
		if authority.Target != target.Name() {
			continue
		}
		if scope == ScopeSubObject && authority.SubTarget != target.SubObject {
			continue
		}
		result = append(result, authority)
	}
	return result
}

func grantStatement(scope AuthorityScope, privilege string, holder string, target Target) string {
	return fmt.Sprintf("GRANT %s TO %s", authorityClause(scope, privilege, target), QuoteIdent(holder))
}

func revokeStatement(scope AuthorityScope, privilege string, holder string, target Target) string {
	return fmt.Sprintf("REVOKE %s FROM %s", authorityClause(scope, privilege, target), QuoteIdent(holder))
}

// authorityClause renders "<privilege> [ON <object>]" for the scope.
func authorityClause(scope AuthorityScope, privilege string, target Target) string {
	switch scope {
	case ScopeDatabase:
		return privilege
	case ScopeObject:
		return privilege + " ON " + objectClause(target.Type, target.Name())
	default:
		if target.isColumn() {
			return fmt.Sprintf("%s(%s) ON %s", privilege, QuoteIdent(target.SubObject), objectClause(target.Type, target.Name()))
		}
		return privilege + " ON " + objectClause(target.SubType, QualifiedName(target.Schema, target.SubObject))
	}
}

func objectClause(objectType string, name string) string {
	if objectType == "" {
		return name
	}
	return objectType + " " + name
}

// ReconcileRoles grants roles the holder does not have yet and revokes the ones
// no longer wanted. Role names always match exactly.
func (r Reconciler) ReconcileRoles(holder string, held []string, desired []string) []database.PersistAction {
	var actions []database.PersistAction
	desired = dedupe(desired)
	for _, role := range held {
		if !slices.Contains(desired, role) {
			actions = append(actions, database.NewAction("Revoke role "+role,
				fmt.Sprintf("REVOKE %s FROM %s", QuoteIdent(role), QuoteIdent(holder))))
		}
	}
	for _, role := range desired {
		if !slices.Contains(held, role) {
			actions = append(actions, database.NewAction("Grant role "+role,
				fmt.Sprintf("GRANT %s TO %s", QuoteIdent(role), QuoteIdent(holder))))
		}
	}
	return actions
}

func dedupe(names []string) []string {
	var result []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" && !slices.Contains(result, name) {
			result = append(result, name)
		}
	}
	return result
}
