package schema

import (
	"fmt"

	"github.com/xugu-publish/xugudef/database"
)

var authorityProperties = []Property{
	PropDatabaseAuthority, PropObjectAuthority, PropSubObjectAuthority,
	PropTargetSchema, PropTargetType, PropTargetObject, PropSubTargetType, PropSubTargetObject,
	PropRoles,
}

func (g *Generator) userActions(cmd Command, u *User) ([]database.PersistAction, error) {
	name := QuoteIdent(u.Name)
	props := cmd.Properties
	if props.Has(PropPassword) || props.Has(PropConfirmPassword) {
		if props.Text(PropPassword) != props.Text(PropConfirmPassword) {
			return nil, invalid(u, "password and confirmation differ")
		}
	}

	switch cmd.Kind {
	case CommandCreate:
		if err := props.check(KindUser, append([]Property{PropPassword, PropConfirmPassword, PropLocked}, authorityProperties...)...); err != nil {
			return nil, err
		}
		password := props.Text(PropPassword)
		if password == "" {
			return nil, invalid(u, "password is required")
		}
		sql := fmt.Sprintf("CREATE USER %s IDENTIFIED BY %s", name, StringConstant(password))
		if u.Locked {
			sql += " ACCOUNT LOCK"
		}
		actions := []database.PersistAction{database.NewAction("Create user", sql)}
		grants, err := g.authorityActions(u, props)
		if err != nil {
			return nil, err
		}
		return append(actions, grants...), nil
	case CommandModify:
		if err := props.check(KindUser, append([]Property{PropPassword, PropConfirmPassword, PropLocked}, authorityProperties...)...); err != nil {
			return nil, err
		}
		var actions []database.PersistAction
		if props.Has(PropPassword) {
			if props.Text(PropPassword) == "" {
				return nil, invalid(u, "password is required")
			}
			actions = append(actions, database.NewAction("Change password",
				fmt.Sprintf("ALTER USER %s IDENTIFIED BY %s", name, StringConstant(props.Text(PropPassword)))))
		}
		if props.Has(PropLocked) {
			state := "UNLOCK"
			if u.Locked {
				state = "LOCK"
			}
			actions = append(actions, database.NewAction("Alter user",
				fmt.Sprintf("ALTER USER %s ACCOUNT %s", name, state)))
		}
		grants, err := g.authorityActions(u, props)
		if err != nil {
			return nil, err
		}
		return append(actions, grants...), nil
	case CommandRename:
		return []database.PersistAction{database.NewAction("Rename user",
			fmt.Sprintf("ALTER USER %s RENAME TO %s", name, QuoteIdent(cmd.NewName)))}, nil
	default:
		suffix := ""
		if g.cascade(cmd) {
			suffix = " CASCADE"
		}
		return []database.PersistAction{dropAction(KindUser, name, suffix)}, nil
	}
}

func (g *Generator) roleActions(cmd Command, r *Role) ([]database.PersistAction, error) {
	name := QuoteIdent(r.Name)
	switch cmd.Kind {
	case CommandCreate, CommandModify:
		if err := cmd.Properties.check(KindRole, authorityProperties...); err != nil {
			return nil, err
		}
		var actions []database.PersistAction
		if cmd.Kind == CommandCreate {
			actions = append(actions, database.NewAction("Create role", "CREATE ROLE "+name))
		}
		grants, err := g.authorityActions(r, cmd.Properties)
		if err != nil {
			return nil, err
		}
		return append(actions, grants...), nil
	case CommandRename:
		return nil, unsupported(r, cmd.Kind, "")
	default:
		return []database.PersistAction{dropAction(KindRole, name, "")}, nil
	}
}

// authorityActions reconciles every authority scope present in props, in
// database, object, sub-object order, followed by role membership.
func (g *Generator) authorityActions(holder AuthorityHolder, props Properties) ([]database.PersistAction, error) {
	name := holder.Base().Name
	held := holder.HeldAuthorities()
	var actions []database.PersistAction

	if props.Has(PropDatabaseAuthority) {
		actions = append(actions, g.reconciler.ReconcileDatabase(name,
			AuthoritiesInScope(held, ScopeDatabase), props.Strings(PropDatabaseAuthority))...)
	}
	if props.Has(PropObjectAuthority) || props.Has(PropSubObjectAuthority) {
		target := TargetFromProperties(props)
		if target.Object == "" {
			return nil, invalid(holder, "authority target object is empty")
		}
		if props.Has(PropObjectAuthority) {
			actions = append(actions, g.reconciler.ReconcileObject(name,
				AuthoritiesInScope(held, ScopeObject), props.Strings(PropObjectAuthority), target)...)
		}
		if props.Has(PropSubObjectAuthority) {
			if target.SubObject == "" {
				return nil, invalid(holder, "authority target column or trigger is empty")
			}
			actions = append(actions, g.reconciler.ReconcileSubObject(name,
				AuthoritiesInScope(held, ScopeSubObject), props.Strings(PropSubObjectAuthority), target)...)
		}
	}
	if props.Has(PropRoles) {
		actions = append(actions, g.reconciler.ReconcileRoles(name, holder.HeldRoles(), props.Strings(PropRoles))...)
	}
	return actions, nil
}
