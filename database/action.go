package database

import (
	"context"
	"strings"
)

type ActionType int

const (
	// ActionNormal failures abort the batch.
	ActionNormal ActionType = iota
	// ActionOptional failures are reported and skipped.
	ActionOptional
)

func (t ActionType) String() string {
	switch t {
	case ActionOptional:
		return "OPTIONAL"
	default:
		return "NORMAL"
	}
}

// ObjectRef names a server-side object, e.g. the unit a validate action checks.
type ObjectRef struct {
	Type   string // PROCEDURE, PACKAGE BODY, TRIGGER, ...
	Schema string
	Name   string
}

func (r ObjectRef) String() string {
	if r.Schema == "" {
		return r.Name
	}
	return r.Schema + "." + r.Name
}

// PersistAction is one labeled statement of an object's state transition.
type PersistAction struct {
	Title string
	SQL   string
	Type  ActionType

	// Validate marks a compile action; its server-side error log is read
	// after execution.
	Validate *ObjectRef

	Before func(ctx context.Context) error
	After  func(ctx context.Context, err error)
}

func NewAction(title string, sql string) PersistAction {
	return PersistAction{Title: title, SQL: sql}
}

func NewOptionalAction(title string, sql string) PersistAction {
	return PersistAction{Title: title, SQL: sql, Type: ActionOptional}
}

// JoinActions renders actions the way they are printed on apply: one
// statement per entry, each terminated by ";\n".
func JoinActions(actions []PersistAction) string {
	var builder strings.Builder
	for _, action := range actions {
		builder.WriteString(action.SQL)
		builder.WriteString(";\n")
	}
	return builder.String()
}
