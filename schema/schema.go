// This package has the Xugu object model, DDL/DCL builders and the diff driver.
// Never touch database.
package schema

import (
	"fmt"
	"strings"
)

type ObjectKind int

const (
	KindTable ObjectKind = iota
	KindColumn
	KindConstraint
	KindIndex
	KindPartition
	KindSequence
	KindView
	KindSchema
	KindTablespace
	KindSynonym
	KindProcedure
	KindFunction
	KindPackage
	KindPackageBody
	KindType
	KindTypeBody
	KindTrigger
	KindUser
	KindRole
)

var objectKindKeywords = map[ObjectKind]string{
	KindTable:       "TABLE",
	KindColumn:      "COLUMN",
	KindConstraint:  "CONSTRAINT",
	KindIndex:       "INDEX",
	KindPartition:   "PARTITION",
	KindSequence:    "SEQUENCE",
	KindView:        "VIEW",
	KindSchema:      "SCHEMA",
	KindTablespace:  "TABLESPACE",
	KindSynonym:     "SYNONYM",
	KindProcedure:   "PROCEDURE",
	KindFunction:    "FUNCTION",
	KindPackage:     "PACKAGE",
	KindPackageBody: "PACKAGE BODY",
	KindType:        "TYPE",
	KindTypeBody:    "TYPE BODY",
	KindTrigger:     "TRIGGER",
	KindUser:        "USER",
	KindRole:        "ROLE",
}

// String returns the SQL keyword of the kind, e.g. "PACKAGE BODY".
func (k ObjectKind) String() string {
	if keyword, ok := objectKindKeywords[k]; ok {
		return keyword
	}
	return fmt.Sprintf("ObjectKind(%d)", int(k))
}

// ParseObjectKind accepts the keyword in any case, with "_" or " " between words.
func ParseObjectKind(name string) (ObjectKind, error) {
	keyword := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", " "))
	for kind, kw := range objectKindKeywords {
		if kw == keyword {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown object kind %q", name)
}

// IsSource reports whether objects of this kind are compiled from source text.
func (k ObjectKind) IsSource() bool {
	switch k {
	case KindProcedure, KindFunction, KindPackage, KindPackageBody, KindType, KindTypeBody, KindTrigger:
		return true
	default:
		return false
	}
}

type CommandKind int

const (
	CommandCreate CommandKind = iota
	CommandModify
	CommandRename
	CommandDelete
)

func (k CommandKind) String() string {
	switch k {
	case CommandCreate:
		return "create"
	case CommandModify:
		return "modify"
	case CommandRename:
		return "rename"
	case CommandDelete:
		return "delete"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

func ParseCommandKind(name string) (CommandKind, error) {
	for _, kind := range []CommandKind{CommandCreate, CommandModify, CommandRename, CommandDelete} {
		if strings.EqualFold(kind.String(), strings.TrimSpace(name)) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", name)
}

type Options struct {
	Cascade bool
}

// Command is one pending edit of a cached object. For modify commands
// Properties holds the changed keys only; the object already carries the new
// values, except for authorities which the object holds as currently granted.
type Command struct {
	Kind       CommandKind
	Object     Object
	Properties Properties
	NewName    string // rename only
	Options    Options
}

func (c Command) String() string {
	return fmt.Sprintf("%s %s %s", c.Kind, c.Object.Kind(), RefOf(c.Object))
}
