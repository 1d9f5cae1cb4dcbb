package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotPersisted    = errors.New("object is not persisted")
	ErrMixedPartitions = errors.New("partitions of a table must share type and key")
	ErrUnknownProperty = errors.New("unknown property")
)

// ValidationError rejects a command before any statement is built.
type ValidationError struct {
	Kind   ObjectKind
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid %s: %s", strings.ToLower(e.Kind.String()), e.Reason)
	}
	return fmt.Sprintf("invalid %s %s: %s", strings.ToLower(e.Kind.String()), e.Name, e.Reason)
}

// UnsupportedOperationError is a command the server has no DDL for.
type UnsupportedOperationError struct {
	Kind    ObjectKind
	Command CommandKind
	Reason  string
}

func (e *UnsupportedOperationError) Error() string {
	msg := fmt.Sprintf("%s of %s is not supported", e.Command, strings.ToLower(e.Kind.String()))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func unsupported(obj Object, cmd CommandKind, reason string) error {
	return &UnsupportedOperationError{Kind: obj.Kind(), Command: cmd, Reason: reason}
}

func invalid(obj Object, reason string) error {
	return &ValidationError{Kind: obj.Kind(), Name: obj.Base().Name, Reason: reason}
}
