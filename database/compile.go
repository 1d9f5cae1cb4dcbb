package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

type ObjectState int

const (
	StateUnknown ObjectState = iota
	StateValid
	StateInvalid
)

func (s ObjectState) String() string {
	switch s {
	case StateValid:
		return "VALID"
	case StateInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// CompileError is one diagnostic reported by the server for a compiled unit.
type CompileError struct {
	Line     int
	Position int
	Message  string
}

func (e CompileError) String() string {
	if e.Line <= 0 {
		return e.Message
	}
	return fmt.Sprintf("[%d:%d] %s", e.Line, e.Position, e.Message)
}

// CompileUnit is a source object (procedure, trigger, package, type) that is
// created or replaced and then validated.
type CompileUnit interface {
	Ref() ObjectRef
	CompileActions() []PersistAction
	ObjectState() ObjectState
}

// DiagnosticsSource reads the server's error log of a compiled unit. A unit
// can be created successfully while its body is still invalid; only this
// second query tells the two apart.
type DiagnosticsSource interface {
	LogObjectErrors(ctx context.Context, session Session, ref ObjectRef) ([]CompileError, error)
}

// StateSource re-reads the validity of a unit.
type StateSource interface {
	ObjectState(ctx context.Context, session Session, ref ObjectRef) (ObjectState, error)
}

type CompileStatus int

const (
	CompileSuccess CompileStatus = iota
	CompileFailed
	CompileCancelled
)

func (s CompileStatus) String() string {
	switch s {
	case CompileSuccess:
		return "success"
	case CompileFailed:
		return "failed"
	default:
		return "cancelled"
	}
}

type CompileResult struct {
	Unit    ObjectRef
	Status  CompileStatus
	Errors  []CompileError
	Message string
	Err     error // the execution error that aborted the unit, if any
}

func (r *CompileResult) Succeeded() bool {
	return r.Status == CompileSuccess
}

// ErrorText joins all diagnostics, one per line.
func (r *CompileResult) ErrorText() string {
	lines := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		lines = append(lines, e.String())
	}
	return strings.Join(lines, "\n")
}

// FirstError returns the diagnostic the source editor should jump to.
func (r *CompileResult) FirstError() (CompileError, bool) {
	for _, e := range r.Errors {
		if e.Line > 0 {
			return e, true
		}
	}
	if len(r.Errors) > 0 {
		return r.Errors[0], true
	}
	return CompileError{}, false
}

// Compiler executes compile actions of source units on one session each.
type Compiler struct {
	DB          Database
	Diagnostics DiagnosticsSource // optional
	States      StateSource       // optional
	// OnUpdate is called when a unit's state differs from the one it had before compiling.
	OnUpdate func(unit CompileUnit, state ObjectState)
	Logger   Logger
}

// Compile runs the unit's actions in order, stopping at the first failed one.
// A failure is returned both in the result and as the error; cancellation is
// reported through the result only.
func (c *Compiler) Compile(ctx context.Context, unit CompileUnit) (*CompileResult, error) {
	result := &CompileResult{Unit: unit.Ref()}
	actions := unit.CompileActions()
	if len(actions) == 0 {
		c.finish(result, CompileSuccess)
		return result, nil
	}

	conn, err := c.DB.DB().Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	logger := c.logger()
	for _, action := range actions {
		if ctx.Err() != nil {
			c.finish(result, CompileCancelled)
			return result, nil
		}

		logger.Printf("%s;\n", action.SQL)
		if err := executeAction(ctx, conn, action); err != nil {
			if action.Type == ActionOptional {
				logger.Printf("-- Skipped: %s; (%s)\n", action.SQL, err)
				continue
			}
			if action.Validate != nil {
				result.Errors = append(result.Errors, c.diagnostics(ctx, conn, *action.Validate)...)
			}
			if len(result.Errors) == 0 {
				result.Errors = append(result.Errors, CompileError{Message: executionMessage(err)})
			}
			result.Err = err
			c.refreshState(ctx, conn, unit)
			c.finish(result, CompileFailed)
			return result, err
		}

		if action.Validate != nil {
			result.Errors = append(result.Errors, c.diagnostics(ctx, conn, *action.Validate)...)
		}
	}

	c.refreshState(ctx, conn, unit)
	if len(result.Errors) > 0 {
		c.finish(result, CompileFailed)
	} else {
		c.finish(result, CompileSuccess)
	}
	return result, nil
}

// BatchResult aggregates the outcome of compiling several units.
type BatchResult struct {
	Results []*CompileResult
}

func (b *BatchResult) Failed() []*CompileResult {
	var failed []*CompileResult
	for _, r := range b.Results {
		if r.Status == CompileFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

func (b *BatchResult) Succeeded() bool {
	for _, r := range b.Results {
		if !r.Succeeded() {
			return false
		}
	}
	return true
}

// CompileAll compiles every unit; a failing unit never stops its siblings.
// Once ctx is cancelled the remaining units are reported as cancelled.
func (c *Compiler) CompileAll(ctx context.Context, units []CompileUnit) *BatchResult {
	batch := &BatchResult{}
	for _, unit := range units {
		if ctx.Err() != nil {
			result := &CompileResult{Unit: unit.Ref()}
			c.finish(result, CompileCancelled)
			batch.Results = append(batch.Results, result)
			continue
		}

		result, err := c.Compile(ctx, unit)
		if result == nil {
			result = &CompileResult{
				Unit:   unit.Ref(),
				Errors: []CompileError{{Message: err.Error()}},
				Err:    err,
			}
			c.finish(result, CompileFailed)
		}
		if err != nil {
			slog.Warn("Compilation failed", "unit", unit.Ref().String(), "error", err)
		}
		batch.Results = append(batch.Results, result)
	}
	return batch
}

func (c *Compiler) diagnostics(ctx context.Context, session Session, ref ObjectRef) []CompileError {
	if c.Diagnostics == nil {
		return nil
	}
	errs, err := c.Diagnostics.LogObjectErrors(ctx, session, ref)
	if err != nil {
		slog.Warn("Failed to read compile errors", "unit", ref.String(), "error", err)
		return nil
	}
	return errs
}

func (c *Compiler) refreshState(ctx context.Context, session Session, unit CompileUnit) {
	if c.States == nil {
		return
	}
	state, err := c.States.ObjectState(ctx, session, unit.Ref())
	if err != nil {
		slog.Debug("Failed to refresh object state", "unit", unit.Ref().String(), "error", err)
		return
	}
	if state != unit.ObjectState() && c.OnUpdate != nil {
		c.OnUpdate(unit, state)
	}
}

func (c *Compiler) finish(result *CompileResult, status CompileStatus) {
	result.Status = status
	switch status {
	case CompileSuccess:
		result.Message = fmt.Sprintf("%s compiled successfully", result.Unit)
	case CompileFailed:
		result.Message = fmt.Sprintf("%s compilation failed", result.Unit)
	default:
		result.Message = fmt.Sprintf("%s compilation cancelled", result.Unit)
	}
}

func (c *Compiler) logger() Logger {
	if c.Logger == nil {
		return NullLogger{}
	}
	return c.Logger
}

func executionMessage(err error) string {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Err.Error()
	}
	return err.Error()
}
