package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xugu-publish/xugudef/database"
)

// Cache is the owner of cached objects. Generate evicts unpersisted objects
// on delete; Complete updates it once the statements were applied.
type Cache interface {
	Lookup(ref ObjectRef) (Object, bool)
	Evict(obj Object)
	Rename(obj Object, newName string) error
	Refresh(ctx context.Context, obj Object) error
}

// Generator builds the persist actions of edit commands. It holds no state
// besides its configuration and the cache it reads parents from.
type Generator struct {
	config     database.GeneratorConfig
	reconciler Reconciler
	cache      Cache
}

func NewGenerator(config database.GeneratorConfig, cache Cache) *Generator {
	if config.LineSeparator == "" {
		config.LineSeparator = "\n"
	}
	return &Generator{
		config:     config,
		reconciler: NewReconciler(config.Matching),
		cache:      cache,
	}
}

// Plan is a command together with the actions built for it.
type Plan struct {
	Command Command
	Actions []database.PersistAction
}

// CompileUnit returns the plan as a compile unit when it creates or replaces a
// source object.
func (p Plan) CompileUnit() (database.CompileUnit, bool) {
	source, ok := p.Command.Object.(*Source)
	if !ok || p.Command.Kind == CommandDelete || len(p.Actions) == 0 {
		return nil, false
	}
	return planUnit{plan: p, source: source}, true
}

type planUnit struct {
	plan   Plan
	source *Source
}

func (u planUnit) Ref() database.ObjectRef                  { return u.source.Ref() }
func (u planUnit) CompileActions() []database.PersistAction { return u.plan.Actions }
func (u planUnit) ObjectState() database.ObjectState        { return u.source.State }

// Actions concatenates the actions of all plans.
func Actions(plans []Plan) []database.PersistAction {
	var actions []database.PersistAction
	for _, plan := range plans {
		actions = append(actions, plan.Actions...)
	}
	return actions
}

// GenerateAll orders the commands so that parents are created before their
// children and deleted after them, then generates each one.
func (g *Generator) GenerateAll(commands []Command) ([]Plan, error) {
	var plans []Plan
	for _, cmd := range SortCommands(commands) {
		actions, err := g.Generate(cmd)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd, err)
		}
		plans = append(plans, Plan{Command: cmd, Actions: actions})
	}
	return plans, nil
}

// Generate returns the ordered actions of one command. It never mutates the
// object; a delete of an object that was never persisted evicts it from the
// cache and returns no actions.
func (g *Generator) Generate(cmd Command) ([]database.PersistAction, error) {
	if cmd.Object == nil {
		return nil, errors.New("command has no object")
	}
	obj := cmd.Object
	base := obj.Base()
	if base.Name == "" {
		return nil, invalid(obj, "name is empty")
	}

	switch cmd.Kind {
	case CommandDelete:
		if !base.Persisted {
			slog.Debug("Evicting unpersisted object", "object", RefOf(obj).String())
			g.cache.Evict(obj)
			return nil, nil
		}
	case CommandModify:
		if !base.Persisted {
			return nil, fmt.Errorf("%w: cannot modify %s", ErrNotPersisted, RefOf(obj))
		}
		if len(cmd.Properties) == 0 {
			// A bare modify of a source recompiles it when the server reports it invalid.
			if source, ok := obj.(*Source); ok {
				return source.CompileActions(), nil
			}
			return nil, nil
		}
	case CommandRename:
		if !base.Persisted {
			return nil, fmt.Errorf("%w: cannot rename %s", ErrNotPersisted, RefOf(obj))
		}
		if cmd.NewName == "" {
			return nil, invalid(obj, "new name is empty")
		}
	}

	if _, ok := obj.(*Tablespace); ok {
		return nil, unsupported(obj, cmd.Kind, "manage tablespaces with the server tools")
	}

	switch obj := obj.(type) {
	case *Table:
		return g.tableActions(cmd, obj)
	case *Column:
		return g.columnActions(cmd, obj)
	case *Constraint:
		return g.constraintActions(cmd, obj)
	case *Index:
		return g.indexActions(cmd, obj)
	case *Partition:
		return g.partitionActions(cmd, obj)
	case *Sequence:
		return g.sequenceActions(cmd, obj)
	case *View:
		return g.viewActions(cmd, obj)
	case *SchemaObject:
		return g.schemaActions(cmd, obj)
	case *Synonym:
		return g.synonymActions(cmd, obj)
	case *Source:
		return g.sourceActions(cmd, obj)
	case *User:
		return g.userActions(cmd, obj)
	case *Role:
		return g.roleActions(cmd, obj)
	default:
		return nil, fmt.Errorf("unexpected object type in Generate: %T", obj)
	}
}

// Complete records a successfully applied command in the cache: created
// objects become persisted, renames take their new name and deleted objects
// are evicted. Everything but an eviction is then refreshed from the server.
func (g *Generator) Complete(ctx context.Context, cmd Command) error {
	obj := cmd.Object
	switch cmd.Kind {
	case CommandCreate:
		if table, ok := obj.(*Table); ok {
			table.setPersisted()
		} else {
			obj.Base().Persisted = true
		}
		if source, ok := obj.(*Source); ok {
			source.Modified = false
		}
	case CommandModify:
		if source, ok := obj.(*Source); ok && cmd.Properties.Has(PropSource) {
			source.Modified = false
		}
	case CommandRename:
		if err := g.cache.Rename(obj, cmd.NewName); err != nil {
			return err
		}
	case CommandDelete:
		g.cache.Evict(obj)
		return nil
	}
	return g.cache.Refresh(ctx, obj)
}

func (g *Generator) sep() string {
	return g.config.LineSeparator
}

// parentTable resolves the cached table that owns a child object.
func (g *Generator) parentTable(child tableChild) (*Table, error) {
	ref, ok := RefOf(child).TableRef()
	if !ok {
		return nil, invalid(child, "owning table is not set")
	}
	obj, ok := g.cache.Lookup(ref)
	if !ok {
		return nil, fmt.Errorf("table %s of %s %s is not cached", ref, child.Kind(), QuoteIdent(child.Base().Name))
	}
	table, ok := obj.(*Table)
	if !ok {
		return nil, fmt.Errorf("%s is a %s, not a table", ref, obj.Kind())
	}
	return table, nil
}

func (g *Generator) cascade(cmd Command) bool {
	return cmd.Options.Cascade || g.config.CascadeDrop
}

// commentAction emits COMMENT ON for any commentable object.
func commentAction(kind ObjectKind, name string, comment string) database.PersistAction {
	return database.NewAction("Comment "+kind.String(),
		fmt.Sprintf("COMMENT ON %s %s IS %s", kind, name, StringConstant(comment)))
}

// modifyCommentOnly is the shared shortcut of commentable kinds: when only
// the comment changed a single COMMENT ON is enough.
func modifyCommentOnly(cmd Command, name string) ([]database.PersistAction, bool) {
	if !cmd.Properties.Only(PropComment) {
		return nil, false
	}
	return []database.PersistAction{commentAction(cmd.Object.Kind(), name, cmd.Object.Base().Comment)}, true
}

func dropAction(kind ObjectKind, name string, suffix string) database.PersistAction {
	return database.NewAction("Drop "+kind.String(), fmt.Sprintf("DROP %s %s%s", kind, name, suffix))
}
