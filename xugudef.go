package xugudef

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/k0kubun/pp/v3"

	"github.com/xugu-publish/xugudef/database"
	"github.com/xugu-publish/xugudef/parser"
	"github.com/xugu-publish/xugudef/schema"
)

type Options struct {
	SessionFile string // edit session document, "-" for stdin
	ScriptFile  string // plain script to execute instead of a session
	DryRun      bool
	Debug       bool
	Config      database.GeneratorConfig
	Output      io.Writer // defaults to stdout
}

// SourceStateLoader is implemented by databases that can tell which compiled
// units are invalid before commands are generated.
type SourceStateLoader interface {
	LoadSourceStates(ctx context.Context, sources []*schema.Source) error
}

// ObjectLoader is implemented by databases that can re-read cached objects.
type ObjectLoader interface {
	Load(ctx context.Context, obj schema.Object) (schema.Object, error)
}

// Run generates the statements of an edit session, then prints them (dry
// run) or applies them: structural statements in one transaction, compiled
// units one by one. Applied commands are completed in the cache afterwards.
func Run(ctx context.Context, db database.Database, options *Options) error {
	out := options.Output
	if out == nil {
		out = os.Stdout
	}
	logger := writerLogger{w: out}

	if options.ScriptFile != "" {
		return runScript(ctx, db, options, logger)
	}

	buf, err := ReadFile(options.SessionFile)
	if err != nil {
		return fmt.Errorf("failed to read '%s': %w", options.SessionFile, err)
	}
	session, err := schema.ParseEditSession(buf)
	if err != nil {
		return fmt.Errorf("failed to parse '%s': %w", options.SessionFile, err)
	}

	config := options.Config
	if config.DefaultSchema == "" {
		config.DefaultSchema = db.GetDefaultSchema()
	}
	var loader schema.Loader
	if l, ok := db.(ObjectLoader); ok && !options.DryRun {
		loader = l.Load
	}
	commands, catalog, err := session.Build(config.DefaultSchema, loader)
	if err != nil {
		return err
	}
	if l, ok := db.(SourceStateLoader); ok && !options.DryRun {
		if err := l.LoadSourceStates(ctx, catalog.Sources()); err != nil {
			return fmt.Errorf("failed to load source states: %w", err)
		}
	}

	generator := schema.NewGenerator(config, catalog)
	plans, err := generator.GenerateAll(commands)
	if err != nil {
		return err
	}
	if options.Debug {
		pp.Fprintln(os.Stderr, plans)
	}

	actions := schema.Actions(plans)
	if len(actions) == 0 {
		logger.Println("-- Nothing is modified --")
		return nil
	}
	if options.DryRun {
		logger.Println("-- dry run --")
		logger.Print(database.JoinActions(actions))
		return nil
	}
	return apply(ctx, db, generator, plans, logger)
}

func apply(ctx context.Context, db database.Database, generator *schema.Generator, plans []schema.Plan, logger database.Logger) error {
	var structural []database.PersistAction
	var units []database.CompileUnit
	var unitCommands []schema.Command
	for _, plan := range plans {
		if unit, ok := plan.CompileUnit(); ok {
			units = append(units, unit)
			unitCommands = append(unitCommands, plan.Command)
			continue
		}
		structural = append(structural, plan.Actions...)
	}

	if len(structural) > 0 {
		if err := database.RunActions(ctx, db, structural, logger); err != nil {
			return err
		}
	}

	var completeErrs []error
	for _, plan := range plans {
		if _, ok := plan.CompileUnit(); ok {
			continue
		}
		if err := generator.Complete(ctx, plan.Command); err != nil {
			completeErrs = append(completeErrs, err)
		}
	}

	var compileErr error
	if len(units) > 0 {
		batch := compilerFor(db, logger, unitCommands).CompileAll(ctx, units)
		var failed []string
		for i, result := range batch.Results {
			logger.Printf("-- %s --\n", result.Message)
			if text := result.ErrorText(); text != "" {
				logger.Println(text)
			}
			switch {
			case result.Status == database.CompileFailed:
				failed = append(failed, result.Unit.String())
			case result.Status == database.CompileSuccess && result.Err == nil:
				if err := generator.Complete(ctx, unitCommands[i]); err != nil {
					completeErrs = append(completeErrs, err)
				}
			}
		}
		if len(failed) > 0 {
			compileErr = fmt.Errorf("compilation failed: %s", strings.Join(failed, ", "))
		} else if ctx.Err() != nil {
			compileErr = ctx.Err()
		}
	}

	for _, err := range completeErrs {
		slog.Warn("Failed to refresh object", "error", err)
	}
	return compileErr
}

// compilerFor builds a compiler that keeps the cached state of each source in
// step with the server.
func compilerFor(db database.Database, logger database.Logger, commands []schema.Command) *database.Compiler {
	sources := map[database.ObjectRef]*schema.Source{}
	for _, cmd := range commands {
		if source, ok := cmd.Object.(*schema.Source); ok {
			sources[source.Ref()] = source
		}
	}
	compiler := &database.Compiler{
		DB:     db,
		Logger: logger,
		OnUpdate: func(unit database.CompileUnit, state database.ObjectState) {
			slog.Debug("Object state changed", "unit", unit.Ref().String(), "from", unit.ObjectState().String(), "to", state.String())
			if source, ok := sources[unit.Ref()]; ok {
				source.State = state
			}
		},
	}
	if diagnostics, ok := db.(database.DiagnosticsSource); ok {
		compiler.Diagnostics = diagnostics
	}
	if states, ok := db.(database.StateSource); ok {
		compiler.States = states
	}
	return compiler
}

func runScript(ctx context.Context, db database.Database, options *Options, logger database.Logger) error {
	script, err := ReadFile(options.ScriptFile)
	if err != nil {
		return fmt.Errorf("failed to read '%s': %w", options.ScriptFile, err)
	}
	var actions []database.PersistAction
	for i, stmt := range parser.SplitScript(string(script)) {
		actions = append(actions, database.NewAction(fmt.Sprintf("Statement %d", i+1), stmt))
	}
	if len(actions) == 0 {
		logger.Println("-- Nothing is modified --")
		return nil
	}
	if options.DryRun {
		logger.Println("-- dry run --")
		logger.Print(database.JoinActions(actions))
		return nil
	}
	return database.RunActions(ctx, db, actions, logger)
}

// ReadFile reads a file, or stdin when path is "-".
func ReadFile(path string) ([]byte, error) {
	if path == "-" {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			return nil, errors.New("stdin is not piped")
		}
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

type writerLogger struct {
	w io.Writer
}

func (l writerLogger) Print(v ...any) {
	fmt.Fprint(l.w, v...)
}

func (l writerLogger) Printf(format string, v ...any) {
	fmt.Fprintf(l.w, format, v...)
}

func (l writerLogger) Println(v ...any) {
	fmt.Fprintln(l.w, v...)
}
