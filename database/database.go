// This package has database layer. Never deal with DDL construction.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

type Config struct {
	DbName     string
	User       string
	Password   string
	Host       string
	Port       int
	DriverName string // database/sql driver name, "xugu" unless overridden

	// Limits concurrent catalog queries. 0 disables concurrency, a negative value removes the limit.
	LoadConcurrency int
}

// Reconciliation matching rules accepted in GeneratorConfig.Matching.
const (
	MatchExact    = "exact"
	MatchContains = "contains"
)

type MatchingConfig struct {
	Database  string `yaml:"database"`
	Object    string `yaml:"object"`
	SubObject string `yaml:"sub_object"`
}

type GeneratorConfig struct {
	DefaultSchema    string         `yaml:"default_schema"`
	CascadeDrop      bool           `yaml:"cascade_drop"`
	LineSeparator    string         `yaml:"line_separator"`
	StrictPartitions bool           `yaml:"strict_partitions"`
	Matching         MatchingConfig `yaml:"matching"`
}

// Abstraction layer for a live database connection
type Database interface {
	DB() *sql.DB
	GetConfig() Config
	GetDefaultSchema() string
	Close() error
}

// Executor runs a single statement. *sql.DB, *sql.Tx and *sql.Conn satisfy it.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Session is an Executor that can also read catalog rows.
type Session interface {
	Executor
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ExecutionError is a statement rejected by the server.
type ExecutionError struct {
	Title string
	SQL   string
	Err   error
}

func (e *ExecutionError) Error() string {
	if e.Title == "" {
		return fmt.Sprintf("failed to execute '%s': %s", e.SQL, e.Err)
	}
	return fmt.Sprintf("%s: failed to execute '%s': %s", e.Title, e.SQL, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// RunActions applies actions inside one transaction, in order.
// Failed optional actions are reported and skipped; any other failure rolls back
// and is returned as an *ExecutionError.
func RunActions(ctx context.Context, d Database, actions []PersistAction, logger Logger) error {
	transaction, err := d.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	logger.Println("-- Apply --")
	if err := ExecuteActions(ctx, transaction, actions, logger); err != nil {
		if rollbackErr := transaction.Rollback(); rollbackErr != nil {
			return errors.Join(err, rollbackErr)
		}
		return err
	}
	return transaction.Commit()
}

// ExecuteActions runs actions one by one on exec, checking ctx before each of them.
func ExecuteActions(ctx context.Context, exec Executor, actions []PersistAction, logger Logger) error {
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Printf("%s;\n", action.SQL)
		err := executeAction(ctx, exec, action)
		if err == nil {
			continue
		}
		if action.Type == ActionOptional {
			logger.Printf("-- Skipped: %s; (%s)\n", action.SQL, err)
			continue
		}
		return err
	}
	return nil
}

// executeAction runs the pre-hook, the statement and then the post-hook,
// which always sees the execution error.
func executeAction(ctx context.Context, exec Executor, action PersistAction) error {
	if action.Before != nil {
		if err := action.Before(ctx); err != nil {
			return &ExecutionError{Title: action.Title, SQL: action.SQL, Err: err}
		}
	}
	var err error
	if _, execErr := exec.ExecContext(ctx, action.SQL); execErr != nil {
		err = &ExecutionError{Title: action.Title, SQL: action.SQL, Err: execErr}
	}
	if action.After != nil {
		action.After(ctx, err)
	}
	return err
}

func ParseGeneratorConfig(configFile string) (GeneratorConfig, error) {
	if configFile == "" {
		return DefaultGeneratorConfig(), nil
	}

	buf, err := os.ReadFile(configFile)
	if err != nil {
		return GeneratorConfig{}, err
	}
	return ParseGeneratorConfigYAML(buf)
}

func ParseGeneratorConfigYAML(buf []byte) (GeneratorConfig, error) {
	config := DefaultGeneratorConfig()
	if err := yaml.UnmarshalStrict(buf, &config); err != nil {
		return GeneratorConfig{}, err
	}
	config.DefaultSchema = strings.TrimSpace(config.DefaultSchema)

	for scope, rule := range map[string]string{
		"database":   config.Matching.Database,
		"object":     config.Matching.Object,
		"sub_object": config.Matching.SubObject,
	} {
		if rule != MatchExact && rule != MatchContains {
			return GeneratorConfig{}, fmt.Errorf("unknown matching rule %q for %s authorities", rule, scope)
		}
	}
	return config, nil
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		LineSeparator: "\n",
		Matching: MatchingConfig{
			Database:  MatchExact,
			Object:    MatchContains,
			SubObject: MatchContains,
		},
	}
}
