package testutil

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xugu-publish/xugudef/database"
	"github.com/xugu-publish/xugudef/schema"
	"github.com/xugu-publish/xugudef/util"
)

// TestCase is an edit session together with the statements it must produce.
type TestCase struct {
	schema.EditSession `yaml:",inline"`
	Config             *database.GeneratorConfig `yaml:"config"`
	Output             *string                   // expected statements, each terminated by ";\n"
	Error              *string                   // expected error message
}

func init() {
	util.InitSlog()

	// Keep test output free of INFO logs unless LOG_LEVEL asks for them.
	if os.Getenv("LOG_LEVEL") == "" {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
		slog.SetDefault(slog.New(handler))
	}
}

func ReadTests(pattern string) (map[string]TestCase, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	ret := map[string]TestCase{}
	testFileMap := map[string]string{}
	for _, file := range files {
		var tests map[string]*TestCase

		buf, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		dec := yaml.NewDecoder(bytes.NewReader(buf), yaml.DisallowUnknownField())
		if err := dec.Decode(&tests); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}

		for name, test := range tests {
			if test.Output != nil && test.Error != nil {
				return nil, fmt.Errorf("%s: test case '%s' has both 'output' and 'error'", file, name)
			}
			if existingFile, ok := testFileMap[name]; ok {
				return nil, fmt.Errorf("duplicate test case name '%s': defined in both '%s' and '%s'", name, existingFile, file)
			}
			testFileMap[name] = file
			ret[name] = *test
		}
	}
	return ret, nil
}

// GeneratorConfig returns the test's config with unset fields taken from the defaults.
func (test TestCase) GeneratorConfig() database.GeneratorConfig {
	defaults := database.DefaultGeneratorConfig()
	if test.Config == nil {
		return defaults
	}
	config := *test.Config
	if config.LineSeparator == "" {
		config.LineSeparator = defaults.LineSeparator
	}
	if config.Matching.Database == "" {
		config.Matching.Database = defaults.Matching.Database
	}
	if config.Matching.Object == "" {
		config.Matching.Object = defaults.Matching.Object
	}
	if config.Matching.SubObject == "" {
		config.Matching.SubObject = defaults.Matching.SubObject
	}
	return config
}

// Generate builds the session and returns its statements, each terminated by ";\n".
func Generate(test TestCase) (string, error) {
	_, plans, err := generate(test)
	if err != nil {
		return "", err
	}
	return database.JoinActions(schema.Actions(plans)), nil
}

func generate(test TestCase) (*schema.Generator, []schema.Plan, error) {
	config := test.GeneratorConfig()
	commands, catalog, err := test.Build(config.DefaultSchema, nil)
	if err != nil {
		return nil, nil, err
	}
	generator := schema.NewGenerator(config, catalog)
	plans, err := generator.GenerateAll(commands)
	if err != nil {
		return nil, nil, err
	}
	return generator, plans, nil
}

// RunTest generates the session's statements, compares them with the
// expectation, then applies them to an offline dry-run database and checks
// that completing every command leaves no object unpersisted.
func RunTest(t *testing.T, test TestCase) {
	t.Helper()
	generator, plans, err := generate(test)
	if err != nil {
		if test.Error == nil {
			t.Fatal(err)
		}
		assert.Equal(t, *test.Error, err.Error())
		return
	}
	if test.Error != nil {
		t.Errorf("expected error: %s, but got no error", *test.Error)
		return
	}

	actual := database.JoinActions(schema.Actions(plans))
	if test.Output != nil {
		assert.Equal(t, strings.TrimSpace(*test.Output), strings.TrimSpace(actual))
	}
	applyOffline(t, context.Background(), generator, plans)
}

func applyOffline(t *testing.T, ctx context.Context, generator *schema.Generator, plans []schema.Plan) {
	t.Helper()
	db, err := database.NewDryRunDatabase(nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, database.RunActions(ctx, db, schema.Actions(plans), database.NullLogger{}))
	for _, plan := range plans {
		require.NoError(t, generator.Complete(ctx, plan.Command))
		if plan.Command.Kind == schema.CommandCreate {
			assert.True(t, plan.Command.Object.Base().Persisted, "%s is not persisted after completion", plan.Command)
		}
	}
}
