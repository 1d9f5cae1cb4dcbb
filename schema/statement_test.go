package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xugu-publish/xugudef/database"
)

func int64p(v int64) *int64 {
	return &v
}

func TestBuildSequence(t *testing.T) {
	tests := []struct {
		name      string
		sequence  Sequence
		forUpdate bool
		expected  string
	}{
		{
			name:     "defaults",
			sequence: Sequence{},
			expected: `CREATE SEQUENCE "S"."SEQ" NOCYCLE NOCACHE NOORDER`,
		},
		{
			name:     "every clause",
			sequence: Sequence{StartWith: int64p(1), Increment: int64p(2), MinValue: int64p(1), MaxValue: int64p(1000), Cycle: true, Cache: 20, Order: true},
			expected: `CREATE SEQUENCE "S"."SEQ" START WITH 1 INCREMENT BY 2 MINVALUE 1 MAXVALUE 1000 CYCLE CACHE 20 ORDER`,
		},
		{
			name:      "alter leaves out START WITH",
			sequence:  Sequence{StartWith: int64p(5), Increment: int64p(-1)},
			forUpdate: true,
			expected:  `ALTER SEQUENCE "S"."SEQ" INCREMENT BY -1 NOCYCLE NOCACHE NOORDER`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := tt.sequence
			seq.ObjectBase = ObjectBase{Name: "SEQ", Schema: "S"}
			assert.Equal(t, tt.expected, BuildSequence(&seq, tt.forUpdate))
		})
	}
}

func TestNormalizeSource(t *testing.T) {
	tests := []struct {
		name     string
		kind     ObjectKind
		text     string
		expected string
		err      string
	}{
		{
			name:     "bare body",
			kind:     KindProcedure,
			text:     "P1 AS BEGIN NULL; END",
			expected: "CREATE OR REPLACE PROCEDURE P1 AS BEGIN NULL; END",
		},
		{
			name:     "kind header",
			kind:     KindFunction,
			text:     "function f1 return int as begin return 1; end",
			expected: "CREATE OR REPLACE FUNCTION f1 return int as begin return 1; end",
		},
		{
			name:     "create header",
			kind:     KindPackageBody,
			text:     "  create package body PK is end;\n",
			expected: "CREATE OR REPLACE PACKAGE BODY PK is end;",
		},
		{
			name:     "create or replace header",
			kind:     KindTrigger,
			text:     "CREATE OR REPLACE TRIGGER TRG BEFORE INSERT ON T FOR EACH ROW BEGIN NULL; END",
			expected: "CREATE OR REPLACE TRIGGER TRG BEFORE INSERT ON T FOR EACH ROW BEGIN NULL; END",
		},
		{
			name:     "leading line comment",
			kind:     KindProcedure,
			text:     "-- audit helper\nCREATE PROCEDURE P1 AS BEGIN NULL; END",
			expected: "-- audit helper\nCREATE OR REPLACE PROCEDURE P1 AS BEGIN NULL; END",
		},
		{
			name:     "leading block comment before bare body",
			kind:     KindFunction,
			text:     "/* v2 */ F1 RETURN INT AS BEGIN RETURN 1; END",
			expected: "/* v2 */ CREATE OR REPLACE FUNCTION F1 RETURN INT AS BEGIN RETURN 1; END",
		},
		{
			name:     "trailing block comment",
			kind:     KindPackage,
			text:     "CREATE OR REPLACE PACKAGE PK IS END;\n/* generated */\n",
			expected: "CREATE OR REPLACE PACKAGE PK IS END; /* generated */",
		},
		{
			name: "comments only",
			kind: KindProcedure,
			text: "-- nothing here\n/* still nothing */",
			err:  "invalid procedure: source is empty",
		},
		{
			name: "wrong kind",
			kind: KindProcedure,
			text: "CREATE FUNCTION F1 RETURN INT AS BEGIN RETURN 1; END",
			err:  "invalid procedure: source creates FUNCTION, not PROCEDURE",
		},
		{
			name: "package instead of package body",
			kind: KindPackageBody,
			text: "CREATE PACKAGE PK IS END;",
			err:  "invalid package body: source creates PACKAGE, not PACKAGE BODY",
		},
		{
			name: "empty",
			kind: KindProcedure,
			text: "CREATE PROCEDURE",
			err:  "invalid procedure: source is empty",
		},
		{
			name: "not a source kind",
			kind: KindTable,
			text: "T",
			err:  "TABLE has no source text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := NormalizeSource(tt.kind, tt.text)
			if tt.err != "" {
				assert.EqualError(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestSourceCompileActions(t *testing.T) {
	base := ObjectBase{Name: "PK", Schema: "S", Persisted: true}

	valid := &Source{ObjectBase: base, SourceKind: KindPackageBody, Text: "PK IS END;", State: database.StateValid}
	assert.Empty(t, valid.CompileActions())

	invalidBody := &Source{ObjectBase: base, SourceKind: KindPackageBody, Text: "PK IS END;", State: database.StateInvalid}
	actions := invalidBody.CompileActions()
	require.Len(t, actions, 1)
	assert.Equal(t, `ALTER PACKAGE "S"."PK" RECOMPILE BODY`, actions[0].SQL)
	assert.NotNil(t, actions[0].Validate)

	modified := &Source{ObjectBase: base, SourceKind: KindPackage, Text: "PK IS END;", State: database.StateInvalid, Modified: true}
	actions = modified.CompileActions()
	require.Len(t, actions, 1)
	assert.Equal(t, "CREATE OR REPLACE PACKAGE PK IS END;", actions[0].SQL)
}

func TestViewStatement(t *testing.T) {
	view := &View{ObjectBase: ObjectBase{Name: "V", Schema: "S"}, Definition: "SELECT 1 FROM DUAL"}
	assert.Equal(t, `CREATE VIEW "S"."V" AS SELECT 1 FROM DUAL`, ViewStatement(view, false, false))
	assert.Equal(t, `CREATE OR REPLACE VIEW "S"."V" AS SELECT 1 FROM DUAL`, ViewStatement(view, true, false))
	assert.Equal(t, `CREATE OR REPLACE FORCE VIEW "S"."V" AS SELECT 1 FROM DUAL`, ViewStatement(view, true, true))

	view.Definition = "CREATE VIEW OLD_NAME (A, B) AS SELECT X AS A, Y AS B FROM T"
	assert.Equal(t, `CREATE FORCE VIEW "S"."V" AS SELECT X AS A, Y AS B FROM T`, ViewStatement(view, false, true))
}

func TestAddPartitionToUnpartitionedTable(t *testing.T) {
	tests := []struct {
		typ      PartitionType
		expected string
	}{
		{typ: PartitionRange, expected: `ALTER TABLE "S"."T" ADD PARTITION "P1" VALUES LESS THAN(10)`},
		{typ: PartitionList, expected: `ALTER TABLE "S"."T" ADD PARTITION "P1" VALUES(10)`},
		{typ: PartitionHash},
		{typ: PartitionAutomatic},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			table := newTestTable(true)
			generator, _ := newTestGenerator(t, table)
			p := &Partition{ObjectBase: ObjectBase{Name: "P1", Schema: "S"}, Table: "T", Type: tt.typ, Key: []string{"ID"}, Value: "10", IntervalSpan: 1, IntervalUnit: "DAY"}

			actions, err := generator.Generate(Command{Kind: CommandCreate, Object: p})
			if tt.expected == "" {
				var unsupportedErr *UnsupportedOperationError
				assert.ErrorAs(t, err, &unsupportedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{tt.expected}, statements(actions))
		})
	}
}

func TestStrictPartitions(t *testing.T) {
	table := newTestTable(false)
	table.Partitions = []*Partition{
		{ObjectBase: ObjectBase{Name: "P1", Schema: "S"}, Table: "T", Type: PartitionRange, Key: []string{"ID"}, Value: "10"},
		{ObjectBase: ObjectBase{Name: "P2", Schema: "S"}, Table: "T", Type: PartitionList, Key: []string{"ID"}, Value: "20"},
	}
	catalog := NewCatalog(nil)
	require.NoError(t, catalog.Put(table))

	config := database.DefaultGeneratorConfig()
	config.StrictPartitions = true
	_, err := NewGenerator(config, catalog).Generate(Command{Kind: CommandCreate, Object: table})
	assert.ErrorIs(t, err, ErrMixedPartitions)

	config.StrictPartitions = false
	actions, err := NewGenerator(config, catalog).Generate(Command{Kind: CommandCreate, Object: table})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0].SQL, `PARTITION BY RANGE("ID") PARTITIONS("P1" VALUES LESS THAN(10),"P2" VALUES LESS THAN(20))`)
}

func TestAddPartitionFollowsFirstPartition(t *testing.T) {
	table := newTestTable(true)
	table.AddPartition(&Partition{ObjectBase: ObjectBase{Name: "P1"}, Type: PartitionList, Key: []string{"ID"}, Value: "1"})
	table.AddPartition(&Partition{ObjectBase: ObjectBase{Name: "P2"}, Value: "2"})
	table.AddPartition(&Partition{ObjectBase: ObjectBase{Name: "SP1"}, SubPartition: true, Type: PartitionHash, Key: []string{"ID"}})

	p2 := table.Partitions[1]
	assert.Equal(t, PartitionList, p2.Type)
	assert.Equal(t, []string{"ID"}, p2.Key)
	assert.Equal(t, "S", p2.Schema)
	assert.Equal(t, "T", p2.Table)
	assert.Len(t, table.PartitionLevel(false), 2)
	assert.Len(t, table.PartitionLevel(true), 1)
}

func TestJoinDeclarations(t *testing.T) {
	actual := joinDeclarations([]string{
		`"A" INT -- key`,
		`"B" VARCHAR(10)`,
	}, "\n")
	assert.Equal(t, "  \"A\" INT, -- key\n  \"B\" VARCHAR(10)", actual)
}
