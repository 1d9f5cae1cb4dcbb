package xugu

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/xugu-publish/xugudef/database"
	"github.com/xugu-publish/xugudef/parser"
	"github.com/xugu-publish/xugudef/schema"
)

// fakeCatalog creates the system views the catalog queries read, backed by
// plain sqlite tables.
const fakeCatalog = `
CREATE TABLE ALL_SCHEMAS (SCHEMA_ID INT, SCHEMA_NAME TEXT, COMMENTS TEXT);
CREATE TABLE ALL_TABLES (TABLE_ID INT, SCHEMA_ID INT, TABLE_NAME TEXT, COMMENTS TEXT, PARTI_TYPE TEXT, PARTI_KEY TEXT, SUBPARTI_TYPE TEXT, SUBPARTI_KEY TEXT);
CREATE TABLE ALL_COLUMNS (TABLE_ID INT, COL_NO INT, COL_NAME TEXT, TYPE_NAME TEXT, NOT_NULL BOOLEAN, DEF_VAL TEXT, IS_SERIAL BOOLEAN, COMMENTS TEXT);
CREATE TABLE ALL_CONSTRAINTS (TABLE_ID INT, CONS_NAME TEXT, CONS_TYPE TEXT, DEFINE TEXT, REF_SCHEMA TEXT, REF_TABLE TEXT, REF_COLUMNS TEXT, ON_DELETE TEXT, ENABLE BOOLEAN);
CREATE TABLE ALL_INDEXES (TABLE_ID INT, INDEX_NAME TEXT, IS_UNIQUE BOOLEAN, KEYS TEXT, COMMENTS TEXT);
CREATE TABLE ALL_PARTIS (TABLE_ID INT, PARTI_NO INT, PARTI_NAME TEXT, PARTI_VAL TEXT, ONLINE BOOLEAN, IS_SUB BOOLEAN);
CREATE TABLE ALL_SEQUENCES (SCHEMA_ID INT, SEQ_NAME TEXT, MIN_VAL INT, MAX_VAL INT, STEP_VAL INT, CACHE_VAL INT, IS_CYCLE BOOLEAN, IS_ORDER BOOLEAN, COMMENTS TEXT);
CREATE TABLE ALL_VIEWS (SCHEMA_ID INT, VIEW_NAME TEXT, VALID BOOLEAN, DEFINE TEXT, COMMENTS TEXT);
CREATE TABLE ALL_SYNONYMS (SCHEMA_ID INT, SYNO_NAME TEXT, IS_PUBLIC BOOLEAN, TARG_SCHEMA TEXT, TARG_NAME TEXT);
CREATE TABLE ALL_PROCEDURES (SCHEMA_ID INT, PROC_NAME TEXT, VALID BOOLEAN);
CREATE TABLE ALL_PACKAGES (SCHEMA_ID INT, PACK_NAME TEXT, VALID BOOLEAN);
CREATE TABLE ALL_ERRORS (SCHEMA_NAME TEXT, OBJ_NAME TEXT, OBJ_TYPE TEXT, SEQUENCE INT, LINE INT, POSITION INT, TEXT TEXT);
CREATE TABLE ALL_USERS (USER_NAME TEXT);
CREATE TABLE ALL_AUTHORITIES (GRANTEE TEXT, AUTH_SCOPE INT, AUTH_NAME TEXT, TARGET_SCHEMA TEXT, TARGET_NAME TEXT, SUB_TARGET TEXT);
CREATE TABLE ALL_ROLE_MEMBERS (MEMBER_NAME TEXT, ROLE_NAME TEXT);

INSERT INTO ALL_SCHEMAS VALUES (1, 'APP', 'application');
INSERT INTO ALL_TABLES VALUES (10, 1, 'ORDERS', 'order header', 'RANGE', 'ID', NULL, NULL);
INSERT INTO ALL_TABLES VALUES (11, 1, 'CUSTOMERS', NULL, NULL, NULL, NULL, NULL);
INSERT INTO ALL_COLUMNS VALUES (10, 1, 'ID', 'INTEGER', 1, NULL, 1, 'order id');
INSERT INTO ALL_COLUMNS VALUES (10, 2, 'CUSTOMER_ID', 'INTEGER', 0, NULL, 0, NULL);
INSERT INTO ALL_COLUMNS VALUES (10, 3, 'STATUS', 'SMALLINT', 1, '0', 0, NULL);
INSERT INTO ALL_COLUMNS VALUES (11, 1, 'ID', 'INTEGER', 1, NULL, 0, NULL);
INSERT INTO ALL_CONSTRAINTS VALUES (10, 'PK_ORDERS', 'P', 'ID', NULL, NULL, NULL, NULL, 1);
INSERT INTO ALL_CONSTRAINTS VALUES (10, 'FK_CUSTOMER', 'F', 'CUSTOMER_ID', 'APP', 'CUSTOMERS', 'ID', 'CASCADE', 1);
INSERT INTO ALL_CONSTRAINTS VALUES (10, 'CK_CUSTOMER', 'C', 'CUSTOMER_ID > 0', NULL, NULL, NULL, NULL, 0);
INSERT INTO ALL_INDEXES VALUES (10, 'IDX_STATUS', 0, 'STATUS, ID DESC', 'status lookup');
INSERT INTO ALL_PARTIS VALUES (10, 2, 'P2', 'MAXVALUE', 0, 0);
INSERT INTO ALL_PARTIS VALUES (10, 1, 'P1', '1000', 1, 0);
INSERT INTO ALL_SEQUENCES VALUES (1, 'SEQ_ORDERS', 1, 999999, 2, 20, 0, 1, 'order ids');
INSERT INTO ALL_VIEWS VALUES (1, 'V_ORDERS', 1, ' SELECT * FROM ORDERS ', 'open orders');
INSERT INTO ALL_SYNONYMS VALUES (1, 'SYN_ORDERS', 0, 'APP', 'ORDERS');
INSERT INTO ALL_PROCEDURES VALUES (1, 'P_GOOD', 1);
INSERT INTO ALL_PROCEDURES VALUES (1, 'P_BAD', 0);
INSERT INTO ALL_PACKAGES VALUES (1, 'PK', 0);
INSERT INTO ALL_ERRORS VALUES ('APP', 'P_BAD', 'PROCEDURE', 2, 4, 9, 'missing semicolon ');
INSERT INTO ALL_ERRORS VALUES ('APP', 'P_BAD', 'PROCEDURE', 1, 3, 1, 'undeclared variable X');
INSERT INTO ALL_USERS VALUES ('U1');
INSERT INTO ALL_USERS VALUES ('U2');
INSERT INTO ALL_USERS VALUES ('R1');
INSERT INTO ALL_AUTHORITIES VALUES ('U1', 0, 'CREATE TABLE', NULL, NULL, NULL);
INSERT INTO ALL_AUTHORITIES VALUES ('U1', 1, 'SELECT', 'APP', 'ORDERS', NULL);
INSERT INTO ALL_AUTHORITIES VALUES ('U1', 2, 'UPDATE列', 'APP', 'ORDERS', 'ID');
INSERT INTO ALL_ROLE_MEMBERS VALUES ('U1', 'R1');
`

func newTestDatabase(t *testing.T) *XuguDatabase {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range parser.SplitScript(fakeCatalog) {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return newDatabase(database.Config{User: "app", LoadConcurrency: 2}, db)
}

func TestXuguBuildDSN(t *testing.T) {
	dsn := xuguBuildDSN(database.Config{Host: "10.0.0.1", DbName: "SYSTEM", User: "SYSDBA", Password: "secret"})
	assert.Equal(t, "IP=10.0.0.1;DB=SYSTEM;User=SYSDBA;PWD=secret;Port=5138;AUTO_COMMIT=on;CHAR_SET=UTF8", dsn)

	dsn = xuguBuildDSN(database.Config{Host: "db", DbName: "D", User: "U", Password: "P", Port: 15138})
	assert.Contains(t, dsn, ";Port=15138;")
}

func TestNewDatabase(t *testing.T) {
	_, err := NewDatabase(database.Config{DriverName: "missing-driver"})
	assert.ErrorIs(t, err, ErrDriverNotRegistered)
	assert.EqualError(t, err, `database/sql driver is not registered: "missing-driver"`)

	db, err := NewDatabase(database.Config{DriverName: "sqlite", User: "app"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	assert.Equal(t, "APP", db.GetDefaultSchema())
}

func TestGetDefaultSchema(t *testing.T) {
	assert.Equal(t, "APP", newTestDatabase(t).GetDefaultSchema())
}

func TestObjectState(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	tests := []struct {
		ref      database.ObjectRef
		expected database.ObjectState
	}{
		{ref: database.ObjectRef{Type: "PROCEDURE", Schema: "APP", Name: "P_GOOD"}, expected: database.StateValid},
		{ref: database.ObjectRef{Type: "PROCEDURE", Schema: "APP", Name: "P_BAD"}, expected: database.StateInvalid},
		{ref: database.ObjectRef{Type: "PACKAGE BODY", Schema: "APP", Name: "PK"}, expected: database.StateInvalid},
		{ref: database.ObjectRef{Type: "FUNCTION", Schema: "APP", Name: "MISSING"}, expected: database.StateUnknown},
		{ref: database.ObjectRef{Type: "TABLE", Schema: "APP", Name: "ORDERS"}, expected: database.StateValid},
	}
	for _, tt := range tests {
		t.Run(tt.ref.String(), func(t *testing.T) {
			state, err := d.ObjectState(ctx, d.DB(), tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, state)
		})
	}

	_, err := d.ObjectState(ctx, d.DB(), database.ObjectRef{Type: "COLUMN", Schema: "APP", Name: "ID"})
	assert.EqualError(t, err, "COLUMN objects have no state")
}

func TestObjectStates(t *testing.T) {
	d := newTestDatabase(t)
	states, err := d.ObjectStates(context.Background(), []database.ObjectRef{
		{Type: "PROCEDURE", Schema: "APP", Name: "P_BAD"},
		{Type: "PROCEDURE", Schema: "APP", Name: "P_GOOD"},
	})
	require.NoError(t, err)
	assert.Equal(t, []database.ObjectState{database.StateInvalid, database.StateValid}, states)
}

func TestLogObjectErrors(t *testing.T) {
	d := newTestDatabase(t)
	errs, err := d.LogObjectErrors(context.Background(), d.DB(), database.ObjectRef{Type: "PROCEDURE", Schema: "APP", Name: "P_BAD"})
	require.NoError(t, err)
	assert.Equal(t, []database.CompileError{
		{Line: 3, Position: 1, Message: "undeclared variable X"},
		{Line: 4, Position: 9, Message: "missing semicolon"},
	}, errs)

	errs, err = d.LogObjectErrors(context.Background(), d.DB(), database.ObjectRef{Type: "PROCEDURE", Schema: "APP", Name: "P_GOOD"})
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestLoadAuthorities(t *testing.T) {
	d := newTestDatabase(t)
	authorities, roles, err := d.LoadAuthorities(context.Background(), []string{"U1", "U2"})
	require.NoError(t, err)

	assert.Equal(t, []schema.Authority{
		{Scope: schema.ScopeDatabase, Name: "CREATE TABLE", Holder: "U1"},
		{Scope: schema.ScopeObject, Name: "SELECT", Target: `"APP"."ORDERS"`, Holder: "U1"},
		{Scope: schema.ScopeSubObject, Name: "UPDATE列", Target: `"APP"."ORDERS"`, SubTarget: "ID", Holder: "U1"},
	}, authorities["U1"])
	assert.Equal(t, []string{"R1"}, roles["U1"])
	assert.Empty(t, authorities["U2"])
	assert.Empty(t, roles["U2"])
}

func persisted(name string, comment string) schema.ObjectBase {
	return schema.ObjectBase{Name: name, Schema: "APP", Comment: comment, Persisted: true}
}

func TestLoadTable(t *testing.T) {
	d := newTestDatabase(t)
	cached := &schema.Table{ObjectBase: schema.ObjectBase{Name: "ORDERS", Schema: "APP"}, Tablespace: "TS_ORDERS"}
	cached.Columns = []*schema.Column{{ObjectBase: schema.ObjectBase{Name: "ID", Schema: "APP"}, Table: "ORDERS", DataType: "BIGINT"}}

	obj, err := d.Load(context.Background(), cached)
	require.NoError(t, err)

	expected := &schema.Table{ObjectBase: persisted("ORDERS", "order header"), Tablespace: "TS_ORDERS"}
	expected.Columns = []*schema.Column{
		{ObjectBase: persisted("ID", "order id"), Table: "ORDERS", DataType: "INTEGER", NotNull: true, AutoIncrement: true},
		{ObjectBase: persisted("CUSTOMER_ID", ""), Table: "ORDERS", DataType: "INTEGER"},
		{ObjectBase: persisted("STATUS", ""), Table: "ORDERS", DataType: "SMALLINT", NotNull: true, Default: "0"},
	}
	expected.Constraints = []*schema.Constraint{
		{ObjectBase: persisted("CK_CUSTOMER", ""), Table: "ORDERS", Type: schema.ConstraintCheck, Check: "CUSTOMER_ID > 0", Disabled: true},
		{ObjectBase: persisted("FK_CUSTOMER", ""), Table: "ORDERS", Type: schema.ConstraintForeignKey, Columns: []string{"CUSTOMER_ID"},
			RefSchema: "APP", RefTable: "CUSTOMERS", RefColumns: []string{"ID"}, OnDelete: "CASCADE"},
		{ObjectBase: persisted("PK_ORDERS", ""), Table: "ORDERS", Type: schema.ConstraintPrimaryKey, Columns: []string{"ID"}},
	}
	expected.Indexes = []*schema.Index{
		{ObjectBase: persisted("IDX_STATUS", "status lookup"), Table: "ORDERS", Columns: []schema.IndexColumn{{Name: "STATUS"}, {Name: "ID", Descending: true}}},
	}
	expected.Partitions = []*schema.Partition{
		{ObjectBase: persisted("P1", ""), Table: "ORDERS", Type: schema.PartitionRange, Key: []string{"ID"}, Value: "1000"},
		{ObjectBase: persisted("P2", ""), Table: "ORDERS", Type: schema.PartitionRange, Key: []string{"ID"}, Value: "MAXVALUE", Offline: true},
	}
	assert.Equal(t, expected, obj)
	assert.Equal(t, "BIGINT", cached.Columns[0].DataType)
}

func TestLoad(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	start := int64(5)

	tests := []struct {
		name     string
		obj      schema.Object
		expected schema.Object
	}{
		{
			name:     "missing table",
			obj:      &schema.Table{ObjectBase: schema.ObjectBase{Name: "GONE", Schema: "APP"}},
			expected: nil,
		},
		{
			name:     "column",
			obj:      &schema.Column{ObjectBase: schema.ObjectBase{Name: "STATUS", Schema: "APP"}, Table: "ORDERS", DataType: "INT"},
			expected: &schema.Column{ObjectBase: persisted("STATUS", ""), Table: "ORDERS", DataType: "SMALLINT", NotNull: true, Default: "0"},
		},
		{
			name:     "index",
			obj:      &schema.Index{ObjectBase: schema.ObjectBase{Name: "IDX_STATUS", Schema: "APP"}, Table: "ORDERS"},
			expected: &schema.Index{ObjectBase: persisted("IDX_STATUS", "status lookup"), Table: "ORDERS", Columns: []schema.IndexColumn{{Name: "STATUS"}, {Name: "ID", Descending: true}}},
		},
		{
			name:     "partition keeps its interval",
			obj:      &schema.Partition{ObjectBase: schema.ObjectBase{Name: "P1", Schema: "APP"}, Table: "ORDERS", IntervalSpan: 1, IntervalUnit: "MONTH"},
			expected: &schema.Partition{ObjectBase: persisted("P1", ""), Table: "ORDERS", Type: schema.PartitionRange, Key: []string{"ID"}, Value: "1000", IntervalSpan: 1, IntervalUnit: "MONTH"},
		},
		{
			name:     "dropped constraint",
			obj:      &schema.Constraint{ObjectBase: schema.ObjectBase{Name: "UK_GONE", Schema: "APP"}, Table: "ORDERS"},
			expected: nil,
		},
		{
			name:     "member of missing table",
			obj:      &schema.Column{ObjectBase: schema.ObjectBase{Name: "ID", Schema: "APP"}, Table: "GONE"},
			expected: nil,
		},
		{
			name: "sequence",
			obj:  &schema.Sequence{ObjectBase: schema.ObjectBase{Name: "SEQ_ORDERS", Schema: "APP"}, StartWith: &start},
			expected: &schema.Sequence{ObjectBase: persisted("SEQ_ORDERS", "order ids"), StartWith: &start,
				Increment: int64Ptr(2), MinValue: int64Ptr(1), MaxValue: int64Ptr(999999), Cache: 20, Order: true},
		},
		{
			name:     "view",
			obj:      &schema.View{ObjectBase: schema.ObjectBase{Name: "V_ORDERS", Schema: "APP"}, Definition: "SELECT 1 FROM DUAL", Force: true},
			expected: &schema.View{ObjectBase: persisted("V_ORDERS", "open orders"), Definition: "SELECT * FROM ORDERS", Force: true},
		},
		{
			name:     "synonym",
			obj:      &schema.Synonym{ObjectBase: schema.ObjectBase{Name: "SYN_ORDERS", Schema: "APP"}},
			expected: &schema.Synonym{ObjectBase: persisted("SYN_ORDERS", ""), TargetSchema: "APP", TargetName: "ORDERS"},
		},
		{
			name:     "schema",
			obj:      &schema.SchemaObject{ObjectBase: schema.ObjectBase{Name: "APP"}, Owner: "U1"},
			expected: &schema.SchemaObject{ObjectBase: schema.ObjectBase{Name: "APP", Comment: "application", Persisted: true}, Owner: "U1"},
		},
		{
			name:     "missing schema",
			obj:      &schema.SchemaObject{ObjectBase: schema.ObjectBase{Name: "NOPE"}},
			expected: nil,
		},
		{
			name:     "missing role",
			obj:      &schema.Role{ObjectBase: schema.ObjectBase{Name: "NOBODY"}},
			expected: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := d.Load(ctx, tt.obj)
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Nil(t, obj)
				return
			}
			assert.Equal(t, tt.expected, obj)
		})
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestLoadUpdatesInPlace(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	source := &schema.Source{ObjectBase: schema.ObjectBase{Name: "P_BAD", Schema: "APP", Persisted: true}, SourceKind: schema.KindProcedure}
	obj, err := d.Load(ctx, source)
	require.NoError(t, err)
	assert.Same(t, source, obj)
	assert.Equal(t, database.StateInvalid, source.State)

	user := &schema.User{ObjectBase: schema.ObjectBase{Name: "U1", Persisted: true}}
	obj, err = d.Load(ctx, user)
	require.NoError(t, err)
	assert.Same(t, user, obj)
	assert.Len(t, user.Authorities, 3)
	assert.Equal(t, []string{"R1"}, user.Roles)
}

func TestLoadSourceStates(t *testing.T) {
	d := newTestDatabase(t)
	persisted := &schema.Source{ObjectBase: schema.ObjectBase{Name: "P_BAD", Schema: "APP", Persisted: true}, SourceKind: schema.KindProcedure}
	fresh := &schema.Source{ObjectBase: schema.ObjectBase{Name: "P_NEW", Schema: "APP"}, SourceKind: schema.KindProcedure}

	require.NoError(t, d.LoadSourceStates(context.Background(), []*schema.Source{persisted, fresh}))
	assert.Equal(t, database.StateInvalid, persisted.State)
	assert.Equal(t, database.StateUnknown, fresh.State)
}

func TestCatalogRefreshThroughLoader(t *testing.T) {
	d := newTestDatabase(t)
	catalog := schema.NewCatalog(d.Load)
	view := &schema.View{ObjectBase: schema.ObjectBase{Name: "V_ORDERS", Schema: "APP"}, Definition: "SELECT * FROM ORDERS"}
	require.NoError(t, catalog.Put(view))

	generator := schema.NewGenerator(database.DefaultGeneratorConfig(), catalog)
	require.NoError(t, generator.Complete(context.Background(), schema.Command{Kind: schema.CommandCreate, Object: view}))
	obj, ok := catalog.Lookup(schema.RefOf(view))
	require.True(t, ok)
	assert.True(t, obj.Base().Persisted)
	assert.Equal(t, "open orders", obj.Base().Comment)

	_, err := d.DB().Exec(`DELETE FROM ALL_VIEWS`)
	require.NoError(t, err)
	require.NoError(t, catalog.Refresh(context.Background(), view))
	_, ok = catalog.Lookup(schema.RefOf(view))
	assert.False(t, ok)
}

func TestCatalogRefreshReadsServerChanges(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	catalog := schema.NewCatalog(d.Load)
	generator := schema.NewGenerator(database.DefaultGeneratorConfig(), catalog)

	table := &schema.Table{ObjectBase: schema.ObjectBase{Name: "ORDERS", Schema: "APP", Persisted: true}}
	table.Columns = []*schema.Column{{ObjectBase: schema.ObjectBase{Name: "ID", Schema: "APP", Persisted: true}, Table: "ORDERS", DataType: "INTEGER"}}
	require.NoError(t, catalog.Put(table))
	column := table.Columns[0]

	_, err := d.DB().Exec(`UPDATE ALL_COLUMNS SET TYPE_NAME = 'BIGINT', COMMENTS = 'widened' WHERE TABLE_ID = 10 AND COL_NAME = 'ID'`)
	require.NoError(t, err)
	column.DataType = "BIGINT"
	require.NoError(t, generator.Complete(ctx, schema.Command{Kind: schema.CommandModify, Object: column, Properties: schema.Properties{schema.PropDataType: "BIGINT"}}))

	obj, ok := catalog.Lookup(schema.RefOf(column))
	require.True(t, ok)
	refreshed := obj.(*schema.Column)
	assert.NotSame(t, column, refreshed)
	assert.Equal(t, "BIGINT", refreshed.DataType)
	assert.Equal(t, "widened", refreshed.Comment)

	_, err = d.DB().Exec(`UPDATE ALL_SEQUENCES SET STEP_VAL = 10, IS_CYCLE = 1 WHERE SEQ_NAME = 'SEQ_ORDERS'`)
	require.NoError(t, err)
	seq := &schema.Sequence{ObjectBase: schema.ObjectBase{Name: "SEQ_ORDERS", Schema: "APP"}, Increment: int64Ptr(2)}
	require.NoError(t, catalog.Put(seq))
	require.NoError(t, catalog.Refresh(ctx, seq))
	obj, ok = catalog.Lookup(schema.RefOf(seq))
	require.True(t, ok)
	assert.Equal(t, int64Ptr(10), obj.(*schema.Sequence).Increment)
	assert.True(t, obj.(*schema.Sequence).Cycle)

	require.NoError(t, catalog.Refresh(ctx, table))
	obj, ok = catalog.Lookup(schema.RefOf(table))
	require.True(t, ok)
	fresh := obj.(*schema.Table)
	assert.Len(t, fresh.Columns, 3)
	assert.Len(t, fresh.Partitions, 2)
	assert.Equal(t, "BIGINT", fresh.Columns[0].DataType)
}
