package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogMembers(t *testing.T) {
	catalog := NewCatalog(nil)
	table := newTestTable(true)
	require.NoError(t, catalog.Put(table))

	column := &Column{ObjectBase: ObjectBase{Name: "NAME", Schema: "S"}, Table: "T", DataType: "VARCHAR(10)"}
	require.NoError(t, catalog.Put(column))
	assert.Len(t, table.Columns, 2)

	replaced := &Column{ObjectBase: ObjectBase{Name: "NAME", Schema: "S"}, Table: "T", DataType: "VARCHAR(20)"}
	require.NoError(t, catalog.Put(replaced))
	require.Len(t, table.Columns, 2)
	assert.Same(t, replaced, table.Columns[1])

	obj, ok := catalog.Lookup(RefOf(replaced))
	require.True(t, ok)
	assert.Same(t, replaced, obj)

	catalog.Evict(replaced)
	assert.Len(t, table.Columns, 1)
	_, ok = catalog.Lookup(RefOf(replaced))
	assert.False(t, ok)

	orphan := &Index{ObjectBase: ObjectBase{Name: "I", Schema: "S"}, Table: "MISSING"}
	assert.EqualError(t, catalog.Put(orphan), `table of INDEX "S"."MISSING"."I" is not cached`)
}

func TestCatalogRefresh(t *testing.T) {
	ctx := context.Background()
	fresh := &View{ObjectBase: ObjectBase{Name: "V", Schema: "S", Persisted: true}, Definition: "SELECT 2 FROM DUAL"}
	gone := false
	catalog := NewCatalog(func(ctx context.Context, obj Object) (Object, error) {
		if gone {
			return nil, nil
		}
		return fresh, nil
	})

	stale := &View{ObjectBase: ObjectBase{Name: "V", Schema: "S", Persisted: true}, Definition: "SELECT 1 FROM DUAL"}
	require.NoError(t, catalog.Put(stale))
	require.NoError(t, catalog.Refresh(ctx, stale))
	obj, ok := catalog.Lookup(RefOf(stale))
	require.True(t, ok)
	assert.Same(t, fresh, obj)

	gone = true
	require.NoError(t, catalog.Refresh(ctx, fresh))
	_, ok = catalog.Lookup(RefOf(fresh))
	assert.False(t, ok)
	assert.Empty(t, catalog.Objects())
}

func TestCatalogRenameCollision(t *testing.T) {
	table := newTestTable(true)
	table.Columns = append(table.Columns, &Column{ObjectBase: ObjectBase{Name: "NAME", Schema: "S", Persisted: true}, Table: "T", DataType: "VARCHAR"})
	other := &Table{ObjectBase: ObjectBase{Name: "T2", Schema: "S", Persisted: true}}

	tests := []struct {
		name    string
		obj     func() Object
		newName string
		wantErr string
	}{
		{name: "table onto table", obj: func() Object { return table }, newName: "T2", wantErr: `cannot rename TABLE "S"."T": "S"."T2" is already cached`},
		{name: "column onto column", obj: func() Object { return table.Columns[0] }, newName: "NAME", wantErr: `cannot rename COLUMN "S"."T"."ID": "S"."T"."NAME" is already cached`},
		{name: "same name", obj: func() Object { return table }, newName: "T"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := NewCatalog(nil)
			require.NoError(t, catalog.Put(table))
			require.NoError(t, catalog.Put(other))

			obj := tt.obj()
			oldRef := RefOf(obj)
			err := catalog.Rename(obj, tt.newName)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			cached, ok := catalog.Lookup(oldRef)
			require.True(t, ok)
			assert.Same(t, obj, cached)
			assert.Len(t, catalog.Objects(), 2)
		})
	}
}

func TestCatalogRenameSchemaRekeysObjects(t *testing.T) {
	catalog := NewCatalog(nil)
	schemaObj := &SchemaObject{ObjectBase: ObjectBase{Name: "S", Persisted: true}}
	table := newTestTable(true)
	trigger := &Source{ObjectBase: ObjectBase{Name: "TRG", Schema: "S", Persisted: true}, SourceKind: KindTrigger, Table: "T"}
	elsewhere := &View{ObjectBase: ObjectBase{Name: "V", Schema: "OTHER", Persisted: true}, Definition: "SELECT 1 FROM DUAL"}
	for _, obj := range []Object{schemaObj, table, trigger, elsewhere} {
		require.NoError(t, catalog.Put(obj))
	}

	require.NoError(t, catalog.Rename(schemaObj, "S2"))

	for _, ref := range []ObjectRef{
		{Kind: KindSchema, Name: "S2"},
		{Kind: KindTable, Schema: "S2", Name: "T"},
		{Kind: KindColumn, Schema: "S2", Parent: "T", Name: "ID"},
		{Kind: KindTrigger, Schema: "S2", Parent: "T", Name: "TRG"},
		{Kind: KindView, Schema: "OTHER", Name: "V"},
	} {
		_, ok := catalog.Lookup(ref)
		assert.True(t, ok, ref.String())
	}
	for _, ref := range []ObjectRef{
		{Kind: KindSchema, Name: "S"},
		{Kind: KindTable, Schema: "S", Name: "T"},
		{Kind: KindTrigger, Schema: "S", Parent: "T", Name: "TRG"},
	} {
		_, ok := catalog.Lookup(ref)
		assert.False(t, ok, ref.String())
	}
	assert.Equal(t, "S2", table.Columns[0].Schema)
	assert.Len(t, catalog.Objects(), 4)

	require.NoError(t, catalog.Rename(table, "T3"))
	_, ok := catalog.Lookup(ObjectRef{Kind: KindTrigger, Schema: "S2", Parent: "T3", Name: "TRG"})
	assert.True(t, ok)
	assert.Equal(t, "T3", trigger.Table)
}

func TestCatalogRenameSchemaCollision(t *testing.T) {
	catalog := NewCatalog(nil)
	schemaObj := &SchemaObject{ObjectBase: ObjectBase{Name: "S", Persisted: true}}
	moving := &View{ObjectBase: ObjectBase{Name: "V", Schema: "S", Persisted: true}, Definition: "SELECT 1 FROM DUAL"}
	existing := &View{ObjectBase: ObjectBase{Name: "V", Schema: "S2", Persisted: true}, Definition: "SELECT 2 FROM DUAL"}
	for _, obj := range []Object{schemaObj, moving, existing} {
		require.NoError(t, catalog.Put(obj))
	}

	err := catalog.Rename(schemaObj, "S2")
	assert.EqualError(t, err, `cannot rename SCHEMA "S": "S2"."V" is already cached`)
	assert.Equal(t, "S", schemaObj.Name)
	assert.Equal(t, "S", moving.Schema)
	_, ok := catalog.Lookup(RefOf(schemaObj))
	assert.True(t, ok)
}

func TestCatalogSources(t *testing.T) {
	catalog := NewCatalog(nil)
	require.NoError(t, catalog.Put(newTestTable(true)))
	proc := &Source{ObjectBase: ObjectBase{Name: "P", Schema: "S"}, SourceKind: KindProcedure}
	body := &Source{ObjectBase: ObjectBase{Name: "PK", Schema: "S"}, SourceKind: KindPackageBody}
	require.NoError(t, catalog.Put(proc))
	require.NoError(t, catalog.Put(body))

	assert.Equal(t, []*Source{proc, body}, catalog.Sources())
	assert.Len(t, catalog.Objects(), 3)
}

func TestParseEditSession(t *testing.T) {
	session, err := ParseEditSession([]byte(`
objects:
  - kind: table
    name: T1
    persisted: true
    columns:
      - {name: ID, type: INT}
commands:
  - command: modify
    object: {kind: column, table: T1, name: ID, persisted: true, column: {type: BIGINT}}
    properties: {data_type: BIGINT}
  - command: create
    object: {kind: package_body, name: PK, source: "PK IS END;"}
`))
	require.NoError(t, err)

	commands, catalog, err := session.Build("APP", nil)
	require.NoError(t, err)
	require.Len(t, commands, 2)

	column, ok := commands[0].Object.(*Column)
	require.True(t, ok)
	assert.Equal(t, "APP", column.Schema)
	assert.Equal(t, "BIGINT", column.DataType)
	assert.True(t, commands[0].Properties.Has(PropDataType))

	obj, ok := catalog.Lookup(ObjectRef{Kind: KindTable, Schema: "APP", Name: "T1"})
	require.True(t, ok)
	assert.Same(t, column, obj.(*Table).Columns[0])

	source, ok := commands[1].Object.(*Source)
	require.True(t, ok)
	assert.Equal(t, KindPackageBody, source.SourceKind)
	assert.Equal(t, "create PACKAGE BODY \"APP\".\"PK\"", commands[1].String())
}

func TestParseEditSessionErrors(t *testing.T) {
	_, err := ParseEditSession([]byte("objects:\n  - kind: table\n    nmae: T1\n"))
	assert.Error(t, err)

	session, err := ParseEditSession([]byte("commands:\n  - command: modify\n    object: {kind: table, name: T1}\n    properties: {colour: red}\n"))
	require.NoError(t, err)
	_, _, err = session.Build("APP", nil)
	assert.ErrorIs(t, err, ErrUnknownProperty)
	assert.EqualError(t, err, `commands[0]: unknown property: "colour"`)

	session, err = ParseEditSession([]byte("commands:\n  - command: explode\n    object: {kind: table, name: T1}\n"))
	require.NoError(t, err)
	_, _, err = session.Build("APP", nil)
	assert.EqualError(t, err, `commands[0]: unknown command "explode"`)
}

func TestProperties(t *testing.T) {
	props, err := ParseProperties(map[string]any{
		"comment":  "c",
		"LOCKED":   "true",
		"roles":    []any{"R1", "R2"},
		"cache":    20,
		"NOT_NULL": true,
	})
	require.NoError(t, err)

	assert.Equal(t, []Property{PropComment, PropLocked, PropRoles, PropNotNull, PropCache}, props.Keys())
	assert.Equal(t, "c", props.Text(PropComment))
	assert.Equal(t, "20", props.Text(PropCache))
	assert.True(t, props.Bool(PropLocked))
	assert.True(t, props.Bool(PropNotNull))
	assert.False(t, props.Bool(PropOrder))
	assert.Equal(t, []string{"R1", "R2"}, props.Strings(PropRoles))
	assert.Nil(t, props.Strings(PropTarget))

	assert.True(t, Properties{PropComment: "x"}.Only(PropComment))
	assert.False(t, Properties{}.Only(PropComment))
	assert.False(t, Properties{PropComment: "x", PropOnline: true}.Only(PropComment))

	err = Properties{PropSource: "x"}.check(KindTable, PropComment)
	assert.EqualError(t, err, "unknown property: SOURCE is not a property of table")
}
