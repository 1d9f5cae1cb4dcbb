package xugu

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xugu-publish/xugudef/schema"
)

var constraintTypes = map[string]schema.ConstraintType{
	"P": schema.ConstraintPrimaryKey,
	"U": schema.ConstraintUnique,
	"F": schema.ConstraintForeignKey,
	"C": schema.ConstraintCheck,
}

// splitList splits a comma separated catalog column.
func splitList(list string) []string {
	var items []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func (d *XuguDatabase) queryRows(ctx context.Context, query string, args []any, scan func(rows *sql.Rows) error) error {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

type tableRow struct {
	id        int64
	comment   sql.NullString
	partiType sql.NullString
	partiKey  sql.NullString
	subType   sql.NullString
	subKey    sql.NullString
}

// loadTable reads a table with its columns, constraints, indexes and
// partitions. Tablespace, online state and partition intervals are not in the
// dictionary views and are kept from cached.
func (d *XuguDatabase) loadTable(ctx context.Context, cached *schema.Table) (*schema.Table, error) {
	const tableQuery = `SELECT t.TABLE_ID, t.COMMENTS, t.PARTI_TYPE, t.PARTI_KEY, t.SUBPARTI_TYPE, t.SUBPARTI_KEY
FROM ALL_TABLES t JOIN ALL_SCHEMAS s ON t.SCHEMA_ID = s.SCHEMA_ID
WHERE s.SCHEMA_NAME = ? AND t.TABLE_NAME = ?`
	var row tableRow
	err := d.db.QueryRowContext(ctx, tableQuery, cached.Schema, cached.Name).
		Scan(&row.id, &row.comment, &row.partiType, &row.partiKey, &row.subType, &row.subKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", schema.RefOf(cached), err)
	}

	table := &schema.Table{
		ObjectBase: schema.ObjectBase{Name: cached.Name, Schema: cached.Schema, Comment: row.comment.String, Persisted: true},
		Tablespace: cached.Tablespace,
		Offline:    cached.Offline,
	}
	member := func(name string) schema.ObjectBase {
		return schema.ObjectBase{Name: name, Schema: table.Schema, Persisted: true}
	}

	const columnQuery = `SELECT COL_NAME, TYPE_NAME, NOT_NULL, DEF_VAL, IS_SERIAL, COMMENTS FROM ALL_COLUMNS WHERE TABLE_ID = ? ORDER BY COL_NO`
	err = d.queryRows(ctx, columnQuery, []any{row.id}, func(rows *sql.Rows) error {
		var name, typ string
		var notNull, serial bool
		var def, comment sql.NullString
		if err := rows.Scan(&name, &typ, &notNull, &def, &serial, &comment); err != nil {
			return err
		}
		base := member(name)
		base.Comment = comment.String
		table.Columns = append(table.Columns, &schema.Column{
			ObjectBase:    base,
			Table:         table.Name,
			DataType:      typ,
			NotNull:       notNull,
			Default:       def.String,
			AutoIncrement: serial,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", schema.RefOf(table), err)
	}

	const constraintQuery = `SELECT CONS_NAME, CONS_TYPE, DEFINE, REF_SCHEMA, REF_TABLE, REF_COLUMNS, ON_DELETE, ENABLE FROM ALL_CONSTRAINTS WHERE TABLE_ID = ? ORDER BY CONS_NAME`
	err = d.queryRows(ctx, constraintQuery, []any{row.id}, func(rows *sql.Rows) error {
		var name, typ, define string
		var refSchema, refTable, refColumns, onDelete sql.NullString
		var enabled bool
		if err := rows.Scan(&name, &typ, &define, &refSchema, &refTable, &refColumns, &onDelete, &enabled); err != nil {
			return err
		}
		consType, ok := constraintTypes[strings.ToUpper(typ)]
		if !ok {
			return fmt.Errorf("unknown constraint type %q of %s", typ, name)
		}
		constraint := &schema.Constraint{
			ObjectBase: member(name),
			Table:      table.Name,
			Type:       consType,
			RefSchema:  refSchema.String,
			RefTable:   refTable.String,
			RefColumns: splitList(refColumns.String),
			OnDelete:   onDelete.String,
			Disabled:   !enabled,
		}
		if consType == schema.ConstraintCheck {
			constraint.Check = define
		} else {
			constraint.Columns = splitList(define)
		}
		table.Constraints = append(table.Constraints, constraint)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query constraints of %s: %w", schema.RefOf(table), err)
	}

	const indexQuery = `SELECT INDEX_NAME, IS_UNIQUE, KEYS, COMMENTS FROM ALL_INDEXES WHERE TABLE_ID = ? ORDER BY INDEX_NAME`
	err = d.queryRows(ctx, indexQuery, []any{row.id}, func(rows *sql.Rows) error {
		var name, keys string
		var unique bool
		var comment sql.NullString
		if err := rows.Scan(&name, &unique, &keys, &comment); err != nil {
			return err
		}
		base := member(name)
		base.Comment = comment.String
		table.Indexes = append(table.Indexes, &schema.Index{
			ObjectBase: base,
			Table:      table.Name,
			Unique:     unique,
			Columns:    schema.ParseIndexColumns(splitList(keys)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes of %s: %w", schema.RefOf(table), err)
	}

	if err := d.loadPartitions(ctx, table, cached, row); err != nil {
		return nil, fmt.Errorf("failed to query partitions of %s: %w", schema.RefOf(table), err)
	}
	return table, nil
}

func (d *XuguDatabase) loadPartitions(ctx context.Context, table *schema.Table, cached *schema.Table, row tableRow) error {
	if !row.partiType.Valid {
		return nil
	}
	levels := [2]struct {
		typ schema.PartitionType
		key []string
	}{}
	var err error
	if levels[0].typ, err = schema.ParsePartitionType(row.partiType.String); err != nil {
		return err
	}
	levels[0].key = splitList(row.partiKey.String)
	if row.subType.Valid {
		if levels[1].typ, err = schema.ParsePartitionType(row.subType.String); err != nil {
			return err
		}
		levels[1].key = splitList(row.subKey.String)
	}

	intervals := map[string]*schema.Partition{}
	for _, p := range cached.Partitions {
		intervals[p.Name] = p
	}

	const partitionQuery = `SELECT PARTI_NAME, PARTI_VAL, ONLINE, IS_SUB FROM ALL_PARTIS WHERE TABLE_ID = ? ORDER BY IS_SUB, PARTI_NO`
	return d.queryRows(ctx, partitionQuery, []any{row.id}, func(rows *sql.Rows) error {
		var name string
		var value sql.NullString
		var online, sub bool
		if err := rows.Scan(&name, &value, &online, &sub); err != nil {
			return err
		}
		level := levels[0]
		if sub {
			level = levels[1]
		}
		p := &schema.Partition{
			ObjectBase:   schema.ObjectBase{Name: name, Persisted: true},
			Type:         level.typ,
			Key:          level.key,
			Value:        value.String,
			Offline:      !online,
			SubPartition: sub,
		}
		if old, ok := intervals[name]; ok {
			p.IntervalSpan, p.IntervalUnit = old.IntervalSpan, old.IntervalUnit
		}
		table.AddPartition(p)
		return nil
	})
}

// loadMember reloads the owning table and returns the member's fresh copy.
func (d *XuguDatabase) loadMember(ctx context.Context, obj schema.Object) (schema.Object, error) {
	ref := schema.RefOf(obj)
	tableRef, ok := ref.TableRef()
	if !ok {
		return nil, fmt.Errorf("owning table of %s %s is not set", obj.Kind(), ref)
	}
	cached := &schema.Table{ObjectBase: schema.ObjectBase{Name: tableRef.Name, Schema: tableRef.Schema}}
	if p, ok := obj.(*schema.Partition); ok {
		cached.Partitions = []*schema.Partition{p}
	}
	table, err := d.loadTable(ctx, cached)
	if err != nil || table == nil {
		return nil, err
	}

	var members []schema.Object
	switch obj.(type) {
	case *schema.Column:
		members = asObjects(table.Columns)
	case *schema.Constraint:
		members = asObjects(table.Constraints)
	case *schema.Index:
		members = asObjects(table.Indexes)
	case *schema.Partition:
		members = asObjects(table.Partitions)
	}
	for _, m := range members {
		if m.Base().Name == ref.Name {
			return m, nil
		}
	}
	return nil, nil
}

func asObjects[T schema.Object](members []T) []schema.Object {
	objs := make([]schema.Object, len(members))
	for i, m := range members {
		objs[i] = m
	}
	return objs
}

// loadSequence reads the sequence parameters. START WITH is only meaningful
// on create and is kept from cached.
func (d *XuguDatabase) loadSequence(ctx context.Context, cached *schema.Sequence) (schema.Object, error) {
	const query = `SELECT q.MIN_VAL, q.MAX_VAL, q.STEP_VAL, q.CACHE_VAL, q.IS_CYCLE, q.IS_ORDER, q.COMMENTS
FROM ALL_SEQUENCES q JOIN ALL_SCHEMAS s ON q.SCHEMA_ID = s.SCHEMA_ID
WHERE s.SCHEMA_NAME = ? AND q.SEQ_NAME = ?`
	var minValue, maxValue, step, cache sql.NullInt64
	var cycle, order bool
	var comment sql.NullString
	err := d.db.QueryRowContext(ctx, query, cached.Schema, cached.Name).
		Scan(&minValue, &maxValue, &step, &cache, &cycle, &order, &comment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sequence %s: %w", schema.RefOf(cached), err)
	}
	return &schema.Sequence{
		ObjectBase: schema.ObjectBase{Name: cached.Name, Schema: cached.Schema, Comment: comment.String, Persisted: true},
		StartWith:  cached.StartWith,
		Increment:  nullInt(step),
		MinValue:   nullInt(minValue),
		MaxValue:   nullInt(maxValue),
		Cycle:      cycle,
		Cache:      cache.Int64,
		Order:      order,
	}, nil
}

func (d *XuguDatabase) loadView(ctx context.Context, cached *schema.View) (schema.Object, error) {
	const query = `SELECT v.DEFINE, v.COMMENTS
FROM ALL_VIEWS v JOIN ALL_SCHEMAS s ON v.SCHEMA_ID = s.SCHEMA_ID
WHERE s.SCHEMA_NAME = ? AND v.VIEW_NAME = ?`
	var definition, comment sql.NullString
	err := d.db.QueryRowContext(ctx, query, cached.Schema, cached.Name).Scan(&definition, &comment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query view %s: %w", schema.RefOf(cached), err)
	}
	return &schema.View{
		ObjectBase: schema.ObjectBase{Name: cached.Name, Schema: cached.Schema, Comment: comment.String, Persisted: true},
		Definition: strings.TrimSpace(definition.String),
		Force:      cached.Force,
	}, nil
}

func (d *XuguDatabase) loadSynonym(ctx context.Context, cached *schema.Synonym) (schema.Object, error) {
	const query = `SELECT y.IS_PUBLIC, y.TARG_SCHEMA, y.TARG_NAME
FROM ALL_SYNONYMS y JOIN ALL_SCHEMAS s ON y.SCHEMA_ID = s.SCHEMA_ID
WHERE s.SCHEMA_NAME = ? AND y.SYNO_NAME = ?`
	var public bool
	var targetSchema, targetName sql.NullString
	err := d.db.QueryRowContext(ctx, query, cached.Schema, cached.Name).Scan(&public, &targetSchema, &targetName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query synonym %s: %w", schema.RefOf(cached), err)
	}
	return &schema.Synonym{
		ObjectBase:   schema.ObjectBase{Name: cached.Name, Schema: cached.Schema, Comment: cached.Comment, Persisted: true},
		Public:       public,
		TargetSchema: targetSchema.String,
		TargetName:   targetName.String,
	}, nil
}

func (d *XuguDatabase) loadSchema(ctx context.Context, cached *schema.SchemaObject) (schema.Object, error) {
	var comment sql.NullString
	err := d.db.QueryRowContext(ctx, `SELECT COMMENTS FROM ALL_SCHEMAS WHERE SCHEMA_NAME = ?`, cached.Name).Scan(&comment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query schema %s: %w", schema.RefOf(cached), err)
	}
	return &schema.SchemaObject{
		ObjectBase: schema.ObjectBase{Name: cached.Name, Comment: comment.String, Persisted: true},
		Owner:      cached.Owner,
	}, nil
}
