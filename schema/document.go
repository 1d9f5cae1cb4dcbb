package schema

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/xugu-publish/xugudef/database"
)

// EditSession is the YAML form of a set of cached objects and the commands
// pending on them:
//
//	objects:
//	  - {kind: table, schema: SYSDBA, name: T1, persisted: true, columns: [{name: ID, type: INT}]}
//	commands:
//	  - command: modify
//	    object: {kind: column, schema: SYSDBA, table: T1, name: ID, column: {type: BIGINT}}
//	    properties: {DATA_TYPE: BIGINT}
type EditSession struct {
	Objects  []ObjectDocument  `yaml:"objects"`
	Commands []CommandDocument `yaml:"commands"`
}

type CommandDocument struct {
	Command    string         `yaml:"command"`
	Object     ObjectDocument `yaml:"object"`
	Properties map[string]any `yaml:"properties"`
	NewName    string         `yaml:"new_name"`
	Cascade    bool           `yaml:"cascade"`
}

type ObjectDocument struct {
	Kind      string `yaml:"kind"`
	Schema    string `yaml:"schema"`
	Name      string `yaml:"name"`
	Comment   string `yaml:"comment"`
	Persisted bool   `yaml:"persisted"`
	Table     string `yaml:"table"` // owning table of members and triggers

	// table
	Tablespace  string               `yaml:"tablespace"`
	Offline     bool                 `yaml:"offline"`
	Columns     []ColumnDocument     `yaml:"columns"`
	Constraints []ConstraintDocument `yaml:"constraints"`
	Indexes     []IndexDocument      `yaml:"indexes"`
	Partitions  []PartitionDocument  `yaml:"partitions"`

	// a single table member
	Column     *ColumnDocument     `yaml:"column"`
	Constraint *ConstraintDocument `yaml:"constraint"`
	Index      *IndexDocument      `yaml:"index"`
	Partition  *PartitionDocument  `yaml:"partition"`

	Sequence *SequenceDocument `yaml:"sequence"`

	// view
	Definition string `yaml:"definition"`
	Force      bool   `yaml:"force"`

	// source
	Source   string `yaml:"source"`
	State    string `yaml:"state"`
	Modified bool   `yaml:"modified"`
	Disabled bool   `yaml:"disabled"`

	Owner string `yaml:"owner"`

	// synonym
	Public       bool   `yaml:"public"`
	TargetSchema string `yaml:"target_schema"`
	TargetName   string `yaml:"target_name"`

	// user and role
	Locked      bool                `yaml:"locked"`
	Authorities []AuthorityDocument `yaml:"authorities"`
	Roles       []string            `yaml:"roles"`
}

type ColumnDocument struct {
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	NotNull       bool   `yaml:"not_null"`
	Default       string `yaml:"default"`
	AutoIncrement bool   `yaml:"auto_increment"`
	Comment       string `yaml:"comment"`
}

type ConstraintDocument struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"` // primary key, unique, foreign key, check
	Columns    []string `yaml:"columns"`
	RefSchema  string   `yaml:"ref_schema"`
	RefTable   string   `yaml:"ref_table"`
	RefColumns []string `yaml:"ref_columns"`
	OnDelete   string   `yaml:"on_delete"`
	Check      string   `yaml:"check"`
	Disabled   bool     `yaml:"disabled"`
}

type IndexDocument struct {
	Name    string   `yaml:"name"`
	Unique  bool     `yaml:"unique"`
	Columns []string `yaml:"columns"` // "NAME" or "NAME DESC"
}

type PartitionDocument struct {
	Name         string   `yaml:"name"`
	Type         string   `yaml:"type"` // range, list, hash, automatic
	Key          []string `yaml:"key"`
	Value        string   `yaml:"value"`
	IntervalSpan int      `yaml:"interval_span"`
	IntervalUnit string   `yaml:"interval_unit"`
	Offline      bool     `yaml:"offline"`
	Sub          bool     `yaml:"sub"`
}

type SequenceDocument struct {
	StartWith *int64 `yaml:"start_with"`
	Increment *int64 `yaml:"increment"`
	MinValue  *int64 `yaml:"min_value"`
	MaxValue  *int64 `yaml:"max_value"`
	Cycle     bool   `yaml:"cycle"`
	Cache     int64  `yaml:"cache"`
	Order     bool   `yaml:"order"`
}

type AuthorityDocument struct {
	Scope        string `yaml:"scope"` // database, object, sub_object
	Name         string `yaml:"name"`
	TargetSchema string `yaml:"target_schema"`
	TargetObject string `yaml:"target_object"`
	SubTarget    string `yaml:"sub_target"`
}

func ReadEditSession(file string) (*EditSession, error) {
	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	session, err := ParseEditSession(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return session, nil
}

// ParseEditSession decodes a session document; unknown fields are an error.
func ParseEditSession(buf []byte) (*EditSession, error) {
	var session EditSession
	dec := yaml.NewDecoder(bytes.NewReader(buf), yaml.DisallowUnknownField())
	if err := dec.Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Build loads the objects into a new catalog and resolves the commands. A
// command object replaces the cached object of the same ref. defaultSchema
// fills in objects that name none.
func (s *EditSession) Build(defaultSchema string, loader Loader) ([]Command, *Catalog, error) {
	catalog := NewCatalog(loader)
	for i, doc := range s.Objects {
		obj, err := doc.toObject(defaultSchema)
		if err != nil {
			return nil, nil, fmt.Errorf("objects[%d]: %w", i, err)
		}
		if err := catalog.Put(obj); err != nil {
			return nil, nil, fmt.Errorf("objects[%d]: %w", i, err)
		}
	}

	var commands []Command
	for i, doc := range s.Commands {
		cmd, err := doc.toCommand(defaultSchema)
		if err != nil {
			return nil, nil, fmt.Errorf("commands[%d]: %w", i, err)
		}
		if err := catalog.Put(cmd.Object); err != nil {
			return nil, nil, fmt.Errorf("commands[%d]: %w", i, err)
		}
		commands = append(commands, cmd)
	}
	return commands, catalog, nil
}

func (d CommandDocument) toCommand(defaultSchema string) (Command, error) {
	kind, err := ParseCommandKind(d.Command)
	if err != nil {
		return Command{}, err
	}
	obj, err := d.Object.toObject(defaultSchema)
	if err != nil {
		return Command{}, err
	}
	props, err := ParseProperties(d.Properties)
	if err != nil {
		return Command{}, err
	}
	return Command{
		Kind:       kind,
		Object:     obj,
		Properties: props,
		NewName:    d.NewName,
		Options:    Options{Cascade: d.Cascade},
	}, nil
}

func (d ObjectDocument) toObject(defaultSchema string) (Object, error) {
	kind, err := ParseObjectKind(d.Kind)
	if err != nil {
		return nil, err
	}
	base := ObjectBase{Name: d.Name, Schema: d.Schema, Comment: d.Comment, Persisted: d.Persisted}
	switch kind {
	case KindSchema, KindUser, KindRole, KindTablespace:
		base.Schema = ""
	default:
		if base.Schema == "" {
			base.Schema = defaultSchema
		}
	}

	switch kind {
	case KindTable:
		table := &Table{ObjectBase: base, Tablespace: d.Tablespace, Offline: d.Offline}
		for _, c := range d.Columns {
			table.Columns = append(table.Columns, c.toColumn(base, table.Name))
		}
		for _, c := range d.Constraints {
			constraint, err := c.toConstraint(base, table.Name)
			if err != nil {
				return nil, err
			}
			table.Constraints = append(table.Constraints, constraint)
		}
		for _, i := range d.Indexes {
			table.Indexes = append(table.Indexes, i.toIndex(base, table.Name))
		}
		for _, p := range d.Partitions {
			partition, err := p.toPartition(base)
			if err != nil {
				return nil, err
			}
			table.AddPartition(partition)
		}
		return table, nil
	case KindColumn:
		spec := derefOr(d.Column)
		spec.Name, spec.Comment = d.Name, d.Comment
		column := spec.toColumn(base, d.Table)
		column.Persisted = d.Persisted
		return column, nil
	case KindConstraint:
		spec := derefOr(d.Constraint)
		spec.Name = d.Name
		constraint, err := spec.toConstraint(base, d.Table)
		if err != nil {
			return nil, err
		}
		constraint.Persisted = d.Persisted
		return constraint, nil
	case KindIndex:
		spec := derefOr(d.Index)
		spec.Name = d.Name
		index := spec.toIndex(base, d.Table)
		index.Persisted = d.Persisted
		return index, nil
	case KindPartition:
		spec := derefOr(d.Partition)
		spec.Name = d.Name
		partition, err := spec.toPartition(base)
		if err != nil {
			return nil, err
		}
		partition.Table = d.Table
		partition.Persisted = d.Persisted
		return partition, nil
	case KindSequence:
		spec := derefOr(d.Sequence)
		return &Sequence{
			ObjectBase: base,
			StartWith:  spec.StartWith,
			Increment:  spec.Increment,
			MinValue:   spec.MinValue,
			MaxValue:   spec.MaxValue,
			Cycle:      spec.Cycle,
			Cache:      spec.Cache,
			Order:      spec.Order,
		}, nil
	case KindView:
		return &View{ObjectBase: base, Definition: d.Definition, Force: d.Force}, nil
	case KindSchema:
		return &SchemaObject{ObjectBase: base, Owner: d.Owner}, nil
	case KindTablespace:
		return &Tablespace{ObjectBase: base}, nil
	case KindSynonym:
		return &Synonym{ObjectBase: base, Public: d.Public, TargetSchema: d.TargetSchema, TargetName: d.TargetName}, nil
	case KindUser:
		authorities, err := toAuthorities(d.Authorities, d.Name)
		if err != nil {
			return nil, err
		}
		return &User{ObjectBase: base, Locked: d.Locked, Authorities: authorities, Roles: d.Roles}, nil
	case KindRole:
		authorities, err := toAuthorities(d.Authorities, d.Name)
		if err != nil {
			return nil, err
		}
		return &Role{ObjectBase: base, Authorities: authorities, Roles: d.Roles}, nil
	default:
		state, err := parseObjectState(d.State)
		if err != nil {
			return nil, err
		}
		return &Source{
			ObjectBase: base,
			SourceKind: kind,
			Text:       d.Source,
			State:      state,
			Modified:   d.Modified,
			Table:      d.Table,
			Disabled:   d.Disabled,
		}, nil
	}
}

func derefOr[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (c ColumnDocument) toColumn(table ObjectBase, tableName string) *Column {
	return &Column{
		ObjectBase:    ObjectBase{Name: c.Name, Schema: table.Schema, Comment: c.Comment, Persisted: table.Persisted},
		Table:         tableName,
		DataType:      c.Type,
		NotNull:       c.NotNull,
		Default:       c.Default,
		AutoIncrement: c.AutoIncrement,
	}
}

func (c ConstraintDocument) toConstraint(table ObjectBase, tableName string) (*Constraint, error) {
	var typ ConstraintType
	switch strings.ToUpper(strings.ReplaceAll(c.Type, "_", " ")) {
	case "PRIMARY KEY":
		typ = ConstraintPrimaryKey
	case "UNIQUE":
		typ = ConstraintUnique
	case "FOREIGN KEY":
		typ = ConstraintForeignKey
	case "CHECK":
		typ = ConstraintCheck
	default:
		return nil, fmt.Errorf("unknown constraint type %q", c.Type)
	}
	return &Constraint{
		ObjectBase: ObjectBase{Name: c.Name, Schema: table.Schema, Persisted: table.Persisted},
		Table:      tableName,
		Type:       typ,
		Columns:    c.Columns,
		RefSchema:  c.RefSchema,
		RefTable:   c.RefTable,
		RefColumns: c.RefColumns,
		OnDelete:   c.OnDelete,
		Check:      c.Check,
		Disabled:   c.Disabled,
	}, nil
}

func (i IndexDocument) toIndex(table ObjectBase, tableName string) *Index {
	return &Index{
		ObjectBase: ObjectBase{Name: i.Name, Schema: table.Schema, Persisted: table.Persisted},
		Table:      tableName,
		Unique:     i.Unique,
		Columns:    ParseIndexColumns(i.Columns),
	}
}

// ParseIndexColumns reads "NAME [ASC|DESC]" key entries.
func ParseIndexColumns(keys []string) []IndexColumn {
	var columns []IndexColumn
	for _, key := range keys {
		name, order, _ := strings.Cut(strings.TrimSpace(key), " ")
		if name == "" {
			continue
		}
		columns = append(columns, IndexColumn{
			Name:       name,
			Descending: strings.EqualFold(strings.TrimSpace(order), "DESC"),
		})
	}
	return columns
}

// ParsePartitionType reads a partitioning keyword; an empty one is RANGE.
func ParsePartitionType(name string) (PartitionType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "RANGE", "":
		return PartitionRange, nil
	case "LIST":
		return PartitionList, nil
	case "HASH":
		return PartitionHash, nil
	case "AUTOMATIC":
		return PartitionAutomatic, nil
	default:
		return 0, fmt.Errorf("unknown partition type %q", name)
	}
}

func (p PartitionDocument) toPartition(table ObjectBase) (*Partition, error) {
	typ, err := ParsePartitionType(p.Type)
	if err != nil {
		return nil, err
	}
	return &Partition{
		ObjectBase:   ObjectBase{Name: p.Name, Schema: table.Schema, Persisted: table.Persisted},
		Type:         typ,
		Key:          p.Key,
		Value:        p.Value,
		IntervalSpan: p.IntervalSpan,
		IntervalUnit: p.IntervalUnit,
		Offline:      p.Offline,
		SubPartition: p.Sub,
	}, nil
}

func toAuthorities(docs []AuthorityDocument, holder string) ([]Authority, error) {
	var authorities []Authority
	for _, d := range docs {
		var scope AuthorityScope
		switch strings.ToLower(strings.ReplaceAll(d.Scope, "-", "_")) {
		case "database", "":
			scope = ScopeDatabase
		case "object":
			scope = ScopeObject
		case "sub_object":
			scope = ScopeSubObject
		default:
			return nil, fmt.Errorf("unknown authority scope %q", d.Scope)
		}
		authority := Authority{Scope: scope, Name: d.Name, SubTarget: d.SubTarget, Holder: holder}
		if d.TargetObject != "" {
			authority.Target = QualifiedName(d.TargetSchema, d.TargetObject)
		}
		authorities = append(authorities, authority)
	}
	return authorities, nil
}

func parseObjectState(state string) (database.ObjectState, error) {
	switch strings.ToUpper(state) {
	case "", "UNKNOWN":
		return database.StateUnknown, nil
	case "VALID":
		return database.StateValid, nil
	case "INVALID":
		return database.StateInvalid, nil
	default:
		return 0, fmt.Errorf("unknown object state %q", state)
	}
}
