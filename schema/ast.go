package schema

import (
	"fmt"

	"github.com/xugu-publish/xugudef/database"
)

// Object is a cached catalog object. Generators read it, Complete updates it.
type Object interface {
	Kind() ObjectKind
	Base() *ObjectBase
}

type ObjectBase struct {
	Name      string
	Schema    string // empty for schemas, users and roles
	Comment   string
	Persisted bool
}

func (b *ObjectBase) Base() *ObjectBase {
	return b
}

// QualifiedName is the quoted "SCHEMA"."NAME" of the object.
func (b *ObjectBase) QualifiedName() string {
	return QualifiedName(b.Schema, b.Name)
}

// tableChild is implemented by objects that live inside a table.
type tableChild interface {
	Object
	ParentTable() string
}

// ObjectRef identifies a cached object. Parent is the owning table of
// columns, constraints, indexes, partitions and table triggers.
type ObjectRef struct {
	Kind   ObjectKind
	Schema string
	Parent string
	Name   string
}

func RefOf(obj Object) ObjectRef {
	base := obj.Base()
	ref := ObjectRef{Kind: obj.Kind(), Schema: base.Schema, Name: base.Name}
	if child, ok := obj.(tableChild); ok {
		ref.Parent = child.ParentTable()
	}
	return ref
}

func (r ObjectRef) String() string {
	return QualifiedName(r.Schema, r.Parent, r.Name)
}

// TableRef is the ref of the owning table, if any.
func (r ObjectRef) TableRef() (ObjectRef, bool) {
	if r.Parent == "" {
		return ObjectRef{}, false
	}
	return ObjectRef{Kind: KindTable, Schema: r.Schema, Name: r.Parent}, true
}

func (r ObjectRef) databaseRef() database.ObjectRef {
	return database.ObjectRef{Type: r.Kind.String(), Schema: r.Schema, Name: r.Name}
}

type Table struct {
	ObjectBase
	Tablespace  string
	Offline     bool
	Columns     []*Column
	Constraints []*Constraint
	Indexes     []*Index
	Partitions  []*Partition // sub-partitions included, flagged by SubPartition
}

func (t *Table) Kind() ObjectKind { return KindTable }

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// PartitionLevel returns either the top-level partitions or the sub-partitions.
func (t *Table) PartitionLevel(sub bool) []*Partition {
	var partitions []*Partition
	for _, p := range t.Partitions {
		if p.SubPartition == sub {
			partitions = append(partitions, p)
		}
	}
	return partitions
}

// AddPartition appends p, taking type and key from the first partition of
// the same level so that every partition of a table stays uniform.
func (t *Table) AddPartition(p *Partition) {
	if first := t.PartitionLevel(p.SubPartition); len(first) > 0 {
		p.Type = first[0].Type
		p.Key = append([]string(nil), first[0].Key...)
	}
	p.Schema = t.Schema
	p.Table = t.Name
	t.Partitions = append(t.Partitions, p)
}

// members returns the columns, constraints, indexes and partitions.
func (t *Table) members() []Object {
	members := asObjects(t.Columns)
	members = append(members, asObjects(t.Constraints)...)
	members = append(members, asObjects(t.Indexes)...)
	return append(members, asObjects(t.Partitions)...)
}

// setPersisted marks the table and everything declared inside it.
func (t *Table) setPersisted() {
	t.Persisted = true
	for _, m := range t.members() {
		m.Base().Persisted = true
	}
}

// moveMembers re-parents every member to the table's current schema and name.
func (t *Table) moveMembers() {
	for _, m := range t.members() {
		m.Base().Schema = t.Schema
		switch m := m.(type) {
		case *Column:
			m.Table = t.Name
		case *Constraint:
			m.Table = t.Name
		case *Index:
			m.Table = t.Name
		case *Partition:
			m.Table = t.Name
		}
	}
}

type Column struct {
	ObjectBase
	Table         string
	DataType      string
	NotNull       bool
	Default       string
	AutoIncrement bool
}

func (c *Column) Kind() ObjectKind    { return KindColumn }
func (c *Column) ParentTable() string { return c.Table }

type ConstraintType int

const (
	ConstraintPrimaryKey ConstraintType = iota
	ConstraintUnique
	ConstraintForeignKey
	ConstraintCheck
)

func (t ConstraintType) String() string {
	switch t {
	case ConstraintPrimaryKey:
		return "PRIMARY KEY"
	case ConstraintUnique:
		return "UNIQUE"
	case ConstraintForeignKey:
		return "FOREIGN KEY"
	case ConstraintCheck:
		return "CHECK"
	default:
		return fmt.Sprintf("ConstraintType(%d)", int(t))
	}
}

type Constraint struct {
	ObjectBase
	Table      string
	Type       ConstraintType
	Columns    []string
	RefSchema  string
	RefTable   string
	RefColumns []string
	OnDelete   string // CASCADE, SET NULL, ...
	Check      string
	Disabled   bool
}

func (c *Constraint) Kind() ObjectKind    { return KindConstraint }
func (c *Constraint) ParentTable() string { return c.Table }

type IndexColumn struct {
	Name       string
	Descending bool
}

type Index struct {
	ObjectBase
	Table   string
	Unique  bool
	Columns []IndexColumn
}

func (i *Index) Kind() ObjectKind    { return KindIndex }
func (i *Index) ParentTable() string { return i.Table }

type PartitionType int

const (
	PartitionRange PartitionType = iota
	PartitionList
	PartitionHash
	PartitionAutomatic
)

func (t PartitionType) String() string {
	switch t {
	case PartitionRange:
		return "RANGE"
	case PartitionList:
		return "LIST"
	case PartitionHash:
		return "HASH"
	case PartitionAutomatic:
		return "AUTOMATIC"
	default:
		return fmt.Sprintf("PartitionType(%d)", int(t))
	}
}

type Partition struct {
	ObjectBase
	Table        string
	Type         PartitionType
	Key          []string
	Value        string // bound of RANGE, value list of LIST
	IntervalSpan int    // AUTOMATIC only
	IntervalUnit string // YEAR, MONTH, DAY, HOUR
	Offline      bool
	SubPartition bool
}

func (p *Partition) Kind() ObjectKind    { return KindPartition }
func (p *Partition) ParentTable() string { return p.Table }

type Sequence struct {
	ObjectBase
	StartWith *int64
	Increment *int64
	MinValue  *int64
	MaxValue  *int64
	Cycle     bool
	Cache     int64 // 0 means NOCACHE
	Order     bool
}

func (s *Sequence) Kind() ObjectKind { return KindSequence }

type View struct {
	ObjectBase
	Definition string
	Force      bool
}

func (v *View) Kind() ObjectKind { return KindView }

type SchemaObject struct {
	ObjectBase
	Owner string
}

func (s *SchemaObject) Kind() ObjectKind { return KindSchema }

type Tablespace struct {
	ObjectBase
	DataFiles []string
}

func (t *Tablespace) Kind() ObjectKind { return KindTablespace }

type Synonym struct {
	ObjectBase
	Public       bool
	TargetSchema string
	TargetName   string
}

func (s *Synonym) Kind() ObjectKind { return KindSynonym }

// Source is a compiled object: procedure, function, package (body),
// type (body) or trigger.
type Source struct {
	ObjectBase
	SourceKind ObjectKind
	Text       string
	State      database.ObjectState
	Modified   bool   // text edited since it was last compiled
	Table      string // triggers only
	Disabled   bool   // triggers only
}

func (s *Source) Kind() ObjectKind    { return s.SourceKind }
func (s *Source) ParentTable() string { return s.Table }

func (s *Source) Ref() database.ObjectRef {
	return ObjectRef{Kind: s.SourceKind, Schema: s.Schema, Name: s.Name}.databaseRef()
}

func (s *Source) ObjectState() database.ObjectState {
	return s.State
}

// CompileActions returns the create-or-replace of a new or edited source, a
// recompile of an invalid one and nothing for a valid unchanged one.
func (s *Source) CompileActions() []database.PersistAction {
	if !s.Persisted || s.Modified {
		text, err := NormalizeSource(s.SourceKind, s.Text)
		if err != nil {
			text = s.Text
		}
		return []database.PersistAction{s.validated("Compile "+s.SourceKind.String(), text)}
	}
	if s.State == database.StateInvalid {
		return []database.PersistAction{s.validated("Recompile "+s.SourceKind.String(), recompileStatement(s))}
	}
	return nil
}

func (s *Source) validated(title string, sql string) database.PersistAction {
	action := database.NewAction(title, sql)
	ref := s.Ref()
	action.Validate = &ref
	return action
}

// AuthorityHolder is a user or a role.
type AuthorityHolder interface {
	Object
	HeldAuthorities() []Authority
	HeldRoles() []string
}

type User struct {
	ObjectBase
	Locked      bool
	Authorities []Authority
	Roles       []string
}

func (u *User) Kind() ObjectKind             { return KindUser }
func (u *User) HeldAuthorities() []Authority { return u.Authorities }
func (u *User) HeldRoles() []string          { return u.Roles }

type Role struct {
	ObjectBase
	Authorities []Authority
	Roles       []string
}

func (r *Role) Kind() ObjectKind             { return KindRole }
func (r *Role) HeldAuthorities() []Authority { return r.Authorities }
func (r *Role) HeldRoles() []string          { return r.Roles }
