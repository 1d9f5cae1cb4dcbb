package schema

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Loader re-reads an object from the server. A nil object means it is gone.
type Loader func(ctx context.Context, obj Object) (Object, error)

// Catalog is an in-memory Cache. Top-level objects are keyed by ref; columns,
// constraints, indexes and partitions live in their table's collections.
type Catalog struct {
	mu      sync.RWMutex
	objects map[ObjectRef]Object
	order   []ObjectRef
	loader  Loader
}

// NewCatalog returns an empty catalog; loader may be nil for offline use.
func NewCatalog(loader Loader) *Catalog {
	return &Catalog{
		objects: map[ObjectRef]Object{},
		loader:  loader,
	}
}

func isTableMember(obj Object) bool {
	switch obj.(type) {
	case *Column, *Constraint, *Index, *Partition:
		return true
	default:
		return false
	}
}

// Put adds or replaces an object. A table member replaces the member of the
// same name in its cached table.
func (c *Catalog) Put(obj Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.put(obj)
}

func (c *Catalog) put(obj Object) error {
	ref := RefOf(obj)
	if !isTableMember(obj) {
		if _, ok := c.objects[ref]; !ok {
			c.order = append(c.order, ref)
		}
		c.objects[ref] = obj
		return nil
	}

	table, ok := c.table(ref)
	if !ok {
		return fmt.Errorf("table of %s %s is not cached", obj.Kind(), ref)
	}
	switch obj := obj.(type) {
	case *Column:
		table.Columns = replaceMember(table.Columns, obj)
	case *Constraint:
		table.Constraints = replaceMember(table.Constraints, obj)
	case *Index:
		table.Indexes = replaceMember(table.Indexes, obj)
	case *Partition:
		if i := slices.IndexFunc(table.Partitions, func(p *Partition) bool { return p.Name == obj.Name }); i >= 0 {
			table.Partitions[i] = obj
		} else {
			table.AddPartition(obj)
		}
	}
	return nil
}

func replaceMember[T Object](members []T, obj T) []T {
	i := slices.IndexFunc(members, func(m T) bool { return m.Base().Name == obj.Base().Name })
	if i < 0 {
		return append(members, obj)
	}
	members[i] = obj
	return members
}

func (c *Catalog) table(ref ObjectRef) (*Table, bool) {
	tableRef, ok := ref.TableRef()
	if !ok {
		return nil, false
	}
	table, ok := c.objects[tableRef].(*Table)
	return table, ok
}

func (c *Catalog) Lookup(ref ObjectRef) (Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup(ref)
}

func (c *Catalog) lookup(ref ObjectRef) (Object, bool) {
	if obj, ok := c.objects[ref]; ok {
		return obj, true
	}
	table, ok := c.table(ref)
	if !ok {
		return nil, false
	}
	var members []Object
	switch ref.Kind {
	case KindColumn:
		members = asObjects(table.Columns)
	case KindConstraint:
		members = asObjects(table.Constraints)
	case KindIndex:
		members = asObjects(table.Indexes)
	case KindPartition:
		members = asObjects(table.Partitions)
	}
	for _, m := range members {
		if m.Base().Name == ref.Name {
			return m, true
		}
	}
	return nil, false
}

func asObjects[T Object](members []T) []Object {
	objs := make([]Object, len(members))
	for i, m := range members {
		objs[i] = m
	}
	return objs
}

// Evict removes the object; a table member is removed from its table.
func (c *Catalog) Evict(obj Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evict(obj)
}

func (c *Catalog) evict(obj Object) {
	ref := RefOf(obj)
	if !isTableMember(obj) {
		delete(c.objects, ref)
		c.order = slices.DeleteFunc(c.order, func(r ObjectRef) bool { return r == ref })
		return
	}
	table, ok := c.table(ref)
	if !ok {
		return
	}
	switch obj.(type) {
	case *Column:
		table.Columns = removeMember(table.Columns, ref.Name)
	case *Constraint:
		table.Constraints = removeMember(table.Constraints, ref.Name)
	case *Index:
		table.Indexes = removeMember(table.Indexes, ref.Name)
	case *Partition:
		table.Partitions = removeMember(table.Partitions, ref.Name)
	}
}

func removeMember[T Object](members []T, name string) []T {
	return slices.DeleteFunc(members, func(m T) bool { return m.Base().Name == name })
}

// Rename gives obj its new name and re-keys it. Members and triggers of a
// renamed table follow it, as does everything cached under a renamed schema.
// A rename onto a key that is already cached fails and changes nothing.
func (c *Catalog) Rename(obj Object, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := RefOf(obj)
	to := from
	to.Name = newName
	if from == to {
		return nil
	}
	if _, taken := c.lookup(to); taken {
		return fmt.Errorf("cannot rename %s %s: %s is already cached", obj.Kind(), from, to)
	}

	var follow func(ref ObjectRef) (ObjectRef, bool)
	switch obj.(type) {
	case *Table:
		follow = func(ref ObjectRef) (ObjectRef, bool) {
			if ref.Schema != from.Schema || ref.Parent != from.Name {
				return ref, false
			}
			ref.Parent = newName
			return ref, true
		}
	case *SchemaObject:
		follow = func(ref ObjectRef) (ObjectRef, bool) {
			if ref.Schema != from.Name {
				return ref, false
			}
			ref.Schema = newName
			return ref, true
		}
	}
	moved := map[ObjectRef]ObjectRef{}
	if follow != nil {
		for _, ref := range c.order {
			newRef, ok := follow(ref)
			if !ok {
				continue
			}
			if _, taken := c.objects[newRef]; taken {
				return fmt.Errorf("cannot rename %s %s: %s is already cached", obj.Kind(), from, newRef)
			}
			moved[ref] = newRef
		}
	}

	c.evict(obj)
	obj.Base().Name = newName
	if table, ok := obj.(*Table); ok {
		table.moveMembers()
	}
	for i, ref := range c.order {
		newRef, ok := moved[ref]
		if !ok {
			continue
		}
		o := c.objects[ref]
		delete(c.objects, ref)
		o.Base().Schema = newRef.Schema
		switch o := o.(type) {
		case *Table:
			o.moveMembers()
		case *Source:
			o.Table = newRef.Parent
		}
		c.objects[newRef] = o
		c.order[i] = newRef
	}
	return c.put(obj)
}

// Refresh replaces the cached object with the server's current version.
func (c *Catalog) Refresh(ctx context.Context, obj Object) error {
	if c.loader == nil {
		return nil
	}
	fresh, err := c.loader(ctx, obj)
	if err != nil {
		return fmt.Errorf("refresh %s %s: %w", obj.Kind(), RefOf(obj), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if fresh == nil {
		c.evict(obj)
		return nil
	}
	if RefOf(fresh) != RefOf(obj) {
		c.evict(obj)
	}
	return c.put(fresh)
}

// Objects returns the top-level objects in insertion order.
func (c *Catalog) Objects() []Object {
	c.mu.RLock()
	defer c.mu.RUnlock()
	objs := make([]Object, 0, len(c.order))
	for _, ref := range c.order {
		objs = append(objs, c.objects[ref])
	}
	return objs
}

// Sources returns the cached compiled objects.
func (c *Catalog) Sources() []*Source {
	var sources []*Source
	for _, obj := range c.Objects() {
		if source, ok := obj.(*Source); ok {
			sources = append(sources, source)
		}
	}
	return sources
}
