package schema

import (
	"log/slog"
	"strconv"
)

// SortCommands orders commands so that a schema or table is created, modified
// or renamed before the commands on objects inside it, and deleted only after
// them. Unrelated commands keep their relative order. On a dependency cycle
// the input order is returned unchanged.
func SortCommands(commands []Command) []Command {
	type item struct {
		id  string
		cmd Command
	}
	items := make([]item, len(commands))
	for i, cmd := range commands {
		items[i] = item{id: strconv.Itoa(i), cmd: cmd}
	}

	dependencies := map[string][]string{}
	for _, child := range items {
		for _, parent := range items {
			if child.id == parent.id || !contains(parent.cmd, child.cmd) {
				continue
			}
			if parent.cmd.Kind == CommandDelete {
				if child.cmd.Kind == CommandDelete {
					dependencies[parent.id] = append(dependencies[parent.id], child.id)
				}
				continue
			}
			dependencies[child.id] = append(dependencies[child.id], parent.id)
		}
	}

	sorted, ok := topologicalSort(items, dependencies, func(it item) string { return it.id })
	if !ok {
		slog.Warn("Circular dependency between commands, keeping input order")
		return commands
	}
	result := make([]Command, len(sorted))
	for i, it := range sorted {
		result[i] = it.cmd
	}
	return result
}

// contains reports whether the object of parent holds the object of child:
// a schema holds everything qualified with its name, a table its members and
// triggers. A rename counts under both names.
func contains(parent Command, child Command) bool {
	names := []string{parent.Object.Base().Name}
	if parent.Kind == CommandRename {
		names = append(names, parent.NewName)
	}
	childRef := RefOf(child.Object)

	switch p := parent.Object.(type) {
	case *SchemaObject:
		for _, name := range names {
			if childRef.Schema == name {
				return true
			}
		}
	case *Table:
		for _, name := range names {
			if childRef.Parent == name && childRef.Schema == p.Schema {
				return true
			}
		}
	}
	return false
}
