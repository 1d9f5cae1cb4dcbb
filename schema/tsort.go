package schema

// topologicalSort orders items so that each one comes after its dependencies,
// using a depth-first search with three-color marking. Items without
// dependencies between them keep their input order. ok is false when a cycle
// is found.
func topologicalSort[T any](items []T, dependencies map[string][]string, getID func(T) string) (sorted []T, ok bool) {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(items))
	byID := make(map[string]T, len(items))
	for _, item := range items {
		byID[getID(item)] = item
	}

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			return false
		case visited:
			return true
		}
		state[id] = visiting
		for _, dep := range dependencies[id] {
			if _, known := byID[dep]; known && !visit(dep) {
				return false
			}
		}
		state[id] = visited
		sorted = append(sorted, byID[id])
		return true
	}

	for _, item := range items {
		if !visit(getID(item)) {
			return nil, false
		}
	}
	return sorted, true
}
