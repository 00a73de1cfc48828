package ddl

import (
	"sort"

	"github.com/faucetdb/sketch/internal/model"
)

// order holds tables in dependency order: referenced tables first.
type order struct {
	Keys []string
	// Cyclic lists the tables that could not be ordered because they sit on
	// or behind a reference cycle. They are appended to Keys in key order.
	Cyclic []string
}

// sortTables orders the non-view tables of snap with Kahn's algorithm. Ties
// are broken by key so the output is deterministic. Self references and
// references that do not resolve to a table in the set are ignored.
func sortTables(snap model.Snapshot) order {
	var tables []string
	inSet := make(map[string]bool)
	for _, key := range snap.Keys() {
		if snap[key].IsView {
			continue
		}
		tables = append(tables, key)
		inSet[key] = true
	}

	inDegree := make(map[string]int, len(tables))
	children := make(map[string][]string)
	for _, key := range tables {
		seen := make(map[string]bool)
		for _, col := range snap[key].Columns {
			parent, ok := resolveFK(snap, col.FK)
			if !ok || parent == key || !inSet[parent] || seen[parent] {
				continue
			}
			seen[parent] = true
			children[parent] = append(children[parent], key)
			inDegree[key]++
		}
	}

	var ready []string
	for _, key := range tables {
		if inDegree[key] == 0 {
			ready = append(ready, key)
		}
	}

	var out order
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		out.Keys = append(out.Keys, node)

		for _, child := range children[node] {
			inDegree[child]--
			if inDegree[child] == 0 {
				ready = append(ready, child)
			}
		}
		sort.Strings(ready)
	}

	if len(out.Keys) < len(tables) {
		for _, key := range tables {
			if inDegree[key] > 0 {
				out.Cyclic = append(out.Cyclic, key)
			}
		}
		out.Keys = append(out.Keys, out.Cyclic...)
	}
	return out
}

// resolveFK maps a column's foreign key string to the key of the table it
// references.
func resolveFK(snap model.Snapshot, fk string) (string, bool) {
	if fk == "" {
		return "", false
	}
	ref, ok := model.ParseRef(fk)
	if !ok {
		return "", false
	}
	return snap.Resolve(ref)
}
