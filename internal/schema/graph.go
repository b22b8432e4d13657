package schema

import (
	"fmt"
	"sort"

	"db-merge/internal/mergeerr"
)

// Graph is the creation dependency graph of a table set.
// An edge t -> r means t holds a foreign key to r, so r is created first.
type Graph struct {
	nodes      []string
	deps       map[string]map[string]bool
	dependents map[string]map[string]bool
	selfRefs   map[string]bool
}

// BuildGraph collects edges from one or more foreign key lists, typically one
// per source schema. Duplicate (table, referenced) pairs collapse to one edge
// and self-references are kept out of the ordering.
func BuildGraph(tables []string, fkLists ...[]*ForeignKey) (*Graph, error) {
	g := &Graph{
		deps:       make(map[string]map[string]bool, len(tables)),
		dependents: make(map[string]map[string]bool, len(tables)),
		selfRefs:   make(map[string]bool),
	}
	for _, t := range tables {
		if _, dup := g.deps[t]; dup {
			continue
		}
		g.nodes = append(g.nodes, t)
		g.deps[t] = make(map[string]bool)
		g.dependents[t] = make(map[string]bool)
	}
	sort.Strings(g.nodes)

	var outside []string
	for _, fks := range fkLists {
		for _, fk := range fks {
			_, okFrom := g.deps[fk.Table]
			_, okTo := g.deps[fk.RefTable]
			if !okFrom || !okTo {
				outside = append(outside, fmt.Sprintf("%s.%s -> %s.%s", fk.Table, fk.Name, fk.RefSchema, fk.RefTable))
				continue
			}
			if fk.Table == fk.RefTable {
				g.selfRefs[fk.Table] = true
				continue
			}
			g.deps[fk.Table][fk.RefTable] = true
			g.dependents[fk.RefTable][fk.Table] = true
		}
	}
	if len(outside) > 0 {
		sort.Strings(outside)
		return nil, &mergeerr.StructureMismatchError{ExternalReferences: outside}
	}
	return g, nil
}

// ForeignKeysOf flattens the foreign keys of every table in s.
func ForeignKeysOf(s *Schema) []*ForeignKey {
	var out []*ForeignKey
	for _, name := range s.TableNames() {
		out = append(out, s.Tables[name].ForeignKeys...)
	}
	return out
}

func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// DependsOn returns the tables t must be created after, sorted.
func (g *Graph) DependsOn(t string) []string {
	return sortedKeys(g.deps[t])
}

// Dependents returns the tables that reference t, sorted.
func (g *Graph) Dependents(t string) []string {
	return sortedKeys(g.dependents[t])
}

// SelfReferencing returns the tables holding a foreign key to themselves.
func (g *Graph) SelfReferencing() []string {
	return sortedKeys(g.selfRefs)
}

func (g *Graph) IsSelfReferencing(t string) bool {
	return g.selfRefs[t]
}

// EdgeCount counts distinct non-self edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, d := range g.deps {
		n += len(d)
	}
	return n
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
