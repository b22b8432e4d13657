package schema

import (
	"slices"

	"db-merge/internal/mergeerr"
)

// Order returns a creation order in which every referenced table precedes
// the tables referencing it. Among tables that are ready at the same time
// the alphabetically smallest goes first, so the result is stable across runs.
// A cycle fails with CircularDependencyError.
func (g *Graph) Order() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	var ready []string
	for _, t := range g.nodes {
		inDegree[t] = len(g.deps[t])
		if inDegree[t] == 0 {
			ready = append(ready, t) // g.nodes is sorted
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		t := ready[0]
		ready = ready[1:]
		order = append(order, t)

		for dep := range g.dependents[t] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				i, _ := slices.BinarySearch(ready, dep)
				ready = slices.Insert(ready, i, dep)
			}
		}
	}

	if len(order) == len(g.nodes) {
		return order, nil
	}

	var unresolved []string
	for _, t := range g.nodes {
		if inDegree[t] > 0 {
			unresolved = append(unresolved, t)
		}
	}
	return nil, &mergeerr.CircularDependencyError{
		Tables:     g.cycleMembers(unresolved),
		Unresolved: unresolved,
	}
}

// cycleMembers returns the unresolved tables that lie on a cycle, that is
// the members of every strongly connected component with more than one
// table. Tables that are only stuck behind or between cycles are left out.
// Components are found with Tarjan's algorithm over the unresolved subgraph.
func (g *Graph) cycleMembers(unresolved []string) []string {
	inSub := make(map[string]bool, len(unresolved))
	for _, t := range unresolved {
		inSub[t] = true
	}

	var (
		next    int
		index   = make(map[string]int, len(unresolved))
		low     = make(map[string]int, len(unresolved))
		onStack = make(map[string]bool, len(unresolved))
		stack   []string
		member  = make(map[string]bool)
	)

	var visit func(t string)
	visit = func(t string) {
		index[t], low[t] = next, next
		next++
		stack = append(stack, t)
		onStack[t] = true

		for _, r := range sortedKeys(g.deps[t]) {
			if !inSub[r] {
				continue
			}
			if _, seen := index[r]; !seen {
				visit(r)
				low[t] = min(low[t], low[r])
			} else if onStack[r] {
				low[t] = min(low[t], index[r])
			}
		}

		if low[t] != index[t] {
			return
		}
		var component []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == t {
				break
			}
		}
		if len(component) > 1 {
			for _, c := range component {
				member[c] = true
			}
		}
	}

	for _, t := range unresolved {
		if _, seen := index[t]; !seen {
			visit(t)
		}
	}

	out := make([]string, 0, len(member))
	for _, t := range unresolved {
		if member[t] {
			out = append(out, t)
		}
	}
	return out
}
