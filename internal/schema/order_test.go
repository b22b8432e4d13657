package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-merge/internal/mergeerr"
	"db-merge/internal/schema"
)

// fk builds a single-column foreign key from table to ref on "id".
func fk(table, ref string) *schema.ForeignKey {
	return &schema.ForeignKey{
		Name:       table + "_" + ref + "_fkey",
		Table:      table,
		Columns:    []string{ref + "_id"},
		RefSchema:  "public",
		RefTable:   ref,
		RefColumns: []string{"id"},
	}
}

func mustGraph(t *testing.T, tables []string, fks ...*schema.ForeignKey) *schema.Graph {
	t.Helper()
	g, err := schema.BuildGraph(tables, fks)
	require.NoError(t, err)
	return g
}

func TestOrder_Simple(t *testing.T) {
	// Users -> Orders -> OrderItems
	g := mustGraph(t, []string{"OrderItems", "Orders", "Users"},
		fk("OrderItems", "Orders"),
		fk("Orders", "Users"),
	)

	order, err := g.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"Users", "Orders", "OrderItems"}, order)
}

func TestOrder_AlphabeticalTieBreak(t *testing.T) {
	// plot is referenced by both stand and tree; stand and tree are independent
	g := mustGraph(t, []string{"tree", "stand", "plot", "owner"},
		fk("tree", "plot"),
		fk("stand", "plot"),
	)

	first, err := g.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"owner", "plot", "stand", "tree"}, first)

	for i := 0; i < 20; i++ {
		again, err := g.Order()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestOrder_ReadyTableInsertedInSortedPosition(t *testing.T) {
	// b becomes ready after a, and must run before the already ready c
	g := mustGraph(t, []string{"a", "b", "c"}, fk("b", "a"))

	order, err := g.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestOrder_SelfReferenceIsNotACycle(t *testing.T) {
	g := mustGraph(t, []string{"category", "product"},
		fk("category", "category"),
		fk("product", "category"),
	)

	order, err := g.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"category", "product"}, order)
	assert.Equal(t, []string{"category"}, g.SelfReferencing())
	assert.Empty(t, g.DependsOn("category"))
}

func TestOrder_TwoTableCycle(t *testing.T) {
	g := mustGraph(t, []string{"A", "B", "C"},
		fk("A", "B"),
		fk("B", "A"),
	)

	_, err := g.Order()
	var cycle *mergeerr.CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"A", "B"}, cycle.Tables)
}

func TestOrder_ComplexCircular(t *testing.T) {
	// A -> B -> C -> D -> E -> A (cycle)
	// F -> E (downstream of the cycle)
	// G (independent)
	g := mustGraph(t, []string{"A", "B", "C", "D", "E", "F", "G"},
		fk("A", "B"),
		fk("B", "C"),
		fk("C", "D"),
		fk("D", "E"),
		fk("E", "A"),
		fk("F", "E"),
	)

	_, err := g.Order()
	var cycle *mergeerr.CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, cycle.Tables)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, cycle.Unresolved)

	kind, ok := mergeerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, mergeerr.KindCircularDependency, kind)
}

func TestOrder_TableBetweenTwoCycles(t *testing.T) {
	// a <-> b, d <-> e, and c bridges them (d -> c -> a) without being on either
	g := mustGraph(t, []string{"a", "b", "c", "d", "e"},
		fk("a", "b"),
		fk("b", "a"),
		fk("c", "a"),
		fk("d", "c"),
		fk("d", "e"),
		fk("e", "d"),
	)

	_, err := g.Order()
	var cycle *mergeerr.CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a", "b", "d", "e"}, cycle.Tables)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, cycle.Unresolved)
}

func TestBuildGraph_DeduplicatesAcrossSources(t *testing.T) {
	tables := []string{"plot", "tree"}
	north := []*schema.ForeignKey{fk("tree", "plot")}
	south := []*schema.ForeignKey{fk("tree", "plot"), {Name: "tree_plot2", Table: "tree", RefSchema: "public", RefTable: "plot"}}

	g, err := schema.BuildGraph(tables, north, south)
	require.NoError(t, err)
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []string{"plot"}, g.DependsOn("tree"))
	assert.Equal(t, []string{"tree"}, g.Dependents("plot"))
}

func TestBuildGraph_UnknownTable(t *testing.T) {
	_, err := schema.BuildGraph([]string{"tree"}, []*schema.ForeignKey{fk("tree", "plot")})

	var mismatch *mergeerr.StructureMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"tree.tree_plot_fkey -> public.plot"}, mismatch.ExternalReferences)
}
