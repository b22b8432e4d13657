package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-merge/internal/mergeerr"
	"db-merge/internal/schema"
)

func buildSchema(name string, tables ...*schema.Table) *schema.Schema {
	s := &schema.Schema{Name: name, Tables: map[string]*schema.Table{}}
	for _, t := range tables {
		s.Tables[t.Name] = t
	}
	return s
}

func table(name string, cols ...string) *schema.Table {
	t := &schema.Table{Name: name}
	for i := 0; i+1 < len(cols); i += 2 {
		t.Columns = append(t.Columns, &schema.Column{Name: cols[i], DataType: cols[i+1]})
	}
	return t
}

func TestCompare_EqualSets(t *testing.T) {
	a := buildSchema("north", table("plot"), table("stand"), table("tree"))
	b := buildSchema("south", table("tree"), table("plot"), table("stand"))

	diff := schema.Compare(a, b, schema.CompareOptions{})

	assert.True(t, diff.Identical())
	assert.NoError(t, diff.Err())
	assert.Equal(t, []string{"plot", "stand", "tree"}, diff.Common)
	assert.Empty(t, diff.OnlyInSchema1)
	assert.Empty(t, diff.OnlyInSchema2)
}

func TestCompare_DifferentSets(t *testing.T) {
	a := buildSchema("north", table("plot"), table("stand"))
	b := buildSchema("south", table("plot"), table("stand"), table("tree"))

	diff := schema.Compare(a, b, schema.CompareOptions{})
	err := diff.Err()

	var mismatch *mergeerr.StructureMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{}, mismatch.OnlyInSchema1)
	assert.Equal(t, []string{"tree"}, mismatch.OnlyInSchema2)
	assert.Equal(t, []string{"plot", "stand"}, mismatch.Common)
}

func TestCompare_ColumnsOnlyWhenStrict(t *testing.T) {
	a := buildSchema("north", table("plot", "id", "integer", "area", "numeric"))
	b := buildSchema("south", table("plot", "id", "bigint", "owner", "text"))

	assert.True(t, schema.Compare(a, b, schema.CompareOptions{}).Identical())

	diff := schema.Compare(a, b, schema.CompareOptions{StrictColumns: true})
	assert.False(t, diff.Identical())
	assert.Equal(t, []mergeerr.ColumnMismatch{
		{Table: "plot", Column: "area", Schema1Type: "numeric"},
		{Table: "plot", Column: "id", Schema1Type: "integer", Schema2Type: "bigint"},
		{Table: "plot", Column: "owner", Schema2Type: "text"},
	}, diff.Columns)
}

func TestCompare_ExternalReference(t *testing.T) {
	tree := table("tree")
	tree.ForeignKeys = []*schema.ForeignKey{{Name: "tree_species_fkey", Table: "tree", RefSchema: "shared", RefTable: "species"}}
	a := buildSchema("north", tree)
	b := buildSchema("south", table("tree"))

	diff := schema.Compare(a, b, schema.CompareOptions{})

	assert.Equal(t, []string{"north.tree.tree_species_fkey -> shared.species"}, diff.ExternalReferences)
	kind, ok := mergeerr.KindOf(diff.Err())
	require.True(t, ok)
	assert.Equal(t, mergeerr.KindStructureMismatch, kind)
}
