package engine_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-merge/internal/dialect"
	"db-merge/internal/engine"
	"db-merge/internal/schema"
)

func strp(s string) *string { return &s }

// forestSchema: plot <- tree, tree.parent_id -> tree.
func forestSchema(name string) *schema.Schema {
	plot := &schema.Table{
		Name: "plot",
		Columns: []*schema.Column{
			{Name: "id", DataType: "integer", IsAutoInc: true, Default: strp("nextval('" + name + ".plot_id_seq'::regclass)")},
			{Name: "name", DataType: "character varying(40)", IsNullable: true},
		},
		PrimaryKeyName: "plot_pkey",
		PrimaryKey:     []string{"id"},
		Uniques:        []*schema.UniqueConstraint{{Name: "plot_name_key", Columns: []string{"name"}}},
	}
	tree := &schema.Table{
		Name: "tree",
		Columns: []*schema.Column{
			{Name: "id", DataType: "integer"},
			{Name: "plot_id", DataType: "integer"},
			{Name: "parent_id", DataType: "integer", IsNullable: true},
			{Name: "height_cm", DataType: "integer", Default: strp("0")},
			{Name: "height_m", DataType: "numeric", IsNullable: true, IsGenerated: true, Default: strp("(height_cm / 100)")},
		},
		PrimaryKeyName: "tree_pkey",
		PrimaryKey:     []string{"id"},
		ForeignKeys: []*schema.ForeignKey{
			{Name: "tree_parent_fkey", Table: "tree", Columns: []string{"parent_id"}, RefSchema: name, RefTable: "tree", RefColumns: []string{"id"}, OnUpdate: "NO ACTION", OnDelete: "SET NULL"},
			{Name: "tree_plot_fkey", Table: "tree", Columns: []string{"plot_id"}, RefSchema: name, RefTable: "plot", RefColumns: []string{"id"}, OnUpdate: "NO ACTION", OnDelete: "CASCADE"},
		},
		Checks:  []*schema.CheckConstraint{{Name: "tree_height_check", Definition: "CHECK ((height_cm >= 0))"}},
		Indexes: []*schema.Index{{Name: "tree_plot_idx", Columns: []string{"plot_id"}}},
	}
	return &schema.Schema{Name: name, Tables: map[string]*schema.Table{"plot": plot, "tree": tree}}
}

func TestSynthesize(t *testing.T) {
	d := &dialect.PostgresDialect{}
	src := forestSchema("north")

	plan := engine.Synthesize(d, src, "merged", []string{"plot", "tree"}, nil, true)

	require.Len(t, plan.Setup, 3)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "merged"`, plan.Setup[0].SQL)

	plot := plan.Setup[1].SQL
	assert.Contains(t, plot, `CREATE TABLE IF NOT EXISTS "merged"."plot"`)
	assert.Contains(t, plot, `"id" integer GENERATED BY DEFAULT AS IDENTITY`)
	assert.NotContains(t, plot, "nextval", "source sequence must not leak into target")
	assert.Contains(t, plot, `CONSTRAINT "plot_name_key" UNIQUE ("name")`)

	tree := plan.Setup[2].SQL
	assert.Contains(t, tree, `CONSTRAINT "tree_plot_fkey" FOREIGN KEY ("plot_id") REFERENCES "merged"."plot" ("id") ON DELETE CASCADE`)
	assert.Contains(t, tree, `"height_m" numeric GENERATED ALWAYS AS ((height_cm / 100)) STORED`)
	assert.Contains(t, tree, `CONSTRAINT "tree_height_check" CHECK ((height_cm >= 0))`)
	assert.NotContains(t, tree, "tree_parent_fkey")

	require.Len(t, plan.Deferred, 1)
	assert.Equal(t,
		`ALTER TABLE "merged"."tree" ADD CONSTRAINT "tree_parent_fkey" FOREIGN KEY ("parent_id") REFERENCES "merged"."tree" ("id") ON DELETE SET NULL`,
		plan.Deferred[0].SQL)
	assert.Equal(t, []string{"tree"}, plan.SelfReferencing)

	require.Len(t, plan.Indexes, 1)
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "tree_plot_idx" ON "merged"."tree" ("plot_id")`, plan.Indexes[0].SQL)
}

func TestSynthesizeExistingTarget(t *testing.T) {
	d := &dialect.PostgresDialect{}
	existing := forestSchema("merged")

	plan := engine.Synthesize(d, forestSchema("north"), "merged", []string{"plot", "tree"}, existing, false)

	assert.Equal(t, []string{"plot", "tree"}, plan.Existing)
	assert.Empty(t, plan.Deferred, "constraint already present on the target")
	for _, st := range plan.Setup {
		assert.NotContains(t, st.SQL, "CREATE SCHEMA")
	}
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	d := &dialect.PostgresDialect{}
	first := engine.Synthesize(d, forestSchema("north"), "merged", []string{"plot", "tree"}, nil, true)

	for i := 0; i < 10; i++ {
		again := engine.Synthesize(d, forestSchema("north"), "merged", []string{"plot", "tree"}, nil, true)
		assert.Equal(t, first.Statements(), again.Statements())
	}
}

func TestSynthesizeMSSQL(t *testing.T) {
	d := &dialect.MSSQLDialect{}

	plan := engine.Synthesize(d, forestSchema("north"), "merged", []string{"plot", "tree"}, nil, true)

	var all []string
	for _, st := range plan.Statements() {
		all = append(all, st.SQL)
	}
	joined := strings.Join(all, "\n")
	assert.Contains(t, joined, "[id] integer IDENTITY(1,1) NOT NULL")
	assert.Contains(t, joined, "REFERENCES [merged].[plot] ([id]) ON DELETE CASCADE")
	assert.Contains(t, joined, "ALTER TABLE [merged].[tree] ADD CONSTRAINT [tree_parent_fkey]")
}
