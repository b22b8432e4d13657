package engine

import (
	"db-merge/internal/dialect"
	"db-merge/internal/schema"
)

// Statement is one DDL statement of a plan.
type Statement struct {
	Stage string `json:"stage"`
	Table string `json:"table,omitempty"`
	SQL   string `json:"sql"`
}

const (
	stageCreateSchema = "create_schema"
	stageCreateTable  = "create_table"
	stageForeignKey   = "foreign_key"
	stageIndex        = "index"
)

// Plan is the structure half of a merge: what gets created before the data
// copy and what gets attached after it.
type Plan struct {
	Target          string      `json:"target_schema"`
	CreationOrder   []string    `json:"creation_order"`
	SelfReferencing []string    `json:"self_referencing"`
	Existing        []string    `json:"existing_tables"`
	Setup           []Statement `json:"setup"`
	Deferred        []Statement `json:"deferred"`
	Indexes         []Statement `json:"indexes"`
}

// Statements returns every statement in execution order, with the data copy
// falling between Setup and Deferred.
func (p *Plan) Statements() []Statement {
	out := make([]Statement, 0, len(p.Setup)+len(p.Deferred)+len(p.Indexes))
	out = append(out, p.Setup...)
	out = append(out, p.Deferred...)
	return append(out, p.Indexes...)
}

// Synthesize renders the DDL that recreates src's tables inside target,
// following order. Foreign keys to tables created earlier are declared
// inline; self and forward references are deferred to ALTER TABLE so that
// they are checked only once the rows are in. existing is the current
// content of the target and may be empty.
func Synthesize(d dialect.Dialect, src *schema.Schema, target string, order []string, existing *schema.Schema, createSchema bool) *Plan {
	if existing == nil {
		existing = &schema.Schema{Name: target}
	}
	plan := &Plan{
		Target:        target,
		CreationOrder: order,
	}
	if createSchema {
		plan.Setup = append(plan.Setup, Statement{Stage: stageCreateSchema, SQL: d.CreateSchemaQuery(target)})
	}

	created := make(map[string]bool, len(order))
	for _, name := range order {
		t := src.Tables[name]
		if t == nil {
			continue
		}
		prev := existing.Tables[name]
		if prev != nil {
			plan.Existing = append(plan.Existing, name)
		}
		qualified := d.Qualify(target, name)

		var defs []string
		for _, c := range t.Columns {
			defs = append(defs, d.ColumnDefinition(columnDef(c)))
		}
		if len(t.PrimaryKey) > 0 {
			defs = append(defs, d.PrimaryKeyClause(t.PrimaryKeyName, t.PrimaryKey))
		}
		for _, u := range t.Uniques {
			defs = append(defs, d.UniqueClause(u.Name, u.Columns))
		}
		for _, c := range t.Checks {
			defs = append(defs, d.CheckClause(c.Name, c.Definition))
		}

		selfRef := false
		for _, fk := range t.ForeignKeys {
			clause := d.ForeignKeyClause(foreignKeyDef(fk, target))
			if fk.RefTable != name && created[fk.RefTable] {
				defs = append(defs, clause)
				continue
			}
			if fk.RefTable == name {
				selfRef = true
			}
			if prev != nil && prev.HasConstraint(fk.Name) {
				continue
			}
			plan.Deferred = append(plan.Deferred, Statement{
				Stage: stageForeignKey,
				Table: name,
				SQL:   d.AddConstraintQuery(qualified, clause),
			})
		}
		if selfRef {
			plan.SelfReferencing = append(plan.SelfReferencing, name)
		}

		plan.Setup = append(plan.Setup, Statement{
			Stage: stageCreateTable,
			Table: name,
			SQL:   d.CreateTableQuery(qualified, defs),
		})
		created[name] = true

		for _, idx := range t.Indexes {
			plan.Indexes = append(plan.Indexes, Statement{
				Stage: stageIndex,
				Table: name,
				SQL:   d.CreateIndexQuery(target, name, idx.Name, idx.Columns, idx.IsUnique),
			})
		}
	}
	return plan
}

func columnDef(c *schema.Column) dialect.ColumnDef {
	def := dialect.ColumnDef{
		Name:      c.Name,
		Type:      c.DataType,
		Nullable:  c.IsNullable,
		AutoInc:   c.IsAutoInc,
		Generated: c.IsGenerated,
	}
	switch {
	case c.IsGenerated && c.Default != nil:
		def.Expression = *c.Default
	case !c.IsAutoInc:
		// sequence defaults point back at the source schema
		def.Default = c.Default
	}
	return def
}

func foreignKeyDef(fk *schema.ForeignKey, target string) dialect.ForeignKeyDef {
	return dialect.ForeignKeyDef{
		Name:       fk.Name,
		Columns:    fk.Columns,
		RefSchema:  target,
		RefTable:   fk.RefTable,
		RefColumns: fk.RefColumns,
		OnUpdate:   fk.OnUpdate,
		OnDelete:   fk.OnDelete,
	}
}
