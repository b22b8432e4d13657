package engine

import (
	"context"
	"fmt"
	"log/slog"

	"db-merge/internal/mergeerr"
	"db-merge/internal/schema"
)

const stageDrop = "drop"

// DropResult lists what Drop removed.
type DropResult struct {
	Schema          string   `json:"schema"`
	DroppedTables   []string `json:"dropped_tables"`
	ForgottenMerges int64    `json:"forgotten_merges"`
}

// Drop removes a schema with every table in it, and the history records of
// merges into it, in one transaction. Foreign keys go first so tables can be
// dropped in any order. The default schema and the history schema are refused.
func (m *Merger) Drop(ctx context.Context, name string) (*DropResult, error) {
	switch {
	case name == "":
		return nil, fmt.Errorf("schema is required")
	case name == m.dialect.DefaultSchema():
		return nil, fmt.Errorf("refusing to drop the default schema %q", name)
	case name == m.history:
		return nil, fmt.Errorf("refusing to drop schema %q: it holds the merge history", name)
	}
	log := m.logger.With(slog.String("schema", name))

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mergeerr.Classify(err, "begin", "", "")
	}
	defer tx.Rollback()

	if err := m.dialect.LockSchema(ctx, tx, name); err != nil {
		return nil, mergeerr.Classify(err, "lock", "", "")
	}
	exists, err := schema.Exists(ctx, tx, m.dialect, name)
	if err != nil {
		return nil, mergeerr.Classify(err, stageDrop, "", "")
	}
	if !exists {
		return nil, &mergeerr.SchemaNotFoundError{Schema: name}
	}

	sch, err := schema.Load(ctx, tx, m.dialect, name)
	if err != nil {
		return nil, mergeerr.Classify(err, "introspect", "", "")
	}
	res := &DropResult{Schema: name, DroppedTables: sch.TableNames()}

	var stmts []Statement
	for _, t := range res.DroppedTables {
		for _, fk := range sch.Tables[t].ForeignKeys {
			stmts = append(stmts, Statement{Stage: stageDrop, Table: t, SQL: m.dialect.DropConstraintQuery(m.dialect.Qualify(name, t), fk.Name)})
		}
	}
	for _, t := range res.DroppedTables {
		stmts = append(stmts, Statement{Stage: stageDrop, Table: t, SQL: m.dialect.DropTableQuery(m.dialect.Qualify(name, t))})
	}
	stmts = append(stmts, Statement{Stage: stageDrop, SQL: m.dialect.DropSchemaQuery(name)})
	if err := m.execAll(ctx, tx, stmts); err != nil {
		return nil, err
	}

	if m.history != "" {
		res.ForgottenMerges, err = forgetMerges(ctx, tx, m.dialect, m.history, name)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mergeerr.Classify(err, "commit", "", "")
	}
	log.Info("schema dropped",
		slog.Int("tables", len(res.DroppedTables)),
		slog.Int64("forgotten_merges", res.ForgottenMerges),
	)
	return res, nil
}
