package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"db-merge/internal/dialect"
	"db-merge/internal/mergeerr"
	"db-merge/internal/schema"
)

// SeedResult is one line of the seed report.
type SeedResult struct {
	Table    string `json:"table"`
	Target   int    `json:"target"`
	Actual   int    `json:"actual"`
	Status   string `json:"status"`
	ErrorMsg string `json:"error,omitempty"`
}

// Seeder fills a schema with generated rows. Child tables draw foreign key
// values from the rows already present in their parents, so tables must be
// seeded in creation order.
type Seeder struct {
	db     *sql.DB
	d      dialect.Dialect
	logger *slog.Logger
	gen    *generator
}

func NewSeeder(db *sql.DB, d dialect.Dialect, logger *slog.Logger, seed int64) *Seeder {
	return &Seeder{db: db, d: d, logger: logger, gen: newGenerator(seed)}
}

// maxIdentityRows returns the largest value an identity column of the given type can hold.
func maxIdentityRows(dataType string) int {
	t := strings.ToLower(dataType)
	switch {
	case strings.HasPrefix(t, "tinyint"):
		return 255
	case strings.HasPrefix(t, "smallint"):
		return 32767
	default:
		return 2147483647
	}
}

// rowLimit caps the requested count by the range of the table's identity columns.
func (s *Seeder) rowLimit(t *schema.Table, requested int) int {
	limit := requested
	for _, c := range t.Columns {
		if c.IsAutoInc {
			if m := maxIdentityRows(c.DataType); m < limit {
				s.logger.Warn("identity column limits row count",
					slog.String("table", t.Name),
					slog.String("column", c.Name),
					slog.Int("max", m),
				)
				limit = m
			}
		}
	}
	return limit
}

// Seed inserts up to count rows per table, in order, in one transaction.
// onProgress is called after every inserted row.
func (s *Seeder) Seed(ctx context.Context, sch *schema.Schema, order []string, count int, onProgress func()) ([]SeedResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mergeerr.Classify(err, "begin", "", "")
	}
	defer tx.Rollback()

	referenced := referencedColumns(sch)
	pool := make(map[string][]map[string]any)
	var results []SeedResult

	for _, name := range order {
		t := sch.Tables[name]
		if t == nil {
			continue
		}
		qualified := s.d.Qualify(sch.Name, name)

		var initialCount int
		if err := tx.QueryRowContext(ctx, s.d.CountQuery(qualified)).Scan(&initialCount); err != nil {
			return nil, mergeerr.Classify(err, "seed", name, s.d.CountQuery(qualified))
		}

		inserted, err := s.seedTable(ctx, tx, sch.Name, t, s.rowLimit(t, count), pool, onProgress)
		if err != nil {
			return nil, err
		}

		// Verification
		var finalCount int
		if err := tx.QueryRowContext(ctx, s.d.CountQuery(qualified)).Scan(&finalCount); err != nil {
			return nil, mergeerr.Classify(err, "seed", name, s.d.CountQuery(qualified))
		}
		actual := finalCount - initialCount

		res := SeedResult{Table: name, Target: count, Actual: actual, Status: "OK"}
		if actual < count {
			res.Status = "MISSING DATA"
			if inserted == 0 {
				res.ErrorMsg = "no row could satisfy the table's constraints"
			} else {
				res.ErrorMsg = fmt.Sprintf("only inserted %d out of %d", actual, count)
			}
		}
		results = append(results, res)

		// FK 풀 갱신 (다음 자식 테이블을 위해)
		if cols := referenced[name]; len(cols) > 0 {
			rows, err := s.collectKeys(ctx, tx, qualified, cols)
			if err != nil {
				return nil, mergeerr.Classify(err, "seed", name, "")
			}
			pool[name] = rows
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mergeerr.Classify(err, "commit", "", "")
	}
	return results, nil
}

func (s *Seeder) seedTable(ctx context.Context, tx *sql.Tx, schemaName string, t *schema.Table, count int, pool map[string][]map[string]any, onProgress func()) (int, error) {
	var insertCols []*schema.Column
	var colNames []string
	for _, c := range t.Columns {
		if !c.IsAutoInc && !c.IsGenerated {
			insertCols = append(insertCols, c)
			colNames = append(colNames, c.Name)
		}
	}
	if len(insertCols) == 0 {
		return 0, nil
	}

	fkByColumn := make(map[string]*schema.ForeignKey)
	for _, fk := range t.ForeignKeys {
		for _, c := range fk.Columns {
			fkByColumn[c] = fk
		}
	}

	// Keys already handed out, per unique column set
	keySets := uniqueColumnSets(t)
	used := make([]map[string]bool, len(keySets))
	for i := range used {
		used[i] = make(map[string]bool)
	}

	query := s.d.InsertQuery(s.d.Qualify(schemaName, t.Name), colNames)
	inserted := 0

	for attempt := 0; inserted < count && attempt < count*10; attempt++ {
		row, ok := s.generateRow(t, insertCols, fkByColumn, pool, attempt)
		if !ok {
			// a NOT NULL foreign key with no parent rows
			s.logger.Warn("foreign key cannot be satisfied, skipping table", slog.String("table", t.Name))
			break
		}

		if seen(keySets, used, row) {
			continue
		}

		values := make([]any, len(colNames))
		for i, c := range colNames {
			values[i] = row[c]
		}
		r, err := tx.ExecContext(ctx, query, values...)
		if err != nil {
			return inserted, mergeerr.Classify(err, "seed", t.Name, query)
		}
		if n, _ := r.RowsAffected(); n > 0 {
			inserted++
			if onProgress != nil {
				onProgress()
			}
		}
	}
	return inserted, nil
}

// generateRow builds one row keyed by column name. Columns of a composite
// foreign key all come from the same parent row.
func (s *Seeder) generateRow(t *schema.Table, cols []*schema.Column, fkByColumn map[string]*schema.ForeignKey, pool map[string][]map[string]any, index int) (map[string]any, bool) {
	row := make(map[string]any, len(cols))
	parents := make(map[*schema.ForeignKey]map[string]any)

	for _, col := range cols {
		fk, isFK := fkByColumn[col.Name]
		if !isFK {
			row[col.Name] = s.gen.Value(col)
			continue
		}

		parent, picked := parents[fk]
		if !picked {
			if vals := pool[fk.RefTable]; len(vals) > 0 {
				parent = vals[(index+s.gen.faker.Number(0, len(vals)-1))%len(vals)]
			}
			parents[fk] = parent
		}
		if parent == nil {
			// self references and empty parents
			if col.IsNullable {
				row[col.Name] = nil
				continue
			}
			return nil, false
		}
		for i, c := range fk.Columns {
			if c == col.Name {
				row[col.Name] = parent[fk.RefColumns[i]]
			}
		}
	}
	return row, true
}

// uniqueColumnSets lists the column sets whose values must not repeat.
func uniqueColumnSets(t *schema.Table) [][]string {
	var sets [][]string
	if len(t.PrimaryKey) > 0 {
		sets = append(sets, t.PrimaryKey)
	}
	for _, u := range t.Uniques {
		sets = append(sets, u.Columns)
	}
	for _, idx := range t.Indexes {
		if idx.IsUnique {
			sets = append(sets, idx.Columns)
		}
	}
	return sets
}

// seen reports whether row repeats a key of any unique set, and records
// the row's keys when it does not.
func seen(sets [][]string, used []map[string]bool, row map[string]any) bool {
	keys := make([]string, len(sets))
	for i, set := range sets {
		parts := make([]string, len(set))
		for j, c := range set {
			v, ok := row[c]
			if !ok {
				// identity or generated, always distinct
				keys[i] = ""
				parts = nil
				break
			}
			parts[j] = fmt.Sprintf("%v", v)
		}
		if parts == nil {
			continue
		}
		keys[i] = strings.Join(parts, "|")
		if used[i][keys[i]] {
			return true
		}
	}
	for i, k := range keys {
		if k != "" {
			used[i][k] = true
		}
	}
	return false
}

// referencedColumns maps each table to the columns other tables point at.
func referencedColumns(sch *schema.Schema) map[string][]string {
	out := make(map[string][]string)
	for _, fk := range schema.ForeignKeysOf(sch) {
		for _, c := range fk.RefColumns {
			if !contains(out[fk.RefTable], c) {
				out[fk.RefTable] = append(out[fk.RefTable], c)
			}
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (s *Seeder) collectKeys(ctx context.Context, tx *sql.Tx, qualified string, cols []string) ([]map[string]any, error) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.d.QuoteIdent(c)
	}
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), qualified))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
