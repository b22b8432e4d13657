package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"db-merge/internal/dialect"
	"db-merge/internal/mergeerr"
	"db-merge/internal/schema"
)

const historyTable = "schema_merges"

var historyColumns = []string{"target_schema", "source_schemas", "merge_strategy", "table_count", "total_rows", "merged_at"}

// MergeRecord is one row of schema_merges.
type MergeRecord struct {
	Target     string    `json:"target_schema"`
	Sources    []string  `json:"source_schemas"`
	Strategy   Strategy  `json:"strategy"`
	TableCount int       `json:"table_count"`
	TotalRows  int64     `json:"total_rows"`
	MergedAt   time.Time `json:"merged_at"`
}

// recordMerge creates the history table on first use and appends rec. It runs
// inside the merge transaction so a rolled back merge leaves no record.
func recordMerge(ctx context.Context, tx *sql.Tx, d dialect.Dialect, historySchema string, rec MergeRecord) error {
	qualified := d.Qualify(historySchema, historyTable)

	ddl := d.MergeHistoryTableQuery(qualified)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return mergeerr.Classify(err, "history", historyTable, ddl)
	}

	insert := d.InsertQuery(qualified, historyColumns)
	_, err := tx.ExecContext(ctx, insert,
		rec.Target,
		strings.Join(rec.Sources, ","),
		string(rec.Strategy),
		rec.TableCount,
		rec.TotalRows,
		rec.MergedAt,
	)
	if err != nil {
		return mergeerr.Classify(err, "history", historyTable, insert)
	}
	return nil
}

// History lists recorded merges, newest first. It is empty when recording
// is off or nothing has been recorded yet.
func (m *Merger) History(ctx context.Context) ([]MergeRecord, error) {
	records := []MergeRecord{}
	if m.history == "" {
		return records, nil
	}
	ok, err := hasHistory(ctx, m.db, m.dialect, m.history)
	if err != nil || !ok {
		return records, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY merged_at DESC",
		strings.Join(historyColumns, ", "), m.dialect.Qualify(m.history, historyTable))
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mergeerr.Classify(err, "history", historyTable, query)
	}
	defer rows.Close()

	for rows.Next() {
		var rec MergeRecord
		var sources, strategy string
		if err := rows.Scan(&rec.Target, &sources, &strategy, &rec.TableCount, &rec.TotalRows, &rec.MergedAt); err != nil {
			return nil, fmt.Errorf("failed to scan merge record: %w", err)
		}
		rec.Sources = strings.Split(sources, ",")
		rec.Strategy = Strategy(strategy)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mergeerr.Classify(err, "history", historyTable, query)
	}
	return records, nil
}

// forgetMerges deletes the records of merges into target.
func forgetMerges(ctx context.Context, tx *sql.Tx, d dialect.Dialect, historySchema, target string) (int64, error) {
	ok, err := hasHistory(ctx, tx, d, historySchema)
	if err != nil || !ok {
		return 0, err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE target_schema = %s", d.Qualify(historySchema, historyTable), d.Placeholder(0))
	r, err := tx.ExecContext(ctx, query, target)
	if err != nil {
		return 0, mergeerr.Classify(err, "history", historyTable, query)
	}
	n, _ := r.RowsAffected()
	return n, nil
}

func hasHistory(ctx context.Context, q schema.Querier, d dialect.Dialect, historySchema string) (bool, error) {
	tables, err := schema.ListTables(ctx, q, d, historySchema)
	if err != nil {
		return false, mergeerr.Classify(err, "history", "", "")
	}
	return contains(tables, historyTable), nil
}
