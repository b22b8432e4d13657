package engine

import (
	"context"
	"database/sql"
	"log/slog"

	"db-merge/internal/dialect"
	"db-merge/internal/mergeerr"
	"db-merge/internal/schema"
)

// Clean empties the given tables of sch in reverse creation order, children
// before parents, and resets their identity columns. It is all or nothing.
func Clean(ctx context.Context, db *sql.DB, d dialect.Dialect, logger *slog.Logger, sch *schema.Schema, order []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mergeerr.Classify(err, "begin", "", "")
	}
	defer tx.Rollback()

	total := len(order)
	for i := total - 1; i >= 0; i-- {
		t := sch.Tables[order[i]]
		if t == nil {
			continue
		}
		query := d.TruncateQuery(d.Qualify(sch.Name, t.Name))
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return mergeerr.Classify(err, "clean", t.Name, query)
		}
		for _, col := range t.IdentityColumns() {
			if err := d.ResyncIdentity(ctx, tx, sch.Name, t.Name, col); err != nil {
				return mergeerr.Classify(err, "clean", t.Name, "")
			}
		}

		if done := total - i; done%5 == 0 || done == total {
			logger.Info("cleaned tables", slog.Int("done", done), slog.Int("total", total))
		}
	}

	if err := tx.Commit(); err != nil {
		return mergeerr.Classify(err, "commit", "", "")
	}
	return nil
}
