package engine

import (
	"context"
	"database/sql"
	"log/slog"

	"db-merge/internal/dialect"
	"db-merge/internal/mergeerr"
	"db-merge/internal/schema"
)

const stageCopy = "copy"

// copier moves rows of one table from each source into the target inside
// the merge transaction.
type copier struct {
	tx       *sql.Tx
	d        dialect.Dialect
	logger   *slog.Logger
	strategy Strategy
}

// copyTable copies sources in order, resyncs identity columns and counts
// the target rows. Columns are listed explicitly so a target table whose
// column order differs still lines up.
func (c *copier) copyTable(ctx context.Context, t *schema.Table, target string, sources ...string) (TableResult, error) {
	res := TableResult{Table: t.Name, FromSources: make([]int64, len(sources))}
	qualified := c.d.Qualify(target, t.Name)
	cols := t.CopyColumns()
	identity := t.IdentityColumns()
	hasIdentity := len(identity) > 0

	if err := c.d.BeforeTable(ctx, c.tx, qualified, hasIdentity); err != nil {
		return res, mergeerr.Classify(err, stageCopy, t.Name, "before table hook")
	}

	for i, src := range sources {
		query := c.d.UpsertSelectQuery(qualified, c.d.Qualify(src, t.Name), cols, t.PrimaryKey, c.strategy == LastWriterWins)
		r, err := c.tx.ExecContext(ctx, query)
		if err != nil {
			return res, mergeerr.Classify(err, stageCopy, t.Name, query)
		}
		n, _ := r.RowsAffected()
		res.FromSources[i] = n
		switch i {
		case 0:
			res.FromSchema1 = n
		case 1:
			res.FromSchema2 = n
		}
		c.logger.Debug("rows copied",
			slog.String("table", t.Name),
			slog.String("source", src),
			slog.Int64("rows", n),
		)
	}

	if err := c.d.AfterTable(ctx, c.tx, qualified, hasIdentity); err != nil {
		return res, mergeerr.Classify(err, stageCopy, t.Name, "after table hook")
	}

	for _, col := range identity {
		if err := c.d.ResyncIdentity(ctx, c.tx, target, t.Name, col); err != nil {
			return res, mergeerr.Classify(err, stageCopy, t.Name, "identity resync")
		}
	}

	// Verification
	countQuery := c.d.CountQuery(qualified)
	if err := c.tx.QueryRowContext(ctx, countQuery).Scan(&res.TargetRows); err != nil {
		return res, mergeerr.Classify(err, stageCopy, t.Name, countQuery)
	}
	return res, nil
}
