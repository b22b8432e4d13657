package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-merge/internal/engine"
	"db-merge/internal/mergeerr"
)

func TestDrop(t *testing.T) {
	m, mock := newMerger(t, engine.WithHistory("public"))

	mock.ExpectBegin()
	expectLock(mock, "old")
	expectExists(mock, "old", true)
	expectForest(mock, "old")
	mock.ExpectExec(`ALTER TABLE "old"."tree" DROP CONSTRAINT IF EXISTS "tree_parent_fkey"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE "old"."tree" DROP CONSTRAINT IF EXISTS "tree_plot_fkey"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS "old"."plot"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS "old"."tree"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP SCHEMA IF EXISTS "old" CASCADE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(pg.GetTablesQuery()).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("schema_merges"))
	mock.ExpectExec(`DELETE FROM "public"."schema_merges" WHERE target_schema = $1`).WithArgs("old").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	res, err := m.Drop(context.Background(), "old")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []string{"plot", "tree"}, res.DroppedTables)
	assert.Equal(t, int64(2), res.ForgottenMerges)
}

func TestDrop_Missing(t *testing.T) {
	m, mock := newMerger(t)

	mock.ExpectBegin()
	expectLock(mock, "nowhere")
	expectExists(mock, "nowhere", false)
	mock.ExpectRollback()

	_, err := m.Drop(context.Background(), "nowhere")

	var notFound *mergeerr.SchemaNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "nowhere", notFound.Schema)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrop_FailureRollsBack(t *testing.T) {
	m, mock := newMerger(t)

	mock.ExpectBegin()
	expectLock(mock, "old")
	expectExists(mock, "old", true)
	expectForest(mock, "old")
	mock.ExpectExec(`ALTER TABLE "old"."tree" DROP CONSTRAINT IF EXISTS "tree_parent_fkey"`).
		WillReturnError(&pq.Error{Code: "42501", Message: "must be owner of table tree"})
	mock.ExpectRollback()

	_, err := m.Drop(context.Background(), "old")

	var cv *mergeerr.ConstraintViolationError
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, "drop", cv.Stage)
	assert.Equal(t, "tree", cv.Table)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrop_Refused(t *testing.T) {
	m, mock := newMerger(t, engine.WithHistory("audit"))

	_, err := m.Drop(context.Background(), "public")
	assert.ErrorContains(t, err, "default schema")

	_, err = m.Drop(context.Background(), "audit")
	assert.ErrorContains(t, err, "merge history")

	_, err = m.Drop(context.Background(), "")
	assert.ErrorContains(t, err, "schema is required")

	assert.NoError(t, mock.ExpectationsWereMet())
}
