package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/merchant-review-api/internal/models"
)

func newRecordRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func testTable() models.ReviewTable {
	return models.ReviewTable{
		Key:            "dev",
		Name:           "sandbox.merchant_business_size",
		IdentityColumn: "merchant_id",
		RowLimit:       50,
		Columns:        models.DefaultReviewColumns(),
	}
}

type observerStub struct {
	labels []string
}

func (o *observerStub) ObserveDBQuery(label string, _ time.Duration) {
	o.labels = append(o.labels, label)
}

func TestRecordRepositoryQueryKeepsColumnOrder(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	observer := &observerStub{}
	repo := NewRecordRepository(db, observer)
	rows := sqlmock.NewRows([]string{"merchant_id", "merchant_name", "pending_size", "review_status"}).
		AddRow("m-1", []byte("Sari Store"), "MICRO", nil).
		AddRow("m-2", "Kape Co", nil, "PENDING")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sandbox"."merchant_business_size" LIMIT 50`)).
		WillReturnRows(rows)

	result, err := repo.Query(context.Background(), testTable(), models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, []string{"merchant_id", "merchant_name", "pending_size", "review_status"}, result[0].Columns)
	require.Equal(t, "Sari Store", result[0].Values["merchant_name"])
	require.Equal(t, "PENDING", result[1].String("review_status"))
	require.Equal(t, []string{"records.query"}, observer.labels)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryQueryStatusFilter(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sandbox"."merchant_business_size" WHERE ("review_status" IS NULL OR "review_status" = '') OR ("review_status" IN ($1)) LIMIT 10`)).
		WithArgs("REJECTED").
		WillReturnRows(sqlmock.NewRows([]string{"merchant_id"}).AddRow("m-1"))

	result, err := repo.Query(context.Background(), testTable(), models.RecordFilter{
		Statuses: []models.ReviewStatus{models.ReviewStatusUntouched, models.ReviewStatusRejected},
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryDescribe(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db, nil)
	table := testTable()
	table.Name = "dg_dev.sandbox.merchant_business_size"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT column_name, data_type FROM information_schema.columns")).
		WithArgs("sandbox", "merchant_business_size", "dg_dev").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("merchant_id", "bigint").
			AddRow("pending_size", "text"))

	columns, err := repo.Describe(context.Background(), table)
	require.NoError(t, err)
	require.Equal(t, []models.ColumnInfo{{Name: "merchant_id", DataType: "bigint"}, {Name: "pending_size", DataType: "text"}}, columns)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryExecuteUpdate(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db, nil)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sandbox"."merchant_business_size" SET "pending_size" = $1, "review_status" = $2 WHERE "merchant_id" = $3`)).
		WithArgs("SMALL", "PENDING", "O'Brien-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ExecuteUpdate(context.Background(), testTable(), []models.FieldValue{
		{Column: "pending_size", Value: "SMALL"},
		{Column: "review_status", Value: "PENDING"},
	}, "merchant_id", "O'Brien-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryExecuteUpdateRowCounts(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db, nil)
	fields := []models.FieldValue{{Column: "review_status", Value: "APPROVED"}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sandbox"."merchant_business_size" SET`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	err := repo.ExecuteUpdate(context.Background(), testTable(), fields, "merchant_id", "missing")
	require.True(t, errors.Is(err, sql.ErrNoRows))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sandbox"."merchant_business_size" SET`)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()
	err = repo.ExecuteUpdate(context.Background(), testTable(), fields, "merchant_id", "dup")
	require.True(t, errors.Is(err, ErrIdentityNotUnique))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteQualifiedName(t *testing.T) {
	quoted, err := QuoteQualifiedName("dg_prod.sandbox.out_merchant")
	require.NoError(t, err)
	require.Equal(t, `"dg_prod"."sandbox"."out_merchant"`, quoted)

	_, err = QuoteQualifiedName("bad..name")
	require.Error(t, err)
	_, err = QuoteQualifiedName("a.b.c.d")
	require.Error(t, err)
}
