package crud

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/ormtest"
)

func newMockRows(t *testing.T) (*Rows, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRows(db, dialect.Postgres{}, nil), mock, db
}

func TestInsert(t *testing.T) {
	registry := ormtest.Model(t)
	company := registry.MustGet("Company")
	rows, mock, _ := newMockRows(t)

	mock.ExpectQuery(`INSERT INTO "companies" ("name", "vatnumber", "addressid") VALUES ($1, $2, $3) RETURNING "id"`).
		WithArgs("Company A", int64(1234), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	id, err := rows.Insert(context.Background(), company, map[string]interface{}{
		"addressid": int64(7),
		"vatnumber": int64(1234),
		"name":      "Company A",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDefaultValues(t *testing.T) {
	registry := ormtest.Model(t)
	rows, mock, _ := newMockRows(t)

	mock.ExpectQuery(`INSERT INTO "departments" DEFAULT VALUES RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))

	id, err := rows.Insert(context.Background(), registry.MustGet("Department"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUnknownColumn(t *testing.T) {
	registry := ormtest.Model(t)
	rows, mock, _ := newMockRows(t)

	_, err := rows.Insert(context.Background(), registry.MustGet("Company"), map[string]interface{}{"nope": 1})
	assert.ErrorIs(t, err, ErrUnknownColumn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad(t *testing.T) {
	registry := ormtest.Model(t)
	company := registry.MustGet("Company")
	rows, mock, _ := newMockRows(t)

	mock.ExpectQuery(`SELECT "id", "name", "vatnumber", "addressid", "ceoid" FROM "companies" WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "vatnumber", "addressid", "ceoid"}).
			AddRow(int64(1), []byte("Company A"), nil, int64(3), nil))

	record, err := rows.Load(context.Background(), company, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"id":        int64(1),
		"name":      "Company A",
		"vatnumber": nil,
		"addressid": int64(3),
		"ceoid":     nil,
	}, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadNotFound(t *testing.T) {
	registry := ormtest.Model(t)
	rows, mock, _ := newMockRows(t)

	mock.ExpectQuery(`SELECT "id", "address" FROM "addresses" WHERE "id" = $1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "address"}))

	_, err := rows.Load(context.Background(), registry.MustGet("Address"), 42)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFillNulls(t *testing.T) {
	registry := ormtest.Model(t)
	rows, mock, _ := newMockRows(t)

	mock.ExpectExec(`UPDATE "companies" SET "vatnumber" = COALESCE("vatnumber", $1), "ceoid" = COALESCE("ceoid", $2) WHERE "id" = $3`).
		WithArgs(int64(1234), int64(2), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := rows.FillNulls(context.Background(), registry.MustGet("Company"), 1, map[string]interface{}{
		"ceoid":     int64(2),
		"vatnumber": int64(1234),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateColumns(t *testing.T) {
	registry := ormtest.Model(t)
	company := registry.MustGet("Company")
	rows, mock, _ := newMockRows(t)

	mock.ExpectExec(`UPDATE "companies" SET "name" = $1 WHERE "id" = $2`).
		WithArgs("Renamed", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "companies" SET "name" = $1 WHERE "id" = $2`).
		WithArgs("Renamed", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, rows.UpdateColumns(ctx, company, 1, map[string]interface{}{"name": "Renamed"}))

	err := rows.UpdateColumns(ctx, company, 2, map[string]interface{}{"name": "Renamed"})
	assert.True(t, IsNotFound(err))

	// Nothing to write is not an error and issues no statement
	require.NoError(t, rows.UpdateColumns(ctx, company, 3, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	registry := ormtest.Model(t)
	rows, mock, _ := newMockRows(t)

	mock.ExpectExec(`DELETE FROM "companies_contractors" WHERE "companyid" = $1`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "companies" WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := rows.Delete(context.Background(), registry.MustGet("Company"), 1, registry.JoinTables())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinks(t *testing.T) {
	registry := ormtest.Model(t)
	coll, ok := registry.MustGet("Company").Collection("contractors")
	require.True(t, ok)
	rows, mock, _ := newMockRows(t)

	mock.ExpectQuery(`SELECT COUNT(*) FROM "companies_contractors" WHERE "companyid" = $1 AND "contractorid" = $2`).
		WithArgs(int64(1), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectExec(`INSERT INTO "companies_contractors" ("companyid", "contractorid") VALUES ($1, $2)`).
		WithArgs(int64(1), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT "contractorid" FROM "companies_contractors" WHERE "companyid" = $1 ORDER BY "contractorid"`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"contractorid"}).AddRow(int64(5)))

	ctx := context.Background()
	exists, err := rows.LinkExists(ctx, coll, 1, 5)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, rows.InsertLink(ctx, coll, 1, 5))

	ids, err := rows.Linked(ctx, coll, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRowsAgainstSQLite(t *testing.T) {
	registry := ormtest.Model(t)
	db := ormtest.OpenSQLite(t, registry)
	rows := NewRows(db, dialect.SQLite{}, nil)
	ctx := context.Background()

	company := registry.MustGet("Company")
	department := registry.MustGet("Department")

	id, err := rows.Insert(ctx, company, map[string]interface{}{"name": "Company A", "vatnumber": int64(1)})
	require.NoError(t, err)
	assert.Positive(t, id)

	t.Run("load normalizes values", func(t *testing.T) {
		record, err := rows.Load(ctx, company, id)
		require.NoError(t, err)
		assert.Equal(t, "Company A", record["name"])
		assert.Equal(t, int64(1), record["vatnumber"])
		assert.Nil(t, record["ceoid"])
	})

	t.Run("unique violation", func(t *testing.T) {
		_, err := rows.Insert(ctx, company, map[string]interface{}{"name": "Company B", "vatnumber": int64(1)})
		assert.True(t, IsUniqueViolation(err))
		assert.True(t, IsStoreIntegrity(err))
	})

	t.Run("not null violation", func(t *testing.T) {
		_, err := rows.Insert(ctx, company, map[string]interface{}{"vatnumber": int64(2)})
		assert.ErrorIs(t, err, ErrNotNullViolation)
	})

	t.Run("foreign key violation", func(t *testing.T) {
		_, err := rows.Insert(ctx, department, map[string]interface{}{"name": "Sales", "companyid": int64(999)})
		assert.True(t, IsForeignKeyViolation(err))
	})

	t.Run("fill nulls keeps stored values", func(t *testing.T) {
		require.NoError(t, rows.FillNulls(ctx, company, id, map[string]interface{}{"name": "Other", "vatnumber": int64(5)}))
		record, err := rows.Load(ctx, company, id)
		require.NoError(t, err)
		assert.Equal(t, "Company A", record["name"])
		assert.Equal(t, int64(1), record["vatnumber"])
	})

	t.Run("one-to-many elements", func(t *testing.T) {
		deptID, err := rows.Insert(ctx, department, map[string]interface{}{"name": "Sales", "companyid": id})
		require.NoError(t, err)

		ref, _ := department.Reference("company")
		ids, err := rows.Referencing(ctx, department, ref, id)
		require.NoError(t, err)
		assert.Equal(t, []int64{deptID}, ids)

		require.NoError(t, rows.Delete(ctx, department, deptID, registry.JoinTables()))
		exists, err := rows.Exists(ctx, department, deptID)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("delete removes join rows", func(t *testing.T) {
		contractor := registry.MustGet("Contractor")
		cid, err := rows.Insert(ctx, contractor, map[string]interface{}{"name": "Contractor X"})
		require.NoError(t, err)

		coll, _ := company.Collection("contractors")
		require.NoError(t, rows.InsertLink(ctx, coll, id, cid))

		require.NoError(t, rows.Delete(ctx, contractor, cid, registry.JoinTables()))
		linked, err := rows.Linked(ctx, coll, id)
		require.NoError(t, err)
		assert.Empty(t, linked)

		err = rows.Delete(ctx, contractor, cid, registry.JoinTables())
		assert.True(t, IsNotFound(err))
	})
}
