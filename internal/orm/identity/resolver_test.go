package identity

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/objectstore/internal/orm/crud"
	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/ormtest"
	"github.com/conduit-lang/objectstore/internal/orm/query"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

func newResolver(registry *schema.Registry, db query.Querier) *Resolver {
	compiler := query.NewCompiler(dialect.SQLite{}, registry, nil)
	return NewResolver(compiler, query.NewExecutor(db, nil), nil)
}

func TestFindByExample(t *testing.T) {
	registry := ormtest.Model(t)
	db := ormtest.OpenSQLite(t, registry)
	rows := crud.NewRows(db, dialect.SQLite{}, nil)
	resolver := newResolver(registry, db)
	ctx := context.Background()

	company := registry.MustGet("Company")
	probe := ormtest.Build(t, registry, "Company", map[string]interface{}{"name": "Company A", "vatNumber": 99})

	t.Run("not found in an empty store", func(t *testing.T) {
		_, found, err := resolver.FindByExample(ctx, probe, object.ExampleFields{"name"})
		require.NoError(t, err)
		assert.False(t, found)
	})

	id, err := rows.Insert(ctx, company, map[string]interface{}{"name": "Company A"})
	require.NoError(t, err)

	t.Run("matches on the example fields only", func(t *testing.T) {
		got, found, err := resolver.FindByExample(ctx, probe, object.ExampleFields{"name"})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, id, got)
	})

	t.Run("a value the row lacks does not match", func(t *testing.T) {
		_, found, err := resolver.FindByExample(ctx, probe, object.ExampleFields{"name", "vatNumber"})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("an unset example field matches NULL", func(t *testing.T) {
		skeleton := ormtest.Build(t, registry, "Company", map[string]interface{}{"name": "Company A"})
		got, found, err := resolver.FindByExample(ctx, skeleton, object.ExampleFields{"name", "vatNumber"})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, id, got)
	})

	t.Run("duplicates are ambiguous", func(t *testing.T) {
		_, err := rows.Insert(ctx, company, map[string]interface{}{"name": "Twin"})
		require.NoError(t, err)
		_, err = rows.Insert(ctx, company, map[string]interface{}{"name": "Twin"})
		require.NoError(t, err)

		twin := ormtest.Build(t, registry, "Company", map[string]interface{}{"name": "Twin"})
		_, found, err := resolver.FindByExample(ctx, twin, object.ExampleFields{"name"})
		assert.True(t, IsAmbiguousMatch(err))
		assert.False(t, found)
	})
}

func TestFindByExampleReferences(t *testing.T) {
	registry := ormtest.Model(t)
	db := ormtest.OpenSQLite(t, registry)
	rows := crud.NewRows(db, dialect.SQLite{}, nil)
	resolver := newResolver(registry, db)
	ctx := context.Background()

	companyID, err := rows.Insert(ctx, registry.MustGet("Company"), map[string]interface{}{"name": "Company A"})
	require.NoError(t, err)
	deptID, err := rows.Insert(ctx, registry.MustGet("Department"), map[string]interface{}{"name": "Sales", "companyid": companyID})
	require.NoError(t, err)

	owner := ormtest.Build(t, registry, "Company", map[string]interface{}{"name": "Company A"})
	require.NoError(t, owner.SetIdentity(companyID))

	dept := ormtest.Build(t, registry, "Department", map[string]interface{}{"name": "Sales"})
	require.NoError(t, dept.SetRef("company", owner))

	got, found, err := resolver.FindByExample(ctx, dept, object.ExampleFields{"name", "company"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, deptID, got)

	orphan := ormtest.Build(t, registry, "Department", map[string]interface{}{"name": "Sales"})
	_, found, err = resolver.FindByExample(ctx, orphan, object.ExampleFields{"name", "company"})
	require.NoError(t, err)
	assert.False(t, found, "a NULL company does not match a department that has one")
}

func TestFindByExampleUnpersistedReference(t *testing.T) {
	registry := ormtest.Model(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dept := ormtest.Build(t, registry, "Department", map[string]interface{}{"name": "Sales"})
	dept.MustSetRef("company", object.New(registry.MustGet("Company")))

	_, found, err := newResolver(registry, db).FindByExample(context.Background(), dept, object.ExampleFields{"name", "company"})
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet(), "no stored row can reference an unpersisted object")
}

func TestFindByExampleInvalidFields(t *testing.T) {
	registry := ormtest.Model(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	resolver := newResolver(registry, db)
	company := ormtest.Build(t, registry, "Company", map[string]interface{}{"name": "Company A"})

	tests := []struct {
		name   string
		fields object.ExampleFields
	}{
		{"collection", object.ExampleFields{"contractors"}},
		{"unknown field", object.ExampleFields{"colour"}},
		{"empty set", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := resolver.FindByExample(context.Background(), company, tt.fields)
			assert.True(t, query.IsQueryCompile(err), "got %v", err)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByExampleSeesOwnTransaction(t *testing.T) {
	registry := ormtest.Model(t)
	db := ormtest.OpenSQLite(t, registry)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	id, err := crud.NewRows(tx, dialect.SQLite{}, nil).Insert(ctx, registry.MustGet("Address"), map[string]interface{}{"address": "1 Main St"})
	require.NoError(t, err)

	probe := ormtest.Build(t, registry, "Address", map[string]interface{}{"address": "1 Main St"})

	got, found, err := newResolver(registry, tx).FindByExample(ctx, probe, object.ExampleFields{"address"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id, got)

	_, found, err = newResolver(registry, db).FindByExample(ctx, probe, object.ExampleFields{"address"})
	require.NoError(t, err)
	assert.False(t, found, "other connections do not see uncommitted rows")
}

func TestExampleQueryShape(t *testing.T) {
	registry := ormtest.Model(t)
	company := ormtest.Build(t, registry, "Company", map[string]interface{}{"name": "Company A"})

	q, ok, err := ExampleQuery(company, object.ExampleFields{"name", "vatNumber"})
	require.NoError(t, err)
	require.True(t, ok)

	stmt, err := query.NewCompiler(dialect.Postgres{}, registry, nil).Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT a1_."id" AS a1_id FROM "companies" AS a1_ WHERE a1_."name" = $1 AND a1_."vatnumber" IS NULL ORDER BY a1_."id"`,
		stmt.SQL)
	assert.Equal(t, []interface{}{"Company A"}, stmt.Args)
}
