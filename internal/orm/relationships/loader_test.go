package relationships

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/objectstore/internal/orm/crud"
	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/ormtest"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
	"github.com/conduit-lang/objectstore/internal/orm/transaction"
	"github.com/conduit-lang/objectstore/internal/orm/writer"
)

// storedGraph writes a company with an address, a CEO pointing back at it, two
// departments and one contractor
func storedGraph(t *testing.T) (*schema.Registry, *sql.DB, *object.Object) {
	t.Helper()
	registry := ormtest.Model(t)
	db := ormtest.OpenSQLite(t, registry)

	company := ormtest.Build(t, registry, "Company", map[string]interface{}{"name": "Company A", "vatNumber": 42})
	company.MustSetRef("address", ormtest.Build(t, registry, "Address", map[string]interface{}{"address": "1 Main St"}))
	ceo := ormtest.Build(t, registry, "CEO", map[string]interface{}{"name": "Jane", "fullTime": true})
	ceo.MustSetRef("company", company)
	company.MustSetRef("CEO", ceo)
	company.MustAdd("departments",
		ormtest.Build(t, registry, "Department", map[string]interface{}{"name": "Sales"}),
		ormtest.Build(t, registry, "Department", map[string]interface{}{"name": "Support"}))
	company.MustAdd("contractors", ormtest.Build(t, registry, "Contractor", map[string]interface{}{"name": "X"}))

	w := writer.New(registry, dialect.SQLite{}, transaction.NewManager(db), nil)
	_, err := w.Store(context.Background(), company, writer.Options{Examples: ormtest.Examples()})
	require.NoError(t, err)
	return registry, db, company
}

func newLoader(registry *schema.Registry, db *sql.DB) *Loader {
	return NewLoader(registry, crud.NewRows(db, dialect.SQLite{}, nil))
}

func TestLoad(t *testing.T) {
	registry, db, stored := storedGraph(t)
	loader := newLoader(registry, db)
	id, _ := stored.Identity()

	got, err := loader.Load(context.Background(), registry.MustGet("Company"), id, NewLoadContext(2))
	require.NoError(t, err)

	name, _ := got.Get("name")
	assert.Equal(t, "Company A", name)
	vat, _ := got.Get("vatNumber")
	assert.Equal(t, int64(42), vat)

	address := got.Ref("address")
	require.NotNil(t, address)
	street, _ := address.Get("address")
	assert.Equal(t, "1 Main St", street)

	ceo := got.Ref("CEO")
	require.NotNil(t, ceo)
	assert.Same(t, got, ceo.Ref("company"), "a cycle resolves to the loaded instance")
	assert.Empty(t, got.Collection("departments"))
}

func TestLoadDepthLimit(t *testing.T) {
	registry, db, stored := storedGraph(t)
	loader := newLoader(registry, db)
	id, _ := stored.Identity()

	got, err := loader.Load(context.Background(), registry.MustGet("Company"), id, NewLoadContext(0))
	require.NoError(t, err)

	address := got.Ref("address")
	require.NotNil(t, address)
	assert.True(t, address.HasIdentity())
	assert.Empty(t, address.SetFields(), "beyond the depth limit a reference is a proxy")
}

func TestLoadNotFound(t *testing.T) {
	registry, db, _ := storedGraph(t)

	_, err := newLoader(registry, db).Load(context.Background(), registry.MustGet("Company"), 999, NewLoadContext(1))
	assert.True(t, crud.IsNotFound(err))
}

func TestLoadCollection(t *testing.T) {
	registry, db, stored := storedGraph(t)
	loader := newLoader(registry, db)
	ctx := context.Background()
	id, _ := stored.Identity()

	owner := Proxy(registry.MustGet("Company"), id)
	lc := NewLoadContext(1)

	t.Run("one to many", func(t *testing.T) {
		depts, err := loader.LoadCollection(ctx, owner, "departments", lc)
		require.NoError(t, err)
		require.Len(t, depts, 2)

		name, _ := depts[0].Get("name")
		assert.Equal(t, "Sales", name)
		assert.Same(t, owner, depts[1].Ref("company"))
		assert.Len(t, owner.Collection("departments"), 2)
	})

	t.Run("many to many", func(t *testing.T) {
		contractors, err := loader.LoadCollection(ctx, owner, "contractors", lc)
		require.NoError(t, err)
		require.Len(t, contractors, 1)
		name, _ := contractors[0].Get("name")
		assert.Equal(t, "X", name)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := loader.LoadCollection(ctx, owner, "colour", lc)
		assert.ErrorIs(t, err, ErrUnknownRelationship)

		unsaved := object.New(registry.MustGet("Company"))
		_, err = loader.LoadCollection(ctx, unsaved, "departments", lc)
		assert.ErrorIs(t, err, ErrUnpersistedOwner)
	})
}

func TestLoadContext(t *testing.T) {
	registry := ormtest.Model(t)
	lc := NewLoadContext(1)

	assert.Error(t, lc.Remember(object.New(registry.MustGet("CEO"))))

	proxy := Proxy(registry.MustGet("CEO"), 7)
	require.NoError(t, lc.Remember(proxy))
	got, ok := lc.Lookup("CEO", 7)
	assert.True(t, ok)
	assert.Same(t, proxy, got)
	assert.Equal(t, 1, lc.Objects())

	assert.True(t, lc.descend())
	assert.False(t, lc.descend())
	lc.ascend()
	assert.True(t, lc.descend())
}
