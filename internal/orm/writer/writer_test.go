package writer

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
	"github.com/conduit-lang/objectstore/internal/orm/query"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
	"github.com/conduit-lang/objectstore/internal/orm/transaction"
)

type fixture struct {
	registry *schema.Registry
	db       *sql.DB
	writer   *Writer
	opts     Options
}

func setup(t *testing.T) *fixture {
	t.Helper()
	registry := ormtest.Model(t)
	db := ormtest.OpenSQLite(t, registry)
	return &fixture{
		registry: registry,
		db:       db,
		writer:   New(registry, dialect.SQLite{}, transaction.NewManager(db), nil),
		opts:     Options{Examples: ormtest.Examples()},
	}
}

func (f *fixture) build(t *testing.T, class string, fields map[string]interface{}) *object.Object {
	return ormtest.Build(t, f.registry, class, fields)
}

func (f *fixture) store(t *testing.T, root *object.Object) Result {
	t.Helper()
	result, err := f.writer.Store(context.Background(), root, f.opts)
	require.NoError(t, err)
	return result
}

func mustID(t *testing.T, obj *object.Object) int64 {
	t.Helper()
	id, ok := obj.Identity()
	require.True(t, ok, "%s has no identity", obj)
	return id
}

func TestStoreSingleObject(t *testing.T) {
	f := setup(t)

	address := f.build(t, "Address", map[string]interface{}{"address": "1 Main St"})
	result := f.store(t, address)

	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, []*object.Object{address}, result.Objects)
	assert.Equal(t, 1, ormtest.CountRows(t, f.db, "addresses"))
	assert.Equal(t, "1 Main St", ormtest.Column(t, f.db, "addresses", "address", mustID(t, address)))
}

func TestStoreReferenceWrittenFirst(t *testing.T) {
	f := setup(t)

	company := f.build(t, "Company", map[string]interface{}{"name": "Company A"})
	dept := f.build(t, "Department", map[string]interface{}{"name": "Sales"})
	dept.MustSetRef("company", company)

	result := f.store(t, dept)

	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, []*object.Object{company, dept}, result.Objects)
	assert.EqualValues(t, mustID(t, company), ormtest.Column(t, f.db, "departments", "companyid", mustID(t, dept)))
}

func TestStoreEqualGraphsTwice(t *testing.T) {
	graph := func(f *fixture) *object.Object {
		company := ormtest.Build(t, f.registry, "Company", map[string]interface{}{"name": "Company A"})
		company.MustSetRef("address", ormtest.Build(t, f.registry, "Address", map[string]interface{}{"address": "1 Main St"}))
		return company
	}

	t.Run("root written each time", func(t *testing.T) {
		f := setup(t)
		f.store(t, graph(f))
		second := f.store(t, graph(f))

		assert.Equal(t, 1, second.Inserted)
		assert.Equal(t, 1, second.Untouched)
		assert.Equal(t, 2, ormtest.CountRows(t, f.db, "companies"))
		assert.Equal(t, 1, ormtest.CountRows(t, f.db, "addresses"))
	})

	t.Run("root deduplicated", func(t *testing.T) {
		f := setup(t)
		f.opts.DedupRoot = true
		first := graph(f)
		f.store(t, first)
		again := graph(f)
		second := f.store(t, again)

		assert.Equal(t, 0, second.Inserted)
		assert.Equal(t, 2, second.Untouched)
		assert.Equal(t, mustID(t, first), mustID(t, again))
		assert.Equal(t, 1, ormtest.CountRows(t, f.db, "companies"))
		assert.Equal(t, 1, ormtest.CountRows(t, f.db, "addresses"))
	})
}

func TestStoreSkeletonThenFullObject(t *testing.T) {
	f := setup(t)

	ceo := f.build(t, "CEO", map[string]interface{}{"name": "Jane"})
	skeleton := f.build(t, "Company", map[string]interface{}{"name": "Company A"})
	ceo.MustSetRef("company", skeleton)
	f.store(t, ceo)

	companyID := mustID(t, skeleton)
	assert.Nil(t, ormtest.Column(t, f.db, "companies", "vatnumber", companyID))

	f.opts.DedupRoot = true
	full := f.build(t, "Company", map[string]interface{}{"name": "Company A", "vatNumber": 1234})
	result := f.store(t, full)

	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, companyID, mustID(t, full))
	assert.Equal(t, 1, ormtest.CountRows(t, f.db, "companies"))
	assert.EqualValues(t, 1234, ormtest.Column(t, f.db, "companies", "vatnumber", companyID))
}

func TestStoreManyToManyLinks(t *testing.T) {
	f := setup(t)
	jt := f.registry.JoinTables()[0]

	contractor := func(name string) *object.Object {
		return f.build(t, "Contractor", map[string]interface{}{"name": name})
	}

	a := f.build(t, "Company", map[string]interface{}{"name": "A"})
	a.MustAdd("contractors", contractor("X"), contractor("Y"))
	first := f.store(t, a)
	assert.Equal(t, 2, first.Links)

	b := f.build(t, "Company", map[string]interface{}{"name": "B"})
	b.MustAdd("contractors", contractor("X"))
	second := f.store(t, b)

	assert.Equal(t, 1, second.Inserted)
	assert.Equal(t, 1, second.Untouched)
	assert.Equal(t, 1, second.Links)
	assert.Equal(t, 2, ormtest.CountRows(t, f.db, "contractors"))
	assert.Len(t, ormtest.Links(t, f.db, jt), 3)

	f.opts.DedupRoot = true
	repeat := f.build(t, "Company", map[string]interface{}{"name": "A"})
	repeat.MustAdd("contractors", contractor("Y"))
	third := f.store(t, repeat)
	assert.Equal(t, 0, third.Links, "a stored pair is not linked again")
	assert.Len(t, ormtest.Links(t, f.db, jt), 3)
}

func TestStoreLinkDeclaredFromBothSides(t *testing.T) {
	f := setup(t)

	company := f.build(t, "Company", map[string]interface{}{"name": "A"})
	contractor := f.build(t, "Contractor", map[string]interface{}{"name": "X"})
	company.MustAdd("contractors", contractor)
	contractor.MustAdd("companys", company)

	result := f.store(t, company)

	assert.Equal(t, 1, result.Links)
	assert.Equal(t, [][2]int64{{mustID(t, company), mustID(t, contractor)}}, ormtest.Links(t, f.db, f.registry.JoinTables()[0]))
}

func TestStoreReferenceCycle(t *testing.T) {
	f := setup(t)

	company := f.build(t, "Company", map[string]interface{}{"name": "Company A"})
	ceo := f.build(t, "CEO", map[string]interface{}{"name": "Jane"})
	company.MustSetRef("CEO", ceo)
	ceo.MustSetRef("company", company)

	result := f.store(t, company)
	assert.Equal(t, 2, result.Inserted)

	companyID, ceoID := mustID(t, company), mustID(t, ceo)
	assert.EqualValues(t, ceoID, ormtest.Column(t, f.db, "companies", "ceoid", companyID))
	assert.EqualValues(t, companyID, ormtest.Column(t, f.db, "ceos", "companyid", ceoID))
}

func TestStoreOneToManySetsReverse(t *testing.T) {
	f := setup(t)

	company := f.build(t, "Company", map[string]interface{}{"name": "Company A"})
	sales := f.build(t, "Department", map[string]interface{}{"name": "Sales"})
	support := f.build(t, "Department", map[string]interface{}{"name": "Support"})
	company.MustAdd("departments", sales, support)

	f.store(t, company)

	assert.Same(t, company, sales.Ref("company"))
	rows := crud.NewRows(f.db, dialect.SQLite{}, nil)
	department := f.registry.MustGet("Department")
	reverse, _ := department.Reference("company")
	ids, err := rows.Referencing(context.Background(), department, reverse, mustID(t, company))
	require.NoError(t, err)
	assert.Equal(t, []int64{mustID(t, sales), mustID(t, support)}, ids)
}

func TestStoreOneToManyElementWrittenEarlier(t *testing.T) {
	f := setup(t)

	// The department is stored as a root before the company lists it.
	company := f.build(t, "Company", map[string]interface{}{"name": "Company A"})
	dept := f.build(t, "Department", map[string]interface{}{"name": "Board"})
	company.MustAdd("departments", dept)

	_, err := f.writer.StoreAll(context.Background(), []*object.Object{dept, company}, f.opts)
	require.NoError(t, err)

	assert.EqualValues(t, mustID(t, company), ormtest.Column(t, f.db, "departments", "companyid", mustID(t, dept)))
}

func TestStoreRootWithIdentityUpdates(t *testing.T) {
	f := setup(t)

	ceo := f.build(t, "CEO", map[string]interface{}{"name": "Jane", "age": 40})
	f.store(t, ceo)

	require.NoError(t, ceo.Set("age", 41))
	result := f.store(t, ceo)

	assert.Equal(t, 1, result.Updated)
	assert.EqualValues(t, 41, ormtest.Column(t, f.db, "ceos", "age", mustID(t, ceo)))
}

func TestStoreFailureRollsBack(t *testing.T) {
	f := setup(t)

	company := f.build(t, "Company", map[string]interface{}{"name": "Company A"})
	company.MustSetRef("address", f.build(t, "Address", map[string]interface{}{"address": "1 Main St"}))
	unnamed := f.build(t, "Department", nil)
	company.MustAdd("departments", unnamed)

	_, err := f.writer.Store(context.Background(), company, f.opts)
	require.Error(t, err)
	assert.True(t, crud.IsStoreIntegrity(err), "got %v", err)

	assert.False(t, company.HasIdentity())
	assert.False(t, company.Ref("address").HasIdentity())
	assert.False(t, unnamed.HasIdentity())
	assert.Equal(t, 0, ormtest.CountRows(t, f.db, "companies"))
	assert.Equal(t, 0, ormtest.CountRows(t, f.db, "addresses"))
}

func TestStoreMissingExamplePolicy(t *testing.T) {
	f := setup(t)
	f.opts.Examples = object.Policy{}

	company := f.build(t, "Company", map[string]interface{}{"name": "Company A"})
	company.MustSetRef("address", f.build(t, "Address", map[string]interface{}{"address": "1 Main St"}))

	_, err := f.writer.Store(context.Background(), company, f.opts)
	assert.True(t, query.IsQueryCompile(err), "got %v", err)
	assert.Equal(t, 0, ormtest.CountRows(t, f.db, "addresses"))
}

func TestStoreInsideOuterTransaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tx, err := transaction.NewManager(f.db).Begin(ctx)
	require.NoError(t, err)

	address := f.build(t, "Address", map[string]interface{}{"address": "1 Main St"})
	_, err = f.writer.Store(tx.Context(), address, f.opts)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.Equal(t, 0, ormtest.CountRows(t, f.db, "addresses"))
}

func TestLinkKeyIsSymmetric(t *testing.T) {
	registry := ormtest.Model(t)
	contractors, _ := registry.MustGet("Company").Collection("contractors")
	companys, _ := registry.MustGet("Contractor").Collection("companys")

	assert.Equal(t, linkKey(contractors, 1, 2), linkKey(companys, 2, 1))
	assert.NotEqual(t, linkKey(contractors, 1, 2), linkKey(contractors, 2, 1))
}
