package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/ormtest"
	"github.com/conduit-lang/objectstore/internal/orm/query"
)

const fixturesYAML = `
examples:
  Company: [name]
  Department: [name, company]
  Employee: [name]
objects:
  - label: acme
    class: Company
    fields: {name: Acme, vatNumber: 42}
    refs: {CEO: jane}
    collections:
      departments: [sales]
      contractors: [bob]
  - label: jane
    class: CEO
    fields: {name: Jane, age: 40}
    refs: {company: acme}
  - label: sales
    class: Department
    fields: {name: Sales}
  - label: bob
    types: [Employee, Contractor]
    fields: {name: Bob}
roots: [acme]
`

func TestFixtures(t *testing.T) {
	registry := ormtest.Model(t)
	f, err := DecodeFixtures(strings.NewReader(fixturesYAML))
	require.NoError(t, err)

	policy, err := f.Policy(registry)
	require.NoError(t, err)
	fields, ok := policy.For(registry.MustGet("Contractor"))
	require.True(t, ok, "the Employee policy covers contractors")
	assert.Equal(t, []string{"name"}, []string(fields))

	roots, err := f.Build(registry)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	acme := roots[0]
	assert.Equal(t, "Company", acme.Class().Name)
	vat, _ := acme.Get("vatNumber")
	assert.Equal(t, int64(42), vat)

	ceo := acme.Ref("CEO")
	require.NotNil(t, ceo)
	assert.Same(t, acme, ceo.Ref("company"))
	require.Len(t, acme.Collection("departments"), 1)
	bob := acme.Collection("contractors")[0]
	assert.Equal(t, "Contractor", bob.Class().Name)
}

func TestFixturesErrors(t *testing.T) {
	registry := ormtest.Model(t)

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown class", "objects: [{class: Planet}]"},
		{"no class", "objects: [{fields: {name: x}}]"},
		{"class and types", "objects: [{class: CEO, types: [Employee]}]"},
		{"ambiguous types", "objects: [{types: [Employee]}]"},
		{"unknown label", "objects: [{class: Department, fields: {name: x}, refs: {company: nowhere}}]"},
		{"duplicate label", "objects: [{label: a, class: Address}, {label: a, class: Address}]"},
		{"unknown field", "objects: [{class: Address, fields: {colour: red}}]"},
		{"unknown root", "objects: [{label: a, class: Address}]\nroots: [b]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFixtures(strings.NewReader(tt.yaml))
			require.NoError(t, err)
			_, err = f.Build(registry)
			assert.Error(t, err)
		})
	}

	f, err := DecodeFixtures(strings.NewReader("examples: {Planet: [name]}"))
	require.NoError(t, err)
	_, err = f.Policy(registry)
	assert.Error(t, err)

	f, err = DecodeFixtures(strings.NewReader("examples: {Company: [departments]}"))
	require.NoError(t, err)
	_, err = f.Policy(registry)
	assert.Error(t, err, "collections cannot be example fields")
}

func TestQueryDocument(t *testing.T) {
	registry := ormtest.Model(t)
	doc, err := DecodeQuery(strings.NewReader(`
from:
  - {alias: d, class: Department}
  - {alias: c, class: Company}
select: [d.name, c.name]
where:
  and:
    - {left: d.company, op: "=", right: c}
    - or:
        - {left: c.name, op: like, value: "Comp%"}
        - not: {left: c.vatNumber, op: is null}
    - {left: c, op: "=", identity: 3}
order_by: [c.name]
`))
	require.NoError(t, err)

	q, err := doc.Build(registry)
	require.NoError(t, err)

	stmt, err := query.NewCompiler(dialect.Postgres{}, registry, nil).Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT a1_."name" AS a1_name, a2_."name" AS a2_name FROM "departments" AS a1_, "companies" AS a2_ `+
			`WHERE a1_."companyid" = a2_."id" AND (a2_."name" LIKE $1 OR NOT (a2_."vatnumber" IS NULL)) AND a2_."id" = $2 `+
			`ORDER BY a2_."name", a1_."id", a2_."id"`,
		stmt.SQL)
	assert.Equal(t, []interface{}{"Comp%", int64(3)}, stmt.Args)
	assert.Len(t, stmt.Joins, 1)
}

func TestQueryDocumentErrors(t *testing.T) {
	registry := ormtest.Model(t)

	for name, src := range map[string]string{
		"unknown class":    "from: [{class: Planet}]",
		"duplicate alias":  "from: [{alias: a, class: Company}, {alias: a, class: CEO}]",
		"unknown alias":    "from: [{alias: c, class: Company}]\nselect: [x.name]",
		"bad operator":     "from: [{alias: c, class: Company}]\nselect: [c]\nwhere: {left: c.name, op: '~', value: x}",
		"empty constraint": "from: [{alias: c, class: Company}]\nselect: [c]\nwhere: {}",
	} {
		t.Run(name, func(t *testing.T) {
			doc, err := DecodeQuery(strings.NewReader(src))
			require.NoError(t, err)
			_, err = doc.Build(registry)
			assert.Error(t, err)
		})
	}
}
