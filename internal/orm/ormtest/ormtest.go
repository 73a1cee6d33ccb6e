// Package ormtest provides the fixture model and SQLite helpers shared by the object store tests.
package ormtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/objectstore/internal/orm/codegen"
	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// ModelYAML is the company model used across tests. Company and CEO reference each
// other, and companies share contractors through a join table.
const ModelYAML = `
classes:
  - name: Address
    fields:
      - {name: address, type: string, required: true}

  - name: Company
    fields:
      - {name: name, type: string, required: true}
      - {name: vatNumber, type: int, unique: true}
    references:
      - {name: address, class: Address}
      - {name: CEO, class: CEO}
    collections:
      - {name: departments, kind: one_to_many, class: Department, reverse: company}
      - {name: contractors, kind: many_to_many, class: Contractor, reverse: companys}

  - name: Department
    fields:
      - {name: name, type: string, required: true}
    references:
      - {name: company, class: Company}

  - name: CEO
    implements: [Employee]
    fields:
      - {name: name, type: string, required: true}
      - {name: fullTime, type: bool}
      - {name: age, type: int}
    references:
      - {name: address, class: Address}
      - {name: company, class: Company}

  - name: Contractor
    implements: [Employee]
    fields:
      - {name: name, type: string, required: true}
    references:
      - {name: personalAddress, class: Address}
      - {name: businessAddress, class: Address}
    collections:
      - {name: companys, kind: many_to_many, class: Company, reverse: contractors}
`

// Model loads the fixture model
func Model(t testing.TB) *schema.Registry {
	t.Helper()
	registry, err := schema.LoadModel(strings.NewReader(ModelYAML))
	require.NoError(t, err)
	return registry
}

// Examples returns the example policy of the fixture model
func Examples() object.Policy {
	return object.Policy{
		"Address":    {"address"},
		"Company":    {"name"},
		"Department": {"name", "company"},
		"CEO":        {"name"},
		"Contractor": {"name"},
	}
}

// OpenSQLite opens a file-backed SQLite database in a temporary directory and
// creates the registry's tables in it
func OpenSQLite(t testing.TB, registry *schema.Registry) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", filepath.Join(t.TempDir(), "store.db"))
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, codegen.NewDDLGenerator(dialect.SQLite{}).Apply(context.Background(), db, registry, nil))
	return db
}

// Build creates an object of a registered class with the given scalar fields
func Build(t testing.TB, registry *schema.Registry, class string, fields map[string]interface{}) *object.Object {
	t.Helper()
	obj := object.New(registry.MustGet(class))
	for name, value := range fields {
		require.NoError(t, obj.Set(name, value))
	}
	return obj
}

// CountRows returns the number of rows in a table
func CountRows(t testing.TB, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table)).Scan(&n))
	return n
}

// Column returns one column of the row with the given identity, nil when NULL
func Column(t testing.TB, db *sql.DB, table, column string, id int64) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, db.QueryRow(fmt.Sprintf(`SELECT "%s" FROM "%s" WHERE "id" = ?`, column, table), id).Scan(&v))
	return v
}

// Links returns the (owner, target) pairs of a join table ordered by both columns
func Links(t testing.TB, db *sql.DB, jt schema.JoinTable) [][2]int64 {
	t.Helper()
	rows, err := db.Query(fmt.Sprintf(`SELECT "%s", "%s" FROM "%s" ORDER BY 1, 2`, jt.OwnerColumn, jt.TargetColumn, jt.Name))
	require.NoError(t, err)
	defer rows.Close()

	var pairs [][2]int64
	for rows.Next() {
		var pair [2]int64
		require.NoError(t, rows.Scan(&pair[0], &pair[1]))
		pairs = append(pairs, pair)
	}
	require.NoError(t, rows.Err())
	return pairs
}
