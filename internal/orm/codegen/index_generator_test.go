package codegen

import (
	"testing"

	"github.com/conduit-lang/objectstore/internal/orm/dialect"
)

func TestIndexGenerator_GenerateAllIndexes(t *testing.T) {
	registry := loadModel(t)
	gen := NewIndexGenerator(dialect.SQLite{})

	got := gen.GenerateAllIndexes(registry.MustGet("Company"))
	want := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS "idx_companies_vatnumber_unique" ON "companies" ("vatnumber");`,
		`CREATE INDEX IF NOT EXISTS "idx_companies_addressid" ON "companies" ("addressid");`,
		`CREATE INDEX IF NOT EXISTS "idx_companies_ceoid" ON "companies" ("ceoid");`,
	}
	if len(got) != len(want) {
		t.Fatalf("GenerateAllIndexes() = %v, want %d indexes", got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIndexGenerator_NoIndexesForPlainClass(t *testing.T) {
	registry := loadModel(t)
	if got := NewIndexGenerator(dialect.SQLite{}).GenerateAllIndexes(registry.MustGet("Contractor")); len(got) != 0 {
		t.Errorf("GenerateAllIndexes() = %v, want none", got)
	}
}

func TestIndexGenerator_GenerateJoinTableIndex(t *testing.T) {
	registry := loadModel(t)
	got := NewIndexGenerator(dialect.Postgres{}).GenerateJoinTableIndex(registry.JoinTables()[0])
	want := `CREATE INDEX IF NOT EXISTS "idx_companies_contractors_contractorid" ON "companies_contractors" ("contractorid");`
	if got != want {
		t.Errorf("GenerateJoinTableIndex() = %q, want %q", got, want)
	}
}
