package codegen

import (
	"testing"

	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

func TestConstraintName(t *testing.T) {
	if got := ConstraintName("companies", "ceoid"); got != "companies_ceoid_fkey" {
		t.Errorf("ConstraintName() = %q", got)
	}
}

func TestConstraintGenerator_ForeignKeys(t *testing.T) {
	registry := loadModel(t)
	gen := NewConstraintGenerator(dialect.Postgres{})

	got, err := gen.GenerateForeignKeyConstraints(registry.MustGet("Company"), registry)
	if err != nil {
		t.Fatalf("GenerateForeignKeyConstraints() error = %v", err)
	}

	want := []string{
		`ALTER TABLE "companies" ADD CONSTRAINT "companies_addressid_fkey" FOREIGN KEY ("addressid") REFERENCES "addresses" ("id");`,
		`ALTER TABLE "companies" ADD CONSTRAINT "companies_ceoid_fkey" FOREIGN KEY ("ceoid") REFERENCES "ceos" ("id");`,
	}
	if len(got) != len(want) {
		t.Fatalf("GenerateForeignKeyConstraints() = %d constraints, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("constraint %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConstraintGenerator_UnknownTarget(t *testing.T) {
	class := schema.NewClassSchema("Orphan")
	class.AddReference(&schema.Reference{Name: "parent", TargetClass: "Missing"})

	if _, err := NewConstraintGenerator(dialect.Postgres{}).GenerateForeignKeyConstraints(class, schema.NewRegistry()); err == nil {
		t.Error("a reference to an unknown class should fail")
	}
}
