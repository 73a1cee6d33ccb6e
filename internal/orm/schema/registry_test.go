package schema

import (
	"strings"
	"testing"
)

func companyModel(t *testing.T) *Registry {
	t.Helper()

	registry := NewRegistry()

	address := NewClassSchema("Address").
		AddField(&Field{Name: "address", Type: &TypeSpec{BaseType: TypeString, Nullable: true}})

	company := NewClassSchema("Company").
		AddField(&Field{Name: "name", Type: &TypeSpec{BaseType: TypeString}}).
		AddField(&Field{Name: "vatNumber", Type: &TypeSpec{BaseType: TypeInt, Nullable: true}}).
		AddReference(&Reference{Name: "address", TargetClass: "Address", Nullable: true}).
		AddCollection(&Collection{Name: "departments", Kind: OneToMany, TargetClass: "Department", Reverse: "company"}).
		AddCollection(&Collection{Name: "contractors", Kind: ManyToMany, TargetClass: "Contractor", Reverse: "companys"})

	department := NewClassSchema("Department").
		AddField(&Field{Name: "name", Type: &TypeSpec{BaseType: TypeString}}).
		AddReference(&Reference{Name: "company", TargetClass: "Company", Nullable: true})

	contractor := NewClassSchema("Contractor").
		AddField(&Field{Name: "name", Type: &TypeSpec{BaseType: TypeString}}).
		AddCollection(&Collection{Name: "companys", Kind: ManyToMany, TargetClass: "Company", Reverse: "contractors",
			ForeignKey: "contractorid", AssociationKey: "companyid"})

	for _, class := range []*ClassSchema{address, company, department, contractor} {
		if err := registry.Register(class); err != nil {
			t.Fatalf("register %s: %v", class.Name, err)
		}
	}
	return registry
}

func TestRegistry(t *testing.T) {
	t.Run("register and get schema", func(t *testing.T) {
		registry := companyModel(t)

		retrieved, exists := registry.Get("Company")
		if !exists {
			t.Fatal("schema should exist")
		}
		if retrieved.TableName != "companies" {
			t.Errorf("expected companies, got %s", retrieved.TableName)
		}
		if got := registry.List(); strings.Join(got, ",") != "Address,Company,Department,Contractor" {
			t.Errorf("unexpected registration order: %v", got)
		}
	})

	t.Run("duplicate registration", func(t *testing.T) {
		registry := companyModel(t)
		if err := registry.Register(NewClassSchema("Company")); err == nil {
			t.Error("expected error for duplicate registration")
		}
	})

	t.Run("column collision is rejected", func(t *testing.T) {
		registry := NewRegistry()
		class := NewClassSchema("Broken").
			AddField(&Field{Name: "addressid"}).
			AddReference(&Reference{Name: "address", TargetClass: "Address"})
		if err := registry.Register(class); err == nil {
			t.Error("expected column collision error")
		}
	})

	t.Run("one-to-many needs reverse", func(t *testing.T) {
		registry := NewRegistry()
		class := NewClassSchema("Owner").
			AddCollection(&Collection{Name: "items", Kind: OneToMany, TargetClass: "Item"})
		if err := registry.Register(class); err == nil {
			t.Error("expected missing reverse error")
		}
	})

	t.Run("validate all", func(t *testing.T) {
		registry := companyModel(t)
		if err := registry.ValidateAll(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("validate all reports unknown targets", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(NewClassSchema("Lonely").
			AddReference(&Reference{Name: "friend", TargetClass: "Ghost"}))
		err := registry.ValidateAll()
		if err == nil || !strings.Contains(err.Error(), "Ghost") {
			t.Errorf("expected unknown class error, got %v", err)
		}
	})

	t.Run("many-to-many sides must agree", func(t *testing.T) {
		registry := companyModel(t)
		contractor := registry.MustGet("Contractor")
		coll, _ := contractor.Collection("companys")
		coll.JoinTable = "elsewhere"
		if err := registry.ValidateAll(); err == nil {
			t.Error("expected join table disagreement")
		}
	})
}

func TestRegistryJoinTables(t *testing.T) {
	registry := companyModel(t)

	tables := registry.JoinTables()
	if len(tables) != 1 {
		t.Fatalf("expected one shared join table, got %d", len(tables))
	}
	jt := tables[0]
	if jt.Name != "companies_contractors" {
		t.Errorf("unexpected join table name %s", jt.Name)
	}
	if jt.OwnerColumn != "companyid" || jt.TargetColumn != "contractorid" {
		t.Errorf("unexpected join columns %s/%s", jt.OwnerColumn, jt.TargetColumn)
	}
}

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewClassSchema("Employee").AddField(&Field{Name: "name"}))
	registry.Register(NewClassSchema("Manager").AddField(&Field{Name: "title"}))
	ceo := NewClassSchema("CEO").AddField(&Field{Name: "salary"})
	ceo.Implements = []string{"Employee", "Manager"}
	registry.Register(ceo)

	t.Run("name shared with an implementer is ambiguous", func(t *testing.T) {
		class, err := registry.Resolve("Manager")
		if err == nil {
			t.Errorf("expected ambiguity between Manager and CEO, got %s", class.Name)
		}
	})

	t.Run("union resolves to the covering class", func(t *testing.T) {
		class, err := registry.Resolve("Employee", "Manager")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if class.Name != "CEO" {
			t.Errorf("expected CEO, got %s", class.Name)
		}
	})

	t.Run("uncovered union fails", func(t *testing.T) {
		if _, err := registry.Resolve("Employee", "Ghost"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestDependencyOrder(t *testing.T) {
	registry := companyModel(t)

	order, cycles := registry.DependencyOrder()
	if len(cycles) != 0 {
		t.Errorf("unexpected cycles: %v", cycles)
	}

	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}
	if pos["Address"] > pos["Company"] {
		t.Error("Address must precede Company")
	}
	if pos["Company"] > pos["Department"] {
		t.Error("Company must precede Department")
	}
}

func TestDependencyOrderWithCycle(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewClassSchema("CEO").AddReference(&Reference{Name: "company", TargetClass: "Company"}))
	registry.Register(NewClassSchema("Company").AddReference(&Reference{Name: "ceo", TargetClass: "CEO"}))

	order, cycles := registry.DependencyOrder()
	if len(order) != 2 {
		t.Errorf("expected every class in the order, got %v", order)
	}
	if len(cycles) == 0 {
		t.Fatal("expected a cycle")
	}
	if !strings.Contains(FormatCycles(cycles), "CEO -> Company -> CEO") {
		t.Errorf("unexpected cycle format: %s", FormatCycles(cycles))
	}
}
