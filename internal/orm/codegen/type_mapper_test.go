package codegen

import (
	"testing"

	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

func intPtr(i int) *int { return &i }

func TestTypeMapper_MapType(t *testing.T) {
	tests := []struct {
		name     string
		spec     *schema.TypeSpec
		postgres string
		sqlite   string
	}{
		{"string default length", &schema.TypeSpec{BaseType: schema.TypeString}, "VARCHAR(255)", "VARCHAR(255)"},
		{"string with length", &schema.TypeSpec{BaseType: schema.TypeString, Length: intPtr(40)}, "VARCHAR(40)", "VARCHAR(40)"},
		{"text", &schema.TypeSpec{BaseType: schema.TypeText}, "TEXT", "TEXT"},
		{"int", &schema.TypeSpec{BaseType: schema.TypeInt}, "INTEGER", "INTEGER"},
		{"bigint", &schema.TypeSpec{BaseType: schema.TypeBigInt}, "BIGINT", "BIGINT"},
		{"float", &schema.TypeSpec{BaseType: schema.TypeFloat}, "DOUBLE PRECISION", "REAL"},
		{"decimal", &schema.TypeSpec{BaseType: schema.TypeDecimal, Precision: intPtr(10), Scale: intPtr(2)}, "NUMERIC(10,2)", "NUMERIC(10,2)"},
		{"bool", &schema.TypeSpec{BaseType: schema.TypeBool}, "BOOLEAN", "BOOLEAN"},
		{"timestamp", &schema.TypeSpec{BaseType: schema.TypeTimestamp}, "TIMESTAMP WITH TIME ZONE", "TIMESTAMP"},
		{"uuid", &schema.TypeSpec{BaseType: schema.TypeUUID}, "UUID", "TEXT"},
		{"json", &schema.TypeSpec{BaseType: schema.TypeJSON}, "JSONB", "TEXT"},
	}

	pg, lite := NewTypeMapper("postgres"), NewTypeMapper("sqlite")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pg.MapType(tt.spec)
			if err != nil {
				t.Fatalf("MapType() error = %v", err)
			}
			if got != tt.postgres {
				t.Errorf("postgres MapType() = %q, want %q", got, tt.postgres)
			}
			got, err = lite.MapType(tt.spec)
			if err != nil {
				t.Fatalf("MapType() error = %v", err)
			}
			if got != tt.sqlite {
				t.Errorf("sqlite MapType() = %q, want %q", got, tt.sqlite)
			}
		})
	}
}

func TestTypeMapper_MapTypeNil(t *testing.T) {
	if _, err := NewTypeMapper("postgres").MapType(nil); err == nil {
		t.Error("MapType(nil) should fail")
	}
}

func TestTypeMapper_MapNullability(t *testing.T) {
	tm := NewTypeMapper("postgres")
	if got := tm.MapNullability(&schema.TypeSpec{Nullable: true}); got != "NULL" {
		t.Errorf("MapNullability(nullable) = %q, want NULL", got)
	}
	if got := tm.MapNullability(&schema.TypeSpec{}); got != "NOT NULL" {
		t.Errorf("MapNullability(required) = %q, want NOT NULL", got)
	}
}

func TestTypeMapper_IdentityColumn(t *testing.T) {
	if got := NewTypeMapper("sqlite").IdentityColumn(); got != "INTEGER PRIMARY KEY AUTOINCREMENT" {
		t.Errorf("sqlite IdentityColumn() = %q", got)
	}
	if got := NewTypeMapper("postgres").IdentityColumn(); got != "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY" {
		t.Errorf("postgres IdentityColumn() = %q", got)
	}
}
