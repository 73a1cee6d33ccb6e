package codegen

import (
	"fmt"

	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// ConstraintGenerator generates foreign key constraints added after every table exists.
// Tables on a reference cycle (CEO -> Company -> CEO) rely on it under PostgreSQL.
type ConstraintGenerator struct {
	dialect dialect.Dialect
}

// NewConstraintGenerator creates a new constraint generator
func NewConstraintGenerator(d dialect.Dialect) *ConstraintGenerator {
	return &ConstraintGenerator{dialect: d}
}

// ConstraintName returns the name of the foreign key constraint on a column
func ConstraintName(table, column string) string {
	return fmt.Sprintf("%s_%s_fkey", table, column)
}

// GenerateForeignKeyConstraints generates FOREIGN KEY constraints for every reference of a class
func (g *ConstraintGenerator) GenerateForeignKeyConstraints(class *schema.ClassSchema, registry *schema.Registry) ([]string, error) {
	q := g.dialect.Quote
	constraints := make([]string, 0, len(class.References))

	for _, ref := range class.References {
		target, exists := registry.Get(ref.TargetClass)
		if !exists {
			return nil, fmt.Errorf("reference %s.%s targets unknown class %s", class.Name, ref.Name, ref.TargetClass)
		}

		constraints = append(constraints, fmt.Sprintf(
			"ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);",
			q(class.TableName),
			q(ConstraintName(class.TableName, ref.Column)),
			q(ref.Column),
			q(target.TableName),
			q(target.IdentityColumn()),
		))
	}

	return constraints, nil
}
