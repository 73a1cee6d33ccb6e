package codegen

import (
	"fmt"

	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// IndexGenerator generates CREATE INDEX statements
type IndexGenerator struct {
	dialect dialect.Dialect
}

// NewIndexGenerator creates a new index generator
func NewIndexGenerator(d dialect.Dialect) *IndexGenerator {
	return &IndexGenerator{dialect: d}
}

// GenerateIndexes generates unique indexes for fields marked unique
func (g *IndexGenerator) GenerateIndexes(class *schema.ClassSchema) []string {
	var indexes []string
	for _, field := range class.Fields {
		if !field.Unique {
			continue
		}
		indexName := fmt.Sprintf("idx_%s_%s_unique", class.TableName, field.Column)
		indexes = append(indexes, fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s);",
			g.dialect.Quote(indexName), g.dialect.Quote(class.TableName), g.dialect.Quote(field.Column)))
	}
	return indexes
}

// GenerateForeignKeyIndexes generates indexes on foreign key columns.
// Example lookups and one-to-many collection loads filter on them.
func (g *IndexGenerator) GenerateForeignKeyIndexes(class *schema.ClassSchema) []string {
	indexes := make([]string, 0, len(class.References))
	for _, ref := range class.References {
		indexName := fmt.Sprintf("idx_%s_%s", class.TableName, ref.Column)
		indexes = append(indexes, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s);",
			g.dialect.Quote(indexName), g.dialect.Quote(class.TableName), g.dialect.Quote(ref.Column)))
	}
	return indexes
}

// GenerateAllIndexes generates all indexes for a class (field + FK)
func (g *IndexGenerator) GenerateAllIndexes(class *schema.ClassSchema) []string {
	return append(g.GenerateIndexes(class), g.GenerateForeignKeyIndexes(class)...)
}

// GenerateJoinTableIndex indexes the second join column; the primary key already covers the first
func (g *IndexGenerator) GenerateJoinTableIndex(jt schema.JoinTable) string {
	indexName := fmt.Sprintf("idx_%s_%s", jt.Name, jt.TargetColumn)
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s);",
		g.dialect.Quote(indexName), g.dialect.Quote(jt.Name), g.dialect.Quote(jt.TargetColumn))
}
