package codegen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// DDLGenerator generates CREATE TABLE statements from class schemas.
// It bootstraps a store; it is not a migration system.
type DDLGenerator struct {
	dialect     dialect.Dialect
	typeMapper  *TypeMapper
	constraints *ConstraintGenerator
	indexes     *IndexGenerator
}

// NewDDLGenerator creates a new DDL generator for a dialect
func NewDDLGenerator(d dialect.Dialect) *DDLGenerator {
	return &DDLGenerator{
		dialect:     d,
		typeMapper:  NewTypeMapper(d.Name()),
		constraints: NewConstraintGenerator(d),
		indexes:     NewIndexGenerator(d),
	}
}

func (g *DDLGenerator) inlineReferences() bool {
	return g.dialect.Name() == "sqlite"
}

// GenerateCreateTable generates a CREATE TABLE statement for a class.
// Columns are the identity, then scalar fields, then reference foreign keys, in declaration order.
func (g *DDLGenerator) GenerateCreateTable(class *schema.ClassSchema, registry *schema.Registry) (string, error) {
	if class == nil {
		return "", fmt.Errorf("class cannot be nil")
	}

	q := g.dialect.Quote
	columnDefs := []string{fmt.Sprintf("%s %s", q(class.IdentityColumn()), g.typeMapper.IdentityColumn())}

	for _, field := range class.Fields {
		columnType, err := g.typeMapper.MapType(field.Type)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", field.Name, err)
		}
		def := fmt.Sprintf("%s %s %s", q(field.Column), columnType, g.typeMapper.MapNullability(field.Type))
		columnDefs = append(columnDefs, def)
	}

	for _, ref := range class.References {
		nullability := "NULL"
		if !ref.Nullable {
			nullability = "NOT NULL"
		}
		def := fmt.Sprintf("%s BIGINT %s", q(ref.Column), nullability)
		if g.inlineReferences() {
			target, ok := registry.Get(ref.TargetClass)
			if !ok {
				return "", fmt.Errorf("reference %s.%s targets unknown class %s", class.Name, ref.Name, ref.TargetClass)
			}
			def += fmt.Sprintf(" REFERENCES %s (%s)", q(target.TableName), q(target.IdentityColumn()))
		}
		columnDefs = append(columnDefs, def)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", q(class.TableName)))
	for i, def := range columnDefs {
		b.WriteString("  ")
		b.WriteString(def)
		if i < len(columnDefs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")

	return b.String(), nil
}

// GenerateJoinTable generates the CREATE TABLE statement of a many-to-many join table.
// The primary key over both columns keeps each pair unique.
func (g *DDLGenerator) GenerateJoinTable(jt schema.JoinTable, registry *schema.Registry) (string, error) {
	owner, ok := registry.Get(jt.OwnerClass)
	if !ok {
		return "", fmt.Errorf("join table %s: unknown class %s", jt.Name, jt.OwnerClass)
	}
	target, ok := registry.Get(jt.TargetClass)
	if !ok {
		return "", fmt.Errorf("join table %s: unknown class %s", jt.Name, jt.TargetClass)
	}

	q := g.dialect.Quote
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s BIGINT NOT NULL REFERENCES %s (%s),\n  %s BIGINT NOT NULL REFERENCES %s (%s),\n  PRIMARY KEY (%s, %s)\n);",
		q(jt.Name),
		q(jt.OwnerColumn), q(owner.TableName), q(owner.IdentityColumn()),
		q(jt.TargetColumn), q(target.TableName), q(target.IdentityColumn()),
		q(jt.OwnerColumn), q(jt.TargetColumn),
	), nil
}

// GenerateSchema generates every statement needed to bootstrap a registry, in execution order:
// class tables in dependency order, join tables, foreign key constraints, then indexes.
func (g *DDLGenerator) GenerateSchema(registry *schema.Registry) ([]string, error) {
	order, _ := registry.DependencyOrder()

	var statements []string
	for _, name := range order {
		class := registry.MustGet(name)
		ddl, err := g.GenerateCreateTable(class, registry)
		if err != nil {
			return nil, err
		}
		statements = append(statements, ddl)
	}

	for _, jt := range registry.JoinTables() {
		ddl, err := g.GenerateJoinTable(jt, registry)
		if err != nil {
			return nil, err
		}
		statements = append(statements, ddl)
	}

	if !g.inlineReferences() {
		for _, name := range order {
			fks, err := g.constraints.GenerateForeignKeyConstraints(registry.MustGet(name), registry)
			if err != nil {
				return nil, err
			}
			statements = append(statements, fks...)
		}
	}

	for _, name := range order {
		statements = append(statements, g.indexes.GenerateAllIndexes(registry.MustGet(name))...)
	}
	for _, jt := range registry.JoinTables() {
		statements = append(statements, g.indexes.GenerateJoinTableIndex(jt))
	}

	return statements, nil
}

// GenerateDropTable generates a DROP TABLE statement
func (g *DDLGenerator) GenerateDropTable(tableName string) string {
	if g.dialect.Name() == "sqlite" {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s;", g.dialect.Quote(tableName))
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", g.dialect.Quote(tableName))
}

// Execer is the subset of *sql.DB, *sql.Conn and *sql.Tx needed to apply DDL
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Apply generates and executes the bootstrap schema. Re-applying is safe: tables and
// indexes use IF NOT EXISTS and already-present constraints are skipped.
func (g *DDLGenerator) Apply(ctx context.Context, db Execer, registry *schema.Registry, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	statements, err := g.GenerateSchema(registry)
	if err != nil {
		return err
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if isDuplicateObject(err) {
				logger.Debug("constraint already present", zap.String("sql", stmt))
				continue
			}
			return fmt.Errorf("failed to apply %q: %w", firstLine(stmt), err)
		}
		logger.Debug("applied ddl", zap.String("sql", firstLine(stmt)))
	}
	return nil
}

// isDuplicateObject reports PostgreSQL duplicate_object (42710), raised when a constraint exists
func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42710"
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42710"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
