package query

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// Compiler translates query models into parameterized SELECT statements
type Compiler struct {
	dialect  dialect.Dialect
	registry *schema.Registry
	logger   *zap.Logger
}

// NewCompiler creates a compiler. When registry is non-nil every FROM class must be registered in it.
func NewCompiler(d dialect.Dialect, registry *schema.Registry, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{dialect: d, registry: registry, logger: logger}
}

// Dialect returns the compiler's dialect
func (c *Compiler) Dialect() dialect.Dialect {
	return c.dialect
}

// compilation holds the state of a single Compile call
type compilation struct {
	dialect dialect.Dialect
	aliases map[*QueryClass]string
	args    []interface{}
	stmt    *Statement
}

// Compile validates a query and renders it. Every failure wraps ErrQueryCompile.
func (c *Compiler) Compile(q *Query) (*Statement, error) {
	if q == nil {
		return nil, compileError("nil query")
	}
	if len(q.from) == 0 {
		return nil, compileError("query has no FROM classes")
	}
	if len(q.selects) == 0 {
		return nil, compileError("query selects nothing")
	}

	cp := &compilation{
		dialect: c.dialect,
		aliases: make(map[*QueryClass]string, len(q.from)),
		stmt:    &Statement{dialect: c.dialect},
	}

	from := make([]string, 0, len(q.from))
	for i, qc := range q.from {
		if qc == nil || qc.class == nil {
			return nil, compileError("FROM entry %d has no class", i+1)
		}
		if _, dup := cp.aliases[qc]; dup {
			return nil, compileError("class %s appears twice in FROM", qc.class.Name)
		}
		if c.registry != nil {
			registered, ok := c.registry.Get(qc.class.Name)
			if !ok || registered != qc.class {
				return nil, compileError("class %s is not registered", qc.class.Name)
			}
		}

		alias := fmt.Sprintf("a%d_", i+1)
		cp.aliases[qc] = alias
		cp.stmt.Sources = append(cp.stmt.Sources, Source{Alias: alias, Table: qc.class.TableName, Class: qc.class.Name})
		from = append(from, fmt.Sprintf("%s AS %s", c.dialect.Quote(qc.class.TableName), alias))
	}

	selectList := make([]string, 0, len(q.selects))
	for _, item := range q.selects {
		exprs, err := cp.project(item)
		if err != nil {
			return nil, err
		}
		selectList = append(selectList, exprs...)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if q.distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(strings.Join(selectList, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(strings.Join(from, ", "))

	if q.where != nil {
		where, err := cp.constraint(q.where, true)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	order, err := cp.orderBy(q)
	if err != nil {
		return nil, err
	}
	if len(order) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(order, ", "))
	}

	cp.stmt.SQL = sb.String()
	cp.stmt.Args = cp.args

	c.logger.Debug("compiled query",
		zap.String("sql", cp.stmt.SQL),
		zap.Int("args", len(cp.stmt.Args)),
		zap.Int("sources", len(cp.stmt.Sources)))

	return cp.stmt, nil
}

// column renders a qualified column reference
func (cp *compilation) column(alias, column string) string {
	return alias + "." + cp.dialect.Quote(column)
}

func (cp *compilation) bind(v interface{}) string {
	cp.args = append(cp.args, v)
	return cp.dialect.Placeholder(len(cp.args))
}

func (cp *compilation) alias(qc *QueryClass, what string) (string, error) {
	if qc == nil {
		return "", compileError("%s is not rooted at a class", what)
	}
	alias, ok := cp.aliases[qc]
	if !ok {
		name := "<nil>"
		if qc.class != nil {
			name = qc.class.Name
		}
		return "", compileError("%s references class %s which is not in FROM", what, name)
	}
	return alias, nil
}

func (cp *compilation) addColumn(alias string, class *schema.ClassSchema, member, column string, kind ColumnKind, spec *schema.TypeSpec) string {
	name := alias + column
	cp.stmt.Columns = append(cp.stmt.Columns, Column{
		Name:   name,
		Alias:  alias,
		Class:  class.Name,
		Member: member,
		Kind:   kind,
		Type:   ColumnTypeOf(spec.BaseType),
		Spec:   spec,
	})
	return fmt.Sprintf("%s AS %s", cp.column(alias, column), name)
}

// project renders one select-list item. A class expands to its identity followed by
// every scalar and reference column in declaration order.
func (cp *compilation) project(item Operand) ([]string, error) {
	switch it := item.(type) {
	case *QueryClass:
		alias, err := cp.alias(it, "selected class")
		if err != nil {
			return nil, err
		}
		class := it.class
		exprs := []string{cp.addColumn(alias, class, class.IdentityField, class.IdentityColumn(), IdentityColumn, identitySpec)}
		for _, f := range class.Fields {
			exprs = append(exprs, cp.addColumn(alias, class, f.Name, f.Column, FieldColumn, f.Type))
		}
		for _, ref := range class.References {
			exprs = append(exprs, cp.addColumn(alias, class, ref.Name, ref.Column, ReferenceColumn, identitySpec))
		}
		return exprs, nil

	case *QueryField:
		alias, member, column, kind, spec, err := cp.field(it)
		if err != nil {
			return nil, err
		}
		return []string{cp.addColumn(alias, it.Class.class, member, column, kind, spec)}, nil

	case *QueryObjectReference:
		alias, ref, err := cp.reference(it)
		if err != nil {
			return nil, err
		}
		return []string{cp.addColumn(alias, it.Class.class, ref.Name, ref.Column, ReferenceColumn, identitySpec)}, nil

	case QueryValue:
		return nil, compileError("literal %v cannot be selected", it.Value)

	default:
		return nil, compileError("unsupported select item %T", item)
	}
}

func (cp *compilation) field(f *QueryField) (alias, member, column string, kind ColumnKind, spec *schema.TypeSpec, err error) {
	if f == nil {
		return "", "", "", 0, nil, compileError("nil field")
	}
	alias, err = cp.alias(f.Class, "field "+f.Name)
	if err != nil {
		return "", "", "", 0, nil, err
	}
	class := f.Class.class
	if f.Name == class.IdentityField {
		return alias, f.Name, class.IdentityColumn(), IdentityColumn, identitySpec, nil
	}
	if sf, ok := class.Field(f.Name); ok {
		return alias, f.Name, sf.Column, FieldColumn, sf.Type, nil
	}
	return "", "", "", 0, nil, memberError(class, f.Name, "scalar field")
}

func (cp *compilation) reference(r *QueryObjectReference) (string, *schema.Reference, error) {
	if r == nil {
		return "", nil, compileError("nil reference")
	}
	alias, err := cp.alias(r.Class, "reference "+r.Name)
	if err != nil {
		return "", nil, err
	}
	ref, ok := r.Class.class.Reference(r.Name)
	if !ok {
		return "", nil, memberError(r.Class.class, r.Name, "reference")
	}
	return alias, ref, nil
}

func memberError(class *schema.ClassSchema, name, want string) error {
	switch {
	case class.HasCollection(name):
		return compileError("%s.%s is a collection, not a %s", class.Name, name, want)
	case class.HasField(name), class.HasReference(name):
		return compileError("%s.%s is not a %s", class.Name, name, want)
	default:
		return compileError("%s has no field %s", class.Name, name)
	}
}

// constraint renders a constraint subtree. conjunctive is true while every ancestor is an AND,
// which is when a reference equality is also recorded as a join.
func (cp *compilation) constraint(c Constraint, conjunctive bool) (string, error) {
	switch ct := c.(type) {
	case *SimpleConstraint:
		return cp.simple(ct)
	case *ClassConstraint:
		return cp.classConstraint(ct, conjunctive)
	case *ConstraintSet:
		if ct == nil || len(ct.Constraints) == 0 {
			return "", compileError("empty constraint set")
		}
		parts := make([]string, 0, len(ct.Constraints))
		for _, child := range ct.Constraints {
			sql, err := cp.constraint(child, conjunctive && ct.Op == LogicalAnd)
			if err != nil {
				return "", err
			}
			if _, nested := child.(*ConstraintSet); nested {
				sql = "(" + sql + ")"
			}
			parts = append(parts, sql)
		}
		return strings.Join(parts, " "+ct.Op.String()+" "), nil
	case *NotConstraint:
		if ct == nil || ct.Inner == nil {
			return "", compileError("NOT without a constraint")
		}
		sql, err := cp.constraint(ct.Inner, false)
		if err != nil {
			return "", err
		}
		return "NOT (" + sql + ")", nil
	default:
		return "", compileError("unsupported constraint %T", c)
	}
}

func (cp *compilation) simple(sc *SimpleConstraint) (string, error) {
	if sc == nil {
		return "", compileError("nil constraint")
	}

	var left string
	var spec *schema.TypeSpec
	switch l := sc.Left.(type) {
	case *QueryField:
		alias, _, column, _, s, err := cp.field(l)
		if err != nil {
			return "", err
		}
		left, spec = cp.column(alias, column), s
	case *QueryObjectReference:
		alias, ref, err := cp.reference(l)
		if err != nil {
			return "", err
		}
		if !sc.Operator.unary() {
			return "", compileError("reference %s can only be tested for null here, use a class constraint", l.Name)
		}
		left = cp.column(alias, ref.Column)
	default:
		return "", compileError("left side of a comparison must be a field, got %T", sc.Left)
	}

	if sc.Operator.unary() {
		if sc.Right != nil {
			return "", compileError("%s takes no right operand", sc.Operator)
		}
		return left + " " + sc.Operator.String(), nil
	}

	switch sc.Operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
	case OpLike:
		if !spec.IsText() {
			return "", compileError("LIKE requires a text field")
		}
	default:
		return "", compileError("unsupported operator %v", sc.Operator)
	}

	switch r := sc.Right.(type) {
	case QueryValue:
		if r.Value == nil {
			return "", compileError("compare with NULL using IsNull")
		}
		v, err := object.Normalize(spec, r.Value)
		if err != nil {
			return "", compileError("literal for %s: %v", left, err)
		}
		return fmt.Sprintf("%s %s %s", left, sc.Operator, cp.bind(v)), nil
	case *QueryField:
		alias, _, column, _, _, err := cp.field(r)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", left, sc.Operator, cp.column(alias, column)), nil
	case nil:
		return "", compileError("%s needs a right operand", sc.Operator)
	default:
		return "", compileError("cannot compare a field with %T", sc.Right)
	}
}

func (cp *compilation) classConstraint(cc *ClassConstraint, conjunctive bool) (string, error) {
	if cc == nil {
		return "", compileError("nil constraint")
	}
	if cc.Operator != OpEqual && cc.Operator != OpNotEqual {
		return "", compileError("class constraints support = and <> only, got %s", cc.Operator)
	}

	var leftAlias, leftColumn, target string
	switch l := cc.Left.(type) {
	case *QueryObjectReference:
		alias, ref, err := cp.reference(l)
		if err != nil {
			return "", err
		}
		leftAlias, leftColumn, target = alias, ref.Column, ref.TargetClass
	case *QueryClass:
		alias, err := cp.alias(l, "class constraint")
		if err != nil {
			return "", err
		}
		leftAlias, leftColumn, target = alias, l.class.IdentityColumn(), l.class.Name
	default:
		return "", compileError("left side of a class constraint must be a reference or class, got %T", cc.Left)
	}
	left := cp.column(leftAlias, leftColumn)

	switch r := cc.Right.(type) {
	case *QueryClass:
		alias, err := cp.alias(r, "class constraint")
		if err != nil {
			return "", err
		}
		if !r.class.Covers(target) && !covers(cc.Left, r.class.Name) {
			return "", compileError("%s cannot be compared with class %s", target, r.class.Name)
		}
		column := r.class.IdentityColumn()
		if _, isRef := cc.Left.(*QueryObjectReference); isRef && conjunctive && cc.Operator == OpEqual {
			cp.stmt.Joins = append(cp.stmt.Joins, Join{
				LeftAlias:   leftAlias,
				LeftColumn:  leftColumn,
				RightAlias:  alias,
				RightColumn: column,
			})
		}
		return fmt.Sprintf("%s %s %s", left, cc.Operator, cp.column(alias, column)), nil
	case QueryValue:
		if r.Value == nil {
			return "", compileError("compare with NULL using IsNull")
		}
		id, err := object.Normalize(identitySpec, r.Value)
		if err != nil {
			return "", compileError("identity literal: %v", err)
		}
		return fmt.Sprintf("%s %s %s", left, cc.Operator, cp.bind(id)), nil
	default:
		return "", compileError("right side of a class constraint must be a class or identity, got %T", cc.Right)
	}
}

// covers reports whether a left-hand class is a subtype of the named class
func covers(left Operand, name string) bool {
	qc, ok := left.(*QueryClass)
	return ok && qc.class.Covers(name)
}

func (cp *compilation) orderBy(q *Query) ([]string, error) {
	var order []string
	seen := make(map[string]bool)

	add := func(expr string) {
		if !seen[expr] {
			seen[expr] = true
			order = append(order, expr)
		}
	}

	for _, item := range q.orderBy {
		switch it := item.(type) {
		case *QueryField:
			alias, _, column, _, _, err := cp.field(it)
			if err != nil {
				return nil, err
			}
			add(cp.column(alias, column))
		case *QueryObjectReference:
			alias, ref, err := cp.reference(it)
			if err != nil {
				return nil, err
			}
			add(cp.column(alias, ref.Column))
		case *QueryClass:
			alias, err := cp.alias(it, "order by")
			if err != nil {
				return nil, err
			}
			add(cp.column(alias, it.class.IdentityColumn()))
		default:
			return nil, compileError("cannot order by %T", item)
		}
	}

	// Stable paging: break ties on every source identity
	if !q.distinct {
		for _, qc := range q.from {
			add(cp.column(cp.aliases[qc], qc.class.IdentityColumn()))
		}
	}
	return order, nil
}
