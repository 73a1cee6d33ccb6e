package query

import "strings"

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpLike
	OpIsNull
	OpIsNotNull
)

// String returns the SQL form of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpLike:
		return "LIKE"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	default:
		return "UNKNOWN"
	}
}

// ParseOperator parses the SQL form of an operator, case-insensitively.
// "==" and "!=" are accepted as aliases of "=" and "<>".
func ParseOperator(s string) (Operator, error) {
	switch strings.ToUpper(strings.Join(strings.Fields(s), " ")) {
	case "=", "==":
		return OpEqual, nil
	case "<>", "!=":
		return OpNotEqual, nil
	case ">":
		return OpGreaterThan, nil
	case ">=":
		return OpGreaterThanOrEqual, nil
	case "<":
		return OpLessThan, nil
	case "<=":
		return OpLessThanOrEqual, nil
	case "LIKE":
		return OpLike, nil
	case "IS NULL":
		return OpIsNull, nil
	case "IS NOT NULL":
		return OpIsNotNull, nil
	default:
		return 0, compileError("unknown operator %q", s)
	}
}

// unary returns true for operators without a right operand
func (o Operator) unary() bool {
	return o == OpIsNull || o == OpIsNotNull
}

// Constraint is a node of a query's constraint tree
type Constraint interface {
	constraint()
}

// SimpleConstraint compares a field (or reference, for null tests) with a literal or another field
type SimpleConstraint struct {
	Left     Operand
	Operator Operator
	Right    Operand
}

// ClassConstraint compares object identities: a reference or class against a class,
// or against a literal identity
type ClassConstraint struct {
	Left     Operand
	Operator Operator
	Right    Operand
}

// LogicalOp combines the members of a ConstraintSet
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
)

// String returns the SQL keyword
func (o LogicalOp) String() string {
	if o == LogicalOr {
		return "OR"
	}
	return "AND"
}

// ConstraintSet combines constraints with AND or OR
type ConstraintSet struct {
	Op          LogicalOp
	Constraints []Constraint
}

// NotConstraint negates a constraint
type NotConstraint struct {
	Inner Constraint
}

func (*SimpleConstraint) constraint() {}
func (*ClassConstraint) constraint()  {}
func (*ConstraintSet) constraint()    {}
func (*NotConstraint) constraint()    {}

// Compare builds a value comparison
func Compare(left Operand, op Operator, right Operand) *SimpleConstraint {
	return &SimpleConstraint{Left: left, Operator: op, Right: right}
}

// Eq builds left = right
func Eq(left, right Operand) *SimpleConstraint {
	return Compare(left, OpEqual, right)
}

// IsNull builds a null test on a field or reference
func IsNull(operand Operand) *SimpleConstraint {
	return &SimpleConstraint{Left: operand, Operator: OpIsNull}
}

// IsNotNull builds a not-null test on a field or reference
func IsNotNull(operand Operand) *SimpleConstraint {
	return &SimpleConstraint{Left: operand, Operator: OpIsNotNull}
}

// Contains correlates a reference with a class: ref's foreign key equals class identity
func Contains(ref *QueryObjectReference, class *QueryClass) *ClassConstraint {
	return &ClassConstraint{Left: ref, Operator: OpEqual, Right: class}
}

// SameAs requires two classes to be the same object
func SameAs(a, b *QueryClass) *ClassConstraint {
	return &ClassConstraint{Left: a, Operator: OpEqual, Right: b}
}

// HasIdentity restricts a class or reference to a literal identity
func HasIdentity(operand Operand, id int64) *ClassConstraint {
	return &ClassConstraint{Left: operand, Operator: OpEqual, Right: Value(id)}
}

// And combines constraints with AND
func And(constraints ...Constraint) *ConstraintSet {
	return &ConstraintSet{Op: LogicalAnd, Constraints: append([]Constraint(nil), constraints...)}
}

// Or combines constraints with OR
func Or(constraints ...Constraint) *ConstraintSet {
	return &ConstraintSet{Op: LogicalOr, Constraints: append([]Constraint(nil), constraints...)}
}

// Not negates a constraint
func Not(c Constraint) *NotConstraint {
	return &NotConstraint{Inner: c}
}
