package document

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/objectstore/internal/orm/query"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// QueryDocument is the YAML form of a query model. Operands are written as
// "alias" for a FROM class or "alias.member" for one of its fields or references.
//
//	from:
//	  - {alias: d, class: Department}
//	  - {alias: c, class: Company}
//	select: [d.name, c.name]
//	where:
//	  and:
//	    - {left: d.company, op: "=", right: c}
//	    - {left: c.name, op: like, value: "Comp%"}
type QueryDocument struct {
	From     []FromDocument      `yaml:"from"`
	Select   []string            `yaml:"select"`
	Where    *ConstraintDocument `yaml:"where"`
	OrderBy  []string            `yaml:"order_by"`
	Distinct bool                `yaml:"distinct"`
}

// FromDocument names one FROM class
type FromDocument struct {
	Alias string `yaml:"alias"`
	Class string `yaml:"class"`
}

// ConstraintDocument is one node of a constraint tree. Exactly one of And, Or, Not
// or a comparison (Left with Op) is set. A comparison's right side is another
// operand (Right), a literal (Value) or a literal identity (Identity).
type ConstraintDocument struct {
	And []ConstraintDocument `yaml:"and"`
	Or  []ConstraintDocument `yaml:"or"`
	Not *ConstraintDocument  `yaml:"not"`

	Left     string      `yaml:"left"`
	Op       string      `yaml:"op"`
	Right    string      `yaml:"right"`
	Value    interface{} `yaml:"value"`
	Identity *int64      `yaml:"identity"`
}

// DecodeQuery reads a query document
func DecodeQuery(r io.Reader) (*QueryDocument, error) {
	var doc QueryDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode query: %w", err)
	}
	return &doc, nil
}

type queryScope struct {
	classes map[string]*query.QueryClass
}

// Build converts the document into a query model. Unknown aliases and classes are
// reported here; member and type errors are left to the compiler.
func (doc *QueryDocument) Build(registry *schema.Registry) (*query.Query, error) {
	scope := queryScope{classes: make(map[string]*query.QueryClass, len(doc.From))}
	b := query.NewBuilder()

	for _, from := range doc.From {
		class, ok := registry.Get(from.Class)
		if !ok {
			return nil, fmt.Errorf("from: unknown class %s", from.Class)
		}
		alias := from.Alias
		if alias == "" {
			alias = from.Class
		}
		if _, dup := scope.classes[alias]; dup {
			return nil, fmt.Errorf("from: duplicate alias %s", alias)
		}
		qc := query.NewQueryClass(class)
		scope.classes[alias] = qc
		b.From(qc)
	}

	for _, item := range doc.Select {
		operand, err := scope.operand(item)
		if err != nil {
			return nil, fmt.Errorf("select: %w", err)
		}
		b.Select(operand)
	}

	if doc.Where != nil {
		c, err := scope.constraint(doc.Where)
		if err != nil {
			return nil, fmt.Errorf("where: %w", err)
		}
		b.Where(c)
	}

	for _, item := range doc.OrderBy {
		operand, err := scope.operand(item)
		if err != nil {
			return nil, fmt.Errorf("order_by: %w", err)
		}
		b.OrderBy(operand)
	}

	if doc.Distinct {
		b.Distinct()
	}
	return b.Build(), nil
}

func (s queryScope) operand(path string) (query.Operand, error) {
	alias, member, hasMember := strings.Cut(path, ".")
	qc, ok := s.classes[alias]
	if !ok {
		return nil, fmt.Errorf("unknown alias %q", alias)
	}
	if !hasMember {
		return qc, nil
	}
	if qc.Schema().HasReference(member) {
		return qc.Ref(member), nil
	}
	return qc.Field(member), nil
}

func (s queryScope) constraint(doc *ConstraintDocument) (query.Constraint, error) {
	switch {
	case len(doc.And) > 0:
		return s.set(doc.And, query.And)
	case len(doc.Or) > 0:
		return s.set(doc.Or, query.Or)
	case doc.Not != nil:
		inner, err := s.constraint(doc.Not)
		if err != nil {
			return nil, err
		}
		return query.Not(inner), nil
	case doc.Left != "":
		return s.comparison(doc)
	default:
		return nil, fmt.Errorf("empty constraint")
	}
}

func (s queryScope) set(docs []ConstraintDocument, combine func(...query.Constraint) *query.ConstraintSet) (query.Constraint, error) {
	members := make([]query.Constraint, 0, len(docs))
	for i := range docs {
		c, err := s.constraint(&docs[i])
		if err != nil {
			return nil, err
		}
		members = append(members, c)
	}
	return combine(members...), nil
}

func (s queryScope) comparison(doc *ConstraintDocument) (query.Constraint, error) {
	left, err := s.operand(doc.Left)
	if err != nil {
		return nil, err
	}
	op, err := query.ParseOperator(doc.Op)
	if err != nil {
		return nil, err
	}

	if op == query.OpIsNull || op == query.OpIsNotNull {
		return &query.SimpleConstraint{Left: left, Operator: op}, nil
	}

	if doc.Identity != nil {
		return &query.ClassConstraint{Left: left, Operator: op, Right: query.Value(*doc.Identity)}, nil
	}

	if doc.Right == "" {
		return &query.SimpleConstraint{Left: left, Operator: op, Right: query.Value(doc.Value)}, nil
	}

	right, err := s.operand(doc.Right)
	if err != nil {
		return nil, err
	}
	if rc, ok := right.(*query.QueryClass); ok {
		return &query.ClassConstraint{Left: left, Operator: op, Right: rc}, nil
	}
	return &query.SimpleConstraint{Left: left, Operator: op, Right: right}, nil
}
