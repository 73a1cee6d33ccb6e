// Package document decodes the YAML fixture and query files read by the CLI.
package document

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// Fixtures is a set of object graphs to store, with the example policy that
// deduplicates their non-root members
type Fixtures struct {
	Examples map[string][]string `yaml:"examples"`
	Objects  []ObjectDocument    `yaml:"objects"`

	// Roots names the labels stored as graph roots, in order. When empty every
	// object is a root.
	Roots []string `yaml:"roots"`
}

// ObjectDocument describes one object. Either Class or Types names its class;
// Types is resolved to the single class covering every listed type.
type ObjectDocument struct {
	Label       string                 `yaml:"label"`
	Class       string                 `yaml:"class"`
	Types       []string               `yaml:"types"`
	Fields      map[string]interface{} `yaml:"fields"`
	Refs        map[string]string      `yaml:"refs"`
	Collections map[string][]string    `yaml:"collections"`
}

// DecodeFixtures reads a fixture document
func DecodeFixtures(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	return &f, nil
}

// Policy returns the example policy declared by the fixtures. A key may name a class
// or an implemented type; the fields are validated against every class it covers.
func (f *Fixtures) Policy(registry *schema.Registry) (object.Policy, error) {
	policy := make(object.Policy, len(f.Examples))
	for name, fields := range f.Examples {
		ef := object.ExampleFields(fields)
		covered := false
		for _, className := range registry.List() {
			class := registry.MustGet(className)
			if !class.Covers(name) {
				continue
			}
			covered = true
			if err := ef.Validate(class); err != nil {
				return nil, fmt.Errorf("examples for %s: %w", name, err)
			}
		}
		if !covered {
			return nil, fmt.Errorf("examples: no class covers %s", name)
		}
		policy[name] = ef
	}
	return policy, nil
}

// Build creates the objects and links them by label. It returns the roots in store order.
func (f *Fixtures) Build(registry *schema.Registry) ([]*object.Object, error) {
	byLabel := make(map[string]*object.Object, len(f.Objects))
	ordered := make([]*object.Object, 0, len(f.Objects))

	for i, doc := range f.Objects {
		obj, err := doc.instantiate(registry)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		if doc.Label != "" {
			if _, dup := byLabel[doc.Label]; dup {
				return nil, fmt.Errorf("object %d: duplicate label %q", i, doc.Label)
			}
			byLabel[doc.Label] = obj
		}
		ordered = append(ordered, obj)
	}

	lookup := func(label string) (*object.Object, error) {
		obj, ok := byLabel[label]
		if !ok {
			return nil, fmt.Errorf("unknown label %q", label)
		}
		return obj, nil
	}

	for i, doc := range f.Objects {
		obj := ordered[i]
		for name, label := range doc.Refs {
			target, err := lookup(label)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", obj.Class().Name, name, err)
			}
			if err := obj.SetRef(name, target); err != nil {
				return nil, err
			}
		}
		for name, labels := range doc.Collections {
			for _, label := range labels {
				elem, err := lookup(label)
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", obj.Class().Name, name, err)
				}
				if err := obj.Add(name, elem); err != nil {
					return nil, err
				}
			}
		}
	}

	if len(f.Roots) == 0 {
		return ordered, nil
	}
	roots := make([]*object.Object, 0, len(f.Roots))
	for _, label := range f.Roots {
		obj, err := lookup(label)
		if err != nil {
			return nil, fmt.Errorf("roots: %w", err)
		}
		roots = append(roots, obj)
	}
	return roots, nil
}

func (doc ObjectDocument) instantiate(registry *schema.Registry) (*object.Object, error) {
	var obj *object.Object
	switch {
	case doc.Class != "" && len(doc.Types) > 0:
		return nil, fmt.Errorf("class and types are exclusive")
	case doc.Class != "":
		class, ok := registry.Get(doc.Class)
		if !ok {
			return nil, fmt.Errorf("unknown class %s", doc.Class)
		}
		obj = object.New(class)
	case len(doc.Types) > 0:
		o, err := object.NewDynamic(registry, doc.Types...)
		if err != nil {
			return nil, err
		}
		obj = o
	default:
		return nil, fmt.Errorf("class or types is required")
	}

	for name, value := range doc.Fields {
		if err := obj.Set(name, value); err != nil {
			return nil, err
		}
	}
	return obj, nil
}
