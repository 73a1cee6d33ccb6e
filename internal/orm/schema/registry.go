// Package schema provides a registry for managing class schemas
package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry manages all class schemas known to a store
type Registry struct {
	schemas map[string]*ClassSchema
	order   []string
	mu      sync.RWMutex
}

// NewRegistry creates a new schema registry
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*ClassSchema),
	}
}

// Register registers a new class schema after structural validation.
// Cross-class validation is deferred to ValidateAll so forward references are allowed.
func (r *Registry) Register(class *ClassSchema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[class.Name]; exists {
		return fmt.Errorf("class %s is already registered", class.Name)
	}
	if err := validateStructural(class); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", class.Name, err)
	}

	r.schemas[class.Name] = class
	r.order = append(r.order, class.Name)
	return nil
}

// Get retrieves a class schema by name
func (r *Registry) Get(name string) (*ClassSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	class, exists := r.schemas[name]
	return class, exists
}

// MustGet retrieves a class schema by name, panicking if it is not registered
func (r *Registry) MustGet(name string) *ClassSchema {
	class, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("class %s is not registered", name))
	}
	return class
}

// List returns the registered class names in registration order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// All returns a copy of all registered schemas
func (r *Registry) All() map[string]*ClassSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ClassSchema, len(r.schemas))
	for k, v := range r.schemas {
		result[k] = v
	}
	return result
}

// Resolve returns the single concrete class covering every given type name.
// A class covers a name when it is that class or lists it in Implements.
func (r *Registry) Resolve(names ...string) (*ClassSchema, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no type names given")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*ClassSchema
	for _, name := range r.order {
		class := r.schemas[name]
		covered := true
		for _, want := range names {
			if !class.Covers(want) {
				covered = false
				break
			}
		}
		if covered {
			matches = append(matches, class)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no class covers %s", strings.Join(names, ", "))
	case 1:
		return matches[0], nil
	default:
		candidates := make([]string, len(matches))
		for i, m := range matches {
			candidates[i] = m.Name
		}
		return nil, fmt.Errorf("types %s are covered by more than one class: %s",
			strings.Join(names, ", "), strings.Join(candidates, ", "))
	}
}

// ValidateAll validates every cross-class relationship in the registry
func (r *Registry) ValidateAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []string
	for _, name := range names {
		class := r.schemas[name]
		for _, ref := range class.References {
			if _, ok := r.schemas[ref.TargetClass]; !ok {
				problems = append(problems, fmt.Sprintf("%s.%s references unknown class %s",
					class.Name, ref.Name, ref.TargetClass))
			}
		}
		for _, coll := range class.Collections {
			if err := r.validateCollection(class, coll); err != nil {
				problems = append(problems, err.Error())
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("relationship validation failed:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

func (r *Registry) validateCollection(owner *ClassSchema, coll *Collection) error {
	target, ok := r.schemas[coll.TargetClass]
	if !ok {
		return fmt.Errorf("%s.%s references unknown class %s", owner.Name, coll.Name, coll.TargetClass)
	}

	switch coll.Kind {
	case OneToMany:
		reverse, ok := target.Reference(coll.Reverse)
		if !ok {
			return fmt.Errorf("%s.%s: reverse reference %s.%s does not exist",
				owner.Name, coll.Name, target.Name, coll.Reverse)
		}
		if !owner.Covers(reverse.TargetClass) {
			return fmt.Errorf("%s.%s: reverse reference %s.%s points to %s",
				owner.Name, coll.Name, target.Name, coll.Reverse, reverse.TargetClass)
		}
	case ManyToMany:
		if coll.ForeignKey == coll.AssociationKey {
			return fmt.Errorf("%s.%s: join columns must differ (both %s)", owner.Name, coll.Name, coll.ForeignKey)
		}
		if coll.Reverse == "" {
			return nil
		}
		reverse, ok := target.Collection(coll.Reverse)
		if !ok || reverse.Kind != ManyToMany {
			return fmt.Errorf("%s.%s: reverse collection %s.%s is not many-to-many",
				owner.Name, coll.Name, target.Name, coll.Reverse)
		}
		if reverse.JoinTable != coll.JoinTable ||
			reverse.ForeignKey != coll.AssociationKey ||
			reverse.AssociationKey != coll.ForeignKey {
			return fmt.Errorf("%s.%s and %s.%s disagree on join table layout",
				owner.Name, coll.Name, target.Name, reverse.Name)
		}
	}
	return nil
}

// DependencyOrder returns class names with referenced classes before referencing ones.
// Classes on a reference cycle are appended in registration order and reported in cycles.
func (r *Registry) DependencyOrder() (order []string, cycles [][]string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	graph := NewRelationshipGraph(r.schemas, r.order)
	return graph.TopologicalSort(), graph.DetectCycles()
}

// JoinTables returns every distinct join table declared by many-to-many collections
func (r *Registry) JoinTables() []JoinTable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var tables []JoinTable
	for _, name := range r.order {
		class := r.schemas[name]
		for _, coll := range class.Collections {
			if coll.Kind != ManyToMany || seen[coll.JoinTable] {
				continue
			}
			seen[coll.JoinTable] = true
			tables = append(tables, JoinTable{
				Name:         coll.JoinTable,
				OwnerClass:   class.Name,
				OwnerColumn:  coll.ForeignKey,
				TargetClass:  coll.TargetClass,
				TargetColumn: coll.AssociationKey,
			})
		}
	}
	return tables
}

// JoinTable describes the physical layout of a many-to-many join table
type JoinTable struct {
	Name         string
	OwnerClass   string
	OwnerColumn  string
	TargetClass  string
	TargetColumn string
}

// validateStructural checks a single class in isolation
func validateStructural(class *ClassSchema) error {
	if class.Name == "" {
		return fmt.Errorf("class name cannot be empty")
	}
	if class.TableName == "" {
		return fmt.Errorf("table name cannot be empty")
	}

	columns := map[string]string{class.IdentityColumn(): class.IdentityField}
	names := map[string]bool{class.IdentityField: true}

	claim := func(name, column string) error {
		if names[name] {
			return fmt.Errorf("duplicate member %s", name)
		}
		names[name] = true
		if column == "" {
			return nil
		}
		if owner, taken := columns[column]; taken {
			return fmt.Errorf("column %s of %s collides with %s", column, name, owner)
		}
		columns[column] = name
		return nil
	}

	for _, f := range class.Fields {
		if f.Type == nil {
			return fmt.Errorf("field %s has no type", f.Name)
		}
		if err := claim(f.Name, f.Column); err != nil {
			return err
		}
	}
	for _, ref := range class.References {
		if ref.TargetClass == "" {
			return fmt.Errorf("reference %s has no target class", ref.Name)
		}
		if err := claim(ref.Name, ref.Column); err != nil {
			return err
		}
	}
	for _, coll := range class.Collections {
		if coll.TargetClass == "" {
			return fmt.Errorf("collection %s has no target class", coll.Name)
		}
		if coll.Kind == OneToMany && coll.Reverse == "" {
			return fmt.Errorf("one-to-many collection %s needs a reverse reference", coll.Name)
		}
		if err := claim(coll.Name, ""); err != nil {
			return err
		}
	}
	return nil
}
