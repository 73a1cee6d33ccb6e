// Package relationships materializes stored rows as object graphs
package relationships

import (
	"fmt"
	"sync"

	"github.com/conduit-lang/objectstore/internal/orm/crud"
	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// Loader reads rows and collection members into objects
type Loader struct {
	registry *schema.Registry
	rows     *crud.Rows
}

// NewLoader creates a new relationship loader
func NewLoader(registry *schema.Registry, rows *crud.Rows) *Loader {
	return &Loader{registry: registry, rows: rows}
}

type objectKey struct {
	class string
	id    int64
}

// LoadContext tracks the objects materialized by one load so that a row reached
// twice, including through a reference cycle, yields the same instance
type LoadContext struct {
	objects  map[objectKey]*object.Object
	depth    int
	maxDepth int
	mu       sync.RWMutex
}

// NewLoadContext creates a new load context. References more than maxDepth hops from
// the first loaded object are returned as identity-only proxies.
func NewLoadContext(maxDepth int) *LoadContext {
	return &LoadContext{
		objects:  make(map[objectKey]*object.Object),
		maxDepth: maxDepth,
	}
}

// Remember registers an object that already holds an identity
func (lc *LoadContext) Remember(obj *object.Object) error {
	id, ok := obj.Identity()
	if !ok {
		return fmt.Errorf("cannot track %s without an identity", obj)
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.objects[objectKey{obj.Class().Name, id}] = obj
	return nil
}

// Lookup returns the object already materialized for a row
func (lc *LoadContext) Lookup(class string, id int64) (*object.Object, bool) {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	obj, ok := lc.objects[objectKey{class, id}]
	return obj, ok
}

// Objects returns the number of objects materialized so far
func (lc *LoadContext) Objects() int {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return len(lc.objects)
}

func (lc *LoadContext) descend() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.depth >= lc.maxDepth {
		return false
	}
	lc.depth++
	return true
}

func (lc *LoadContext) ascend() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.depth--
}

// Proxy returns an object of class carrying only its identity
func Proxy(class *schema.ClassSchema, id int64) *object.Object {
	obj := object.New(class)
	_ = obj.SetIdentity(id)
	return obj
}
