// Package objectstore is the public entry point of the object store.
//
// Open a Session on a *sql.DB, store object graphs with Session.Store and query
// them with the query model:
//
//	registry, _ := objectstore.LoadModelFile("model.yml")
//	_ = objectstore.Bootstrap(ctx, db, registry, objectstore.SQLite)
//	s, _ := objectstore.Open(ctx, db, registry)
//	defer s.Close()
//
//	company := objectstore.NewObject(registry.MustGet("Company")).MustSet("name", "Acme")
//	_, err := s.Store(ctx, company, objectstore.StoreOptions{Examples: policy})
package objectstore

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/codegen"
	"github.com/conduit-lang/objectstore/internal/orm/crud"
	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/identity"
	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/query"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
	"github.com/conduit-lang/objectstore/internal/orm/session"
	"github.com/conduit-lang/objectstore/internal/orm/writer"
)

type (
	Registry      = schema.Registry
	ClassSchema   = schema.ClassSchema
	Object        = object.Object
	ExampleFields = object.ExampleFields
	Policy        = object.Policy
	Session       = session.Session
	SessionOption = session.Option
	Provider      = session.Provider
	StoreOptions  = writer.Options
	StoreResult   = writer.Result
	Dialect       = dialect.Dialect

	Query      = query.Query
	QueryClass = query.QueryClass
	Constraint = query.Constraint
	Statement  = query.Statement
	Cursor     = query.Cursor
	Plan       = query.Plan
)

// Unbounded is the maxRows value meaning "no row limit"
const Unbounded = query.Unbounded

var (
	SQLite   Dialect = dialect.SQLite{}
	Postgres Dialect = dialect.Postgres{}
)

// Error taxonomy
var (
	ErrQueryCompile       = query.ErrQueryCompile
	ErrInvalidWindow      = query.ErrInvalidWindow
	ErrExecution          = query.ErrExecution
	ErrExplainUnavailable = query.ErrExplainUnavailable
	ErrAmbiguousMatch     = identity.ErrAmbiguousMatch
	ErrStoreIntegrity     = crud.ErrStoreIntegrity
	ErrSessionClosed      = session.ErrClosed
)

var (
	IsQueryCompile       = query.IsQueryCompile
	IsExecution          = query.IsExecution
	IsExplainUnavailable = query.IsExplainUnavailable
	IsAmbiguousMatch     = identity.IsAmbiguousMatch
	IsStoreIntegrity     = crud.IsStoreIntegrity
)

// Session options
var (
	WithLogger         = session.WithLogger
	WithMetrics        = session.WithMetrics
	WithCacheSize      = session.WithCacheSize
	WithDialect        = session.WithDialect
	WithDefaultTimeout = session.WithDefaultTimeout
)

// LoadModel reads a YAML class model
func LoadModel(r io.Reader) (*Registry, error) {
	return schema.LoadModel(r)
}

// LoadModelFile reads a YAML class model from a file
func LoadModelFile(path string) (*Registry, error) {
	return schema.LoadModelFile(path)
}

// NewObject creates an empty object of a class
func NewObject(class *ClassSchema) *Object {
	return object.New(class)
}

// NewQuery starts a query model
func NewQuery() *query.Builder {
	return query.NewBuilder()
}

// Class wraps a registered class for use in a query
func Class(class *ClassSchema) *QueryClass {
	return query.NewQueryClass(class)
}

// Bootstrap creates the tables of every registered class. It is safe to call on an
// existing store.
func Bootstrap(ctx context.Context, db codegen.Execer, registry *Registry, d Dialect) error {
	return codegen.NewDDLGenerator(d).Apply(ctx, db, registry, zap.NewNop())
}

// Open opens a session on a dedicated connection from provider
func Open(ctx context.Context, provider Provider, registry *Registry, opts ...SessionOption) (*Session, error) {
	return session.Open(ctx, provider, registry, opts...)
}
