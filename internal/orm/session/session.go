// Package session scopes object store work to one database connection.
//
// A Session holds a dedicated connection from the moment it is opened until Close,
// and every store, lookup and query of the session runs on it. Sessions share no
// mutable state; open one per goroutine.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/crud"
	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/identity"
	"github.com/conduit-lang/objectstore/internal/orm/metrics"
	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/query"
	"github.com/conduit-lang/objectstore/internal/orm/relationships"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
	"github.com/conduit-lang/objectstore/internal/orm/transaction"
	"github.com/conduit-lang/objectstore/internal/orm/writer"
)

// DefaultCacheSize is the number of objects a session caches unless configured otherwise
const DefaultCacheSize = 1024

// ErrClosed is returned by every operation of a closed session
var ErrClosed = errors.New("session closed")

// Provider supplies a dedicated connection. *sql.DB implements it.
type Provider interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

type cacheKey struct {
	class string
	id    int64
}

// Session is a unit of object store work over one connection. It is not safe for
// concurrent use.
type Session struct {
	id       uuid.UUID
	conn     *sql.Conn
	registry *schema.Registry
	dialect  dialect.Dialect
	logger   *zap.Logger
	metrics  *metrics.Collector
	timeout  time.Duration

	compiler     *query.Compiler
	executor     *query.Executor
	resolver     *identity.Resolver
	rows         *crud.Rows
	txManager    *transaction.Manager
	writer       *writer.Writer
	loader       *relationships.Loader
	materializer Materializer

	cacheSize int
	cache     *lru.Cache[cacheKey, *object.Object]
	closed    bool
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithMetrics reports session activity to a collector
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Session) { s.metrics = c }
}

// WithCacheSize bounds the per-session object cache
func WithCacheSize(n int) Option {
	return func(s *Session) { s.cacheSize = n }
}

// WithDialect selects the engine dialect. The default is SQLite.
func WithDialect(d dialect.Dialect) Option {
	return func(s *Session) { s.dialect = d }
}

// WithDefaultTimeout applies a deadline to calls whose context has none
func WithDefaultTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithMaterializer replaces the default result row materializer
func WithMaterializer(m Materializer) Option {
	return func(s *Session) { s.materializer = m }
}

// Open acquires a connection from the provider and builds a session on it
func Open(ctx context.Context, provider Provider, registry *schema.Registry, opts ...Option) (*Session, error) {
	s := &Session{
		id:        uuid.New(),
		registry:  registry,
		dialect:   dialect.SQLite{},
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("session", s.id.String()))

	cache, err := lru.New[cacheKey, *object.Object](s.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("invalid cache size %d: %w", s.cacheSize, err)
	}
	s.cache = cache

	conn, err := provider.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	s.conn = conn

	var execOpts []query.ExecutorOption
	if s.metrics != nil {
		execOpts = append(execOpts, query.WithObserver(s.metrics))
	}
	if s.timeout > 0 {
		execOpts = append(execOpts, query.WithTimeout(s.timeout))
	}

	s.compiler = query.NewCompiler(s.dialect, registry, s.logger)
	s.executor = query.NewExecutor(conn, s.logger, execOpts...)
	s.resolver = identity.NewResolver(s.compiler, s.executor, s.logger)
	s.rows = crud.NewRows(conn, s.dialect, s.logger)
	s.txManager = transaction.NewManager(conn, transaction.WithLogger(s.logger), transaction.WithTimeout(s.timeout))
	s.writer = writer.New(registry, s.dialect, s.txManager, s.logger, writer.WithExecutorOptions(execOpts...))
	s.loader = relationships.NewLoader(registry, s.rows)
	if s.materializer == nil {
		s.materializer = NewAliasMaterializer(registry)
	}

	s.logger.Debug("session opened", zap.String("dialect", s.dialect.Name()))
	return s, nil
}

// ID returns the session id used in logs
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Registry returns the class registry the session was opened with
func (s *Session) Registry() *schema.Registry {
	return s.registry
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.Purge()
	s.logger.Debug("session closed")
	return s.conn.Close()
}

func (s *Session) check() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Store writes an object graph in one transaction. Cached copies of the written
// objects are evicted.
func (s *Session) Store(ctx context.Context, root *object.Object, opts writer.Options) (writer.Result, error) {
	if err := s.check(); err != nil {
		return writer.Result{}, err
	}
	result, err := s.writer.Store(ctx, root, opts)
	if s.metrics != nil {
		s.metrics.ObserveStore(result.Inserted, result.Updated, result.Merged, result.Untouched, result.Links, err)
	}
	if err != nil {
		return result, err
	}
	for _, obj := range result.Objects {
		if id, ok := obj.Identity(); ok {
			s.cache.Remove(cacheKey{obj.Class().Name, id})
		}
	}
	return result, nil
}

// Compile compiles a query model for the session's dialect
func (s *Session) Compile(q *query.Query) (*query.Statement, error) {
	return s.compiler.Compile(q)
}

// Execute runs a compiled statement over a row window. The caller closes the cursor.
func (s *Session) Execute(ctx context.Context, stmt *query.Statement, startRow, maxRows int) (*query.Cursor, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, stmt, startRow, maxRows)
}

// Explain returns the plan of a compiled statement without executing it
func (s *Session) Explain(ctx context.Context, stmt *query.Statement, startRow, maxRows int) (*query.Plan, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.executor.Explain(ctx, stmt, startRow, maxRows)
}

// ExecuteQuery compiles and executes a query model
func (s *Session) ExecuteQuery(ctx context.Context, q *query.Query, startRow, maxRows int) (*query.Cursor, error) {
	stmt, err := s.Compile(q)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, stmt, startRow, maxRows)
}

// Objects executes a query model and materializes every row of the window
func (s *Session) Objects(ctx context.Context, q *query.Query, startRow, maxRows int) ([][]*object.Object, error) {
	stmt, err := s.Compile(q)
	if err != nil {
		return nil, err
	}
	cursor, err := s.Execute(ctx, stmt, startRow, maxRows)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var out [][]*object.Object
	for cursor.Next() {
		values, err := cursor.Values()
		if err != nil {
			return nil, err
		}
		objs, err := s.materializer.Materialize(stmt, values)
		if err != nil {
			return nil, err
		}
		out = append(out, objs)
	}
	return out, cursor.Err()
}

// FindByExample returns the identity of the stored row equal-by-example to obj
func (s *Session) FindByExample(ctx context.Context, obj *object.Object, fields object.ExampleFields) (int64, bool, error) {
	if err := s.check(); err != nil {
		return 0, false, err
	}
	return s.resolver.FindByExample(ctx, obj, fields)
}

// GetByExample loads the object equal-by-example to obj, or nil when there is none
func (s *Session) GetByExample(ctx context.Context, obj *object.Object, fields object.ExampleFields) (*object.Object, error) {
	id, found, err := s.FindByExample(ctx, obj, fields)
	if err != nil || !found {
		return nil, err
	}
	return s.GetByID(ctx, obj.Class(), id)
}

// GetByID loads an object by identity. References are identity-only proxies.
// Loaded objects are cached until evicted, invalidated or written.
func (s *Session) GetByID(ctx context.Context, class *schema.ClassSchema, id int64) (*object.Object, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	key := cacheKey{class.Name, id}
	if obj, ok := s.cache.Get(key); ok {
		s.observeCache(true)
		return obj, nil
	}
	s.observeCache(false)

	obj, err := s.loader.Load(ctx, class, id, relationships.NewLoadContext(0))
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, obj)
	return obj, nil
}

// LoadCollection reads the stored members of one of obj's collections into it
func (s *Session) LoadCollection(ctx context.Context, obj *object.Object, name string) ([]*object.Object, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	elems, err := s.loader.LoadCollection(ctx, obj, name, relationships.NewLoadContext(0))
	if err != nil {
		return nil, err
	}
	for _, elem := range elems {
		id, _ := elem.Identity()
		s.cache.Add(cacheKey{elem.Class().Name, id}, elem)
	}
	return elems, nil
}

// Delete removes an object's row and its join rows, then clears its identity.
// Identities are not reused.
func (s *Session) Delete(ctx context.Context, obj *object.Object) error {
	if err := s.check(); err != nil {
		return err
	}
	id, ok := obj.Identity()
	if !ok {
		return fmt.Errorf("cannot delete %s without an identity", obj)
	}
	class := obj.Class()

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return crud.NewRows(tx, s.dialect, s.logger).Delete(ctx, class, id, s.registry.JoinTables())
	})
	if err != nil {
		return query.ContextError(err)
	}
	s.cache.Remove(cacheKey{class.Name, id})
	obj.ClearIdentity()
	return nil
}

// Evict drops one cached object
func (s *Session) Evict(class *schema.ClassSchema, id int64) {
	s.cache.Remove(cacheKey{class.Name, id})
}

// Invalidate drops every cached object so later reads go to the store
func (s *Session) Invalidate() {
	s.cache.Purge()
}

// Cached returns the number of cached objects
func (s *Session) Cached() int {
	return s.cache.Len()
}

func (s *Session) observeCache(hit bool) {
	if s.metrics != nil {
		s.metrics.ObserveCache(hit)
	}
}
