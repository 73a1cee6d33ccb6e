// Package transaction scopes object store writes to one database transaction.
//
// A store call that runs while ctx already carries a Transaction joins it through a
// savepoint, so a failed graph write rolls back only its own rows.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrTransactionTimeout is returned when a unit of work outlives the manager timeout
	ErrTransactionTimeout = errors.New("transaction timeout")
	// ErrNestedTransactionNotSupported is returned when a savepoint has no enclosing transaction
	ErrNestedTransactionNotSupported = errors.New("nested transactions require an existing transaction")
	// ErrFinished is returned when a transaction is used after commit or rollback
	ErrFinished = errors.New("transaction already finished")
)

var savepointCounter atomic.Uint64

type contextKey struct{}

// Beginner starts transactions. *sql.DB and *sql.Conn implement it; a session
// passes its dedicated *sql.Conn so every write of a call shares one connection.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Manager begins transactions on one Beginner
type Manager struct {
	db      Beginner
	logger  *zap.Logger
	timeout time.Duration
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger logs commits and rollbacks at debug level
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithTimeout bounds each top-level transaction whose context has no deadline
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// NewManager creates a transaction manager
func NewManager(db Beginner, opts ...Option) *Manager {
	m := &Manager{db: db}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// Transaction is a top-level transaction or a savepoint within one
type Transaction struct {
	tx        *sql.Tx
	ctx       context.Context
	level     int
	savepoint string
	finished  atomic.Bool
	logger    *zap.Logger
}

// Begin starts a top-level transaction. The transaction itself outlives ctx: when ctx
// ends, statements issued with it fail but the transaction stays open until Commit or
// Rollback, so the connection is never left inside an unfinished BEGIN.
func (m *Manager) Begin(ctx context.Context) (*Transaction, error) {
	tx, err := m.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{tx: tx, ctx: ctx, logger: m.logger}, nil
}

// WithTransaction runs fn in a transaction, committing on success and rolling back
// on error or panic. fn receives the context its statements must use; it carries the
// manager timeout. If ctx already carries a Transaction, fn runs inside a savepoint of
// it instead.
func (m *Manager) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if outer, ok := FromContext(ctx); ok {
		return outer.WithSavepoint(ctx, fn)
	}

	timed := false
	if _, ok := ctx.Deadline(); !ok && m.timeout > 0 {
		timed = true
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	tx, err := m.Begin(ctx)
	if err != nil {
		return m.contextError(ctx, err, timed)
	}
	if err := tx.run(fn); err != nil {
		return m.contextError(ctx, err, timed)
	}
	return nil
}

// contextError keeps ctx's error in the chain when ctx ended during the call. Drivers
// may report an interrupted statement with their own error instead.
func (m *Manager) contextError(ctx context.Context, err error, timed bool) error {
	ctxErr := ctx.Err()
	if ctxErr == nil {
		return err
	}
	if !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	if timed && errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("%w: exceeded %v: %w", ErrTransactionTimeout, m.timeout, err)
	}
	return err
}

func (t *Transaction) run(fn func(ctx context.Context, tx *sql.Tx) error) error {
	defer func() {
		if p := recover(); p != nil {
			t.Rollback()
			panic(p)
		}
	}()

	if err := fn(WithContext(t.ctx, t), t.tx); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}
	return t.Commit()
}

// Context returns a context carrying the transaction
func (t *Transaction) Context() context.Context {
	return WithContext(t.ctx, t)
}

// Tx returns the underlying sql.Tx
func (t *Transaction) Tx() *sql.Tx {
	return t.tx
}

// Level is 0 for a top-level transaction and the savepoint depth otherwise
func (t *Transaction) Level() int {
	return t.level
}

// Finished reports whether the transaction was committed or rolled back
func (t *Transaction) Finished() bool {
	return t.finished.Load()
}

// Commit commits the transaction, or releases the savepoint
func (t *Transaction) Commit() error {
	if !t.finished.CompareAndSwap(false, true) {
		return ErrFinished
	}
	if t.level > 0 {
		if _, err := t.tx.ExecContext(context.WithoutCancel(t.ctx), "RELEASE SAVEPOINT "+t.savepoint); err != nil {
			return fmt.Errorf("failed to release savepoint: %w", err)
		}
		return nil
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	t.logger.Debug("transaction committed")
	return nil
}

// Rollback rolls the transaction back, or back to the savepoint. Rolling back a
// transaction that already rolled back is a no-op.
func (t *Transaction) Rollback() error {
	if !t.finished.CompareAndSwap(false, true) {
		return nil
	}
	if t.level > 0 {
		if _, err := t.tx.ExecContext(context.WithoutCancel(t.ctx), "ROLLBACK TO SAVEPOINT "+t.savepoint); err != nil {
			return fmt.Errorf("failed to rollback to savepoint: %w", err)
		}
		return nil
	}
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		if t.ctx.Err() != nil {
			// An engine interrupted by ctx may already have aborted the transaction.
			t.logger.Debug("rollback after context end", zap.Error(err))
			return nil
		}
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	t.logger.Debug("transaction rolled back")
	return nil
}

// BeginNested opens a savepoint inside the transaction
func (t *Transaction) BeginNested(ctx context.Context) (*Transaction, error) {
	if t.tx == nil {
		return nil, ErrNestedTransactionNotSupported
	}
	if t.finished.Load() {
		return nil, ErrFinished
	}

	name := fmt.Sprintf("sp_%d_%d", savepointCounter.Add(1), t.level+1)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, fmt.Errorf("failed to create savepoint: %w", err)
	}
	return &Transaction{tx: t.tx, ctx: ctx, level: t.level + 1, savepoint: name, logger: t.logger}, nil
}

// WithSavepoint runs fn inside a savepoint, releasing it on success and rolling
// back to it on error or panic
func (t *Transaction) WithSavepoint(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	nested, err := t.BeginNested(ctx)
	if err != nil {
		return err
	}
	return nested.run(fn)
}

// FromContext returns the transaction carried by ctx
func FromContext(ctx context.Context) (*Transaction, bool) {
	tx, ok := ctx.Value(contextKey{}).(*Transaction)
	return tx, ok
}

// WithContext returns a context carrying tx
func WithContext(ctx context.Context, tx *Transaction) context.Context {
	return context.WithValue(ctx, contextKey{}, tx)
}
