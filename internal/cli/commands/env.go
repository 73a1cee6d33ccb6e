package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fatih/color"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/config"
	"github.com/conduit-lang/objectstore/internal/logging"
	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
	"github.com/conduit-lang/objectstore/internal/orm/session"
)

// environment is the configuration, logger and model shared by the store commands
type environment struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *schema.Registry
	dialect  dialect.Dialect
}

// loadEnvironment reads configuration, applies flag overrides and loads the model
func loadEnvironment() (*environment, error) {
	if noColorFlag {
		color.NoColor = true
	}

	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if modelFlag != "" {
		cfg.Model.Path = modelFlag
	}
	if driverFlag != "" {
		cfg.Database.Driver = driverFlag
	}
	if dsnFlag != "" {
		cfg.Database.DSN = dsnFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	d, err := dialect.ForDriver(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	registry, err := schema.LoadModelFile(cfg.Model.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", cfg.Model.Path, err)
	}

	return &environment{cfg: cfg, logger: logger, registry: registry, dialect: d}, nil
}

// openDB opens and pings the configured database
func (e *environment) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(e.cfg.Database.Driver, e.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if e.cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(e.cfg.Database.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// openSession opens the database and a session on it. The returned function closes both.
func (e *environment) openSession(ctx context.Context) (*session.Session, func(), error) {
	db, err := e.openDB(ctx)
	if err != nil {
		return nil, nil, err
	}

	s, err := session.Open(ctx, db, e.registry,
		session.WithLogger(e.logger),
		session.WithDialect(e.dialect),
		session.WithCacheSize(e.cfg.Session.CacheSize),
		session.WithDefaultTimeout(e.cfg.Query.Timeout),
	)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return s, func() {
		s.Close()
		db.Close()
		e.logger.Sync()
	}, nil
}

// withEnvironment adapts a command body that needs the loaded environment
func withEnvironment(run func(cmd *cobra.Command, env *environment) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		return run(cmd, env)
	}
}
