package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Ramsey-B/clover/pkg/metrics"
)

// DB is the subset of sqlx the repositories use.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	PingContext(ctx context.Context) error
	Close() error
	SQLX() *sqlx.DB
}

// Config holds postgres connection settings.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the config as a postgres URL.
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) DB {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
	}
}

// Open prepares a postgres pool without dialing. Connections are made on first use.
func Open(cfg Config, logger ectologger.Logger) (DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return NewDatabaseInstance(db, logger), nil
}

// Connect opens and pings a postgres connection pool.
func Connect(ctx context.Context, cfg Config, logger ectologger.Logger) (DB, error) {
	log := logger.WithContext(ctx).WithFields(map[string]any{
		"host": cfg.Host,
		"name": cfg.Name,
	})

	db, err := Open(cfg, logger)
	if err != nil {
		log.WithError(err).Error("Failed to open database")
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		log.WithError(err).Error("Failed to connect to database")
		return nil, err
	}

	log.Info("Connected to database")
	return db, nil
}

// SQLX exposes the underlying pool for the migrator.
func (db *DatabaseInstance) SQLX() *sqlx.DB {
	return db.DB
}

// Timed runs a query and records its duration under operation.
func Timed(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordDatabaseQuery(operation, time.Since(start).Seconds())
	return err
}
