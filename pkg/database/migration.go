package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationConfig selects the submission archive schema to apply.
type MigrationConfig struct {
	FolderPath string
	// Version pins the schema to a version. Zero applies every migration.
	Version uint
	// Force marks the schema clean at this version before migrating. Zero skips it.
	Force int
	// AutoRollback marks a migration that failed half way back at the version it started from.
	AutoRollback bool
}

// schema is the part of *migrate.Migrate the migrator drives.
type schema interface {
	Force(version int) error
	Version() (version uint, dirty bool, err error)
	Migrate(version uint) error
	Up() error
}

// Migrator applies the db/pg migrations to the submission archive.
type Migrator struct {
	config MigrationConfig
	logger ectologger.Logger
}

func NewMigrator(logger ectologger.Logger, config MigrationConfig) *Migrator {
	return &Migrator{config: config, logger: logger}
}

// Up migrates an open postgres pool. Cancelling ctx stops after the migration in flight.
func (mg *Migrator) Up(ctx context.Context, db DB, databaseName string) error {
	folder, err := mg.folder()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db.SQLX().DB, &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		return fmt.Errorf("failed to load migrations from %s: %w", folder, err)
	}
	m.Log = migrateLog{logger: mg.logger}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	return mg.apply(m, folder)
}

func (mg *Migrator) apply(m schema, folder string) error {
	if mg.config.Force != 0 {
		mg.logger.Warnf("Forcing submission schema to version %d", mg.config.Force)
		if err := m.Force(mg.config.Force); err != nil {
			return fmt.Errorf("failed to force schema to version %d: %w", mg.config.Force, err)
		}
	}

	from, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	start := time.Now()
	if mg.config.Version != 0 {
		err = m.Migrate(mg.config.Version)
	} else {
		err = m.Up()
	}

	log := mg.logger.WithFields(map[string]any{
		"from_version": from,
		"elapsed":      time.Since(start).String(),
	})

	switch {
	case err == nil:
		to, _, _ := m.Version()
		log.WithField("to_version", to).Info("Submission schema migrated")
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("Submission schema is up to date")
		return nil
	case errors.Is(err, fs.ErrNotExist):
		// a newer build migrated the database; its schema only ever grows
		if latest, lerr := latestVersion(folder); lerr == nil && from > latest {
			log.WithField("latest_known", latest).Warn("Submission schema is ahead of this build, leaving it untouched")
			return nil
		}
	}

	current, dirty, verr := m.Version()
	if verr == nil && dirty && mg.config.AutoRollback {
		log.WithError(err).Warnf("Migration to version %d failed, marking schema clean at %d", current, from)
		if ferr := mg.reset(m, from); ferr != nil {
			return errors.Join(err, ferr)
		}
	}
	return fmt.Errorf("failed to migrate submission schema: %w", err)
}

// reset marks the schema clean at version. Version zero means nothing was applied before.
func (mg *Migrator) reset(m schema, version uint) error {
	target := int(version)
	if version == 0 {
		target = -1
	}
	if err := m.Force(target); err != nil {
		return fmt.Errorf("failed to force schema to version %d: %w", target, err)
	}
	return nil
}

// folder resolves the configured path on its own or against the working directory.
func (mg *Migrator) folder() (string, error) {
	path := mg.config.FolderPath
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		path = abs
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("migration folder %s: %w", path, err)
	}
	return path, nil
}

// latestVersion returns the highest NNNNNN_name.up.sql version in folder.
func latestVersion(folder string) (uint, error) {
	files, err := filepath.Glob(filepath.Join(folder, "*.up.sql"))
	if err != nil {
		return 0, err
	}

	var latest uint
	for _, file := range files {
		prefix, _, ok := strings.Cut(filepath.Base(file), "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			continue
		}
		latest = max(latest, uint(v))
	}
	if latest == 0 {
		return 0, fmt.Errorf("no migrations in %s", folder)
	}
	return latest, nil
}

// migrateLog routes golang-migrate's output through the service logger at debug level.
type migrateLog struct {
	logger ectologger.Logger
}

func (l migrateLog) Printf(format string, v ...any) {
	l.logger.Debugf(strings.TrimSuffix(format, "\n"), v...)
}

func (l migrateLog) Verbose() bool {
	return false
}
