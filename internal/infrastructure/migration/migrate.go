// Package migration applies the ledger schema with golang-migrate.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/erp/ledger/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// ErrDirty is returned by Up when a previous run left the schema half applied.
var ErrDirty = errors.New("schema is dirty; inspect and force a version first")

// Status describes the schema version recorded in schema_migrations
type Status struct {
	Version uint
	Dirty   bool
	Latest  uint
	Pending int
	Applied bool
}

// Migrator applies ledger migrations
type Migrator struct {
	migrate *migrate.Migrate
	source  fs.FS
	logger  *zap.Logger
}

// New builds a migrator that reads the migrations compiled into the binary.
func New(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	return NewWithSource(db, migrations.FS, logger)
}

// NewWithSource builds a migrator over an arbitrary migrations filesystem,
// typically os.DirFS for a checkout of the migrations directory.
func NewWithSource(db *sql.DB, source fs.FS, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	src, err := iofs.New(source, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = &migrateLogger{logger: logger}
	return &Migrator{migrate: m, source: source, logger: logger}, nil
}

// Up applies every pending migration. A clean schema that is already current
// is not an error.
func (m *Migrator) Up() error {
	if _, dirty, err := m.Version(); err != nil {
		return err
	} else if dirty {
		return ErrDirty
	}
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	version, _, _ := m.Version()
	m.logger.Info("Ledger schema up to date", zap.Uint("version", version))
	return nil
}

// Down rolls back every migration
func (m *Migrator) Down() error {
	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	m.logger.Info("Ledger schema rolled back")
	return nil
}

// Steps moves n migrations forward (n > 0) or backward (n < 0).
func (m *Migrator) Steps(n int) error {
	if n == 0 {
		return nil
	}
	if err := m.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration steps %d failed: %w", n, err)
	}
	version, _, _ := m.Version()
	m.logger.Info("Migration steps applied", zap.Int("steps", n), zap.Uint("version", version))
	return nil
}

// Version returns the applied version; zero means nothing has been applied.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, nil
}

// Force records version without running anything, clearing the dirty flag.
func (m *Migrator) Force(version int) error {
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	m.logger.Warn("Migration version forced", zap.Int("version", version))
	return nil
}

// Status compares the applied version with the migrations in the source.
func (m *Migrator) Status() (*Status, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return nil, err
	}
	available, err := listVersions(m.source)
	if err != nil {
		return nil, err
	}
	st := &Status{Version: version, Dirty: dirty, Applied: version > 0}
	for _, v := range available {
		if v > st.Latest {
			st.Latest = v
		}
		if v > version {
			st.Pending++
		}
	}
	return st, nil
}

// Close releases the source and database handles
func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}

type migrateLogger struct {
	logger *zap.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Sugar().Debugf(format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}
