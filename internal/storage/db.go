package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/medstock-labs/medstock/internal/errors"
)

// Dialect names the SQL dialect behind a Store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore implements Store on a database/sql connection. The same
// implementation serves SQLite (default deployment) and PostgreSQL; the
// statements stick to the portable subset and dialect-specific behavior is
// confined to the migrations.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect

	records   *sqlRecordRepository
	suppliers *sqlSupplierRepository
	alerts    *sqlAlertRepository
	dispense  *sqlDispenseRepository
}

// Open connects to the database, applies pending migrations, and returns a
// ready Store. driver is "sqlite" or "postgres" and dsn the matching
// connection string.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var dialect Dialect
	switch driver {
	case "sqlite":
		dialect = DialectSQLite
	case "postgres":
		dialect = DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// The ledger sees concurrent writers from the HTTP API and the
		// alert checker; WAL avoids writer starvation.
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// modernc.org/sqlite serializes access per connection; a single
		// connection sidesteps SQLITE_BUSY under write contention.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.NewStorageUnavailable(err)
	}

	runner := NewMigrationRunner(db, dialect)
	if err := runner.Run(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return NewSQLStore(db, dialect), nil
}

// NewSQLStore wraps an already-migrated connection.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:        db,
		dialect:   dialect,
		records:   &sqlRecordRepository{db: db},
		suppliers: &sqlSupplierRepository{db: db},
		alerts:    &sqlAlertRepository{db: db},
		dispense:  &sqlDispenseRepository{db: db},
	}
}

// Records returns the inventory record repository.
func (s *SQLStore) Records() RecordRepository { return s.records }

// Suppliers returns the supplier repository.
func (s *SQLStore) Suppliers() SupplierRepository { return s.suppliers }

// Alerts returns the alert repository.
func (s *SQLStore) Alerts() AlertRepository { return s.alerts }

// Dispense returns the dispense history repository.
func (s *SQLStore) Dispense() DispenseRepository { return s.dispense }

// Dialect returns the SQL dialect behind the store.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// DB exposes the underlying connection for maintenance tasks (backups).
func (s *SQLStore) DB() *sql.DB { return s.db }

// CheckConnectivity verifies database connectivity.
func (s *SQLStore) CheckConnectivity(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.NewStorageUnavailable(err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Verify SQLStore implements Store.
var _ Store = (*SQLStore)(nil)
