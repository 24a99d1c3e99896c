// Package sqlite provides the SQLite-backed storage implementation.
//
// Aggregates are stored as JSON documents alongside the columns the engine
// queries on; wallets and the escrow transaction log use plain columns.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/atelierhq/atelier/internal/platform/storage/sqlitemigrate"
	"github.com/atelierhq/atelier/internal/storage"
	"github.com/atelierhq/atelier/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// DB persists engine state in SQLite.
type DB struct {
	sqlDB *sql.DB
}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// every store works identically inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite database and applies embedded migrations.
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &DB{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (db *DB) Close() error {
	if db == nil || db.sqlDB == nil {
		return nil
	}
	return db.sqlDB.Close()
}

// storesFor binds every store to one querier.
func storesFor(q querier) storage.Stores {
	return storage.Stores{
		Contracts:         &contractStore{q: q},
		CancelTickets:     &cancelTicketStore{q: q},
		RevisionTickets:   &revisionTicketStore{q: q},
		ChangeTickets:     &changeTicketStore{q: q},
		ResolutionTickets: &resolutionTicketStore{q: q},
		Uploads:           &uploadStore{q: q},
		Wallets:           &walletStore{q: q},
		Ledger:            &ledgerStore{q: q},
	}
}

// Stores returns auto-committing stores for single-entity reads.
func (db *DB) Stores() storage.Stores {
	return storesFor(db.sqlDB)
}

// InTx runs fn inside one SQLite transaction. Any error (or panic) rolls
// back every mutation made through the transactional stores.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context, s storage.Stores) error) error {
	tx, err := db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, storesFor(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
