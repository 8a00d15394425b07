package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"salonbook/internal/store"
)

// DB is the sqlite implementation of store.Store.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

var _ store.Store = (*DB)(nil)

// NewDB opens the database at path and creates tables if they don't exist.
//
// Every transaction starts with BEGIN IMMEDIATE, so a booking transaction
// holds the write lock from its first read until commit.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'Asia/Tokyo',
			max_concurrent_reservations INTEGER NOT NULL DEFAULT 3,
			business_hours TEXT NOT NULL DEFAULT '{}',
			closed_days TEXT NOT NULL DEFAULT '[]',
			temporary_closed_days TEXT NOT NULL DEFAULT '[]',
			special_business_hours TEXT NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS staff (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			working_hours TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(tenant_id, name),
			FOREIGN KEY (tenant_id) REFERENCES tenants(id)
		)`,
		`CREATE TABLE IF NOT EXISTS staff_shifts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id INTEGER NOT NULL,
			staff_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT,
			end_time TEXT,
			is_off BOOLEAN NOT NULL DEFAULT 0,
			breaks TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(tenant_id, staff_id, date),
			FOREIGN KEY (staff_id) REFERENCES staff(id)
		)`,
		`CREATE TABLE IF NOT EXISTS menus (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			price INTEGER NOT NULL DEFAULT 0,
			duration INTEGER NOT NULL,
			category_id INTEGER,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(tenant_id, name),
			FOREIGN KEY (tenant_id) REFERENCES tenants(id)
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			telegram_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (tenant_id) REFERENCES tenants(id)
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id INTEGER NOT NULL,
			customer_id INTEGER NOT NULL,
			staff_id INTEGER,
			menu_id INTEGER NOT NULL,
			reservation_date TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'confirmed',
			total_price INTEGER NOT NULL DEFAULT 0,
			total_duration INTEGER NOT NULL DEFAULT 0,
			notes TEXT NOT NULL DEFAULT '',
			reminder_sent BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (tenant_id) REFERENCES tenants(id),
			FOREIGN KEY (customer_id) REFERENCES customers(id),
			FOREIGN KEY (staff_id) REFERENCES staff(id),
			FOREIGN KEY (menu_id) REFERENCES menus(id)
		)`,
		`CREATE TABLE IF NOT EXISTS reservation_menus (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reservation_id INTEGER NOT NULL,
			menu_id INTEGER NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			price INTEGER NOT NULL,
			duration INTEGER NOT NULL,
			FOREIGN KEY (reservation_id) REFERENCES reservations(id) ON DELETE CASCADE,
			FOREIGN KEY (menu_id) REFERENCES menus(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_staff_tenant ON staff(tenant_id, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_menus_tenant ON menus(tenant_id, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_shifts_tenant_date ON staff_shifts(tenant_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_customers_tenant ON customers(tenant_id, telegram_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_tenant_date ON reservations(tenant_id, reservation_date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_customer ON reservations(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_menus_reservation ON reservation_menus(reservation_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
