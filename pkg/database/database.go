package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"xianyu-autosell/config"
	"xianyu-autosell/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names the SQL flavour behind a *sql.DB.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// Connect opens the configured database and verifies the connection.
func Connect(cfg *config.Config) (*sql.DB, Dialect, error) {
	switch Dialect(cfg.DBDriver) {
	case DialectSQLite:
		db, err := OpenSQLite(cfg.SQLitePath)
		return db, DialectSQLite, err
	case DialectPostgres, "":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database: %w", err)
		}

		// Connection pool settings
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(100)
		db.SetConnMaxLifetime(time.Hour)

		if err := Ping(context.Background(), db); err != nil {
			db.Close()
			return nil, "", err
		}
		log.Println("Database connection established")
		return db, DialectPostgres, nil
	default:
		return nil, "", fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// OpenSQLite opens (or creates) a SQLite database file.
func OpenSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := Ping(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ApplyMigrations executes the embedded schema files for dialect in name order.
// Every file is written to be idempotent.
func ApplyMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	dir := string(dialect)
	if dialect == DialectSQLite {
		dir = "sqlite"
	}
	entries, err := fs.ReadDir(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(migrations.FS, dir+"/"+name)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}
	return nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

// TableCounts returns row counts for the service tables, keyed by table name.
func TableCounts(ctx context.Context, db *sql.DB) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, table := range []string{"orders", "autosell_rules", "stock_items", "delivery_logs"} {
		var n int64
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
