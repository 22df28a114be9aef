package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"docsummary/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the audit database described by cfg.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if cfg.DSN == ":memory:" {
			// every pooled connection would get its own empty database
			db.SetMaxOpenConns(1)
		}
	case "mysql":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
				cfg.Username,
				cfg.Password,
				cfg.Host,
				cfg.Port,
				cfg.DBName,
				cfg.Params,
			)
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS upload_runs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				file_name TEXT NOT NULL,
				media_type TEXT NOT NULL,
				size INTEGER NOT NULL,
				state TEXT NOT NULL,
				failure_stage TEXT NOT NULL DEFAULT '',
				failure_kind TEXT NOT NULL DEFAULT '',
				duration_ms INTEGER NOT NULL,
				client_ip TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_upload_runs_created_at ON upload_runs(created_at DESC)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS upload_runs (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				file_name VARCHAR(255) NOT NULL,
				media_type VARCHAR(255) NOT NULL,
				size BIGINT NOT NULL,
				state VARCHAR(32) NOT NULL,
				failure_stage VARCHAR(32) NOT NULL DEFAULT '',
				failure_kind VARCHAR(64) NOT NULL DEFAULT '',
				duration_ms BIGINT NOT NULL,
				client_ip VARCHAR(64) NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_upload_runs_created_at (created_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
