package storage

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"reportforms/internal/config"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured database of the given driver type.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if dbCfg.DSN == ":memory:" {
			// every pooled connection would otherwise get its own empty database
			db.SetMaxOpenConns(1)
		}
	case "mysql":
		dsn, derr := mysqlDSN(dbCfg)
		if derr != nil {
			return nil, derr
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// mysqlDSN formats the connection string with the driver's own config so
// passwords with reserved characters survive. Params is a query string.
func mysqlDSN(dbCfg config.DatabaseConfig) (string, error) {
	mc := mysql.NewConfig()
	mc.User = dbCfg.Username
	mc.Passwd = dbCfg.Password
	mc.Net = "tcp"
	port := dbCfg.Port
	if port == 0 {
		port = 3306
	}
	mc.Addr = net.JoinHostPort(dbCfg.Host, strconv.Itoa(port))
	mc.DBName = dbCfg.DBName
	mc.ParseTime = true
	if dbCfg.Params != "" {
		q, err := url.ParseQuery(dbCfg.Params)
		if err != nil {
			return "", fmt.Errorf("parse mysql params: %w", err)
		}
		mc.Params = make(map[string]string, len(q))
		for k := range q {
			mc.Params[k] = q.Get(k)
		}
	}
	return mc.FormatDSN(), nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS form_sessions (
				token TEXT PRIMARY KEY,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_form_sessions_expiry ON form_sessions(expires_at)`,
			`CREATE TABLE IF NOT EXISTS form_fields (
				field_key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS artifacts (
				id TEXT PRIMARY KEY,
				session_token TEXT NOT NULL,
				app TEXT NOT NULL,
				title TEXT NOT NULL,
				file_name TEXT NOT NULL,
				stored_path TEXT NOT NULL,
				mime_type TEXT NOT NULL,
				size INTEGER NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_token)`,
			`CREATE INDEX IF NOT EXISTS idx_artifacts_expiry ON artifacts(expires_at)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS form_sessions (
				token VARCHAR(128) NOT NULL PRIMARY KEY,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				INDEX idx_form_sessions_expiry (expires_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS form_fields (
				field_key VARCHAR(255) NOT NULL PRIMARY KEY,
				value MEDIUMTEXT NOT NULL,
				updated_at DATETIME NOT NULL
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS artifacts (
				id VARCHAR(64) NOT NULL PRIMARY KEY,
				session_token VARCHAR(128) NOT NULL,
				app VARCHAR(64) NOT NULL,
				title VARCHAR(1024) NOT NULL,
				file_name VARCHAR(1024) NOT NULL,
				stored_path TEXT NOT NULL,
				mime_type VARCHAR(255) NOT NULL,
				size BIGINT NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				INDEX idx_artifacts_session (session_token),
				INDEX idx_artifacts_expiry (expires_at)
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
