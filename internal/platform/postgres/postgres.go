// Package postgres opens the relational store connection pool.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"attendsync/internal/platform/config"
	dErrors "attendsync/pkg/domain-errors"
)

// plaintextModes may fall back to an unencrypted connection.
var plaintextModes = map[string]bool{"disable": true, "allow": true, "prefer": true}

// EnsureSSLMode appends sslmode=require when the DSN does not choose a mode.
// A mode that permits plaintext is a configuration error unless
// allowInsecure is set.
func EnsureSSLMode(dsn string, allowInsecure bool) (string, error) {
	if mode, ok := sslMode(dsn); ok {
		if plaintextModes[mode] && !allowInsecure {
			return "", dErrors.New(dErrors.CodeConfiguration,
				"DATABASE_URL sets sslmode="+mode+"; encrypted connections are required (DB_ALLOW_INSECURE=true for local development)")
		}
		return dsn, nil
	}
	if !strings.Contains(dsn, "://") {
		return strings.TrimSpace(dsn) + " sslmode=require", nil
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&sslmode=require", nil
	}
	return dsn + "?sslmode=require", nil
}

func sslMode(dsn string) (string, bool) {
	i := strings.Index(dsn, "sslmode=")
	if i < 0 {
		return "", false
	}
	mode := dsn[i+len("sslmode="):]
	if j := strings.IndexAny(mode, "& "); j >= 0 {
		mode = mode[:j]
	}
	return strings.ToLower(strings.Trim(mode, `'"`)), true
}

// Open connects to Postgres through the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn, err := EnsureSSLMode(cfg.URL, cfg.AllowInsecure)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
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

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
