// Package db opens the backing database from a DSN. Postgres DSNs go through
// lib/pq; anything else is treated as a sqlite path, the development default.
package db

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const DefaultDSN = "file:infrabondx.db"

func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// sqlite gets one writer; a second connection against :memory:
		// would see its own empty database.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxLifetime(30 * time.Minute)
	}
	return conn, nil
}

func MustOpen(dsn string) *sql.DB {
	conn, err := Open(dsn)
	if err != nil {
		panic(err)
	}
	return conn
}
