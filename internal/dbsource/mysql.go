// Package dbsource reads live table definitions from a MySQL server.
package dbsource

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"

	"github.com/deepak-highbeam/schemadrift/internal/config"
)

// Source lists tables and fetches their DDL.
type Source interface {
	ListTables(ctx context.Context) ([]string, error)
	ShowCreateTable(ctx context.Context, table string) (string, error)
	Close() error
}

// MySQL is a Source backed by a MySQL connection pool.
type MySQL struct {
	db     *sql.DB
	schema string
}

// DSN builds a go-sql-driver DSN from the database settings.
func DSN(cfg config.Database) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Pass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.Timeout = 5 * time.Second
	mc.ReadTimeout = 30 * time.Second
	mc.WriteTimeout = 30 * time.Second
	return mc.FormatDSN()
}

// Open connects to the database and verifies the connection with a ping.
func Open(ctx context.Context, cfg config.Database) (*MySQL, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	// One poller, one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	m := &MySQL{db: db, schema: cfg.Name}
	if err := m.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to %s@%s:%d/%s: %w", cfg.User, cfg.Host, cfg.Port, cfg.Name, err)
	}
	return m, nil
}

// Connect opens the database, retrying at a fixed interval until it
// succeeds or ctx is cancelled. Every failed attempt is logged.
func Connect(ctx context.Context, cfg config.Database, interval time.Duration) (*MySQL, error) {
	var m *MySQL
	op := func() error {
		var err error
		m, err = Open(ctx, cfg)
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Printf("dbsource: %v; retrying in %s", err, next)
	}
	bo := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return nil, err
	}
	return m, nil
}

// Ping checks the connection is still usable.
func (m *MySQL) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// ListTables returns the base tables of the configured schema.
func (m *MySQL) ListTables(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = ? AND table_type = 'BASE TABLE'
		 ORDER BY table_name`,
		m.schema,
	)
	if err != nil {
		return nil, fmt.Errorf("query information_schema: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// ShowCreateTable returns the CREATE TABLE statement for table.
func (m *MySQL) ShowCreateTable(ctx context.Context, table string) (string, error) {
	var name, ddl string
	err := m.db.QueryRowContext(ctx, "SHOW CREATE TABLE "+QuoteIdent(table)).Scan(&name, &ddl)
	if err != nil {
		return "", fmt.Errorf("show create table %s: %w", table, err)
	}
	return ddl, nil
}

// Close releases the connection pool.
func (m *MySQL) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// QuoteIdent backtick-quotes a MySQL identifier.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
