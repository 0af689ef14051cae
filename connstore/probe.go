package connstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/pondpilot/pondpilot-sub000/engineerr"
)

const defaultProbeTimeout = 10 * time.Second

// Credentials carries the username/password pulled from the secret store
// for a test_database_connection probe (connstore never talks to the
// keychain directly; the engine facade supplies these).
type Credentials struct {
	Username string
	Password string
}

// Probe attempts to open and immediately close a connection for c, using
// the jackc/pgx/v5 client for Postgres and go-sql-driver/mysql for MySQL.
// These are used here purely as clients, never as wire-protocol servers.
func Probe(ctx context.Context, c Connection, creds Credentials) error {
	ctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	switch c.Type {
	case KindPostgres:
		return probePostgres(ctx, c, creds)
	case KindMySQL:
		return probeMySQL(ctx, c, creds)
	default:
		return &engineerr.ConnectionError{Message: fmt.Sprintf("unsupported connection_type %q", c.Type)}
	}
}

func probePostgres(ctx context.Context, c Connection, creds Credentials) error {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		creds.Username, creds.Password, c.Host, c.Port, c.DatabaseName, sslModeOrDefault(c.SSLMode))

	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return &engineerr.ConnectionError{Message: "postgres connect failed", Context: err.Error()}
	}
	defer conn.Close(ctx)

	if err := conn.Ping(ctx); err != nil {
		return &engineerr.ConnectionError{Message: "postgres ping failed", Context: err.Error()}
	}
	return nil
}

func probeMySQL(ctx context.Context, c Connection, creds Credentials) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", creds.Username, creds.Password, c.Host, c.Port, c.DatabaseName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return &engineerr.ConnectionError{Message: "mysql open failed", Context: err.Error()}
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return &engineerr.ConnectionError{Message: "mysql ping failed", Context: errors.Cause(err).Error()}
	}
	return nil
}

func sslModeOrDefault(mode string) string {
	if mode == "" {
		return "prefer"
	}
	return mode
}
