// Package connstore persists external database "Connection configuration"
// records and provides the test_database_connection probes for Postgres
// and MySQL.
package connstore

import (
	"fmt"
	"time"
)

// Kind is the connection_type column's closed set.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindMySQL    Kind = "mysql"
)

// Connection is one stored external-database connection configuration.
type Connection struct {
	ID              string
	Name            string
	Type            Kind
	Host            string
	Port            int
	DatabaseName    string
	SecretID        string
	ReadOnly        bool
	SSLMode         string
	ConnectTimeout  int
	QueryTimeout    int
	MaxConnections  int
	SchemaName      string
	Options         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastUsed        *time.Time
	Tags            []string
	Description     string
}

// Validate checks that the name is set, the type is supported and the port
// is in [0, 65535]. It runs on the write path; reads apply the same port
// range separately in connectionRow.toConnection.
func (c Connection) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("connstore: name is required")
	}
	if c.Type != KindPostgres && c.Type != KindMySQL {
		return fmt.Errorf("connstore: unsupported connection_type %q", c.Type)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("connstore: port %d out of range [0, 65535]", c.Port)
	}
	return nil
}
