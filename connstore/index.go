package connstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/pondpilot/pondpilot-sub000/engineerr"
)

// Index is the local SQLite-compatible store for connection configurations
//, with indexes on
// name and connection_type.
type Index struct {
	db *sqlx.DB
}

const connectionsSchema = `
CREATE TABLE IF NOT EXISTS connections (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	connection_type TEXT NOT NULL,
	host            TEXT NOT NULL DEFAULT '',
	port            INTEGER NOT NULL DEFAULT 0,
	database_name   TEXT NOT NULL DEFAULT '',
	secret_id       TEXT NOT NULL DEFAULT '',
	read_only       INTEGER NOT NULL DEFAULT 0,
	ssl_mode        TEXT NOT NULL DEFAULT '',
	connect_timeout INTEGER NOT NULL DEFAULT 0,
	query_timeout   INTEGER NOT NULL DEFAULT 0,
	max_connections INTEGER NOT NULL DEFAULT 0,
	schema_name     TEXT NOT NULL DEFAULT '',
	options         TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL,
	last_used       TEXT,
	tags            TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_connections_name ON connections(name);
CREATE INDEX IF NOT EXISTS idx_connections_type ON connections(connection_type);
`

// OpenIndex opens (creating if absent) the connections index at path. Use
// ":memory:" for an ephemeral index in tests.
func OpenIndex(path string) (*Index, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open connection index")
	}
	if _, err := db.Exec(connectionsSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate connection index")
	}
	return &Index{db: db}, nil
}

func (ix *Index) Close() error { return ix.db.Close() }

type connectionRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Type           string         `db:"connection_type"`
	Host           string         `db:"host"`
	Port           int            `db:"port"`
	DatabaseName   string         `db:"database_name"`
	SecretID       string         `db:"secret_id"`
	ReadOnly       bool           `db:"read_only"`
	SSLMode        string         `db:"ssl_mode"`
	ConnectTimeout int            `db:"connect_timeout"`
	QueryTimeout   int            `db:"query_timeout"`
	MaxConnections int            `db:"max_connections"`
	SchemaName     string         `db:"schema_name"`
	Options        string         `db:"options"`
	CreatedAt      string         `db:"created_at"`
	UpdatedAt      string         `db:"updated_at"`
	LastUsed       sql.NullString `db:"last_used"`
	Tags           string         `db:"tags"`
	Description    string         `db:"description"`
}

// toConnection converts a stored row back into a Connection, enforcing the
// port-range boundary at read time too — a row that somehow got a corrupt
// or pre-validation port written is refused here rather than handed back
// silently.
func (r connectionRow) toConnection() (Connection, error) {
	if r.Port < 0 || r.Port > 65535 {
		return Connection{}, &engineerr.InvalidOperation{
			Message:   fmt.Sprintf("stored port %d for connection %q out of range [0, 65535]", r.Port, r.ID),
			Operation: "read_connection",
		}
	}

	c := Connection{
		ID:             r.ID,
		Name:           r.Name,
		Type:           Kind(r.Type),
		Host:           r.Host,
		Port:           r.Port,
		DatabaseName:   r.DatabaseName,
		SecretID:       r.SecretID,
		ReadOnly:       r.ReadOnly,
		SSLMode:        r.SSLMode,
		ConnectTimeout: r.ConnectTimeout,
		QueryTimeout:   r.QueryTimeout,
		MaxConnections: r.MaxConnections,
		SchemaName:     r.SchemaName,
		Options:        r.Options,
		Description:    r.Description,
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, r.UpdatedAt)
	if r.LastUsed.Valid {
		if t, err := time.Parse(time.RFC3339Nano, r.LastUsed.String); err == nil {
			c.LastUsed = &t
		}
	}
	if r.Tags != "" {
		c.Tags = strings.Split(r.Tags, ",")
	}
	return c, nil
}

func fromConnection(c Connection) connectionRow {
	row := connectionRow{
		ID:             c.ID,
		Name:           c.Name,
		Type:           string(c.Type),
		Host:           c.Host,
		Port:           c.Port,
		DatabaseName:   c.DatabaseName,
		SecretID:       c.SecretID,
		ReadOnly:       c.ReadOnly,
		SSLMode:        c.SSLMode,
		ConnectTimeout: c.ConnectTimeout,
		QueryTimeout:   c.QueryTimeout,
		MaxConnections: c.MaxConnections,
		SchemaName:     c.SchemaName,
		Options:        c.Options,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339Nano),
		Tags:           strings.Join(c.Tags, ","),
		Description:    c.Description,
	}
	if c.LastUsed != nil {
		row.LastUsed = sql.NullString{String: c.LastUsed.Format(time.RFC3339Nano), Valid: true}
	}
	return row
}

func (ix *Index) Insert(c Connection) error {
	row := fromConnection(c)
	_, err := ix.db.NamedExec(`
		INSERT INTO connections (
			id, name, connection_type, host, port, database_name, secret_id, read_only,
			ssl_mode, connect_timeout, query_timeout, max_connections, schema_name, options,
			created_at, updated_at, last_used, tags, description
		) VALUES (
			:id, :name, :connection_type, :host, :port, :database_name, :secret_id, :read_only,
			:ssl_mode, :connect_timeout, :query_timeout, :max_connections, :schema_name, :options,
			:created_at, :updated_at, :last_used, :tags, :description
		)
	`, row)
	return errors.Wrap(err, "insert connection")
}

func (ix *Index) Get(id string) (Connection, bool, error) {
	var row connectionRow
	err := ix.db.Get(&row, `SELECT * FROM connections WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Connection{}, false, nil
	}
	if err != nil {
		return Connection{}, false, errors.Wrap(err, "get connection")
	}
	c, err := row.toConnection()
	if err != nil {
		return Connection{}, false, err
	}
	return c, true, nil
}

func (ix *Index) List(kind Kind) ([]Connection, error) {
	var rows []connectionRow
	var err error
	if kind == "" {
		err = ix.db.Select(&rows, `SELECT * FROM connections ORDER BY name`)
	} else {
		err = ix.db.Select(&rows, `SELECT * FROM connections WHERE connection_type = ? ORDER BY name`, string(kind))
	}
	if err != nil {
		return nil, errors.Wrap(err, "list connections")
	}
	out := make([]Connection, 0, len(rows))
	for _, r := range rows {
		c, err := r.toConnection()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (ix *Index) Update(c Connection) error {
	row := fromConnection(c)
	_, err := ix.db.NamedExec(`
		UPDATE connections SET
			name = :name, host = :host, port = :port, database_name = :database_name,
			secret_id = :secret_id, read_only = :read_only, ssl_mode = :ssl_mode,
			connect_timeout = :connect_timeout, query_timeout = :query_timeout,
			max_connections = :max_connections, schema_name = :schema_name, options = :options,
			updated_at = :updated_at, last_used = :last_used, tags = :tags, description = :description
		WHERE id = :id
	`, row)
	return errors.Wrap(err, "update connection")
}

func (ix *Index) TouchLastUsed(id string, when time.Time) error {
	_, err := ix.db.Exec(`UPDATE connections SET last_used = ? WHERE id = ?`, when.Format(time.RFC3339Nano), id)
	return errors.Wrap(err, "touch connection last_used")
}

func (ix *Index) Delete(id string) error {
	_, err := ix.db.Exec(`DELETE FROM connections WHERE id = ?`, id)
	return errors.Wrap(err, "delete connection")
}
