package secretstore

import (
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Index is the local SQLite-compatible store for secret metadata.
// Credential values never pass through here.
type Index struct {
	db *sqlx.DB
}

const secretMetadataSchema = `
CREATE TABLE IF NOT EXISTS secret_metadata (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	secret_type TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	last_used   TEXT,
	tags        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	scope       TEXT NOT NULL DEFAULT ''
);
`

// OpenIndex opens (creating if absent) the secret metadata index at path.
// Use ":memory:" for an ephemeral index in tests.
func OpenIndex(path string) (*Index, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open secret index")
	}
	if _, err := db.Exec(secretMetadataSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate secret index")
	}
	return &Index{db: db}, nil
}

func (ix *Index) Close() error { return ix.db.Close() }

type metadataRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	SecretType  string         `db:"secret_type"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
	LastUsed    sql.NullString `db:"last_used"`
	Tags        string         `db:"tags"`
	Description string         `db:"description"`
	Scope       string         `db:"scope"`
}

func (r metadataRow) toMetadata() Metadata {
	m := Metadata{
		ID:          r.ID,
		Name:        r.Name,
		Kind:        Kind(r.SecretType),
		Description: r.Description,
		Scope:       r.Scope,
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, r.UpdatedAt)
	if r.LastUsed.Valid {
		t, err := time.Parse(time.RFC3339Nano, r.LastUsed.String)
		if err == nil {
			m.LastUsed = &t
		}
	}
	if r.Tags != "" {
		m.Tags = strings.Split(r.Tags, ",")
	}
	return m
}

func fromMetadata(m Metadata) metadataRow {
	row := metadataRow{
		ID:          m.ID,
		Name:        m.Name,
		SecretType:  string(m.Kind),
		CreatedAt:   m.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   m.UpdatedAt.Format(time.RFC3339Nano),
		Tags:        strings.Join(m.Tags, ","),
		Description: m.Description,
		Scope:       m.Scope,
	}
	if m.LastUsed != nil {
		row.LastUsed = sql.NullString{String: m.LastUsed.Format(time.RFC3339Nano), Valid: true}
	}
	return row
}

func (ix *Index) Insert(m Metadata) error {
	row := fromMetadata(m)
	_, err := ix.db.NamedExec(`
		INSERT INTO secret_metadata (id, name, secret_type, created_at, updated_at, last_used, tags, description, scope)
		VALUES (:id, :name, :secret_type, :created_at, :updated_at, :last_used, :tags, :description, :scope)
	`, row)
	return errors.Wrap(err, "insert secret metadata")
}

func (ix *Index) Get(id string) (Metadata, bool, error) {
	var row metadataRow
	err := ix.db.Get(&row, `SELECT * FROM secret_metadata WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, errors.Wrap(err, "get secret metadata")
	}
	return row.toMetadata(), true, nil
}

func (ix *Index) List(kind Kind) ([]Metadata, error) {
	var rows []metadataRow
	var err error
	if kind == "" {
		err = ix.db.Select(&rows, `SELECT * FROM secret_metadata ORDER BY name`)
	} else {
		err = ix.db.Select(&rows, `SELECT * FROM secret_metadata WHERE secret_type = ? ORDER BY name`, string(kind))
	}
	if err != nil {
		return nil, errors.Wrap(err, "list secret metadata")
	}
	out := make([]Metadata, len(rows))
	for i, r := range rows {
		out[i] = r.toMetadata()
	}
	return out, nil
}

func (ix *Index) Update(m Metadata) error {
	row := fromMetadata(m)
	_, err := ix.db.NamedExec(`
		UPDATE secret_metadata
		SET name = :name, updated_at = :updated_at, last_used = :last_used, tags = :tags, description = :description, scope = :scope
		WHERE id = :id
	`, row)
	return errors.Wrap(err, "update secret metadata")
}

func (ix *Index) TouchLastUsed(id string, when time.Time) error {
	_, err := ix.db.Exec(`UPDATE secret_metadata SET last_used = ? WHERE id = ?`, when.Format(time.RFC3339Nano), id)
	return errors.Wrap(err, "touch secret last_used")
}

func (ix *Index) Delete(id string) error {
	_, err := ix.db.Exec(`DELETE FROM secret_metadata WHERE id = ?`, id)
	return errors.Wrap(err, "delete secret metadata")
}
