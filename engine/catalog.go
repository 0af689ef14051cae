package engine

import (
	"context"

	"github.com/pondpilot/pondpilot-sub000/engineerr"
	"github.com/pondpilot/pondpilot-sub000/pool"
)

// DatabaseInfo, TableInfo and ColumnInfo are the typed structs the catalog
// readers below return.
type DatabaseInfo struct {
	Name string
}

type TableInfo struct {
	Name     string
	Database string
	Kind     string
}

type ColumnInfo struct {
	Name     string
	Type     string
	Nullable bool
}

// GetDatabases lists attached databases via duckdb_databases().
func (e *Engine) GetDatabases(ctx context.Context) ([]DatabaseInfo, error) {
	var out []DatabaseInfo
	err := e.pool.ExecuteWithConnection(ctx, func(conn *pool.Connection) error {
		rows, err := conn.Raw.QueryContext(ctx, "SELECT database_name FROM duckdb_databases()")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			out = append(out, DatabaseInfo{Name: name})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, &engineerr.QueryError{Message: err.Error()}
	}
	return out, nil
}

// GetTables lists tables (and views) in database via information_schema.
func (e *Engine) GetTables(ctx context.Context, database string) ([]TableInfo, error) {
	var out []TableInfo
	err := e.pool.ExecuteWithConnection(ctx, func(conn *pool.Connection) error {
		rows, err := conn.Raw.QueryContext(ctx,
			`SELECT table_name, table_catalog, table_type FROM information_schema.tables WHERE table_catalog = ?`, database)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t TableInfo
			if err := rows.Scan(&t.Name, &t.Database, &t.Kind); err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, &engineerr.QueryError{Message: err.Error()}
	}
	return out, nil
}

// GetColumns lists a table's columns via information_schema.
func (e *Engine) GetColumns(ctx context.Context, database, table string) ([]ColumnInfo, error) {
	var out []ColumnInfo
	err := e.pool.ExecuteWithConnection(ctx, func(conn *pool.Connection) error {
		rows, err := conn.Raw.QueryContext(ctx,
			`SELECT column_name, data_type, is_nullable FROM information_schema.columns
			 WHERE table_catalog = ? AND table_name = ? ORDER BY ordinal_position`, database, table)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var name, dtype, nullable string
			if err := rows.Scan(&name, &dtype, &nullable); err != nil {
				return err
			}
			out = append(out, ColumnInfo{Name: name, Type: dtype, Nullable: nullable == "YES"})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, &engineerr.QueryError{Message: err.Error()}
	}
	return out, nil
}

// LoadExtension installs and loads ext if it is allowlisted, and records it
// on the pool so every connection opened afterwards loads it too — a load
// that only touched the one scratch connection it ran on would vanish the
// moment that connection closed.
func (e *Engine) LoadExtension(ctx context.Context, ext string) error {
	return e.pool.LoadExtension(ctx, ext)
}

// ListExtensions returns the exact allowlist, sorted.
func (e *Engine) ListExtensions() []string {
	out := make([]string, 0, len(pool.AllowedExtensions))
	for name := range pool.AllowedExtensions {
		out = append(out, name)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
