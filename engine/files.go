package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/pondpilot/pondpilot-sub000/engineerr"
	"github.com/pondpilot/pondpilot-sub000/pool"
	"github.com/pondpilot/pondpilot-sub000/sanitizer"
)

// readFunc maps a registered file type to the DuckDB table function that
// reads it.
var readFunc = map[string]string{
	"csv":     "read_csv",
	"parquet": "read_parquet",
	"json":    "read_json_auto",
}

// RegisterFile validates path via the injected PathValidator, sanitizes
// tableName, and runs `CREATE OR REPLACE TABLE <t> AS SELECT * FROM
// read_<type>('<p>')`, recording size/mtime metadata on success.
func (e *Engine) RegisterFile(ctx context.Context, tableName, fileType, path string) (FileMetadata, error) {
	fn, ok := readFunc[fileType]
	if !ok {
		return FileMetadata{}, &engineerr.InvalidOperation{Message: fmt.Sprintf("unsupported file type %q", fileType), Operation: "register_file"}
	}

	canonical := path
	if e.pathValid != nil {
		var err error
		canonical, err = e.pathValid.Validate(path)
		if err != nil {
			return FileMetadata{}, &engineerr.FileAccess{Message: err.Error(), Path: path}
		}
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return FileMetadata{}, &engineerr.FileNotFound{Path: canonical}
	}

	ident, err := sanitizer.EscapeIdentifier(tableName)
	if err != nil {
		return FileMetadata{}, &engineerr.InvalidQuery{Message: err.Error()}
	}

	escapedPath, err := sanitizer.EscapeSQLValue(canonical)
	if err != nil {
		return FileMetadata{}, &engineerr.InvalidQuery{Message: err.Error()}
	}

	ddl := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM %s(%s)`, ident, fn, escapedPath)
	if err := e.pool.ExecuteWithConnection(ctx, func(conn *pool.Connection) error {
		_, execErr := conn.Raw.ExecContext(ctx, ddl)
		return execErr
	}); err != nil {
		return FileMetadata{}, &engineerr.QueryError{Message: err.Error(), SQL: ddl}
	}

	meta := FileMetadata{
		TableName: tableName,
		Path:      canonical,
		Type:      fileType,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}
	e.filesMu.Lock()
	e.files[tableName] = meta
	e.filesMu.Unlock()

	return meta, nil
}

// DropFile drops the table backing a registered file and forgets its
// metadata.
func (e *Engine) DropFile(ctx context.Context, tableName string) error {
	ident, err := sanitizer.EscapeIdentifier(tableName)
	if err != nil {
		return &engineerr.InvalidQuery{Message: err.Error()}
	}

	if err := e.pool.ExecuteWithConnection(ctx, func(conn *pool.Connection) error {
		_, execErr := conn.Raw.ExecContext(ctx, "DROP TABLE IF EXISTS "+ident)
		return execErr
	}); err != nil {
		return &engineerr.QueryError{Message: err.Error()}
	}

	e.filesMu.Lock()
	delete(e.files, tableName)
	e.filesMu.Unlock()
	return nil
}

// ListFiles returns metadata for every currently registered file.
func (e *Engine) ListFiles() []FileMetadata {
	e.filesMu.Lock()
	defer e.filesMu.Unlock()
	out := make([]FileMetadata, 0, len(e.files))
	for _, m := range e.files {
		out = append(out, m)
	}
	return out
}
