package bridge

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/pondpilot/pondpilot-sub000/arrowexec"
	"github.com/pondpilot/pondpilot-sub000/connstore"
	"github.com/pondpilot/pondpilot-sub000/pool"
	"github.com/pondpilot/pondpilot-sub000/secretstore"
)

// InitializeRequest is the `initialize` command payload.
type InitializeRequest struct {
	EngineType  string
	StorageType string
	StoragePath string
	Extensions  []string
	Options     map[string]string
}

// ExecuteQueryRequest is the `execute_query` command payload.
type ExecuteQueryRequest struct {
	SQL    string
	Params []any
}

// ExecuteQueryResponse mirrors engine.QueryResult.
type ExecuteQueryResponse struct {
	Schema       *arrow.Schema
	Batches      []arrow.Record
	RowsAffected int64
	RowCount     int64
}

// StreamQueryRequest is the `stream_query` command payload.
type StreamQueryRequest struct {
	StreamID string
	SQL      string
	Attach   []string // setup statements run on the streaming connection before SQL
	Hints    arrowexec.Hints
}

// RegisterFileRequest is the `register_file` command payload.
type RegisterFileRequest struct {
	TableName string
	Type      string // csv | parquet | json
	Path      string
}

// FileMetadataResponse mirrors engine.FileMetadata.
type FileMetadataResponse struct {
	TableName string
	Path      string
	Type      string
	SizeBytes int64
	ModTime   time.Time
}

// SaveSecretRequest is the Secret-CRUD "create" command payload. Raw credential values never appear in any response type.
type SaveSecretRequest struct {
	Kind        secretstore.Kind
	Name        string
	Fields      map[string]string
	Tags        []string
	Scope       string
	Description string
}

// UpdateSecretRequest is the Secret-CRUD "update" command payload.
type UpdateSecretRequest struct {
	ID     string
	Fields secretstore.UpdateFields
}

// SaveConnectionRequest is the Connection-CRUD "create"/"update" command
// payload.
type SaveConnectionRequest struct {
	Connection connstore.Connection
}

// AttachRemoteDatabaseRequest is the `attach_remote_database` command
// payload.
type AttachRemoteDatabaseRequest struct {
	Alias            string
	ConnectionString string
	Kind             pool.AttachmentKind
	SecretID         string
	ReadOnly         bool
}

// RegisterMotherDuckAttachmentRequest is the `register_motherduck_attachment`
// command payload. The engine copies Token into the process-wide MotherDuck
// token holder; the request's own string is not zeroed.
type RegisterMotherDuckAttachmentRequest struct {
	Token       string
	DatabaseURL string
}

// ApplySecretToConnectionRequest is the `apply_secret_to_connection` command
// payload.
type ApplySecretToConnectionRequest struct {
	ConnectionID string
	SecretID     string
}
