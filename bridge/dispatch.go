package bridge

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pondpilot/pondpilot-sub000/connstore"
	"github.com/pondpilot/pondpilot-sub000/engine"
	"github.com/pondpilot/pondpilot-sub000/engineerr"
	"github.com/pondpilot/pondpilot-sub000/secretstore"
)

// EventSink receives the events a running stream_query job emits. Implementations typically forward Event.Name /
// Event.Payload to the UI process transport unchanged.
type EventSink func(Event)

// Dispatcher is the thin translation layer between the UI command surface
// and the engine.Engine facade: one method per row of the command-surface
// table. It holds no business logic of its own.
type Dispatcher struct {
	mu     sync.Mutex
	eng    *engine.Engine
	logger *logrus.Entry

	secretIndexPath         string
	connectionIndexPath     string
	maxConnections          int
	maxStreamingConnections int
	pathValidator           engine.PathValidator
}

// DispatcherOptions carries the host-process configuration that isn't part
// of any single command payload (index file locations, the injected path
// validator, logging) but is needed to build the engine.Config an
// `initialize` call constructs.
type DispatcherOptions struct {
	SecretIndexPath         string
	ConnectionIndexPath     string
	MaxConnections          int
	MaxStreamingConnections int
	PathValidator           engine.PathValidator
	Logger                  *logrus.Entry
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		logger:                  logger,
		secretIndexPath:         opts.SecretIndexPath,
		connectionIndexPath:     opts.ConnectionIndexPath,
		maxConnections:          opts.MaxConnections,
		maxStreamingConnections: opts.MaxStreamingConnections,
		pathValidator:           opts.PathValidator,
	}
}

func (d *Dispatcher) engineOrErr() (*engine.Engine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.eng == nil {
		return nil, &engineerr.InvalidOperation{Message: "engine not initialized", Operation: "dispatch"}
	}
	return d.eng, nil
}

// Initialize is the `initialize` command: builds and binds the engine.Engine.
func (d *Dispatcher) Initialize(ctx context.Context, req InitializeRequest) error {
	cfg := engine.Config{
		EngineType:              req.EngineType,
		StorageType:             req.StorageType,
		StoragePath:             req.StoragePath,
		Extensions:              req.Extensions,
		Options:                 req.Options,
		MaxConnections:          d.maxConnections,
		MaxStreamingConnections: d.maxStreamingConnections,
		SecretIndexPath:         d.secretIndexPath,
		ConnectionIndexPath:     d.connectionIndexPath,
		PathValidator:           d.pathValidator,
		Logger:                  d.logger,
	}

	eng, err := engine.Initialize(ctx, cfg)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.eng = eng
	d.mu.Unlock()
	return nil
}

// Shutdown releases the bound engine, if any.
func (d *Dispatcher) Shutdown() error {
	d.mu.Lock()
	eng := d.eng
	d.eng = nil
	d.mu.Unlock()
	if eng == nil {
		return nil
	}
	return eng.Close()
}

// ExecuteQuery is the `execute_query` command.
func (d *Dispatcher) ExecuteQuery(ctx context.Context, req ExecuteQueryRequest) (ExecuteQueryResponse, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return ExecuteQueryResponse{}, err
	}
	res, err := eng.ExecuteQuery(ctx, req.SQL, req.Params)
	if err != nil {
		return ExecuteQueryResponse{}, err
	}
	return ExecuteQueryResponse{
		Schema:       res.Schema,
		Batches:      res.Batches,
		RowsAffected: res.RowsAffected,
		RowCount:     res.RowCount,
	}, nil
}

// StreamQuery is the `stream_query` command. It returns once the job is
// accepted; sink is called from a
// dedicated goroutine for every event the job emits until the terminal
// event, after which the goroutine exits.
func (d *Dispatcher) StreamQuery(ctx context.Context, req StreamQueryRequest, sink EventSink) error {
	eng, err := d.engineOrErr()
	if err != nil {
		return err
	}

	msgs, err := eng.ExecuteArrowStreaming(ctx, req.StreamID, req.SQL, req.Hints, req.Attach)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			evt, err := EncodeMessage(req.StreamID, msg)
			if err != nil {
				d.logger.WithError(err).WithField("stream_id", req.StreamID).Warn("failed to encode stream event")
				continue
			}
			sink(*evt)
		}
	}()
	return nil
}

// CancelStream is the `cancel_stream` command: idempotent, never errors on
// an unknown or already-finished stream id.
func (d *Dispatcher) CancelStream(streamID string) error {
	eng, err := d.engineOrErr()
	if err != nil {
		return err
	}
	eng.CancelStream(streamID)
	return nil
}

// AcknowledgeStreamBatch is the `acknowledge_stream_batch` command: blocks
// while the stream's single-slot ack channel still holds an unconsumed ack.
func (d *Dispatcher) AcknowledgeStreamBatch(streamID string) error {
	eng, err := d.engineOrErr()
	if err != nil {
		return err
	}
	return eng.AcknowledgeStreamBatch(streamID)
}

// GetDatabases, GetTables and GetColumns are the read-only catalog commands.
func (d *Dispatcher) GetDatabases(ctx context.Context) ([]engine.DatabaseInfo, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return nil, err
	}
	return eng.GetDatabases(ctx)
}

func (d *Dispatcher) GetTables(ctx context.Context, database string) ([]engine.TableInfo, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return nil, err
	}
	return eng.GetTables(ctx, database)
}

func (d *Dispatcher) GetColumns(ctx context.Context, database, table string) ([]engine.ColumnInfo, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return nil, err
	}
	return eng.GetColumns(ctx, database, table)
}

// GetCatalog combines the three reads above into a single response, for UI
// callers that want the whole tree in one round trip.
type CatalogResponse struct {
	Databases []engine.DatabaseInfo
	Tables    map[string][]engine.TableInfo
}

func (d *Dispatcher) GetCatalog(ctx context.Context) (CatalogResponse, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return CatalogResponse{}, err
	}
	dbs, err := eng.GetDatabases(ctx)
	if err != nil {
		return CatalogResponse{}, err
	}
	out := CatalogResponse{Databases: dbs, Tables: make(map[string][]engine.TableInfo, len(dbs))}
	for _, db := range dbs {
		tables, err := eng.GetTables(ctx, db.Name)
		if err != nil {
			return CatalogResponse{}, err
		}
		out.Tables[db.Name] = tables
	}
	return out, nil
}

// RegisterFile, DropFile and ListFiles are the file-registration commands.
func (d *Dispatcher) RegisterFile(ctx context.Context, req RegisterFileRequest) (FileMetadataResponse, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return FileMetadataResponse{}, err
	}
	meta, err := eng.RegisterFile(ctx, req.TableName, req.Type, req.Path)
	if err != nil {
		return FileMetadataResponse{}, err
	}
	return FileMetadataResponse(meta), nil
}

func (d *Dispatcher) DropFile(ctx context.Context, tableName string) error {
	eng, err := d.engineOrErr()
	if err != nil {
		return err
	}
	return eng.DropFile(ctx, tableName)
}

func (d *Dispatcher) ListFiles() ([]FileMetadataResponse, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return nil, err
	}
	files := eng.ListFiles()
	out := make([]FileMetadataResponse, len(files))
	for i, f := range files {
		out[i] = FileMetadataResponse(f)
	}
	return out, nil
}

// LoadExtension and ListExtensions are the extension commands.
func (d *Dispatcher) LoadExtension(ctx context.Context, name string) error {
	eng, err := d.engineOrErr()
	if err != nil {
		return err
	}
	return eng.LoadExtension(ctx, name)
}

func (d *Dispatcher) ListExtensions() ([]string, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return nil, err
	}
	return eng.ListExtensions(), nil
}

// Secret CRUD + test_secret + apply_secret_to_connection.
func (d *Dispatcher) SaveSecret(req SaveSecretRequest) (secretstore.Metadata, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return secretstore.Metadata{}, err
	}
	return eng.SaveSecret(req.Kind, req.Name, req.Fields, req.Tags, req.Scope, req.Description)
}

func (d *Dispatcher) ListSecrets(kind secretstore.Kind) ([]secretstore.Metadata, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return nil, err
	}
	return eng.ListSecrets(kind)
}

func (d *Dispatcher) UpdateSecret(req UpdateSecretRequest) (secretstore.Metadata, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return secretstore.Metadata{}, err
	}
	return eng.UpdateSecret(req.ID, req.Fields)
}

func (d *Dispatcher) DeleteSecret(id string) error {
	eng, err := d.engineOrErr()
	if err != nil {
		return err
	}
	return eng.DeleteSecret(id)
}

func (d *Dispatcher) TestSecret(ctx context.Context, id string) error {
	eng, err := d.engineOrErr()
	if err != nil {
		return err
	}
	return eng.TestSecret(ctx, id)
}

func (d *Dispatcher) ApplySecretToConnection(req ApplySecretToConnectionRequest) (connstore.Connection, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return connstore.Connection{}, err
	}
	return eng.ApplySecretToConnection(req.ConnectionID, req.SecretID)
}

// Connection CRUD + test_database_connection + attach_remote_database +
// register_motherduck_attachment. Per
// main-window-only; enforcing that UI-level restriction is the transport's
// job, not the dispatcher's.
func (d *Dispatcher) SaveConnection(req SaveConnectionRequest) (connstore.Connection, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return connstore.Connection{}, err
	}
	return eng.SaveConnection(req.Connection)
}

func (d *Dispatcher) GetConnection(id string) (connstore.Connection, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return connstore.Connection{}, err
	}
	return eng.GetConnection(id)
}

func (d *Dispatcher) ListConnections(kind connstore.Kind) ([]connstore.Connection, error) {
	eng, err := d.engineOrErr()
	if err != nil {
		return nil, err
	}
	return eng.ListConnections(kind)
}

func (d *Dispatcher) DeleteConnection(id string) error {
	eng, err := d.engineOrErr()
	if err != nil {
		return err
	}
	return eng.DeleteConnection(id)
}

func (d *Dispatcher) TestDatabaseConnection(ctx context.Context, id string) error {
	eng, err := d.engineOrErr()
	if err != nil {
		return err
	}
	return eng.TestDatabaseConnection(ctx, id)
}

func (d *Dispatcher) AttachRemoteDatabase(ctx context.Context, req AttachRemoteDatabaseRequest) error {
	eng, err := d.engineOrErr()
	if err != nil {
		return err
	}
	return eng.AttachRemoteDatabase(ctx, req.Alias, req.ConnectionString, req.Kind, req.SecretID, req.ReadOnly)
}

func (d *Dispatcher) RegisterMotherDuckAttachment(ctx context.Context, req RegisterMotherDuckAttachmentRequest) error {
	eng, err := d.engineOrErr()
	if err != nil {
		return err
	}
	return eng.RegisterMotherDuckAttachment(ctx, req.Token, req.DatabaseURL)
}
