package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/pondpilot/pondpilot-sub000/connhandler"
	"github.com/pondpilot/pondpilot-sub000/connstore"
	"github.com/pondpilot/pondpilot-sub000/engineerr"
)

// OpenLongLivedConnection starts a new named connhandler.Handler, registers it with the sweeper-bearing manager, and returns it.
func (e *Engine) OpenLongLivedConnection(ctx context.Context) (*connhandler.Handler, error) {
	id := uuid.NewString()
	h, err := connhandler.NewHandler(ctx, id, e.pool, e.logger)
	if err != nil {
		return nil, &engineerr.ConnectionError{Message: "failed to open long-lived connection", Context: err.Error()}
	}
	e.handlers.Register(h)
	return h, nil
}

// CloseLongLivedConnection closes and forgets a previously opened handler.
func (e *Engine) CloseLongLivedConnection(id string) error {
	h, ok := e.handlers.Get(id)
	if !ok {
		return &engineerr.InvalidOperation{Message: "unknown connection id", Operation: "close_connection"}
	}
	e.handlers.Remove(id)
	return h.Close()
}

// SaveConnection persists an external database connection configuration.
func (e *Engine) SaveConnection(c connstore.Connection) (connstore.Connection, error) {
	if err := c.Validate(); err != nil {
		return connstore.Connection{}, &engineerr.InvalidOperation{Message: err.Error(), Operation: "save_connection"}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := e.connections.Insert(c); err != nil {
		return connstore.Connection{}, &engineerr.PersistenceError{Message: err.Error()}
	}
	return c, nil
}

func (e *Engine) GetConnection(id string) (connstore.Connection, error) {
	c, ok, err := e.connections.Get(id)
	if err != nil {
		return connstore.Connection{}, wrapConnStoreError(err)
	}
	if !ok {
		return connstore.Connection{}, &engineerr.InvalidOperation{Message: "connection not found", Operation: "get_connection"}
	}
	return c, nil
}

func (e *Engine) ListConnections(kind connstore.Kind) ([]connstore.Connection, error) {
	list, err := e.connections.List(kind)
	if err != nil {
		return nil, wrapConnStoreError(err)
	}
	return list, nil
}

// wrapConnStoreError preserves an already-typed engineerr error (e.g. the
// read-time port-range rejection in connstore.toConnection) instead of
// flattening it into a generic PersistenceError.
func wrapConnStoreError(err error) error {
	switch err.(type) {
	case *engineerr.InvalidOperation, *engineerr.ConnectionError, *engineerr.InvalidQuery:
		return err
	default:
		return &engineerr.PersistenceError{Message: err.Error()}
	}
}

func (e *Engine) DeleteConnection(id string) error {
	if err := e.connections.Delete(id); err != nil {
		return &engineerr.PersistenceError{Message: err.Error()}
	}
	return nil
}

// TestDatabaseConnection resolves the stored secret's username/password and
// probes connectivity via connstore.Probe.
func (e *Engine) TestDatabaseConnection(ctx context.Context, id string) error {
	c, err := e.GetConnection(id)
	if err != nil {
		return err
	}

	var creds connstore.Credentials
	if c.SecretID != "" {
		bundle, err := e.secrets.Get(c.SecretID)
		if err != nil {
			return err
		}
		defer bundle.Credentials.Zero()
		fields := bundle.Credentials.Fields()
		creds = connstore.Credentials{Username: fields["username"], Password: fields["password"]}
	}

	var connKind connstore.Kind
	switch c.Type {
	case connstore.KindPostgres, connstore.KindMySQL:
		connKind = c.Type
	default:
		return &engineerr.InvalidOperation{Message: "unsupported connection_type for test_database_connection", Operation: "test_database_connection"}
	}

	probeConn := c
	probeConn.Type = connKind
	return connstore.Probe(ctx, probeConn, creds)
}
