package engine

import (
	"context"

	"github.com/pondpilot/pondpilot-sub000/connstore"
	"github.com/pondpilot/pondpilot-sub000/engineerr"
	"github.com/pondpilot/pondpilot-sub000/pool"
	"github.com/pondpilot/pondpilot-sub000/secretinjector"
	"github.com/pondpilot/pondpilot-sub000/secretstore"
)

// SaveSecret stores a new credential bundle. Value-returning reads are
// never exposed: every secret read below returns secretstore.Metadata only.
func (e *Engine) SaveSecret(kind secretstore.Kind, name string, fields map[string]string, tags []string, scope, description string) (secretstore.Metadata, error) {
	return e.secrets.Save(kind, name, fields, tags, scope, description)
}

func (e *Engine) ListSecrets(kind secretstore.Kind) ([]secretstore.Metadata, error) {
	return e.secrets.List(kind)
}

func (e *Engine) UpdateSecret(id string, fields secretstore.UpdateFields) (secretstore.Metadata, error) {
	return e.secrets.Update(id, fields)
}

func (e *Engine) DeleteSecret(id string) error {
	return e.secrets.Delete(id)
}

// TestSecret probes connectivity for the stored secret. For non-S3 kinds a
// scratch connection runs the rendered CREATE SECRET statement and a
// `SELECT 1`, then drops the secret. No ATTACH is issued, so this checks
// that the engine accepts the secret, not that the remote service is
// reachable.
func (e *Engine) TestSecret(ctx context.Context, id string) error {
	return e.secrets.Test(ctx, id, e.attachProbe)
}

func (e *Engine) attachProbe(ctx context.Context, kind secretstore.Kind, id string, fields map[string]string) error {
	secretDDL, err := secretinjector.Render(id, kind, fields, "")
	if err != nil {
		return err
	}
	secretName := secretinjector.SecretName(id)

	return e.pool.ExecuteWithConnection(ctx, func(conn *pool.Connection) error {
		if _, err := conn.Raw.ExecContext(ctx, secretDDL); err != nil {
			return err
		}
		defer func() {
			_, _ = conn.Raw.ExecContext(ctx, "DROP SECRET IF EXISTS "+secretName)
		}()
		_, err := conn.Raw.QueryContext(ctx, "SELECT 1")
		return err
	})
}

// ApplySecretToConnection attaches a stored secret to a stored external
// database connection configuration, so that future attach_remote_database
// or test_database_connection calls for that connection use it.
func (e *Engine) ApplySecretToConnection(connectionID, secretID string) (connstore.Connection, error) {
	c, err := e.GetConnection(connectionID)
	if err != nil {
		return connstore.Connection{}, err
	}
	bundle, err := e.secrets.Get(secretID)
	if err != nil {
		return connstore.Connection{}, err
	}
	bundle.Credentials.Zero()
	c.SecretID = secretID
	if err := e.connections.Update(c); err != nil {
		return connstore.Connection{}, &engineerr.PersistenceError{Message: err.Error()}
	}
	return c, nil
}
