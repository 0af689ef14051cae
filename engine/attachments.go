package engine

import (
	"context"
	"fmt"

	"github.com/pondpilot/pondpilot-sub000/engineerr"
	"github.com/pondpilot/pondpilot-sub000/pool"
	"github.com/pondpilot/pondpilot-sub000/secretinjector"
)

// AttachRemoteDatabase registers a new attachment and best-effort replays
// it against every currently open long-lived connection; future pool
// connections pick it up automatically through CreateConnection.
func (e *Engine) AttachRemoteDatabase(ctx context.Context, alias, connStr string, kind pool.AttachmentKind, secretID string, readOnly bool) error {
	var secretSQL, secretName string
	if secretID != "" {
		bundle, err := e.secrets.Get(secretID)
		if err != nil {
			return err
		}
		defer bundle.Credentials.Zero()

		ddl, err := secretinjector.Render(secretID, bundle.Metadata.Kind, bundle.Credentials.Fields(), "")
		if err != nil {
			return &engineerr.ConnectionError{Message: "failed to render secret DDL", Context: err.Error()}
		}
		secretSQL = ddl
		secretName = secretinjector.SecretName(secretID)
	}

	a := pool.Attachment{
		Alias:            alias,
		ConnectionString: connStr,
		Kind:             kind,
		SecretSQL:        secretSQL,
		SecretName:       secretName,
		ReadOnly:         readOnly,
	}
	if !e.pool.Attachments().Register(a) {
		return &engineerr.InvalidOperation{Message: fmt.Sprintf("alias %q already attached", alias), Operation: "attach_remote_database"}
	}

	e.replayOnLongLivedConnections(ctx, a)
	return nil
}

// RegisterMotherDuckAttachment sets the process-wide MotherDuck token
// (never written to the environment) and registers a MOTHERDUCK-kind
// attachment for databaseURL (e.g. "md:mydb").
func (e *Engine) RegisterMotherDuckAttachment(ctx context.Context, token, databaseURL string) error {
	pool.GlobalMotherDuckToken().Set(token)

	a := pool.Attachment{
		Alias:            "",
		ConnectionString: databaseURL,
		Kind:             pool.AttachmentMotherDuck,
	}
	e.pool.Attachments().Register(a)
	e.replayOnLongLivedConnections(ctx, a)
	return nil
}

// replayOnLongLivedConnections is the "attach-to-all-existing-connections"
// best-effort loop: failures are logged and skipped, never fatal, matching
// per-connection replay semantics at CreateConnection time.
func (e *Engine) replayOnLongLivedConnections(ctx context.Context, a pool.Attachment) {
	stmt, err := pool.AttachSQL(a)
	if err != nil {
		e.logger.WithError(err).Warn("could not render attach statement for existing connections")
		return
	}

	for _, h := range e.handlers.Snapshot() {
		res := h.Execute(stmt, nil)
		if res.Err != nil {
			e.logger.WithError(res.Err).WithField("connection_id", h.ID).Warn("attachment replay failed on long-lived connection")
		}
	}
}
