package engine

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/sirupsen/logrus"

	"github.com/pondpilot/pondpilot-sub000/arrowexec"
	"github.com/pondpilot/pondpilot-sub000/connhandler"
	"github.com/pondpilot/pondpilot-sub000/connstore"
	"github.com/pondpilot/pondpilot-sub000/engineerr"
	"github.com/pondpilot/pondpilot-sub000/pool"
	"github.com/pondpilot/pondpilot-sub000/sanitizer"
	"github.com/pondpilot/pondpilot-sub000/secretstore"
	"github.com/pondpilot/pondpilot-sub000/streammgr"
)

// Initialize builds a Engine from cfg: opens the pool (sizing its
// resources), the secret and connection indexes, and loads every
// allowlisted extension named in cfg.Extensions.
func Initialize(ctx context.Context, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	limits := pool.SizeResources(0)
	p, err := pool.New(pool.Config{
		DatabasePath:            cfg.StoragePath,
		MaxConnections:          cfg.MaxConnections,
		MaxStreamingConnections: cfg.MaxStreamingConnections,
		Extensions:              cfg.Extensions,
		Limits:                  limits,
		Logger:                  logger,
	})
	if err != nil {
		return nil, err
	}

	secretIndex, err := secretstore.OpenIndex(cfg.SecretIndexPath)
	if err != nil {
		p.Close()
		return nil, &engineerr.InitializationError{Message: err.Error()}
	}
	secrets := secretstore.NewStore(secretIndex, secretstore.NewKeychain(logger), secretstore.WithLogger(logger))

	connIndex, err := connstore.OpenIndex(cfg.ConnectionIndexPath)
	if err != nil {
		p.Close()
		return nil, &engineerr.InitializationError{Message: err.Error()}
	}

	e := &Engine{
		cfg:         cfg,
		pool:        p,
		executor:    arrowexec.New(p, logger),
		streams:     streammgr.NewManager(),
		secrets:     secrets,
		connections: connIndex,
		handlers:    connhandler.NewManager(0, 0, logger),
		pathValid:   cfg.PathValidator,
		logger:      logger,
		files:       make(map[string]FileMetadata),
	}
	go e.handlers.Run()

	if err := e.verifyConnectivity(ctx); err != nil {
		return nil, err
	}

	return e, nil
}

// verifyConnectivity opens and immediately drops one connection, forcing
// pragma application and extension load to run at start-up rather than on
// the first query.
func (e *Engine) verifyConnectivity(ctx context.Context) error {
	return e.pool.ExecuteWithConnection(ctx, func(conn *pool.Connection) error {
		return nil
	})
}

// Close stops the long-lived connection sweeper and closes the connection
// index and the pool. The secret index is not closed here.
func (e *Engine) Close() error {
	e.handlers.Stop()
	if err := e.connections.Close(); err != nil {
		e.logger.WithError(err).Warn("error closing connection index")
	}
	return e.pool.Close()
}

// QueryResult is execute_query's drained output.
type QueryResult struct {
	Schema       *arrow.Schema
	Batches      []arrow.Record
	RowsAffected int64
	RowCount     int64
}

// ExecuteQuery runs sql through the sanitizer/executor path, draining the
// streaming result into memory instead of handing batches back piecemeal.
func (e *Engine) ExecuteQuery(ctx context.Context, sql string, params []any) (QueryResult, error) {
	built, err := buildSQL(sql, params)
	if err != nil {
		return QueryResult{}, err
	}

	msgs, err := e.executor.Execute(ctx, built, arrowexec.Hints{}, ctx, nil)
	if err != nil {
		return QueryResult{}, err
	}

	var result QueryResult
	for msg := range msgs {
		switch msg.Kind {
		case arrowexec.MessageSchema:
			result.Schema = msg.Schema
		case arrowexec.MessageBatch:
			result.Batches = append(result.Batches, msg.Batch)
		case arrowexec.MessageComplete:
			result.RowCount = msg.RowCount
		case arrowexec.MessageError:
			return result, &engineerr.QueryError{Message: msg.ErrorText, SQL: built}
		}
	}
	return result, nil
}

// ExecuteArrowStreaming registers streamID with the stream manager, then
// runs the Arrow streaming executor using that stream's cancellation
// token.
func (e *Engine) ExecuteArrowStreaming(ctx context.Context, streamID, sql string, hints arrowexec.Hints, setupStmts []string) (<-chan arrowexec.ArrowStreamMessage, error) {
	if err := streammgr.ValidateStreamID(streamID); err != nil {
		return nil, &engineerr.InvalidOperation{Message: err.Error(), Operation: "stream_query"}
	}

	built, err := buildSQL(sql, nil)
	if err != nil {
		return nil, err
	}

	cancelCtx, ackCh := e.streams.Register(streamID)
	msgs, err := e.executor.Execute(ctx, built, hints, cancelCtx, setupStmts)
	if err != nil {
		e.streams.Cleanup(streamID)
		return nil, err
	}

	out := make(chan arrowexec.ArrowStreamMessage, cap(msgs))
	go func() {
		defer close(out)
		defer e.streams.Cleanup(streamID)

		unacked := 0
		for msg := range msgs {
			if msg.Kind == arrowexec.MessageBatch {
				if unacked >= streammgr.DefaultWatermark {
					<-ackCh
					unacked--
				}
				unacked++
			}
			out <- msg
		}
	}()
	return out, nil
}

func (e *Engine) CancelStream(streamID string) {
	e.streams.Cancel(streamID)
}

func (e *Engine) AcknowledgeStreamBatch(streamID string) error {
	return e.streams.Acknowledge(streamID)
}

func buildSQL(sqlText string, params []any) (string, error) {
	if err := sanitizer.ValidateStatement(sqlText); err != nil {
		return "", err
	}
	if len(params) == 0 {
		return sqlText, nil
	}
	built, err := sanitizer.BuildParameterizedSQL(sqlText, params)
	if err != nil {
		return "", &engineerr.InvalidQuery{Message: err.Error(), SQL: sqlText}
	}
	return built, nil
}
