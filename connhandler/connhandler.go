// Package connhandler implements the long-lived, named connections the UI
// opens as persistent sessions. Each handler owns a
// dedicated goroutine that blocks on a command mailbox and is the only
// goroutine ever allowed to touch its underlying *pool.Connection.
package connhandler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pondpilot/pondpilot-sub000/classifier"
	"github.com/pondpilot/pondpilot-sub000/engineerr"
	"github.com/pondpilot/pondpilot-sub000/pool"
	"github.com/pondpilot/pondpilot-sub000/sanitizer"
)

// ExecuteCommand asks the handler's thread to run one statement and reply
// with row maps (for result statements) or an affected-row count.
type ExecuteCommand struct {
	SQL    string
	Params []any
	Reply  chan ExecuteResult
}

// CloseCommand asks the handler's thread to tear down its connection and
// exit its loop.
type CloseCommand struct {
	Reply chan error
}

// ExecuteResult is what an ExecuteCommand reply carries.
type ExecuteResult struct {
	Rows         []map[string]any
	RowsAffected int64
	Err          error
}

// Handler is the async-side handle to one long-lived connection. All
// fields besides the mailbox and lastActivity are only ever touched by the
// dedicated goroutine started in Start.
type Handler struct {
	ID string

	mailbox chan any // ExecuteCommand | CloseCommand

	mu           sync.Mutex
	lastActivity time.Time

	logger *logrus.Entry
	done   chan struct{}
}

// NewHandler creates a handler and starts its dedicated goroutine, which
// opens the engine connection via p.CreateConnection on that same
// goroutine (thread-affinity requirement).
func NewHandler(ctx context.Context, id string, p *pool.Pool, logger *logrus.Entry) (*Handler, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &Handler{
		ID:           id,
		mailbox:      make(chan any, 10),
		lastActivity: time.Now(),
		logger:       logger.WithField("connection_id", id),
		done:         make(chan struct{}),
	}

	ready := make(chan error, 1)
	go h.run(ctx, p, ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return h, nil
}

// Execute sends an ExecuteCommand to the handler's mailbox and waits for
// its reply.
func (h *Handler) Execute(sql string, params []any) ExecuteResult {
	reply := make(chan ExecuteResult, 1)
	h.mailbox <- ExecuteCommand{SQL: sql, Params: params, Reply: reply}
	return <-reply
}

// Close sends a CloseCommand and waits for the handler's goroutine to exit.
func (h *Handler) Close() error {
	reply := make(chan error, 1)
	h.mailbox <- CloseCommand{Reply: reply}
	err := <-reply
	<-h.done
	return err
}

// LastActivity returns the last time a command was handled, guarded by a
// mutex so the sweeper (running on a different goroutine) never observes a
// torn read.
func (h *Handler) LastActivity() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastActivity
}

func (h *Handler) touch() {
	h.mu.Lock()
	h.lastActivity = time.Now()
	h.mu.Unlock()
}

func (h *Handler) run(ctx context.Context, p *pool.Pool, ready chan<- error) {
	defer close(h.done)

	conn, err := p.CreateConnection(ctx)
	if err != nil {
		ready <- err
		return
	}
	defer conn.Close()
	ready <- nil

	for msg := range h.mailbox {
		switch cmd := msg.(type) {
		case ExecuteCommand:
			h.touch()
			cmd.Reply <- h.handleExecute(ctx, conn, cmd)
		case CloseCommand:
			h.touch()
			cmd.Reply <- nil
			return
		}
	}
}

// handleExecute runs one statement through the sanitizer and classifier,
// then either ExecContext for non-result statements or QueryContext for
// result statements, scanning each driver row into a row map.
func (h *Handler) handleExecute(ctx context.Context, conn *pool.Connection, cmd ExecuteCommand) ExecuteResult {
	if err := sanitizer.ValidateStatement(cmd.SQL); err != nil {
		return ExecuteResult{Err: err}
	}

	built, err := sanitizer.BuildParameterizedSQL(cmd.SQL, cmd.Params)
	if err != nil {
		return ExecuteResult{Err: &engineerr.InvalidQuery{Message: err.Error(), SQL: cmd.SQL}}
	}

	cls := classifier.Classify(built)
	if !cls.ReturnsRows {
		res, err := conn.Raw.ExecContext(ctx, built)
		if err != nil {
			return ExecuteResult{Err: &engineerr.QueryError{Message: err.Error(), SQL: built}}
		}
		affected, _ := res.RowsAffected()
		return ExecuteResult{RowsAffected: affected}
	}

	rows, err := conn.Raw.QueryContext(ctx, built)
	if err != nil {
		return ExecuteResult{Err: &engineerr.QueryError{Message: err.Error(), SQL: built}}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ExecuteResult{Err: &engineerr.QueryError{Message: err.Error(), SQL: built}}
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ExecuteResult{Err: &engineerr.QueryError{Message: err.Error(), SQL: built}}
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return ExecuteResult{Err: &engineerr.QueryError{Message: err.Error(), SQL: built}}
	}

	return ExecuteResult{Rows: out, RowsAffected: int64(len(out))}
}
