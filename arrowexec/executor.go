package arrowexec

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pondpilot/pondpilot-sub000/classifier"
	"github.com/pondpilot/pondpilot-sub000/engineerr"
	"github.com/pondpilot/pondpilot-sub000/myarrow"
	"github.com/pondpilot/pondpilot-sub000/pool"
)

const (
	channelCapacity = 10
	rowsPerBatch    = 2048
)

// Hints carries optional per-query tuning the caller may supply. None of
// the fields are required; zero values fall back to defaults.
type Hints struct {
	BatchRows int
}

// Executor runs one streaming query against a pool. It holds no
// per-execution state; Execute is safe to call concurrently from different
// goroutines (each call acquires its own permits and connection).
type Executor struct {
	pool   *pool.Pool
	logger *logrus.Entry
}

func New(p *pool.Pool, logger *logrus.Entry) *Executor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{pool: p, logger: logger}
}

// Execute implements.7. The returned channel is closed after the
// terminal message is sent.
func (e *Executor) Execute(ctx context.Context, sql string, hints Hints, cancelCtx context.Context, setupStmts []string) (<-chan ArrowStreamMessage, error) {
	if cancelCtx == nil {
		cancelCtx = context.Background()
	}
	out := make(chan ArrowStreamMessage, channelCapacity)

	perm, err := e.pool.AcquireStreamingPermit(ctx)
	if err != nil {
		return nil, err
	}

	go e.run(cancelCtx, perm, sql, hints, setupStmts, out)

	return out, nil
}

// run is the blocking task: it owns the permit and the channel sender for
// its entire lifetime, exactly once emitting a terminal message.
func (e *Executor) run(cancelCtx context.Context, perm *pool.Permit, rawSQL string, hints Hints, setupStmts []string, out chan<- ArrowStreamMessage) {
	var once sync.Once
	emitTerminal := func(msg ArrowStreamMessage) {
		once.Do(func() {
			out <- msg
			close(out)
		})
	}

	defer func() {
		if r := recover(); r != nil {
			//
			// engine task must not poison shared state, just this stream.
			e.logger.WithField("panic", r).Error("panic inside arrow streaming executor")
			emitTerminal(ArrowStreamMessage{Kind: MessageError, ErrorText: "internal panic"})
		}
		perm.Release()
	}()

	if isCancelled(cancelCtx) {
		emitTerminal(ArrowStreamMessage{Kind: MessageError, ErrorText: "cancelled"})
		return
	}

	conn, err := e.pool.CreateConnection(context.Background())
	if err != nil {
		emitTerminal(ArrowStreamMessage{Kind: MessageError, ErrorText: err.Error()})
		return
	}
	defer conn.Close()

	// Best-effort: clears any latent transaction state from a reused
	// driver connection. Never fatal.
	_, _ = conn.Raw.ExecContext(context.Background(), "ROLLBACK")

	for _, stmt := range setupStmts {
		if _, err := conn.Raw.ExecContext(context.Background(), stmt); err != nil {
			e.logger.WithError(err).WithField("stmt", stmt).Warn("setup statement failed, continuing")
		}
	}

	cls := classifier.Classify(rawSQL)
	if !cls.ReturnsRows {
		e.runNonResult(conn, rawSQL, out, emitTerminal)
		return
	}
	e.runResult(cancelCtx, conn, rawSQL, hints, out, emitTerminal)
}

func (e *Executor) runNonResult(conn *pool.Connection, rawSQL string, out chan<- ArrowStreamMessage, emitTerminal func(ArrowStreamMessage)) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "status", Type: arrow.BinaryTypes.String},
		{Name: "message", Type: arrow.BinaryTypes.String},
		{Name: "rows_affected", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	out <- ArrowStreamMessage{Kind: MessageSchema, Schema: schema}

	segments := splitStatements(rawSQL)
	executed := 0
	var execErr error
	for _, seg := range segments {
		if _, err := conn.Raw.ExecContext(context.Background(), seg); err != nil {
			execErr = errors.Wrap(err, "execute statement")
			break
		}
		executed++
	}

	builder := myarrow.NewRowBatchBuilder(schema)
	defer builder.Release()

	if execErr != nil {
		_ = builder.AppendRow([]any{"error", execErr.Error(), int64(executed)})
		out <- ArrowStreamMessage{Kind: MessageBatch, Batch: builder.NewRecord()}
		emitTerminal(ArrowStreamMessage{Kind: MessageError, ErrorText: execErr.Error()})
		return
	}

	_ = builder.AppendRow([]any{"success", pluralStatementMessage(executed), int64(0)})
	out <- ArrowStreamMessage{Kind: MessageBatch, Batch: builder.NewRecord()}
	emitTerminal(ArrowStreamMessage{Kind: MessageComplete, RowCount: 1})
}

func (e *Executor) runResult(cancelCtx context.Context, conn *pool.Connection, rawSQL string, hints Hints, out chan<- ArrowStreamMessage, emitTerminal func(ArrowStreamMessage)) {
	rows, err := conn.Raw.QueryContext(context.Background(), rawSQL)
	if err != nil {
		emitTerminal(ArrowStreamMessage{Kind: MessageError, ErrorText: (&engineerr.QueryError{Message: err.Error(), SQL: rawSQL}).Error()})
		return
	}
	defer rows.Close()

	schema, err := myarrow.ToArrowSchema(rows)
	if err != nil {
		emitTerminal(ArrowStreamMessage{Kind: MessageError, ErrorText: err.Error()})
		return
	}
	out <- ArrowStreamMessage{Kind: MessageSchema, Schema: schema}

	batchSize := hints.BatchRows
	if batchSize <= 0 {
		batchSize = rowsPerBatch
	}

	cols, err := rows.Columns()
	if err != nil {
		emitTerminal(ArrowStreamMessage{Kind: MessageError, ErrorText: err.Error()})
		return
	}

	var total int64
	builder := myarrow.NewRowBatchBuilder(schema)
	defer builder.Release()

	flush := func() {
		if builder.NumRows() == 0 {
			return
		}
		out <- ArrowStreamMessage{Kind: MessageBatch, Batch: builder.NewRecord()}
	}

	for rows.Next() {
		if isCancelled(cancelCtx) {
			flush()
			emitTerminal(ArrowStreamMessage{Kind: MessageError, ErrorText: "cancelled"})
			return
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			flush()
			emitTerminal(ArrowStreamMessage{Kind: MessageError, ErrorText: err.Error()})
			return
		}
		if err := builder.AppendRow(values); err != nil {
			flush()
			emitTerminal(ArrowStreamMessage{Kind: MessageError, ErrorText: err.Error()})
			return
		}
		total++

		if builder.NumRows() >= batchSize {
			flush()
			builder.Release()
			builder = myarrow.NewRowBatchBuilder(schema)
		}
	}
	if err := rows.Err(); err != nil {
		flush()
		emitTerminal(ArrowStreamMessage{Kind: MessageError, ErrorText: err.Error()})
		return
	}

	flush()
	emitTerminal(ArrowStreamMessage{Kind: MessageComplete, RowCount: total})
}

func isCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// splitStatements trims and drops empty `;`-separated segments.
func splitStatements(rawSQL string) []string {
	parts := strings.Split(rawSQL, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func pluralStatementMessage(n int) string {
	return strconv.Itoa(n) + " statement(s) executed successfully"
}
