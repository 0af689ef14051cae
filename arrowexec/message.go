// Package arrowexec implements the Arrow streaming executor: acquires a
// connection and streaming permit, opens a fresh
// thread-affine connection, classifies the statement, and streams Arrow
// record batches (or a synthetic status batch for non-result statements)
// over a bounded channel with cancellation checked between batches.
package arrowexec

import "github.com/apache/arrow-go/v18/arrow"

// MessageKind tags an ArrowStreamMessage's payload.
type MessageKind int

const (
	MessageSchema MessageKind = iota
	MessageBatch
	MessageComplete
	MessageError
)

// ArrowStreamMessage is one item on the executor's output channel: zero or
// one Schema, zero or more Batch between Schema and the terminal, and
// exactly one terminal (Complete or Error).
type ArrowStreamMessage struct {
	Kind      MessageKind
	Schema    *arrow.Schema
	Batch     arrow.Record
	RowCount  int64
	ErrorText string
}
