// Package bridge defines the typed request/response contracts the UI
// command surface dispatches through to the engine core, and the event
// payloads a streaming job emits back.
package bridge

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/pondpilot/pondpilot-sub000/arrowexec"
)

// Event names the four per-job event channels.
type Event struct {
	Name    string
	Payload string
}

func schemaEventName(streamID string) string   { return fmt.Sprintf("stream-%s-schema", streamID) }
func batchEventName(streamID string) string    { return fmt.Sprintf("stream-%s-batch", streamID) }
func completeEventName(streamID string) string { return fmt.Sprintf("stream-%s-complete", streamID) }
func errorEventName(streamID string) string    { return fmt.Sprintf("stream-%s-error", streamID) }

// EncodeMessage turns one arrowexec.ArrowStreamMessage into the event the UI
// transport emits. An unknown MessageKind yields a nil event and an error
// rather than a panic downstream.
func EncodeMessage(streamID string, msg arrowexec.ArrowStreamMessage) (*Event, error) {
	switch msg.Kind {
	case arrowexec.MessageSchema:
		payload, err := encodeSchemaOnly(msg.Schema)
		if err != nil {
			return nil, err
		}
		return &Event{Name: schemaEventName(streamID), Payload: payload}, nil

	case arrowexec.MessageBatch:
		payload, err := encodeSingleBatch(msg.Batch)
		if err != nil {
			return nil, err
		}
		return &Event{Name: batchEventName(streamID), Payload: payload}, nil

	case arrowexec.MessageComplete:
		return &Event{Name: completeEventName(streamID), Payload: fmt.Sprintf("%d", msg.RowCount)}, nil

	case arrowexec.MessageError:
		return &Event{Name: errorEventName(streamID), Payload: msg.ErrorText}, nil

	default:
		return nil, fmt.Errorf("bridge: unknown arrowexec message kind %d", msg.Kind)
	}
}

// encodeSchemaOnly writes an Arrow IPC stream containing the schema message
// and end-of-stream marker but no record batches, then base64-encodes it.
func encodeSchemaOnly(schema *arrow.Schema) (string, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("bridge: encode schema message: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// encodeSingleBatch writes a self-contained Arrow IPC stream carrying the
// schema, exactly one record batch, and the end-of-stream marker. Each
// batch event is independently decodable rather than a fragment of one
// continuously appended stream (see DESIGN.md for the reasoning).
func encodeSingleBatch(rec arrow.Record) (string, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()))
	if err := w.Write(rec); err != nil {
		return "", fmt.Errorf("bridge: encode record batch: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("bridge: close record batch writer: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
