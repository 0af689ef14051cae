package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pondpilot/pondpilot-sub000/arrowexec"
)

func TestEncodeMessage_CompleteCarriesRowCount(t *testing.T) {
	evt, err := EncodeMessage("abc123", arrowexec.ArrowStreamMessage{Kind: arrowexec.MessageComplete, RowCount: 42})
	require.NoError(t, err)
	assert.Equal(t, "stream-abc123-complete", evt.Name)
	assert.Equal(t, "42", evt.Payload)
}

func TestEncodeMessage_ErrorCarriesText(t *testing.T) {
	evt, err := EncodeMessage("abc123", arrowexec.ArrowStreamMessage{Kind: arrowexec.MessageError, ErrorText: "boom"})
	require.NoError(t, err)
	assert.Equal(t, "stream-abc123-error", evt.Name)
	assert.Equal(t, "boom", evt.Payload)
}

func TestEncodeMessage_UnknownKindErrors(t *testing.T) {
	_, err := EncodeMessage("abc123", arrowexec.ArrowStreamMessage{Kind: arrowexec.MessageKind(99)})
	assert.Error(t, err)
}

func TestEventNames(t *testing.T) {
	assert.Equal(t, "stream-x-schema", schemaEventName("x"))
	assert.Equal(t, "stream-x-batch", batchEventName("x"))
	assert.Equal(t, "stream-x-complete", completeEventName("x"))
	assert.Equal(t, "stream-x-error", errorEventName("x"))
}
