package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Message(t *testing.T) {
	e := New(KindMessage)
	e.Payload = Value{"content": "hi"}
	assert.Empty(t, e.Validate())

	empty := New(KindMessage)
	assert.Contains(t, empty.Validate(), "message requires a non-empty payload")
}

func TestValidate_Command(t *testing.T) {
	e := New(KindCommand)
	assert.Contains(t, e.Validate(), "command requires a non-empty command name")

	e.Command = "ping"
	assert.Empty(t, e.Validate())
}

func TestValidate_Response(t *testing.T) {
	e := New(KindResponse)
	violations := e.Validate()
	assert.Contains(t, violations, "response requires a request_id")
	assert.Contains(t, violations, "response requires a status")

	e.RequestID = "req-1"
	e.Status = StatusError
	violations = e.Validate()
	assert.Contains(t, violations, "response with status != success must carry an error_code")

	e.ErrorCode = "VALIDATION_ERROR"
	assert.Empty(t, e.Validate())
}

func TestValidate_UnknownType(t *testing.T) {
	e := New(Kind("bogus"))
	assert.Contains(t, e.Validate(), "type is not a recognized kind")
}

func TestValidate_WrongVersion(t *testing.T) {
	e := New(KindTelemetry)
	e.Version = "2.0"
	assert.Contains(t, e.Validate(), "version must be \"1.0\"")
}

// TestRoundTrip_JSON verifies that, on the dev (JSON) wire, validated
// envelopes survive a serialize/parse cycle unchanged.
func TestRoundTrip_JSON(t *testing.T) {
	e := New(KindMessage)
	e.Room = "science"
	e.Channel = "general"
	e.Sender = "client-1"
	e.Payload = Value{"content": "hello", "nested": Value{"a": float64(1)}}
	e.Metadata = Value{"tenant": "acme"}
	require.Empty(t, e.Validate())

	data, err := e.Serialize(WireJSON)
	require.NoError(t, err)

	got, err := Parse(data, WireJSON)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.Room, got.Room)
	assert.Equal(t, e.Channel, got.Channel)
	assert.Equal(t, e.Payload["content"], got.Payload["content"])
}

// TestRoundTrip_Binary verifies the same round-trip on the binary
// (staging/prod) wire.
func TestRoundTrip_Binary(t *testing.T) {
	e := New(KindCommand)
	e.Command = "history"
	e.Args = Value{"room": "science", "limit": float64(10)}
	require.Empty(t, e.Validate())

	data, err := e.Serialize(WireBinary)
	require.NoError(t, err)

	got, err := Parse(data, WireBinary)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.Command, got.Command)
	assert.Equal(t, e.Args["room"], got.Args["room"])
}

func TestClone_IsIndependent(t *testing.T) {
	e := New(KindMessage)
	e.Payload = Value{"content": "secret-token-123"}

	clone := e.Clone()
	clone.Payload["content"] = "[REDACTED]"

	assert.Equal(t, "secret-token-123", e.Payload["content"])
	assert.Equal(t, "[REDACTED]", clone.Payload["content"])
}
