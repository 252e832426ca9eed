// Package envelope implements the versioned message record exchanged on
// the ArqonBus wire: construction, validation, and JSON/binary codecs.
package envelope

import (
	"time"

	"github.com/novelbytelabs/arqonbus/internal/ids"
)

// Kind enumerates the recognized envelope types.
type Kind string

const (
	KindMessage       Kind = "message"
	KindCommand       Kind = "command"
	KindResponse      Kind = "response"
	KindError         Kind = "error"
	KindTelemetry     Kind = "telemetry"
	KindOperatorJoin  Kind = "operator.join"
)

// ProtocolVersion is the only wire version this broker accepts.
const ProtocolVersion = "1.0"

// Status enumerates response outcomes.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusPending Status = "pending"
)

// Value is a tagged-JSON value: recursively JSON-valued, string-keyed.
type Value = map[string]any

// Envelope is the universal record carried over the wire. Field tags carry
// both the JSON name (text wire) and the msgpack name (binary wire), since
// both codecs must agree on the same canonical shape.
type Envelope struct {
	ID        string `json:"id" msgpack:"id"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Type      Kind   `json:"type" msgpack:"type"`
	Version   string `json:"version" msgpack:"version"`

	Room       string `json:"room,omitempty" msgpack:"room,omitempty"`
	Channel    string `json:"channel,omitempty" msgpack:"channel,omitempty"`
	Sender     string `json:"sender,omitempty" msgpack:"sender,omitempty"`
	ToClient   string `json:"to_client,omitempty" msgpack:"to_client,omitempty"`
	FromClient string `json:"from_client,omitempty" msgpack:"from_client,omitempty"`

	Payload Value `json:"payload,omitempty" msgpack:"payload,omitempty"`

	Command string `json:"command,omitempty" msgpack:"command,omitempty"`
	Args    Value  `json:"args,omitempty" msgpack:"args,omitempty"`

	RequestID string `json:"request_id,omitempty" msgpack:"request_id,omitempty"`
	Status    Status `json:"status,omitempty" msgpack:"status,omitempty"`
	Error     string `json:"error,omitempty" msgpack:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty" msgpack:"error_code,omitempty"`

	Metadata Value `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// New builds a zero-value envelope of the given kind, stamped with a fresh
// id and the current UTC timestamp. Callers fill in the remaining fields
// before validating.
func New(kind Kind) *Envelope {
	return &Envelope{
		ID:        ids.Envelope(),
		Timestamp: time.Now().UTC(),
		Type:      kind,
		Version:   ProtocolVersion,
	}
}

// Clone returns a deep-enough copy for redaction: top-level maps are
// copied so the inspection gate can mutate a clone without racing the
// original envelope still in flight elsewhere.
func (e *Envelope) Clone() *Envelope {
	cp := *e
	cp.Payload = cloneValue(e.Payload)
	cp.Args = cloneValue(e.Args)
	cp.Metadata = cloneValue(e.Metadata)
	return &cp
}

func cloneValue(v Value) Value {
	if v == nil {
		return nil
	}
	out := make(Value, len(v))
	for k, val := range v {
		if nested, ok := val.(Value); ok {
			out[k] = cloneValue(nested)
		} else if nested, ok := val.(map[string]any); ok {
			out[k] = cloneValue(nested)
		} else {
			out[k] = val
		}
	}
	return out
}
