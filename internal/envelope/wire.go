package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Wire identifies which encoding a frame uses.
type Wire string

const (
	WireJSON   Wire = "json"
	WireBinary Wire = "binary"
)

// Serialize encodes the envelope in the requested wire format.
func (e *Envelope) Serialize(w Wire) ([]byte, error) {
	switch w {
	case WireJSON:
		return json.Marshal(e)
	case WireBinary:
		return msgpack.Marshal(e)
	default:
		return nil, fmt.Errorf("envelope: unsupported wire format %q", w)
	}
}

// Parse decodes a frame into an Envelope using the requested wire format.
func Parse(data []byte, w Wire) (*Envelope, error) {
	e := &Envelope{}
	var err error
	switch w {
	case WireJSON:
		err = json.Unmarshal(data, e)
	case WireBinary:
		err = msgpack.Unmarshal(data, e)
	default:
		return nil, fmt.Errorf("envelope: unsupported wire format %q", w)
	}
	if err != nil {
		return nil, fmt.Errorf("envelope: parse %s: %w", w, err)
	}
	return e, nil
}
