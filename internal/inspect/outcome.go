package inspect

import "github.com/novelbytelabs/arqonbus/internal/apperr"

// Decision is the gate's final verdict for one envelope.
type Decision string

const (
	DecisionAllow              Decision = "ALLOW"
	DecisionAllowWithRedaction Decision = "ALLOW_WITH_REDACTION"
	DecisionBlock              Decision = "BLOCK"
)

// Outcome is the full result of running Engine.Inspect.
type Outcome struct {
	Decision        Decision
	ReasonCode      apperr.Code
	Classification  Classification
	RedactedPayload any
	Metadata        map[string]any
	InternalError   string
}

func (o Outcome) ShouldBlock() bool {
	return o.Decision == DecisionBlock
}

func (o Outcome) ShouldRedactTransport() bool {
	if o.Decision != DecisionAllowWithRedaction {
		return false
	}
	redact, _ := o.Metadata["transport_redaction"].(bool)
	return redact
}
