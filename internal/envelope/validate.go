package envelope

import (
	"regexp"
)

var idPattern = regexp.MustCompile(`^[a-z]+_[0-9]+_[0-9]+_[0-9a-f]+$`)

// Validate checks every invariant in the wire protocol and returns the
// full list of violations found. A nil/empty slice means the envelope is
// well-formed. Validation never stops at the first failure so that the
// caller can report every violation in a single VALIDATION_ERROR reply.
func (e *Envelope) Validate() []string {
	var violations []string

	if e.ID == "" || !idPattern.MatchString(e.ID) {
		violations = append(violations, "id must match the typed-prefix id format")
	}
	if e.Timestamp.IsZero() {
		violations = append(violations, "timestamp is required")
	}
	if e.Version != ProtocolVersion {
		violations = append(violations, "version must be \"1.0\"")
	}

	switch e.Type {
	case KindMessage:
		if len(e.Payload) == 0 {
			violations = append(violations, "message requires a non-empty payload")
		}
	case KindCommand:
		if e.Command == "" {
			violations = append(violations, "command requires a non-empty command name")
		}
	case KindResponse:
		if e.RequestID == "" {
			violations = append(violations, "response requires a request_id")
		}
		if e.Status == "" {
			violations = append(violations, "response requires a status")
		}
		if e.Status != "" && e.Status != StatusSuccess && e.ErrorCode == "" {
			violations = append(violations, "response with status != success must carry an error_code")
		}
	case KindError:
		if e.ErrorCode == "" {
			violations = append(violations, "error envelope requires an error_code")
		}
	case KindTelemetry, KindOperatorJoin:
		// no type-specific required fields beyond the common ones.
	default:
		violations = append(violations, "type is not a recognized kind")
	}

	return violations
}

// IsValid is a convenience wrapper over Validate.
func (e *Envelope) IsValid() bool {
	return len(e.Validate()) == 0
}
