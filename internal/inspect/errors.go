package inspect

import "github.com/novelbytelabs/arqonbus/internal/apperr"

// fallbackOutcome is returned whenever the inspection pipeline itself
// fails; it must never let a panic or error escape to the caller, since
// a broken gate must not be able to take the whole bus down.
func fallbackOutcome(cfg *Config, cause string) Outcome {
	decision := DecisionAllow
	if cfg.DefaultDecision == DefaultBlock {
		decision = DecisionBlock
	}
	return Outcome{
		Decision:      decision,
		ReasonCode:    apperr.CodeCasilInternalError,
		InternalError: cause,
	}
}
