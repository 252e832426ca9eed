package inspect

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/novelbytelabs/arqonbus/internal/apperr"
	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

// Engine orchestrates scope matching, classification, policy
// evaluation, and redaction. Its configuration is swapped atomically so
// Reload never blocks or races an in-flight Inspect call; whichever
// *Config a call already loaded is the one it finishes with.
type Engine struct {
	cfg atomic.Pointer[Config]
}

func NewEngine(cfg *Config) *Engine {
	e := &Engine{}
	e.cfg.Store(cfg)
	return e
}

// Reload atomically replaces the active configuration. Safe to call
// concurrently with Inspect.
func (e *Engine) Reload(cfg *Config) {
	e.cfg.Store(cfg)
}

func (e *Engine) Config() *Config {
	return e.cfg.Load()
}

// Inspect runs the full pipeline for env and never panics: any internal
// failure is converted into a deterministic fallback outcome.
func (e *Engine) Inspect(env *envelope.Envelope) (outcome Outcome) {
	cfg := e.cfg.Load()

	defer func() {
		if r := recover(); r != nil {
			outcome = fallbackOutcome(cfg, fmt.Sprintf("panic: %v", r))
		}
	}()

	if !cfg.Enabled {
		return Outcome{Decision: DecisionAllow, ReasonCode: apperr.CodeCasilDisabled}
	}

	if !inScope(env.Room, env.Channel, cfg) {
		return Outcome{Decision: DecisionAllow, ReasonCode: apperr.CodeCasilOutOfScope}
	}

	roomChannel := env.Room
	if env.Room != "" && env.Channel != "" {
		roomChannel = env.Room + ":" + env.Channel
	} else if env.Channel != "" {
		roomChannel = env.Channel
	}

	payloadBytes, _ := json.Marshal(env.Payload)
	oversize := cfg.Limits.MaxInspectBytes > 0 && len(payloadBytes) > cfg.Limits.MaxInspectBytes

	classification := classify(env, cfg, oversize)
	policy := evaluatePolicies(env, cfg, classification.Flags)

	decision := DecisionAllow
	reasonCode := policy.ReasonCode
	var redacted any

	redactionNeeded := policy.ShouldRedact ||
		len(cfg.Policies.Redaction.Paths) > 0 ||
		len(cfg.Policies.Redaction.Patterns) > 0 ||
		len(cfg.Policies.Redaction.NeverLogPayloadFor) > 0

	if redactionNeeded {
		redacted = redactPayload(env.Payload, cfg, "logs", roomChannel)
	}

	switch {
	case policy.ShouldBlock:
		decision = DecisionBlock
	case redactionNeeded:
		decision = DecisionAllowWithRedaction
	default:
		decision = DecisionAllow
	}

	if cfg.Mode == ModeObserve && decision == DecisionBlock {
		if policy.ShouldRedact {
			decision = DecisionAllowWithRedaction
		} else {
			decision = DecisionAllow
		}
		reasonCode = apperr.CodeCasilMonitorMode
	}

	return Outcome{
		Decision:        decision,
		ReasonCode:      reasonCode,
		Classification:  classification,
		RedactedPayload: redacted,
		Metadata: map[string]any{
			"flags":               classification.Flags,
			"mode":                string(cfg.Mode),
			"room":                env.Room,
			"channel":             env.Channel,
			"transport_redaction": cfg.Policies.Redaction.TransportRedaction,
		},
	}
}
