package inspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelbytelabs/arqonbus/internal/apperr"
	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

func messageEnvelope(room, channel string, payload envelope.Value) *envelope.Envelope {
	env := envelope.New(envelope.KindMessage)
	env.Room, env.Channel = room, channel
	env.Payload = payload
	return env
}

func TestInspect_OutOfScopeAllowsWithoutInspection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scope.Include = []string{"ops:*"}
	e := NewEngine(cfg)

	outcome := e.Inspect(messageEnvelope("lobby", "general", envelope.Value{"text": "hi"}))
	assert.Equal(t, DecisionAllow, outcome.Decision)
	assert.Equal(t, apperr.CodeCasilOutOfScope, outcome.ReasonCode)
}

func TestInspect_BlocksProbableSecretInEnforceMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policies.BlockOnProbableSecret = true
	e := NewEngine(cfg)

	outcome := e.Inspect(messageEnvelope("ops", "alerts", envelope.Value{"note": "api_key=sk-12345"}))
	require.Equal(t, DecisionBlock, outcome.Decision)
	assert.Equal(t, apperr.CodeCasilBlockedSecret, outcome.ReasonCode)
}

func TestInspect_RedactsWithoutBlockingWhenNotConfiguredToBlock(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(cfg)

	outcome := e.Inspect(messageEnvelope("ops", "alerts", envelope.Value{"note": "token=abc123"}))
	assert.Equal(t, DecisionAllowWithRedaction, outcome.Decision)
	assert.NotNil(t, outcome.RedactedPayload)
}

func TestInspect_OversizePayloadBlocked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policies.MaxPayloadBytes = 10
	e := NewEngine(cfg)

	outcome := e.Inspect(messageEnvelope("ops", "alerts", envelope.Value{"text": "this payload is far too long"}))
	assert.Equal(t, DecisionBlock, outcome.Decision)
	assert.Equal(t, apperr.CodeCasilOversize, outcome.ReasonCode)
}

func TestInspect_ObserveModeDowngradesBlock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeObserve
	cfg.Policies.BlockOnProbableSecret = true
	e := NewEngine(cfg)

	outcome := e.Inspect(messageEnvelope("ops", "alerts", envelope.Value{"note": "password=hunter2"}))
	assert.NotEqual(t, DecisionBlock, outcome.Decision)
	assert.Equal(t, apperr.CodeCasilMonitorMode, outcome.ReasonCode)
}

func TestInspect_DisabledAllowsEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	e := NewEngine(cfg)

	outcome := e.Inspect(messageEnvelope("ops", "alerts", envelope.Value{"note": "password=hunter2"}))
	assert.Equal(t, DecisionAllow, outcome.Decision)
	assert.Equal(t, apperr.CodeCasilDisabled, outcome.ReasonCode)
}

func TestReload_AppliesToSubsequentCalls(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	e := NewEngine(cfg)

	enabled := DefaultConfig()
	enabled.Policies.BlockOnProbableSecret = true
	e.Reload(enabled)

	outcome := e.Inspect(messageEnvelope("ops", "alerts", envelope.Value{"note": "api_key=xyz"}))
	assert.Equal(t, DecisionBlock, outcome.Decision)
}

func TestNeverLogPayloadFor_WholesaleRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policies.Redaction.NeverLogPayloadFor = []string{"secure:*"}
	e := NewEngine(cfg)

	outcome := e.Inspect(messageEnvelope("secure", "vault", envelope.Value{"text": "nothing suspicious"}))
	assert.Equal(t, DecisionAllowWithRedaction, outcome.Decision)
	assert.Equal(t, RedactToken, outcome.RedactedPayload)
}
