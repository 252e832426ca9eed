package inspect

import (
	"encoding/json"
	"regexp"

	"github.com/novelbytelabs/arqonbus/internal/apperr"
	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

// policyResult is the intermediate outcome of policy evaluation, before
// mode overrides are applied by the engine.
type policyResult struct {
	ShouldBlock  bool
	ShouldRedact bool
	ReasonCode   apperr.Code
	Flags        map[string]bool
}

func serializedLength(payload envelope.Value) int {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	return len(data)
}

func boundPatterns(patterns []string, max int) []string {
	if max <= 0 || len(patterns) <= max {
		return patterns
	}
	return patterns[:max]
}

// evaluatePolicies decides whether an envelope should be blocked and/or
// redacted, given the classification flags already computed.
func evaluatePolicies(env *envelope.Envelope, cfg *Config, classificationFlags map[string]bool) policyResult {
	flags := make(map[string]bool, len(classificationFlags))
	for k, v := range classificationFlags {
		flags[k] = v
	}

	payloadLen := serializedLength(env.Payload)

	result := policyResult{ReasonCode: apperr.CodeCasilAllowed}

	if cfg.Policies.MaxPayloadBytes > 0 && payloadLen > cfg.Policies.MaxPayloadBytes {
		flags["oversize_payload"] = true
		result.ShouldBlock = true
		result.ReasonCode = apperr.CodeCasilOversize
	}

	probableSecret := flags["contains_probable_secret"]

	patterns := boundPatterns(cfg.Policies.Redaction.Patterns, cfg.Limits.MaxPatterns)
	if len(patterns) > 0 && (cfg.Policies.BlockOnProbableSecret || cfg.Mode == ModeEnforce) {
		data, err := json.Marshal(env.Payload)
		if err == nil {
			text := string(data)
			if max := cfg.Limits.MaxInspectBytes; max > 0 && len(text) > max {
				text = text[:max]
			}
			for _, pattern := range patterns {
				re, err := regexp.Compile(pattern)
				if err != nil {
					continue
				}
				if re.MatchString(text) {
					probableSecret = true
					flags["contains_probable_secret"] = true
					break
				}
			}
		}
	}

	if (cfg.Policies.BlockOnProbableSecret || cfg.Mode == ModeEnforce) && probableSecret {
		result.ShouldRedact = true
		if cfg.Policies.BlockOnProbableSecret {
			result.ShouldBlock = true
			result.ReasonCode = apperr.CodeCasilBlockedSecret
		}
	}

	switch {
	case !result.ShouldBlock && result.ShouldRedact:
		result.ReasonCode = apperr.CodeCasilRedacted
	case result.ShouldBlock:
		// ReasonCode already set above.
	default:
		result.ReasonCode = apperr.CodeCasilAllowed
	}

	result.Flags = flags
	return result
}
