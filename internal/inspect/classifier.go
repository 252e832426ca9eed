package inspect

import (
	"encoding/json"
	"regexp"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

// DefaultSecretPatterns is used whenever a Config does not supply its
// own redaction.Patterns list.
var DefaultSecretPatterns = []string{
	`(?i)api[_-]?key`,
	`(?i)secret`,
	`(?i)token`,
	`(?i)password`,
	`(?i)bearer\s+[A-Za-z0-9\-\._]+`,
}

// Classification is the deterministic, bounded-cost assessment the
// classifier produces for one envelope.
type Classification struct {
	Kind      string
	RiskLevel string
	Flags     map[string]bool
}

func flattenPayload(payload envelope.Value, maxBytes int) string {
	data, err := json.Marshal(payload)
	text := string(data)
	if err != nil {
		text = ""
	}
	if len(text) > maxBytes {
		text = text[:maxBytes]
	}
	return text
}

func detectSecret(data string, patterns []string) bool {
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(data) {
			return true
		}
	}
	return false
}

// classify assigns a kind from the envelope type and flags probable
// secrets and oversize payloads. It never returns an error: malformed
// payloads just fail to flatten and are treated as empty.
func classify(env *envelope.Envelope, cfg *Config, oversize bool) Classification {
	c := Classification{Kind: "unknown", RiskLevel: "low", Flags: map[string]bool{}}

	switch env.Type {
	case envelope.KindCommand:
		c.Kind = "control"
	case envelope.KindTelemetry:
		c.Kind = "telemetry"
	case envelope.KindMessage:
		c.Kind = "data"
	case envelope.KindError:
		c.Kind = "system"
	}

	serialized := flattenPayload(env.Payload, cfg.Limits.MaxInspectBytes)
	patterns := cfg.Policies.Redaction.Patterns
	if len(patterns) == 0 {
		patterns = DefaultSecretPatterns
	}
	if detectSecret(serialized, patterns) {
		c.Flags["contains_probable_secret"] = true
		c.RiskLevel = "high"
	}

	if oversize {
		c.Flags["oversize_payload"] = true
		if c.RiskLevel == "low" {
			c.RiskLevel = "medium"
		}
	}

	if cfg.Mode == ModeEnforce && len(c.Flags) > 0 {
		if c.Flags["contains_probable_secret"] {
			c.RiskLevel = "high"
		}
	}

	return c
}
