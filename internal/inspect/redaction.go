package inspect

import (
	"encoding/json"
	"path"
	"regexp"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

// RedactToken replaces any value a redaction rule matches.
const RedactToken = "***REDACTED***"

const maxRedactDepth = 10

func redactPaths(v any, paths []string, depth int) any {
	if depth > maxRedactDepth {
		return v
	}
	switch obj := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(obj))
		for key, val := range obj {
			if contains(paths, key) {
				out[key] = RedactToken
			} else {
				out[key] = redactPaths(val, paths, depth+1)
			}
		}
		return out
	case []any:
		out := make([]any, len(obj))
		for i, item := range obj {
			out[i] = redactPaths(item, paths, depth+1)
		}
		return out
	default:
		return v
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func redactPatterns(text string, patterns []string) string {
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, RedactToken)
	}
	return text
}

// redactPayload produces a sanitized clone of payload for the given
// target ("logs", "telemetry", or "transport"). A room:channel on the
// never-log list is redacted wholesale for logs and telemetry targets.
func redactPayload(payload envelope.Value, cfg *Config, target, roomChannel string) any {
	redactionCfg := cfg.Policies.Redaction

	for _, pattern := range redactionCfg.NeverLogPayloadFor {
		if ok, err := path.Match(pattern, roomChannel); err == nil && ok {
			if target == "logs" || target == "telemetry" {
				return RedactToken
			}
			break
		}
	}

	working := any(cloneValue(payload))
	if _, ok := working.(map[string]any); ok {
		working = redactPaths(working, redactionCfg.Paths, 0)
	}

	data, err := json.Marshal(working)
	if err != nil {
		return working
	}
	text := string(data)

	patterns := boundPatterns(redactionCfg.Patterns, cfg.Limits.MaxPatterns)
	if len(patterns) > 0 {
		text = redactPatterns(text, patterns)
	}

	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return text
	}
	return out
}

func cloneValue(v envelope.Value) envelope.Value {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out envelope.Value
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
