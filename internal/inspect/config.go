// Package inspect implements the inline inspection gate (internally
// called CASIL) that runs between envelope validation and routing for
// message and command envelopes.
package inspect

// Mode controls whether a BLOCK decision is actually enforced.
type Mode string

const (
	ModeObserve Mode = "observe"
	ModeEnforce Mode = "enforce"
)

// DefaultDecision is the fallback applied when the pipeline itself
// fails unexpectedly; it must never propagate a panic to the caller.
type DefaultDecision string

const (
	DefaultAllow DefaultDecision = "allow"
	DefaultBlock DefaultDecision = "block"
)

// ScopeConfig decides which (room, channel) pairs get inspected at all.
type ScopeConfig struct {
	Include []string
	Exclude []string
}

// RedactionConfig controls how a flagged payload gets sanitized before
// it reaches logs, telemetry, or (optionally) the wire.
type RedactionConfig struct {
	Paths              []string // object keys redacted wholesale
	Patterns           []string // regexes substituted with the sentinel
	NeverLogPayloadFor []string // room:channel globs, full redaction
	TransportRedaction bool     // also redact the payload actually delivered
}

// PoliciesConfig governs block/redact decisions.
type PoliciesConfig struct {
	MaxPayloadBytes       int
	BlockOnProbableSecret bool
	Redaction             RedactionConfig
}

// LimitsConfig bounds how much work classification and policy
// evaluation are allowed to do per envelope.
type LimitsConfig struct {
	MaxInspectBytes int
	MaxPatterns     int
}

// Config is the full, hot-reloadable gate configuration. A Config value
// is swapped atomically by Engine.Reload; in-flight Inspect calls keep
// using whichever *Config they already loaded.
type Config struct {
	Enabled          bool
	Mode             Mode
	DefaultDecision  DefaultDecision
	AnnotateMetadata bool
	Scope            ScopeConfig
	Limits           LimitsConfig
	Policies         PoliciesConfig
}

// DefaultConfig mirrors the conservative defaults of the reference
// implementation: inspection on, enforce mode, a generous byte budget,
// and the stock secret-detection patterns.
func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		Mode:             ModeEnforce,
		DefaultDecision:  DefaultAllow,
		AnnotateMetadata: true,
		Limits: LimitsConfig{
			MaxInspectBytes: 8192,
			MaxPatterns:     32,
		},
		Policies: PoliciesConfig{
			MaxPayloadBytes: 65536,
			Redaction: RedactionConfig{
				Patterns: DefaultSecretPatterns,
			},
		},
	}
}
