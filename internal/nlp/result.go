package nlp

import (
	"fmt"
	"strings"
)

// ActionUnknown is returned when no command could be identified.
const ActionUnknown = "unknown"

// Result sources.
const (
	SourceML       = "ml_parser"
	SourceFallback = "fallback"
)

// ParseResult is a normalized command interpretation.
type ParseResult struct {
	Action         string         `json:"action"`
	Confidence     float64        `json:"confidence"`
	Parameters     map[string]any `json:"parameters"`
	Intent         string         `json:"intent"`
	Source         string         `json:"source"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	Cached         bool           `json:"cached,omitempty"`

	// Original is the raw ML response, kept for debugging.
	Original map[string]any `json:"original_result,omitempty"`
}

// IsUnknown reports whether the result names no executable action: either
// "unknown" or a domain placeholder such as "lights_unknown".
func (r ParseResult) IsUnknown() bool {
	return r.Action == "" || r.Action == ActionUnknown || strings.HasSuffix(r.Action, "_"+ActionUnknown)
}

// Normalize converts a raw ML response into a ParseResult.
//
// The action comes from "action" or else "intent"; parameters from
// "parameters" or else "entities" (non-objects become empty); the intent
// from "intent" or else "domain". Confidence above 1 is treated as a
// percentage and divided by 100.
func Normalize(raw map[string]any) ParseResult {
	res := ParseResult{
		Action:     ActionUnknown,
		Parameters: map[string]any{},
		Intent:     ActionUnknown,
		Source:     SourceML,
		Original:   raw,
	}

	if v, ok := raw["action"]; ok {
		res.Action = stringify(v)
	} else if v, ok := raw["intent"]; ok {
		res.Action = stringify(v)
	}

	if c, ok := numeric(raw["confidence"]); ok {
		if c > 1 {
			c /= 100
		}
		res.Confidence = c
	}

	if v, ok := raw["parameters"]; ok {
		res.Parameters = asObject(v)
	} else if v, ok := raw["entities"]; ok {
		res.Parameters = asObject(v)
	}

	if v, ok := raw["intent"]; ok {
		res.Intent = stringify(v)
	} else if v, ok := raw["domain"]; ok {
		res.Intent = stringify(v)
	}

	return res
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
