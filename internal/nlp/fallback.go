package nlp

import "strings"

// Fallback confidences.
const (
	DomainMatchConfidence = 0.3
	NoMatchConfidence     = 0.1
)

// domainKeywords are checked in order; the first domain with any keyword
// contained in the input wins.
var domainKeywords = []struct {
	domain string
	words  []string
}{
	{"climate", []string{"temperature", "temp", "hot", "cold", "ac", "air", "climate"}},
	{"lights", []string{"light", "lights", "bright", "dim", "lamp"}},
	{"infotainment", []string{"music", "song", "play", "volume", "radio"}},
	{"seats", []string{"seat", "heating", "massage", "position"}},
}

// Classify is the local stand-in for the ML service.
//
// It is deterministic: a keyword hit yields "<domain>_unknown" with
// confidence 0.3, anything else "unknown" with 0.1. Matching is by
// substring on the lowercased text, so "ac" also matches inside words.
func Classify(text, reason string) ParseResult {
	res := ParseResult{
		Action:         ActionUnknown,
		Confidence:     NoMatchConfidence,
		Parameters:     map[string]any{},
		Intent:         ActionUnknown,
		Source:         SourceFallback,
		FallbackReason: reason,
	}

	lower := strings.ToLower(text)
	for _, d := range domainKeywords {
		for _, w := range d.words {
			if strings.Contains(lower, w) {
				res.Action = d.domain + "_" + ActionUnknown
				res.Intent = d.domain
				res.Confidence = DomainMatchConfidence
				return res
			}
		}
	}
	return res
}
