package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/cache"
)

// Fallback reasons reported on ParseResult.FallbackReason.
const (
	ReasonEmpty       = "Empty command"
	ReasonUnavailable = "Service unavailable"
	ReasonTimeout     = "Service timeout"
	ReasonConnection  = "Connection failed"
	ReasonMalformed   = "Invalid JSON response"
)

// Logger defines the logging interface used by the Normalizer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Parser is the remote side of the normalizer. *MLClient implements it.
type Parser interface {
	Healthy(ctx context.Context) bool
	Parse(ctx context.Context, text string) (map[string]any, error)
}

// Observer is told the source of every parse, typically for metrics.
type Observer interface {
	Parsed(source string, cached bool)
}

// Normalizer turns free text into a ParseResult. It prefers the ML service
// and degrades to the keyword classifier; it never returns an error.
type Normalizer struct {
	parser   Parser
	cache    cache.Cache
	keywords bool
	logger   Logger
	observer Observer
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithCache caches ML results by normalized text. Fallback results are
// never cached.
func WithCache(c cache.Cache) Option {
	return func(n *Normalizer) {
		n.cache = c
	}
}

// WithKeywordFallback enables or disables the keyword classifier. When
// disabled, failures yield a plain "unknown" result.
func WithKeywordFallback(enabled bool) Option {
	return func(n *Normalizer) {
		n.keywords = enabled
	}
}

// WithLogger sets the normalizer logger.
func WithLogger(l Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithObserver sets the parse counter sink.
func WithObserver(o Observer) Option {
	return func(n *Normalizer) {
		n.observer = o
	}
}

// NewNormalizer creates a normalizer over p.
func NewNormalizer(p Parser, opts ...Option) *Normalizer {
	n := &Normalizer{
		parser:   p,
		keywords: true,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Parse interprets text.
//
// The ML service is skipped when the text is empty or the cached health
// check says it is down. Timeouts, connection failures, error statuses and
// malformed bodies all produce a fallback result carrying the reason.
//
// Parameters:
//   - ctx: Bounds the ML round-trip
//   - text: Free text, typically a transcription
//
// Returns:
//   - ParseResult: Always populated; Source says which path produced it
func (n *Normalizer) Parse(ctx context.Context, text string) ParseResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return n.fallback(text, ReasonEmpty)
	}

	key := cacheKey(trimmed)
	if res, ok := n.cached(ctx, key); ok {
		n.observe(res.Source, true)
		return res
	}

	if !n.parser.Healthy(ctx) {
		n.logger.Warn("ml service unhealthy, using fallback")
		return n.fallback(trimmed, ReasonUnavailable)
	}

	raw, err := n.parser.Parse(ctx, trimmed)
	if err != nil {
		n.logger.Error("ml parse failed", "error", err)
		return n.fallback(trimmed, reasonFor(err))
	}

	res := Normalize(raw)
	n.logger.Info("ml parse succeeded", "action", res.Action, "confidence", res.Confidence)
	n.store(ctx, key, res)
	n.observe(res.Source, false)
	return res
}

func (n *Normalizer) fallback(text, reason string) ParseResult {
	var res ParseResult
	if n.keywords {
		res = Classify(text, reason)
	} else {
		res = ParseResult{
			Action:         ActionUnknown,
			Confidence:     NoMatchConfidence,
			Parameters:     map[string]any{},
			Intent:         ActionUnknown,
			Source:         SourceFallback,
			FallbackReason: reason,
		}
	}
	n.logger.Info("fallback result", "reason", reason, "action", res.Action)
	n.observe(res.Source, false)
	return res
}

func (n *Normalizer) cached(ctx context.Context, key string) (ParseResult, bool) {
	if n.cache == nil {
		return ParseResult{}, false
	}
	data, ok, err := n.cache.Get(ctx, key)
	if err != nil {
		n.logger.Warn("parse cache read failed", "error", err)
		return ParseResult{}, false
	}
	if !ok {
		return ParseResult{}, false
	}
	var res ParseResult
	if err := json.Unmarshal(data, &res); err != nil {
		n.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return ParseResult{}, false
	}
	if res.Parameters == nil {
		res.Parameters = map[string]any{}
	}
	res.Cached = true
	return res, true
}

func (n *Normalizer) store(ctx context.Context, key string, res ParseResult) {
	if n.cache == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := n.cache.Set(ctx, key, data); err != nil {
		n.logger.Warn("parse cache write failed", "error", err)
	}
}

func (n *Normalizer) observe(source string, cached bool) {
	if n.observer != nil {
		n.observer.Parsed(source, cached)
	}
}

// Status describes the ML side for /api/nlp/status.
type Status struct {
	Status      string  `json:"status"`
	Available   bool    `json:"ml_service_available"`
	URL         string  `json:"ml_service_url,omitempty"`
	CacheActive bool    `json:"cache_enabled"`
	Timestamp   float64 `json:"timestamp"`
}

// Status reports whether the ML service is currently considered healthy.
func (n *Normalizer) Status(ctx context.Context) Status {
	s := Status{
		Status:      "healthy",
		Available:   n.parser.Healthy(ctx),
		CacheActive: n.cache != nil,
		Timestamp:   float64(time.Now().UnixNano()) / float64(time.Second),
	}
	if u, ok := n.parser.(interface{ URL() string }); ok {
		s.URL = u.URL()
	}
	if !s.Available {
		s.Status = "degraded"
	}
	return s
}

func reasonFor(err error) string {
	var se *StatusError
	switch {
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, ErrConnection):
		return ReasonConnection
	case errors.As(err, &se):
		return fmt.Sprintf("HTTP %d", se.Code)
	case errors.Is(err, ErrMalformedResponse):
		return ReasonMalformed
	default:
		return fmt.Sprintf("Unexpected error: %v", err)
	}
}

// cacheKey lowercases text and collapses runs of whitespace.
func cacheKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
