package command

import (
	"context"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/nlp"
	"github.com/nerrad567/vehicle-ai-core/internal/vehicle"
)

// Response texts returned with every text command.
const (
	TextNotUnderstood   = "Sorry, I didn't understand that command"
	TextExecutionFailed = "Command understood but execution failed"
	textSucceededPrefix = "Successfully executed: "
)

// Source identifies the ingress a command arrived through.
type Source string

// Command sources.
const (
	SourceHTTP      Source = "http"
	SourceWebSocket Source = "websocket"
	SourceVoice     Source = "voice"
	SourceMQTT      Source = "mqtt"
	SourceReset     Source = "reset"
)

type sourceKey struct{}

// WithSource attaches src to ctx so update callbacks can tell where a
// mutation came from.
func WithSource(ctx context.Context, src Source) context.Context {
	return context.WithValue(ctx, sourceKey{}, src)
}

// SourceFrom returns the source attached by WithSource, or "" when none is.
func SourceFrom(ctx context.Context) Source {
	src, _ := ctx.Value(sourceKey{}).(Source)
	return src
}

// Executor applies actions. *vehicle.Store implements it.
type Executor interface {
	Execute(ctx context.Context, action string, params map[string]any) vehicle.Result
	Reset(ctx context.Context) vehicle.State
}

// TextParser interprets free text. *nlp.Normalizer implements it.
type TextParser interface {
	Parse(ctx context.Context, text string) nlp.ParseResult
}

// Entry is one executed command as written to the journal.
type Entry struct {
	Action     string
	Parameters map[string]any
	Result     vehicle.Result
	Source     Source
	At         time.Time
}

// Recorder persists command entries. Failures are logged, never returned
// to the caller.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Observer receives per-command measurements, typically for metrics.
type Observer interface {
	CommandExecuted(action string, success bool, elapsed time.Duration)
}

// Logger defines the logging interface used by the Processor.
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

// Processor is the single path from ingress to the executor. Every HTTP,
// WebSocket, voice and MQTT command goes through Execute or HandleText so
// journaling and metrics see all of them.
type Processor struct {
	exec     Executor
	parser   TextParser
	recorder Recorder
	observer Observer
	logger   Logger
	now      func() time.Time
}

// NewProcessor creates a processor. parser may be nil when text commands
// are disabled.
func NewProcessor(exec Executor, parser TextParser) *Processor {
	return &Processor{
		exec:   exec,
		parser: parser,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetRecorder sets the journal sink.
func (p *Processor) SetRecorder(r Recorder) { p.recorder = r }

// SetObserver sets the metrics sink.
func (p *Processor) SetObserver(o Observer) { p.observer = o }

// SetLogger sets the processor logger.
func (p *Processor) SetLogger(l Logger) {
	if l != nil {
		p.logger = l
	}
}

// Execute runs one structured command.
func (p *Processor) Execute(ctx context.Context, src Source, action string, params map[string]any) vehicle.Result {
	if params == nil {
		params = map[string]any{}
	}
	ctx = WithSource(ctx, src)

	start := p.now()
	res := p.exec.Execute(ctx, action, params)
	elapsed := p.now().Sub(start)

	if p.observer != nil {
		p.observer.CommandExecuted(action, res.Success, elapsed)
	}
	p.record(ctx, Entry{Action: action, Parameters: params, Result: res, Source: src, At: p.now()})
	return res
}

// Reset restores the default state and journals it.
func (p *Processor) Reset(ctx context.Context, src Source) vehicle.State {
	ctx = WithSource(ctx, src)
	st := p.exec.Reset(ctx)
	p.record(ctx, Entry{
		Action:     vehicle.ActionResetAll,
		Parameters: map[string]any{},
		Result:     vehicle.Result{Action: vehicle.ActionResetAll, Success: true, Changes: map[string]any{}},
		Source:     SourceReset,
		At:         p.now(),
	})
	return st
}

// Outcome is the result of a text command.
type Outcome struct {
	Text  string
	Parse nlp.ParseResult

	// Action and Parameters are the executor-side translation of Parse.
	Action     string
	Parameters map[string]any

	// Executed is false when the command was gated out.
	Executed bool
	Result   vehicle.Result

	ResponseText string
}

// Success reports whether the command was executed and succeeded.
func (o Outcome) Success() bool {
	return o.Executed && o.Result.Success
}

// HandleText parses text and executes it when the gate allows.
//
// The gate requires a known action (neither "unknown" nor a
// "<domain>_unknown" placeholder) and confidence strictly above
// threshold. Gated commands leave the state untouched.
//
// Parameters:
//   - ctx: Bounds the ML round-trip and carries the source to callbacks
//   - src: Ingress the text arrived through
//   - text: Free text or a transcription
//   - threshold: Minimum confidence for execution at this call site
//
// Returns:
//   - Outcome: Parse result, translation, execution result and reply text
func (p *Processor) HandleText(ctx context.Context, src Source, text string, threshold float64) Outcome {
	out := Outcome{Text: text}
	if p.parser == nil {
		out.Parse = nlp.Classify(text, "Parser disabled")
	} else {
		out.Parse = p.parser.Parse(ctx, text)
	}
	out.Action, out.Parameters = nlp.Translate(out.Parse)

	if Allowed(out.Parse, threshold) {
		out.Executed = true
		out.Result = p.Execute(ctx, src, out.Action, out.Parameters)
	} else {
		p.logger.Info("text command gated",
			"action", out.Parse.Action, "confidence", out.Parse.Confidence, "threshold", threshold)
	}

	out.ResponseText = responseText(out)
	return out
}

// Allowed reports whether a parse result passes the execution gate.
func Allowed(res nlp.ParseResult, threshold float64) bool {
	return !res.IsUnknown() && res.Confidence > threshold
}

func responseText(o Outcome) string {
	switch {
	case o.Success():
		return textSucceededPrefix + o.Parse.Action
	case !o.Executed:
		return TextNotUnderstood
	default:
		return TextExecutionFailed
	}
}

func (p *Processor) record(ctx context.Context, e Entry) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(ctx, e); err != nil {
		p.logger.Warn("journal write failed", "action", e.Action, "error", err)
	}
}
