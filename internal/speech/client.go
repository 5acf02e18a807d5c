package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
)

const (
	// MaxAudioBytes is the largest upload accepted by the provider.
	MaxAudioBytes = 25 << 20

	// DefaultFormat is assumed when neither filename nor form give one.
	DefaultFormat = "webm"

	defaultTimeout = 30 * time.Second
	defaultModel   = "whisper-1"
)

var (
	// ErrUnavailable is returned when no API key is configured.
	ErrUnavailable = errors.New("speech-to-text service not available")

	// ErrAudioTooLarge is returned for uploads over MaxAudioBytes.
	ErrAudioTooLarge = errors.New("audio exceeds size limit")
)

// Logger defines the logging interface used by the Client.
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

// Result is the outcome of a transcription.
type Result struct {
	Success    bool     `json:"success"`
	Text       string   `json:"text"`
	Duration   *float64 `json:"duration,omitempty"`
	Language   string   `json:"language,omitempty"`
	Confidence float64  `json:"confidence"`
	WordCount  int      `json:"word_count"`
	Error      string   `json:"error,omitempty"`
}

// Client calls the provider's /audio/transcriptions endpoint.
type Client struct {
	url        string
	apiKey     string
	model      string
	language   string
	httpClient *http.Client
	logger     Logger
}

// NewClient creates a client from the speech config section.
func NewClient(cfg config.SpeechConfig) *Client {
	timeout := config.Seconds(cfg.Timeout)
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: timeout},
		logger:     noopLogger{},
	}
}

// SetLogger sets the client logger.
func (c *Client) SetLogger(l Logger) {
	if l != nil {
		c.logger = l
	}
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool { return c.apiKey != "" }

// Model returns the transcription model name.
func (c *Client) Model() string { return c.model }

// TestConnection lists the provider's models to prove the key works.
func (c *Client) TestConnection(ctx context.Context) bool {
	if !c.Available() {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("speech connection test failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// transcription is the subset of the verbose_json response we read.
type transcription struct {
	Text     string   `json:"text"`
	Duration *float64 `json:"duration"`
	Language string   `json:"language"`
}

// Transcribe uploads audio and returns the recognised text.
//
// Failures are reported in Result.Error with Success false; the returned
// error carries the same failure for callers that need errors.Is.
//
// Parameters:
//   - ctx: Bounds the upload
//   - audio: Raw audio bytes
//   - format: File extension without the dot (webm, mp3, wav, m4a)
//
// Returns:
//   - Result: Text plus duration, language, estimated confidence and word count
//   - error: ErrUnavailable, ErrAudioTooLarge or the transport/provider failure
func (c *Client) Transcribe(ctx context.Context, audio []byte, format string) (Result, error) {
	if !c.Available() {
		return failure(ErrUnavailable), ErrUnavailable
	}
	if len(audio) > MaxAudioBytes {
		return failure(ErrAudioTooLarge), ErrAudioTooLarge
	}
	if format == "" {
		format = DefaultFormat
	}

	c.logger.Info("transcribing audio", "bytes", len(audio), "format", format)

	tr, err := c.transcribe(ctx, audio, format)
	if err != nil {
		c.logger.Error("transcription failed", "error", err)
		return failure(err), err
	}

	text := strings.TrimSpace(tr.Text)
	lang := tr.Language
	if lang == "" {
		lang = c.language
	}
	c.logger.Info("transcription succeeded", "text", text)
	return Result{
		Success:    true,
		Text:       text,
		Duration:   tr.Duration,
		Language:   lang,
		Confidence: EstimateConfidence(text),
		WordCount:  len(strings.Fields(text)),
	}, nil
}

func (c *Client) transcribe(ctx context.Context, audio []byte, format string) (*transcription, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	fields := map[string]string{
		"model":           c.model,
		"response_format": "verbose_json",
	}
	if c.language != "" {
		fields["language"] = c.language
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("building upload: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("building transcription request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("transcription returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var tr transcription
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decoding transcription: %w", err)
	}
	return &tr, nil
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// EstimateConfidence scores a transcription between 0 and 1. Short text,
// text dominated by symbols and very long text score lower.
func EstimateConfidence(text string) float64 {
	if text == "" {
		return 0
	}
	runes := []rune(text)
	confidence := 0.8
	if len(runes) < 10 {
		confidence -= 0.2
	}

	special := 0
	for _, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if float64(special)/float64(len(runes)) > 0.3 {
		confidence -= 0.1
	}

	if len(runes) > 200 {
		confidence -= 0.1
	}
	return max(0, min(1, confidence))
}

// FormatFromFilename returns the audio format implied by name's extension,
// or fallback when the extension is not one of mp3, wav or m4a.
func FormatFromFilename(name, fallback string) string {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")); ext {
	case "mp3", "wav", "m4a":
		return ext
	}
	if fallback == "" {
		return DefaultFormat
	}
	return fallback
}
