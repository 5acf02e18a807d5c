package speech

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.SpeechConfig{
		URL:      srv.URL,
		APIKey:   "test-key",
		Model:    "whisper-1",
		Language: "en",
		Timeout:  5,
	})
}

func TestTranscribe_Success(t *testing.T) {
	var gotFields map[string]string
	var gotAudio, gotFilename, gotAuth string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotFields = map[string]string{
			"model":           r.FormValue("model"),
			"language":        r.FormValue("language"),
			"response_format": r.FormValue("response_format"),
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		gotAudio = string(data)
		gotFilename = hdr.Filename
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":     "  turn on the lights ",
			"duration": 1.5,
			"language": "english",
		})
	})

	res, err := c.Transcribe(context.Background(), []byte("RIFFdata"), "wav")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if !res.Success || res.Text != "turn on the lights" {
		t.Errorf("result = %+v", res)
	}
	if res.WordCount != 4 {
		t.Errorf("WordCount = %d, want 4", res.WordCount)
	}
	if res.Duration == nil || *res.Duration != 1.5 {
		t.Errorf("Duration = %v", res.Duration)
	}
	if res.Language != "english" {
		t.Errorf("Language = %q", res.Language)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotFields["model"] != "whisper-1" || gotFields["language"] != "en" || gotFields["response_format"] != "verbose_json" {
		t.Errorf("form fields = %v", gotFields)
	}
	if gotAudio != "RIFFdata" || gotFilename != "audio.wav" {
		t.Errorf("file = %q (%s)", gotAudio, gotFilename)
	}
}

func TestTranscribe_ProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid file format", http.StatusBadRequest)
	})

	res, err := c.Transcribe(context.Background(), []byte("x"), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Success || !strings.Contains(res.Error, "400") {
		t.Errorf("result = %+v", res)
	}
}

func TestTranscribe_Unavailable(t *testing.T) {
	c := NewClient(config.SpeechConfig{URL: "http://127.0.0.1:1"})

	if c.Available() {
		t.Fatal("Available() = true without an API key")
	}
	res, err := c.Transcribe(context.Background(), []byte("x"), "webm")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
	if res.Success || res.Error != ErrUnavailable.Error() {
		t.Errorf("result = %+v", res)
	}
	if c.TestConnection(context.Background()) {
		t.Error("TestConnection() = true without an API key")
	}
}

func TestTranscribe_TooLarge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request should not be sent")
	})

	_, err := c.Transcribe(context.Background(), make([]byte, MaxAudioBytes+1), "mp3")
	if !errors.Is(err, ErrAudioTooLarge) {
		t.Errorf("error = %v, want ErrAudioTooLarge", err)
	}
}

func TestTestConnection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" && r.Header.Get("Authorization") == "Bearer test-key" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	if !c.TestConnection(context.Background()) {
		t.Error("TestConnection() = false")
	}
}

func TestEstimateConfidence(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0},
		{"normal", "set the temperature to twenty", 0.8},
		{"short", "lights", 0.6},
		{"short and symbolic", "?!#", 0.5},
		{"symbol heavy", "a!b@c#d$e%f^g&", 0.7},
		{"long", strings.Repeat("word ", 41), 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateConfidence(tt.text)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EstimateConfidence(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		name, fallback, want string
	}{
		{"clip.mp3", "", "mp3"},
		{"CLIP.WAV", "webm", "wav"},
		{"voice.m4a", "", "m4a"},
		{"recording.webm", "ogg", "ogg"},
		{"blob", "", "webm"},
	}

	for _, tt := range tests {
		if got := FormatFromFilename(tt.name, tt.fallback); got != tt.want {
			t.Errorf("FormatFromFilename(%q, %q) = %q, want %q", tt.name, tt.fallback, got, tt.want)
		}
	}
}
