package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/speech"
	"github.com/nerrad567/vehicle-ai-core/internal/telemetry"
)

type fakeTranscriber struct {
	available bool
	text      string
	err       error

	gotFormat string
	gotBytes  int
}

func (f *fakeTranscriber) Available() bool                     { return f.available }
func (f *fakeTranscriber) Model() string                       { return "whisper-1" }
func (f *fakeTranscriber) TestConnection(context.Context) bool { return true }

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte, format string) (speech.Result, error) {
	f.gotFormat = format
	f.gotBytes = len(audio)
	if f.err != nil {
		return speech.Result{Success: false, Error: f.err.Error()}, f.err
	}
	return speech.Result{
		Success:    true,
		Text:       f.text,
		Confidence: speech.EstimateConfidence(f.text),
		WordCount:  len(bytes.Fields([]byte(f.text))),
	}, nil
}

// audioRequest builds a multipart upload with an "audio" part and an
// optional "format" field.
func audioRequest(t *testing.T, filename, format string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte("RIFF....WAVEfmt fake audio")); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if format != "" {
		if err := mw.WriteField("format", format); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/nlp/process-voice-audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestProcessVoiceAudio(t *testing.T) {
	tr := &fakeTranscriber{available: true, text: "turn off the lights"}
	f := newFixture(t, func(d *Deps) { d.Speech = tr })
	f.parser.results["turn off the lights"] = mlResult("lights_turn_off", 0.95, nil)

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, audioRequest(t, "clip.wav", "webm"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	var resp AudioResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Errorf("success = false: %s", resp.Error)
	}
	if tr.gotFormat != "wav" {
		t.Errorf("format = %q, want wav from the filename", tr.gotFormat)
	}
	if tr.gotBytes == 0 {
		t.Error("transcriber received no audio")
	}
	if resp.CommandResult == nil || resp.CommandResult.Action != "lights_turn_off" {
		t.Errorf("command_result = %+v", resp.CommandResult)
	}
	if resp.ExecutionResult == nil || !resp.ExecutionResult.Success {
		t.Errorf("execution_result = %+v", resp.ExecutionResult)
	}
	if f.store.Snapshot().Lights.Interior {
		t.Error("interior lights should be off")
	}
}

func TestProcessVoiceAudio_FormatField(t *testing.T) {
	tests := []struct {
		filename string
		format   string
		want     string
	}{
		{"recording.webm", "", speech.DefaultFormat},
		{"recording.bin", "ogg", "ogg"},
		{"voice.M4A", "webm", "m4a"},
		{"voice.mp3", "", "mp3"},
	}
	for _, tt := range tests {
		tr := &fakeTranscriber{available: true, text: "hello"}
		f := newFixture(t, func(d *Deps) { d.Speech = tr })

		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, audioRequest(t, tt.filename, tt.format))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.filename, w.Code)
		}
		if tr.gotFormat != tt.want {
			t.Errorf("%s/%q: format = %q, want %q", tt.filename, tt.format, tr.gotFormat, tt.want)
		}
	}
}

func TestProcessVoiceAudio_NoSpeech(t *testing.T) {
	tr := &fakeTranscriber{available: true, text: "   "}
	f := newFixture(t, func(d *Deps) { d.Speech = tr })

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, audioRequest(t, "silence.wav", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if body["error"] != "No speech detected in audio" {
		t.Errorf("error = %v", body["error"])
	}
	if body["command_result"] != nil || body["execution_result"] != nil {
		t.Errorf("command and execution results should be null: %v", body)
	}
}

func TestProcessVoiceAudio_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"no client", func(*Deps) {}},
		{"no api key", func(d *Deps) { d.Speech = &fakeTranscriber{available: false} }},
		{"feature off", func(d *Deps) {
			d.Speech = &fakeTranscriber{available: true}
			d.Features.VoiceProcessing = false
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.mutate)
			w := httptest.NewRecorder()
			f.handler.ServeHTTP(w, audioRequest(t, "clip.wav", ""))
			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", w.Code)
			}
		})
	}
}

func TestProcessVoiceAudio_TranscriptionErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"too large", speech.ErrAudioTooLarge, http.StatusRequestEntityTooLarge},
		{"provider failure", errors.New("openai returned 500"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(d *Deps) { d.Speech = &fakeTranscriber{available: true, err: tt.err} })
			w := httptest.NewRecorder()
			f.handler.ServeHTTP(w, audioRequest(t, "clip.wav", ""))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestProcessVoiceAudio_MissingFile(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Speech = &fakeTranscriber{available: true} })
	w := f.do(t, http.MethodPost, "/api/nlp/process-voice-audio", `{"text":"not multipart"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSpeechStatus(t *testing.T) {
	f := newFixture(t)
	body := decodeBody(t, f.do(t, http.MethodGet, "/api/nlp/speech-status", ""))
	if body["available"] != false || body["model"] != nil {
		t.Errorf("unconfigured speech-status = %v", body)
	}

	f = newFixture(t, func(d *Deps) { d.Speech = &fakeTranscriber{available: true} })
	body = decodeBody(t, f.do(t, http.MethodGet, "/api/nlp/speech-status", ""))
	if body["available"] != true || body["model"] != "whisper-1" || body["connection_test"] != true {
		t.Errorf("configured speech-status = %v", body)
	}
}

// ─── History ───────────────────────────────────────────────────────

type fakeHistory struct {
	records  []telemetry.Record
	gotLimit int
	err      error
}

func (h *fakeHistory) List(_ context.Context, limit int) ([]telemetry.Record, error) {
	h.gotLimit = limit
	if h.err != nil {
		return nil, h.err
	}
	if limit < len(h.records) {
		return h.records[:limit], nil
	}
	return h.records, nil
}

func TestHistory(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hist := &fakeHistory{records: []telemetry.Record{
		{ID: 2, Action: "lights_dim", Success: true, Source: "http", CreatedAt: at},
		{ID: 1, Action: "engine_start", Success: false, Error: "Unknown action category: engine_start", Source: "mqtt", CreatedAt: at},
	}}
	f := newFixture(t, func(d *Deps) { d.History = hist })

	tests := []struct {
		query      string
		wantStatus int
		wantLimit  int
		wantCount  float64
	}{
		{"", http.StatusOK, telemetry.DefaultHistoryLimit, 2},
		{"?limit=1", http.StatusOK, 1, 1},
		{"?limit=0", http.StatusBadRequest, 0, 0},
		{"?limit=501", http.StatusBadRequest, 0, 0},
		{"?limit=abc", http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		hist.gotLimit = 0
		w := f.do(t, http.MethodGet, "/api/history"+tt.query, "")
		if w.Code != tt.wantStatus {
			t.Errorf("%q: status = %d, want %d", tt.query, w.Code, tt.wantStatus)
			continue
		}
		if tt.wantStatus != http.StatusOK {
			continue
		}
		if hist.gotLimit != tt.wantLimit {
			t.Errorf("%q: limit = %d, want %d", tt.query, hist.gotLimit, tt.wantLimit)
		}
		body := decodeBody(t, w)
		if body["count"] != tt.wantCount {
			t.Errorf("%q: count = %v, want %v", tt.query, body["count"], tt.wantCount)
		}
	}
}

func TestHistory_ReadFailure(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.History = &fakeHistory{err: errors.New("disk I/O error")} })
	w := f.do(t, http.MethodGet, "/api/history", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
