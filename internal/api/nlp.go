package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/command"
	"github.com/nerrad567/vehicle-ai-core/internal/nlp"
	"github.com/nerrad567/vehicle-ai-core/internal/speech"
	"github.com/nerrad567/vehicle-ai-core/internal/vehicle"
)

// speechStatusTimeout bounds the provider probe on /api/nlp/speech-status.
const speechStatusTimeout = 10 * time.Second

// VoiceRequest is the body of POST /api/nlp/process-voice and /parse.
type VoiceRequest struct {
	Text      string   `json:"text"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// ExecutionReport describes what a text command actually ran.
type ExecutionReport struct {
	Success         bool           `json:"success"`
	ActionExecuted  string         `json:"action_executed"`
	OriginalAction  string         `json:"original_action"`
	ParametersUsed  map[string]any `json:"parameters_used"`
	ExecutionResult vehicle.Result `json:"execution_result"`
	Message         string         `json:"message"`
}

// VoiceResponse is the body of POST /api/nlp/process-voice.
// ExecutionResult is null when the command was gated out.
type VoiceResponse struct {
	Success         bool             `json:"success"`
	Action          string           `json:"action"`
	Confidence      float64          `json:"confidence"`
	Parameters      map[string]any   `json:"parameters"`
	ResponseText    string           `json:"response_text"`
	Timestamp       float64          `json:"timestamp"`
	Source          string           `json:"source"`
	ExecutionResult *ExecutionReport `json:"execution_result"`
	Error           string           `json:"error,omitempty"`
}

// AudioResponse is the body of POST /api/nlp/process-voice-audio.
type AudioResponse struct {
	Success         bool             `json:"success"`
	Transcription   speech.Result    `json:"transcription"`
	CommandResult   *nlp.ParseResult `json:"command_result"`
	ExecutionResult *ExecutionReport `json:"execution_result"`
	ProcessingTime  float64          `json:"processing_time,omitempty"`
	Error           string           `json:"error,omitempty"`
}

func executionReport(o command.Outcome) *ExecutionReport {
	if !o.Executed {
		return nil
	}
	verb := "Successfully executed "
	if !o.Result.Success {
		verb = "Failed to execute "
	}
	return &ExecutionReport{
		Success:         o.Result.Success,
		ActionExecuted:  o.Action,
		OriginalAction:  o.Parse.Action,
		ParametersUsed:  o.Parameters,
		ExecutionResult: o.Result,
		Message:         verb + o.Action,
	}
}

func (s *Server) voiceResponse(o command.Outcome) VoiceResponse {
	resp := VoiceResponse{
		Success:         o.Success(),
		Action:          o.Parse.Action,
		Confidence:      o.Parse.Confidence,
		Parameters:      o.Parse.Parameters,
		ResponseText:    o.ResponseText,
		Timestamp:       vehicle.UnixSeconds(s.now()),
		Source:          o.Parse.Source,
		ExecutionResult: executionReport(o),
	}
	if o.Executed && !o.Result.Success {
		resp.Error = o.Result.Error
	}
	return resp
}

// handleProcessVoice parses free text and executes it when the HTTP gate
// allows. Gated commands still answer 200 with success=false.
func (s *Server) handleProcessVoice(w http.ResponseWriter, r *http.Request) {
	var req VoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	s.logger.Info("processing voice command", "text", req.Text)
	out := s.processor.HandleText(r.Context(), command.SourceHTTP, req.Text, s.nlpCfg.HTTPThreshold)
	writeJSON(w, http.StatusOK, s.voiceResponse(out))
}

// handleParse returns the interpretation only. Nothing is executed.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req VoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	res := s.parser.Parse(r.Context(), req.Text)
	action, params := nlp.Translate(res)
	writeJSON(w, http.StatusOK, map[string]any{
		"result":     res,
		"action":     action,
		"parameters": params,
		"executable": command.Allowed(res, s.nlpCfg.HTTPThreshold),
	})
}

// handleNLPStatus reports the ML side.
func (s *Server) handleNLPStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.parser.Status(r.Context()))
}

// handleSpeechStatus reports whether transcription is configured and the
// provider answers.
func (s *Server) handleSpeechStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"available":       false,
		"model":           nil,
		"connection_test": false,
	}
	if s.speech != nil && s.speech.Available() {
		ctx, cancel := context.WithTimeout(r.Context(), speechStatusTimeout)
		defer cancel()
		resp["available"] = true
		resp["model"] = s.speech.Model()
		resp["connection_test"] = s.speech.TestConnection(ctx)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleProcessVoiceAudio runs the full voice pipeline: transcribe the
// uploaded "audio" part, then parse and execute the text as
// process-voice does.
//
// The format comes from the file extension when it is mp3, wav or m4a,
// else from the "format" field, else webm.
func (s *Server) handleProcessVoiceAudio(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !s.features.VoiceProcessing {
		writeUnavailable(w, "voice processing is disabled")
		return
	}
	if s.speech == nil || !s.speech.Available() {
		writeUnavailable(w, "speech-to-text service not available, check the API key")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeBadRequest(w, "multipart field \"audio\" is required: "+err.Error())
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeBadRequest(w, "reading audio: "+err.Error())
		return
	}

	fallback := strings.TrimSpace(r.FormValue("format"))
	if fallback == "" {
		fallback = speech.DefaultFormat
	}
	format := speech.FormatFromFilename(header.Filename, fallback)
	s.logger.Info("processing audio", "filename", header.Filename, "bytes", len(audio), "format", format)

	tr, err := s.speech.Transcribe(r.Context(), audio, format)
	switch {
	case errors.Is(err, speech.ErrUnavailable):
		writeUnavailable(w, err.Error())
		return
	case errors.Is(err, speech.ErrAudioTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeValidation, err.Error())
		return
	case err != nil:
		writeInternalError(w, fmt.Sprintf("transcription failed: %v", err))
		return
	}

	if strings.TrimSpace(tr.Text) == "" {
		writeJSON(w, http.StatusOK, AudioResponse{
			Success:       false,
			Transcription: tr,
			Error:         "No speech detected in audio",
		})
		return
	}

	out := s.processor.HandleText(r.Context(), command.SourceVoice, tr.Text, s.nlpCfg.HTTPThreshold)
	parse := out.Parse
	writeJSON(w, http.StatusOK, AudioResponse{
		Success:         true,
		Transcription:   tr,
		CommandResult:   &parse,
		ExecutionResult: executionReport(out),
		ProcessingTime:  time.Since(start).Seconds(),
	})
}
