package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/vehicle-ai-core/internal/speech"
)

// maxAudioRequestSize leaves room for multipart framing around the audio.
const maxAudioRequestSize = speech.MaxAudioBytes + 1<<20

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	if s.prometheus != nil {
		r.Use(s.prometheus.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	if s.prometheus != nil && s.metCfg.Enabled {
		r.Handle(s.metCfg.Path, s.prometheus.Handler())
	}

	if s.features.WebSocket {
		r.Get(s.wsCfg.Path, s.handleWebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/nlp", func(r chi.Router) {
			// Audio uploads are larger than any JSON body.
			r.With(s.bodySizeLimitMiddleware(maxAudioRequestSize)).
				Post("/process-voice-audio", s.handleProcessVoiceAudio)

			r.Group(func(r chi.Router) {
				r.Use(s.bodySizeLimitMiddleware(maxRequestBodySize))
				r.Post("/process-voice", s.handleProcessVoice)
				r.Post("/parse", s.handleParse)
				r.Get("/status", s.handleNLPStatus)
				r.Get("/speech-status", s.handleSpeechStatus)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.bodySizeLimitMiddleware(maxRequestBodySize))

			r.Get("/status", s.handleStatus)
			r.Get("/state", s.handleGetState)
			r.Post("/state/reset", s.handleResetState)
			r.Post("/execute", s.handleExecute)
			r.Get("/history", s.handleHistory)
			r.Get("/system/metrics", s.handleSystemMetrics)

			r.Route("/climate", s.climateRoutes)
			r.Route("/lights", s.lightsRoutes)
			r.Route("/seats", s.seatsRoutes)
			r.Route("/infotainment", s.infotainmentRoutes)
		})
	})

	return r
}
