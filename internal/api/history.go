package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/vehicle-ai-core/internal/telemetry"
)

// handleHistory lists the most recent journal entries.
//
// Query parameters:
//   - limit: number of entries, 1..500 (default 50)
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "command journal is disabled")
		return
	}

	limit := telemetry.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > telemetry.MaxHistoryLimit {
			writeError(w, http.StatusBadRequest, ErrCodeValidation,
				"limit must be an integer between 1 and "+strconv.Itoa(telemetry.MaxHistoryLimit))
			return
		}
		limit = n
	}

	records, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing command history", "error", err)
		writeInternalError(w, "failed to read command history")
		return
	}
	if records == nil {
		records = []telemetry.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": records,
		"count":   len(records),
	})
}
