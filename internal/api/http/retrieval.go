package http

import (
	"fmt"
	"net/http"

	verrors "github.com/logvault/logvault/internal/errors"
	"github.com/logvault/logvault/internal/retrieval"
	"github.com/logvault/logvault/pkg/types"
)

// LogsResponse represents a range retrieval response. DaysMissing lists the
// days in range with no archive blob so callers can tell "no activity" from
// a failed fetch (fetch failures surface as HTTP errors).
type LogsResponse struct {
	Type        string            `json:"type"`
	Start       string            `json:"start"`
	End         string            `json:"end"`
	Count       int               `json:"count"`
	Records     []types.LogRecord `json:"records"`
	DaysMissing []string          `json:"days_missing,omitempty"`
	RequestID   string            `json:"request_id"`
}

// LogsHandler handles GET /v1/logs requests.
type LogsHandler struct {
	service *retrieval.Service
}

// NewLogsHandler creates a new logs retrieval handler.
func NewLogsHandler(service *retrieval.Service) *LogsHandler {
	return &LogsHandler{service: service}
}

// ServeHTTP retrieves archived records for a type and date range.
// Query parameters: type (required), start (required), end (defaults to start).
func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	q := r.URL.Query()

	logType, err := types.ParseLogType(q.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	startRaw := q.Get("start")
	if startRaw == "" {
		writeError(w, http.StatusBadRequest, "start is required", requestID)
		return
	}
	start, err := types.ParseDate(startRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	end := start
	if endRaw := q.Get("end"); endRaw != "" {
		end, err = types.ParseDate(endRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), requestID)
			return
		}
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end precedes start", requestID)
		return
	}

	result, err := h.service.SearchRange(r.Context(), logType, start, end)
	if err != nil {
		status := http.StatusBadGateway
		if verrors.IsIntegrity(err) {
			// Corruption is not transient; callers must not just retry
			status = http.StatusInternalServerError
		}
		writeError(w, status, fmt.Sprintf("archive fetch failed: %v", err), requestID)
		return
	}

	resp := LogsResponse{
		Type:      logType.String(),
		Start:     start.String(),
		End:       end.String(),
		Count:     len(result.Records),
		Records:   result.Records,
		RequestID: requestID,
	}
	for _, d := range result.DaysMissing {
		resp.DaysMissing = append(resp.DaysMissing, d.String())
	}

	writeJSON(w, http.StatusOK, resp)
}
