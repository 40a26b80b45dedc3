package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/logvault/logvault/internal/archive"
	"github.com/logvault/logvault/pkg/types"
)

// ArchiveRequest represents a manual archival trigger.
type ArchiveRequest struct {
	Date string `json:"date"`
}

// ArchiveHandler handles POST /v1/archive requests.
type ArchiveHandler struct {
	job *archive.Job
}

// NewArchiveHandler creates a new archive handler.
func NewArchiveHandler(job *archive.Job) *ArchiveHandler {
	return &ArchiveHandler{job: job}
}

// ServeHTTP triggers an archival run for the requested day.
func (h *ArchiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req ArchiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	if req.Date == "" {
		writeError(w, http.StatusBadRequest, "date is required", requestID)
		return
	}

	date, err := types.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	result, err := h.job.ArchiveDay(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("archival run aborted: %v", err), requestID)
		return
	}

	// Per-type failures are reported in the body, not as a transport error
	writeJSON(w, http.StatusOK, result)
}
