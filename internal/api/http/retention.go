package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/logvault/logvault/internal/retention"
)

// SummaryResponse represents the archive inventory summary.
type SummaryResponse struct {
	TotalFiles       int    `json:"total_files"`
	TotalSizeBytes   int64  `json:"total_size_bytes"`
	OldestDate       string `json:"oldest_date,omitempty"`
	NewestDate       string `json:"newest_date,omitempty"`
	ExpiringInWindow int    `json:"expiring_in_window"`
	RequestID        string `json:"request_id"`
}

// ExpiringResponse represents an approaching-expiry scan result.
type ExpiringResponse struct {
	WindowDays int    `json:"window_days"`
	Count      int    `json:"count"`
	RequestID  string `json:"request_id"`
}

// RetentionHandler handles GET /v1/retention/summary and
// GET /v1/retention/expiring requests.
type RetentionHandler struct {
	monitor    *retention.Monitor
	windowDays int
}

// NewRetentionHandler creates a new retention handler.
func NewRetentionHandler(monitor *retention.Monitor, windowDays int) *RetentionHandler {
	return &RetentionHandler{monitor: monitor, windowDays: windowDays}
}

// Summary serves the aggregate inventory pass.
func (h *RetentionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	summary, err := h.monitor.Compute(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("summary failed: %v", err), requestID)
		return
	}

	oldest, newest := summary.Dates()
	writeJSON(w, http.StatusOK, SummaryResponse{
		TotalFiles:       summary.TotalFiles,
		TotalSizeBytes:   summary.TotalSizeBytes,
		OldestDate:       oldest,
		NewestDate:       newest,
		ExpiringInWindow: summary.ExpiringInWindow,
		RequestID:        requestID,
	})
}

// Expiring serves the approaching-expiry scan.
// Query parameter: window_days (defaults to the configured window).
func (h *RetentionHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	windowDays := h.windowDays
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "window_days must be a positive integer", requestID)
			return
		}
		windowDays = n
	}

	count, err := h.monitor.ScanApproachingExpiry(r.Context(), windowDays)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("expiry scan failed: %v", err), requestID)
		return
	}

	writeJSON(w, http.StatusOK, ExpiringResponse{
		WindowDays: windowDays,
		Count:      count,
		RequestID:  requestID,
	})
}
