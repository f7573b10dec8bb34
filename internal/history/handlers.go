package history

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/abeknur/ofd-check/internal/ofd"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// scanStatus maps a fetch or save error to an HTTP status code. A URL we
// do not recognize is the client's fault, an operator we could not reach
// or could not make sense of is an upstream failure.
func scanStatus(err error) int {
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if kind, ok := ofd.KindOf(err); ok {
		switch kind {
		case ofd.KindRouting:
			return http.StatusUnprocessableEntity
		case ofd.KindTransport, ofd.KindStructural, ofd.KindSemantic:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// handleScanCheck fetches a check from its QR URL and stores it
func (s *Server) handleScanCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		corsError(w, "Check URL required", http.StatusBadRequest)
		return
	}

	entry, err := s.service.ScanCheck(r.Context(), req.URL)
	if err != nil {
		slog.Error("Error scanning check", "url", req.URL, "error", err)
		jsonError(w, err.Error(), scanStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(entry); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleListChecks returns all stored checks
func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.ListChecks()
	if err != nil {
		slog.Error("Error listing checks", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetCheck returns a single stored check
func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	fiscalSign := r.PathValue("fiscalSign")
	if fiscalSign == "" {
		corsError(w, "Fiscal sign required", http.StatusBadRequest)
		return
	}
	entry, err := s.service.GetCheck(fiscalSign)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Check not found", http.StatusNotFound)
			return
		}
		slog.Error("Error getting check", "fiscal_sign", fiscalSign, "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entry); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleDeleteCheck deletes a stored check
func (s *Server) handleDeleteCheck(w http.ResponseWriter, r *http.Request) {
	fiscalSign := r.PathValue("fiscalSign")
	if fiscalSign == "" {
		corsError(w, "Fiscal sign required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteCheck(fiscalSign); err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Check not found", http.StatusNotFound)
			return
		}
		slog.Error("Error deleting check", "fiscal_sign", fiscalSign, "error", err)
		corsError(w, "Error deleting check", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
