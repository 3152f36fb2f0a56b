package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"altarfunds/internal/core"
)

// errorEnvelope matches the backend's error shape so clients handle both
// surfaces with one decoder.
type errorEnvelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Error: true, Message: message})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// formatAmount renders cents as a KES display string.
func formatAmount(amount core.Money) string {
	return fmt.Sprintf("KES %.2f", amount.Shillings())
}
