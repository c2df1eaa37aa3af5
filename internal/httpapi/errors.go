package httpapi

import (
	"encoding/json"
	"net/http"

	"vlmcheck/internal/verifier"
	"vlmcheck/pkg/types"
)

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

// writeVerifyError maps a verification failure to its status and public message.
func writeVerifyError(w http.ResponseWriter, err error) int {
	status := verifier.StatusCode(err)
	if status == http.StatusTooManyRequests {
		countRejection(status)
	}
	writeJSONError(w, status, verifier.PublicMessage(err))
	return status
}
