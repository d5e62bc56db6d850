package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"CapIot.webnode/internal/models"
)

// RespondWithError sends a JSON error response using the APIError model.
// It sets the HTTP status code from the APIError and encodes the entire struct.
func RespondWithError(writer http.ResponseWriter, apiErr models.APIError) {
	RespondWithJSON(writer, apiErr.StatusCode, apiErr)
}

// RespondWithJSON sends a JSON response with the given status code.
// The payload is encoded before the header is written, so a payload that
// cannot be encoded turns into a 500 instead of an empty 2xx.
func RespondWithJSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to encode JSON response", "status", statusCode, "error", err)
		statusCode = http.StatusInternalServerError
		body, _ = json.Marshal(models.NewAPIError(models.ErrorCodeInternalServerError, "Error interno del servidor", statusCode))
	}

	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(statusCode)
	if _, err := writer.Write(append(body, '\n')); err != nil {
		slog.Warn("Failed to write JSON response", "status", statusCode, "error", err)
	}
}
