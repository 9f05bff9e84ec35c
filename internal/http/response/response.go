package response

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// GenericError is all a client learns about a failure on our side.
const GenericError = "an error occurred, please retry"

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Internal logs the cause and answers with the generic message.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	http.Error(w, GenericError, http.StatusInternalServerError)
}

// PDF streams a stored document inline.
func PDF(w http.ResponseWriter, filename string, body io.Reader) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)

	if _, err := io.Copy(w, body); err != nil {
		slog.Error("failed to stream document", "file", filename, "error", err)
	}
}
