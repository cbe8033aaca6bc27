package errors

import (
	"encoding/json"
	"net/http"
)

// WriteError renders err as the JSON error body with its HTTP status.
// Errors other than AppError become a generic 500.
func WriteError(w http.ResponseWriter, err error) error {
	appErr := AsAppError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())

	// Nothing can be recovered once the header is out; the caller logs it.
	return json.NewEncoder(w).Encode(appErr.Response())
}
