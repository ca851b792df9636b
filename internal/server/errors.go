package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/KaramelBytes/dfops/internal/dataset"
	"github.com/KaramelBytes/dfops/internal/logging"
)

// ErrorBody is the error member of a failed response.
type ErrorBody struct {
	Kind    dataset.Kind `json:"kind"`
	Message string       `json:"message"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(k dataset.Kind) int {
	switch k {
	case dataset.KindNotFound:
		return http.StatusNotFound
	case dataset.KindParse, dataset.KindComputation:
		return http.StatusUnprocessableEntity
	case dataset.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes err as a JSON error body. Internal errors are logged
// and their details withheld from the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := dataset.KindOf(err)
	status := statusFor(kind)
	msg := dataset.Message(err)

	if isTooLarge(err) {
		status = http.StatusRequestEntityTooLarge
		kind = dataset.KindValidation
		msg = "request body too large"
	}

	log := logging.FromContext(r.Context())
	if kind == dataset.KindInternal {
		log.Error("request error", "path", r.URL.Path, "error", err)
		msg = "internal error"
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "kind", kind, "error", err)
	}

	writeJSON(w, r, status, errorResponse{Error: ErrorBody{Kind: kind, Message: msg}})
}

// isTooLarge reports whether err came from the body size limit. Multipart
// parsing does not always wrap the reader error, hence the text match.
func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

// writeJSON encodes v with the given status. Encoding errors are only
// logged since the header has been sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
