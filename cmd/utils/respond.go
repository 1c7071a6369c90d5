package utils

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/KAsare1/pesb-server/logging"
)

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("failed to encode response")
	}
}

type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// WriteError reports err as JSON. Storage failures are logged here and
// reach the client only as a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = Storage("internal server error", err)
	}

	body := errorBody{Message: e.Message, Errors: e.Fields}
	if e.Kind == KindStorage {
		logging.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		body = errorBody{Message: "internal server error"}
	}
	WriteJSON(w, e.Kind.Status(), body)
}

// DecodeJSON reads the request body into dst.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return BadRequest("invalid request body")
	}
	return nil
}
