package httpkit

import (
	"encoding/json"
	"net/http"

	"lectern/internal/pkg/errors"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// ErrorEnvelope is the body of every failed call: {"error":{...}}.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// DecodeJSON reads exactly one JSON value from the request body. Unknown
// fields, trailing data and bodies over MaxBodyBytes are validation errors.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.Validation("request body is too large").WithField("limit_bytes", MaxBodyBytes)
		}
		return errors.Validation("invalid json body: " + err.Error())
	}
	if dec.More() {
		return errors.Validation("invalid json body: trailing data after the object")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteErr writes the error envelope. The request id echoes the
// X-Request-ID response header so clients can quote it.
func WriteErr(w http.ResponseWriter, status int, body ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{Error: body})
}
