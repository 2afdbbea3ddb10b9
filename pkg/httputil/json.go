package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/matzehuels/detour/pkg/errors"
)

// MaxBodySize bounds request bodies.
const MaxBodySize = 4 << 20

// ErrorBody is the JSON form of an error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as an ErrorBody with the status of its code.
func WriteError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	body := ErrorBody{Code: string(code), Message: errors.UserMessage(err)}
	if code == "" {
		body.Code = string(errors.ErrCodeInternal)
	}
	var e *errors.Error
	if errors.As(err, &e) && e.Cause != nil {
		body.Details = e.Cause.Error()
	}
	WriteJSON(w, Status(code), body)
}

// DecodeJSON decodes the body of r into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.New(errors.ErrCodeInvalidInput, "empty request body")
		}
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body")
	}
	if dec.More() {
		return errors.New(errors.ErrCodeInvalidInput, "invalid request body: trailing data")
	}
	return nil
}
