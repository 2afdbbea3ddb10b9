package httputil

import (
	"net/http"

	"github.com/matzehuels/detour/pkg/errors"
)

var statusByCode = map[errors.Code]int{
	errors.ErrCodeConfiguration:   http.StatusUnprocessableEntity,
	errors.ErrCodeResolution:      http.StatusUnprocessableEntity,
	errors.ErrCodeUnroutable:      http.StatusUnprocessableEntity,
	errors.ErrCodeNotFound:        http.StatusNotFound,
	errors.ErrCodeDuplicateID:     http.StatusConflict,
	errors.ErrCodeInvalidInput:    http.StatusBadRequest,
	errors.ErrCodeInvalidFormat:   http.StatusBadRequest,
	errors.ErrCodeInvalidPath:     http.StatusBadRequest,
	errors.ErrCodeSessionNotFound: http.StatusNotFound,
}

// Status returns the HTTP status for an error code.
func Status(code errors.Code) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
