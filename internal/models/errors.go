package models

import (
	"errors"
	"net/http"
)

// Pipeline errors shared by the preprocessing, estimation and serving layers.
var (
	ErrNotFitted          = errors.New("component is not fitted")
	ErrCorruptArtifact    = errors.New("corrupt artifact")
	ErrSchemaMismatch     = errors.New("feature schema mismatch")
	ErrUnavailableService = errors.New("service unavailable")
	ErrArtifactNotFound   = errors.New("artifact not found")
	ErrMissingColumn      = errors.New("required column missing")
	ErrNotFound           = errors.New("record not found")
)

// MapHTTPStatus maps pipeline errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnavailableService), errors.Is(err, ErrNotFitted):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrMissingColumn):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
