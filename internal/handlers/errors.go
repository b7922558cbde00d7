// Package handlers implements the HTTP endpoints: the transcoding proxy,
// the raw messages passthrough, and the service endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
)

// Error type tags carried in the caller-facing error envelope.
const (
	ErrTypeConfiguration  = "configuration_error"
	ErrTypeAuthentication = "authentication_error"
	ErrTypeInvalidRequest = "invalid_request_error"
	ErrTypeTransform      = "transform_error"
	ErrTypeConnection     = "connection_error"
	ErrTypeAPI            = "api_error"
	ErrTypeProxy          = "proxy_error"
	ErrTypeNotFound       = "not_found"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// WriteError emits the JSON error envelope every failure path uses. Vendor
// failures keep the upstream status; local failures map per type tag.
func WriteError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{Message: message, Type: errType},
	})
}
