// Package api provides a client for the document ingestion gateway API.
// This package centralizes all gateway interactions for the application.
package api

import (
	"fmt"
)

// APIError represents an error response from the ingestion gateway.
type APIError struct {
	StatusCode int    // HTTP status code
	Status     string // HTTP status line (e.g., "502 Bad Gateway")
	Message    string // Error detail from the response body, or status text
	Endpoint   string // API path that produced the error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ingestion API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}
