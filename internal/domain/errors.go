package domain

// APIError represents a standardized API error with HTTP status code
type APIError struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// Error type constants for API responses
const (
	ErrorTypeNotFound    = "not_found"
	ErrorTypeBadRequest  = "bad_request"
	ErrorTypeForbidden   = "forbidden"
	ErrorTypeUnavailable = "service_unavailable"
	ErrorTypeInternal    = "internal_error"
)
