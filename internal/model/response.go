package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResetTokenStatus is the response of the reset-token precheck endpoint.
// It is always returned with HTTP 200; validity lives in the body.
type ResetTokenStatus struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}
