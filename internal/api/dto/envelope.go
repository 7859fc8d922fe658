package dto

// DataEnvelope wraps successful responses.
type DataEnvelope[T any] struct {
	Data T `json:"data"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorEnvelope wraps error responses.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
