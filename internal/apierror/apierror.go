// Package apierror provides the error taxonomy shared by services, handlers
// and the client, plus the JSON envelope written for 4xx/5xx responses.
// Handlers only ever serialize APIError values so internal details (DB
// errors, stack traces) never reach the caller.
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
	Code   Kind   `json:"code,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// FromError builds the envelope for a classified error.
func FromError(err *Error) *APIError {
	return &APIError{Detail: err.Msg, Code: err.Kind}
}

// ValidationFields wraps per-field validator failures.
type ValidationFields struct {
	Detail string            `json:"detail"`
	Code   Kind              `json:"code"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationFields {
	return &ValidationFields{Detail: "Error de validacion", Code: KindValidation, Fields: fields}
}
