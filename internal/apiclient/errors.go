package apiclient

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable wraps transport failures: the server could not be reached.
	ErrUnavailable = errors.New("server unavailable")
	// ErrSchema matches every *SchemaError.
	ErrSchema = errors.New("invalid response payload")
)

// APIError is a non-2xx response. Message is the server's error text,
// which may be empty.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// SchemaError reports a response body that failed decoding or validation.
type SchemaError struct {
	Endpoint string
	Reason   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrSchema, e.Endpoint, e.Reason)
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}
