package nlp

import (
	"errors"
	"fmt"
)

// Sentinel errors for ML parser operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, nlp.ErrTimeout) {
//	    // Service too slow, fall back
//	}
var (
	// ErrServiceUnavailable indicates the last health check failed.
	ErrServiceUnavailable = errors.New("nlp: ml service unavailable")

	// ErrTimeout indicates the parse request exceeded its deadline.
	ErrTimeout = errors.New("nlp: ml service timeout")

	// ErrConnection indicates the service could not be reached.
	ErrConnection = errors.New("nlp: ml service connection failed")

	// ErrBadStatus indicates a non-200 response.
	ErrBadStatus = errors.New("nlp: ml service returned error status")

	// ErrMalformedResponse indicates the response body was not a JSON object.
	ErrMalformedResponse = errors.New("nlp: malformed ml service response")
)

// StatusError carries the HTTP status of a failed parse request.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nlp: ml service returned HTTP %d", e.Code)
}

// Unwrap allows errors.Is(err, ErrBadStatus).
func (e *StatusError) Unwrap() error { return ErrBadStatus }
