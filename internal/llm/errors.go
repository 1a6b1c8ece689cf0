package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyResponse is returned when the stream completed but produced no
// content. Treated as permanent: the same prompt will not do better.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// ErrMalformedResponse is returned when model output cannot be parsed into
// a fit analysis.
var ErrMalformedResponse = errors.New("llm response is not valid fit JSON")

// APIError is a non-200 response from a chat-completions endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("llm %s returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("llm %s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt. Rate
// limits and upstream gateway hiccups are; other 4xx mean the request
// itself is wrong.
func (e *APIError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}
