// Package quote holds the outbound clients for third-party trade and quote providers.
package quote

import (
	"fmt"
	"strings"

	"github.com/brojonat/blinks/service/txbuilder"
)

const errorBodySnippetLen = 220

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	ErrorTransport  ErrorKind = "transport"
	ErrorHTTPStatus ErrorKind = "http_status"
	ErrorParse      ErrorKind = "parse"
	ErrorEmpty      ErrorKind = "empty"
)

// APIError is returned for every provider failure. It matches txbuilder.ErrQuoteUnavailable
// under errors.Is, as well as the underlying cause when there is one.
type APIError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Body       string
	Detail     string
	Err        error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case ErrorTransport:
		return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
	case ErrorHTTPStatus:
		return fmt.Sprintf("%s: http status %d: %s", e.Provider, e.StatusCode, e.Body)
	case ErrorParse:
		if e.Err != nil {
			return fmt.Sprintf("%s: failed to parse response: %v", e.Provider, e.Err)
		}
		return fmt.Sprintf("%s: failed to parse response: %s", e.Provider, e.Detail)
	case ErrorEmpty:
		return fmt.Sprintf("%s: empty response: %s", e.Provider, e.Detail)
	default:
		return e.Provider + ": provider error"
	}
}

// Unwrap exposes both the quote-unavailable sentinel and the wrapped cause.
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{txbuilder.ErrQuoteUnavailable}
	}
	return []error{txbuilder.ErrQuoteUnavailable, e.Err}
}

func summarizeErrorBody(body []byte) string {
	text := strings.Join(strings.Fields(string(body)), " ")
	if text == "" {
		return "<empty body>"
	}
	if len(text) > errorBodySnippetLen {
		return text[:errorBodySnippetLen] + "..."
	}
	return text
}
