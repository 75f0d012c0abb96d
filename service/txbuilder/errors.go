package txbuilder

import (
	"errors"
	"net/http"
)

// Error taxonomy shared by the composer, assembler, serializer and the action adapters.
// Callers wrap these with fmt.Errorf("...: %w", Err...) and classify with errors.Is.
var (
	// ErrInvalidAmount is returned for malformed, non-positive or non-integral (after unit
	// conversion) amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidAddress is returned for anything that is not a base58 encoded 32 byte public key.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrQuoteUnavailable is returned when a quote or trade provider fails or returns nothing usable.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrUpstreamUnavailable is returned when the network state provider cannot be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrEmptyInstructionSet is returned when asked to assemble zero instructions.
	ErrEmptyInstructionSet = errors.New("empty instruction set")

	// ErrSerializationFailed is returned for malformed transactions that cannot be encoded.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrUnsupportedAction is returned for an action that is unknown or not enabled.
	ErrUnsupportedAction = errors.New("unsupported action")
)

// StatusCode maps an error from this package's taxonomy to an HTTP status code.
// Input errors map to 400, unsupported actions to 404, third-party failures to 502 and
// construction defects to 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedAction):
		return http.StatusNotFound
	case errors.Is(err, ErrQuoteUnavailable), errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns a short, stable label for err, used for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrQuoteUnavailable):
		return "quote_unavailable"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrEmptyInstructionSet):
		return "empty_instruction_set"
	case errors.Is(err, ErrSerializationFailed):
		return "serialization_failed"
	case errors.Is(err, ErrUnsupportedAction):
		return "unsupported_action"
	default:
		return "internal"
	}
}
