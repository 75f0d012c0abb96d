package quote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/blinks/service/metrics"
)

// maxResponseBytes caps provider response bodies; serialized transactions are at most 1232 bytes
// and swap-instruction payloads are a few kilobytes.
const maxResponseBytes = 2 << 20

// transport is the request plumbing shared by every provider client.
type transport struct {
	provider string
	baseURL  string
	http     *http.Client
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// do sends req and returns the body of a 200 response. Everything else becomes an *APIError.
func (t *transport) do(ctx context.Context, operation string, req *http.Request) ([]byte, error) {
	start := time.Now()
	body, err := t.send(req)

	status := "success"
	if err != nil {
		status = "error"
		t.logger.WarnContext(ctx, "quote provider call failed",
			"provider", t.provider,
			"operation", operation,
			"error", err,
		)
	}
	if t.metrics != nil {
		t.metrics.RecordQuoteCall(t.provider, operation, status, time.Since(start).Seconds())
	}
	return body, err
}

func (t *transport) send(req *http.Request) ([]byte, error) {
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, &APIError{Kind: ErrorTransport, Provider: t.provider, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &APIError{Kind: ErrorTransport, Provider: t.provider, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Kind:       ErrorHTTPStatus,
			Provider:   t.provider,
			StatusCode: resp.StatusCode,
			Body:       summarizeErrorBody(body),
		}
	}
	if len(body) == 0 {
		return nil, &APIError{Kind: ErrorEmpty, Provider: t.provider, Detail: "no body"}
	}
	return body, nil
}

func (t *transport) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return nil, &APIError{Kind: ErrorTransport, Provider: t.provider, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
