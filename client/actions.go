package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Metadata is the menu a GET on an action endpoint returns.
type Metadata struct {
	Type        string `json:"type"`
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Label       string `json:"label"`
	Links       *struct {
		Actions []LinkedAction `json:"actions"`
	} `json:"links,omitempty"`
}

// LinkedAction is one button of a menu.
type LinkedAction struct {
	Label      string `json:"label"`
	Href       string `json:"href"`
	Parameters []struct {
		Name     string `json:"name"`
		Label    string `json:"label"`
		Required bool   `json:"required,omitempty"`
	} `json:"parameters,omitempty"`
}

// Transaction is the result of a POST on an action endpoint.
type Transaction struct {
	// Transaction is the base64 encoded unsigned transaction.
	Transaction string `json:"transaction"`
	Message     string `json:"message,omitempty"`
}

// Rule maps website paths to action API paths.
type Rule struct {
	PathPattern string `json:"pathPattern"`
	APIPath     string `json:"apiPath"`
}

// Client is the HTTP client for the blinks actions service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new actions service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ActionPath returns the endpoint path for action. target is the mint for buy and the
// "inputMint-outputMint" pair for swap and is ignored for donate. An empty amount selects
// the action's default.
func ActionPath(action, target, amount string) string {
	parts := []string{"", "api", url.PathEscape(action)}
	if action != "donate" && target != "" {
		parts = append(parts, url.PathEscape(target))
	}
	if amount != "" {
		parts = append(parts, url.PathEscape(amount))
	}
	return strings.Join(parts, "/")
}

// Menu fetches the metadata served at path.
func (c *Client) Menu(ctx context.Context, path string) (*Metadata, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var md Metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &md, nil
}

// Build asks the service to build an unsigned transaction at path for account.
func (c *Client) Build(ctx context.Context, path, account string) (*Transaction, error) {
	body, err := json.Marshal(map[string]string{"account": account})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var tx Transaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if tx.Transaction == "" {
		return nil, fmt.Errorf("server returned an empty transaction")
	}

	c.logger.Debug("transaction built", "path", path, "account", account)
	return &tx, nil
}

// Rules fetches /actions.json.
func (c *Client) Rules(ctx context.Context) ([]Rule, error) {
	resp, err := c.do(ctx, http.MethodGet, "/actions.json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var out struct {
		Rules []Rule `json:"rules"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Rules, nil
}

// Health returns nil when the service and its RPC node are healthy.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed (%d): %s", resp.StatusCode, errResp.Error)
}
