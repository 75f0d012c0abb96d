package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionPath(t *testing.T) {
	tests := []struct {
		action, target, amount string
		want                   string
	}{
		{"donate", "", "", "/api/donate"},
		{"donate", "ignored", "5", "/api/donate/5"},
		{"buy", "Mint111", "", "/api/buy/Mint111"},
		{"buy", "Mint111", "0.1", "/api/buy/Mint111/0.1"},
		{"swap", "A-B", "1", "/api/swap/A-B/1"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ActionPath(tt.action, tt.target, tt.amount))
	}
}

func TestMenu_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/donate", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"type": "action",
			"title": "Donate to Alice",
			"label": "1 SOL",
			"links": {"actions": [
				{"label": "1 SOL", "href": "/api/donate/1"},
				{"label": "Donate", "href": "/api/donate/{amount}",
				 "parameters": [{"name": "amount", "label": "Enter a custom SOL amount", "required": true}]}
			]}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	md, err := client.Menu(context.Background(), "/api/donate")
	require.NoError(t, err)

	assert.Equal(t, "Donate to Alice", md.Title)
	assert.Equal(t, "1 SOL", md.Label)
	require.NotNil(t, md.Links)
	require.Len(t, md.Links.Actions, 2)
	require.Len(t, md.Links.Actions[1].Parameters, 1)
	assert.Equal(t, "amount", md.Links.Actions[1].Parameters[0].Name)
}

func TestBuild_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/donate/5", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "wallet123", body["account"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"transaction": "AQID",
			"message":     "Donate 5 SOL",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", nil, nil)
	tx, err := client.Build(context.Background(), "/api/donate/5", "wallet123")
	require.NoError(t, err)
	assert.Equal(t, "AQID", tx.Transaction)
	assert.Equal(t, "Donate 5 SOL", tx.Message)
}

func TestBuild_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid amount: amount must be greater than zero",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Build(context.Background(), "/api/donate/0", "wallet123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "greater than zero")
}

func TestBuild_EmptyTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transaction": ""}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Build(context.Background(), "/api/donate", "wallet123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty transaction")
}

func TestBuild_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Build(context.Background(), "/api/buy/mint", "wallet123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502: bad gateway")
}

func TestRules(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/actions.json", r.URL.Path)
		w.Write([]byte(`{"rules":[{"pathPattern":"/api/**","apiPath":"/api/**"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	rules, err := client.Rules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "/api/**", rules[0].APIPath)
}

func TestHealth(t *testing.T) {
	var unhealthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable","error":"node is behind"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	assert.NoError(t, client.Health(context.Background()))

	unhealthy.Store(true)
	err := client.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node is behind")
}

func TestContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Menu(ctx, "/api/donate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}
