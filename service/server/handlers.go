package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/blinks/service/actions"
	"github.com/brojonat/blinks/service/txbuilder"
)

const maxRequestBodySize = 1 << 16 // 64KB - the body only carries an account

// buildRequest is the POST body wallets send.
type buildRequest struct {
	Account string `json:"account"`
}

// buildResponse carries the base64 unsigned transaction.
type buildResponse struct {
	Transaction string `json:"transaction"`
	Message     string `json:"message,omitempty"`
}

// handleActionsJSON serves the rules that map website paths to action endpoints.
// GET /actions.json
func handleActionsJSON() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, actions.DefaultRules(), http.StatusOK)
	})
}

// handleDonateMenu returns the donate menu.
// GET /api/donate
func handleDonateMenu(donate *actions.Donate) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, donate.Menu(), http.StatusOK)
	})
}

// handleDonateAmount returns metadata for a single fixed amount.
// GET /api/donate/{amount}
func handleDonateAmount(donate *actions.Donate, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		md, err := donate.AmountMetadata(r.PathValue("amount"))
		if err != nil {
			writeBuildError(w, r, logger, actions.KindDonate, err)
			return
		}
		writeJSON(w, md, http.StatusOK)
	})
}

// handleBuyMenu returns the buy menu for a mint.
// GET /api/buy/{target}
func handleBuyMenu(buy *actions.Buy, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		md, err := buy.Menu(r.Context(), r.PathValue("target"))
		if err != nil {
			writeBuildError(w, r, logger, actions.KindBuy, err)
			return
		}
		writeJSON(w, md, http.StatusOK)
	})
}

// handleSwapMenu returns the swap menu for a pair.
// GET /api/swap/{target}
func handleSwapMenu(swap *actions.Swap, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		md, err := swap.Menu(r.PathValue("target"))
		if err != nil {
			writeBuildError(w, r, logger, actions.KindSwap, err)
			return
		}
		writeJSON(w, md, http.StatusOK)
	})
}

// handleBuild returns a handler that builds an unsigned transaction for kind.
// POST /api/{kind}[/{target}][/{amount}] with body {"account": "<base58>"}.
func handleBuild(svc *actions.Service, kind actions.Kind, events *eventSink, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var body buildRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			logger.Debug("failed to decode build request", "action", kind, "error", err)
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, "request body too large", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be JSON with an account field", http.StatusBadRequest)
			return
		}

		res, err := svc.Build(r.Context(), actions.Request{
			Action:  kind,
			Account: body.Account,
			Target:  r.PathValue("target"),
			Amount:  r.PathValue("amount"),
		})
		if err != nil {
			writeBuildError(w, r, logger, kind, err)
			return
		}

		writeJSON(w, buildResponse{Transaction: res.Transaction, Message: res.Message}, http.StatusOK)
		events.publish(r.Context(), res)
	})
}

// handleHealth reports liveness and, when a checker is configured, upstream reachability.
// GET /health
func handleHealth(checker HealthChecker, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := checker.Health(ctx); err != nil {
				logger.Warn("health check failed", "error", err)
				writeJSON(w, map[string]string{"status": "unavailable", "error": err.Error()}, http.StatusServiceUnavailable)
				return
			}
		}
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
}

// writeBuildError maps err onto a status code. Construction defects are logged at Error
// and hidden from the caller.
func writeBuildError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, kind actions.Kind, err error) {
	status := txbuilder.StatusCode(err)
	attrs := []any{
		"action", kind,
		"path", r.URL.Path,
		"kind", txbuilder.Kind(err),
		"error", err,
	}

	switch {
	case status >= http.StatusInternalServerError && status != http.StatusBadGateway:
		logger.Error("failed to build transaction", attrs...)
		writeError(w, "failed to build transaction", status)
	case status == http.StatusBadGateway:
		logger.Error("upstream failure while building transaction", attrs...)
		writeError(w, err.Error(), status)
	default:
		logger.Debug("rejected action request", attrs...)
		writeError(w, err.Error(), status)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
