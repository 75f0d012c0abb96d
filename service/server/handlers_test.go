package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/blinks/service/actions"
	"github.com/brojonat/blinks/service/metrics"
	natspkg "github.com/brojonat/blinks/service/nats"
	"github.com/brojonat/blinks/service/quote"
	"github.com/brojonat/blinks/service/txbuilder"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedBlockhash struct {
	hash  solana.Hash
	err   error
	calls int
}

func (f *fixedBlockhash) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	f.calls++
	return f.hash, f.err
}

type stubTrades struct {
	err   error
	calls int
}

func (s *stubTrades) TradeLocal(ctx context.Context, trade quote.TradeRequest) ([]byte, error) {
	s.calls++
	return nil, s.err
}

func (s *stubTrades) TokenInfo(ctx context.Context, mint string) (*quote.TokenInfo, error) {
	return &quote.TokenInfo{Name: "Bonk", Image: "https://example.com/bonk.png"}, nil
}

type stubSwaps struct{}

func (stubSwaps) Quote(ctx context.Context, q quote.QuoteRequest) (*quote.Quote, error) {
	return nil, errors.New("not used")
}

func (stubSwaps) SwapInstructions(ctx context.Context, s quote.SwapRequest) (*quote.SwapInstructions, error) {
	return nil, errors.New("not used")
}

type stubNetwork struct{}

func (stubNetwork) AddressLookupTables(ctx context.Context, ids solana.PublicKeySlice) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	return nil, txbuilder.ErrUpstreamUnavailable
}

func (stubNetwork) TokenDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	return 9, nil
}

type stubHealth struct{ err error }

func (s stubHealth) Health(ctx context.Context) error { return s.err }

type testEnv struct {
	server    *Server
	handler   http.Handler
	blockhash *fixedBlockhash
	trades    *stubTrades
	publisher *natspkg.MockPublisher
	donate    actions.DonateConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		blockhash: &fixedBlockhash{hash: solana.Hash{7, 7, 7}},
		trades:    &stubTrades{err: &quote.APIError{Kind: quote.ErrorHTTPStatus, Provider: "pumpportal", StatusCode: 500}},
		publisher: natspkg.NewMockPublisher(),
		donate:    actions.DefaultDonateConfig(),
	}
	env.donate.BaseURL = "https://blinks.example.com"

	asm := txbuilder.NewAssembler(env.blockhash, logger)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	svc := actions.NewService(
		actions.NewDonate(env.donate, asm, logger),
		actions.NewBuy(actions.DefaultBuyConfig(), env.trades, stubNetwork{}, asm, logger),
		actions.NewSwap(actions.DefaultSwapConfig(), stubSwaps{}, stubNetwork{}, asm, logger),
		m,
	)

	env.server = New(":0", svc, stubHealth{}, env.publisher, m, logger)
	env.handler = env.server.Handler()
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	e.flushEvents()
	return w
}

// flushEvents waits for background event publishes started by earlier requests.
func (e *testEnv) flushEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.server.events.wait(ctx)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestActionsJSON(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/actions.json", "")
	require.Equal(t, http.StatusOK, w.Code)

	var rules actions.RulesFile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	require.Len(t, rules.Rules, 1)
	assert.Equal(t, "/api/**", rules.Rules[0].PathPattern)
}

func TestCORSAndActionHeaders(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodOptions, "/api/donate", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Action-Version")

	w = env.do(http.MethodGet, "/api/donate", "")
	assert.Equal(t, actionVersion, w.Header().Get("X-Action-Version"))
	assert.Equal(t, blockchainID, w.Header().Get("X-Blockchain-Ids"))
}

func TestDonateMenu(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/donate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var md actions.Metadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &md))
	assert.Equal(t, "action", md.Type)
	assert.Equal(t, "1 SOL", md.Label)
	require.NotNil(t, md.Links)
	require.Len(t, md.Links.Actions, 4)
	assert.Equal(t, "https://blinks.example.com/api/donate/5", md.Links.Actions[1].Href)
	assert.Equal(t, 0, env.blockhash.calls)
}

func TestDonateAmountMetadata(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/donate/2.5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2.5 SOL", decodeBody(t, w)["label"])

	w = env.do(http.MethodGet, "/api/donate/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDonateBuild(t *testing.T) {
	env := newTestEnv(t)
	account := solana.NewWallet().PublicKey()

	w := env.do(http.MethodPost, "/api/donate/0.001", `{"account":"`+account.String()+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp buildResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Transaction)

	tx, err := txbuilder.Deserialize(resp.Transaction)
	require.NoError(t, err)
	assert.Equal(t, account, tx.Message.AccountKeys[0])
	assert.Equal(t, solana.Hash{7, 7, 7}, tx.Message.RecentBlockhash)
	require.Len(t, tx.Message.Instructions, 1)

	events := env.publisher.GetPublishedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "donate", events[0].Action)
	assert.Equal(t, account.String(), events[0].Account)
	assert.Equal(t, "0.001", events[0].Amount)
	assert.Equal(t, 1, events[0].InstructionCount)
}

func TestDonateBuild_DefaultAmount(t *testing.T) {
	env := newTestEnv(t)
	account := solana.NewWallet().PublicKey()

	w := env.do(http.MethodPost, "/api/donate", `{"account":"`+account.String()+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	events := env.publisher.GetPublishedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, env.donate.Default.String(), events[0].Amount)
}

func TestDonateBuild_PublishFailureIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.SetPublishError(errors.New("nats down"))
	account := solana.NewWallet().PublicKey()

	w := env.do(http.MethodPost, "/api/donate/1", `{"account":"`+account.String()+`"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

// blockingPublisher holds every publish until released.
type blockingPublisher struct {
	started chan struct{}
	release chan struct{}
	inner   *natspkg.MockPublisher
}

func (p *blockingPublisher) PublishAction(ctx context.Context, event *natspkg.ActionEvent) error {
	p.started <- struct{}{}
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.inner.PublishAction(ctx, event)
}

func (p *blockingPublisher) Close() error { return nil }

func TestDonateBuild_ResponseDoesNotWaitForPublish(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := &blockingPublisher{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		inner:   natspkg.NewMockPublisher(),
	}
	asm := txbuilder.NewAssembler(&fixedBlockhash{hash: solana.Hash{7, 7, 7}}, logger)
	svc := actions.NewService(actions.NewDonate(actions.DefaultDonateConfig(), asm, logger), nil, nil, nil)
	srv := New(":0", svc, nil, publisher, nil, logger)

	account := solana.NewWallet().PublicKey()
	req := httptest.NewRequest(http.MethodPost, "/api/donate/1", strings.NewReader(`{"account":"`+account.String()+`"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, publisher.inner.GetPublishedEventCount(), "response written before the publish completes")

	select {
	case <-publisher.started:
	case <-time.After(5 * time.Second):
		t.Fatal("publish never started")
	}
	close(publisher.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	events := publisher.inner.GetPublishedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, account.String(), events[0].Account)
}

func TestBuild_ClientErrors(t *testing.T) {
	account := solana.NewWallet().PublicKey().String()

	tests := []struct {
		name string
		path string
		body string
		want string
	}{
		{"malformed JSON", "/api/donate/1", `{"account":`, "invalid request body"},
		{"missing account", "/api/donate/1", `{}`, "account"},
		{"invalid account", "/api/donate/1", `{"account":"not-base58-0OIl"}`, "account"},
		{"zero amount", "/api/donate/0", `{"account":"` + account + `"}`, "amount"},
		{"negative amount", "/api/donate/-1", `{"account":"` + account + `"}`, "amount"},
		{"exponent amount", "/api/donate/1e3", `{"account":"` + account + `"}`, "amount"},
		{"too many decimals", "/api/donate/0.0000000001", `{"account":"` + account + `"}`, "decimal places"},
		{"invalid mint", "/api/buy/nope/1", `{"account":"` + account + `"}`, "mint"},
		{"same swap mints", "/api/swap/" + solana.SolMint.String() + "-" + solana.SolMint.String(), `{"account":"` + account + `"}`, "differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeBody(t, w)["error"], tt.want)
			assert.Equal(t, 0, env.blockhash.calls)
			assert.Equal(t, 0, env.trades.calls)
			assert.Equal(t, 0, env.publisher.GetPublishedEventCount())
		})
	}
}

func TestBuild_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t)
	body := `{"account":"` + strings.Repeat("A", maxRequestBodySize) + `"}`

	w := env.do(http.MethodPost, "/api/donate/1", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "too large")
}

func TestBuyBuild_QuoteUnavailable(t *testing.T) {
	env := newTestEnv(t)
	account := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	w := env.do(http.MethodPost, "/api/buy/"+mint.String()+"/0.1", `{"account":"`+account.String()+`"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 1, env.trades.calls)
	assert.Equal(t, 0, env.blockhash.calls)
	assert.Equal(t, 0, env.publisher.GetPublishedEventCount())
}

func TestBuild_BlockhashFailure(t *testing.T) {
	env := newTestEnv(t)
	env.blockhash.err = errors.New("rpc down")
	account := solana.NewWallet().PublicKey()

	w := env.do(http.MethodPost, "/api/donate/1", `{"account":"`+account.String()+`"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), `"transaction"`)
}

func TestBuyMenu(t *testing.T) {
	env := newTestEnv(t)
	mint := solana.NewWallet().PublicKey()

	w := env.do(http.MethodGet, "/api/buy/"+mint.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Buy Bonk", body["title"])
	assert.Equal(t, "https://example.com/bonk.png", body["icon"])
}

func TestSwapMenu(t *testing.T) {
	env := newTestEnv(t)
	out := solana.NewWallet().PublicKey()

	w := env.do(http.MethodGet, "/api/swap/"+solana.SolMint.String()+"-"+out.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1 SOL", decodeBody(t, w)["label"])

	w = env.do(http.MethodGet, "/api/swap/garbage", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/stake", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodDelete, "/api/donate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := actions.NewService(nil, nil, nil, nil)

	h := New(":0", svc, stubHealth{}, nil, nil, logger).Handler()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])

	h = New(":0", svc, stubHealth{err: errors.New("node is behind")}, nil, nil, logger).Handler()
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "node is behind")
}

func TestDisabledActions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(":0", actions.NewService(nil, nil, nil, nil), nil, nil, nil, logger).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/donate", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte("go_goroutines")))
}
