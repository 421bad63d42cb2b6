package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trx_discount_back/models"
	"trx_discount_back/pkg/config"
	"trx_discount_back/pkg/middleware"
	"trx_discount_back/pkg/payment"
	"trx_discount_back/pkg/service"
)

const receiving = "TA4Wt1DUCqz6YegbnsmqsWC5uUfbdBqPxm"

var testCfg = config.Purchase{
	ReceivingAddress: receiving,
	PayingContract:   "TA9pkx4DFxrEw8JZzUtyDrh2uAat1LDuJL",
	TokenContract:    "TAF8dttxK5iPKbvYC626aDBytrWANpLRXp",
	BuySelector:      "buy(uint256)",
	PaymentScheme:    "tron",
	DiscountFactor:   decimal.RequireFromString("0.7"),
	TokenDecimals:    6,
	NativeDecimals:   6,
}

type fakeRates struct{}

func (fakeRates) Rate() *models.QuoteRate {
	return &models.QuoteRate{Value: 0.27, Source: models.RateSourceOracle}
}

func (fakeRates) Stale() bool { return false }

func (fakeRates) FetchRate(ctx context.Context) models.QuoteRate {
	return models.QuoteRate{Value: 0.28, Source: models.RateSourceOracle}
}

type fakeWallet struct {
	state     models.WalletState
	restarted int
}

func (f *fakeWallet) State() models.WalletState { return f.state }

func (f *fakeWallet) Subscribe() (<-chan models.WalletState, func()) {
	ch := make(chan models.WalletState, 1)
	ch <- f.state
	return ch, func() {}
}

func (f *fakeWallet) Restart(ctx context.Context) { f.restarted++ }

type fakeBalance struct{ snapshots int }

func (f *fakeBalance) Snapshot(ctx context.Context) models.ContractBalanceSnapshot {
	f.snapshots++
	return models.ContractBalanceSnapshot{TokenStatus: models.QueryOK, TokenBalance: decimal.NewFromInt(10), FetchedAt: time.Now()}
}

func (f *fakeBalance) Last() models.ContractBalanceSnapshot { return models.ContractBalanceSnapshot{} }

type fakeHistory struct{ queried string }

func (f *fakeHistory) RecentTransfers(ctx context.Context, address string) []models.TransferEvent {
	f.queried = address
	return []models.TransferEvent{{TxID: "live"}}
}

func (f *fakeHistory) Recent() []models.TransferEvent {
	return []models.TransferEvent{{TxID: "cached"}}
}

func (f *fakeHistory) Refresh(ctx context.Context) error { return nil }

type fakePurchase struct {
	*service.PurchaseService
	result models.PurchaseResult
	err    error
	got    models.PurchaseRequest
}

func (f *fakePurchase) Purchase(ctx context.Context, req models.PurchaseRequest) (models.PurchaseResult, error) {
	f.got = req
	return f.result, f.err
}

type fakeClipboard struct {
	text string
	err  error
}

func (f *fakeClipboard) WriteAll(text string) error {
	f.text = text
	return f.err
}

type env struct {
	router   *gin.Engine
	wallet   *fakeWallet
	balance  *fakeBalance
	history  *fakeHistory
	purchase *fakePurchase
	clip     *fakeClipboard
}

func newEnv(token string) *env {
	gin.SetMode(gin.TestMode)
	e := &env{
		wallet:  &fakeWallet{state: models.WalletState{Status: models.WalletReady, Account: receiving, Attempt: 1}},
		balance: &fakeBalance{},
		history: &fakeHistory{},
		purchase: &fakePurchase{
			PurchaseService: service.NewPurchaseService(service.PurchaseDeps{Config: testCfg, Rates: fakeRates{}}),
		},
		clip: &fakeClipboard{},
	}
	svc := &service.Service{
		Config:   testCfg,
		Rates:    fakeRates{},
		Wallet:   e.wallet,
		Balance:  e.balance,
		History:  e.history,
		Purchase: e.purchase,
		Payments: payment.NewGenerator("tron", e.clip),
	}
	e.router = NewHandler(svc, nil, token).InitRoute()
	return e
}

func (e *env) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestGetRate(t *testing.T) {
	e := newEnv("")
	w := e.do(http.MethodGet, "/api/rate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, true, out["ready"])
	assert.Equal(t, false, out["stale"])
	assert.Equal(t, 0.27, out["data"].(map[string]interface{})["value"])

	w = e.do(http.MethodPost, "/api/rate/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.28, decode(t, w)["data"].(map[string]interface{})["value"])
}

func TestConvert(t *testing.T) {
	e := newEnv("")
	w := e.do(http.MethodPost, "/api/convert", models.ConvertRequest{Amount: "100"})
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "142.8571", data["usdt"])

	w = e.do(http.MethodPost, "/api/convert", models.ConvertRequest{Amount: "-3"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", decode(t, w)["data"].(map[string]interface{})["usdt"])
}

func TestSetInputKeepsPriorValueOnMalformedEdit(t *testing.T) {
	e := newEnv("")
	e.do(http.MethodPost, "/api/input", models.InputRequest{Value: "50"})
	w := e.do(http.MethodPost, "/api/input", models.InputRequest{Value: "50a"})
	out := decode(t, w)
	assert.Equal(t, "50", out["input"])
	assert.Equal(t, "71.4286", out["usdt"])
}

func TestPurchase(t *testing.T) {
	e := newEnv("")
	e.purchase.result = models.PurchaseResult{AttemptID: "a1", Outcome: models.OutcomeSucceeded}

	w := e.do(http.MethodPost, "/api/purchase", models.PurchaseRequest{Amount: "10"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", e.purchase.got.Amount)
	assert.Equal(t, "succeeded", decode(t, w)["data"].(map[string]interface{})["outcome"])
}

func TestPurchaseUsesStoredInput(t *testing.T) {
	e := newEnv("")
	e.do(http.MethodPost, "/api/input", models.InputRequest{Value: "25"})
	e.do(http.MethodPost, "/api/purchase", models.PurchaseRequest{})
	assert.Equal(t, "25", e.purchase.got.Amount)
}

func TestPurchaseInFlightConflict(t *testing.T) {
	e := newEnv("")
	e.purchase.err = models.ErrPurchaseInFlight
	w := e.do(http.MethodPost, "/api/purchase", models.PurchaseRequest{Amount: "10"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPurchaseRequiresToken(t *testing.T) {
	e := newEnv("secret")
	w := e.do(http.MethodPost, "/api/purchase", models.PurchaseRequest{Amount: "10"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodPost, "/api/purchase", models.PurchaseRequest{Amount: "10"}, middleware.TokenHeader, "secret")
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/api/rate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPurchaseStatus(t *testing.T) {
	e := newEnv("")
	w := e.do(http.MethodGet, "/api/purchase/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, "idle", out["state"])
	assert.Equal(t, false, out["in_flight"])
	assert.NotContains(t, out, "data")
}

func TestPaymentRequest(t *testing.T) {
	e := newEnv("")
	w := e.do(http.MethodGet, "/api/payment-request?amount=50", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "tron:"+receiving+"?amount=50.000000", data["uri"])
	assert.Equal(t, "71.4286", data["usdt"])

	w = e.do(http.MethodGet, "/api/payment-request?amount=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCopy(t *testing.T) {
	e := newEnv("")
	w := e.do(http.MethodPost, "/api/copy", map[string]string{"text": receiving})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, receiving, e.clip.text)

	e.clip.err = errors.New("no display")
	w = e.do(http.MethodPost, "/api/copy", map[string]string{"text": receiving})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWalletAndReconnect(t *testing.T) {
	e := newEnv("")
	w := e.do(http.MethodGet, "/api/wallet", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode(t, w)["data"].(map[string]interface{})["status"])

	w = e.do(http.MethodPost, "/api/wallet/reconnect", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, e.wallet.restarted)
}

func TestBalanceFetchesWhenEmpty(t *testing.T) {
	e := newEnv("")
	w := e.do(http.MethodGet, "/api/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, e.balance.snapshots)
	assert.Equal(t, "ok", decode(t, w)["data"].(map[string]interface{})["token_status"])
}

func TestTransfers(t *testing.T) {
	e := newEnv("")
	w := e.do(http.MethodGet, "/api/transfers", nil)
	data := decode(t, w)["data"].([]interface{})
	assert.Equal(t, "cached", data[0].(map[string]interface{})["tx_id"])

	w = e.do(http.MethodGet, "/api/transfers?address="+receiving, nil)
	data = decode(t, w)["data"].([]interface{})
	assert.Equal(t, "live", data[0].(map[string]interface{})["tx_id"])
	assert.Equal(t, receiving, e.history.queried)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv("")
	w := e.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestStreamWallet(t *testing.T) {
	e := newEnv("")
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/wallet/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var state models.WalletState
	require.NoError(t, conn.ReadJSON(&state))
	assert.Equal(t, models.WalletReady, state.Status)
	assert.Equal(t, receiving, state.Account)
}
