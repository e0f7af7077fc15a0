package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"NanoTokenGate/internal/pricing"
	"NanoTokenGate/internal/services"
	"NanoTokenGate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopPoller struct{}

func (noopPoller) Start(tokenKey, address string)                    {}
func (noopPoller) RunOnce(ctx context.Context, address string) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	svc := &services.OrderService{
		Store:          st,
		Poller:         noopPoller{},
		Pricing:        pricing.Service{FixedTokenPrice: 0.1},
		MinAmount:      1,
		MaxAmount:      1000,
		PaymentTimeout: 180,
	}
	srv := httptest.NewServer(NewServer(NewHandler(svc)).Router)
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestPaymentEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/tokens/orders", map[string]any{"token_amount": 100})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Address       string  `json:"address"`
		TokenKey      string  `json:"token_key"`
		PaymentAmount float64 `json:"payment_amount"`
	}
	decode(t, resp, &out)
	assert.NotEmpty(t, out.Address)
	assert.Len(t, out.TokenKey, 64)
	assert.InDelta(t, 10.0, out.PaymentAmount, 1e-9)
}

func TestRequestPaymentBadAmount(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/tokens/orders", map[string]any{"token_amount": 0})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequestPaymentConflictOnWaitingOrder(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/tokens/orders", map[string]any{"token_amount": 100})
	var out struct {
		TokenKey string `json:"token_key"`
	}
	decode(t, resp, &out)

	resp = postJSON(t, srv.URL+"/tokens/orders", map[string]any{"token_amount": 100, "token_key": out.TokenKey})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRequestPaymentBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/tokens/orders", "application/json", bytes.NewReader([]byte(`{nope`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrderStatusEndpoint(t *testing.T) {
	srv, st := newTestServer(t)

	resp := postJSON(t, srv.URL+"/tokens/orders", map[string]any{"token_amount": 100})
	var created struct {
		TokenKey string `json:"token_key"`
	}
	decode(t, resp, &created)

	resp, err := http.Get(srv.URL + "/tokens/orders/" + created.TokenKey)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var waiting struct {
		OrderTimeLeft int64 `json:"order_time_left"`
	}
	decode(t, resp, &waiting)
	assert.Equal(t, int64(180), waiting.OrderTimeLeft)

	require.NoError(t, st.Complete(context.Background(), created.TokenKey, 100,
		"10000000000000000000000000000000", []string{"AAA"}))
	resp, err = http.Get(srv.URL + "/tokens/orders/" + created.TokenKey)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var done struct {
		TokensOrdered int64 `json:"tokens_ordered"`
		TokensTotal   int64 `json:"tokens_total"`
	}
	decode(t, resp, &done)
	assert.Equal(t, int64(100), done.TokensOrdered)
	assert.Equal(t, int64(100), done.TokensTotal)
}

func TestOrderStatusNotFoundAndGone(t *testing.T) {
	srv, st := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tokens/orders/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	created := postJSON(t, srv.URL+"/tokens/orders", map[string]any{"token_amount": 100})
	var order struct {
		TokenKey string `json:"token_key"`
	}
	decode(t, created, &order)
	_, err = st.DecrementTimeLeft(context.Background(), order.TokenKey, 999)
	require.NoError(t, err)

	resp, err = http.Get(srv.URL + "/tokens/orders/" + order.TokenKey)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestTokenBalanceEndpoint(t *testing.T) {
	srv, st := newTestServer(t)

	created := postJSON(t, srv.URL+"/tokens/orders", map[string]any{"token_amount": 100})
	var order struct {
		TokenKey string `json:"token_key"`
	}
	decode(t, created, &order)
	require.NoError(t, st.Complete(context.Background(), order.TokenKey, 100,
		"10000000000000000000000000000000", []string{"AAA"}))

	resp, err := http.Get(srv.URL + "/tokens/orders/" + order.TokenKey + "/balance")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		TokensTotal int64  `json:"tokens_total"`
		Status      string `json:"status"`
	}
	decode(t, resp, &out)
	assert.Equal(t, int64(100), out.TokensTotal)
	assert.Equal(t, "OK", out.Status)
}

func TestCancelOrderEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	created := postJSON(t, srv.URL+"/tokens/orders", map[string]any{"token_amount": 100})
	var order struct {
		TokenKey string `json:"token_key"`
	}
	decode(t, created, &order)

	resp := postJSON(t, srv.URL+"/tokens/orders/"+order.TokenKey+"/cancel", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		PrivKey string `json:"priv_key"`
		Status  string `json:"status"`
	}
	decode(t, resp, &out)
	assert.Len(t, out.PrivKey, 64)
}

func TestTokenPriceEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/tokens/price")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		TokenPrice float64 `json:"token_price"`
		Source     string  `json:"source"`
	}
	decode(t, resp, &out)
	assert.InDelta(t, 0.1, out.TokenPrice, 1e-9)
	assert.Equal(t, "fixed", out.Source)
}

func TestRepairEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/tokens/repair", map[string]any{"address": "nano_1deposit"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	missing := postJSON(t, srv.URL+"/tokens/repair", map[string]any{})
	defer missing.Body.Close()
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/tokens/price", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
