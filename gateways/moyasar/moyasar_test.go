package moyasar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymux/gateway"
	"paymux/payerr"
)

func testGateway(t *testing.T, handler http.HandlerFunc, cfg Config) (*Gateway, *int64) {
	t.Helper()
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	if cfg.SecretKey == "" {
		cfg.SecretKey = "sk_test_123"
	}
	return New(cfg, nil, nil), &requests
}

func TestCreatePaymentWithToken(t *testing.T) {
	g, _ := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)

		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test_123", user)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(1050), body["amount"])
		assert.Equal(t, "SAR", body["currency"])
		src := body["source"].(map[string]any)
		assert.Equal(t, "token", src["type"])
		assert.Equal(t, "tok_123", src["token"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay_1","status":"paid","amount":1050,"currency":"SAR","source":{"type":"token"}}`))
	}, Config{})

	res, err := g.CreatePayment(context.Background(), gateway.CreatePaymentParams{
		Amount:      10.50,
		Currency:    "SAR",
		CallbackURL: "https://example.com/cb",
		TokenID:     "tok_123",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "pay_1", res.PaymentID)
	assert.Equal(t, gateway.StatusPaid, res.Status)
	assert.Equal(t, 10.50, res.Amount)
}

func TestCreatePaymentWithoutSourceMakesNoRequest(t *testing.T) {
	g, requests := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, Config{})

	_, err := g.CreatePayment(context.Background(), gateway.CreatePaymentParams{
		Amount:      10,
		Currency:    "SAR",
		CallbackURL: "https://example.com/cb",
	})
	require.Error(t, err)
	assert.True(t, payerr.IsCode(err, payerr.CodeGatewayAPIError))
	assert.EqualValues(t, 0, atomic.LoadInt64(requests))
}

func TestCreatePaymentSTCPayRedirect(t *testing.T) {
	g, _ := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay_2","status":"initiated","amount":1000,"currency":"SAR","source":{"type":"stcpay","otp_url":"https://stcpay.example/otp"}}`))
	}, Config{})

	res, err := g.CreatePayment(context.Background(), gateway.CreatePaymentParams{
		Amount:      10,
		Currency:    "SAR",
		CallbackURL: "https://example.com/cb",
		Source:      STCPaySource{Mobile: "0512345678"},
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusPending, res.Status)
	assert.Equal(t, "https://stcpay.example/otp", res.RedirectURL)
}

func TestRefundPaymentTracksTotals(t *testing.T) {
	g, _ := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_3/refund", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay_3","status":"refunded","amount":1000,"refunded":1000,"currency":"SAR","refunded_at":"2026-08-01T10:00:00Z","source":{"type":"creditcard"}}`))
	}, Config{})

	res, err := g.RefundPayment(context.Background(), gateway.RefundParams{PaymentID: "pay_3", Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, gateway.RefundCompleted, res.Status)
	assert.Equal(t, 10.0, res.TotalRefunded)
	require.NotNil(t, res.RefundedAt)
}

func TestAPIErrorMapsInvalidRequest(t *testing.T) {
	g, _ := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"invalid_request_error","message":"amount is invalid"}`))
	}, Config{})

	_, err := g.CapturePayment(context.Background(), gateway.CaptureParams{PaymentID: "pay_4"})
	require.Error(t, err)
	pe, ok := payerr.As(err)
	require.True(t, ok)
	assert.Equal(t, payerr.CodeInvalidRequest, pe.Code)
	assert.Contains(t, pe.Message, "amount is invalid")
}

func TestAPIErrorMapsAuthentication(t *testing.T) {
	g, _ := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"authentication_error","message":"invalid api key"}`))
	}, Config{})

	_, err := g.VoidPayment(context.Background(), gateway.VoidParams{PaymentID: "pay_5"})
	assert.True(t, payerr.IsCode(err, payerr.CodeAuthenticationFailed))
}

func TestVerifyWebhook(t *testing.T) {
	g := New(Config{SecretKey: "sk", WebhookSecret: "whsec"}, nil, nil)

	assert.True(t, g.VerifyWebhook([]byte(`{"secret_token":"whsec"}`), "", nil))
	assert.False(t, g.VerifyWebhook([]byte(`{"secret_token":"wrong"}`), "", nil))
	assert.False(t, g.VerifyWebhook([]byte(`not json`), "", nil))

	// Without a configured secret every payload is accepted.
	open := New(Config{SecretKey: "sk"}, nil, nil)
	assert.True(t, open.VerifyWebhook([]byte(`{"secret_token":"anything"}`), "", nil))
}

func TestParseWebhookEvent(t *testing.T) {
	g := New(Config{SecretKey: "sk"}, nil, nil)

	ev, err := g.ParseWebhookEvent([]byte(`{
		"id": "evt_1",
		"type": "payment_paid",
		"created_at": "2026-08-01T10:00:00Z",
		"data": {
			"id": "pay_1",
			"status": "paid",
			"amount": 1050,
			"currency": "SAR",
			"metadata": {"paymentId": "order-42"}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "payment_paid", ev.Type)
	assert.Equal(t, "pay_1", ev.GatewayPaymentID)
	assert.Equal(t, "order-42", ev.PaymentID)
	assert.Equal(t, gateway.StatusPaid, ev.Status)
	assert.Equal(t, 10.50, ev.Amount)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestParseWebhookEventRejectsIncompletePayloads(t *testing.T) {
	g := New(Config{SecretKey: "sk"}, nil, nil)

	_, err := g.ParseWebhookEvent([]byte(`{"type":"payment_paid","data":{"id":"pay_1"}}`))
	assert.True(t, payerr.IsCode(err, payerr.CodeInvalidWebhook))

	_, err = g.ParseWebhookEvent([]byte(`{"id":"evt_1","type":"payment_paid","data":{}}`))
	assert.True(t, payerr.IsCode(err, payerr.CodeInvalidWebhook))

	_, err = g.ParseWebhookEvent([]byte(`garbage`))
	assert.True(t, payerr.IsCode(err, payerr.CodeInvalidWebhook))
}

func TestMapStatus(t *testing.T) {
	tests := map[string]gateway.Status{
		"initiated":  gateway.StatusPending,
		"pending":    gateway.StatusPending,
		"authorized": gateway.StatusAuthorized,
		"verified":   gateway.StatusAuthorized,
		"captured":   gateway.StatusPaid,
		"paid":       gateway.StatusPaid,
		"failed":     gateway.StatusFailed,
		"refunded":   gateway.StatusRefunded,
		"voided":     gateway.StatusCancelled,
		"unknown":    gateway.StatusPending,
	}
	for in, want := range tests {
		assert.Equal(t, want, mapStatus(in), "status %q", in)
	}
}
