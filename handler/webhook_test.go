package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymux"
	"paymux/gateways/moyasar"
	"paymux/handler"
)

func newServer(cfg paymux.Config) *echo.Echo {
	e := echo.New()
	h := handler.NewWebhookHandler(paymux.New(cfg), nil)
	h.Register(e)
	return e
}

func TestHandleWebhookAccepted(t *testing.T) {
	e := newServer(paymux.Config{
		Moyasar: &moyasar.Config{SecretKey: "sk", WebhookSecret: "whsec"},
	})

	payload := `{
		"id": "evt_1",
		"type": "payment_paid",
		"secret_token": "whsec",
		"data": {"id": "pay_1", "status": "paid", "amount": 1000, "currency": "SAR"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/moyasar", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["received"])
	assert.Equal(t, "evt_1", body["event_id"])
	assert.Equal(t, "payment_paid", body["type"])
	assert.Equal(t, "paid", body["status"])
}

func TestHandleWebhookRejectedSignature(t *testing.T) {
	e := newServer(paymux.Config{
		Moyasar: &moyasar.Config{SecretKey: "sk", WebhookSecret: "whsec"},
	})

	payload := `{"id":"evt_1","type":"payment_paid","secret_token":"wrong","data":{"id":"pay_1"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/moyasar", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_WEBHOOK", body["code"])
}

func TestHandleWebhookUnknownGateway(t *testing.T) {
	e := newServer(paymux.Config{
		Moyasar: &moyasar.Config{SecretKey: "sk"},
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "GATEWAY_NOT_CONFIGURED", body["code"])
}

func TestHandleWebhookDeduplicatesDeliveries(t *testing.T) {
	e := echo.New()
	deduper, err := handler.NewEventDeduper("", "", 0, time.Minute)
	require.NoError(t, err)

	client := paymux.New(paymux.Config{
		Moyasar: &moyasar.Config{SecretKey: "sk", WebhookSecret: "whsec"},
	})
	handler.NewWebhookHandler(client, nil).WithDeduper(deduper).Register(e)

	payload := `{
		"id": "evt_dup",
		"type": "payment_paid",
		"secret_token": "whsec",
		"data": {"id": "pay_1", "status": "paid", "amount": 1000, "currency": "SAR"}
	}`

	first := httptest.NewRecorder()
	e.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/webhooks/moyasar", strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, first.Code)
	var firstBody map[string]any
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstBody))
	assert.Nil(t, firstBody["duplicate"])

	second := httptest.NewRecorder()
	e.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/webhooks/moyasar", strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, second.Code)
	var secondBody map[string]any
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondBody))
	assert.Equal(t, true, secondBody["duplicate"])
	assert.Equal(t, "evt_dup", secondBody["event_id"])
}

func TestEventDeduperSeparatesGateways(t *testing.T) {
	deduper, err := handler.NewEventDeduper("", "", 0, time.Minute)
	require.NoError(t, err)

	dup, err := deduper.Seen(context.Background(), "moyasar", "evt_1")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = deduper.Seen(context.Background(), "stripe", "evt_1")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = deduper.Seen(context.Background(), "moyasar", "evt_1")
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestHandleWebhookMalformedPayload(t *testing.T) {
	e := newServer(paymux.Config{
		// No webhook secret, so verification passes and parsing rejects.
		Moyasar: &moyasar.Config{SecretKey: "sk"},
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/moyasar", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
