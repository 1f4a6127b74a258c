package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"paymux/gateway"
	"paymux/payerr"
)

// signatureTolerance bounds how old a signed webhook timestamp may be.
const signatureTolerance = 5 * time.Minute

type webhookPayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type webhookObject struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	Amount        int64             `json:"amount"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

// VerifyWebhook checks the Stripe-Signature header: HMAC-SHA256 over
// "<timestamp>.<raw body>" with a replay tolerance. The signature argument
// wins over the header. With no secret configured the webhook is accepted and
// a warning is logged.
func (g *Gateway) VerifyWebhook(payload []byte, signature string, headers map[string]string) bool {
	if g.cfg.WebhookSecret == "" {
		g.logger.Warn("webhook verification skipped: webhook secret not configured",
			zap.String("gateway", Name))
		return true
	}

	sigHeader := signature
	if sigHeader == "" {
		for k, v := range headers {
			if strings.EqualFold(k, "stripe-signature") {
				sigHeader = v
				break
			}
		}
	}
	if sigHeader == "" {
		g.logger.Warn("missing stripe-signature header", zap.String("gateway", Name))
		return false
	}

	// Header format: t=TIMESTAMP,v1=SIGNATURE[,v0=...]
	parts := map[string]string{}
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			parts[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	timestamp, v1 := parts["t"], parts["v1"]
	if timestamp == "" || v1 == "" {
		g.logger.Warn("invalid signature header format", zap.String("gateway", Name))
		return false
	}

	eventTime, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if time.Since(time.Unix(eventTime, 0)) > signatureTolerance {
		g.logger.Warn("webhook signature timestamp too old", zap.String("gateway", Name))
		return false
	}

	mac := hmac.New(sha256.New, []byte(g.cfg.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(v1))
}

// ParseWebhookEvent decodes and normalizes a Stripe event. The envelope is
// {id, type, created, data: {object}}; payloads missing those discriminants
// are rejected.
func (g *Gateway) ParseWebhookEvent(payload []byte) (*gateway.WebhookEvent, error) {
	var wp webhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return nil, payerr.InvalidWebhook(Name, "malformed webhook payload")
	}
	if wp.ID == "" || wp.Type == "" {
		return nil, payerr.InvalidWebhook(Name, "webhook payload missing id or type")
	}
	if len(wp.Data.Object) == 0 || string(wp.Data.Object) == "null" {
		return nil, payerr.InvalidWebhook(Name, "webhook payload missing data.object")
	}
	var obj webhookObject
	if err := json.Unmarshal(wp.Data.Object, &obj); err != nil || obj.ID == "" {
		return nil, payerr.InvalidWebhook(Name, "webhook payload missing object id")
	}

	amount := gateway.FromMinorUnits(obj.Amount)
	// Checkout sessions carry amount_total instead of amount.
	if obj.AmountTotal != 0 {
		amount = gateway.FromMinorUnits(obj.AmountTotal)
	}
	currency := obj.Currency
	if currency == "" {
		currency = "usd"
	}

	status := gateway.StatusPending
	switch wp.Type {
	case "payment_intent.succeeded":
		status = gateway.StatusPaid
	case "payment_intent.payment_failed":
		status = gateway.StatusFailed
	case "payment_intent.canceled":
		status = gateway.StatusCancelled
	case "payment_intent.created":
		status = gateway.StatusPending
	case "checkout.session.completed":
		if obj.PaymentStatus == "paid" {
			status = gateway.StatusPaid
		}
	case "charge.refunded":
		status = gateway.StatusRefunded
	case "charge.refund.updated":
		if obj.Status == "succeeded" {
			status = gateway.StatusPartiallyRefunded
		}
	case "subscription_schedule.created",
		"subscription_schedule.updated",
		"subscription_schedule.released",
		"subscription_schedule.canceled",
		"subscription_schedule.completed",
		"subscription_schedule.expiring",
		"subscription_schedule.aborted":
		// Passed through as pending; consumers handle schedule events directly.
	default:
		status = mapStatus(obj.Status)
	}

	return &gateway.WebhookEvent{
		ID:               wp.ID,
		Type:             wp.Type,
		Gateway:          Name,
		PaymentID:        obj.Metadata["paymentId"],
		GatewayPaymentID: obj.ID,
		Status:           status,
		Amount:           amount,
		Currency:         currency,
		Timestamp:        time.Unix(wp.Created, 0),
		Raw:              json.RawMessage(append([]byte(nil), payload...)),
	}, nil
}
