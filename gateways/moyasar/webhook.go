package moyasar

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"paymux/gateway"
	"paymux/payerr"
)

// webhookPayload mirrors a Moyasar webhook notification.
type webhookPayload struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	SecretToken string `json:"secret_token"`
	CreatedAt   string `json:"created_at"`
	Data        struct {
		ID       string         `json:"id"`
		Status   string         `json:"status"`
		Amount   int64          `json:"amount"`
		Currency string         `json:"currency"`
		Metadata map[string]any `json:"metadata"`
	} `json:"data"`
}

// VerifyWebhook checks the secret_token carried in the payload against the
// configured webhook secret. With no secret configured the webhook is
// accepted and a warning is logged.
func (g *Gateway) VerifyWebhook(payload []byte, _ string, _ map[string]string) bool {
	if g.cfg.WebhookSecret == "" {
		g.logger.Warn("no webhook secret configured, skipping verification",
			zap.String("gateway", Name))
		return true
	}
	var wp struct {
		SecretToken string `json:"secret_token"`
	}
	if err := json.Unmarshal(payload, &wp); err != nil {
		return false
	}
	return wp.SecretToken == g.cfg.WebhookSecret
}

// ParseWebhookEvent decodes and normalizes a Moyasar webhook. Payloads
// missing the event or payment discriminants are rejected.
func (g *Gateway) ParseWebhookEvent(payload []byte) (*gateway.WebhookEvent, error) {
	var wp webhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return nil, payerr.InvalidWebhook(Name, "malformed webhook payload")
	}
	if wp.ID == "" || wp.Type == "" || wp.Data.ID == "" {
		return nil, payerr.InvalidWebhook(Name, "webhook payload missing id, type or data.id")
	}

	ev := &gateway.WebhookEvent{
		ID:               wp.ID,
		Type:             wp.Type,
		Gateway:          Name,
		GatewayPaymentID: wp.Data.ID,
		Status:           mapStatus(wp.Data.Status),
		Amount:           gateway.FromMinorUnits(wp.Data.Amount),
		Currency:         wp.Data.Currency,
		Raw:              json.RawMessage(append([]byte(nil), payload...)),
	}
	if ref, ok := wp.Data.Metadata["paymentId"].(string); ok {
		ev.PaymentID = ref
	}
	if t, err := time.Parse(time.RFC3339, wp.CreatedAt); err == nil {
		ev.Timestamp = t
	}
	return ev, nil
}
