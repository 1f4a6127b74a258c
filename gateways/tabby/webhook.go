package tabby

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"paymux/gateway"
	"paymux/payerr"
)

// webhookPayload is the payment object Tabby posts to the notification URL.
type webhookPayload struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Amount    string         `json:"amount"`
	Currency  string         `json:"currency"`
	CreatedAt string         `json:"created_at"`
	Captures  []Transaction  `json:"captures"`
	Refunds   []Transaction  `json:"refunds"`
	Meta      map[string]any `json:"meta"`
}

// VerifyWebhook checks the static auth header registered with the webhook.
// Tabby has no payload signature; with no header configured every webhook is
// accepted.
func (g *Gateway) VerifyWebhook(_ []byte, signature string, headers map[string]string) bool {
	if g.cfg.WebhookAuthHeader != "" {
		auth := signature
		if auth == "" {
			auth = headerValue(headers, "authorization")
		}
		if auth == "" {
			auth = headerValue(headers, "x-tabby-auth")
		}
		if auth == "" {
			g.logger.Warn("webhook verification failed: missing auth header",
				zap.String("gateway", Name))
			return false
		}
		if auth != g.cfg.WebhookAuthHeader {
			g.logger.Warn("webhook verification failed: auth header mismatch",
				zap.String("gateway", Name))
			return false
		}
	}

	// Tabby publishes source IP ranges; log the origin for manual checks.
	if ip := defaultString(headerValue(headers, "x-forwarded-for"), headerValue(headers, "x-real-ip")); ip != "" {
		g.logger.Info("webhook received", zap.String("gateway", Name), zap.String("source_ip", ip))
	}
	return true
}

// ParseWebhookEvent decodes and normalizes a Tabby notification. Tabby posts
// the payment object without an event envelope, so the event type is
// synthesized from the status and the capture/refund lists. A closed payment
// with refunds compares refunded against captured totals to split full from
// partial refunds.
func (g *Gateway) ParseWebhookEvent(payload []byte) (*gateway.WebhookEvent, error) {
	var wp webhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return nil, payerr.InvalidWebhook(Name, "malformed webhook payload")
	}
	if wp.ID == "" || wp.Status == "" {
		return nil, payerr.InvalidWebhook(Name, "webhook payload missing id or status")
	}

	status := gateway.StatusPending
	switch strings.ToLower(wp.Status) {
	case "authorized":
		status = gateway.StatusAuthorized
	case "closed":
		if len(wp.Refunds) > 0 {
			if sumAmounts(wp.Refunds) >= sumAmounts(wp.Captures) {
				status = gateway.StatusRefunded
			} else {
				status = gateway.StatusPartiallyRefunded
			}
		} else {
			status = gateway.StatusPaid
		}
	case "rejected":
		status = gateway.StatusFailed
	case "expired":
		status = gateway.StatusCancelled
	}

	eventType := "payment." + strings.ToLower(wp.Status)
	if len(wp.Captures) > 0 && strings.EqualFold(wp.Status, "authorized") {
		eventType = "payment.captured"
	}
	if len(wp.Refunds) > 0 {
		eventType = "payment.refunded"
	}

	paymentID, _ := wp.Meta["paymentId"].(string)
	ev := &gateway.WebhookEvent{
		ID:               wp.ID,
		Type:             eventType,
		Gateway:          Name,
		PaymentID:        paymentID,
		GatewayPaymentID: wp.ID,
		Status:           status,
		Amount:           gateway.ParseDecimalAmount(wp.Amount),
		Currency:         wp.Currency,
		Timestamp:        time.Now(),
		Raw:              json.RawMessage(append([]byte(nil), payload...)),
	}
	if t, err := time.Parse(time.RFC3339, wp.CreatedAt); err == nil {
		ev.Timestamp = t
	}
	return ev, nil
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
