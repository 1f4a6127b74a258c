package paypal

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"paymux/gateway"
	"paymux/payerr"
)

type webhookPayload struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	CreateTime string          `json:"create_time"`
	Resource   json.RawMessage `json:"resource"`
}

type webhookResource struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *struct {
		CurrencyCode string `json:"currency_code"`
		Value        string `json:"value"`
	} `json:"amount"`
	CustomID          string `json:"custom_id"`
	SupplementaryData struct {
		RelatedIDs struct {
			CaptureID string `json:"capture_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
		Payments struct {
			Captures []struct {
				ID string `json:"id"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

var webhookHeaderNames = []string{
	"paypal-transmission-id",
	"paypal-transmission-time",
	"paypal-transmission-sig",
	"paypal-cert-url",
	"paypal-auth-algo",
}

// VerifyWebhook is the permissive synchronous check. PayPal signatures can
// only be verified through the provider API, so this checks header presence
// and defers the real check to VerifyWebhookAsync, logging that it did.
func (g *Gateway) VerifyWebhook(_ []byte, signature string, headers map[string]string) bool {
	if g.cfg.WebhookID == "" {
		g.logger.Warn("webhook verification skipped: webhook id not configured",
			zap.String("gateway", Name))
		return true
	}

	h := lowerHeaders(headers)
	if signature != "" {
		h["paypal-transmission-sig"] = signature
	}
	for _, name := range webhookHeaderNames {
		if h[name] == "" {
			g.logger.Warn("webhook verification failed: missing required headers",
				zap.String("gateway", Name), zap.String("header", name))
			return false
		}
	}

	g.logger.Warn("synchronous verification not supported, use VerifyWebhookAsync",
		zap.String("gateway", Name))
	return true
}

// VerifyWebhookAsync verifies the webhook through PayPal's
// verify-webhook-signature API. This is the authoritative check.
func (g *Gateway) VerifyWebhookAsync(ctx context.Context, payload []byte, signature string, headers map[string]string) (bool, error) {
	if g.cfg.WebhookID == "" {
		g.logger.Warn("webhook verification skipped: webhook id not configured",
			zap.String("gateway", Name))
		return true, nil
	}

	h := lowerHeaders(headers)
	if signature != "" {
		h["paypal-transmission-sig"] = signature
	}
	for _, name := range webhookHeaderNames {
		if h[name] == "" {
			return false, nil
		}
	}

	token, err := g.accessToken(ctx)
	if err != nil {
		return false, err
	}
	resp, err := g.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]any{
			"auth_algo":         h["paypal-auth-algo"],
			"cert_url":          h["paypal-cert-url"],
			"transmission_id":   h["paypal-transmission-id"],
			"transmission_sig":  h["paypal-transmission-sig"],
			"transmission_time": h["paypal-transmission-time"],
			"webhook_id":        g.cfg.WebhookID,
			"webhook_event":     json.RawMessage(payload),
		}).
		Post(g.baseURL + "/v1/notifications/verify-webhook-signature")
	if err != nil {
		return false, payerr.Network(Name, err)
	}
	if resp.IsError() {
		g.logger.Error("webhook verification API error",
			zap.String("gateway", Name), zap.Int("status", resp.StatusCode()))
		return false, nil
	}

	var body struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return false, nil
	}
	return body.VerificationStatus == "SUCCESS", nil
}

// ParseWebhookEvent decodes and normalizes a PayPal webhook. Payloads missing
// the event or resource discriminants are rejected.
func (g *Gateway) ParseWebhookEvent(payload []byte) (*gateway.WebhookEvent, error) {
	var wp webhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return nil, payerr.GatewayAPI(Name, "invalid webhook payload: not an object", string(payload))
	}
	if wp.ID == "" {
		return nil, payerr.GatewayAPI(Name, "invalid webhook payload: missing id", string(payload))
	}
	if wp.EventType == "" {
		return nil, payerr.GatewayAPI(Name, "invalid webhook payload: missing event_type", string(payload))
	}
	if len(wp.Resource) == 0 || string(wp.Resource) == "null" {
		return nil, payerr.GatewayAPI(Name, "invalid webhook payload: missing resource", string(payload))
	}
	var res webhookResource
	if err := json.Unmarshal(wp.Resource, &res); err != nil || res.ID == "" {
		return nil, payerr.GatewayAPI(Name, "invalid webhook payload: missing resource.id", string(payload))
	}

	amount := 0.0
	currency := "USD"
	if res.Amount != nil {
		amount = gateway.ParseDecimalAmount(res.Amount.Value)
		currency = res.Amount.CurrencyCode
	}

	paymentID := res.CustomID
	if paymentID == "" && len(res.PurchaseUnits) > 0 {
		paymentID = res.PurchaseUnits[0].CustomID
	}

	captureID := res.SupplementaryData.RelatedIDs.CaptureID
	if captureID == "" && len(res.PurchaseUnits) > 0 && len(res.PurchaseUnits[0].Payments.Captures) > 0 {
		captureID = res.PurchaseUnits[0].Payments.Captures[0].ID
	}

	ev := &gateway.WebhookEvent{
		ID:               wp.ID,
		Type:             wp.EventType,
		Gateway:          Name,
		PaymentID:        paymentID,
		GatewayPaymentID: defaultString(captureID, res.ID),
		Status:           mapResourceStatus(res.Status),
		Amount:           amount,
		Currency:         currency,
		Raw:              json.RawMessage(append([]byte(nil), payload...)),
	}
	if t, err := time.Parse(time.RFC3339, wp.CreateTime); err == nil {
		ev.Timestamp = t
	}
	return ev, nil
}

func lowerHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[strings.ToLower(k)] = v
	}
	return out
}
