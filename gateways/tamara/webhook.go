package tamara

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"paymux/gateway"
	"paymux/payerr"
)

type webhookPayload struct {
	OrderID          string          `json:"order_id"`
	OrderReferenceID string          `json:"order_reference_id"`
	EventType        string          `json:"event_type"`
	Data             json.RawMessage `json:"data"`
}

type webhookData struct {
	CapturedAmount *Amount `json:"captured_amount"`
	RefundedAmount *Amount `json:"refunded_amount"`
	CanceledAmount *Amount `json:"canceled_amount"`
}

// VerifyWebhook is the synchronous check. It validates the JWT structure and
// matches its order_id claim against the payload without verifying the
// signature; VerifyWebhookAsync does the cryptographic check. With no
// notification token configured the webhook is accepted and a warning is
// logged.
func (g *Gateway) VerifyWebhook(payload []byte, signature string, headers map[string]string) bool {
	if g.cfg.NotificationToken == "" {
		g.logger.Warn("no notification token configured, accepting webhook without verification",
			zap.String("gateway", Name))
		return true
	}

	token := webhookToken(signature, headers)
	if token == "" {
		g.logger.Warn("webhook verification failed: missing token", zap.String("gateway", Name))
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		g.logger.Warn("webhook verification failed: invalid JWT structure",
			zap.String("gateway", Name), zap.Error(err))
		return false
	}

	g.logger.Warn("synchronous verification does not check the JWT signature, use VerifyWebhookAsync",
		zap.String("gateway", Name))

	var wp webhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return false
	}
	claimed, _ := claims["order_id"].(string)
	return claimed == wp.OrderID
}

// VerifyWebhookAsync verifies the webhook JWT signature with HS256 over the
// notification token. When the token carries an order_id claim it must match
// the payload.
func (g *Gateway) VerifyWebhookAsync(_ context.Context, payload []byte, signature string, headers map[string]string) (bool, error) {
	if g.cfg.NotificationToken == "" {
		g.logger.Warn("no notification token configured, accepting webhook without verification",
			zap.String("gateway", Name))
		return true, nil
	}

	token := webhookToken(signature, headers)
	if token == "" {
		g.logger.Warn("webhook verification failed: missing token", zap.String("gateway", Name))
		return false, nil
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(g.cfg.NotificationToken), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		g.logger.Warn("webhook verification failed", zap.String("gateway", Name), zap.Error(err))
		return false, nil
	}

	claimed, _ := claims["order_id"].(string)
	if claimed == "" {
		// Some event types carry no order_id claim.
		return true, nil
	}
	var wp webhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return false, nil
	}
	if claimed != wp.OrderID {
		g.logger.Warn("webhook verification failed: order_id mismatch",
			zap.String("gateway", Name),
			zap.String("jwt_order_id", claimed),
			zap.String("payload_order_id", wp.OrderID))
		return false, nil
	}
	return true, nil
}

// ParseWebhookEvent decodes and normalizes a Tamara notification. Refund
// events default to fully refunded; the webhook alone cannot distinguish
// partial refunds, so consumers needing certainty fetch the order details.
func (g *Gateway) ParseWebhookEvent(payload []byte) (*gateway.WebhookEvent, error) {
	var wp webhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return nil, payerr.InvalidWebhook(Name, "malformed webhook payload")
	}
	if wp.OrderID == "" || wp.EventType == "" {
		return nil, payerr.InvalidWebhook(Name, "webhook payload missing order_id or event_type")
	}

	var status gateway.Status
	switch wp.EventType {
	case "order_approved":
		// Approved still needs an explicit authorise call.
		status = gateway.StatusPending
	case "order_authorised":
		status = gateway.StatusAuthorized
	case "order_captured":
		status = gateway.StatusPaid
	case "order_refunded":
		status = gateway.StatusRefunded
	case "order_canceled":
		status = gateway.StatusCancelled
	case "order_declined", "order_expired":
		status = gateway.StatusFailed
	default:
		status = gateway.StatusPending
	}

	amount := 0.0
	currency := "SAR"
	var data webhookData
	if len(wp.Data) > 0 && json.Unmarshal(wp.Data, &data) == nil {
		switch {
		case data.CapturedAmount != nil:
			amount, currency = data.CapturedAmount.Amount, data.CapturedAmount.Currency
		case data.RefundedAmount != nil:
			amount, currency = data.RefundedAmount.Amount, data.RefundedAmount.Currency
		case data.CanceledAmount != nil:
			amount, currency = data.CanceledAmount.Amount, data.CanceledAmount.Currency
		}
	}

	return &gateway.WebhookEvent{
		ID:               wp.OrderID,
		Type:             wp.EventType,
		Gateway:          Name,
		PaymentID:        wp.OrderReferenceID,
		GatewayPaymentID: wp.OrderID,
		Status:           status,
		Amount:           amount,
		Currency:         currency,
		Timestamp:        time.Now(),
		Raw:              json.RawMessage(append([]byte(nil), payload...)),
	}, nil
}

// webhookToken extracts the JWT from the signature argument or the
// Authorization header.
func webhookToken(signature string, headers map[string]string) string {
	if signature != "" {
		return signature
	}
	for k, v := range headers {
		if strings.EqualFold(k, "authorization") {
			return strings.TrimPrefix(v, "Bearer ")
		}
	}
	return ""
}
