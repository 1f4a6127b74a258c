// Package handler exposes the webhook endpoint for mounting into an Echo
// server. Each gateway posts to /webhooks/:gateway; the handler verifies,
// parses and returns the normalized event.
package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paymux"
	"paymux/payerr"
)

// WebhookHandler handles incoming gateway webhooks.
type WebhookHandler struct {
	client  *paymux.Client
	logger  *zap.Logger
	deduper EventDeduper
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(client *paymux.Client, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{client: client, logger: logger}
}

// WithDeduper enables duplicate-delivery suppression. Providers retry
// deliveries until acknowledged, so duplicates are answered with 200
// without re-announcing the event.
func (h *WebhookHandler) WithDeduper(d EventDeduper) *WebhookHandler {
	h.deduper = d
	return h
}

// Register mounts the webhook route on the Echo server.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/:gateway", h.Handle)
}

// Handle verifies and parses a webhook for the gateway named in the path.
// Signatures travel in provider-specific headers, which are forwarded as-is;
// Paymob additionally supports an hmac query parameter.
func (h *WebhookHandler) Handle(c echo.Context) error {
	gatewayName := c.Param("gateway")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "failed to read request body",
		})
	}

	headers := map[string]string{}
	for name, values := range c.Request().Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	signature := c.QueryParam("hmac")

	event, err := h.client.HandleWebhook(c.Request().Context(), gatewayName, body, signature, headers)
	if err != nil {
		pe, ok := payerr.As(err)
		if !ok {
			h.logger.Error("webhook handling failed",
				zap.String("gateway", gatewayName), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]any{
				"error": "webhook handling failed",
			})
		}
		h.logger.Warn("webhook rejected",
			zap.String("gateway", gatewayName),
			zap.String("code", pe.Code),
			zap.Error(pe))
		return c.JSON(pe.Status, map[string]any{
			"error": pe.Message,
			"code":  pe.Code,
		})
	}

	if h.deduper != nil {
		dup, derr := h.deduper.Seen(c.Request().Context(), gatewayName, event.ID)
		if derr != nil {
			h.logger.Warn("webhook dedup check failed",
				zap.String("gateway", gatewayName), zap.Error(derr))
		} else if dup {
			h.logger.Info("duplicate webhook delivery",
				zap.String("gateway", gatewayName),
				zap.String("event_id", event.ID))
			return c.JSON(http.StatusOK, map[string]any{
				"received":  true,
				"duplicate": true,
				"event_id":  event.ID,
			})
		}
	}

	h.logger.Info("webhook processed",
		zap.String("gateway", gatewayName),
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("status", string(event.Status)))

	return c.JSON(http.StatusOK, map[string]any{
		"received": true,
		"event_id": event.ID,
		"type":     event.Type,
		"status":   event.Status,
	})
}
