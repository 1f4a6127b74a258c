// Package stripe implements the Stripe payment gateway adapter on top of the
// PaymentIntents and Checkout Sessions APIs. Requests are form-encoded with
// Stripe's bracket convention and authenticated with the secret key.
package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"paymux/gateway"
	"paymux/hooks"
	"paymux/internal/httpclient"
	"paymux/payerr"
)

// Name is the registry name of this adapter.
const Name = "stripe"

const defaultBaseURL = "https://api.stripe.com/v1"

// Config holds Stripe credentials.
type Config struct {
	SecretKey string
	// WebhookSecret signs webhook payloads (whsec_...). Empty disables
	// verification (accepted with a logged warning).
	WebhookSecret string
	// APIVersion pins the Stripe-Version header when set.
	APIVersion string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// Gateway is the Stripe adapter.
type Gateway struct {
	cfg     Config
	rt      gateway.Runtime
	http    *httpclient.Client
	logger  *zap.Logger
	baseURL string
}

// New creates a Stripe adapter.
func New(cfg Config, mgr *hooks.Manager, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := defaultBaseURL
	if cfg.BaseURL != "" {
		base = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	g := &Gateway{
		cfg:     cfg,
		http:    httpclient.New().WithBearerToken(cfg.SecretKey),
		logger:  logger,
		baseURL: base,
	}
	g.rt = gateway.NewRuntime(Name, mgr, g.mapError, logger)
	return g
}

// Name implements gateway.Gateway.
func (g *Gateway) Name() string { return Name }

// paymentIntent mirrors the fields of a Stripe PaymentIntent this adapter
// reads. Amounts are in minor units.
type paymentIntent struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	ClientSecret   string            `json:"client_secret"`
	Metadata       map[string]string `json:"metadata"`
	LatestCharge   string            `json:"latest_charge"`
}

type refundResponse struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentIntent string `json:"payment_intent"`
	Status        string `json:"status"`
}

type checkoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Message     string `json:"message"`
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Param       string `json:"param"`
	} `json:"error"`
}

// CreatePayment creates a PaymentIntent. With PaymentMethodID set the intent
// is confirmed immediately; otherwise the caller completes it client-side
// using the returned client secret.
func (g *Gateway) CreatePayment(ctx context.Context, params gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCreatePayment, params,
		func(ctx context.Context, p gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
			captureMethod := "automatic"
			if !p.ShouldCapture() {
				captureMethod = "manual"
			}
			body := map[string]any{
				"amount":                    gateway.ToMinorUnits(p.Amount),
				"currency":                  strings.ToLower(p.Currency),
				"automatic_payment_methods": map[string]any{"enabled": true},
				"description":               p.Description,
				"metadata":                  p.Metadata,
				"capture_method":            captureMethod,
			}
			if p.Description == "" {
				delete(body, "description")
			}
			if p.CustomerID != "" {
				body["customer"] = p.CustomerID
			}
			if p.PaymentMethodID != "" {
				body["payment_method"] = p.PaymentMethodID
				body["confirm"] = true
				if p.CallbackURL != "" {
					body["return_url"] = p.CallbackURL
				}
			}
			if p.SetupFutureUsage != "" {
				body["setup_future_usage"] = p.SetupFutureUsage
			}

			var pi paymentIntent
			raw, err := g.do(ctx, http.MethodPost, "/payment_intents", body, p.IdempotencyKey, &pi)
			if err != nil {
				return nil, err
			}
			return g.intentResult(&pi, pi.Amount, raw), nil
		})
}

// CapturePayment captures a manually-captured PaymentIntent, partially when
// Amount is set.
func (g *Gateway) CapturePayment(ctx context.Context, params gateway.CaptureParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCapturePayment, params,
		func(ctx context.Context, p gateway.CaptureParams) (*gateway.PaymentResult, error) {
			body := map[string]any{}
			if p.Amount > 0 {
				body["amount_to_capture"] = gateway.ToMinorUnits(p.Amount)
			}
			var pi paymentIntent
			raw, err := g.do(ctx, http.MethodPost, "/payment_intents/"+p.PaymentID+"/capture", body, p.IdempotencyKey, &pi)
			if err != nil {
				return nil, err
			}
			return g.intentResult(&pi, pi.AmountReceived, raw), nil
		})
}

// RefundPayment refunds a PaymentIntent through the Refunds API. A free-form
// reason travels in refund metadata since Stripe's reason field is an enum.
func (g *Gateway) RefundPayment(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpRefundPayment, params,
		func(ctx context.Context, p gateway.RefundParams) (*gateway.RefundResult, error) {
			body := map[string]any{
				"payment_intent": p.PaymentID,
			}
			if p.Amount > 0 {
				body["amount"] = gateway.ToMinorUnits(p.Amount)
			}
			if p.Reason != "" {
				body["metadata"] = map[string]any{"reason": p.Reason}
			}

			var r refundResponse
			raw, err := g.do(ctx, http.MethodPost, "/refunds", body, p.IdempotencyKey, &r)
			if err != nil {
				return nil, err
			}

			status := gateway.RefundPending
			if r.Status == "succeeded" {
				status = gateway.RefundCompleted
			}
			return &gateway.RefundResult{
				Success:       true,
				RefundID:      r.ID,
				PaymentID:     r.PaymentIntent,
				Status:        status,
				Amount:        gateway.FromMinorUnits(r.Amount),
				Currency:      r.Currency,
				TotalRefunded: gateway.FromMinorUnits(r.Amount),
				Raw:           raw,
			}, nil
		})
}

// VoidPayment cancels a PaymentIntent before capture.
func (g *Gateway) VoidPayment(ctx context.Context, params gateway.VoidParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpVoidPayment, params,
		func(ctx context.Context, p gateway.VoidParams) (*gateway.PaymentResult, error) {
			var pi paymentIntent
			raw, err := g.do(ctx, http.MethodPost, "/payment_intents/"+p.PaymentID+"/cancel", nil, "", &pi)
			if err != nil {
				return nil, err
			}
			return g.intentResult(&pi, pi.Amount, raw), nil
		})
}

// GetPayment retrieves a PaymentIntent by id.
func (g *Gateway) GetPayment(ctx context.Context, params gateway.GetPaymentParams) (*gateway.PaymentResult, error) {
	if err := gateway.ValidateParams(params); err != nil {
		return nil, err
	}
	var pi paymentIntent
	raw, err := g.do(ctx, http.MethodGet, "/payment_intents/"+params.PaymentID, nil, "", &pi)
	if err != nil {
		return nil, err
	}
	return g.intentResult(&pi, pi.Amount, raw), nil
}

// GetPaymentStatus fetches just the normalized status of a payment.
func (g *Gateway) GetPaymentStatus(ctx context.Context, paymentID string) (gateway.Status, error) {
	res, err := g.GetPayment(ctx, gateway.GetPaymentParams{PaymentID: paymentID})
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

// CreateCheckoutSession creates a hosted Checkout page. Without explicit line
// items a single line is synthesized from the amount and currency.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, params gateway.CheckoutSessionParams) (*gateway.CheckoutSessionResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCreateCheckoutSession, params,
		func(ctx context.Context, p gateway.CheckoutSessionParams) (*gateway.CheckoutSessionResult, error) {
			mode := p.Mode
			if mode == "" {
				mode = "payment"
			}
			body := map[string]any{
				"mode":        mode,
				"success_url": p.SuccessURL,
				"cancel_url":  p.CancelURL,
				"metadata":    p.Metadata,
			}
			if len(p.LineItems) > 0 {
				body["line_items"] = lineItems(p.LineItems)
			} else if mode != "setup" {
				body["line_items"] = []any{map[string]any{
					"price_data": map[string]any{
						"currency":     strings.ToLower(p.Currency),
						"product_data": map[string]any{"name": "Payment"},
						"unit_amount":  gateway.ToMinorUnits(p.Amount),
					},
					"quantity": int64(1),
				}}
			}
			if p.CustomerID != "" {
				body["customer"] = p.CustomerID
			}
			if p.CustomerEmail != "" {
				body["customer_email"] = p.CustomerEmail
			}

			var session checkoutSession
			raw, err := g.do(ctx, http.MethodPost, "/checkout/sessions", body, p.IdempotencyKey, &session)
			if err != nil {
				return nil, err
			}
			return &gateway.CheckoutSessionResult{
				Success:   true,
				SessionID: session.ID,
				URL:       session.URL,
				Status:    gateway.StatusPending,
				Raw:       raw,
			}, nil
		})
}

func lineItems(items []gateway.LineItem) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		m := map[string]any{"quantity": item.Quantity}
		if item.Price != "" {
			m["price"] = item.Price
		}
		if pd := item.PriceData; pd != nil {
			product := map[string]any{"name": pd.ProductName}
			if pd.Description != "" {
				product["description"] = pd.Description
			}
			if len(pd.Images) > 0 {
				product["images"] = pd.Images
			}
			m["price_data"] = map[string]any{
				"currency":     strings.ToLower(pd.Currency),
				"product_data": product,
				"unit_amount":  pd.UnitAmount,
			}
		}
		out = append(out, m)
	}
	return out
}

func (g *Gateway) do(ctx context.Context, method, path string, body map[string]any, idempotencyKey string, out any) (json.RawMessage, error) {
	req := g.http.R().SetContext(ctx)
	if g.cfg.APIVersion != "" {
		req.SetHeader("Stripe-Version", g.cfg.APIVersion)
	}
	if idempotencyKey != "" {
		req.SetHeader("Idempotency-Key", idempotencyKey)
	}
	if body != nil && method != http.MethodGet {
		req.SetHeader("Content-Type", "application/x-www-form-urlencoded")
		req.SetBody(encodeForm(body).Encode())
	}

	resp, err := req.Execute(method, g.baseURL+path)
	if err != nil {
		return nil, payerr.Network(Name, err)
	}

	raw := json.RawMessage(append([]byte(nil), resp.Body()...))
	if resp.IsError() {
		var er errorResponse
		_ = json.Unmarshal(raw, &er)
		msg := er.Error.Message
		if msg == "" {
			msg = "Stripe API error"
		}
		return nil, payerr.GatewayAPI(Name, msg, &er)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, payerr.GatewayAPI(Name, "unexpected response body", string(raw))
		}
	}
	return raw, nil
}

func (g *Gateway) intentResult(pi *paymentIntent, amount int64, raw json.RawMessage) *gateway.PaymentResult {
	return &gateway.PaymentResult{
		Success:      true,
		PaymentID:    pi.ID,
		Status:       mapStatus(pi.Status),
		Amount:       gateway.FromMinorUnits(amount),
		Currency:     pi.Currency,
		ClientSecret: pi.ClientSecret,
		Raw:          raw,
	}
}

// mapError refines provider API errors using Stripe's error code, with the
// decline code splitting card declines from insufficient funds.
func (g *Gateway) mapError(err error) error {
	pe, ok := payerr.As(err)
	if !ok || pe.Code != payerr.CodeGatewayAPIError || pe.Gateway != Name {
		return err
	}
	er, ok := pe.Raw.(*errorResponse)
	if !ok {
		return err
	}
	switch er.Error.Code {
	case "card_declined":
		if er.Error.DeclineCode == "insufficient_funds" {
			return payerr.InsufficientFunds(Name, pe.Message, er)
		}
		return payerr.CardDeclined(Name, pe.Message, er)
	case "incorrect_cvc", "incorrect_number", "expired_card":
		return payerr.CardDeclined(Name, pe.Message, er)
	case "authentication_required":
		return payerr.Authentication(Name, pe.Message, er)
	case "rate_limit":
		return payerr.RateLimit(Name, pe.Message, er)
	case "parameter_invalid_integer", "parameter_missing":
		return payerr.InvalidRequest(Name, pe.Message, nil)
	}
	return err
}

// mapStatus maps a PaymentIntent status onto the normalized set. Unknown
// states fall back to pending.
func mapStatus(s string) gateway.Status {
	switch s {
	case "requires_payment_method", "requires_confirmation", "requires_action":
		return gateway.StatusPending
	case "processing":
		return gateway.StatusProcessing
	case "requires_capture":
		return gateway.StatusAuthorized
	case "succeeded":
		return gateway.StatusPaid
	case "canceled":
		return gateway.StatusCancelled
	}
	return gateway.StatusPending
}
