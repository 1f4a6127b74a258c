// Package tabby implements the Tabby BNPL gateway adapter against API v2.
// Tabby is redirect-only: payments start as checkout sessions, are authorized
// on the hosted page, then captured, and only closed payments can be
// refunded. Money travels as decimal strings on the wire.
package tabby

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
const Name = "tabby"

const defaultBaseURL = "https://api.tabby.ai"

// Config holds Tabby credentials.
type Config struct {
	SecretKey    string
	MerchantCode string
	// WebhookAuthHeader is the static header value registered with the
	// webhook. Empty disables webhook verification.
	WebhookAuthHeader string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// Gateway is the Tabby adapter.
type Gateway struct {
	cfg     Config
	rt      gateway.Runtime
	http    *httpclient.Client
	logger  *zap.Logger
	baseURL string
}

// New creates a Tabby adapter.
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

// CreatePayment creates a checkout session from the unified parameters with
// a minimal single-item cart. Use CreateCheckoutSession for full cart data.
func (g *Gateway) CreatePayment(ctx context.Context, params gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCreatePayment, params,
		func(ctx context.Context, p gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
			meta := func(key, fallback string) string {
				if v, ok := p.Metadata[key].(string); ok && v != "" {
					return v
				}
				return fallback
			}

			reference := p.OrderID
			if reference == "" {
				reference = p.IdempotencyKey
			}
			if reference == "" {
				reference = "order_" + gateway.NewReference()
			}

			amount := gateway.DecimalAmount(p.Amount)
			checkout := CheckoutParams{
				Amount:   amount,
				Currency: p.Currency,
				Buyer: Buyer{
					Name:  defaultString(p.CustomerName, meta("buyerName", "Customer")),
					Email: defaultString(p.CustomerEmail, meta("buyerEmail", "customer@example.com")),
					Phone: defaultString(p.CustomerPhone, meta("buyerPhone", "500000000")),
				},
				Order: Order{
					ReferenceID: reference,
					Items: []OrderItem{{
						ReferenceID: "item_1",
						Title:       defaultString(p.Description, "Payment"),
						Quantity:    1,
						UnitPrice:   amount,
					}},
				},
				MerchantURLs: MerchantURLs{
					Success: p.CallbackURL,
					Cancel:  defaultString(p.CancelURL, p.CallbackURL),
					Failure: p.CallbackURL,
				},
				Lang:           "en",
				Description:    p.Description,
				Meta:           p.Metadata,
				IdempotencyKey: p.IdempotencyKey,
			}

			session, err := g.CreateCheckoutSession(ctx, checkout)
			if err != nil {
				return nil, err
			}

			redirect := ""
			if products := session.Configuration.AvailableProducts.Installments; len(products) > 0 {
				redirect = products[0].WebURL
			}
			return &gateway.PaymentResult{
				Success:     session.Status == "created",
				PaymentID:   session.Payment.ID,
				Status:      mapStatus(session.Payment.Status),
				Amount:      gateway.ParseDecimalAmount(session.Payment.Amount),
				Currency:    session.Payment.Currency,
				RedirectURL: redirect,
				Raw:         session,
			}, nil
		})
}

// CreateCheckoutSession creates a checkout session from the full BNPL cart
// shape.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutResponse, error) {
	if err := gateway.ValidateParams(params); err != nil {
		return nil, err
	}
	body := map[string]any{
		"payment": map[string]any{
			"amount":           params.Amount,
			"currency":         params.Currency,
			"description":      params.Description,
			"buyer":            params.Buyer,
			"shipping_address": params.ShippingAddress,
			"order":            params.Order,
			"meta":             params.Meta,
		},
		"lang":          defaultString(params.Lang, "en"),
		"merchant_code": g.cfg.MerchantCode,
		"merchant_urls": params.MerchantURLs,
	}
	var session CheckoutResponse
	if err := g.do(ctx, http.MethodPost, "/api/v2/checkout", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CheckEligibility pre-scores a customer before showing the Tabby option. A
// rejected session is not an error: the result carries the rejection reason.
func (g *Gateway) CheckEligibility(ctx context.Context, params CheckoutParams) (*EligibilityResult, error) {
	session, err := g.CreateCheckoutSession(ctx, params)
	if err != nil {
		reason := "unknown_error"
		if pe, ok := payerr.As(err); ok {
			reason = pe.Message
		}
		return &EligibilityResult{Eligible: false, RejectionReason: reason}, nil
	}
	if session.Status == "created" {
		return &EligibilityResult{Eligible: true, SessionID: session.ID}, nil
	}

	reason := "not_available"
	if inst := session.Configuration.Products.Installments; inst != nil && inst.RejectionReason != "" {
		reason = inst.RejectionReason
	}
	return &EligibilityResult{
		Eligible:        false,
		RejectionReason: reason,
		SessionID:       session.ID,
	}, nil
}

// CapturePayment captures an authorized payment, partially when Amount is
// set. Tabby requires an explicit capture after authorization.
func (g *Gateway) CapturePayment(ctx context.Context, params gateway.CaptureParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCapturePayment, params,
		func(ctx context.Context, p gateway.CaptureParams) (*gateway.PaymentResult, error) {
			body := map[string]any{}
			if p.Amount > 0 {
				body["amount"] = gateway.DecimalAmount(p.Amount)
			}
			var payment PaymentResponse
			if err := g.do(ctx, http.MethodPost, "/api/v2/payments/"+p.PaymentID+"/captures", body, &payment); err != nil {
				return nil, err
			}
			return &gateway.PaymentResult{
				Success:   true,
				PaymentID: payment.ID,
				Status:    mapStatus(payment.Status),
				Amount:    gateway.ParseDecimalAmount(payment.Amount),
				Currency:  payment.Currency,
				Raw:       payment,
			}, nil
		})
}

// RefundPayment refunds a closed payment, partially when Amount is set.
func (g *Gateway) RefundPayment(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpRefundPayment, params,
		func(ctx context.Context, p gateway.RefundParams) (*gateway.RefundResult, error) {
			body := map[string]any{}
			if p.Amount > 0 {
				body["amount"] = gateway.DecimalAmount(p.Amount)
			}
			if p.Reason != "" {
				body["reason"] = p.Reason
			}
			var payment PaymentResponse
			if err := g.do(ctx, http.MethodPost, "/api/v2/payments/"+p.PaymentID+"/refunds", body, &payment); err != nil {
				return nil, err
			}

			refundID := payment.ID
			if n := len(payment.Refunds); n > 0 {
				refundID = payment.Refunds[n-1].ID
			}
			return &gateway.RefundResult{
				Success:       true,
				RefundID:      refundID,
				PaymentID:     payment.ID,
				Status:        gateway.RefundCompleted,
				Amount:        p.Amount,
				Currency:      payment.Currency,
				TotalRefunded: sumAmounts(payment.Refunds),
				Raw:           payment,
			}, nil
		})
}

// VoidPayment closes a payment, cancelling the uncaptured remainder.
func (g *Gateway) VoidPayment(ctx context.Context, params gateway.VoidParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpVoidPayment, params,
		func(ctx context.Context, p gateway.VoidParams) (*gateway.PaymentResult, error) {
			var payment PaymentResponse
			if err := g.do(ctx, http.MethodPost, "/api/v2/payments/"+p.PaymentID+"/close", nil, &payment); err != nil {
				return nil, err
			}
			return &gateway.PaymentResult{
				Success:   true,
				PaymentID: payment.ID,
				Status:    mapStatus(payment.Status),
				Amount:    gateway.ParseDecimalAmount(payment.Amount),
				Currency:  payment.Currency,
				Raw:       payment,
			}, nil
		})
}

// GetPayment retrieves a payment by id.
func (g *Gateway) GetPayment(ctx context.Context, params gateway.GetPaymentParams) (*gateway.PaymentResult, error) {
	if err := gateway.ValidateParams(params); err != nil {
		return nil, err
	}
	payment, err := g.GetPaymentDetails(ctx, params.PaymentID)
	if err != nil {
		return nil, err
	}
	return &gateway.PaymentResult{
		Success:   true,
		PaymentID: payment.ID,
		Status:    mapStatus(payment.Status),
		Amount:    gateway.ParseDecimalAmount(payment.Amount),
		Currency:  payment.Currency,
		Raw:       payment,
	}, nil
}

// GetPaymentDetails retrieves the full payment object including captures and
// refunds.
func (g *Gateway) GetPaymentDetails(ctx context.Context, paymentID string) (*PaymentResponse, error) {
	var payment PaymentResponse
	if err := g.do(ctx, http.MethodGet, "/api/v2/payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentStatus fetches just the normalized status of a payment.
func (g *Gateway) GetPaymentStatus(ctx context.Context, paymentID string) (gateway.Status, error) {
	payment, err := g.GetPaymentDetails(ctx, paymentID)
	if err != nil {
		return "", err
	}
	return mapStatus(payment.Status), nil
}

func (g *Gateway) do(ctx context.Context, method, path string, body, out any) error {
	req := g.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, g.baseURL+path)
	if err != nil {
		return payerr.Network(Name, err)
	}

	raw := resp.Body()
	if resp.IsError() {
		var er errorResponse
		_ = json.Unmarshal(raw, &er)
		msg := er.Err
		if msg == "" {
			msg = "Tabby API error"
		}
		return payerr.GatewayAPI(Name, msg, &er)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return payerr.GatewayAPI(Name, "unexpected response body", string(raw))
		}
	}
	return nil
}

// mapError refines provider API errors using Tabby's errorType field.
func (g *Gateway) mapError(err error) error {
	pe, ok := payerr.As(err)
	if !ok || pe.Code != payerr.CodeGatewayAPIError || pe.Gateway != Name {
		return err
	}
	er, ok := pe.Raw.(*errorResponse)
	if !ok {
		return err
	}
	switch er.ErrorType {
	case "unauthorized":
		return payerr.Authentication(Name, pe.Message, er)
	case "invalid_request_error", "bad_data":
		return payerr.InvalidRequest(Name, pe.Message, nil)
	}
	return err
}

// mapStatus maps an uppercase Tabby payment status onto the normalized set.
// Closed means fully captured. Unknown states fall back to pending.
func mapStatus(s string) gateway.Status {
	switch s {
	case "CREATED":
		return gateway.StatusPending
	case "AUTHORIZED":
		return gateway.StatusAuthorized
	case "CLOSED":
		return gateway.StatusPaid
	case "REJECTED":
		return gateway.StatusFailed
	case "EXPIRED":
		return gateway.StatusCancelled
	}
	return gateway.StatusPending
}

func sumAmounts(txs []Transaction) float64 {
	total := 0.0
	for _, tx := range txs {
		total += gateway.ParseDecimalAmount(tx.Amount)
	}
	return total
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
