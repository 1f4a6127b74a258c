// Package moyasar implements the Moyasar payment gateway adapter.
// Moyasar authenticates with HTTP Basic over the secret key and tracks
// refunds and captures on the payment object itself.
package moyasar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"paymux/gateway"
	"paymux/hooks"
	"paymux/internal/httpclient"
	"paymux/payerr"
)

// Name is the registry name of this adapter.
const Name = "moyasar"

const defaultBaseURL = "https://api.moyasar.com/v1"

// Config holds Moyasar credentials.
type Config struct {
	SecretKey      string
	PublishableKey string
	// WebhookSecret is the dashboard shared secret. Empty disables webhook
	// verification (accepted with a logged warning).
	WebhookSecret string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// Gateway is the Moyasar adapter.
type Gateway struct {
	cfg     Config
	rt      gateway.Runtime
	http    *httpclient.Client
	logger  *zap.Logger
	baseURL string
}

// New creates a Moyasar adapter.
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
		http:    httpclient.New().WithBasicAuth(cfg.SecretKey, ""),
		logger:  logger,
		baseURL: base,
	}
	g.rt = gateway.NewRuntime(Name, mgr, g.mapError, logger)
	return g
}

// Name implements gateway.Gateway.
func (g *Gateway) Name() string { return Name }

// paymentResponse mirrors the Moyasar payment object. Amounts are halalas.
type paymentResponse struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	Amount     int64          `json:"amount"`
	Fee        int64          `json:"fee"`
	Currency   string         `json:"currency"`
	Refunded   int64          `json:"refunded"`
	Captured   int64          `json:"captured"`
	RefundedAt string         `json:"refunded_at"`
	CreatedAt  string         `json:"created_at"`
	Metadata   map[string]any `json:"metadata"`
	Source     struct {
		Type           string `json:"type"`
		TransactionURL string `json:"transaction_url"`
		OTPURL         string `json:"otp_url"`
	} `json:"source"`
}

type errorResponse struct {
	Type    string              `json:"type"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// CreatePayment creates a payment from a native source or a stored token.
func (g *Gateway) CreatePayment(ctx context.Context, params gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCreatePayment, params,
		func(ctx context.Context, p gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
			src, err := g.sourcePayload(p)
			if err != nil {
				return nil, err
			}

			body := map[string]any{
				"amount":       gateway.ToMinorUnits(p.Amount),
				"currency":     p.Currency,
				"callback_url": p.CallbackURL,
				"description":  defaultString(p.Description, "Payment"),
				"source":       src,
				"metadata":     p.Metadata,
			}
			// given_id becomes the payment id, which makes retries idempotent.
			if p.IdempotencyKey != "" {
				body["given_id"] = p.IdempotencyKey
			}
			if p.ApplyCoupon {
				body["apply_coupon"] = true
			}

			payment, raw, err := g.do(ctx, http.MethodPost, "/payments", body, "failed to create payment")
			if err != nil {
				return nil, err
			}
			return g.paymentResult(payment, raw), nil
		})
}

// CapturePayment captures an authorized payment, partially when Amount is set.
func (g *Gateway) CapturePayment(ctx context.Context, params gateway.CaptureParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCapturePayment, params,
		func(ctx context.Context, p gateway.CaptureParams) (*gateway.PaymentResult, error) {
			body := map[string]any{}
			if p.Amount > 0 {
				body["amount"] = gateway.ToMinorUnits(p.Amount)
			}
			payment, raw, err := g.do(ctx, http.MethodPost, "/payments/"+p.PaymentID+"/capture", body, "failed to capture payment")
			if err != nil {
				return nil, err
			}
			return g.paymentResult(payment, raw), nil
		})
}

// RefundPayment refunds a payment. Moyasar tracks the refund on the payment
// object; there is no separate refund entity.
func (g *Gateway) RefundPayment(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpRefundPayment, params,
		func(ctx context.Context, p gateway.RefundParams) (*gateway.RefundResult, error) {
			body := map[string]any{}
			if p.Amount > 0 {
				body["amount"] = gateway.ToMinorUnits(p.Amount)
			}
			payment, raw, err := g.do(ctx, http.MethodPost, "/payments/"+p.PaymentID+"/refund", body, "failed to refund payment")
			if err != nil {
				return nil, err
			}

			status := gateway.RefundPending
			if payment.Status == "refunded" {
				status = gateway.RefundCompleted
			}
			res := &gateway.RefundResult{
				Success:       true,
				RefundID:      payment.ID,
				PaymentID:     payment.ID,
				Status:        status,
				Amount:        p.Amount,
				Currency:      payment.Currency,
				TotalRefunded: gateway.FromMinorUnits(payment.Refunded),
				Raw:           raw,
			}
			if t, err := time.Parse(time.RFC3339, payment.RefundedAt); err == nil {
				res.RefundedAt = &t
			}
			return res, nil
		})
}

// VoidPayment voids an authorized, uncaptured payment.
func (g *Gateway) VoidPayment(ctx context.Context, params gateway.VoidParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpVoidPayment, params,
		func(ctx context.Context, p gateway.VoidParams) (*gateway.PaymentResult, error) {
			payment, raw, err := g.do(ctx, http.MethodPost, "/payments/"+p.PaymentID+"/void", nil, "failed to void payment")
			if err != nil {
				return nil, err
			}
			return g.paymentResult(payment, raw), nil
		})
}

// GetPayment fetches a payment by id.
func (g *Gateway) GetPayment(ctx context.Context, params gateway.GetPaymentParams) (*gateway.PaymentResult, error) {
	if err := gateway.ValidateParams(params); err != nil {
		return nil, err
	}
	payment, raw, err := g.do(ctx, http.MethodGet, "/payments/"+params.PaymentID, nil, "failed to get payment")
	if err != nil {
		return nil, err
	}
	return g.paymentResult(payment, raw), nil
}

// GetPaymentStatus fetches just the normalized status of a payment.
func (g *Gateway) GetPaymentStatus(ctx context.Context, paymentID string) (gateway.Status, error) {
	res, err := g.GetPayment(ctx, gateway.GetPaymentParams{PaymentID: paymentID})
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

func (g *Gateway) sourcePayload(p gateway.CreatePaymentParams) (map[string]any, error) {
	if p.Source != nil {
		src, ok := p.Source.(Source)
		if !ok {
			return nil, payerr.GatewayAPI(Name, fmt.Sprintf("unsupported payment source %T", p.Source), nil)
		}
		return src.payload(), nil
	}
	if p.TokenID != "" {
		return map[string]any{"type": "token", "token": p.TokenID}, nil
	}
	return nil, payerr.GatewayAPI(Name, "either a native source or a token id is required", nil)
}

func (g *Gateway) do(ctx context.Context, method, path string, body any, fallback string) (*paymentResponse, json.RawMessage, error) {
	req := g.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, g.baseURL+path)
	if err != nil {
		return nil, nil, payerr.Network(Name, err)
	}

	raw := json.RawMessage(append([]byte(nil), resp.Body()...))
	if resp.IsError() {
		return nil, nil, g.apiError(raw, fallback)
	}

	var payment paymentResponse
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, nil, payerr.GatewayAPI(Name, "unexpected response body", string(raw))
	}
	return &payment, raw, nil
}

func (g *Gateway) apiError(raw json.RawMessage, fallback string) error {
	var er errorResponse
	_ = json.Unmarshal(raw, &er)

	msg := defaultString(er.Message, fallback)
	if len(er.Errors) > 0 {
		details := make([]string, 0, len(er.Errors))
		for field, msgs := range er.Errors {
			details = append(details, field+": "+strings.Join(msgs, ", "))
		}
		msg = msg + " - " + strings.Join(details, "; ")
	}
	return payerr.GatewayAPI(Name, msg, &er)
}

// mapError refines provider API errors using Moyasar's error type field.
func (g *Gateway) mapError(err error) error {
	pe, ok := payerr.As(err)
	if !ok || pe.Code != payerr.CodeGatewayAPIError || pe.Gateway != Name {
		return err
	}
	er, ok := pe.Raw.(*errorResponse)
	if !ok {
		return err
	}
	switch er.Type {
	case "invalid_request_error":
		return payerr.InvalidRequest(Name, pe.Message, nil)
	case "authentication_error", "3ds_auth_error":
		return payerr.Authentication(Name, pe.Message, er)
	case "rate_limit_error":
		return payerr.RateLimit(Name, pe.Message, er)
	}
	return err
}

func (g *Gateway) paymentResult(p *paymentResponse, raw json.RawMessage) *gateway.PaymentResult {
	// STC Pay redirects to an OTP page instead of a 3DS challenge.
	redirect := p.Source.TransactionURL
	if redirect == "" {
		redirect = p.Source.OTPURL
	}
	return &gateway.PaymentResult{
		Success:     true,
		PaymentID:   p.ID,
		Status:      mapStatus(p.Status),
		Amount:      gateway.FromMinorUnits(p.Amount),
		Currency:    p.Currency,
		RedirectURL: redirect,
		Raw:         raw,
	}
}

// mapStatus maps a Moyasar payment status onto the normalized set. Unknown
// states fall back to pending.
func mapStatus(s string) gateway.Status {
	switch s {
	case "initiated", "pending":
		return gateway.StatusPending
	case "authorized":
		return gateway.StatusAuthorized
	case "verified":
		// Zero-amount card verification behaves like an authorization.
		return gateway.StatusAuthorized
	case "captured", "paid":
		return gateway.StatusPaid
	case "failed":
		return gateway.StatusFailed
	case "refunded":
		return gateway.StatusRefunded
	case "voided":
		return gateway.StatusCancelled
	}
	return gateway.StatusPending
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
