// Package paypal implements the PayPal payment gateway adapter over the REST
// v2 Orders and Payments APIs. It authenticates with cached OAuth2
// client-credentials tokens and retries transient failures with exponential
// backoff.
//
// Id semantics differ per operation: CreatePayment and CapturePayment take
// the order id, RefundPayment takes the capture id and VoidPayment takes the
// authorization id.
package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"paymux/gateway"
	"paymux/hooks"
	"paymux/internal/httpclient"
	"paymux/payerr"
)

// Name is the registry name of this adapter.
const Name = "paypal"

const (
	liveBaseURL    = "https://api-m.paypal.com"
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
)

// Config holds PayPal credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	Sandbox      bool
	// WebhookID enables webhook verification through PayPal's verify API.
	// Empty disables verification (accepted with a logged warning).
	WebhookID string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// Gateway is the PayPal adapter.
type Gateway struct {
	cfg     Config
	rt      gateway.Runtime
	http    *httpclient.Client
	logger  *zap.Logger
	baseURL string

	tokens tokenCache
	flight singleflight.Group
}

// New creates a PayPal adapter.
func New(cfg Config, mgr *hooks.Manager, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := liveBaseURL
	if cfg.Sandbox {
		base = sandboxBaseURL
	}
	if cfg.BaseURL != "" {
		base = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	g := &Gateway{
		cfg:     cfg,
		http:    httpclient.New(),
		logger:  logger,
		baseURL: base,
	}
	g.rt = gateway.NewRuntime(Name, mgr, g.mapError, logger)
	return g
}

// Name implements gateway.Gateway.
func (g *Gateway) Name() string { return Name }

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	APIName       string `json:"name"`
	Links         []link `json:"links"`
	PurchaseUnits []struct {
		ReferenceID string `json:"reference_id"`
		CustomID    string `json:"custom_id"`
		Payments    struct {
			Captures []capture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		CurrencyCode string `json:"currency_code"`
		Value        string `json:"value"`
	} `json:"amount"`
}

// apiErrorBody is the common shape of PayPal error responses.
type apiErrorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
		Field       string `json:"field"`
	} `json:"details"`
}

// CreatePayment creates a CAPTURE-intent order and returns the approval URL.
func (g *Gateway) CreatePayment(ctx context.Context, params gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCreatePayment, params,
		func(ctx context.Context, p gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
			return withRetry(ctx, func() (*gateway.PaymentResult, error) {
				unit := map[string]any{
					"reference_id": p.OrderID,
					"description":  p.Description,
					"amount": map[string]any{
						"currency_code": p.Currency,
						"value":         gateway.DecimalAmount(p.Amount),
					},
				}
				if ref, ok := p.Metadata["paymentId"].(string); ok {
					unit["custom_id"] = ref
				}
				body := map[string]any{
					"intent":         "CAPTURE",
					"purchase_units": []any{unit},
					"application_context": map[string]any{
						"return_url":  defaultString(p.ReturnURL, p.CallbackURL),
						"cancel_url":  defaultString(p.CancelURL, p.CallbackURL),
						"user_action": "PAY_NOW",
					},
				}

				headers := map[string]string{}
				if p.IdempotencyKey != "" {
					headers["PayPal-Request-Id"] = p.IdempotencyKey
				}

				var order orderResponse
				raw, err := g.do(ctx, http.MethodPost, "/v2/checkout/orders", headers, body, &order)
				if err != nil {
					return nil, err
				}

				res := &gateway.PaymentResult{
					Success:   true,
					PaymentID: order.ID,
					Status:    mapStatus(order.Status),
					Raw:       raw,
				}
				for _, l := range order.Links {
					if l.Rel == "approve" {
						res.RedirectURL = l.Href
						break
					}
				}
				return res, nil
			})
		})
}

// CapturePayment captures an approved order. The resulting capture id, needed
// for refunds, is in the raw response; use CaptureID to extract it.
func (g *Gateway) CapturePayment(ctx context.Context, params gateway.CaptureParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCapturePayment, params,
		func(ctx context.Context, p gateway.CaptureParams) (*gateway.PaymentResult, error) {
			return withRetry(ctx, func() (*gateway.PaymentResult, error) {
				var order orderResponse
				raw, err := g.do(ctx, http.MethodPost, "/v2/checkout/orders/"+p.PaymentID+"/capture", nil, nil, &order)
				if err != nil {
					return nil, err
				}

				res := &gateway.PaymentResult{
					Success:   true,
					PaymentID: order.ID,
					Status:    mapStatus(order.Status),
					Raw:       raw,
				}
				if c := firstCapture(&order); c != nil {
					res.Amount = gateway.ParseDecimalAmount(c.Amount.Value)
					res.Currency = c.Amount.CurrencyCode
				}
				return res, nil
			})
		})
}

// RefundPayment refunds a capture. PaymentID must be the capture id. Partial
// refunds require the currency because PayPal takes decimal amounts on the
// wire.
func (g *Gateway) RefundPayment(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpRefundPayment, params,
		func(ctx context.Context, p gateway.RefundParams) (*gateway.RefundResult, error) {
			// Checked before any network traffic, including the token fetch.
			if p.Amount > 0 && p.Currency == "" {
				return nil, payerr.InvalidRequest(Name, "currency is required for partial refunds",
					[]payerr.FieldError{{Field: "Currency", Message: "required when Amount is set"}})
			}
			return withRetry(ctx, func() (*gateway.RefundResult, error) {
				body := map[string]any{}
				if p.Amount > 0 {
					body["amount"] = map[string]any{
						"value":         gateway.DecimalAmount(p.Amount),
						"currency_code": p.Currency,
					}
				}
				if p.Reason != "" {
					body["note_to_payer"] = p.Reason
				}
				var reqBody any
				if len(body) > 0 {
					reqBody = body
				}

				var refund struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				}
				raw, err := g.do(ctx, http.MethodPost, "/v2/payments/captures/"+p.PaymentID+"/refund", nil, reqBody, &refund)
				if err != nil {
					return nil, err
				}

				status := gateway.RefundPending
				if refund.Status == "COMPLETED" {
					status = gateway.RefundCompleted
				}
				return &gateway.RefundResult{
					Success:   true,
					RefundID:  refund.ID,
					PaymentID: p.PaymentID,
					Status:    status,
					Amount:    p.Amount,
					Currency:  p.Currency,
					Raw:       raw,
				}, nil
			})
		})
}

// VoidPayment voids an authorization. PaymentID must be the authorization id
// of an AUTHORIZE-intent order. A 204 response is a successful void.
func (g *Gateway) VoidPayment(ctx context.Context, params gateway.VoidParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpVoidPayment, params,
		func(ctx context.Context, p gateway.VoidParams) (*gateway.PaymentResult, error) {
			return withRetry(ctx, func() (*gateway.PaymentResult, error) {
				token, err := g.accessToken(ctx)
				if err != nil {
					return nil, err
				}
				resp, err := g.http.R().
					SetContext(ctx).
					SetAuthToken(token).
					Post(g.baseURL + "/v2/payments/authorizations/" + p.PaymentID + "/void")
				if err != nil {
					return nil, payerr.Network(Name, err)
				}

				if resp.StatusCode() == http.StatusNoContent {
					return &gateway.PaymentResult{
						Success:   true,
						PaymentID: p.PaymentID,
						Status:    gateway.StatusCancelled,
					}, nil
				}

				raw := json.RawMessage(append([]byte(nil), resp.Body()...))
				if resp.IsError() {
					return nil, g.apiError(raw)
				}
				var order orderResponse
				if err := json.Unmarshal(raw, &order); err != nil {
					return nil, payerr.GatewayAPI(Name, "unexpected response body", string(raw))
				}
				return &gateway.PaymentResult{
					Success:   true,
					PaymentID: defaultString(order.ID, p.PaymentID),
					Status:    mapStatus(defaultString(order.Status, "VOIDED")),
					Raw:       raw,
				}, nil
			})
		})
}

// GetPayment fetches an order by id.
func (g *Gateway) GetPayment(ctx context.Context, params gateway.GetPaymentParams) (*gateway.PaymentResult, error) {
	if err := gateway.ValidateParams(params); err != nil {
		return nil, err
	}
	var order orderResponse
	raw, err := g.do(ctx, http.MethodGet, "/v2/checkout/orders/"+params.PaymentID, nil, nil, &order)
	if err != nil {
		return nil, err
	}
	res := &gateway.PaymentResult{
		Success:   true,
		PaymentID: order.ID,
		Status:    mapStatus(order.Status),
		Raw:       raw,
	}
	if c := firstCapture(&order); c != nil {
		res.Amount = gateway.ParseDecimalAmount(c.Amount.Value)
		res.Currency = c.Amount.CurrencyCode
	}
	return res, nil
}

// GetPaymentStatus fetches just the normalized status of an order.
func (g *Gateway) GetPaymentStatus(ctx context.Context, paymentID string) (gateway.Status, error) {
	res, err := g.GetPayment(ctx, gateway.GetPaymentParams{PaymentID: paymentID})
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

// CaptureID extracts the capture id from a capture or order raw response.
func CaptureID(raw any) string {
	body, ok := raw.(json.RawMessage)
	if !ok {
		return ""
	}
	var order orderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return ""
	}
	if c := firstCapture(&order); c != nil {
		return c.ID
	}
	return ""
}

func firstCapture(order *orderResponse) *capture {
	if len(order.PurchaseUnits) == 0 {
		return nil
	}
	caps := order.PurchaseUnits[0].Payments.Captures
	if len(caps) == 0 {
		return nil
	}
	return &caps[0]
}

// do runs an authenticated JSON request and decodes the response into out.
func (g *Gateway) do(ctx context.Context, method, path string, headers map[string]string, body, out any) (json.RawMessage, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req := g.http.R().SetContext(ctx).SetAuthToken(token)
	for k, v := range headers {
		req.SetHeader(k, v)
	}
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, g.baseURL+path)
	if err != nil {
		return nil, payerr.Network(Name, err)
	}

	raw := json.RawMessage(append([]byte(nil), resp.Body()...))
	if resp.IsError() {
		return nil, g.apiError(raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, payerr.GatewayAPI(Name, "unexpected response body", string(raw))
		}
	}
	return raw, nil
}

func (g *Gateway) apiError(raw json.RawMessage) error {
	var body apiErrorBody
	_ = json.Unmarshal(raw, &body)

	msg := body.Message
	if msg == "" {
		msg = body.Name
	}
	if msg == "" {
		msg = "PayPal API error"
	}
	if len(body.Details) > 0 {
		details := make([]string, 0, len(body.Details))
		for _, d := range body.Details {
			switch {
			case d.Description != "":
				details = append(details, d.Description)
			case d.Issue != "":
				details = append(details, d.Issue)
			default:
				details = append(details, "unknown issue")
			}
		}
		msg = msg + ": " + strings.Join(details, "; ")
	}
	return payerr.GatewayAPI(Name, msg, &body)
}

// mapError refines provider API errors using PayPal's error name and issue
// codes.
func (g *Gateway) mapError(err error) error {
	pe, ok := payerr.As(err)
	if !ok || pe.Code != payerr.CodeGatewayAPIError || pe.Gateway != Name {
		return err
	}
	body, ok := pe.Raw.(*apiErrorBody)
	if !ok {
		return err
	}
	issue := ""
	if len(body.Details) > 0 {
		issue = body.Details[0].Issue
	}

	switch body.Name {
	case "UNPROCESSABLE_ENTITY":
		if strings.Contains(issue, "INSTRUMENT_DECLINED") {
			return payerr.CardDeclined(Name, pe.Message, body)
		}
		if strings.Contains(issue, "INSUFFICIENT_FUNDS") {
			return payerr.InsufficientFunds(Name, pe.Message, body)
		}
	case "RATE_LIMIT_REACHED":
		return payerr.RateLimit(Name, pe.Message, body)
	case "INVALID_REQUEST":
		return payerr.InvalidRequest(Name, pe.Message, nil)
	case "AUTHENTICATION_FAILURE":
		return payerr.Authentication(Name, pe.Message, body)
	}
	return err
}

// mapStatus maps a PayPal order status onto the normalized set.
func mapStatus(s string) gateway.Status {
	switch s {
	case "CREATED", "SAVED", "PAYER_ACTION_REQUIRED":
		return gateway.StatusPending
	case "APPROVED":
		return gateway.StatusAuthorized
	case "VOIDED":
		return gateway.StatusCancelled
	case "COMPLETED":
		return gateway.StatusPaid
	}
	return gateway.StatusPending
}

// mapResourceStatus maps a webhook resource status (captures, refunds) onto
// the normalized set.
func mapResourceStatus(s string) gateway.Status {
	switch s {
	case "COMPLETED":
		return gateway.StatusPaid
	case "DECLINED", "FAILED":
		return gateway.StatusFailed
	case "PARTIALLY_REFUNDED":
		return gateway.StatusPartiallyRefunded
	case "PENDING":
		return gateway.StatusPending
	case "REFUNDED":
		return gateway.StatusRefunded
	}
	return gateway.StatusPending
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
