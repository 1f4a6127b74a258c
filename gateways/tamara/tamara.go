// Package tamara implements the Tamara BNPL gateway adapter. Tamara is
// redirect-based: payments start as checkout sessions, then move through
// approve, authorise, capture and refund on the order object.
package tamara

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
const Name = "tamara"

const (
	productionBaseURL = "https://api.tamara.co"
	sandboxBaseURL    = "https://api-sandbox.tamara.co"
)

// Config holds Tamara credentials.
type Config struct {
	APIToken string
	// NotificationToken signs webhook JWTs. Empty disables webhook
	// verification (accepted with a logged warning).
	NotificationToken string
	Sandbox           bool
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// Gateway is the Tamara adapter.
type Gateway struct {
	cfg     Config
	rt      gateway.Runtime
	http    *httpclient.Client
	logger  *zap.Logger
	baseURL string
}

// New creates a Tamara adapter.
func New(cfg Config, mgr *hooks.Manager, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := productionBaseURL
	if cfg.Sandbox {
		base = sandboxBaseURL
	}
	if cfg.BaseURL != "" {
		base = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	g := &Gateway{
		cfg:     cfg,
		http:    httpclient.New().WithBearerToken(cfg.APIToken),
		logger:  logger,
		baseURL: base,
	}
	g.rt = gateway.NewRuntime(Name, mgr, g.mapError, logger)
	return g
}

// Name implements gateway.Gateway.
func (g *Gateway) Name() string { return Name }

// CreatePayment creates a checkout session from the unified parameters. The
// BNPL cart is synthesized as a single digital line item; consumer and
// shipping fields fall back to metadata, then to placeholder defaults. Use
// CreateCheckoutSession for full cart control.
func (g *Gateway) CreatePayment(ctx context.Context, params gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCreatePayment, params,
		func(ctx context.Context, p gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
			meta := func(key, fallback string) string {
				if v, ok := p.Metadata[key].(string); ok && v != "" {
					return v
				}
				return fallback
			}

			total := Amount{Amount: p.Amount, Currency: p.Currency}
			zero := Amount{Currency: p.Currency}
			country := meta("countryCode", "SA")
			firstName := meta("buyerFirstName", defaultString(firstWord(p.CustomerName), "Customer"))
			lastName := meta("buyerLastName", defaultString(restWords(p.CustomerName), "User"))
			phone := meta("buyerPhone", defaultString(p.CustomerPhone, "500000000"))
			description := defaultString(p.Description, "Payment")

			reference := p.OrderID
			if reference == "" {
				reference = p.IdempotencyKey
			}
			if reference == "" {
				reference = fmt.Sprintf("order_%d", time.Now().UnixMilli())
			}

			checkout := CheckoutParams{
				TotalAmount:      total,
				ShippingAmount:   zero,
				TaxAmount:        zero,
				OrderReferenceID: reference,
				Items: []OrderItem{{
					Name:        description,
					Quantity:    1,
					ReferenceID: "item_1",
					Type:        "Digital",
					SKU:         "payment_item",
					TotalAmount: total,
				}},
				Consumer: Consumer{
					Email:       defaultString(p.CustomerEmail, meta("buyerEmail", "customer@example.com")),
					FirstName:   firstName,
					LastName:    lastName,
					PhoneNumber: phone,
				},
				CountryCode: country,
				Description: description,
				MerchantURL: MerchantURLs{
					Success:      p.CallbackURL,
					Failure:      p.CallbackURL,
					Cancel:       defaultString(p.CancelURL, p.CallbackURL),
					Notification: meta("webhookUrl", p.CallbackURL),
				},
				ShippingAddress: Address{
					City:        meta("shippingCity", "Riyadh"),
					CountryCode: country,
					FirstName:   firstName,
					LastName:    lastName,
					Line1:       meta("shippingLine1", "Address"),
					PhoneNumber: phone,
					Region:      meta("shippingRegion", "Region"),
				},
			}

			session, err := g.CreateCheckoutSession(ctx, checkout)
			if err != nil {
				return nil, err
			}
			return &gateway.PaymentResult{
				Success:     session.Status == "new",
				PaymentID:   session.OrderID,
				Status:      gateway.StatusPending,
				Amount:      p.Amount,
				Currency:    p.Currency,
				RedirectURL: session.CheckoutURL,
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
	var session CheckoutResponse
	if _, err := g.do(ctx, http.MethodPost, "/checkout", params, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// AuthoriseOrder authorises an approved order. Must be called after the
// order_approved webhook before the order can be captured.
func (g *Gateway) AuthoriseOrder(ctx context.Context, orderID string) (*AuthoriseResponse, error) {
	var auth AuthoriseResponse
	if _, err := g.do(ctx, http.MethodPost, "/orders/"+orderID+"/authorise", nil, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// CapturePayment captures an authorised order. Shipping info is mandatory on
// the wire, so placeholders are sent when the caller has none.
func (g *Gateway) CapturePayment(ctx context.Context, params gateway.CaptureParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCapturePayment, params,
		func(ctx context.Context, p gateway.CaptureParams) (*gateway.PaymentResult, error) {
			capture, err := g.CaptureOrder(ctx, CaptureOrderParams{
				OrderID: p.PaymentID,
				TotalAmount: Amount{
					Amount:   p.Amount,
					Currency: defaultString(p.Currency, "SAR"),
				},
				ShippingInfo: ShippingInfo{
					ShippedAt:       time.Now().UTC().Format(time.RFC3339),
					ShippingCompany: "Carrier",
					TrackingNumber:  "N/A",
				},
			})
			if err != nil {
				return nil, err
			}

			captured := capture.CapturedAmount.First()
			return &gateway.PaymentResult{
				Success:   true,
				PaymentID: capture.OrderID,
				Status:    mapStatus(capture.Status),
				Amount:    captured.Amount,
				Currency:  defaultString(captured.Currency, p.Currency),
				Raw:       capture,
			}, nil
		})
}

// CaptureOrder captures with the full Tamara-specific parameters.
func (g *Gateway) CaptureOrder(ctx context.Context, params CaptureOrderParams) (*CaptureResponse, error) {
	if err := gateway.ValidateParams(params); err != nil {
		return nil, err
	}
	var capture CaptureResponse
	if _, err := g.do(ctx, http.MethodPost, "/payments/capture", params, &capture); err != nil {
		return nil, err
	}
	return &capture, nil
}

// RefundPayment refunds through the simplified-refund endpoint. Tamara
// reports refunds as completed immediately.
func (g *Gateway) RefundPayment(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpRefundPayment, params,
		func(ctx context.Context, p gateway.RefundParams) (*gateway.RefundResult, error) {
			refund, err := g.RefundOrder(ctx, RefundOrderParams{
				OrderID: p.PaymentID,
				TotalAmount: Amount{
					Amount:   p.Amount,
					Currency: defaultString(p.Currency, "SAR"),
				},
				Comment: defaultString(p.Reason, "Refund requested"),
			})
			if err != nil {
				return nil, err
			}

			refunded := refund.RefundedAmount.First()
			return &gateway.RefundResult{
				Success:       true,
				RefundID:      refund.RefundID,
				PaymentID:     refund.OrderID,
				Status:        gateway.RefundCompleted,
				Amount:        refunded.Amount,
				Currency:      defaultString(refunded.Currency, p.Currency),
				TotalRefunded: refunded.Amount,
				Raw:           refund,
			}, nil
		})
}

// RefundOrder refunds with the full Tamara-specific parameters.
func (g *Gateway) RefundOrder(ctx context.Context, params RefundOrderParams) (*RefundResponse, error) {
	if err := gateway.ValidateParams(params); err != nil {
		return nil, err
	}
	body := map[string]any{
		"total_amount": params.TotalAmount,
		"comment":      params.Comment,
	}
	if params.MerchantRefundID != "" {
		body["merchant_refund_id"] = params.MerchantRefundID
	}
	var refund RefundResponse
	if _, err := g.do(ctx, http.MethodPost, "/payments/simplified-refund/"+params.OrderID, body, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// VoidPayment cancels an authorised order before capture. The cancel endpoint
// requires the order amount, so the order is fetched first.
func (g *Gateway) VoidPayment(ctx context.Context, params gateway.VoidParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpVoidPayment, params,
		func(ctx context.Context, p gateway.VoidParams) (*gateway.PaymentResult, error) {
			order, err := g.GetOrderDetails(ctx, p.PaymentID)
			if err != nil {
				return nil, err
			}

			cancel, err := g.CancelOrder(ctx, CancelOrderParams{
				OrderID:     p.PaymentID,
				TotalAmount: order.TotalAmount,
			})
			if err != nil {
				return nil, err
			}

			status := gateway.StatusPending
			if cancel.Status == "canceled" {
				status = gateway.StatusCancelled
			}
			return &gateway.PaymentResult{
				Success:   true,
				PaymentID: cancel.OrderID,
				Status:    status,
				Amount:    cancel.CanceledAmount.Amount,
				Currency:  cancel.CanceledAmount.Currency,
				Raw:       cancel,
			}, nil
		})
}

// CancelOrder cancels with the full Tamara-specific parameters.
func (g *Gateway) CancelOrder(ctx context.Context, params CancelOrderParams) (*CancelResponse, error) {
	if err := gateway.ValidateParams(params); err != nil {
		return nil, err
	}
	var cancel CancelResponse
	if _, err := g.do(ctx, http.MethodPost, "/orders/"+params.OrderID+"/cancel", params, &cancel); err != nil {
		return nil, err
	}
	return &cancel, nil
}

// GetOrderDetails fetches the full order state.
func (g *Gateway) GetOrderDetails(ctx context.Context, orderID string) (*OrderDetails, error) {
	var order OrderDetails
	if _, err := g.do(ctx, http.MethodGet, "/orders/"+orderID, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetPayment maps the order details onto the unified result.
func (g *Gateway) GetPayment(ctx context.Context, params gateway.GetPaymentParams) (*gateway.PaymentResult, error) {
	if err := gateway.ValidateParams(params); err != nil {
		return nil, err
	}
	order, err := g.GetOrderDetails(ctx, params.PaymentID)
	if err != nil {
		return nil, err
	}
	return &gateway.PaymentResult{
		Success:   true,
		PaymentID: order.OrderID,
		Status:    mapStatus(order.Status),
		Amount:    order.TotalAmount.Amount,
		Currency:  order.TotalAmount.Currency,
		Raw:       order,
	}, nil
}

// GetPaymentStatus fetches just the normalized status of an order.
func (g *Gateway) GetPaymentStatus(ctx context.Context, orderID string) (gateway.Status, error) {
	order, err := g.GetOrderDetails(ctx, orderID)
	if err != nil {
		return "", err
	}
	return mapStatus(order.Status), nil
}

func (g *Gateway) do(ctx context.Context, method, path string, body, out any) (json.RawMessage, error) {
	req := g.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, g.baseURL+path)
	if err != nil {
		return nil, payerr.Network(Name, err)
	}

	raw := json.RawMessage(append([]byte(nil), resp.Body()...))
	if resp.IsError() {
		var er errorResponse
		_ = json.Unmarshal(raw, &er)
		msg := er.Message
		if msg == "" {
			msg = er.Err
		}
		if msg == "" {
			msg = fmt.Sprintf("Tamara API error (%d)", resp.StatusCode())
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

// mapError refines provider API errors: 401s become authentication errors
// and responses carrying a field error list become invalid-request errors.
func (g *Gateway) mapError(err error) error {
	pe, ok := payerr.As(err)
	if !ok || pe.Code != payerr.CodeGatewayAPIError || pe.Gateway != Name {
		return err
	}
	er, ok := pe.Raw.(*errorResponse)
	if !ok {
		return err
	}
	if strings.Contains(pe.Message, "401") || strings.Contains(pe.Message, "Unauthorized") {
		return payerr.Authentication(Name, pe.Message, er)
	}
	if len(er.Errors) > 0 {
		fields := make([]payerr.FieldError, 0, len(er.Errors))
		for _, fe := range er.Errors {
			fields = append(fields, payerr.FieldError{
				Field:   fe.Field,
				Message: defaultString(fe.Message, fe.ErrorCode),
			})
		}
		return payerr.InvalidRequest(Name, pe.Message, fields)
	}
	return err
}

// mapStatus maps a Tamara order status onto the normalized set. Approved
// orders are distinct from authorised ones: approval still needs an explicit
// authorise call. Unknown states fall back to pending.
func mapStatus(s string) gateway.Status {
	switch s {
	case "new":
		return gateway.StatusPending
	case "declined", "expired":
		return gateway.StatusFailed
	case "approved":
		return gateway.StatusApproved
	case "authorised":
		return gateway.StatusAuthorized
	case "fully_captured", "partially_captured":
		return gateway.StatusPaid
	case "fully_refunded":
		return gateway.StatusRefunded
	case "partially_refunded":
		return gateway.StatusPartiallyRefunded
	case "canceled":
		return gateway.StatusCancelled
	case "updated":
		// Partial cancel.
		return gateway.StatusPending
	}
	return gateway.StatusPending
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func restWords(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return ""
}
