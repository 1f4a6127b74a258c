// Package paymob implements the Paymob (Accept) payment gateway adapter.
// Payment creation prefers the KSA Unified Intention API and falls back to
// the legacy Egypt order/payment-key flow; capture, void, refund and
// transaction inquiry always go through the legacy endpoints with a cached
// auth token.
package paymob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"paymux/gateway"
	"paymux/hooks"
	"paymux/internal/httpclient"
	"paymux/payerr"
)

// Name is the registry name of this adapter.
const Name = "paymob"

// Region selects the Paymob deployment the merchant account lives in.
type Region string

const (
	RegionKSA      Region = "ksa"
	RegionEgypt    Region = "eg"
	RegionPakistan Region = "pk"
	RegionOman     Region = "om"
	RegionUAE      Region = "ae"
)

var regionBaseURLs = map[Region]string{
	RegionKSA:      "https://ksa.paymob.com",
	RegionEgypt:    "https://accept.paymob.com",
	RegionPakistan: "https://pakistan.paymob.com",
	RegionOman:     "https://oman.paymob.com",
	RegionUAE:      "https://ae.paymob.com",
}

// Config holds Paymob credentials. SecretKey+PublicKey select the Intention
// API; APIKey alone selects the legacy flow.
type Config struct {
	SecretKey     string
	PublicKey     string
	APIKey        string
	IntegrationID string
	// HMACSecret verifies processed callbacks. Empty disables webhook
	// verification (accepted with a logged warning).
	HMACSecret string
	// Region picks the deployment base URL. Defaults to KSA.
	Region Region
	// BaseURL overrides the region base URL.
	BaseURL string
}

// Gateway is the Paymob adapter.
type Gateway struct {
	cfg     Config
	rt      gateway.Runtime
	http    *httpclient.Client
	logger  *zap.Logger
	baseURL string

	auth legacyAuth
}

// New creates a Paymob adapter.
func New(cfg Config, mgr *hooks.Manager, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		cfg:     cfg,
		http:    httpclient.New(),
		logger:  logger,
		baseURL: resolveBaseURL(cfg),
	}
	g.rt = gateway.NewRuntime(Name, mgr, g.mapError, logger)
	return g
}

func resolveBaseURL(cfg Config) string {
	if cfg.BaseURL != "" {
		return strings.TrimSuffix(cfg.BaseURL, "/")
	}
	region := cfg.Region
	if region == "" {
		region = RegionKSA
	}
	return regionBaseURLs[region]
}

// Name implements gateway.Gateway.
func (g *Gateway) Name() string { return Name }

type apiMessage struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// CreatePayment creates a payment through the Intention API when secret and
// public keys are configured, otherwise through the legacy flow.
func (g *Gateway) CreatePayment(ctx context.Context, params gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCreatePayment, params,
		func(ctx context.Context, p gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
			if g.cfg.SecretKey != "" && g.cfg.PublicKey != "" {
				return g.createViaIntention(ctx, p)
			}
			if g.cfg.APIKey != "" {
				return g.createViaLegacy(ctx, p)
			}
			return nil, payerr.GatewayAPI(Name, "requires either secretKey/publicKey (KSA) or apiKey (legacy)", nil)
		})
}

func (g *Gateway) createViaIntention(ctx context.Context, p gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
	if g.cfg.IntegrationID == "" {
		return nil, payerr.GatewayAPI(Name, "intention API requires an integration id from the Paymob dashboard", nil)
	}
	integrationID, err := strconv.Atoi(g.cfg.IntegrationID)
	if err != nil {
		return nil, payerr.GatewayAPI(Name, "integration id must be numeric", nil)
	}

	meta := func(key, fallback string) string {
		if v, ok := p.Metadata[key].(string); ok && v != "" {
			return v
		}
		return fallback
	}
	billing := map[string]any{
		"email":        meta("email", "customer@example.com"),
		"first_name":   meta("firstName", "Customer"),
		"last_name":    meta("lastName", "Name"),
		"phone_number": meta("phone", "+966500000000"),
		"country":      meta("country", "SA"),
		"city":         meta("city", "Riyadh"),
		"street":       meta("street", "NA"),
		"building":     meta("building", "NA"),
		"apartment":    meta("apartment", "NA"),
		"floor":        meta("floor", "NA"),
		"postal_code":  meta("postalCode", "00000"),
		"state":        meta("state", "NA"),
	}

	extras := map[string]any{}
	for k, v := range p.Metadata {
		extras[k] = v
	}
	extras["orderId"] = meta("orderId", p.OrderID)

	body := map[string]any{
		"amount":          gateway.ToMinorUnits(p.Amount),
		"currency":        p.Currency,
		"payment_methods": []int{integrationID},
		"billing_data":    billing,
		// special_reference comes back as merchant_order_id in webhooks.
		"special_reference": meta("paymentId", p.OrderID),
		"notification_url":  p.CallbackURL,
		// Paymob appends a trailing slash before query params on bare hosts.
		"redirection_url": normalizeRedirectURL(defaultString(p.ReturnURL, p.CallbackURL)),
		"extras":          extras,
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Token "+g.cfg.SecretKey).
		SetBody(body).
		Post(g.baseURL + "/v1/intention/")
	if err != nil {
		return nil, payerr.Network(Name, err)
	}
	raw := json.RawMessage(append([]byte(nil), resp.Body()...))

	var data struct {
		apiMessage
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
		RedirectURL  string `json:"redirect_url"`
		CheckoutURL  string `json:"checkout_url"`
	}
	_ = json.Unmarshal(raw, &data)

	if resp.IsError() {
		g.logger.Error("intention API error",
			zap.String("gateway", Name),
			zap.Int("status", resp.StatusCode()),
			zap.ByteString("response", resp.Body()))
		msg := firstNonEmpty(data.Message, data.Detail, "failed to create intention")
		return nil, g.apiError(msg, raw)
	}

	redirect := firstNonEmpty(data.RedirectURL, data.CheckoutURL)
	if redirect == "" && data.ClientSecret != "" {
		redirect = fmt.Sprintf("%s/unifiedcheckout/?publicKey=%s&clientSecret=%s",
			g.baseURL, g.cfg.PublicKey, data.ClientSecret)
	}

	return &gateway.PaymentResult{
		Success:      true,
		PaymentID:    data.ID,
		Status:       gateway.StatusPending,
		RedirectURL:  redirect,
		ClientSecret: data.ClientSecret,
		Raw:          raw,
	}, nil
}

func (g *Gateway) createViaLegacy(ctx context.Context, p gateway.CreatePaymentParams) (*gateway.PaymentResult, error) {
	token, err := g.authToken(ctx)
	if err != nil {
		return nil, err
	}

	meta := func(key, fallback string) string {
		if v, ok := p.Metadata[key].(string); ok && v != "" {
			return v
		}
		return fallback
	}

	orderResp, err := g.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"auth_token":        token,
			"delivery_needed":   false,
			"amount_cents":      gateway.ToMinorUnits(p.Amount),
			"currency":          p.Currency,
			"merchant_order_id": p.OrderID,
			"items":             []any{},
		}).
		Post(g.baseURL + "/api/ecommerce/orders")
	if err != nil {
		return nil, payerr.Network(Name, err)
	}
	orderRaw := json.RawMessage(append([]byte(nil), orderResp.Body()...))
	var order struct {
		apiMessage
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(orderRaw, &order)
	if orderResp.IsError() {
		return nil, g.apiError(firstNonEmpty(order.Message, "failed to create order"), orderRaw)
	}

	keyResp, err := g.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"auth_token":   token,
			"amount_cents": gateway.ToMinorUnits(p.Amount),
			"expiration":   3600,
			"order_id":     order.ID,
			"billing_data": map[string]any{
				"apartment":       "NA",
				"email":           meta("email", "customer@example.com"),
				"floor":           "NA",
				"first_name":      meta("firstName", "Customer"),
				"street":          "NA",
				"building":        "NA",
				"phone_number":    meta("phone", "01000000000"),
				"shipping_method": "NA",
				"postal_code":     "NA",
				"city":            "NA",
				"country":         "NA",
				"last_name":       meta("lastName", "Name"),
				"state":           "NA",
			},
			"currency":       p.Currency,
			"integration_id": g.cfg.IntegrationID,
		}).
		Post(g.baseURL + "/api/acceptance/payment_keys")
	if err != nil {
		return nil, payerr.Network(Name, err)
	}
	keyRaw := json.RawMessage(append([]byte(nil), keyResp.Body()...))
	var key struct {
		apiMessage
		Token string `json:"token"`
	}
	_ = json.Unmarshal(keyRaw, &key)
	if keyResp.IsError() {
		return nil, g.apiError(firstNonEmpty(key.Message, "failed to generate payment key"), keyRaw)
	}

	iframeURL := fmt.Sprintf("%s/api/acceptance/iframes/%s?payment_token=%s",
		g.baseURL, g.cfg.IntegrationID, key.Token)

	return &gateway.PaymentResult{
		Success:     true,
		PaymentID:   strconv.FormatInt(order.ID, 10),
		Status:      gateway.StatusPending,
		RedirectURL: iframeURL,
		Raw:         map[string]any{"order": orderRaw, "paymentKey": keyRaw},
	}, nil
}

// CapturePayment captures an authorized transaction.
func (g *Gateway) CapturePayment(ctx context.Context, params gateway.CaptureParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpCapturePayment, params,
		func(ctx context.Context, p gateway.CaptureParams) (*gateway.PaymentResult, error) {
			token, err := g.authToken(ctx)
			if err != nil {
				return nil, err
			}
			body := map[string]any{
				"auth_token":     token,
				"transaction_id": p.PaymentID,
			}
			if p.Amount > 0 {
				body["amount_cents"] = gateway.ToMinorUnits(p.Amount)
			}

			var data struct {
				apiMessage
				ID          int64 `json:"id"`
				Success     bool  `json:"success"`
				AmountCents int64 `json:"amount_cents"`
			}
			raw, err := g.post(ctx, "/api/acceptance/capture", body, &data, "failed to capture transaction")
			if err != nil {
				return nil, err
			}

			status := gateway.StatusPending
			if data.Success {
				status = gateway.StatusPaid
			}
			return &gateway.PaymentResult{
				Success:   true,
				PaymentID: idOr(data.ID, p.PaymentID),
				Status:    status,
				Amount:    gateway.FromMinorUnits(data.AmountCents),
				Raw:       raw,
			}, nil
		})
}

// VoidPayment voids a same-day transaction.
func (g *Gateway) VoidPayment(ctx context.Context, params gateway.VoidParams) (*gateway.PaymentResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpVoidPayment, params,
		func(ctx context.Context, p gateway.VoidParams) (*gateway.PaymentResult, error) {
			token, err := g.authToken(ctx)
			if err != nil {
				return nil, err
			}

			var data struct {
				apiMessage
				ID      int64 `json:"id"`
				Success bool  `json:"success"`
			}
			raw, err := g.post(ctx, "/api/acceptance/void_refund/void", map[string]any{
				"auth_token":     token,
				"transaction_id": p.PaymentID,
			}, &data, "failed to void transaction")
			if err != nil {
				return nil, err
			}

			status := gateway.StatusFailed
			if data.Success {
				status = gateway.StatusCancelled
			}
			return &gateway.PaymentResult{
				Success:   data.Success,
				PaymentID: idOr(data.ID, p.PaymentID),
				Status:    status,
				Raw:       raw,
			}, nil
		})
}

// RefundPayment refunds a transaction, partially when Amount is set.
func (g *Gateway) RefundPayment(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error) {
	return gateway.Execute(ctx, &g.rt, hooks.OpRefundPayment, params,
		func(ctx context.Context, p gateway.RefundParams) (*gateway.RefundResult, error) {
			token, err := g.authToken(ctx)
			if err != nil {
				return nil, err
			}
			body := map[string]any{
				"auth_token":     token,
				"transaction_id": p.PaymentID,
			}
			if p.Amount > 0 {
				body["amount_cents"] = gateway.ToMinorUnits(p.Amount)
			}

			var data struct {
				apiMessage
				ID      int64 `json:"id"`
				Success bool  `json:"success"`
				Pending bool  `json:"pending"`
			}
			raw, err := g.post(ctx, "/api/acceptance/void_refund/refund", body, &data, "failed to refund transaction")
			if err != nil {
				return nil, err
			}

			status := gateway.RefundPending
			if data.Success {
				status = gateway.RefundCompleted
			}
			return &gateway.RefundResult{
				Success:   true,
				RefundID:  idOr(data.ID, p.PaymentID),
				PaymentID: p.PaymentID,
				Status:    status,
				Amount:    p.Amount,
				Currency:  p.Currency,
				Raw:       raw,
			}, nil
		})
}

// GetPayment retrieves a transaction by id.
func (g *Gateway) GetPayment(ctx context.Context, params gateway.GetPaymentParams) (*gateway.PaymentResult, error) {
	if err := gateway.ValidateParams(params); err != nil {
		return nil, err
	}
	token, err := g.authToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get(g.baseURL + "/api/acceptance/transactions/" + params.PaymentID)
	if err != nil {
		return nil, payerr.Network(Name, err)
	}
	raw := json.RawMessage(append([]byte(nil), resp.Body()...))

	var data struct {
		apiMessage
		ID          int64 `json:"id"`
		Success     bool  `json:"success"`
		Pending     bool  `json:"pending"`
		AmountCents int64 `json:"amount_cents"`
		IsVoid      bool  `json:"is_void"`
		IsRefund    bool  `json:"is_refund"`
	}
	_ = json.Unmarshal(raw, &data)
	if resp.IsError() {
		return nil, g.apiError(firstNonEmpty(data.Message, "failed to retrieve transaction"), raw)
	}

	// Flag priority: void and refund outrank the pending and success bits.
	status := gateway.StatusFailed
	switch {
	case data.IsVoid:
		status = gateway.StatusCancelled
	case data.IsRefund:
		status = gateway.StatusRefunded
	case data.Pending:
		status = gateway.StatusPending
	case data.Success:
		status = gateway.StatusPaid
	}

	return &gateway.PaymentResult{
		Success:   data.Success,
		PaymentID: idOr(data.ID, params.PaymentID),
		Status:    status,
		Amount:    gateway.FromMinorUnits(data.AmountCents),
		Raw:       raw,
	}, nil
}

// GetPaymentStatus retrieves just the normalized status of a transaction.
func (g *Gateway) GetPaymentStatus(ctx context.Context, paymentID string) (gateway.Status, error) {
	res, err := g.GetPayment(ctx, gateway.GetPaymentParams{PaymentID: paymentID})
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

func (g *Gateway) post(ctx context.Context, path string, body, out any, fallback string) (json.RawMessage, error) {
	resp, err := g.http.R().SetContext(ctx).SetBody(body).Post(g.baseURL + path)
	if err != nil {
		return nil, payerr.Network(Name, err)
	}
	raw := json.RawMessage(append([]byte(nil), resp.Body()...))
	_ = json.Unmarshal(raw, out)
	if resp.IsError() {
		var m apiMessage
		_ = json.Unmarshal(raw, &m)
		return nil, g.apiError(firstNonEmpty(m.Message, fallback), raw)
	}
	return raw, nil
}

func (g *Gateway) apiError(msg string, raw json.RawMessage) error {
	return payerr.GatewayAPI(Name, msg, raw)
}

// mapError refines provider API errors from the error message, since Paymob
// has no structured error codes.
func (g *Gateway) mapError(err error) error {
	pe, ok := payerr.As(err)
	if !ok || pe.Code != payerr.CodeGatewayAPIError || pe.Gateway != Name {
		return err
	}
	lower := strings.ToLower(pe.Message)
	if strings.Contains(lower, "declined") {
		return payerr.CardDeclined(Name, pe.Message, pe.Raw)
	}
	if strings.Contains(lower, "authentication") {
		return payerr.Authentication(Name, pe.Message, pe.Raw)
	}
	return err
}

// normalizeRedirectURL gives bare-host URLs an explicit "/" path so Paymob
// does not insert one before the query string.
func normalizeRedirectURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

func idOr(id int64, fallback string) string {
	if id != 0 {
		return strconv.FormatInt(id, 10)
	}
	return fallback
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
