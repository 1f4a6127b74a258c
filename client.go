// Package paymux is a unified payment SDK over Moyasar, PayPal, Paymob,
// Stripe, Tamara and Tabby. A Client is built from per-gateway credentials
// and exposes the same create/capture/refund/void/get operations across all
// of them, with a shared hook pipeline and a single error taxonomy.
package paymux

import (
	"context"

	"go.uber.org/zap"

	"paymux/gateway"
	"paymux/gateways/moyasar"
	"paymux/gateways/paymob"
	"paymux/gateways/paypal"
	"paymux/gateways/stripe"
	"paymux/gateways/tabby"
	"paymux/gateways/tamara"
	"paymux/hooks"
	"paymux/payerr"
)

// Registry names of the built-in gateways.
const (
	GatewayMoyasar = moyasar.Name
	GatewayPayPal  = paypal.Name
	GatewayPaymob  = paymob.Name
	GatewayStripe  = stripe.Name
	GatewayTamara  = tamara.Name
	GatewayTabby   = tabby.Name
)

// Config selects which gateways the client is built with. A nil section
// leaves that gateway unconfigured.
type Config struct {
	Moyasar *moyasar.Config
	PayPal  *paypal.Config
	Paymob  *paymob.Config
	Stripe  *stripe.Config
	Tamara  *tamara.Config
	Tabby   *tabby.Config

	// DefaultGateway handles operations that do not name a gateway.
	DefaultGateway string
	// Hooks is the initial hook set. More can be registered at runtime
	// through Hooks().
	Hooks *hooks.Hooks
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Client orchestrates gateway operations with lifecycle hooks.
type Client struct {
	gateways       map[string]gateway.Gateway
	order          []string
	hooks          *hooks.Manager
	defaultGateway string
	logger         *zap.Logger
}

// New builds a client from the configured gateways.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		gateways:       map[string]gateway.Gateway{},
		hooks:          hooks.NewManager(cfg.Hooks),
		defaultGateway: cfg.DefaultGateway,
		logger:         logger,
	}

	register := func(name string, g gateway.Gateway) {
		c.gateways[name] = g
		c.order = append(c.order, name)
	}
	if cfg.Moyasar != nil {
		register(GatewayMoyasar, moyasar.New(*cfg.Moyasar, c.hooks, logger))
	}
	if cfg.PayPal != nil {
		register(GatewayPayPal, paypal.New(*cfg.PayPal, c.hooks, logger))
	}
	if cfg.Paymob != nil {
		register(GatewayPaymob, paymob.New(*cfg.Paymob, c.hooks, logger))
	}
	if cfg.Stripe != nil {
		register(GatewayStripe, stripe.New(*cfg.Stripe, c.hooks, logger))
	}
	if cfg.Tamara != nil {
		register(GatewayTamara, tamara.New(*cfg.Tamara, c.hooks, logger))
	}
	if cfg.Tabby != nil {
		register(GatewayTabby, tabby.New(*cfg.Tabby, c.hooks, logger))
	}
	return c
}

// Gateway returns a configured gateway by name.
func (c *Client) Gateway(name string) (gateway.Gateway, error) {
	g, ok := c.gateways[name]
	if !ok {
		return nil, payerr.NotConfigured(name)
	}
	return g, nil
}

// ConfiguredGateways lists the configured gateway names in registration
// order.
func (c *Client) ConfiguredGateways() []string {
	return append([]string(nil), c.order...)
}

// HasGateway reports whether a gateway is configured.
func (c *Client) HasGateway(name string) bool {
	_, ok := c.gateways[name]
	return ok
}

// Hooks exposes the hook manager for runtime registration.
func (c *Client) Hooks() *hooks.Manager {
	return c.hooks
}

// CreatePayment creates a payment on the named gateway, or the default when
// none is given.
func (c *Client) CreatePayment(ctx context.Context, params gateway.CreatePaymentParams, gatewayName ...string) (*gateway.PaymentResult, error) {
	g, err := c.resolve(gatewayName)
	if err != nil {
		return nil, err
	}
	return g.CreatePayment(ctx, params)
}

// CapturePayment captures an authorized payment.
func (c *Client) CapturePayment(ctx context.Context, params gateway.CaptureParams, gatewayName ...string) (*gateway.PaymentResult, error) {
	g, err := c.resolve(gatewayName)
	if err != nil {
		return nil, err
	}
	return g.CapturePayment(ctx, params)
}

// RefundPayment refunds a payment, fully or partially.
func (c *Client) RefundPayment(ctx context.Context, params gateway.RefundParams, gatewayName ...string) (*gateway.RefundResult, error) {
	g, err := c.resolve(gatewayName)
	if err != nil {
		return nil, err
	}
	return g.RefundPayment(ctx, params)
}

// VoidPayment cancels an authorized, uncaptured payment on gateways that
// support it.
func (c *Client) VoidPayment(ctx context.Context, params gateway.VoidParams, gatewayName ...string) (*gateway.PaymentResult, error) {
	g, err := c.resolve(gatewayName)
	if err != nil {
		return nil, err
	}
	v, ok := g.(gateway.Voider)
	if !ok {
		return nil, payerr.InvalidRequest(g.Name(), g.Name()+" does not support voidPayment", nil)
	}
	return v.VoidPayment(ctx, params)
}

// GetPayment retrieves a payment on gateways that support reads.
func (c *Client) GetPayment(ctx context.Context, params gateway.GetPaymentParams, gatewayName ...string) (*gateway.PaymentResult, error) {
	g, err := c.resolve(gatewayName)
	if err != nil {
		return nil, err
	}
	f, ok := g.(gateway.Fetcher)
	if !ok {
		return nil, payerr.InvalidRequest(g.Name(), g.Name()+" does not support getPayment", nil)
	}
	return f.GetPayment(ctx, params)
}

// GetPaymentStatus fetches just the normalized status of a payment.
func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string, gatewayName ...string) (gateway.Status, error) {
	g, err := c.resolve(gatewayName)
	if err != nil {
		return "", err
	}
	f, ok := g.(gateway.Fetcher)
	if !ok {
		return "", payerr.InvalidRequest(g.Name(), g.Name()+" does not support getPaymentStatus", nil)
	}
	return f.GetPaymentStatus(ctx, paymentID)
}

// CreateCheckoutSession creates a hosted checkout page on gateways that
// support the unified session parameters.
func (c *Client) CreateCheckoutSession(ctx context.Context, params gateway.CheckoutSessionParams, gatewayName ...string) (*gateway.CheckoutSessionResult, error) {
	g, err := c.resolve(gatewayName)
	if err != nil {
		return nil, err
	}
	s, ok := g.(gateway.SessionCreator)
	if !ok {
		return nil, payerr.InvalidRequest(g.Name(), g.Name()+" does not support createCheckoutSession", nil)
	}
	return s.CreateCheckoutSession(ctx, params)
}

// HandleWebhook verifies and parses an incoming webhook, firing the webhook
// observers along the way. Verification uses the gateway's synchronous check;
// call the adapter's VerifyWebhookAsync directly when the provider only
// verifies through its API.
func (c *Client) HandleWebhook(ctx context.Context, gatewayName string, payload []byte, signature string, headers map[string]string) (*gateway.WebhookEvent, error) {
	g, err := c.Gateway(gatewayName)
	if err != nil {
		return nil, err
	}

	c.hooks.RunWebhookReceived(ctx, gatewayName, payload)

	if !g.VerifyWebhook(payload, signature, headers) {
		whErr := payerr.InvalidWebhook(gatewayName, "webhook verification failed")
		c.hooks.RunWebhookFailed(ctx, gatewayName, whErr)
		return nil, whErr
	}

	event, err := g.ParseWebhookEvent(payload)
	if err != nil {
		return nil, err
	}

	c.hooks.RunWebhookVerified(ctx, gatewayName, event)
	return event, nil
}

func (c *Client) resolve(names []string) (gateway.Gateway, error) {
	name := c.defaultGateway
	if len(names) > 0 && names[0] != "" {
		name = names[0]
	}
	if name == "" {
		return nil, payerr.InvalidRequest("", "no gateway specified and no default gateway configured", nil)
	}
	return c.Gateway(name)
}
