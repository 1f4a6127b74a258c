// Package gateway defines the unified contract every payment adapter
// implements, the normalized parameter and result types, and the Execute
// pipeline that threads hooks and error mapping around provider calls.
package gateway

import "context"

// Gateway is the capability set every adapter provides.
//
// VerifyWebhook is a pure function over the raw request body, the provider's
// signature value and the remaining headers; it never performs I/O. Adapters
// whose provider only offers a verification API implement AsyncVerifier on
// top of a permissive sync check.
type Gateway interface {
	Name() string

	CreatePayment(ctx context.Context, params CreatePaymentParams) (*PaymentResult, error)
	CapturePayment(ctx context.Context, params CaptureParams) (*PaymentResult, error)
	RefundPayment(ctx context.Context, params RefundParams) (*RefundResult, error)

	VerifyWebhook(payload []byte, signature string, headers map[string]string) bool
	ParseWebhookEvent(payload []byte) (*WebhookEvent, error)
}

// Voider is implemented by adapters whose provider can cancel an authorized,
// uncaptured payment.
type Voider interface {
	VoidPayment(ctx context.Context, params VoidParams) (*PaymentResult, error)
}

// Fetcher is implemented by adapters that can read a payment back.
type Fetcher interface {
	GetPayment(ctx context.Context, params GetPaymentParams) (*PaymentResult, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (Status, error)
}

// SessionCreator is implemented by adapters that offer a hosted checkout
// page through the unified session parameters.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSessionResult, error)
}

// AsyncVerifier is implemented by adapters with a cryptographic or
// provider-API verification path that needs I/O or a full JWT check.
type AsyncVerifier interface {
	VerifyWebhookAsync(ctx context.Context, payload []byte, signature string, headers map[string]string) (bool, error)
}
