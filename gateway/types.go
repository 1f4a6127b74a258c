package gateway

import "time"

// PaymentSource is a gateway-native payment instrument attached to
// CreatePaymentParams. Concrete implementations live in the adapter packages
// (see gateways/moyasar for the card/token/wallet source set).
type PaymentSource interface {
	SourceType() string
}

// CreatePaymentParams are the unified parameters for creating a payment.
// Amounts are major units; adapters convert to their provider's convention.
type CreatePaymentParams struct {
	Amount      float64 `validate:"required,gt=0"`
	Currency    string  `validate:"required,len=3"`
	Description string
	OrderID     string

	CustomerEmail string `validate:"omitempty,email"`
	CustomerName  string
	CustomerPhone string

	CallbackURL string `validate:"omitempty,url"`
	ReturnURL   string `validate:"omitempty,url"`
	CancelURL   string `validate:"omitempty,url"`

	Metadata       map[string]any
	IdempotencyKey string

	// Capture selects automatic capture. Nil means true.
	Capture *bool

	// TokenID is a stored card token (Moyasar legacy field; Source wins when
	// both are set).
	TokenID string
	// Source is a gateway-native payment instrument.
	Source PaymentSource
	// ApplyCoupon asks the provider to apply any eligible coupon (Moyasar).
	ApplyCoupon bool

	// Stripe payment-method wiring.
	PaymentMethodID  string
	CustomerID       string
	SetupFutureUsage string `validate:"omitempty,oneof=on_session off_session"`
}

// ShouldCapture resolves the Capture flag with its true default.
func (p CreatePaymentParams) ShouldCapture() bool {
	return p.Capture == nil || *p.Capture
}

// CaptureParams are the unified parameters for capturing an authorized
// payment. Amount zero means capture in full where the provider supports it.
type CaptureParams struct {
	PaymentID      string  `validate:"required"`
	Amount         float64 `validate:"omitempty,gt=0"`
	Currency       string  `validate:"omitempty,len=3"`
	IdempotencyKey string
}

// RefundParams are the unified parameters for refunding a payment. Amount
// zero means full refund. Providers that take decimal amounts on the wire
// require Currency for partial refunds.
type RefundParams struct {
	PaymentID      string  `validate:"required"`
	Amount         float64 `validate:"omitempty,gt=0"`
	Currency       string  `validate:"omitempty,len=3"`
	Reason         string
	IdempotencyKey string
}

// VoidParams cancel an authorized, uncaptured payment.
type VoidParams struct {
	PaymentID string `validate:"required"`
}

// GetPaymentParams fetch a payment by provider id.
type GetPaymentParams struct {
	PaymentID string `validate:"required"`
}

// LineItem is a single line on a hosted checkout page. Either Price (an
// existing provider price id) or PriceData is set, never both.
type LineItem struct {
	Price     string
	PriceData *PriceData
	Quantity  int64 `validate:"required,gt=0"`
}

// PriceData describes an ad-hoc price for a checkout line item. UnitAmount is
// in minor units.
type PriceData struct {
	Currency    string `validate:"required,len=3"`
	ProductName string `validate:"required"`
	Description string
	Images      []string
	UnitAmount  int64 `validate:"required,gt=0"`
}

// CheckoutSessionParams create a hosted checkout page. When LineItems is
// empty a single "Payment" line is synthesized from Amount and Currency.
type CheckoutSessionParams struct {
	Amount     float64 `validate:"required,gt=0"`
	Currency   string  `validate:"required,len=3"`
	SuccessURL string  `validate:"required,url"`
	CancelURL  string  `validate:"required,url"`
	// Mode is payment, subscription or setup. Empty means payment.
	Mode      string `validate:"omitempty,oneof=payment subscription setup"`
	LineItems []LineItem

	Description   string
	CustomerID    string
	CustomerEmail string `validate:"omitempty,email"`
	CustomerName  string
	CustomerPhone string

	OrderID        string
	Metadata       map[string]any
	IdempotencyKey string
	// Lang selects the hosted page language where supported (en or ar).
	Lang string `validate:"omitempty,oneof=en ar"`
}

// CheckoutSessionResult is the normalized outcome of creating a hosted
// checkout session.
type CheckoutSessionResult struct {
	Success   bool
	SessionID string
	// URL is the hosted page the customer is redirected to.
	URL    string
	Status Status
	Raw    any
}

// PaymentResult is the normalized outcome of a payment operation. Raw always
// holds the provider's response, undecoded beyond JSON.
type PaymentResult struct {
	Success      bool
	PaymentID    string
	Status       Status
	Amount       float64
	Currency     string
	RedirectURL  string
	ClientSecret string
	Raw          any
}

// RefundResult is the normalized outcome of a refund.
type RefundResult struct {
	Success       bool
	RefundID      string
	PaymentID     string
	Status        RefundStatus
	Amount        float64
	Currency      string
	TotalRefunded float64
	RefundedAt    *time.Time
	Raw           any
}

// WebhookEvent is a verified, normalized webhook notification. PaymentID is
// the merchant's own reference when the provider echoes one back;
// GatewayPaymentID is the provider-side payment id.
type WebhookEvent struct {
	ID               string
	Type             string
	Gateway          string
	PaymentID        string
	GatewayPaymentID string
	Status           Status
	Amount           float64
	Currency         string
	Timestamp        time.Time
	Raw              any
}
