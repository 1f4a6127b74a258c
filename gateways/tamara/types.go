package tamara

import "encoding/json"

// Amount is Tamara's money object. Amounts are decimal major units.
type Amount struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Consumer is the customer attached to a checkout session.
type Consumer struct {
	Email       string `json:"email" validate:"required,email"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
}

// Address is a Tamara shipping or billing address.
type Address struct {
	City        string `json:"city" validate:"required"`
	CountryCode string `json:"country_code" validate:"required,len=2"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Line1       string `json:"line1" validate:"required"`
	Line2       string `json:"line2,omitempty"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Region      string `json:"region" validate:"required"`
}

// OrderItem is a single cart line. TotalAmount is required; BNPL risk checks
// use it even when unit price is absent.
type OrderItem struct {
	Name           string  `json:"name" validate:"required"`
	Quantity       int     `json:"quantity" validate:"required,gt=0"`
	ReferenceID    string  `json:"reference_id" validate:"required"`
	Type           string  `json:"type" validate:"required,oneof=Physical Digital"`
	SKU            string  `json:"sku" validate:"required"`
	ItemURL        string  `json:"item_url,omitempty"`
	ImageURL       string  `json:"image_url,omitempty"`
	UnitPrice      *Amount `json:"unit_price,omitempty"`
	TaxAmount      *Amount `json:"tax_amount,omitempty"`
	DiscountAmount *Amount `json:"discount_amount,omitempty"`
	TotalAmount    Amount  `json:"total_amount"`
}

// MerchantURLs are the redirect and notification endpoints for a session.
type MerchantURLs struct {
	Success      string `json:"success" validate:"required,url"`
	Failure      string `json:"failure" validate:"required,url"`
	Cancel       string `json:"cancel" validate:"required,url"`
	Notification string `json:"notification" validate:"required,url"`
}

// Discount names a voucher applied to the order.
type Discount struct {
	Name   string `json:"name"`
	Amount Amount `json:"amount"`
}

// CheckoutParams creates a checkout session with the full BNPL cart shape.
type CheckoutParams struct {
	TotalAmount      Amount         `json:"total_amount"`
	ShippingAmount   Amount         `json:"shipping_amount"`
	TaxAmount        Amount         `json:"tax_amount"`
	OrderReferenceID string         `json:"order_reference_id" validate:"required"`
	OrderNumber      string         `json:"order_number,omitempty"`
	Discount         *Discount      `json:"discount,omitempty"`
	Items            []OrderItem    `json:"items" validate:"required,min=1,dive"`
	Consumer         Consumer       `json:"consumer"`
	CountryCode      string         `json:"country_code" validate:"required,oneof=SA AE BH KW OM"`
	Description      string         `json:"description" validate:"required"`
	MerchantURL      MerchantURLs   `json:"merchant_url"`
	BillingAddress   *Address       `json:"billing_address,omitempty"`
	ShippingAddress  Address        `json:"shipping_address"`
	Platform         string         `json:"platform,omitempty"`
	IsMobile         bool           `json:"is_mobile,omitempty"`
	Locale           string         `json:"locale,omitempty" validate:"omitempty,oneof=ar_SA en_US"`
	PaymentType      string         `json:"payment_type,omitempty" validate:"omitempty,oneof=PAY_BY_INSTALMENTS PAY_NOW"`
	Instalments      int            `json:"instalments,omitempty"`
	AdditionalData   map[string]any `json:"additional_data,omitempty"`
	ExpiresInMinutes int            `json:"expires_in_minutes,omitempty" validate:"omitempty,min=5,max=1440"`
}

// CheckoutResponse is the created session.
type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	CheckoutID  string `json:"checkout_id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
}

// AuthoriseResponse confirms an order authorisation.
type AuthoriseResponse struct {
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	OrderExpiryTime  string `json:"order_expiry_time"`
	PaymentType      string `json:"payment_type"`
	AutoCaptured     bool   `json:"auto_captured"`
	CaptureID        string `json:"capture_id"`
	AuthorizedAmount Amount `json:"authorized_amount"`
}

// ShippingInfo is required on capture.
type ShippingInfo struct {
	ShippedAt       string `json:"shipped_at" validate:"required"`
	ShippingCompany string `json:"shipping_company" validate:"required"`
	TrackingNumber  string `json:"tracking_number" validate:"required"`
	TrackingURL     string `json:"tracking_url,omitempty"`
}

// CaptureOrderParams captures an authorised order with Tamara-specific data.
type CaptureOrderParams struct {
	OrderID        string       `json:"order_id" validate:"required"`
	TotalAmount    Amount       `json:"total_amount"`
	ShippingInfo   ShippingInfo `json:"shipping_info"`
	Items          []OrderItem  `json:"items,omitempty"`
	DiscountAmount *Amount      `json:"discount_amount,omitempty"`
	ShippingAmount *Amount      `json:"shipping_amount,omitempty"`
	TaxAmount      *Amount      `json:"tax_amount,omitempty"`
}

// CaptureResponse confirms a capture.
type CaptureResponse struct {
	CaptureID      string     `json:"capture_id"`
	OrderID        string     `json:"order_id"`
	Status         string     `json:"status"`
	CapturedAmount amountList `json:"captured_amount"`
}

// RefundOrderParams refunds with Tamara-specific data.
type RefundOrderParams struct {
	OrderID          string `json:"order_id" validate:"required"`
	TotalAmount      Amount `json:"total_amount"`
	Comment          string `json:"comment" validate:"required"`
	MerchantRefundID string `json:"merchant_refund_id,omitempty"`
}

// RefundResponse confirms a refund.
type RefundResponse struct {
	OrderID        string     `json:"order_id"`
	Comment        string     `json:"comment"`
	RefundID       string     `json:"refund_id"`
	CaptureID      string     `json:"capture_id"`
	Status         string     `json:"status"`
	RefundedAmount amountList `json:"refunded_amount"`
}

// CancelOrderParams cancel an authorised, uncaptured order.
type CancelOrderParams struct {
	OrderID        string      `json:"order_id" validate:"required"`
	TotalAmount    Amount      `json:"total_amount"`
	ShippingAmount *Amount     `json:"shipping_amount,omitempty"`
	TaxAmount      *Amount     `json:"tax_amount,omitempty"`
	DiscountAmount *Amount     `json:"discount_amount,omitempty"`
	Items          []OrderItem `json:"items,omitempty"`
}

// CancelResponse confirms a cancellation. Status canceled means full,
// updated means partial.
type CancelResponse struct {
	CancelID       string `json:"cancel_id"`
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	CanceledAmount Amount `json:"canceled_amount"`
}

// OrderDetails is the full order state.
type OrderDetails struct {
	OrderID          string      `json:"order_id"`
	OrderReferenceID string      `json:"order_reference_id"`
	OrderNumber      string      `json:"order_number"`
	Status           string      `json:"status"`
	TotalAmount      Amount      `json:"total_amount"`
	Items            []OrderItem `json:"items"`
	Consumer         Consumer    `json:"consumer"`
	ShippingAddress  Address     `json:"shipping_address"`
	BillingAddress   *Address    `json:"billing_address"`
	CreatedAt        string      `json:"created_at"`
	CapturedAmount   *Amount     `json:"captured_amount"`
	RefundedAmount   *Amount     `json:"refunded_amount"`
	CanceledAmount   *Amount     `json:"canceled_amount"`
}

type errorResponse struct {
	Message string `json:"message"`
	Err     string `json:"error"`
	Errors  []struct {
		Field     string `json:"field"`
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	} `json:"errors"`
}

// amountList tolerates Tamara returning either a single amount object or an
// array of them for captured_amount and refunded_amount.
type amountList []Amount

func (a *amountList) UnmarshalJSON(data []byte) error {
	var list []Amount
	if err := json.Unmarshal(data, &list); err == nil {
		*a = list
		return nil
	}
	var single Amount
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*a = amountList{single}
	return nil
}

// First returns the leading amount, zero-valued when empty.
func (a amountList) First() Amount {
	if len(a) == 0 {
		return Amount{}
	}
	return a[0]
}
