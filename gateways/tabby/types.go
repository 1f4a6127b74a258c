package tabby

// Buyer identifies the customer on a checkout session. Phone is digits only,
// without the country prefix.
type Buyer struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,min=5"`
	DOB   string `json:"dob,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Address is a Tabby shipping address.
type Address struct {
	City    string `json:"city" validate:"required"`
	Address string `json:"address" validate:"required"`
	ZIP     string `json:"zip" validate:"required"`
}

// OrderItem is a single cart line. Money travels as decimal strings.
type OrderItem struct {
	ReferenceID     string `json:"reference_id" validate:"required"`
	Title           string `json:"title" validate:"required"`
	Description     string `json:"description,omitempty"`
	Quantity        int    `json:"quantity" validate:"required,gt=0"`
	UnitPrice       string `json:"unit_price" validate:"required,decimalamount"`
	DiscountAmount  string `json:"discount_amount,omitempty"`
	ImageURL        string `json:"image_url,omitempty" validate:"omitempty,url"`
	ProductURL      string `json:"product_url,omitempty" validate:"omitempty,url"`
	Category        string `json:"category,omitempty"`
	Brand           string `json:"brand,omitempty"`
	Gender          string `json:"gender,omitempty"`
	Color           string `json:"color,omitempty"`
	Size            string `json:"size,omitempty"`
	SizeType        string `json:"size_type,omitempty"`
	ProductMaterial string `json:"product_material,omitempty"`
	IsRefundable    *bool  `json:"is_refundable,omitempty"`
	Barcode         string `json:"barcode,omitempty"`
	Seller          string `json:"seller,omitempty"`
}

// Order is the cart container.
type Order struct {
	ReferenceID    string      `json:"reference_id" validate:"required"`
	Items          []OrderItem `json:"items" validate:"required,min=1,dive"`
	TaxAmount      string      `json:"tax_amount,omitempty"`
	ShippingAmount string      `json:"shipping_amount,omitempty"`
	DiscountAmount string      `json:"discount_amount,omitempty"`
	UpdatedAt      string      `json:"updated_at,omitempty"`
}

// MerchantURLs are the redirect endpoints echoed into the session.
type MerchantURLs struct {
	Success string `json:"success" validate:"required,url"`
	Cancel  string `json:"cancel" validate:"required,url"`
	Failure string `json:"failure" validate:"required,url"`
}

// CheckoutParams create a checkout session with the full BNPL cart shape.
// Amount is a decimal string, matching Tabby's wire convention.
type CheckoutParams struct {
	Amount          string         `json:"amount" validate:"required,decimalamount"`
	Currency        string         `json:"currency" validate:"required,len=3"`
	Description     string         `json:"description,omitempty"`
	Buyer           Buyer          `json:"buyer"`
	ShippingAddress *Address       `json:"shipping_address,omitempty"`
	Order           Order          `json:"order"`
	MerchantURLs    MerchantURLs   `json:"merchant_urls"`
	Lang            string         `json:"lang,omitempty" validate:"omitempty,oneof=en ar"`
	Meta            map[string]any `json:"meta,omitempty"`
	IdempotencyKey  string         `json:"-"`
}

// CheckoutResponse is the created session. The hosted page URL lives under
// configuration.available_products.installments.
type CheckoutResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Configuration struct {
		AvailableProducts struct {
			Installments []struct {
				WebURL string `json:"web_url"`
				QRCode string `json:"qr_code"`
			} `json:"installments"`
		} `json:"available_products"`
		Products struct {
			Installments *struct {
				Type            string `json:"type"`
				IsAvailable     bool   `json:"is_available"`
				RejectionReason string `json:"rejection_reason"`
			} `json:"installments"`
		} `json:"products"`
	} `json:"configuration"`
	Payment struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		Amount    string `json:"amount"`
		Currency  string `json:"currency"`
		CreatedAt string `json:"created_at"`
		IsTest    bool   `json:"is_test"`
	} `json:"payment"`
	MerchantURLs MerchantURLs `json:"merchant_urls"`
}

// Transaction is a single capture or refund on a payment.
type Transaction struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	CreatedAt   string `json:"created_at"`
	ReferenceID string `json:"reference_id"`
	Reason      string `json:"reason,omitempty"`
}

// PaymentResponse is the payment object returned by retrieve, capture,
// refund and close.
type PaymentResponse struct {
	ID              string         `json:"id"`
	Status          string         `json:"status"`
	Amount          string         `json:"amount"`
	Currency        string         `json:"currency"`
	CreatedAt       string         `json:"created_at"`
	ExpiresAt       string         `json:"expires_at"`
	ClosedAt        string         `json:"closed_at"`
	IsTest          bool           `json:"is_test"`
	Buyer           *Buyer         `json:"buyer"`
	ShippingAddress *Address       `json:"shipping_address"`
	Order           *Order         `json:"order"`
	Captures        []Transaction  `json:"captures"`
	Refunds         []Transaction  `json:"refunds"`
	Meta            map[string]any `json:"meta"`
}

// EligibilityResult is the outcome of a pre-scoring check.
type EligibilityResult struct {
	Eligible        bool
	RejectionReason string
	SessionID       string
}

type errorResponse struct {
	Status    string `json:"status"`
	ErrorType string `json:"errorType"`
	Err       string `json:"error"`
}
