package moyasar

// Source is a Moyasar-native payment instrument. The set is closed: credit
// card, stored token, Apple Pay (encrypted token or decrypted DPAN), Samsung
// Pay and STC Pay.
type Source interface {
	SourceType() string
	payload() map[string]any
}

// CreditCardSource pays with raw card details.
type CreditCardSource struct {
	Name   string `validate:"required"`
	Number string `validate:"required,cardnumber"`
	Month  string `validate:"required"`
	Year   string `validate:"required"`
	CVC    string `validate:"required,min=3,max=4"`

	StatementDescriptor string
	ThreeDS             *bool
	ManualCapture       *bool
	SaveCard            *bool
}

func (CreditCardSource) SourceType() string { return "creditcard" }

func (s CreditCardSource) payload() map[string]any {
	m := map[string]any{
		"type":   "creditcard",
		"name":   s.Name,
		"number": s.Number,
		"month":  s.Month,
		"year":   s.Year,
		"cvc":    s.CVC,
	}
	if s.StatementDescriptor != "" {
		m["statement_descriptor"] = s.StatementDescriptor
	}
	if s.ThreeDS != nil {
		m["3ds"] = *s.ThreeDS
	}
	if s.ManualCapture != nil {
		m["manual"] = *s.ManualCapture
	}
	if s.SaveCard != nil {
		m["save_card"] = *s.SaveCard
	}
	return m
}

// TokenSource pays with a previously stored card token.
type TokenSource struct {
	Token string `validate:"required"`
	CVC   string `validate:"omitempty,min=3,max=4"`

	StatementDescriptor string
	ThreeDS             *bool
	ManualCapture       *bool
}

func (TokenSource) SourceType() string { return "token" }

func (s TokenSource) payload() map[string]any {
	m := map[string]any{
		"type":  "token",
		"token": s.Token,
	}
	if s.CVC != "" {
		m["cvc"] = s.CVC
	}
	if s.StatementDescriptor != "" {
		m["statement_descriptor"] = s.StatementDescriptor
	}
	if s.ThreeDS != nil {
		m["3ds"] = *s.ThreeDS
	}
	if s.ManualCapture != nil {
		m["manual"] = *s.ManualCapture
	}
	return m
}

// ApplePaySource pays with an encrypted Apple Pay token.
type ApplePaySource struct {
	Token string `validate:"required"`

	StatementDescriptor string
	ManualCapture       *bool
	SaveCard            *bool
}

func (ApplePaySource) SourceType() string { return "applepay" }

func (s ApplePaySource) payload() map[string]any {
	m := map[string]any{
		"type":  "applepay",
		"token": s.Token,
	}
	if s.ManualCapture != nil {
		m["manual"] = *s.ManualCapture
	}
	if s.SaveCard != nil {
		m["save_card"] = *s.SaveCard
	}
	if s.StatementDescriptor != "" {
		m["statement_descriptor"] = s.StatementDescriptor
	}
	return m
}

// ApplePayDecryptedSource pays with a decrypted Apple Pay DPAN, for merchants
// doing their own token decryption.
type ApplePayDecryptedSource struct {
	DPAN       string `validate:"required,cardnumber"`
	Month      string `validate:"required"`
	Year       string `validate:"required"`
	Cryptogram string `validate:"required"`
	DeviceID   string `validate:"required"`

	MaskedNumber string
	ECI          string
}

func (ApplePayDecryptedSource) SourceType() string { return "applepay" }

func (s ApplePayDecryptedSource) payload() map[string]any {
	m := map[string]any{
		"type":       "applepay",
		"dpan":       s.DPAN,
		"month":      s.Month,
		"year":       s.Year,
		"cryptogram": s.Cryptogram,
		"device_id":  s.DeviceID,
	}
	if s.MaskedNumber != "" {
		m["masked_number"] = s.MaskedNumber
	}
	if s.ECI != "" {
		m["eci"] = s.ECI
	}
	return m
}

// SamsungPaySource pays with a Samsung Pay token.
type SamsungPaySource struct {
	Token string `validate:"required"`

	StatementDescriptor string
	ManualCapture       *bool
	SaveCard            *bool
}

func (SamsungPaySource) SourceType() string { return "samsungpay" }

func (s SamsungPaySource) payload() map[string]any {
	m := map[string]any{
		"type":  "samsungpay",
		"token": s.Token,
	}
	if s.ManualCapture != nil {
		m["manual"] = *s.ManualCapture
	}
	if s.SaveCard != nil {
		m["save_card"] = *s.SaveCard
	}
	if s.StatementDescriptor != "" {
		m["statement_descriptor"] = s.StatementDescriptor
	}
	return m
}

// STCPaySource pays through STC Pay with a KSA mobile number. The customer
// confirms with an OTP on the returned redirect URL.
type STCPaySource struct {
	Mobile  string `validate:"required,ksamobile"`
	Cashier string
	Branch  string
}

func (STCPaySource) SourceType() string { return "stcpay" }

func (s STCPaySource) payload() map[string]any {
	m := map[string]any{
		"type":   "stcpay",
		"mobile": s.Mobile,
	}
	if s.Cashier != "" {
		m["cashier"] = s.Cashier
	}
	if s.Branch != "" {
		m["branch"] = s.Branch
	}
	return m
}
