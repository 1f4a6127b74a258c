// Package payerr defines the SDK error taxonomy. Every failure surfaced by an
// adapter or the client is a *Error carrying a stable machine-readable code and
// an HTTP-ish status, so callers can branch without string matching.
package payerr

import (
	"errors"
	"fmt"
)

// Stable error codes.
const (
	CodePaymentAborted       = "PAYMENT_ABORTED"
	CodeGatewayNotConfigured = "GATEWAY_NOT_CONFIGURED"
	CodeInvalidWebhook       = "INVALID_WEBHOOK"
	CodeGatewayAPIError      = "GATEWAY_API_ERROR"
	CodeCardDeclined         = "CARD_DECLINED"
	CodeInsufficientFunds    = "INSUFFICIENT_FUNDS"
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeNetworkError         = "NETWORK_ERROR"
)

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error type of the SDK.
type Error struct {
	Code    string
	Message string
	// Status is the HTTP status the error maps to when surfaced over HTTP.
	Status int
	// Gateway is set on provider-originated errors.
	Gateway string
	// Raw holds the undecoded provider error body, if any.
	Raw any
	// Fields is populated for INVALID_REQUEST validation failures.
	Fields []FieldError
	cause  error
}

func (e *Error) Error() string {
	if e.Gateway != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Gateway, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// As unwraps err into a *Error, reporting whether it is one.
func As(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code string) bool {
	pe, ok := As(err)
	return ok && pe.Code == code
}

// Retryable reports whether err is worth retrying: transport failures,
// provider 5xx responses and rate limits.
func Retryable(err error) bool {
	pe, ok := As(err)
	if !ok {
		return false
	}
	return pe.Code == CodeNetworkError || pe.Code == CodeRateLimitExceeded || pe.Status >= 500
}

// Aborted builds a PAYMENT_ABORTED error from a hook abort reason.
func Aborted(reason string) *Error {
	if reason == "" {
		reason = "payment aborted by hook"
	}
	return &Error{Code: CodePaymentAborted, Message: reason, Status: 400}
}

// NotConfigured reports a lookup of a gateway the client was not built with.
func NotConfigured(gateway string) *Error {
	return &Error{
		Code:    CodeGatewayNotConfigured,
		Message: fmt.Sprintf("gateway %q is not configured", gateway),
		Status:  400,
		Gateway: gateway,
	}
}

// InvalidWebhook reports a webhook that failed signature verification or
// arrived structurally broken.
func InvalidWebhook(gateway, message string) *Error {
	return &Error{Code: CodeInvalidWebhook, Message: message, Status: 403, Gateway: gateway}
}

// GatewayAPI reports a provider response the adapter could not map to a more
// specific failure. Raw keeps the undecoded body for the caller.
func GatewayAPI(gateway, message string, raw any) *Error {
	return &Error{Code: CodeGatewayAPIError, Message: message, Status: 502, Gateway: gateway, Raw: raw}
}

// CardDeclined reports a decline by the issuer.
func CardDeclined(gateway, message string, raw any) *Error {
	return &Error{Code: CodeCardDeclined, Message: message, Status: 402, Gateway: gateway, Raw: raw}
}

// InsufficientFunds reports a decline for lack of funds.
func InsufficientFunds(gateway, message string, raw any) *Error {
	return &Error{Code: CodeInsufficientFunds, Message: message, Status: 402, Gateway: gateway, Raw: raw}
}

// Authentication reports rejected credentials or failed 3DS authentication.
func Authentication(gateway, message string, raw any) *Error {
	return &Error{Code: CodeAuthenticationFailed, Message: message, Status: 401, Gateway: gateway, Raw: raw}
}

// RateLimit reports provider throttling.
func RateLimit(gateway, message string, raw any) *Error {
	return &Error{Code: CodeRateLimitExceeded, Message: message, Status: 429, Gateway: gateway, Raw: raw}
}

// InvalidRequest reports a request the provider (or local validation) rejected.
func InvalidRequest(gateway, message string, fields []FieldError) *Error {
	return &Error{Code: CodeInvalidRequest, Message: message, Status: 400, Gateway: gateway, Fields: fields}
}

// Network wraps a transport-level failure (DNS, TLS, timeout, refused).
func Network(gateway string, cause error) *Error {
	msg := "network error"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: CodeNetworkError, Message: msg, Status: 503, Gateway: gateway, cause: cause}
}
