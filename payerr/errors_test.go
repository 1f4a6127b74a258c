package payerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymux/payerr"
)

func TestConstructorsCarryCodeAndStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *payerr.Error
		code   string
		status int
	}{
		{"aborted", payerr.Aborted("nope"), payerr.CodePaymentAborted, 400},
		{"not configured", payerr.NotConfigured("stripe"), payerr.CodeGatewayNotConfigured, 400},
		{"invalid webhook", payerr.InvalidWebhook("moyasar", "bad"), payerr.CodeInvalidWebhook, 403},
		{"gateway api", payerr.GatewayAPI("paypal", "boom", nil), payerr.CodeGatewayAPIError, 502},
		{"card declined", payerr.CardDeclined("stripe", "declined", nil), payerr.CodeCardDeclined, 402},
		{"insufficient funds", payerr.InsufficientFunds("stripe", "empty", nil), payerr.CodeInsufficientFunds, 402},
		{"authentication", payerr.Authentication("tamara", "401", nil), payerr.CodeAuthenticationFailed, 401},
		{"rate limit", payerr.RateLimit("stripe", "slow down", nil), payerr.CodeRateLimitExceeded, 429},
		{"invalid request", payerr.InvalidRequest("paypal", "bad params", nil), payerr.CodeInvalidRequest, 400},
		{"network", payerr.Network("tabby", errors.New("refused")), payerr.CodeNetworkError, 503},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
		})
	}
}

func TestErrorFormatIncludesGateway(t *testing.T) {
	err := payerr.GatewayAPI("moyasar", "boom", nil)
	assert.Equal(t, "GATEWAY_API_ERROR [moyasar]: boom", err.Error())

	assert.Equal(t, "PAYMENT_ABORTED: nope", payerr.Aborted("nope").Error())
}

func TestAbortedDefaultsReason(t *testing.T) {
	assert.Equal(t, "payment aborted by hook", payerr.Aborted("").Message)
}

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	inner := payerr.CardDeclined("stripe", "declined", nil)
	wrapped := fmt.Errorf("operation failed: %w", inner)

	pe, ok := payerr.As(wrapped)
	require.True(t, ok)
	assert.Equal(t, payerr.CodeCardDeclined, pe.Code)

	_, ok = payerr.As(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsCode(t *testing.T) {
	err := payerr.RateLimit("stripe", "slow down", nil)
	assert.True(t, payerr.IsCode(err, payerr.CodeRateLimitExceeded))
	assert.False(t, payerr.IsCode(err, payerr.CodeCardDeclined))
	assert.False(t, payerr.IsCode(nil, payerr.CodeCardDeclined))
}

func TestNetworkUnwrapsToCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := payerr.Network("paypal", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "connection refused", err.Message)
}

func TestRetryable(t *testing.T) {
	assert.True(t, payerr.Retryable(payerr.Network("paypal", nil)))
	assert.True(t, payerr.Retryable(payerr.RateLimit("paypal", "throttled", nil)))
	// Provider API errors map to 502 and count as retryable.
	assert.True(t, payerr.Retryable(payerr.GatewayAPI("paypal", "boom", nil)))

	assert.False(t, payerr.Retryable(payerr.CardDeclined("stripe", "declined", nil)))
	assert.False(t, payerr.Retryable(payerr.InvalidRequest("stripe", "bad", nil)))
	assert.False(t, payerr.Retryable(errors.New("plain")))
}
