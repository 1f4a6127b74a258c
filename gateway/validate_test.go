package gateway_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymux/gateway"
	"paymux/payerr"
)

func TestValidateParamsAcceptsValidCreateParams(t *testing.T) {
	err := gateway.ValidateParams(gateway.CreatePaymentParams{
		Amount:      100,
		Currency:    "SAR",
		CallbackURL: "https://example.com/cb",
	})
	assert.NoError(t, err)
}

func TestValidateParamsRejectsMissingFields(t *testing.T) {
	err := gateway.ValidateParams(gateway.CreatePaymentParams{})
	require.Error(t, err)

	pe, ok := payerr.As(err)
	require.True(t, ok)
	assert.Equal(t, payerr.CodeInvalidRequest, pe.Code)

	fields := make([]string, 0, len(pe.Fields))
	for _, f := range pe.Fields {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "Amount")
	assert.Contains(t, fields, "Currency")
}

func TestValidateParamsRejectsNegativeAmount(t *testing.T) {
	err := gateway.ValidateParams(gateway.CreatePaymentParams{Amount: -5, Currency: "SAR"})
	assert.True(t, payerr.IsCode(err, payerr.CodeInvalidRequest))
}

func TestValidateParamsRejectsBadCurrencyLength(t *testing.T) {
	err := gateway.ValidateParams(gateway.CreatePaymentParams{Amount: 10, Currency: "SAUDI"})
	assert.True(t, payerr.IsCode(err, payerr.CodeInvalidRequest))
}

func TestValidateParamsUnwrapsPointers(t *testing.T) {
	err := gateway.ValidateParams(&gateway.RefundParams{})
	assert.True(t, payerr.IsCode(err, payerr.CodeInvalidRequest))

	var nilParams *gateway.RefundParams
	assert.NoError(t, gateway.ValidateParams(nilParams))
}

func TestValidateParamsPassesNonStructs(t *testing.T) {
	assert.NoError(t, gateway.ValidateParams(nil))
	assert.NoError(t, gateway.ValidateParams("just a string"))
	assert.NoError(t, gateway.ValidateParams(42))
}

func TestValidateParamsCustomValidations(t *testing.T) {
	type cardParams struct {
		Number string `validate:"cardnumber"`
	}
	assert.NoError(t, gateway.ValidateParams(cardParams{Number: "4111111111111111"}))
	assert.Error(t, gateway.ValidateParams(cardParams{Number: "not-a-card"}))

	type phoneParams struct {
		Phone string `validate:"ksamobile"`
	}
	assert.NoError(t, gateway.ValidateParams(phoneParams{Phone: "+966512345678"}))
	assert.NoError(t, gateway.ValidateParams(phoneParams{Phone: "0512345678"}))
	assert.Error(t, gateway.ValidateParams(phoneParams{Phone: "12345"}))

	type amountParams struct {
		Amount string `validate:"decimalamount"`
	}
	assert.NoError(t, gateway.ValidateParams(amountParams{Amount: "100.00"}))
	assert.NoError(t, gateway.ValidateParams(amountParams{Amount: "5"}))
	assert.Error(t, gateway.ValidateParams(amountParams{Amount: "10.999"}))
}
