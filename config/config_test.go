package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymux/config"
	"paymux/gateways/paymob"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
}

func TestLoadGatewaySections(t *testing.T) {
	t.Setenv("MOYASAR_SECRET_KEY", "sk_moyasar")
	t.Setenv("MOYASAR_WEBHOOK_SECRET", "whsec")
	t.Setenv("PAYPAL_CLIENT_ID", "pp-client")
	t.Setenv("PAYPAL_CLIENT_SECRET", "pp-secret")
	t.Setenv("PAYPAL_SANDBOX", "true")
	t.Setenv("PAYMOB_SECRET_KEY", "sk_paymob")
	t.Setenv("PAYMOB_REGION", "ksa")
	t.Setenv("STRIPE_SECRET_KEY", "sk_stripe")
	t.Setenv("TAMARA_API_TOKEN", "tamara-token")
	t.Setenv("TABBY_SECRET_KEY", "sk_tabby")
	t.Setenv("PAYMENT_DEFAULT_GATEWAY", "stripe")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "stripe", cfg.Client.DefaultGateway)

	require.NotNil(t, cfg.Client.Moyasar)
	assert.Equal(t, "sk_moyasar", cfg.Client.Moyasar.SecretKey)
	assert.Equal(t, "whsec", cfg.Client.Moyasar.WebhookSecret)

	require.NotNil(t, cfg.Client.PayPal)
	assert.Equal(t, "pp-client", cfg.Client.PayPal.ClientID)
	assert.True(t, cfg.Client.PayPal.Sandbox)

	require.NotNil(t, cfg.Client.Paymob)
	assert.Equal(t, paymob.RegionKSA, cfg.Client.Paymob.Region)

	require.NotNil(t, cfg.Client.Stripe)
	require.NotNil(t, cfg.Client.Tamara)
	require.NotNil(t, cfg.Client.Tabby)
}

func TestLoadSkipsUnconfiguredGateways(t *testing.T) {
	t.Setenv("MOYASAR_SECRET_KEY", "sk_moyasar")
	// Clear what other tests may have left in the process environment.
	t.Setenv("PAYPAL_CLIENT_ID", "")
	t.Setenv("PAYMOB_SECRET_KEY", "")
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("TAMARA_API_TOKEN", "")
	t.Setenv("TABBY_SECRET_KEY", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.NotNil(t, cfg.Client.Moyasar)
	assert.Nil(t, cfg.Client.PayPal)
	assert.Nil(t, cfg.Client.Paymob)
	assert.Nil(t, cfg.Client.Stripe)
	assert.Nil(t, cfg.Client.Tamara)
	assert.Nil(t, cfg.Client.Tabby)
}
