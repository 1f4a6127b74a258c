// Package config loads client configuration from a .env file and the
// environment. A gateway is configured when its primary credential is set;
// the rest of its settings are read alongside it.
package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"paymux"
	"paymux/gateways/moyasar"
	"paymux/gateways/paymob"
	"paymux/gateways/paypal"
	"paymux/gateways/stripe"
	"paymux/gateways/tabby"
	"paymux/gateways/tamara"
)

// Config is the full runtime configuration: the SDK client config plus the
// webhook server settings.
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Client paymux.Config
}

// ServerConfig configures the webhook endpoint server.
type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

// RedisConfig configures the webhook dedup store. An empty Addr selects the
// in-memory fallback.
type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("PAYPAL_SANDBOX", false)
	viper.SetDefault("TAMARA_SANDBOX", false)
	viper.SetDefault("PAYMOB_REGION", "eg")

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASSWORD"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Client: paymux.Config{
			DefaultGateway: viper.GetString("PAYMENT_DEFAULT_GATEWAY"),
		},
	}

	if key := viper.GetString("MOYASAR_SECRET_KEY"); key != "" {
		cfg.Client.Moyasar = &moyasar.Config{
			SecretKey:      key,
			PublishableKey: viper.GetString("MOYASAR_PUBLISHABLE_KEY"),
			WebhookSecret:  viper.GetString("MOYASAR_WEBHOOK_SECRET"),
		}
	}
	if id := viper.GetString("PAYPAL_CLIENT_ID"); id != "" {
		cfg.Client.PayPal = &paypal.Config{
			ClientID:     id,
			ClientSecret: viper.GetString("PAYPAL_CLIENT_SECRET"),
			Sandbox:      viper.GetBool("PAYPAL_SANDBOX"),
			WebhookID:    viper.GetString("PAYPAL_WEBHOOK_ID"),
		}
	}
	if key := viper.GetString("PAYMOB_SECRET_KEY"); key != "" {
		cfg.Client.Paymob = &paymob.Config{
			SecretKey:     key,
			PublicKey:     viper.GetString("PAYMOB_PUBLIC_KEY"),
			APIKey:        viper.GetString("PAYMOB_API_KEY"),
			IntegrationID: viper.GetString("PAYMOB_INTEGRATION_ID"),
			HMACSecret:    viper.GetString("PAYMOB_HMAC_SECRET"),
			Region:        paymob.Region(viper.GetString("PAYMOB_REGION")),
		}
	}
	if key := viper.GetString("STRIPE_SECRET_KEY"); key != "" {
		cfg.Client.Stripe = &stripe.Config{
			SecretKey:     key,
			WebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
			APIVersion:    viper.GetString("STRIPE_API_VERSION"),
		}
	}
	if token := viper.GetString("TAMARA_API_TOKEN"); token != "" {
		cfg.Client.Tamara = &tamara.Config{
			APIToken:          token,
			NotificationToken: viper.GetString("TAMARA_NOTIFICATION_TOKEN"),
			Sandbox:           viper.GetBool("TAMARA_SANDBOX"),
		}
	}
	if key := viper.GetString("TABBY_SECRET_KEY"); key != "" {
		cfg.Client.Tabby = &tabby.Config{
			SecretKey:         key,
			MerchantCode:      viper.GetString("TABBY_MERCHANT_CODE"),
			WebhookAuthHeader: viper.GetString("TABBY_WEBHOOK_AUTH_HEADER"),
		}
	}

	if cfg.Client.Moyasar == nil && cfg.Client.PayPal == nil && cfg.Client.Paymob == nil &&
		cfg.Client.Stripe == nil && cfg.Client.Tamara == nil && cfg.Client.Tabby == nil {
		log.Println("WARNING: no payment gateway credentials are set")
	}

	return cfg, nil
}
