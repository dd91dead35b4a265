// Package stripe implements the stage PaymentLinker with Stripe products,
// prices and payment links.
package stripe

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const DefaultCurrency = "usd"

// Config configures a Client.
type Config struct {
	APIKey string
	// Currency for created prices; empty means DefaultCurrency.
	Currency string
	// BaseURL overrides the Stripe API endpoint in tests.
	BaseURL string
	// MaxNetworkRetries is handed to the SDK, which retries connection
	// errors, 409s and 5xx with backoff and idempotency keys.
	MaxNetworkRetries int64

	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client creates payment links.
type Client struct {
	sc       *client.API
	currency string
	logger   zerolog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	logger := cfg.Logger.With().Str("client", "stripe").Logger()

	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     leveledLogger{logger},
		HTTPClient:        cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	currency := cfg.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	return &Client{
		sc: client.New(cfg.APIKey, &stripe.Backends{
			API:     backend,
			Connect: backend,
			Uploads: backend,
		}),
		currency: currency,
		logger:   logger,
	}
}

// CreatePaymentLink creates a product with a one-off price and returns the
// URL of a payment link selling one unit of it.
func (c *Client) CreatePaymentLink(ctx context.Context, productName string, priceMinor int64) (string, error) {
	productParams := &stripe.ProductParams{Name: stripe.String(productName)}
	productParams.Context = ctx
	product, err := c.sc.Products.New(productParams)
	if err != nil {
		return "", fmt.Errorf("stripe create product: %w", err)
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(product.ID),
		UnitAmount: stripe.Int64(priceMinor),
		Currency:   stripe.String(c.currency),
	}
	priceParams.Context = ctx
	price, err := c.sc.Prices.New(priceParams)
	if err != nil {
		return "", fmt.Errorf("stripe create price: %w", err)
	}

	linkParams := &stripe.PaymentLinkParams{
		LineItems: []*stripe.PaymentLinkLineItemParams{
			{Price: stripe.String(price.ID), Quantity: stripe.Int64(1)},
		},
	}
	linkParams.Context = ctx
	link, err := c.sc.PaymentLinks.New(linkParams)
	if err != nil {
		return "", fmt.Errorf("stripe create payment link: %w", err)
	}

	c.logger.Info().
		Str("product", product.ID).
		Str("price", price.ID).
		Str("url", link.URL).
		Msg("payment link created")
	return link.URL, nil
}

// leveledLogger routes SDK logs into zerolog.
type leveledLogger struct{ l zerolog.Logger }

func (z leveledLogger) Debugf(format string, v ...interface{}) { z.l.Debug().Msgf(format, v...) }
func (z leveledLogger) Infof(format string, v ...interface{})  { z.l.Debug().Msgf(format, v...) }
func (z leveledLogger) Warnf(format string, v ...interface{})  { z.l.Warn().Msgf(format, v...) }
func (z leveledLogger) Errorf(format string, v ...interface{}) { z.l.Error().Msgf(format, v...) }
