package ecommerce

import (
	"errors"
	"time"

	"github.com/storesync/backend/internal/infrastructure/config"
)

const (
	// DefaultAPIVersion is the Admin REST API version requested
	DefaultAPIVersion = "2023-10"

	// AccessTokenHeader carries the per-tenant access token
	AccessTokenHeader = "X-Shopify-Access-Token"

	// maxResponseSize is the maximum accepted response body (10MB)
	maxResponseSize = 10 * 1024 * 1024

	// maxPageSize is the largest page the Admin API serves
	maxPageSize = 250
)

// Errors for Shopify configuration
var (
	ErrShopifyConfigInvalidPageSize = errors.New("shopify: page size must be between 1 and 250")
	ErrShopifyConfigInvalidMaxPages = errors.New("shopify: max pages must be positive")
	ErrShopifyConfigInvalidRetries  = errors.New("shopify: retry attempts must be positive")
)

// ShopifyConfig holds client settings shared by every tenant connection
type ShopifyConfig struct {
	APIVersion string
	// Scheme is "https" in production; tests point it at plain HTTP servers
	Scheme string

	PageSize  int
	MaxPages  int
	PageDelay time.Duration

	RetryAfterFallback time.Duration
	MaxRetryAttempts   int
	MaxRetryElapsed    time.Duration

	RequestTimeout time.Duration

	// RequestsPerSecond paces each connection; 0 disables pacing
	RequestsPerSecond float64
	Burst             int
}

// DefaultShopifyConfig returns the production defaults
func DefaultShopifyConfig() *ShopifyConfig {
	return &ShopifyConfig{
		APIVersion:         DefaultAPIVersion,
		Scheme:             "https",
		PageSize:           maxPageSize,
		MaxPages:           20,
		PageDelay:          500 * time.Millisecond,
		RetryAfterFallback: 2 * time.Second,
		MaxRetryAttempts:   5,
		MaxRetryElapsed:    2 * time.Minute,
		RequestTimeout:     30 * time.Second,
		RequestsPerSecond:  2,
		Burst:              4,
	}
}

// ShopifyConfigFrom converts the application configuration
func ShopifyConfigFrom(cfg config.ShopifyConfig) *ShopifyConfig {
	return &ShopifyConfig{
		APIVersion:         cfg.APIVersion,
		Scheme:             "https",
		PageSize:           cfg.PageSize,
		MaxPages:           cfg.MaxPages,
		PageDelay:          cfg.PageDelay,
		RetryAfterFallback: cfg.RetryAfterFallback,
		MaxRetryAttempts:   cfg.MaxRetryAttempts,
		MaxRetryElapsed:    cfg.MaxRetryElapsed,
		RequestTimeout:     cfg.RequestTimeout,
		RequestsPerSecond:  cfg.RequestsPerSecond,
		Burst:              cfg.Burst,
	}
}

// Validate fills unset fields with defaults and rejects invalid bounds
func (c *ShopifyConfig) Validate() error {
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Scheme == "" {
		c.Scheme = "https"
	}
	if c.PageSize == 0 {
		c.PageSize = maxPageSize
	}
	if c.PageSize < 1 || c.PageSize > maxPageSize {
		return ErrShopifyConfigInvalidPageSize
	}
	if c.MaxPages < 1 {
		return ErrShopifyConfigInvalidMaxPages
	}
	if c.MaxRetryAttempts < 1 {
		return ErrShopifyConfigInvalidRetries
	}
	if c.RetryAfterFallback <= 0 {
		c.RetryAfterFallback = 2 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	return nil
}
