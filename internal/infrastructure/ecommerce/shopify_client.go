package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/storesync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// APIError is a non-2xx response from the Admin API. It unwraps to the
// integration sentinel matching its status code.
type APIError struct {
	StatusCode int
	Method     string
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("shopify: %s %s returned HTTP %d: %s", e.Method, e.Endpoint, e.StatusCode, body)
}

// Unwrap maps the status code to an integration error
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return integration.ErrPlatformRateLimited
	case e.StatusCode == http.StatusUnauthorized:
		return integration.ErrPlatformAuthFailed
	case e.StatusCode == http.StatusForbidden:
		return integration.ErrPlatformForbidden
	case e.StatusCode == http.StatusNotFound:
		return integration.ErrPlatformNotFound
	case e.StatusCode == http.StatusUnprocessableEntity:
		return integration.ErrPlatformUnprocessable
	case e.StatusCode >= 500:
		return integration.ErrPlatformUnavailable
	default:
		return integration.ErrPlatformRequestFailed
	}
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Response is a successful Admin API response with its body fully read
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into v
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	return nil
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ClientOption configures a ShopifyClient
type ClientOption func(*ShopifyClient)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *ShopifyClient) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *ShopifyClient) {
		c.logger = logger
	}
}

// WithSleeper replaces the function used for page delays and 429 back-off
func WithSleeper(sleep Sleeper) ClientOption {
	return func(c *ShopifyClient) {
		c.sleep = sleep
	}
}

// ShopifyClient implements integration.StoreClient against the Admin REST API.
// It holds no per-tenant state; everything tenant specific lives on the
// integration.Connection returned by Connect.
type ShopifyClient struct {
	config     *ShopifyConfig
	httpClient *http.Client
	sleep      Sleeper
	logger     *zap.Logger
}

// NewShopifyClient creates a client with the given configuration
func NewShopifyClient(cfg *ShopifyConfig, opts ...ClientOption) (*ShopifyClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &ShopifyClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		sleep:      sleepContext,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeShopDomain strips the scheme and trailing slashes from a store
// domain ("https://shop.myshopify.com/" becomes "shop.myshopify.com").
func NormalizeShopDomain(domain string) (string, error) {
	d := strings.TrimSpace(domain)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimRight(d, "/")
	if d == "" || strings.ContainsAny(d, "/ \t?#") {
		return "", fmt.Errorf("%w: %q", integration.ErrInvalidShopDomain, domain)
	}
	return d, nil
}

// Connect resolves the per-tenant connection: normalized domain, base URL,
// token and a request throttle owned by this connection alone.
func (c *ShopifyClient) Connect(tenantID uuid.UUID, shopDomain, accessToken string) (*integration.Connection, error) {
	domain, err := NormalizeShopDomain(shopDomain)
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, fmt.Errorf("%w: missing access token", integration.ErrPlatformNotConfigured)
	}

	baseURL := fmt.Sprintf("%s://%s/admin/api/%s/", c.config.Scheme, domain, c.config.APIVersion)

	var throttle integration.Throttle
	if c.config.RequestsPerSecond > 0 {
		throttle = rate.NewLimiter(rate.Limit(c.config.RequestsPerSecond), c.config.Burst)
	}

	return integration.NewConnection(tenantID, domain, baseURL, token, throttle), nil
}

// resolveURL turns an endpoint into an absolute URL. Absolute URLs (Link
// header cursors) are used verbatim but must point at the tenant's own shop,
// since the request carries its access token. Relative endpoints get a .json
// suffix.
func resolveURL(conn *integration.Connection, endpoint string) (string, error) {
	if strings.HasPrefix(endpoint, "https://") || strings.HasPrefix(endpoint, "http://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", fmt.Errorf("%w: malformed cursor url: %v", integration.ErrPlatformInvalidResponse, err)
		}
		if !strings.EqualFold(u.Host, conn.ShopDomain) {
			return "", fmt.Errorf("%w: cursor host %q is not %q", integration.ErrPlatformInvalidResponse, u.Host, conn.ShopDomain)
		}
		return endpoint, nil
	}
	path, query, hasQuery := strings.Cut(strings.TrimLeft(endpoint, "/"), "?")
	if !strings.HasSuffix(path, ".json") {
		path += ".json"
	}
	if hasQuery {
		return conn.BaseURL + path + "?" + query, nil
	}
	return conn.BaseURL + path, nil
}

// retryDelay reads Retry-After (seconds, fractions allowed) or falls back
func retryDelay(header http.Header, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return fallback
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}

// Request performs one logical API call. A 429 is retried after Retry-After,
// bounded by MaxRetryAttempts and MaxRetryElapsed; every other non-2xx status
// is returned as *APIError.
func (c *ShopifyClient) Request(ctx context.Context, conn *integration.Connection, method, endpoint string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("shopify: failed to encode request: %w", err)
		}
	}

	target, err := resolveURL(conn, endpoint)
	if err != nil {
		return nil, err
	}
	started := time.Now()

	for attempt := 1; ; attempt++ {
		if err := conn.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.do(ctx, conn, method, target, payload)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Endpoint: endpoint, Body: string(resp.Body)}
			delay := retryDelay(resp.Header, c.config.RetryAfterFallback)
			if attempt >= c.config.MaxRetryAttempts ||
				(c.config.MaxRetryElapsed > 0 && time.Since(started)+delay > c.config.MaxRetryElapsed) {
				return nil, fmt.Errorf("%w (gave up after %d attempts)", apiErr, attempt)
			}

			c.logger.Warn("Rate limited by upstream, backing off",
				zap.String("tenant_id", conn.TenantID.String()),
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}

		default:
			return nil, &APIError{StatusCode: resp.StatusCode, Method: method, Endpoint: endpoint, Body: string(resp.Body)}
		}
	}
}

// do sends a single HTTP request and reads the (size-limited) body
func (c *ShopifyClient) do(ctx context.Context, conn *integration.Connection, method, target string, payload []byte) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set(AccessTokenHeader, conn.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// ---------------------------------------------------------------------------
// Webhook registration
// ---------------------------------------------------------------------------

type webhookEnvelope struct {
	Webhook webhookPayload `json:"webhook"`
}

type webhookPayload struct {
	ID      flexString `json:"id,omitempty"`
	Topic   string     `json:"topic"`
	Address string     `json:"address"`
	Format  string     `json:"format"`
}

// RegisterWebhook subscribes address to topic. A 422 means the subscription
// already exists upstream and is reported as existed=true without error.
func (c *ShopifyClient) RegisterWebhook(ctx context.Context, conn *integration.Connection, topic, address string) (string, bool, error) {
	resp, err := c.Request(ctx, conn, http.MethodPost, "webhooks.json", webhookEnvelope{
		Webhook: webhookPayload{Topic: topic, Address: address, Format: "json"},
	})
	if err != nil {
		if errors.Is(err, integration.ErrPlatformUnprocessable) {
			return "", true, nil
		}
		return "", false, err
	}

	var created webhookEnvelope
	if err := resp.Decode(&created); err != nil {
		return "", false, err
	}
	return string(created.Webhook.ID), false, nil
}

// Ensure ShopifyClient implements StoreClient
var _ integration.StoreClient = (*ShopifyClient)(nil)
