package integration

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Platform Errors
// ---------------------------------------------------------------------------

var (
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")
	ErrPlatformForbidden       = errors.New("integration: platform access forbidden")
	ErrPlatformNotFound        = errors.New("integration: platform resource not found")
	ErrPlatformUnprocessable   = errors.New("integration: platform rejected request")
	ErrInvalidSignature        = errors.New("integration: invalid webhook signature")
	ErrInvalidShopDomain       = errors.New("integration: invalid shop domain")
	ErrInvalidRecord           = errors.New("integration: invalid upstream record")
)

// IsTransient reports whether err is worth retrying on a later run
func IsTransient(err error) bool {
	return errors.Is(err, ErrPlatformUnavailable) || errors.Is(err, ErrPlatformRateLimited)
}

// ---------------------------------------------------------------------------
// Resource
// ---------------------------------------------------------------------------

// Resource is a paginated upstream collection
type Resource string

const (
	ResourceCustomers Resource = "customers"
	ResourceProducts  Resource = "products"
	ResourceOrders    Resource = "orders"
)

// IsValid returns true if the resource is one the engine syncs
func (r Resource) IsValid() bool {
	switch r {
	case ResourceCustomers, ResourceProducts, ResourceOrders:
		return true
	default:
		return false
	}
}

// String returns the string representation of Resource
func (r Resource) String() string {
	return string(r)
}

// SyncSequence returns resources in dependency order. Orders reference
// customers and products, so they come last.
func SyncSequence() []Resource {
	return []Resource{ResourceCustomers, ResourceProducts, ResourceOrders}
}

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

// Throttle paces outbound requests on one connection
type Throttle interface {
	Wait(ctx context.Context) error
}

// Connection is the resolved per-tenant context for upstream calls.
// It is created once per sync (or per webhook registration) and never shared
// across tenants.
type Connection struct {
	TenantID    uuid.UUID
	ShopDomain  string
	BaseURL     string
	AccessToken string
	Throttle    Throttle

	mu     sync.RWMutex
	denied map[Resource]struct{}
}

// NewConnection creates a connection with an empty permission record
func NewConnection(tenantID uuid.UUID, shopDomain, baseURL, accessToken string, throttle Throttle) *Connection {
	return &Connection{
		TenantID:    tenantID,
		ShopDomain:  shopDomain,
		BaseURL:     baseURL,
		AccessToken: accessToken,
		Throttle:    throttle,
		denied:      make(map[Resource]struct{}),
	}
}

// MarkDenied records that the credentials lack scope for a resource
func (c *Connection) MarkDenied(resource Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.denied == nil {
		c.denied = make(map[Resource]struct{})
	}
	c.denied[resource] = struct{}{}
}

// DeniedResources returns denied resources in name order
func (c *Connection) DeniedResources() []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Resource, 0, len(c.denied))
	for r := range c.denied {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Wait blocks on the connection throttle, if any
func (c *Connection) Wait(ctx context.Context) error {
	if c.Throttle == nil {
		return ctx.Err()
	}
	return c.Throttle.Wait(ctx)
}

// ---------------------------------------------------------------------------
// FetchResult
// ---------------------------------------------------------------------------

// FetchResult is the outcome of walking all pages of a resource.
// Records is always usable, even when Err is set.
type FetchResult struct {
	Resource Resource
	Records  []json.RawMessage
	Pages    int
	// Partial is true when a page after the first failed
	Partial bool
	// PageLimitReached is true when the walk stopped at the page ceiling
	PageLimitReached bool
	// Fallback is true when the records came from the unpaginated request
	Fallback bool
	// Err is the error that cut the walk short
	Err error
	// FetchedAt is when the first request of the walk was sent. Upstream
	// aggregates in the records are at least this fresh.
	FetchedAt time.Time
}

// Len returns the number of records fetched
func (r *FetchResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Records)
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// StoreClient is the port for the upstream commerce API
type StoreClient interface {
	// Connect resolves the per-tenant connection
	Connect(tenantID uuid.UUID, shopDomain, accessToken string) (*Connection, error)

	// FetchAll walks every page of a resource. Failures after the first page
	// are reported through FetchResult.Err with the records gathered so far.
	FetchAll(ctx context.Context, conn *Connection, resource Resource) (*FetchResult, error)

	// RegisterWebhook subscribes address to topic upstream. existed is true when
	// the platform reports the subscription is already present.
	RegisterWebhook(ctx context.Context, conn *Connection, topic, address string) (externalID string, existed bool, err error)
}

// RecordDecoder turns raw upstream JSON into normalized records
type RecordDecoder interface {
	DecodeCustomer(raw json.RawMessage) (*ExternalCustomer, error)
	DecodeProduct(raw json.RawMessage) (*ExternalProduct, error)
	DecodeOrder(raw json.RawMessage) (*ExternalOrder, error)
	DecodeCart(raw json.RawMessage) (*ExternalCart, error)
}

// SignatureVerifier authenticates webhook bodies
type SignatureVerifier interface {
	Verify(body []byte, signature string) error
}
