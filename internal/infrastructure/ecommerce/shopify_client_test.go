package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storesync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type requestLog struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (l *requestLog) add(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, r)
}

func (l *requestLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

func (l *requestLog) at(i int) *http.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests[i]
}

func (l *requestLog) uris() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.requests))
	for i, r := range l.requests {
		out[i] = r.URL.RequestURI()
	}
	return out
}

func testShopifyConfig() *ShopifyConfig {
	cfg := DefaultShopifyConfig()
	cfg.Scheme = "http"
	cfg.RequestsPerSecond = 0
	cfg.PageDelay = 500 * time.Millisecond
	cfg.RetryAfterFallback = 2 * time.Second
	return cfg
}

// newTestShop starts a fake store and returns a connected client
func newTestShop(t *testing.T, cfg *ShopifyConfig, handler http.HandlerFunc) (*ShopifyClient, *integration.Connection, *recordingSleeper, *requestLog) {
	t.Helper()

	log := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	sleeper := &recordingSleeper{}
	client, err := NewShopifyClient(cfg, WithSleeper(sleeper.sleep), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	conn, err := client.Connect(uuid.New(), srv.URL+"/", "shpat_test")
	require.NoError(t, err)
	return client, conn, sleeper, log
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func customersPage(ids ...int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf(`{"id":%d,"email":"c%d@example.com"}`, id, id)
	}
	return `{"customers":[` + strings.Join(parts, ",") + `]}`
}

func recordIDs(t *testing.T, records []json.RawMessage) []string {
	t.Helper()
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = recordID(r)
	}
	return ids
}

// ---------------------------------------------------------------------------
// Config / Connect Tests
// ---------------------------------------------------------------------------

func TestShopifyConfig_Validate(t *testing.T) {
	cfg := &ShopifyConfig{MaxPages: 20, MaxRetryAttempts: 5}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultAPIVersion, cfg.APIVersion)
	assert.Equal(t, "https", cfg.Scheme)
	assert.Equal(t, 250, cfg.PageSize)

	assert.ErrorIs(t, (&ShopifyConfig{MaxPages: 0, MaxRetryAttempts: 1}).Validate(), ErrShopifyConfigInvalidMaxPages)
	assert.ErrorIs(t, (&ShopifyConfig{MaxPages: 1, MaxRetryAttempts: 0}).Validate(), ErrShopifyConfigInvalidRetries)
	assert.ErrorIs(t, (&ShopifyConfig{PageSize: 251, MaxPages: 1, MaxRetryAttempts: 1}).Validate(), ErrShopifyConfigInvalidPageSize)
}

func TestNormalizeShopDomain(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"shop.myshopify.com", "shop.myshopify.com", false},
		{"https://shop.myshopify.com/", "shop.myshopify.com", false},
		{"http://shop.myshopify.com//", "shop.myshopify.com", false},
		{"  shop.myshopify.com  ", "shop.myshopify.com", false},
		{"", "", true},
		{"https://", "", true},
		{"shop.myshopify.com/admin", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeShopDomain(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, integration.ErrInvalidShopDomain)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShopifyClient_Connect(t *testing.T) {
	client, err := NewShopifyClient(DefaultShopifyConfig())
	require.NoError(t, err)

	tenantID := uuid.New()
	conn, err := client.Connect(tenantID, "https://shop.myshopify.com/", " tok ")
	require.NoError(t, err)
	assert.Equal(t, tenantID, conn.TenantID)
	assert.Equal(t, "shop.myshopify.com", conn.ShopDomain)
	assert.Equal(t, "https://shop.myshopify.com/admin/api/2023-10/", conn.BaseURL)
	assert.Equal(t, "tok", conn.AccessToken)
	assert.NotNil(t, conn.Throttle)

	_, err = client.Connect(tenantID, "shop.myshopify.com", "")
	assert.ErrorIs(t, err, integration.ErrPlatformNotConfigured)
}

func TestShopifyClient_ConnectionsDoNotShareThrottle(t *testing.T) {
	client, err := NewShopifyClient(DefaultShopifyConfig())
	require.NoError(t, err)

	a, err := client.Connect(uuid.New(), "a.myshopify.com", "a")
	require.NoError(t, err)
	b, err := client.Connect(uuid.New(), "b.myshopify.com", "b")
	require.NoError(t, err)
	assert.NotSame(t, a.Throttle, b.Throttle)
}

func TestResolveURL(t *testing.T) {
	conn := integration.NewConnection(uuid.New(), "s", "https://s/admin/api/2023-10/", "t", nil)

	tests := []struct {
		endpoint string
		want     string
	}{
		{"customers", "https://s/admin/api/2023-10/customers.json"},
		{"/customers.json", "https://s/admin/api/2023-10/customers.json"},
		{"customers?limit=250", "https://s/admin/api/2023-10/customers.json?limit=250"},
		{"customers.json?limit=5&page=2", "https://s/admin/api/2023-10/customers.json?limit=5&page=2"},
		{"https://s/admin/api/2023-10/customers.json?page_info=abc", "https://s/admin/api/2023-10/customers.json?page_info=abc"},
		{"https://S/admin/api/2023-10/customers.json?page_info=abc", "https://S/admin/api/2023-10/customers.json?page_info=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := resolveURL(conn, tt.endpoint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveURL_RejectsForeignCursorHost(t *testing.T) {
	conn := integration.NewConnection(uuid.New(), "s.myshopify.com", "https://s.myshopify.com/admin/api/2023-10/", "t", nil)

	for _, endpoint := range []string{
		"https://evil.example.com/admin/api/2023-10/customers.json?page_info=abc",
		"https://s.myshopify.com.evil.example.com/customers.json",
		"http://other.myshopify.com/admin/api/2023-10/customers.json",
	} {
		t.Run(endpoint, func(t *testing.T) {
			_, err := resolveURL(conn, endpoint)
			assert.ErrorIs(t, err, integration.ErrPlatformInvalidResponse)
		})
	}
}

// ---------------------------------------------------------------------------
// Request Tests
// ---------------------------------------------------------------------------

func TestShopifyClient_Request_SendsToken(t *testing.T) {
	client, conn, _, log := newTestShop(t, testShopifyConfig(), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"shop":{}}`)
	})

	resp, err := client.Request(context.Background(), conn, http.MethodGet, "/shop", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, 1, log.count())
	req := log.at(0)
	assert.Equal(t, "shpat_test", req.Header.Get(AccessTokenHeader))
	assert.Equal(t, "/admin/api/2023-10/shop.json", req.URL.Path)
}

func TestShopifyClient_Request_RetriesAfter429(t *testing.T) {
	var calls atomic.Int32
	client, conn, sleeper, log := newTestShop(t, testShopifyConfig(), func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.Header().Set("Retry-After", "1.5")
			writeJSON(w, http.StatusTooManyRequests, `{"errors":"Exceeded"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	})

	_, err := client.Request(context.Background(), conn, http.MethodGet, "shop", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, log.count())
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, sleeper.recorded())
}

func TestShopifyClient_Request_429IsBounded(t *testing.T) {
	cfg := testShopifyConfig()
	cfg.MaxRetryAttempts = 3
	client, conn, sleeper, log := newTestShop(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, `{}`)
	})

	_, err := client.Request(context.Background(), conn, http.MethodGet, "shop", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrPlatformRateLimited)
	assert.True(t, integration.IsTransient(err))
	assert.Equal(t, 3, log.count())
	// no Retry-After header: fallback delay between attempts
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeper.recorded())
}

func TestShopifyClient_Request_429ElapsedBudget(t *testing.T) {
	cfg := testShopifyConfig()
	cfg.MaxRetryAttempts = 10
	cfg.MaxRetryElapsed = time.Second
	client, conn, sleeper, log := newTestShop(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		writeJSON(w, http.StatusTooManyRequests, `{}`)
	})

	_, err := client.Request(context.Background(), conn, http.MethodGet, "shop", nil)
	assert.ErrorIs(t, err, integration.ErrPlatformRateLimited)
	assert.Equal(t, 1, log.count())
	assert.Empty(t, sleeper.recorded())
}

func TestShopifyClient_Request_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, integration.ErrPlatformAuthFailed},
		{http.StatusForbidden, integration.ErrPlatformForbidden},
		{http.StatusNotFound, integration.ErrPlatformNotFound},
		{http.StatusUnprocessableEntity, integration.ErrPlatformUnprocessable},
		{http.StatusBadGateway, integration.ErrPlatformUnavailable},
		{http.StatusBadRequest, integration.ErrPlatformRequestFailed},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, conn, _, _ := newTestShop(t, testShopifyConfig(), func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, `{"errors":"nope"}`)
			})

			_, err := client.Request(context.Background(), conn, http.MethodGet, "shop", nil)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Contains(t, apiErr.Body, "nope")
		})
	}
}

func TestShopifyClient_Request_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client, err := NewShopifyClient(testShopifyConfig())
	require.NoError(t, err)
	conn, err := client.Connect(uuid.New(), addr, "tok")
	require.NoError(t, err)

	_, err = client.Request(context.Background(), conn, http.MethodGet, "shop", nil)
	assert.ErrorIs(t, err, integration.ErrPlatformUnavailable)
}

// ---------------------------------------------------------------------------
// Webhook Registration Tests
// ---------------------------------------------------------------------------

func TestShopifyClient_RegisterWebhook(t *testing.T) {
	var received webhookEnvelope
	client, conn, _, log := newTestShop(t, testShopifyConfig(), func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		writeJSON(w, http.StatusCreated, `{"webhook":{"id":4759306,"topic":"orders/create"}}`)
	})

	id, existed, err := client.RegisterWebhook(context.Background(), conn, "orders/create", "https://app.example.com/webhook/t1")
	require.NoError(t, err)
	assert.Equal(t, "4759306", id)
	assert.False(t, existed)

	require.Equal(t, 1, log.count())
	assert.Equal(t, http.MethodPost, log.at(0).Method)
	assert.Equal(t, "/admin/api/2023-10/webhooks.json", log.at(0).URL.Path)
	assert.Equal(t, "orders/create", received.Webhook.Topic)
	assert.Equal(t, "https://app.example.com/webhook/t1", received.Webhook.Address)
	assert.Equal(t, "json", received.Webhook.Format)
}

func TestShopifyClient_RegisterWebhook_AlreadyExists(t *testing.T) {
	client, conn, _, _ := newTestShop(t, testShopifyConfig(), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"errors":{"address":["for this topic has already been taken"]}}`)
	})

	id, existed, err := client.RegisterWebhook(context.Background(), conn, "orders/create", "https://app.example.com/webhook/t1")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Empty(t, id)
}

func TestShopifyClient_RegisterWebhook_Forbidden(t *testing.T) {
	client, conn, _, _ := newTestShop(t, testShopifyConfig(), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{}`)
	})

	_, existed, err := client.RegisterWebhook(context.Background(), conn, "orders/create", "https://app.example.com/webhook/t1")
	assert.ErrorIs(t, err, integration.ErrPlatformForbidden)
	assert.False(t, existed)
}
