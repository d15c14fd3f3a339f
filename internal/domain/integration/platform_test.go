package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// Resource Tests
// ---------------------------------------------------------------------------

func TestResource_IsValid(t *testing.T) {
	tests := []struct {
		resource Resource
		expected bool
	}{
		{ResourceCustomers, true},
		{ResourceProducts, true},
		{ResourceOrders, true},
		{Resource("webhooks"), false},
		{Resource(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.resource), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.resource.IsValid())
		})
	}
}

func TestSyncSequence_OrdersLast(t *testing.T) {
	seq := SyncSequence()
	assert.Equal(t, []Resource{ResourceCustomers, ResourceProducts, ResourceOrders}, seq)
}

// ---------------------------------------------------------------------------
// Connection Tests
// ---------------------------------------------------------------------------

type countingThrottle struct {
	mu    sync.Mutex
	calls int
}

func (c *countingThrottle) Wait(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return ctx.Err()
}

func TestConnection_Permissions(t *testing.T) {
	conn := NewConnection(uuid.New(), "shop.myshopify.com", "https://shop.myshopify.com/admin/api/2023-10/", "tok", nil)

	assert.Empty(t, conn.DeniedResources())
	conn.MarkDenied(ResourceOrders)
	conn.MarkDenied(ResourceCustomers)
	conn.MarkDenied(ResourceOrders)

	assert.Equal(t, []Resource{ResourceCustomers, ResourceOrders}, conn.DeniedResources())
}

func TestConnection_PermissionsAreNotShared(t *testing.T) {
	a := NewConnection(uuid.New(), "a.myshopify.com", "", "a", nil)
	b := NewConnection(uuid.New(), "b.myshopify.com", "", "b", nil)

	a.MarkDenied(ResourceProducts)

	assert.Equal(t, []Resource{ResourceProducts}, a.DeniedResources())
	assert.Empty(t, b.DeniedResources())
}

func TestConnection_Wait(t *testing.T) {
	throttle := &countingThrottle{}
	conn := NewConnection(uuid.New(), "s", "", "t", throttle)

	assert.NoError(t, conn.Wait(context.Background()))
	assert.NoError(t, conn.Wait(context.Background()))
	assert.Equal(t, 2, throttle.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bare := NewConnection(uuid.New(), "s", "", "t", nil)
	assert.ErrorIs(t, bare.Wait(ctx), context.Canceled)
}

// ---------------------------------------------------------------------------
// Error / Record Tests
// ---------------------------------------------------------------------------

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("%w: HTTP 503", ErrPlatformUnavailable)))
	assert.True(t, IsTransient(ErrPlatformRateLimited))
	assert.False(t, IsTransient(ErrPlatformForbidden))
	assert.False(t, IsTransient(errors.New("boom")))
}

func TestFetchResult_Len(t *testing.T) {
	var nilResult *FetchResult
	assert.Equal(t, 0, nilResult.Len())
}

func TestExternalRecords(t *testing.T) {
	o := &ExternalOrder{ID: "1"}
	assert.False(t, o.HasCustomer())
	o.Customer = &ExternalCustomer{}
	assert.False(t, o.HasCustomer())
	o.Customer.ID = "c1"
	assert.True(t, o.HasCustomer())

	assert.False(t, ExternalLineItem{ID: "l1"}.HasProduct())
	assert.True(t, ExternalLineItem{ID: "l1", ProductID: "p1"}.HasProduct())

	cart := &ExternalCart{ID: "cart"}
	assert.False(t, cart.IsAbandoned())
	cart.AbandonedCheckoutURL = "https://shop/checkouts/1"
	assert.True(t, cart.IsAbandoned())
}
