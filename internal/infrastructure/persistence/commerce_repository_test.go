package persistence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// setupCommerceTestDB creates an in-memory SQLite database with every
// commerce table migrated. A single connection keeps the database alive
// across statements.
func setupCommerceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func newTestCustomer(t *testing.T, tenantID uuid.UUID, externalID string) *commerce.Customer {
	t.Helper()
	c, err := commerce.NewCustomer(tenantID, externalID)
	require.NoError(t, err)
	return c
}

// ---------------------------------------------------------------------------
// Tenants
// ---------------------------------------------------------------------------

func TestGormTenantRepository(t *testing.T) {
	ctx := context.Background()
	db := setupCommerceTestDB(t)
	repo := NewGormTenantRepository(db)

	connected := commerce.NewTenant("Connected", "a.myshopify.com", "shpat_a")
	noToken := commerce.NewTenant("No token", "b.myshopify.com", "")
	noDomain := commerce.NewTenant("No domain", "", "shpat_c")
	for _, tn := range []*commerce.Tenant{connected, noToken, noDomain} {
		require.NoError(t, repo.Save(ctx, tn))
	}

	t.Run("FindByID", func(t *testing.T) {
		found, err := repo.FindByID(ctx, connected.ID)
		require.NoError(t, err)
		assert.Equal(t, "a.myshopify.com", found.ShopDomain)
		assert.Equal(t, "shpat_a", found.AccessToken)
	})

	t.Run("FindByID returns ErrNotFound", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("FindWithCredentials skips tenants without token or domain", func(t *testing.T) {
		tenants, err := repo.FindWithCredentials(ctx)
		require.NoError(t, err)
		require.Len(t, tenants, 1)
		assert.Equal(t, connected.ID, tenants[0].ID)
	})

	t.Run("Save updates the token", func(t *testing.T) {
		noToken.RotateToken("shpat_b")
		require.NoError(t, repo.Save(ctx, noToken))

		tenants, err := repo.FindWithCredentials(ctx)
		require.NoError(t, err)
		assert.Len(t, tenants, 2)
	})
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

func TestGormCustomerRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("inserts then updates by external id", func(t *testing.T) {
		repo := NewGormCustomerRepository(setupCommerceTestDB(t))

		first := newTestCustomer(t, tenantID, "1001")
		first.SetIdentity("ann@example.com", "Ann", "Lee")
		stored, created, err := repo.Upsert(ctx, first, commerce.CustomerModeIdentity)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, first.ID, stored.ID)

		second := newTestCustomer(t, tenantID, "1001")
		second.SetIdentity("ann.lee@example.com", "Ann", "Lee")
		stored, created, err = repo.Upsert(ctx, second, commerce.CustomerModeIdentity)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, stored.ID)
		assert.Equal(t, "ann.lee@example.com", stored.Email)

		count, err := repo.CountByTenant(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("identity mode keeps aggregates", func(t *testing.T) {
		repo := NewGormCustomerRepository(setupCommerceTestDB(t))

		full := newTestCustomer(t, tenantID, "2002")
		full.OverwriteAggregates(decimal.NewFromInt(300), 3, time.Now())
		_, _, err := repo.Upsert(ctx, full, commerce.CustomerModeFull)
		require.NoError(t, err)

		identity := newTestCustomer(t, tenantID, "2002")
		identity.SetIdentity("new@example.com", "New", "Name")
		stored, _, err := repo.Upsert(ctx, identity, commerce.CustomerModeIdentity)
		require.NoError(t, err)

		assert.Equal(t, "new@example.com", stored.Email)
		assert.True(t, stored.TotalSpent.Equal(decimal.NewFromInt(300)))
		assert.Equal(t, 3, stored.OrdersCount)
		assert.NotNil(t, stored.AggregatesSyncedAt)
	})

	t.Run("full mode overwrites aggregates", func(t *testing.T) {
		repo := NewGormCustomerRepository(setupCommerceTestDB(t))

		c := newTestCustomer(t, tenantID, "3003")
		c.OverwriteAggregates(decimal.NewFromInt(10), 1, time.Now())
		_, _, err := repo.Upsert(ctx, c, commerce.CustomerModeFull)
		require.NoError(t, err)

		again := newTestCustomer(t, tenantID, "3003")
		again.OverwriteAggregates(decimal.NewFromInt(50), 2, time.Now())
		stored, _, err := repo.Upsert(ctx, again, commerce.CustomerModeFull)
		require.NoError(t, err)
		assert.True(t, stored.TotalSpent.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, 2, stored.OrdersCount)
	})

	t.Run("same external id in two tenants stays separate", func(t *testing.T) {
		repo := NewGormCustomerRepository(setupCommerceTestDB(t))
		otherTenant := uuid.New()

		_, createdA, err := repo.Upsert(ctx, newTestCustomer(t, tenantID, "4004"), commerce.CustomerModeIdentity)
		require.NoError(t, err)
		_, createdB, err := repo.Upsert(ctx, newTestCustomer(t, otherTenant, "4004"), commerce.CustomerModeIdentity)
		require.NoError(t, err)

		assert.True(t, createdA)
		assert.True(t, createdB)
	})
}

func TestGormCustomerRepository_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := NewGormCustomerRepository(setupCommerceTestDB(t))

	original := newTestCustomer(t, tenantID, "5005")
	original.SetIdentity("orig@example.com", "Orig", "Inal")
	stored, created, err := repo.CreateIfAbsent(ctx, original)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, original.ID, stored.ID)

	stub := newTestCustomer(t, tenantID, "5005")
	stub.SetIdentity("stub@example.com", "", "")
	stored, created, err = repo.CreateIfAbsent(ctx, stub)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, original.ID, stored.ID)
	assert.Equal(t, "orig@example.com", stored.Email)
}

func TestGormCustomerRepository_IncrementAggregates(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := NewGormCustomerRepository(setupCommerceTestDB(t))

	c := newTestCustomer(t, tenantID, "6006")
	_, _, err := repo.Upsert(ctx, c, commerce.CustomerModeIdentity)
	require.NoError(t, err)

	placedAt := time.Now()
	counted, err := repo.IncrementAggregates(ctx, tenantID, c.ID, decimal.NewFromFloat(100.5), placedAt)
	require.NoError(t, err)
	assert.True(t, counted)
	counted, err = repo.IncrementAggregates(ctx, tenantID, c.ID, decimal.NewFromFloat(25.25), placedAt)
	require.NoError(t, err)
	assert.True(t, counted)

	stored, err := repo.FindByID(ctx, tenantID, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalSpent.Equal(decimal.NewFromFloat(125.75)), stored.TotalSpent.String())
	assert.Equal(t, 2, stored.OrdersCount)

	t.Run("wrong tenant is not found", func(t *testing.T) {
		_, err := repo.IncrementAggregates(ctx, uuid.New(), c.ID, decimal.NewFromInt(1), placedAt)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("nil tenant is rejected", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.Nil, c.ID)
		assert.Error(t, err)
	})
}

func TestGormCustomerRepository_IncrementAggregatesRespectsSnapshot(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := NewGormCustomerRepository(setupCommerceTestDB(t))

	snapshotAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCustomer(t, tenantID, "7007")
	c.OverwriteAggregates(decimal.NewFromInt(50), 2, snapshotAt)
	_, _, err := repo.Upsert(ctx, c, commerce.CustomerModeFull)
	require.NoError(t, err)

	counted, err := repo.IncrementAggregates(ctx, tenantID, c.ID, decimal.NewFromInt(10), snapshotAt.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, counted, "order placed before the snapshot is already included")

	counted, err = repo.IncrementAggregates(ctx, tenantID, c.ID, decimal.NewFromInt(10), snapshotAt)
	require.NoError(t, err)
	assert.False(t, counted, "order placed at the snapshot is already included")

	counted, err = repo.IncrementAggregates(ctx, tenantID, c.ID, decimal.NewFromInt(10), snapshotAt.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, counted)

	stored, err := repo.FindByID(ctx, tenantID, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalSpent.Equal(decimal.NewFromInt(60)), stored.TotalSpent.String())
	assert.Equal(t, 3, stored.OrdersCount)
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

func TestGormProductRepository(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := NewGormProductRepository(setupCommerceTestDB(t))

	p, err := commerce.NewProduct(tenantID, "p-1", "Mug", decimal.NewFromInt(12))
	require.NoError(t, err)
	_, created, err := repo.Upsert(ctx, p)
	require.NoError(t, err)
	assert.True(t, created)

	t.Run("stub never overwrites", func(t *testing.T) {
		stub, err := commerce.NewProduct(tenantID, "p-1", "Line item title", decimal.NewFromInt(99))
		require.NoError(t, err)
		stored, created, err := repo.CreateIfAbsent(ctx, stub)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, p.ID, stored.ID)
		assert.Equal(t, "Mug", stored.Title)
	})

	t.Run("upsert overwrites title and price", func(t *testing.T) {
		next, err := commerce.NewProduct(tenantID, "p-1", "Big Mug", decimal.NewFromInt(15))
		require.NoError(t, err)
		stored, created, err := repo.Upsert(ctx, next)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, p.ID, stored.ID)
		assert.Equal(t, "Big Mug", stored.Title)
		assert.True(t, stored.Price.Equal(decimal.NewFromInt(15)))
	})

	count, err := repo.CountByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// ---------------------------------------------------------------------------
// Orders and items
// ---------------------------------------------------------------------------

func TestGormOrderRepository(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	db := setupCommerceTestDB(t)
	repo := NewGormOrderRepository(db)

	customer := newTestCustomer(t, tenantID, "c-1")
	_, _, err := NewGormCustomerRepository(db).Upsert(ctx, customer, commerce.CustomerModeIdentity)
	require.NoError(t, err)

	order, err := commerce.NewOrder(tenantID, "o-1", customer.ID)
	require.NoError(t, err)
	order.SetDetails("#1001", decimal.NewFromInt(40), time.Now().UTC())

	stored, created, err := repo.Upsert(ctx, order)
	require.NoError(t, err)
	assert.True(t, created)

	t.Run("re-upsert keeps identity", func(t *testing.T) {
		again, err := commerce.NewOrder(tenantID, "o-1", customer.ID)
		require.NoError(t, err)
		again.SetDetails("#1001", decimal.NewFromInt(45), time.Now().UTC())

		updated, created, err := repo.Upsert(ctx, again)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, stored.ID, updated.ID)
		assert.True(t, updated.TotalPrice.Equal(decimal.NewFromInt(45)))
	})

	t.Run("missing upstream date keeps stored order_date", func(t *testing.T) {
		placed := time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)
		dated, err := commerce.NewOrder(tenantID, "o-2", customer.ID)
		require.NoError(t, err)
		dated.SetDetails("#1002", decimal.NewFromInt(10), placed)
		_, _, err = repo.Upsert(ctx, dated)
		require.NoError(t, err)

		undated, err := commerce.NewOrder(tenantID, "o-2", customer.ID)
		require.NoError(t, err)
		undated.SetDetails("#1002", decimal.NewFromInt(12), time.Time{})
		updated, created, err := repo.Upsert(ctx, undated)
		require.NoError(t, err)
		assert.False(t, created)
		assert.True(t, updated.OrderDate.Equal(placed), updated.OrderDate.String())
		assert.True(t, updated.TotalPrice.Equal(decimal.NewFromInt(12)))
	})

	t.Run("items upsert by line id", func(t *testing.T) {
		productID := uuid.New()
		item, err := commerce.NewOrderItem(stored, "li-1", productID, 1, decimal.NewFromInt(20))
		require.NoError(t, err)
		require.NoError(t, repo.UpsertItem(ctx, item))

		again, err := commerce.NewOrderItem(stored, "li-1", productID, 3, decimal.NewFromInt(20))
		require.NoError(t, err)
		require.NoError(t, repo.UpsertItem(ctx, again))

		other, err := commerce.NewOrderItem(stored, "li-2", productID, 1, decimal.NewFromInt(5))
		require.NoError(t, err)
		require.NoError(t, repo.UpsertItem(ctx, other))

		var items []models.OrderItemModel
		require.NoError(t, db.Where("order_id = ?", stored.ID).Order("external_line_item_id ASC").Find(&items).Error)
		require.Len(t, items, 2)
		assert.Equal(t, "li-1", items[0].ExternalLineItemID)
		assert.Equal(t, 3, items[0].Quantity)
		assert.Equal(t, item.ID, items[0].ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.FindByExternalID(ctx, tenantID, "missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

// ---------------------------------------------------------------------------
// Aggregate ledger
// ---------------------------------------------------------------------------

func TestGormAggregateLedger_MarkApplied(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	ledger := NewGormAggregateLedger(setupCommerceTestDB(t))

	application := &commerce.AggregateApplication{
		TenantID:   tenantID,
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		Amount:     decimal.NewFromInt(10),
		Counted:    true,
		AppliedAt:  time.Now(),
	}

	applied, err := ledger.MarkApplied(ctx, application)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = ledger.MarkApplied(ctx, application)
	require.NoError(t, err)
	assert.False(t, applied, "second marker for the same order must not insert")

	require.NoError(t, ledger.MarkUncounted(ctx, tenantID, application.OrderID))

	var stored models.CustomerAggregateApplicationModel
	require.NoError(t, ledger.db.Where("tenant_id = ? AND order_id = ?", tenantID, application.OrderID).First(&stored).Error)
	assert.False(t, stored.Counted)

	var total int64
	require.NoError(t, ledger.db.Model(&models.CustomerAggregateApplicationModel{}).Count(&total).Error)
	assert.Equal(t, int64(1), total)
}

// ---------------------------------------------------------------------------
// Events and webhook registrations
// ---------------------------------------------------------------------------

func TestGormEventRepository(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := NewGormEventRepository(setupCommerceTestDB(t))

	event, err := commerce.NewCartAbandonedEvent(tenantID, nil, json.RawMessage(`{"id":"cart-1"}`), time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, event))

	events, err := repo.FindByTenant(ctx, tenantID, commerce.EventTypeCartAbandoned)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].CustomerID)
	assert.JSONEq(t, string(event.Data), string(events[0].Data))

	events, err = repo.FindByTenant(ctx, uuid.New(), commerce.EventTypeCartAbandoned)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGormWebhookRegistrationRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := NewGormWebhookRegistrationRepository(setupCommerceTestDB(t))

	reg, err := commerce.NewWebhookRegistration(tenantID, commerce.TopicOrdersCreate, "https://hooks.example.com/webhook/x", "901")
	require.NoError(t, err)
	stored, err := repo.Upsert(ctx, reg)
	require.NoError(t, err)
	assert.Equal(t, "901", stored.ExternalID)

	t.Run("already registered keeps the upstream id", func(t *testing.T) {
		again, err := commerce.NewWebhookRegistration(tenantID, commerce.TopicOrdersCreate, "https://new.example.com/webhook/x", "")
		require.NoError(t, err)
		stored, err := repo.Upsert(ctx, again)
		require.NoError(t, err)
		assert.Equal(t, reg.ID, stored.ID)
		assert.Equal(t, "901", stored.ExternalID)
		assert.Equal(t, "https://new.example.com/webhook/x", stored.Address)
	})

	regs, err := repo.FindByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}
