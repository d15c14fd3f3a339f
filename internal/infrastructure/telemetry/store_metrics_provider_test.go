package telemetry_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/infrastructure/persistence"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

func setupStoreDB(t *testing.T) *gorm.DB {
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

func TestRepositoryStoreCountProvider(t *testing.T) {
	ctx := context.Background()
	db := setupStoreDB(t)

	tenants := persistence.NewGormTenantRepository(db)
	connected := commerce.NewTenant("Connected", "a.myshopify.com", "shpat_a")
	idle := commerce.NewTenant("Idle", "b.myshopify.com", "")
	require.NoError(t, tenants.Save(ctx, connected))
	require.NoError(t, tenants.Save(ctx, idle))

	customers := persistence.NewGormCustomerRepository(db)
	for _, ext := range []string{"1", "2"} {
		c, err := commerce.NewCustomer(connected.ID, ext)
		require.NoError(t, err)
		_, _, err = customers.Upsert(ctx, c, commerce.CustomerModeFull)
		require.NoError(t, err)
	}
	other, err := commerce.NewCustomer(idle.ID, "1")
	require.NoError(t, err)
	_, _, err = customers.Upsert(ctx, other, commerce.CustomerModeFull)
	require.NoError(t, err)

	product, err := commerce.NewProduct(connected.ID, "p-1", "Mug", decimal.NewFromInt(12))
	require.NoError(t, err)
	_, _, err = persistence.NewGormProductRepository(db).Upsert(ctx, product)
	require.NoError(t, err)

	provider := telemetry.NewRepositoryStoreCountProvider(customers,
		persistence.NewGormProductRepository(db), persistence.NewGormOrderRepository(db))
	counts, err := provider.CountEntities(ctx, connected.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"customers": 2, "products": 1, "orders": 0}, counts)

	counts, err = provider.CountEntities(ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"customers": 1, "products": 0, "orders": 0}, counts)

	ids, err := telemetry.NewRepositoryTenantProvider(tenants).ConnectedTenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{connected.ID}, ids)
}
