package commerce_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	appcommerce "github.com/storesync/backend/internal/application/commerce"
	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/ecommerce"
	"github.com/storesync/backend/internal/infrastructure/persistence"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// testEnv wires the application services to real repositories on an
// in-memory SQLite database
type testEnv struct {
	db            *gorm.DB
	tenants       *persistence.GormTenantRepository
	customers     *persistence.GormCustomerRepository
	products      *persistence.GormProductRepository
	orders        *persistence.GormOrderRepository
	ledger        *persistence.GormAggregateLedger
	events        *persistence.GormEventRepository
	registrations *persistence.GormWebhookRegistrationRepository
	codec         *ecommerce.Codec
	reconciler    *appcommerce.Reconciler
}

func newTestEnv(t *testing.T) *testEnv {
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

	env := &testEnv{
		db:            db,
		tenants:       persistence.NewGormTenantRepository(db),
		customers:     persistence.NewGormCustomerRepository(db),
		products:      persistence.NewGormProductRepository(db),
		orders:        persistence.NewGormOrderRepository(db),
		ledger:        persistence.NewGormAggregateLedger(db),
		events:        persistence.NewGormEventRepository(db),
		registrations: persistence.NewGormWebhookRegistrationRepository(db),
		codec:         ecommerce.NewCodec(),
	}
	env.reconciler = appcommerce.NewReconciler(env.customers, env.products, persistence.NewGormTransactionScope(db), nil)
	return env
}

func (e *testEnv) addTenant(t *testing.T, name, token string) *commerce.Tenant {
	t.Helper()
	tenant := commerce.NewTenant(name, strings.ToLower(name)+".myshopify.com", token)
	require.NoError(t, e.tenants.Save(context.Background(), tenant))
	return tenant
}

func (e *testEnv) count(t *testing.T, model any, tenantID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Where("tenant_id = ?", tenantID).Count(&n).Error)
	return n
}

// ---------------------------------------------------------------------------
// Upstream payloads
// ---------------------------------------------------------------------------

func customerJSON(id int, email, totalSpent string, ordersCount int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id":%d,"email":%q,"first_name":"Ada","last_name":"Lovelace","total_spent":%q,"orders_count":%d}`,
		id, email, totalSpent, ordersCount))
}

func productJSON(id int, title, price string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id":%d,"title":%q,"variants":[{"price":%q}]}`, id, title, price))
}

type lineItem struct {
	ID        int
	ProductID int
	Quantity  int
	Price     string
}

func orderJSON(id int, customerID int, total, createdAt string, items ...lineItem) json.RawMessage {
	lines := make([]string, 0, len(items))
	for _, li := range items {
		product := "null"
		if li.ProductID != 0 {
			product = fmt.Sprint(li.ProductID)
		}
		lines = append(lines, fmt.Sprintf(
			`{"id":%d,"product_id":%s,"title":"Item %d","quantity":%d,"price":%q}`,
			li.ID, product, li.ID, li.Quantity, li.Price))
	}
	customer := "null"
	if customerID != 0 {
		customer = fmt.Sprintf(`{"id":%d,"email":"c%d@example.com","first_name":"New","last_name":"Buyer"}`, customerID, customerID)
	}
	return json.RawMessage(fmt.Sprintf(
		`{"id":%d,"order_number":%d,"total_price":%q,"created_at":%q,"customer":%s,"line_items":[%s]}`,
		id, id, total, createdAt, customer, strings.Join(lines, ",")))
}

// ---------------------------------------------------------------------------
// Store client mock
// ---------------------------------------------------------------------------

type mockStoreClient struct {
	mock.Mock
}

func (m *mockStoreClient) Connect(tenantID uuid.UUID, shopDomain, accessToken string) (*integration.Connection, error) {
	args := m.Called(tenantID, shopDomain, accessToken)
	conn, _ := args.Get(0).(*integration.Connection)
	return conn, args.Error(1)
}

func (m *mockStoreClient) FetchAll(ctx context.Context, conn *integration.Connection, resource integration.Resource) (*integration.FetchResult, error) {
	args := m.Called(ctx, conn, resource)
	result, _ := args.Get(0).(*integration.FetchResult)
	return result, args.Error(1)
}

func (m *mockStoreClient) RegisterWebhook(ctx context.Context, conn *integration.Connection, topic, address string) (string, bool, error) {
	args := m.Called(ctx, conn, topic, address)
	return args.String(0), args.Bool(1), args.Error(2)
}

// expectConnect makes Connect return a fresh connection for tenant
func (m *mockStoreClient) expectConnect(tenant *commerce.Tenant) *integration.Connection {
	conn := integration.NewConnection(tenant.ID, tenant.ShopDomain, "https://"+tenant.ShopDomain+"/admin/api/2023-10/", tenant.AccessToken, nil)
	m.On("Connect", tenant.ID, tenant.ShopDomain, tenant.AccessToken).Return(conn, nil)
	return conn
}

func forTenant(id uuid.UUID) any {
	return mock.MatchedBy(func(c *integration.Connection) bool { return c.TenantID == id })
}

func records(raws ...json.RawMessage) *integration.FetchResult {
	return &integration.FetchResult{Records: raws, Pages: 1}
}
