package persistence

import (
	"context"

	"gorm.io/gorm"

	appcommerce "github.com/storesync/backend/internal/application/commerce"
	"github.com/storesync/backend/internal/domain/commerce"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appcommerce.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories hands out repositories bound to one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) CustomerRepo() commerce.CustomerRepository {
	return NewGormCustomerRepository(r.tx)
}

func (r *gormTransactionalRepositories) ProductRepo() commerce.ProductRepository {
	return NewGormProductRepository(r.tx)
}

func (r *gormTransactionalRepositories) OrderRepo() commerce.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) LedgerRepo() commerce.AggregateLedger {
	return NewGormAggregateLedger(r.tx)
}

func (r *gormTransactionalRepositories) EventRepo() commerce.EventRepository {
	return NewGormEventRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appcommerce.TransactionScope = (*GormTransactionScope)(nil)

var _ appcommerce.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
