package commerce

import (
	"context"

	"github.com/storesync/backend/internal/domain/commerce"
)

// TransactionScope provides transactional access to the commerce repositories.
// All repository operations executed inside fn commit or roll back together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to repositories sharing one
// database transaction.
type TransactionalRepositories interface {
	CustomerRepo() commerce.CustomerRepository
	ProductRepo() commerce.ProductRepository
	OrderRepo() commerce.OrderRepository
	// LedgerRepo returns the applied-marker store used for aggregate increments
	LedgerRepo() commerce.AggregateLedger
	EventRepo() commerce.EventRepository
}
