package commerce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

// Outcome describes what reconciling one upstream record did locally
type Outcome struct {
	EntityID uuid.UUID
	Created  bool
	Skipped  bool
	// Counted is true when an order increased its customer's aggregates
	Counted bool
}

// Reconciler upserts normalized upstream records into the local store.
// Every write is keyed by (external id, tenant id) so replays converge.
type Reconciler struct {
	customers commerce.CustomerRepository
	products  commerce.ProductRepository
	txScope   TransactionScope
	logger    *zap.Logger
	now       func() time.Time
}

// NewReconciler creates a new Reconciler
func NewReconciler(
	customers commerce.CustomerRepository,
	products commerce.ProductRepository,
	txScope TransactionScope,
	logger *zap.Logger,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		customers: customers,
		products:  products,
		txScope:   txScope,
		logger:    logger,
		now:       time.Now,
	}
}

// ReconcileCustomer upserts a customer. CustomerModeFull also replaces the
// aggregates with the upstream snapshot, stamped with ext.SnapshotAt (or now
// when unknown); CustomerModeIdentity leaves them alone.
func (r *Reconciler) ReconcileCustomer(ctx context.Context, tenantID uuid.UUID, ext *integration.ExternalCustomer, mode commerce.CustomerUpsertMode) (Outcome, error) {
	customer, err := commerce.NewCustomer(tenantID, ext.ID)
	if err != nil {
		return Outcome{}, err
	}
	customer.SetIdentity(ext.Email, ext.FirstName, ext.LastName)
	if mode == commerce.CustomerModeFull {
		snapshotAt := ext.SnapshotAt
		if snapshotAt.IsZero() {
			snapshotAt = r.now()
		}
		customer.OverwriteAggregates(ext.TotalSpent, ext.OrdersCount, snapshotAt)
	}

	stored, created, err := r.customers.Upsert(ctx, customer, mode)
	if err != nil {
		return Outcome{}, fmt.Errorf("upsert customer %s: %w", ext.ID, err)
	}
	return Outcome{EntityID: stored.ID, Created: created}, nil
}

// ReconcileProduct upserts a product's title and price
func (r *Reconciler) ReconcileProduct(ctx context.Context, tenantID uuid.UUID, ext *integration.ExternalProduct) (Outcome, error) {
	product, err := commerce.NewProduct(tenantID, ext.ID, ext.Title, ext.Price)
	if err != nil {
		return Outcome{}, err
	}

	stored, created, err := r.products.Upsert(ctx, product)
	if err != nil {
		return Outcome{}, fmt.Errorf("upsert product %s: %w", ext.ID, err)
	}
	return Outcome{EntityID: stored.ID, Created: created}, nil
}

// ReconcileOrder writes an order, its items, any missing customer or
// product, and its aggregate contribution in one transaction.
//
// The customer's aggregates grow only when this call inserts the order's
// applied marker, so replays never count an order twice. Orders dated at or
// before the customer's upstream snapshot are marked but not counted, including
// when that snapshot lands while this transaction is open.
func (r *Reconciler) ReconcileOrder(ctx context.Context, tenantID uuid.UUID, ext *integration.ExternalOrder) (Outcome, error) {
	if !ext.HasCustomer() {
		r.logger.Info("Skipping order without customer",
			zap.String("tenant_id", tenantID.String()),
			zap.String("external_id", ext.ID),
		)
		return Outcome{Skipped: true}, ErrOrderSkipped
	}

	var outcome Outcome
	err := r.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		customer, err := r.resolveCustomer(ctx, repos.CustomerRepo(), tenantID, ext.Customer)
		if err != nil {
			return err
		}

		order, err := commerce.NewOrder(tenantID, ext.ID, customer.ID)
		if err != nil {
			return err
		}
		order.SetDetails(ext.OrderNumber, ext.TotalPrice, ext.CreatedAt)

		stored, created, err := repos.OrderRepo().Upsert(ctx, order)
		if err != nil {
			return fmt.Errorf("upsert order %s: %w", ext.ID, err)
		}

		for _, line := range ext.LineItems {
			if err := r.reconcileLineItem(ctx, repos, stored, line); err != nil {
				return err
			}
		}

		application := commerce.NewAggregateApplication(stored, customer)
		applied, err := repos.LedgerRepo().MarkApplied(ctx, application)
		if err != nil {
			return fmt.Errorf("mark order %s applied: %w", ext.ID, err)
		}
		counted := applied && application.Counted
		if counted {
			counted, err = repos.CustomerRepo().IncrementAggregates(ctx, tenantID, customer.ID, stored.TotalPrice, stored.OrderDate)
			if err != nil {
				return fmt.Errorf("increment aggregates for order %s: %w", ext.ID, err)
			}
			if !counted {
				if err := repos.LedgerRepo().MarkUncounted(ctx, tenantID, stored.ID); err != nil {
					return fmt.Errorf("mark order %s uncounted: %w", ext.ID, err)
				}
			}
		}

		outcome = Outcome{EntityID: stored.ID, Created: created, Counted: counted}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

// resolveCustomer returns the stored customer, creating it from the embedded
// payload with zero aggregates when it does not exist yet
func (r *Reconciler) resolveCustomer(ctx context.Context, repo commerce.CustomerRepository, tenantID uuid.UUID, ext *integration.ExternalCustomer) (*commerce.Customer, error) {
	customer, err := commerce.NewCustomer(tenantID, ext.ID)
	if err != nil {
		return nil, err
	}
	customer.SetIdentity(ext.Email, ext.FirstName, ext.LastName)

	stored, _, err := repo.CreateIfAbsent(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("resolve customer %s: %w", ext.ID, err)
	}
	return stored, nil
}

func (r *Reconciler) reconcileLineItem(ctx context.Context, repos TransactionalRepositories, order *commerce.Order, line integration.ExternalLineItem) error {
	if !line.HasProduct() {
		r.logger.Debug("Skipping line item without product",
			zap.String("tenant_id", order.TenantID.String()),
			zap.String("order_id", order.ID.String()),
			zap.String("line_item_id", line.ID),
		)
		return nil
	}

	stub, err := commerce.NewProduct(order.TenantID, line.ProductID, line.Title, line.Price)
	if err != nil {
		return err
	}
	product, _, err := repos.ProductRepo().CreateIfAbsent(ctx, stub)
	if err != nil {
		return fmt.Errorf("resolve product %s: %w", line.ProductID, err)
	}

	item, err := commerce.NewOrderItem(order, line.ID, product.ID, line.Quantity, line.Price)
	if err != nil {
		if errors.Is(err, commerce.ErrInvalidQuantity) || errors.Is(err, commerce.ErrMissingExternalID) {
			r.logger.Warn("Skipping invalid line item",
				zap.String("order_id", order.ID.String()),
				zap.String("line_item_id", line.ID),
				zap.Error(err),
			)
			return nil
		}
		return err
	}
	if err := repos.OrderRepo().UpsertItem(ctx, item); err != nil {
		return fmt.Errorf("upsert line item %s: %w", line.ID, err)
	}
	return nil
}

// RecordCartAbandoned appends a cart_abandoned event when the cart carries an
// abandoned checkout url. The cart's customer is created when it is new.
func (r *Reconciler) RecordCartAbandoned(ctx context.Context, tenantID uuid.UUID, cart *integration.ExternalCart) (Outcome, error) {
	if !cart.IsAbandoned() {
		return Outcome{Skipped: true}, nil
	}

	var outcome Outcome
	err := r.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var customerID *uuid.UUID
		if cart.Customer != nil && cart.Customer.ID != "" {
			customer, err := r.resolveCustomer(ctx, repos.CustomerRepo(), tenantID, cart.Customer)
			if err != nil {
				return err
			}
			customerID = &customer.ID
		}

		event, err := commerce.NewCartAbandonedEvent(tenantID, customerID, cart.Raw, r.now())
		if err != nil {
			return err
		}
		if err := repos.EventRepo().Create(ctx, event); err != nil {
			return fmt.Errorf("record cart event: %w", err)
		}
		outcome = Outcome{EntityID: event.ID, Created: true}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

// outcomeLabel maps an outcome to its metric label
func outcomeLabel(o Outcome, err error) string {
	switch {
	case o.Skipped:
		return telemetry.OutcomeSkipped
	case err != nil:
		return telemetry.OutcomeFailed
	case o.Created:
		return telemetry.OutcomeCreated
	default:
		return telemetry.OutcomeUpdated
	}
}
