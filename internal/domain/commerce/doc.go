// Package commerce contains the Commerce bounded context: the local, tenant-scoped
// projection of an upstream store (customers, products, orders, cart events and
// webhook registrations).
//
// Key concepts:
//   - Tenant: one connected upstream store and its isolated data partition
//   - External identity: (ExternalID, TenantID) is the only correlation key between
//     an upstream record and its local entity
//   - Stub entity: a Customer or Product created from the minimal data embedded in an
//     order because the order referenced it before it was seen on its own
//   - AggregateApplication: the applied marker guaranteeing an order contributes to
//     its customer's aggregates at most once
//
// Repository ports are defined here; GORM implementations live in the
// infrastructure/persistence package.
package commerce
