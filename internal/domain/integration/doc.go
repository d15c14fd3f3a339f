// Package integration contains the upstream store integration context.
// It describes what the sync engine needs from an external commerce platform
// without depending on any transport.
//
// Key concepts:
//   - Connection: per-tenant value holding the resolved endpoint, credentials,
//     throttle and permission record. Built once per sync and passed down.
//   - Resource: a paginated upstream collection (customers, products, orders)
//   - External*: normalized upstream records produced by a RecordDecoder
//   - FetchResult: the outcome of walking every page of a resource
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
