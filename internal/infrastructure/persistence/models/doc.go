// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Each model provides ToDomain and a <Model>FromDomain constructor. Unique
// indexes declared in the tags mirror the migrations, so AutoMigrate-based
// tests get the same ON CONFLICT targets as PostgreSQL.
//
// Structure:
//   - base.go: BaseModel shared by every table
//   - commerce.go: tenants, customers, products, orders, order items,
//     aggregate applications, events and webhook registrations
package models
