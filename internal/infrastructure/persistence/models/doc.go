// Package models contains GORM persistence models for the billing tables.
// The domain types carry no ORM tags; repositories convert through the ToDomain/FromDomain mappers here.
//
// Files:
//   - base.go: shared columns of entities and project-scoped aggregates
//   - billing.go: invoices, line items and the read-only contract and meter tables
//   - payment.go: payments, slips and receipts
package models
