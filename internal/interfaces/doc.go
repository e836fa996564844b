// Package interfaces documents the core abstractions used throughout the application.
//
// This package consolidates interface documentation to help readers find
// extension points and how to implement new functionality.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - http.Catalog: Catalog browsing and author writes (internal/http/config.go)
//   - purchase.Catalog: Book and user lookup for purchases (internal/purchase/orchestrator.go)
//   - purchase.Ledger: Intents, purchases, reconciliations (internal/purchase/orchestrator.go)
//   - purchase.EntitlementReader: Download gate lookups (internal/purchase/gate.go)
//   - reconcile.Ledger: Ledger-only settlement (internal/reconcile/reconcile.go)
//   - blob.Store: Cover images and PDFs (internal/blob/blob.go)
//
// ## External Service Interfaces
//
//   - gateway.Gateway: Customer, card and charge creation (internal/gateway/gateway.go)
//   - lock.Locker: Per (user, book) purchase exclusion (internal/lock/lock.go)
//
// ## Background Work Interfaces
//
//   - purchase.Settler: Schedules a settlement retry (internal/purchase/orchestrator.go)
//   - scheduler.Dispatcher: Settlement and housekeeping tasks (internal/scheduler/reconcile_sweep.go)
//   - tasks.Settler, tasks.IntentPruner, tasks.AuditEventCleaner: Task handlers (internal/tasks/)
//
// # Adding a New Payment Gateway
//
//  1. Implement gateway.Gateway in internal/gateway/
//
//     type AdyenGateway struct {
//         client *adyen.APIClient
//     }
//
//     func (g *AdyenGateway) CreateCustomer(ctx context.Context, description, idempotencyKey string) (string, error) {
//         // Create the customer record
//     }
//
//  2. Add a provider constant to internal/config and a case to gateway.New.
//
//  3. Add a compile-time check to checks.go:
//
//     var _ gateway.Gateway = (*gateway.AdyenGateway)(nil)
package interfaces
