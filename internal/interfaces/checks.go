package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/ebookstore/internal/audit"
	"github.com/mrlokans/ebookstore/internal/auth"
	"github.com/mrlokans/ebookstore/internal/blob"
	"github.com/mrlokans/ebookstore/internal/database/catalog"
	"github.com/mrlokans/ebookstore/internal/database/ledger"
	"github.com/mrlokans/ebookstore/internal/gateway"
	"github.com/mrlokans/ebookstore/internal/http"
	"github.com/mrlokans/ebookstore/internal/lock"
	"github.com/mrlokans/ebookstore/internal/purchase"
	"github.com/mrlokans/ebookstore/internal/reconcile"
	"github.com/mrlokans/ebookstore/internal/scheduler"
	"github.com/mrlokans/ebookstore/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// Catalog store implementations
var _ http.Catalog = (*catalog.Repository)(nil)
var _ purchase.Catalog = (*catalog.Repository)(nil)
var _ auth.AccountStore = (*catalog.Repository)(nil)

// Entitlement ledger implementations
var _ purchase.Ledger = (*ledger.Repository)(nil)
var _ purchase.EntitlementReader = (*ledger.Repository)(nil)
var _ reconcile.Ledger = (*ledger.Repository)(nil)
var _ tasks.IntentPruner = (*ledger.Repository)(nil)

// Blob store implementations
var _ blob.Store = (*blob.FileStore)(nil)
var _ blob.Store = (*blob.MinioStore)(nil)

// =============================================================================
// Purchase Core
// =============================================================================

// PurchaseFlow implementations
var _ http.PurchaseFlow = (*purchase.Orchestrator)(nil)

// DownloadGate implementations
var _ http.DownloadGate = (*purchase.Gate)(nil)

// AccountService implementations
var _ http.AccountService = (*auth.Service)(nil)

// =============================================================================
// External Services
// =============================================================================

// Gateway implementations
var _ gateway.Gateway = (*gateway.StripeGateway)(nil)
var _ gateway.Gateway = (*gateway.FakeGateway)(nil)
var _ gateway.Gateway = (*gateway.Limited)(nil)

// Locker implementations
var _ lock.Locker = (*lock.LocalLocker)(nil)
var _ lock.Locker = (*lock.RedisLocker)(nil)

// =============================================================================
// Reconciliation and Background Work
// =============================================================================

// Settler implementations
var _ tasks.Settler = (*reconcile.Service)(nil)
var _ scheduler.PendingLister = (*reconcile.Service)(nil)

// Dispatcher implementations
var _ purchase.Settler = (*tasks.Client)(nil)
var _ purchase.Settler = (*tasks.Inline)(nil)
var _ scheduler.Dispatcher = (*tasks.Client)(nil)
var _ scheduler.Dispatcher = (*tasks.Inline)(nil)

// Auditor implementations
var _ purchase.Auditor = (*audit.Service)(nil)
var _ reconcile.Auditor = (*audit.Service)(nil)
var _ http.EventLogger = (*audit.Service)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
