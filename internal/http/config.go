package http

import (
	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/auth"
	"github.com/mrlokans/ebookstore/internal/blob"
	"github.com/mrlokans/ebookstore/internal/database"
	"github.com/mrlokans/ebookstore/internal/purchase"
)

// Catalog is everything the controllers read and write in the catalog store.
type Catalog interface {
	CatalogReader
	AuthorBookStore
	UserGetter
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Catalog  Catalog
	Blobs    blob.Store
	Database *database.Database
	Auditor  EventLogger // Optional

	// Authentication
	Accounts     AccountService
	Tokens       *auth.TokenService
	LoginLimiter *auth.LoginLimiter // Optional

	// Purchases
	Purchases PurchaseFlow
	Gate      DownloadGate
	Links     purchase.Links

	// Extra health checks, keyed by name (e.g. "lock")
	HealthChecks map[string]HealthCheck

	// Upload limit for /add-book in bytes. Default: 64 MiB
	MaxUploadBytes int64

	// Application info
	Version string

	Logger *zap.Logger
}
