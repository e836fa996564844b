// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, unique-violation detection
//	├── catalog/         # Authors, readers and books
//	├── ledger/          # Purchase intents, purchases and reconciliations
//	└── audit/           # Audit trail
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	// Initialize database connection
//	db, err := database.NewDatabase(cfg.Database, logger)
//
//	// Create domain-specific repositories
//	catalogRepo := catalog.NewRepository(db.DB)
//	ledgerRepo := ledger.NewRepository(db.DB)
//
//	// Use repositories
//	book, err := catalogRepo.GetBook(ctx, 42)
//	purchase, err := ledgerRepo.FindPurchase(ctx, userID, book.ID)
//
// # Interface Implementations
//
// Each sub-package implements specific interfaces:
//
//   - catalog.Repository: implements http.Catalog, purchase.Catalog and auth.AccountStore
//   - ledger.Repository: implements purchase.Ledger, reconcile.Ledger and tasks.IntentPruner
//   - audit.Repository: backs audit.Service
//
// # Uniqueness
//
// Duplicate rows are rejected by unique indexes rather than read-then-write
// checks. Repositories translate those failures with IsUniqueViolation into
// apperr.Conflict.
//
// # Adding a New Domain
//
// To add a new domain (e.g., refunds):
//
//  1. Create a new sub-package: internal/database/refunds/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Register the entity in Migrate
//  5. Add compile-time interface check in internal/interfaces/checks.go
package database
