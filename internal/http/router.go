package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/ebookstore/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := orNop(cfg.Logger)
	auditor := cfg.Auditor
	if auditor == nil {
		auditor = nopEventLogger{}
	}

	router := gin.New()
	router.Use(RequestLogger(logger))
	router.Use(gin.Recovery())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())
	router.Use(auth.StrictTransportSecurityMiddleware())

	bearer := auth.NewMiddleware(cfg.Tokens)

	// Create controllers with appropriate interfaces
	health := NewHealthController(cfg.Database, cfg.Version, cfg.HealthChecks)
	catalog := NewCatalogController(cfg.Catalog, cfg.Links, logger)
	accounts := NewAccountsController(cfg.Accounts, auditor, logger)
	authorBooks := NewAuthorBooksController(cfg.Catalog, cfg.Blobs, auditor, logger, cfg.MaxUploadBytes)
	purchases := NewPurchasesController(cfg.Purchases, logger)
	downloads := NewDownloadsController(cfg.Catalog, cfg.Catalog, cfg.Gate, cfg.Blobs, auditor, logger)

	router.GET("/", catalog.Welcome)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Catalog browsing
	router.GET("/get-all-books", catalog.GetAllBooks)
	router.GET("/get-all-authors", catalog.GetAllAuthors)
	router.GET("/get-all-categories", catalog.GetAllCategories)
	router.GET("/get-book/:id", catalog.GetBook)
	router.GET("/get-all-category-books/:category", catalog.GetCategoryBooks)
	router.GET("/get-author-books/:username", catalog.GetAuthorBooks)
	router.GET("/get-book-image/:id", downloads.GetBookImage)

	// Accounts. Credentials and tokens never get cached.
	account := router.Group("/", auth.NoStoreMiddleware())
	account.POST("/register-author", accounts.RegisterAuthor)
	account.POST("/register-user", accounts.RegisterUser)
	if cfg.LoginLimiter != nil {
		account.POST("/login-author", cfg.LoginLimiter.Middleware(), accounts.LoginAuthor)
		account.POST("/login-user", cfg.LoginLimiter.Middleware(), accounts.LoginUser)
	} else {
		account.POST("/login-author", accounts.LoginAuthor)
		account.POST("/login-user", accounts.LoginUser)
	}

	// Author book management
	authors := router.Group("/", bearer.RequireBearer())
	authors.POST("/add-book", authorBooks.AddBook)
	authors.GET("/delete-book/:id", authorBooks.DeleteBook)

	// Purchase flow
	buyers := router.Group("/", bearer.RequireBearer(), auth.NoStoreMiddleware())
	buyers.GET("/purchase-book/:id", purchases.PurchaseBook)
	buyers.POST("/process-payment/:id", purchases.ProcessPayment)

	// Free books need no token, so the bearer is optional here and the
	// gate decides.
	router.GET("/get-book-pdf/:id", bearer.OptionalBearer(), auth.NoStoreMiddleware(), downloads.GetBookPDF)

	return router
}
