package http

import (
	"context"

	"github.com/mrlokans/ebookstore/internal/entities"
	"github.com/mrlokans/ebookstore/internal/purchase"
)

// This file consolidates the store and service interfaces used by HTTP controllers.
// Each controller takes only the slice it needs.

// --- Catalog ---

// BookGetter provides read access to a single book.
type BookGetter interface {
	GetBook(ctx context.Context, id uint) (*entities.Book, error)
}

// CatalogReader provides the browsing queries.
type CatalogReader interface {
	BookGetter
	GetAuthorByID(ctx context.Context, id uint) (*entities.Author, error)
	GetAuthorByUsername(ctx context.Context, username string) (*entities.Author, error)
	ListBooks(ctx context.Context) ([]entities.Book, error)
	ListBooksByCategory(ctx context.Context, category entities.Category) ([]entities.Book, error)
	ListAuthorBooks(ctx context.Context, authorID uint) ([]entities.Book, error)
	ListAuthors(ctx context.Context) ([]entities.Author, error)
}

// AuthorBookStore provides the author-side writes.
type AuthorBookStore interface {
	GetAuthorByEmail(ctx context.Context, email string) (*entities.Author, error)
	GetBookByTitle(ctx context.Context, title string) (*entities.Book, error)
	CreateBook(ctx context.Context, book *entities.Book) error
	DeleteAuthorBook(ctx context.Context, authorID, bookID uint) (*entities.Book, error)
}

// UserGetter resolves a reader by token subject.
type UserGetter interface {
	GetUserByEmail(ctx context.Context, email string) (*entities.User, error)
}

// --- Accounts ---

// AccountService registers and logs in readers and authors.
type AccountService interface {
	RegisterUser(ctx context.Context, username, email, password string) (*entities.User, error)
	RegisterAuthor(ctx context.Context, username, email, password string) (*entities.Author, error)
	LoginUser(ctx context.Context, email, password string) (string, error)
	LoginAuthor(ctx context.Context, email, password string) (string, error)
}

// --- Purchases ---

// PurchaseFlow runs the two purchase phases.
type PurchaseFlow interface {
	InitiatePurchase(ctx context.Context, email string, bookID uint) (*purchase.Descriptor, error)
	SubmitPayment(ctx context.Context, email string, bookID uint, card purchase.CardDetails) (*purchase.Descriptor, error)
}

// DownloadGate answers whether a PDF may be served.
type DownloadGate interface {
	CanDownload(ctx context.Context, user *entities.User, book *entities.Book) (bool, error)
}

// --- Audit ---

// EventLogger receives the request-level audit trail.
type EventLogger interface {
	LogDownload(userID, bookID uint, granted bool)
	LogCatalog(authorID, bookID uint, action, title string)
	LogAuth(userID uint, action string, success bool)
}

type nopEventLogger struct{}

func (nopEventLogger) LogDownload(uint, uint, bool)          {}
func (nopEventLogger) LogCatalog(uint, uint, string, string) {}
func (nopEventLogger) LogAuth(uint, string, bool)            {}
