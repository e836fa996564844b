// Package catalog provides database operations for authors, readers and the books they list.
//
// The purchase core only reads from it (GetBook, GetUserByEmail); registration and
// book uploads write through the same repository.
//
// # Usage
//
//	repo := catalog.NewRepository(db)
//	book, err := repo.GetBook(ctx, 42)
package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/database"
	"github.com/mrlokans/ebookstore/internal/entities"
)

// Repository handles catalog and account database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetBook returns the book with the given ID, or nil when it does not exist.
func (r *Repository) GetBook(ctx context.Context, id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).First(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return &book, nil
}

// GetBookByTitle returns the book with the exact title, or nil.
func (r *Repository) GetBookByTitle(ctx context.Context, title string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).Where("title = ?", title).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book by title: %w", err)
	}
	return &book, nil
}

// GetUserByEmail returns the reader registered with email, or nil.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	var user entities.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

// GetAuthorByEmail returns the author registered with email, or nil.
func (r *Repository) GetAuthorByEmail(ctx context.Context, email string) (*entities.Author, error) {
	var author entities.Author
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&author).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get author by email: %w", err)
	}
	return &author, nil
}

// GetAuthorByUsername returns the author with the given username, or nil.
func (r *Repository) GetAuthorByUsername(ctx context.Context, username string) (*entities.Author, error) {
	var author entities.Author
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&author).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get author by username: %w", err)
	}
	return &author, nil
}

// GetAuthorByID returns the author with the given ID, or nil.
func (r *Repository) GetAuthorByID(ctx context.Context, id uint) (*entities.Author, error) {
	var author entities.Author
	err := r.db.WithContext(ctx).First(&author, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get author %d: %w", id, err)
	}
	return &author, nil
}

// CreateUser inserts a reader account. Duplicate username or email is a conflict.
func (r *Repository) CreateUser(ctx context.Context, user *entities.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("user already exists")
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateAuthor inserts an author account. Duplicate username or email is a conflict.
func (r *Repository) CreateAuthor(ctx context.Context, author *entities.Author) error {
	if err := r.db.WithContext(ctx).Create(author).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("author already exists")
		}
		return fmt.Errorf("create author: %w", err)
	}
	return nil
}

// CreateBook lists a new book. A duplicate title is a conflict.
func (r *Repository) CreateBook(ctx context.Context, book *entities.Book) error {
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("this book already exists")
		}
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// DeleteAuthorBook removes a book owned by the author and returns the deleted row
// so the caller can clean up its blobs.
func (r *Repository) DeleteAuthorBook(ctx context.Context, authorID, bookID uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).Where("id = ? AND author_id = ?", bookID, authorID).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("book not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find book %d: %w", bookID, err)
	}

	if err := r.db.WithContext(ctx).Delete(&book).Error; err != nil {
		return nil, fmt.Errorf("delete book %d: %w", bookID, err)
	}
	return &book, nil
}

// ListBooks returns every listed book ordered by ID.
func (r *Repository) ListBooks(ctx context.Context) ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.WithContext(ctx).Order("id ASC").Find(&books).Error
	return books, err
}

// ListBooksByCategory returns the books filed under category.
func (r *Repository) ListBooksByCategory(ctx context.Context, category entities.Category) ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.WithContext(ctx).Where("category = ?", category).Order("id ASC").Find(&books).Error
	return books, err
}

// ListAuthorBooks returns the books listed by an author.
func (r *Repository) ListAuthorBooks(ctx context.Context, authorID uint) ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.WithContext(ctx).Where("author_id = ?", authorID).Order("id ASC").Find(&books).Error
	return books, err
}

// ListAuthors returns every registered author.
func (r *Repository) ListAuthors(ctx context.Context) ([]entities.Author, error) {
	var authors []entities.Author
	err := r.db.WithContext(ctx).Order("id ASC").Find(&authors).Error
	return authors, err
}
