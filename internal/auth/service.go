package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/config"
	"github.com/mrlokans/ebookstore/internal/entities"
)

var (
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{3,64}$`)
)

var (
	ErrEmailInvalid       = apperr.Validation("Email is invalid")
	ErrUsernameInvalid    = apperr.Validation("username must be 3-64 characters, alphanumeric, dot, underscore or hyphen")
	ErrInvalidCredentials = apperr.Unauthorized("Invalid username and/or password")
)

// AccountStore is the slice of the catalog the service reads and writes.
type AccountStore interface {
	GetUserByEmail(ctx context.Context, email string) (*entities.User, error)
	GetAuthorByEmail(ctx context.Context, email string) (*entities.Author, error)
	CreateUser(ctx context.Context, user *entities.User) error
	CreateAuthor(ctx context.Context, author *entities.Author) error
}

// Service registers and logs in readers and authors.
type Service struct {
	store      AccountStore
	tokens     *TokenService
	bcryptCost int
}

// NewService creates a new authentication service.
func NewService(store AccountStore, tokens *TokenService, cfg config.Auth) *Service {
	return &Service{
		store:      store,
		tokens:     tokens,
		bcryptCost: cfg.BcryptCost,
	}
}

// Tokens returns the token service used to sign login tokens.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// RegisterUser creates a reader account.
func (s *Service) RegisterUser(ctx context.Context, username, email, password string) (*entities.User, error) {
	username, email, hash, err := s.prepare(username, email, password)
	if err != nil {
		return nil, err
	}

	user := &entities.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, err
	}
	return user, nil
}

// RegisterAuthor creates an author account.
func (s *Service) RegisterAuthor(ctx context.Context, username, email, password string) (*entities.Author, error) {
	username, email, hash, err := s.prepare(username, email, password)
	if err != nil {
		return nil, err
	}

	author := &entities.Author{Username: username, Email: email, PasswordHash: hash}
	if err := s.store.CreateAuthor(ctx, author); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("Author already exists")
		}
		return nil, err
	}
	return author, nil
}

// LoginUser verifies reader credentials and returns a bearer token.
func (s *Service) LoginUser(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}
	return s.issue(user.Email, password, user.PasswordHash)
}

// LoginAuthor verifies author credentials and returns a bearer token.
func (s *Service) LoginAuthor(ctx context.Context, email, password string) (string, error) {
	author, err := s.store.GetAuthorByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}
	if author == nil {
		return "", ErrInvalidCredentials
	}
	return s.issue(author.Email, password, author.PasswordHash)
}

func (s *Service) issue(email, password, hash string) (string, error) {
	if err := CheckPassword(password, hash); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	return s.tokens.EncodeToken(email)
}

func (s *Service) prepare(username, email, password string) (string, string, string, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	if !emailPattern.MatchString(email) {
		return "", "", "", ErrEmailInvalid
	}
	if !usernamePattern.MatchString(username) {
		return "", "", "", ErrUsernameInvalid
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return "", "", "", err
	}
	return username, email, hash, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
