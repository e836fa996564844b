package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/config"
)

const tokenIssuer = "ebookstore"

var (
	ErrInvalidToken = apperr.Unauthorized("Invalid token")
	ErrTokenExpired = apperr.Unauthorized("Token has expired")
)

// TokenService issues and decodes bearer tokens whose subject is an account email.
type TokenService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenService(cfg config.Auth) *TokenService {
	expiry := cfg.TokenExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &TokenService{
		secret: []byte(cfg.JWTSecret),
		expiry: expiry,
		now:    time.Now,
	}
}

// EncodeToken signs a token for email.
func (s *TokenService) EncodeToken(email string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// DecodeToken verifies the signature and expiry and returns the email.
func (s *TokenService) DecodeToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(s.secret) == 0 {
		return "", ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
