// Package auth registers and logs in readers and authors and authenticates
// API calls with HS256 bearer tokens.
//
// A token's subject is the account email. The purchase and upload handlers
// resolve the acting account from that email through the catalog.
//
// # Configuration
//
//	AUTH_JWT_SECRET=<random string>  # Required outside of local runs
//	AUTH_TOKEN_EXPIRY=24h            # Token lifetime
//	AUTH_BCRYPT_COST=12              # bcrypt cost factor
//
// # Usage
//
//	tokens := auth.NewTokenService(cfg.Auth)
//	svc := auth.NewService(catalogRepo, tokens, cfg.Auth)
//	mw := auth.NewMiddleware(tokens)
//	router.GET("/purchase-book/:id", mw.RequireBearer(), handler)
//
// Read the caller in handlers:
//
//	email := auth.GetEmail(c)
package auth
