package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/auth"
	"github.com/mrlokans/ebookstore/internal/blob"
	"github.com/mrlokans/ebookstore/internal/config"
	"github.com/mrlokans/ebookstore/internal/database"
	"github.com/mrlokans/ebookstore/internal/database/catalog"
	"github.com/mrlokans/ebookstore/internal/database/ledger"
	"github.com/mrlokans/ebookstore/internal/entities"
	"github.com/mrlokans/ebookstore/internal/gateway"
	"github.com/mrlokans/ebookstore/internal/purchase"
)

const (
	testBaseURL  = "http://localhost:8000"
	readerEmail  = "reader@example.com"
	writerEmail  = "writer@example.com"
	testPassword = "correct-horse"
)

var validCardForm = url.Values{
	"card_number":           {"4242424242424242"},
	"card_expiration_month": {"12"},
	"card_expiration_year":  {"2099"},
}

// recordingEvents captures audit calls made by controllers.
type recordingEvents struct {
	mu        sync.Mutex
	downloads []bool
	catalog   []string
	auth      []string
}

func (r *recordingEvents) LogDownload(_, _ uint, granted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloads = append(r.downloads, granted)
}

func (r *recordingEvents) LogCatalog(_, _ uint, action, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog = append(r.catalog, action)
}

func (r *recordingEvents) LogAuth(_ uint, action string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !success {
		action += ":failed"
	}
	r.auth = append(r.auth, action)
}

// testEnv is a full router over a temp sqlite database, a temp blob
// directory and the fake payment gateway.
type testEnv struct {
	t        *testing.T
	router   *gin.Engine
	db       *database.Database
	catalog  *catalog.Repository
	ledger   *ledger.Repository
	blobs    *blob.FileStore
	gateway  *gateway.FakeGateway
	tokens   *auth.TokenService
	events   *recordingEvents
	limiter  *auth.LoginLimiter
	author   *entities.Author
	user     *entities.User
	paidBook *entities.Book
	freeBook *entities.Book
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	blobs, err := blob.NewFileStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	authCfg := config.Auth{JWTSecret: "test-secret", TokenExpiry: time.Hour, BcryptCost: 4}
	env := &testEnv{
		t:       t,
		db:      db,
		catalog: catalog.NewRepository(db.DB),
		ledger:  ledger.NewRepository(db.DB),
		blobs:   blobs,
		gateway: gateway.NewFakeGateway(),
		tokens:  auth.NewTokenService(authCfg),
		events:  &recordingEvents{},
		limiter: auth.NewLoginLimiter(auth.LimitConfig{
			MaxAttempts:     3,
			WindowDuration:  time.Minute,
			LockoutDuration: time.Minute,
			CleanupInterval: time.Minute,
		}),
	}
	t.Cleanup(env.limiter.Stop)

	accounts := auth.NewService(env.catalog, env.tokens, authCfg)

	env.author, err = accounts.RegisterAuthor(ctx, "writer", writerEmail, testPassword)
	require.NoError(t, err)
	env.user, err = accounts.RegisterUser(ctx, "reader", readerEmail, testPassword)
	require.NoError(t, err)

	env.paidBook = env.listBook("Dune", false, 500, "dune.pdf")
	env.freeBook = env.listBook("Beowulf", true, 0, "beowulf.pdf")

	links := purchase.Links{BaseURL: testBaseURL}
	orchestrator := purchase.NewOrchestrator(purchase.Dependencies{
		Catalog: env.catalog,
		Ledger:  env.ledger,
		Gateway: env.gateway,
	}, config.Payment{Currency: "usd", GatewayTimeout: time.Second}, testBaseURL)

	env.router = NewRouter(RouterConfig{
		Catalog:      env.catalog,
		Blobs:        env.blobs,
		Database:     db,
		Auditor:      env.events,
		Accounts:     accounts,
		Tokens:       env.tokens,
		LoginLimiter: env.limiter,
		Purchases:    orchestrator,
		Gate:         purchase.NewGate(env.ledger),
		Links:        links,
		Version:      "test",
		Logger:       zap.NewNop(),
	})
	return env
}

// listBook stores blobs and a catalog row for a book owned by the env author.
func (e *testEnv) listBook(title string, free bool, price int64, pdfName string) *entities.Book {
	e.t.Helper()
	ctx := context.Background()

	book := &entities.Book{
		Title:       title,
		Description: title + " description",
		Category:    entities.CategoryFiction,
		Price:       price,
		IsFree:      free,
		AuthorID:    e.author.ID,
		ImageKey:    blob.ImagePrefix + "/seed/" + strings.ToLower(title) + ".png",
		PDFKey:      blob.PDFPrefix + "/seed/" + pdfName,
	}
	require.NoError(e.t, e.blobs.Put(ctx, book.ImageKey, strings.NewReader("png:"+title), -1, "image/png"))
	require.NoError(e.t, e.blobs.Put(ctx, book.PDFKey, strings.NewReader("pdf:"+title), -1, "application/pdf"))
	require.NoError(e.t, e.catalog.CreateBook(ctx, book))
	return book
}

func (e *testEnv) token(email string) string {
	e.t.Helper()
	token, err := e.tokens.EncodeToken(email)
	require.NoError(e.t, err)
	return token
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(req)
}

func (e *testEnv) postForm(path, token string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(req)
}

// upload is one file part of a multipart request.
type upload struct {
	field       string
	filename    string
	contentType string
	body        string
}

func multipartRequest(t *testing.T, path, token string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// newRouterWithCaller returns a bare router that marks every request as
// coming from email, for testing a controller without the bearer middleware.
func newRouterWithCaller(email string) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(auth.ContextKeyEmail, email)
		c.Next()
	})
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
