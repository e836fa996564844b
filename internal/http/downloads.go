package http

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/auth"
	"github.com/mrlokans/ebookstore/internal/blob"
	"github.com/mrlokans/ebookstore/internal/entities"
)

// DownloadsController streams covers and PDFs out of the blob store.
type DownloadsController struct {
	books  BookGetter
	users  UserGetter
	gate   DownloadGate
	blobs  blob.Store
	audit  EventLogger
	logger *zap.Logger
}

func NewDownloadsController(books BookGetter, users UserGetter, gate DownloadGate, blobs blob.Store, audit EventLogger, logger *zap.Logger) *DownloadsController {
	if audit == nil {
		audit = nopEventLogger{}
	}
	return &DownloadsController{
		books:  books,
		users:  users,
		gate:   gate,
		blobs:  blobs,
		audit:  audit,
		logger: orNop(logger),
	}
}

// GetBookImage handles GET /get-book-image/:id. Covers are public.
func (controller *DownloadsController) GetBookImage(c *gin.Context) {
	book, ok := controller.loadBook(c)
	if !ok {
		return
	}

	contentType := mime.TypeByExtension(path.Ext(book.ImageKey))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	controller.stream(c, book.ImageKey, contentType, nil)
}

// GetBookPDF handles GET /get-book-pdf/:id. Free books are served to anyone;
// paid books only to a reader holding a purchase for exactly this book.
func (controller *DownloadsController) GetBookPDF(c *gin.Context) {
	book, ok := controller.loadBook(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := controller.caller(ctx, c, book)
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}

	allowed, err := controller.gate.CanDownload(ctx, user, book)
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}

	var userID uint
	if user != nil {
		userID = user.ID
	}
	controller.audit.LogDownload(userID, book.ID, allowed)
	if !allowed {
		respondError(c, controller.logger, apperr.InvalidState("You have not purchased this book"))
		return
	}

	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", blob.Filename(book.PDFKey)),
	}
	controller.stream(c, book.PDFKey, "application/octet-stream", headers)
}

// caller resolves the reader for a paid book. Free books skip the lookup.
func (controller *DownloadsController) caller(ctx context.Context, c *gin.Context, book *entities.Book) (*entities.User, error) {
	if !book.RequiresPayment() {
		return nil, nil
	}

	email := auth.GetEmail(c)
	if email == "" {
		return nil, apperr.Unauthorized("You are not registered as a user")
	}
	user, err := controller.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Unauthorized("You are not registered as a user")
	}
	return user, nil
}

func (controller *DownloadsController) loadBook(c *gin.Context) (*entities.Book, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	book, err := controller.books.GetBook(c.Request.Context(), id)
	if err != nil {
		respondError(c, controller.logger, err)
		return nil, false
	}
	if book == nil {
		respondError(c, controller.logger, apperr.NotFound("Book does not exist"))
		return nil, false
	}
	return book, true
}

func (controller *DownloadsController) stream(c *gin.Context, key, contentType string, headers map[string]string) {
	rc, err := controller.blobs.Open(c.Request.Context(), key)
	if err != nil {
		// A listed book whose blob is gone is a storage fault, not a client error.
		controller.logger.Error("blob missing for listed book",
			zap.String("key", key),
			zap.Error(err))
		respondError(c, controller.logger, fmt.Errorf("open blob %s: %v", key, err))
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, rc, headers)
}
