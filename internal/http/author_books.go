package http

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/auth"
	"github.com/mrlokans/ebookstore/internal/blob"
	"github.com/mrlokans/ebookstore/internal/entities"
)

// DefaultMaxUploadBytes bounds the multipart body of /add-book.
const DefaultMaxUploadBytes int64 = 64 << 20

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

const pdfContentType = "application/pdf"

var imageContentTypes = map[string]bool{"image/jpeg": true, "image/png": true}

// AuthorBooksController lets an authenticated author list and remove books.
type AuthorBooksController struct {
	store     AuthorBookStore
	blobs     blob.Store
	audit     EventLogger
	logger    *zap.Logger
	maxUpload int64
}

func NewAuthorBooksController(store AuthorBookStore, blobs blob.Store, audit EventLogger, logger *zap.Logger, maxUpload int64) *AuthorBooksController {
	if audit == nil {
		audit = nopEventLogger{}
	}
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &AuthorBooksController{
		store:     store,
		blobs:     blobs,
		audit:     audit,
		logger:    orNop(logger),
		maxUpload: maxUpload,
	}
}

// AddBook handles POST /add-book. Fields: title, description, price, is_free,
// category; files: image (jpeg/png) and pdf.
func (controller *AuthorBooksController) AddBook(c *gin.Context) {
	if c.Request.ContentLength > controller.maxUpload {
		respondUploadRejected(c, fmt.Sprintf("Upload exceeds %d bytes", controller.maxUpload))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, controller.maxUpload)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondUploadRejected(c, fmt.Sprintf("Upload exceeds %d bytes", controller.maxUpload))
			return
		}
		respondUploadRejected(c, "Please attach required files to form")
		return
	}

	form, ok := requireForm(c, "title", "description", "price", "is_free", "category")
	if !ok {
		return
	}
	book, err := newBookFromForm(form)
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}

	image, imageErr := c.FormFile("image")
	pdf, pdfErr := c.FormFile("pdf")
	if imageErr != nil || pdfErr != nil {
		respondUploadRejected(c, "Please attach required files to form")
		return
	}
	if !imageContentTypes[mediaType(image)] {
		respondUploadRejected(c, "Please upload only .jpeg/.png files for the image")
		return
	}
	if mediaType(pdf) != pdfContentType {
		respondUploadRejected(c, "Please upload only .pdf files for the pdf")
		return
	}

	ctx := c.Request.Context()
	existing, err := controller.store.GetBookByTitle(ctx, book.Title)
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}
	if existing != nil {
		respondUploadRejected(c, "This book already exists")
		return
	}

	author, err := controller.store.GetAuthorByEmail(ctx, auth.GetEmail(c))
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}
	if author == nil {
		respondUnauthorized(c, "Unauthorized")
		return
	}
	book.AuthorID = author.ID

	if book.ImageKey, err = controller.save(ctx, blob.ImagePrefix, image); err != nil {
		respondError(c, controller.logger, err)
		return
	}
	if book.PDFKey, err = controller.save(ctx, blob.PDFPrefix, pdf); err != nil {
		controller.discard(ctx, book.ImageKey)
		respondError(c, controller.logger, err)
		return
	}

	if err := controller.store.CreateBook(ctx, book); err != nil {
		controller.discard(ctx, book.ImageKey, book.PDFKey)
		if errors.Is(err, apperr.ErrConflict) {
			// Lost a race with another upload of the same title.
			respondUploadRejected(c, "This book already exists")
			return
		}
		respondError(c, controller.logger, err)
		return
	}

	controller.audit.LogCatalog(author.ID, book.ID, "book_added", book.Title)
	controller.logger.Info("book listed",
		zap.Uint("author_id", author.ID),
		zap.Uint("book_id", book.ID),
		zap.String("title", book.Title))

	c.IndentedJSON(http.StatusOK, gin.H{"message": "Book uploaded successfully", "book_name": book.Title})
}

// DeleteBook handles GET /delete-book/:id. Only the owning author may delete.
func (controller *AuthorBooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	author, err := controller.store.GetAuthorByEmail(ctx, auth.GetEmail(c))
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}
	if author == nil {
		respondUnauthorized(c, "Unauthorized")
		return
	}

	book, err := controller.store.DeleteAuthorBook(ctx, author.ID, id)
	if errors.Is(err, apperr.ErrNotFound) {
		c.IndentedJSON(http.StatusNotFound, ErrorResponse{Error: "Book not found", Code: string(apperr.KindNotFound)})
		return
	}
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}

	controller.discard(ctx, book.ImageKey, book.PDFKey)
	controller.audit.LogCatalog(author.ID, book.ID, "book_deleted", book.Title)

	respondSuccess(c, "book deleted successfully")
}

// save stores an upload under prefix/<uuid>/<filename> so equal filenames
// from different books never collide.
func (controller *AuthorBooksController) save(ctx context.Context, prefix string, fh *multipart.FileHeader) (string, error) {
	key, err := blob.Key(prefix+"/"+uuid.NewString(), fh.Filename)
	if err != nil {
		return "", err
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	if err := controller.blobs.Put(ctx, key, f, fh.Size, mediaType(fh)); err != nil {
		return "", fmt.Errorf("store upload %s: %w", fh.Filename, err)
	}
	return key, nil
}

func (controller *AuthorBooksController) discard(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := controller.blobs.Delete(ctx, key); err != nil {
			controller.logger.Warn("failed to delete blob", zap.String("key", key), zap.Error(err))
		}
	}
}

func newBookFromForm(form map[string]string) (*entities.Book, error) {
	title := strings.TrimSpace(form["title"])
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	category, ok := entities.ParseCategory(form["category"])
	if !ok {
		return nil, apperr.Validation("Invalid Category")
	}
	price, err := strconv.ParseInt(strings.TrimSpace(form["price"]), 10, 64)
	if err != nil || price < 0 {
		return nil, apperr.Validation("price must be a non-negative integer")
	}
	isFree, err := strconv.ParseBool(strings.TrimSpace(form["is_free"]))
	if err != nil {
		return nil, apperr.Validation("is_free must be true or false")
	}
	if !isFree && price == 0 {
		return nil, apperr.Validation("a paid book needs a price above zero")
	}

	return &entities.Book{
		Title:       title,
		Description: form["description"],
		Category:    category,
		Price:       price,
		IsFree:      isFree,
	}, nil
}

// mediaType returns the declared content type of an upload without parameters.
func mediaType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
