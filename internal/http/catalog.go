package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/entities"
	"github.com/mrlokans/ebookstore/internal/purchase"
)

// BookSummary is the listing view of a book.
type BookSummary struct {
	ID          uint              `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    entities.Category `json:"category"`
	Price       int64             `json:"price"`
	IsFree      bool              `json:"is_free"`
}

// BookDetail adds the author and the cover URL to the listing view.
type BookDetail struct {
	Author string `json:"author"`
	BookSummary
	Image string `json:"image"`
}

func summarize(books []entities.Book) []BookSummary {
	out := make([]BookSummary, 0, len(books))
	for _, b := range books {
		out = append(out, BookSummary{
			ID:          b.ID,
			Title:       b.Title,
			Description: b.Description,
			Category:    b.Category,
			Price:       b.Price,
			IsFree:      b.IsFree,
		})
	}
	return out
}

// CatalogController serves the public browsing endpoints.
type CatalogController struct {
	catalog CatalogReader
	links   purchase.Links
	logger  *zap.Logger
}

func NewCatalogController(catalog CatalogReader, links purchase.Links, logger *zap.Logger) *CatalogController {
	return &CatalogController{
		catalog: catalog,
		links:   links,
		logger:  orNop(logger),
	}
}

func (controller *CatalogController) Welcome(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{"Welcome": "This is the ebook api"})
}

func (controller *CatalogController) GetAllBooks(c *gin.Context) {
	books, err := controller.catalog.ListBooks(c.Request.Context())
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"books": summarize(books)})
}

func (controller *CatalogController) GetAllAuthors(c *gin.Context) {
	authors, err := controller.catalog.ListAuthors(c.Request.Context())
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}

	names := make([]string, 0, len(authors))
	for _, a := range authors {
		names = append(names, a.Username)
	}
	c.IndentedJSON(http.StatusOK, gin.H{"data": names})
}

func (controller *CatalogController) GetAllCategories(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{"data": entities.Categories})
}

func (controller *CatalogController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	book, err := controller.catalog.GetBook(ctx, id)
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}
	if book == nil {
		respondError(c, controller.logger, apperr.NotFound("Book does not exist"))
		return
	}

	var authorName string
	author, err := controller.catalog.GetAuthorByID(ctx, book.AuthorID)
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}
	if author != nil {
		authorName = author.Username
	}

	detail := BookDetail{
		Author:      authorName,
		BookSummary: summarize([]entities.Book{*book})[0],
		Image:       controller.links.BookImage(book.ID),
	}
	c.IndentedJSON(http.StatusOK, gin.H{"book": detail})
}

func (controller *CatalogController) GetCategoryBooks(c *gin.Context) {
	category, ok := entities.ParseCategory(c.Param("category"))
	if !ok {
		respondError(c, controller.logger, apperr.Validation("invalid category"))
		return
	}

	books, err := controller.catalog.ListBooksByCategory(c.Request.Context(), category)
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"books": summarize(books)})
}

func (controller *CatalogController) GetAuthorBooks(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := controller.catalog.GetAuthorByUsername(ctx, c.Param("username"))
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}
	if author == nil {
		respondError(c, controller.logger, apperr.NotFound("Author does not exist"))
		return
	}

	books, err := controller.catalog.ListAuthorBooks(ctx, author.ID)
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"books": summarize(books)})
}
