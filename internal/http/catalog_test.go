package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Welcome(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"Welcome":"This is the ebook api"}`, w.Body.String())
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestCatalog_GetAllBooks(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/get-all-books", "")

	require.Equal(t, http.StatusOK, w.Code)
	books := decode(t, w)["books"].([]any)
	require.Len(t, books, 2)

	first := books[0].(map[string]any)
	assert.Equal(t, "Dune", first["title"])
	assert.Equal(t, float64(500), first["price"])
	assert.Equal(t, false, first["is_free"])
	assert.Equal(t, "fiction", first["category"])
	assert.NotContains(t, first, "author_id")
}

func TestCatalog_GetAllAuthors(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/get-all-authors", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":["writer"]}`, w.Body.String())
}

func TestCatalog_GetAllCategories(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/get-all-categories", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":["mystery","history","sci-fi","fiction","action","drama","horror","thriller"]}`, w.Body.String())
}

func TestCatalog_GetBook(t *testing.T) {
	env := newTestEnv(t)

	t.Run("returns detail with author and image url", func(t *testing.T) {
		w := env.get(fmt.Sprintf("/get-book/%d", env.paidBook.ID), "")

		require.Equal(t, http.StatusOK, w.Code)
		book := decode(t, w)["book"].(map[string]any)
		assert.Equal(t, "writer", book["author"])
		assert.Equal(t, "Dune", book["title"])
		assert.Equal(t, fmt.Sprintf("%s/get-book-image/%d", testBaseURL, env.paidBook.ID), book["image"])
	})

	t.Run("missing book is a 400", func(t *testing.T) {
		w := env.get("/get-book/9999", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Book does not exist","code":"not_found"}`, w.Body.String())
	})

	t.Run("non-numeric id is a 400", func(t *testing.T) {
		w := env.get("/get-book/abc", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid id")
	})
}

func TestCatalog_GetCategoryBooks(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/get-all-category-books/Fiction", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["books"], 2)

	w = env.get("/get-all-category-books/horror", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["books"])

	w = env.get("/get-all-category-books/cookbooks", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid category")
}

func TestCatalog_GetAuthorBooks(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/get-author-books/writer", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["books"], 2)

	w = env.get("/get-author-books/nobody", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Author does not exist")
}
