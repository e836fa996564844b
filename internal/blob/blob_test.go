package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/ebookstore/internal/apperr"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		filename string
		want     string
		wantErr  bool
	}{
		{"plain", PDFPrefix, "dune.pdf", "pdfs/dune.pdf", false},
		{"strips directories", ImagePrefix, "../../etc/cover.png", "images/cover.png", false},
		{"windows path", ImagePrefix, `C:\Users\me\cover.jpg`, "images/cover.jpg", false},
		{"sanitizes quotes", PDFPrefix, `du"ne;.pdf`, "pdfs/dune.pdf", false},
		{"empty", PDFPrefix, "", "", true},
		{"dot dot", PDFPrefix, "..", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Key(tt.prefix, tt.filename)
			if tt.wantErr {
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "dune.pdf", Filename("pdfs/dune.pdf"))
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("put then open", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, "pdfs/book.pdf", strings.NewReader("%PDF-1.4"), 8, "application/pdf"))

		rc, err := store.Open(ctx, "pdfs/book.pdf")
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4", string(data))
	})

	t.Run("put overwrites and leaves no temp files", func(t *testing.T) {
		root := t.TempDir()
		store, err := NewFileStore(root)
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, "images/a.png", strings.NewReader("one"), 3, "image/png"))
		require.NoError(t, store.Put(ctx, "images/a.png", strings.NewReader("two"), 3, "image/png"))

		entries, err := os.ReadDir(filepath.Join(root, "images"))
		require.NoError(t, err)
		require.Len(t, entries, 1)

		data, err := os.ReadFile(filepath.Join(root, "images", "a.png"))
		require.NoError(t, err)
		assert.Equal(t, "two", string(data))
	})

	t.Run("missing key is not found", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.Open(ctx, "pdfs/missing.pdf")
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, "pdfs/x.pdf", strings.NewReader("x"), 1, "application/pdf"))
		require.NoError(t, store.Delete(ctx, "pdfs/x.pdf"))
		require.NoError(t, store.Delete(ctx, "pdfs/x.pdf"))

		_, err = store.Open(ctx, "pdfs/x.pdf")
		assert.Error(t, err)
	})

	t.Run("rejects keys escaping the root", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		require.NoError(t, err)

		err = store.Put(ctx, "../outside.txt", strings.NewReader("x"), 1, "text/plain")
		assert.Error(t, err)

		_, err = store.Open(ctx, "/etc/passwd")
		assert.Error(t, err)
	})
}
