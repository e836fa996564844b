// Package blob stores book covers and PDFs.
//
// Keys are slash-separated paths such as "images/dune.png" and "pdfs/dune.pdf".
// FileStore keeps them under a local directory; MinioStore keeps them in an
// S3-compatible bucket.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/utils"
)

const (
	ImagePrefix = "images"
	PDFPrefix   = "pdfs"
)

// Store is the blob storage used by uploads and downloads.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Key joins a prefix and an uploaded filename into a store key.
// Directory components in filename are dropped and the rest is sanitized.
func Key(prefix, filename string) (string, error) {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", apperr.Validation("invalid file name %q", filename)
	}
	return prefix + "/" + utils.SanitizeFilename(name), nil
}

// Filename returns the last element of key, used as the download name.
func Filename(key string) string {
	return path.Base(key)
}

func notFound(key string) error {
	return fmt.Errorf("blob %s: %w", key, apperr.ErrNotFound)
}
