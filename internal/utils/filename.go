package utils

import (
	"path"
	"regexp"
	"strings"
)

const maxFilenameLength = 200

var (
	// Characters invalid in filenames on most filesystems, plus quotes and
	// semicolons that would break a Content-Disposition header
	invalidFilenameChars = regexp.MustCompile(`[<>:"'/\\|?*;]`)
	// Control characters, including newlines and tabs
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	// Multiple spaces to collapse
	multipleSpaces = regexp.MustCompile(`\s+`)
)

// SanitizeFilename cleans an uploaded filename so it is safe as a storage key
// element and as a download name.
func SanitizeFilename(filename string) string {
	filename = controlChars.ReplaceAllString(filename, " ")
	filename = invalidFilenameChars.ReplaceAllString(filename, "")
	filename = multipleSpaces.ReplaceAllString(filename, " ")
	filename = strings.TrimSpace(filename)

	// Limit length, keeping the extension so content types still resolve
	if len(filename) > maxFilenameLength {
		ext := path.Ext(filename)
		if len(ext) > 16 {
			ext = ""
		}
		filename = strings.TrimSpace(Truncate(filename, maxFilenameLength-len(ext))) + ext
	}

	if filename == "" {
		filename = "untitled"
	}

	return filename
}
