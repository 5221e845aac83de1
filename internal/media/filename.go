// Package media validates, names and stores uploaded videos.
package media

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrEmptyFilename     = errors.New("media: empty filename")
	ErrUnsupportedFormat = errors.New("media: unsupported file format")
	ErrTooLarge          = errors.New("media: file too large")
	ErrNotFound          = errors.New("media: file not found")
)

// AllowedExtensions lists the accepted video extensions, lowercase.
var AllowedExtensions = []string{"mp4", "avi", "mov", "mkv", "webm"}

var contentTypes = map[string]string{
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
}

// Extension returns the lowercase text after the last dot of the final path
// element, or "" when there is none.
func Extension(name string) string {
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// ValidateFilename checks that name is present and carries an allowed
// extension.
func ValidateFilename(name string) error {
	if name == "" {
		return ErrEmptyFilename
	}
	ext := Extension(name)
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return ErrUnsupportedFormat
}

// ContentType maps a filename to its video MIME type, video/mp4 by default.
func ContentType(name string) string {
	if ct, ok := contentTypes[Extension(name)]; ok {
		return ct
	}
	return "video/mp4"
}

var asciiFold = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// SecureFilename reduces name to a flat ASCII filename safe to join to a
// directory. Names whose stem vanishes keep their extension as
// "video.<ext>".
func SecureFilename(name string) string {
	secure := sanitize(name)
	if ext := sanitize(Extension(name)); secure == "" || strings.EqualFold(secure, ext) {
		if ext == "" {
			return ""
		}
		return "video." + ext
	}
	return secure
}

func sanitize(name string) string {
	folded, _, err := transform.String(asciiFold, name)
	if err != nil {
		return ""
	}
	folded = strings.NewReplacer("/", " ", "\\", " ").Replace(folded)
	joined := strings.Join(strings.Fields(folded), "_")

	var b strings.Builder
	for _, r := range joined {
		if r == '_' || r == '.' || r == '-' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}
