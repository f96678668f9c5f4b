package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

var (
	ErrObjectNotFound    = errors.New("storage: object not found")
	ErrTooLarge          = errors.New("storage: file exceeds upload limit")
	ErrUnsupportedType   = errors.New("storage: unsupported file type")
	ErrObjectExists      = errors.New("storage: object already exists")
	ErrInvalidObjectPath = errors.New("storage: invalid object path")
)

// AttachmentStorage stores proposal attachments under opaque keys.
type AttachmentStorage interface {
	// Save writes r under a new key inside the proposal's folder and returns
	// the key and the number of bytes written.
	Save(ctx context.Context, proposalID uuid.UUID, originalName, contentType string, r io.Reader) (string, int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// IsAllowedMimeType reports whether uploads of the given type are accepted.
func IsAllowedMimeType(mime string) bool {
	switch mime {
	case "application/pdf",
		"image/jpeg",
		"image/png",
		"image/webp",
		"application/msword",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return true
	}
	return false
}

// sniffLen covers every magic number filetype inspects.
const sniffLen = 8192

// Sniff detects the content type from the first bytes of r and returns a
// reader that replays them.
func Sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, fmt.Errorf("storage: read upload: %w", err)
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", nil, ErrUnsupportedType
	}
	if !IsAllowedMimeType(kind.MIME.Value) {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedType, kind.MIME.Value)
	}
	return kind.MIME.Value, io.MultiReader(bytes.NewReader(head), r), nil
}

// objectKey builds "<proposal>/<unix-nano>-<sanitized name>".
func objectKey(proposalID uuid.UUID, originalName string) string {
	return path.Join(proposalID.String(), fmt.Sprintf("%d-%s", time.Now().UnixNano(), SanitizeFilename(originalName)))
}

// maxFilenameBytes leaves room for the timestamp prefix and ".tmp" suffix within
// the usual 255 byte file name limit.
const maxFilenameBytes = 200

// SanitizeFilename strips directories and characters unsafe in keys or
// Content-Disposition headers, and caps the result at maxFilenameBytes.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '/' || r == '\\' || r < 0x20:
			return '_'
		default:
			return r
		}
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "attachment"
	}
	return truncateFilename(name, maxFilenameBytes)
}

// truncateFilename shortens the stem on a rune boundary and keeps a short
// extension intact.
func truncateFilename(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := path.Ext(name)
	if len(ext) > 16 {
		ext = ""
	}
	stem := name[:len(name)-len(ext)]
	cut := limit - len(ext)
	for cut > 0 && !utf8.RuneStart(stem[cut]) {
		cut--
	}
	return stem[:cut] + ext
}

// validKey rejects keys that could escape the storage root.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return false
		}
	}
	return true
}
