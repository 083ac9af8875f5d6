package converter

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/celestiaorg/geoimport/internal/types"
)

// Supported file extensions
const (
	ExtKML = ".kml"
	ExtKMZ = ".kmz"
	ExtGPX = ".gpx"

	// DefaultMaxBytes is the largest file accepted by default
	DefaultMaxBytes int64 = 50 << 20
	// sniffBytes is how much of the head of a file is inspected for markup
	sniffBytes = 4096
)

var (
	zipMagic = []byte("PK\x03\x04")
	utf8BOM  = []byte("\xef\xbb\xbf")
)

// Extension returns the lower-cased extension of filename
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// IsSupported reports whether filename has an extension the converter handles
func IsSupported(filename string) bool {
	switch Extension(filename) {
	case ExtKML, ExtKMZ, ExtGPX:
		return true
	}
	return false
}

// Validator performs cheap structural checks before conversion
type Validator struct {
	MaxBytes int64
}

// NewValidator creates a validator accepting files up to maxBytes
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{MaxBytes: maxBytes}
}

// Validate rejects empty, oversized, unsupported or malformed-looking files
func (v *Validator) Validate(data []byte, filename string) error {
	if !IsSupported(filename) {
		return types.NewValidationError("file", "unsupported file type %q, expected .kml, .kmz or .gpx", Extension(filename))
	}
	if len(data) == 0 {
		return types.NewValidationError("file", "file is empty")
	}
	if int64(len(data)) > v.MaxBytes {
		return types.NewValidationError("file", "file is %d bytes, the limit is %d bytes", len(data), v.MaxBytes)
	}

	if Extension(filename) == ExtKMZ {
		if !bytes.HasPrefix(data, zipMagic) {
			return types.NewValidationError("file", "KMZ file is not a zip archive")
		}
		return nil
	}
	return checkMarkup(data)
}

// checkMarkup rejects documents that are not XML or that declare a DTD, which
// is where entity expansion attacks live.
func checkMarkup(data []byte) error {
	head := data
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}
	head = bytes.TrimPrefix(head, utf8BOM)
	head = bytes.TrimLeft(head, " \t\r\n")
	if !bytes.HasPrefix(head, []byte("<")) {
		return types.NewValidationError("file", "file is not an XML document")
	}
	upper := bytes.ToUpper(head)
	if bytes.Contains(upper, []byte("<!DOCTYPE")) || bytes.Contains(upper, []byte("<!ENTITY")) {
		return types.NewValidationError("file", "XML document type declarations are not allowed")
	}
	return nil
}
