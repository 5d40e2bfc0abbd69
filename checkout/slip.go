package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrSlipBadType means the file is not one of the accepted image
	// formats.
	ErrSlipBadType = errors.New("slip must be a PNG, JPEG or WebP image")
	// ErrSlipTooLarge means the file exceeds the configured ceiling.
	ErrSlipTooLarge = errors.New("slip file is too large")
)

// Accepted slip MIME types. Ceilings are per-feature, not global: the
// checkout slip and the try-on upload each carry their own limit.
var slipMIMETypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// ValidateUpload checks an image upload before any network call.
// Violations surface a specific error per kind so the UI can show a
// field-level message.
func ValidateUpload(contentType string, size, maxBytes int64) error {
	if !slipMIMETypes[contentType] {
		return ErrSlipBadType
	}
	if size > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrSlipTooLarge, size, maxBytes)
	}
	return nil
}
