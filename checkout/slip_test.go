package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUpload_AcceptedTypes(t *testing.T) {
	for _, contentType := range []string{"image/png", "image/jpeg", "image/webp"} {
		assert.NoError(t, ValidateUpload(contentType, 1024, 5<<20), contentType)
	}
}

func TestValidateUpload_RejectsWrongType(t *testing.T) {
	for _, contentType := range []string{"application/pdf", "image/gif", "text/plain", ""} {
		err := ValidateUpload(contentType, 1024, 5<<20)
		assert.ErrorIs(t, err, ErrSlipBadType, contentType)
	}
}

func TestValidateUpload_RejectsOversize(t *testing.T) {
	err := ValidateUpload("image/jpeg", 6<<20, 5<<20)
	assert.ErrorIs(t, err, ErrSlipTooLarge)

	// Exactly at the ceiling is allowed.
	assert.NoError(t, ValidateUpload("image/jpeg", 5<<20, 5<<20))
}

func TestValidateUpload_PerFeatureCeilings(t *testing.T) {
	size := int64(6 << 20)

	// Too large for the 5MB slip ceiling, fine for the 8MB try-on one.
	assert.ErrorIs(t, ValidateUpload("image/png", size, 5<<20), ErrSlipTooLarge)
	assert.NoError(t, ValidateUpload("image/png", size, 8<<20))
}
