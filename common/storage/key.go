package storage

import (
	"fmt"
	"time"

	"github.com/clipdeck/uploader/common/validation"
	"github.com/google/uuid"
)

// DeriveKey builds the storage key for a new upload:
//
//	uploads/{ownerId}/{epochMillis}-{nonce}-{sanitizedFileName}
//
// The nonce keeps keys distinct even when the same owner uploads the
// same file name twice within one millisecond; the store's uniqueness
// constraint remains the hard backstop.
func DeriveKey(ownerID, fileName string) string {
	nonce := uuid.NewString()[:8]
	return fmt.Sprintf("uploads/%s/%d-%s-%s",
		ownerID,
		time.Now().UnixMilli(),
		nonce,
		validation.SanitizeFileName(fileName),
	)
}
