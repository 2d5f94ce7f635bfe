// Package validation holds the upload admission policy: which MIME
// types each declared type accepts, how large each type may be, and
// how untrusted file names are sanitized before key derivation.
// Everything here is a pure function; nothing touches the network or
// the store.
package validation

import (
	"regexp"

	"github.com/clipdeck/uploader/common/apperr"
	"github.com/clipdeck/uploader/common/models"
)

const mib = 1024 * 1024

// SupportedMimeTypes is the closed allow-list per declared type.
var SupportedMimeTypes = map[models.FileType][]string{
	models.FileTypeVideo:    {"video/mp4"},
	models.FileTypeAudio:    {"audio/mpeg", "audio/mp3"},
	models.FileTypePDF:      {"application/pdf"},
	models.FileTypeDocument: {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
}

// MaxFileSizes is the per-type size ceiling in bytes.
var MaxFileSizes = map[models.FileType]int64{
	models.FileTypeVideo:    500 * mib,
	models.FileTypeAudio:    100 * mib,
	models.FileTypePDF:      50 * mib,
	models.FileTypeDocument: 25 * mib,
}

var unsafeFileNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// TypeAllowed reports whether mimeType is admissible for fileType.
func TypeAllowed(fileType models.FileType, mimeType string) bool {
	for _, allowed := range SupportedMimeTypes[fileType] {
		if mimeType == allowed {
			return true
		}
	}
	return false
}

// SizeAllowed reports whether sizeBytes is within the ceiling for fileType.
func SizeAllowed(fileType models.FileType, sizeBytes int64) bool {
	max, ok := MaxFileSizes[fileType]
	if !ok {
		return false
	}
	return sizeBytes <= max
}

// SanitizeFileName maps every character outside [A-Za-z0-9._-] to '_'
// and truncates to 100 characters. Used only for key derivation.
func SanitizeFileName(name string) string {
	sanitized := unsafeFileNameChars.ReplaceAllString(name, "_")
	if len(sanitized) > 100 {
		sanitized = sanitized[:100]
	}
	return sanitized
}

// FileTypeForMime is the reverse lookup of SupportedMimeTypes. The
// client orchestrator uses it to derive the declared type locally; an
// unmapped MIME type is rejected before any network call.
func FileTypeForMime(mimeType string) (models.FileType, bool) {
	for _, fileType := range models.FileTypes {
		if TypeAllowed(fileType, mimeType) {
			return fileType, true
		}
	}
	return "", false
}

// ValidateCreateRequest checks request shape: required fields, primitive
// bounds, known declared type. It runs before the type/size policy
// checks and short-circuits them on failure.
func ValidateCreateRequest(req *models.CreateUploadRequest) error {
	if req.OwnerID == "" {
		return apperr.NewValidation("ownerId", "is required")
	}
	if len(req.OwnerID) > 100 {
		return apperr.NewValidation("ownerId", "must be at most 100 characters")
	}
	if req.FileName == "" {
		return apperr.NewValidation("fileName", "is required")
	}
	if len(req.FileName) > 255 {
		return apperr.NewValidation("fileName", "must be at most 255 characters")
	}
	if _, ok := SupportedMimeTypes[req.FileType]; !ok {
		return apperr.NewValidation("fileType", "must be one of video, audio, pdf, document")
	}
	if req.MimeType == "" {
		return apperr.NewValidation("mimeType", "is required")
	}
	if req.SizeBytes < 1 {
		return apperr.NewValidation("sizeBytes", "must be a positive integer")
	}
	if req.DurationSeconds != nil && *req.DurationSeconds < 0 {
		return apperr.NewValidation("duration", "must not be negative")
	}
	return nil
}

// ValidatePolicy runs the type and size policy checks after the shape
// check has passed.
func ValidatePolicy(req *models.CreateUploadRequest) error {
	if !TypeAllowed(req.FileType, req.MimeType) {
		return apperr.NewValidation("mimeType", "not allowed for declared file type")
	}
	if !SizeAllowed(req.FileType, req.SizeBytes) {
		return apperr.NewValidation("sizeBytes", "exceeds maximum allowed size for file type")
	}
	return nil
}
