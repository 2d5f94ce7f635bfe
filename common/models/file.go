package models

import (
	"time"

	"github.com/google/uuid"
)

// FileType is the coarse content category declared by the client.
type FileType string

const (
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypePDF      FileType = "pdf"
	FileTypeDocument FileType = "document"
)

// FileTypes lists every supported declared type.
var FileTypes = []FileType{FileTypeVideo, FileTypeAudio, FileTypePDF, FileTypeDocument}

// UploadStatus tracks the lifecycle of a single upload attempt.
// Transitions are pending -> completed or pending -> failed; both
// terminal states are final.
type UploadStatus string

const (
	StatusPending   UploadStatus = "pending"
	StatusCompleted UploadStatus = "completed"
	StatusFailed    UploadStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s UploadStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FileMetadata is the authoritative record of one upload attempt.
// The storage key is globally unique; the database enforces it.
type FileMetadata struct {
	ID              uuid.UUID      `json:"id"`
	OwnerID         string         `json:"ownerId"`
	FileName        string         `json:"fileName"`
	FileType        FileType       `json:"fileType"`
	MimeType        string         `json:"mimeType"`
	StorageKey      string         `json:"storageKey"`
	StorageURL      string         `json:"storageUrl"`
	SizeBytes       int64          `json:"sizeBytes"`
	DurationSeconds *float64       `json:"durationSeconds,omitempty"`
	Status          UploadStatus   `json:"status"`
	Meta            map[string]any `json:"meta,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// CreateUploadRequest is the body of POST /api/upload/session.
type CreateUploadRequest struct {
	OwnerID         string   `json:"ownerId"`
	FileName        string   `json:"fileName"`
	FileType        FileType `json:"fileType"`
	MimeType        string   `json:"mimeType"`
	SizeBytes       int64    `json:"sizeBytes"`
	DurationSeconds *float64 `json:"duration,omitempty"`
}

// UploadSession is returned by a successful CreateSession call. The
// write URL authorizes exactly one PUT of the declared content type to
// the storage key, and expires after the configured TTL.
type UploadSession struct {
	UploadID   uuid.UUID     `json:"uploadId"`
	WriteURL   string        `json:"writeUrl"`
	StorageKey string        `json:"storageKey"`
	Metadata   *FileMetadata `json:"metadata"`
}

// Pagination describes an offset-paginated listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// FileListing is the result of a ListFiles call.
type FileListing struct {
	Files      []*FileMetadata `json:"files"`
	Pagination Pagination      `json:"pagination"`
}
