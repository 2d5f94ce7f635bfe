package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clipdeck/uploader/cmd/uploader/repository"
	"github.com/clipdeck/uploader/common/apperr"
	"github.com/clipdeck/uploader/common/logger"
	"github.com/clipdeck/uploader/common/models"
	"github.com/clipdeck/uploader/common/queue"
	"github.com/clipdeck/uploader/common/storage"
	"github.com/clipdeck/uploader/common/validation"
	"github.com/google/uuid"
)

// FileStore is the metadata store contract the session service needs.
type FileStore interface {
	Create(ctx context.Context, file *models.FileMetadata) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FileMetadata, error)
	GetCompletedByOwner(ctx context.Context, id uuid.UUID, ownerID string) (*models.FileMetadata, error)
	ListByOwner(ctx context.Context, q repository.ListQuery) ([]*models.FileMetadata, int, error)
	SetStatusIfPending(ctx context.Context, id uuid.UUID, status models.UploadStatus) (models.UploadStatus, bool, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
}

// SessionService orchestrates upload sessions: validation, credential
// issuance, the pending->completed/failed state machine, and queries.
type SessionService struct {
	files   FileStore
	storage storage.ObjectStorage
	events  queue.Queue
	cache   ListCache // may be nil when caching is disabled
	listTTL time.Duration
	log     *logger.Logger
}

// NewSessionService creates a new session service
func NewSessionService(files FileStore, objStorage storage.ObjectStorage, events queue.Queue, cache ListCache, listTTL time.Duration, log *logger.Logger) *SessionService {
	return &SessionService{
		files:   files,
		storage: objStorage,
		events:  events,
		cache:   cache,
		listTTL: listTTL,
		log:     log,
	}
}

// CreateSession validates the upload intent, issues a time-limited
// write credential, and persists a pending record. Validation runs
// before any external call; a persisted record only exists after
// successful issuance.
func (s *SessionService) CreateSession(ctx context.Context, req *models.CreateUploadRequest) (*models.UploadSession, error) {
	if err := validation.ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	if err := validation.ValidatePolicy(req); err != nil {
		return nil, err
	}

	key := storage.DeriveKey(req.OwnerID, req.FileName)

	writeURL, err := s.storage.PresignUpload(ctx, key, req.MimeType)
	if err != nil {
		return nil, &apperr.IssuanceError{Err: err}
	}

	now := time.Now().UTC()
	file := &models.FileMetadata{
		ID:              uuid.New(),
		OwnerID:         req.OwnerID,
		FileName:        req.FileName,
		FileType:        req.FileType,
		MimeType:        req.MimeType,
		StorageKey:      key,
		StorageURL:      s.storage.PublicURL(key),
		SizeBytes:       req.SizeBytes,
		DurationSeconds: req.DurationSeconds,
		Status:          models.StatusPending,
		Meta:            map[string]any{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.files.Create(ctx, file); err != nil {
		// The issued credential is left to expire; no compensating
		// revoke exists for a presigned URL.
		return nil, &apperr.PersistenceError{Err: err}
	}

	s.log.Info("upload session created",
		"upload_id", file.ID,
		"owner_id", file.OwnerID,
		"file_type", file.FileType,
		"size_bytes", file.SizeBytes,
	)

	return &models.UploadSession{
		UploadID:   file.ID,
		WriteURL:   writeURL,
		StorageKey: key,
		Metadata:   file,
	}, nil
}

// ConfirmSession verifies that the object landed in the store and moves
// the record to its terminal status. Confirming an already-terminal
// record is a no-op that returns the current state, so the call is
// idempotent.
func (s *SessionService) ConfirmSession(ctx context.Context, id uuid.UUID) (*models.FileMetadata, error) {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if file.Status.Terminal() {
		s.log.Info("confirm on terminal record is a no-op", "upload_id", id, "status", file.Status)
		return file, nil
	}

	exists, err := s.storage.Exists(ctx, file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("verify upload %s: %w", id, err)
	}

	target := models.StatusFailed
	if exists {
		target = models.StatusCompleted
	}

	final, transitioned, err := s.files.SetStatusIfPending(ctx, id, target)
	if err != nil {
		return nil, &apperr.PersistenceError{Err: err}
	}
	file.Status = final
	file.UpdatedAt = time.Now().UTC()

	if transitioned {
		s.publishStatusEvent(ctx, file)
		s.invalidateListings(ctx, file.OwnerID)
	}

	s.log.Info("upload session confirmed",
		"upload_id", id,
		"status", file.Status,
		"transitioned", transitioned,
	)

	return file, nil
}

// ListFiles returns one page of an owner's completed files, newest
// first, optionally narrowed to a declared type.
func (s *SessionService) ListFiles(ctx context.Context, ownerID string, page, limit int, fileType *models.FileType) (*models.FileListing, error) {
	q := repository.ListQuery{
		OwnerID:  ownerID,
		Status:   models.StatusCompleted,
		FileType: fileType,
		Page:     page,
		Limit:    limit,
	}
	q.Normalize()

	if listing, ok := s.cachedListing(ctx, q); ok {
		return listing, nil
	}

	files, total, err := s.files.ListByOwner(ctx, q)
	if err != nil {
		return nil, &apperr.PersistenceError{Err: err}
	}
	if files == nil {
		files = []*models.FileMetadata{}
	}

	listing := &models.FileListing{
		Files: files,
		Pagination: models.Pagination{
			Page:  q.Page,
			Limit: q.Limit,
			Total: total,
			Pages: (total + q.Limit - 1) / q.Limit,
		},
	}

	s.storeListing(ctx, q, listing)

	return listing, nil
}

// GetFile returns a completed record only when it belongs to ownerID.
func (s *SessionService) GetFile(ctx context.Context, id uuid.UUID, ownerID string) (*models.FileMetadata, error) {
	return s.files.GetCompletedByOwner(ctx, id, ownerID)
}

// DeleteFile removes the metadata record matching (id, ownerID)
// regardless of status, then deletes the stored object best-effort: a
// storage failure leaves an orphaned object, never a dangling record.
func (s *SessionService) DeleteFile(ctx context.Context, id uuid.UUID, ownerID string) error {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if file.OwnerID != ownerID {
		// Indistinguishable from a record that does not exist.
		return apperr.ErrNotFound
	}

	if err := s.files.Delete(ctx, id, ownerID); err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, file.StorageKey); err != nil {
		s.log.Warn("failed to delete stored object; metadata removed",
			"upload_id", id,
			"storage_key", file.StorageKey,
			"error", err,
		)
	}

	s.invalidateListings(ctx, ownerID)

	s.log.Info("file deleted", "upload_id", id, "owner_id", ownerID)
	return nil
}

func (s *SessionService) publishStatusEvent(ctx context.Context, file *models.FileMetadata) {
	if s.events == nil {
		return
	}

	topic := queue.TopicUploadFailed
	if file.Status == models.StatusCompleted {
		topic = queue.TopicUploadCompleted
	}

	payload, err := json.Marshal(map[string]any{
		"uploadId":  file.ID,
		"ownerId":   file.OwnerID,
		"fileName":  file.FileName,
		"fileType":  file.FileType,
		"sizeBytes": file.SizeBytes,
		"status":    file.Status,
	})
	if err != nil {
		s.log.Error("failed to marshal upload event", "upload_id", file.ID, "error", err)
		return
	}

	if err := s.events.Publish(ctx, topic, file.ID.String(), payload); err != nil {
		s.log.Error("failed to publish upload event", "upload_id", file.ID, "topic", topic, "error", err)
	}
}
