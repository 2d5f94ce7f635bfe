package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/clipdeck/uploader/cmd/uploader/repository"
	"github.com/clipdeck/uploader/common/apperr"
	"github.com/clipdeck/uploader/common/logger"
	"github.com/clipdeck/uploader/common/models"
	"github.com/clipdeck/uploader/common/queue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeFileStore is an in-memory FileStore with the same terminal-state
// semantics as the Postgres repository.
type fakeFileStore struct {
	mu        sync.Mutex
	files     map[uuid.UUID]*models.FileMetadata
	createErr error
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[uuid.UUID]*models.FileMetadata)}
}

func (s *fakeFileStore) Create(ctx context.Context, file *models.FileMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.files {
		if existing.StorageKey == file.StorageKey {
			return fmt.Errorf("duplicate storage key %s", file.StorageKey)
		}
	}
	cp := *file
	s.files[file.ID] = &cp
	return nil
}

func (s *fakeFileStore) GetByID(ctx context.Context, id uuid.UUID) (*models.FileMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok := s.files[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *file
	return &cp, nil
}

func (s *fakeFileStore) GetCompletedByOwner(ctx context.Context, id uuid.UUID, ownerID string) (*models.FileMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok := s.files[id]
	if !ok || file.OwnerID != ownerID || file.Status != models.StatusCompleted {
		return nil, apperr.ErrNotFound
	}
	cp := *file
	return &cp, nil
}

func (s *fakeFileStore) ListByOwner(ctx context.Context, q repository.ListQuery) ([]*models.FileMetadata, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q.Normalize()

	var matched []*models.FileMetadata
	for _, file := range s.files {
		if file.OwnerID != q.OwnerID || file.Status != q.Status {
			continue
		}
		if q.FileType != nil && file.FileType != *q.FileType {
			continue
		}
		cp := *file
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	return matched[start:end], total, nil
}

func (s *fakeFileStore) SetStatusIfPending(ctx context.Context, id uuid.UUID, status models.UploadStatus) (models.UploadStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok := s.files[id]
	if !ok {
		return "", false, apperr.ErrNotFound
	}
	if file.Status != models.StatusPending {
		return file.Status, false, nil
	}
	file.Status = status
	file.UpdatedAt = time.Now().UTC()
	return status, true, nil
}

func (s *fakeFileStore) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok := s.files[id]
	if !ok || file.OwnerID != ownerID {
		return apperr.ErrNotFound
	}
	delete(s.files, id)
	return nil
}

func (s *fakeFileStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// fakeStorage is an in-memory object store.
type fakeStorage struct {
	mu         sync.Mutex
	objects    map[string]bool
	presignErr error
	deleted    []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]bool)}
}

func (f *fakeStorage) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://signed.example/" + key, nil
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key], nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) PublicURL(key string) string {
	return "https://bucket.example/" + key
}

func (f *fakeStorage) PresignTTL() time.Duration {
	return time.Hour
}

func (f *fakeStorage) put(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = true
}

func newTestService(store *fakeFileStore, objs *fakeStorage) *SessionService {
	log := logger.New("error", "json")
	return NewSessionService(store, objs, queue.NewMemoryQueue(log), nil, time.Second, log)
}

func validRequest() *models.CreateUploadRequest {
	return &models.CreateUploadRequest{
		OwnerID:   "owner-1",
		FileName:  "report.pdf",
		FileType:  models.FileTypePDF,
		MimeType:  "application/pdf",
		SizeBytes: 1024,
	}
}

func TestCreateSessionOversize(t *testing.T) {
	store := newFakeFileStore()
	svc := newTestService(store, newFakeStorage())

	req := validRequest()
	req.SizeBytes = 50*1024*1024 + 1

	_, err := svc.CreateSession(context.Background(), req)
	require.Error(t, err)
	require.True(t, apperr.IsValidation(err))
	require.Zero(t, store.count(), "no record may exist after a validation failure")
}

func TestCreateSessionDisallowedMime(t *testing.T) {
	store := newFakeFileStore()
	svc := newTestService(store, newFakeStorage())

	req := validRequest()
	req.MimeType = "application/zip"

	_, err := svc.CreateSession(context.Background(), req)
	require.Error(t, err)
	require.True(t, apperr.IsValidation(err))
	require.Zero(t, store.count())
}

func TestCreateSessionIssuanceFailure(t *testing.T) {
	store := newFakeFileStore()
	objs := newFakeStorage()
	objs.presignErr = errors.New("signer unreachable")
	svc := newTestService(store, objs)

	_, err := svc.CreateSession(context.Background(), validRequest())
	require.Error(t, err)

	var ie *apperr.IssuanceError
	require.ErrorAs(t, err, &ie)
	require.Zero(t, store.count(), "issuance failure must not leave a record behind")
}

func TestCreateSessionPersistFailure(t *testing.T) {
	store := newFakeFileStore()
	store.createErr = errors.New("connection refused")
	svc := newTestService(store, newFakeStorage())

	_, err := svc.CreateSession(context.Background(), validRequest())
	require.Error(t, err)

	var pe *apperr.PersistenceError
	require.ErrorAs(t, err, &pe)
}

func TestCreateSessionDistinctKeys(t *testing.T) {
	store := newFakeFileStore()
	svc := newTestService(store, newFakeStorage())

	first, err := svc.CreateSession(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := svc.CreateSession(context.Background(), validRequest())
	require.NoError(t, err)

	require.NotEqual(t, first.StorageKey, second.StorageKey,
		"identical owner and file name must still produce distinct keys")
}

func TestConfirmSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	objs := newFakeStorage()
	svc := newTestService(store, objs)

	session, err := svc.CreateSession(ctx, validRequest())
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, session.Metadata.Status)
	require.Equal(t, "https://signed.example/"+session.StorageKey, session.WriteURL)

	// Simulate the direct transfer landing in the store.
	objs.put(session.StorageKey)

	confirmed, err := svc.ConfirmSession(ctx, session.UploadID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, confirmed.Status)

	got, err := svc.GetFile(ctx, session.UploadID, "owner-1")
	require.NoError(t, err)
	require.Equal(t, session.UploadID, got.ID)

	_, err = svc.GetFile(ctx, session.UploadID, "owner-2")
	require.ErrorIs(t, err, apperr.ErrNotFound,
		"another owner must not be able to read the record")
}

func TestConfirmSessionVerifyFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	objs := newFakeStorage()
	svc := newTestService(store, objs)

	session, err := svc.CreateSession(ctx, validRequest())
	require.NoError(t, err)

	// No object at the storage key: verification fails.
	confirmed, err := svc.ConfirmSession(ctx, session.UploadID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, confirmed.Status)

	// The record is terminal: a late-arriving object changes nothing.
	objs.put(session.StorageKey)
	again, err := svc.ConfirmSession(ctx, session.UploadID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, again.Status)
}

func TestConfirmSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	objs := newFakeStorage()
	svc := newTestService(store, objs)

	session, err := svc.CreateSession(ctx, validRequest())
	require.NoError(t, err)
	objs.put(session.StorageKey)

	first, err := svc.ConfirmSession(ctx, session.UploadID)
	require.NoError(t, err)
	second, err := svc.ConfirmSession(ctx, session.UploadID)
	require.NoError(t, err)

	require.Equal(t, first.Status, second.Status)
	require.Equal(t, models.StatusCompleted, second.Status)
}

func TestConfirmSessionNotFound(t *testing.T) {
	svc := newTestService(newFakeFileStore(), newFakeStorage())

	_, err := svc.ConfirmSession(context.Background(), uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteFileNonOwner(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	objs := newFakeStorage()
	svc := newTestService(store, objs)

	session, err := svc.CreateSession(ctx, validRequest())
	require.NoError(t, err)

	err = svc.DeleteFile(ctx, session.UploadID, "owner-2")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.Equal(t, 1, store.count(), "record must survive a non-owner delete")
}

func TestDeleteFileRemovesObject(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	objs := newFakeStorage()
	svc := newTestService(store, objs)

	session, err := svc.CreateSession(ctx, validRequest())
	require.NoError(t, err)
	objs.put(session.StorageKey)

	require.NoError(t, svc.DeleteFile(ctx, session.UploadID, "owner-1"))
	require.Zero(t, store.count())
	require.Contains(t, objs.deleted, session.StorageKey)
}

func TestListFilesPagination(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	svc := newTestService(store, newFakeStorage())

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		require.NoError(t, store.Create(ctx, &models.FileMetadata{
			ID:         uuid.New(),
			OwnerID:    "owner-1",
			FileName:   fmt.Sprintf("file-%d.pdf", i),
			FileType:   models.FileTypePDF,
			MimeType:   "application/pdf",
			StorageKey: fmt.Sprintf("uploads/owner-1/%d", i),
			SizeBytes:  1024,
			Status:     models.StatusCompleted,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}
	// Pending records never show up in listings.
	require.NoError(t, store.Create(ctx, &models.FileMetadata{
		ID:         uuid.New(),
		OwnerID:    "owner-1",
		FileName:   "pending.pdf",
		FileType:   models.FileTypePDF,
		StorageKey: "uploads/owner-1/pending",
		Status:     models.StatusPending,
		CreatedAt:  base.Add(time.Hour),
	}))

	page1, err := svc.ListFiles(ctx, "owner-1", 1, 20, nil)
	require.NoError(t, err)
	require.Len(t, page1.Files, 20)
	require.Equal(t, 25, page1.Pagination.Total)
	require.Equal(t, 2, page1.Pagination.Pages)
	require.Equal(t, "file-24.pdf", page1.Files[0].FileName, "newest first")

	page2, err := svc.ListFiles(ctx, "owner-1", 2, 20, nil)
	require.NoError(t, err)
	require.Len(t, page2.Files, 5)
	require.Equal(t, 2, page2.Pagination.Pages)
}

func TestListFilesTypeFilter(t *testing.T) {
	ctx := context.Background()
	store := newFakeFileStore()
	svc := newTestService(store, newFakeStorage())

	for i, fileType := range []models.FileType{models.FileTypePDF, models.FileTypeVideo, models.FileTypePDF} {
		require.NoError(t, store.Create(ctx, &models.FileMetadata{
			ID:         uuid.New(),
			OwnerID:    "owner-1",
			FileName:   fmt.Sprintf("file-%d", i),
			FileType:   fileType,
			StorageKey: fmt.Sprintf("uploads/owner-1/typed-%d", i),
			Status:     models.StatusCompleted,
			CreatedAt:  time.Now().UTC(),
		}))
	}

	pdf := models.FileTypePDF
	listing, err := svc.ListFiles(ctx, "owner-1", 1, 20, &pdf)
	require.NoError(t, err)
	require.Len(t, listing.Files, 2)
	require.Equal(t, 2, listing.Pagination.Total)
}
