package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/clipdeck/uploader/common/apperr"
	"github.com/clipdeck/uploader/common/db"
	"github.com/clipdeck/uploader/common/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultPageSize is used when a listing request does not specify a limit.
const DefaultPageSize = 20

// MaxPageSize caps the page size of listing requests.
const MaxPageSize = 100

// ListQuery describes one page of an owner's files.
type ListQuery struct {
	OwnerID  string
	Status   models.UploadStatus
	FileType *models.FileType
	Page     int
	Limit    int
}

// Normalize clamps page and limit into their valid ranges.
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
}

// FileRepository handles database operations for upload records
type FileRepository struct {
	db *db.DB
}

// NewFileRepository creates a new file repository
func NewFileRepository(db *db.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `
	file_id, owner_id, file_name, file_type, mime_type, storage_key,
	storage_url, size_bytes, duration_seconds, status, meta,
	created_at, updated_at
`

// Create inserts a new upload record. The unique constraint on
// storage_key is the hard backstop for key collisions.
func (r *FileRepository) Create(ctx context.Context, file *models.FileMetadata) error {
	query := `
		INSERT INTO file_metadata (
			file_id, owner_id, file_name, file_type, mime_type, storage_key,
			storage_url, size_bytes, duration_seconds, status, meta,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := r.db.Exec(ctx, query,
		file.ID,
		file.OwnerID,
		file.FileName,
		file.FileType,
		file.MimeType,
		file.StorageKey,
		file.StorageURL,
		file.SizeBytes,
		file.DurationSeconds,
		file.Status,
		file.Meta,
		file.CreatedAt,
		file.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create upload record: %w", err)
	}

	return nil
}

// GetByID retrieves an upload record by id regardless of owner or status.
func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FileMetadata, error) {
	query := `SELECT ` + fileColumns + ` FROM file_metadata WHERE file_id = $1`

	file, err := r.scanOne(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	return file, nil
}

// GetCompletedByOwner retrieves a completed record only when it belongs
// to ownerID. Ownership is part of the predicate so a miss is
// indistinguishable from a record that does not exist.
func (r *FileRepository) GetCompletedByOwner(ctx context.Context, id uuid.UUID, ownerID string) (*models.FileMetadata, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM file_metadata
		WHERE file_id = $1 AND owner_id = $2 AND status = $3
	`

	file, err := r.scanOne(r.db.QueryRow(ctx, query, id, ownerID, models.StatusCompleted))
	if err != nil {
		return nil, err
	}

	return file, nil
}

// ListByOwner returns one newest-first page of an owner's records plus
// the total count for pagination.
func (r *FileRepository) ListByOwner(ctx context.Context, q ListQuery) ([]*models.FileMetadata, int, error) {
	q.Normalize()

	where := `WHERE owner_id = $1 AND status = $2`
	args := []any{q.OwnerID, q.Status}

	if q.FileType != nil {
		where += ` AND file_type = $3`
		args = append(args, *q.FileType)
	}

	var total int
	countQuery := `SELECT count(*) FROM file_metadata ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count upload records: %w", err)
	}

	offset := (q.Page - 1) * q.Limit
	listQuery := fmt.Sprintf(`
		SELECT `+fileColumns+`
		FROM file_metadata
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, q.Limit, offset)

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list upload records: %w", err)
	}
	defer rows.Close()

	var files []*models.FileMetadata
	for rows.Next() {
		file, err := r.scanOne(rows)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read upload records: %w", err)
	}

	return files, total, nil
}

// SetStatusIfPending atomically moves a pending record to the given
// terminal status. When the record is already terminal the current
// status is returned and transitioned is false, so concurrent confirm
// calls observe at most one transition away from pending.
func (r *FileRepository) SetStatusIfPending(ctx context.Context, id uuid.UUID, status models.UploadStatus) (models.UploadStatus, bool, error) {
	query := `
		UPDATE file_metadata
		SET status = $2, updated_at = now()
		WHERE file_id = $1 AND status = $3
		RETURNING status
	`

	var updated models.UploadStatus
	err := r.db.QueryRow(ctx, query, id, status, models.StatusPending).Scan(&updated)
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("failed to update upload status: %w", err)
	}

	// No pending row matched: either the record is terminal or absent.
	var current models.UploadStatus
	err = r.db.QueryRow(ctx, `SELECT status FROM file_metadata WHERE file_id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, apperr.ErrNotFound
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read upload status: %w", err)
	}

	return current, false, nil
}

// Delete removes the record matching (id, ownerID) regardless of status.
func (r *FileRepository) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM file_metadata WHERE file_id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete upload record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *FileRepository) scanOne(row rowScanner) (*models.FileMetadata, error) {
	file := &models.FileMetadata{}
	err := row.Scan(
		&file.ID,
		&file.OwnerID,
		&file.FileName,
		&file.FileType,
		&file.MimeType,
		&file.StorageKey,
		&file.StorageURL,
		&file.SizeBytes,
		&file.DurationSeconds,
		&file.Status,
		&file.Meta,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan upload record: %w", err)
	}

	return file, nil
}
