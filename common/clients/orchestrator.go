package clients

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/clipdeck/uploader/common/models"
	"github.com/clipdeck/uploader/common/validation"
	"github.com/google/uuid"
)

// UploadState tracks a single file through the client-side sequence.
type UploadState string

const (
	StateQueued       UploadState = "queued"
	StateTransferring UploadState = "transferring"
	StateConfirming   UploadState = "confirming"
	StateDone         UploadState = "done"
	StateErrored      UploadState = "errored"
)

// IntakeMaxSizeBytes is the client-side ceiling applied before any
// network call. The server-side per-type policy remains authoritative.
const IntakeMaxSizeBytes = 500 * 1024 * 1024

// mimeTypeByExtension mirrors the server's allow-list for local intake.
var mimeTypeByExtension = map[string]string{
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// TrackedUpload is the orchestrator's view of one file.
type TrackedUpload struct {
	ID       string
	Path     string
	FileName string
	Size     int64
	MimeType string
	FileType models.FileType
	State    UploadState
	Progress int
	Error    string
	Record   *models.FileMetadata
}

// ProgressEvent is emitted on every state or progress change.
type ProgressEvent struct {
	UploadID string
	State    UploadState
	Progress int
	Error    string
	Record   *models.FileMetadata
}

// Orchestrator drives N file transfers concurrently, each through
// queued -> transferring -> confirming -> done | errored. Failure of
// one file never blocks or aborts another; partial success across a
// batch is expected and surfaced per file.
type Orchestrator struct {
	client  *UploadClient
	ownerID string

	mu      sync.Mutex
	uploads map[string]*TrackedUpload

	events chan ProgressEvent
	wg     sync.WaitGroup
}

// NewOrchestrator creates an orchestrator uploading on behalf of ownerID.
func NewOrchestrator(client *UploadClient, ownerID string) *Orchestrator {
	return &Orchestrator{
		client:  client,
		ownerID: ownerID,
		uploads: make(map[string]*TrackedUpload),
		events:  make(chan ProgressEvent, 256),
	}
}

// Add registers a local file for upload after the client-side intake
// checks: size ceiling and extension allow-list. Rejection happens
// locally, with no network call.
func (o *Orchestrator) Add(path string) (*TrackedUpload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	if info.Size() > IntakeMaxSizeBytes {
		return nil, fmt.Errorf("%s exceeds the %d MiB upload ceiling", path, IntakeMaxSizeBytes/(1024*1024))
	}

	ext := strings.ToLower(filepath.Ext(path))
	mimeType, ok := mimeTypeByExtension[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file extension %q", ext)
	}

	fileType, ok := validation.FileTypeForMime(mimeType)
	if !ok {
		return nil, fmt.Errorf("no declared type for MIME type %q", mimeType)
	}

	upload := &TrackedUpload{
		ID:       uuid.NewString(),
		Path:     path,
		FileName: filepath.Base(path),
		Size:     info.Size(),
		MimeType: mimeType,
		FileType: fileType,
		State:    StateQueued,
	}

	o.mu.Lock()
	o.uploads[upload.ID] = upload
	o.mu.Unlock()

	return upload, nil
}

// Start launches one goroutine per queued file and closes the event
// channel once every file has reached a terminal state. Call after all
// Add calls.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	var queued []*TrackedUpload
	for _, up := range o.uploads {
		if up.State == StateQueued {
			queued = append(queued, up)
		}
	}
	o.mu.Unlock()

	for _, up := range queued {
		o.wg.Add(1)
		go func(up *TrackedUpload) {
			defer o.wg.Done()
			o.run(ctx, up)
		}(up)
	}

	go func() {
		o.wg.Wait()
		close(o.events)
	}()
}

// Events returns the stream of per-file progress events. The channel
// closes when the batch is finished.
func (o *Orchestrator) Events() <-chan ProgressEvent {
	return o.events
}

// Remove drops a tracked entry from the local view. It has no
// server-side effect; the metadata record, if any, is untouched.
func (o *Orchestrator) Remove(id string) {
	o.mu.Lock()
	delete(o.uploads, id)
	o.mu.Unlock()
}

// Snapshot returns a copy of the current per-file state.
func (o *Orchestrator) Snapshot() []*TrackedUpload {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*TrackedUpload, 0, len(o.uploads))
	for _, up := range o.uploads {
		cp := *up
		out = append(out, &cp)
	}
	return out
}

// run executes one file's sequence: CreateSession, direct transfer,
// ConfirmUpload.
func (o *Orchestrator) run(ctx context.Context, up *TrackedUpload) {
	o.setState(up, StateTransferring, 0)

	session, err := o.client.CreateSession(ctx, &models.CreateUploadRequest{
		OwnerID:   o.ownerID,
		FileName:  up.FileName,
		FileType:  up.FileType,
		MimeType:  up.MimeType,
		SizeBytes: up.Size,
	})
	if err != nil {
		o.fail(up, err)
		return
	}

	file, err := os.Open(up.Path)
	if err != nil {
		o.fail(up, fmt.Errorf("open %s: %w", up.Path, err))
		return
	}

	err = o.client.Transfer(ctx, session.WriteURL, up.MimeType, file, up.Size, func(pct int) {
		o.setProgress(up, pct)
	})
	file.Close()
	if err != nil {
		o.fail(up, err)
		return
	}

	o.setState(up, StateConfirming, 100)

	record, err := o.client.ConfirmUpload(ctx, session.UploadID.String())
	if err != nil {
		o.fail(up, err)
		return
	}
	if record.Status != models.StatusCompleted {
		o.fail(up, fmt.Errorf("upload verification failed: status %s", record.Status))
		return
	}

	o.mu.Lock()
	up.State = StateDone
	up.Progress = 100
	up.Record = record
	o.mu.Unlock()

	o.emit(ProgressEvent{UploadID: up.ID, State: StateDone, Progress: 100, Record: record})
}

func (o *Orchestrator) setState(up *TrackedUpload, state UploadState, progress int) {
	o.mu.Lock()
	up.State = state
	up.Progress = progress
	o.mu.Unlock()

	o.emit(ProgressEvent{UploadID: up.ID, State: state, Progress: progress})
}

func (o *Orchestrator) setProgress(up *TrackedUpload, pct int) {
	o.mu.Lock()
	if pct <= up.Progress {
		o.mu.Unlock()
		return
	}
	up.Progress = pct
	state := up.State
	o.mu.Unlock()

	o.emit(ProgressEvent{UploadID: up.ID, State: state, Progress: pct})
}

func (o *Orchestrator) fail(up *TrackedUpload, err error) {
	o.mu.Lock()
	up.State = StateErrored
	up.Error = err.Error()
	progress := up.Progress
	o.mu.Unlock()

	o.emit(ProgressEvent{UploadID: up.ID, State: StateErrored, Progress: progress, Error: err.Error()})
}

func (o *Orchestrator) emit(event ProgressEvent) {
	select {
	case o.events <- event:
	default:
		// A slow consumer drops progress updates, never state changes:
		// terminal events must land.
		if event.State == StateDone || event.State == StateErrored {
			o.events <- event
		}
	}
}
