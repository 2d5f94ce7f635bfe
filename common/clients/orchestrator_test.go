package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/clipdeck/uploader/common/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}

// uploadTestServer fakes the uploader API plus the presigned PUT target.
type uploadTestServer struct {
	mu       sync.Mutex
	server   *httptest.Server
	sessions int
	puts     map[string][]byte

	// file names the session endpoint rejects with a 400
	rejectNames map[string]bool
	// file names whose confirmation comes back failed
	failVerify map[string]bool
	// upload id -> file name, so confirm can look the name up
	names map[string]string
}

func newUploadTestServer() *uploadTestServer {
	ts := &uploadTestServer{
		puts:        make(map[string][]byte),
		rejectNames: make(map[string]bool),
		failVerify:  make(map[string]bool),
		names:       make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload/session", ts.handleSession)
	mux.HandleFunc("POST /api/upload/confirm/{uploadId}", ts.handleConfirm)
	mux.HandleFunc("PUT /put/{uploadId}", ts.handlePut)

	ts.server = httptest.NewServer(mux)
	return ts
}

func (ts *uploadTestServer) handleSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ts.mu.Lock()
	ts.sessions++
	rejected := ts.rejectNames[req.FileName]
	ts.mu.Unlock()

	if rejected {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "validation failed",
			"message": "file type not allowed",
		})
		return
	}

	id := uuid.New()
	ts.mu.Lock()
	ts.names[id.String()] = req.FileName
	ts.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data": models.UploadSession{
			UploadID:   id,
			WriteURL:   ts.server.URL + "/put/" + id.String(),
			StorageKey: "uploads/owner-1/" + req.FileName,
		},
	})
}

func (ts *uploadTestServer) handlePut(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ts.mu.Lock()
	ts.puts[r.PathValue("uploadId")] = body
	ts.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (ts *uploadTestServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("uploadId")

	ts.mu.Lock()
	name := ts.names[id]
	status := models.StatusCompleted
	if ts.failVerify[name] {
		status = models.StatusFailed
	}
	ts.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data": models.FileMetadata{
			ID:       uuid.MustParse(id),
			OwnerID:  "owner-1",
			FileName: name,
			Status:   status,
		},
	})
}

func (ts *uploadTestServer) sessionCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.sessions
}

func (ts *uploadTestServer) putCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.puts)
}

func newTestOrchestrator(t *testing.T, ts *uploadTestServer) *Orchestrator {
	t.Helper()
	t.Cleanup(ts.server.Close)

	httpClient := NewHTTPClient(ts.server.Client(), noopLogger{})
	client := NewUploadClient(ts.server.URL, httpClient)
	return NewOrchestrator(client, "owner-1")
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func collectEvents(t *testing.T, o *Orchestrator) map[string][]ProgressEvent {
	t.Helper()
	byUpload := make(map[string][]ProgressEvent)
	for event := range o.Events() {
		byUpload[event.UploadID] = append(byUpload[event.UploadID], event)
	}
	return byUpload
}

func TestOrchestratorRoundTrip(t *testing.T) {
	ts := newUploadTestServer()
	o := newTestOrchestrator(t, ts)

	clip, err := o.Add(writeTempFile(t, "clip.mp4", strings.Repeat("v", 4096)))
	require.NoError(t, err)
	report, err := o.Add(writeTempFile(t, "report.pdf", strings.Repeat("p", 2048)))
	require.NoError(t, err)

	o.Start(context.Background())
	events := collectEvents(t, o)

	for _, up := range []*TrackedUpload{clip, report} {
		seq := events[up.ID]
		require.NotEmpty(t, seq, "no events for %s", up.FileName)

		final := seq[len(seq)-1]
		require.Equal(t, StateDone, final.State, "file %s", up.FileName)
		require.Equal(t, 100, final.Progress)
		require.NotNil(t, final.Record)
		require.Equal(t, models.StatusCompleted, final.Record.Status)

		// Progress never moves backwards.
		last := -1
		for _, event := range seq {
			require.GreaterOrEqual(t, event.Progress, last, "file %s", up.FileName)
			last = event.Progress
		}
	}

	require.Equal(t, 2, ts.putCount(), "both files must reach the object store")
}

func TestOrchestratorFailureIsolation(t *testing.T) {
	ts := newUploadTestServer()
	ts.rejectNames["banned.pdf"] = true
	o := newTestOrchestrator(t, ts)

	banned, err := o.Add(writeTempFile(t, "banned.pdf", "pdf-bytes"))
	require.NoError(t, err, "intake accepts the file; the server rejects it")
	ok, err := o.Add(writeTempFile(t, "clip.mp4", "video-bytes"))
	require.NoError(t, err)

	o.Start(context.Background())
	events := collectEvents(t, o)

	bannedFinal := events[banned.ID][len(events[banned.ID])-1]
	require.Equal(t, StateErrored, bannedFinal.State)
	require.Contains(t, bannedFinal.Error, "file type not allowed")

	okFinal := events[ok.ID][len(events[ok.ID])-1]
	require.Equal(t, StateDone, okFinal.State, "one file failing must not abort the other")
}

func TestOrchestratorVerificationFailure(t *testing.T) {
	ts := newUploadTestServer()
	ts.failVerify["clip.mp4"] = true
	o := newTestOrchestrator(t, ts)

	up, err := o.Add(writeTempFile(t, "clip.mp4", "video-bytes"))
	require.NoError(t, err)

	o.Start(context.Background())
	events := collectEvents(t, o)

	final := events[up.ID][len(events[up.ID])-1]
	require.Equal(t, StateErrored, final.State)
	require.Contains(t, final.Error, "verification failed")
}

func TestOrchestratorIntakeRejection(t *testing.T) {
	ts := newUploadTestServer()
	o := newTestOrchestrator(t, ts)

	_, err := o.Add(writeTempFile(t, "notes.txt", "plain text"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported file extension")

	_, err = o.Add(writeTempFile(t, "empty.mp4", ""))
	require.Error(t, err)

	_, err = o.Add(t.TempDir())
	require.Error(t, err)

	require.Zero(t, ts.sessionCount(), "intake rejection must not touch the network")
	require.Empty(t, o.Snapshot())
}

func TestOrchestratorRemoveIsLocal(t *testing.T) {
	ts := newUploadTestServer()
	o := newTestOrchestrator(t, ts)

	up, err := o.Add(writeTempFile(t, "clip.mp4", "video-bytes"))
	require.NoError(t, err)

	o.Remove(up.ID)
	require.Empty(t, o.Snapshot())

	o.Start(context.Background())
	_, open := <-o.Events()
	require.False(t, open, "nothing queued, the stream closes immediately")

	require.Zero(t, ts.sessionCount(), "removal is local only")
}
