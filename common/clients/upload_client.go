package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/clipdeck/uploader/common/models"
)

// UploadClient is a typed client for the uploader's HTTP API.
type UploadClient struct {
	baseURL string
	http    *HTTPClient
}

// NewUploadClient creates a client for the uploader service at baseURL.
func NewUploadClient(baseURL string, httpClient *HTTPClient) *UploadClient {
	return &UploadClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// CreateSession requests a write credential and pending record for one upload.
func (c *UploadClient) CreateSession(ctx context.Context, req *models.CreateUploadRequest) (*models.UploadSession, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}

	var session models.UploadSession
	if err := c.call(ctx, http.MethodPost, "/api/upload/session", bytes.NewReader(body), &session); err != nil {
		return nil, fmt.Errorf("create upload session: %w", err)
	}

	return &session, nil
}

// ConfirmUpload asks the service to verify the transfer and finalize the record.
func (c *UploadClient) ConfirmUpload(ctx context.Context, uploadID string) (*models.FileMetadata, error) {
	var file models.FileMetadata
	path := "/api/upload/confirm/" + url.PathEscape(uploadID)
	if err := c.call(ctx, http.MethodPost, path, nil, &file); err != nil {
		return nil, fmt.Errorf("confirm upload %s: %w", uploadID, err)
	}

	return &file, nil
}

// ListFiles fetches one page of the owner's completed files.
func (c *UploadClient) ListFiles(ctx context.Context, ownerID string, page, limit int, fileType string) (*models.FileListing, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	if fileType != "" {
		params.Set("fileType", fileType)
	}

	var listing models.FileListing
	path := "/api/upload/files/" + url.PathEscape(ownerID) + "?" + params.Encode()
	if err := c.call(ctx, http.MethodGet, path, nil, &listing); err != nil {
		return nil, fmt.Errorf("list files for %s: %w", ownerID, err)
	}

	return &listing, nil
}

// GetFile fetches a single completed file owned by ownerID.
func (c *UploadClient) GetFile(ctx context.Context, fileID, ownerID string) (*models.FileMetadata, error) {
	var file models.FileMetadata
	path := "/api/upload/file/" + url.PathEscape(fileID) + "?ownerId=" + url.QueryEscape(ownerID)
	if err := c.call(ctx, http.MethodGet, path, nil, &file); err != nil {
		return nil, fmt.Errorf("get file %s: %w", fileID, err)
	}

	return &file, nil
}

// DeleteFile removes the owner's metadata record for fileID.
func (c *UploadClient) DeleteFile(ctx context.Context, fileID, ownerID string) error {
	path := "/api/upload/file/" + url.PathEscape(fileID) + "?ownerId=" + url.QueryEscape(ownerID)
	if err := c.call(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}

	return nil
}

// call executes an API request and decodes the response envelope into out.
func (c *UploadClient) call(ctx context.Context, method, path string, body io.Reader, out any) error {
	resp, err := c.http.DoRequest(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s (status %d)", msg, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}

	return nil
}
