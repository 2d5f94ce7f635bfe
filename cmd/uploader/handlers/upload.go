package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clipdeck/uploader/cmd/uploader/service"
	"github.com/clipdeck/uploader/common/apperr"
	"github.com/clipdeck/uploader/common/logger"
	"github.com/clipdeck/uploader/common/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// UploadHandler exposes the session service over HTTP
type UploadHandler struct {
	sessions *service.SessionService
	log      *logger.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(sessions *service.SessionService, log *logger.Logger) *UploadHandler {
	return &UploadHandler{
		sessions: sessions,
		log:      log,
	}
}

// CreateSession issues a write credential and a pending record
// POST /api/upload/session
func (h *UploadHandler) CreateSession(c echo.Context) error {
	var req models.CreateUploadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Fail("Validation error", "malformed request body"))
	}

	session, err := h.sessions.CreateSession(c.Request().Context(), &req)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, OK(session))
}

// ConfirmUpload verifies the transfer and finalizes the record
// POST /api/upload/confirm/:uploadId
func (h *UploadHandler) ConfirmUpload(c echo.Context) error {
	uploadID, err := uuid.Parse(c.Param("uploadId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, Fail("Validation error", "invalid upload id"))
	}

	file, err := h.sessions.ConfirmSession(c.Request().Context(), uploadID)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, OK(file))
}

// ListFiles returns one page of the owner's completed files
// GET /api/upload/files/:userId?page&limit&fileType
func (h *UploadHandler) ListFiles(c echo.Context) error {
	ownerID := c.Param("userId")

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	var fileType *models.FileType
	if raw := c.QueryParam("fileType"); raw != "" {
		ft := models.FileType(raw)
		fileType = &ft
	}

	listing, err := h.sessions.ListFiles(c.Request().Context(), ownerID, page, limit, fileType)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, OK(listing))
}

// GetFile returns a single completed file owned by the caller
// GET /api/upload/file/:fileId?ownerId
func (h *UploadHandler) GetFile(c echo.Context) error {
	fileID, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, Fail("Validation error", "invalid file id"))
	}

	ownerID := c.QueryParam("ownerId")
	if ownerID == "" {
		return c.JSON(http.StatusBadRequest, Fail("Validation error", "ownerId is required"))
	}

	file, err := h.sessions.GetFile(c.Request().Context(), fileID, ownerID)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, OK(file))
}

// DeleteFile removes the caller's metadata record and stored object
// DELETE /api/upload/file/:fileId?ownerId
func (h *UploadHandler) DeleteFile(c echo.Context) error {
	fileID, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, Fail("Validation error", "invalid file id"))
	}

	ownerID := c.QueryParam("ownerId")
	if ownerID == "" {
		return c.JSON(http.StatusBadRequest, Fail("Validation error", "ownerId is required"))
	}

	if err := h.sessions.DeleteFile(c.Request().Context(), fileID, ownerID); err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, OK(map[string]string{"message": "File deleted successfully"}))
}

// respondError maps the error taxonomy onto HTTP statuses. Internal
// detail (storage keys, credentials) stays out of response messages.
func (h *UploadHandler) respondError(c echo.Context, err error) error {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, Fail("Validation error", ve.Error()))
	}

	if errors.Is(err, apperr.ErrNotFound) {
		return c.JSON(http.StatusNotFound, Fail("Not found", "file not found"))
	}

	h.log.Error("request failed", "path", c.Path(), "error", err)

	var ie *apperr.IssuanceError
	if errors.As(err, &ie) {
		return c.JSON(http.StatusInternalServerError, Fail("Internal server error", "failed to issue upload credential"))
	}

	return c.JSON(http.StatusInternalServerError, Fail("Internal server error", "request could not be processed"))
}
