package routes

import (
	"github.com/clipdeck/uploader/cmd/uploader/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterUploadRoutes registers the upload session routes
func RegisterUploadRoutes(g *echo.Group, handler *handlers.UploadHandler) {
	g.POST("/session", handler.CreateSession)
	g.POST("/confirm/:uploadId", handler.ConfirmUpload)
	g.GET("/files/:userId", handler.ListFiles)
	g.GET("/file/:fileId", handler.GetFile)
	g.DELETE("/file/:fileId", handler.DeleteFile)
}
