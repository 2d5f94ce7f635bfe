package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/clipdeck/uploader/cmd/uploader/container"
	"github.com/clipdeck/uploader/cmd/uploader/routes"
	"github.com/clipdeck/uploader/common/bootstrap"
	"github.com/clipdeck/uploader/common/queue"
	"github.com/clipdeck/uploader/common/server"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (config, logger, DB, queue, telemetry)
	components, err := bootstrap.Setup(ctx, "uploader")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap uploader: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	serviceContainer, err := container.NewContainer(ctx, components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}
	defer serviceContainer.Close()

	subscribeUploadEvents(ctx, components)

	e := setupEcho()
	setupMiddleware(e, components)
	setupHealthCheck(e, components)

	api := e.Group("/api/upload")
	routes.RegisterUploadRoutes(api, serviceContainer.UploadHandler)

	srv := server.New("uploader", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, components *bootstrap.Components) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(components.Config.Service.BodyLimit))

	if rps := components.Config.Service.RateLimitRPS; rps > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(rps))))
	}
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(503, map[string]string{
				"status":  "unhealthy",
				"service": "uploader",
			})
		}
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "uploader",
		})
	})
}

// subscribeUploadEvents logs completion notifications; a real
// notification service would hang off these topics.
func subscribeUploadEvents(ctx context.Context, components *bootstrap.Components) {
	for _, topic := range []string{queue.TopicUploadCompleted, queue.TopicUploadFailed} {
		topic := topic
		err := components.Queue.Subscribe(ctx, topic, func(ctx context.Context, key string, value []byte) error {
			components.Logger.Info("upload event", "topic", topic, "upload_id", key)
			return nil
		})
		if err != nil {
			components.Logger.Warn("failed to subscribe to upload events", "topic", topic, "error", err)
		}
	}
}
