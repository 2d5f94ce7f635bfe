package container

import (
	"context"
	"fmt"

	"github.com/clipdeck/uploader/cmd/uploader/handlers"
	"github.com/clipdeck/uploader/cmd/uploader/repository"
	"github.com/clipdeck/uploader/cmd/uploader/service"
	"github.com/clipdeck/uploader/common/bootstrap"
	rediscommon "github.com/clipdeck/uploader/common/redis"
	"github.com/clipdeck/uploader/common/storage"
	"github.com/redis/go-redis/v9"
)

// Container holds all initialized services and repositories
type Container struct {
	Components *bootstrap.Components
	Redis      *rediscommon.Client
	Storage    *storage.S3Storage

	FileRepo *repository.FileRepository

	SessionService *service.SessionService

	UploadHandler *handlers.UploadHandler
}

// NewContainer initializes all services and repositories once
func NewContainer(ctx context.Context, components *bootstrap.Components) (*Container, error) {
	objStorage, err := storage.NewS3Storage(ctx, components.Config, components.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage: %w", err)
	}

	var redisClient *rediscommon.Client
	var listCache service.ListCache
	if components.Config.Cache.Enabled {
		raw := redis.NewClient(&redis.Options{
			Addr:     components.Config.RedisAddr(),
			Password: components.Config.Cache.Password,
			DB:       0,
		})
		redisClient = rediscommon.NewClient(raw, components.Logger)
		listCache = redisClient
	}

	fileRepo := repository.NewFileRepository(components.DB)

	sessionService := service.NewSessionService(
		fileRepo,
		objStorage,
		components.Queue,
		listCache,
		components.Config.Cache.ListTTL,
		components.Logger,
	)

	uploadHandler := handlers.NewUploadHandler(sessionService, components.Logger)

	return &Container{
		Components:     components,
		Redis:          redisClient,
		Storage:        objStorage,
		FileRepo:       fileRepo,
		SessionService: sessionService,
		UploadHandler:  uploadHandler,
	}, nil
}

// Close releases container-owned resources
func (c *Container) Close() error {
	if c.Redis != nil {
		return c.Redis.Close()
	}
	return nil
}
