package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/clipdeck/uploader/common/clients"
	"github.com/clipdeck/uploader/common/logger"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	var (
		serverURL = flag.String("server", envOr("UPLOADER_URL", "http://localhost:3001"), "uploader service base URL")
		ownerID   = flag.String("owner", envOr("UPLOADER_OWNER", ""), "owner id to upload on behalf of")
		logLevel  = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	if *ownerID == "" {
		fmt.Fprintln(os.Stderr, "owner id is required (-owner or UPLOADER_OWNER)")
		os.Exit(2)
	}
	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file...\n", os.Args[0])
		os.Exit(2)
	}

	log := logger.New(*logLevel, "text")

	httpClient := clients.NewHTTPClient(&http.Client{Timeout: 0}, log)
	uploadClient := clients.NewUploadClient(*serverURL, httpClient)
	orchestrator := clients.NewOrchestrator(uploadClient, *ownerID)

	names := make(map[string]string)
	for _, path := range flag.Args() {
		upload, err := orchestrator.Add(path)
		if err != nil {
			log.Error("file rejected", "path", path, "error", err)
			continue
		}
		names[upload.ID] = upload.FileName
		log.Info("queued", "file", upload.FileName, "size_bytes", upload.Size, "type", upload.FileType)
	}
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "no files to upload")
		os.Exit(1)
	}

	ctx := clients.WithOwnerID(context.Background(), *ownerID)

	start := time.Now()
	orchestrator.Start(ctx)

	failed := 0
	for event := range orchestrator.Events() {
		name := names[event.UploadID]
		switch event.State {
		case clients.StateTransferring:
			log.Info("transferring", "file", name, "progress", fmt.Sprintf("%d%%", event.Progress))
		case clients.StateConfirming:
			log.Info("confirming", "file", name)
		case clients.StateDone:
			log.Info("done", "file", name, "file_id", event.Record.ID, "url", event.Record.StorageURL)
		case clients.StateErrored:
			failed++
			log.Error("failed", "file", name, "error", event.Error)
		}
	}

	log.Info("batch finished",
		"files", len(names),
		"failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if failed > 0 {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
