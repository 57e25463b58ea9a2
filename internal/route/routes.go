package route

import (
	"net/http"

	"facedetect/internal/config"
	"facedetect/internal/handler"
	"facedetect/internal/logger"
	"facedetect/internal/middleware"
	"facedetect/internal/repository"
	"facedetect/internal/service/websocket"
)

// SetupRoutes registers the preview API and wraps the mux with the authentication middleware.
// Snapshot endpoints are only registered when snapshotRepo is non-nil.
func SetupRoutes(cfg *config.Config, logger *logger.Logger, status handler.StatusProvider, hub *websocket.HubService,
	snapshotRepo repository.SnapshotRepository, detectionRepo repository.DetectionRepository) http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(hub, logger))
	mux.HandleFunc("/api/status", handler.StatusHandler(status, logger))

	if snapshotRepo != nil {
		mux.HandleFunc("/api/snapshots", handler.GetSnapshotsHandler(cfg, logger, snapshotRepo, detectionRepo))
		mux.HandleFunc("/api/snapshots/view", handler.ViewSnapshotHandler(cfg))
		mux.HandleFunc("/api/snapshots/delete", handler.DeleteSnapshotHandler(cfg, logger, snapshotRepo))
	}

	// Log endpoints
	for _, level := range handler.LogLevels {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(cfg, level))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(logger, level))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	return middleware.AuthMiddleware(cfg.Password, mux)
}
