package handler

import (
	"encoding/json"
	"net/http"

	"facedetect/internal/dto"
	"facedetect/internal/logger"
)

// StatusProvider reports the capture loop counters.
type StatusProvider interface {
	Status() dto.LoopStatus
}

// StatusHandler serves the current loop status as JSON.
func StatusHandler(provider StatusProvider, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(provider.Status()); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
