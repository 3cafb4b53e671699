package handler

import (
	"net/http"

	"github.com/kozi00/wildfire-detect/internal/dto"
	"github.com/kozi00/wildfire-detect/internal/service/ai"
)

// HealthHandler reports that the process is up and which model it serves.
func HealthHandler(detector *ai.DetectorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, dto.HealthStatus{
			Status:  "ok",
			Backend: detector.BackendName(),
			Workers: detector.Workers(),
			Classes: detector.Labels().Len(),
		}, http.StatusOK)
	}
}
