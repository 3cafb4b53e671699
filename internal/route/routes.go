package route

import (
	"net/http"

	"github.com/kozi00/wildfire-detect/internal/config"
	"github.com/kozi00/wildfire-detect/internal/handler"
	"github.com/kozi00/wildfire-detect/internal/logger"
	"github.com/kozi00/wildfire-detect/internal/middleware"
	"github.com/kozi00/wildfire-detect/internal/service/ai"
)

// SetupRoutes registers the detection API and wraps the mux with request
// logging and CORS.
func SetupRoutes(detector *ai.DetectorService, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/ai_classifier", handler.DetectHandler(detector, cfg, logger))

	// Liveness probe
	mux.HandleFunc("GET /health", handler.HealthHandler(detector))

	// Apply middleware; CORS is outermost so preflights skip the handlers
	return middleware.CORSMiddleware(middleware.LoggingMiddleware(mux, logger), cfg.AllowedOrigins)
}
