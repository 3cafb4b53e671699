package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozi00/wildfire-detect/internal/config"
	"github.com/kozi00/wildfire-detect/internal/logger"
	"github.com/kozi00/wildfire-detect/internal/model"
	"github.com/kozi00/wildfire-detect/internal/route"
	"github.com/kozi00/wildfire-detect/internal/service/ai"
	"github.com/kozi00/wildfire-detect/internal/service/ai/gocvnet"
	"github.com/kozi00/wildfire-detect/internal/service/ai/onnx"
)

type App struct {
	config   *config.Config
	logger   *logger.Logger
	detector *ai.DetectorService
	server   *http.Server
}

// NewApp loads configuration and the model. The model and its labels are
// loaded once here and shared read-only by every request.
func NewApp() (*App, error) {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	meta, err := model.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		log.Error("Failed to load model metadata: %v", err)
		log.Close()
		return nil, err
	}

	factory, err := backendFactory(cfg, meta)
	if err != nil {
		log.Close()
		return nil, err
	}

	options := ai.Options{
		ConfidenceThreshold: cfg.ConfidenceThresh,
		IoUThreshold:        cfg.IoUThresh,
		MaxDetections:       cfg.MaxDetections,
	}

	detector, err := ai.NewDetectorService(factory, meta.Labels(), options, cfg.InferenceWorkers, cfg.InferenceQueue, log)
	if err != nil {
		log.Error("Failed to initialize detector: %+v", err)
		log.Close()
		return nil, err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      route.SetupRoutes(detector, cfg, log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorLog:     log.StdError(),
	}

	return &App{
		config:   cfg,
		logger:   log,
		detector: detector,
		server:   server,
	}, nil
}

// backendFactory selects the model runtime named in the configuration.
func backendFactory(cfg *config.Config, meta *model.Metadata) (ai.BackendFactory, error) {
	switch cfg.Backend {
	case config.BackendGoCV:
		return gocvnet.NewFactory(cfg.ModelPath, meta), nil
	case config.BackendONNX:
		return onnx.NewFactory(cfg.ModelPath, cfg.ORTLibraryPath, meta), nil
	}
	return nil, fmt.Errorf("unknown inference backend %q (want %q or %q)", cfg.Backend, config.BackendGoCV, config.BackendONNX)
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	defer a.logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("Wildfire detection server")
	a.logger.Info("URL: http://localhost:%d/ai_classifier", a.config.Port)
	a.logger.Info("AI Model: %s (%s, %d classes)", a.config.ModelPath, a.detector.BackendName(), a.detector.Labels().Len())
	a.logger.Info("CORS origins: %v", a.config.AllowedOrigins)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Graceful shutdown failed: %v", err)
			runErr = err
		}
	}

	a.detector.Close()
	if a.config.Backend == config.BackendONNX {
		if err := onnx.DestroyEnvironment(); err != nil {
			a.logger.Error("Failed to destroy ONNX environment: %v", err)
		}
	}
	return runErr
}
