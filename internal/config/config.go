package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by INFERENCE_BACKEND.
const (
	BackendGoCV = "gocv"
	BackendONNX = "onnx"
)

type Config struct {
	Port             int
	ModelPath        string
	MetadataPath     string
	Backend          string
	ORTLibraryPath   string
	InferenceWorkers int // Number of model instances, each owned by one worker
	InferenceQueue   int
	ConfidenceThresh float64
	IoUThresh        float64
	MaxDetections    int
	MaxUploadBytes   int64
	AllowedOrigins   []string
	LogDirectory     string
	LogMaxSizeMB     int
	LogMaxBackups    int
	LogMaxAgeDays    int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ShutdownTimeout  time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory, when present, is applied first without overriding
// variables that are already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:             getEnvAsInt("PORT", 8000),
		ModelPath:        getEnv("MODEL_PATH", filepath.Join(".", "models", "best.onnx")),
		MetadataPath:     getEnv("MODEL_METADATA_PATH", filepath.Join(".", "models", "best.json")),
		Backend:          strings.ToLower(getEnv("INFERENCE_BACKEND", BackendGoCV)),
		ORTLibraryPath:   getEnv("ORT_LIBRARY_PATH", ""),
		InferenceWorkers: getEnvAsInt("INFERENCE_WORKERS", 1),
		InferenceQueue:   getEnvAsInt("INFERENCE_QUEUE_SIZE", 16),
		ConfidenceThresh: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.25),
		IoUThresh:        getEnvAsFloat("IOU_THRESHOLD", 0.7),
		MaxDetections:    getEnvAsInt("MAX_DETECTIONS", 300),
		MaxUploadBytes:   getEnvAsInt64("MAX_UPLOAD_MB", 10) << 20,
		AllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		LogDirectory:     getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogMaxSizeMB:     getEnvAsInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups:    getEnvAsInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays:    getEnvAsInt("LOG_MAX_AGE_DAYS", 7),
		ReadTimeout:      getEnvAsSeconds("READ_TIMEOUT", 30),
		WriteTimeout:     getEnvAsSeconds("WRITE_TIMEOUT", 60),
		ShutdownTimeout:  getEnvAsSeconds("SHUTDOWN_TIMEOUT", 10),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil && floatValue >= 0 && floatValue <= 1 {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Second
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
