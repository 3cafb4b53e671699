package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/kozi00/wildfire-detect/internal/config"
	"github.com/kozi00/wildfire-detect/internal/dto"
	"github.com/kozi00/wildfire-detect/internal/logger"
	"github.com/kozi00/wildfire-detect/internal/middleware"
	"github.com/kozi00/wildfire-detect/internal/service/ai"
)

// UploadField is the multipart field the frontend sends the image in.
const UploadField = "file"

// multipartOverhead is allowed on top of the file limit for boundaries and
// part headers.
const multipartOverhead = 1 << 20

// DetectHandler handles POST /ai_classifier: it reads one uploaded image,
// runs object detection and answers with {"detections": [...]}.
func DetectHandler(detector *ai.DetectorService, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			respondError(w, "Method not allowed", dto.CodeMethodNotAllowed, http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes+multipartOverhead)
		if err := r.ParseMultipartForm(cfg.MaxUploadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, "Upload exceeds size limit", dto.CodePayloadTooLarge, http.StatusRequestEntityTooLarge)
				return
			}
			respondError(w, "Failed to parse multipart form", dto.CodeBadRequest, http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		header := uploadedFile(r.MultipartForm)
		if header == nil {
			respondError(w, "No file uploaded. Use 'file' as the form field name", dto.CodeBadRequest, http.StatusBadRequest)
			return
		}
		if header.Size > cfg.MaxUploadBytes {
			respondError(w, "Upload exceeds size limit", dto.CodePayloadTooLarge, http.StatusRequestEntityTooLarge)
			return
		}

		file, err := header.Open()
		if err != nil {
			respondError(w, "Failed to open uploaded file", dto.CodeBadRequest, http.StatusBadRequest)
			return
		}
		defer file.Close()

		imageData, err := io.ReadAll(file)
		if err != nil {
			respondError(w, "Failed to read uploaded file", dto.CodeBadRequest, http.StatusBadRequest)
			return
		}

		requestID := middleware.RequestID(r.Context())
		logger.Info("[%s] Received file: %s, size: %d bytes", requestID, header.Filename, len(imageData))

		detections, err := detector.Detect(r.Context(), imageData)
		if err != nil {
			status, code, message := classify(err)
			logger.Warning("[%s] Detection failed for %s: %v", requestID, header.Filename, err)
			respondError(w, message, code, status)
			return
		}

		respondJSON(w, dto.DetectionResponse{Detections: detections}, http.StatusOK)
	}
}

// uploadedFile returns the part sent as UploadField, or the first file of the
// form (by field name) when that field is absent.
func uploadedFile(form *multipart.Form) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	if files := form.File[UploadField]; len(files) > 0 {
		return files[0]
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		if files := form.File[field]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

// classify maps detector errors to an HTTP status, error code and message.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, ai.ErrDecode):
		return http.StatusBadRequest, dto.CodeDecodeFailed, "Uploaded file is not a supported image"
	case errors.Is(err, ai.ErrUnavailable):
		return http.StatusServiceUnavailable, dto.CodeUnavailable, "Detector unavailable, try again"
	default:
		return http.StatusInternalServerError, dto.CodeInferenceFailed, "Object detection failed"
	}
}
