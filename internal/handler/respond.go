package handler

import (
	"encoding/json"
	"net/http"

	"github.com/kozi00/wildfire-detect/internal/dto"
)

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message, code string, status int) {
	respondJSON(w, dto.ErrorResponse{Error: message, Code: code}, status)
}
