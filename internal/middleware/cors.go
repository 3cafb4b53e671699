package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kozi00/wildfire-detect/internal/dto"
)

// preflightMaxAge is how long (seconds) browsers may cache a preflight answer.
const preflightMaxAge = "600"

// CORSMiddleware lets browsers call the API from the allowed origins. An entry
// "*" allows every origin. Any method and any request header are allowed for
// an allowed origin. OPTIONS requests are answered here and never reach next.
func CORSMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	wildcard := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			wildcard = true
		}
		allowed[strings.TrimRight(origin, "/")] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		originAllowed := origin != "" && (wildcard || allowed[origin])

		if originAllowed {
			if wildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		// Preflight
		if origin != "" && !originAllowed {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(dto.ErrorResponse{
				Error: "Origin not allowed",
				Code:  dto.CodeForbiddenOrigin,
			})
			return
		}

		method := r.Header.Get("Access-Control-Request-Method")
		if method == "" {
			method = "GET, POST, OPTIONS"
		}
		w.Header().Set("Access-Control-Allow-Methods", method)
		if headers := r.Header.Get("Access-Control-Request-Headers"); headers != "" {
			w.Header().Set("Access-Control-Allow-Headers", headers)
			w.Header().Add("Vary", "Access-Control-Request-Headers")
		}
		w.Header().Set("Access-Control-Max-Age", preflightMaxAge)
		w.WriteHeader(http.StatusOK)
	})
}
