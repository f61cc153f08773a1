package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"fleetd/internal/audit"
	"fleetd/internal/middleware"
)

// maxBodyBytes caps request bodies; full inventories are the largest.
const maxBodyBytes = 8 << 20

// JSONResponse sends a JSON response
func JSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("⚠️  Failed to encode JSON response: %v", err)
	}
}

// JSONError sends a JSON error response
func JSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// internalError logs err and answers 500 without leaking details.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("❌ %s %s: %v", r.Method, r.URL.Path, err)
	JSONError(w, "Internal server error", http.StatusInternalServerError)
}

// decodeJSON reads the body into v after checking that every key in
// required is present. Present-but-empty values are accepted.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, required ...string) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("Invalid request body")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("Invalid JSON")
	}
	var missing []string
	for _, key := range required {
		if raw, ok := fields[key]; !ok || bytes.Equal(raw, []byte("null")) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("Missing required fields: %s", strings.Join(missing, ", "))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("Invalid field types: %v", err)
	}
	return nil
}

// originOf captures the caller's address for the audit trail.
func originOf(r *http.Request) audit.Origin {
	return audit.Origin{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// queryInt reads a positive integer query parameter.
func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
