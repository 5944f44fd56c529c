package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pressgate/pressgate/internal/apperr"
	"github.com/pressgate/pressgate/internal/model"
	"github.com/pressgate/pressgate/internal/service"
)

// writeJSON serializes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to an HTTP status via its error kind and emits the
// standard error envelope. Untagged errors collapse to a generic 500 so
// internal detail never reaches the client.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.Status(err), model.ErrorResponse{
		Success: false,
		Message: apperr.Message(err),
	})
}

// writeErrorMessage emits the error envelope with an explicit status and
// message, for failures that never carry an error kind (bad JSON, bad params).
func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.ErrorResponse{Success: false, Message: message})
}

// readJSON decodes the request body as JSON into v and closes the body.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// clampInt constrains val to be within [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// requestMeta captures the caller's address and user agent for audit rows.
// RemoteAddr has already been rewritten by the RealIP middleware.
func requestMeta(r *http.Request) *service.RequestMeta {
	return &service.RequestMeta{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}
