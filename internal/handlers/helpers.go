package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/common"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteStarted writes a standard "started" JSON response for async operations.
func WriteStarted(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": message,
	})
}

// StatusForError maps the typed analysis errors to HTTP status codes. A
// deadline anywhere in the chain wins over the error that wrapped it. For a
// joined error the first part with a known status decides.
func StatusForError(err error) int {
	var status int
	for e := err; e != nil; e = errors.Unwrap(e) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, part := range joined.Unwrap() {
				if s := StatusForError(part); s != http.StatusInternalServerError {
					return firstStatus(status, s)
				}
			}
			break
		}
		if isDeadline(e) {
			return http.StatusGatewayTimeout
		}
		if status == 0 {
			status = typedStatus(e)
		}
	}
	return firstStatus(status, http.StatusInternalServerError)
}

// isDeadline checks e itself, not its chain
func isDeadline(e error) bool {
	if e == context.DeadlineExceeded {
		return true
	}
	if is, ok := e.(interface{ Is(error) bool }); ok && is.Is(context.DeadlineExceeded) {
		return true
	}
	timeout, ok := e.(interface{ Timeout() bool })
	return ok && timeout.Timeout()
}

func firstStatus(status, fallback int) int {
	if status != 0 {
		return status
	}
	return fallback
}

func typedStatus(err error) int {
	switch err.(type) {
	case *common.NotFoundError:
		return http.StatusNotFound
	case *common.InsufficientDataError, *common.NoDataError:
		return http.StatusUnprocessableEntity
	case *common.UpstreamError:
		return http.StatusBadGateway
	}
	return 0
}

// WriteAnalysisError logs err and writes it with the status from StatusForError
func WriteAnalysisError(w http.ResponseWriter, logger arbor.ILogger, err error) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		logger.Warn().Err(err).Int("status", status).Msg("Request failed")
	}
	WriteError(w, status, err.Error())
}

// QueryInt returns the integer query parameter name, or fallback when it is
// absent or not within [min, max]
func QueryInt(r *http.Request, name string, fallback, min, max int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return fallback
	}
	return n
}
