package proxy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
)

const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// ErrorBody is the JSON answer for requests the worker could not satisfy.
type ErrorBody struct {
	Status        int    `json:"status"`
	RequestID     string `json:"request_id"`
	ErrorCategory string `json:"error_category"`
	Message       string `json:"message"`
	URL           string `json:"url,omitempty"`
	Version       string `json:"worker_version,omitempty"`
}

// WriteError answers with body. The category also lands in the access log
// when w is a ResponseRecorder.
func WriteError(w http.ResponseWriter, body ErrorBody) {
	if recorder, ok := w.(errorCategoryWriter); ok {
		recorder.SetErrorCategory(body.ErrorCategory)
	}
	w.Header().Set(RequestIDHeader, body.RequestID)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(body.Status)
	_ = json.NewEncoder(w).Encode(body)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(requestIDKey{}).(string)
	return value, ok && value != ""
}

func NewRequestID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "none"
	}
	return hex.EncodeToString(buf[:])
}
