// Package middleware holds the HTTP middleware chain shared by every
// route: request ID propagation, panic recovery, and per-request
// timeouts.
package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestID extracts an incoming X-Request-ID header or mints a new
// UUID, then propagates it on both the request context and the
// response so a client can correlate logs across a call.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID reads the request ID stashed by RequestID, or "" if none
// was ever set (e.g. in a test that skips the middleware chain).
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Recovery converts a panic anywhere downstream into a 500 response
// instead of taking down the whole server, logging the stack trace for
// diagnosis.
func Recovery(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID := GetRequestID(r.Context())
					log.Errorw("panic recovered", "request_id", requestID, "error", err, "stack", string(debug.Stack()))
					if w.Header().Get("Content-Type") == "" {
						writeError(w, http.StatusInternalServerError, "internal server error")
					}
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout bounds how long a handler may run before the client gets a
// 504, without killing the underlying goroutine (the handler keeps
// running to completion in the background; only the response is cut
// off early).
func Timeout(timeout time.Duration, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)

			done := make(chan struct{})
			go func() {
				defer func() {
					if err := recover(); err != nil {
						log.Errorw("panic in timed handler", "request_id", GetRequestID(ctx), "error", err)
					}
				}()
				next.ServeHTTP(w, r)
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				log.Warnw("request timed out", "request_id", GetRequestID(ctx), "path", r.URL.Path)
				if w.Header().Get("Content-Type") == "" {
					writeError(w, http.StatusGatewayTimeout, "request timeout")
				}
			}
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
