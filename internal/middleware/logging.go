package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/templui/docvault/internal/ctxkeys"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// Paths to skip logging (probes and scrapes)
var skipLoggingPaths = []string{
	"/healthz",
	"/metrics",
}

// RequestLogging logs HTTP requests with method, path, status, and duration. The tenant
// and user are read after the handler ran, so inner middleware can set them.
func RequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range skipLoggingPaths {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		start := time.Now()
		rw := newResponseWriter(w)
		info := &requestInfo{}
		next.ServeHTTP(rw, r.WithContext(withRequestInfo(r.Context(), info)))

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientAddr(r),
		}
		if info.tenant != "" {
			attrs = append(attrs, "tenant", info.tenant)
		}
		if info.userID != "" {
			attrs = append(attrs, "user_id", info.userID)
		}
		level := slog.LevelInfo
		if rw.statusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "http request", attrs...)
	})
}

func clientAddr(r *http.Request) string {
	if ip := ctxkeys.ClientIP(r.Context()); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// Annotate records the resolved tenant and user for the request log line. It must run
// inside RequestLogging, after Tenant and Authenticate.
func Annotate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info := requestInfoFrom(r.Context()); info != nil {
			if t := ctxkeys.Tenant(r.Context()); t != nil {
				info.tenant = t.Slug
			}
			if u := ctxkeys.User(r.Context()); u != nil {
				info.userID = u.ID
			}
		}
		next.ServeHTTP(w, r)
	})
}
