package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mcpstudio/pkg/logging"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type userKey struct{}

// UserFromContext returns the user id set by the identity middleware, or ""
// for anonymous requests.
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// WithUser returns a copy of ctx carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// identity reads the trusted user header. A missing header means anonymous.
func identity(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(header))
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

// ensureConnections connects the globals and the caller's servers before the
// request is served.
func (s *Server) ensureConnections(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.coord != nil {
			if err := s.coord.EnsureForRequest(r.Context(), UserFromContext(r.Context())); err != nil {
				writeError(w, http.StatusServiceUnavailable, err)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug("HTTP", "%s %s %d %s (request %s)",
			r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond),
			chiMiddleware.GetReqID(r.Context()))
	})
}

// promErrorLog routes promhttp errors to the process logger.
type promErrorLog struct{}

func (promErrorLog) Println(v ...interface{}) {
	logging.Warn("Metrics", "%s", strings.TrimSpace(fmt.Sprintln(v...)))
}
