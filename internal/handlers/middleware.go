package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentdesk/internal/metrics"
)

const UserIDHeader = "X-User-ID"

type userIDKey struct{}

// WithUserID кладёт id текущего пользователя в контекст
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID возвращает id пользователя, выставленный RequireUser
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// RequireUser отклоняет запросы без заголовка X-User-ID
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			http.Error(w, "Missing "+UserIDHeader+" header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// Logger пишет по строке на запрос и наблюдает длительность в гистограмме
func Logger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			stop := time.Now()
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			id := middleware.GetReqID(r.Context())
			if id == "" {
				id = uuid.New().String()
			}
			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}

			metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).
				Observe(stop.Sub(start).Seconds())

			logger.Info("Request",
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("uri", r.RequestURI),
				zap.Int("status", status),
				zap.String("route", route),
				zap.String("remote_ip", r.RemoteAddr),
				zap.String("protocol", r.Proto),
				zap.String("user_id", r.Header.Get(UserIDHeader)),
				zap.String("user_agent", r.UserAgent()),
				zap.Duration("response_time", stop.Sub(start)),
				zap.Int("response_size", ww.BytesWritten()),
			)
		})
	}
}
