package testutils

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	"rentdesk/internal/handlers"
)

// WithChiURLParams подставляет параметры пути в контекст chi запроса для тестов.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for k, v := range params {
		chiCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

// NewRequest собирает запрос для вызова обработчика без роутера:
// пользователь как после RequireUser, параметры пути как после chi.
func NewRequest(method, target string, body io.Reader, userID string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(handlers.UserIDHeader, userID)
	req = req.WithContext(handlers.WithUserID(req.Context(), userID))
	if len(params) > 0 {
		req = WithChiURLParams(req, params)
	}
	return req
}
