package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rentdesk/internal/maintenance"
)

const maxBodyBytes = 1 << 20

// Handler оборачивает сервис обслуживания и живые списки
type Handler struct {
	Service Service
	Views   Views
	logger  *zap.Logger
}

// NewHandler создает новый Handler
func NewHandler(svc Service, views Views, logger *zap.Logger) *Handler {
	return &Handler{Service: svc, Views: views, logger: logger}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var errEmptyBody = errors.New("empty request body")

// decodeBody читает JSON с ограничением размера. Пустое тело возвращает errEmptyBody.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	// Ограничение размера тела, чтобы избежать DoS
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.Wrap(err, "read request body")
	}
	if len(body) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, "invalid JSON format")
	}
	return nil
}

// writeError переводит ошибки сервиса в HTTP-коды
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("uri", r.RequestURI), zap.Error(err))
	}
	http.Error(w, msg, status)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, maintenance.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, maintenance.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, maintenance.ErrPermissionDenied):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, maintenance.ErrStateConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, maintenance.ErrPartialFailure):
		return http.StatusInternalServerError, "Operation partially applied, manual follow-up required"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
