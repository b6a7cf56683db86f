package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rentdesk/internal/maintenance"
	"rentdesk/internal/realtime"
	"rentdesk/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// LiveView: список, который держит себя согласованным с лентой изменений
type LiveView interface {
	Start(ctx context.Context) error
	Changes() <-chan struct{}
	Snapshot() any
	Close()
}

// Views создаёт живые списки на одно WebSocket-соединение
type Views interface {
	PendingRequests(ownerID string) LiveView
	Jobs(ownerID string, status models.JobStatus) LiveView
}

type reconcilerView[T any] struct {
	*realtime.Reconciler[T]
}

func (v reconcilerView[T]) Snapshot() any { return v.Items() }

type feedViews struct {
	feed   realtime.Feed
	svc    *maintenance.Service
	opts   maintenance.ViewOptions
	logger *zap.Logger
}

// NewViews строит живые списки поверх ленты изменений
func NewViews(feed realtime.Feed, svc *maintenance.Service, opts maintenance.ViewOptions, logger *zap.Logger) Views {
	return &feedViews{feed: feed, svc: svc, opts: opts, logger: logger}
}

func (f *feedViews) PendingRequests(ownerID string) LiveView {
	return reconcilerView[models.MaintenanceRequest]{
		maintenance.NewPendingRequestsView(f.feed, f.svc, ownerID, f.opts, f.logger),
	}
}

func (f *feedViews) Jobs(ownerID string, status models.JobStatus) LiveView {
	return reconcilerView[models.MaintenanceJob]{
		maintenance.NewJobsView(f.feed, f.svc, ownerID, status, f.opts, f.logger),
	}
}

type snapshotMessage struct {
	Type  string `json:"type"`
	Items any    `json:"items"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamPendingRequestsHandler отдаёт очередь заявок через WebSocket
func (h *Handler) StreamPendingRequestsHandler(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, h.Views.PendingRequests(UserID(r.Context())))
}

// StreamJobsHandler отдаёт список работ через WebSocket; ?status= как у GetJobsHandler
func (h *Handler) StreamJobsHandler(w http.ResponseWriter, r *http.Request) {
	status := models.JobStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status != "" && !status.Valid() {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}
	h.stream(w, r, h.Views.Jobs(UserID(r.Context()), status))
}

// stream живёт, пока открыт сокет: каждое изменение списка уходит клиенту снимком
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, view LiveView) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := h.logger.With(zap.String("uri", r.RequestURI), zap.String("user_id", UserID(r.Context())))

	if err := view.Start(ctx); err != nil {
		log.Error("failed to start live view", zap.Error(err))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "failed to load list"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	// чтение нужно только для control-фреймов и обнаружения закрытия
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	defer func() {
		view.Close()
		conn.Close()
		<-done
	}()

	send := func() error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(snapshotMessage{Type: "snapshot", Items: view.Snapshot()})
	}
	if err := send(); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-view.Changes():
			if err := send(); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
