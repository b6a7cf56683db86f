package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rentdesk/internal/handlers"
	"rentdesk/internal/handlers/testutils"
	"rentdesk/internal/maintenance"
	"rentdesk/models"
)

// MockService реализует handlers.Service
type MockService struct {
	PendingRequestsFunc func(ctx context.Context, ownerID string) ([]models.MaintenanceRequest, error)
	GetRequestFunc      func(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error)
	ApproveFunc         func(ctx context.Context, ownerID, requestID string, o maintenance.ApproveOverrides) (*models.MaintenanceJob, error)
	RejectFunc          func(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error)
	CancelFunc          func(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error)
	CreateJobFunc       func(ctx context.Context, ownerID string, in maintenance.JobInput) (*models.MaintenanceJob, error)
	GetJobFunc          func(ctx context.Context, ownerID, jobID string) (*models.MaintenanceJob, error)
	ListJobsFunc        func(ctx context.Context, ownerID string, status models.JobStatus) ([]models.MaintenanceJob, error)
	UpdateJobStatusFunc func(ctx context.Context, ownerID, jobID string, to models.JobStatus, extra maintenance.StatusExtra) (*models.MaintenanceJob, error)
	CancelJobFunc       func(ctx context.Context, ownerID, jobID string) (*models.MaintenanceJob, error)
	DeleteJobFunc       func(ctx context.Context, ownerID, jobID string) error
}

func (m *MockService) PendingRequests(ctx context.Context, ownerID string) ([]models.MaintenanceRequest, error) {
	if m.PendingRequestsFunc != nil {
		return m.PendingRequestsFunc(ctx, ownerID)
	}
	return []models.MaintenanceRequest{{ID: "req-1", Status: models.RequestPending}}, nil
}

func (m *MockService) GetRequest(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error) {
	if m.GetRequestFunc != nil {
		return m.GetRequestFunc(ctx, ownerID, requestID)
	}
	return &models.MaintenanceRequest{ID: requestID, Status: models.RequestPending}, nil
}

func (m *MockService) Approve(ctx context.Context, ownerID, requestID string, o maintenance.ApproveOverrides) (*models.MaintenanceJob, error) {
	if m.ApproveFunc != nil {
		return m.ApproveFunc(ctx, ownerID, requestID, o)
	}
	return &models.MaintenanceJob{ID: "job-1", MaintenanceRequestID: &requestID, Status: models.JobPending}, nil
}

func (m *MockService) Reject(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error) {
	if m.RejectFunc != nil {
		return m.RejectFunc(ctx, ownerID, requestID)
	}
	return &models.MaintenanceRequest{ID: requestID, Status: models.RequestRejected}, nil
}

func (m *MockService) Cancel(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, ownerID, requestID)
	}
	return &models.MaintenanceRequest{ID: requestID, Status: models.RequestCancelled}, nil
}

func (m *MockService) CreateJob(ctx context.Context, ownerID string, in maintenance.JobInput) (*models.MaintenanceJob, error) {
	if m.CreateJobFunc != nil {
		return m.CreateJobFunc(ctx, ownerID, in)
	}
	return &models.MaintenanceJob{ID: "job-1", Title: in.Title, PropertyID: in.PropertyID}, nil
}

func (m *MockService) GetJob(ctx context.Context, ownerID, jobID string) (*models.MaintenanceJob, error) {
	if m.GetJobFunc != nil {
		return m.GetJobFunc(ctx, ownerID, jobID)
	}
	return &models.MaintenanceJob{ID: jobID, Status: models.JobPending}, nil
}

func (m *MockService) ListJobs(ctx context.Context, ownerID string, status models.JobStatus) ([]models.MaintenanceJob, error) {
	if m.ListJobsFunc != nil {
		return m.ListJobsFunc(ctx, ownerID, status)
	}
	return []models.MaintenanceJob{}, nil
}

func (m *MockService) UpdateJobStatus(ctx context.Context, ownerID, jobID string, to models.JobStatus, extra maintenance.StatusExtra) (*models.MaintenanceJob, error) {
	if m.UpdateJobStatusFunc != nil {
		return m.UpdateJobStatusFunc(ctx, ownerID, jobID, to, extra)
	}
	return &models.MaintenanceJob{ID: jobID, Status: to, Cost: extra.Cost}, nil
}

func (m *MockService) CancelJob(ctx context.Context, ownerID, jobID string) (*models.MaintenanceJob, error) {
	if m.CancelJobFunc != nil {
		return m.CancelJobFunc(ctx, ownerID, jobID)
	}
	return &models.MaintenanceJob{ID: jobID, Status: models.JobCancelled}, nil
}

func (m *MockService) DeleteJob(ctx context.Context, ownerID, jobID string) error {
	if m.DeleteJobFunc != nil {
		return m.DeleteJobFunc(ctx, ownerID, jobID)
	}
	return nil
}

func newHandler(svc *MockService) *handlers.Handler {
	return handlers.NewHandler(svc, nil, zap.NewNop())
}

func TestPingHandler(t *testing.T) {
	h := newHandler(&MockService{})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rr := httptest.NewRecorder()
	h.PingHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestRoutesRequireUser(t *testing.T) {
	router := handlers.Routes(newHandler(&MockService{}), zap.NewNop())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/maintenance-requests/pending", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRoutesPassOwnerAndParams(t *testing.T) {
	var gotOwner, gotRequest string
	svc := &MockService{
		RejectFunc: func(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error) {
			gotOwner, gotRequest = ownerID, requestID
			return &models.MaintenanceRequest{ID: requestID, Status: models.RequestRejected}, nil
		},
	}
	router := handlers.Routes(newHandler(svc), zap.NewNop())

	req := httptest.NewRequest(http.MethodPut, "/api/maintenance-requests/req-7/reject", nil)
	req.Header.Set(handlers.UserIDHeader, "owner-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "owner-1", gotOwner)
	require.Equal(t, "req-7", gotRequest)

	var body models.MaintenanceRequest
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, models.RequestRejected, body.Status)
}

func TestGetPendingRequestsHandler(t *testing.T) {
	svc := &MockService{
		PendingRequestsFunc: func(ctx context.Context, ownerID string) ([]models.MaintenanceRequest, error) {
			require.Equal(t, "owner-1", ownerID)
			return []models.MaintenanceRequest{
				{ID: "req-2", Description: "Broken window", Status: models.RequestPending,
					Reporter: &models.Tenant{FullName: "Ann Lee"}},
			}, nil
		},
	}
	h := newHandler(svc)

	req := testutils.NewRequest(http.MethodGet, "/api/maintenance-requests/pending", nil, "owner-1", nil)
	rr := httptest.NewRecorder()
	h.GetPendingRequestsHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Body.String(), `"reporter":{"id":"","userId":"","fullName":"Ann Lee"`)
}

func TestApproveRequestHandler(t *testing.T) {
	t.Run("without body", func(t *testing.T) {
		var got maintenance.ApproveOverrides
		svc := &MockService{
			ApproveFunc: func(ctx context.Context, ownerID, requestID string, o maintenance.ApproveOverrides) (*models.MaintenanceJob, error) {
				got = o
				return &models.MaintenanceJob{ID: "job-1", MaintenanceRequestID: &requestID}, nil
			},
		}
		h := newHandler(svc)

		req := testutils.NewRequest(http.MethodPut, "/api/maintenance-requests/req-1/approve", nil, "owner-1", map[string]string{"requestId": "req-1"})
		rr := httptest.NewRecorder()
		h.ApproveRequestHandler(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		require.Nil(t, got.Type)
		require.Contains(t, rr.Body.String(), `"maintenanceRequestId":"req-1"`)
	})

	t.Run("with overrides", func(t *testing.T) {
		var got maintenance.ApproveOverrides
		svc := &MockService{
			ApproveFunc: func(ctx context.Context, ownerID, requestID string, o maintenance.ApproveOverrides) (*models.MaintenanceJob, error) {
				got = o
				return &models.MaintenanceJob{ID: "job-1", RoomID: o.RoomID, Type: *o.Type}, nil
			},
		}
		h := newHandler(svc)

		body := strings.NewReader(`{"type":"ROOM","roomId":"r-101"}`)
		req := testutils.NewRequest(http.MethodPut, "/api/maintenance-requests/req-1/approve", body, "owner-1", map[string]string{"requestId": "req-1"})
		rr := httptest.NewRecorder()
		h.ApproveRequestHandler(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		require.Equal(t, models.JobTypeRoom, *got.Type)
		require.Equal(t, "r-101", *got.RoomID)
	})

	t.Run("invalid json", func(t *testing.T) {
		h := newHandler(&MockService{})

		req := testutils.NewRequest(http.MethodPut, "/api/maintenance-requests/req-1/approve", strings.NewReader(`{"type":`), "owner-1", map[string]string{"requestId": "req-1"})
		rr := httptest.NewRecorder()
		h.ApproveRequestHandler(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", pkgerrors.Wrap(maintenance.ErrNotFound, "job x"), http.StatusNotFound},
		{"validation", &maintenance.ValidationError{Field: "cost", Message: "must be positive"}, http.StatusBadRequest},
		{"transition", &maintenance.TransitionError{Entity: "maintenance job", From: "COMPLETED", To: "PENDING"}, http.StatusConflict},
		{"lost race", pkgerrors.Wrap(maintenance.ErrStateConflict, "job is no longer PENDING"), http.StatusConflict},
		{"permission", maintenance.ErrPermissionDenied, http.StatusForbidden},
		{"partial", &maintenance.PartialFailureError{Operation: "cancel job", Cause: errors.New("a"), Rollback: errors.New("b")}, http.StatusInternalServerError},
		{"other", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &MockService{
				GetJobFunc: func(ctx context.Context, ownerID, jobID string) (*models.MaintenanceJob, error) {
					return nil, tc.err
				},
			}
			h := newHandler(svc)

			req := testutils.NewRequest(http.MethodGet, "/api/maintenance-jobs/job-1", nil, "owner-1", map[string]string{"jobId": "job-1"})
			rr := httptest.NewRecorder()
			h.GetJobHandler(rr, req)

			require.Equal(t, tc.status, rr.Code)
			require.NotContains(t, rr.Body.String(), "db down")
		})
	}
}

func TestUpdateJobStatusHandler(t *testing.T) {
	t.Run("status and cost", func(t *testing.T) {
		var gotStatus models.JobStatus
		var gotCost decimal.NullDecimal
		svc := &MockService{
			UpdateJobStatusFunc: func(ctx context.Context, ownerID, jobID string, to models.JobStatus, extra maintenance.StatusExtra) (*models.MaintenanceJob, error) {
				gotStatus, gotCost = to, extra.Cost
				return &models.MaintenanceJob{ID: jobID, Status: to, Cost: extra.Cost}, nil
			},
		}
		h := newHandler(svc)

		req := testutils.NewRequest(http.MethodPut, "/api/maintenance-jobs/job-1/status",
			strings.NewReader(`{"status":"COMPLETED","cost":"500000"}`), "owner-1", map[string]string{"jobId": "job-1"})
		rr := httptest.NewRecorder()
		h.UpdateJobStatusHandler(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, models.JobCompleted, gotStatus)
		require.True(t, gotCost.Valid)
		require.True(t, gotCost.Decimal.Equal(decimal.NewFromInt(500000)))
	})

	t.Run("missing status", func(t *testing.T) {
		h := newHandler(&MockService{})

		req := testutils.NewRequest(http.MethodPut, "/api/maintenance-jobs/job-1/status", strings.NewReader(`{"cost":10}`), "owner-1", map[string]string{"jobId": "job-1"})
		rr := httptest.NewRecorder()
		h.UpdateJobStatusHandler(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("guard failure", func(t *testing.T) {
		svc := &MockService{
			UpdateJobStatusFunc: func(ctx context.Context, ownerID, jobID string, to models.JobStatus, extra maintenance.StatusExtra) (*models.MaintenanceJob, error) {
				return nil, &maintenance.ValidationError{Field: "cost", Message: "cost must be greater than zero to complete a job"}
			},
		}
		h := newHandler(svc)

		req := testutils.NewRequest(http.MethodPut, "/api/maintenance-jobs/job-1/status", strings.NewReader(`{"status":"COMPLETED"}`), "owner-1", map[string]string{"jobId": "job-1"})
		rr := httptest.NewRecorder()
		h.UpdateJobStatusHandler(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Contains(t, rr.Body.String(), "cost must be greater than zero")
	})
}

func TestGetJobsHandlerStatusFilter(t *testing.T) {
	var got models.JobStatus
	svc := &MockService{
		ListJobsFunc: func(ctx context.Context, ownerID string, status models.JobStatus) ([]models.MaintenanceJob, error) {
			got = status
			return []models.MaintenanceJob{{ID: "job-1", Status: status}}, nil
		},
	}
	h := newHandler(svc)

	req := testutils.NewRequest(http.MethodGet, "/api/maintenance-jobs?status=in_progress", nil, "owner-1", nil)
	rr := httptest.NewRecorder()
	h.GetJobsHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, models.JobInProgress, got)
}

func TestCreateJobHandler(t *testing.T) {
	h := newHandler(&MockService{})

	req := testutils.NewRequest(http.MethodPost, "/api/maintenance-jobs",
		strings.NewReader(`{"propertyId":"prop-1","title":"Paint hallway"}`), "owner-1", nil)
	rr := httptest.NewRecorder()
	h.CreateJobHandler(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Contains(t, rr.Body.String(), `"title":"Paint hallway"`)

	req = testutils.NewRequest(http.MethodPost, "/api/maintenance-jobs", nil, "owner-1", nil)
	rr = httptest.NewRecorder()
	h.CreateJobHandler(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteJobHandler(t *testing.T) {
	svc := &MockService{
		DeleteJobFunc: func(ctx context.Context, ownerID, jobID string) error {
			if jobID == "gone" {
				return pkgerrors.Wrapf(maintenance.ErrNotFound, "job %s", jobID)
			}
			return nil
		},
	}
	h := newHandler(svc)

	req := testutils.NewRequest(http.MethodDelete, "/api/maintenance-jobs/job-1", nil, "owner-1", map[string]string{"jobId": "job-1"})
	rr := httptest.NewRecorder()
	h.DeleteJobHandler(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	req = testutils.NewRequest(http.MethodDelete, "/api/maintenance-jobs/gone", nil, "owner-1", map[string]string{"jobId": "gone"})
	rr = httptest.NewRecorder()
	h.DeleteJobHandler(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

// fakeView: живой список, которым управляет тест
type fakeView struct {
	mu      sync.Mutex
	items   []string
	changes chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func newFakeView(items ...string) *fakeView {
	return &fakeView{items: items, changes: make(chan struct{}, 1), closed: make(chan struct{})}
}

func (v *fakeView) Start(ctx context.Context) error { return nil }
func (v *fakeView) Changes() <-chan struct{}        { return v.changes }
func (v *fakeView) Close()                          { v.once.Do(func() { close(v.closed) }) }

func (v *fakeView) Snapshot() any {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.items...)
}

func (v *fakeView) set(items ...string) {
	v.mu.Lock()
	v.items = items
	v.mu.Unlock()
	v.changes <- struct{}{}
}

type fakeViews struct {
	pending *fakeView
	owner   string
}

func (f *fakeViews) PendingRequests(ownerID string) handlers.LiveView {
	f.owner = ownerID
	return f.pending
}

func (f *fakeViews) Jobs(ownerID string, status models.JobStatus) handlers.LiveView {
	return newFakeView()
}

func TestStreamPendingRequests(t *testing.T) {
	view := newFakeView("req-1")
	views := &fakeViews{pending: view}
	h := handlers.NewHandler(&MockService{}, views, zap.NewNop())
	srv := httptest.NewServer(handlers.Routes(h, zap.NewNop()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/maintenance-requests/pending"
	header := http.Header{}
	header.Set(handlers.UserIDHeader, "owner-1")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()

	type message struct {
		Type  string   `json:"type"`
		Items []string `json:"items"`
	}
	read := func() message {
		var m message
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&m))
		return m
	}

	first := read()
	require.Equal(t, "snapshot", first.Type)
	require.Equal(t, []string{"req-1"}, first.Items)
	require.Equal(t, "owner-1", views.owner)

	view.set("req-1", "req-2")
	require.Equal(t, []string{"req-1", "req-2"}, read().Items)

	require.NoError(t, conn.Close())
	select {
	case <-view.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("live view was not closed after disconnect")
	}
}

func TestStreamRejectsMissingUser(t *testing.T) {
	h := handlers.NewHandler(&MockService{}, &fakeViews{pending: newFakeView()}, zap.NewNop())
	srv := httptest.NewServer(handlers.Routes(h, zap.NewNop()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/maintenance-requests/pending"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
