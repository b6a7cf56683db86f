package maintenance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"rentdesk/models"
)

const (
	prop1   = "9e3a1f60-7c2d-4b8e-a5f3-2d6c8b4e0001"
	prop2   = "9e3a1f60-7c2d-4b8e-a5f3-2d6c8b4e0002"
	prop9   = "9e3a1f60-7c2d-4b8e-a5f3-2d6c8b4e0009"
	room101 = "c4d2b7a1-3e5f-4a6b-8c9d-1e2f3a4b0101"
	room901 = "c4d2b7a1-3e5f-4a6b-8c9d-1e2f3a4b0901"
)

// fakeStore: хранилище в памяти с CAS-семантикой; ...Func подменяют отдельные методы
type fakeStore struct {
	mu       sync.Mutex
	requests map[string]*models.MaintenanceRequest
	jobs     map[string]*models.MaintenanceJob
	tenants  map[string]*models.Tenant
	owners   map[string]string // property id -> owner id
	rooms    map[string]string // room id -> property id
	seq      int
	writes   int

	CreateJobFunc         func(ctx context.Context, job *models.MaintenanceJob) error
	TransitionRequestFunc func(ctx context.Context, ownerID, id string, from, to models.RequestStatus) (bool, error)
	TransitionJobFunc     func(ctx context.Context, ownerID, id string, from, to models.JobStatus, cost decimal.NullDecimal) (bool, error)
	FindTenantFunc        func(ctx context.Context, userID string) (*models.Tenant, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests: make(map[string]*models.MaintenanceRequest),
		jobs:     make(map[string]*models.MaintenanceJob),
		tenants:  make(map[string]*models.Tenant),
		owners:   map[string]string{prop1: "owner-1", prop2: "owner-1", prop9: "owner-2"},
		rooms:    map[string]string{room101: prop1, room901: prop9},
	}
}

func (f *fakeStore) addRequest(r models.MaintenanceRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Status == "" {
		r.Status = models.RequestPending
	}
	if r.CreatedAt.IsZero() {
		f.seq++
		r.CreatedAt = time.Date(2024, 1, 1, 0, 0, f.seq, 0, time.UTC)
	}
	f.requests[r.ID] = &r
}

func (f *fakeStore) addJob(j models.MaintenanceJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	j.CreatedAt = time.Date(2024, 1, 1, 0, 0, f.seq, 0, time.UTC)
	f.jobs[j.ID] = &j
}

func (f *fakeStore) request(id string) models.MaintenanceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.requests[id]
}

func (f *fakeStore) job(id string) models.MaintenanceJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.jobs[id]
}

func (f *fakeStore) jobsForRequest(requestID string) []models.MaintenanceJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MaintenanceJob
	for _, j := range f.jobs {
		if j.MaintenanceRequestID != nil && *j.MaintenanceRequestID == requestID {
			out = append(out, *j)
		}
	}
	return out
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeStore) owned(ownerID, propertyID string) bool {
	return f.owners[propertyID] == ownerID
}

func (f *fakeStore) ListPendingRequests(ctx context.Context, ownerID string) ([]models.MaintenanceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.MaintenanceRequest{}
	for _, r := range f.requests {
		if r.Status == models.RequestPending && r.DeletedAt == nil && f.owned(ownerID, r.PropertyID) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) GetRequest(ctx context.Context, ownerID, id string) (*models.MaintenanceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok || r.DeletedAt != nil || !f.owned(ownerID, r.PropertyID) {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) TransitionRequest(ctx context.Context, ownerID, id string, from, to models.RequestStatus) (bool, error) {
	if f.TransitionRequestFunc != nil {
		return f.TransitionRequestFunc(ctx, ownerID, id, from, to)
	}
	return f.transitionRequest(ownerID, id, from, to)
}

func (f *fakeStore) transitionRequest(ownerID, id string, from, to models.RequestStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok || r.DeletedAt != nil || !f.owned(ownerID, r.PropertyID) || r.Status != from {
		return false, nil
	}
	r.Status = to
	f.writes++
	return true, nil
}

func (f *fakeStore) GetJob(ctx context.Context, ownerID, id string) (*models.MaintenanceJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || j.DeletedAt != nil || !f.owned(ownerID, j.PropertyID) {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) ListJobs(ctx context.Context, ownerID string, status models.JobStatus) ([]models.MaintenanceJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.MaintenanceJob{}
	for _, j := range f.jobs {
		if j.DeletedAt != nil || !f.owned(ownerID, j.PropertyID) {
			continue
		}
		if status != "" && j.Status != status {
			continue
		}
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

func (f *fakeStore) CreateJob(ctx context.Context, job *models.MaintenanceJob) error {
	if f.CreateJobFunc != nil {
		return f.CreateJobFunc(ctx, job)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", f.seq)
	}
	job.CreatedAt = time.Date(2024, 1, 1, 0, 0, f.seq, 0, time.UTC)
	job.UpdatedAt = job.CreatedAt
	cp := *job
	f.jobs[job.ID] = &cp
	f.writes++
	return nil
}

func (f *fakeStore) TransitionJob(ctx context.Context, ownerID, id string, from, to models.JobStatus, cost decimal.NullDecimal) (bool, error) {
	if f.TransitionJobFunc != nil {
		return f.TransitionJobFunc(ctx, ownerID, id, from, to, cost)
	}
	return f.transitionJob(ownerID, id, from, to, cost)
}

func (f *fakeStore) transitionJob(ownerID, id string, from, to models.JobStatus, cost decimal.NullDecimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || j.DeletedAt != nil || !f.owned(ownerID, j.PropertyID) || j.Status != from {
		return false, nil
	}
	j.Status = to
	if cost.Valid {
		j.Cost = cost
	}
	f.writes++
	return true, nil
}

func (f *fakeStore) SoftDeleteJob(ctx context.Context, ownerID, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || j.DeletedAt != nil || !f.owned(ownerID, j.PropertyID) {
		return false, nil
	}
	now := time.Now()
	j.DeletedAt = &now
	f.writes++
	return true, nil
}

func (f *fakeStore) FindTenantByUserID(ctx context.Context, userID string) (*models.Tenant, error) {
	if f.FindTenantFunc != nil {
		return f.FindTenantFunc(ctx, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tenants[userID], nil
}

func (f *fakeStore) IsPropertyOwnedBy(ctx context.Context, ownerID, propertyID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owned(ownerID, propertyID), nil
}

func (f *fakeStore) RoomBelongsTo(ctx context.Context, propertyID, roomID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms[roomID] == propertyID, nil
}
