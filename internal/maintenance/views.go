package maintenance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rentdesk/internal/realtime"
	"rentdesk/models"
)

const (
	requestsTable = "maintenance_requests"
	jobsTable     = "maintenance_jobs"
)

// ViewOptions: задержки перезагрузки для живых списков
type ViewOptions struct {
	InsertDelay time.Duration
	UpdateDelay time.Duration
}

// NewPendingRequestsView: живая очередь заявок PENDING владельца.
// Владелец не виден в строке события, поэтому чужие строки отсекает перезагрузка.
func NewPendingRequestsView(feed realtime.Feed, svc *Service, ownerID string, opts ViewOptions, logger *zap.Logger) *realtime.Reconciler[models.MaintenanceRequest] {
	return realtime.NewReconciler(feed, realtime.Config[models.MaintenanceRequest]{
		Table:  requestsTable,
		Filter: realtime.Eq("status", string(models.RequestPending)),
		Key:    func(r models.MaintenanceRequest) string { return r.ID },
		Fetch: func(ctx context.Context) ([]models.MaintenanceRequest, error) {
			return svc.PendingRequests(ctx, ownerID)
		},
		Merge:       MergeRequestRow,
		InsertDelay: opts.InsertDelay,
		UpdateDelay: opts.UpdateDelay,
	}, logger.With(zap.String("owner_id", ownerID)))
}

// NewJobsView строит живой список работ владельца; пустой status означает все статусы
func NewJobsView(feed realtime.Feed, svc *Service, ownerID string, status models.JobStatus, opts ViewOptions, logger *zap.Logger) *realtime.Reconciler[models.MaintenanceJob] {
	var filter *realtime.Filter
	if status != "" {
		filter = realtime.Eq("status", string(status))
	}
	return realtime.NewReconciler(feed, realtime.Config[models.MaintenanceJob]{
		Table:  jobsTable,
		Filter: filter,
		Key:    func(j models.MaintenanceJob) string { return j.ID },
		Fetch: func(ctx context.Context) ([]models.MaintenanceJob, error) {
			return svc.ListJobs(ctx, ownerID, status)
		},
		Merge:       MergeJobRow,
		InsertDelay: opts.InsertDelay,
		UpdateDelay: opts.UpdateDelay,
	}, logger.With(zap.String("owner_id", ownerID)))
}

// MergeRequestRow накладывает колонки строки maintenance_requests на заявку.
// Отсутствующие колонки оставляют поле как есть: description и image_urls
// в событие не попадают и приходят только с перезагрузкой.
func MergeRequestRow(r models.MaintenanceRequest, row realtime.Row) models.MaintenanceRequest {
	if v, ok := row.String("description"); ok {
		r.Description = v
	}
	if v, ok := row.String("status"); ok {
		r.Status = models.RequestStatus(v)
	}
	if v, ok := row.String("image_urls"); ok {
		r.ImageURLs = v
	}
	if row.Has("room_id") {
		r.RoomID = optString(row, "room_id")
	}
	if row.Has("priority") {
		if v, ok := row.String("priority"); ok {
			p := models.JobPriority(v)
			r.Priority = &p
		} else {
			r.Priority = nil
		}
	}
	if row.Has("type") {
		if v, ok := row.String("type"); ok {
			t := models.JobType(v)
			r.Type = &t
		} else {
			r.Type = nil
		}
	}
	if t, ok := rowTime(row, "updated_at"); ok {
		r.UpdatedAt = t
	}
	return r
}

// MergeJobRow накладывает колонки строки maintenance_jobs на работы.
// Поля объекта и комнаты из join, а также description и image_urls, обновит перезагрузка.
func MergeJobRow(j models.MaintenanceJob, row realtime.Row) models.MaintenanceJob {
	if v, ok := row.String("title"); ok {
		j.Title = v
	}
	if v, ok := row.String("description"); ok {
		j.Description = v
	}
	if v, ok := row.String("status"); ok {
		j.Status = models.JobStatus(v)
	}
	if v, ok := row.String("priority"); ok {
		j.Priority = models.JobPriority(v)
	}
	if v, ok := row.String("type"); ok {
		j.Type = models.JobType(v)
	}
	if v, ok := row.String("image_urls"); ok {
		j.ImageURLs = v
	}
	if row.Has("room_id") {
		j.RoomID = optString(row, "room_id")
	}
	if row.Has("cost") {
		j.Cost = rowDecimal(row, "cost")
	}
	if t, ok := rowTime(row, "updated_at"); ok {
		j.UpdatedAt = t
	}
	return j
}

func optString(row realtime.Row, col string) *string {
	v, ok := row.String(col)
	if !ok {
		return nil
	}
	return &v
}

func rowDecimal(row realtime.Row, col string) decimal.NullDecimal {
	var raw string
	switch v := row[col].(type) {
	case json.Number:
		raw = v.String()
	case string:
		raw = v
	default:
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// to_jsonb отдаёт timestamptz с секундными долями и смещением
func rowTime(row realtime.Row, col string) (time.Time, bool) {
	v, ok := row.String(col)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
