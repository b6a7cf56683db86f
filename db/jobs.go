package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rentdesk/models"
)

var jobColumns = []string{
	"j.id", "j.property_id", "j.room_id", "j.title", "j.description", "j.priority", "j.type",
	"j.status", "j.cost", "j.maintenance_request_id", "j.image_urls",
	"j.created_at", "j.updated_at", "j.deleted_at",
	"p.name AS property_name", "p.address AS property_address",
	"rm.code AS room_code", "rm.name AS room_name",
}

// selectJobs подтягивает отображаемые поля объекта и комнаты
func selectJobs(ownerID string) *sqlbuilder.SelectBuilder {
	sb := newSelect()
	sb.Select(jobColumns...).
		From(jobsTable+" j").
		Join(propertiesTable+" p", "p.id = j.property_id").
		JoinWithOption(sqlbuilder.LeftJoin, roomsTable+" rm", "rm.id = j.room_id AND rm.property_id = j.property_id")
	sb.Where(
		sb.Equal("p.owner_id", ownerID),
		sb.IsNull("j.deleted_at"),
		sb.IsNull("p.deleted_at"),
	)
	return sb
}

func (s *Storage) GetJob(ctx context.Context, ownerID, id string) (*models.MaintenanceJob, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	sb := selectJobs(ownerID)
	sb.Where(sb.Equal("j.id", id))
	query, args := sb.Build()

	j := &models.MaintenanceJob{}
	if err := s.get(ctx, j, query, args...); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "get job %s", id)
	}
	return j, nil
}

// ListJobs возвращает работы владельца, новые первыми. status == "": без фильтра.
func (s *Storage) ListJobs(ctx context.Context, ownerID string, status models.JobStatus) ([]models.MaintenanceJob, error) {
	sb := selectJobs(ownerID)
	if status != "" {
		sb.Where(sb.Equal("j.status", string(status)))
	}
	sb.OrderBy("j.created_at").Desc()
	query, args := sb.Build()

	jobs := []models.MaintenanceJob{}
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		s.logger.Error("failed to list jobs", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, errors.Wrap(err, "list jobs")
	}
	return jobs, nil
}

func (s *Storage) CreateJob(ctx context.Context, j *models.MaintenanceJob) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}

	ib := newInsert()
	ib.InsertInto(jobsTable).
		Cols("id", "property_id", "room_id", "title", "description", "priority", "type",
			"status", "cost", "maintenance_request_id", "image_urls").
		Values(j.ID, j.PropertyID, j.RoomID, j.Title, j.Description, string(j.Priority), string(j.Type),
			string(j.Status), j.Cost, j.MaintenanceRequestID, j.ImageURLs).
		Returning("created_at", "updated_at")
	query, args := ib.Build()

	s.logger.Debug("creating job",
		zap.String("job_id", j.ID), zap.String("property_id", j.PropertyID), zap.Stringp("request_id", j.MaintenanceRequestID))

	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&j.CreatedAt, &j.UpdatedAt); err != nil {
		return errors.Wrap(err, "insert job")
	}
	return nil
}

// TransitionJob меняет статус работ, только если текущий статус равен from.
// Стоимость записывается вместе со статусом, если задана.
func (s *Storage) TransitionJob(ctx context.Context, ownerID, id string, from, to models.JobStatus, cost decimal.NullDecimal) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	ub := newUpdate()
	assignments := []string{ub.Assign("status", string(to)), "updated_at = NOW()"}
	if cost.Valid {
		assignments = append(assignments, ub.Assign("cost", cost.Decimal))
	}
	ub.Update(jobsTable).
		Set(assignments...).
		Where(
			ub.Equal("id", id),
			ub.Equal("status", string(from)),
			ub.IsNull("deleted_at"),
			ub.In("property_id", ownedProperties(ownerID)),
		)
	query, args := ub.Build()

	s.logger.Debug("transition job",
		zap.String("job_id", id), zap.String("from", string(from)), zap.String("to", string(to)))

	ok, err := s.exec(ctx, query, args...)
	if err != nil {
		return false, errors.Wrapf(err, "update job %s status", id)
	}
	return ok, nil
}

// SoftDeleteJob проставляет deleted_at; повторное удаление вернёт false
func (s *Storage) SoftDeleteJob(ctx context.Context, ownerID, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	ub := newUpdate()
	ub.Update(jobsTable).
		Set("deleted_at = NOW()", "updated_at = NOW()").
		Where(
			ub.Equal("id", id),
			ub.IsNull("deleted_at"),
			ub.In("property_id", ownedProperties(ownerID)),
		)
	query, args := ub.Build()

	ok, err := s.exec(ctx, query, args...)
	if err != nil {
		return false, errors.Wrapf(err, "delete job %s", id)
	}
	return ok, nil
}
