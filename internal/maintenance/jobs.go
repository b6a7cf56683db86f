package maintenance

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rentdesk/internal/metrics"
	"rentdesk/models"
)

// JobInput: прямое создание работ без заявки
type JobInput struct {
	PropertyID  string              `json:"propertyId" validate:"required,uuid"`
	RoomID      *string             `json:"roomId" validate:"omitempty,uuid"`
	Title       string              `json:"title" validate:"required,max=200"`
	Description string              `json:"description" validate:"max=2000"`
	Priority    *models.JobPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Type        *models.JobType     `json:"type" validate:"omitempty,oneof=BUILDING ROOM OTHER"`
	ImageURLs   string              `json:"imageUrls" validate:"max=4000"`
}

func (s *Service) CreateJob(ctx context.Context, ownerID string, in JobInput) (*models.MaintenanceJob, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	job, err := newJob(jobDraft{
		PropertyID:  in.PropertyID,
		RoomID:      in.RoomID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Type:        in.Type,
		ImageURLs:   in.ImageURLs,
	})
	if err != nil {
		return nil, err
	}
	if err := s.checkPropertyOwner(ctx, ownerID, job.PropertyID); err != nil {
		return nil, err
	}
	if err := s.checkRoom(ctx, job); err != nil {
		return nil, err
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, errors.Wrap(err, "create job")
	}

	s.logger.Info("maintenance job created", zap.String("job_id", job.ID), zap.String("owner_id", ownerID))

	created, err := s.store.GetJob(ctx, ownerID, job.ID)
	if err != nil {
		s.logger.Warn("failed to reload created job", zap.String("job_id", job.ID), zap.Error(err))
		return job, nil
	}
	return created, nil
}

func (s *Service) GetJob(ctx context.Context, ownerID, jobID string) (*models.MaintenanceJob, error) {
	return s.store.GetJob(ctx, ownerID, jobID)
}

// ListJobs возвращает работы владельца, новые первыми. Пустой status: без фильтра.
func (s *Service) ListJobs(ctx context.Context, ownerID string, status models.JobStatus) ([]models.MaintenanceJob, error) {
	if status != "" && !status.Valid() {
		return nil, validationError("status", "unknown job status %q", status)
	}
	jobs, err := s.store.ListJobs(ctx, ownerID, status)
	if err != nil {
		return nil, errors.Wrap(err, "load jobs")
	}
	return jobs, nil
}

// UpdateJobStatus проводит работы по таблице переходов. Предусловия проверяются
// до записи; переход в CANCELLED отменяет и связанную заявку.
func (s *Service) UpdateJobStatus(ctx context.Context, ownerID, jobID string, to models.JobStatus, extra StatusExtra) (*models.MaintenanceJob, error) {
	job, err := s.store.GetJob(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	from := job.Status

	noop, err := checkJobTransition(job, to, extra)
	if err != nil {
		metrics.JobTransitions.WithLabelValues(string(from), string(to), "rejected").Inc()
		return nil, err
	}

	if !noop {
		if err := s.moveJob(ctx, ownerID, jobID, from, to, extra.Cost); err != nil {
			return nil, err
		}
		job.Status = to
		if extra.Cost.Valid {
			job.Cost = extra.Cost
		}
		s.logger.Info("maintenance job status changed",
			zap.String("job_id", jobID), zap.String("from", string(from)), zap.String("to", string(to)))
	}

	if to != models.JobCancelled || job.MaintenanceRequestID == nil {
		return job, nil
	}

	// повторная отмена тоже доводит заявку до CANCELLED
	if err := s.cascadeCancel(ctx, ownerID, job); err != nil {
		if noop {
			return nil, err
		}
		return nil, s.revertJob(ctx, ownerID, job, from, err)
	}
	return job, nil
}

// CancelJob: UpdateJobStatus(CANCELLED) с каскадом на заявку
func (s *Service) CancelJob(ctx context.Context, ownerID, jobID string) (*models.MaintenanceJob, error) {
	return s.UpdateJobStatus(ctx, ownerID, jobID, models.JobCancelled, StatusExtra{})
}

// DeleteJob помечает работы удалёнными
func (s *Service) DeleteJob(ctx context.Context, ownerID, jobID string) error {
	ok, err := s.store.SoftDeleteJob(ctx, ownerID, jobID)
	if err != nil {
		return errors.Wrapf(err, "delete job %s", jobID)
	}
	if !ok {
		return errors.Wrapf(ErrNotFound, "job %s", jobID)
	}
	s.logger.Info("maintenance job deleted", zap.String("job_id", jobID), zap.String("owner_id", ownerID))
	return nil
}

func (s *Service) moveJob(ctx context.Context, ownerID, jobID string, from, to models.JobStatus, cost decimal.NullDecimal) error {
	ok, err := s.store.TransitionJob(ctx, ownerID, jobID, from, to, cost)
	if err != nil {
		metrics.JobTransitions.WithLabelValues(string(from), string(to), "error").Inc()
		return errors.Wrapf(err, "set job %s status %s", jobID, to)
	}
	if !ok {
		metrics.JobTransitions.WithLabelValues(string(from), string(to), "conflict").Inc()
		return errors.Wrapf(ErrStateConflict, "job %s is no longer %s", jobID, from)
	}
	metrics.JobTransitions.WithLabelValues(string(from), string(to), "ok").Inc()
	return nil
}

// cascadeCancel переводит связанную заявку в CANCELLED
func (s *Service) cascadeCancel(ctx context.Context, ownerID string, job *models.MaintenanceJob) error {
	requestID := *job.MaintenanceRequestID
	log := s.logger.With(zap.String("job_id", job.ID), zap.String("request_id", requestID))

	req, err := s.store.GetRequest(ctx, ownerID, requestID)
	if errors.Is(err, ErrNotFound) {
		log.Warn("linked request not found, nothing to cancel")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "load linked request")
	}

	switch req.Status {
	case models.RequestCancelled:
		return nil
	case models.RequestRejected:
		log.Warn("linked request is rejected, leaving it as is")
		return nil
	}

	if _, err := checkRequestTransition(req.Status, models.RequestCancelled, true); err != nil {
		return err
	}
	err = s.moveRequest(ctx, ownerID, requestID, req.Status, models.RequestCancelled)
	if errors.Is(err, ErrStateConflict) {
		if cur, gerr := s.store.GetRequest(ctx, ownerID, requestID); gerr == nil && cur.Status == models.RequestCancelled {
			return nil
		}
	}
	return err
}

// revertJob откатывает отмену работ после неудавшегося каскада: CANCELLED -> from
func (s *Service) revertJob(ctx context.Context, ownerID string, job *models.MaintenanceJob, from models.JobStatus, cause error) error {
	ctx = context.WithoutCancel(ctx)

	ok, rbErr := s.store.TransitionJob(ctx, ownerID, job.ID, models.JobCancelled, from, decimal.NullDecimal{})
	if rbErr == nil && ok {
		s.logger.Warn("request cancel cascade failed, job status reverted",
			zap.String("job_id", job.ID), zap.String("status", string(from)), zap.Error(cause))
		return errors.Wrap(cause, "cancel linked request")
	}
	if rbErr == nil {
		rbErr = errors.New("job status changed before rollback")
	}

	metrics.PartialFailures.WithLabelValues("cancel_job").Inc()
	s.logger.Error("job cancelled but linked request is not, manual follow-up required",
		zap.String("job_id", job.ID), zap.Error(cause), zap.NamedError("rollback_error", rbErr))
	return &PartialFailureError{Operation: "cancel job " + job.ID, Cause: cause, Rollback: rbErr}
}
