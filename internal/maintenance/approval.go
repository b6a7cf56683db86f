package maintenance

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rentdesk/internal/metrics"
	"rentdesk/models"
)

const (
	titleMaxRunes   = 50
	defaultPriority = models.PriorityMedium
	defaultJobType  = models.JobTypeOther
	// заголовок, если описание заявки пустое
	defaultTitle = "Maintenance request"
)

// ApproveOverrides: поля работ, которые можно задать при одобрении вместо полей заявки
type ApproveOverrides struct {
	PropertyID  *string             `json:"propertyId" validate:"omitempty,uuid"`
	RoomID      *string             `json:"roomId" validate:"omitempty,uuid"`
	Title       *string             `json:"title" validate:"omitempty,max=200"`
	Description *string             `json:"description" validate:"omitempty,max=2000"`
	Priority    *models.JobPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Type        *models.JobType     `json:"type" validate:"omitempty,oneof=BUILDING ROOM OTHER"`
}

// Approve превращает заявку PENDING в новую работу и переводит заявку в APPROVED.
// Если вставка работ не удалась, статус заявки возвращается в PENDING;
// если не удался и откат, возвращается ErrPartialFailure.
func (s *Service) Approve(ctx context.Context, ownerID, requestID string, o ApproveOverrides) (*models.MaintenanceJob, error) {
	if err := validateStruct(o); err != nil {
		return nil, err
	}

	req, err := s.store.GetRequest(ctx, ownerID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestPending {
		metrics.RequestTransitions.WithLabelValues(string(req.Status), string(models.RequestApproved), "rejected").Inc()
		return nil, &TransitionError{Entity: "maintenance request", From: string(req.Status), To: string(models.RequestApproved)}
	}

	job, err := newJob(approvalDraft(req, o))
	if err != nil {
		return nil, err
	}
	job.MaintenanceRequestID = &req.ID

	if job.PropertyID != req.PropertyID {
		if err := s.checkPropertyOwner(ctx, ownerID, job.PropertyID); err != nil {
			return nil, err
		}
	}
	if err := s.checkRoom(ctx, job); err != nil {
		return nil, err
	}

	if err := s.moveRequest(ctx, ownerID, req.ID, models.RequestPending, models.RequestApproved); err != nil {
		return nil, err
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, s.revertApproval(ctx, ownerID, req.ID, err)
	}

	s.logger.Info("maintenance request approved",
		zap.String("request_id", req.ID), zap.String("job_id", job.ID), zap.String("owner_id", ownerID))

	created, err := s.store.GetJob(ctx, ownerID, job.ID)
	if err != nil {
		s.logger.Warn("failed to reload created job", zap.String("job_id", job.ID), zap.Error(err))
		return job, nil
	}
	return created, nil
}

// revertApproval откатывает APPROVED -> PENDING
func (s *Service) revertApproval(ctx context.Context, ownerID, requestID string, cause error) error {
	ctx = context.WithoutCancel(ctx)

	ok, rbErr := s.store.TransitionRequest(ctx, ownerID, requestID, models.RequestApproved, models.RequestPending)
	if rbErr == nil && ok {
		s.logger.Warn("job creation failed, approval reverted",
			zap.String("request_id", requestID), zap.Error(cause))
		return errors.Wrap(cause, "create job")
	}
	if rbErr == nil {
		rbErr = errors.New("request status changed before rollback")
	}

	metrics.PartialFailures.WithLabelValues("approve").Inc()
	s.logger.Error("request approved without a job, manual follow-up required",
		zap.String("request_id", requestID), zap.Error(cause), zap.NamedError("rollback_error", rbErr))
	return &PartialFailureError{Operation: "approve request " + requestID, Cause: cause, Rollback: rbErr}
}

func (s *Service) Reject(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error) {
	return s.closeRequest(ctx, ownerID, requestID, models.RequestRejected)
}

func (s *Service) Cancel(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error) {
	return s.closeRequest(ctx, ownerID, requestID, models.RequestCancelled)
}

// closeRequest переводит заявку в REJECTED или CANCELLED без создания работ.
// Повтор в тот же статус проходит как no-op, из другого терминального статуса это конфликт.
func (s *Service) closeRequest(ctx context.Context, ownerID, requestID string, to models.RequestStatus) (*models.MaintenanceRequest, error) {
	req, err := s.store.GetRequest(ctx, ownerID, requestID)
	if err != nil {
		return nil, err
	}

	noop, err := checkRequestTransition(req.Status, to, false)
	if err != nil {
		metrics.RequestTransitions.WithLabelValues(string(req.Status), string(to), "rejected").Inc()
		return nil, err
	}
	if noop {
		return req, nil
	}

	if err := s.moveRequest(ctx, ownerID, requestID, req.Status, to); err != nil {
		if errors.Is(err, ErrStateConflict) {
			// параллельный вызов мог уже выставить тот же статус
			if cur, gerr := s.store.GetRequest(ctx, ownerID, requestID); gerr == nil && cur.Status == to {
				return cur, nil
			}
		}
		return nil, err
	}
	req.Status = to
	return req, nil
}

// moveRequest: запись перехода с проверкой текущего статуса
func (s *Service) moveRequest(ctx context.Context, ownerID, requestID string, from, to models.RequestStatus) error {
	ok, err := s.store.TransitionRequest(ctx, ownerID, requestID, from, to)
	if err != nil {
		metrics.RequestTransitions.WithLabelValues(string(from), string(to), "error").Inc()
		return errors.Wrapf(err, "set request %s status %s", requestID, to)
	}
	if !ok {
		metrics.RequestTransitions.WithLabelValues(string(from), string(to), "conflict").Inc()
		return errors.Wrapf(ErrStateConflict, "request %s is no longer %s", requestID, from)
	}
	metrics.RequestTransitions.WithLabelValues(string(from), string(to), "ok").Inc()
	return nil
}

func (s *Service) checkPropertyOwner(ctx context.Context, ownerID, propertyID string) error {
	owned, err := s.store.IsPropertyOwnedBy(ctx, ownerID, propertyID)
	if err != nil {
		return err
	}
	if !owned {
		return errors.Wrapf(ErrPermissionDenied, "property %s", propertyID)
	}
	return nil
}

// checkRoom: комната работ должна принадлежать объекту работ, иначе в job попадёт чужая комната
func (s *Service) checkRoom(ctx context.Context, job *models.MaintenanceJob) error {
	if job.RoomID == nil {
		return nil
	}
	ok, err := s.store.RoomBelongsTo(ctx, job.PropertyID, *job.RoomID)
	if err != nil {
		return errors.Wrap(err, "check room")
	}
	if !ok {
		return validationError("roomId", "room %s does not belong to property %s", *job.RoomID, job.PropertyID)
	}
	return nil
}

// jobDraft: поля будущих работ до применения умолчаний
type jobDraft struct {
	PropertyID  string
	RoomID      *string
	Title       string
	Description string
	Priority    *models.JobPriority
	Type        *models.JobType
	ImageURLs   string
}

func approvalDraft(req *models.MaintenanceRequest, o ApproveOverrides) jobDraft {
	title := titleFromDescription(req.Description)
	if title == "" {
		title = defaultTitle
	}
	d := jobDraft{
		PropertyID:  req.PropertyID,
		RoomID:      req.RoomID,
		Title:       title,
		Description: req.Description,
		Priority:    req.Priority,
		Type:        req.Type,
		ImageURLs:   req.ImageURLs,
	}
	if o.PropertyID != nil && *o.PropertyID != req.PropertyID {
		// комната заявки относится к прежнему объекту
		d.PropertyID = *o.PropertyID
		d.RoomID = nil
	}
	if o.RoomID != nil {
		d.RoomID = o.RoomID
	}
	if o.Title != nil {
		d.Title = *o.Title
	}
	if o.Description != nil {
		d.Description = *o.Description
	}
	if o.Priority != nil {
		d.Priority = o.Priority
	}
	if o.Type != nil {
		d.Type = o.Type
	}
	return d
}

// newJob применяет умолчания и проверяет инвариант комнаты
func newJob(d jobDraft) (*models.MaintenanceJob, error) {
	jobType := defaultJobType
	if d.Type != nil && *d.Type != "" {
		jobType = *d.Type
	}
	priority := defaultPriority
	if d.Priority != nil && *d.Priority != "" {
		priority = *d.Priority
	}
	if !jobType.Valid() {
		return nil, validationError("type", "unknown job type %q", jobType)
	}
	if !priority.Valid() {
		return nil, validationError("priority", "unknown priority %q", priority)
	}

	room := d.RoomID
	if room != nil && *room == "" {
		room = nil
	}
	if jobType == models.JobTypeRoom {
		if room == nil {
			return nil, validationError("roomId", "room is required for %s jobs", models.JobTypeRoom)
		}
	} else {
		room = nil
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		return nil, validationError("title", "title is required")
	}
	if d.PropertyID == "" {
		return nil, validationError("propertyId", "property is required")
	}

	return &models.MaintenanceJob{
		PropertyID:  d.PropertyID,
		RoomID:      room,
		Title:       title,
		Description: d.Description,
		Priority:    priority,
		Type:        jobType,
		Status:      models.JobPending,
		ImageURLs:   d.ImageURLs,
	}, nil
}

// titleFromDescription берёт начало описания, схлопывая пробелы и переносы
func titleFromDescription(desc string) string {
	desc = strings.Join(strings.Fields(desc), " ")
	runes := []rune(desc)
	if len(runes) <= titleMaxRunes {
		return desc
	}
	return strings.TrimSpace(string(runes[:titleMaxRunes])) + "..."
}
