package db

import (
	"context"

	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rentdesk/models"
)

var requestColumns = []string{
	"r.id", "r.description", "r.reporter_id", "r.property_id", "r.room_id", "r.image_urls",
	"r.priority", "r.type", "r.status", "r.created_at", "r.updated_at", "r.deleted_at",
	"p.name AS property_name",
}

// selectRequests строит выборку заявок по объектам владельца без мягко удалённых строк
func selectRequests(ownerID string) *sqlbuilder.SelectBuilder {
	sb := newSelect()
	sb.Select(requestColumns...).
		From(requestsTable+" r").
		Join(propertiesTable+" p", "p.id = r.property_id")
	sb.Where(
		sb.Equal("p.owner_id", ownerID),
		sb.IsNull("r.deleted_at"),
		sb.IsNull("p.deleted_at"),
	)
	return sb
}

// ownedProperties: подзапрос id объектов, принадлежащих владельцу
func ownedProperties(ownerID string) *sqlbuilder.SelectBuilder {
	sb := newSelect()
	sb.Select("id").From(propertiesTable)
	sb.Where(sb.Equal("owner_id", ownerID), sb.IsNull("deleted_at"))
	return sb
}

func (s *Storage) ListPendingRequests(ctx context.Context, ownerID string) ([]models.MaintenanceRequest, error) {
	sb := selectRequests(ownerID)
	sb.Where(sb.Equal("r.status", string(models.RequestPending)))
	sb.OrderBy("r.created_at").Desc()
	query, args := sb.Build()

	requests := []models.MaintenanceRequest{}
	if err := s.db.SelectContext(ctx, &requests, query, args...); err != nil {
		s.logger.Error("failed to list pending requests", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, errors.Wrap(err, "list pending requests")
	}
	return requests, nil
}

func (s *Storage) GetRequest(ctx context.Context, ownerID, id string) (*models.MaintenanceRequest, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	sb := selectRequests(ownerID)
	sb.Where(sb.Equal("r.id", id))
	query, args := sb.Build()

	r := &models.MaintenanceRequest{}
	if err := s.get(ctx, r, query, args...); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "get request %s", id)
	}
	return r, nil
}

// TransitionRequest меняет статус заявки, только если текущий статус равен from.
// Возвращает false, если строка не найдена или статус уже другой.
func (s *Storage) TransitionRequest(ctx context.Context, ownerID, id string, from, to models.RequestStatus) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	ub := newUpdate()
	ub.Update(requestsTable).
		Set(ub.Assign("status", string(to)), "updated_at = NOW()").
		Where(
			ub.Equal("id", id),
			ub.Equal("status", string(from)),
			ub.IsNull("deleted_at"),
			ub.In("property_id", ownedProperties(ownerID)),
		)
	query, args := ub.Build()

	s.logger.Debug("transition request",
		zap.String("request_id", id), zap.String("from", string(from)), zap.String("to", string(to)))

	ok, err := s.exec(ctx, query, args...)
	if err != nil {
		return false, errors.Wrapf(err, "update request %s status", id)
	}
	return ok, nil
}
