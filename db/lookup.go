package db

import (
	"context"

	"github.com/pkg/errors"

	"rentdesk/models"
)

// FindTenantByUserID ищет профиль арендатора по id пользователя. Отсутствие: не ошибка.
func (s *Storage) FindTenantByUserID(ctx context.Context, userID string) (*models.Tenant, error) {
	sb := newSelect()
	sb.Select("id", "user_id", "full_name", "email", "phone").From(tenantsTable)
	sb.Where(sb.Equal("user_id", userID), sb.IsNull("deleted_at"))
	sb.Limit(1)
	query, args := sb.Build()

	t := &models.Tenant{}
	if err := s.get(ctx, t, query, args...); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "find tenant for user %s", userID)
	}
	return t, nil
}

func (s *Storage) IsPropertyOwnedBy(ctx context.Context, ownerID, propertyID string) (bool, error) {
	if !validID(propertyID) {
		return false, nil
	}
	sb := newSelect()
	sb.Select("COUNT(1)").From(propertiesTable)
	sb.Where(sb.Equal("id", propertyID), sb.Equal("owner_id", ownerID), sb.IsNull("deleted_at"))
	query, args := sb.Build()

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, errors.Wrapf(err, "check property %s owner", propertyID)
	}
	return count > 0, nil
}

// RoomBelongsTo проверяет, что комната относится к объекту и не удалена
func (s *Storage) RoomBelongsTo(ctx context.Context, propertyID, roomID string) (bool, error) {
	if !validID(propertyID) || !validID(roomID) {
		return false, nil
	}
	sb := newSelect()
	sb.Select("COUNT(1)").From(roomsTable)
	sb.Where(sb.Equal("id", roomID), sb.Equal("property_id", propertyID), sb.IsNull("deleted_at"))
	query, args := sb.Build()

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, errors.Wrapf(err, "check room %s of property %s", roomID, propertyID)
	}
	return count > 0, nil
}
