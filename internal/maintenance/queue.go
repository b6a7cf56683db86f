package maintenance

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rentdesk/models"
)

// PendingRequests возвращает заявки PENDING по объектам владельца, новые первыми,
// с профилем заявителя. Ошибка поиска профиля не прерывает чтение.
func (s *Service) PendingRequests(ctx context.Context, ownerID string) ([]models.MaintenanceRequest, error) {
	requests, err := s.store.ListPendingRequests(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "load pending requests")
	}

	tenants := make(map[string]*models.Tenant)
	for i := range requests {
		reporterID := requests[i].ReporterID
		if t, ok := tenants[reporterID]; ok {
			requests[i].Reporter = t
			continue
		}
		t, err := s.store.FindTenantByUserID(ctx, reporterID)
		if err != nil {
			s.logger.Warn("failed to enrich request with reporter",
				zap.String("request_id", requests[i].ID), zap.String("reporter_id", reporterID), zap.Error(err))
			continue
		}
		tenants[reporterID] = t
		requests[i].Reporter = t
	}
	return requests, nil
}

// GetRequest возвращает заявку владельца с профилем заявителя
func (s *Service) GetRequest(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error) {
	req, err := s.store.GetRequest(ctx, ownerID, requestID)
	if err != nil {
		return nil, err
	}
	t, err := s.store.FindTenantByUserID(ctx, req.ReporterID)
	if err != nil {
		s.logger.Warn("failed to enrich request with reporter",
			zap.String("request_id", req.ID), zap.Error(err))
		return req, nil
	}
	req.Reporter = t
	return req, nil
}
