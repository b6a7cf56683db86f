package maintenance

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rentdesk/models"
)

// Store: всё, что сервису нужно от хранилища. Каждый вызов несёт ownerID явно.
type Store interface {
	ListPendingRequests(ctx context.Context, ownerID string) ([]models.MaintenanceRequest, error)
	GetRequest(ctx context.Context, ownerID, id string) (*models.MaintenanceRequest, error)
	TransitionRequest(ctx context.Context, ownerID, id string, from, to models.RequestStatus) (bool, error)

	GetJob(ctx context.Context, ownerID, id string) (*models.MaintenanceJob, error)
	ListJobs(ctx context.Context, ownerID string, status models.JobStatus) ([]models.MaintenanceJob, error)
	CreateJob(ctx context.Context, job *models.MaintenanceJob) error
	TransitionJob(ctx context.Context, ownerID, id string, from, to models.JobStatus, cost decimal.NullDecimal) (bool, error)
	SoftDeleteJob(ctx context.Context, ownerID, id string) (bool, error)

	FindTenantByUserID(ctx context.Context, userID string) (*models.Tenant, error)
	IsPropertyOwnedBy(ctx context.Context, ownerID, propertyID string) (bool, error)
	RoomBelongsTo(ctx context.Context, propertyID, roomID string) (bool, error)
}

// Service реализует очередь заявок, их одобрение и жизненный цикл работ
type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}
