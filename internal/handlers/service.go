package handlers

import (
	"context"

	"rentdesk/internal/maintenance"
	"rentdesk/models"
)

// Service: операции обслуживания, которые нужны обработчикам
type Service interface {
	PendingRequests(ctx context.Context, ownerID string) ([]models.MaintenanceRequest, error)
	GetRequest(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error)
	Approve(ctx context.Context, ownerID, requestID string, o maintenance.ApproveOverrides) (*models.MaintenanceJob, error)
	Reject(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error)
	Cancel(ctx context.Context, ownerID, requestID string) (*models.MaintenanceRequest, error)

	CreateJob(ctx context.Context, ownerID string, in maintenance.JobInput) (*models.MaintenanceJob, error)
	GetJob(ctx context.Context, ownerID, jobID string) (*models.MaintenanceJob, error)
	ListJobs(ctx context.Context, ownerID string, status models.JobStatus) ([]models.MaintenanceJob, error)
	UpdateJobStatus(ctx context.Context, ownerID, jobID string, to models.JobStatus, extra maintenance.StatusExtra) (*models.MaintenanceJob, error)
	CancelJob(ctx context.Context, ownerID, jobID string) (*models.MaintenanceJob, error)
	DeleteJob(ctx context.Context, ownerID, jobID string) error
}
