package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статус заявки на обслуживание
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCancelled RequestStatus = "CANCELLED"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected, RequestCancelled:
		return true
	}
	return false
}

// Terminal возвращает true для статусов, из которых заявка больше не выходит
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected || s == RequestCancelled
}

// Статус работ
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobCancelled  JobStatus = "CANCELLED"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobInProgress, JobCompleted, JobCancelled:
		return true
	}
	return false
}

type JobPriority string

const (
	PriorityLow    JobPriority = "LOW"
	PriorityMedium JobPriority = "MEDIUM"
	PriorityHigh   JobPriority = "HIGH"
	PriorityUrgent JobPriority = "URGENT"
)

func (p JobPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type JobType string

const (
	JobTypeBuilding JobType = "BUILDING"
	JobTypeRoom     JobType = "ROOM"
	JobTypeOther    JobType = "OTHER"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypeBuilding, JobTypeRoom, JobTypeOther:
		return true
	}
	return false
}

// Сущность Заявки (создаётся арендатором)
type MaintenanceRequest struct {
	ID          string        `db:"id" json:"id"`
	Description string        `db:"description" json:"description"`
	ReporterID  string        `db:"reporter_id" json:"reporterId"`
	PropertyID  string        `db:"property_id" json:"propertyId"`
	RoomID      *string       `db:"room_id" json:"roomId"`
	ImageURLs   string        `db:"image_urls" json:"imageUrls"`
	Priority    *JobPriority  `db:"priority" json:"priority"`
	Type        *JobType      `db:"type" json:"type"`
	Status      RequestStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updatedAt"`
	DeletedAt   *time.Time    `db:"deleted_at" json:"-"`

	PropertyName string  `db:"property_name" json:"propertyName"`
	Reporter     *Tenant `db:"-" json:"reporter"`
}

// Сущность Работ, создаётся при одобрении заявки или напрямую
type MaintenanceJob struct {
	ID                   string              `db:"id" json:"id"`
	PropertyID           string              `db:"property_id" json:"propertyId"`
	RoomID               *string             `db:"room_id" json:"roomId"`
	Title                string              `db:"title" json:"title"`
	Description          string              `db:"description" json:"description"`
	Priority             JobPriority         `db:"priority" json:"priority"`
	Type                 JobType             `db:"type" json:"type"`
	Status               JobStatus           `db:"status" json:"status"`
	Cost                 decimal.NullDecimal `db:"cost" json:"cost"`
	MaintenanceRequestID *string             `db:"maintenance_request_id" json:"maintenanceRequestId"`
	ImageURLs            string              `db:"image_urls" json:"imageUrls"`
	CreatedAt            time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time           `db:"updated_at" json:"updatedAt"`
	DeletedAt            *time.Time          `db:"deleted_at" json:"-"`

	PropertyName    string  `db:"property_name" json:"propertyName"`
	PropertyAddress string  `db:"property_address" json:"propertyAddress"`
	RoomCode        *string `db:"room_code" json:"roomCode"`
	RoomName        *string `db:"room_name" json:"roomName"`
}

// Сущность Арендатора (из БД, для связи с заявителем)
type Tenant struct {
	ID       string `db:"id" json:"id"`
	UserID   string `db:"user_id" json:"userId"`
	FullName string `db:"full_name" json:"fullName"`
	Email    string `db:"email" json:"email"`
	Phone    string `db:"phone" json:"phone"`
}

// Сущность Объекта недвижимости
type Property struct {
	ID      string `db:"id" json:"id"`
	OwnerID string `db:"owner_id" json:"ownerId"`
	Name    string `db:"name" json:"name"`
	Address string `db:"address" json:"address"`
}

type Room struct {
	ID         string `db:"id" json:"id"`
	PropertyID string `db:"property_id" json:"propertyId"`
	Code       string `db:"code" json:"code"`
	Name       string `db:"name" json:"name"`
}
